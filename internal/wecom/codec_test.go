package wecom

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dkravets/keychat/internal/common"
)

func TestPkcs7_RoundTrip(t *testing.T) {
	t.Parallel()

	for _, size := range []int{0, 1, 31, 32, 33, 100} {
		data := bytes.Repeat([]byte{'x'}, size)
		padded := pkcs7Pad(data, envelopeBlockSize)
		assert.Zero(t, len(padded)%envelopeBlockSize)

		stripped, err := pkcs7Strip(padded, envelopeBlockSize)
		require.NoError(t, err)
		assert.Equal(t, data, stripped)
	}
}

func TestPkcs7Strip_Rejects(t *testing.T) {
	t.Parallel()

	_, err := pkcs7Strip(nil, envelopeBlockSize)
	require.ErrorIs(t, err, common.ErrEnvelopeDecrypt)

	// Pad byte of zero.
	_, err = pkcs7Strip([]byte{1, 2, 3, 0}, envelopeBlockSize)
	require.ErrorIs(t, err, common.ErrEnvelopeDecrypt)

	// Pad byte exceeding the block size.
	_, err = pkcs7Strip([]byte{1, 2, 3, 33}, envelopeBlockSize)
	require.ErrorIs(t, err, common.ErrEnvelopeDecrypt)

	// Pad byte exceeding the buffer.
	_, err = pkcs7Strip([]byte{7}, envelopeBlockSize)
	require.ErrorIs(t, err, common.ErrEnvelopeDecrypt)
}

func TestEnvelope_RoundTrip(t *testing.T) {
	t.Parallel()

	prefix := bytes.Repeat([]byte{0xAB}, envelopePrefixSize)
	buf := packEnvelope(prefix, "payload text", "corp42")

	payload, receiver, err := parseEnvelope(buf)
	require.NoError(t, err)
	assert.Equal(t, "payload text", payload)
	assert.Equal(t, "corp42", receiver)
}

func TestParseEnvelope_Rejects(t *testing.T) {
	t.Parallel()

	// Shorter than the fixed header.
	_, _, err := parseEnvelope(make([]byte, envelopeHeaderSize-1))
	require.ErrorIs(t, err, common.ErrEnvelopeDecrypt)

	// Length field pointing past the buffer.
	buf := packEnvelope(make([]byte, envelopePrefixSize), "abc", "corp")
	buf[envelopePrefixSize] = 0xFF
	_, _, err = parseEnvelope(buf)
	require.ErrorIs(t, err, common.ErrEnvelopeDecrypt)
}
