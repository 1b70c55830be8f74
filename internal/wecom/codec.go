package wecom

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/dkravets/keychat/internal/common"
)

// Decrypted envelope layout, fixed by the platform:
//
//	random prefix (16) | payload length, uint32 BE (4) | payload | receiver id
const (
	envelopePrefixSize = 16
	envelopeHeaderSize = envelopePrefixSize + 4
	envelopeBlockSize  = 32
)

// pkcs7Pad appends PKCS#7 padding up to blockSize. A full extra block is
// added when data is already aligned.
func pkcs7Pad(data []byte, blockSize int) []byte {
	padLen := blockSize - len(data)%blockSize
	return append(data, bytes.Repeat([]byte{byte(padLen)}, padLen)...)
}

// pkcs7Strip removes PKCS#7 padding. A pad length of zero, larger than the
// block size or larger than the buffer is rejected rather than sliced
// blindly.
func pkcs7Strip(data []byte, blockSize int) ([]byte, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty buffer", common.ErrEnvelopeDecrypt)
	}
	padLen := int(data[len(data)-1])
	if padLen == 0 || padLen > blockSize || padLen > len(data) {
		return nil, fmt.Errorf("%w: bad padding length %d", common.ErrEnvelopeDecrypt, padLen)
	}
	return data[:len(data)-padLen], nil
}

// packEnvelope builds the envelope byte layout around payload.
func packEnvelope(prefix []byte, payload, receiverID string) []byte {
	buf := make([]byte, 0, envelopeHeaderSize+len(payload)+len(receiverID))
	buf = append(buf, prefix...)
	buf = binary.BigEndian.AppendUint32(buf, uint32(len(payload)))
	buf = append(buf, payload...)
	buf = append(buf, receiverID...)
	return buf
}

// parseEnvelope splits a decrypted, unpadded buffer into payload and
// receiver id, rejecting buffers shorter than the fixed header or with an
// inconsistent length field.
func parseEnvelope(buf []byte) (payload, receiverID string, err error) {
	if len(buf) < envelopeHeaderSize {
		return "", "", fmt.Errorf("%w: buffer shorter than header", common.ErrEnvelopeDecrypt)
	}
	msgLen := int(binary.BigEndian.Uint32(buf[envelopePrefixSize:envelopeHeaderSize]))
	if msgLen < 0 || envelopeHeaderSize+msgLen > len(buf) {
		return "", "", fmt.Errorf("%w: payload length %d exceeds buffer", common.ErrEnvelopeDecrypt, msgLen)
	}
	payload = string(buf[envelopeHeaderSize : envelopeHeaderSize+msgLen])
	receiverID = string(buf[envelopeHeaderSize+msgLen:])
	return payload, receiverID, nil
}
