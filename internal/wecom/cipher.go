// Package wecom implements the WeCom (企业微信) callback protocol: the
// signature scheme and AES-CBC message envelope mandated by the platform,
// the XML containers around it, the HTTP callback adapter, and the
// outbound REST client.
//
// Reference: https://developer.work.weixin.qq.com/document/path/90968
package wecom

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha1"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"

	"github.com/dkravets/keychat/internal/common"
)

// Signature computes the callback signature: the non-empty components are
// sorted lexicographically, concatenated and SHA-1 hashed to a hex digest.
// The same scheme covers inbound verification and outbound reply signing.
func Signature(token, timestamp, nonce, encrypted string) string {
	parts := []string{token, timestamp, nonce}
	if encrypted != "" {
		parts = append(parts, encrypted)
	}
	sort.Strings(parts)
	sum := sha1.Sum([]byte(strings.Join(parts, "")))
	return hex.EncodeToString(sum[:])
}

// VerifySignature recomputes the signature and compares it in constant
// time.
func VerifySignature(token, timestamp, nonce, signature, encrypted string) bool {
	expected := Signature(token, timestamp, nonce, encrypted)
	return hmac.Equal([]byte(expected), []byte(signature))
}

// Cipher performs the AES-256-CBC envelope encryption the platform
// requires. The EncodingAESKey is a 43-character base64 string; with one
// '=' pad it decodes to the 32-byte AES key, whose first 16 bytes double
// as the fixed IV. This layer is entirely independent of the content
// cipher used for storage.
type Cipher struct {
	key    []byte
	corpID string
}

// NewCipher decodes the encoding key and binds the expected corp id.
func NewCipher(encodingAESKey, corpID string) (*Cipher, error) {
	key, err := base64.StdEncoding.DecodeString(encodingAESKey + "=")
	if err != nil {
		return nil, fmt.Errorf("invalid encoding AES key: %w", err)
	}
	if len(key) != 32 {
		return nil, fmt.Errorf("invalid encoding AES key: got %d bytes, want 32", len(key))
	}
	return &Cipher{key: key, corpID: corpID}, nil
}

func (c *Cipher) iv() []byte {
	return c.key[:aes.BlockSize]
}

// Decrypt opens a base64 envelope and returns its plaintext payload.
// A corp-id mismatch is an authentication failure, reported the same way
// as a broken envelope.
func (c *Cipher) Decrypt(blob string) (string, error) {
	raw, err := base64.StdEncoding.DecodeString(blob)
	if err != nil {
		return "", fmt.Errorf("%w: %v", common.ErrEnvelopeDecrypt, err)
	}
	if len(raw) == 0 || len(raw)%aes.BlockSize != 0 {
		return "", fmt.Errorf("%w: ciphertext not block-aligned", common.ErrEnvelopeDecrypt)
	}

	block, err := aes.NewCipher(c.key)
	if err != nil {
		return "", err
	}
	buf := make([]byte, len(raw))
	cipher.NewCBCDecrypter(block, c.iv()).CryptBlocks(buf, raw)

	buf, err = pkcs7Strip(buf, envelopeBlockSize)
	if err != nil {
		return "", err
	}

	payload, receiverID, err := parseEnvelope(buf)
	if err != nil {
		return "", err
	}
	if receiverID != c.corpID {
		return "", fmt.Errorf("%w: receiver id mismatch", common.ErrEnvelopeDecrypt)
	}
	return payload, nil
}

// Encrypt seals plaintext into a base64 envelope carrying the configured
// corp id and a fresh 16-byte random prefix.
func (c *Cipher) Encrypt(plaintext string) (string, error) {
	prefix := make([]byte, envelopePrefixSize)
	if _, err := rand.Read(prefix); err != nil {
		return "", err
	}

	data := pkcs7Pad(packEnvelope(prefix, plaintext, c.corpID), envelopeBlockSize)

	block, err := aes.NewCipher(c.key)
	if err != nil {
		return "", err
	}
	out := make([]byte, len(data))
	cipher.NewCBCEncrypter(block, c.iv()).CryptBlocks(out, data)

	return base64.StdEncoding.EncodeToString(out), nil
}

// Nonce returns a random 16-character hex string for reply signing.
func Nonce() (string, error) {
	b := make([]byte, 8)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
