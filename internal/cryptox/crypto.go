// Package cryptox implements the content cipher protecting individual
// secret fields at rest.
//
// Fields are encrypted with AES-256-GCM under a key derived from the
// configured secret string. A fresh 12-byte nonce is generated per call,
// prepended to the ciphertext+tag, and the whole blob is base64-encoded.
// Authenticated encryption is required here: a flipped bit in a stored
// blob must fail decryption, not produce garbage plaintext.
package cryptox

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"sync"

	"github.com/dkravets/keychat/internal/common"
)

const (
	keySize   = 32
	nonceSize = 12
	keyFiller = '0'
)

// DeriveKey turns the configured secret string into a 256-bit AES key by
// right-padding with '0' to 32 bytes, truncating if longer. Deterministic,
// so blobs written under the same secret stay readable across restarts.
func DeriveKey(secret string) []byte {
	key := make([]byte, keySize)
	n := copy(key, secret)
	for i := n; i < keySize; i++ {
		key[i] = keyFiller
	}
	return key
}

// KeyCache holds the single derived content key for the process lifetime,
// avoiding re-derivation per operation. The cache invalidates itself when
// the secret string changes and can be dropped explicitly.
type KeyCache struct {
	mu     sync.Mutex
	secret string
	key    []byte
}

func NewKeyCache() *KeyCache {
	return &KeyCache{}
}

// Get returns the derived key for secret, deriving on first use or after
// the secret changed.
func (c *KeyCache) Get(secret string) []byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.key == nil || c.secret != secret {
		c.key = DeriveKey(secret)
		c.secret = secret
	}
	return c.key
}

// Invalidate drops the cached key; the next Get derives again.
func (c *KeyCache) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.key = nil
	c.secret = ""
}

// Cipher encrypts and decrypts individual string fields. Safe for
// concurrent use.
type Cipher struct {
	keys *KeyCache
}

func NewCipher() *Cipher {
	return &Cipher{keys: NewKeyCache()}
}

func (c *Cipher) aead(secret string) (cipher.AEAD, error) {
	block, err := aes.NewCipher(c.keys.Get(secret))
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}

// Encrypt seals plaintext under the key derived from secret and returns
// base64(nonce || ciphertext || tag). The nonce comes from crypto/rand and
// is never reused across calls.
func (c *Cipher) Encrypt(plaintext, secret string) (string, error) {
	aead, err := c.aead(secret)
	if err != nil {
		return "", err
	}

	nonce := make([]byte, nonceSize)
	if _, err := rand.Read(nonce); err != nil {
		return "", err
	}

	blob := aead.Seal(nonce, nonce, []byte(plaintext), nil)
	return base64.StdEncoding.EncodeToString(blob), nil
}

// Decrypt reverses Encrypt. Any failure (malformed base64, truncated
// input, wrong key, failed tag check) yields common.ErrCrypto;
// partially decrypted data is never returned.
func (c *Cipher) Decrypt(blob, secret string) (string, error) {
	aead, err := c.aead(secret)
	if err != nil {
		return "", err
	}

	raw, err := base64.StdEncoding.DecodeString(blob)
	if err != nil {
		return "", fmt.Errorf("%w: %v", common.ErrCrypto, err)
	}
	if len(raw) < nonceSize {
		return "", fmt.Errorf("%w: blob too short", common.ErrCrypto)
	}

	plaintext, err := aead.Open(nil, raw[:nonceSize], raw[nonceSize:], nil)
	if err != nil {
		return "", fmt.Errorf("%w: %v", common.ErrCrypto, err)
	}
	return string(plaintext), nil
}
