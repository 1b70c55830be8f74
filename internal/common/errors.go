// Package common defines sentinel errors shared across the vault layers.
// Callers should use errors.Is to match these values.
package common

import "errors"

var (
	// Repository-level errors.
	ErrNotFound = errors.New("not found")

	// Transport security errors. An envelope that fails decryption,
	// padding checks or the receiver-id check is treated exactly like a
	// signature mismatch by the HTTP layer.
	ErrSignature       = errors.New("signature mismatch")
	ErrEnvelopeDecrypt = errors.New("envelope decrypt failed")

	// Content encryption errors. A failed GCM tag check means tampering,
	// a wrong key or a truncated blob; the record is unreadable.
	ErrCrypto = errors.New("record unreadable")

	// Admin API token errors.
	ErrInvalidToken = errors.New("invalid token")
)
