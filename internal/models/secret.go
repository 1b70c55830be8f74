// Package models defines the persisted data structures of the vault.
package models

import "time"

// SiteRaw marks a long-text record (key material, certificates, etc.)
// rather than a structured credential. For raw records the account field
// is empty and the password field holds the encrypted long-text content.
const SiteRaw = "raw"

// Secret is a stored credential row. Account, Password and Extra hold
// ciphertext produced by the content cipher; they are never persisted as
// plaintext. ExpiresAt is a plain "YYYY-MM-DD" calendar date.
type Secret struct {
	ID        int64
	Name      string
	Site      string
	Account   string
	Password  string
	Extra     *string
	ExpiresAt *string
	CreatedAt time.Time
}

func (s *Secret) IsRaw() bool {
	return s.Site == SiteRaw
}
