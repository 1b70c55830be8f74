// Package vault is the business service of the secret store. It owns the
// content cipher: every field is encrypted before it reaches a repository
// and decrypted on the way out, so storage never sees plaintext.
package vault

import (
	"context"
	"fmt"

	"github.com/dkravets/keychat/internal/cryptox"
	"github.com/dkravets/keychat/internal/models"
	"github.com/dkravets/keychat/internal/repositories/secrets"
	"github.com/dkravets/keychat/internal/repositories/sessions"
)

// SaveSecretInput is a new structured credential, in plaintext.
type SaveSecretInput struct {
	Name      string
	Site      string
	Account   string
	Password  string
	Extra     *string
	ExpiresAt *string
}

// SecretDetail is a fully decrypted secret. For raw records Password
// holds the long-text content and Account is empty.
type SecretDetail struct {
	ID        int64
	Name      string
	Site      string
	Account   string
	Password  string
	Extra     *string
	ExpiresAt *string
	IsRaw     bool
}

// BackupEntry is one decrypted record of an export.
type BackupEntry struct {
	ID        int64   `json:"id"`
	Name      string  `json:"name"`
	Type      string  `json:"type,omitempty"`
	Site      string  `json:"site,omitempty"`
	Account   string  `json:"account,omitempty"`
	Password  string  `json:"password,omitempty"`
	Content   string  `json:"content,omitempty"`
	Extra     *string `json:"extra,omitempty"`
	ExpiresAt *string `json:"expires_at,omitempty"`
}

// Service orchestrates the content cipher and the repositories.
type Service struct {
	secrets    secrets.Repository
	sessions   sessions.Repository
	cipher     *cryptox.Cipher
	encryptKey string
}

func NewService(secretRepo secrets.Repository, sessionRepo sessions.Repository, cipher *cryptox.Cipher, encryptKey string) *Service {
	return &Service{
		secrets:    secretRepo,
		sessions:   sessionRepo,
		cipher:     cipher,
		encryptKey: encryptKey,
	}
}

func (s *Service) encrypt(plaintext string) (string, error) {
	return s.cipher.Encrypt(plaintext, s.encryptKey)
}

func (s *Service) decrypt(blob string) (string, error) {
	return s.cipher.Decrypt(blob, s.encryptKey)
}

func (s *Service) encryptOptional(v *string) (*string, error) {
	if v == nil {
		return nil, nil
	}
	enc, err := s.encrypt(*v)
	if err != nil {
		return nil, err
	}
	return &enc, nil
}

// SaveSecret encrypts and persists a new structured credential, returning
// its id.
func (s *Service) SaveSecret(ctx context.Context, in SaveSecretInput) (int64, error) {
	account, err := s.encrypt(in.Account)
	if err != nil {
		return 0, fmt.Errorf("failed to encrypt account: %w", err)
	}
	password, err := s.encrypt(in.Password)
	if err != nil {
		return 0, fmt.Errorf("failed to encrypt password: %w", err)
	}
	extra, err := s.encryptOptional(in.Extra)
	if err != nil {
		return 0, fmt.Errorf("failed to encrypt extra: %w", err)
	}

	return s.secrets.Insert(ctx, &models.Secret{
		Name:      in.Name,
		Site:      in.Site,
		Account:   account,
		Password:  password,
		Extra:     extra,
		ExpiresAt: in.ExpiresAt,
	})
}

// SaveLongText stores opaque multi-line content (keys, certificates) as a
// raw record: site is the raw sentinel, the account stays empty and the
// encrypted content lives in the password column.
func (s *Service) SaveLongText(ctx context.Context, name, content string, expiresAt *string) (int64, error) {
	encrypted, err := s.encrypt(content)
	if err != nil {
		return 0, fmt.Errorf("failed to encrypt content: %w", err)
	}

	return s.secrets.Insert(ctx, &models.Secret{
		Name:      name,
		Site:      models.SiteRaw,
		Account:   "",
		Password:  encrypted,
		ExpiresAt: expiresAt,
	})
}

// UpdateSecret re-encrypts and replaces the fields of an existing record.
// For raw records only name, content (password) and expiry are updated.
func (s *Service) UpdateSecret(ctx context.Context, id int64, in SaveSecretInput) error {
	existing, err := s.secrets.Get(ctx, id)
	if err != nil {
		return err
	}

	password, err := s.encrypt(in.Password)
	if err != nil {
		return fmt.Errorf("failed to encrypt password: %w", err)
	}

	updated := &models.Secret{
		ID:        id,
		Name:      in.Name,
		Site:      existing.Site,
		Password:  password,
		ExpiresAt: in.ExpiresAt,
	}

	if !existing.IsRaw() {
		account, err := s.encrypt(in.Account)
		if err != nil {
			return fmt.Errorf("failed to encrypt account: %w", err)
		}
		extra, err := s.encryptOptional(in.Extra)
		if err != nil {
			return fmt.Errorf("failed to encrypt extra: %w", err)
		}
		updated.Site = in.Site
		updated.Account = account
		updated.Extra = extra
	}

	return s.secrets.Update(ctx, updated)
}

// Detail returns a fully decrypted secret. Decryption failures surface as
// common.ErrCrypto; partially decrypted data is never returned.
func (s *Service) Detail(ctx context.Context, id int64) (*SecretDetail, error) {
	row, err := s.secrets.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	detail := &SecretDetail{
		ID:        row.ID,
		Name:      row.Name,
		Site:      row.Site,
		ExpiresAt: row.ExpiresAt,
		IsRaw:     row.IsRaw(),
	}

	detail.Password, err = s.decrypt(row.Password)
	if err != nil {
		return nil, err
	}
	if detail.IsRaw {
		return detail, nil
	}

	detail.Account, err = s.decrypt(row.Account)
	if err != nil {
		return nil, err
	}
	if row.Extra != nil {
		extra, err := s.decrypt(*row.Extra)
		if err != nil {
			return nil, err
		}
		detail.Extra = &extra
	}
	return detail, nil
}

// List returns all stored rows (ciphertext fields untouched).
func (s *Service) List(ctx context.Context) ([]models.Secret, error) {
	return s.secrets.GetAll(ctx)
}

// Search matches keyword against name and site.
func (s *Service) Search(ctx context.Context, keyword string, limit int) ([]models.Secret, error) {
	return s.secrets.Search(ctx, keyword, limit)
}

// Expiring returns rows due within days (including overdue ones).
func (s *Service) Expiring(ctx context.Context, days int) ([]models.Secret, error) {
	return s.secrets.GetExpiring(ctx, days)
}

// UpdateExpiry sets or clears a record's expiry date.
func (s *Service) UpdateExpiry(ctx context.Context, id int64, expiresAt *string) error {
	return s.secrets.UpdateExpiry(ctx, id, expiresAt)
}

// Delete removes a record.
func (s *Service) Delete(ctx context.Context, id int64) error {
	return s.secrets.Delete(ctx, id)
}

// Export decrypts every record for backup purposes.
func (s *Service) Export(ctx context.Context) ([]BackupEntry, error) {
	rows, err := s.secrets.GetAll(ctx)
	if err != nil {
		return nil, err
	}

	result := make([]BackupEntry, 0, len(rows))
	for i := range rows {
		detail, err := s.Detail(ctx, rows[i].ID)
		if err != nil {
			return nil, fmt.Errorf("failed to decrypt secret %d: %w", rows[i].ID, err)
		}

		entry := BackupEntry{
			ID:        detail.ID,
			Name:      detail.Name,
			ExpiresAt: detail.ExpiresAt,
		}
		if detail.IsRaw {
			entry.Type = models.SiteRaw
			entry.Content = detail.Password
		} else {
			entry.Site = detail.Site
			entry.Account = detail.Account
			entry.Password = detail.Password
			entry.Extra = detail.Extra
		}
		result = append(result, entry)
	}
	return result, nil
}

// Session accessors: the vault exposes conversation state only as an
// opaque proxy; the engine owns its contents.

func (s *Service) GetSession(ctx context.Context, userID string) (models.Session, error) {
	return s.sessions.Get(ctx, userID)
}

func (s *Service) SetSession(ctx context.Context, userID string, session models.Session) error {
	return s.sessions.Set(ctx, userID, session)
}

func (s *Service) ClearSession(ctx context.Context, userID string) error {
	return s.sessions.Clear(ctx, userID)
}
