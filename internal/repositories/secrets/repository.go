// Package secrets persists encrypted credential rows.
package secrets

import (
	"context"

	"github.com/dkravets/keychat/internal/models"
)

// Repository describes CRUD and query operations for Secret rows. All
// string fields arrive already encrypted; repositories never see
// plaintext secrets.
type Repository interface {
	// Get returns a secret by id, or common.ErrNotFound.
	Get(ctx context.Context, id int64) (*models.Secret, error)

	// GetAll lists every secret, newest first.
	GetAll(ctx context.Context) ([]models.Secret, error)

	// Search matches keyword against name and site, case-insensitively,
	// returning at most limit rows.
	Search(ctx context.Context, keyword string, limit int) ([]models.Secret, error)

	// GetExpiring returns secrets whose expiry date falls within the next
	// days days (including already-expired ones).
	GetExpiring(ctx context.Context, days int) ([]models.Secret, error)

	// Insert stores a new secret and returns its server-assigned id.
	Insert(ctx context.Context, s *models.Secret) (int64, error)

	// Update replaces the mutable fields of an existing secret.
	Update(ctx context.Context, s *models.Secret) error

	// UpdateExpiry sets or clears the expiry date.
	UpdateExpiry(ctx context.Context, id int64, expiresAt *string) error

	// Delete removes a secret, or returns common.ErrNotFound.
	Delete(ctx context.Context, id int64) error
}
