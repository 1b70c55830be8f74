// Package sessions persists per-user conversation state.
package sessions

import (
	"context"
	"time"

	"github.com/dkravets/keychat/internal/models"
)

// Timeout is the inactivity window after which a stored session reads back
// as idle. Expiry is a read-time policy; no background sweep exists.
const Timeout = 5 * time.Minute

// Repository stores conversation sessions keyed by the opaque platform
// user id. Concurrent writes for one user are last-write-wins.
type Repository interface {
	// Get returns the session for userID. A missing or stale row reads as
	// the idle session, never as an error.
	Get(ctx context.Context, userID string) (models.Session, error)

	// Set upserts the session and refreshes its activity timestamp.
	Set(ctx context.Context, userID string, s models.Session) error

	// Clear removes the session. Clearing an absent session is a no-op.
	Clear(ctx context.Context, userID string) error
}
