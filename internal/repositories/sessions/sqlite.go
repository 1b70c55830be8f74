package sessions

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/dkravets/keychat/internal/dbx"
	"github.com/dkravets/keychat/internal/models"
)

// SQLiteRepository implements Repository using a DBTX. The session body is
// stored as a JSON document next to a denormalized step column, so the
// schema survives new step-scoped fields without migrations.
type SQLiteRepository struct {
	db  dbx.DBTX
	now func() time.Time
}

func NewSQLiteRepository(db dbx.DBTX) *SQLiteRepository {
	return &SQLiteRepository{db: db, now: time.Now}
}

func (r *SQLiteRepository) Get(ctx context.Context, userID string) (models.Session, error) {
	query := `select data, updated_at from sessions where user_id = ?`

	var data string
	var updatedAt time.Time
	err := r.db.QueryRowContext(ctx, query, userID).Scan(&data, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return models.IdleSession(), nil
	}
	if err != nil {
		return models.Session{}, fmt.Errorf("failed to select session: %w", err)
	}

	if r.now().Sub(updatedAt) > Timeout {
		return models.IdleSession(), nil
	}

	var s models.Session
	if err := json.Unmarshal([]byte(data), &s); err != nil {
		return models.Session{}, fmt.Errorf("failed to decode session: %w", err)
	}
	return s, nil
}

func (r *SQLiteRepository) Set(ctx context.Context, userID string, s models.Session) error {
	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("failed to encode session: %w", err)
	}

	query := `insert into sessions (user_id, step, data, updated_at) values (?, ?, ?, ?)
		on conflict(user_id) do update set step = excluded.step, data = excluded.data, updated_at = excluded.updated_at`
	if _, err := r.db.ExecContext(ctx, query, userID, string(s.Step), string(data), r.now().UTC()); err != nil {
		return fmt.Errorf("failed to upsert session: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) Clear(ctx context.Context, userID string) error {
	if _, err := r.db.ExecContext(ctx, `delete from sessions where user_id = ?`, userID); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}
