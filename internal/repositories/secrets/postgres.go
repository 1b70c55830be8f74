package secrets

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dkravets/keychat/internal/common"
	"github.com/dkravets/keychat/internal/dbx"
	"github.com/dkravets/keychat/internal/models"
)

// PostgresRepository implements Repository against PostgreSQL (pgx stdlib
// driver).
type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Get(ctx context.Context, id int64) (*models.Secret, error) {
	query := `select ` + secretColumns + ` from secrets where id = $1`
	s, err := scanSecret(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to select secret: %w", err)
	}
	return s, nil
}

func (r *PostgresRepository) GetAll(ctx context.Context) ([]models.Secret, error) {
	query := `select ` + secretColumns + ` from secrets order by created_at desc, id desc`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to select secrets: %w", err)
	}
	return collectSecrets(rows)
}

func (r *PostgresRepository) Search(ctx context.Context, keyword string, limit int) ([]models.Secret, error) {
	query := `select ` + secretColumns + ` from secrets where name ilike $1 or site ilike $1
		order by created_at desc, id desc limit $2`
	rows, err := r.db.QueryContext(ctx, query, "%"+keyword+"%", limit)
	if err != nil {
		return nil, fmt.Errorf("failed to search secrets: %w", err)
	}
	return collectSecrets(rows)
}

func (r *PostgresRepository) GetExpiring(ctx context.Context, days int) ([]models.Secret, error) {
	query := `select ` + secretColumns + ` from secrets
		where expires_at is not null and expires_at::date <= current_date + $1::int
		order by expires_at`
	rows, err := r.db.QueryContext(ctx, query, days)
	if err != nil {
		return nil, fmt.Errorf("failed to select expiring secrets: %w", err)
	}
	return collectSecrets(rows)
}

func (r *PostgresRepository) Insert(ctx context.Context, s *models.Secret) (int64, error) {
	query := `insert into secrets (name, site, account, password, extra, expires_at)
		values ($1, $2, $3, $4, $5, $6) returning id`
	var id int64
	err := r.db.QueryRowContext(ctx, query, s.Name, s.Site, s.Account, s.Password, s.Extra, s.ExpiresAt).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("failed to insert secret: %w", err)
	}
	return id, nil
}

func (r *PostgresRepository) Update(ctx context.Context, s *models.Secret) error {
	query := `update secrets set name = $1, site = $2, account = $3, password = $4, extra = $5, expires_at = $6
		where id = $7`
	res, err := r.db.ExecContext(ctx, query, s.Name, s.Site, s.Account, s.Password, s.Extra, s.ExpiresAt, s.ID)
	if err != nil {
		return fmt.Errorf("failed to update secret: %w", err)
	}
	return requireRow(res)
}

func (r *PostgresRepository) UpdateExpiry(ctx context.Context, id int64, expiresAt *string) error {
	res, err := r.db.ExecContext(ctx, `update secrets set expires_at = $1 where id = $2`, expiresAt, id)
	if err != nil {
		return fmt.Errorf("failed to update expiry: %w", err)
	}
	return requireRow(res)
}

func (r *PostgresRepository) Delete(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, `delete from secrets where id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete secret: %w", err)
	}
	return requireRow(res)
}
