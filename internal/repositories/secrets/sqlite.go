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

// SQLiteRepository implements Repository using a DBTX (either *sql.DB or
// *sql.Tx).
type SQLiteRepository struct {
	db dbx.DBTX
}

func NewSQLiteRepository(db dbx.DBTX) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

const secretColumns = `id, name, site, account, password, extra, expires_at, created_at`

func scanSecret(row interface{ Scan(...any) error }) (*models.Secret, error) {
	var s models.Secret
	var extra, expiresAt sql.NullString
	if err := row.Scan(&s.ID, &s.Name, &s.Site, &s.Account, &s.Password, &extra, &expiresAt, &s.CreatedAt); err != nil {
		return nil, err
	}
	if extra.Valid {
		s.Extra = &extra.String
	}
	if expiresAt.Valid {
		s.ExpiresAt = &expiresAt.String
	}
	return &s, nil
}

func collectSecrets(rows *sql.Rows) ([]models.Secret, error) {
	defer rows.Close()

	var result []models.Secret
	for rows.Next() {
		s, err := scanSecret(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (r *SQLiteRepository) Get(ctx context.Context, id int64) (*models.Secret, error) {
	query := `select ` + secretColumns + ` from secrets where id = ?`
	s, err := scanSecret(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to select secret: %w", err)
	}
	return s, nil
}

func (r *SQLiteRepository) GetAll(ctx context.Context) ([]models.Secret, error) {
	query := `select ` + secretColumns + ` from secrets order by created_at desc, id desc`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to select secrets: %w", err)
	}
	return collectSecrets(rows)
}

func (r *SQLiteRepository) Search(ctx context.Context, keyword string, limit int) ([]models.Secret, error) {
	query := `select ` + secretColumns + ` from secrets where name like ? or site like ?
		order by created_at desc, id desc limit ?`
	pattern := "%" + keyword + "%"
	rows, err := r.db.QueryContext(ctx, query, pattern, pattern, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to search secrets: %w", err)
	}
	return collectSecrets(rows)
}

func (r *SQLiteRepository) GetExpiring(ctx context.Context, days int) ([]models.Secret, error) {
	query := `select ` + secretColumns + ` from secrets
		where expires_at is not null and date(expires_at) <= date('now', ?)
		order by expires_at`
	rows, err := r.db.QueryContext(ctx, query, fmt.Sprintf("+%d days", days))
	if err != nil {
		return nil, fmt.Errorf("failed to select expiring secrets: %w", err)
	}
	return collectSecrets(rows)
}

func (r *SQLiteRepository) Insert(ctx context.Context, s *models.Secret) (int64, error) {
	query := `insert into secrets (name, site, account, password, extra, expires_at)
		values (?, ?, ?, ?, ?, ?)`
	res, err := r.db.ExecContext(ctx, query, s.Name, s.Site, s.Account, s.Password, s.Extra, s.ExpiresAt)
	if err != nil {
		return 0, fmt.Errorf("failed to insert secret: %w", err)
	}
	return res.LastInsertId()
}

func (r *SQLiteRepository) Update(ctx context.Context, s *models.Secret) error {
	query := `update secrets set name = ?, site = ?, account = ?, password = ?, extra = ?, expires_at = ?
		where id = ?`
	res, err := r.db.ExecContext(ctx, query, s.Name, s.Site, s.Account, s.Password, s.Extra, s.ExpiresAt, s.ID)
	if err != nil {
		return fmt.Errorf("failed to update secret: %w", err)
	}
	return requireRow(res)
}

func (r *SQLiteRepository) UpdateExpiry(ctx context.Context, id int64, expiresAt *string) error {
	res, err := r.db.ExecContext(ctx, `update secrets set expires_at = ? where id = ?`, expiresAt, id)
	if err != nil {
		return fmt.Errorf("failed to update expiry: %w", err)
	}
	return requireRow(res)
}

func (r *SQLiteRepository) Delete(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, `delete from secrets where id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete secret: %w", err)
	}
	return requireRow(res)
}

func requireRow(res sql.Result) error {
	ra, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if ra == 0 {
		return common.ErrNotFound
	}
	return nil
}
