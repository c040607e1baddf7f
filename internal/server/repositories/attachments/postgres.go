package attachments

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/accountkeeper/internal/common"
	"github.com/dmitrijs2005/accountkeeper/internal/dbx"
	"github.com/dmitrijs2005/accountkeeper/internal/server/models"
)

// PostgresRepository implements attachment metadata storage over a dbx.DBTX
// (*sql.DB or *sql.Tx).
type PostgresRepository struct {
	db dbx.DBTX
}

// NewPostgresRepository constructs a repository bound to the given DBTX.
func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Create inserts the metadata row of an already stored picture.
func (r *PostgresRepository) Create(ctx context.Context, a *models.Attachment) error {
	query := `
		INSERT INTO attachments (id, file_name, url, storage_key, upload_date, account_id)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err := r.db.ExecContext(ctx, query, a.ID, a.FileName, a.URL, a.StorageKey, a.UploadDate, a.AccountID)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

// GetByAccountID returns the picture owned by accountID or
// common.ErrorNotFound.
func (r *PostgresRepository) GetByAccountID(ctx context.Context, accountID string) (*models.Attachment, error) {
	query := `
		SELECT id, file_name, url, storage_key, upload_date, account_id FROM attachments
		WHERE account_id = $1
		ORDER BY upload_date
		LIMIT 1
	`

	a := &models.Attachment{}
	err := r.db.QueryRowContext(ctx, query, accountID).
		Scan(&a.ID, &a.FileName, &a.URL, &a.StorageKey, &a.UploadDate, &a.AccountID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return a, nil
}

// Delete removes the row with the given id. Exactly one row must be affected.
func (r *PostgresRepository) Delete(ctx context.Context, id string) error {
	query := `DELETE FROM attachments WHERE id = $1`
	res, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected error: %w", err)
	}
	if n == 0 {
		return common.ErrorNotFound
	}
	return nil
}
