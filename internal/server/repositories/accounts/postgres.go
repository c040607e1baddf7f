package accounts

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/accountkeeper/internal/common"
	"github.com/dmitrijs2005/accountkeeper/internal/dbx"
	"github.com/dmitrijs2005/accountkeeper/internal/server/models"
)

// emailConstraint is the UNIQUE constraint guarding accounts.email.
const emailConstraint = "accounts_email_key"

const selectColumns = `id, first_name, last_name, email, password_hash, is_verified,
		 account_created, account_updated, verification_token, token_issued_at, token_expires_at`

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Create inserts a new account. A duplicate email is reported as
// common.ErrorAlreadyExists.
func (r *PostgresRepository) Create(ctx context.Context, a *models.Account) error {
	query :=
		`INSERT INTO accounts (id, first_name, last_name, email, password_hash, is_verified,
		 account_created, account_updated, verification_token, token_issued_at, token_expires_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		 `

	_, err := r.db.ExecContext(ctx, query,
		a.ID, a.FirstName, a.LastName, a.Email, a.PasswordHash, a.IsVerified,
		a.AccountCreated, a.AccountUpdated, a.VerificationToken, a.TokenIssuedAt, a.TokenExpiresAt)

	if err != nil {
		if dbx.IsUniqueViolation(err, emailConstraint) {
			return common.ErrorAlreadyExists
		}
		return fmt.Errorf("db error: %w", err)
	}

	return nil
}

func (r *PostgresRepository) GetByEmail(ctx context.Context, email string) (*models.Account, error) {
	query :=
		`SELECT ` + selectColumns + ` FROM accounts
		 WHERE email = $1
		 `
	return r.getOne(ctx, query, email)
}

// GetByVerificationToken locks the matching row for the rest of the
// surrounding transaction.
func (r *PostgresRepository) GetByVerificationToken(ctx context.Context, token string) (*models.Account, error) {
	query :=
		`SELECT ` + selectColumns + ` FROM accounts
		 WHERE verification_token = $1
		 FOR UPDATE
		 `
	return r.getOne(ctx, query, token)
}

// MarkVerified flips is_verified and clears the token state, but only while
// the given token is still attached to the account. Returns
// common.ErrorNotFound when the token has already been consumed.
func (r *PostgresRepository) MarkVerified(ctx context.Context, id, token string, at time.Time) error {
	query :=
		`UPDATE accounts
		 SET is_verified = TRUE, verification_token = NULL, token_issued_at = NULL,
		     token_expires_at = NULL, account_updated = $3
		 WHERE id = $1 AND verification_token = $2 AND is_verified = FALSE
		 `

	res, err := r.db.ExecContext(ctx, query, id, token, at)
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

// Update persists the mutable profile fields.
func (r *PostgresRepository) Update(ctx context.Context, a *models.Account) error {
	query :=
		`UPDATE accounts
		 SET first_name = $2, last_name = $3, password_hash = $4, account_updated = $5
		 WHERE id = $1
		 `

	res, err := r.db.ExecContext(ctx, query, a.ID, a.FirstName, a.LastName, a.PasswordHash, a.AccountUpdated)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected error: %w", err)
	}
	if n != 1 {
		return common.ErrorNotFound
	}
	return nil
}

func (r *PostgresRepository) getOne(ctx context.Context, query string, arg any) (*models.Account, error) {
	a := &models.Account{}
	err := r.db.QueryRowContext(ctx, query, arg).Scan(
		&a.ID, &a.FirstName, &a.LastName, &a.Email, &a.PasswordHash, &a.IsVerified,
		&a.AccountCreated, &a.AccountUpdated, &a.VerificationToken, &a.TokenIssuedAt, &a.TokenExpiresAt)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	return a, nil
}
