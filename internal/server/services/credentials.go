package services

import (
	"context"
	"database/sql"
	"errors"

	"github.com/dmitrijs2005/accountkeeper/internal/common"
	"github.com/dmitrijs2005/accountkeeper/internal/server/auth"
	"github.com/dmitrijs2005/accountkeeper/internal/server/models"
	"github.com/dmitrijs2005/accountkeeper/internal/server/repositories/repomanager"
)

// CredentialService checks an email/password pair against the stored bcrypt
// hash. It never writes.
type CredentialService struct {
	base
	hasher *auth.PasswordHasher
}

func NewCredentialService(db *sql.DB, m repomanager.RepositoryManager, hasher *auth.PasswordHasher, opts ...Option) *CredentialService {
	return &CredentialService{
		base:   newBase(db, m, "credentials", opts...),
		hasher: hasher,
	}
}

// Authenticate returns the account owning email when password matches.
// Unknown emails and wrong passwords both yield common.ErrorUnauthorized and
// cost one bcrypt comparison each.
func (s *CredentialService) Authenticate(ctx context.Context, email, password string) (*models.Account, error) {
	repo := s.repomanager.Accounts(s.conn())

	account, err := repo.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			s.hasher.CompareDummy(password)
			return nil, common.ErrorUnauthorized
		}
		s.log.Error(ctx, "account lookup failed", "error", err)
		return nil, internal("lookup account", err)
	}

	if !s.hasher.Compare(account.PasswordHash, password) {
		return nil, common.ErrorUnauthorized
	}
	return account, nil
}
