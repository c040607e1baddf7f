package services

import (
	"context"
	"database/sql"
	"errors"
	"net/url"
	"strings"
	"time"

	"github.com/dmitrijs2005/accountkeeper/internal/common"
	"github.com/dmitrijs2005/accountkeeper/internal/dbx"
	"github.com/dmitrijs2005/accountkeeper/internal/server/models"
	"github.com/dmitrijs2005/accountkeeper/internal/server/repositories/repomanager"
)

// verificationTokenBytes is the entropy of a token before hex encoding.
const verificationTokenBytes = 32

// VerificationToken is a freshly issued, not yet persisted token.
type VerificationToken struct {
	Value     string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// TokenIssuer mints verification tokens and the links that carry them.
type TokenIssuer struct {
	ttl     time.Duration
	baseURL string
}

// NewTokenIssuer accepts either a full base URL or a bare host such as
// "accounts.example.com", which is served over http.
func NewTokenIssuer(ttl time.Duration, baseURL string) *TokenIssuer {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL != "" && !strings.Contains(baseURL, "://") {
		baseURL = "http://" + baseURL
	}
	return &TokenIssuer{ttl: ttl, baseURL: baseURL}
}

func (i *TokenIssuer) Issue(now time.Time) (VerificationToken, error) {
	value, err := common.MakeRandHexString(verificationTokenBytes)
	if err != nil {
		return VerificationToken{}, err
	}
	return VerificationToken{Value: value, IssuedAt: now, ExpiresAt: now.Add(i.ttl)}, nil
}

// Link returns the URL a user follows to verify their email.
func (i *TokenIssuer) Link(token string) string {
	return i.baseURL + "/v1/verify?token=" + url.QueryEscape(token)
}

// Apply stores the token state on an unverified account.
func (t VerificationToken) Apply(a *models.Account) {
	value, issued, expires := t.Value, t.IssuedAt, t.ExpiresAt
	a.VerificationToken = &value
	a.TokenIssuedAt = &issued
	a.TokenExpiresAt = &expires
}

// VerificationService consumes verification tokens.
type VerificationService struct {
	base
}

func NewVerificationService(db *sql.DB, m repomanager.RepositoryManager, opts ...Option) *VerificationService {
	return &VerificationService{base: newBase(db, m, "verification", opts...)}
}

// Verify marks the account holding token as verified and clears the token.
// Consumed, unknown and expired tokens fail; an expired token leaves the
// account untouched. Of two concurrent calls with the same token exactly one
// succeeds, the other gets common.ErrInvalidToken.
func (s *VerificationService) Verify(ctx context.Context, token string) (*models.Account, error) {
	if token == "" {
		return nil, common.ErrTokenMissing
	}

	var account *models.Account
	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		repo := s.repomanager.Accounts(s.observe(tx))

		a, err := repo.GetByVerificationToken(ctx, token)
		if err != nil {
			if errors.Is(err, common.ErrorNotFound) {
				return common.ErrInvalidToken
			}
			return internal("lookup token", err)
		}

		now := s.now()
		if a.TokenExpiresAt == nil || now.After(*a.TokenExpiresAt) {
			return common.ErrTokenExpired
		}

		if err := repo.MarkVerified(ctx, a.ID, token, now); err != nil {
			if errors.Is(err, common.ErrorNotFound) {
				return common.ErrInvalidToken
			}
			return internal("mark verified", err)
		}

		a.IsVerified = true
		a.VerificationToken = nil
		a.TokenIssuedAt = nil
		a.TokenExpiresAt = nil
		a.AccountUpdated = now
		account = a
		return nil
	})
	if err != nil {
		if errors.Is(err, common.ErrorInternal) {
			s.log.Error(ctx, "verification failed", "error", err)
		}
		return nil, err
	}

	s.log.Info(ctx, "account verified", "account_id", account.ID)
	return account, nil
}
