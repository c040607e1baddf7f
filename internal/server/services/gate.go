package services

import (
	"context"

	"github.com/dmitrijs2005/accountkeeper/internal/common"
	"github.com/dmitrijs2005/accountkeeper/internal/server/models"
)

// Authenticator resolves credentials to an account.
type Authenticator interface {
	Authenticate(ctx context.Context, email, password string) (*models.Account, error)
}

// AccessGate admits a caller in two ordered stages: credentials first, then,
// where the operation asks for it, the verified flag.
type AccessGate struct {
	creds Authenticator
}

func NewAccessGate(creds Authenticator) *AccessGate {
	return &AccessGate{creds: creds}
}

// Admit returns common.ErrorUnauthorized when the credentials do not match
// and common.ErrorForbidden when requireVerified is set and the account has
// not confirmed its email yet.
func (g *AccessGate) Admit(ctx context.Context, email, password string, requireVerified bool) (*models.Account, error) {
	account, err := g.creds.Authenticate(ctx, email, password)
	if err != nil {
		return nil, err
	}
	if requireVerified && !account.IsVerified {
		return nil, common.ErrorForbidden
	}
	return account, nil
}
