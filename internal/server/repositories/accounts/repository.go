package accounts

import (
	"context"
	"time"

	"github.com/dmitrijs2005/accountkeeper/internal/server/models"
)

type Repository interface {
	Create(ctx context.Context, account *models.Account) error
	GetByEmail(ctx context.Context, email string) (*models.Account, error)
	GetByVerificationToken(ctx context.Context, token string) (*models.Account, error)
	MarkVerified(ctx context.Context, id, token string, at time.Time) error
	Update(ctx context.Context, account *models.Account) error
}
