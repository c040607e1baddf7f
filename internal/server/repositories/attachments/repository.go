package attachments

import (
	"context"

	"github.com/dmitrijs2005/accountkeeper/internal/server/models"
)

type Repository interface {
	Create(ctx context.Context, attachment *models.Attachment) error
	GetByAccountID(ctx context.Context, accountID string) (*models.Attachment, error)
	Delete(ctx context.Context, id string) error
}
