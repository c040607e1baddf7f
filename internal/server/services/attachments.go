package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrijs2005/accountkeeper/internal/common"
	"github.com/dmitrijs2005/accountkeeper/internal/keylock"
	"github.com/dmitrijs2005/accountkeeper/internal/server/blobstore"
	"github.com/dmitrijs2005/accountkeeper/internal/server/models"
	"github.com/dmitrijs2005/accountkeeper/internal/server/repositories/repomanager"
)

var allowedPictureTypes = map[string]struct{}{
	"image/jpeg": {},
	"image/jpg":  {},
	"image/png":  {},
}

// UploadInput is one received picture. Size is -1 when unknown.
type UploadInput struct {
	FileName    string
	ContentType string
	Size        int64
	Body        io.Reader
}

// AttachmentService manages the single profile picture of an account:
// bytes in object storage, metadata in the database.
type AttachmentService struct {
	base
	store   blobstore.Store
	locks   *keylock.Locker
	maxSize int64
}

func NewAttachmentService(db *sql.DB, m repomanager.RepositoryManager, store blobstore.Store,
	locks *keylock.Locker, maxSize int64, opts ...Option) *AttachmentService {
	return &AttachmentService{
		base:    newBase(db, m, "attachments", opts...),
		store:   store,
		locks:   locks,
		maxSize: maxSize,
	}
}

// Upload stores the picture and records it. An account that already has a
// picture gets common.ErrorAlreadyExists. The blob is written before the row;
// when the row cannot be written the blob is left behind and logged.
func (s *AttachmentService) Upload(ctx context.Context, account *models.Account, in UploadInput) (*models.Attachment, error) {
	if in.Body == nil || in.FileName == "" {
		return nil, fmt.Errorf("%w: profile picture is required", common.ErrorValidation)
	}
	if _, ok := allowedPictureTypes[strings.ToLower(in.ContentType)]; !ok {
		return nil, fmt.Errorf("%w: unsupported content type %q", common.ErrorValidation, in.ContentType)
	}
	if s.maxSize > 0 && in.Size > s.maxSize {
		return nil, fmt.Errorf("%w: picture exceeds %d bytes", common.ErrorValidation, s.maxSize)
	}

	unlock := s.locks.Lock("attachment:" + account.ID)
	defer unlock()

	repo := s.repomanager.Attachments(s.conn())

	_, err := repo.GetByAccountID(ctx, account.ID)
	switch {
	case err == nil:
		return nil, common.ErrorAlreadyExists
	case !errors.Is(err, common.ErrorNotFound):
		s.log.Error(ctx, "attachment lookup failed", "account_id", account.ID, "error", err)
		return nil, internal("lookup attachment", err)
	}

	key := account.ID + strings.ToLower(filepath.Ext(in.FileName))
	if err := s.store.Put(ctx, key, in.ContentType, in.Body, in.Size); err != nil {
		s.log.Error(ctx, "picture upload failed", "account_id", account.ID, "key", key, "error", err)
		return nil, internal("store picture", err)
	}

	now := s.now().UTC()
	attachment := &models.Attachment{
		ID:         uuid.NewString(),
		FileName:   in.FileName,
		URL:        s.store.Locator(key),
		StorageKey: key,
		UploadDate: time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC),
		AccountID:  account.ID,
	}

	if err := repo.Create(ctx, attachment); err != nil {
		s.log.Error(ctx, "attachment insert failed, blob orphaned",
			"account_id", account.ID, "key", key, "error", err)
		return nil, internal("record attachment", err)
	}

	s.log.Info(ctx, "picture uploaded", "account_id", account.ID, "attachment_id", attachment.ID)
	return attachment, nil
}

// Get returns the account's picture or common.ErrorNotFound.
func (s *AttachmentService) Get(ctx context.Context, account *models.Account) (*models.Attachment, error) {
	attachment, err := s.repomanager.Attachments(s.conn()).GetByAccountID(ctx, account.ID)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, err
		}
		s.log.Error(ctx, "attachment lookup failed", "account_id", account.ID, "error", err)
		return nil, internal("lookup attachment", err)
	}
	return attachment, nil
}

// Delete removes the blob and then the row. Without a picture it returns
// common.ErrorNotFound and touches nothing.
func (s *AttachmentService) Delete(ctx context.Context, account *models.Account) error {
	unlock := s.locks.Lock("attachment:" + account.ID)
	defer unlock()

	repo := s.repomanager.Attachments(s.conn())

	attachment, err := repo.GetByAccountID(ctx, account.ID)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return err
		}
		s.log.Error(ctx, "attachment lookup failed", "account_id", account.ID, "error", err)
		return internal("lookup attachment", err)
	}

	if err := s.store.Delete(ctx, attachment.StorageKey); err != nil {
		s.log.Error(ctx, "picture delete failed", "account_id", account.ID, "key", attachment.StorageKey, "error", err)
		return internal("delete picture", err)
	}

	if err := repo.Delete(ctx, attachment.ID); err != nil {
		s.log.Error(ctx, "attachment row delete failed", "account_id", account.ID, "error", err)
		return internal("delete attachment", err)
	}

	s.log.Info(ctx, "picture deleted", "account_id", account.ID)
	return nil
}
