package services

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dmitrijs2005/accountkeeper/internal/common"
	"github.com/dmitrijs2005/accountkeeper/internal/dbx"
	"github.com/dmitrijs2005/accountkeeper/internal/server/auth"
	"github.com/dmitrijs2005/accountkeeper/internal/server/models"
	"github.com/dmitrijs2005/accountkeeper/internal/server/notify"
	"github.com/dmitrijs2005/accountkeeper/internal/server/repositories/accounts"
	"github.com/dmitrijs2005/accountkeeper/internal/server/repositories/attachments"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

var fixedNow = time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

func clock(t time.Time) func() time.Time { return func() time.Time { return t } }

func newSQLMockDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db, mock
}

func newHasher(t *testing.T) *auth.PasswordHasher {
	t.Helper()
	h, err := auth.NewPasswordHasher(bcrypt.MinCost)
	require.NoError(t, err)
	return h
}

// --- accounts ---

type fakeAccountsRepo struct {
	mu       sync.Mutex
	byEmail  map[string]*models.Account
	creates  int
	updates  int
	getErr   error
	createFn func(a *models.Account) error
	updateFn func(a *models.Account) error
	markErr  error
}

func newFakeAccounts() *fakeAccountsRepo {
	return &fakeAccountsRepo{byEmail: map[string]*models.Account{}}
}

func (f *fakeAccountsRepo) put(a *models.Account) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c := *a
	f.byEmail[a.Email] = &c
}

func (f *fakeAccountsRepo) get(email string) *models.Account {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.byEmail[email]
	if !ok {
		return nil
	}
	c := *a
	return &c
}

func (f *fakeAccountsRepo) Create(ctx context.Context, a *models.Account) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.creates++
	if f.createFn != nil {
		if err := f.createFn(a); err != nil {
			return err
		}
	}
	if _, ok := f.byEmail[a.Email]; ok {
		return common.ErrorAlreadyExists
	}
	c := *a
	f.byEmail[a.Email] = &c
	return nil
}

func (f *fakeAccountsRepo) GetByEmail(ctx context.Context, email string) (*models.Account, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return nil, f.getErr
	}
	a, ok := f.byEmail[email]
	if !ok {
		return nil, common.ErrorNotFound
	}
	c := *a
	return &c, nil
}

func (f *fakeAccountsRepo) GetByVerificationToken(ctx context.Context, token string) (*models.Account, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return nil, f.getErr
	}
	for _, a := range f.byEmail {
		if a.VerificationToken != nil && *a.VerificationToken == token {
			c := *a
			return &c, nil
		}
	}
	return nil, common.ErrorNotFound
}

func (f *fakeAccountsRepo) MarkVerified(ctx context.Context, id, token string, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.markErr != nil {
		return f.markErr
	}
	for _, a := range f.byEmail {
		if a.ID == id && !a.IsVerified && a.VerificationToken != nil && *a.VerificationToken == token {
			a.IsVerified = true
			a.VerificationToken, a.TokenIssuedAt, a.TokenExpiresAt = nil, nil, nil
			a.AccountUpdated = at
			return nil
		}
	}
	return common.ErrorNotFound
}

func (f *fakeAccountsRepo) Update(ctx context.Context, a *models.Account) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updates++
	if f.updateFn != nil {
		if err := f.updateFn(a); err != nil {
			return err
		}
	}
	cur, ok := f.byEmail[a.Email]
	if !ok || cur.ID != a.ID {
		return common.ErrorNotFound
	}
	cur.FirstName, cur.LastName, cur.PasswordHash, cur.AccountUpdated = a.FirstName, a.LastName, a.PasswordHash, a.AccountUpdated
	return nil
}

// --- attachments ---

type fakeAttachmentsRepo struct {
	mu        sync.Mutex
	rows      map[string]*models.Attachment
	getErr    error
	createErr error
	deleteErr error
}

func newFakeAttachments() *fakeAttachmentsRepo {
	return &fakeAttachmentsRepo{rows: map[string]*models.Attachment{}}
}

func (f *fakeAttachmentsRepo) Create(ctx context.Context, a *models.Attachment) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return f.createErr
	}
	c := *a
	f.rows[a.ID] = &c
	return nil
}

func (f *fakeAttachmentsRepo) GetByAccountID(ctx context.Context, accountID string) (*models.Attachment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return nil, f.getErr
	}
	for _, a := range f.rows {
		if a.AccountID == accountID {
			c := *a
			return &c, nil
		}
	}
	return nil, common.ErrorNotFound
}

func (f *fakeAttachmentsRepo) Delete(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.deleteErr != nil {
		return f.deleteErr
	}
	if _, ok := f.rows[id]; !ok {
		return common.ErrorNotFound
	}
	delete(f.rows, id)
	return nil
}

func (f *fakeAttachmentsRepo) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.rows)
}

type fakeRepoManager struct {
	accounts    *fakeAccountsRepo
	attachments *fakeAttachmentsRepo
}

func (m *fakeRepoManager) RunMigrations(context.Context, *sql.DB) error   { return nil }
func (m *fakeRepoManager) Accounts(db dbx.DBTX) accounts.Repository       { return m.accounts }
func (m *fakeRepoManager) Attachments(db dbx.DBTX) attachments.Repository { return m.attachments }

// --- object storage ---

type fakeStore struct {
	mu        sync.Mutex
	objects   map[string][]byte
	types     map[string]string
	puts      int
	deletes   int
	putErr    error
	deleteErr error
}

func newFakeStore() *fakeStore {
	return &fakeStore{objects: map[string][]byte{}, types: map[string]string{}}
}

func (s *fakeStore) Put(ctx context.Context, key, contentType string, body io.Reader, size int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.puts++
	if s.putErr != nil {
		return s.putErr
	}
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, body); err != nil {
		return err
	}
	s.objects[key] = buf.Bytes()
	s.types[key] = contentType
	return nil
}

func (s *fakeStore) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deletes++
	if s.deleteErr != nil {
		return s.deleteErr
	}
	delete(s.objects, key)
	return nil
}

func (s *fakeStore) Locator(key string) string { return "profile-pictures/" + key }

func (s *fakeStore) has(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.objects[key]
	return ok
}

// --- notifications ---

type fakeNotifier struct {
	mu   sync.Mutex
	sent []notify.Message
}

func (n *fakeNotifier) Dispatch(msg notify.Message) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, msg)
}

func (n *fakeNotifier) messages() []notify.Message {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]notify.Message(nil), n.sent...)
}

var errDB = errors.New("connection refused")
