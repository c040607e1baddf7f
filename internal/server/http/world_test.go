package httpx

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"sync"
	"testing"
	"time"

	"github.com/dmitrijs2005/accountkeeper/internal/common"
	"github.com/dmitrijs2005/accountkeeper/internal/server/models"
	"github.com/dmitrijs2005/accountkeeper/internal/server/services"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

// world is an in-memory stand-in for the service layer.
type world struct {
	mu        sync.Mutex
	accounts  map[string]*models.Account
	passwords map[string]string
	tokens    map[string]string
	pictures  map[string]*models.Attachment
	uploads   map[string][]byte

	pingErr  error
	gateErr  error
	storeErr error
	admits   int
	nextID   int
}

func newWorld() *world {
	return &world{
		accounts:  map[string]*models.Account{},
		passwords: map[string]string{},
		tokens:    map[string]string{},
		pictures:  map[string]*models.Attachment{},
		uploads:   map[string][]byte{},
	}
}

func (w *world) seed(email, password string, verified bool) *models.Account {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.nextID++
	a := &models.Account{
		ID: fmt.Sprintf("a-%d", w.nextID), FirstName: "John", LastName: "Doe", Email: email,
		IsVerified: verified, AccountCreated: testNow, AccountUpdated: testNow,
	}
	w.accounts[email] = a
	w.passwords[email] = password
	return a
}

func (w *world) Admit(ctx context.Context, email, password string, requireVerified bool) (*models.Account, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.admits++
	if w.gateErr != nil {
		return nil, w.gateErr
	}
	a, ok := w.accounts[email]
	if !ok || w.passwords[email] != password {
		return nil, common.ErrorUnauthorized
	}
	if requireVerified && !a.IsVerified {
		return nil, common.ErrorForbidden
	}
	c := *a
	return &c, nil
}

func (w *world) Create(ctx context.Context, in services.CreateAccountInput) (*models.Account, error) {
	if in.FirstName == "" || in.LastName == "" || in.Email == "" || in.Password == "" {
		return nil, fmt.Errorf("%w: missing field", common.ErrorValidation)
	}
	w.mu.Lock()
	_, taken := w.accounts[in.Email]
	w.mu.Unlock()
	if taken {
		return nil, common.ErrorAlreadyExists
	}
	a := w.seed(in.Email, in.Password, false)
	a.FirstName, a.LastName = in.FirstName, in.LastName

	w.mu.Lock()
	w.tokens["token-"+a.ID] = in.Email
	w.mu.Unlock()
	c := *a
	return &c, nil
}

func (w *world) Update(ctx context.Context, account *models.Account, in services.UpdateAccountInput) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if in.Email != nil && *in.Email != account.Email || in.AccountCreated || in.AccountUpdated {
		return common.ErrorValidation
	}
	if in.FirstName == nil && in.LastName == nil && in.Password == nil {
		return common.ErrorValidation
	}
	a := w.accounts[account.Email]
	if in.FirstName != nil {
		a.FirstName = *in.FirstName
	}
	if in.LastName != nil {
		a.LastName = *in.LastName
	}
	if in.Password != nil {
		w.passwords[account.Email] = *in.Password
	}
	a.AccountUpdated = testNow.Add(time.Minute)
	return nil
}

func (w *world) Verify(ctx context.Context, token string) (*models.Account, error) {
	if token == "" {
		return nil, common.ErrTokenMissing
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	email, ok := w.tokens[token]
	if !ok {
		return nil, common.ErrInvalidToken
	}
	delete(w.tokens, token)
	a := w.accounts[email]
	a.IsVerified = true
	c := *a
	return &c, nil
}

func (w *world) Upload(ctx context.Context, account *models.Account, in services.UploadInput) (*models.Attachment, error) {
	if in.ContentType != "image/png" && in.ContentType != "image/jpeg" && in.ContentType != "image/jpg" {
		return nil, common.ErrorValidation
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.storeErr != nil {
		return nil, w.storeErr
	}
	if _, ok := w.pictures[account.ID]; ok {
		return nil, common.ErrorAlreadyExists
	}
	body, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	key := account.ID + ".png"
	w.uploads[key] = body
	a := &models.Attachment{
		ID: "p-" + account.ID, FileName: in.FileName, URL: "profile-pictures/" + key, StorageKey: key,
		UploadDate: time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), AccountID: account.ID,
	}
	w.pictures[account.ID] = a
	return a, nil
}

func (w *world) Get(ctx context.Context, account *models.Account) (*models.Attachment, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	a, ok := w.pictures[account.ID]
	if !ok {
		return nil, common.ErrorNotFound
	}
	return a, nil
}

func (w *world) Delete(ctx context.Context, account *models.Account) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.storeErr != nil {
		return w.storeErr
	}
	a, ok := w.pictures[account.ID]
	if !ok {
		return common.ErrorNotFound
	}
	delete(w.uploads, a.StorageKey)
	delete(w.pictures, account.ID)
	return nil
}

func (w *world) ping(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.pingErr
}

func newTestRouter(w *world) *Router {
	return NewRouter(Deps{
		Gate:          w,
		Accounts:      w,
		Verifier:      w,
		Pictures:      w,
		DBHealth:      w.ping,
		MaxUploadSize: 1024,
	})
}

func serve(r http.Handler, req *http.Request) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)
	return rr
}

func jsonRequest(t *testing.T, method, target string, body any) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	switch b := body.(type) {
	case string:
		buf.WriteString(b)
	default:
		require.NoError(t, json.NewEncoder(&buf).Encode(b))
	}
	req := httptest.NewRequest(method, target, &buf)
	req.Header.Set("Content-Type", "application/json")
	return req
}

func withAuth(req *http.Request, email, password string) *http.Request {
	req.SetBasicAuth(email, password)
	return req
}

func multipartRequest(t *testing.T, target, field, fileName, contentType string, data []byte) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if field != "" {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q; filename=%q`, field, fileName))
		h.Set("Content-Type", contentType)
		part, err := mw.CreatePart(h)
		require.NoError(t, err)
		_, err = part.Write(data)
		require.NoError(t, err)
	} else {
		require.NoError(t, mw.WriteField("other", "value"))
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, target, &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func decodeBody(t *testing.T, rr *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &out))
	return out
}
