package services

import (
	"context"
	"database/sql"
	"encoding/hex"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dmitrijs2005/accountkeeper/internal/common"
	"github.com/dmitrijs2005/accountkeeper/internal/server/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenIssuer_Issue(t *testing.T) {
	i := NewTokenIssuer(2*time.Minute, "http://localhost:8080")

	a, err := i.Issue(fixedNow)
	require.NoError(t, err)
	b, err := i.Issue(fixedNow)
	require.NoError(t, err)

	assert.Len(t, a.Value, 64)
	_, err = hex.DecodeString(a.Value)
	assert.NoError(t, err)
	assert.NotEqual(t, a.Value, b.Value)
	assert.Equal(t, fixedNow, a.IssuedAt)
	assert.Equal(t, fixedNow.Add(2*time.Minute), a.ExpiresAt)
}

func TestTokenIssuer_Link(t *testing.T) {
	tests := []struct {
		name    string
		baseURL string
		token   string
		want    string
	}{
		{"trailing slash", "https://example.com/", "abc", "https://example.com/v1/verify?token=abc"},
		{"escaped token", "https://example.com", "a&b", "https://example.com/v1/verify?token=a%26b"},
		{"bare host", "demo.example.com", "abc", "http://demo.example.com/v1/verify?token=abc"},
		{"bare host with port", "localhost:8080/", "abc", "http://localhost:8080/v1/verify?token=abc"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NewTokenIssuer(time.Minute, tt.baseURL).Link(tt.token))
		})
	}
}

func pendingAccount(token string, expires time.Time) *models.Account {
	issued := expires.Add(-2 * time.Minute)
	return &models.Account{
		ID: "a-1", Email: "john@example.com",
		AccountCreated: issued, AccountUpdated: issued,
		VerificationToken: &token, TokenIssuedAt: &issued, TokenExpiresAt: &expires,
	}
}

func newVerificationService(t *testing.T, now time.Time) (*VerificationService, *fakeAccountsRepo, *sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock := newSQLMockDB(t)
	repo := newFakeAccounts()
	s := NewVerificationService(db, &fakeRepoManager{accounts: repo}, WithClock(clock(now)))
	return s, repo, db, mock
}

func TestVerify_Success(t *testing.T) {
	s, repo, _, mock := newVerificationService(t, fixedNow)
	repo.put(pendingAccount("tok", fixedNow.Add(time.Minute)))

	mock.ExpectBegin()
	mock.ExpectCommit()

	a, err := s.Verify(context.Background(), "tok")
	require.NoError(t, err)
	assert.True(t, a.IsVerified)
	assert.Nil(t, a.VerificationToken)
	assert.Nil(t, a.TokenExpiresAt)
	assert.Equal(t, fixedNow, a.AccountUpdated)

	stored := repo.get("john@example.com")
	assert.True(t, stored.IsVerified)
	assert.Nil(t, stored.VerificationToken)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestVerify_AtExactExpiryStillValid(t *testing.T) {
	s, repo, _, mock := newVerificationService(t, fixedNow)
	repo.put(pendingAccount("tok", fixedNow))

	mock.ExpectBegin()
	mock.ExpectCommit()

	_, err := s.Verify(context.Background(), "tok")
	require.NoError(t, err)
}

func TestVerify_MissingToken(t *testing.T) {
	s, _, _, mock := newVerificationService(t, fixedNow)

	_, err := s.Verify(context.Background(), "")
	assert.ErrorIs(t, err, common.ErrTokenMissing)
	assert.NoError(t, mock.ExpectationsWereMet(), "no transaction for an empty token")
}

func TestVerify_UnknownToken(t *testing.T) {
	s, _, _, mock := newVerificationService(t, fixedNow)

	mock.ExpectBegin()
	mock.ExpectRollback()

	_, err := s.Verify(context.Background(), "nope")
	assert.ErrorIs(t, err, common.ErrInvalidToken)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestVerify_Expired(t *testing.T) {
	s, repo, _, mock := newVerificationService(t, fixedNow)
	repo.put(pendingAccount("tok", fixedNow.Add(-time.Second)))

	mock.ExpectBegin()
	mock.ExpectRollback()

	_, err := s.Verify(context.Background(), "tok")
	assert.ErrorIs(t, err, common.ErrTokenExpired)

	stored := repo.get("john@example.com")
	assert.False(t, stored.IsVerified)
	require.NotNil(t, stored.VerificationToken, "expired token is left in place")
	assert.Equal(t, "tok", *stored.VerificationToken)
}

func TestVerify_NoExpiryRecorded(t *testing.T) {
	s, repo, _, mock := newVerificationService(t, fixedNow)
	a := pendingAccount("tok", fixedNow.Add(time.Minute))
	a.TokenExpiresAt = nil
	repo.put(a)

	mock.ExpectBegin()
	mock.ExpectRollback()

	_, err := s.Verify(context.Background(), "tok")
	assert.ErrorIs(t, err, common.ErrTokenExpired)
}

func TestVerify_TokenIsSingleUse(t *testing.T) {
	s, repo, _, mock := newVerificationService(t, fixedNow)
	repo.put(pendingAccount("tok", fixedNow.Add(time.Minute)))

	mock.ExpectBegin()
	mock.ExpectCommit()
	mock.ExpectBegin()
	mock.ExpectRollback()

	_, err := s.Verify(context.Background(), "tok")
	require.NoError(t, err)

	_, err = s.Verify(context.Background(), "tok")
	assert.ErrorIs(t, err, common.ErrInvalidToken)
}

func TestVerify_LostRace(t *testing.T) {
	s, repo, _, mock := newVerificationService(t, fixedNow)
	repo.put(pendingAccount("tok", fixedNow.Add(time.Minute)))
	repo.markErr = common.ErrorNotFound

	mock.ExpectBegin()
	mock.ExpectRollback()

	_, err := s.Verify(context.Background(), "tok")
	assert.ErrorIs(t, err, common.ErrInvalidToken)
}

func TestVerify_StoreErrors(t *testing.T) {
	s, repo, _, mock := newVerificationService(t, fixedNow)
	repo.getErr = errDB

	mock.ExpectBegin()
	mock.ExpectRollback()

	_, err := s.Verify(context.Background(), "tok")
	assert.ErrorIs(t, err, common.ErrorInternal)

	s, repo, _, mock = newVerificationService(t, fixedNow)
	repo.put(pendingAccount("tok", fixedNow.Add(time.Minute)))
	repo.markErr = errDB

	mock.ExpectBegin()
	mock.ExpectRollback()

	_, err = s.Verify(context.Background(), "tok")
	assert.ErrorIs(t, err, common.ErrorInternal)
}

func TestVerify_BeginFails(t *testing.T) {
	s, repo, _, mock := newVerificationService(t, fixedNow)
	repo.put(pendingAccount("tok", fixedNow.Add(time.Minute)))

	mock.ExpectBegin().WillReturnError(errors.New("pool exhausted"))

	_, err := s.Verify(context.Background(), "tok")
	require.Error(t, err)
	assert.False(t, repo.get("john@example.com").IsVerified)
}
