package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"unicode"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/google/uuid"

	"github.com/dmitrijs2005/accountkeeper/internal/common"
	"github.com/dmitrijs2005/accountkeeper/internal/keylock"
	"github.com/dmitrijs2005/accountkeeper/internal/server/auth"
	"github.com/dmitrijs2005/accountkeeper/internal/server/models"
	"github.com/dmitrijs2005/accountkeeper/internal/server/notify"
	"github.com/dmitrijs2005/accountkeeper/internal/server/repositories/repomanager"
)

// Whitespace means ASCII space characters including \v, Unicode separators
// and the byte order mark. RE2's \s alone covers only the first part.
var (
	emailPattern    = regexp.MustCompile(`^[^\s\x0B\p{Z}\x{FEFF}@]+@[^\s\x0B\p{Z}\x{FEFF}@]+\.[^\s\x0B\p{Z}\x{FEFF}@]+$`)
	passwordPattern = regexp.MustCompile(`^[^\s\x0B\p{Z}\x{FEFF}]{5,}$`)
)

// Notifier hands a message to the background publisher.
type Notifier interface {
	Dispatch(msg notify.Message)
}

type CreateAccountInput struct {
	FirstName string
	LastName  string
	Email     string
	Password  string
}

func (in CreateAccountInput) Validate() error {
	return validation.ValidateStruct(&in,
		validation.Field(&in.FirstName, validation.Required, validation.By(notBlank)),
		validation.Field(&in.LastName, validation.Required, validation.By(notBlank)),
		validation.Field(&in.Email, validation.Required, validation.Match(emailPattern)),
		validation.Field(&in.Password, validation.Required, validation.Match(passwordPattern)),
	)
}

// UpdateAccountInput carries the fields present in an update request. A nil
// pointer means the field was absent. AccountCreated and AccountUpdated only
// record that the read-only timestamps were sent.
type UpdateAccountInput struct {
	FirstName *string
	LastName  *string
	Password  *string
	Email     *string

	AccountCreated bool
	AccountUpdated bool
}

func (in UpdateAccountInput) Validate() error {
	return validation.ValidateStruct(&in,
		validation.Field(&in.FirstName, validation.NilOrNotEmpty, validation.By(notBlank)),
		validation.Field(&in.LastName, validation.NilOrNotEmpty, validation.By(notBlank)),
		validation.Field(&in.Password, validation.NilOrNotEmpty, validation.Match(passwordPattern)),
	)
}

// notBlank rejects names that are empty once leading whitespace is removed.
func notBlank(value interface{}) error {
	v, isNil := validation.Indirect(value)
	if isNil {
		return nil
	}
	s, _ := v.(string)
	if strings.TrimLeftFunc(s, unicode.IsSpace) == "" {
		return errors.New("cannot be blank")
	}
	return nil
}

// AccountService creates and updates accounts.
type AccountService struct {
	base
	hasher   *auth.PasswordHasher
	issuer   *TokenIssuer
	notifier Notifier
	locks    *keylock.Locker
}

func NewAccountService(db *sql.DB, m repomanager.RepositoryManager, hasher *auth.PasswordHasher,
	issuer *TokenIssuer, notifier Notifier, locks *keylock.Locker, opts ...Option) *AccountService {
	return &AccountService{
		base:     newBase(db, m, "accounts", opts...),
		hasher:   hasher,
		issuer:   issuer,
		notifier: notifier,
		locks:    locks,
	}
}

// Create registers a new unverified account and schedules the verification
// notification. A taken email yields common.ErrorAlreadyExists.
func (s *AccountService) Create(ctx context.Context, in CreateAccountInput) (*models.Account, error) {
	if err := in.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrorValidation, err)
	}

	unlock := s.locks.Lock("email:" + in.Email)
	defer unlock()

	repo := s.repomanager.Accounts(s.conn())

	_, err := repo.GetByEmail(ctx, in.Email)
	switch {
	case err == nil:
		return nil, common.ErrorAlreadyExists
	case !errors.Is(err, common.ErrorNotFound):
		s.log.Error(ctx, "email lookup failed", "error", err)
		return nil, internal("lookup email", err)
	}

	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return nil, internal("hash password", err)
	}

	now := s.now()
	token, err := s.issuer.Issue(now)
	if err != nil {
		return nil, internal("issue token", err)
	}

	account := &models.Account{
		ID:             uuid.NewString(),
		FirstName:      in.FirstName,
		LastName:       in.LastName,
		Email:          in.Email,
		PasswordHash:   hash,
		AccountCreated: now,
		AccountUpdated: now,
	}
	token.Apply(account)

	if err := repo.Create(ctx, account); err != nil {
		if errors.Is(err, common.ErrorAlreadyExists) {
			return nil, err
		}
		s.log.Error(ctx, "account insert failed", "error", err)
		return nil, internal("create account", err)
	}

	s.notifier.Dispatch(notify.Message{
		FirstName:         account.FirstName,
		LastName:          account.LastName,
		Email:             account.Email,
		AccountCreated:    account.AccountCreated,
		VerificationToken: token.Value,
		VerificationURL:   s.issuer.Link(token.Value),
	})

	s.log.Info(ctx, "account created", "account_id", account.ID)
	return account, nil
}

// Update applies in to account and persists it. Nothing is written when the
// request is rejected.
func (s *AccountService) Update(ctx context.Context, account *models.Account, in UpdateAccountInput) error {
	if in.Email != nil && *in.Email != account.Email {
		return fmt.Errorf("%w: email cannot be changed", common.ErrorValidation)
	}
	if in.AccountCreated || in.AccountUpdated {
		return fmt.Errorf("%w: account timestamps are read-only", common.ErrorValidation)
	}
	if in.FirstName == nil && in.LastName == nil && in.Password == nil {
		return fmt.Errorf("%w: nothing to update", common.ErrorValidation)
	}
	if err := in.Validate(); err != nil {
		return fmt.Errorf("%w: %v", common.ErrorValidation, err)
	}

	updated := *account
	if in.FirstName != nil {
		updated.FirstName = *in.FirstName
	}
	if in.LastName != nil {
		updated.LastName = *in.LastName
	}
	if in.Password != nil {
		hash, err := s.hasher.Hash(*in.Password)
		if err != nil {
			return internal("hash password", err)
		}
		updated.PasswordHash = hash
	}
	updated.AccountUpdated = s.now()

	repo := s.repomanager.Accounts(s.conn())
	if err := repo.Update(ctx, &updated); err != nil {
		s.log.Error(ctx, "account update failed", "account_id", account.ID, "error", err)
		return internal("update account", err)
	}

	*account = updated
	s.log.Info(ctx, "account updated", "account_id", account.ID)
	return nil
}
