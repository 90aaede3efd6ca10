// Package identity owns credential accounts: signup, password
// verification, and password rotation. Hashing is delegated to bcrypt;
// the rest of the service never sees a password hash.
package identity

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	e "github.com/avelar/orgadmin/internal/admin/errors"
	"github.com/avelar/orgadmin/internal/admin/models"
)

// Storer is the persistence surface the identity store needs. It is
// satisfied by *db.Repository, including transaction-bound ones.
type Storer interface {
	CreateUser(ctx context.Context, usr *models.User) error
	CreateAccount(ctx context.Context, acc *models.Account) error
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	GetAccountByUserID(ctx context.Context, userID uuid.UUID) (*models.Account, error)
	SetAccountPassword(ctx context.Context, userID uuid.UUID, hash []byte) error
}

// Store performs credential operations against a Storer.
type Store struct {
	storer Storer
}

func NewStore(storer Storer) *Store {
	return &Store{storer: storer}
}

// WithStorer returns a Store bound to a different storer, typically one
// scoped to an open transaction.
func (s *Store) WithStorer(storer Storer) *Store {
	return &Store{storer: storer}
}

// SignUp creates a user profile plus its credential account. The user
// starts as a MEMBER with no tenant assignment; promotion happens as a
// separate update, inside the same transaction when atomicity matters.
func (s *Store) SignUp(ctx context.Context, name, email, password string) (*models.User, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	now := time.Now()
	usr := &models.User{
		ID:        uuid.New(),
		Name:      name,
		Email:     email,
		Role:      models.RoleMember,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.storer.CreateUser(ctx, usr); err != nil {
		return nil, err
	}

	acc := &models.Account{
		ID:           uuid.New(),
		UserID:       usr.ID,
		PasswordHash: hash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.storer.CreateAccount(ctx, acc); err != nil {
		return nil, fmt.Errorf("create account: %w", err)
	}

	return usr, nil
}

// Authenticate verifies an email/password pair and returns the user on
// success. Unknown email and wrong password are indistinguishable to
// the caller.
func (s *Store) Authenticate(ctx context.Context, email, password string) (*models.User, error) {
	usr, err := s.storer.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, e.ErrNotFound) {
			return nil, e.ErrAuthenticationBad
		}
		return nil, err
	}

	acc, err := s.storer.GetAccountByUserID(ctx, usr.ID)
	if err != nil {
		if errors.Is(err, e.ErrNotFound) {
			return nil, e.ErrAuthenticationBad
		}
		return nil, err
	}

	if bcrypt.CompareHashAndPassword(acc.PasswordHash, []byte(password)) != nil {
		return nil, e.ErrAuthenticationBad
	}
	return usr, nil
}

// VerifyPassword checks a user's current password, used to re-authenticate
// before a self-service password change.
func (s *Store) VerifyPassword(ctx context.Context, userID uuid.UUID, password string) error {
	acc, err := s.storer.GetAccountByUserID(ctx, userID)
	if err != nil {
		if errors.Is(err, e.ErrNotFound) {
			return e.ErrWrongPassword
		}
		return err
	}
	if bcrypt.CompareHashAndPassword(acc.PasswordHash, []byte(password)) != nil {
		return e.ErrWrongPassword
	}
	return nil
}

// SetPassword hashes and stores a new password for the user.
func (s *Store) SetPassword(ctx context.Context, userID uuid.UUID, password string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	return s.storer.SetAccountPassword(ctx, userID, hash)
}
