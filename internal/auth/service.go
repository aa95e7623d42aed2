package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/filedrop/service/internal/config"
	"github.com/filedrop/service/internal/db"
)

// bcryptCost is the fixed work factor for password hashing. bcrypt generates
// a random per-password salt internally.
const bcryptCost = bcrypt.DefaultCost

const tokenTTL = 30 * 24 * time.Hour

// ErrEmailTaken is returned when the email is already registered.
var ErrEmailTaken = errors.New("email already registered")

// ErrInvalidCredentials is returned on any failed signin. Unknown email and
// wrong password are deliberately indistinguishable to prevent account
// enumeration.
var ErrInvalidCredentials = errors.New("invalid email or password")

// AccountStore is the account persistence the service depends on.
type AccountStore interface {
	Create(ctx context.Context, email, passwordHash string) (db.SavedStatus, *Account)
	FindByEmail(ctx context.Context, email string) (*Account, error)
	FindByID(ctx context.Context, id string) (*Account, error)
	Remove(ctx context.Context, id string) error
}

// ObjectCleaner purges an account's objects from the object store.
type ObjectCleaner interface {
	DeletePrefix(ctx context.Context, prefix string) error
}

// Service contains the business logic for account management.
type Service struct {
	repo    AccountStore
	storage ObjectCleaner
	cfg     *config.Config
}

// NewService creates a new auth Service.
func NewService(repo AccountStore, storage ObjectCleaner, cfg *config.Config) *Service {
	return &Service{repo: repo, storage: storage, cfg: cfg}
}

// Signup registers a new account and returns an access token for it.
func (s *Service) Signup(ctx context.Context, email, password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcryptCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}

	status, account := s.repo.Create(ctx, email, string(hash))
	switch status {
	case db.SavedConflict:
		return "", ErrEmailTaken
	case db.SavedError:
		return "", errors.New("create account failed")
	}

	token, err := s.issueToken(account.ID)
	if err != nil {
		return "", fmt.Errorf("issue token: %w", err)
	}
	return token, nil
}

// Signin verifies the credentials and returns an access token. Every failure
// mode yields ErrInvalidCredentials.
func (s *Service) Signin(ctx context.Context, email, password string) (string, error) {
	account, err := s.repo.FindByEmail(ctx, email)
	if err != nil {
		return "", ErrInvalidCredentials
	}

	if bcrypt.CompareHashAndPassword([]byte(account.PasswordHash), []byte(password)) != nil {
		return "", ErrInvalidCredentials
	}

	token, err := s.issueToken(account.ID)
	if err != nil {
		return "", fmt.Errorf("issue token: %w", err)
	}
	return token, nil
}

// GetAccount returns the account for the given id.
func (s *Service) GetAccount(ctx context.Context, id string) (*Account, error) {
	return s.repo.FindByID(ctx, id)
}

// DeleteAccount purges all of the account's stored objects, then removes the
// account row (upload metadata cascades). The object-store cleanup runs
// first: the account id is needed to construct the prefix, so the row must
// still exist if the cleanup fails.
func (s *Service) DeleteAccount(ctx context.Context, accountID string) error {
	if err := s.storage.DeletePrefix(ctx, accountID+"/"); err != nil {
		return fmt.Errorf("purge account objects: %w", err)
	}
	if err := s.repo.Remove(ctx, accountID); err != nil {
		return fmt.Errorf("remove account: %w", err)
	}
	return nil
}

// issueToken creates a signed JWT whose subject is the account id.
func (s *Service) issueToken(accountID string) (string, error) {
	claims := jwt.MapClaims{
		"sub": accountID,
		"iat": time.Now().Unix(),
		"exp": time.Now().Add(tokenTTL).Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(s.cfg.JWTSecret))
}
