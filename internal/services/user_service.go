package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/isdelr/feedhub/internal/apperr"
	"github.com/isdelr/feedhub/internal/auth"
	"github.com/isdelr/feedhub/internal/models"
	"github.com/isdelr/feedhub/internal/store"
	"github.com/isdelr/feedhub/internal/validation"
	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/bcrypt"
)

// PasswordCost is the bcrypt cost factor for stored passwords.
const PasswordCost = 12

var errUserExists = apperr.Duplicate("User exists already!")

// UserServiceProvider defines the interface for user services.
type UserServiceProvider interface {
	Signup(ctx context.Context, in models.SignupInput) (models.User, error)
	Login(ctx context.Context, email, password string) (models.AuthData, error)
	GetUser(ctx context.Context, id auth.Identity) (models.User, error)
	UpdateStatus(ctx context.Context, id auth.Identity, status string) (models.User, error)
}

// UserService provides business logic for accounts and login.
type UserService struct {
	users  store.UserStoreProvider
	tokens *auth.TokenService
	cost   int
}

// NewUserService creates a new UserService.
func NewUserService(users store.UserStoreProvider, tokens *auth.TokenService) *UserService {
	return &UserService{
		users:  users,
		tokens: tokens,
		cost:   PasswordCost,
	}
}

// Signup creates a new account, hashing its password. The returned user has no hash.
func (s *UserService) Signup(ctx context.Context, in models.SignupInput) (models.User, error) {
	if errs := validation.Signup(in); len(errs) > 0 {
		return models.User{}, apperr.Validation("Validation failed.", errs)
	}
	email := strings.TrimSpace(in.Email)

	_, err := s.users.GetByEmail(ctx, email)
	if err == nil {
		return models.User{}, errUserExists
	}
	if !errors.Is(err, store.ErrNotFound) {
		return models.User{}, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), s.cost)
	if err != nil {
		return models.User{}, fmt.Errorf("failed to hash password: %w", err)
	}

	user, err := s.users.Insert(ctx, models.User{
		Email:        email,
		Name:         strings.TrimSpace(in.Name),
		PasswordHash: string(hash),
		Status:       models.DefaultStatus,
	})
	if errors.Is(err, store.ErrDuplicate) {
		// A concurrent signup claimed the email after the lookup above.
		return models.User{}, errUserExists
	}
	if err != nil {
		return models.User{}, err
	}

	log.Info().Str("user_id", user.ID).Msg("User signed up")
	// Don't send the password hash to the client
	user.PasswordHash = ""
	return user, nil
}

// Login verifies credentials and issues a token.
func (s *UserService) Login(ctx context.Context, email, password string) (models.AuthData, error) {
	user, err := s.users.GetByEmail(ctx, strings.TrimSpace(email))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return models.AuthData{}, apperr.NotFound("A user with this email could not be found.")
		}
		return models.AuthData{}, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		log.Warn().Str("user_id", user.ID).Msg("Failed authentication attempt")
		return models.AuthData{}, apperr.Unauthorized("Wrong password!")
	}

	token, err := s.tokens.Issue(user)
	if err != nil {
		return models.AuthData{}, fmt.Errorf("failed to generate token: %w", err)
	}
	return models.AuthData{Token: token, UserID: user.ID}, nil
}

// GetUser returns the caller's account without its password hash.
func (s *UserService) GetUser(ctx context.Context, id auth.Identity) (models.User, error) {
	if !id.Authenticated {
		return models.User{}, errNotAuthenticated
	}
	user, err := s.users.GetByID(ctx, id.UserID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return models.User{}, apperr.NotFound("User not found.")
		}
		return models.User{}, err
	}
	user.PasswordHash = ""
	return user, nil
}

// UpdateStatus sets the caller's status text.
func (s *UserService) UpdateStatus(ctx context.Context, id auth.Identity, status string) (models.User, error) {
	if !id.Authenticated {
		return models.User{}, errNotAuthenticated
	}
	if errs := validation.Status(status); len(errs) > 0 {
		return models.User{}, apperr.Validation("Validation failed.", errs)
	}

	user, err := s.users.GetByID(ctx, id.UserID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return models.User{}, apperr.NotFound("User not found.")
		}
		return models.User{}, err
	}

	user.Status = strings.TrimSpace(status)
	user, err = s.users.Save(ctx, user)
	if err != nil {
		return models.User{}, err
	}
	user.PasswordHash = ""
	return user, nil
}
