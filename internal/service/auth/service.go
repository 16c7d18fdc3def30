package auth

import (
	"context"
	"errors"
	"net/mail"
	"strings"
	"time"

	"log/slog"

	"github.com/google/uuid"

	"github.com/skovert/feedwall/internal/apperr"
	"github.com/skovert/feedwall/internal/domain"
	"github.com/skovert/feedwall/internal/repository"
	"github.com/skovert/feedwall/pkg/config"
	"github.com/skovert/feedwall/pkg/crypto"
	jwtpkg "github.com/skovert/feedwall/pkg/jwt"
)

const defaultStatus = "I am new!"

const minPasswordLength = 5

// Service handles authentication workflows.
type Service struct {
	users  repository.UserRepository
	logger *slog.Logger
	cfg    config.APIConfig
}

// New constructs a Service.
func New(users repository.UserRepository, logger *slog.Logger, cfg config.APIConfig) Service {
	return Service{users: users, logger: logger, cfg: cfg}
}

// SignupInput carries new-account attributes.
type SignupInput struct {
	Email    string
	Name     string
	Password string
}

func validateSignup(input SignupInput) []string {
	var problems []string
	if _, err := mail.ParseAddress(strings.TrimSpace(input.Email)); err != nil {
		problems = append(problems, "email is invalid")
	}
	if strings.TrimSpace(input.Name) == "" {
		problems = append(problems, "name is required")
	}
	if len(input.Password) < minPasswordLength {
		problems = append(problems, "password too short")
	}
	return problems
}

// Signup registers a new user.
func (s Service) Signup(ctx context.Context, input SignupInput) (*domain.User, error) {
	if problems := validateSignup(input); len(problems) > 0 {
		return nil, apperr.Validation("invalid input", problems...)
	}
	email := strings.ToLower(strings.TrimSpace(input.Email))
	if _, err := s.users.GetUserByEmail(ctx, email); err == nil {
		return nil, apperr.Validation("user exists already")
	} else if !errors.Is(err, repository.ErrNotFound) {
		return nil, apperr.Storage(err)
	}
	hash, err := crypto.HashPassword(input.Password)
	if err != nil {
		return nil, err
	}
	user := &domain.User{
		ID:           uuid.NewString(),
		Email:        email,
		Name:         strings.TrimSpace(input.Name),
		Status:       defaultStatus,
		PasswordHash: hash,
		CreatedAt:    time.Now().UTC(),
	}
	if err := s.users.CreateUser(ctx, user); err != nil {
		return nil, apperr.Storage(err)
	}
	s.logger.Info("user registered", "user_id", user.ID)
	return user, nil
}

// Login authenticates a user and returns a signed token.
func (s Service) Login(ctx context.Context, email, password string) (*domain.User, string, error) {
	user, err := s.users.GetUserByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, "", apperr.Unauthenticated("user not found")
		}
		return nil, "", apperr.Storage(err)
	}
	if err := crypto.ComparePassword(user.PasswordHash, password); err != nil {
		return nil, "", apperr.Unauthenticated("password is incorrect")
	}
	token, err := jwtpkg.GenerateToken(user.ID, user.Email, s.cfg.JWTSecret, s.cfg.AccessTokenTTL)
	if err != nil {
		return nil, "", err
	}
	s.logger.Info("user logged in", "user_id", user.ID)
	return user, token, nil
}

// Authorize validates a bearer token and returns the associated user.
func (s Service) Authorize(ctx context.Context, token string) (*domain.User, error) {
	trimmed := strings.TrimSpace(token)
	if trimmed == "" {
		return nil, apperr.Unauthenticated("token required")
	}
	claims, err := jwtpkg.Parse(trimmed, s.cfg.JWTSecret)
	if err != nil {
		return nil, apperr.Unauthenticated("invalid token")
	}
	user, err := s.users.GetUserByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperr.Unauthenticated("unknown user")
		}
		return nil, apperr.Storage(err)
	}
	return user, nil
}

// Profile returns the user with its owned post ids resolved.
func (s Service) Profile(ctx context.Context, userID string) (*domain.User, error) {
	user, err := s.users.GetUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperr.NotFound("user not found")
		}
		return nil, apperr.Storage(err)
	}
	posts, err := s.users.ListUserPostIDs(ctx, userID)
	if err != nil {
		return nil, apperr.Storage(err)
	}
	user.Posts = posts
	return user, nil
}

// UpdateStatus replaces the user's status text.
func (s Service) UpdateStatus(ctx context.Context, userID, status string) (*domain.User, error) {
	status = strings.TrimSpace(status)
	if status == "" {
		return nil, apperr.Validation("status is required")
	}
	if err := s.users.UpdateUserStatus(ctx, userID, status); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperr.NotFound("user not found")
		}
		return nil, apperr.Storage(err)
	}
	return s.Profile(ctx, userID)
}
