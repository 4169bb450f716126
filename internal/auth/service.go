package auth

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/classchat/server/internal/model"
	"github.com/classchat/server/internal/repo"
)

var (
	// ErrDuplicateIdentity is returned when the username or email is taken.
	ErrDuplicateIdentity = errors.New("username or email already exists")
	// ErrInvalidCredentials covers both unknown identifier and wrong
	// password, so callers cannot probe which accounts exist.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrInvalidLanguage is returned for languages outside the supported set.
	ErrInvalidLanguage = errors.New("invalid language")
)

// supportedLanguages lists the UI languages a user may select.
var supportedLanguages = map[string]bool{
	"en": true,
	"ar": true,
}

// AuthService orchestrates registration, login, and profile changes
type AuthService struct {
	users repo.UserRepo
	jwt   *JWTService
}

// NewAuthService creates a new auth service
func NewAuthService(users repo.UserRepo, jwtService *JWTService) *AuthService {
	return &AuthService{
		users: users,
		jwt:   jwtService,
	}
}

// Register creates a new account and issues a token for it.
func (s *AuthService) Register(ctx context.Context, username, email, password string) (model.User, string, error) {
	user, err := s.users.Create(ctx, username, email, password)
	if err != nil {
		if errors.Is(err, repo.ErrDuplicateUser) {
			return model.User{}, "", ErrDuplicateIdentity
		}
		return model.User{}, "", fmt.Errorf("failed to create user: %w", err)
	}

	token, err := s.jwt.SignToken(user.ID, user.Username)
	if err != nil {
		return model.User{}, "", fmt.Errorf("failed to generate token: %w", err)
	}
	return user, token, nil
}

// Login verifies credentials for a username or email and issues a token.
func (s *AuthService) Login(ctx context.Context, identifier, password string) (model.User, string, error) {
	user, err := s.users.GetByIdentifier(ctx, identifier)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return model.User{}, "", ErrInvalidCredentials
		}
		return model.User{}, "", fmt.Errorf("failed to look up user: %w", err)
	}

	ok, err := s.users.VerifyPassword(ctx, user.ID, password)
	if err != nil {
		return model.User{}, "", fmt.Errorf("failed to verify password: %w", err)
	}
	if !ok {
		return model.User{}, "", ErrInvalidCredentials
	}

	token, err := s.jwt.SignToken(user.ID, user.Username)
	if err != nil {
		return model.User{}, "", fmt.Errorf("failed to generate token: %w", err)
	}
	return user, token, nil
}

// ChangeLanguage sets the preferred display language for a user.
func (s *AuthService) ChangeLanguage(ctx context.Context, userID uuid.UUID, language string) (model.User, error) {
	if !supportedLanguages[language] {
		return model.User{}, ErrInvalidLanguage
	}
	user, err := s.users.SetLanguage(ctx, userID, language)
	if err != nil {
		return model.User{}, fmt.Errorf("failed to set language: %w", err)
	}
	return user, nil
}
