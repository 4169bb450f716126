package auth

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"log"
	"math/big"
	"time"

	"github.com/classchat/server/internal/mail"
	"github.com/classchat/server/internal/repo"
)

const (
	resetCodeExpiry  = 15 * time.Minute
	resetMailSubject = "Password reset code"
)

var (
	// ErrUnknownEmail is returned by RequestCode when no account matches.
	ErrUnknownEmail = errors.New("no account with that email")
	// ErrInvalidOrExpiredCode is the single failure for ConsumeCode. Wrong
	// code, expired code, and unknown email are indistinguishable.
	ErrInvalidOrExpiredCode = errors.New("invalid or expired code")
)

// ResetService issues and consumes password recovery codes. At most one
// code is active per account; a new request overwrites the previous one.
type ResetService struct {
	users      repo.UserRepo
	mailer     mail.Mailer
	production bool
}

// NewResetService creates a new reset service. In production mode codes are
// withheld from RequestCode's return value and reach the user by mail only.
func NewResetService(users repo.UserRepo, mailer mail.Mailer, production bool) *ResetService {
	return &ResetService{
		users:      users,
		mailer:     mailer,
		production: production,
	}
}

// RequestCode generates a 6-digit code for the account with the given
// email, stores it with a 15-minute expiry, and mails it. Delivery failure
// does not fail the request; the code is issued either way so the response
// shape never reveals mail-channel state. Outside production the code is
// returned to the caller for closed-loop testing.
func (s *ResetService) RequestCode(ctx context.Context, email string) (string, error) {
	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return "", ErrUnknownEmail
		}
		return "", fmt.Errorf("failed to look up user: %w", err)
	}

	code, err := generateResetCode()
	if err != nil {
		return "", fmt.Errorf("failed to generate code: %w", err)
	}

	if err := s.users.SetResetCode(ctx, user.ID, code, time.Now().Add(resetCodeExpiry)); err != nil {
		return "", fmt.Errorf("failed to store reset code: %w", err)
	}

	body := fmt.Sprintf("Your password reset code is: %s", code)
	if err := s.mailer.Send(ctx, user.Email, resetMailSubject, body); err != nil {
		log.Printf("Failed to send reset mail to %s: %v", mail.MaskEmail(user.Email), err)
	}

	if s.production {
		return "", nil
	}
	return code, nil
}

// ConsumeCode replaces the password when email, code, and expiry all line
// up, and clears the code so it cannot be used twice.
func (s *ResetService) ConsumeCode(ctx context.Context, email, code, newPassword string) error {
	err := s.users.ConsumeResetCode(ctx, email, code, newPassword)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return ErrInvalidOrExpiredCode
		}
		return fmt.Errorf("failed to consume reset code: %w", err)
	}
	return nil
}

// generateResetCode returns a uniformly random 6-digit numeric string.
func generateResetCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(900000))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%06d", n.Int64()+100000), nil
}
