package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"golang.org/x/crypto/bcrypt"

	"github.com/classchat/server/internal/model"
)

var (
	// ErrNotFound is returned when no row matches the lookup (or, for
	// ConsumeResetCode, when no row satisfies all of email/code/expiry;
	// callers must not distinguish which condition failed).
	ErrNotFound = errors.New("not found")
	// ErrDuplicateUser is returned when username or email is already taken.
	ErrDuplicateUser = errors.New("username or email already exists")
)

const uniqueViolation = "23505"

// UserRepo is the credential store. Password hashes never leave this
// package: callers pass raw passwords in and get booleans or users back.
type UserRepo interface {
	Create(ctx context.Context, username, email, rawPassword string) (model.User, error)
	GetByID(ctx context.Context, id string) (model.User, error)
	GetByIdentifier(ctx context.Context, identifier string) (model.User, error)
	GetByEmail(ctx context.Context, email string) (model.User, error)
	VerifyPassword(ctx context.Context, userID uuid.UUID, rawPassword string) (bool, error)
	SetLanguage(ctx context.Context, userID uuid.UUID, language string) (model.User, error)
	SetResetCode(ctx context.Context, userID uuid.UUID, code string, expiresAt time.Time) error
	ConsumeResetCode(ctx context.Context, email, code, newRawPassword string) error
}

type userRepo struct {
	db *sql.DB
}

// NewUserRepo creates a new UserRepo instance
func NewUserRepo(db *sql.DB) UserRepo {
	return &userRepo{db: db}
}

const userColumns = "id, username, email, role, language, created_at"

func scanUser(row *sql.Row) (model.User, error) {
	var user model.User
	var idStr string
	err := row.Scan(
		&idStr,
		&user.Username,
		&user.Email,
		&user.Role,
		&user.Language,
		&user.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.User{}, ErrNotFound
		}
		return model.User{}, fmt.Errorf("failed to query user: %w", err)
	}
	user.ID, err = uuid.Parse(idStr)
	if err != nil {
		return model.User{}, fmt.Errorf("failed to parse user ID: %w", err)
	}
	return user, nil
}

// Create inserts a new user with a bcrypt hash of the raw password.
// Returns ErrDuplicateUser when username or email collides.
func (r *userRepo) Create(ctx context.Context, username, email, rawPassword string) (model.User, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(rawPassword), bcrypt.DefaultCost)
	if err != nil {
		return model.User{}, fmt.Errorf("failed to hash password: %w", err)
	}

	query := `
		INSERT INTO users (username, email, password_hash)
		VALUES ($1, $2, $3)
		RETURNING ` + userColumns
	user, err := scanUser(r.db.QueryRowContext(ctx, query, username, email, string(hash)))
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return model.User{}, ErrDuplicateUser
		}
		return model.User{}, fmt.Errorf("failed to insert user: %w", err)
	}
	return user, nil
}

// GetByID retrieves a user by ID
func (r *userRepo) GetByID(ctx context.Context, id string) (model.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	return scanUser(r.db.QueryRowContext(ctx, query, id))
}

// GetByIdentifier retrieves a user by username or email.
func (r *userRepo) GetByIdentifier(ctx context.Context, identifier string) (model.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE username = $1 OR email = $1`
	return scanUser(r.db.QueryRowContext(ctx, query, identifier))
}

// GetByEmail retrieves a user by email.
func (r *userRepo) GetByEmail(ctx context.Context, email string) (model.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE email = $1`
	return scanUser(r.db.QueryRowContext(ctx, query, email))
}

// VerifyPassword compares the raw password against the stored hash.
// A mismatch is (false, nil); errors are reserved for lookup failures.
func (r *userRepo) VerifyPassword(ctx context.Context, userID uuid.UUID, rawPassword string) (bool, error) {
	var hash string
	err := r.db.QueryRowContext(ctx, `SELECT password_hash FROM users WHERE id = $1`, userID).Scan(&hash)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, ErrNotFound
		}
		return false, fmt.Errorf("failed to query password hash: %w", err)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(rawPassword)); err != nil {
		return false, nil
	}
	return true, nil
}

// SetLanguage updates the preferred language and returns the updated user.
func (r *userRepo) SetLanguage(ctx context.Context, userID uuid.UUID, language string) (model.User, error) {
	query := `
		UPDATE users
		SET language = $2
		WHERE id = $1
		RETURNING ` + userColumns
	return scanUser(r.db.QueryRowContext(ctx, query, userID, language))
}

// SetResetCode stores a pending reset code and its expiry, overwriting any
// prior code for the same user.
func (r *userRepo) SetResetCode(ctx context.Context, userID uuid.UUID, code string, expiresAt time.Time) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE users
		SET reset_code = $2, reset_expires_at = $3
		WHERE id = $1
	`, userID, code, expiresAt)
	if err != nil {
		return fmt.Errorf("failed to set reset code: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to set reset code: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// ConsumeResetCode replaces the password and clears the code in one
// statement guarded by email, code, and expiry. A single ErrNotFound covers
// unknown email, wrong code, and expired code alike.
func (r *userRepo) ConsumeResetCode(ctx context.Context, email, code, newRawPassword string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(newRawPassword), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}

	res, err := r.db.ExecContext(ctx, `
		UPDATE users
		SET password_hash = $3, reset_code = NULL, reset_expires_at = NULL
		WHERE email = $1 AND reset_code = $2 AND reset_expires_at > now()
	`, email, code, string(hash))
	if err != nil {
		return fmt.Errorf("failed to consume reset code: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to consume reset code: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
