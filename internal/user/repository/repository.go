package repository

import (
	"context"
	"errors"
	"time"

	orgdomain "corecrm/backend/internal/organization/domain"
	"corecrm/backend/internal/user/domain"
)

// ErrDuplicateEmail is returned when a create collides with an existing
// email address. Email addresses are unique across all organizations.
var ErrDuplicateEmail = errors.New("email already registered")

// Repository defines persistence for users.
type Repository interface {
	GetByID(ctx context.Context, id string) (*domain.User, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	// CreateWithOrg persists the organization and its founding user in one
	// transaction. The first user ever stored is promoted to a verified
	// ADMIN inside that transaction and u is updated to match, so two
	// racing first registrations cannot both come out promoted.
	// Returns ErrDuplicateEmail if the email is taken.
	CreateWithOrg(ctx context.Context, org *orgdomain.Org, u *domain.User) error
	// UpdateLockout writes the failed-attempt counter and lock expiry.
	UpdateLockout(ctx context.Context, id string, attempts int, lockedUntil *time.Time) error
	// RecordLogin clears the lockout state and stamps last_login_at.
	RecordLogin(ctx context.Context, id string, at time.Time) error
	// UpdatePassword replaces the password hash and clears any lockout.
	UpdatePassword(ctx context.Context, id, passwordHash string) error
	SetEmailVerified(ctx context.Context, id string) error
}
