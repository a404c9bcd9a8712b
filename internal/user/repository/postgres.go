package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	orgdomain "corecrm/backend/internal/organization/domain"
	"corecrm/backend/internal/user/domain"
)

const userColumns = `id, org_id, email, password_hash, first_name, last_name, role,
	active, email_verified, failed_login_attempts, locked_until, last_login_at,
	created_at, updated_at`

type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository returns a user repository that uses the given db for persistence.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// GetByID returns the user for id, or nil if not found.
// It returns an error only for database failures, not for missing rows.
func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = $1`, id)
	return scanUser(row)
}

// GetByEmail returns the user with the given email, or nil if not found.
// It returns an error only for database failures, not for missing rows.
func (r *PostgresRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE email = $1`, email)
	return scanUser(row)
}

// CreateWithOrg persists the organization and its founding user in one
// transaction, so a failed user insert never leaves an empty organization
// behind. Both must have IDs set; they are not assigned here.
//
// The very first user row ever inserted is promoted to a verified ADMIN.
// The empty-table check takes a table lock so concurrent registrations
// serialize and only one of them can see an empty table.
func (r *PostgresRepository) CreateWithOrg(ctx context.Context, org *orgdomain.Org, u *domain.User) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `LOCK TABLE users IN SHARE ROW EXCLUSIVE MODE`); err != nil {
		return err
	}
	var exists bool
	if err := tx.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM users)`).Scan(&exists); err != nil {
		return err
	}
	if !exists {
		u.Role = domain.RoleAdmin
		u.EmailVerified = true
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO organizations (id, name, created_at) VALUES ($1, $2, $3)`,
		org.ID, org.Name, org.CreatedAt)
	if err != nil {
		return err
	}
	_, err = tx.ExecContext(ctx,
		`INSERT INTO users (`+userColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`,
		u.ID, u.OrgID, u.Email, u.PasswordHash, u.FirstName, u.LastName, u.Role,
		u.Active, u.EmailVerified, u.FailedLoginAttempts, u.LockedUntil, u.LastLoginAt,
		u.CreatedAt, u.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrDuplicateEmail
		}
		return err
	}
	return tx.Commit()
}

// UpdateLockout writes the failed-attempt counter and lock expiry for id.
func (r *PostgresRepository) UpdateLockout(ctx context.Context, id string, attempts int, lockedUntil *time.Time) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE users SET failed_login_attempts = $2, locked_until = $3, updated_at = now()
		 WHERE id = $1`, id, attempts, lockedUntil)
	return err
}

// RecordLogin clears the lockout state and stamps last_login_at.
func (r *PostgresRepository) RecordLogin(ctx context.Context, id string, at time.Time) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE users SET failed_login_attempts = 0, locked_until = NULL,
		 last_login_at = $2, updated_at = now() WHERE id = $1`, id, at)
	return err
}

// UpdatePassword replaces the password hash and clears any lockout.
func (r *PostgresRepository) UpdatePassword(ctx context.Context, id, passwordHash string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE users SET password_hash = $2, failed_login_attempts = 0,
		 locked_until = NULL, updated_at = now() WHERE id = $1`, id, passwordHash)
	return err
}

// SetEmailVerified marks the user's email as verified.
func (r *PostgresRepository) SetEmailVerified(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE users SET email_verified = TRUE, updated_at = now() WHERE id = $1`, id)
	return err
}

func scanUser(row *sql.Row) (*domain.User, error) {
	var u domain.User
	err := row.Scan(&u.ID, &u.OrgID, &u.Email, &u.PasswordHash, &u.FirstName, &u.LastName,
		&u.Role, &u.Active, &u.EmailVerified, &u.FailedLoginAttempts, &u.LockedUntil,
		&u.LastLoginAt, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &u, nil
}
