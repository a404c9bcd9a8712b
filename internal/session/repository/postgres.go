package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"corecrm/backend/internal/session/domain"
)

const sessionColumns = `id, user_id, token_family_id, expires_at, created_at,
	ip_address, user_agent, refresh_token_hash`

type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository returns a session repository that uses the given db for persistence.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// GetByID returns the session for id, or nil if not found.
// It returns an error only for database failures, not for missing rows.
func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*domain.Session, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+sessionColumns+` FROM sessions WHERE id = $1`, id)
	var s domain.Session
	if err := scanSession(row.Scan, &s); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &s, nil
}

// Create persists the session to the database. The session must have ID set.
func (r *PostgresRepository) Create(ctx context.Context, s *domain.Session) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO sessions (`+sessionColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		s.ID, s.UserID, s.TokenFamilyID, s.ExpiresAt, s.CreatedAt,
		s.IPAddress, s.UserAgent, s.RefreshTokenHash)
	return err
}

// Rotate consumes the session oldID and inserts its replacement in one
// transaction. The DELETE .. RETURNING is the concurrency gate: when two
// callers race on the same id, only one sees the row, so only one gets a
// replacement. A missing row yields (nil, nil, nil); an expired row is
// consumed but not replaced, yielding (old, nil, nil).
func (r *PostgresRepository) Rotate(ctx context.Context, oldID, newID string, now, expiresAt time.Time, client domain.Client) (*domain.Session, *domain.Session, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, nil, err
	}
	defer tx.Rollback()

	row := tx.QueryRowContext(ctx,
		`DELETE FROM sessions WHERE id = $1 RETURNING `+sessionColumns, oldID)
	var old domain.Session
	if err := scanSession(row.Scan, &old); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil, nil
		}
		return nil, nil, err
	}

	if old.ExpiredAt(now) {
		if err := tx.Commit(); err != nil {
			return nil, nil, err
		}
		return &old, nil, nil
	}

	created := &domain.Session{
		ID:            newID,
		UserID:        old.UserID,
		TokenFamilyID: old.TokenFamilyID,
		ExpiresAt:     expiresAt,
		CreatedAt:     now,
		IPAddress:     client.IPAddress,
		UserAgent:     client.UserAgent,
	}
	_, err = tx.ExecContext(ctx,
		`INSERT INTO sessions (`+sessionColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		created.ID, created.UserID, created.TokenFamilyID, created.ExpiresAt,
		created.CreatedAt, created.IPAddress, created.UserAgent, created.RefreshTokenHash)
	if err != nil {
		return nil, nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, nil, err
	}
	return &old, created, nil
}

// Delete removes the session with the given id. Missing rows are not an error.
func (r *PostgresRepository) Delete(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM sessions WHERE id = $1`, id)
	return err
}

// DeleteAllForUser removes every session belonging to userID.
func (r *PostgresRepository) DeleteAllForUser(ctx context.Context, userID string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM sessions WHERE user_id = $1`, userID)
	return err
}

// UpdateRefreshHash binds the hash of the issued refresh token to the row.
func (r *PostgresRepository) UpdateRefreshHash(ctx context.Context, id, refreshTokenHash string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE sessions SET refresh_token_hash = $2 WHERE id = $1`, id, refreshTokenHash)
	return err
}

func scanSession(scan func(...any) error, s *domain.Session) error {
	return scan(&s.ID, &s.UserID, &s.TokenFamilyID, &s.ExpiresAt, &s.CreatedAt,
		&s.IPAddress, &s.UserAgent, &s.RefreshTokenHash)
}
