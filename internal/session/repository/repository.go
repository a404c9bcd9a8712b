package repository

import (
	"context"
	"time"

	"corecrm/backend/internal/session/domain"
)

// Repository defines persistence for sessions. Revocation is deletion:
// a session with no row is dead, so replayed refresh tokens fail lookup.
type Repository interface {
	// GetByID returns the session for id, or nil if not found.
	GetByID(ctx context.Context, id string) (*domain.Session, error)
	Create(ctx context.Context, s *domain.Session) error
	// Rotate atomically consumes the session oldID and inserts a
	// replacement with id newID in the same token family. Returns
	// (nil, nil, nil) when oldID does not exist, and (old, nil, nil)
	// when it existed but was already past expiry; the expired row is
	// still consumed. At most one concurrent caller gets the new row.
	Rotate(ctx context.Context, oldID, newID string, now, expiresAt time.Time, client domain.Client) (old, created *domain.Session, err error)
	Delete(ctx context.Context, id string) error
	DeleteAllForUser(ctx context.Context, userID string) error
	// UpdateRefreshHash binds the hash of the issued refresh token to the row.
	UpdateRefreshHash(ctx context.Context, id, refreshTokenHash string) error
}
