package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"corecrm/backend/internal/security"
	"corecrm/backend/internal/session/domain"
	"corecrm/backend/internal/session/repository"
)

var (
	// ErrSessionNotFound covers both genuinely unknown sessions and
	// replayed refresh tokens whose row was already consumed.
	ErrSessionNotFound = errors.New("session not found")
	ErrSessionExpired  = errors.New("session expired")
)

// Manager owns session rows. One row per live refresh token; rotation
// swaps rows within a token family.
type Manager struct {
	repo       repository.Repository
	refreshTTL time.Duration
	now        func() time.Time
}

// NewManager returns a session manager issuing sessions valid for refreshTTL.
func NewManager(repo repository.Repository, refreshTTL time.Duration) *Manager {
	return &Manager{repo: repo, refreshTTL: refreshTTL, now: time.Now}
}

// WithNow overrides the clock. Test hook.
func (m *Manager) WithNow(now func() time.Time) *Manager {
	m.now = now
	return m
}

// Create starts a new session and token family for the user.
func (m *Manager) Create(ctx context.Context, userID string, client domain.Client) (*domain.Session, error) {
	now := m.now().UTC()
	s := &domain.Session{
		ID:            uuid.NewString(),
		UserID:        userID,
		TokenFamilyID: uuid.NewString(),
		ExpiresAt:     now.Add(m.refreshTTL),
		CreatedAt:     now,
		IPAddress:     client.IPAddress,
		UserAgent:     client.UserAgent,
	}
	if err := m.repo.Create(ctx, s); err != nil {
		return nil, err
	}
	return s, nil
}

// BindRefreshToken stores the hash of the refresh token minted for the
// session, so rotation can verify the presented token matches the row.
func (m *Manager) BindRefreshToken(ctx context.Context, sessionID, refreshToken string) error {
	return m.repo.UpdateRefreshHash(ctx, sessionID, security.HashRefreshToken(refreshToken))
}

// Rotate consumes the session identified by the presented refresh token and
// returns its replacement. A missing row means the token was already used
// (or never existed) and yields ErrSessionNotFound; the caller is expected
// to treat that as a possible replay. An expired row yields
// ErrSessionExpired and is consumed so it cannot be retried.
func (m *Manager) Rotate(ctx context.Context, sessionID, refreshToken string, client domain.Client) (*domain.Session, error) {
	now := m.now().UTC()
	newID := uuid.NewString()
	old, created, err := m.repo.Rotate(ctx, sessionID, newID, now, now.Add(m.refreshTTL), client)
	if err != nil {
		return nil, err
	}
	if old == nil {
		return nil, ErrSessionNotFound
	}
	if created == nil {
		return nil, ErrSessionExpired
	}
	// A stored hash that does not match the presented token means the
	// token was forged or stale even though the row still existed.
	if old.RefreshTokenHash != "" && !security.RefreshTokenHashEqual(refreshToken, old.RefreshTokenHash) {
		if derr := m.repo.Delete(ctx, created.ID); derr != nil {
			return nil, derr
		}
		return nil, ErrSessionNotFound
	}
	return created, nil
}

// Revoke deletes the session. Unknown ids are not an error; logout is
// idempotent.
func (m *Manager) Revoke(ctx context.Context, sessionID string) error {
	return m.repo.Delete(ctx, sessionID)
}

// RevokeAllForUser deletes every session of the user, killing all token
// families at once.
func (m *Manager) RevokeAllForUser(ctx context.Context, userID string) error {
	return m.repo.DeleteAllForUser(ctx, userID)
}

// IsLive reports whether the session exists and has not expired.
func (m *Manager) IsLive(ctx context.Context, sessionID string) (bool, error) {
	s, err := m.repo.GetByID(ctx, sessionID)
	if err != nil {
		return false, err
	}
	return s != nil && !s.ExpiredAt(m.now().UTC()), nil
}
