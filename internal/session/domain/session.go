package domain

import "time"

// Session is one live refresh credential. Its row id is the jti carried by
// both tokens of the pair minted for it; rotation replaces the row, keeping
// TokenFamilyID stable across the chain.
type Session struct {
	ID               string
	UserID           string
	TokenFamilyID    string
	ExpiresAt        time.Time
	CreatedAt        time.Time
	IPAddress        string
	UserAgent        string
	RefreshTokenHash string // SHA-256 hash of the refresh token bound to this row
}

// Client carries the request metadata recorded on a session.
type Client struct {
	IPAddress string
	UserAgent string
}

// ExpiredAt reports whether the session is past its expiry at the given instant.
func (s *Session) ExpiredAt(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}
