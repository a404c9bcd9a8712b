package security

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
)

// HashRefreshToken digests a raw refresh token for storage on the session
// row. Sessions never hold the token itself, only this SHA-256 hex digest,
// so a leaked sessions table cannot mint refreshes.
func HashRefreshToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

// RefreshTokenHashEqual checks a presented token against the stored digest
// without leaking the comparison through timing.
func RefreshTokenHashEqual(providedToken, storedHash string) bool {
	digest := HashRefreshToken(providedToken)
	return subtle.ConstantTimeCompare([]byte(digest), []byte(storedHash)) == 1
}
