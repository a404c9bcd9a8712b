package security

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/rand"
	"crypto/rsa"
	"encoding/hex"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	// ErrInvalidToken is returned when a token is malformed, tampered with, or otherwise invalid.
	ErrInvalidToken = errors.New("invalid token")
	// ErrTokenExpired is returned when a token's signature is fine but its exp has passed.
	ErrTokenExpired = errors.New("token expired")
	// ErrWrongTokenType is returned when a valid token is presented for a different purpose.
	ErrWrongTokenType = errors.New("wrong token type")
)

// TokenType distinguishes the four purposes a signed token can serve.
type TokenType string

const (
	TokenTypeAccess            TokenType = "access"
	TokenTypeRefresh           TokenType = "refresh"
	TokenTypePasswordReset     TokenType = "password_reset"
	TokenTypeEmailVerification TokenType = "email_verification"
)

// Claims is the single claims shape for all token types. SessionID and
// TokenFamily are set only on access/refresh tokens; PasswordFingerprint only
// on password-reset tokens.
type Claims struct {
	jwt.RegisteredClaims
	TokenType   TokenType `json:"type"`
	OrgID       string    `json:"org_id"`
	Role        string    `json:"role"`
	Email       string    `json:"email"`
	SessionID   string    `json:"session_id,omitempty"`
	TokenFamily string    `json:"token_family,omitempty"`
	// PasswordFingerprint ties a password-reset token to the hash it was
	// minted against; it stops matching once the password changes.
	PasswordFingerprint string `json:"pwd,omitempty"`
}

// TokenPair is an access/refresh pair issued together. Both halves carry the
// same session id (which is also their jti) and the same token family, so
// revoking the session invalidates both at once.
type TokenPair struct {
	AccessToken      string
	AccessExpiresAt  time.Time
	RefreshToken     string
	RefreshExpiresAt time.Time
	SessionID        string
	TokenFamily      string
}

// TokenTTLs holds the lifetime of each token type.
type TokenTTLs struct {
	Access            time.Duration
	Refresh           time.Duration
	PasswordReset     time.Duration
	EmailVerification time.Duration
}

// TokenProvider issues and verifies typed JWTs using RS256 or ES256 (private/public key).
type TokenProvider struct {
	privateKey crypto.Signer
	publicKey  crypto.PublicKey
	issuer     string
	audience   string
	ttls       TokenTTLs
}

// NewTokenProvider returns a TokenProvider that signs with the given private key (RS256 or ES256).
// issuer and audience are set on claims and validated on every Verify.
func NewTokenProvider(privateKey crypto.Signer, publicKey crypto.PublicKey, issuer, audience string, ttls TokenTTLs) *TokenProvider {
	return &TokenProvider{
		privateKey: privateKey,
		publicKey:  publicKey,
		issuer:     issuer,
		audience:   audience,
		ttls:       ttls,
	}
}

// Subject identifies the user a token is issued for.
type Subject struct {
	UserID string
	OrgID  string
	Role   string
	Email  string
}

// IssuePair issues an access and a refresh token together. sessionID becomes
// the jti of both halves and must equal the persisted session row id;
// familyID is carried unchanged across rotations of the same lineage.
func (p *TokenProvider) IssuePair(sessionID, familyID string, sub Subject) (*TokenPair, error) {
	now := time.Now().UTC()
	accessExp := now.Add(p.ttls.Access)
	refreshExp := now.Add(p.ttls.Refresh)

	access, err := p.sign(p.claims(TokenTypeAccess, sessionID, sub, now, accessExp, sessionID, familyID, ""))
	if err != nil {
		return nil, err
	}
	refresh, err := p.sign(p.claims(TokenTypeRefresh, sessionID, sub, now, refreshExp, sessionID, familyID, ""))
	if err != nil {
		return nil, err
	}
	return &TokenPair{
		AccessToken:      access,
		AccessExpiresAt:  accessExp,
		RefreshToken:     refresh,
		RefreshExpiresAt: refreshExp,
		SessionID:        sessionID,
		TokenFamily:      familyID,
	}, nil
}

// IssuePasswordReset issues a short-lived single-purpose password-reset token.
// pwdFingerprint must be PasswordHashFingerprint of the user's current hash.
func (p *TokenProvider) IssuePasswordReset(sub Subject, pwdFingerprint string) (string, time.Time, error) {
	jti, err := generateJTI()
	if err != nil {
		return "", time.Time{}, err
	}
	now := time.Now().UTC()
	exp := now.Add(p.ttls.PasswordReset)
	token, err := p.sign(p.claims(TokenTypePasswordReset, jti, sub, now, exp, "", "", pwdFingerprint))
	if err != nil {
		return "", time.Time{}, err
	}
	return token, exp, nil
}

// IssueEmailVerification issues a single-purpose email-verification token.
func (p *TokenProvider) IssueEmailVerification(sub Subject) (string, time.Time, error) {
	jti, err := generateJTI()
	if err != nil {
		return "", time.Time{}, err
	}
	now := time.Now().UTC()
	exp := now.Add(p.ttls.EmailVerification)
	token, err := p.sign(p.claims(TokenTypeEmailVerification, jti, sub, now, exp, "", "", ""))
	if err != nil {
		return "", time.Time{}, err
	}
	return token, exp, nil
}

func (p *TokenProvider) claims(tt TokenType, jti string, sub Subject, iat, exp time.Time, sessionID, familyID, pwdFingerprint string) Claims {
	return Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        jti,
			Subject:   sub.UserID,
			Issuer:    p.issuer,
			Audience:  jwt.ClaimStrings{p.audience},
			IssuedAt:  jwt.NewNumericDate(iat),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
		TokenType:           tt,
		OrgID:               sub.OrgID,
		Role:                sub.Role,
		Email:               sub.Email,
		SessionID:           sessionID,
		TokenFamily:         familyID,
		PasswordFingerprint: pwdFingerprint,
	}
}

func (p *TokenProvider) sign(claims Claims) (string, error) {
	var method jwt.SigningMethod
	switch p.privateKey.Public().(type) {
	case *rsa.PublicKey:
		method = jwt.SigningMethodRS256
	case *ecdsa.PublicKey:
		method = jwt.SigningMethodES256
	default:
		return "", ErrInvalidToken
	}
	t := jwt.NewWithClaims(method, claims)
	return t.SignedString(p.privateKey)
}

// Verify parses the token, checks signature, expiry, issuer, and audience,
// and requires the token to be of the expected type. The distinct errors
// (ErrTokenExpired, ErrWrongTokenType) are for internal logging; callers at
// the API boundary normalize all of them to a generic unauthorized.
func (p *TokenProvider) Verify(tokenString string, expected TokenType) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodRSA); ok {
			return p.publicKey, nil
		}
		if _, ok := token.Method.(*jwt.SigningMethodECDSA); ok {
			return p.publicKey, nil
		}
		return nil, ErrInvalidToken
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, ErrInvalidToken
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}
	if claims.Issuer != p.issuer {
		return nil, ErrInvalidToken
	}
	audOk := false
	for _, a := range claims.Audience {
		if a == p.audience {
			audOk = true
			break
		}
	}
	if !audOk {
		return nil, ErrInvalidToken
	}
	if claims.TokenType != expected {
		return nil, ErrWrongTokenType
	}
	return claims, nil
}

func generateJTI() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
