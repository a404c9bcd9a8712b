package security

import (
	"errors"
	"testing"
	"time"
)

func testSubject() Subject {
	return Subject{UserID: "u1", OrgID: "o1", Role: "ADMIN", Email: "u1@example.com"}
}

func TestTokenProvider_IssuePair(t *testing.T) {
	p, err := NewTestTokenProvider()
	if err != nil {
		t.Fatalf("NewTestTokenProvider: %v", err)
	}
	pair, err := p.IssuePair("s1", "f1", testSubject())
	if err != nil {
		t.Fatalf("IssuePair: %v", err)
	}
	if pair.AccessToken == "" || pair.RefreshToken == "" {
		t.Fatal("pair has empty token")
	}
	if pair.AccessExpiresAt.Before(time.Now()) || pair.RefreshExpiresAt.Before(time.Now()) {
		t.Fatal("pair expires in the past")
	}

	access, err := p.Verify(pair.AccessToken, TokenTypeAccess)
	if err != nil {
		t.Fatalf("Verify access: %v", err)
	}
	refresh, err := p.Verify(pair.RefreshToken, TokenTypeRefresh)
	if err != nil {
		t.Fatalf("Verify refresh: %v", err)
	}
	if access.Subject != "u1" || access.OrgID != "o1" || access.Role != "ADMIN" || access.Email != "u1@example.com" {
		t.Errorf("access claims = %+v", access)
	}
	if access.TokenFamily != "f1" || refresh.TokenFamily != "f1" {
		t.Errorf("token family: access=%q refresh=%q, want f1", access.TokenFamily, refresh.TokenFamily)
	}
}

// A freshly issued refresh token must embed the same id that is persisted as
// the session primary key, or session lookup on refresh would always miss.
func TestTokenProvider_PairSharesSessionID(t *testing.T) {
	p, err := NewTestTokenProvider()
	if err != nil {
		t.Fatalf("NewTestTokenProvider: %v", err)
	}
	pair, err := p.IssuePair("session-42", "f1", testSubject())
	if err != nil {
		t.Fatalf("IssuePair: %v", err)
	}
	access, err := p.Verify(pair.AccessToken, TokenTypeAccess)
	if err != nil {
		t.Fatalf("Verify access: %v", err)
	}
	refresh, err := p.Verify(pair.RefreshToken, TokenTypeRefresh)
	if err != nil {
		t.Fatalf("Verify refresh: %v", err)
	}
	if pair.SessionID != "session-42" {
		t.Errorf("pair.SessionID = %q", pair.SessionID)
	}
	if access.SessionID != "session-42" || refresh.SessionID != "session-42" {
		t.Errorf("claims session ids: access=%q refresh=%q", access.SessionID, refresh.SessionID)
	}
	if access.ID != "session-42" || refresh.ID != "session-42" {
		t.Errorf("jti: access=%q refresh=%q, want session-42", access.ID, refresh.ID)
	}
}

func TestTokenProvider_VerifyIdempotent(t *testing.T) {
	p, err := NewTestTokenProvider()
	if err != nil {
		t.Fatalf("NewTestTokenProvider: %v", err)
	}
	pair, err := p.IssuePair("s1", "f1", testSubject())
	if err != nil {
		t.Fatalf("IssuePair: %v", err)
	}
	first, err := p.Verify(pair.AccessToken, TokenTypeAccess)
	if err != nil {
		t.Fatalf("first Verify: %v", err)
	}
	second, err := p.Verify(pair.AccessToken, TokenTypeAccess)
	if err != nil {
		t.Fatalf("second Verify: %v", err)
	}
	if first.ID != second.ID || first.Subject != second.Subject ||
		first.TokenType != second.TokenType || first.SessionID != second.SessionID {
		t.Errorf("claims differ between verifications: %+v vs %+v", first, second)
	}
}

func TestTokenProvider_WrongType(t *testing.T) {
	p, err := NewTestTokenProvider()
	if err != nil {
		t.Fatalf("NewTestTokenProvider: %v", err)
	}
	pair, err := p.IssuePair("s1", "f1", testSubject())
	if err != nil {
		t.Fatalf("IssuePair: %v", err)
	}
	if _, err := p.Verify(pair.AccessToken, TokenTypeRefresh); !errors.Is(err, ErrWrongTokenType) {
		t.Errorf("access as refresh: want ErrWrongTokenType, got %v", err)
	}
	if _, err := p.Verify(pair.RefreshToken, TokenTypePasswordReset); !errors.Is(err, ErrWrongTokenType) {
		t.Errorf("refresh as reset: want ErrWrongTokenType, got %v", err)
	}
}

func TestTokenProvider_Expired(t *testing.T) {
	ttls := TestTokenTTLs
	ttls.Access = -time.Minute
	p, err := NewTestTokenProviderTTLs(ttls)
	if err != nil {
		t.Fatalf("NewTestTokenProviderTTLs: %v", err)
	}
	pair, err := p.IssuePair("s1", "f1", testSubject())
	if err != nil {
		t.Fatalf("IssuePair: %v", err)
	}
	if _, err := p.Verify(pair.AccessToken, TokenTypeAccess); !errors.Is(err, ErrTokenExpired) {
		t.Errorf("want ErrTokenExpired, got %v", err)
	}
}

func TestTokenProvider_Tampered(t *testing.T) {
	p, err := NewTestTokenProvider()
	if err != nil {
		t.Fatalf("NewTestTokenProvider: %v", err)
	}
	pair, err := p.IssuePair("s1", "f1", testSubject())
	if err != nil {
		t.Fatalf("IssuePair: %v", err)
	}
	tampered := pair.AccessToken[:len(pair.AccessToken)-2] + "xx"
	if _, err := p.Verify(tampered, TokenTypeAccess); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("tampered token: want ErrInvalidToken, got %v", err)
	}
	if _, err := p.Verify("not-a-token", TokenTypeAccess); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("garbage token: want ErrInvalidToken, got %v", err)
	}
}

func TestTokenProvider_PasswordResetFingerprint(t *testing.T) {
	p, err := NewTestTokenProvider()
	if err != nil {
		t.Fatalf("NewTestTokenProvider: %v", err)
	}
	fp := PasswordHashFingerprint("$2a$10$somehash")
	token, exp, err := p.IssuePasswordReset(testSubject(), fp)
	if err != nil {
		t.Fatalf("IssuePasswordReset: %v", err)
	}
	if exp.Before(time.Now()) {
		t.Fatal("reset token expires in the past")
	}
	claims, err := p.Verify(token, TokenTypePasswordReset)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if claims.PasswordFingerprint != fp {
		t.Errorf("fingerprint = %q, want %q", claims.PasswordFingerprint, fp)
	}
	if claims.SessionID != "" || claims.TokenFamily != "" {
		t.Errorf("reset token must not carry session claims: %+v", claims)
	}
}

func TestTokenProvider_EmailVerification(t *testing.T) {
	p, err := NewTestTokenProvider()
	if err != nil {
		t.Fatalf("NewTestTokenProvider: %v", err)
	}
	token, _, err := p.IssueEmailVerification(testSubject())
	if err != nil {
		t.Fatalf("IssueEmailVerification: %v", err)
	}
	claims, err := p.Verify(token, TokenTypeEmailVerification)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if claims.Subject != "u1" {
		t.Errorf("subject = %q", claims.Subject)
	}
	if _, err := p.Verify(token, TokenTypeAccess); !errors.Is(err, ErrWrongTokenType) {
		t.Errorf("verification token as access: want ErrWrongTokenType, got %v", err)
	}
}
