package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"

	"corecrm/backend/internal/audit"
	"corecrm/backend/internal/notify"
	orgdomain "corecrm/backend/internal/organization/domain"
	orgrepo "corecrm/backend/internal/organization/repository"
	"corecrm/backend/internal/security"
	sessiondomain "corecrm/backend/internal/session/domain"
	sessionservice "corecrm/backend/internal/session/service"
	userdomain "corecrm/backend/internal/user/domain"
	userrepo "corecrm/backend/internal/user/repository"
)

// Sentinel errors for the auth service; the handler maps them to HTTP codes.
var (
	// ErrDuplicateEmail mirrors the repository sentinel so handlers only
	// depend on this package.
	ErrDuplicateEmail     = userrepo.ErrDuplicateEmail
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrAccountDeactivated = errors.New("account deactivated")
	ErrUnauthorized       = errors.New("unauthorized")
	ErrUserNotFound       = errors.New("user not found")
)

// dummyPasswordHash is compared against when the email is unknown, so a
// missing account costs the same bcrypt work as a wrong password.
const dummyPasswordHash = "$2a$12$R9h/cIPz0gi.URNNX3kh2OPST9/PgBkqquzi.Ss7KIUgO2t0jWMUW"

// ValidationError marks client input the service refused to process.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string { return e.Msg }

func validationErrorf(format string, args ...any) error {
	return &ValidationError{Msg: fmt.Sprintf(format, args...)}
}

// AccountLockedError carries how long the caller has to wait.
type AccountLockedError struct {
	Remaining time.Duration
}

func (e *AccountLockedError) Error() string {
	return fmt.Sprintf("account locked; try again in %d minutes", e.RemainingMinutes())
}

// RemainingMinutes rounds the wait up to whole minutes, minimum 1.
func (e *AccountLockedError) RemainingMinutes() int {
	m := int((e.Remaining + time.Minute - 1) / time.Minute)
	if m < 1 {
		m = 1
	}
	return m
}

// Identity is the authenticated caller derived from a verified access token.
type Identity struct {
	UserID    string
	OrgID     string
	Email     string
	Role      userdomain.Role
	SessionID string
}

// AuthResult bundles the authenticated user with a freshly issued token pair.
type AuthResult struct {
	User *userdomain.User
	Pair *security.TokenPair
}

// AuthService orchestrates registration, login, logout, refresh rotation,
// password reset, and email verification.
type AuthService struct {
	users    userrepo.Repository
	orgs     orgrepo.Repository
	sessions *sessionservice.Manager
	hasher   *security.Hasher
	tokens   *security.TokenProvider
	auditor  audit.AuditLogger
	sender   notify.TokenSender
	now      func() time.Time
}

// NewAuthService returns an AuthService with the given dependencies.
// auditor and sender may be nil; both are best-effort collaborators.
func NewAuthService(
	users userrepo.Repository,
	orgs orgrepo.Repository,
	sessions *sessionservice.Manager,
	hasher *security.Hasher,
	tokens *security.TokenProvider,
	auditor audit.AuditLogger,
	sender notify.TokenSender,
) *AuthService {
	return &AuthService{
		users:    users,
		orgs:     orgs,
		sessions: sessions,
		hasher:   hasher,
		tokens:   tokens,
		auditor:  auditor,
		sender:   sender,
		now:      time.Now,
	}
}

// WithNow overrides the clock. Test hook.
func (s *AuthService) WithNow(now func() time.Time) *AuthService {
	s.now = now
	return s
}

// Register creates an organization and its founding user, then logs the user
// straight in. Founders start as unverified REPs; the repository promotes
// the very first user in the system to a verified ADMIN inside the creation
// transaction.
func (s *AuthService) Register(ctx context.Context, orgName, email, password, firstName, lastName string, client sessiondomain.Client) (*AuthResult, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	orgName = strings.TrimSpace(orgName)
	if orgName == "" {
		return nil, validationErrorf("organization name is required")
	}
	if err := validateEmail(email); err != nil {
		return nil, err
	}
	if err := validatePassword(password); err != nil {
		return nil, err
	}
	hash, err := s.hasher.Hash([]byte(password))
	if err != nil {
		return nil, err
	}
	now := s.now().UTC()
	org := &orgdomain.Org{
		ID:        uuid.New().String(),
		Name:      orgName,
		CreatedAt: now,
	}
	user := &userdomain.User{
		ID:           uuid.New().String(),
		OrgID:        org.ID,
		Email:        email,
		PasswordHash: hash,
		FirstName:    strings.TrimSpace(firstName),
		LastName:     strings.TrimSpace(lastName),
		Role:         userdomain.RoleRep,
		Active:       true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := user.Validate(); err != nil {
		return nil, &ValidationError{Msg: err.Error()}
	}
	if err := s.users.CreateWithOrg(ctx, org, user); err != nil {
		return nil, err
	}

	pair, err := s.issuePair(ctx, user, client)
	if err != nil {
		return nil, err
	}
	if !user.EmailVerified {
		s.sendVerification(ctx, user)
	}
	s.audit(ctx, user.OrgID, user.ID, "register", "user", fmt.Sprintf(`{"org":%q}`, org.Name))
	return &AuthResult{User: user, Pair: pair}, nil
}

// Login authenticates with email and password. Failures are deliberately
// uniform except for lockout, which names the remaining wait.
func (s *AuthService) Login(ctx context.Context, email, password string, client sessiondomain.Client) (*AuthResult, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	if email == "" || password == "" {
		return nil, ErrInvalidCredentials
	}
	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if user == nil {
		// Burn the same bcrypt work as a real comparison.
		_ = s.hasher.Compare(dummyPasswordHash, []byte(password))
		s.audit(ctx, "", "", "login_failure", "session", fmt.Sprintf(`{"email":%q}`, email))
		return nil, ErrInvalidCredentials
	}

	now := s.now().UTC()
	lock := userdomain.LockoutFor(user)
	if lock.LockedAt(now) {
		s.audit(ctx, user.OrgID, user.ID, "login_locked", "session", "")
		return nil, &AccountLockedError{Remaining: lock.Remaining(now)}
	}
	if !user.Active {
		s.audit(ctx, user.OrgID, user.ID, "login_deactivated", "session", "")
		return nil, ErrAccountDeactivated
	}
	if err := s.hasher.Compare(user.PasswordHash, []byte(password)); err != nil {
		next := lock.AfterFailure(now)
		if uerr := s.users.UpdateLockout(ctx, user.ID, next.FailedAttempts, next.LockedUntil); uerr != nil {
			return nil, uerr
		}
		s.audit(ctx, user.OrgID, user.ID, "login_failure", "session", "")
		return nil, ErrInvalidCredentials
	}

	if err := s.users.RecordLogin(ctx, user.ID, now); err != nil {
		return nil, err
	}
	user.FailedLoginAttempts = 0
	user.LockedUntil = nil
	user.LastLoginAt = &now

	pair, err := s.issuePair(ctx, user, client)
	if err != nil {
		return nil, err
	}
	s.audit(ctx, user.OrgID, user.ID, "login_success", "session", fmt.Sprintf(`{"session_id":%q}`, pair.SessionID))
	return &AuthResult{User: user, Pair: pair}, nil
}

// Logout revokes sessions. With a refresh token it revokes that one session;
// token decoding is defensive and failures are swallowed, so logout always
// succeeds. Without one it revokes every session of the caller.
func (s *AuthService) Logout(ctx context.Context, ident *Identity, refreshToken string) error {
	if refreshToken != "" {
		claims, err := s.tokens.Verify(refreshToken, security.TokenTypeRefresh)
		if err != nil {
			return nil
		}
		if err := s.sessions.Revoke(ctx, claims.SessionID); err != nil {
			return err
		}
		s.audit(ctx, claims.OrgID, claims.Subject, "logout", "session", "")
		return nil
	}
	if ident == nil {
		return nil
	}
	if err := s.sessions.RevokeAllForUser(ctx, ident.UserID); err != nil {
		return err
	}
	s.audit(ctx, ident.OrgID, ident.UserID, "logout_all", "session", "")
	return nil
}

// Refresh rotates the presented refresh token and issues a new pair bound to
// the replacement session. A replayed or revoked token surfaces as
// ErrSessionNotFound from the manager; the handler treats all of these as a
// generic unauthorized.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string, client sessiondomain.Client) (*AuthResult, error) {
	claims, err := s.tokens.Verify(refreshToken, security.TokenTypeRefresh)
	if err != nil {
		return nil, ErrUnauthorized
	}
	user, err := s.users.GetByID(ctx, claims.Subject)
	if err != nil {
		return nil, err
	}
	if user == nil || !user.Active {
		return nil, ErrUnauthorized
	}
	next, err := s.sessions.Rotate(ctx, claims.SessionID, refreshToken, client)
	if err != nil {
		return nil, err
	}
	pair, err := s.tokens.IssuePair(next.ID, next.TokenFamilyID, subjectFor(user))
	if err != nil {
		return nil, err
	}
	if err := s.sessions.BindRefreshToken(ctx, next.ID, pair.RefreshToken); err != nil {
		return nil, err
	}
	s.audit(ctx, user.OrgID, user.ID, "token_refreshed", "session", fmt.Sprintf(`{"session_id":%q}`, next.ID))
	return &AuthResult{User: user, Pair: pair}, nil
}

// VerifyAccessToken validates the token and checks the session it references
// is still live. Every failure collapses to ErrUnauthorized.
func (s *AuthService) VerifyAccessToken(ctx context.Context, token string) (*Identity, error) {
	claims, err := s.tokens.Verify(token, security.TokenTypeAccess)
	if err != nil {
		return nil, ErrUnauthorized
	}
	live, err := s.sessions.IsLive(ctx, claims.SessionID)
	if err != nil {
		return nil, err
	}
	if !live {
		return nil, ErrUnauthorized
	}
	return &Identity{
		UserID:    claims.Subject,
		OrgID:     claims.OrgID,
		Email:     claims.Email,
		Role:      userdomain.Role(claims.Role),
		SessionID: claims.SessionID,
	}, nil
}

// ForgotPassword mints a password-reset token and hands it to the sender.
// The response never reveals whether the account exists.
func (s *AuthService) ForgotPassword(ctx context.Context, email string) error {
	email = strings.TrimSpace(strings.ToLower(email))
	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		return err
	}
	if user == nil || !user.Active {
		return nil
	}
	fp := security.PasswordHashFingerprint(user.PasswordHash)
	token, _, err := s.tokens.IssuePasswordReset(subjectFor(user), fp)
	if err != nil {
		return err
	}
	if s.sender != nil {
		if serr := s.sender.SendPasswordReset(ctx, user.Email, token); serr != nil {
			log.Printf("auth: password reset send failed for %s: %v", user.ID, serr)
		}
	}
	s.audit(ctx, user.OrgID, user.ID, "password_reset_requested", "user", "")
	return nil
}

// ResetPassword consumes a reset token. The token carries a fingerprint of
// the hash it was minted against, so it stops verifying once the password
// changes; replays therefore fail without any token bookkeeping. A successful
// reset clears lockout state and revokes every session of the user.
func (s *AuthService) ResetPassword(ctx context.Context, token, newPassword string) error {
	claims, err := s.tokens.Verify(token, security.TokenTypePasswordReset)
	if err != nil {
		return ErrUnauthorized
	}
	if err := validatePassword(newPassword); err != nil {
		return err
	}
	user, err := s.users.GetByID(ctx, claims.Subject)
	if err != nil {
		return err
	}
	if user == nil {
		return ErrUnauthorized
	}
	if claims.PasswordFingerprint != security.PasswordHashFingerprint(user.PasswordHash) {
		return ErrUnauthorized
	}
	hash, err := s.hasher.Hash([]byte(newPassword))
	if err != nil {
		return err
	}
	if err := s.users.UpdatePassword(ctx, user.ID, hash); err != nil {
		return err
	}
	if err := s.sessions.RevokeAllForUser(ctx, user.ID); err != nil {
		return err
	}
	s.audit(ctx, user.OrgID, user.ID, "password_reset", "user", "")
	return nil
}

// VerifyEmail consumes an email-verification token. Verifying an already
// verified account is a no-op.
func (s *AuthService) VerifyEmail(ctx context.Context, token string) error {
	claims, err := s.tokens.Verify(token, security.TokenTypeEmailVerification)
	if err != nil {
		return ErrUnauthorized
	}
	user, err := s.users.GetByID(ctx, claims.Subject)
	if err != nil {
		return err
	}
	if user == nil {
		return ErrUnauthorized
	}
	if user.EmailVerified {
		return nil
	}
	if err := s.users.SetEmailVerified(ctx, user.ID); err != nil {
		return err
	}
	s.audit(ctx, user.OrgID, user.ID, "email_verified", "user", "")
	return nil
}

// ResendVerification mints a fresh verification token. Like ForgotPassword it
// answers generically regardless of account state.
func (s *AuthService) ResendVerification(ctx context.Context, email string) error {
	email = strings.TrimSpace(strings.ToLower(email))
	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		return err
	}
	if user == nil || user.EmailVerified {
		return nil
	}
	s.sendVerification(ctx, user)
	s.audit(ctx, user.OrgID, user.ID, "verification_resent", "user", "")
	return nil
}

// Me returns the caller's user row and organization.
func (s *AuthService) Me(ctx context.Context, ident *Identity) (*userdomain.User, *orgdomain.Org, error) {
	user, err := s.users.GetByID(ctx, ident.UserID)
	if err != nil {
		return nil, nil, err
	}
	if user == nil {
		return nil, nil, ErrUserNotFound
	}
	org, err := s.orgs.GetByID(ctx, user.OrgID)
	if err != nil {
		return nil, nil, err
	}
	return user, org, nil
}

func (s *AuthService) issuePair(ctx context.Context, user *userdomain.User, client sessiondomain.Client) (*security.TokenPair, error) {
	sess, err := s.sessions.Create(ctx, user.ID, client)
	if err != nil {
		return nil, err
	}
	pair, err := s.tokens.IssuePair(sess.ID, sess.TokenFamilyID, subjectFor(user))
	if err != nil {
		return nil, err
	}
	if err := s.sessions.BindRefreshToken(ctx, sess.ID, pair.RefreshToken); err != nil {
		return nil, err
	}
	return pair, nil
}

func (s *AuthService) sendVerification(ctx context.Context, user *userdomain.User) {
	token, _, err := s.tokens.IssueEmailVerification(subjectFor(user))
	if err != nil {
		log.Printf("auth: issuing verification token failed for %s: %v", user.ID, err)
		return
	}
	if s.sender == nil {
		return
	}
	if err := s.sender.SendEmailVerification(ctx, user.Email, token); err != nil {
		log.Printf("auth: verification send failed for %s: %v", user.ID, err)
	}
}

func (s *AuthService) audit(ctx context.Context, orgID, userID, action, resource, metadata string) {
	if s.auditor == nil {
		return
	}
	s.auditor.LogEvent(ctx, orgID, userID, action, resource, metadata)
}

func subjectFor(u *userdomain.User) security.Subject {
	return security.Subject{
		UserID: u.ID,
		OrgID:  u.OrgID,
		Role:   string(u.Role),
		Email:  u.Email,
	}
}

func validateEmail(email string) error {
	if email == "" {
		return validationErrorf("email is required")
	}
	const simpleEmail = `^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`
	ok, _ := regexp.MatchString(simpleEmail, email)
	if !ok {
		return validationErrorf("invalid email format")
	}
	return nil
}

func validatePassword(password string) error {
	if len(password) < 8 {
		return validationErrorf("password must be at least 8 characters")
	}
	var hasUpper, hasLower, hasDigit bool
	for _, r := range password {
		switch {
		case r >= 'A' && r <= 'Z':
			hasUpper = true
		case r >= 'a' && r <= 'z':
			hasLower = true
		case r >= '0' && r <= '9':
			hasDigit = true
		}
	}
	if !hasUpper {
		return validationErrorf("password must contain at least one uppercase letter")
	}
	if !hasLower {
		return validationErrorf("password must contain at least one lowercase letter")
	}
	if !hasDigit {
		return validationErrorf("password must contain at least one digit")
	}
	return nil
}
