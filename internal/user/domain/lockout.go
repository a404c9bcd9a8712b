package domain

import "time"

const (
	// MaxFailedAttempts is the number of consecutive failed logins that
	// triggers a lockout.
	MaxFailedAttempts = 5

	// LockoutDuration is how long an account stays locked after the
	// threshold is crossed.
	LockoutDuration = 30 * time.Minute
)

// Lockout is the brute-force state carried on a user row. Transitions are
// pure so they can be computed before any write happens.
type Lockout struct {
	FailedAttempts int
	LockedUntil    *time.Time
}

// LockoutFor extracts the lockout state from a user.
func LockoutFor(u *User) Lockout {
	return Lockout{FailedAttempts: u.FailedLoginAttempts, LockedUntil: u.LockedUntil}
}

// LockedAt reports whether the account is locked at the given instant.
// An elapsed lock window counts as unlocked even before any write clears it.
func (l Lockout) LockedAt(now time.Time) bool {
	return l.LockedUntil != nil && now.Before(*l.LockedUntil)
}

// Remaining returns how much of the lock window is left at now.
// Zero when not locked.
func (l Lockout) Remaining(now time.Time) time.Duration {
	if !l.LockedAt(now) {
		return 0
	}
	return l.LockedUntil.Sub(now)
}

// AfterFailure returns the state following one more failed login at now.
// Only a successful login clears the counter, so a wrong password right
// after a lock window elapses crosses the threshold again and relocks.
func (l Lockout) AfterFailure(now time.Time) Lockout {
	next := Lockout{FailedAttempts: l.FailedAttempts + 1}
	if next.FailedAttempts >= MaxFailedAttempts {
		until := now.Add(LockoutDuration)
		next.LockedUntil = &until
	}
	return next
}

// AfterSuccess returns the cleared state following a successful login.
func (l Lockout) AfterSuccess() Lockout {
	return Lockout{}
}
