package domain

import (
	"errors"
	"time"
)

// User is the core user entity. Every user belongs to exactly one organization.
type User struct {
	ID                  string
	OrgID               string
	Email               string
	PasswordHash        string
	FirstName           string
	LastName            string
	Role                Role
	Active              bool
	EmailVerified       bool
	FailedLoginAttempts int
	LockedUntil         *time.Time
	LastLoginAt         *time.Time
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

type Role string

const (
	RoleAdmin    Role = "ADMIN"
	RoleManager  Role = "MANAGER"
	RoleRep      Role = "REP"
	RoleReadOnly Role = "READ_ONLY"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleManager, RoleRep, RoleReadOnly:
		return true
	}
	return false
}

// Validate validates the user for persistence. Returns an error describing the first validation failure.
func (u *User) Validate() error {
	if u.Email == "" {
		return errors.New("email is required")
	}
	if u.OrgID == "" {
		return errors.New("org id is required")
	}
	if u.PasswordHash == "" {
		return errors.New("password hash is required")
	}
	if u.Role == "" {
		u.Role = RoleRep
	}
	if !u.Role.Valid() {
		return errors.New("unknown role")
	}
	return nil
}

// FullName joins first and last name, tolerating either being empty.
func (u *User) FullName() string {
	if u.FirstName == "" {
		return u.LastName
	}
	if u.LastName == "" {
		return u.FirstName
	}
	return u.FirstName + " " + u.LastName
}
