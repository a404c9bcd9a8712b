package domain

import (
	"errors"
	"time"
)

// Org represents an organization/tenant. All CRM records hang off one org.
type Org struct {
	ID        string
	Name      string
	CreatedAt time.Time
}

// Validate validates the organization for persistence. Returns an error describing the first validation failure.
func (o *Org) Validate() error {
	if o.Name == "" {
		return errors.New("name is required")
	}
	return nil
}
