package repository

import (
	"context"

	"corecrm/backend/internal/organization/domain"
)

// Repository defines persistence for organizations. Organizations are
// created alongside their founding user; see the user repository.
type Repository interface {
	GetByID(ctx context.Context, id string) (*domain.Org, error)
}
