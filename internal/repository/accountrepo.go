// Package repository defines storage interfaces implemented by concrete backends.
package repository

import (
	"context"

	"github.com/gofrs/uuid/v5"

	"filedepot/internal/model"
)

// AccountRepository provides access to stored accounts.
type AccountRepository interface {
	// Create inserts a new account.
	Create(ctx context.Context, a *model.Account) error
	// GetByName loads an account by its unique name.
	GetByName(ctx context.Context, name string) (*model.Account, error)
	// GetByID loads an account by ID.
	GetByID(ctx context.Context, id uuid.UUID) (*model.Account, error)
	// SetAttemptsLeft stores the remaining failed-login allowance.
	SetAttemptsLeft(ctx context.Context, id uuid.UUID, attempts int) error
	// Lock marks the account locked and zeroes its allowance.
	Lock(ctx context.Context, id uuid.UUID) error
	// GetAccessLevel returns the account's privilege level.
	GetAccessLevel(ctx context.Context, id uuid.UUID) (int, error)
}
