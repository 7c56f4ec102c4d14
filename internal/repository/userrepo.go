// Package repository declares storage interfaces consumed by services.
package repository

import (
	"context"

	"github.com/gofrs/uuid/v5"

	"github.com/ndolgov/bankcards/internal/model"
)

// UserRepository persists user accounts.
type UserRepository interface {
	// Create inserts a new user; errs.ErrAlreadyExists if the username is taken.
	Create(ctx context.Context, u *model.User) error
	// GetByID selects a user by ID; errs.ErrNotFound if absent.
	GetByID(ctx context.Context, id uuid.UUID) (*model.User, error)
	// GetByUsername selects a user by username; errs.ErrNotFound if absent.
	GetByUsername(ctx context.Context, username string) (*model.User, error)
	// List returns users in creation order, paginated.
	List(ctx context.Context, p model.Page) ([]model.User, error)
	// SetStatusIfCurrent atomically moves status from -> to.
	// errs.ErrNotFound if the row is gone, errs.ErrConflict if the
	// status moved concurrently.
	SetStatusIfCurrent(ctx context.Context, id uuid.UUID, from, to model.UserStatus) error
	// SetRefreshToken replaces the stored refresh credential.
	SetRefreshToken(ctx context.Context, id uuid.UUID, token string) error
	// SoftDeleteWithCards marks every owned card DELETED and then the
	// user DELETED, in one transaction. errs.ErrNotFound if the user is
	// absent, errs.ErrInvalidState if already deleted.
	SoftDeleteWithCards(ctx context.Context, id uuid.UUID) error
}
