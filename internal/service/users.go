package service

import (
	"context"
	"fmt"

	"github.com/gofrs/uuid/v5"

	"github.com/ndolgov/bankcards/internal/errs"
	"github.com/ndolgov/bankcards/internal/model"
	"github.com/ndolgov/bankcards/internal/repository"
)

// UserService manages the user lifecycle. Every mutation is admin-only
// and refuses to target the acting admin's own account.
type UserService interface {
	// Block moves an ACTIVE user to BLOCKED.
	Block(ctx context.Context, actor model.Actor, userID uuid.UUID) (*model.User, error)
	// Activate moves a BLOCKED user back to ACTIVE.
	Activate(ctx context.Context, actor model.Actor, userID uuid.UUID) (*model.User, error)
	// Delete soft-deletes the user, cascading DELETED onto every owned
	// card first.
	Delete(ctx context.Context, actor model.Actor, userID uuid.UUID) error
	// List returns users in creation order (admin only).
	List(ctx context.Context, actor model.Actor, p model.Page) ([]model.User, error)
}

type UserServiceImpl struct {
	users repository.UserRepository
}

// NewUserService constructs UserService.
func NewUserService(users repository.UserRepository) *UserServiceImpl {
	return &UserServiceImpl{users: users}
}

// guard enforces the admin role and the self-protection rule.
func (s *UserServiceImpl) guard(actor model.Actor, target uuid.UUID) error {
	if !actor.IsAdmin() {
		return errs.ErrForbidden
	}
	if actor.ID == target {
		return fmt.Errorf("%w: cannot change your own account", errs.ErrForbidden)
	}
	return nil
}

// Block transitions ACTIVE -> BLOCKED.
func (s *UserServiceImpl) Block(ctx context.Context, actor model.Actor, userID uuid.UUID) (*model.User, error) {
	if err := s.guard(actor, userID); err != nil {
		return nil, err
	}
	u, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if u.Status != model.UserActive {
		return nil, fmt.Errorf("%w: user is %s", errs.ErrInvalidState, u.Status)
	}
	if err := s.users.SetStatusIfCurrent(ctx, userID, model.UserActive, model.UserBlocked); err != nil {
		return nil, err
	}
	u.Status = model.UserBlocked
	return u, nil
}

// Activate transitions BLOCKED -> ACTIVE.
func (s *UserServiceImpl) Activate(ctx context.Context, actor model.Actor, userID uuid.UUID) (*model.User, error) {
	if err := s.guard(actor, userID); err != nil {
		return nil, err
	}
	u, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if u.Status != model.UserBlocked {
		return nil, fmt.Errorf("%w: user is %s", errs.ErrInvalidState, u.Status)
	}
	if err := s.users.SetStatusIfCurrent(ctx, userID, model.UserBlocked, model.UserActive); err != nil {
		return nil, err
	}
	u.Status = model.UserActive
	return u, nil
}

// Delete soft-deletes a user. The repository writes the card cascade
// and the user status in one transaction, cards first, so no reader
// sees a deleted user with a live card. This is an administrative
// force-delete: card balances are not checked.
func (s *UserServiceImpl) Delete(ctx context.Context, actor model.Actor, userID uuid.UUID) error {
	if err := s.guard(actor, userID); err != nil {
		return err
	}
	return s.users.SoftDeleteWithCards(ctx, userID)
}

// List returns users in creation order.
func (s *UserServiceImpl) List(ctx context.Context, actor model.Actor, p model.Page) ([]model.User, error) {
	if !actor.IsAdmin() {
		return nil, errs.ErrForbidden
	}
	return s.users.List(ctx, p)
}
