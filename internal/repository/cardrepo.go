package repository

import (
	"context"
	"time"

	"github.com/gofrs/uuid/v5"
	"github.com/shopspring/decimal"

	"github.com/ndolgov/bankcards/internal/model"
)

// CardRepository persists cards and executes the atomic transfer.
type CardRepository interface {
	// Create inserts a new card row.
	Create(ctx context.Context, c *model.Card) error
	// GetByID selects a card by ID; errs.ErrNotFound if absent.
	GetByID(ctx context.Context, id uuid.UUID) (*model.Card, error)
	// ListByOwner returns the owner's cards in creation order,
	// optionally excluding DELETED ones, paginated.
	ListByOwner(ctx context.Context, ownerID uuid.UUID, excludeDeleted bool, p model.Page) ([]model.Card, error)
	// ListAll returns all cards in creation order, paginated.
	ListAll(ctx context.Context, p model.Page) ([]model.Card, error)
	// SetStatusIfCurrent atomically moves status from -> to.
	// errs.ErrNotFound if the row is gone, errs.ErrConflict if the
	// status moved concurrently.
	SetStatusIfCurrent(ctx context.Context, id uuid.UUID, from, to model.CardStatus) error
	// SoftDelete moves the card from the given status to DELETED,
	// refusing a non-zero balance; both are re-checked in the statement.
	// errs.ErrNotFound if the row is gone, errs.ErrConflict if the
	// status moved or a credit landed since they were read.
	SoftDelete(ctx context.Context, id uuid.UUID, from model.CardStatus) error
	// HardDelete removes the row, refusing a non-zero balance.
	// errs.ErrNotFound if absent, errs.ErrConflict if the balance
	// became non-zero since it was checked.
	HardDelete(ctx context.Context, id uuid.UUID) error
	// ListExpiredIDs returns ids of ACTIVE cards whose expiry date is
	// strictly before the given day.
	ListExpiredIDs(ctx context.Context, before time.Time) ([]uuid.UUID, error)
	// Transfer atomically debits src and credits dst. Both rows are
	// locked in a fixed global order; ownership, status and balance are
	// re-checked under the locks. Classified errors: errs.ErrNotFound
	// (wrapped to tell source from destination), errs.ErrForbidden,
	// errs.ErrInvalidState, errs.ErrInsufficientFunds, errs.ErrConflict.
	Transfer(ctx context.Context, ownerID, srcID, dstID uuid.UUID, amount decimal.Decimal) error
}
