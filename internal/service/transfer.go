package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gofrs/uuid/v5"
	"github.com/shopspring/decimal"

	"github.com/ndolgov/bankcards/internal/errs"
	"github.com/ndolgov/bankcards/internal/model"
	"github.com/ndolgov/bankcards/internal/repository"
)

// transferRetries bounds internal retries on concurrent-modification conflicts.
const transferRetries = 3

// TransferService moves funds between two cards of the same owner.
type TransferService interface {
	// Transfer atomically debits src and credits dst. The sum of the two
	// balances is unchanged; either both writes commit or neither.
	Transfer(ctx context.Context, actor model.Actor, srcID, dstID uuid.UUID, amount decimal.Decimal) error
}

type TransferServiceImpl struct {
	cards   repository.CardRepository
	backoff time.Duration
}

// NewTransferService constructs TransferService.
func NewTransferService(cards repository.CardRepository) *TransferServiceImpl {
	return &TransferServiceImpl{cards: cards, backoff: 10 * time.Millisecond}
}

// Transfer validates the request and delegates the atomic two-row
// update to the repository, retrying a bounded number of times when the
// transaction loses a concurrency race.
func (s *TransferServiceImpl) Transfer(ctx context.Context, actor model.Actor, srcID, dstID uuid.UUID, amount decimal.Decimal) error {
	if amount.Sign() <= 0 {
		return fmt.Errorf("%w: amount must be positive", errs.ErrInvalidAmount)
	}
	if srcID == dstID {
		// Match lookup semantics: an absent card is reported before the
		// same-card rejection.
		if _, err := s.cards.GetByID(ctx, srcID); err != nil {
			if errors.Is(err, errs.ErrNotFound) {
				return fmt.Errorf("source card: %w", errs.ErrNotFound)
			}
			return err
		}
		return fmt.Errorf("%w: cannot transfer to the same card", errs.ErrInvalidOperation)
	}

	var err error
	for attempt := 0; attempt < transferRetries; attempt++ {
		err = s.cards.Transfer(ctx, actor.ID, srcID, dstID, amount)
		if !errors.Is(err, errs.ErrConflict) {
			return err
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(s.backoff):
		}
	}
	return err
}
