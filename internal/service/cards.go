package service

import (
	"context"
	"fmt"
	"time"

	"github.com/gofrs/uuid/v5"
	"github.com/shopspring/decimal"

	"github.com/ndolgov/bankcards/internal/cardgen"
	"github.com/ndolgov/bankcards/internal/errs"
	"github.com/ndolgov/bankcards/internal/model"
	"github.com/ndolgov/bankcards/internal/repository"
)

// CardCodec encodes card numbers at rest and masks them for display.
type CardCodec interface {
	Encode(plaintext string) (string, error)
	MaskEncoded(opaque string) (string, error)
}

// startingBalance is credited to every newly issued card.
var startingBalance = decimal.RequireFromString("200.00")

// CardService manages the card lifecycle and owner-scoped reads.
type CardService interface {
	// Issue creates a new ACTIVE card for the actor.
	Issue(ctx context.Context, actor model.Actor) (model.CardView, error)
	// Get returns a card by id; owners see only their own non-deleted cards.
	Get(ctx context.Context, actor model.Actor, cardID uuid.UUID) (model.CardView, error)
	// Block moves an ACTIVE card to BLOCKED (owner or admin).
	Block(ctx context.Context, actor model.Actor, cardID uuid.UUID) (model.CardView, error)
	// Activate moves a BLOCKED card back to ACTIVE (admin only); refused
	// while the owning user is blocked.
	Activate(ctx context.Context, actor model.Actor, cardID uuid.UUID) (model.CardView, error)
	// Delete removes a zero-balance card: owners soft-delete, admins
	// remove the row.
	Delete(ctx context.Context, actor model.Actor, cardID uuid.UUID) error
	// ListMine returns the actor's cards excluding deleted ones.
	ListMine(ctx context.Context, actor model.Actor, p model.Page) ([]model.CardView, error)
	// ListByOwner returns any user's cards, deleted included (admin only).
	ListByOwner(ctx context.Context, actor model.Actor, ownerID uuid.UUID, p model.Page) ([]model.CardView, error)
	// ListAll returns every card (admin only).
	ListAll(ctx context.Context, actor model.Actor, p model.Page) ([]model.CardView, error)
}

type CardServiceImpl struct {
	cards repository.CardRepository
	users repository.UserRepository
	codec CardCodec
	now   func() time.Time
}

// NewCardService constructs CardService with required dependencies.
func NewCardService(cards repository.CardRepository, users repository.UserRepository, codec CardCodec) *CardServiceImpl {
	return &CardServiceImpl{cards: cards, users: users, codec: codec, now: time.Now}
}

// Issue creates a card with a generated number, a three-year expiry
// rounded to the end of the month, and the fixed starting balance.
func (s *CardServiceImpl) Issue(ctx context.Context, actor model.Actor) (model.CardView, error) {
	number, err := cardgen.Number()
	if err != nil {
		return model.CardView{}, err
	}
	enc, err := s.codec.Encode(number)
	if err != nil {
		return model.CardView{}, err
	}
	id, err := uuid.NewV4()
	if err != nil {
		return model.CardView{}, err
	}

	card := &model.Card{
		ID:        id,
		NumberEnc: enc,
		Expiry:    cardgen.ExpiryDate(s.now()),
		Status:    model.CardActive,
		Balance:   startingBalance,
		OwnerID:   actor.ID,
	}
	if err := s.cards.Create(ctx, card); err != nil {
		return model.CardView{}, err
	}
	return s.view(card)
}

// Get returns a single card. Deleted cards read as absent for owners;
// admins see every card.
func (s *CardServiceImpl) Get(ctx context.Context, actor model.Actor, cardID uuid.UUID) (model.CardView, error) {
	card, err := s.cards.GetByID(ctx, cardID)
	if err != nil {
		return model.CardView{}, err
	}
	if !actor.IsAdmin() {
		if card.Status == model.CardDeleted {
			return model.CardView{}, errs.ErrNotFound
		}
		if card.OwnerID != actor.ID {
			return model.CardView{}, errs.ErrForbidden
		}
	}
	return s.view(card)
}

// Block transitions ACTIVE -> BLOCKED for the owner or an admin.
func (s *CardServiceImpl) Block(ctx context.Context, actor model.Actor, cardID uuid.UUID) (model.CardView, error) {
	card, err := s.cards.GetByID(ctx, cardID)
	if err != nil {
		return model.CardView{}, err
	}
	if !actor.IsAdmin() && card.OwnerID != actor.ID {
		return model.CardView{}, errs.ErrForbidden
	}
	if card.Status != model.CardActive {
		return model.CardView{}, fmt.Errorf("%w: card is %s", errs.ErrInvalidState, card.Status)
	}
	if err := s.cards.SetStatusIfCurrent(ctx, cardID, model.CardActive, model.CardBlocked); err != nil {
		return model.CardView{}, err
	}
	card.Status = model.CardBlocked
	return s.view(card)
}

// Activate transitions BLOCKED -> ACTIVE. Admin only; a card whose
// owner is blocked stays blocked.
func (s *CardServiceImpl) Activate(ctx context.Context, actor model.Actor, cardID uuid.UUID) (model.CardView, error) {
	if !actor.IsAdmin() {
		return model.CardView{}, errs.ErrForbidden
	}
	card, err := s.cards.GetByID(ctx, cardID)
	if err != nil {
		return model.CardView{}, err
	}
	owner, err := s.users.GetByID(ctx, card.OwnerID)
	if err != nil {
		return model.CardView{}, err
	}
	if owner.Status == model.UserBlocked {
		return model.CardView{}, fmt.Errorf("%w: owner is blocked", errs.ErrInvalidState)
	}
	if card.Status != model.CardBlocked {
		return model.CardView{}, fmt.Errorf("%w: card is %s", errs.ErrInvalidState, card.Status)
	}
	if err := s.cards.SetStatusIfCurrent(ctx, cardID, model.CardBlocked, model.CardActive); err != nil {
		return model.CardView{}, err
	}
	card.Status = model.CardActive
	return s.view(card)
}

// Delete removes a card with a zero balance. The owner path soft-deletes
// (status DELETED); the admin path removes the row.
func (s *CardServiceImpl) Delete(ctx context.Context, actor model.Actor, cardID uuid.UUID) error {
	card, err := s.cards.GetByID(ctx, cardID)
	if err != nil {
		return err
	}
	if !actor.IsAdmin() && card.OwnerID != actor.ID {
		return errs.ErrForbidden
	}
	if !card.Balance.IsZero() {
		return fmt.Errorf("%w: balance is not zero", errs.ErrInvalidState)
	}

	if actor.IsAdmin() {
		return s.cards.HardDelete(ctx, cardID)
	}
	if !card.Status.CanTransitionTo(model.CardDeleted) {
		return fmt.Errorf("%w: card is %s", errs.ErrInvalidState, card.Status)
	}
	return s.cards.SoftDelete(ctx, cardID, card.Status)
}

// ListMine returns the actor's cards excluding deleted ones, in creation order.
func (s *CardServiceImpl) ListMine(ctx context.Context, actor model.Actor, p model.Page) ([]model.CardView, error) {
	cards, err := s.cards.ListByOwner(ctx, actor.ID, true, p)
	if err != nil {
		return nil, err
	}
	return s.views(cards)
}

// ListByOwner returns a user's cards, deleted included. Admin only.
func (s *CardServiceImpl) ListByOwner(ctx context.Context, actor model.Actor, ownerID uuid.UUID, p model.Page) ([]model.CardView, error) {
	if !actor.IsAdmin() {
		return nil, errs.ErrForbidden
	}
	if _, err := s.users.GetByID(ctx, ownerID); err != nil {
		return nil, err
	}
	cards, err := s.cards.ListByOwner(ctx, ownerID, false, p)
	if err != nil {
		return nil, err
	}
	return s.views(cards)
}

// ListAll returns every card. Admin only.
func (s *CardServiceImpl) ListAll(ctx context.Context, actor model.Actor, p model.Page) ([]model.CardView, error) {
	if !actor.IsAdmin() {
		return nil, errs.ErrForbidden
	}
	cards, err := s.cards.ListAll(ctx, p)
	if err != nil {
		return nil, err
	}
	return s.views(cards)
}

func (s *CardServiceImpl) view(card *model.Card) (model.CardView, error) {
	masked, err := s.codec.MaskEncoded(card.NumberEnc)
	if err != nil {
		return model.CardView{}, fmt.Errorf("mask card number: %w", err)
	}
	return model.CardView{
		ID:           card.ID,
		MaskedNumber: masked,
		Expiry:       card.Expiry,
		Status:       card.Status,
		Balance:      card.Balance,
		OwnerID:      card.OwnerID,
	}, nil
}

func (s *CardServiceImpl) views(cards []model.Card) ([]model.CardView, error) {
	out := make([]model.CardView, 0, len(cards))
	for i := range cards {
		v, err := s.view(&cards[i])
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}
