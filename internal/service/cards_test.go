package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/gofrs/uuid/v5"
	"github.com/shopspring/decimal"

	"github.com/ndolgov/bankcards/internal/crypto/cardcipher"
	"github.com/ndolgov/bankcards/internal/errs"
	"github.com/ndolgov/bankcards/internal/model"
	"github.com/ndolgov/bankcards/internal/repository"
)

type statusCall struct {
	id       uuid.UUID
	from, to model.CardStatus
}

type fakeCardRepo struct {
	createIn  *model.Card
	createErr error

	getIn  uuid.UUID
	getOut *model.Card
	getErr error

	listOwnerIn      uuid.UUID
	listOwnerExclude bool
	listOwnerOut     []model.Card
	listOwnerErr     error

	listAllOut []model.Card
	listAllErr error

	setStatusCalls []statusCall
	setStatusErr   error

	softDeleteIn   uuid.UUID
	softDeleteFrom model.CardStatus
	softDeleteErr  error

	hardDeleteIn  uuid.UUID
	hardDeleteErr error

	expiredOut []uuid.UUID
	expiredErr error

	transferCalls int
	transferOwner uuid.UUID
	transferSrc   uuid.UUID
	transferDst   uuid.UUID
	transferAmt   decimal.Decimal
	transferErrs  []error // consumed per call; last entry repeats
}

var _ repository.CardRepository = (*fakeCardRepo)(nil)

func (f *fakeCardRepo) Create(_ context.Context, c *model.Card) error {
	f.createIn = c
	return f.createErr
}

func (f *fakeCardRepo) GetByID(_ context.Context, id uuid.UUID) (*model.Card, error) {
	f.getIn = id
	return f.getOut, f.getErr
}

func (f *fakeCardRepo) ListByOwner(_ context.Context, ownerID uuid.UUID, excludeDeleted bool, _ model.Page) ([]model.Card, error) {
	f.listOwnerIn, f.listOwnerExclude = ownerID, excludeDeleted
	return append([]model.Card(nil), f.listOwnerOut...), f.listOwnerErr
}

func (f *fakeCardRepo) ListAll(_ context.Context, _ model.Page) ([]model.Card, error) {
	return append([]model.Card(nil), f.listAllOut...), f.listAllErr
}

func (f *fakeCardRepo) SetStatusIfCurrent(_ context.Context, id uuid.UUID, from, to model.CardStatus) error {
	f.setStatusCalls = append(f.setStatusCalls, statusCall{id: id, from: from, to: to})
	return f.setStatusErr
}

func (f *fakeCardRepo) SoftDelete(_ context.Context, id uuid.UUID, from model.CardStatus) error {
	f.softDeleteIn, f.softDeleteFrom = id, from
	return f.softDeleteErr
}

func (f *fakeCardRepo) HardDelete(_ context.Context, id uuid.UUID) error {
	f.hardDeleteIn = id
	return f.hardDeleteErr
}

func (f *fakeCardRepo) ListExpiredIDs(_ context.Context, _ time.Time) ([]uuid.UUID, error) {
	return append([]uuid.UUID(nil), f.expiredOut...), f.expiredErr
}

func (f *fakeCardRepo) Transfer(_ context.Context, ownerID, srcID, dstID uuid.UUID, amount decimal.Decimal) error {
	f.transferCalls++
	f.transferOwner, f.transferSrc, f.transferDst, f.transferAmt = ownerID, srcID, dstID, amount
	if len(f.transferErrs) == 0 {
		return nil
	}
	err := f.transferErrs[0]
	if len(f.transferErrs) > 1 {
		f.transferErrs = f.transferErrs[1:]
	}
	return err
}

type userStatusCall struct {
	id       uuid.UUID
	from, to model.UserStatus
}

type fakeUserRepo struct {
	createIn  *model.User
	createErr error

	getByIDIn  uuid.UUID
	getByIDOut *model.User
	getByIDErr error

	getByNameIn  string
	getByNameOut *model.User
	getByNameErr error

	listOut []model.User
	listErr error

	setStatusCalls []userStatusCall
	setStatusErr   error

	setRefreshID    uuid.UUID
	setRefreshToken string
	setRefreshErr   error

	softDeleteIn  uuid.UUID
	softDeleteErr error
}

var _ repository.UserRepository = (*fakeUserRepo)(nil)

func (f *fakeUserRepo) Create(_ context.Context, u *model.User) error {
	f.createIn = u
	return f.createErr
}

func (f *fakeUserRepo) GetByID(_ context.Context, id uuid.UUID) (*model.User, error) {
	f.getByIDIn = id
	return f.getByIDOut, f.getByIDErr
}

func (f *fakeUserRepo) GetByUsername(_ context.Context, name string) (*model.User, error) {
	f.getByNameIn = name
	return f.getByNameOut, f.getByNameErr
}

func (f *fakeUserRepo) List(_ context.Context, _ model.Page) ([]model.User, error) {
	return append([]model.User(nil), f.listOut...), f.listErr
}

func (f *fakeUserRepo) SetStatusIfCurrent(_ context.Context, id uuid.UUID, from, to model.UserStatus) error {
	f.setStatusCalls = append(f.setStatusCalls, userStatusCall{id: id, from: from, to: to})
	return f.setStatusErr
}

func (f *fakeUserRepo) SetRefreshToken(_ context.Context, id uuid.UUID, token string) error {
	f.setRefreshID, f.setRefreshToken = id, token
	return f.setRefreshErr
}

func (f *fakeUserRepo) SoftDeleteWithCards(_ context.Context, id uuid.UUID) error {
	f.softDeleteIn = id
	return f.softDeleteErr
}

// fakeCodec prefixes plaintext so tests can see the codec was applied.
type fakeCodec struct{}

func (fakeCodec) Encode(pt string) (string, error) { return "enc:" + pt, nil }

func (fakeCodec) MaskEncoded(op string) (string, error) {
	if !strings.HasPrefix(op, "enc:") {
		return "", errors.New("bad opaque value")
	}
	return cardcipher.Mask(strings.TrimPrefix(op, "enc:")), nil
}

func mustUUID(t *testing.T) uuid.UUID {
	t.Helper()
	return uuid.Must(uuid.NewV4())
}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func activeCard(owner uuid.UUID, balance string) *model.Card {
	return &model.Card{
		ID:        uuid.Must(uuid.NewV4()),
		NumberEnc: "enc:4276550011223344",
		Expiry:    time.Date(2028, time.January, 31, 0, 0, 0, 0, time.UTC),
		Status:    model.CardActive,
		Balance:   dec(balance),
		OwnerID:   owner,
	}
}

func TestCardService_Issue(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	repo := &fakeCardRepo{}
	s := NewCardService(repo, &fakeUserRepo{}, fakeCodec{})
	s.now = func() time.Time { return time.Date(2025, time.March, 10, 12, 0, 0, 0, time.UTC) }

	owner := mustUUID(t)
	v, err := s.Issue(ctx, model.Actor{ID: owner, Role: model.RoleUser})
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	c := repo.createIn
	if c == nil {
		t.Fatalf("card not persisted")
	}
	if c.Status != model.CardActive {
		t.Fatalf("status = %s, want ACTIVE", c.Status)
	}
	if !c.Balance.Equal(dec("200.00")) {
		t.Fatalf("balance = %s, want 200.00", c.Balance)
	}
	if c.OwnerID != owner {
		t.Fatalf("owner mismatch")
	}
	wantExpiry := time.Date(2028, time.March, 31, 0, 0, 0, 0, time.UTC)
	if !c.Expiry.Equal(wantExpiry) {
		t.Fatalf("expiry = %v, want %v", c.Expiry, wantExpiry)
	}
	if !strings.HasPrefix(c.NumberEnc, "enc:") {
		t.Fatalf("number stored unencoded: %q", c.NumberEnc)
	}
	if !strings.HasPrefix(v.MaskedNumber, "**** **** **** ") {
		t.Fatalf("view number not masked: %q", v.MaskedNumber)
	}
	if strings.Contains(v.MaskedNumber, c.NumberEnc) {
		t.Fatalf("view leaks encoded number")
	}
}

func TestCardService_Block_OwnerThenRepeat(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	owner := mustUUID(t)
	card := activeCard(owner, "200.00")
	repo := &fakeCardRepo{getOut: card}
	s := NewCardService(repo, &fakeUserRepo{}, fakeCodec{})
	actor := model.Actor{ID: owner, Role: model.RoleUser}

	v, err := s.Block(ctx, actor, card.ID)
	if err != nil {
		t.Fatalf("Block: %v", err)
	}
	if v.Status != model.CardBlocked {
		t.Fatalf("view status = %s, want BLOCKED", v.Status)
	}
	if len(repo.setStatusCalls) != 1 {
		t.Fatalf("want 1 status write, got %d", len(repo.setStatusCalls))
	}
	call := repo.setStatusCalls[0]
	if call.from != model.CardActive || call.to != model.CardBlocked {
		t.Fatalf("unexpected transition: %+v", call)
	}

	// A second block finds the card BLOCKED and must be rejected.
	blocked := *card
	blocked.Status = model.CardBlocked
	repo.getOut = &blocked
	if _, err := s.Block(ctx, actor, card.ID); !errors.Is(err, errs.ErrInvalidState) {
		t.Fatalf("second block: want ErrInvalidState, got %v", err)
	}
	if len(repo.setStatusCalls) != 1 {
		t.Fatalf("rejected block must not write")
	}
}

func TestCardService_Block_Authorization(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	owner := mustUUID(t)
	card := activeCard(owner, "50.00")
	repo := &fakeCardRepo{getOut: card}
	s := NewCardService(repo, &fakeUserRepo{}, fakeCodec{})

	stranger := model.Actor{ID: mustUUID(t), Role: model.RoleUser}
	if _, err := s.Block(ctx, stranger, card.ID); !errors.Is(err, errs.ErrForbidden) {
		t.Fatalf("stranger block: want ErrForbidden, got %v", err)
	}

	admin := model.Actor{ID: mustUUID(t), Role: model.RoleAdmin}
	if _, err := s.Block(ctx, admin, card.ID); err != nil {
		t.Fatalf("admin block: %v", err)
	}
}

func TestCardService_Block_TerminalStates(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	owner := mustUUID(t)
	actor := model.Actor{ID: owner, Role: model.RoleUser}

	for _, st := range []model.CardStatus{model.CardExpired, model.CardDeleted} {
		card := activeCard(owner, "0.00")
		card.Status = st
		repo := &fakeCardRepo{getOut: card}
		s := NewCardService(repo, &fakeUserRepo{}, fakeCodec{})
		if _, err := s.Block(ctx, actor, card.ID); !errors.Is(err, errs.ErrInvalidState) {
			t.Fatalf("block %s card: want ErrInvalidState, got %v", st, err)
		}
		if len(repo.setStatusCalls) != 0 {
			t.Fatalf("terminal card must not be written")
		}
	}
}

func TestCardService_Activate(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	owner := mustUUID(t)
	admin := model.Actor{ID: mustUUID(t), Role: model.RoleAdmin}

	card := activeCard(owner, "10.00")
	card.Status = model.CardBlocked
	users := &fakeUserRepo{getByIDOut: &model.User{ID: owner, Status: model.UserActive}}
	repo := &fakeCardRepo{getOut: card}
	s := NewCardService(repo, users, fakeCodec{})

	// non-admin cannot activate
	if _, err := s.Activate(ctx, model.Actor{ID: owner, Role: model.RoleUser}, card.ID); !errors.Is(err, errs.ErrForbidden) {
		t.Fatalf("owner activate: want ErrForbidden, got %v", err)
	}

	v, err := s.Activate(ctx, admin, card.ID)
	if err != nil {
		t.Fatalf("Activate: %v", err)
	}
	if v.Status != model.CardActive {
		t.Fatalf("view status = %s, want ACTIVE", v.Status)
	}

	// blocked owner keeps the card blocked
	users.getByIDOut = &model.User{ID: owner, Status: model.UserBlocked}
	if _, err := s.Activate(ctx, admin, card.ID); !errors.Is(err, errs.ErrInvalidState) {
		t.Fatalf("blocked owner: want ErrInvalidState, got %v", err)
	}

	// already active
	users.getByIDOut = &model.User{ID: owner, Status: model.UserActive}
	active := activeCard(owner, "10.00")
	repo.getOut = active
	if _, err := s.Activate(ctx, admin, active.ID); !errors.Is(err, errs.ErrInvalidState) {
		t.Fatalf("already active: want ErrInvalidState, got %v", err)
	}
}

func TestCardService_Delete_BalanceGuard(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	owner := mustUUID(t)
	card := activeCard(owner, "10.00")
	repo := &fakeCardRepo{getOut: card}
	s := NewCardService(repo, &fakeUserRepo{}, fakeCodec{})

	err := s.Delete(ctx, model.Actor{ID: owner, Role: model.RoleUser}, card.ID)
	if !errors.Is(err, errs.ErrInvalidState) {
		t.Fatalf("non-zero balance: want ErrInvalidState, got %v", err)
	}
	// the admin path is guarded the same way
	err = s.Delete(ctx, model.Actor{ID: mustUUID(t), Role: model.RoleAdmin}, card.ID)
	if !errors.Is(err, errs.ErrInvalidState) {
		t.Fatalf("admin non-zero balance: want ErrInvalidState, got %v", err)
	}
	if repo.softDeleteIn != uuid.Nil || repo.hardDeleteIn != uuid.Nil {
		t.Fatalf("guarded delete must not write")
	}
}

func TestCardService_Delete_OwnerSoftAdminHard(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	owner := mustUUID(t)
	card := activeCard(owner, "0.00")
	repo := &fakeCardRepo{getOut: card}
	s := NewCardService(repo, &fakeUserRepo{}, fakeCodec{})

	if err := s.Delete(ctx, model.Actor{ID: owner, Role: model.RoleUser}, card.ID); err != nil {
		t.Fatalf("owner delete: %v", err)
	}
	if repo.softDeleteIn != card.ID || repo.softDeleteFrom != model.CardActive {
		t.Fatalf("owner delete must soft-delete from the read status, got (%s, %s)", repo.softDeleteIn, repo.softDeleteFrom)
	}
	if repo.hardDeleteIn != uuid.Nil {
		t.Fatalf("owner delete must not hard-delete")
	}

	repo2 := &fakeCardRepo{getOut: card}
	s2 := NewCardService(repo2, &fakeUserRepo{}, fakeCodec{})
	if err := s2.Delete(ctx, model.Actor{ID: mustUUID(t), Role: model.RoleAdmin}, card.ID); err != nil {
		t.Fatalf("admin delete: %v", err)
	}
	if repo2.hardDeleteIn != card.ID {
		t.Fatalf("admin delete must hard-delete")
	}
	if repo2.softDeleteIn != uuid.Nil {
		t.Fatalf("admin delete must not soft-delete")
	}
}

func TestCardService_Delete_RacingCreditSurfacesConflict(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	owner := mustUUID(t)
	// the balance read zero, but a transfer credits the card before the
	// delete statement runs; the repository refuses and the card stays
	card := activeCard(owner, "0.00")
	repo := &fakeCardRepo{getOut: card, softDeleteErr: errs.ErrConflict}
	s := NewCardService(repo, &fakeUserRepo{}, fakeCodec{})

	err := s.Delete(ctx, model.Actor{ID: owner, Role: model.RoleUser}, card.ID)
	if !errors.Is(err, errs.ErrConflict) {
		t.Fatalf("raced delete: want ErrConflict, got %v", err)
	}
	if len(repo.setStatusCalls) != 0 {
		t.Fatalf("delete must never use an unguarded status write")
	}
}

func TestCardService_Get_Scoping(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	owner := mustUUID(t)
	card := activeCard(owner, "5.00")
	repo := &fakeCardRepo{getOut: card}
	s := NewCardService(repo, &fakeUserRepo{}, fakeCodec{})

	if _, err := s.Get(ctx, model.Actor{ID: mustUUID(t), Role: model.RoleUser}, card.ID); !errors.Is(err, errs.ErrForbidden) {
		t.Fatalf("stranger get: want ErrForbidden, got %v", err)
	}

	deleted := *card
	deleted.Status = model.CardDeleted
	repo.getOut = &deleted
	if _, err := s.Get(ctx, model.Actor{ID: owner, Role: model.RoleUser}, card.ID); !errors.Is(err, errs.ErrNotFound) {
		t.Fatalf("deleted card for owner: want ErrNotFound, got %v", err)
	}
	// admins still see it
	if _, err := s.Get(ctx, model.Actor{ID: mustUUID(t), Role: model.RoleAdmin}, card.ID); err != nil {
		t.Fatalf("admin get deleted: %v", err)
	}
}

func TestCardService_Listings(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	owner := mustUUID(t)
	repo := &fakeCardRepo{listOwnerOut: []model.Card{*activeCard(owner, "1.00")}}
	users := &fakeUserRepo{getByIDOut: &model.User{ID: owner, Status: model.UserActive}}
	s := NewCardService(repo, users, fakeCodec{})

	out, err := s.ListMine(ctx, model.Actor{ID: owner, Role: model.RoleUser}, model.Page{})
	if err != nil || len(out) != 1 {
		t.Fatalf("ListMine: out=%v err=%v", out, err)
	}
	if !repo.listOwnerExclude {
		t.Fatalf("ListMine must exclude deleted cards")
	}

	if _, err := s.ListByOwner(ctx, model.Actor{ID: owner, Role: model.RoleUser}, owner, model.Page{}); !errors.Is(err, errs.ErrForbidden) {
		t.Fatalf("non-admin ListByOwner: want ErrForbidden, got %v", err)
	}
	if _, err := s.ListAll(ctx, model.Actor{ID: owner, Role: model.RoleUser}, model.Page{}); !errors.Is(err, errs.ErrForbidden) {
		t.Fatalf("non-admin ListAll: want ErrForbidden, got %v", err)
	}

	admin := model.Actor{ID: mustUUID(t), Role: model.RoleAdmin}
	if _, err := s.ListByOwner(ctx, admin, owner, model.Page{}); err != nil {
		t.Fatalf("admin ListByOwner: %v", err)
	}
	if repo.listOwnerExclude {
		t.Fatalf("admin ListByOwner must include deleted cards")
	}
}
