package postgres

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gofrs/uuid/v5"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/ndolgov/bankcards/internal/errs"
	"github.com/ndolgov/bankcards/internal/model"
)

// CardRepo implements CardRepository using PostgreSQL.
type CardRepo struct{ db *DB }

// NewCardRepo constructs a card repository.
func NewCardRepo(db *DB) *CardRepo { return &CardRepo{db: db} }

const cardColumns = `id, number_enc, expiry_date, status, balance, user_id, created_at`

func scanCardRow(row pgx.Row) (*model.Card, error) {
	var (
		c      model.Card
		status string
	)
	if err := row.Scan(&c.ID, &c.NumberEnc, &c.Expiry, &status, &c.Balance, &c.OwnerID, &c.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, errs.ErrNotFound
		}
		return nil, err
	}
	c.Status = model.CardStatus(status)
	return &c, nil
}

// Create inserts a new card row.
func (r *CardRepo) Create(ctx context.Context, c *model.Card) error {
	const q = `
INSERT INTO cards (id, number_enc, expiry_date, status, balance, user_id)
VALUES ($1, $2, $3, $4, $5, $6)`
	_, err := r.db.Pool.Exec(ctx, q, c.ID, c.NumberEnc, c.Expiry, string(c.Status), c.Balance, c.OwnerID)
	if isUniqueViolation(err) {
		return errs.ErrAlreadyExists
	}
	return err
}

// GetByID selects a card by ID.
func (r *CardRepo) GetByID(ctx context.Context, id uuid.UUID) (*model.Card, error) {
	const q = `SELECT ` + cardColumns + ` FROM cards WHERE id=$1`
	return scanCardRow(r.db.Pool.QueryRow(ctx, q, id))
}

// ListByOwner returns the owner's cards in creation order.
func (r *CardRepo) ListByOwner(ctx context.Context, ownerID uuid.UUID, excludeDeleted bool, p model.Page) ([]model.Card, error) {
	p = p.Normalize()
	q := `
SELECT ` + cardColumns + `
FROM cards
WHERE user_id=$1
ORDER BY created_at, id
LIMIT $2 OFFSET $3`
	if excludeDeleted {
		q = `
SELECT ` + cardColumns + `
FROM cards
WHERE user_id=$1 AND status <> 'DELETED'
ORDER BY created_at, id
LIMIT $2 OFFSET $3`
	}
	rows, err := r.db.Pool.Query(ctx, q, ownerID, p.Size, p.Offset())
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectCards(rows)
}

// ListAll returns all cards in creation order.
func (r *CardRepo) ListAll(ctx context.Context, p model.Page) ([]model.Card, error) {
	p = p.Normalize()
	const q = `
SELECT ` + cardColumns + `
FROM cards
ORDER BY created_at, id
LIMIT $1 OFFSET $2`
	rows, err := r.db.Pool.Query(ctx, q, p.Size, p.Offset())
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectCards(rows)
}

func collectCards(rows pgx.Rows) ([]model.Card, error) {
	var out []model.Card
	for rows.Next() {
		c, err := scanCardRow(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *c)
	}
	return out, rows.Err()
}

// SetStatusIfCurrent moves the card status from -> to in one statement.
func (r *CardRepo) SetStatusIfCurrent(ctx context.Context, id uuid.UUID, from, to model.CardStatus) error {
	const q = `UPDATE cards SET status=$3 WHERE id=$1 AND status=$2`
	tag, err := r.db.Pool.Exec(ctx, q, id, string(from), string(to))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return r.missingOrRaced(ctx, id)
	}
	return nil
}

func (r *CardRepo) missingOrRaced(ctx context.Context, id uuid.UUID) error {
	const q = `SELECT 1 FROM cards WHERE id=$1`
	var one int
	if err := r.db.Pool.QueryRow(ctx, q, id).Scan(&one); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return errs.ErrNotFound
		}
		return err
	}
	return errs.ErrConflict
}

// SoftDelete is the owner-path delete: the status moves to DELETED
// only while the balance is still zero, in one statement, so a racing
// credit cannot be stranded on a terminal card.
func (r *CardRepo) SoftDelete(ctx context.Context, id uuid.UUID, from model.CardStatus) error {
	const q = `UPDATE cards SET status=$3 WHERE id=$1 AND status=$2 AND balance=0`
	tag, err := r.db.Pool.Exec(ctx, q, id, string(from), string(model.CardDeleted))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return r.missingOrRaced(ctx, id)
	}
	return nil
}

// HardDelete removes the card row; the balance guard is re-checked in
// the statement so a racing credit cannot be lost.
func (r *CardRepo) HardDelete(ctx context.Context, id uuid.UUID) error {
	const q = `DELETE FROM cards WHERE id=$1 AND balance=0`
	tag, err := r.db.Pool.Exec(ctx, q, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return r.missingOrRaced(ctx, id)
	}
	return nil
}

// ListExpiredIDs returns ids of ACTIVE cards expired strictly before the given day.
func (r *CardRepo) ListExpiredIDs(ctx context.Context, before time.Time) ([]uuid.UUID, error) {
	const q = `
SELECT id FROM cards
WHERE status=$1 AND expiry_date < $2
ORDER BY expiry_date, id`
	rows, err := r.db.Pool.Query(ctx, q, string(model.CardActive), before)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

// lockedCard is the card state read under a row lock.
type lockedCard struct {
	owner   uuid.UUID
	status  model.CardStatus
	balance decimal.Decimal
}

// Transfer atomically moves amount from src to dst. Row locks are taken
// in ascending id order so two opposing transfers cannot deadlock; all
// checks run under the locks, so a passing validation cannot be
// invalidated before the writes commit.
func (r *CardRepo) Transfer(ctx context.Context, ownerID, srcID, dstID uuid.UUID, amount decimal.Decimal) (err error) {
	tx, err := r.db.Pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		} else if e := tx.Commit(ctx); e != nil {
			err = e
		}
		if isSerializationFailure(err) {
			err = errs.ErrConflict
		}
	}()

	first, second := srcID, dstID
	if bytes.Compare(dstID.Bytes(), srcID.Bytes()) < 0 {
		first, second = dstID, srcID
	}

	const sel = `SELECT user_id, status, balance FROM cards WHERE id=$1 FOR UPDATE`
	lock := func(id uuid.UUID) (lockedCard, error) {
		var (
			lc     lockedCard
			status string
		)
		if err := tx.QueryRow(ctx, sel, id).Scan(&lc.owner, &status, &lc.balance); err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				if id == srcID {
					return lc, fmt.Errorf("source card: %w", errs.ErrNotFound)
				}
				return lc, fmt.Errorf("destination card: %w", errs.ErrNotFound)
			}
			return lc, err
		}
		lc.status = model.CardStatus(status)
		return lc, nil
	}

	locked := map[uuid.UUID]lockedCard{}
	for _, id := range []uuid.UUID{first, second} {
		lc, lerr := lock(id)
		if lerr != nil {
			err = lerr
			return err
		}
		locked[id] = lc
	}
	src, dst := locked[srcID], locked[dstID]

	switch {
	case src.owner != ownerID || dst.owner != ownerID:
		err = errs.ErrForbidden
	case src.status != model.CardActive || dst.status != model.CardActive:
		err = errs.ErrInvalidState
	case src.balance.LessThan(amount):
		err = errs.ErrInsufficientFunds
	}
	if err != nil {
		return err
	}

	const upd = `UPDATE cards SET balance=$2 WHERE id=$1`
	if _, err = tx.Exec(ctx, upd, srcID, src.balance.Sub(amount)); err != nil {
		return err
	}
	if _, err = tx.Exec(ctx, upd, dstID, dst.balance.Add(amount)); err != nil {
		return err
	}
	return nil
}
