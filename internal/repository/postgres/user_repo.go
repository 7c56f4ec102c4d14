package postgres

import (
	"context"
	"errors"

	"github.com/gofrs/uuid/v5"
	"github.com/jackc/pgx/v5"

	"github.com/ndolgov/bankcards/internal/errs"
	"github.com/ndolgov/bankcards/internal/model"
)

// UserRepo implements UserRepository using PostgreSQL.
type UserRepo struct{ db *DB }

// NewUserRepo constructs a user repository.
func NewUserRepo(db *DB) *UserRepo { return &UserRepo{db: db} }

const userColumns = `id, username, pwd_hash, role, status, COALESCE(refresh_token, ''), created_at`

func scanUserRow(row pgx.Row) (*model.User, error) {
	var (
		u            model.User
		role, status string
	)
	if err := row.Scan(&u.ID, &u.Username, &u.PwdHash, &role, &status, &u.RefreshToken, &u.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, errs.ErrNotFound
		}
		return nil, err
	}
	u.Role = model.Role(role)
	u.Status = model.UserStatus(status)
	return &u, nil
}

// Create inserts a new user row.
func (r *UserRepo) Create(ctx context.Context, u *model.User) error {
	const q = `
INSERT INTO users (id, username, pwd_hash, role, status)
VALUES ($1, $2, $3, $4, $5)`
	_, err := r.db.Pool.Exec(ctx, q, u.ID, u.Username, u.PwdHash, string(u.Role), string(u.Status))
	if isUniqueViolation(err) {
		return errs.ErrAlreadyExists
	}
	return err
}

// GetByID selects a user by ID.
func (r *UserRepo) GetByID(ctx context.Context, id uuid.UUID) (*model.User, error) {
	const q = `SELECT ` + userColumns + ` FROM users WHERE id=$1`
	return scanUserRow(r.db.Pool.QueryRow(ctx, q, id))
}

// GetByUsername selects a user by username.
func (r *UserRepo) GetByUsername(ctx context.Context, username string) (*model.User, error) {
	const q = `SELECT ` + userColumns + ` FROM users WHERE username=$1`
	return scanUserRow(r.db.Pool.QueryRow(ctx, q, username))
}

// List returns users in creation order, paginated.
func (r *UserRepo) List(ctx context.Context, p model.Page) ([]model.User, error) {
	p = p.Normalize()
	const q = `
SELECT ` + userColumns + `
FROM users
ORDER BY created_at, id
LIMIT $1 OFFSET $2`
	rows, err := r.db.Pool.Query(ctx, q, p.Size, p.Offset())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.User
	for rows.Next() {
		u, err := scanUserRow(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *u)
	}
	return out, rows.Err()
}

// SetStatusIfCurrent moves the user status from -> to in one statement.
func (r *UserRepo) SetStatusIfCurrent(ctx context.Context, id uuid.UUID, from, to model.UserStatus) error {
	const q = `UPDATE users SET status=$3 WHERE id=$1 AND status=$2`
	tag, err := r.db.Pool.Exec(ctx, q, id, string(from), string(to))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return r.missingOrRaced(ctx, id)
	}
	return nil
}

// missingOrRaced tells a vanished row apart from a status that moved
// under a zero-row compare-and-set.
func (r *UserRepo) missingOrRaced(ctx context.Context, id uuid.UUID) error {
	const q = `SELECT 1 FROM users WHERE id=$1`
	var one int
	if err := r.db.Pool.QueryRow(ctx, q, id).Scan(&one); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return errs.ErrNotFound
		}
		return err
	}
	return errs.ErrConflict
}

// SetRefreshToken replaces the stored refresh credential.
func (r *UserRepo) SetRefreshToken(ctx context.Context, id uuid.UUID, token string) error {
	const q = `UPDATE users SET refresh_token=$2 WHERE id=$1`
	tag, err := r.db.Pool.Exec(ctx, q, id, token)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return errs.ErrNotFound
	}
	return nil
}

// SoftDeleteWithCards cascades DELETED onto every owned card and then
// the user, in one transaction. Cards are written first so no reader
// observes a deleted user with a live card.
func (r *UserRepo) SoftDeleteWithCards(ctx context.Context, id uuid.UUID) (err error) {
	tx, err := r.db.Pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
			return
		}
		if e := tx.Commit(ctx); e != nil {
			err = e
		}
	}()

	const sel = `SELECT status FROM users WHERE id=$1 FOR UPDATE`
	var status string
	if err = tx.QueryRow(ctx, sel, id).Scan(&status); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return errs.ErrNotFound
		}
		return err
	}
	if model.UserStatus(status) == model.UserDeleted {
		return errs.ErrInvalidState
	}

	const delCards = `UPDATE cards SET status=$2 WHERE user_id=$1`
	if _, err = tx.Exec(ctx, delCards, id, string(model.CardDeleted)); err != nil {
		return err
	}
	const delUser = `UPDATE users SET status=$2, refresh_token=NULL WHERE id=$1`
	if _, err = tx.Exec(ctx, delUser, id, string(model.UserDeleted)); err != nil {
		return err
	}
	return nil
}
