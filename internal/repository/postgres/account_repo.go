package postgres

import (
	"context"
	"errors"

	"github.com/gofrs/uuid/v5"
	"github.com/jackc/pgx/v5"

	"filedepot/internal/errs"
	"filedepot/internal/model"
)

// AccountRepo implements AccountRepository using PostgreSQL.
type AccountRepo struct{ db *DB }

// NewAccountRepo constructs an account repository.
func NewAccountRepo(db *DB) *AccountRepo { return &AccountRepo{db: db} }

// Create inserts a new account row.
func (r *AccountRepo) Create(ctx context.Context, a *model.Account) error {
	const q = `
INSERT INTO accounts (id, name, pwd_hash, pwd_salt, access_level, attempts_left)
VALUES ($1, $2, $3, $4, $5, $6)`
	_, err := r.db.Pool.Exec(ctx, q, a.ID, a.Name, a.PwdHash, a.PwdSalt, a.AccessLevel, a.AttemptsLeft)
	if isUniqueViolation(err) {
		return errs.ErrAlreadyExists
	}
	return err
}

// GetByName selects an account by its unique name.
func (r *AccountRepo) GetByName(ctx context.Context, name string) (*model.Account, error) {
	const q = `
SELECT id, name, pwd_hash, pwd_salt, access_level, attempts_left, locked, created_at
FROM accounts WHERE name=$1`
	return r.scanOne(r.db.Pool.QueryRow(ctx, q, name))
}

// GetByID selects an account by ID.
func (r *AccountRepo) GetByID(ctx context.Context, id uuid.UUID) (*model.Account, error) {
	const q = `
SELECT id, name, pwd_hash, pwd_salt, access_level, attempts_left, locked, created_at
FROM accounts WHERE id=$1`
	return r.scanOne(r.db.Pool.QueryRow(ctx, q, id))
}

func (r *AccountRepo) scanOne(row pgx.Row) (*model.Account, error) {
	var a model.Account
	err := row.Scan(&a.ID, &a.Name, &a.PwdHash, &a.PwdSalt, &a.AccessLevel, &a.AttemptsLeft, &a.Locked, &a.CreatedAt)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return nil, err
		}
		return nil, errs.ErrNotFound
	}
	return &a, nil
}

// SetAttemptsLeft stores the remaining failed-login allowance.
func (r *AccountRepo) SetAttemptsLeft(ctx context.Context, id uuid.UUID, attempts int) error {
	const q = `UPDATE accounts SET attempts_left = $2 WHERE id = $1`
	tag, err := r.db.Pool.Exec(ctx, q, id, attempts)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return errs.ErrNotFound
	}
	return nil
}

// Lock marks the account locked and zeroes its allowance.
func (r *AccountRepo) Lock(ctx context.Context, id uuid.UUID) error {
	const q = `UPDATE accounts SET locked = true, attempts_left = 0 WHERE id = $1`
	tag, err := r.db.Pool.Exec(ctx, q, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return errs.ErrNotFound
	}
	return nil
}

// GetAccessLevel returns the account's privilege level.
func (r *AccountRepo) GetAccessLevel(ctx context.Context, id uuid.UUID) (int, error) {
	const q = `SELECT access_level FROM accounts WHERE id=$1`
	var lvl int
	if err := r.db.Pool.QueryRow(ctx, q, id).Scan(&lvl); err != nil {
		if errors.Is(err, context.Canceled) {
			return 0, err
		}
		return 0, errs.ErrNotFound
	}
	return lvl, nil
}
