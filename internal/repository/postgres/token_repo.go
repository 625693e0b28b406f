package postgres

import (
	"context"

	"github.com/gofrs/uuid/v5"

	"filedepot/internal/model"
)

// TokenRepo implements TokenRepository using PostgreSQL.
type TokenRepo struct{ db *DB }

// NewTokenRepo constructs a token repository.
func NewTokenRepo(db *DB) *TokenRepo { return &TokenRepo{db: db} }

// Insert stores a freshly issued token.
func (r *TokenRepo) Insert(ctx context.Context, t *model.Token) error {
	const q = `
INSERT INTO tokens (id, account_id, token_hash, token_salt, bound_addr)
VALUES ($1, $2, $3, $4, $5)`
	_, err := r.db.Pool.Exec(ctx, q, t.ID, t.AccountID, t.Hash, t.Salt, t.BoundAddr)
	return err
}

// ExpireAll marks every active token of the account expired. Expiry never
// reverts, so already-expired rows are left alone.
func (r *TokenRepo) ExpireAll(ctx context.Context, accountID uuid.UUID) error {
	const q = `UPDATE tokens SET expired = true WHERE account_id = $1 AND NOT expired`
	_, err := r.db.Pool.Exec(ctx, q, accountID)
	return err
}

// ActiveByAccount returns hash material of the account's unexpired tokens.
func (r *TokenRepo) ActiveByAccount(ctx context.Context, accountID uuid.UUID) ([]model.ActiveToken, error) {
	const q = `
SELECT token_hash, token_salt, bound_addr
FROM tokens
WHERE account_id = $1 AND NOT expired
ORDER BY created_at DESC`
	rows, err := r.db.Pool.Query(ctx, q, accountID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.ActiveToken
	for rows.Next() {
		var t model.ActiveToken
		if err = rows.Scan(&t.Hash, &t.Salt, &t.BoundAddr); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}
