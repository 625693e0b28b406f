package postgres

import (
	"context"

	"github.com/gofrs/uuid/v5"
)

// AccessLogRepo implements AccessLogRepository using PostgreSQL.
type AccessLogRepo struct{ db *DB }

// NewAccessLogRepo constructs an access-log repository.
func NewAccessLogRepo(db *DB) *AccessLogRepo { return &AccessLogRepo{db: db} }

// Record appends one audit row.
func (r *AccessLogRepo) Record(ctx context.Context, accountID uuid.UUID, ip, action string) error {
	const q = `INSERT INTO access_log (account_id, ip, action) VALUES ($1, $2, $3)`
	_, err := r.db.Pool.Exec(ctx, q, accountID, ip, action)
	return err
}
