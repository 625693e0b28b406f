package repository

import (
	"context"

	"github.com/gofrs/uuid/v5"

	"filedepot/internal/model"
)

// TokenRepository provides access to issued bearer tokens.
type TokenRepository interface {
	// Insert stores a freshly issued token.
	Insert(ctx context.Context, t *model.Token) error
	// ExpireAll marks every active token of the account expired.
	ExpireAll(ctx context.Context, accountID uuid.UUID) error
	// ActiveByAccount returns the hashes of the account's unexpired tokens,
	// newest first.
	ActiveByAccount(ctx context.Context, accountID uuid.UUID) ([]model.ActiveToken, error)
}

// AccessLogRepository records security-relevant events. Writes are best effort;
// callers only log failures.
type AccessLogRepository interface {
	Record(ctx context.Context, accountID uuid.UUID, ip, action string) error
}
