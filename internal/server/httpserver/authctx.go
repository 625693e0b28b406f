package httpserver

import (
	"context"

	"github.com/gofrs/uuid/v5"
)

type ctxKey string

const identityKey ctxKey = "fd.identity"

type identity struct {
	accountID   uuid.UUID
	accessLevel int
}

// withIdentity stores the authenticated account and its access level in context.
func withIdentity(ctx context.Context, accountID uuid.UUID, accessLevel int) context.Context {
	return context.WithValue(ctx, identityKey, identity{accountID: accountID, accessLevel: accessLevel})
}

// identityFromCtx fetches the authenticated identity from context.
func identityFromCtx(ctx context.Context) (identity, bool) {
	v := ctx.Value(identityKey)
	if v == nil {
		return identity{}, false
	}
	id, ok := v.(identity)
	return id, ok
}
