package service

import (
	"context"
	"fmt"
	"sync"

	"github.com/gofrs/uuid/v5"
	"go.uber.org/zap"

	"filedepot/internal/crypto"
	"filedepot/internal/errs"
	"filedepot/internal/model"
	"filedepot/internal/repository"
)

// TokenValidator checks presented bearer tokens against stored hashes. Argon2
// is deliberately slow, so plaintexts that verified once are cached; the cache
// is advisory only and is dropped lazily as soon as the stored hash set no
// longer contains the cached hash, which keeps expiry authoritative.
type TokenValidator struct {
	tokens repository.TokenRepository
	log    *zap.Logger

	mu       sync.Mutex
	verified map[string]verifiedToken // plaintext -> proof
}

type verifiedToken struct {
	accountID uuid.UUID
	hash      string
}

// NewTokenValidator constructs a validator with an empty verified cache.
func NewTokenValidator(tokens repository.TokenRepository, log *zap.Logger) *TokenValidator {
	return &TokenValidator{tokens: tokens, log: log, verified: make(map[string]verifiedToken)}
}

// ValidateToken reports whether the plaintext token is an active credential of
// the account. Tokens stored with a bound address are only accepted from that
// address.
func (v *TokenValidator) ValidateToken(ctx context.Context, accountID uuid.UUID, token, sourceAddr string) (bool, error) {
	if accountID == uuid.Nil || token == "" {
		return false, fmt.Errorf("%w: empty account id or token", errs.ErrValidation)
	}

	active, err := v.tokens.ActiveByAccount(ctx, accountID)
	if err != nil {
		return false, err
	}

	if v.checkCached(accountID, token, sourceAddr, active) {
		return true, nil
	}

	for _, t := range active {
		if !crypto.VerifySecret([]byte(token), t.Salt, t.Hash) {
			continue
		}
		if !addrAllowed(t.BoundAddr, sourceAddr) {
			v.log.Warn("token presented from wrong address",
				zap.String("account", accountID.String()),
				zap.String("bound", t.BoundAddr),
				zap.String("source", sourceAddr))
			return false, nil
		}
		v.mu.Lock()
		v.verified[token] = verifiedToken{accountID: accountID, hash: string(t.Hash)}
		v.mu.Unlock()
		return true, nil
	}
	return false, nil
}

// Invalidate drops every cached proof for the account. Called after logout so
// the slow path runs on the next presentation.
func (v *TokenValidator) Invalidate(accountID uuid.UUID) {
	v.mu.Lock()
	defer v.mu.Unlock()
	for plaintext, proof := range v.verified {
		if proof.accountID == accountID {
			delete(v.verified, plaintext)
		}
	}
}

// checkCached accepts a token without rehashing when its cached hash is still
// in the active set. A stale entry is removed and the caller falls back to the
// full verify.
func (v *TokenValidator) checkCached(accountID uuid.UUID, token, sourceAddr string, active []model.ActiveToken) bool {
	v.mu.Lock()
	proof, ok := v.verified[token]
	v.mu.Unlock()
	if !ok || proof.accountID != accountID {
		return false
	}

	for _, t := range active {
		if string(t.Hash) == proof.hash {
			return addrAllowed(t.BoundAddr, sourceAddr)
		}
	}

	v.mu.Lock()
	delete(v.verified, token)
	v.mu.Unlock()
	return false
}

func addrAllowed(bound, source string) bool {
	return bound == "" || bound == source
}
