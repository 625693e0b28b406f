// Package service contains application services for accounts and bearer tokens.
package service

import (
	"context"
	"fmt"

	"github.com/gofrs/uuid/v5"
	"go.uber.org/zap"

	"filedepot/internal/crypto"
	"filedepot/internal/errs"
	"filedepot/internal/model"
	"filedepot/internal/repository"
)

const saltLen = 16

// CredentialStore authenticates accounts and issues bearer tokens. Passwords
// and token plaintexts are never stored; both are kept as salted Argon2id
// hashes.
type CredentialStore struct {
	accounts repository.AccountRepository
	tokens   repository.TokenRepository
	audit    repository.AccessLogRepository
	attempts int
	log      *zap.Logger
}

// NewCredentialStore constructs a credential store. attempts is the
// failed-login allowance restored on each successful login.
func NewCredentialStore(
	accounts repository.AccountRepository,
	tokens repository.TokenRepository,
	audit repository.AccessLogRepository,
	attempts int,
	log *zap.Logger,
) *CredentialStore {
	return &CredentialStore{accounts: accounts, tokens: tokens, audit: audit, attempts: attempts, log: log}
}

// ValidateLogin checks username/password and returns the account id on
// success. A wrong password burns one attempt; exhausting the allowance locks
// the account and expires all of its tokens. Callers get ErrUnauthorized for
// every credential problem except a lock, so responses do not reveal whether
// the name or the password was wrong.
func (s *CredentialStore) ValidateLogin(ctx context.Context, username, password, ip string) (uuid.UUID, error) {
	if username == "" || password == "" {
		return uuid.Nil, fmt.Errorf("%w: empty username or password", errs.ErrValidation)
	}

	a, err := s.accounts.GetByName(ctx, username)
	if err != nil {
		return uuid.Nil, errs.ErrUnauthorized
	}
	if a.Locked {
		return uuid.Nil, errs.ErrLocked
	}

	if !crypto.VerifySecret([]byte(password), a.PwdSalt, a.PwdHash) {
		left := a.AttemptsLeft - 1
		if left <= 0 {
			if lockErr := s.accounts.Lock(ctx, a.ID); lockErr != nil {
				s.log.Error("lock account", zap.Error(lockErr))
			}
			s.ExpireAllTokens(ctx, a.ID)
			s.record(ctx, a.ID, ip, "lockout")
			return uuid.Nil, errs.ErrLocked
		}
		if setErr := s.accounts.SetAttemptsLeft(ctx, a.ID, left); setErr != nil {
			s.log.Error("decrement attempts", zap.Error(setErr))
		}
		return uuid.Nil, errs.ErrUnauthorized
	}

	if setErr := s.accounts.SetAttemptsLeft(ctx, a.ID, s.attempts); setErr != nil {
		s.log.Error("reset attempts", zap.Error(setErr))
	}
	s.record(ctx, a.ID, ip, "login")
	return a.ID, nil
}

// IssueToken expires every previous token of the account and stores a fresh
// one, returning its plaintext. Only one session is active at a time.
func (s *CredentialStore) IssueToken(ctx context.Context, accountID uuid.UUID, boundAddr string) (string, error) {
	if accountID == uuid.Nil {
		return "", fmt.Errorf("%w: empty account id", errs.ErrValidation)
	}

	if err := s.tokens.ExpireAll(ctx, accountID); err != nil {
		return "", fmt.Errorf("expire previous tokens: %w", err)
	}

	plaintext, err := crypto.NewToken()
	if err != nil {
		return "", err
	}
	salt, err := crypto.RandBytes(saltLen)
	if err != nil {
		return "", err
	}
	id, err := uuid.NewV4()
	if err != nil {
		return "", err
	}

	t := &model.Token{
		ID:        id,
		AccountID: accountID,
		Hash:      crypto.HashSecret([]byte(plaintext), salt),
		Salt:      salt,
		BoundAddr: boundAddr,
	}
	if err := s.tokens.Insert(ctx, t); err != nil {
		return "", err
	}
	s.record(ctx, accountID, boundAddr, "token_issued")
	return plaintext, nil
}

// ExpireAllTokens invalidates every active token of the account. Best effort;
// failures are logged, never returned, and expiry never reverts.
func (s *CredentialStore) ExpireAllTokens(ctx context.Context, accountID uuid.UUID) {
	if accountID == uuid.Nil {
		return
	}
	if err := s.tokens.ExpireAll(ctx, accountID); err != nil {
		s.log.Error("expire tokens", zap.String("account", accountID.String()), zap.Error(err))
	}
}

// GetAccessLevel returns the account's privilege level, false when unknown.
func (s *CredentialStore) GetAccessLevel(ctx context.Context, accountID uuid.UUID) (int, bool) {
	lvl, err := s.accounts.GetAccessLevel(ctx, accountID)
	if err != nil {
		return 0, false
	}
	return lvl, true
}

func (s *CredentialStore) record(ctx context.Context, accountID uuid.UUID, ip, action string) {
	if s.audit == nil {
		return
	}
	if err := s.audit.Record(ctx, accountID, ip, action); err != nil {
		s.log.Warn("access log write", zap.String("action", action), zap.Error(err))
	}
}
