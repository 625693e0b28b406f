// Package model defines domain entities used by services and repositories.
package model

import (
	"time"

	"github.com/gofrs/uuid/v5"
)

// Account represents a stored login. Passwords are kept only as salted Argon2id hashes.
type Account struct {
	ID           uuid.UUID // PK
	Name         string    // unique
	PwdHash      []byte    // Argon2id(password, PwdSalt)
	PwdSalt      []byte    // per-account salt
	AccessLevel  int       // ordinal privilege, higher = more
	AttemptsLeft int       // failed logins remaining before lockout
	Locked       bool
	CreatedAt    time.Time
}

// Token is an issued bearer credential. The plaintext leaves the server exactly
// once, at issue time; only the salted hash is stored.
type Token struct {
	ID        uuid.UUID
	AccountID uuid.UUID
	Hash      []byte // Argon2id(plaintext, Salt)
	Salt      []byte
	BoundAddr string // optional client address pin, empty = unpinned
	Expired   bool   // monotonic: once true, never reverts
	CreatedAt time.Time
}

// ActiveToken is the subset of Token the validator needs for a lookup.
type ActiveToken struct {
	Hash      []byte
	Salt      []byte
	BoundAddr string
}

// DirEntry describes one entry of a browsed directory.
type DirEntry struct {
	Name     string    `json:"name"`
	Dir      bool      `json:"dir"`
	Size     int64     `json:"size"`
	Modified time.Time `json:"modified"`
}

// ZipExport describes one cached archive in an account's export directory.
type ZipExport struct {
	FileName    string    `json:"fileName"`    // on-disk name, canonical + version + .zip
	DisplayName string    `json:"displayName"` // user-facing name recovered from the canonical form
	Size        int64     `json:"size"`
	Modified    time.Time `json:"modified"`
	Ready       bool      `json:"ready"`
}

// Access levels. FullReadLevel grants reads outside the account's own subtree;
// ZipLevel is the floor for archive operations.
const (
	ZipLevel      = 2
	FullReadLevel = 4
)
