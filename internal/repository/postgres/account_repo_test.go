package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/gofrs/uuid/v5"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	pgxmock "github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/require"

	"filedepot/internal/errs"
	"filedepot/internal/model"
)

func newDB(t *testing.T) (*DB, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	return &DB{Pool: mock}, mock
}

func TestAccountRepo_Create_OK_and_UniqueViolation(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewAccountRepo(db)
	ctx := context.Background()
	a := &model.Account{
		ID:           uuid.Must(uuid.NewV4()),
		Name:         "alice",
		PwdHash:      []byte("h"),
		PwdSalt:      []byte("s"),
		AccessLevel:  2,
		AttemptsLeft: 3,
	}

	// OK
	mock.ExpectExec(`INSERT INTO accounts \(id, name, pwd_hash, pwd_salt, access_level, attempts_left\) VALUES \(\$1, \$2, \$3, \$4, \$5, \$6\)`).
		WithArgs(a.ID, a.Name, a.PwdHash, a.PwdSalt, a.AccessLevel, a.AttemptsLeft).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	require.NoError(t, r.Create(ctx, a))

	// Unique violation
	mock.ExpectExec(`INSERT INTO accounts \(id, name, pwd_hash, pwd_salt, access_level, attempts_left\) VALUES \(\$1, \$2, \$3, \$4, \$5, \$6\)`).
		WithArgs(a.ID, a.Name, a.PwdHash, a.PwdSalt, a.AccessLevel, a.AttemptsLeft).
		WillReturnError(&pgconn.PgError{Code: "23505"})
	err := r.Create(ctx, a)
	require.ErrorIs(t, err, errs.ErrAlreadyExists)
}

func TestAccountRepo_GetByName(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewAccountRepo(db)
	ctx := context.Background()
	id := uuid.Must(uuid.NewV4())

	mock.ExpectQuery(`SELECT id, name, pwd_hash, pwd_salt, access_level, attempts_left, locked, created_at FROM accounts WHERE name=\$1`).
		WithArgs("alice").
		WillReturnRows(pgxmock.NewRows([]string{"id", "name", "pwd_hash", "pwd_salt", "access_level", "attempts_left", "locked", "created_at"}).
			AddRow(id, "alice", []byte("h"), []byte("s"), 2, 3, false, time.Now()))
	a, err := r.GetByName(ctx, "alice")
	require.NoError(t, err)
	require.Equal(t, id, a.ID)
	require.Equal(t, 2, a.AccessLevel)

	mock.ExpectQuery(`SELECT id, name, pwd_hash, pwd_salt, access_level, attempts_left, locked, created_at FROM accounts WHERE name=\$1`).
		WithArgs("ghost").
		WillReturnError(pgx.ErrNoRows)
	_, err = r.GetByName(ctx, "ghost")
	require.ErrorIs(t, err, errs.ErrNotFound)
}

func TestAccountRepo_GetByID(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewAccountRepo(db)
	ctx := context.Background()
	id := uuid.Must(uuid.NewV4())

	mock.ExpectQuery(`SELECT id, name, pwd_hash, pwd_salt, access_level, attempts_left, locked, created_at FROM accounts WHERE id=\$1`).
		WithArgs(id).
		WillReturnRows(pgxmock.NewRows([]string{"id", "name", "pwd_hash", "pwd_salt", "access_level", "attempts_left", "locked", "created_at"}).
			AddRow(id, "alice", []byte("h"), []byte("s"), 4, 1, true, time.Now()))
	a, err := r.GetByID(ctx, id)
	require.NoError(t, err)
	require.True(t, a.Locked)
	require.Equal(t, 1, a.AttemptsLeft)
}

func TestAccountRepo_SetAttemptsLeft(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewAccountRepo(db)
	ctx := context.Background()
	id := uuid.Must(uuid.NewV4())

	mock.ExpectExec(`UPDATE accounts SET attempts_left = \$2 WHERE id = \$1`).
		WithArgs(id, 1).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	require.NoError(t, r.SetAttemptsLeft(ctx, id, 1))

	mock.ExpectExec(`UPDATE accounts SET attempts_left = \$2 WHERE id = \$1`).
		WithArgs(id, 1).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))
	err := r.SetAttemptsLeft(ctx, id, 1)
	require.ErrorIs(t, err, errs.ErrNotFound)
}

func TestAccountRepo_Lock(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewAccountRepo(db)
	ctx := context.Background()
	id := uuid.Must(uuid.NewV4())

	mock.ExpectExec(`UPDATE accounts SET locked = true, attempts_left = 0 WHERE id = \$1`).
		WithArgs(id).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	require.NoError(t, r.Lock(ctx, id))
}

func TestAccountRepo_GetAccessLevel(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewAccountRepo(db)
	ctx := context.Background()
	id := uuid.Must(uuid.NewV4())

	mock.ExpectQuery(`SELECT access_level FROM accounts WHERE id=\$1`).
		WithArgs(id).
		WillReturnRows(pgxmock.NewRows([]string{"access_level"}).AddRow(4))
	lvl, err := r.GetAccessLevel(ctx, id)
	require.NoError(t, err)
	require.Equal(t, 4, lvl)

	mock.ExpectQuery(`SELECT access_level FROM accounts WHERE id=\$1`).
		WithArgs(id).
		WillReturnError(pgx.ErrNoRows)
	_, err = r.GetAccessLevel(ctx, id)
	require.ErrorIs(t, err, errs.ErrNotFound)
}
