package pgstore

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	authkit "github.com/authkit-go/authkit"
)

// Integration tests are opt-in and require AUTHKIT_TEST_DATABASE_URL.

func TestStore_CreateAndFetch(t *testing.T) {
	t.Parallel()

	pool, table := mustOpenTestStore(t)
	s := mustNewStore(t, pool, table)

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	created, err := s.CreateUser(ctx, authkit.CreateUserInput{
		Identifier:   "alice@example.com",
		PasswordHash: "$argon2id$v=19$m=65536,t=3,p=2$c2FsdHNhbHRzYWx0c2Fs$ZGlnZXN0ZGlnZXN0ZGlnZXN0ZGlnZXN0ZGlnZXN0ZGln",
		Role:         "admin",
	})
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	if created.UserID == "" {
		t.Fatalf("expected generated user id")
	}
	if created.AccountVersion != 1 {
		t.Fatalf("expected initial version 1, got %d", created.AccountVersion)
	}
	if created.Status != authkit.AccountActive {
		t.Fatalf("expected active status, got %d", created.Status)
	}

	byIdent, err := s.GetUserByIdentifier(ctx, "alice@example.com")
	if err != nil {
		t.Fatalf("get by identifier: %v", err)
	}
	if byIdent != created {
		t.Fatalf("record mismatch: %+v vs %+v", byIdent, created)
	}

	byID, err := s.GetUserByID(ctx, created.UserID)
	if err != nil {
		t.Fatalf("get by id: %v", err)
	}
	if byID != created {
		t.Fatalf("record mismatch: %+v vs %+v", byID, created)
	}
}

func TestStore_DuplicateIdentifier(t *testing.T) {
	t.Parallel()

	pool, table := mustOpenTestStore(t)
	s := mustNewStore(t, pool, table)

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	input := authkit.CreateUserInput{Identifier: "dup@example.com", PasswordHash: "hash-1"}
	if _, err := s.CreateUser(ctx, input); err != nil {
		t.Fatalf("create user 1: %v", err)
	}

	input.PasswordHash = "hash-2"
	_, err := s.CreateUser(ctx, input)
	if !errors.Is(err, authkit.ErrAccountExists) {
		t.Fatalf("expected ErrAccountExists, got: %v", err)
	}
}

func TestStore_UnknownUserLookups(t *testing.T) {
	t.Parallel()

	pool, table := mustOpenTestStore(t)
	s := mustNewStore(t, pool, table)

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if _, err := s.GetUserByIdentifier(ctx, "ghost@example.com"); !errors.Is(err, authkit.ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound, got: %v", err)
	}
	if _, err := s.GetUserByID(ctx, uuid.NewString()); !errors.Is(err, authkit.ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound, got: %v", err)
	}
	if err := s.UpdatePasswordHash(ctx, uuid.NewString(), "new-hash"); !errors.Is(err, authkit.ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound on update, got: %v", err)
	}
	if _, err := s.BumpAccountVersion(ctx, uuid.NewString()); !errors.Is(err, authkit.ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound on bump, got: %v", err)
	}
}

func TestStore_BumpVersionAndStatus(t *testing.T) {
	t.Parallel()

	pool, table := mustOpenTestStore(t)
	s := mustNewStore(t, pool, table)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	created, err := s.CreateUser(ctx, authkit.CreateUserInput{
		Identifier:   "bump@example.com",
		PasswordHash: "hash",
	})
	if err != nil {
		t.Fatalf("create user: %v", err)
	}

	v2, err := s.BumpAccountVersion(ctx, created.UserID)
	if err != nil {
		t.Fatalf("bump 1: %v", err)
	}
	if v2 != 2 {
		t.Fatalf("expected version 2, got %d", v2)
	}

	v3, err := s.BumpAccountVersion(ctx, created.UserID)
	if err != nil {
		t.Fatalf("bump 2: %v", err)
	}
	if v3 != 3 {
		t.Fatalf("expected version 3, got %d", v3)
	}

	locked, err := s.UpdateAccountStatus(ctx, created.UserID, authkit.AccountLocked)
	if err != nil {
		t.Fatalf("update status: %v", err)
	}
	if locked.Status != authkit.AccountLocked {
		t.Fatalf("expected locked status, got %d", locked.Status)
	}
	if locked.AccountVersion != 3 {
		t.Fatalf("status update must not touch version, got %d", locked.AccountVersion)
	}
}

func TestStore_UpdatePasswordHash(t *testing.T) {
	t.Parallel()

	pool, table := mustOpenTestStore(t)
	s := mustNewStore(t, pool, table)

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	created, err := s.CreateUser(ctx, authkit.CreateUserInput{
		Identifier:   "rehash@example.com",
		PasswordHash: "old-hash",
	})
	if err != nil {
		t.Fatalf("create user: %v", err)
	}

	if err := s.UpdatePasswordHash(ctx, created.UserID, "new-hash"); err != nil {
		t.Fatalf("update hash: %v", err)
	}

	got, err := s.GetUserByID(ctx, created.UserID)
	if err != nil {
		t.Fatalf("get by id: %v", err)
	}
	if got.PasswordHash != "new-hash" {
		t.Fatalf("expected new hash, got %q", got.PasswordHash)
	}
}

func TestStore_RejectsBadTableName(t *testing.T) {
	t.Parallel()

	pool, _ := mustOpenTestStore(t)

	if _, err := New(pool, WithTable("users; DROP TABLE users")); err == nil {
		t.Fatalf("expected error for malicious table name")
	}
	if _, err := New(pool, WithTable("")); err == nil {
		t.Fatalf("expected error for empty table name")
	}
}

// ---- helpers ----

func mustNewStore(t *testing.T, pool *pgxpool.Pool, table string) *Store {
	t.Helper()
	s, err := New(pool, WithTable(table))
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	return s
}

// mustOpenTestStore connects to the test database and provisions a
// per-test table that is dropped on cleanup.
func mustOpenTestStore(t *testing.T) (*pgxpool.Pool, string) {
	t.Helper()

	raw := strings.TrimSpace(os.Getenv("AUTHKIT_TEST_DATABASE_URL"))
	if raw == "" {
		t.Skip("integration test skipped: AUTHKIT_TEST_DATABASE_URL is not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 12*time.Second)
	defer cancel()

	pool, err := pgxpool.New(ctx, raw)
	if err != nil {
		t.Fatalf("connect postgres: %v", err)
	}
	t.Cleanup(pool.Close)

	table := "authkit_it_" + strings.ReplaceAll(uuid.NewString(), "-", "")

	ddl := fmt.Sprintf(`CREATE TABLE %s (
  id              UUID PRIMARY KEY,
  identifier      TEXT NOT NULL UNIQUE,
  password_hash   TEXT NOT NULL,
  role            TEXT NOT NULL DEFAULT '',
  status          SMALLINT NOT NULL DEFAULT 0,
  account_version INTEGER NOT NULL DEFAULT 1,
  created_at      TIMESTAMPTZ NOT NULL DEFAULT now(),
  updated_at      TIMESTAMPTZ NOT NULL DEFAULT now()
)`, table)

	if _, err := pool.Exec(ctx, ddl); err != nil {
		t.Fatalf("create test table: %v", err)
	}
	t.Cleanup(func() {
		dropCtx, dropCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer dropCancel()
		_, _ = pool.Exec(dropCtx, "DROP TABLE IF EXISTS "+table)
	})

	return pool, table
}
