// Package pgstore implements authkit.UserProvider over PostgreSQL using a
// caller-owned pgx connection pool.
//
// The store never provisions schema. The host application manages the
// table, which must have this shape (names adjustable via WithTable):
//
//	CREATE TABLE authkit_users (
//	    id              UUID PRIMARY KEY,
//	    identifier      TEXT NOT NULL UNIQUE,
//	    password_hash   TEXT NOT NULL,
//	    role            TEXT NOT NULL DEFAULT '',
//	    status          SMALLINT NOT NULL DEFAULT 0,
//	    account_version INTEGER NOT NULL DEFAULT 1,
//	    created_at      TIMESTAMPTZ NOT NULL DEFAULT now(),
//	    updated_at      TIMESTAMPTZ NOT NULL DEFAULT now()
//	);
package pgstore

import (
	"context"
	"errors"
	"fmt"
	"regexp"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	authkit "github.com/authkit-go/authkit"
)

const uniqueViolation = "23505"

var identRe = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// Store is a PostgreSQL-backed [authkit.UserProvider]. The pool is owned
// by the caller; the store never closes it.
type Store struct {
	pool  *pgxpool.Pool
	table string
}

// Option configures the store.
type Option func(*Store) error

// WithTable overrides the table name (default "authkit_users"). The name
// is validated as a legal PostgreSQL identifier to keep query assembly
// injection-free.
func WithTable(table string) Option {
	return func(s *Store) error {
		if !identRe.MatchString(table) {
			return fmt.Errorf("pgstore: invalid table identifier %q", table)
		}
		s.table = table
		return nil
	}
}

// New constructs a Store over the given pool.
func New(pool *pgxpool.Pool, opts ...Option) (*Store, error) {
	if pool == nil {
		return nil, errors.New("pgstore: nil pool")
	}

	s := &Store{pool: pool, table: "authkit_users"}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt(s); err != nil {
			return nil, err
		}
	}

	return s, nil
}

const recordColumns = "id, identifier, password_hash, role, status, account_version"

// GetUserByIdentifier looks an account up by its login identifier.
func (s *Store) GetUserByIdentifier(ctx context.Context, identifier string) (authkit.UserRecord, error) {
	q := fmt.Sprintf("SELECT %s FROM %s WHERE identifier = $1", recordColumns, s.table)
	return s.scanRecord(s.pool.QueryRow(ctx, q, identifier))
}

// GetUserByID looks an account up by primary key.
func (s *Store) GetUserByID(ctx context.Context, userID string) (authkit.UserRecord, error) {
	q := fmt.Sprintf("SELECT %s FROM %s WHERE id = $1", recordColumns, s.table)
	return s.scanRecord(s.pool.QueryRow(ctx, q, userID))
}

// CreateUser inserts a new active account at version 1.
func (s *Store) CreateUser(ctx context.Context, input authkit.CreateUserInput) (authkit.UserRecord, error) {
	q := fmt.Sprintf(`INSERT INTO %s (id, identifier, password_hash, role, status, account_version)
VALUES ($1, $2, $3, $4, $5, 1)
RETURNING %s`, s.table, recordColumns)

	row := s.pool.QueryRow(ctx, q,
		uuid.NewString(),
		input.Identifier,
		input.PasswordHash,
		input.Role,
		int16(authkit.AccountActive),
	)

	record, err := s.scanRecord(row)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return authkit.UserRecord{}, authkit.ErrAccountExists
		}
		return authkit.UserRecord{}, err
	}

	return record, nil
}

// UpdatePasswordHash replaces the stored credential.
func (s *Store) UpdatePasswordHash(ctx context.Context, userID, newHash string) error {
	q := fmt.Sprintf("UPDATE %s SET password_hash = $2, updated_at = now() WHERE id = $1", s.table)

	tag, err := s.pool.Exec(ctx, q, userID, newHash)
	if err != nil {
		return fmt.Errorf("pgstore: update password hash: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return authkit.ErrUserNotFound
	}
	return nil
}

// BumpAccountVersion atomically increments the revocation counter.
func (s *Store) BumpAccountVersion(ctx context.Context, userID string) (uint32, error) {
	q := fmt.Sprintf(`UPDATE %s SET account_version = account_version + 1, updated_at = now()
WHERE id = $1
RETURNING account_version`, s.table)

	var version uint32
	if err := s.pool.QueryRow(ctx, q, userID).Scan(&version); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, authkit.ErrUserNotFound
		}
		return 0, fmt.Errorf("pgstore: bump account version: %w", err)
	}

	return version, nil
}

// UpdateAccountStatus sets the lifecycle state and returns the updated record.
func (s *Store) UpdateAccountStatus(ctx context.Context, userID string, status authkit.AccountStatus) (authkit.UserRecord, error) {
	q := fmt.Sprintf(`UPDATE %s SET status = $2, updated_at = now()
WHERE id = $1
RETURNING %s`, s.table, recordColumns)

	return s.scanRecord(s.pool.QueryRow(ctx, q, userID, int16(status)))
}

func (s *Store) scanRecord(row pgx.Row) (authkit.UserRecord, error) {
	var (
		record authkit.UserRecord
		status int16
	)
	err := row.Scan(
		&record.UserID,
		&record.Identifier,
		&record.PasswordHash,
		&record.Role,
		&status,
		&record.AccountVersion,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return authkit.UserRecord{}, authkit.ErrUserNotFound
		}
		return authkit.UserRecord{}, fmt.Errorf("pgstore: scan: %w", err)
	}

	record.Status = authkit.AccountStatus(status)
	return record, nil
}
