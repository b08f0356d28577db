package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/giantswarm/oauth2-core/storage"
)

// Config configures a Store.
type Config struct {
	// DSN is the modernc.org/sqlite data source, e.g. "file:oauth2.db" (required).
	DSN string

	// Logger defaults to slog.Default().
	Logger *slog.Logger

	// Now defaults to time.Now. It decides which records DeleteExpired drops.
	Now func() time.Time
}

// Store is a SQLite implementation of storage.Store.
type Store struct {
	db     *sql.DB
	dsn    string
	logger *slog.Logger
	now    func() time.Time
}

var (
	_ storage.Store = (*Store)(nil)
	_ storage.Sizes = (*Store)(nil)
)

// New opens the database, enforces foreign keys and applies migrations.
func New(cfg Config) (*Store, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("sqlite dsn is required")
	}

	db, err := sql.Open("sqlite", cfg.DSN)
	if err != nil {
		return nil, err
	}

	// Pragmas are per connection; one connection also serialises writers.
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(context.Background(), `PRAGMA foreign_keys = ON;`); err != nil {
		_ = db.Close()
		return nil, err
	}

	s := &Store{
		db:     db,
		dsn:    cfg.DSN,
		logger: cfg.Logger,
		now:    cfg.Now,
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if s.now == nil {
		s.now = time.Now
	}

	if err := s.ApplyMigrations(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to apply migrations: %w", err)
	}

	s.logger.Info("Opened SQLite storage", "dsn", cfg.DSN)
	return s, nil
}

// Name implements storage.Store.
func (s *Store) Name() string { return "sqlite" }

// Close closes the database.
func (s *Store) Close() error { return s.db.Close() }

// Ping verifies the database connection is still alive.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// WithTx executes fn within a transaction, automatically handling commit/rollback.
func (s *Store) WithTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback() // safe to call even after commit
	}()

	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit()
}

// DeleteExpired drops expired tokens and authorization codes and returns how
// many records were removed. Tokens whose refresh token never expires are kept.
func (s *Store) DeleteExpired(ctx context.Context) (int64, error) {
	now := s.now().UnixMilli()
	var removed int64

	err := s.WithTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
			DELETE FROM tokens
			WHERE access_token_expires_at IS NOT NULL
			  AND access_token_expires_at <= ?
			  AND (refresh_token IS NULL
			       OR (refresh_token_expires_at IS NOT NULL AND refresh_token_expires_at <= ?))`,
			now, now)
		if err != nil {
			return err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		removed += n

		res, err = tx.ExecContext(ctx,
			`DELETE FROM authorization_codes WHERE expires_at IS NOT NULL AND expires_at <= ?`, now)
		if err != nil {
			return err
		}
		n, err = res.RowsAffected()
		if err != nil {
			return err
		}
		removed += n
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired records: %w", err)
	}

	if removed > 0 {
		s.logger.Debug("Cleaned up expired records", "count", removed)
	}
	return removed, nil
}

// CountAccessTokens implements storage.Sizes.
func (s *Store) CountAccessTokens() int64 {
	return s.count(`SELECT COUNT(*) FROM tokens`)
}

// CountRefreshTokens implements storage.Sizes.
func (s *Store) CountRefreshTokens() int64 {
	return s.count(`SELECT COUNT(*) FROM tokens WHERE refresh_token IS NOT NULL`)
}

// CountAuthorizationCodes implements storage.Sizes.
func (s *Store) CountAuthorizationCodes() int64 {
	return s.count(`SELECT COUNT(*) FROM authorization_codes`)
}

// CountClients implements storage.Sizes.
func (s *Store) CountClients() int64 {
	return s.count(`SELECT COUNT(*) FROM clients`)
}

// CountUsers implements storage.Sizes.
func (s *Store) CountUsers() int64 {
	return s.count(`SELECT COUNT(*) FROM users`)
}

// count runs from metric callbacks, which have no context or error path.
func (s *Store) count(query string) int64 {
	var n int64
	if err := s.db.QueryRowContext(context.Background(), query).Scan(&n); err != nil {
		s.logger.Warn("Failed to count records", "error", err)
		return 0
	}
	return n
}

func mapNotFound(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return storage.ErrNotFound
	}
	return err
}

// insertedOrExists maps an INSERT ... ON CONFLICT DO NOTHING result to
// storage.ErrAlreadyExists when no row was written.
func insertedOrExists(res sql.Result, err error) error {
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return storage.ErrAlreadyExists
	}
	return nil
}

// deleted reports whether an UPDATE or DELETE touched a row.
func deleted(res sql.Result, err error) (bool, error) {
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func mapStringNull(s string) sql.NullString {
	if s == "" {
		return sql.NullString{Valid: false}
	}
	return sql.NullString{String: s, Valid: true}
}

func mapNullString(ns sql.NullString) string {
	if ns.Valid {
		return ns.String
	}
	return ""
}

// Timestamps are stored as Unix milliseconds; NULL means unset.

func mapTimeNull(t time.Time) sql.NullInt64 {
	if t.IsZero() {
		return sql.NullInt64{Valid: false}
	}
	return sql.NullInt64{Int64: t.UnixMilli(), Valid: true}
}

func mapNullTime(n sql.NullInt64) time.Time {
	if !n.Valid {
		return time.Time{}
	}
	return time.UnixMilli(n.Int64).UTC()
}

func splitFields(s string) []string {
	fields := strings.Fields(s)
	if len(fields) == 0 {
		return nil
	}
	return fields
}
