package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync/atomic"
)

// SQLStore is a database/sql backed WatermarkStore. It requires a table
// with schema:
//
//	CREATE TABLE im_watermarks (
//	    peer VARCHAR(128) PRIMARY KEY,
//	    seq BIGINT NOT NULL,
//	    updated_at TIMESTAMP WITH TIME ZONE DEFAULT NOW()
//	);
//
// CreateTable creates it for the configured dialect.
type SQLStore struct {
	db        *sql.DB
	tableName string
	dialect   Dialect
	closed    atomic.Bool
}

// Dialect selects the SQL syntax used for queries.
type Dialect int

const (
	// DialectPostgreSQL uses PostgreSQL syntax ($1, $2 placeholders).
	DialectPostgreSQL Dialect = iota
	// DialectMySQL uses MySQL syntax (? placeholders).
	DialectMySQL
	// DialectSQLite uses SQLite syntax (? placeholders).
	DialectSQLite
)

// String returns the dialect name.
func (d Dialect) String() string {
	switch d {
	case DialectPostgreSQL:
		return "postgres"
	case DialectMySQL:
		return "mysql"
	case DialectSQLite:
		return "sqlite"
	default:
		return "unknown"
	}
}

// ParseDialect parses a dialect name as returned by Dialect.String.
func ParseDialect(name string) (Dialect, error) {
	switch name {
	case "postgres", "postgresql":
		return DialectPostgreSQL, nil
	case "mysql":
		return DialectMySQL, nil
	case "sqlite", "sqlite3":
		return DialectSQLite, nil
	default:
		return 0, fmt.Errorf("store: unknown SQL dialect %q", name)
	}
}

// SQLOption configures an SQLStore.
type SQLOption func(*SQLStore)

// WithTableName sets the table name. Default: "im_watermarks".
func WithTableName(name string) SQLOption {
	return func(s *SQLStore) {
		s.tableName = name
	}
}

// WithDialect sets the SQL dialect. Default: DialectSQLite.
func WithDialect(d Dialect) SQLOption {
	return func(s *SQLStore) {
		s.dialect = d
	}
}

// NewSQLStore creates a store on db. The store does not own db.
func NewSQLStore(db *sql.DB, opts ...SQLOption) *SQLStore {
	s := &SQLStore{
		db:        db,
		tableName: "im_watermarks",
		dialect:   DialectSQLite,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *SQLStore) placeholder(n int) string {
	if s.dialect == DialectPostgreSQL {
		return fmt.Sprintf("$%d", n)
	}
	return "?"
}

func (s *SQLStore) upsertQuery() string {
	switch s.dialect {
	case DialectPostgreSQL:
		return fmt.Sprintf(`
			INSERT INTO %s (peer, seq, updated_at)
			VALUES ($1, $2, NOW())
			ON CONFLICT (peer) DO UPDATE SET
				seq = EXCLUDED.seq,
				updated_at = NOW()
		`, s.tableName)
	case DialectMySQL:
		return fmt.Sprintf(`
			INSERT INTO %s (peer, seq, updated_at)
			VALUES (?, ?, NOW())
			ON DUPLICATE KEY UPDATE
				seq = VALUES(seq),
				updated_at = NOW()
		`, s.tableName)
	default:
		return fmt.Sprintf(`
			INSERT INTO %s (peer, seq, updated_at)
			VALUES (?, ?, datetime('now'))
			ON CONFLICT (peer) DO UPDATE SET
				seq = excluded.seq,
				updated_at = excluded.updated_at
		`, s.tableName)
	}
}

// Load returns the stored sequence for key.
func (s *SQLStore) Load(ctx context.Context, key string) (int64, bool, error) {
	if s.closed.Load() {
		return 0, false, ErrStoreClosed
	}

	query := fmt.Sprintf(`SELECT seq FROM %s WHERE peer = %s`, s.tableName, s.placeholder(1))
	var seq int64
	err := s.db.QueryRowContext(ctx, query, key).Scan(&seq)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("store: load %s: %w", key, err)
	}
	return seq, true, nil
}

// Save stores seq for key.
func (s *SQLStore) Save(ctx context.Context, key string, seq int64) error {
	if s.closed.Load() {
		return ErrStoreClosed
	}
	if _, err := s.db.ExecContext(ctx, s.upsertQuery(), key, seq); err != nil {
		return fmt.Errorf("store: save %s: %w", key, err)
	}
	return nil
}

// SaveAll stores several watermarks in one transaction.
func (s *SQLStore) SaveAll(ctx context.Context, marks map[string]int64) error {
	if s.closed.Load() {
		return ErrStoreClosed
	}
	if len(marks) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, s.upsertQuery())
	if err != nil {
		return err
	}
	defer stmt.Close()

	for key, seq := range marks {
		if _, err := stmt.ExecContext(ctx, key, seq); err != nil {
			return fmt.Errorf("store: save %s: %w", key, err)
		}
	}
	return tx.Commit()
}

// Delete removes key.
func (s *SQLStore) Delete(ctx context.Context, key string) error {
	if s.closed.Load() {
		return ErrStoreClosed
	}
	query := fmt.Sprintf(`DELETE FROM %s WHERE peer = %s`, s.tableName, s.placeholder(1))
	_, err := s.db.ExecContext(ctx, query, key)
	return err
}

// Close marks the store closed. The database handle is left open since it
// may be shared.
func (s *SQLStore) Close() error {
	s.closed.Store(true)
	return nil
}

// CreateTable creates the watermark table if it doesn't exist.
func (s *SQLStore) CreateTable(ctx context.Context) error {
	var query string
	switch s.dialect {
	case DialectPostgreSQL:
		query = fmt.Sprintf(`
			CREATE TABLE IF NOT EXISTS %s (
				peer VARCHAR(128) PRIMARY KEY,
				seq BIGINT NOT NULL,
				updated_at TIMESTAMP WITH TIME ZONE DEFAULT NOW()
			)
		`, s.tableName)
	case DialectMySQL:
		query = fmt.Sprintf(`
			CREATE TABLE IF NOT EXISTS %s (
				peer VARCHAR(128) PRIMARY KEY,
				seq BIGINT NOT NULL,
				updated_at DATETIME DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP
			)
		`, s.tableName)
	default:
		query = fmt.Sprintf(`
			CREATE TABLE IF NOT EXISTS %s (
				peer TEXT PRIMARY KEY,
				seq INTEGER NOT NULL,
				updated_at TEXT DEFAULT (datetime('now'))
			)
		`, s.tableName)
	}

	_, err := s.db.ExecContext(ctx, query)
	return err
}
