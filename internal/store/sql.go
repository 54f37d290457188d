package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	sq "github.com/Masterminds/squirrel"
	_ "github.com/lib/pq"           // postgres driver
	_ "github.com/mattn/go-sqlite3" // sqlite3 driver
)

const (
	DriverSQLite   = "sqlite3"
	DriverPostgres = "postgres"

	stateTable = "briefcast_state"
)

// SQL keeps every key as a row of a single key/value table.
type SQL struct {
	db      *sql.DB
	builder sq.StatementBuilderType
}

// OpenSQL connects to driver and creates the state table. An empty sqlite3
// DSN uses briefcast.db inside dir.
func OpenSQL(ctx context.Context, driver, dsn, dir string) (*SQL, error) {
	if driver == DriverSQLite && dsn == "" {
		if dir == "" {
			d, err := DefaultDir()
			if err != nil {
				return nil, err
			}
			dir = d
		}
		dsn = filepath.Join(dir, "briefcast.db")
	}
	if dsn == "" {
		return nil, errors.New("store dsn is required for " + driver)
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", driver, err)
	}
	s, err := NewSQL(ctx, db, driver)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// NewSQL wraps an open database and creates the state table.
func NewSQL(ctx context.Context, db *sql.DB, driver string) (*SQL, error) {
	builder := sq.StatementBuilder
	if driver == DriverPostgres {
		builder = builder.PlaceholderFormat(sq.Dollar)
	}
	s := &SQL{db: db, builder: builder.RunWith(db)}
	if err := s.migrate(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *SQL) migrate(ctx context.Context) error {
	ddl := `CREATE TABLE IF NOT EXISTS ` + stateTable + ` (
		key        TEXT PRIMARY KEY,
		value      TEXT NOT NULL,
		updated_at TIMESTAMP NOT NULL
	)`
	if _, err := s.db.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("create state table: %w", err)
	}
	return nil
}

// Get reads key.
func (s *SQL) Get(ctx context.Context, key Key) ([]byte, bool, error) {
	if !validKey(key) {
		return nil, false, fmt.Errorf("%w: %q", ErrUnknownKey, key)
	}
	var value string
	err := s.builder.
		Select("value").
		From(stateTable).
		Where(sq.Eq{"key": string(key)}).
		QueryRowContext(ctx).
		Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("query %s: %w", key, err)
	}
	return []byte(value), true, nil
}

// Put upserts key.
func (s *SQL) Put(ctx context.Context, key Key, value []byte) error {
	if !validKey(key) {
		return fmt.Errorf("%w: %q", ErrUnknownKey, key)
	}
	_, err := s.builder.
		Insert(stateTable).
		Columns("key", "value", "updated_at").
		Values(string(key), string(value), time.Now().UTC()).
		Suffix("ON CONFLICT (key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at").
		ExecContext(ctx)
	if err != nil {
		return fmt.Errorf("upsert %s: %w", key, err)
	}
	return nil
}

// Close closes the database.
func (s *SQL) Close() error {
	return s.db.Close()
}
