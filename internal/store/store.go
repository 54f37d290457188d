// Package store persists the queue, the library and the theme.
//
// A Backend holds raw values under three named keys. Store layers the typed
// article lists and theme on top of it.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/briefcast/briefcast/internal/article"
)

// Key names a persisted entry.
type Key string

const (
	KeyQueue   Key = "queue"
	KeyLibrary Key = "library"
	KeyTheme   Key = "theme"
)

// Keys lists every persisted entry.
var Keys = []Key{KeyQueue, KeyLibrary, KeyTheme}

var (
	// ErrUnknownDriver is returned by Open for an unsupported driver.
	ErrUnknownDriver = errors.New("unknown store driver")

	// ErrUnknownKey is returned for keys outside Keys.
	ErrUnknownKey = errors.New("unknown store key")
)

// Backend reads and writes raw values. Get reports false for a key that was
// never written.
type Backend interface {
	Get(ctx context.Context, key Key) ([]byte, bool, error)
	Put(ctx context.Context, key Key, value []byte) error
	Close() error
}

// Theme is the persisted colour scheme.
type Theme string

const (
	ThemeLight Theme = "light"
	ThemeDark  Theme = "dark"
)

// ParseTheme parses "light" or "dark".
func ParseTheme(s string) (Theme, error) {
	switch t := Theme(strings.ToLower(strings.TrimSpace(s))); t {
	case ThemeLight, ThemeDark:
		return t, nil
	}
	return "", fmt.Errorf("unknown theme %q: use light or dark", s)
}

// Store reads and writes typed state through a Backend.
type Store struct {
	backend Backend
}

// New wraps a backend.
func New(b Backend) *Store {
	return &Store{backend: b}
}

// Load reads the queue and the library. Missing entries load as empty.
func (s *Store) Load(ctx context.Context) (article.Collection, error) {
	queue, err := s.articles(ctx, KeyQueue)
	if err != nil {
		return article.Collection{}, err
	}
	library, err := s.articles(ctx, KeyLibrary)
	if err != nil {
		return article.Collection{}, err
	}
	return article.Collection{Queue: queue, Library: library}, nil
}

// SaveQueue rewrites the queue entry.
func (s *Store) SaveQueue(ctx context.Context, items []article.Article) error {
	return s.putArticles(ctx, KeyQueue, items)
}

// SaveLibrary rewrites the library entry.
func (s *Store) SaveLibrary(ctx context.Context, items []article.Article) error {
	return s.putArticles(ctx, KeyLibrary, items)
}

// Save rewrites both lists of c.
func (s *Store) Save(ctx context.Context, c article.Collection) error {
	if err := s.SaveQueue(ctx, c.Queue); err != nil {
		return err
	}
	return s.SaveLibrary(ctx, c.Library)
}

// Theme returns the persisted theme, or false when none was saved.
func (s *Store) Theme(ctx context.Context) (Theme, bool, error) {
	raw, ok, err := s.backend.Get(ctx, KeyTheme)
	if err != nil || !ok {
		return "", false, err
	}
	t, err := ParseTheme(string(raw))
	if err != nil {
		return "", false, nil
	}
	return t, true, nil
}

// SaveTheme writes the theme entry.
func (s *Store) SaveTheme(ctx context.Context, t Theme) error {
	return s.backend.Put(ctx, KeyTheme, []byte(t))
}

// Close closes the backend.
func (s *Store) Close() error {
	return s.backend.Close()
}

func (s *Store) articles(ctx context.Context, key Key) ([]article.Article, error) {
	raw, ok, err := s.backend.Get(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", key, err)
	}
	if !ok || len(raw) == 0 {
		return nil, nil
	}
	var items []article.Article
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", key, err)
	}
	return items, nil
}

func (s *Store) putArticles(ctx context.Context, key Key, items []article.Article) error {
	if items == nil {
		items = []article.Article{}
	}
	raw, err := json.Marshal(items)
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", key, err)
	}
	if err := s.backend.Put(ctx, key, raw); err != nil {
		return fmt.Errorf("failed to write %s: %w", key, err)
	}
	return nil
}

func validKey(k Key) bool {
	for _, v := range Keys {
		if v == k {
			return true
		}
	}
	return false
}

// Config selects and configures a backend.
type Config struct {
	// Driver is file, sqlite3 or postgres.
	Driver string
	// Dir is the file backend's directory; empty uses the user data dir.
	Dir string
	// DSN is the SQL data source; empty sqlite3 uses Dir/briefcast.db.
	DSN string
}

// Open creates the configured backend.
func Open(ctx context.Context, cfg Config) (*Store, error) {
	switch cfg.Driver {
	case "", "file":
		b, err := NewFile(cfg.Dir)
		if err != nil {
			return nil, err
		}
		return New(b), nil
	case DriverSQLite, DriverPostgres:
		b, err := OpenSQL(ctx, cfg.Driver, cfg.DSN, cfg.Dir)
		if err != nil {
			return nil, err
		}
		return New(b), nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownDriver, cfg.Driver)
}
