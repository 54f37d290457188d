package store

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/klauspost/compress/zstd"
	gap "github.com/muesli/go-app-paths"
)

const fileSuffix = ".json.zst"

// File keeps each key in its own zstd-compressed file.
type File struct {
	dir string

	mu      sync.Mutex
	encoder *zstd.Encoder
	decoder *zstd.Decoder
}

// DefaultDir returns the user data directory for briefcast.
func DefaultDir() (string, error) {
	scope := gap.NewScope(gap.User, "briefcast")
	dirs, err := scope.DataDirs()
	if err != nil || len(dirs) == 0 {
		return "", fmt.Errorf("could not find data directory: %w", err)
	}
	return dirs[0], nil
}

// NewFile opens a file backend in dir, creating it if needed. An empty dir
// uses DefaultDir.
func NewFile(dir string) (*File, error) {
	if dir == "" {
		d, err := DefaultDir()
		if err != nil {
			return nil, err
		}
		dir = d
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("unable to create store directory: %w", err)
	}
	enc, err := zstd.NewWriter(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create zstd encoder: %w", err)
	}
	dec, err := zstd.NewReader(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create zstd decoder: %w", err)
	}
	return &File{dir: dir, encoder: enc, decoder: dec}, nil
}

// Dir returns the backend directory.
func (f *File) Dir() string { return f.dir }

// Path returns the file holding key.
func (f *File) Path(key Key) string {
	return filepath.Join(f.dir, string(key)+fileSuffix)
}

// Get reads key.
func (f *File) Get(_ context.Context, key Key) ([]byte, bool, error) {
	if !validKey(key) {
		return nil, false, fmt.Errorf("%w: %q", ErrUnknownKey, key)
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	raw, err := os.ReadFile(f.Path(key))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("unable to read %s: %w", key, err)
	}
	value, err := f.decoder.DecodeAll(raw, nil)
	if err != nil {
		return nil, false, fmt.Errorf("unable to decompress %s: %w", key, err)
	}
	return value, true, nil
}

// Put atomically replaces key.
func (f *File) Put(_ context.Context, key Key, value []byte) error {
	if !validKey(key) {
		return fmt.Errorf("%w: %q", ErrUnknownKey, key)
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	tmp, err := os.CreateTemp(f.dir, string(key)+"-*.tmp")
	if err != nil {
		return fmt.Errorf("unable to create temp file: %w", err)
	}
	defer os.Remove(tmp.Name()) //nolint:errcheck

	if _, err := tmp.Write(f.encoder.EncodeAll(value, nil)); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("unable to write %s: %w", key, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("unable to write %s: %w", key, err)
	}
	if err := os.Rename(tmp.Name(), f.Path(key)); err != nil {
		return fmt.Errorf("unable to replace %s: %w", key, err)
	}
	return nil
}

// Close releases the compressor.
func (f *File) Close() error {
	f.decoder.Close()
	return f.encoder.Close()
}
