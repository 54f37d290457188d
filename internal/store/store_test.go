package store

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/briefcast/briefcast/internal/article"
)

func backends(t *testing.T) map[string]Backend {
	t.Helper()
	ctx := context.Background()

	f, err := NewFile(t.TempDir())
	if err != nil {
		t.Fatalf("NewFile failed: %v", err)
	}
	s, err := OpenSQL(ctx, DriverSQLite, "", t.TempDir())
	if err != nil {
		t.Fatalf("OpenSQL failed: %v", err)
	}
	t.Cleanup(func() {
		_ = f.Close()
		_ = s.Close()
	})
	return map[string]Backend{"file": f, "sqlite3": s}
}

func sampleCollection() article.Collection {
	a := article.New("Rivers Rise", "Heavy rain.", "BBC", "https://bbc.com/news/world-12345")
	entry := article.NewEntry("Rain raised the rivers.", "AAAA", article.DefaultVoice, "English", 1, time.Date(2026, 3, 1, 7, 30, 0, 0, time.UTC))
	a = article.Commit(a, entry)
	b := article.New("Markets", "Stocks fell.", "", "")
	return article.Collection{Queue: []article.Article{a, b}, Library: []article.Article{a}}
}

func TestBackendRoundTrip(t *testing.T) {
	ctx := context.Background()
	for name, b := range backends(t) {
		t.Run(name, func(t *testing.T) {
			if _, ok, err := b.Get(ctx, KeyQueue); err != nil || ok {
				t.Fatalf("fresh backend Get = %v, %v; want missing", ok, err)
			}
			if err := b.Put(ctx, KeyTheme, []byte("dark")); err != nil {
				t.Fatalf("Put failed: %v", err)
			}
			if err := b.Put(ctx, KeyTheme, []byte("light")); err != nil {
				t.Fatalf("second Put failed: %v", err)
			}
			v, ok, err := b.Get(ctx, KeyTheme)
			if err != nil || !ok || string(v) != "light" {
				t.Errorf("Get = %q, %v, %v; want light", v, ok, err)
			}
			if err := b.Put(ctx, Key("other"), nil); !errors.Is(err, ErrUnknownKey) {
				t.Errorf("Put(other) err = %v, want ErrUnknownKey", err)
			}
		})
	}
}

func TestStoreCollection(t *testing.T) {
	ctx := context.Background()
	for name, b := range backends(t) {
		t.Run(name, func(t *testing.T) {
			s := New(b)
			empty, err := s.Load(ctx)
			if err != nil {
				t.Fatalf("Load failed: %v", err)
			}
			if len(empty.Queue) != 0 || len(empty.Library) != 0 {
				t.Errorf("fresh store should be empty, got %+v", empty)
			}

			want := sampleCollection()
			if err := s.Save(ctx, want); err != nil {
				t.Fatalf("Save failed: %v", err)
			}
			got, err := s.Load(ctx)
			if err != nil {
				t.Fatalf("Load failed: %v", err)
			}
			if len(got.Queue) != 2 || len(got.Library) != 1 {
				t.Fatalf("loaded %d queued, %d saved", len(got.Queue), len(got.Library))
			}
			if got.Queue[0].Current == nil || got.Queue[0].Current.Text != "Rain raised the rivers." {
				t.Errorf("current summary should survive, got %+v", got.Queue[0].Current)
			}
			if !got.Queue[0].Current.CreatedAt.Equal(want.Queue[0].Current.CreatedAt) {
				t.Errorf("created at = %v", got.Queue[0].Current.CreatedAt)
			}
		})
	}
}

func TestStoreTheme(t *testing.T) {
	ctx := context.Background()
	for name, b := range backends(t) {
		t.Run(name, func(t *testing.T) {
			s := New(b)
			if _, ok, _ := s.Theme(ctx); ok {
				t.Error("fresh store should have no theme")
			}
			if err := s.SaveTheme(ctx, ThemeDark); err != nil {
				t.Fatalf("SaveTheme failed: %v", err)
			}
			th, ok, err := s.Theme(ctx)
			if err != nil || !ok || th != ThemeDark {
				t.Errorf("Theme = %q, %v, %v", th, ok, err)
			}
		})
	}
}

func TestFileIsCompressed(t *testing.T) {
	dir := t.TempDir()
	f, err := NewFile(dir)
	if err != nil {
		t.Fatalf("NewFile failed: %v", err)
	}
	defer f.Close()

	if err := f.Put(context.Background(), KeyQueue, []byte(`[]`)); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	raw, err := os.ReadFile(filepath.Join(dir, "queue"+fileSuffix))
	if err != nil {
		t.Fatalf("queue file should exist: %v", err)
	}
	// zstd frame magic
	if len(raw) < 4 || raw[0] != 0x28 || raw[1] != 0xb5 || raw[2] != 0x2f || raw[3] != 0xfd {
		t.Errorf("queue file should be a zstd frame, got % x", raw)
	}
	leftovers, _ := filepath.Glob(filepath.Join(dir, "*.tmp"))
	if len(leftovers) != 0 {
		t.Errorf("temp files left behind: %v", leftovers)
	}
}

func TestParseTheme(t *testing.T) {
	tests := []struct {
		in      string
		want    Theme
		wantErr bool
	}{
		{"light", ThemeLight, false},
		{" Dark ", ThemeDark, false},
		{"blue", "", true},
	}
	for _, tt := range tests {
		got, err := ParseTheme(tt.in)
		if (err != nil) != tt.wantErr || got != tt.want {
			t.Errorf("ParseTheme(%q) = %q, %v", tt.in, got, err)
		}
	}
}

func TestOpenUnknownDriver(t *testing.T) {
	if _, err := Open(context.Background(), Config{Driver: "redis"}); !errors.Is(err, ErrUnknownDriver) {
		t.Errorf("err = %v, want ErrUnknownDriver", err)
	}
}
