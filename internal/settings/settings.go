// Package settings holds process-wide preferences with an explicit
// initialisation and write-through on every change.
package settings

import (
	"context"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/muesli/termenv"

	"github.com/briefcast/briefcast/internal/article"
	"github.com/briefcast/briefcast/internal/pipeline"
	"github.com/briefcast/briefcast/internal/store"
)

// ThemeStore persists the theme.
type ThemeStore interface {
	Theme(ctx context.Context) (store.Theme, bool, error)
	SaveTheme(ctx context.Context, t store.Theme) error
}

// Settings is shared by the UI, the CLI and the HTTP API.
type Settings struct {
	store ThemeStore

	mu       sync.RWMutex
	theme    store.Theme
	defaults pipeline.Options
	volume   float64
	watchers []func(store.Theme)
}

// DetectTheme returns the terminal's preference.
func DetectTheme() store.Theme {
	if termenv.HasDarkBackground() {
		return store.ThemeDark
	}
	return store.ThemeLight
}

// Load reads the persisted theme, falling back to detect when none is
// stored. A nil detect uses DetectTheme.
func Load(ctx context.Context, s ThemeStore, defaults pipeline.Options, detect func() store.Theme) (*Settings, error) {
	if detect == nil {
		detect = DetectTheme
	}
	if defaults.Voice == "" {
		defaults.Voice = article.DefaultVoice
	}
	if defaults.Language == "" {
		defaults.Language = article.DefaultLanguage
	}
	defaults.Pitch = article.ClampPitch(defaults.Pitch)

	theme, ok, err := s.Theme(ctx)
	if err != nil {
		return nil, err
	}
	if !ok {
		theme = detect()
		log.Debug("No saved theme, using terminal preference", "theme", theme)
	}
	return &Settings{store: s, theme: theme, defaults: defaults, volume: 1}, nil
}

// Theme returns the current theme.
func (s *Settings) Theme() store.Theme {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.theme
}

// SetTheme changes and persists the theme.
func (s *Settings) SetTheme(ctx context.Context, t store.Theme) error {
	if err := s.store.SaveTheme(ctx, t); err != nil {
		return err
	}
	s.mu.Lock()
	s.theme = t
	watchers := append([]func(store.Theme){}, s.watchers...)
	s.mu.Unlock()

	for _, fn := range watchers {
		fn(t)
	}
	return nil
}

// ToggleTheme switches between light and dark.
func (s *Settings) ToggleTheme(ctx context.Context) (store.Theme, error) {
	next := store.ThemeDark
	if s.Theme() == store.ThemeDark {
		next = store.ThemeLight
	}
	return next, s.SetTheme(ctx, next)
}

// OnThemeChange registers fn for theme changes.
func (s *Settings) OnThemeChange(fn func(store.Theme)) {
	s.mu.Lock()
	s.watchers = append(s.watchers, fn)
	s.mu.Unlock()
}

// Defaults returns the generation options new requests start from.
func (s *Settings) Defaults() pipeline.Options {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.defaults
}

// SetDefaults replaces the generation defaults for this process.
func (s *Settings) SetDefaults(o pipeline.Options) {
	s.mu.Lock()
	s.defaults = o
	s.mu.Unlock()
}

// Volume returns the playback volume.
func (s *Settings) Volume() float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.volume
}

// SetVolume sets the playback volume, clamped to [0,1].
func (s *Settings) SetVolume(v float64) {
	if v < 0 {
		v = 0
	}
	if v > 1 {
		v = 1
	}
	s.mu.Lock()
	s.volume = v
	s.mu.Unlock()
}
