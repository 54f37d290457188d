package ui

// Config contains TUI-specific configuration.
type Config struct {
	GlamourMaxWidth uint   `env:"BRIEFCAST_WIDTH"   envDefault:"100"`
	GlamourStyle    string `env:"GLAMOUR_STYLE"`
	EnableMouse     bool   `env:"BRIEFCAST_MOUSE"`

	// SeekStep is how far ←/→ move playback, in seconds.
	SeekStep float64 `env:"BRIEFCAST_SEEK_STEP" envDefault:"5"`

	// WatchDir is reloaded when another process writes to it. Empty
	// disables watching.
	WatchDir string

	// Concurrency bounds "generate all".
	Concurrency int `env:"BRIEFCAST_CONCURRENCY" envDefault:"2"`

	// For debugging the UI
	GlamourEnabled bool `env:"BRIEFCAST_ENABLE_GLAMOUR" envDefault:"true"`
}
