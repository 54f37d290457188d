package audio

import (
	"errors"
	"fmt"
	"os"

	"github.com/charmbracelet/log"
)

// ErrContextClosed is returned by operations on a closed output context.
var ErrContextClosed = errors.New("audio context closed")

// ContextState is the run state of an output context.
type ContextState int

const (
	// ContextRunning means the output clock advances and sources are audible.
	ContextRunning ContextState = iota
	// ContextSuspended means output is paused, e.g. until the device is resumed.
	ContextSuspended
	// ContextClosed means the context can no longer be used.
	ContextClosed
)

// String returns the string representation of the state.
func (s ContextState) String() string {
	switch s {
	case ContextRunning:
		return "running"
	case ContextSuspended:
		return "suspended"
	case ContextClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Context is an audio output graph: a clock, a gain stage and one-shot
// sources. Both the oto-backed device and the mock implement it.
type Context interface {
	Allocator

	// SampleRate returns the output rate in Hz.
	SampleRate() int

	// CurrentTime returns the output clock in seconds. It is monotonic.
	CurrentTime() float64

	// State returns whether the context is running, suspended or closed.
	State() ContextState

	// Resume restarts a suspended context.
	Resume() error

	// NewGain creates a volume stage that sources connect through.
	NewGain() (Gain, error)

	// NewSource creates a one-shot source that plays buf through gain.
	NewSource(buf *Buffer, gain Gain) (Source, error)

	// Close releases the context.
	Close() error
}

// Gain is a persistent volume stage.
type Gain interface {
	SetVolume(v float64)
	Volume() float64
}

// Source plays a buffer once. It cannot be restarted after Stop.
type Source interface {
	// Start begins playback at offset seconds into the buffer.
	Start(offset float64) error

	// Stop halts playback. Stopping an ended source is not an error.
	Stop() error

	// OnEnded registers fn to be called once when the source plays to the end.
	OnEnded(fn func())
}

// ContextFactory lazily creates an output context at the given rate.
type ContextFactory func(sampleRate int) (Context, error)

// Backend names an output implementation.
type Backend string

const (
	// BackendAuto picks oto when an audio device is usable, else the mock.
	BackendAuto Backend = "auto"
	// BackendOto plays through the system audio device.
	BackendOto Backend = "oto"
	// BackendMock plays nothing and advances a wall clock.
	BackendMock Backend = "mock"
)

// ParseBackend validates a backend name.
func ParseBackend(s string) (Backend, error) {
	switch Backend(s) {
	case "", BackendAuto:
		return BackendAuto, nil
	case BackendOto, BackendMock:
		return Backend(s), nil
	default:
		return "", fmt.Errorf("unknown audio backend %q (supported: auto, oto, mock)", s)
	}
}

// IsCI detects if we're running in a CI environment.
func IsCI() bool {
	ciVars := []string{
		"CI",
		"CONTINUOUS_INTEGRATION",
		"GITHUB_ACTIONS",
		"GITLAB_CI",
		"JENKINS_URL",
		"BUILDKITE",
	}

	for _, envVar := range ciVars {
		if val := os.Getenv(envVar); val != "" && val != "false" {
			log.Debug("CI environment detected", "variable", envVar)
			return true
		}
	}
	return os.Getenv("BRIEFCAST_MOCK_AUDIO") == "true"
}

// NewFactory returns a ContextFactory for the backend.
func NewFactory(backend Backend) ContextFactory {
	switch backend {
	case BackendMock:
		return wallClockMockFactory
	case BackendOto:
		return NewOtoContext
	default:
		if IsCI() {
			log.Info("Using mock audio context", "reason", "CI environment")
			return wallClockMockFactory
		}
		return func(sampleRate int) (Context, error) {
			ctx, err := NewOtoContext(sampleRate)
			if err != nil {
				log.Warn("Failed to open audio device, falling back to mock", "error", err)
				return wallClockMockFactory(sampleRate)
			}
			return ctx, nil
		}
	}
}

func wallClockMockFactory(sampleRate int) (Context, error) {
	return NewMockContext(sampleRate, WithWallClock()), nil
}
