package audio

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/log"
)

var (
	// ErrNoAudio is returned when playback is requested without a payload.
	ErrNoAudio = errors.New("no audio to play")

	// ErrEngineClosed is returned by operations on a closed engine.
	ErrEngineClosed = errors.New("playback engine closed")
)

// DefaultFrameInterval is how often the progress loop samples the clock.
const DefaultFrameInterval = 50 * time.Millisecond

// EventKind identifies a playback lifecycle event.
type EventKind int

const (
	EventStarted EventKind = iota
	EventStopped
	EventFinished
)

// String returns the string representation of the event kind.
func (k EventKind) String() string {
	switch k {
	case EventStarted:
		return "started"
	case EventStopped:
		return "stopped"
	case EventFinished:
		return "finished"
	default:
		return "unknown"
	}
}

// Event reports a playback lifecycle change of one article's engine.
type Event struct {
	ArticleID string
	Kind      EventKind
	Elapsed   float64
	Duration  float64
}

// Listener receives engine events. Events are never delivered while the
// engine holds its lock, so a listener may call back into the engine.
type Listener interface {
	PlaybackEvent(Event)
}

// ListenerFunc adapts a function to a Listener.
type ListenerFunc func(Event)

// PlaybackEvent calls f(ev).
func (f ListenerFunc) PlaybackEvent(ev Event) { f(ev) }

// Timer is a pending scheduled callback.
type Timer interface {
	Stop() bool
}

// Scheduler runs callbacks after a delay.
type Scheduler interface {
	AfterFunc(d time.Duration, fn func()) Timer
}

type clockScheduler struct{}

func (clockScheduler) AfterFunc(d time.Duration, fn func()) Timer {
	return time.AfterFunc(d, fn)
}

// State is a snapshot of an engine's transport.
type State struct {
	Playing  bool
	Elapsed  float64
	Duration float64
	Volume   float64
}

// Engine plays one article's audio payload and tracks its position.
//
// Only one source is live per engine. Each start bumps a generation token;
// completion callbacks and progress ticks carrying an older token are
// ignored, which keeps a superseded source from finishing the new one.
type Engine struct {
	id       string
	factory  ContextFactory
	listener Listener
	onError  func(error)
	sched    Scheduler
	interval time.Duration
	logger   *log.Logger

	mu         sync.Mutex
	ctx        Context
	gain       Gain
	payload    string
	buf        *Buffer
	source     Source
	generation uint64
	timer      Timer
	startRef   float64
	playing    bool
	elapsed    float64
	duration   float64
	volume     float64
	closed     bool
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithListener sets the receiver of lifecycle events.
func WithListener(l Listener) EngineOption {
	return func(e *Engine) { e.listener = l }
}

// WithOnError sets a hook called with every playback failure.
func WithOnError(fn func(error)) EngineOption {
	return func(e *Engine) { e.onError = fn }
}

// WithVolume sets the initial output volume.
func WithVolume(v float64) EngineOption {
	return func(e *Engine) { e.volume = Clamp(v, 0, 1) }
}

// WithFrameInterval sets the progress loop period.
func WithFrameInterval(d time.Duration) EngineOption {
	return func(e *Engine) {
		if d > 0 {
			e.interval = d
		}
	}
}

// WithScheduler replaces the timer source of the progress loop.
func WithScheduler(s Scheduler) EngineOption {
	return func(e *Engine) { e.sched = s }
}

// WithLogger sets the engine's logger.
func WithLogger(l *log.Logger) EngineOption {
	return func(e *Engine) { e.logger = l }
}

// NewEngine creates an engine for articleID. The output context is created
// through factory on the first start.
func NewEngine(articleID string, factory ContextFactory, opts ...EngineOption) *Engine {
	e := &Engine{
		id:       articleID,
		factory:  factory,
		sched:    clockScheduler{},
		interval: DefaultFrameInterval,
		volume:   1,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.logger == nil {
		e.logger = log.With("component", "engine", "article", articleID)
	}
	return e
}

// Clamp limits v to [lo, hi].
func Clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// ArticleID returns the id of the article the engine plays.
func (e *Engine) ArticleID() string { return e.id }

// SetPayload installs a base64 audio payload. A different payload drops the
// decoded buffer, stops any live source and resets the position.
func (e *Engine) SetPayload(payload string) {
	e.mu.Lock()
	if e.closed || payload == e.payload {
		e.mu.Unlock()
		return
	}
	wasPlaying := e.playing
	e.haltLocked()
	e.payload = payload
	e.buf = nil
	e.elapsed = 0
	e.duration = 0
	if payload != "" {
		e.duration = PayloadDuration(payload)
	}
	ev := e.eventLocked(EventStopped)
	e.mu.Unlock()

	if wasPlaying {
		e.emit(ev)
	}
}

// HasAudio reports whether a payload is installed.
func (e *Engine) HasAudio() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.payload != ""
}

// Start plays from offset seconds. An offset at or past the end reports
// finished without producing audio.
func (e *Engine) Start(offset float64) error {
	e.mu.Lock()
	ev, halted, err := e.startLocked(offset)
	e.mu.Unlock()

	if err != nil {
		e.logger.Error("Playback failed", "offset", offset, "error", err)
		if halted {
			e.emit(ev)
		}
		if e.onError != nil {
			e.onError(err)
		}
		return err
	}
	e.emit(ev)
	return nil
}

// startLocked reports halted when a source that was playing got stopped on
// the way to a failure; ev is then the stopped event to deliver.
func (e *Engine) startLocked(offset float64) (ev Event, halted bool, err error) {
	if e.closed {
		return Event{}, false, ErrEngineClosed
	}
	if e.payload == "" {
		return Event{}, false, ErrNoAudio
	}

	if e.ctx == nil {
		ctx, err := e.factory(SampleRate)
		if err != nil {
			return Event{}, false, fmt.Errorf("failed to create output context: %w", err)
		}
		gain, err := ctx.NewGain()
		if err != nil {
			_ = ctx.Close()
			return Event{}, false, fmt.Errorf("failed to create gain stage: %w", err)
		}
		gain.SetVolume(e.volume)
		e.ctx, e.gain = ctx, gain
	}

	if e.ctx.State() == ContextSuspended {
		if err := e.ctx.Resume(); err != nil {
			return Event{}, false, fmt.Errorf("failed to resume output context: %w", err)
		}
	}

	if e.buf == nil {
		data, err := Decode(e.payload)
		if err != nil {
			return Event{}, false, err
		}
		buf, err := DecodeAudioData(data, e.ctx, SampleRate, Channels)
		if err != nil {
			return Event{}, false, err
		}
		e.buf = buf
		e.duration = buf.Duration()
	}

	wasPlaying := e.playing
	e.haltLocked()

	offset = Clamp(offset, 0, e.duration)
	if offset >= e.duration {
		e.elapsed = e.duration
		return e.eventLocked(EventFinished), false, nil
	}

	src, err := e.ctx.NewSource(e.buf, e.gain)
	if err != nil {
		return e.eventLocked(EventStopped), wasPlaying, fmt.Errorf("failed to create source: %w", err)
	}
	gen := e.generation
	src.OnEnded(func() { e.ended(gen) })
	if err := src.Start(offset); err != nil {
		if stopErr := src.Stop(); stopErr != nil {
			e.logger.Debug("Stopping source failed", "error", stopErr)
		}
		return e.eventLocked(EventStopped), wasPlaying, fmt.Errorf("failed to start source: %w", err)
	}

	e.source = src
	e.startRef = e.ctx.CurrentTime() - offset
	e.elapsed = offset
	e.playing = true
	e.scheduleLocked(gen)

	e.logger.Debug("Playback started", "offset", offset, "duration", e.duration)
	return e.eventLocked(EventStarted), false, nil
}

// Stop halts playback and keeps the current position.
func (e *Engine) Stop() {
	e.mu.Lock()
	if !e.playing {
		e.mu.Unlock()
		return
	}
	e.elapsed = e.clockElapsedLocked()
	e.haltLocked()
	ev := e.eventLocked(EventStopped)
	e.mu.Unlock()

	e.emit(ev)
}

// Toggle stops when playing, else resumes from the current position or
// from the beginning once the end was reached.
func (e *Engine) Toggle() error {
	e.mu.Lock()
	playing := e.playing
	offset := e.elapsed
	if e.duration > 0 && offset >= e.duration {
		offset = 0
	}
	e.mu.Unlock()

	if playing {
		e.Stop()
		return nil
	}
	return e.Start(offset)
}

// SeekRelative moves the position by delta seconds, restarting the source
// when playing.
func (e *Engine) SeekRelative(delta float64) error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return ErrEngineClosed
	}
	current := e.elapsed
	if e.playing {
		current = e.clockElapsedLocked()
	}
	target := Clamp(current+delta, 0, e.duration)
	e.elapsed = target
	playing := e.playing
	e.mu.Unlock()

	if playing {
		return e.Start(target)
	}
	return nil
}

// SetVolume sets the output volume, clamped to [0, 1].
func (e *Engine) SetVolume(v float64) {
	v = Clamp(v, 0, 1)
	e.mu.Lock()
	defer e.mu.Unlock()
	e.volume = v
	if e.gain != nil {
		e.gain.SetVolume(v)
	}
}

// Snapshot returns the current transport state.
func (e *Engine) Snapshot() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	elapsed := e.elapsed
	if e.playing {
		elapsed = e.clockElapsedLocked()
	}
	return State{
		Playing:  e.playing,
		Elapsed:  elapsed,
		Duration: e.duration,
		Volume:   e.volume,
	}
}

// Playing reports whether a source is live.
func (e *Engine) Playing() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.playing
}

// Elapsed returns the position in seconds as of the last progress tick.
func (e *Engine) Elapsed() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.elapsed
}

// Duration returns the payload length in seconds.
func (e *Engine) Duration() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.duration
}

// Close cancels the progress loop, stops any live source and releases the
// output context. Further calls are no-ops.
func (e *Engine) Close() error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return nil
	}
	wasPlaying := e.playing
	e.haltLocked()
	e.closed = true
	ctx := e.ctx
	e.ctx, e.gain, e.buf = nil, nil, nil
	ev := e.eventLocked(EventStopped)
	e.mu.Unlock()

	if ctx != nil {
		if err := ctx.Close(); err != nil {
			e.logger.Debug("Closing output context failed", "error", err)
		}
	}
	if wasPlaying {
		e.emit(ev)
	}
	return nil
}

// haltLocked stops the live source and cancels the progress loop. Bumping
// the generation invalidates callbacks already in flight.
func (e *Engine) haltLocked() {
	e.generation++
	if e.timer != nil {
		e.timer.Stop()
		e.timer = nil
	}
	if e.source != nil {
		if err := e.source.Stop(); err != nil {
			e.logger.Debug("Stopping source failed", "error", err)
		}
		e.source = nil
	}
	e.playing = false
}

func (e *Engine) scheduleLocked(gen uint64) {
	e.timer = e.sched.AfterFunc(e.interval, func() { e.tick(gen) })
}

func (e *Engine) tick(gen uint64) {
	e.mu.Lock()
	if gen != e.generation || !e.playing {
		e.mu.Unlock()
		return
	}
	elapsed := e.clockElapsedLocked()
	if elapsed < e.duration {
		e.elapsed = elapsed
		e.scheduleLocked(gen)
		e.mu.Unlock()
		return
	}
	ev := e.finishLocked()
	e.mu.Unlock()

	e.emit(ev)
}

func (e *Engine) ended(gen uint64) {
	e.mu.Lock()
	if gen != e.generation || !e.playing {
		e.mu.Unlock()
		return
	}
	ev := e.finishLocked()
	e.mu.Unlock()

	e.emit(ev)
}

func (e *Engine) finishLocked() Event {
	e.haltLocked()
	e.elapsed = e.duration
	e.logger.Debug("Playback finished", "duration", e.duration)
	return e.eventLocked(EventFinished)
}

// clockElapsedLocked derives the position from the output clock.
func (e *Engine) clockElapsedLocked() float64 {
	if e.ctx == nil {
		return e.elapsed
	}
	return Clamp(e.ctx.CurrentTime()-e.startRef, 0, e.duration)
}

func (e *Engine) eventLocked(kind EventKind) Event {
	return Event{
		ArticleID: e.id,
		Kind:      kind,
		Elapsed:   e.elapsed,
		Duration:  e.duration,
	}
}

func (e *Engine) emit(ev Event) {
	if e.listener != nil {
		e.listener.PlaybackEvent(ev)
	}
}
