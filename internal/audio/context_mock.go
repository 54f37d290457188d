package audio

import (
	"errors"
	"sync"
	"time"
)

// MockContext implements Context without touching audio hardware. With a
// manual clock (the default) tests drive time through Advance and end
// sources with MockSource.End; with a wall clock sources end on their own.
type MockContext struct {
	mu         sync.Mutex
	sampleRate int
	wall       bool
	base       time.Time
	now        float64
	state      ContextState

	// MaxFrames makes CreateBuffer fail for longer buffers when > 0.
	MaxFrames int
	// SourceErr makes NewSource fail when set.
	SourceErr error
	// ResumeErr makes Resume fail when set.
	ResumeErr error
	// StartErr makes Start fail on sources created while it is set.
	StartErr error

	gains   []*MockGain
	sources []*MockSource
	resumes int
}

// MockOption configures a MockContext.
type MockOption func(*MockContext)

// WithWallClock makes the mock clock follow real time and end sources
// when their audio would have finished.
func WithWallClock() MockOption {
	return func(m *MockContext) { m.wall = true }
}

// Suspended starts the mock in the suspended state.
func Suspended() MockOption {
	return func(m *MockContext) { m.state = ContextSuspended }
}

// NewMockContext creates a mock output context.
func NewMockContext(sampleRate int, opts ...MockOption) *MockContext {
	m := &MockContext{sampleRate: sampleRate, base: time.Now()}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// MockFactory returns a ContextFactory that always hands out ctx.
func MockFactory(ctx *MockContext) ContextFactory {
	return func(sampleRate int) (Context, error) {
		ctx.mu.Lock()
		ctx.sampleRate = sampleRate
		ctx.mu.Unlock()
		return ctx, nil
	}
}

func (m *MockContext) SampleRate() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sampleRate
}

func (m *MockContext) CurrentTime() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.wall {
		return time.Since(m.base).Seconds()
	}
	return m.now
}

// Advance moves the manual clock forward.
func (m *MockContext) Advance(seconds float64) {
	m.mu.Lock()
	m.now += seconds
	m.mu.Unlock()
}

func (m *MockContext) State() ContextState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Suspend puts the context in the suspended state.
func (m *MockContext) Suspend() {
	m.mu.Lock()
	m.state = ContextSuspended
	m.mu.Unlock()
}

func (m *MockContext) Resume() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.resumes++
	if m.ResumeErr != nil {
		return m.ResumeErr
	}
	if m.state == ContextClosed {
		return ErrContextClosed
	}
	m.state = ContextRunning
	return nil
}

// Resumes reports how many times Resume was called.
func (m *MockContext) Resumes() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.resumes
}

func (m *MockContext) CreateBuffer(channels, frames, sampleRate int) (*Buffer, error) {
	m.mu.Lock()
	limit := m.MaxFrames
	m.mu.Unlock()
	if limit > 0 && frames > limit {
		return nil, errors.New("buffer too large for output context")
	}
	return NewBuffer(channels, frames, sampleRate)
}

func (m *MockContext) NewGain() (Gain, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	g := &MockGain{volume: 1}
	m.gains = append(m.gains, g)
	return g, nil
}

func (m *MockContext) NewSource(buf *Buffer, gain Gain) (Source, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.SourceErr != nil {
		return nil, m.SourceErr
	}
	if m.state == ContextClosed {
		return nil, ErrContextClosed
	}
	s := &MockSource{buf: buf, gain: gain, wall: m.wall, startErr: m.StartErr}
	m.sources = append(m.sources, s)
	return s, nil
}

// Gains returns every gain stage created so far.
func (m *MockContext) Gains() []*MockGain {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*MockGain(nil), m.gains...)
}

// Sources returns every source created so far, oldest first.
func (m *MockContext) Sources() []*MockSource {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*MockSource(nil), m.sources...)
}

// LastSource returns the most recently created source, or nil.
func (m *MockContext) LastSource() *MockSource {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.sources) == 0 {
		return nil
	}
	return m.sources[len(m.sources)-1]
}

func (m *MockContext) Close() error {
	m.mu.Lock()
	m.state = ContextClosed
	sources := append([]*MockSource(nil), m.sources...)
	m.mu.Unlock()
	for _, s := range sources {
		_ = s.Stop()
	}
	return nil
}

// MockGain records the volume it was set to.
type MockGain struct {
	mu     sync.Mutex
	volume float64
}

func (g *MockGain) SetVolume(v float64) {
	g.mu.Lock()
	g.volume = v
	g.mu.Unlock()
}

func (g *MockGain) Volume() float64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.volume
}

// MockSource records how it was driven.
type MockSource struct {
	buf  *Buffer
	gain Gain
	wall bool

	mu      sync.Mutex
	started bool
	stopped bool
	offset  float64
	ended   func()
	timer   *time.Timer
	StopErr error

	startErr error
}

func (s *MockSource) OnEnded(fn func()) {
	s.mu.Lock()
	s.ended = fn
	s.mu.Unlock()
}

func (s *MockSource) Start(offset float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return errors.New("source already started")
	}
	if s.startErr != nil {
		return s.startErr
	}
	s.started = true
	s.offset = offset
	if s.wall {
		remaining := time.Duration((s.buf.Duration() - offset) * float64(time.Second))
		s.timer = time.AfterFunc(remaining, s.End)
	}
	return nil
}

func (s *MockSource) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopped = true
	if s.timer != nil {
		s.timer.Stop()
	}
	return s.StopErr
}

// End simulates the source playing to its natural end.
func (s *MockSource) End() {
	s.mu.Lock()
	if s.stopped || !s.started {
		s.mu.Unlock()
		return
	}
	s.stopped = true
	fn := s.ended
	s.mu.Unlock()
	if fn != nil {
		fn()
	}
}

// FireEnded invokes the completion callback even if the source was stopped,
// the way a late device callback might arrive.
func (s *MockSource) FireEnded() {
	s.mu.Lock()
	fn := s.ended
	s.mu.Unlock()
	if fn != nil {
		fn()
	}
}

// Offset returns the offset the source was started at.
func (s *MockSource) Offset() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.offset
}

// Started reports whether Start was called.
func (s *MockSource) Started() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.started
}

// Stopped reports whether the source was stopped or ended.
func (s *MockSource) Stopped() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stopped
}
