package audio

import (
	"encoding/base64"
	"errors"
	"sync"
	"testing"
	"time"
)

// manualScheduler queues callbacks until the test fires them.
type manualScheduler struct {
	mu      sync.Mutex
	pending []*manualTimer
}

type manualTimer struct {
	fn      func()
	stopped bool
}

func (t *manualTimer) Stop() bool {
	was := !t.stopped
	t.stopped = true
	return was
}

func (s *manualScheduler) AfterFunc(_ time.Duration, fn func()) Timer {
	s.mu.Lock()
	defer s.mu.Unlock()
	t := &manualTimer{fn: fn}
	s.pending = append(s.pending, t)
	return t
}

// fire runs every queued, non-cancelled callback once.
func (s *manualScheduler) fire() int {
	s.mu.Lock()
	due := s.pending
	s.pending = nil
	s.mu.Unlock()

	n := 0
	for _, t := range due {
		if !t.stopped {
			t.fn()
			n++
		}
	}
	return n
}

func (s *manualScheduler) live() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, t := range s.pending {
		if !t.stopped {
			n++
		}
	}
	return n
}

type recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *recorder) PlaybackEvent(ev Event) {
	r.mu.Lock()
	r.events = append(r.events, ev)
	r.mu.Unlock()
}

func (r *recorder) kinds() []EventKind {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]EventKind, len(r.events))
	for i, ev := range r.events {
		out[i] = ev.Kind
	}
	return out
}

func (r *recorder) last() Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.events[len(r.events)-1]
}

func payloadSeconds(seconds float64) string {
	return base64.StdEncoding.EncodeToString(make([]byte, int(seconds*SampleRate)*2))
}

type engineFixture struct {
	ctx   *MockContext
	sched *manualScheduler
	rec   *recorder
	errs  []error
	eng   *Engine
}

func newFixture(t *testing.T, seconds float64, opts ...EngineOption) *engineFixture {
	t.Helper()
	f := &engineFixture{
		ctx:   NewMockContext(SampleRate),
		sched: &manualScheduler{},
		rec:   &recorder{},
	}
	opts = append([]EngineOption{
		WithScheduler(f.sched),
		WithListener(f.rec),
		WithOnError(func(err error) { f.errs = append(f.errs, err) }),
	}, opts...)
	f.eng = NewEngine("a1", MockFactory(f.ctx), opts...)
	if seconds > 0 {
		f.eng.SetPayload(payloadSeconds(seconds))
	}
	t.Cleanup(func() { _ = f.eng.Close() })
	return f
}

func equalKinds(a, b []EventKind) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestEngineStartAndProgress(t *testing.T) {
	f := newFixture(t, 10)

	if got := f.eng.Duration(); got != 10 {
		t.Fatalf("duration should be known from the payload, got %v", got)
	}
	if err := f.eng.Start(0); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if !f.eng.Playing() {
		t.Fatal("engine should be playing")
	}
	if !equalKinds(f.rec.kinds(), []EventKind{EventStarted}) {
		t.Errorf("unexpected events %v", f.rec.kinds())
	}

	f.ctx.Advance(3)
	f.sched.fire()
	if got := f.eng.Elapsed(); got != 3 {
		t.Errorf("elapsed should be 3, got %v", got)
	}

	// Elapsed is a clock delta, not a sum of ticks.
	f.sched.fire()
	f.sched.fire()
	if got := f.eng.Elapsed(); got != 3 {
		t.Errorf("extra ticks should not move elapsed, got %v", got)
	}

	f.ctx.Advance(7)
	f.sched.fire()
	if f.eng.Playing() {
		t.Error("engine should finish at the end of the buffer")
	}
	if got := f.eng.Elapsed(); got != 10 {
		t.Errorf("elapsed should be 10 after finish, got %v", got)
	}
	if !equalKinds(f.rec.kinds(), []EventKind{EventStarted, EventFinished}) {
		t.Errorf("unexpected events %v", f.rec.kinds())
	}
	if f.sched.live() != 0 {
		t.Error("progress loop should be cancelled after finish")
	}
}

func TestEngineSeekPastEndFinishes(t *testing.T) {
	f := newFixture(t, 10)

	if err := f.eng.Start(0); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if err := f.eng.SeekRelative(15); err != nil {
		t.Fatalf("SeekRelative failed: %v", err)
	}

	if got := f.eng.Elapsed(); got != 10 {
		t.Errorf("elapsed should clamp to 10, got %v", got)
	}
	if f.eng.Playing() {
		t.Error("engine should not be playing after seeking to the end")
	}
	if last := f.rec.last(); last.Kind != EventFinished {
		t.Errorf("last event should be finished, got %v", last.Kind)
	}
	if n := len(f.ctx.Sources()); n != 1 {
		t.Errorf("seeking to the end should not start a source, got %d sources", n)
	}
}

func TestEngineSeekWhilePlayingRestarts(t *testing.T) {
	f := newFixture(t, 10)

	if err := f.eng.Start(0); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	f.ctx.Advance(2)
	if err := f.eng.SeekRelative(3); err != nil {
		t.Fatalf("SeekRelative failed: %v", err)
	}

	sources := f.ctx.Sources()
	if len(sources) != 2 {
		t.Fatalf("seek should restart the source, got %d sources", len(sources))
	}
	if !sources[0].Stopped() {
		t.Error("previous source should be stopped")
	}
	if got := sources[1].Offset(); got != 5 {
		t.Errorf("new source should start at 5, got %v", got)
	}

	if err := f.eng.SeekRelative(-20); err != nil {
		t.Fatalf("SeekRelative failed: %v", err)
	}
	if got := f.ctx.LastSource().Offset(); got != 0 {
		t.Errorf("seek before start should clamp to 0, got %v", got)
	}
}

func TestEngineSeekWhileStopped(t *testing.T) {
	f := newFixture(t, 10)

	if err := f.eng.SeekRelative(4); err != nil {
		t.Fatalf("SeekRelative failed: %v", err)
	}
	if got := f.eng.Elapsed(); got != 4 {
		t.Errorf("elapsed should be 4, got %v", got)
	}
	if len(f.ctx.Sources()) != 0 {
		t.Error("seeking while stopped should not start playback")
	}

	if err := f.eng.Toggle(); err != nil {
		t.Fatalf("Toggle failed: %v", err)
	}
	if got := f.ctx.LastSource().Offset(); got != 4 {
		t.Errorf("toggle should resume at 4, got %v", got)
	}
}

func TestClampIdempotent(t *testing.T) {
	for _, v := range []float64{-5, 0, 3.2, 10, 12} {
		once := Clamp(v, 0, 10)
		if twice := Clamp(once, 0, 10); twice != once {
			t.Errorf("Clamp not idempotent for %v: %v then %v", v, once, twice)
		}
	}
	if got := Clamp(4, 0, 10); got != 4 {
		t.Errorf("in-range value should be unchanged, got %v", got)
	}
}

func TestEngineStaleEndedIgnored(t *testing.T) {
	f := newFixture(t, 10)

	if err := f.eng.Start(0); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	first := f.ctx.LastSource()
	if err := f.eng.Start(4); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	// The superseded source reports completion late.
	first.FireEnded()

	if !f.eng.Playing() {
		t.Error("a stale completion should not stop the current source")
	}
	for _, k := range f.rec.kinds() {
		if k == EventFinished {
			t.Error("a stale completion should not report finished")
		}
	}

	f.ctx.LastSource().End()
	if f.eng.Playing() {
		t.Error("the current source ending should finish playback")
	}
	if f.rec.last().Kind != EventFinished {
		t.Errorf("expected finished, got %v", f.rec.last().Kind)
	}
}

func TestEngineToggle(t *testing.T) {
	f := newFixture(t, 10)

	if err := f.eng.Toggle(); err != nil {
		t.Fatalf("Toggle failed: %v", err)
	}
	f.ctx.Advance(6)
	if err := f.eng.Toggle(); err != nil {
		t.Fatalf("Toggle failed: %v", err)
	}
	if f.eng.Playing() {
		t.Fatal("second toggle should stop")
	}
	if got := f.eng.Elapsed(); got != 6 {
		t.Errorf("stop should keep the position, got %v", got)
	}
	if f.sched.live() != 0 {
		t.Error("stop should cancel the progress loop")
	}

	if err := f.eng.SeekRelative(10); err != nil {
		t.Fatalf("SeekRelative failed: %v", err)
	}
	if err := f.eng.Toggle(); err != nil {
		t.Fatalf("Toggle failed: %v", err)
	}
	if got := f.ctx.LastSource().Offset(); got != 0 {
		t.Errorf("toggle at the end should restart from 0, got %v", got)
	}

	want := []EventKind{EventStarted, EventStopped, EventStarted}
	if !equalKinds(f.rec.kinds(), want) {
		t.Errorf("events = %v, want %v", f.rec.kinds(), want)
	}
}

func TestEngineStopWhenIdleIsSilent(t *testing.T) {
	f := newFixture(t, 10)
	f.eng.Stop()
	if len(f.rec.kinds()) != 0 {
		t.Errorf("stopping an idle engine should not report, got %v", f.rec.kinds())
	}
}

func TestEngineStopToleratesEndedSource(t *testing.T) {
	f := newFixture(t, 10)
	if err := f.eng.Start(0); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	f.ctx.LastSource().StopErr = errors.New("already stopped")
	f.eng.Stop()
	if f.eng.Playing() {
		t.Error("engine should be stopped even if the source complains")
	}
}

func TestEngineVolume(t *testing.T) {
	f := newFixture(t, 10, WithVolume(0.5))

	f.eng.SetVolume(0.3)
	if err := f.eng.Start(0); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	gains := f.ctx.Gains()
	if len(gains) != 1 {
		t.Fatalf("expected one gain stage, got %d", len(gains))
	}
	if got := gains[0].Volume(); got != 0.3 {
		t.Errorf("stored volume should apply on start, got %v", got)
	}

	f.eng.SetVolume(2)
	if got := gains[0].Volume(); got != 1 {
		t.Errorf("volume should clamp and apply live, got %v", got)
	}

	if err := f.eng.Start(1); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if len(f.ctx.Gains()) != 1 {
		t.Error("the gain stage should be reused across starts")
	}
}

func TestEngineResumesSuspendedContext(t *testing.T) {
	f := newFixture(t, 10)
	f.ctx.Suspend()

	if err := f.eng.Start(0); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if f.ctx.State() != ContextRunning {
		t.Errorf("context should be running, got %v", f.ctx.State())
	}
	if f.ctx.Resumes() != 1 {
		t.Errorf("expected one resume, got %d", f.ctx.Resumes())
	}
}

func TestEngineFailures(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		setup   func(*MockContext)
		wantErr error
	}{
		{name: "no payload", wantErr: ErrNoAudio},
		{name: "malformed payload", payload: "%%%", wantErr: ErrMalformedPayload},
		{name: "partial sample", payload: base64.StdEncoding.EncodeToString([]byte{1, 2, 3}), wantErr: ErrPartialSample},
		{
			name:    "source failure",
			payload: payloadSeconds(1),
			setup:   func(m *MockContext) { m.SourceErr = errors.New("device gone") },
		},
		{
			name:    "resume failure",
			payload: payloadSeconds(1),
			setup: func(m *MockContext) {
				m.Suspend()
				m.ResumeErr = errors.New("autoplay blocked")
			},
		},
		{
			name:    "allocation failure",
			payload: payloadSeconds(1),
			setup:   func(m *MockContext) { m.MaxFrames = 100 },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, 0)
			if tt.setup != nil {
				tt.setup(f.ctx)
			}
			f.eng.SetPayload(tt.payload)

			err := f.eng.Start(0)
			if err == nil {
				t.Fatal("expected an error")
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Errorf("expected %v, got %v", tt.wantErr, err)
			}
			if len(f.errs) != 1 {
				t.Errorf("error hook should fire once, fired %d times", len(f.errs))
			}
			if f.eng.Playing() {
				t.Error("engine should not be playing after a failure")
			}
		})
	}
}

func TestEngineRestartFailureReportsStopped(t *testing.T) {
	tests := []struct {
		name  string
		setup func(*MockContext)
	}{
		{"source failure", func(m *MockContext) { m.SourceErr = errors.New("device gone") }},
		{"start failure", func(m *MockContext) { m.StartErr = errors.New("device gone") }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, 10)
			if err := f.eng.Start(0); err != nil {
				t.Fatalf("Start failed: %v", err)
			}
			first := f.ctx.LastSource()

			tt.setup(f.ctx)
			if err := f.eng.SeekRelative(2); err == nil {
				t.Fatal("expected an error")
			}

			if f.eng.Playing() {
				t.Error("engine should not be playing after a failed restart")
			}
			if !equalKinds(f.rec.kinds(), []EventKind{EventStarted, EventStopped}) {
				t.Errorf("unexpected events %v", f.rec.kinds())
			}
			if len(f.errs) != 1 {
				t.Errorf("error hook should fire once, fired %d times", len(f.errs))
			}
			for i, src := range f.ctx.Sources() {
				if !src.Stopped() {
					t.Errorf("source %d left running", i)
				}
			}
			if !first.Stopped() {
				t.Error("the previous source should be stopped")
			}
		})
	}
}

func TestEngineFailureWhileIdleReportsNothing(t *testing.T) {
	f := newFixture(t, 10)
	f.ctx.SourceErr = errors.New("device gone")

	if err := f.eng.Start(0); err == nil {
		t.Fatal("expected an error")
	}
	if n := len(f.rec.kinds()); n != 0 {
		t.Errorf("an idle engine should not report events, got %v", f.rec.kinds())
	}
}

func TestEngineFactoryFailure(t *testing.T) {
	var hooked error
	eng := NewEngine("a1", func(int) (Context, error) {
		return nil, errors.New("no device")
	}, WithOnError(func(err error) { hooked = err }))
	eng.SetPayload(payloadSeconds(1))

	if err := eng.Start(0); err == nil {
		t.Fatal("expected an error")
	}
	if hooked == nil {
		t.Error("error hook should fire")
	}
}

func TestEngineSetPayloadResets(t *testing.T) {
	f := newFixture(t, 10)

	if err := f.eng.Start(2); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	first := f.ctx.LastSource()

	f.eng.SetPayload(payloadSeconds(4))
	if !first.Stopped() {
		t.Error("a new payload should stop the live source")
	}
	if f.eng.Playing() || f.eng.Elapsed() != 0 {
		t.Errorf("a new payload should reset the transport, got playing=%v elapsed=%v",
			f.eng.Playing(), f.eng.Elapsed())
	}
	if got := f.eng.Duration(); got != 4 {
		t.Errorf("duration should follow the new payload, got %v", got)
	}

	// The same payload again changes nothing.
	before := len(f.rec.kinds())
	f.eng.SetPayload(payloadSeconds(4))
	if len(f.rec.kinds()) != before {
		t.Error("installing the same payload should be a no-op")
	}
}

func TestEngineClose(t *testing.T) {
	f := newFixture(t, 10)

	if err := f.eng.Start(0); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	src := f.ctx.LastSource()
	src.StopErr = errors.New("already stopped")

	if err := f.eng.Close(); err != nil {
		t.Errorf("Close should suppress stop errors, got %v", err)
	}
	if !src.Stopped() {
		t.Error("Close should stop the live source")
	}
	if f.sched.live() != 0 {
		t.Error("Close should cancel the progress loop")
	}
	if f.ctx.State() != ContextClosed {
		t.Error("Close should release the context")
	}
	if err := f.eng.Close(); err != nil {
		t.Errorf("second Close should be a no-op, got %v", err)
	}
	if err := f.eng.Start(0); !errors.Is(err, ErrEngineClosed) {
		t.Errorf("Start after Close should fail with ErrEngineClosed, got %v", err)
	}

	// A completion arriving after teardown is dropped.
	src.FireEnded()
	if f.rec.last().Kind == EventFinished {
		t.Error("completion after Close should be ignored")
	}
}

func TestEngineWallClockMock(t *testing.T) {
	done := make(chan Event, 1)
	eng := NewEngine("a1", NewFactory(BackendMock),
		WithFrameInterval(5*time.Millisecond),
		WithListener(ListenerFunc(func(ev Event) {
			if ev.Kind == EventFinished {
				done <- ev
			}
		})))
	defer eng.Close()

	eng.SetPayload(payloadSeconds(0.05))
	if err := eng.Start(0); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	select {
	case ev := <-done:
		if ev.Elapsed != ev.Duration {
			t.Errorf("finished event should carry the full duration, got %v/%v", ev.Elapsed, ev.Duration)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("playback never finished")
	}
}
