package briefing

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/charmbracelet/log"

	"github.com/briefcast/briefcast/internal/article"
	"github.com/briefcast/briefcast/internal/audio"
	"github.com/briefcast/briefcast/internal/pipeline"
	"github.com/briefcast/briefcast/internal/queue"
)

var (
	// ErrNotReady is returned when playback is requested outside the ready status.
	ErrNotReady = errors.New("summary audio is not ready")

	// ErrNothingToUndo is returned by UndoFeedback with an empty stack.
	ErrNothingToUndo = errors.New("no feedback to undo")
)

// SessionState is what a card shows about one article.
type SessionState struct {
	Article  article.Article
	Status   pipeline.Snapshot
	Playback audio.State
	Active   bool
	CanUndo  bool
}

// Session ties one article's generation pipeline to its playback engine.
type Session struct {
	id      string
	desk    *Desk
	pipe    *pipeline.Pipeline
	engine  *audio.Engine
	logger  *log.Logger
	unsubs  []func()
	closeMu sync.Once

	mu   sync.Mutex
	undo []article.Feedback
}

func newSession(d *Desk, a article.Article) *Session {
	s := &Session{
		id:     a.ID,
		desk:   d,
		logger: log.With("component", "session", "article", a.ID),
	}
	s.pipe = pipeline.New(a, d.cfg.Summarizer, d.cfg.Synthesizer, d, pipeline.WithClock(d.cfg.Now))

	opts := []audio.EngineOption{
		audio.WithListener(audio.ListenerFunc(d.playbackEvent)),
		audio.WithOnError(s.playbackFailed),
		audio.WithVolume(d.prefs.Volume()),
	}
	if d.cfg.FrameInterval > 0 {
		opts = append(opts, audio.WithFrameInterval(d.cfg.FrameInterval))
	}
	if d.cfg.Scheduler != nil {
		opts = append(opts, audio.WithScheduler(d.cfg.Scheduler))
	}
	s.engine = audio.NewEngine(a.ID, d.cfg.Factory, opts...)
	if a.Current != nil {
		s.engine.SetPayload(a.Current.Audio)
	}

	s.unsubs = append(s.unsubs,
		s.pipe.Subscribe(func(snap pipeline.Snapshot) {
			d.events.publish(Event{Kind: EventStatus, ArticleID: s.id, Status: snap})
		}),
		d.coord.Subscribe(s.activeChanged),
	)
	return s
}

// ID returns the article id.
func (s *Session) ID() string { return s.id }

// Article returns the stored article.
func (s *Session) Article() (article.Article, error) {
	a, ok := s.desk.Find(s.id)
	if !ok {
		return article.Article{}, fmt.Errorf("%w: %s", ErrArticleNotFound, s.id)
	}
	return a, nil
}

// State returns the card state.
func (s *Session) State() SessionState {
	a, _ := s.desk.Find(s.id)
	s.mu.Lock()
	canUndo := len(s.undo) > 0
	s.mu.Unlock()
	return SessionState{
		Article:  a,
		Status:   s.pipe.Snapshot(),
		Playback: s.engine.Snapshot(),
		Active:   s.desk.coord.IsActive(s.id),
		CanUndo:  canUndo,
	}
}

// Status returns the pipeline status.
func (s *Session) Status() pipeline.Status { return s.pipe.Status() }

// Generate produces a new summary with opts. An empty voice or language
// takes the desk default.
func (s *Session) Generate(ctx context.Context, opts pipeline.Options) (article.Article, error) {
	a, err := s.Article()
	if err != nil {
		return a, err
	}
	s.engine.Stop()
	updated, err := s.pipe.Generate(ctx, a, s.desk.options(opts))
	if err != nil {
		return updated, err
	}
	s.installed(updated)
	return updated, nil
}

// Retry re-enters the failed stage. A playback failure recovers the
// pipeline and restarts the engine from its current position.
func (s *Session) Retry(ctx context.Context, opts pipeline.Options) (article.Article, error) {
	a, err := s.Article()
	if err != nil {
		return a, err
	}
	updated, err := s.pipe.Retry(ctx, a, s.desk.options(opts))
	if errors.Is(err, pipeline.ErrPlaybackRetry) {
		if err := s.pipe.Recover(); err != nil {
			return a, err
		}
		return a, s.engine.Start(s.engine.Elapsed())
	}
	if err != nil {
		return updated, err
	}
	s.installed(updated)
	return updated, nil
}

// Reset abandons the current status and returns to idle.
func (s *Session) Reset() error {
	s.engine.Stop()
	return s.pipe.Reset()
}

// Restore promotes a history entry and arms its audio. An entry without
// audio leaves the pipeline idle.
func (s *Session) Restore(entryID string) (article.Article, error) {
	a, err := s.Article()
	if err != nil {
		return a, err
	}
	if _, err := article.Restore(a, entryID); err != nil {
		return a, err
	}

	var restoreErr error
	updated, err := s.desk.Update(s.id, func(cur article.Article) article.Article {
		out, err := article.Restore(cur, entryID)
		restoreErr = err
		return out
	})
	if err != nil {
		return a, err
	}
	if restoreErr != nil {
		return updated, restoreErr
	}

	s.installed(updated)
	if updated.HasAudio() {
		s.pipe.MarkReady()
	} else if err := s.pipe.Reset(); err != nil {
		// Ready must imply audio to play.
		s.logger.Warn("Could not disarm the restored summary", "error", err)
	}
	return updated, nil
}

// installed arms the engine with the article's current audio and drops the
// feedback undo stack.
func (s *Session) installed(a article.Article) {
	payload := ""
	if a.Current != nil {
		payload = a.Current.Audio
	}
	s.engine.SetPayload(payload)
	s.mu.Lock()
	s.undo = nil
	s.mu.Unlock()
}

// Toggle plays or pauses.
func (s *Session) Toggle() error {
	if !s.engine.Playing() && !s.pipe.CanPlay() {
		return ErrNotReady
	}
	return s.engine.Toggle()
}

// Play starts from offset seconds.
func (s *Session) Play(offset float64) error {
	if !s.pipe.CanPlay() {
		return ErrNotReady
	}
	return s.engine.Start(offset)
}

// Stop pauses playback.
func (s *Session) Stop() { s.engine.Stop() }

// Seek moves the position by delta seconds.
func (s *Session) Seek(delta float64) error {
	return s.engine.SeekRelative(delta)
}

// SetVolume sets the output volume.
func (s *Session) SetVolume(v float64) { s.engine.SetVolume(v) }

// SetFeedback replaces the current summary's feedback and remembers the
// previous value for UndoFeedback.
func (s *Session) SetFeedback(fb article.Feedback) (article.Article, error) {
	if err := fb.Validate(); err != nil {
		return article.Article{}, err
	}
	a, err := s.Article()
	if err != nil {
		return a, err
	}
	if a.Current == nil {
		return a, article.ErrNoSummary
	}
	var prev article.Feedback
	if a.Current.Feedback != nil {
		prev = *a.Current.Feedback
	}

	updated, err := s.applyFeedback(fb)
	if err != nil {
		return updated, err
	}
	s.mu.Lock()
	s.undo = append(s.undo, prev)
	s.mu.Unlock()
	return updated, nil
}

// UndoFeedback restores the feedback before the last SetFeedback.
func (s *Session) UndoFeedback() (article.Article, error) {
	s.mu.Lock()
	if len(s.undo) == 0 {
		s.mu.Unlock()
		return article.Article{}, ErrNothingToUndo
	}
	prev := s.undo[len(s.undo)-1]
	s.undo = s.undo[:len(s.undo)-1]
	s.mu.Unlock()

	return s.applyFeedback(prev)
}

func (s *Session) applyFeedback(fb article.Feedback) (article.Article, error) {
	var fbErr error
	updated, err := s.desk.Update(s.id, func(cur article.Article) article.Article {
		out, err := article.WithFeedback(cur, fb)
		fbErr = err
		return out
	})
	if err != nil {
		return updated, err
	}
	return updated, fbErr
}

// Text returns the current summary text.
func (s *Session) Text() (string, error) {
	a, err := s.Article()
	if err != nil {
		return "", err
	}
	if a.Current == nil {
		return "", article.ErrNoSummary
	}
	return a.Current.Text, nil
}

// WAV returns the current summary audio as a WAV file.
func (s *Session) WAV() ([]byte, error) {
	a, err := s.Article()
	if err != nil {
		return nil, err
	}
	if !a.HasAudio() {
		return nil, article.ErrNoSummary
	}
	return audio.PayloadWAV(a.Current.Audio)
}

// Close stops playback and detaches the session.
func (s *Session) Close() error {
	s.closeMu.Do(func() {
		for _, fn := range s.unsubs {
			fn()
		}
		_ = s.engine.Close()
	})
	return nil
}

func (s *Session) playbackFailed(err error) {
	if s.pipe.FailPlayback(err) {
		s.logger.Warn("Playback failed", "error", err)
	}
}

// activeChanged stops the engine when another article takes the slot and
// starts it when the queue advanced to this article.
func (s *Session) activeChanged(ch queue.Change) {
	switch {
	case ch.Previous == s.id && ch.Active != s.id:
		s.engine.Stop()
	case ch.Active == s.id && ch.Reason == queue.ReasonAdvanced:
		if s.engine.Playing() || !s.pipe.CanPlay() {
			return
		}
		if err := s.engine.Start(0); err != nil {
			s.logger.Warn("Could not continue the queue", "error", err)
		}
	}
}
