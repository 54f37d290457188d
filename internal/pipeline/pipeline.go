// Package pipeline runs the per-article generation state machine:
// summarize, then synthesize, then commit the new summary to history.
package pipeline

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"github.com/briefcast/briefcast/internal/article"
)

// Summarizer produces a short spoken-style summary of body in language.
type Summarizer interface {
	Summarize(ctx context.Context, body, language string) (string, error)
}

// Synthesizer turns text into a base64 payload of 16-bit PCM at 24 kHz mono.
type Synthesizer interface {
	Synthesize(ctx context.Context, text string, voice article.Voice, pitch float64) (string, error)
}

// Updater applies fn to the stored article with id and stores the result as
// one update.
type Updater interface {
	Update(id string, fn func(article.Article) article.Article) (article.Article, error)
}

// Options select the voice, language and pitch of a generation.
type Options struct {
	Voice    article.Voice
	Language string
	Pitch    float64
}

// Snapshot is the observable state of a pipeline.
type Snapshot struct {
	ArticleID string
	Status    Status
	Failure   *StageError
}

// Pipeline drives one article through summarization and synthesis. At most
// one generation runs at a time.
type Pipeline struct {
	articleID   string
	summarizer  Summarizer
	synthesizer Synthesizer
	updater     Updater
	now         func() time.Time
	logger      *log.Logger

	mu      sync.Mutex
	sm      *StateMachine
	failure *StageError
	running bool

	// Text and options of the last summarization, kept so an audio
	// failure can be retried without summarizing again.
	pendingText string
	pendingOpts Options

	subMu  sync.Mutex
	subs   map[int]func(Snapshot)
	nextID int
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithClock sets the time source for entry timestamps.
func WithClock(now func() time.Time) Option {
	return func(p *Pipeline) { p.now = now }
}

// WithLogger sets the pipeline's logger.
func WithLogger(l *log.Logger) Option {
	return func(p *Pipeline) { p.logger = l }
}

// New creates a pipeline for a. It starts ready when a's current summary
// already has audio, idle otherwise.
func New(a article.Article, sum Summarizer, syn Synthesizer, upd Updater, opts ...Option) *Pipeline {
	initial := StatusIdle
	if a.HasAudio() {
		initial = StatusReady
	}
	p := &Pipeline{
		articleID:   a.ID,
		summarizer:  sum,
		synthesizer: syn,
		updater:     upd,
		now:         time.Now,
		sm:          NewStateMachine(initial),
		subs:        make(map[int]func(Snapshot)),
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.logger == nil {
		p.logger = log.With("component", "pipeline", "article", a.ID)
	}
	return p
}

// Subscribe registers fn for every status change. The returned function
// removes the subscription.
func (p *Pipeline) Subscribe(fn func(Snapshot)) func() {
	p.subMu.Lock()
	defer p.subMu.Unlock()
	id := p.nextID
	p.nextID++
	p.subs[id] = fn
	return func() {
		p.subMu.Lock()
		delete(p.subs, id)
		p.subMu.Unlock()
	}
}

// Snapshot returns the current status and failure.
func (p *Pipeline) Snapshot() Snapshot {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.snapshotLocked()
}

// Status returns the current status.
func (p *Pipeline) Status() Status {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.sm.Current()
}

// Failure returns the recorded failure, or nil outside the error status.
func (p *Pipeline) Failure() *StageError {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.failure
}

// CanPlay reports whether playback may be armed.
func (p *Pipeline) CanPlay() bool {
	return p.Status() == StatusReady
}

// Generate summarizes and synthesizes a with opts and commits the result.
// A stage failure moves the pipeline to the error status and is returned as
// a *StageError.
func (p *Pipeline) Generate(ctx context.Context, a article.Article, opts Options) (article.Article, error) {
	if err := p.begin(StatusSummarizing); err != nil {
		return a, err
	}
	return p.summarize(ctx, a, opts)
}

// Retry re-enters the failed stage. A summarization failure restarts the
// whole pipeline; an audio failure re-runs synthesis on the text already
// produced, with the voice and pitch of opts. A playback failure returns
// ErrPlaybackRetry without changing state.
func (p *Pipeline) Retry(ctx context.Context, a article.Article, opts Options) (article.Article, error) {
	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		return a, ErrBusy
	}
	if p.sm.Current() != StatusError || p.failure == nil {
		p.mu.Unlock()
		return a, ErrNotFailed
	}
	stage := p.failure.Stage
	text, prev := p.pendingText, p.pendingOpts
	p.mu.Unlock()

	switch stage {
	case StagePlayback:
		return a, ErrPlaybackRetry
	case StageAudio:
		if text == "" {
			break
		}
		if err := p.begin(StatusGeneratingAudio); err != nil {
			return a, err
		}
		opts.Language = prev.Language
		return p.synthesize(ctx, a, text, opts)
	}

	if err := p.begin(StatusSummarizing); err != nil {
		return a, err
	}
	return p.summarize(ctx, a, opts)
}

// FailPlayback records a playback failure. It only applies while ready.
func (p *Pipeline) FailPlayback(err error) bool {
	p.mu.Lock()
	if p.sm.Current() != StatusReady {
		p.mu.Unlock()
		return false
	}
	p.failLocked(StagePlayback, err)
	snap := p.snapshotLocked()
	p.mu.Unlock()

	p.publish(snap)
	return true
}

// Recover returns from a playback failure to ready.
func (p *Pipeline) Recover() error {
	p.mu.Lock()
	if p.sm.Current() != StatusError || p.failure == nil || p.failure.Stage != StagePlayback {
		p.mu.Unlock()
		return ErrInvalidTransition
	}
	p.sm.Transition(StatusReady)
	p.failure = nil
	snap := p.snapshotLocked()
	p.mu.Unlock()

	p.publish(snap)
	return nil
}

// Reset abandons an error or a ready summary and returns to idle.
func (p *Pipeline) Reset() error {
	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		return ErrBusy
	}
	if p.sm.Current() == StatusIdle {
		p.mu.Unlock()
		return nil
	}
	if !p.sm.Transition(StatusIdle) {
		p.mu.Unlock()
		return fmt.Errorf("%w: %s to idle", ErrInvalidTransition, p.sm.Current())
	}
	p.failure = nil
	p.pendingText = ""
	snap := p.snapshotLocked()
	p.mu.Unlock()

	p.publish(snap)
	return nil
}

// MarkReady moves an idle pipeline to ready after the article gained audio
// outside a generation, e.g. by restoring a history entry.
func (p *Pipeline) MarkReady() {
	p.mu.Lock()
	if p.running || p.sm.Current() == StatusReady {
		p.mu.Unlock()
		return
	}
	if !p.sm.Transition(StatusReady) {
		p.mu.Unlock()
		return
	}
	p.failure = nil
	snap := p.snapshotLocked()
	p.mu.Unlock()

	p.publish(snap)
}

func (p *Pipeline) begin(to Status) error {
	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		return ErrBusy
	}
	from := p.sm.Current()
	if !p.sm.Transition(to) {
		p.mu.Unlock()
		return fmt.Errorf("%w: %s to %s", ErrInvalidTransition, from, to)
	}
	p.running = true
	p.failure = nil
	snap := p.snapshotLocked()
	p.mu.Unlock()

	p.logger.Debug("Generation stage", "status", to)
	p.publish(snap)
	return nil
}

func (p *Pipeline) summarize(ctx context.Context, a article.Article, opts Options) (article.Article, error) {
	text, err := p.summarizer.Summarize(ctx, a.Body, opts.Language)
	if err == nil && text == "" {
		err = ErrEmptySummary
	}
	if err != nil {
		return a, p.fail(StageSummarization, err)
	}

	p.mu.Lock()
	p.pendingText, p.pendingOpts = text, opts
	p.sm.Transition(StatusGeneratingAudio)
	snap := p.snapshotLocked()
	p.mu.Unlock()

	p.logger.Debug("Generation stage", "status", StatusGeneratingAudio, "words", wordCount(text))
	p.publish(snap)
	return p.synthesize(ctx, a, text, opts)
}

func (p *Pipeline) synthesize(ctx context.Context, a article.Article, text string, opts Options) (article.Article, error) {
	audio, err := p.synthesizer.Synthesize(ctx, text, opts.Voice, opts.Pitch)
	if err != nil {
		return a, p.fail(StageAudio, err)
	}

	entry := article.NewEntry(text, audio, opts.Voice, opts.Language, opts.Pitch, p.now())
	updated, err := p.updater.Update(a.ID, func(cur article.Article) article.Article {
		return article.Commit(cur, entry)
	})
	if err != nil {
		return a, p.fail(StageAudio, fmt.Errorf("failed to commit summary: %w", err))
	}

	p.mu.Lock()
	p.sm.Transition(StatusReady)
	p.running = false
	p.pendingText = ""
	snap := p.snapshotLocked()
	p.mu.Unlock()

	p.logger.Info("Summary ready", "entry", entry.ID, "voice", opts.Voice, "language", opts.Language)
	p.publish(snap)
	return updated, nil
}

func (p *Pipeline) fail(stage Stage, err error) error {
	p.mu.Lock()
	p.failLocked(stage, err)
	p.running = false
	failure := p.failure
	snap := p.snapshotLocked()
	p.mu.Unlock()

	p.logger.Warn("Generation failed", "stage", stage, "error", err)
	p.publish(snap)
	return failure
}

func (p *Pipeline) failLocked(stage Stage, err error) {
	p.sm.Transition(StatusError)
	p.failure = &StageError{Stage: stage, Err: err, Timestamp: p.now()}
}

func (p *Pipeline) snapshotLocked() Snapshot {
	return Snapshot{ArticleID: p.articleID, Status: p.sm.Current(), Failure: p.failure}
}

func (p *Pipeline) publish(s Snapshot) {
	p.subMu.Lock()
	subs := make([]func(Snapshot), 0, len(p.subs))
	for _, fn := range p.subs {
		subs = append(subs, fn)
	}
	p.subMu.Unlock()

	for _, fn := range subs {
		fn(s)
	}
}

func wordCount(s string) int {
	n, inWord := 0, false
	for _, r := range s {
		space := r == ' ' || r == '\n' || r == '\t'
		if !space && !inWord {
			n++
		}
		inWord = !space
	}
	return n
}
