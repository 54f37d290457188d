// Package article holds the briefing domain model: articles, their summary
// history and the queue/library collections.
package article

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrEntryNotFound is returned when restoring an entry that is not in history.
	ErrEntryNotFound = errors.New("history entry not found")

	// ErrNoSummary is returned when an operation needs a current summary.
	ErrNoSummary = errors.New("article has no summary")

	// ErrInvalidFeedback is returned for an unknown verdict or a rating outside 0..5.
	ErrInvalidFeedback = errors.New("invalid feedback")
)

// Verdict is a binary quality judgement of a summary.
type Verdict string

const (
	VerdictNone Verdict = ""
	VerdictGood Verdict = "good"
	VerdictBad  Verdict = "bad"
)

// MaxRating is the highest star rating.
const MaxRating = 5

// Feedback is the user's judgement of a summary. A zero Rating means unrated.
type Feedback struct {
	Verdict Verdict `json:"verdict,omitempty" yaml:"verdict,omitempty"`
	Rating  int     `json:"rating,omitempty" yaml:"rating,omitempty"`
}

// IsZero reports whether no feedback was given.
func (f Feedback) IsZero() bool {
	return f.Verdict == VerdictNone && f.Rating == 0
}

// Validate checks the verdict and rating range.
func (f Feedback) Validate() error {
	switch f.Verdict {
	case VerdictNone, VerdictGood, VerdictBad:
	default:
		return fmt.Errorf("%w: verdict %q", ErrInvalidFeedback, f.Verdict)
	}
	if f.Rating < 0 || f.Rating > MaxRating {
		return fmt.Errorf("%w: rating %d", ErrInvalidFeedback, f.Rating)
	}
	return nil
}

// Pitch offsets are clamped to this range. Zero is the voice's natural
// register.
const (
	MinPitch = -1.0
	MaxPitch = 1.0
)

// ClampPitch limits p to MinPitch..MaxPitch.
func ClampPitch(p float64) float64 {
	return max(MinPitch, min(MaxPitch, p))
}

// Entry is one generated summary. Entries are immutable once created.
type Entry struct {
	ID        string    `json:"id" yaml:"id"`
	Text      string    `json:"text" yaml:"text"`
	Audio     string    `json:"audio,omitempty" yaml:"audio,omitempty"`
	Voice     Voice     `json:"voice" yaml:"voice"`
	Language  string    `json:"language" yaml:"language"`
	Pitch     float64   `json:"pitch" yaml:"pitch"`
	CreatedAt time.Time `json:"createdAt" yaml:"createdAt"`
	Feedback  *Feedback `json:"feedback,omitempty" yaml:"feedback,omitempty"`
}

// NewEntry creates an entry with a fresh id.
func NewEntry(text, audio string, voice Voice, language string, pitch float64, createdAt time.Time) Entry {
	return Entry{
		ID:        uuid.NewString(),
		Text:      text,
		Audio:     audio,
		Voice:     voice,
		Language:  language,
		Pitch:     pitch,
		CreatedAt: createdAt,
	}
}

// HasAudio reports whether the entry carries an audio payload.
func (e Entry) HasAudio() bool { return e.Audio != "" }

// Article is a news article and its summaries. History is most recent first.
type Article struct {
	ID      string    `json:"id" yaml:"id"`
	Title   string    `json:"title" yaml:"title"`
	Body    string    `json:"body" yaml:"body"`
	Source  string    `json:"source,omitempty" yaml:"source,omitempty"`
	URL     string    `json:"url,omitempty" yaml:"url,omitempty"`
	AddedAt time.Time `json:"addedAt,omitempty" yaml:"addedAt,omitempty"`
	Current *Entry    `json:"currentSummary,omitempty" yaml:"currentSummary,omitempty"`
	History []Entry   `json:"history,omitempty" yaml:"history,omitempty"`
}

// New creates an article with a fresh id.
func New(title, body, source, url string) Article {
	return Article{
		ID:      uuid.NewString(),
		Title:   title,
		Body:    body,
		Source:  source,
		URL:     url,
		AddedAt: time.Now(),
	}
}

// HasAudio reports whether the current summary has audio.
func (a Article) HasAudio() bool {
	return a.Current != nil && a.Current.HasAudio()
}

// Clone returns a copy that shares no mutable state with a.
func (a Article) Clone() Article {
	out := a
	if a.Current != nil {
		cur := a.Current.clone()
		out.Current = &cur
	}
	if a.History != nil {
		out.History = make([]Entry, len(a.History))
		for i, e := range a.History {
			out.History[i] = e.clone()
		}
	}
	return out
}

func (e Entry) clone() Entry {
	if e.Feedback != nil {
		fb := *e.Feedback
		e.Feedback = &fb
	}
	return e
}

// Commit installs e as the current summary and pushes the previous one to
// the front of history. The returned article is a single new value; a is
// not modified. Feedback on e is cleared.
func Commit(a Article, e Entry) Article {
	out := a.Clone()
	e = e.clone()
	e.Feedback = nil

	history := make([]Entry, 0, len(out.History)+1)
	if out.Current != nil {
		history = append(history, *out.Current)
	}
	out.History = append(history, out.History...)
	out.Current = &e
	return out
}

// Restore promotes the history entry with entryID to current. The previous
// current entry moves to the front of history.
func Restore(a Article, entryID string) (Article, error) {
	idx := -1
	for i, e := range a.History {
		if e.ID == entryID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return a, fmt.Errorf("%w: %s", ErrEntryNotFound, entryID)
	}

	out := a.Clone()
	promoted := out.History[idx]

	history := make([]Entry, 0, len(out.History))
	if out.Current != nil {
		history = append(history, *out.Current)
	}
	history = append(history, out.History[:idx]...)
	history = append(history, out.History[idx+1:]...)

	out.History = history
	out.Current = &promoted
	return out, nil
}

// WithFeedback replaces the feedback on the current summary.
func WithFeedback(a Article, fb Feedback) (Article, error) {
	if a.Current == nil {
		return a, ErrNoSummary
	}
	if err := fb.Validate(); err != nil {
		return a, err
	}
	out := a.Clone()
	if fb.IsZero() {
		out.Current.Feedback = nil
	} else {
		out.Current.Feedback = &fb
	}
	return out, nil
}

// Entries returns the current entry followed by history.
func (a Article) Entries() []Entry {
	out := make([]Entry, 0, len(a.History)+1)
	if a.Current != nil {
		out = append(out, *a.Current)
	}
	return append(out, a.History...)
}
