package pipeline

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrBusy is returned when a generation is already in flight.
	ErrBusy = errors.New("generation already in progress")

	// ErrPlaybackRetry is returned by Retry after a playback failure. The
	// caller restarts playback itself.
	ErrPlaybackRetry = errors.New("playback must be restarted by the caller")

	// ErrNotFailed is returned by Retry when there is no failure to retry.
	ErrNotFailed = errors.New("nothing to retry")

	// ErrEmptySummary is returned when the summarizer produced no text.
	ErrEmptySummary = errors.New("summarizer returned no text")

	// ErrInvalidTransition is returned when the current status does not allow an operation.
	ErrInvalidTransition = errors.New("invalid status transition")
)

// Stage names the part of the pipeline that failed.
type Stage string

const (
	StageSummarization Stage = "summarization"
	StageAudio         Stage = "audio"
	StagePlayback      Stage = "playback"
)

// StageError records a failure of one stage.
type StageError struct {
	Stage     Stage
	Err       error
	Timestamp time.Time
}

// Error implements the error interface.
func (e *StageError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s failed", e.Stage)
	}
	return fmt.Sprintf("%s failed: %v", e.Stage, e.Err)
}

// Unwrap returns the underlying error.
func (e *StageError) Unwrap() error {
	return e.Err
}

// StageOf returns the failed stage recorded in err, if any.
func StageOf(err error) (Stage, bool) {
	var se *StageError
	if errors.As(err, &se) {
		return se.Stage, true
	}
	return "", false
}
