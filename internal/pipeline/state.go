package pipeline

// Status is the generation state of one article.
type Status int

const (
	// StatusIdle means nothing has been generated or the pipeline was reset.
	StatusIdle Status = iota
	// StatusSummarizing means the summarizer call is in flight.
	StatusSummarizing
	// StatusGeneratingAudio means the synthesizer call is in flight.
	StatusGeneratingAudio
	// StatusReady means the current summary has audio and may be played.
	StatusReady
	// StatusError means a stage failed; see the recorded StageError.
	StatusError
)

// String returns the string representation of the status.
func (s Status) String() string {
	switch s {
	case StatusIdle:
		return "idle"
	case StatusSummarizing:
		return "summarizing"
	case StatusGeneratingAudio:
		return "generating-audio"
	case StatusReady:
		return "ready"
	case StatusError:
		return "error"
	default:
		return "unknown"
	}
}

// Busy reports whether a generation call is in flight.
func (s Status) Busy() bool {
	return s == StatusSummarizing || s == StatusGeneratingAudio
}

// StateMachine validates status transitions. It is not safe for concurrent
// use; Pipeline guards it with its own lock.
type StateMachine struct {
	current     Status
	transitions map[Status][]Status
}

// NewStateMachine creates a state machine at initial.
func NewStateMachine(initial Status) *StateMachine {
	return &StateMachine{
		current: initial,
		transitions: map[Status][]Status{
			// Restoring a history entry with audio arms an idle article.
			StatusIdle:            {StatusSummarizing, StatusReady},
			StatusSummarizing:     {StatusGeneratingAudio, StatusError},
			StatusGeneratingAudio: {StatusReady, StatusError},
			StatusReady:           {StatusSummarizing, StatusError, StatusIdle},
			StatusError:           {StatusSummarizing, StatusGeneratingAudio, StatusReady, StatusIdle},
		},
	}
}

// CanTransition reports whether to is reachable from the current status.
func (sm *StateMachine) CanTransition(to Status) bool {
	for _, s := range sm.transitions[sm.current] {
		if s == to {
			return true
		}
	}
	return false
}

// Transition attempts to move to the given status.
func (sm *StateMachine) Transition(to Status) bool {
	if !sm.CanTransition(to) {
		return false
	}
	sm.current = to
	return true
}

// Current returns the current status.
func (sm *StateMachine) Current() Status {
	return sm.current
}
