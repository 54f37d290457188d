package briefing

import (
	"sync"

	"github.com/briefcast/briefcast/internal/audio"
	"github.com/briefcast/briefcast/internal/pipeline"
	"github.com/briefcast/briefcast/internal/queue"
)

// EventKind identifies what changed on the desk.
type EventKind int

const (
	// EventArticles means the queue or the library changed.
	EventArticles EventKind = iota
	// EventStatus means an article's pipeline status changed.
	EventStatus
	// EventPlayback means an engine started, stopped or finished.
	EventPlayback
	// EventActive means the active playback slot moved.
	EventActive
)

// String returns the string representation of the event kind.
func (k EventKind) String() string {
	switch k {
	case EventArticles:
		return "articles"
	case EventStatus:
		return "status"
	case EventPlayback:
		return "playback"
	case EventActive:
		return "active"
	default:
		return "unknown"
	}
}

// Event is a desk change for the UI. Only the field matching Kind is set.
type Event struct {
	Kind      EventKind
	ArticleID string
	Status    pipeline.Snapshot
	Playback  audio.Event
	Change    queue.Change
}

type broadcaster struct {
	mu     sync.Mutex
	subs   map[int]func(Event)
	nextID int
}

func (b *broadcaster) subscribe(fn func(Event)) func() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.subs == nil {
		b.subs = make(map[int]func(Event))
	}
	id := b.nextID
	b.nextID++
	b.subs[id] = fn
	return func() {
		b.mu.Lock()
		delete(b.subs, id)
		b.mu.Unlock()
	}
}

func (b *broadcaster) publish(ev Event) {
	b.mu.Lock()
	subs := make([]func(Event), 0, len(b.subs))
	for _, fn := range b.subs {
		subs = append(subs, fn)
	}
	b.mu.Unlock()

	for _, fn := range subs {
		fn(ev)
	}
}
