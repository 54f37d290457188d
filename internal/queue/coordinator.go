package queue

import (
	"sync"

	"github.com/charmbracelet/log"

	"github.com/briefcast/briefcast/internal/audio"
)

// View is the list the user is looking at.
type View int

const (
	// ViewQueue is the linear listening queue. Finishing an article advances.
	ViewQueue View = iota
	// ViewLibrary is the saved library. Finishing never advances.
	ViewLibrary
)

// String returns the string representation of the view.
func (v View) String() string {
	if v == ViewLibrary {
		return "library"
	}
	return "queue"
}

// Playlist is the queue order the coordinator advances through.
type Playlist interface {
	// QueueIDs returns the queued article ids in order.
	QueueIDs() []string
	// HasAudio reports whether the article has synthesized audio.
	HasAudio(id string) bool
	// SetQueueOrder stores a new queue order.
	SetQueueOrder(ids []string)
}

// Reason says why the active slot changed.
type Reason int

const (
	ReasonStarted Reason = iota
	ReasonStopped
	ReasonFinished
	// ReasonAdvanced means the next queued article was made active after the
	// previous one finished. Its session is expected to start playing.
	ReasonAdvanced
)

// String returns the string representation of the reason.
func (r Reason) String() string {
	switch r {
	case ReasonStarted:
		return "started"
	case ReasonStopped:
		return "stopped"
	case ReasonFinished:
		return "finished"
	case ReasonAdvanced:
		return "advanced"
	default:
		return "unknown"
	}
}

// Change describes a move of the active slot. An empty id means none.
type Change struct {
	Previous string
	Active   string
	Reason   Reason
}

// Coordinator holds the single active playback slot. It does not stop
// engines itself; sessions subscribe and stop when they lose the slot.
type Coordinator struct {
	playlist Playlist
	logger   *log.Logger

	mu     sync.Mutex
	active string
	view   View

	subMu  sync.Mutex
	subs   map[int]func(Change)
	nextID int
}

// NewCoordinator creates a coordinator over playlist.
func NewCoordinator(playlist Playlist) *Coordinator {
	return &Coordinator{
		playlist: playlist,
		logger:   log.With("component", "coordinator"),
		subs:     make(map[int]func(Change)),
	}
}

// Subscribe registers fn for every change of the active slot. Changes are
// delivered outside the coordinator's lock.
func (c *Coordinator) Subscribe(fn func(Change)) func() {
	c.subMu.Lock()
	defer c.subMu.Unlock()
	id := c.nextID
	c.nextID++
	c.subs[id] = fn
	return func() {
		c.subMu.Lock()
		delete(c.subs, id)
		c.subMu.Unlock()
	}
}

// Active returns the active article id, or "".
func (c *Coordinator) Active() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.active
}

// IsActive reports whether id holds the active slot.
func (c *Coordinator) IsActive(id string) bool {
	return id != "" && c.Active() == id
}

// View returns the current view.
func (c *Coordinator) View() View {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.view
}

// SetView switches between queue and library.
func (c *Coordinator) SetView(v View) {
	c.mu.Lock()
	c.view = v
	c.mu.Unlock()
}

// Started adopts id as the active article.
func (c *Coordinator) Started(id string) {
	c.set(id, ReasonStarted, func(string) bool { return true })
}

// Stopped clears the slot if id holds it.
func (c *Coordinator) Stopped(id string) {
	c.set("", ReasonStopped, func(active string) bool { return active == id })
}

// Finished advances to the next queued article with audio when id is
// active and the queue is shown. Otherwise the slot is cleared if id holds
// it. It returns the new active id.
func (c *Coordinator) Finished(id string) string {
	c.mu.Lock()
	if c.active != id {
		c.mu.Unlock()
		return c.Active()
	}
	view := c.view
	c.mu.Unlock()

	next := ""
	if view == ViewQueue {
		next = c.nextWithAudio(id)
	}

	reason := ReasonFinished
	if next != "" {
		reason = ReasonAdvanced
	}
	c.set(next, reason, func(active string) bool { return active == id })
	return c.Active()
}

func (c *Coordinator) nextWithAudio(id string) string {
	ids := c.playlist.QueueIDs()
	for i, qid := range ids {
		if qid != id {
			continue
		}
		if i+1 < len(ids) && c.playlist.HasAudio(ids[i+1]) {
			return ids[i+1]
		}
		return ""
	}
	return ""
}

// Reorder moves the queued article at from to position to and returns the
// new order. The active slot is unchanged.
func (c *Coordinator) Reorder(from, to int) []string {
	ids := c.playlist.QueueIDs()
	if from == to || from < 0 || to < 0 || from >= len(ids) || to >= len(ids) {
		return ids
	}
	moved := Move(ids, from, to)
	c.playlist.SetQueueOrder(moved)
	c.logger.Debug("Queue reordered", "from", from, "to", to)
	return moved
}

// PlaybackEvent routes engine events to Started, Stopped and Finished.
func (c *Coordinator) PlaybackEvent(ev audio.Event) {
	switch ev.Kind {
	case audio.EventStarted:
		c.Started(ev.ArticleID)
	case audio.EventStopped:
		c.Stopped(ev.ArticleID)
	case audio.EventFinished:
		c.Finished(ev.ArticleID)
	}
}

// set moves the slot to id when cond holds for the current active id.
func (c *Coordinator) set(id string, reason Reason, cond func(active string) bool) {
	c.mu.Lock()
	prev := c.active
	if !cond(prev) || (prev == id && reason != ReasonAdvanced) {
		c.mu.Unlock()
		return
	}
	c.active = id
	c.mu.Unlock()

	c.logger.Debug("Active slot changed", "previous", prev, "active", id, "reason", reason)
	c.publish(Change{Previous: prev, Active: id, Reason: reason})
}

func (c *Coordinator) publish(ch Change) {
	c.subMu.Lock()
	subs := make([]func(Change), 0, len(c.subs))
	for _, fn := range c.subs {
		subs = append(subs, fn)
	}
	c.subMu.Unlock()

	for _, fn := range subs {
		fn(ch)
	}
}
