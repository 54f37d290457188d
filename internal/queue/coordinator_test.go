package queue

import (
	"encoding/base64"
	"errors"
	"reflect"
	"sync"
	"testing"

	"github.com/briefcast/briefcast/internal/audio"
)

type fakePlaylist struct {
	mu    sync.Mutex
	ids   []string
	audio map[string]bool
}

func newPlaylist(ids ...string) *fakePlaylist {
	return &fakePlaylist{ids: ids, audio: make(map[string]bool)}
}

func (p *fakePlaylist) QueueIDs() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.ids...)
}

func (p *fakePlaylist) HasAudio(id string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.audio[id]
}

func (p *fakePlaylist) SetQueueOrder(ids []string) {
	p.mu.Lock()
	p.ids = append([]string(nil), ids...)
	p.mu.Unlock()
}

func TestMove(t *testing.T) {
	tests := []struct {
		name     string
		from, to int
		want     []int
	}{
		{"forward", 0, 2, []int{1, 2, 0, 3}},
		{"backward", 3, 1, []int{0, 3, 1, 2}},
		{"to end", 1, 3, []int{0, 2, 3, 1}},
		{"same index", 2, 2, []int{0, 1, 2, 3}},
		{"out of range", 0, 4, []int{0, 1, 2, 3}},
		{"negative", -1, 2, []int{0, 1, 2, 3}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			items := []int{0, 1, 2, 3}
			got := Move(items, tt.from, tt.to)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Move(%d, %d) = %v, want %v", tt.from, tt.to, got, tt.want)
			}
			if !reflect.DeepEqual(items, []int{0, 1, 2, 3}) {
				t.Error("Move should not modify its input")
			}
		})
	}
}

func TestFinishedAdvances(t *testing.T) {
	tests := []struct {
		name      string
		nextAudio bool
		view      View
		want      string
		reason    Reason
	}{
		{"next has audio", true, ViewQueue, "a3", ReasonAdvanced},
		{"next has no audio", false, ViewQueue, "", ReasonFinished},
		{"library view", true, ViewLibrary, "", ReasonFinished},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pl := newPlaylist("a1", "a2", "a3", "a4")
			pl.audio["a3"] = tt.nextAudio
			c := NewCoordinator(pl)
			c.SetView(tt.view)

			var changes []Change
			c.Subscribe(func(ch Change) { changes = append(changes, ch) })

			c.Started("a2")
			if got := c.Finished("a2"); got != tt.want {
				t.Errorf("active after finish = %q, want %q", got, tt.want)
			}
			last := changes[len(changes)-1]
			if last.Reason != tt.reason || last.Previous != "a2" {
				t.Errorf("last change = %+v", last)
			}
		})
	}
}

func TestFinishedLastInQueueClears(t *testing.T) {
	pl := newPlaylist("a1", "a2")
	c := NewCoordinator(pl)
	c.Started("a2")
	if got := c.Finished("a2"); got != "" {
		t.Errorf("finishing the last article should clear the slot, got %q", got)
	}
}

func TestFinishedIgnoresInactive(t *testing.T) {
	pl := newPlaylist("a1", "a2")
	pl.audio["a2"] = true
	c := NewCoordinator(pl)
	c.Started("a2")
	if got := c.Finished("a1"); got != "a2" {
		t.Errorf("an inactive article finishing should not move the slot, got %q", got)
	}
}

func TestStoppedOnlyClearsActive(t *testing.T) {
	c := NewCoordinator(newPlaylist("a1", "a2"))
	c.Started("a1")
	c.Started("a2")
	c.Stopped("a1")
	if c.Active() != "a2" {
		t.Errorf("stopping an inactive article should not clear the slot, got %q", c.Active())
	}
	c.Stopped("a2")
	if c.Active() != "" {
		t.Errorf("stopping the active article should clear the slot, got %q", c.Active())
	}
}

func TestReorderKeepsActive(t *testing.T) {
	pl := newPlaylist("a0", "a1", "a2", "a3")
	c := NewCoordinator(pl)
	c.Started("a1")

	got := c.Reorder(0, 2)
	want := []string{"a1", "a2", "a0", "a3"}
	if !reflect.DeepEqual(got, want) || !reflect.DeepEqual(pl.QueueIDs(), want) {
		t.Errorf("order = %v, stored %v, want %v", got, pl.QueueIDs(), want)
	}
	if c.Active() != "a1" {
		t.Errorf("reorder should not change the active slot, got %q", c.Active())
	}
}

// session is the minimal subscriber behaviour: stop when losing the slot,
// start at 0 when advanced to.
func attach(c *Coordinator, e *audio.Engine) {
	c.Subscribe(func(ch Change) {
		id := e.ArticleID()
		switch {
		case ch.Previous == id && ch.Active != id:
			e.Stop()
		case ch.Active == id && ch.Reason == ReasonAdvanced && !e.Playing():
			_ = e.Start(0)
		}
	})
}

func TestSingleActiveEngine(t *testing.T) {
	pl := newPlaylist("a1", "a2", "a3")
	c := NewCoordinator(pl)
	ctx := audio.NewMockContext(audio.SampleRate)

	payload := base64.StdEncoding.EncodeToString(make([]byte, audio.SampleRate*2))
	engines := make(map[string]*audio.Engine)
	for _, id := range pl.QueueIDs() {
		e := audio.NewEngine(id, audio.MockFactory(ctx), audio.WithListener(c))
		e.SetPayload(payload)
		engines[id] = e
		pl.audio[id] = true
		attach(c, e)
		defer e.Close()
	}

	playing := func() []string {
		var out []string
		for _, id := range pl.QueueIDs() {
			if engines[id].Playing() {
				out = append(out, id)
			}
		}
		return out
	}

	if err := engines["a1"].Start(0); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if err := engines["a3"].Start(0); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if got := playing(); !reflect.DeepEqual(got, []string{"a3"}) {
		t.Errorf("only a3 should play, got %v", got)
	}
	if c.Active() != "a3" {
		t.Errorf("active should be a3, got %q", c.Active())
	}

	if err := engines["a1"].Start(0); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	ctx.LastSource().End()
	if got := playing(); !reflect.DeepEqual(got, []string{"a2"}) {
		t.Errorf("finishing a1 should advance to a2, playing %v", got)
	}
	if c.Active() != "a2" {
		t.Errorf("active should be a2, got %q", c.Active())
	}
}

func TestFailedRestartReleasesSlot(t *testing.T) {
	pl := newPlaylist("a1")
	c := NewCoordinator(pl)
	ctx := audio.NewMockContext(audio.SampleRate)

	e := audio.NewEngine("a1", audio.MockFactory(ctx), audio.WithListener(c))
	defer e.Close()
	e.SetPayload(base64.StdEncoding.EncodeToString(make([]byte, audio.SampleRate*4)))
	attach(c, e)

	if err := e.Start(0); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if c.Active() != "a1" {
		t.Fatalf("active should be a1, got %q", c.Active())
	}

	ctx.SourceErr = errors.New("device gone")
	if err := e.SeekRelative(2); err == nil {
		t.Fatal("expected an error")
	}
	if e.Playing() {
		t.Error("engine should not be playing")
	}
	if c.Active() != "" {
		t.Errorf("slot should be released, active is %q", c.Active())
	}
}
