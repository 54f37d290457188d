// Package briefing wires articles, generation pipelines, playback engines
// and the queue coordinator into the application the UI, the CLI and the
// HTTP API share.
package briefing

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"github.com/briefcast/briefcast/internal/article"
	"github.com/briefcast/briefcast/internal/audio"
	"github.com/briefcast/briefcast/internal/extract"
	"github.com/briefcast/briefcast/internal/pipeline"
	"github.com/briefcast/briefcast/internal/queue"
	"github.com/briefcast/briefcast/internal/urlcheck"
)

var (
	// ErrArticleNotFound is returned for ids in neither list.
	ErrArticleNotFound = errors.New("article not found")

	// ErrEmptyArticle is returned when adding an article without body text.
	ErrEmptyArticle = errors.New("article body is empty")
)

// Persister writes the lists after every change.
type Persister interface {
	SaveQueue(ctx context.Context, items []article.Article) error
	SaveLibrary(ctx context.Context, items []article.Article) error
}

// Preferences supply generation defaults and the playback volume.
type Preferences interface {
	Defaults() pipeline.Options
	Volume() float64
}

// Config holds the desk's collaborators.
type Config struct {
	Summarizer  pipeline.Summarizer
	Synthesizer pipeline.Synthesizer
	// Extractor reads articles for AddURL. Nil disables URL import.
	Extractor extract.Extractor
	Store     Persister
	Factory   audio.ContextFactory
	// Preferences may be nil.
	Preferences Preferences

	FrameInterval time.Duration
	Scheduler     audio.Scheduler
	Now           func() time.Time
}

// Desk owns the queue, the library, the active playback slot and one
// session per opened article. Every change is written through to the store.
type Desk struct {
	cfg    Config
	prefs  Preferences
	coord  *queue.Coordinator
	events broadcaster
	logger *log.Logger

	mu       sync.Mutex
	col      article.Collection
	sessions map[string]*Session
}

type fixedPreferences struct{}

func (fixedPreferences) Defaults() pipeline.Options {
	return pipeline.Options{Voice: article.DefaultVoice, Language: article.DefaultLanguage}
}

func (fixedPreferences) Volume() float64 { return 1 }

// NewDesk creates a desk over a loaded collection.
func NewDesk(col article.Collection, cfg Config) *Desk {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Factory == nil {
		cfg.Factory = audio.NewFactory(audio.BackendAuto)
	}
	d := &Desk{
		cfg:      cfg,
		prefs:    cfg.Preferences,
		col:      col,
		sessions: make(map[string]*Session),
		logger:   log.With("component", "desk"),
	}
	if d.prefs == nil {
		d.prefs = fixedPreferences{}
	}
	d.coord = queue.NewCoordinator(d)
	d.coord.Subscribe(d.activeChanged)
	return d
}

// Subscribe registers fn for desk events.
func (d *Desk) Subscribe(fn func(Event)) func() {
	return d.events.subscribe(fn)
}

// Coordinator returns the playback coordinator.
func (d *Desk) Coordinator() *queue.Coordinator { return d.coord }

// Items returns a copy of list.
func (d *Desk) Items(list article.List) []article.Article {
	d.mu.Lock()
	defer d.mu.Unlock()
	items := d.col.Items(list)
	out := make([]article.Article, len(items))
	for i, a := range items {
		out[i] = a.Clone()
	}
	return out
}

// Find returns the article with id.
func (d *Desk) Find(id string) (article.Article, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	a, ok := d.col.Find(id)
	if !ok {
		return a, false
	}
	return a.Clone(), true
}

// Saved reports whether the article is in the library.
func (d *Desk) Saved(a article.Article) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.col.Saved(a)
}

// Update applies fn to the stored article and writes the result to every
// list holding it. It implements pipeline.Updater.
func (d *Desk) Update(id string, fn func(article.Article) article.Article) (article.Article, error) {
	d.mu.Lock()
	cur, ok := d.col.Find(id)
	if !ok {
		d.mu.Unlock()
		return article.Article{}, fmt.Errorf("%w: %s", ErrArticleNotFound, id)
	}
	next := fn(cur.Clone())
	next.ID = id
	d.col.Update(next)
	err := d.persistLocked(context.Background(), true, true)
	d.mu.Unlock()

	d.events.publish(Event{Kind: EventArticles, ArticleID: id})
	return next.Clone(), err
}

// QueueIDs returns the queue order. It implements queue.Playlist.
func (d *Desk) QueueIDs() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.col.IDs(article.ListQueue)
}

// HasAudio reports whether the article has playable audio.
func (d *Desk) HasAudio(id string) bool {
	d.mu.Lock()
	a, ok := d.col.Find(id)
	s := d.sessions[id]
	d.mu.Unlock()
	if !ok || !a.HasAudio() {
		return false
	}
	return s == nil || s.pipe.CanPlay()
}

// SetQueueOrder stores a new queue order.
func (d *Desk) SetQueueOrder(ids []string) {
	d.mu.Lock()
	d.col.SetQueueOrder(ids)
	if err := d.persistLocked(context.Background(), true, false); err != nil {
		d.logger.Error("Could not save queue order", "error", err)
	}
	d.mu.Unlock()

	d.events.publish(Event{Kind: EventArticles})
}

// Reorder moves a queued article from one position to another.
func (d *Desk) Reorder(from, to int) []string {
	return d.coord.Reorder(from, to)
}

// SetView switches the coordinator between queue and library.
func (d *Desk) SetView(list article.List) {
	if list == article.ListLibrary {
		d.coord.SetView(queue.ViewLibrary)
		return
	}
	d.coord.SetView(queue.ViewQueue)
}

// Add queues a new article.
func (d *Desk) Add(ctx context.Context, title, body, source, url string) (article.Article, error) {
	body = strings.TrimSpace(body)
	if body == "" {
		return article.Article{}, ErrEmptyArticle
	}
	if strings.TrimSpace(title) == "" {
		title = firstWords(body, 8)
	}
	a := article.New(strings.TrimSpace(title), body, source, url)
	return a, d.Enqueue(ctx, a)
}

// Enqueue queues an existing article value, e.g. from an import.
func (d *Desk) Enqueue(ctx context.Context, a article.Article) error {
	d.mu.Lock()
	added := d.col.Enqueue(a)
	var err error
	if added {
		err = d.persistLocked(ctx, true, false)
	}
	d.mu.Unlock()

	if added {
		d.logger.Info("Article queued", "id", a.ID, "title", a.Title)
		d.events.publish(Event{Kind: EventArticles, ArticleID: a.ID})
	}
	return err
}

// AddURL validates raw, extracts the article and queues it. A non-nil
// warning is urlcheck.ErrUnsupportedDomain for an accepted but doubtful URL.
func (d *Desk) AddURL(ctx context.Context, raw string) (a article.Article, warning error, err error) {
	res, err := urlcheck.Check(raw)
	if err != nil {
		return article.Article{}, nil, err
	}
	if d.cfg.Extractor == nil {
		return article.Article{}, res.Warning, fmt.Errorf("%w: no extractor configured", extract.ErrFetch)
	}

	got, err := d.cfg.Extractor.Extract(ctx, res.URL.String())
	if err == nil && got.Empty() {
		err = errors.New("empty content")
	}
	if err != nil {
		if !errors.Is(err, extract.ErrFetch) {
			err = fmt.Errorf("%w: %w", extract.ErrFetch, err)
		}
		return article.Article{}, res.Warning, err
	}

	a, err = d.Add(ctx, got.Title, got.Content, res.Host, res.URL.String())
	return a, res.Warning, err
}

// Remove drops an article from the queue. Its session is closed unless
// the article is still in the library.
func (d *Desk) Remove(ctx context.Context, id string) error {
	d.mu.Lock()
	a, ok := d.col.Find(id)
	if !ok || !d.col.Dequeue(id) {
		d.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrArticleNotFound, id)
	}
	var closing *Session
	if !d.col.Saved(a) {
		closing = d.sessions[id]
		delete(d.sessions, id)
	}
	err := d.persistLocked(ctx, true, false)
	d.mu.Unlock()

	if closing != nil {
		_ = closing.Close()
	}
	d.events.publish(Event{Kind: EventArticles, ArticleID: id})
	return err
}

// ToggleSaved adds the article to the library or removes it, and reports
// whether it is saved afterwards.
func (d *Desk) ToggleSaved(ctx context.Context, id string) (bool, error) {
	d.mu.Lock()
	a, ok := d.col.Find(id)
	if !ok {
		d.mu.Unlock()
		return false, fmt.Errorf("%w: %s", ErrArticleNotFound, id)
	}
	saved := d.col.ToggleSaved(a)
	err := d.persistLocked(ctx, false, true)
	d.mu.Unlock()

	d.events.publish(Event{Kind: EventArticles, ArticleID: id})
	return saved, err
}

// Session returns the session of the article with id, creating it on
// first use.
func (d *Desk) Session(id string) (*Session, error) {
	s, _, err := d.session(id)
	return s, err
}

func (d *Desk) session(id string) (*Session, bool, error) {
	d.mu.Lock()
	if s, ok := d.sessions[id]; ok {
		d.mu.Unlock()
		return s, false, nil
	}
	a, ok := d.col.Find(id)
	d.mu.Unlock()
	if !ok {
		return nil, false, fmt.Errorf("%w: %s", ErrArticleNotFound, id)
	}

	s := newSession(d, a.Clone())

	d.mu.Lock()
	if existing, ok := d.sessions[id]; ok {
		d.mu.Unlock()
		_ = s.Close()
		return existing, false, nil
	}
	d.sessions[id] = s
	d.mu.Unlock()
	return s, true, nil
}

// activeChanged republishes slot moves. When the queue advanced to an
// article nobody opened yet, its session is created here and started,
// since it missed the change it would have reacted to.
func (d *Desk) activeChanged(ch queue.Change) {
	if ch.Reason == queue.ReasonAdvanced && ch.Active != "" {
		s, created, err := d.session(ch.Active)
		if err != nil {
			d.logger.Warn("Could not advance the queue", "article", ch.Active, "error", err)
		} else if created {
			s.activeChanged(ch)
		}
	}
	d.events.publish(Event{Kind: EventActive, ArticleID: ch.Active, Change: ch})
}

// Status returns the pipeline status of id without opening a session.
func (d *Desk) Status(id string) (pipeline.Snapshot, error) {
	d.mu.Lock()
	a, ok := d.col.Find(id)
	s := d.sessions[id]
	d.mu.Unlock()
	if !ok {
		return pipeline.Snapshot{}, fmt.Errorf("%w: %s", ErrArticleNotFound, id)
	}
	if s != nil {
		return s.pipe.Snapshot(), nil
	}
	snap := pipeline.Snapshot{ArticleID: id, Status: pipeline.StatusIdle}
	if a.HasAudio() {
		snap.Status = pipeline.StatusReady
	}
	return snap, nil
}

// PendingAudio returns queued article ids without audio.
func (d *Desk) PendingAudio() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	var ids []string
	for _, a := range d.col.Queue {
		if !a.HasAudio() {
			ids = append(ids, a.ID)
		}
	}
	return ids
}

// Replace swaps in a collection read from the store, e.g. after another
// process changed it. Sessions of vanished articles are closed; the others
// pick up their current audio.
func (d *Desk) Replace(col article.Collection) {
	d.mu.Lock()
	sw := d.swapLocked(col)
	d.mu.Unlock()

	d.refresh(sw)
}

// Reload runs load while holding the desk, so a reload never observes the
// store halfway through one of the desk's own multi-key writes, then
// replaces the collection with the result.
func (d *Desk) Reload(ctx context.Context, load func(context.Context) (article.Collection, error)) error {
	d.mu.Lock()
	col, err := load(ctx)
	if err != nil {
		d.mu.Unlock()
		return err
	}
	sw := d.swapLocked(col)
	d.mu.Unlock()

	d.refresh(sw)
	return nil
}

type swap struct {
	changed bool
	gone    []*Session
	live    map[*Session]article.Article
}

func (d *Desk) swapLocked(col article.Collection) swap {
	if sameCollection(d.col, col) {
		// Our own write coming back.
		return swap{}
	}
	d.col = col
	sw := swap{changed: true, live: make(map[*Session]article.Article)}
	for id, s := range d.sessions {
		a, ok := col.Find(id)
		if !ok {
			sw.gone = append(sw.gone, s)
			delete(d.sessions, id)
			continue
		}
		sw.live[s] = a
	}
	return sw
}

func (d *Desk) refresh(sw swap) {
	if !sw.changed {
		return
	}
	for _, s := range sw.gone {
		_ = s.Close()
	}
	for s, a := range sw.live {
		if a.Current != nil {
			s.engine.SetPayload(a.Current.Audio)
		}
	}
	d.events.publish(Event{Kind: EventArticles})
}

// Close stops every session.
func (d *Desk) Close() error {
	d.mu.Lock()
	sessions := d.sessions
	d.sessions = make(map[string]*Session)
	d.mu.Unlock()

	for _, s := range sessions {
		_ = s.Close()
	}
	return nil
}

// options fills an empty voice and language from the preferences. A zero
// pitch is the natural register and is kept.
func (d *Desk) options(o pipeline.Options) pipeline.Options {
	def := d.prefs.Defaults()
	if o.Voice == "" {
		o.Voice = def.Voice
	}
	if o.Language == "" {
		o.Language = def.Language
	}
	o.Pitch = article.ClampPitch(o.Pitch)
	return o
}

func (d *Desk) playbackEvent(ev audio.Event) {
	d.coord.PlaybackEvent(ev)
	d.events.publish(Event{Kind: EventPlayback, ArticleID: ev.ArticleID, Playback: ev})
}

func (d *Desk) persistLocked(ctx context.Context, saveQueue, saveLibrary bool) error {
	if d.cfg.Store == nil {
		return nil
	}
	if saveQueue {
		if err := d.cfg.Store.SaveQueue(ctx, d.col.Queue); err != nil {
			return err
		}
	}
	if saveLibrary {
		if err := d.cfg.Store.SaveLibrary(ctx, d.col.Library); err != nil {
			return err
		}
	}
	return nil
}

func firstWords(s string, n int) string {
	words := strings.Fields(s)
	if len(words) <= n {
		return strings.Join(words, " ")
	}
	return strings.Join(words[:n], " ") + "…"
}

// sameCollection compares list order, summaries and feedback, which is all
// the desk itself ever writes.
func sameCollection(a, b article.Collection) bool {
	return slices.EqualFunc(a.Queue, b.Queue, sameArticle) &&
		slices.EqualFunc(a.Library, b.Library, sameArticle)
}

func sameArticle(a, b article.Article) bool {
	if a.ID != b.ID || a.Title != b.Title || len(a.History) != len(b.History) {
		return false
	}
	if (a.Current == nil) != (b.Current == nil) {
		return false
	}
	if a.Current == nil {
		return true
	}
	return a.Current.ID == b.Current.ID && a.Current.HasAudio() == b.Current.HasAudio() &&
		feedbackOf(a.Current) == feedbackOf(b.Current)
}

func feedbackOf(e *article.Entry) article.Feedback {
	if e.Feedback == nil {
		return article.Feedback{}
	}
	return *e.Feedback
}
