package ui

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"slices"
	"strings"
	"time"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/log"
	"github.com/dustin/go-humanize"
	"github.com/muesli/reflow/truncate"
	"github.com/muesli/termenv"

	"github.com/briefcast/briefcast/internal/article"
	"github.com/briefcast/briefcast/internal/briefing"
	"github.com/briefcast/briefcast/internal/pipeline"
)

const (
	statusBarHeight = 1
	pitchStep       = 0.25
)

type contentRenderedMsg struct {
	id      string
	content string
}

type generatedMsg struct {
	id    string
	retry bool
	err   error
}

type cardModel struct {
	common   *commonModel
	id       string
	viewport viewport.Model
	progress progress.Model
	opts     pipeline.Options
	showHelp bool

	showStatusMessage  bool
	statusMessage      statusMessage
	statusMessageTimer *time.Timer
}

func newCardModel(common *commonModel) cardModel {
	vp := viewport.New(0, 0)
	vp.YPosition = 0
	return cardModel{
		common:   common,
		viewport: vp,
		progress: progress.New(progress.WithGradient("#5A56E0", "#EE6FF8"), progress.WithoutPercentage()),
	}
}

func (m *cardModel) setSize(w, h int) {
	m.viewport.Width = w
	// Room for the speaking line, the transport and the status bar.
	m.viewport.Height = h - statusBarHeight*3
	m.progress.Width = max(10, w-24)
	if m.showHelp {
		m.viewport.Height -= lipgloss.Height(m.helpView())
	}
}

// load opens the card of the article with id. Generation options start from
// the current summary's, or the defaults when there is none.
func (m *cardModel) load(id string) tea.Cmd {
	m.id = id
	m.opts = m.common.prefs.Defaults()
	if a, ok := m.common.desk.Find(id); ok && a.Current != nil {
		m.opts = pipeline.Options{
			Voice:    a.Current.Voice,
			Language: a.Current.Language,
			Pitch:    a.Current.Pitch,
		}
	}
	m.viewport.GotoTop()
	return m.render()
}

func (m *cardModel) unload() {
	m.id = ""
	m.showHelp = false
	m.showStatusMessage = false
	if m.statusMessageTimer != nil {
		m.statusMessageTimer.Stop()
	}
	m.viewport.SetContent("")
	m.viewport.YOffset = 0
	m.setSize(m.common.width, m.common.height)
}

func (m cardModel) session() (*briefing.Session, error) {
	return m.common.desk.Session(m.id)
}

func (m *cardModel) showMessage(msg statusMessage) tea.Cmd {
	m.showStatusMessage = true
	m.statusMessage = msg
	if m.statusMessageTimer != nil {
		m.statusMessageTimer.Stop()
	}
	m.statusMessageTimer = time.NewTimer(statusMessageTimeout)
	return waitForStatusMessageTimeout(cardContext, m.statusMessageTimer)
}

func (m *cardModel) fail(err error) tea.Cmd {
	return m.showMessage(statusMessage{err.Error(), true})
}

func (m cardModel) update(msg tea.Msg) (cardModel, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case deskEventMsg:
		if m.id == "" {
			return m, nil
		}
		if msg.Kind == briefing.EventArticles && (msg.ArticleID == "" || msg.ArticleID == m.id) {
			if _, ok := m.common.desk.Find(m.id); !ok {
				return m, m.showMessage(statusMessage{"This article was removed", true})
			}
			return m, m.render()
		}
		return m, nil

	case contentRenderedMsg:
		if msg.id == m.id {
			m.viewport.SetContent(msg.content)
		}
		return m, nil

	case generatedMsg:
		if msg.id != m.id {
			return m, nil
		}
		if msg.err != nil {
			return m, m.fail(msg.err)
		}
		note := "Summary ready"
		if msg.retry {
			note = "Retried"
		}
		return m, tea.Batch(m.render(), m.showMessage(statusMessage{note, false}))

	case statusMessageTimeoutMsg:
		if applicationContext(msg) == cardContext {
			m.showStatusMessage = false
		}

	case showStatusMsg:
		return m, m.showMessage(statusMessage(msg))

	case tea.KeyMsg:
		if m.id == "" {
			return m, nil
		}
		if cmd, handled := m.handleKey(msg); handled {
			return m, cmd
		}
	}

	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	cmds = append(cmds, cmd)
	return m, tea.Batch(cmds...)
}

// handleKey runs a card action. Keys it does not know scroll the viewport.
func (m *cardModel) handleKey(msg tea.KeyMsg) (tea.Cmd, bool) {
	desk := m.common.desk

	switch {
	case key.Matches(msg, cardKeys.Play):
		s, err := m.session()
		if err == nil {
			err = s.Toggle()
		}
		if errors.Is(err, briefing.ErrNotReady) {
			return m.showMessage(statusMessage{"Generate a summary first", true}), true
		}
		if err != nil {
			return m.fail(err), true
		}
		return progressTick(), true

	case key.Matches(msg, cardKeys.Back5), key.Matches(msg, cardKeys.Fwd5):
		delta := m.common.cfg.SeekStep
		if key.Matches(msg, cardKeys.Back5) {
			delta = -delta
		}
		s, err := m.session()
		if err == nil {
			err = s.Seek(delta)
		}
		if err != nil {
			return m.fail(err), true
		}
		return nil, true

	case key.Matches(msg, cardKeys.Generate), key.Matches(msg, cardKeys.Retry):
		s, err := m.session()
		if err != nil {
			return m.fail(err), true
		}
		if s.Status().Busy() {
			return m.showMessage(statusMessage{"Already generating", false}), true
		}
		retry := key.Matches(msg, cardKeys.Retry)
		return tea.Batch(generate(s, m.opts, retry), m.common.spinner.Tick), true

	case key.Matches(msg, cardKeys.Reset):
		s, err := m.session()
		if err == nil {
			err = s.Reset()
		}
		if err != nil {
			return m.fail(err), true
		}
		return m.showMessage(statusMessage{"Reset", false}), true

	case key.Matches(msg, cardKeys.Voice):
		m.opts.Voice = nextVoice(m.opts.Voice)
		return m.showMessage(statusMessage{"Voice: " + string(m.opts.Voice), false}), true

	case key.Matches(msg, cardKeys.Language):
		m.opts.Language = nextLanguage(m.opts.Language)
		return m.showMessage(statusMessage{"Language: " + m.opts.Language, false}), true

	case key.Matches(msg, cardKeys.PitchDn), key.Matches(msg, cardKeys.PitchUp):
		step := pitchStep
		if key.Matches(msg, cardKeys.PitchDn) {
			step = -step
		}
		m.opts.Pitch = article.ClampPitch(m.opts.Pitch + step)
		return m.showMessage(statusMessage{"Pitch: " + pitchLabel(m.opts.Pitch), false}), true

	case key.Matches(msg, cardKeys.Good), key.Matches(msg, cardKeys.Bad), key.Matches(msg, cardKeys.Rate):
		a, ok := desk.Find(m.id)
		if !ok || a.Current == nil {
			return m.fail(article.ErrNoSummary), true
		}
		fb := article.Feedback{}
		if a.Current.Feedback != nil {
			fb = *a.Current.Feedback
		}
		switch {
		case key.Matches(msg, cardKeys.Rate):
			fb.Rating = int(msg.Runes[0] - '0')
		case key.Matches(msg, cardKeys.Good):
			fb.Verdict = toggleVerdict(fb.Verdict, article.VerdictGood)
		default:
			fb.Verdict = toggleVerdict(fb.Verdict, article.VerdictBad)
		}
		s, err := m.session()
		if err == nil {
			_, err = s.SetFeedback(fb)
		}
		if err != nil {
			return m.fail(err), true
		}
		return m.showMessage(statusMessage{"Feedback saved", false}), true

	case key.Matches(msg, cardKeys.Undo):
		s, err := m.session()
		if err == nil {
			_, err = s.UndoFeedback()
		}
		if err != nil {
			return m.fail(err), true
		}
		return m.showMessage(statusMessage{"Feedback undone", false}), true

	case key.Matches(msg, cardKeys.Restore):
		a, ok := desk.Find(m.id)
		if !ok || len(a.History) == 0 {
			return m.showMessage(statusMessage{"No previous summary", true}), true
		}
		s, err := m.session()
		if err == nil {
			_, err = s.Restore(a.History[0].ID)
		}
		if err != nil {
			return m.fail(err), true
		}
		return m.showMessage(statusMessage{"Restored previous summary", false}), true

	case key.Matches(msg, cardKeys.Save):
		saved, err := desk.ToggleSaved(context.Background(), m.id)
		if err != nil {
			return m.fail(err), true
		}
		note := "Removed from library"
		if saved {
			note = "Saved to library"
		}
		return m.showMessage(statusMessage{note, false}), true

	case key.Matches(msg, cardKeys.Copy):
		s, err := m.session()
		if err != nil {
			return m.fail(err), true
		}
		text, err := s.Text()
		if err != nil {
			return m.fail(err), true
		}
		// Copy using OSC 52
		termenv.Copy(text)
		// Copy using native system clipboard
		_ = clipboard.WriteAll(text)
		return m.showMessage(statusMessage{"Copied summary", false}), true

	case key.Matches(msg, cardKeys.Export):
		s, err := m.session()
		if err != nil {
			return m.fail(err), true
		}
		path, err := exportWAV(s, ".")
		if err != nil {
			return m.fail(err), true
		}
		return m.showMessage(statusMessage{"Wrote " + path, false}), true

	case key.Matches(msg, cardKeys.Help):
		m.showHelp = !m.showHelp
		m.setSize(m.common.width, m.common.height)
		return nil, true
	}

	return nil, false
}

// VIEW

func (m cardModel) View() string {
	var b strings.Builder
	fmt.Fprint(&b, m.viewport.View()+"\n")
	fmt.Fprint(&b, m.speakingView()+"\n")
	fmt.Fprint(&b, m.transportView()+"\n")
	fmt.Fprint(&b, m.statusBarView())
	if m.showHelp {
		fmt.Fprint(&b, "\n"+m.helpView())
	}
	return b.String()
}

func (m cardModel) helpView() string {
	return indent(m.common.help.FullHelpView(cardKeys.FullHelp()), 2)
}

func (m cardModel) speakingView() string {
	s, err := m.session()
	if err != nil {
		return ""
	}
	st := s.State()
	if !st.Playback.Playing || st.Article.Current == nil || st.Playback.Duration <= 0 {
		return ""
	}
	return nowSpeakingView(st.Article.Current.Text, st.Playback.Elapsed/st.Playback.Duration, m.common.width)
}

func (m cardModel) transportView() string {
	s, err := m.session()
	if err != nil {
		return ""
	}
	st := s.State()
	icon := "■"
	if st.Playback.Playing {
		icon = playingMark
	}
	pct := 0.0
	if st.Playback.Duration > 0 {
		pct = st.Playback.Elapsed / st.Playback.Duration
	}
	return fmt.Sprintf(" %s %s %s",
		icon,
		m.progress.ViewAs(pct),
		dimStyle.Render(clock(st.Playback.Elapsed)+" / "+clock(st.Playback.Duration)),
	)
}

func (m cardModel) statusBarView() string {
	width := m.common.width
	s, err := m.session()
	if err != nil {
		return statusBarErrorStyle(truncate.StringWithTail(" "+err.Error(), uint(max(0, width)), ellipsis)) //nolint:gosec
	}
	st := s.State()

	status := statusLabel(st.Status)
	if st.Status.Status.Busy() {
		status = m.common.spinner.View() + " " + status
	}
	left := logoView() + statusBarNoteStyle(" "+status+" ")

	opts := fmt.Sprintf(" %s · %s · pitch %s ", m.opts.Voice, m.opts.Language, pitchLabel(m.opts.Pitch))
	right := statusBarHelpStyle(opts)

	if m.showStatusMessage {
		style := statusBarMessageStyle
		if m.statusMessage.isError {
			style = statusBarErrorStyle
		}
		avail := max(0, width-lipgloss.Width(left)-lipgloss.Width(right))
		note := truncate.StringWithTail(" "+m.statusMessage.message+" ", uint(avail), ellipsis) //nolint:gosec
		pad := max(0, avail-lipgloss.Width(note))
		return left + style(note+strings.Repeat(" ", pad)) + right
	}

	title := truncate.StringWithTail(" "+st.Article.Title+" ",
		uint(max(0, width-lipgloss.Width(left)-lipgloss.Width(right))), ellipsis) //nolint:gosec
	pad := max(0, width-lipgloss.Width(left)-lipgloss.Width(title)-lipgloss.Width(right))
	return left + statusBarNoteStyle(title+strings.Repeat(" ", pad)) + right
}

// COMMANDS

func (m cardModel) render() tea.Cmd {
	id := m.id
	a, ok := m.common.desk.Find(id)
	if !ok {
		return nil
	}
	saved := m.common.desk.Saved(a)
	width := max(0, min(int(m.common.cfg.GlamourMaxWidth), m.viewport.Width)) //nolint:gosec
	style := m.common.glamourStyle
	return func() tea.Msg {
		md := cardMarkdown(a, saved)
		out, err := glamourRender(md, style, width)
		if err != nil {
			log.Error("Could not render article", "id", id, "error", err)
			out = md
		}
		return contentRenderedMsg{id: id, content: out}
	}
}

func glamourRender(markdown, style string, width int) (string, error) {
	if !config.GlamourEnabled {
		return markdown, nil
	}
	r, err := glamour.NewTermRenderer(
		glamour.WithStylePath(style),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return "", fmt.Errorf("error creating glamour renderer: %w", err)
	}
	out, err := r.Render(markdown)
	if err != nil {
		return "", fmt.Errorf("error rendering markdown: %w", err)
	}
	return out, nil
}

func generate(s *briefing.Session, opts pipeline.Options, retry bool) tea.Cmd {
	return func() tea.Msg {
		var err error
		if retry {
			_, err = s.Retry(context.Background(), opts)
		} else {
			_, err = s.Generate(context.Background(), opts)
		}
		return generatedMsg{id: s.ID(), retry: retry, err: err}
	}
}

var unsafeFileChars = regexp.MustCompile(`[^a-zA-Z0-9]+`)

// exportWAV writes the current summary audio into dir and returns the path.
func exportWAV(s *briefing.Session, dir string) (string, error) {
	a, err := s.Article()
	if err != nil {
		return "", err
	}
	wav, err := s.WAV()
	if err != nil {
		return "", err
	}
	name := strings.Trim(unsafeFileChars.ReplaceAllString(strings.ToLower(a.Title), "-"), "-")
	if name == "" {
		name = a.ID
	}
	name = truncate.String(name, 60)
	path := filepath.Join(dir, name+".wav")
	if err := os.WriteFile(path, wav, 0o644); err != nil { //nolint:gosec
		return "", fmt.Errorf("could not write audio: %w", err)
	}
	return path, nil
}

// ETC

// cardMarkdown lays out an article card.
func cardMarkdown(a article.Article, saved bool) string {
	var b strings.Builder
	title := a.Title
	if title == "" {
		title = "Untitled"
	}
	fmt.Fprintf(&b, "# %s\n\n", title)

	var meta []string
	if a.Source != "" {
		meta = append(meta, a.Source)
	}
	if !a.AddedAt.IsZero() {
		meta = append(meta, "added "+humanize.Time(a.AddedAt))
	}
	if saved {
		meta = append(meta, "saved")
	}
	if len(meta) > 0 {
		fmt.Fprintf(&b, "*%s*\n\n", strings.Join(meta, " · "))
	}
	if a.URL != "" {
		fmt.Fprintf(&b, "<%s>\n\n", a.URL)
	}

	b.WriteString("## Summary\n\n")
	if a.Current == nil {
		b.WriteString("No summary yet. Press **g** to generate one.\n\n")
	} else {
		e := a.Current
		fmt.Fprintf(&b, "%s\n\n", e.Text)
		line := fmt.Sprintf("%s · %s · pitch %s · %s", e.Voice, e.Language, pitchLabel(e.Pitch), humanize.Time(e.CreatedAt))
		if !e.HasAudio() {
			line += " · no audio"
		}
		if e.Feedback != nil && !e.Feedback.IsZero() {
			line += " · " + feedbackLabel(*e.Feedback)
		}
		fmt.Fprintf(&b, "*%s*\n\n", line)
	}

	if len(a.History) > 0 {
		b.WriteString("## Previous summaries\n\n")
		for _, e := range a.History {
			fmt.Fprintf(&b, "- %s, %s (%s): %s\n", e.Voice, e.Language, humanize.Time(e.CreatedAt),
				truncate.StringWithTail(firstLine(e.Text), 80, ellipsis))
		}
		b.WriteString("\n")
	}

	b.WriteString("## Article\n\n")
	b.WriteString(a.Body)
	b.WriteString("\n")
	return b.String()
}

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}

func nextVoice(v article.Voice) article.Voice {
	i := slices.Index(article.Voices, v)
	return article.Voices[(i+1)%len(article.Voices)]
}

func nextLanguage(lang string) string {
	names := article.LanguageNames()
	i := slices.Index(names, lang)
	return names[(i+1)%len(names)]
}

func toggleVerdict(cur, v article.Verdict) article.Verdict {
	if cur == v {
		return article.VerdictNone
	}
	return v
}

func pitchLabel(p float64) string {
	if p == 0 {
		return "natural"
	}
	return fmt.Sprintf("%+.2f", p)
}

// clock formats seconds as m:ss.
func clock(secs float64) string {
	d := time.Duration(secs * float64(time.Second)).Round(time.Second)
	return fmt.Sprintf("%d:%02d", int(d.Minutes()), int(d.Seconds())%60)
}
