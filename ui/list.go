package ui

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/log"
	"github.com/dustin/go-humanize"
	runewidth "github.com/mattn/go-runewidth"
	"github.com/muesli/reflow/truncate"
	"github.com/sahilm/fuzzy"

	"github.com/briefcast/briefcast/internal/article"
	"github.com/briefcast/briefcast/internal/briefing"
	"github.com/briefcast/briefcast/internal/pipeline"
)

type openArticleMsg struct{ id string }

type addedURLMsg struct {
	article article.Article
	warning error
	err     error
}

type generatedAllMsg struct {
	result briefing.BatchResult
	err    error
}

type listInput int

const (
	inputNone listInput = iota
	inputFilter
	inputURL
)

type listModel struct {
	common   *commonModel
	view     article.List
	cursor   int
	input    listInput
	filter   textinput.Model
	url      textinput.Model
	showHelp bool

	// Articles on screen, after the filter.
	visible []article.Article

	showStatusMessage  bool
	statusMessage      statusMessage
	statusMessageTimer *time.Timer
}

func newListModel(common *commonModel) listModel {
	filter := textinput.New()
	filter.Prompt = "Find: "
	filter.PromptStyle = selectedText
	filter.Cursor.Style = selectedText
	filter.CharLimit = 64

	url := textinput.New()
	url.Prompt = "URL: "
	url.PromptStyle = selectedText
	url.Cursor.Style = selectedText
	url.Placeholder = "https://"
	url.CharLimit = 2048

	m := listModel{
		common: common,
		view:   article.ListQueue,
		filter: filter,
		url:    url,
	}
	m.refresh()
	return m
}

func (m *listModel) setSize(w, _ int) {
	m.filter.Width = w - runewidth.StringWidth(m.filter.Prompt) - 2
	m.url.Width = w - runewidth.StringWidth(m.url.Prompt) - 2
}

// capturingInput reports whether keystrokes go to a text field.
func (m listModel) capturingInput() bool {
	return m.input != inputNone
}

func (m listModel) filterValue() string {
	return strings.TrimSpace(m.filter.Value())
}

// refresh re-reads the current list from the desk and applies the filter.
func (m *listModel) refresh() {
	items := m.common.desk.Items(m.view)
	if q := m.filterValue(); q != "" {
		items = filterArticles(items, q)
	}
	m.visible = items
	if m.cursor >= len(m.visible) {
		m.cursor = max(0, len(m.visible)-1)
	}
}

// filterArticles keeps the articles whose title or source fuzzy-match q,
// best match first.
func filterArticles(items []article.Article, q string) []article.Article {
	targets := make([]string, len(items))
	for i, a := range items {
		targets[i] = a.Title + " " + a.Source
	}
	matches := fuzzy.Find(q, targets)
	out := make([]article.Article, 0, len(matches))
	for _, match := range matches {
		out = append(out, items[match.Index])
	}
	return out
}

func (m listModel) selected() (article.Article, bool) {
	if m.cursor < 0 || m.cursor >= len(m.visible) {
		return article.Article{}, false
	}
	return m.visible[m.cursor], true
}

func (m *listModel) showMessage(msg statusMessage) tea.Cmd {
	m.showStatusMessage = true
	m.statusMessage = msg
	if m.statusMessageTimer != nil {
		m.statusMessageTimer.Stop()
	}
	m.statusMessageTimer = time.NewTimer(statusMessageTimeout)
	return waitForStatusMessageTimeout(listContext, m.statusMessageTimer)
}

func (m listModel) update(msg tea.Msg) (listModel, tea.Cmd) {
	switch msg := msg.(type) {
	case deskEventMsg:
		if msg.Kind == briefing.EventArticles || msg.Kind == briefing.EventStatus {
			m.refresh()
		}
		return m, nil

	case statusMessageTimeoutMsg:
		if applicationContext(msg) == listContext {
			m.showStatusMessage = false
		}

	case showStatusMsg:
		return m, m.showMessage(statusMessage(msg))

	case addedURLMsg:
		if msg.err != nil {
			return m, m.showMessage(statusMessage{msg.err.Error(), true})
		}
		m.refresh()
		note := "Queued " + msg.article.Title
		if msg.warning != nil {
			note += " (" + msg.warning.Error() + ")"
		}
		return m, m.showMessage(statusMessage{note, false})

	case generatedAllMsg:
		if msg.err != nil {
			return m, m.showMessage(statusMessage{msg.err.Error(), true})
		}
		r := msg.result
		note := fmt.Sprintf("Generated %d, skipped %d", r.Generated, r.Skipped)
		if len(r.Failed) > 0 {
			note += fmt.Sprintf(", %d failed", len(r.Failed))
		}
		return m, m.showMessage(statusMessage{note, len(r.Failed) > 0})

	case tea.KeyMsg:
		if m.input != inputNone {
			return m.updateInput(msg)
		}
		return m.handleKey(msg)
	}

	return m, nil
}

func (m listModel) updateInput(msg tea.KeyMsg) (listModel, tea.Cmd) {
	switch msg.String() {
	case "esc":
		if m.input == inputFilter {
			m.filter.Reset()
			m.filter.Blur()
			m.refresh()
		} else {
			m.url.Reset()
			m.url.Blur()
		}
		m.input = inputNone
		return m, nil

	case "enter":
		if m.input == inputFilter {
			m.filter.Blur()
			m.input = inputNone
			return m, nil
		}
		raw := strings.TrimSpace(m.url.Value())
		m.url.Reset()
		m.url.Blur()
		m.input = inputNone
		if raw == "" {
			return m, nil
		}
		return m, tea.Batch(
			addURL(m.common.desk, raw),
			m.showMessage(statusMessage{"Fetching " + raw + ellipsis, false}),
		)
	}

	var cmd tea.Cmd
	if m.input == inputFilter {
		m.filter, cmd = m.filter.Update(msg)
		m.refresh()
	} else {
		m.url, cmd = m.url.Update(msg)
	}
	return m, cmd
}

func (m listModel) handleKey(msg tea.KeyMsg) (listModel, tea.Cmd) {
	desk := m.common.desk

	switch {
	case key.Matches(msg, listKeys.Up):
		if m.cursor > 0 {
			m.cursor--
		}

	case key.Matches(msg, listKeys.Down):
		if m.cursor < len(m.visible)-1 {
			m.cursor++
		}

	case key.Matches(msg, listKeys.Open):
		if a, ok := m.selected(); ok {
			return m, func() tea.Msg { return openArticleMsg{id: a.ID} }
		}

	case key.Matches(msg, listKeys.SwitchView):
		if m.view == article.ListQueue {
			m.view = article.ListLibrary
		} else {
			m.view = article.ListQueue
		}
		desk.SetView(m.view)
		m.cursor = 0
		m.refresh()

	case key.Matches(msg, listKeys.Filter):
		m.input = inputFilter
		return m, m.filter.Focus()

	case key.Matches(msg, listKeys.Add):
		m.input = inputURL
		return m, m.url.Focus()

	case key.Matches(msg, listKeys.Remove):
		a, ok := m.selected()
		if !ok || m.view != article.ListQueue {
			break
		}
		if err := desk.Remove(context.Background(), a.ID); err != nil {
			return m, m.showMessage(statusMessage{err.Error(), true})
		}
		m.refresh()
		return m, m.showMessage(statusMessage{"Removed " + a.Title, false})

	case key.Matches(msg, listKeys.Save):
		a, ok := m.selected()
		if !ok {
			break
		}
		saved, err := desk.ToggleSaved(context.Background(), a.ID)
		if err != nil {
			return m, m.showMessage(statusMessage{err.Error(), true})
		}
		m.refresh()
		note := "Removed from library"
		if saved {
			note = "Saved to library"
		}
		return m, m.showMessage(statusMessage{note, false})

	case key.Matches(msg, listKeys.MoveUp), key.Matches(msg, listKeys.MoveDown):
		if m.view != article.ListQueue || m.filterValue() != "" {
			break
		}
		to := m.cursor + 1
		if key.Matches(msg, listKeys.MoveUp) {
			to = m.cursor - 1
		}
		if to < 0 || to >= len(m.visible) {
			break
		}
		desk.Reorder(m.cursor, to)
		m.cursor = to
		m.refresh()

	case key.Matches(msg, listKeys.Play):
		a, ok := m.selected()
		if !ok {
			break
		}
		s, err := desk.Session(a.ID)
		if err == nil {
			err = s.Toggle()
		}
		if errors.Is(err, briefing.ErrNotReady) {
			return m, m.showMessage(statusMessage{"Generate a summary first", true})
		}
		if err != nil {
			return m, m.showMessage(statusMessage{err.Error(), true})
		}
		return m, progressTick()

	case key.Matches(msg, listKeys.GenerateAll):
		if len(desk.PendingAudio()) == 0 {
			return m, m.showMessage(statusMessage{"Every queued article has audio", false})
		}
		return m, tea.Batch(
			generateAll(desk, m.common.prefs.Defaults(), m.common.cfg.Concurrency),
			m.common.spinner.Tick,
		)

	case key.Matches(msg, listKeys.Help):
		m.showHelp = !m.showHelp
	}

	return m, nil
}

// VIEW

func (m listModel) View() string {
	width := m.common.width
	height := m.common.height

	header := "  " + logoView() + "  " + m.tabsView()
	if m.common.busy() {
		header += " " + m.common.spinner.View()
	}

	var footer []string
	switch m.input {
	case inputFilter:
		footer = append(footer, "  "+m.filter.View())
	case inputURL:
		footer = append(footer, "  "+m.url.View())
	default:
		if q := m.filterValue(); q != "" {
			footer = append(footer, "  "+dimStyle.Render("Filtered by "+q+" (esc clears)"))
		}
	}
	footer = append(footer, m.statusBarView(width))
	if m.showHelp {
		footer = append(footer, indent(m.common.help.FullHelpView(listKeys.FullHelp()), 2))
	} else {
		footer = append(footer, "  "+m.common.help.ShortHelpView(listKeys.ShortHelp()))
	}
	footerView := strings.Join(footer, "\n")

	// Each item takes two lines plus a blank separator.
	avail := height - lipgloss.Height(header) - lipgloss.Height(footerView) - 2
	perPage := max(1, avail/3)
	start := 0
	if m.cursor >= perPage {
		start = m.cursor - perPage + 1
	}

	var b strings.Builder
	if len(m.visible) == 0 {
		b.WriteString(indent(dimStyle.Render(m.emptyText()), 2))
	}
	for i := start; i < len(m.visible) && i < start+perPage; i++ {
		b.WriteString(m.itemView(m.visible[i], i == m.cursor, width))
		b.WriteString("\n")
	}

	body := b.String()
	if gap := avail - lipgloss.Height(body); gap > 0 {
		body += strings.Repeat("\n", gap)
	}
	return "\n" + header + "\n\n" + body + footerView
}

func (m listModel) emptyText() string {
	if m.filterValue() != "" {
		return "Nothing matches."
	}
	if m.view == article.ListLibrary {
		return "Nothing saved yet. Press s on an article to keep it."
	}
	return "The queue is empty. Press a to add an article by URL."
}

func (m listModel) tabsView() string {
	queue := fmt.Sprintf("Queue (%d)", len(m.common.desk.Items(article.ListQueue)))
	library := fmt.Sprintf("Library (%d)", len(m.common.desk.Items(article.ListLibrary)))
	if m.view == article.ListLibrary {
		return tabStyle.Render(queue) + activeTab.Render(library)
	}
	return activeTab.Render(queue) + tabStyle.Render(library)
}

func (m listModel) itemView(a article.Article, selected bool, width int) string {
	desk := m.common.desk

	marks := " "
	if desk.Coordinator().IsActive(a.ID) {
		marks = playingMark
	}
	if desk.Saved(a) {
		marks += savedMark
	} else {
		marks += " "
	}

	title := a.Title
	if title == "" {
		title = "Untitled"
	}
	title = truncate.StringWithTail(title, uint(max(0, width-10)), ellipsis) //nolint:gosec

	var note []string
	snap, err := desk.Status(a.ID)
	if err == nil {
		note = append(note, statusStyle(snap.Status).Render(statusLabel(snap)))
	}
	if a.Source != "" {
		note = append(note, a.Source)
	}
	if !a.AddedAt.IsZero() {
		note = append(note, humanize.Time(a.AddedAt))
	}
	if a.Current != nil && a.Current.Feedback != nil {
		note = append(note, feedbackLabel(*a.Current.Feedback))
	}
	sub := strings.Join(note, dividerDot)

	bar := " "
	if selected {
		bar = selectedBar
		title = selectedText.Render(title)
	}
	return fmt.Sprintf(" %s%s %s\n %s   %s\n", bar, marks, title, bar, sub)
}

func (m listModel) statusBarView(width int) string {
	mode := statusBarNoteStyle(" " + strings.ToUpper(string(m.view)) + " ")
	if m.showStatusMessage {
		style := statusBarMessageStyle
		if m.statusMessage.isError {
			style = statusBarErrorStyle
		}
		msg := truncate.StringWithTail(" "+m.statusMessage.message+" ", uint(max(0, width-lipgloss.Width(mode))), ellipsis) //nolint:gosec
		msg = style(msg)
		pad := max(0, width-lipgloss.Width(mode)-lipgloss.Width(msg))
		return mode + msg + style(strings.Repeat(" ", pad))
	}

	pending := len(m.common.desk.PendingAudio())
	note := fmt.Sprintf(" %d without audio ", pending)
	pad := max(0, width-lipgloss.Width(mode)-runewidth.StringWidth(note))
	return mode + statusBarNoteStyle(strings.Repeat(" ", pad)) + statusBarHelpStyle(note)
}

func statusLabel(snap pipeline.Snapshot) string {
	if snap.Status == pipeline.StatusError && snap.Failure != nil {
		return "failed at " + string(snap.Failure.Stage)
	}
	return snap.Status.String()
}

func feedbackLabel(fb article.Feedback) string {
	var parts []string
	switch fb.Verdict {
	case article.VerdictGood:
		parts = append(parts, "👍")
	case article.VerdictBad:
		parts = append(parts, "👎")
	}
	if fb.Rating > 0 {
		parts = append(parts, strings.Repeat("★", fb.Rating)+strings.Repeat("☆", article.MaxRating-fb.Rating))
	}
	return strings.Join(parts, " ")
}

// COMMANDS

func addURL(desk *briefing.Desk, raw string) tea.Cmd {
	return func() tea.Msg {
		a, warning, err := desk.AddURL(context.Background(), raw)
		if err != nil {
			log.Warn("Could not add article", "url", raw, "error", err)
		}
		return addedURLMsg{article: a, warning: warning, err: err}
	}
}

func generateAll(desk *briefing.Desk, opts pipeline.Options, concurrency int) tea.Cmd {
	return func() tea.Msg {
		res, err := desk.GenerateAll(context.Background(), opts, concurrency)
		return generatedAllMsg{result: res, err: err}
	}
}
