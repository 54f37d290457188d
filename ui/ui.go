// Package ui provides the interactive briefing reader.
package ui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/log"

	"github.com/briefcast/briefcast/internal/article"
	"github.com/briefcast/briefcast/internal/briefing"
	"github.com/briefcast/briefcast/internal/pipeline"
	"github.com/briefcast/briefcast/internal/store"
)

const (
	statusMessageTimeout = time.Second * 3 // how long to show status messages like "saved!"
	ellipsis             = "…"
	progressInterval     = 250 * time.Millisecond
)

var config Config

// Preferences is what the UI reads and changes besides the desk.
type Preferences interface {
	Theme() store.Theme
	ToggleTheme(ctx context.Context) (store.Theme, error)
	Defaults() pipeline.Options
	Volume() float64
}

// Loader reads the persisted collection again after an outside change.
type Loader func(ctx context.Context) (article.Collection, error)

// NewProgram returns a new Tea program.
func NewProgram(cfg Config, desk *briefing.Desk, prefs Preferences, reload Loader) *tea.Program {
	log.Debug("Starting briefcast", "glamour", cfg.GlamourEnabled, "watch", cfg.WatchDir)

	config = cfg
	opts := []tea.ProgramOption{tea.WithAltScreen()}
	if cfg.EnableMouse {
		opts = append(opts, tea.WithMouseCellMotion())
	}
	return tea.NewProgram(newModel(cfg, desk, prefs, reload), opts...)
}

type errMsg struct{ err error }

func (e errMsg) Error() string { return e.err.Error() }

type (
	deskEventMsg            briefing.Event
	progressTickMsg         struct{}
	statusMessageTimeoutMsg applicationContext
)

// applicationContext indicates the area of the application something applies
// to. Occasionally used as an argument to commands and messages.
type applicationContext int

const (
	listContext applicationContext = iota
	cardContext
)

// state is the top-level application state.
type state int

const (
	stateShowList state = iota
	stateShowCard
)

func (s state) String() string {
	return map[state]string{
		stateShowList: "showing article list",
		stateShowCard: "showing article",
	}[s]
}

// Common stuff we'll need to access in all models.
type commonModel struct {
	cfg          Config
	desk         *briefing.Desk
	prefs        Preferences
	glamourStyle string
	spinner      spinner.Model
	help         help.Model
	width        int
	height       int
}

// busy reports whether any article is generating, for the spinner.
func (c *commonModel) busy() bool {
	for _, list := range []article.List{article.ListQueue, article.ListLibrary} {
		for _, a := range c.desk.Items(list) {
			if snap, err := c.desk.Status(a.ID); err == nil && snap.Status.Busy() {
				return true
			}
		}
	}
	return false
}

type model struct {
	common   *commonModel
	state    state
	fatalErr error

	// Sub-models
	list listModel
	card cardModel

	events  chan briefing.Event
	unsub   func()
	watcher *storeWatcher
	reload  Loader
}

func newModel(cfg Config, desk *briefing.Desk, prefs Preferences, reload Loader) model {
	common := &commonModel{
		cfg:          cfg,
		desk:         desk,
		prefs:        prefs,
		glamourStyle: applyTheme(prefs.Theme(), cfg.GlamourStyle),
		spinner:      spinner.New(spinner.WithSpinner(spinner.Dot), spinner.WithStyle(dimStyle)),
		help:         help.New(),
	}

	events := make(chan briefing.Event, 64)
	unsub := desk.Subscribe(func(ev briefing.Event) {
		select {
		case events <- ev:
		default:
			// The view re-reads the desk on every render.
		}
	})

	m := model{
		common: common,
		state:  stateShowList,
		list:   newListModel(common),
		card:   newCardModel(common),
		events: events,
		unsub:  unsub,
		reload: reload,
	}
	if cfg.WatchDir != "" && reload != nil {
		w, err := newStoreWatcher(cfg.WatchDir)
		if err != nil {
			log.Error("Could not watch the store", "dir", cfg.WatchDir, "error", err)
		} else {
			m.watcher = w
		}
	}
	return m
}

func (m model) Init() tea.Cmd {
	cmds := []tea.Cmd{waitForDeskEvent(m.events), m.common.spinner.Tick}
	if m.watcher != nil {
		cmds = append(cmds, m.watcher.next)
	}
	return tea.Batch(cmds...)
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	// If there's been an error, any key exits
	if m.fatalErr != nil {
		if _, ok := msg.(tea.KeyMsg); ok {
			return m, m.quit()
		}
	}

	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		// Ctrl+C always quits no matter where in the application you are.
		case "ctrl+c":
			return m, m.quit()

		case "ctrl+z":
			return m, tea.Suspend

		case "q":
			if m.state == stateShowList && m.list.capturingInput() {
				break
			}
			return m, m.quit()

		case "t":
			if m.state == stateShowList && m.list.capturingInput() {
				break
			}
			return m, toggleTheme(m.common.prefs)

		case "esc", "backspace":
			if m.state == stateShowCard {
				m.state = stateShowList
				m.card.unload()
				return m, nil
			}
		}

	// Window size is received when starting up and on every resize
	case tea.WindowSizeMsg:
		m.common.width = msg.Width
		m.common.height = msg.Height
		m.common.help.Width = msg.Width
		m.list.setSize(msg.Width, msg.Height)
		m.card.setSize(msg.Width, msg.Height)

	case openArticleMsg:
		m.state = stateShowCard
		return m, m.card.load(msg.id)

	case deskEventMsg:
		cmds = append(cmds, waitForDeskEvent(m.events))
		if msg.Kind == briefing.EventPlayback || msg.Kind == briefing.EventActive {
			cmds = append(cmds, progressTick())
		}
		// Both sub-models see desk events.
		var cmd tea.Cmd
		m.list, cmd = m.list.update(msg)
		cmds = append(cmds, cmd)
		m.card, cmd = m.card.update(msg)
		cmds = append(cmds, cmd)
		return m, tea.Batch(cmds...)

	case progressTickMsg:
		if m.common.desk.Coordinator().Active() != "" {
			cmds = append(cmds, progressTick())
		}

	case storeChangedMsg:
		cmds = append(cmds, reloadStore(m.common.desk, m.reload))
		if m.watcher != nil {
			cmds = append(cmds, m.watcher.next)
		}

	case themeChangedMsg:
		if msg.err != nil {
			cmds = append(cmds, showMessage(m.state, statusMessage{msg.err.Error(), true}))
			break
		}
		m.common.glamourStyle = applyTheme(msg.theme, m.common.cfg.GlamourStyle)
		if m.state == stateShowCard {
			cmds = append(cmds, m.card.render())
		}

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.common.spinner, cmd = m.common.spinner.Update(msg)
		return m, cmd

	case errMsg:
		m.fatalErr = msg.err
		return m, nil
	}

	switch m.state {
	case stateShowList:
		newList, cmd := m.list.update(msg)
		m.list = newList
		cmds = append(cmds, cmd)
	case stateShowCard:
		newCard, cmd := m.card.update(msg)
		m.card = newCard
		cmds = append(cmds, cmd)
	}

	return m, tea.Batch(cmds...)
}

func (m model) View() string {
	if m.fatalErr != nil {
		return errorView(m.fatalErr, true)
	}

	switch m.state { //nolint:exhaustive
	case stateShowCard:
		return m.card.View()
	default:
		return m.list.View()
	}
}

func (m model) quit() tea.Cmd {
	if m.unsub != nil {
		m.unsub()
	}
	if m.watcher != nil {
		_ = m.watcher.Close()
	}
	return tea.Quit
}

func errorView(err error, fatal bool) string {
	exitMsg := "press any key to "
	if fatal {
		exitMsg += "exit"
	} else {
		exitMsg += "return"
	}
	s := fmt.Sprintf("%s\n\n%v\n\n%s",
		errorTitleStyle.Render("ERROR"),
		err,
		subtleStyle.Render(exitMsg),
	)
	return "\n" + indent(s, 3)
}

// COMMANDS

type themeChangedMsg struct {
	theme store.Theme
	err   error
}

type statusMessage struct {
	message string
	isError bool
}

// showStatusMsg is routed to whichever sub-model is showing.
type showStatusMsg statusMessage

func showMessage(_ state, msg statusMessage) tea.Cmd {
	return func() tea.Msg { return showStatusMsg(msg) }
}

func toggleTheme(prefs Preferences) tea.Cmd {
	return func() tea.Msg {
		t, err := prefs.ToggleTheme(context.Background())
		return themeChangedMsg{theme: t, err: err}
	}
}

func waitForDeskEvent(ch <-chan briefing.Event) tea.Cmd {
	return func() tea.Msg {
		return deskEventMsg(<-ch)
	}
}

func progressTick() tea.Cmd {
	return tea.Tick(progressInterval, func(time.Time) tea.Msg {
		return progressTickMsg{}
	})
}

func waitForStatusMessageTimeout(appCtx applicationContext, t *time.Timer) tea.Cmd {
	return func() tea.Msg {
		<-t.C
		return statusMessageTimeoutMsg(appCtx)
	}
}

// ETC

// Lightweight version of reflow's indent function.
func indent(s string, n int) string {
	if n <= 0 || s == "" {
		return s
	}
	l := strings.Split(s, "\n")
	b := strings.Builder{}
	i := strings.Repeat(" ", n)
	for _, v := range l {
		fmt.Fprintf(&b, "%s%s\n", i, v)
	}
	return b.String()
}
