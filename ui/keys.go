package ui

import "github.com/charmbracelet/bubbles/key"

type listKeyMap struct {
	Up          key.Binding
	Down        key.Binding
	Open        key.Binding
	SwitchView  key.Binding
	Filter      key.Binding
	Add         key.Binding
	Remove      key.Binding
	Save        key.Binding
	MoveUp      key.Binding
	MoveDown    key.Binding
	Play        key.Binding
	GenerateAll key.Binding
	Theme       key.Binding
	Help        key.Binding
	Quit        key.Binding
}

func (k listKeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Open, k.Play, k.SwitchView, k.Filter, k.Add, k.Help, k.Quit}
}

func (k listKeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Up, k.Down, k.Open, k.Play, k.SwitchView},
		{k.Filter, k.Add, k.Remove, k.Save, k.GenerateAll},
		{k.MoveUp, k.MoveDown, k.Theme, k.Help, k.Quit},
	}
}

var listKeys = listKeyMap{
	Up:          key.NewBinding(key.WithKeys("k", "up"), key.WithHelp("k/↑", "up")),
	Down:        key.NewBinding(key.WithKeys("j", "down"), key.WithHelp("j/↓", "down")),
	Open:        key.NewBinding(key.WithKeys("enter", "l"), key.WithHelp("enter", "open")),
	SwitchView:  key.NewBinding(key.WithKeys("tab"), key.WithHelp("tab", "queue/library")),
	Filter:      key.NewBinding(key.WithKeys("/"), key.WithHelp("/", "filter")),
	Add:         key.NewBinding(key.WithKeys("a"), key.WithHelp("a", "add url")),
	Remove:      key.NewBinding(key.WithKeys("x", "delete"), key.WithHelp("x", "remove from queue")),
	Save:        key.NewBinding(key.WithKeys("s"), key.WithHelp("s", "save/unsave")),
	MoveUp:      key.NewBinding(key.WithKeys("K", "shift+up"), key.WithHelp("K", "move up")),
	MoveDown:    key.NewBinding(key.WithKeys("J", "shift+down"), key.WithHelp("J", "move down")),
	Play:        key.NewBinding(key.WithKeys(" "), key.WithHelp("space", "play/pause")),
	GenerateAll: key.NewBinding(key.WithKeys("G"), key.WithHelp("G", "generate all")),
	Theme:       key.NewBinding(key.WithKeys("t"), key.WithHelp("t", "theme")),
	Help:        key.NewBinding(key.WithKeys("?"), key.WithHelp("?", "help")),
	Quit:        key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
}

type cardKeyMap struct {
	Back     key.Binding
	Play     key.Binding
	Back5    key.Binding
	Fwd5     key.Binding
	Generate key.Binding
	Retry    key.Binding
	Reset    key.Binding
	Voice    key.Binding
	Language key.Binding
	PitchDn  key.Binding
	PitchUp  key.Binding
	Good     key.Binding
	Bad      key.Binding
	Rate     key.Binding
	Undo     key.Binding
	Restore  key.Binding
	Save     key.Binding
	Copy     key.Binding
	Export   key.Binding
	Theme    key.Binding
	Help     key.Binding
	Quit     key.Binding
}

func (k cardKeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Play, k.Generate, k.Back5, k.Fwd5, k.Back, k.Help}
}

func (k cardKeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Play, k.Back5, k.Fwd5, k.Generate, k.Retry, k.Reset},
		{k.Voice, k.Language, k.PitchDn, k.PitchUp, k.Restore, k.Save},
		{k.Good, k.Bad, k.Rate, k.Undo, k.Copy, k.Export},
		{k.Theme, k.Back, k.Help, k.Quit},
	}
}

var cardKeys = cardKeyMap{
	Back:     key.NewBinding(key.WithKeys("esc", "backspace"), key.WithHelp("esc", "back")),
	Play:     key.NewBinding(key.WithKeys(" "), key.WithHelp("space", "play/pause")),
	Back5:    key.NewBinding(key.WithKeys("left", "h"), key.WithHelp("←", "rewind")),
	Fwd5:     key.NewBinding(key.WithKeys("right", "l"), key.WithHelp("→", "forward")),
	Generate: key.NewBinding(key.WithKeys("g"), key.WithHelp("g", "generate")),
	Retry:    key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "retry")),
	Reset:    key.NewBinding(key.WithKeys("X"), key.WithHelp("X", "reset")),
	Voice:    key.NewBinding(key.WithKeys("v"), key.WithHelp("v", "voice")),
	Language: key.NewBinding(key.WithKeys("L"), key.WithHelp("L", "language")),
	PitchDn:  key.NewBinding(key.WithKeys("["), key.WithHelp("[", "pitch down")),
	PitchUp:  key.NewBinding(key.WithKeys("]"), key.WithHelp("]", "pitch up")),
	Good:     key.NewBinding(key.WithKeys("+"), key.WithHelp("+", "good")),
	Bad:      key.NewBinding(key.WithKeys("-"), key.WithHelp("-", "bad")),
	Rate:     key.NewBinding(key.WithKeys("0", "1", "2", "3", "4", "5"), key.WithHelp("0-5", "rate")),
	Undo:     key.NewBinding(key.WithKeys("u"), key.WithHelp("u", "undo feedback")),
	Restore:  key.NewBinding(key.WithKeys("p"), key.WithHelp("p", "previous summary")),
	Save:     key.NewBinding(key.WithKeys("s"), key.WithHelp("s", "save/unsave")),
	Copy:     key.NewBinding(key.WithKeys("c"), key.WithHelp("c", "copy summary")),
	Export:   key.NewBinding(key.WithKeys("w"), key.WithHelp("w", "write wav")),
	Theme:    key.NewBinding(key.WithKeys("t"), key.WithHelp("t", "theme")),
	Help:     key.NewBinding(key.WithKeys("?"), key.WithHelp("?", "help")),
	Quit:     key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
}
