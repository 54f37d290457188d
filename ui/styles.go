package ui

import (
	"github.com/charmbracelet/glamour/styles"
	"github.com/charmbracelet/lipgloss"

	"github.com/briefcast/briefcast/internal/pipeline"
	"github.com/briefcast/briefcast/internal/store"
)

var (
	normalDim = lipgloss.AdaptiveColor{Light: "#A49FA5", Dark: "#777777"}
	gray      = lipgloss.AdaptiveColor{Light: "#909090", Dark: "#626262"}
	midGray   = lipgloss.AdaptiveColor{Light: "#B2B2B2", Dark: "#4A4A4A"}
	green     = lipgloss.Color("#04B575")
	red       = lipgloss.AdaptiveColor{Light: "#FF4672", Dark: "#ED567A"}
	fuchsia   = lipgloss.Color("#EE6FF8")
	yellowFg  = lipgloss.AdaptiveColor{Light: "#B8860B", Dark: "#ECFD65"}
	cream     = lipgloss.AdaptiveColor{Light: "#FFFDF5", Dark: "#FFFDF5"}

	mintGreen = lipgloss.AdaptiveColor{Light: "#89F0CB", Dark: "#89F0CB"}
	darkGreen = lipgloss.AdaptiveColor{Light: "#1C8760", Dark: "#1C8760"}

	statusBarNoteFg = lipgloss.AdaptiveColor{Light: "#656565", Dark: "#7D7D7D"}
	statusBarBg     = lipgloss.AdaptiveColor{Light: "#E6E6E6", Dark: "#242424"}
)

var (
	logoStyle = lipgloss.NewStyle().
			Foreground(cream).
			Background(fuchsia).
			Bold(true).
			Padding(0, 1)

	errorTitleStyle = lipgloss.NewStyle().
			Foreground(cream).
			Background(red).
			Padding(0, 1)

	subtleStyle  = lipgloss.NewStyle().Foreground(gray)
	dimStyle     = lipgloss.NewStyle().Foreground(normalDim)
	tabStyle     = lipgloss.NewStyle().Foreground(gray).Padding(0, 1)
	activeTab    = lipgloss.NewStyle().Foreground(fuchsia).Bold(true).Padding(0, 1).Underline(true)
	selectedBar  = lipgloss.NewStyle().Foreground(fuchsia).Render("│")
	selectedText = lipgloss.NewStyle().Foreground(fuchsia)
	savedMark    = lipgloss.NewStyle().Foreground(yellowFg).Render("★")
	playingMark  = lipgloss.NewStyle().Foreground(green).Render("▶")
	dividerDot   = lipgloss.NewStyle().Foreground(midGray).Render(" • ")

	statusBarNoteStyle = lipgloss.NewStyle().
				Foreground(statusBarNoteFg).
				Background(statusBarBg).
				Render

	statusBarHelpStyle = lipgloss.NewStyle().
				Foreground(statusBarNoteFg).
				Background(lipgloss.AdaptiveColor{Light: "#DCDCDC", Dark: "#323232"}).
				Render

	statusBarMessageStyle = lipgloss.NewStyle().
				Foreground(mintGreen).
				Background(darkGreen).
				Render

	statusBarErrorStyle = lipgloss.NewStyle().
				Foreground(cream).
				Background(red).
				Render
)

func logoView() string {
	return logoStyle.Render("briefcast")
}

// statusStyle colours a pipeline status.
func statusStyle(s pipeline.Status) lipgloss.Style {
	switch s {
	case pipeline.StatusReady:
		return lipgloss.NewStyle().Foreground(green)
	case pipeline.StatusError:
		return lipgloss.NewStyle().Foreground(red)
	case pipeline.StatusSummarizing, pipeline.StatusGeneratingAudio:
		return lipgloss.NewStyle().Foreground(yellowFg)
	default:
		return lipgloss.NewStyle().Foreground(gray)
	}
}

// applyTheme switches adaptive colours and returns the glamour style to
// render summaries with. An explicit glamour style wins.
func applyTheme(t store.Theme, glamourStyle string) string {
	dark := t != store.ThemeLight
	lipgloss.SetHasDarkBackground(dark)
	if glamourStyle != "" && glamourStyle != styles.AutoStyle {
		return glamourStyle
	}
	if dark {
		return styles.DarkStyle
	}
	return styles.LightStyle
}
