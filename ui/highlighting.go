package ui

import (
	"strings"
	"unicode"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/reflow/truncate"
)

var speakingStyle = lipgloss.NewStyle().
	Background(lipgloss.AdaptiveColor{Light: "#FFF3B0", Dark: "#3D3A1A"}).
	Foreground(yellowFg).
	Bold(true)

// splitSentences splits a summary at sentence ends.
func splitSentences(text string) []string {
	var sentences []string
	var current strings.Builder
	runes := []rune(text)

	for i, r := range runes {
		current.WriteRune(r)
		if r != '.' && r != '!' && r != '?' {
			continue
		}
		if i+1 < len(runes) && !unicode.IsSpace(runes[i+1]) {
			continue
		}
		if s := strings.TrimSpace(current.String()); s != "" {
			sentences = append(sentences, s)
		}
		current.Reset()
	}
	if s := strings.TrimSpace(current.String()); s != "" {
		sentences = append(sentences, s)
	}
	return sentences
}

// spokenSentence estimates which sentence is being read at fraction pct of
// the audio, weighting sentences by length.
func spokenSentence(sentences []string, pct float64) int {
	if len(sentences) == 0 {
		return -1
	}
	total := 0
	for _, s := range sentences {
		total += len([]rune(s))
	}
	target := pct * float64(total)
	seen := 0
	for i, s := range sentences {
		seen += len([]rune(s))
		if float64(seen) > target {
			return i
		}
	}
	return len(sentences) - 1
}

// nowSpeakingView shows the sentence being read while audio plays.
func nowSpeakingView(text string, pct float64, width int) string {
	sentences := splitSentences(text)
	i := spokenSentence(sentences, pct)
	if i < 0 {
		return ""
	}
	line := truncate.StringWithTail(sentences[i], uint(max(0, width-4)), ellipsis) //nolint:gosec
	return " " + speakingStyle.Render(" "+line+" ")
}
