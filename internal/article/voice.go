package article

import (
	"errors"
	"fmt"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/language/display"
)

// Voice is a prebuilt speech synthesis voice.
type Voice string

const (
	VoiceKore   Voice = "Kore"
	VoicePuck   Voice = "Puck"
	VoiceCharon Voice = "Charon"
	VoiceFenrir Voice = "Fenrir"
	VoiceZephyr Voice = "Zephyr"
)

// DefaultVoice is used when none is configured.
const DefaultVoice = VoiceKore

// Voices lists the supported voices.
var Voices = []Voice{VoiceKore, VoicePuck, VoiceCharon, VoiceFenrir, VoiceZephyr}

var (
	// ErrUnknownVoice is returned for a voice outside the supported set.
	ErrUnknownVoice = errors.New("unknown voice")

	// ErrUnknownLanguage is returned when a language cannot be resolved.
	ErrUnknownLanguage = errors.New("unknown language")
)

// ParseVoice resolves a voice name case-insensitively.
func ParseVoice(s string) (Voice, error) {
	if s == "" {
		return DefaultVoice, nil
	}
	for _, v := range Voices {
		if strings.EqualFold(string(v), s) {
			return v, nil
		}
	}
	return "", fmt.Errorf("%w %q (supported: %s)", ErrUnknownVoice, s, joinVoices())
}

func joinVoices() string {
	names := make([]string, len(Voices))
	for i, v := range Voices {
		names[i] = string(v)
	}
	return strings.Join(names, ", ")
}

// DefaultLanguage is the summary language when none is configured.
const DefaultLanguage = "English"

// Languages are the summary languages offered in menus.
var Languages = []language.Tag{
	language.English,
	language.Spanish,
	language.French,
	language.German,
	language.Italian,
	language.Portuguese,
	language.Dutch,
	language.Japanese,
	language.Korean,
	language.Chinese,
	language.Hindi,
	language.Arabic,
}

var namer = display.English.Languages()

// LanguageNames returns the English display names of Languages.
func LanguageNames() []string {
	out := make([]string, len(Languages))
	for i, t := range Languages {
		out[i] = namer.Name(t)
	}
	return out
}

// ResolveLanguage accepts a BCP 47 tag ("es", "pt-BR") or an English
// language name ("spanish") and returns the English display name that is
// sent to the summarizer and stored on entries.
func ResolveLanguage(s string) (string, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return DefaultLanguage, nil
	}
	for _, t := range Languages {
		if name := namer.Name(t); strings.EqualFold(name, s) {
			return name, nil
		}
	}
	if tag, err := language.Parse(s); err == nil {
		if name := namer.Name(tag); name != "" {
			return name, nil
		}
	}
	for _, t := range display.Supported.Tags() {
		if name := namer.Name(t); name != "" && strings.EqualFold(name, s) {
			return name, nil
		}
	}
	return "", fmt.Errorf("%w %q", ErrUnknownLanguage, s)
}
