package genai

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/briefcast/briefcast/internal/article"
	"github.com/briefcast/briefcast/internal/audio"
	"github.com/briefcast/briefcast/internal/cache"
	"github.com/briefcast/briefcast/internal/extract"
)

const summaryInstruction = `You write news briefings that are read aloud during a commute.
Summarize the article in %s in 60 to 100 words.
Write for the ear: short sentences, no lists, no headings, no markdown, no URLs.
Start with the most important fact. Do not mention that this is a summary.`

// Summarize returns a spoken-style summary of body in language.
func (c *Client) Summarize(ctx context.Context, body, language string) (string, error) {
	if language == "" {
		language = article.DefaultLanguage
	}
	temp := 0.4
	req := generateRequest{
		SystemInstruction: &content{Parts: []part{{Text: fmt.Sprintf(summaryInstruction, language)}}},
		Contents:          userText(body),
		GenerationConfig:  &generationConfig{Temperature: &temp},
	}

	resp, err := c.generate(ctx, c.cfg.SummaryModel, req)
	if err != nil {
		return "", err
	}
	text := strings.TrimSpace(resp.text())
	if text == "" {
		return "", ErrEmptyResponse
	}
	return text, nil
}

// Synthesize returns base64 16-bit PCM of text at 24 kHz mono. Pitch is
// passed to the model as a delivery instruction.
func (c *Client) Synthesize(ctx context.Context, text string, voice article.Voice, pitch float64) (string, error) {
	if voice == "" {
		voice = article.DefaultVoice
	}
	key := cache.Key(text, string(voice), pitch)
	if c.cache != nil {
		if pcm, ok := c.cache.Get(key); ok {
			c.logger.Debug("Audio cache hit", "key", key)
			return base64.StdEncoding.EncodeToString(pcm), nil
		}
	}

	req := generateRequest{
		Contents: userText(speechPrompt(text, pitch)),
		GenerationConfig: &generationConfig{
			ResponseModalities: []string{"AUDIO"},
			SpeechConfig: &speechConfig{
				VoiceConfig: voiceConfig{PrebuiltVoiceConfig: prebuiltVoiceConfig{VoiceName: string(voice)}},
			},
		},
	}

	resp, err := c.generate(ctx, c.cfg.TTSModel, req)
	if err != nil {
		return "", err
	}
	data := resp.audio()
	if data == nil {
		return "", ErrNoAudio
	}

	pcm, err := audio.Decode(data.Data)
	if err != nil {
		return "", err
	}
	if len(pcm) == 0 {
		return "", ErrNoAudio
	}
	if c.cache != nil {
		if err := c.cache.Put(key, pcm); err != nil {
			c.logger.Debug("Audio not cached", "error", err)
		}
	}
	return base64.StdEncoding.EncodeToString(pcm), nil
}

// speechPrompt wraps text with a delivery instruction. Pitch is an offset
// from the voice's natural register, nominally -1..+1.
func speechPrompt(text string, pitch float64) string {
	var tone string
	switch {
	case pitch <= -0.5:
		tone = "in a noticeably lower pitch"
	case pitch < -0.1:
		tone = "in a slightly lower pitch"
	case pitch >= 0.5:
		tone = "in a noticeably higher pitch"
	case pitch > 0.1:
		tone = "in a slightly higher pitch"
	default:
		tone = "in a natural pitch"
	}
	return fmt.Sprintf("Read this news briefing aloud, calm and clear, %s:\n\n%s", tone, text)
}

const extractPrompt = `Find the news article published at this URL: %s

Reply with the article's headline and its full body text, in the article's language,
using exactly this format and nothing else:

HEADLINE: <the headline>
CONTENT: <the body text>`

// Extract finds the article at url with a search-grounded call.
func (c *Client) Extract(ctx context.Context, url string) (extract.Result, error) {
	req := generateRequest{
		Contents: userText(fmt.Sprintf(extractPrompt, url)),
		Tools:    []tool{{GoogleSearch: &struct{}{}}},
	}

	resp, err := c.generate(ctx, c.cfg.ExtractModel, req)
	if err != nil {
		return extract.Result{}, err
	}
	res := ParseExtraction(resp.text())
	if res.Empty() {
		return extract.Result{}, ErrEmptyResponse
	}
	return res, nil
}

// ParseExtraction reads the HEADLINE/CONTENT template. Text without a
// CONTENT marker is taken as the body.
func ParseExtraction(s string) extract.Result {
	s = strings.TrimSpace(s)
	var res extract.Result

	idx := strings.Index(s, "CONTENT:")
	if idx < 0 {
		if h := strings.Index(s, "HEADLINE:"); h >= 0 {
			line, rest, _ := strings.Cut(s[h+len("HEADLINE:"):], "\n")
			res.Title = cleanMarkers(line)
			res.Content = strings.TrimSpace(rest)
			return res
		}
		res.Content = s
		return res
	}

	head := s[:idx]
	res.Content = strings.TrimSpace(strings.TrimLeft(s[idx+len("CONTENT:"):], "*"))
	if h := strings.Index(head, "HEADLINE:"); h >= 0 {
		res.Title = cleanMarkers(head[h+len("HEADLINE:"):])
	}
	return res
}

func cleanMarkers(s string) string {
	s = strings.TrimSpace(s)
	s = strings.Trim(s, "*#")
	return strings.TrimSpace(s)
}
