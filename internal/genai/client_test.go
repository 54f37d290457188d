package genai

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/briefcast/briefcast/internal/article"
	"github.com/briefcast/briefcast/internal/cache"
	"github.com/briefcast/briefcast/internal/retry"
)

func newTestClient(t *testing.T, h http.HandlerFunc, opts ...Option) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	c, err := New(Config{
		APIKey:            "test-key",
		BaseURL:           srv.URL,
		RequestsPerMinute: 6000,
		Retry:             retry.Config{MaxRetries: 2, BaseDelay: time.Millisecond},
	}, append([]Option{WithHTTPClient(srv.Client())}, opts...)...)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	return c
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func textResponse(s string) generateResponse {
	return generateResponse{Candidates: []candidate{{Content: content{Parts: []part{{Text: s}}}}}}
}

func TestNewRequiresKey(t *testing.T) {
	if _, err := New(Config{}); !errors.Is(err, ErrNoAPIKey) {
		t.Errorf("err = %v, want ErrNoAPIKey", err)
	}
}

func TestSummarize(t *testing.T) {
	var got generateRequest
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("x-goog-api-key") != "test-key" {
			t.Errorf("api key header = %q", r.Header.Get("x-goog-api-key"))
		}
		if !strings.HasSuffix(r.URL.Path, "/models/"+DefaultSummaryModel+":generateContent") {
			t.Errorf("path = %q", r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode request: %v", err)
		}
		writeJSON(w, http.StatusOK, textResponse("  La lluvia sube los ríos.  "))
	})

	text, err := c.Summarize(context.Background(), "Rain raised the rivers.", "Spanish")
	if err != nil {
		t.Fatalf("Summarize failed: %v", err)
	}
	if text != "La lluvia sube los ríos." {
		t.Errorf("text = %q", text)
	}
	if got.SystemInstruction == nil || !strings.Contains(got.SystemInstruction.Parts[0].Text, "Spanish") {
		t.Error("system instruction should name the language")
	}
	if got.Contents[0].Parts[0].Text != "Rain raised the rivers." {
		t.Errorf("body = %q", got.Contents[0].Parts[0].Text)
	}
}

func TestSummarizeEmpty(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, textResponse("   "))
	})
	if _, err := c.Summarize(context.Background(), "body", "English"); !errors.Is(err, ErrEmptyResponse) {
		t.Errorf("err = %v, want ErrEmptyResponse", err)
	}
}

func TestRetriesRateLimit(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			writeJSON(w, http.StatusTooManyRequests, generateResponse{Error: &apiError{Code: 429, Message: "slow down", Status: "RESOURCE_EXHAUSTED"}})
			return
		}
		writeJSON(w, http.StatusOK, textResponse("ok"))
	})

	if _, err := c.Summarize(context.Background(), "body", "English"); err != nil {
		t.Fatalf("Summarize should succeed after a retry: %v", err)
	}
	if calls.Load() != 2 {
		t.Errorf("calls = %d, want 2", calls.Load())
	}
}

func TestClientErrorNotRetried(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		writeJSON(w, http.StatusBadRequest, generateResponse{Error: &apiError{Code: 400, Message: "bad voice", Status: "INVALID_ARGUMENT"}})
	})

	_, err := c.Summarize(context.Background(), "body", "English")
	var status *retry.StatusError
	if !errors.As(err, &status) || status.StatusCode != http.StatusBadRequest {
		t.Fatalf("err = %v, want a 400 StatusError", err)
	}
	if status.Message != "bad voice" {
		t.Errorf("message = %q", status.Message)
	}
	if calls.Load() != 1 {
		t.Errorf("calls = %d, a 400 should not be retried", calls.Load())
	}
}

func TestSynthesize(t *testing.T) {
	pcm := []byte{0x01, 0x00, 0xff, 0x7f}
	var got generateRequest
	var calls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		_ = json.NewDecoder(r.Body).Decode(&got)
		writeJSON(w, http.StatusOK, generateResponse{Candidates: []candidate{{Content: content{Parts: []part{{
			InlineData: &inlineData{MimeType: "audio/L16;codec=pcm;rate=24000", Data: base64.StdEncoding.EncodeToString(pcm)},
		}}}}}})
	}, WithCache(cache.NewMemory(1<<10)))

	payload, err := c.Synthesize(context.Background(), "hello", article.Voice("Puck"), 0.6)
	if err != nil {
		t.Fatalf("Synthesize failed: %v", err)
	}
	if payload != base64.StdEncoding.EncodeToString(pcm) {
		t.Errorf("payload = %q", payload)
	}

	gc := got.GenerationConfig
	if gc == nil || len(gc.ResponseModalities) != 1 || gc.ResponseModalities[0] != "AUDIO" {
		t.Fatalf("generation config = %+v", gc)
	}
	if gc.SpeechConfig.VoiceConfig.PrebuiltVoiceConfig.VoiceName != "Puck" {
		t.Errorf("voice = %q", gc.SpeechConfig.VoiceConfig.PrebuiltVoiceConfig.VoiceName)
	}
	if !strings.Contains(got.Contents[0].Parts[0].Text, "higher pitch") {
		t.Errorf("prompt should carry the pitch, got %q", got.Contents[0].Parts[0].Text)
	}

	if _, err := c.Synthesize(context.Background(), "hello", article.Voice("Puck"), 0.6); err != nil {
		t.Fatalf("cached Synthesize failed: %v", err)
	}
	if calls.Load() != 1 {
		t.Errorf("calls = %d, second synthesis should come from the cache", calls.Load())
	}
}

func TestSynthesizeNoAudio(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, textResponse("I cannot speak"))
	})
	if _, err := c.Synthesize(context.Background(), "hello", article.DefaultVoice, 0); !errors.Is(err, ErrNoAudio) {
		t.Errorf("err = %v, want ErrNoAudio", err)
	}
}

func TestSpeechPrompt(t *testing.T) {
	tests := []struct {
		pitch float64
		want  string
	}{
		{-1, "noticeably lower"},
		{-0.3, "slightly lower"},
		{0, "natural pitch"},
		{0.05, "natural pitch"},
		{0.2, "slightly higher"},
		{1, "noticeably higher"},
	}
	for _, tt := range tests {
		if got := speechPrompt("x", tt.pitch); !strings.Contains(got, tt.want) {
			t.Errorf("speechPrompt(%v) = %q, want %q", tt.pitch, got, tt.want)
		}
	}
}

func TestExtract(t *testing.T) {
	var got generateRequest
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&got)
		writeJSON(w, http.StatusOK, textResponse("HEADLINE: Rivers Rise\nCONTENT: Heavy rain.\n\nMore rain."))
	})

	res, err := c.Extract(context.Background(), "https://bbc.com/news/world-12345")
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}
	if res.Title != "Rivers Rise" || res.Content != "Heavy rain.\n\nMore rain." {
		t.Errorf("result = %+v", res)
	}
	if len(got.Tools) != 1 || got.Tools[0].GoogleSearch == nil {
		t.Error("extraction should enable search grounding")
	}
}

func TestExtractEmpty(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, textResponse("HEADLINE: Only\nCONTENT:   "))
	})
	if _, err := c.Extract(context.Background(), "https://example.com/a"); !errors.Is(err, ErrEmptyResponse) {
		t.Errorf("err = %v, want ErrEmptyResponse", err)
	}
}

func TestParseExtraction(t *testing.T) {
	tests := []struct {
		name, in     string
		title, body string
	}{
		{"template", "HEADLINE: A\nCONTENT: B", "A", "B"},
		{"bold markers", "**HEADLINE:** A\n**CONTENT:** B", "A", "B"},
		{"preamble", "Here it is.\nHEADLINE: A\nCONTENT: B\nC", "A", "B\nC"},
		{"no content marker", "HEADLINE: A\nbody text", "A", "body text"},
		{"plain text", "just text", "", "just text"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := ParseExtraction(tt.in)
			if res.Title != tt.title || res.Content != tt.body {
				t.Errorf("ParseExtraction(%q) = %+v, want %q / %q", tt.in, res, tt.title, tt.body)
			}
		})
	}
}
