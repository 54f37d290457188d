// Package genai talks to the Gemini generateContent API: spoken-style
// summaries, speech synthesis and search-grounded article extraction.
package genai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/time/rate"

	"github.com/briefcast/briefcast/internal/cache"
	"github.com/briefcast/briefcast/internal/retry"
)

const (
	DefaultBaseURL      = "https://generativelanguage.googleapis.com/v1beta"
	DefaultSummaryModel = "gemini-2.5-flash"
	DefaultTTSModel     = "gemini-2.5-flash-preview-tts"
	DefaultExtractModel = "gemini-2.5-flash"
)

var (
	// ErrNoAPIKey is returned by New without an API key.
	ErrNoAPIKey = errors.New("genai: api key is not set")

	// ErrNoAudio is returned when a synthesis response has no inline audio.
	ErrNoAudio = errors.New("genai: response contained no audio")

	// ErrEmptyResponse is returned when a text response is empty.
	ErrEmptyResponse = errors.New("genai: empty response")
)

// Config holds client configuration.
type Config struct {
	APIKey  string
	BaseURL string

	SummaryModel string
	TTSModel     string
	ExtractModel string

	// Timeout bounds one HTTP round trip (defaults to 60s).
	Timeout time.Duration

	// RequestsPerMinute limits calls across all models (defaults to 30).
	RequestsPerMinute int

	Retry retry.Config
}

// Client is a Gemini REST client. It is safe for concurrent use.
type Client struct {
	cfg     Config
	http    *http.Client
	limiter *rate.Limiter
	cache   cache.Cache
	logger  *log.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithCache caches synthesized PCM by text, voice and pitch.
func WithCache(cc cache.Cache) Option {
	return func(c *Client) { c.cache = cc }
}

// WithLogger sets the client's logger.
func WithLogger(l *log.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// New creates a client, filling defaults for unset fields.
func New(cfg Config, opts ...Option) (*Client, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, ErrNoAPIKey
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	cfg.BaseURL = strings.TrimSuffix(cfg.BaseURL, "/")
	if cfg.SummaryModel == "" {
		cfg.SummaryModel = DefaultSummaryModel
	}
	if cfg.TTSModel == "" {
		cfg.TTSModel = DefaultTTSModel
	}
	if cfg.ExtractModel == "" {
		cfg.ExtractModel = DefaultExtractModel
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 60 * time.Second
	}
	if cfg.RequestsPerMinute == 0 {
		cfg.RequestsPerMinute = 30
	}
	if cfg.Retry == (retry.Config{}) {
		cfg.Retry = retry.DefaultConfig()
	}

	c := &Client{
		cfg:     cfg,
		http:    &http.Client{Timeout: cfg.Timeout},
		limiter: rate.NewLimiter(rate.Every(time.Minute/time.Duration(cfg.RequestsPerMinute)), 1),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.logger == nil {
		c.logger = log.With("component", "genai")
	}
	return c, nil
}

// generate posts req to model, retrying rate-limit and server errors.
func (c *Client) generate(ctx context.Context, model string, req generateRequest) (*generateResponse, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("genai: failed to marshal request: %w", err)
	}
	endpoint := fmt.Sprintf("%s/models/%s:generateContent", c.cfg.BaseURL, model)

	var resp *generateResponse
	err = retry.WithBackoff(ctx, c.cfg.Retry, func(ctx context.Context) error {
		if err := c.limiter.Wait(ctx); err != nil {
			return retry.Permanent(fmt.Errorf("genai: rate limit wait cancelled: %w", err))
		}
		start := time.Now()
		r, err := c.post(ctx, endpoint, body)
		if err != nil {
			c.logger.Debug("Request failed", "model", model, "error", err)
			return err
		}
		c.logger.Debug("Request done", "model", model, "took", time.Since(start))
		resp = r
		return nil
	})
	if err != nil {
		return nil, err
	}
	return resp, nil
}

func (c *Client) post(ctx context.Context, endpoint string, body []byte) (*generateResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, retry.Permanent(fmt.Errorf("genai: failed to create request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-goog-api-key", c.cfg.APIKey)

	res, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("genai: request failed: %w", err)
	}
	defer res.Body.Close()

	data, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, fmt.Errorf("genai: failed to read response: %w", err)
	}

	var out generateResponse
	jsonErr := json.Unmarshal(data, &out)

	if res.StatusCode != http.StatusOK {
		msg := strings.TrimSpace(string(data))
		if jsonErr == nil && out.Error != nil {
			msg = out.Error.Message
		}
		return nil, fmt.Errorf("genai: %w", &retry.StatusError{StatusCode: res.StatusCode, Message: msg})
	}
	if jsonErr != nil {
		return nil, retry.Permanent(fmt.Errorf("genai: failed to parse response: %w", jsonErr))
	}
	if out.Error != nil {
		return nil, retry.Permanent(fmt.Errorf("genai: API error: %s - %s", out.Error.Status, out.Error.Message))
	}
	if out.PromptFeedback != nil && out.PromptFeedback.BlockReason != "" {
		return nil, retry.Permanent(fmt.Errorf("genai: prompt blocked: %s", out.PromptFeedback.BlockReason))
	}
	return &out, nil
}

func userText(s string) []content {
	return []content{{Role: "user", Parts: []part{{Text: s}}}}
}
