// Package extract turns an article URL into a headline and body text.
package extract

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/log"
)

// ErrFetch is returned when no extractor produced usable content.
var ErrFetch = errors.New("could not extract article")

// Result is the extracted article.
type Result struct {
	Title   string
	Content string
}

// Empty reports whether the result carries no body text.
func (r Result) Empty() bool {
	return strings.TrimSpace(r.Content) == ""
}

// Extractor fetches and extracts one article.
type Extractor interface {
	Extract(ctx context.Context, url string) (Result, error)
}

// ExtractorFunc adapts a function to Extractor.
type ExtractorFunc func(ctx context.Context, url string) (Result, error)

// Extract calls f.
func (f ExtractorFunc) Extract(ctx context.Context, url string) (Result, error) {
	return f(ctx, url)
}

// Chain tries each extractor in order and returns the first non-empty
// result.
type Chain []Extractor

// Extract runs the chain. Every failure is wrapped in ErrFetch.
func (c Chain) Extract(ctx context.Context, url string) (Result, error) {
	var errs []error
	for i, ex := range c {
		res, err := ex.Extract(ctx, url)
		if err == nil && !res.Empty() {
			return res, nil
		}
		if err == nil {
			err = errors.New("empty content")
		}
		if ctx.Err() != nil {
			return Result{}, fmt.Errorf("%w: %w", ErrFetch, ctx.Err())
		}
		log.Debug("Extractor failed", "index", i, "url", url, "error", err)
		errs = append(errs, err)
	}
	if len(errs) == 0 {
		return Result{}, ErrFetch
	}
	return Result{}, fmt.Errorf("%w: %w", ErrFetch, errors.Join(errs...))
}
