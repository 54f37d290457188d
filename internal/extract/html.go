package extract

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
)

const (
	userAgent = "briefcast/1.0"

	// Paragraphs shorter than this are usually captions, bylines or
	// navigation.
	minParagraph = 40
)

// contentSelectors are tried in order; the first with enough text wins.
var contentSelectors = []string{
	"article",
	"[itemprop=articleBody]",
	"main",
	"#content",
	".article-body",
	".story-body",
	"body",
}

// stripSelectors are removed before reading text.
var stripSelectors = "script, style, noscript, nav, header, footer, aside, form, figure, iframe"

// HTML reads an article directly from its page.
type HTML struct {
	client *http.Client
}

// NewHTML creates an extractor; a nil client gets a 20 second timeout.
func NewHTML(client *http.Client) *HTML {
	if client == nil {
		client = &http.Client{Timeout: 20 * time.Second}
	}
	return &HTML{client: client}
}

// Extract fetches url and pulls the headline and paragraph text.
func (h *HTML) Extract(ctx context.Context, url string) (Result, error) {
	doc, err := h.fetchDocument(ctx, url)
	if err != nil {
		return Result{}, err
	}
	return Parse(doc), nil
}

func (h *HTML) fetchDocument(ctx context.Context, url string) (*goquery.Document, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "text/html")

	resp, err := h.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request document: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("page returned %s", resp.Status)
	}

	doc, err := goquery.NewDocumentFromReader(io.LimitReader(resp.Body, 5<<20))
	if err != nil {
		return nil, fmt.Errorf("parse document: %w", err)
	}
	return doc, nil
}

// Parse extracts the headline and body from a parsed page.
func Parse(doc *goquery.Document) Result {
	doc.Find(stripSelectors).Remove()

	return Result{
		Title:   headline(doc),
		Content: body(doc),
	}
}

func headline(doc *goquery.Document) string {
	if v, ok := doc.Find(`meta[property="og:title"]`).Attr("content"); ok && strings.TrimSpace(v) != "" {
		return strings.TrimSpace(v)
	}
	if h := collapse(doc.Find("h1").First().Text()); h != "" {
		return h
	}
	return collapse(doc.Find("title").First().Text())
}

func body(doc *goquery.Document) string {
	for _, sel := range contentSelectors {
		root := doc.Find(sel).First()
		if root.Length() == 0 {
			continue
		}
		var paras []string
		root.Find("p").Each(func(_ int, p *goquery.Selection) {
			text := collapse(p.Text())
			if len(text) >= minParagraph {
				paras = append(paras, text)
			}
		})
		if len(paras) > 0 {
			return strings.Join(paras, "\n\n")
		}
	}
	return ""
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
