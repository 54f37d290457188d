// Package urlcheck decides whether a URL is worth sending for extraction.
package urlcheck

import (
	"errors"
	"net/url"
	"regexp"
	"strings"
)

var (
	// ErrInvalidURL is returned for unparsable URLs and non-http(s) schemes.
	ErrInvalidURL = errors.New("invalid url")

	// ErrUnsupportedDomain is reported as a warning for untrusted hosts
	// whose path does not look like an article.
	ErrUnsupportedDomain = errors.New("unsupported domain")
)

// Trusted lists news sources accepted without inspecting the path.
var Trusted = []string{
	"abc.net.au",
	"aljazeera.com",
	"apnews.com",
	"arstechnica.com",
	"bbc.co.uk",
	"bbc.com",
	"bloomberg.com",
	"cbc.ca",
	"cnbc.com",
	"cnn.com",
	"dw.com",
	"economist.com",
	"elpais.com",
	"france24.com",
	"ft.com",
	"lemonde.fr",
	"npr.org",
	"nytimes.com",
	"reuters.com",
	"spiegel.de",
	"techcrunch.com",
	"theatlantic.com",
	"theguardian.com",
	"theverge.com",
	"washingtonpost.com",
	"wired.com",
	"wsj.com",
}

// Result is an accepted URL. Warning is ErrUnsupportedDomain when the
// extraction may not find an article.
type Result struct {
	URL     *url.URL
	Host    string
	Trusted bool
	Warning error
}

var (
	articleSegment = regexp.MustCompile(`^(article|news|story|content|post)s?$`)
	dateSegment    = regexp.MustCompile(`^(19|20)\d{2}(-\d{1,2}(-\d{1,2})?)?$`)
	monthSegment   = regexp.MustCompile(`^\d{1,2}$`)
	digitRun       = regexp.MustCompile(`\d{6,}`)
)

// Check parses raw and classifies it.
func Check(raw string) (Result, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return Result{}, ErrInvalidURL
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return Result{}, ErrInvalidURL
	}
	host := strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
	if host == "" {
		return Result{}, ErrInvalidURL
	}

	res := Result{URL: u, Host: host, Trusted: IsTrusted(host)}
	if !res.Trusted && !ArticleLike(u.Path) {
		res.Warning = ErrUnsupportedDomain
	}
	return res, nil
}

// IsTrusted reports whether host or one of its parents is in Trusted.
func IsTrusted(host string) bool {
	host = strings.TrimPrefix(strings.ToLower(host), "www.")
	for _, t := range Trusted {
		if host == t || strings.HasSuffix(host, "."+t) {
			return true
		}
	}
	return false
}

// ArticleLike reports whether path resembles an article path.
func ArticleLike(path string) bool {
	var segs []string
	for _, s := range strings.Split(path, "/") {
		if s != "" {
			segs = append(segs, strings.ToLower(s))
		}
	}
	if len(segs) == 0 {
		return false
	}

	for i, s := range segs {
		if articleSegment.MatchString(s) {
			return true
		}
		if dateSegment.MatchString(s) {
			// a bare year needs a month after it
			if strings.Contains(s, "-") || (i+1 < len(segs) && monthSegment.MatchString(segs[i+1])) {
				return true
			}
		}
	}
	return opaqueSlug(segs[len(segs)-1])
}

func opaqueSlug(s string) bool {
	s = strings.TrimSuffix(strings.TrimSuffix(s, ".html"), ".htm")
	if len(s) >= 20 && strings.Count(s, "-") >= 2 {
		return true
	}
	return digitRun.MatchString(s)
}
