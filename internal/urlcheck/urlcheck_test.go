package urlcheck

import (
	"errors"
	"testing"
)

func TestCheck(t *testing.T) {
	tests := []struct {
		name    string
		url     string
		err     error
		warning error
		trusted bool
	}{
		{"trusted news path", "https://bbc.com/news/world-12345", nil, nil, true},
		{"trusted subdomain", "https://edition.cnn.com/", nil, nil, true},
		{"www stripped", "https://www.reuters.com/", nil, nil, true},
		{"ftp rejected", "ftp://x.com", ErrInvalidURL, nil, false},
		{"no scheme", "example.com/news/a", ErrInvalidURL, nil, false},
		{"javascript", "javascript:alert(1)", ErrInvalidURL, nil, false},
		{"unparsable", "http://[::1", ErrInvalidURL, nil, false},
		{"untrusted article segment", "https://blog.example.org/posts/hello", nil, nil, false},
		{"untrusted date path", "https://example.org/2024/05/rain", nil, nil, false},
		{"untrusted dashed date", "https://example.org/2024-05-01/rain", nil, nil, false},
		{"untrusted long slug", "https://example.org/rivers-rise-across-the-valley", nil, nil, false},
		{"untrusted numeric id", "https://example.org/p/8812345", nil, nil, false},
		{"untrusted homepage", "https://example.org/", nil, ErrUnsupportedDomain, false},
		{"untrusted short page", "https://example.org/about", nil, ErrUnsupportedDomain, false},
		{"lookalike host", "https://notbbc.com/about", nil, ErrUnsupportedDomain, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := Check(tt.url)
			if !errors.Is(err, tt.err) {
				t.Fatalf("Check(%q) err = %v, want %v", tt.url, err, tt.err)
			}
			if err != nil {
				return
			}
			if !errors.Is(res.Warning, tt.warning) || (tt.warning == nil && res.Warning != nil) {
				t.Errorf("Check(%q) warning = %v, want %v", tt.url, res.Warning, tt.warning)
			}
			if res.Trusted != tt.trusted {
				t.Errorf("Check(%q) trusted = %v, want %v", tt.url, res.Trusted, tt.trusted)
			}
		})
	}
}

func TestArticleLike(t *testing.T) {
	tests := []struct {
		path string
		want bool
	}{
		{"/news/uk", true},
		{"/Stories/abc", true},
		{"/2024/05/x", true},
		{"/2024", false},
		{"/a/b/c", false},
		{"/short-slug-here", false},
		{"/this-is-a-much-longer-slug.html", true},
		{"", false},
	}

	for _, tt := range tests {
		if got := ArticleLike(tt.path); got != tt.want {
			t.Errorf("ArticleLike(%q) = %v, want %v", tt.path, got, tt.want)
		}
	}
}
