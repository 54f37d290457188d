package main

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/briefcast/briefcast/internal/article"
)

func TestReadImport(t *testing.T) {
	dir := t.TempDir()
	files := map[string]string{
		"list.yaml": `
- title: Rates hold
  body: The central bank held rates.
  source: reuters.com
- title: Storm
  body: A storm hit the coast.
`,
		"doc.yml": `
articles:
  - title: One
    body: First.
    url: https://example.com/one
`,
		"story.md": "# Heading\n\nSome *emphasis* here.\n",
	}
	for name, content := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o600); err != nil {
			t.Fatal(err)
		}
	}

	tests := []struct {
		file   string
		titles []string
	}{
		{"list.yaml", []string{"Rates hold", "Storm"}},
		{"doc.yml", []string{"One"}},
		{"story.md", []string{"Heading"}},
	}
	for _, tc := range tests {
		t.Run(tc.file, func(t *testing.T) {
			items, err := readImport(filepath.Join(dir, tc.file))
			if err != nil {
				t.Fatal(err)
			}
			if len(items) != len(tc.titles) {
				t.Fatalf("got %d items, want %d", len(items), len(tc.titles))
			}
			for i, it := range items {
				if it.Title != tc.titles[i] {
					t.Errorf("item %d title = %q, want %q", i, it.Title, tc.titles[i])
				}
				if strings.TrimSpace(it.Body) == "" {
					t.Errorf("item %d has no body", i)
				}
			}
		})
	}

	if items, _ := readImport(filepath.Join(dir, "story.md")); strings.Contains(items[0].Body, "*") {
		t.Errorf("markdown body not reduced to text: %q", items[0].Body)
	}
	if _, err := readImport(filepath.Join(dir, "missing.yaml")); err == nil {
		t.Error("missing file did not fail")
	}
}

func TestFindEntry(t *testing.T) {
	a := article.New("Rates", "Body.", "", "")
	first := article.NewEntry("one", "", article.VoiceKore, "English", 0, time.Now())
	first.ID = "aaaa1111"
	second := article.NewEntry("two", "", article.VoiceKore, "English", 0, time.Now())
	second.ID = "aaaa2222"
	third := article.NewEntry("three", "", article.VoiceKore, "English", 0, time.Now())
	a = article.Commit(article.Commit(article.Commit(a, first), second), third)

	tests := []struct {
		ref     string
		want    string
		wantErr bool
	}{
		{"aaaa1111", "aaaa1111", false},
		{"aaaa2", "aaaa2222", false},
		{"aaaa", "", true},
		{"zz", "", true},
	}
	for _, tc := range tests {
		got, err := findEntry(a, tc.ref)
		if (err != nil) != tc.wantErr {
			t.Errorf("findEntry(%q) error = %v", tc.ref, err)
			continue
		}
		if got != tc.want {
			t.Errorf("findEntry(%q) = %q, want %q", tc.ref, got, tc.want)
		}
	}
	if _, err := findEntry(a, "zz"); !errors.Is(err, article.ErrEntryNotFound) {
		t.Errorf("unknown entry error = %v", err)
	}
}

func TestExpandPath(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skip("no home directory")
	}
	t.Setenv("BRIEFCAST_TEST_DIR", "/tmp/briefcast")

	tests := map[string]string{
		"":                          "",
		"~/data":                    filepath.Join(home, "data"),
		"$BRIEFCAST_TEST_DIR/store": "/tmp/briefcast/store",
		"/abs/./path":               "/abs/path",
	}
	for in, want := range tests {
		if got := expandPath(in); got != want {
			t.Errorf("expandPath(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestIsMarkdown(t *testing.T) {
	for name, want := range map[string]bool{
		"a.md": true, "b.MARKDOWN": true, "c.yaml": false, "-": false,
	} {
		if got := isMarkdown(name); got != want {
			t.Errorf("isMarkdown(%q) = %v", name, got)
		}
	}
}

func TestArticleMarkdown(t *testing.T) {
	a := article.New("Rates", "The bank held rates.", "reuters.com", "")
	a = article.Commit(a, article.NewEntry("Old.", "", article.VoicePuck, "English", 0, time.Now()))
	a = article.Commit(a, article.NewEntry("New.", "", article.VoiceKore, "Spanish", -0.5, time.Now()))

	md := articleMarkdown(a)
	for _, want := range []string{"# Rates", "## Summary", "New.", "Spanish", "-0.50", "## Previous summaries", "Puck", "## Article"} {
		if !strings.Contains(md, want) {
			t.Errorf("markdown lacks %q", want)
		}
	}
}
