package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/briefcast/briefcast/internal/article"
)

var (
	addTitle  string
	addSource string
	addURL    string

	addCmd = &cobra.Command{
		Use:   "add [FILE|-]",
		Short: "Queue an article from a file or stdin",
		Long: paragraph(fmt.Sprintf("\n%s an article to the end of the queue. Markdown files are "+
			"reduced to plain text and their first heading becomes the title.", keyword("Add"))),
		Example: paragraph("briefcast add story.md\npbpaste | briefcast add --title \"Rates hold\""),
		Args:    cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			arg := "-"
			if len(args) == 1 {
				arg = args[0]
			}
			src, err := readSource(arg)
			if err != nil {
				return err
			}

			title, body := addTitle, string(src)
			if isMarkdown(arg) {
				var heading string
				heading, body = article.FromMarkdown(src)
				if title == "" {
					title = heading
				}
			}

			a, err := openApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close() //nolint:errcheck

			added, err := a.desk.Add(cmd.Context(), title, body, addSource, addURL)
			if err != nil {
				return err
			}
			fmt.Printf("Queued %s %s\n", keyword(added.Title), subtle(shortID(added.ID)))
			return nil
		},
	}

	addURLCmd = &cobra.Command{
		Use:     "add-url URL",
		Short:   "Fetch an article from the web and queue it",
		Example: paragraph("briefcast add-url https://www.reuters.com/markets/..."),
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close() //nolint:errcheck

			added, warn, err := a.desk.AddURL(cmd.Context(), args[0])
			if warn != nil {
				fmt.Fprintln(os.Stderr, warning("Warning: "+warn.Error()))
			}
			if err != nil {
				return err
			}
			fmt.Printf("Queued %s %s\n", keyword(added.Title), subtle(shortID(added.ID)))
			return nil
		},
	}

	importCmd = &cobra.Command{
		Use:   "import FILE...",
		Short: "Queue articles from YAML or markdown files",
		Long: paragraph(fmt.Sprintf("\n%s articles in bulk. A YAML file holds a list of articles with "+
			"title, body, source and url; a markdown file is one article.", keyword("Import"))),
		Example: paragraph("briefcast import morning.yaml notes/*.md"),
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var items []importItem
			for _, path := range args {
				got, err := readImport(path)
				if err != nil {
					return err
				}
				items = append(items, got...)
			}

			a, err := openApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close() //nolint:errcheck

			var errs []error
			queued := 0
			for i, it := range items {
				if _, err := a.desk.Add(cmd.Context(), it.Title, it.Body, it.Source, it.URL); err != nil {
					errs = append(errs, fmt.Errorf("item %d (%s): %w", i+1, it.Title, err))
					continue
				}
				queued++
			}
			fmt.Printf("Queued %s of %d articles\n", keyword(fmt.Sprint(queued)), len(items))
			return errors.Join(errs...)
		},
	}
)

// importItem is one article of a YAML import file.
type importItem struct {
	Title  string `yaml:"title"`
	Body   string `yaml:"body"`
	Source string `yaml:"source"`
	URL    string `yaml:"url"`
}

type importFile struct {
	Articles []importItem `yaml:"articles"`
}

func readImport(path string) ([]importItem, error) {
	src, err := readSource(path)
	if err != nil {
		return nil, err
	}
	if isMarkdown(path) {
		title, body := article.FromMarkdown(src)
		return []importItem{{Title: title, Body: body}}, nil
	}

	// Either a bare list or a document with an articles key.
	var list []importItem
	if err := yaml.Unmarshal(src, &list); err == nil {
		return list, nil
	}
	var doc importFile
	if err := yaml.Unmarshal(src, &doc); err != nil {
		return nil, fmt.Errorf("unable to parse %s: %w", path, err)
	}
	return doc.Articles, nil
}

func readSource(arg string) ([]byte, error) {
	if arg == "-" {
		b, err := io.ReadAll(os.Stdin)
		if err != nil {
			return nil, fmt.Errorf("unable to read from stdin: %w", err)
		}
		return b, nil
	}
	b, err := os.ReadFile(expandPath(arg))
	if err != nil {
		return nil, fmt.Errorf("unable to open file: %w", err)
	}
	return b, nil
}

func isMarkdown(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".md", ".markdown", ".mdown", ".mkd":
		return true
	}
	return false
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func init() {
	addCmd.Flags().StringVarP(&addTitle, "title", "t", "", "article title (default: first words of the body)")
	addCmd.Flags().StringVar(&addSource, "source", "", "publication name")
	addCmd.Flags().StringVar(&addURL, "url", "", "original address")
}
