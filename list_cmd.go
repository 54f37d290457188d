package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"
	runewidth "github.com/mattn/go-runewidth"
	"github.com/muesli/reflow/truncate"
	"github.com/sahilm/fuzzy"
	"github.com/spf13/cobra"

	"github.com/briefcast/briefcast/internal/article"
	"github.com/briefcast/briefcast/internal/audio"
	"github.com/briefcast/briefcast/internal/briefing"
)

var (
	listLibrary bool
	listFilter  string

	listCmd = &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List the queue or the library",
		Example: paragraph("briefcast list\nbriefcast list --library --filter rates"),
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := openApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close() //nolint:errcheck

			list := article.ListQueue
			if listLibrary {
				list = article.ListLibrary
			}
			items := a.desk.Items(list)
			if listFilter != "" {
				items = fuzzyFilter(items, listFilter)
			}
			printList(os.Stdout, a.desk, items, int(width)) //nolint:gosec
			return nil
		},
	}

	showCmd = &cobra.Command{
		Use:   "show ID",
		Short: "Render an article with its summaries",
		Long:  paragraph(fmt.Sprintf("\n%s an article. ID may be any unique prefix of the article id.", keyword("Show"))),
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close() //nolint:errcheck

			got, err := a.find(args[0])
			if err != nil {
				return err
			}

			r, err := glamour.NewTermRenderer(
				glamour.WithColorProfile(lipgloss.ColorProfile()),
				glamour.WithStylePath(style),
				glamour.WithWordWrap(int(width)), //nolint:gosec
			)
			if err != nil {
				return fmt.Errorf("unable to create renderer: %w", err)
			}
			out, err := r.Render(articleMarkdown(got))
			if err != nil {
				return fmt.Errorf("unable to render markdown: %w", err)
			}
			_, err = fmt.Fprint(os.Stdout, out)
			return err
		},
	}
)

func fuzzyFilter(items []article.Article, q string) []article.Article {
	targets := make([]string, len(items))
	for i, it := range items {
		targets[i] = it.Title + " " + it.Source
	}
	var out []article.Article
	for _, m := range fuzzy.Find(q, targets) {
		out = append(out, items[m.Index])
	}
	return out
}

func printList(w io.Writer, desk *briefing.Desk, items []article.Article, width int) {
	if len(items) == 0 {
		fmt.Fprintln(w, subtle("Nothing here."))
		return
	}
	const idWidth = 8
	for _, it := range items {
		status := "idle"
		if snap, err := desk.Status(it.ID); err == nil {
			status = snap.Status.String()
		}
		if it.HasAudio() {
			status += fmt.Sprintf(" %.0fs", audio.PayloadDuration(it.Current.Audio))
		}
		mark := " "
		if desk.Saved(it) {
			mark = "★"
		}

		meta := status
		if it.Source != "" {
			meta += " · " + it.Source
		}
		if !it.AddedAt.IsZero() {
			meta += " · " + humanize.Time(it.AddedAt)
		}

		avail := max(10, width-idWidth-runewidth.StringWidth(meta)-6)
		title := truncate.StringWithTail(it.Title, uint(avail), "…") //nolint:gosec
		pad := strings.Repeat(" ", max(1, avail-runewidth.StringWidth(title)+1))
		fmt.Fprintf(w, "%s %s %s%s%s\n", subtle(shortID(it.ID)), mark, title, pad, subtle(meta))
	}
}

// articleMarkdown lays out an article for "show".
func articleMarkdown(a article.Article) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", a.Title)
	if a.Source != "" || a.URL != "" {
		fmt.Fprintf(&b, "*%s* %s\n\n", a.Source, a.URL)
	}
	if a.Current != nil {
		e := a.Current
		fmt.Fprintf(&b, "## Summary\n\n%s\n\n", e.Text)
		fmt.Fprintf(&b, "`%s` %s · %s · pitch %+.2f · %s\n\n", shortID(e.ID), e.Voice, e.Language, e.Pitch, humanize.Time(e.CreatedAt))
	}
	if len(a.History) > 0 {
		b.WriteString("## Previous summaries\n\n")
		for _, e := range a.History {
			fmt.Fprintf(&b, "- `%s` %s · %s · %s\n", shortID(e.ID), e.Voice, e.Language, humanize.Time(e.CreatedAt))
		}
		b.WriteString("\n")
	}
	fmt.Fprintf(&b, "## Article\n\n%s\n", a.Body)
	return b.String()
}

func init() {
	listCmd.Flags().BoolVarP(&listLibrary, "library", "l", false, "list the saved library instead of the queue")
	listCmd.Flags().StringVarP(&listFilter, "filter", "f", "", "fuzzy filter on title and source")
}
