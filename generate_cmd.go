package main

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/briefcast/briefcast/internal/article"
	"github.com/briefcast/briefcast/internal/pipeline"
)

var (
	genVoice    string
	genLanguage string
	genPitch    float64
	genRetry    bool
	genAll      bool
	exportOut   string

	generateCmd = &cobra.Command{
		Use:   "generate [ID...]",
		Short: "Summarize articles and synthesize their audio",
		Long: paragraph(fmt.Sprintf("\n%s a spoken summary for each article. With --all every queued "+
			"article without audio is generated, a few at a time.", keyword("Generate"))),
		Example: paragraph("briefcast generate 3f2a --voice Puck --language es\nbriefcast generate --all"),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !genAll && len(args) == 0 {
				return errors.New("name at least one article or use --all")
			}
			opts, err := generateOptions(cmd)
			if err != nil {
				return err
			}

			a, err := openApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close() //nolint:errcheck

			if genAll {
				res, err := a.desk.GenerateAll(cmd.Context(), opts, viper.GetInt("serve.concurrency"))
				if err != nil {
					return err
				}
				fmt.Printf("Generated %s, skipped %d\n", keyword(fmt.Sprint(res.Generated)), res.Skipped)
				ids := make([]string, 0, len(res.Failed))
				for id := range res.Failed {
					ids = append(ids, id)
				}
				sort.Strings(ids)
				for _, id := range ids {
					fmt.Fprintf(os.Stderr, "%s %v\n", shortID(id), res.Failed[id])
				}
				if len(ids) > 0 {
					return fmt.Errorf("%d articles failed", len(ids))
				}
				return nil
			}

			var errs []error
			for _, ref := range args {
				got, err := a.find(ref)
				if err != nil {
					errs = append(errs, err)
					continue
				}
				s, err := a.desk.Session(got.ID)
				if err != nil {
					errs = append(errs, err)
					continue
				}
				var updated article.Article
				if genRetry {
					updated, err = s.Retry(cmd.Context(), opts)
				} else {
					updated, err = s.Generate(cmd.Context(), opts)
				}
				if err != nil {
					errs = append(errs, fmt.Errorf("%s: %w", shortID(got.ID), err))
					continue
				}
				fmt.Printf("%s %s\n", keyword("✓"), updated.Title)
			}
			return errors.Join(errs...)
		},
	}

	restoreCmd = &cobra.Command{
		Use:   "restore ID ENTRY",
		Short: "Make a previous summary current again",
		Long:  paragraph(fmt.Sprintf("\n%s a summary from the article's history. ENTRY may be an id prefix as printed by show.", keyword("Restore"))),
		Args:  cobra.ExactArgs(2),
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
			entryID, err := findEntry(got, args[1])
			if err != nil {
				return err
			}
			s, err := a.desk.Session(got.ID)
			if err != nil {
				return err
			}
			if _, err := s.Restore(entryID); err != nil {
				return err
			}
			fmt.Printf("Restored %s for %s\n", subtle(shortID(entryID)), got.Title)
			return nil
		},
	}

	exportCmd = &cobra.Command{
		Use:   "export ID",
		Short: "Write an article's summary audio as a WAV file",
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
			s, err := a.desk.Session(got.ID)
			if err != nil {
				return err
			}
			wav, err := s.WAV()
			if err != nil {
				return err
			}

			out := exportOut
			if out == "" {
				out = shortID(got.ID) + ".wav"
			}
			if out == "-" {
				_, err = os.Stdout.Write(wav)
				return err
			}
			if err := os.WriteFile(expandPath(out), wav, 0o644); err != nil { //nolint:gosec
				return fmt.Errorf("unable to write audio: %w", err)
			}
			fmt.Println("Wrote", out)
			return nil
		},
	}
)

// generateOptions reads --voice, --language and --pitch. Unset flags leave
// the configured defaults in place.
func generateOptions(cmd *cobra.Command) (pipeline.Options, error) {
	var opts pipeline.Options
	if genVoice != "" {
		v, err := article.ParseVoice(genVoice)
		if err != nil {
			return opts, err
		}
		opts.Voice = v
	}
	if genLanguage != "" {
		lang, err := article.ResolveLanguage(genLanguage)
		if err != nil {
			return opts, err
		}
		opts.Language = lang
	}
	opts.Pitch = viper.GetFloat64("pitch")
	if cmd.Flags().Changed("pitch") {
		if genPitch < article.MinPitch || genPitch > article.MaxPitch {
			return opts, fmt.Errorf("pitch must be between %.0f and %.0f", article.MinPitch, article.MaxPitch)
		}
		opts.Pitch = genPitch
	}
	return opts, nil
}

func findEntry(a article.Article, ref string) (string, error) {
	var matches []string
	for _, e := range a.History {
		if e.ID == ref {
			return e.ID, nil
		}
		if strings.HasPrefix(e.ID, ref) {
			matches = append(matches, e.ID)
		}
	}
	switch len(matches) {
	case 0:
		return "", fmt.Errorf("%w: %s", article.ErrEntryNotFound, ref)
	case 1:
		return matches[0], nil
	default:
		return "", fmt.Errorf("%q matches %d summaries", ref, len(matches))
	}
}

func init() {
	generateCmd.Flags().StringVar(&genVoice, "voice", "", "voice name (default from config)")
	generateCmd.Flags().StringVar(&genLanguage, "language", "", "summary language, name or tag (default from config)")
	generateCmd.Flags().Float64Var(&genPitch, "pitch", 0, "pitch offset from -1 to 1")
	generateCmd.Flags().BoolVarP(&genRetry, "retry", "r", false, "retry the failed stage instead of starting over")
	generateCmd.Flags().BoolVarP(&genAll, "all", "a", false, "generate every queued article without audio")

	exportCmd.Flags().StringVarP(&exportOut, "output", "o", "", "output file, - for stdout (default <id>.wav)")
}
