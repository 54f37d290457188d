package main

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/log"
	gap "github.com/muesli/go-app-paths"
	"github.com/spf13/viper"

	"github.com/briefcast/briefcast/internal/article"
	"github.com/briefcast/briefcast/internal/audio"
	"github.com/briefcast/briefcast/internal/briefing"
	"github.com/briefcast/briefcast/internal/cache"
	"github.com/briefcast/briefcast/internal/extract"
	"github.com/briefcast/briefcast/internal/genai"
	"github.com/briefcast/briefcast/internal/pipeline"
	"github.com/briefcast/briefcast/internal/retry"
	"github.com/briefcast/briefcast/internal/settings"
	"github.com/briefcast/briefcast/internal/store"
)

// app is everything a command needs, opened from the configuration.
type app struct {
	store    *store.Store
	storeDir string
	settings *settings.Settings
	desk     *briefing.Desk
	cache    *cache.Tiered
}

// offline stands in for the Gemini client when no API key is configured,
// so browsing and playback of stored audio keep working.
type offline struct{}

func (offline) Summarize(context.Context, string, string) (string, error) {
	return "", genai.ErrNoAPIKey
}

func (offline) Synthesize(context.Context, string, article.Voice, float64) (string, error) {
	return "", genai.ErrNoAPIKey
}

func (offline) Extract(context.Context, string) (extract.Result, error) {
	return extract.Result{}, genai.ErrNoAPIKey
}

type speechClient interface {
	pipeline.Summarizer
	pipeline.Synthesizer
	extract.Extractor
}

func openApp(ctx context.Context) (*app, error) {
	defaults, err := generationDefaults()
	if err != nil {
		return nil, err
	}
	backend, err := audio.ParseBackend(viper.GetString("playback.audio"))
	if err != nil {
		return nil, err
	}

	dir := expandPath(viper.GetString("store.dir"))
	if dir == "" {
		if dir, err = store.DefaultDir(); err != nil {
			return nil, err
		}
	}
	st, err := store.Open(ctx, store.Config{
		Driver: viper.GetString("store.driver"),
		Dir:    dir,
		DSN:    viper.GetString("store.dsn"),
	})
	if err != nil {
		return nil, fmt.Errorf("unable to open store: %w", err)
	}

	a := &app{store: st, storeDir: dir}
	if err := a.open(ctx, defaults, backend); err != nil {
		_ = a.Close()
		return nil, err
	}
	return a, nil
}

func (a *app) open(ctx context.Context, defaults pipeline.Options, backend audio.Backend) error {
	prefs, err := settings.Load(ctx, a.store, defaults, nil)
	if err != nil {
		return fmt.Errorf("unable to load settings: %w", err)
	}
	prefs.SetVolume(viper.GetFloat64("playback.volume"))
	a.settings = prefs

	client, err := a.speechClient()
	if err != nil {
		return err
	}

	extractors := extract.Chain{client}
	if viper.GetBool("extract.html_fallback") {
		extractors = append(extractors, extract.NewHTML(nil))
	}

	col, err := a.store.Load(ctx)
	if err != nil {
		return fmt.Errorf("unable to load articles: %w", err)
	}
	a.desk = briefing.NewDesk(col, briefing.Config{
		Summarizer:    client,
		Synthesizer:   client,
		Extractor:     extractors,
		Store:         a.store,
		Factory:       audio.NewFactory(backend),
		Preferences:   prefs,
		FrameInterval: viper.GetDuration("playback.frame_interval"),
	})
	return nil
}

func (a *app) speechClient() (speechClient, error) {
	cfg := genai.Config{
		APIKey:            viper.GetString("genai.api_key"),
		BaseURL:           viper.GetString("genai.base_url"),
		SummaryModel:      viper.GetString("genai.summary_model"),
		TTSModel:          viper.GetString("genai.tts_model"),
		ExtractModel:      viper.GetString("genai.extract_model"),
		Timeout:           viper.GetDuration("genai.timeout"),
		RequestsPerMinute: viper.GetInt("genai.requests_per_minute"),
		Retry: retry.Config{
			MaxRetries: viper.GetInt("genai.max_retries"),
			BaseDelay:  retry.DefaultConfig().BaseDelay,
		},
	}
	if strings.TrimSpace(cfg.APIKey) == "" {
		log.Warn("No Gemini API key configured; generation is disabled")
		return offline{}, nil
	}

	tiered, err := audioCache(viper.GetInt64("genai.cache_mb"))
	if err != nil {
		return nil, err
	}
	a.cache = tiered

	client, err := genai.New(cfg, genai.WithCache(tiered), genai.WithLogger(log.With("component", "genai")))
	if err != nil {
		return nil, err
	}
	return client, nil
}

// audioCache keeps synthesized audio in memory and on disk. The disk tier
// holds four times the memory budget.
func audioCache(mb int64) (*cache.Tiered, error) {
	if mb <= 0 {
		mb = 64
	}
	t := &cache.Tiered{Memory: cache.NewMemory(mb << 20)}

	dir, err := gap.NewScope(gap.User, "briefcast").CacheDir()
	if err != nil {
		log.Warn("No cache directory, keeping audio in memory only", "error", err)
		return t, nil
	}
	disk, err := cache.NewDisk(filepath.Join(dir, "audio"), 4*mb<<20)
	if err != nil {
		return nil, err
	}
	t.Disk = disk
	return t, nil
}

// generationDefaults reads voice, language and pitch.
func generationDefaults() (pipeline.Options, error) {
	voice, err := article.ParseVoice(viper.GetString("voice"))
	if err != nil {
		return pipeline.Options{}, err
	}
	lang, err := article.ResolveLanguage(viper.GetString("language"))
	if err != nil {
		return pipeline.Options{}, err
	}
	return pipeline.Options{
		Voice:    voice,
		Language: lang,
		Pitch:    article.ClampPitch(viper.GetFloat64("pitch")),
	}, nil
}

// reload reads the collection again; the TUI calls it when the store
// changes underneath.
func (a *app) reload(ctx context.Context) (article.Collection, error) {
	return a.store.Load(ctx)
}

// find resolves an article by id or unique id prefix.
func (a *app) find(ref string) (article.Article, error) {
	if got, ok := a.desk.Find(ref); ok {
		return got, nil
	}
	var matches []article.Article
	for _, list := range []article.List{article.ListQueue, article.ListLibrary} {
		for _, it := range a.desk.Items(list) {
			if strings.HasPrefix(it.ID, ref) && !containsID(matches, it.ID) {
				matches = append(matches, it)
			}
		}
	}
	switch len(matches) {
	case 0:
		return article.Article{}, fmt.Errorf("%w: %s", briefing.ErrArticleNotFound, ref)
	case 1:
		return matches[0], nil
	default:
		return article.Article{}, fmt.Errorf("%q matches %d articles", ref, len(matches))
	}
}

func containsID(items []article.Article, id string) bool {
	for _, it := range items {
		if it.ID == id {
			return true
		}
	}
	return false
}

func (a *app) Close() error {
	var errs []error
	if a.desk != nil {
		errs = append(errs, a.desk.Close())
	}
	if a.cache != nil {
		errs = append(errs, a.cache.Close())
	}
	errs = append(errs, a.store.Close())
	return errors.Join(errs...)
}
