// Package main provides the entry point for the briefcast CLI application.
package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/charmbracelet/glamour/styles"
	"github.com/charmbracelet/log"
	gap "github.com/muesli/go-app-paths"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/term"

	"github.com/briefcast/briefcast/internal/article"
	"github.com/briefcast/briefcast/internal/genai"
	"github.com/briefcast/briefcast/internal/server"
	"github.com/briefcast/briefcast/ui"
)

var (
	// Version as provided by goreleaser.
	Version = ""
	// CommitSHA as provided by goreleaser.
	CommitSHA = ""

	configFile string
	style      string
	width      uint
	mouse      bool

	rootCmd = &cobra.Command{
		Use:   "briefcast",
		Short: "Listen to your news queue on the way to work",
		Long: paragraph(
			fmt.Sprintf("\nQueue articles, get %s, and listen on your commute.", keyword("spoken summaries")),
		),
		SilenceErrors:    false,
		SilenceUsage:     true,
		TraverseChildren: true,
		Args:             cobra.NoArgs,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return validateOptions(cmd)
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runTUI(cmd)
		},
	}
)

// validateStyle checks if the style is a default style, if not, checks that
// the custom style exists.
func validateStyle(style string) error {
	if style != "auto" && styles.DefaultStyles[style] == nil {
		style = expandPath(style)
		if _, err := os.Stat(style); errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("specified style does not exist: %s", style)
		} else if err != nil {
			return fmt.Errorf("unable to stat file: %w", err)
		}
	}
	return nil
}

func validateOptions(cmd *cobra.Command) error {
	if cmd.Flags().Changed("config") {
		viper.SetConfigFile(expandPath(configFile))
		if err := viper.ReadInConfig(); err != nil {
			return fmt.Errorf("unable to read config file: %w", err)
		}
	}

	// grab config values from Viper
	width = viper.GetUint("width")
	mouse = viper.GetBool("mouse")

	if lvl := viper.GetString("log.level"); lvl != "" {
		level, err := log.ParseLevel(lvl)
		if err != nil {
			return fmt.Errorf("invalid log level: %w", err)
		}
		log.SetLevel(level)
	}

	if p := viper.GetFloat64("pitch"); p < article.MinPitch || p > article.MaxPitch {
		return fmt.Errorf("pitch must be between %.0f and %.0f, got %.2f", article.MinPitch, article.MaxPitch, p)
	}
	if v := viper.GetFloat64("playback.volume"); v < 0 || v > 1 {
		return fmt.Errorf("playback volume must be between 0 and 1, got %.2f", v)
	}

	// validate the glamour style
	style = viper.GetString("style")
	if err := validateStyle(style); err != nil {
		return err
	}

	isTerminal := term.IsTerminal(int(os.Stdout.Fd()))
	// We want to use a special no-TTY style, when stdout is not a terminal
	// and there was no specific style passed by arg
	if !isTerminal && !cmd.Flags().Changed("style") {
		style = "notty"
	}

	// Detect terminal width
	if !cmd.Flags().Changed("width") { //nolint:nestif
		if isTerminal && width == 0 {
			w, _, err := term.GetSize(int(os.Stdout.Fd()))
			if err == nil {
				width = uint(w) //nolint:gosec
			}

			if width > 120 {
				width = 120
			}
		}
		if width == 0 {
			width = 80
		}
	}
	return nil
}

func runTUI(cmd *cobra.Command) error {
	// Read environment to get debugging stuff
	cfg, err := env.ParseAs[ui.Config]()
	if err != nil {
		return fmt.Errorf("error parsing config: %v", err)
	}

	// use style set in env, or the flag if unset
	if err := validateStyle(cfg.GlamourStyle); err != nil || cfg.GlamourStyle == "" {
		cfg.GlamourStyle = style
	}
	if cmd.Flags().Changed("width") || width < cfg.GlamourMaxWidth {
		cfg.GlamourMaxWidth = width
	}
	cfg.EnableMouse = cfg.EnableMouse || mouse
	if _, ok := os.LookupEnv("BRIEFCAST_CONCURRENCY"); !ok {
		cfg.Concurrency = max(1, viper.GetInt("serve.concurrency"))
	}

	a, err := openApp(cmd.Context())
	if err != nil {
		return err
	}
	defer a.Close() //nolint:errcheck

	if viper.GetString("store.driver") != "postgres" {
		cfg.WatchDir = a.storeDir
	}

	// Run Bubble Tea program
	if _, err := ui.NewProgram(cfg, a.desk, a.settings, a.reload).Run(); err != nil {
		return fmt.Errorf("unable to run tui program: %w", err)
	}

	return nil
}

func main() {
	closer, err := setupLog()
	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
	if err := rootCmd.Execute(); err != nil {
		_ = closer()
		os.Exit(1)
	}
	_ = closer()
}

func init() {
	tryLoadConfigFromDefaultPlaces()
	if len(CommitSHA) >= 7 {
		vt := rootCmd.VersionTemplate()
		rootCmd.SetVersionTemplate(vt[:len(vt)-1] + " (" + CommitSHA[0:7] + ")\n")
	}
	if Version == "" {
		Version = "unknown (built from source)"
	}
	rootCmd.Version = Version
	rootCmd.InitDefaultCompletionCmd()

	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", fmt.Sprintf("config file (default %s)", viper.GetViper().ConfigFileUsed()))
	rootCmd.PersistentFlags().String("log-level", "", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("store", "", "store backend (file, sqlite3, postgres)")
	rootCmd.PersistentFlags().String("dsn", "", "SQL data source for the sqlite3 and postgres stores")
	rootCmd.Flags().StringVarP(&style, "style", "s", styles.AutoStyle, "style name or JSON path")
	rootCmd.Flags().UintVarP(&width, "width", "w", 0, "word-wrap at width (set to 0 to disable)")
	rootCmd.Flags().BoolVarP(&mouse, "mouse", "m", false, "enable mouse wheel")
	_ = rootCmd.Flags().MarkHidden("mouse")

	// Config bindings
	_ = viper.BindPFlag("style", rootCmd.Flags().Lookup("style"))
	_ = viper.BindPFlag("width", rootCmd.Flags().Lookup("width"))
	_ = viper.BindPFlag("mouse", rootCmd.Flags().Lookup("mouse"))
	_ = viper.BindPFlag("log.level", rootCmd.PersistentFlags().Lookup("log-level"))
	_ = viper.BindPFlag("store.driver", rootCmd.PersistentFlags().Lookup("store"))
	_ = viper.BindPFlag("store.dsn", rootCmd.PersistentFlags().Lookup("dsn"))
	_ = viper.BindEnv("genai.api_key", "BRIEFCAST_GENAI_API_KEY", "GEMINI_API_KEY")

	viper.SetDefault("style", styles.AutoStyle)
	viper.SetDefault("width", 0)
	viper.SetDefault("log.level", "info")

	viper.SetDefault("genai.base_url", genai.DefaultBaseURL)
	viper.SetDefault("genai.summary_model", genai.DefaultSummaryModel)
	viper.SetDefault("genai.tts_model", genai.DefaultTTSModel)
	viper.SetDefault("genai.extract_model", genai.DefaultExtractModel)
	viper.SetDefault("genai.timeout", 60*time.Second)
	viper.SetDefault("genai.requests_per_minute", 30)
	viper.SetDefault("genai.max_retries", 3)
	viper.SetDefault("genai.cache_mb", 64)

	viper.SetDefault("voice", string(article.DefaultVoice))
	viper.SetDefault("language", article.DefaultLanguage)
	viper.SetDefault("pitch", 0.0)

	viper.SetDefault("playback.volume", 1.0)
	viper.SetDefault("playback.frame_interval", 50*time.Millisecond)
	viper.SetDefault("playback.audio", "auto")

	viper.SetDefault("store.driver", "file")
	viper.SetDefault("extract.html_fallback", true)

	viper.SetDefault("serve.addr", server.DefaultAddr)
	viper.SetDefault("serve.schedule", "")
	viper.SetDefault("serve.concurrency", 2)

	rootCmd.AddCommand(
		configCmd, manCmd,
		addCmd, addURLCmd, importCmd,
		listCmd, showCmd,
		generateCmd, restoreCmd, exportCmd,
		themeCmd, serveCmd,
	)
}

func tryLoadConfigFromDefaultPlaces() {
	scope := gap.NewScope(gap.User, "briefcast")
	dirs, err := scope.ConfigDirs()
	if err != nil {
		fmt.Println("Could not load find configuration directory.")
		os.Exit(1)
	}

	if c := os.Getenv("XDG_CONFIG_HOME"); c != "" {
		dirs = append([]string{filepath.Join(c, "briefcast")}, dirs...)
	}

	if c := os.Getenv("BRIEFCAST_CONFIG_HOME"); c != "" {
		dirs = append([]string{c}, dirs...)
	}

	for _, v := range dirs {
		viper.AddConfigPath(v)
	}

	viper.SetConfigName("briefcast")
	viper.SetConfigType("yaml")
	viper.SetEnvPrefix("briefcast")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			log.Warn("Could not parse configuration file", "err", err)
		}
	}

	if used := viper.ConfigFileUsed(); used != "" {
		log.Debug("Using configuration file", "path", viper.ConfigFileUsed())
		return
	}

	if viper.ConfigFileUsed() == "" {
		configFile = filepath.Join(dirs[0], "briefcast.yml")
	}
	if err := ensureConfigFile(); err != nil {
		log.Error("Could not create default configuration", "error", err)
	}
}
