package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"

	"github.com/charmbracelet/x/editor"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const defaultConfig = `# style name or JSON path for rendered summaries (default "auto")
style: "auto"
# mouse support
mouse: false
# word-wrap at width
width: 80

# Gemini access. The key may also come from GEMINI_API_KEY.
genai:
  # api_key: ""
  summary_model: "gemini-2.5-flash"
  tts_model: "gemini-2.5-flash-preview-tts"
  extract_model: "gemini-2.5-flash"
  timeout: "60s"
  requests_per_minute: 30
  max_retries: 3
  # memory budget for synthesized audio; disk keeps four times as much
  cache_mb: 64

# defaults for new summaries
voice: "Kore"
language: "English"
# -1 (lower) to 1 (higher), 0 is the voice's natural register
pitch: 0

playback:
  volume: 1.0
  frame_interval: "50ms"
  # auto, oto or mock
  audio: "auto"

store:
  # file, sqlite3 or postgres
  driver: "file"
  # dir: "~/.local/share/briefcast"
  # dsn: "postgres://localhost/briefcast?sslmode=disable"

extract:
  # read the page directly when Gemini cannot
  html_fallback: true

serve:
  addr: "127.0.0.1:8765"
  # cron expression for generating queued audio ahead of time
  # schedule: "30 6 * * 1-5"
  concurrency: 2

log:
  level: "info"
`

var configCmd = &cobra.Command{
	Use:     "config",
	Hidden:  false,
	Short:   "Edit the briefcast config file",
	Long:    paragraph(fmt.Sprintf("\n%s the briefcast config file. We’ll use EDITOR to determine which editor to use. If the config file doesn't exist, it will be created.", keyword("Edit"))),
	Example: paragraph("briefcast config\nbriefcast config --config path/to/config.yml"),
	Args:    cobra.NoArgs,
	RunE: func(*cobra.Command, []string) error {
		if err := ensureConfigFile(); err != nil {
			return err
		}

		c, err := editor.Cmd("Briefcast", configFile)
		if err != nil {
			return fmt.Errorf("unable to set config file: %w", err)
		}
		c.Stdin = os.Stdin
		c.Stdout = os.Stdout
		c.Stderr = os.Stderr
		if err := c.Run(); err != nil {
			return fmt.Errorf("unable to run command: %w", err)
		}

		fmt.Println("Wrote config file to:", configFile)
		return nil
	},
}

func ensureConfigFile() error {
	if configFile == "" {
		configFile = viper.GetViper().ConfigFileUsed()
		if err := os.MkdirAll(filepath.Dir(configFile), 0o755); err != nil { //nolint:gosec
			return fmt.Errorf("could not write configuration file: %w", err)
		}
	}

	if ext := path.Ext(configFile); ext != ".yaml" && ext != ".yml" {
		return fmt.Errorf("'%s' is not a supported configuration type: use '%s' or '%s'", ext, ".yaml", ".yml")
	}

	if _, err := os.Stat(configFile); errors.Is(err, fs.ErrNotExist) {
		// File doesn't exist yet, create all necessary directories and
		// write the default config file
		if err := os.MkdirAll(filepath.Dir(configFile), 0o700); err != nil {
			return fmt.Errorf("unable create directory: %w", err)
		}

		f, err := os.Create(configFile)
		if err != nil {
			return fmt.Errorf("unable to create config file: %w", err)
		}
		defer func() { _ = f.Close() }()

		if _, err := f.WriteString(defaultConfig); err != nil {
			return fmt.Errorf("unable to write config file: %w", err)
		}
	} else if err != nil { // some other error occurred
		return fmt.Errorf("unable to stat config file: %w", err)
	}
	return nil
}
