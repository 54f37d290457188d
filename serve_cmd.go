package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/charmbracelet/log"
	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/briefcast/briefcast/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the queue over HTTP",
	Long: paragraph(fmt.Sprintf("\n%s a JSON API for the queue and library on %s. With a schedule, "+
		"queued articles get their audio ahead of time.", keyword("Serve"), server.DefaultAddr)),
	Example: paragraph("briefcast serve --addr :8765 --schedule \"30 6 * * 1-5\""),
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		if log.GetLevel() > log.DebugLevel {
			gin.SetMode(gin.ReleaseMode)
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		a, err := openApp(ctx)
		if err != nil {
			return err
		}
		defer a.Close() //nolint:errcheck

		cfg := server.Config{
			Addr:        viper.GetString("serve.addr"),
			Schedule:    viper.GetString("serve.schedule"),
			Concurrency: viper.GetInt("serve.concurrency"),
		}
		fmt.Printf("Listening on %s\n", keyword(cfg.Addr))
		if cfg.Schedule != "" {
			fmt.Printf("Generating queued audio on %s\n", subtle(cfg.Schedule))
		}
		return server.New(a.desk, a.settings, cfg).Run(ctx)
	},
}

func init() {
	serveCmd.Flags().String("addr", "", "listen address")
	serveCmd.Flags().String("schedule", "", "cron expression for pre-generating queued audio")
	serveCmd.Flags().Int("concurrency", 0, "parallel generations per scheduled run")
	_ = viper.BindPFlag("serve.addr", serveCmd.Flags().Lookup("addr"))
	_ = viper.BindPFlag("serve.schedule", serveCmd.Flags().Lookup("schedule"))
	_ = viper.BindPFlag("serve.concurrency", serveCmd.Flags().Lookup("concurrency"))
}

