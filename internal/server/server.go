// Package server exposes the desk over a small JSON API and runs scheduled
// pre-generation of queued audio.
package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gin-gonic/gin"
	"github.com/robfig/cron/v3"

	"github.com/briefcast/briefcast/internal/briefing"
	"github.com/briefcast/briefcast/internal/pipeline"
	"github.com/briefcast/briefcast/internal/store"
)

// DefaultAddr is the listen address when none is configured.
const DefaultAddr = "127.0.0.1:8765"

// Settings is the part of the preferences the API reads and changes.
type Settings interface {
	Theme() store.Theme
	SetTheme(ctx context.Context, t store.Theme) error
	Defaults() pipeline.Options
}

// Config configures the API server.
type Config struct {
	Addr string
	// Schedule is a cron expression for pre-generating queued audio. Empty
	// disables the schedule.
	Schedule    string
	Concurrency int
}

// Server is the briefcast HTTP API.
type Server struct {
	desk     *briefing.Desk
	settings Settings
	cfg      Config
	router   *gin.Engine
	logger   *log.Logger
}

// New creates a server and registers its routes.
func New(desk *briefing.Desk, settings Settings, cfg Config) *Server {
	if cfg.Addr == "" {
		cfg.Addr = DefaultAddr
	}
	if cfg.Concurrency < 1 {
		cfg.Concurrency = 2
	}

	router := gin.New()
	s := &Server{
		desk:     desk,
		settings: settings,
		cfg:      cfg,
		router:   router,
		logger:   log.With("component", "server"),
	}
	router.Use(gin.Recovery(), s.logRequests)

	api := router.Group("/api")
	{
		api.GET("/articles", s.handleList)
		api.POST("/articles", s.handleCreate)
		api.GET("/articles/:id", s.handleGet)
		api.DELETE("/articles/:id", s.handleDelete)
		api.POST("/articles/:id/generate", s.handleGenerate)
		api.POST("/articles/:id/restore", s.handleRestore)
		api.PUT("/articles/:id/feedback", s.handleFeedback)
		api.POST("/articles/:id/save", s.handleSave)
		api.GET("/articles/:id/audio.wav", s.handleAudio)
		api.POST("/generate", s.handleGenerateAll)
		api.GET("/theme", s.handleGetTheme)
		api.PUT("/theme", s.handlePutTheme)
	}

	return s
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler { return s.router }

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	var c *cron.Cron
	if s.cfg.Schedule != "" {
		c = cron.New()
		if _, err := c.AddFunc(s.cfg.Schedule, func() { s.pregenerate(ctx) }); err != nil {
			return err
		}
		c.Start()
		s.logger.Info("Scheduled pre-generation", "schedule", s.cfg.Schedule, "concurrency", s.cfg.Concurrency)
	}

	srv := &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("Listening", "addr", s.cfg.Addr)
		errCh <- srv.ListenAndServe()
	}()

	var err error
	select {
	case err = <-errCh:
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		err = srv.Shutdown(shutdownCtx)
	}
	if c != nil {
		<-c.Stop().Done()
	}
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

func (s *Server) pregenerate(ctx context.Context) {
	if _, err := s.desk.GenerateAll(ctx, s.settings.Defaults(), s.cfg.Concurrency); err != nil {
		s.logger.Error("Scheduled pre-generation stopped", "error", err)
	}
}

func (s *Server) logRequests(c *gin.Context) {
	start := time.Now()
	c.Next()
	s.logger.Debug("Request",
		"method", c.Request.Method,
		"path", c.FullPath(),
		"status", c.Writer.Status(),
		"took", time.Since(start))
}
