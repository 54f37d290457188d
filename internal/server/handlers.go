package server

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/briefcast/briefcast/internal/article"
	"github.com/briefcast/briefcast/internal/audio"
	"github.com/briefcast/briefcast/internal/briefing"
	"github.com/briefcast/briefcast/internal/extract"
	"github.com/briefcast/briefcast/internal/pipeline"
	"github.com/briefcast/briefcast/internal/store"
	"github.com/briefcast/briefcast/internal/urlcheck"
)

const maxBodySize = 1 << 20 // 1MB

type entryView struct {
	ID        string            `json:"id"`
	Text      string            `json:"text"`
	Voice     article.Voice     `json:"voice"`
	Language  string            `json:"language"`
	Pitch     float64           `json:"pitch"`
	CreatedAt time.Time         `json:"createdAt"`
	HasAudio  bool              `json:"hasAudio"`
	Duration  float64           `json:"duration,omitempty"`
	Feedback  *article.Feedback `json:"feedback,omitempty"`
}

type articleView struct {
	ID      string      `json:"id"`
	Title   string      `json:"title"`
	Source  string      `json:"source,omitempty"`
	URL     string      `json:"url,omitempty"`
	AddedAt time.Time   `json:"addedAt"`
	Saved   bool        `json:"saved"`
	Status  string      `json:"status"`
	Error   string      `json:"error,omitempty"`
	Current *entryView  `json:"current,omitempty"`
	History []entryView `json:"history,omitempty"`
}

func newEntryView(e article.Entry) entryView {
	v := entryView{
		ID:        e.ID,
		Text:      e.Text,
		Voice:     e.Voice,
		Language:  e.Language,
		Pitch:     e.Pitch,
		CreatedAt: e.CreatedAt,
		HasAudio:  e.HasAudio(),
		Feedback:  e.Feedback,
	}
	if e.HasAudio() {
		v.Duration = audio.PayloadDuration(e.Audio)
	}
	return v
}

func (s *Server) view(a article.Article, withHistory bool) articleView {
	v := articleView{
		ID:      a.ID,
		Title:   a.Title,
		Source:  a.Source,
		URL:     a.URL,
		AddedAt: a.AddedAt,
		Saved:   s.desk.Saved(a),
	}
	if snap, err := s.desk.Status(a.ID); err == nil {
		v.Status = snap.Status.String()
		if snap.Failure != nil {
			v.Error = snap.Failure.Error()
		}
	}
	if a.Current != nil {
		cur := newEntryView(*a.Current)
		v.Current = &cur
	}
	if withHistory {
		for _, e := range a.History {
			v.History = append(v.History, newEntryView(e))
		}
	}
	return v
}

// statusFor maps desk errors to HTTP status codes.
func statusFor(err error) int {
	var stageErr *pipeline.StageError
	switch {
	case errors.Is(err, briefing.ErrArticleNotFound), errors.Is(err, article.ErrEntryNotFound):
		return http.StatusNotFound
	case errors.Is(err, pipeline.ErrBusy), errors.Is(err, article.ErrNoSummary), errors.Is(err, pipeline.ErrNotFailed):
		return http.StatusConflict
	case errors.Is(err, urlcheck.ErrInvalidURL),
		errors.Is(err, briefing.ErrEmptyArticle),
		errors.Is(err, article.ErrInvalidFeedback),
		errors.Is(err, article.ErrUnknownVoice),
		errors.Is(err, article.ErrUnknownLanguage):
		return http.StatusBadRequest
	case errors.Is(err, extract.ErrFetch), errors.As(err, &stageErr):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func fail(c *gin.Context, err error) {
	c.JSON(statusFor(err), gin.H{
		"success": false,
		"error":   err.Error(),
	})
}

func badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, gin.H{
		"success": false,
		"error":   msg,
	})
}

func (s *Server) handleList(c *gin.Context) {
	list := article.List(c.DefaultQuery("view", string(article.ListQueue)))
	if list != article.ListQueue && list != article.ListLibrary {
		badRequest(c, "view must be queue or library")
		return
	}

	items := s.desk.Items(list)
	views := make([]articleView, len(items))
	for i, a := range items {
		views[i] = s.view(a, false)
	}
	c.JSON(http.StatusOK, gin.H{
		"success":  true,
		"view":     list,
		"articles": views,
		"count":    len(views),
	})
}

func (s *Server) handleGet(c *gin.Context) {
	a, ok := s.desk.Find(c.Param("id"))
	if !ok {
		fail(c, briefing.ErrArticleNotFound)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"article": s.view(a, true),
	})
}

type createRequest struct {
	Title  string `json:"title"`
	Body   string `json:"body"`
	Source string `json:"source"`
	URL    string `json:"url"`
}

func (s *Server) handleCreate(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBodySize)
	var req createRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body: "+err.Error())
		return
	}

	var (
		a       article.Article
		warning error
		err     error
	)
	if req.Body == "" && req.URL != "" {
		a, warning, err = s.desk.AddURL(c.Request.Context(), req.URL)
	} else {
		a, err = s.desk.Add(c.Request.Context(), req.Title, req.Body, req.Source, req.URL)
	}
	if err != nil {
		fail(c, err)
		return
	}

	resp := gin.H{
		"success": true,
		"article": s.view(a, false),
	}
	if warning != nil {
		resp["warning"] = warning.Error()
	}
	c.JSON(http.StatusCreated, resp)
}

func (s *Server) handleDelete(c *gin.Context) {
	if err := s.desk.Remove(c.Request.Context(), c.Param("id")); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

type generateRequest struct {
	Voice    string   `json:"voice"`
	Language string   `json:"language"`
	Pitch    *float64 `json:"pitch"`
	// Retry re-enters the failed stage instead of starting over.
	Retry bool `json:"retry"`
}

func (r generateRequest) options(defaults pipeline.Options) (pipeline.Options, error) {
	opts := defaults
	if r.Voice != "" {
		v, err := article.ParseVoice(r.Voice)
		if err != nil {
			return opts, err
		}
		opts.Voice = v
	}
	if r.Language != "" {
		lang, err := article.ResolveLanguage(r.Language)
		if err != nil {
			return opts, err
		}
		opts.Language = lang
	}
	if r.Pitch != nil {
		opts.Pitch = *r.Pitch
	}
	return opts, nil
}

func (s *Server) handleGenerate(c *gin.Context) {
	var req generateRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, "invalid request body: "+err.Error())
			return
		}
	}
	opts, err := req.options(s.settings.Defaults())
	if err != nil {
		fail(c, err)
		return
	}

	sess, err := s.desk.Session(c.Param("id"))
	if err != nil {
		fail(c, err)
		return
	}
	var a article.Article
	if req.Retry {
		a, err = sess.Retry(c.Request.Context(), opts)
	} else {
		a, err = sess.Generate(c.Request.Context(), opts)
	}
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"article": s.view(a, true),
	})
}

func (s *Server) handleGenerateAll(c *gin.Context) {
	res, err := s.desk.GenerateAll(c.Request.Context(), s.settings.Defaults(), s.cfg.Concurrency)
	if err != nil {
		fail(c, err)
		return
	}
	failed := make(map[string]string, len(res.Failed))
	for id, err := range res.Failed {
		failed[id] = err.Error()
	}
	c.JSON(http.StatusOK, gin.H{
		"success":   len(failed) == 0,
		"generated": res.Generated,
		"skipped":   res.Skipped,
		"failed":    failed,
	})
}

type restoreRequest struct {
	EntryID string `json:"entryId" binding:"required"`
}

func (s *Server) handleRestore(c *gin.Context) {
	var req restoreRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "entryId is required")
		return
	}
	sess, err := s.desk.Session(c.Param("id"))
	if err != nil {
		fail(c, err)
		return
	}
	a, err := sess.Restore(req.EntryID)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"article": s.view(a, true),
	})
}

func (s *Server) handleFeedback(c *gin.Context) {
	var fb article.Feedback
	if err := c.ShouldBindJSON(&fb); err != nil {
		badRequest(c, "invalid request body: "+err.Error())
		return
	}
	sess, err := s.desk.Session(c.Param("id"))
	if err != nil {
		fail(c, err)
		return
	}
	a, err := sess.SetFeedback(fb)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"article": s.view(a, false),
	})
}

func (s *Server) handleSave(c *gin.Context) {
	saved, err := s.desk.ToggleSaved(c.Request.Context(), c.Param("id"))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"saved":   saved,
	})
}

func (s *Server) handleAudio(c *gin.Context) {
	sess, err := s.desk.Session(c.Param("id"))
	if err != nil {
		fail(c, err)
		return
	}
	wav, err := sess.WAV()
	if errors.Is(err, article.ErrNoSummary) {
		c.JSON(http.StatusNotFound, gin.H{
			"success": false,
			"error":   "article has no audio",
		})
		return
	}
	if err != nil {
		fail(c, err)
		return
	}
	c.Header("Content-Disposition", `attachment; filename="`+sess.ID()+`.wav"`)
	c.Data(http.StatusOK, "audio/wav", wav)
}

func (s *Server) handleGetTheme(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"theme":   s.settings.Theme(),
	})
}

type themeRequest struct {
	Theme string `json:"theme" binding:"required"`
}

func (s *Server) handlePutTheme(c *gin.Context) {
	var req themeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "theme is required")
		return
	}
	t, err := store.ParseTheme(req.Theme)
	if err != nil {
		badRequest(c, err.Error())
		return
	}
	if err := s.settings.SetTheme(c.Request.Context(), t); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"theme":   t,
	})
}
