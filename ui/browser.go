// Package ui serves the read-only tracking browser.
package ui

import (
	"context"
	"embed"
	stderrors "errors"
	"fmt"
	"html/template"
	"net/http"
	"time"

	"mlgate/domain/core"
	"mlgate/domain/run"
	"mlgate/internal"
	"mlgate/internal/api"
	"mlgate/internal/config"
	"mlgate/ports"

	"github.com/gin-gonic/gin"
)

//go:embed templates/*.html
var templateFS embed.FS

// Server is the tracking browser. It never writes to the store.
type Server struct {
	router  *gin.Engine
	browser *api.Browser
	config  config.ServerConfig
	logger  *internal.Logger
}

type indexPage struct {
	Title       string
	Experiments []api.ExperimentSummary
	Runs        map[string][]run.Run
}

type runPage struct {
	Title  string
	Run    *api.RunDetail
	Report template.HTML
}

// NewServer builds the router over a tracking store
func NewServer(store ports.ReaderPort, artifacts ports.ArtifactRepository, cfg config.ServerConfig, logger *internal.Logger) (*Server, error) {
	if logger == nil {
		logger = internal.NewNopLogger()
	}
	if cfg.GinMode != "" {
		gin.SetMode(cfg.GinMode)
	}

	templates, err := template.New("").ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("failed to parse templates: %w", err)
	}

	s := &Server{
		router:  gin.New(),
		browser: api.NewBrowser(store, artifacts, logger),
		config:  cfg,
		logger:  logger,
	}
	s.router.Use(gin.Recovery())
	s.router.SetHTMLTemplate(templates)
	s.setupRoutes()
	return s, nil
}

func (s *Server) setupRoutes() {
	s.router.GET("/", s.handleIndex)
	s.router.GET("/runs/:id", s.handleRun)
	s.router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	apiHandler := gin.WrapH(api.NewRouter(s.browser, s.logger))
	s.router.Any("/api/*path", apiHandler)
}

// Handler exposes the router for tests and embedding
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) handleIndex(c *gin.Context) {
	ctx := c.Request.Context()
	exps, err := s.browser.Experiments(ctx)
	if err != nil {
		s.renderError(c, err)
		return
	}
	page := indexPage{Title: "Experiments", Experiments: exps, Runs: make(map[string][]run.Run, len(exps))}
	for _, e := range exps {
		runs, err := s.browser.Runs(ctx, e.ID)
		if err != nil {
			s.renderError(c, err)
			return
		}
		page.Runs[e.ID.String()] = runs
	}
	c.HTML(http.StatusOK, "index.html", page)
}

func (s *Server) handleRun(c *gin.Context) {
	id, err := core.ParseRunID(c.Param("id"))
	if err != nil {
		c.String(http.StatusBadRequest, "invalid run id: %v", err)
		return
	}
	ctx := c.Request.Context()
	detail, err := s.browser.Run(ctx, id)
	if err != nil {
		s.renderError(c, err)
		return
	}
	html, _, err := s.browser.ReportHTML(ctx, id)
	if err != nil {
		s.renderError(c, err)
		return
	}
	c.HTML(http.StatusOK, "run.html", runPage{
		Title:  detail.Info.RunName,
		Run:    detail,
		Report: template.HTML(html),
	})
}

func (s *Server) renderError(c *gin.Context, err error) {
	status := api.StatusFor(err)
	if status == http.StatusInternalServerError {
		s.logger.Error("[UI] %s %s: %v", c.Request.Method, c.Request.URL.Path, err)
	}
	c.String(status, "%s", err.Error())
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.config.Addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("[UI] tracking browser listening on %s", s.config.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if stderrors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}
