package web

import (
	"context"
	"embed"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/hpungsan/recall/internal/config"
	"github.com/hpungsan/recall/internal/logger"
	"github.com/hpungsan/recall/internal/ops"
)

//go:embed templates/*.html
var templateFS embed.FS

//go:embed static/*
var staticFS embed.FS

// RequestTimeout bounds each request, image decodes included.
const RequestTimeout = 30 * time.Second

// Server wraps the dashboard's HTTP server.
type Server struct {
	http *http.Server
	log  logger.Logger
}

// NewServer builds the dashboard for one capture database.
func NewServer(v *ops.Viewer, cfg *config.Config, log logger.Logger, version string) (*Server, error) {
	h, err := NewHandlers(v, log, version)
	if err != nil {
		return nil, err
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Web.Bind, cfg.Web.Port),
		Handler:           NewRouter(h, log),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      RequestTimeout + 5*time.Second,
		IdleTimeout:       60 * time.Second,
		MaxHeaderBytes:    1 << 20,
	}
	return &Server{http: srv, log: log}, nil
}

// NewHandlers parses the embedded templates and returns the route handlers.
func NewHandlers(v *ops.Viewer, log logger.Logger, version string) (*Handlers, error) {
	templateSub, err := fs.Sub(templateFS, "templates")
	if err != nil {
		return nil, fmt.Errorf("template sub-FS: %w", err)
	}
	renderer, err := NewRenderer(templateSub, version, v.Codec.ZoneName(), log)
	if err != nil {
		return nil, err
	}
	return &Handlers{
		viewer:   v,
		renderer: renderer,
		decoder:  imageDecoder,
		log:      log,
		started:  time.Now(),
		version:  version,
	}, nil
}

// NewRouter wires middleware and routes.
func NewRouter(h *Handlers, log logger.Logger) http.Handler {
	staticSub, _ := fs.Sub(staticFS, "static")

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(RequestTimeout))
	r.Use(accessLog(log))
	r.Use(securityHeaders)

	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/browse", http.StatusFound)
	})
	r.Get("/captures", h.HandleCaptures)
	r.Get("/browse", h.HandleBrowse)
	r.Get("/status", h.HandleStatus)
	r.Get("/report", h.HandleReport)
	r.Get("/images/{token}", h.HandleImage)
	r.Get("/healthz", h.HandleHealthz)
	r.Handle("/static/*", http.StripPrefix("/static/", http.FileServerFS(staticSub)))

	return r
}

// Handler returns the server's root handler.
func (s *Server) Handler() http.Handler { return s.http.Handler }

// Addr returns the listen address.
func (s *Server) Addr() string { return s.http.Addr }

// Start runs the HTTP server (blocks until error or shutdown).
func (s *Server) Start() error {
	s.log.Infof("Recall viewer running at http://%s", s.http.Addr)
	if strings.HasPrefix(s.http.Addr, "0.0.0.0:") || strings.HasPrefix(s.http.Addr, "[::]:") || strings.HasPrefix(s.http.Addr, ":") {
		s.log.Warn("server is binding to all interfaces and may be accessible from the network")
	}
	err := s.http.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Stop gracefully shuts down the server with the provided context deadline.
func (s *Server) Stop(ctx context.Context) error {
	s.log.Info("shutting down")
	return s.http.Shutdown(ctx)
}

// Run starts the server and shuts it down on SIGINT/SIGTERM.
func Run(s *Server) error {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	errCh := make(chan error, 1)
	go func() {
		errCh <- s.Start()
	}()

	select {
	case err := <-errCh:
		return err
	case <-sigCh:
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.Stop(ctx)
	}
}
