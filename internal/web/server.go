package web

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/hpungsan/leitner/internal/config"
	"github.com/hpungsan/leitner/internal/ops"
)

//go:embed templates/*.html
var templateFS embed.FS

//go:embed static/*
var staticFS embed.FS

// NewServer creates and configures the HTTP server for the study UI.
func NewServer(db *sql.DB, cfg *config.Config, logger *slog.Logger, version, bind string, port int) (*http.Server, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	logger = logger.With("component", "web")

	// Strip the "templates/" and "static/" prefixes
	templateSub, err := fs.Sub(templateFS, "templates")
	if err != nil {
		return nil, fmt.Errorf("template sub-FS: %w", err)
	}
	staticSub, err := fs.Sub(staticFS, "static")
	if err != nil {
		return nil, fmt.Errorf("static sub-FS: %w", err)
	}

	h := &Handlers{
		db:       db,
		cfg:      cfg,
		learner:  ops.NewLearner(db, cfg, logger),
		renderer: NewRenderer(templateSub, version, logger),
	}

	return &http.Server{
		Addr:              fmt.Sprintf("%s:%d", bind, port),
		Handler:           securityHeaders(routes(h, staticSub)),
		ReadHeaderTimeout: 10 * time.Second,
	}, nil
}

// routes registers the UI routes using Go 1.22+ pattern syntax.
func routes(h *Handlers, static fs.FS) *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /{$}", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/learn", http.StatusFound)
	})
	mux.HandleFunc("GET /learn", h.HandleIndex)
	mux.HandleFunc("POST /learn", h.HandleStart)
	mux.HandleFunc("GET /learn/{session}", h.HandleStudy)
	mux.HandleFunc("POST /learn/{session}/answer", h.HandleAnswer)
	mux.HandleFunc("POST /learn/{session}/next", h.HandleNext)
	mux.HandleFunc("POST /learn/{session}/back", h.HandleBack)
	mux.HandleFunc("POST /learn/{session}/stop", h.HandleStop)
	mux.HandleFunc("GET /cards", h.HandleCards)
	mux.HandleFunc("GET /cards/{id}", h.HandleCard)

	mux.Handle("GET /static/", http.StripPrefix("/static/", http.FileServerFS(static)))

	return mux
}

// securityHeaders adds security-related HTTP headers to all responses.
func securityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Security-Policy", "default-src 'self'; script-src 'self'; style-src 'self'")
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		next.ServeHTTP(w, r)
	})
}

// Run starts the HTTP server and handles graceful shutdown on SIGINT/SIGTERM.
func Run(srv *http.Server, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	fmt.Fprintf(os.Stderr, "Leitner UI running at http://%s\n", srv.Addr)

	if strings.Contains(srv.Addr, "0.0.0.0") || strings.Contains(srv.Addr, "::") {
		logger.Warn("server is binding to all interfaces and may be accessible from the network", "addr", srv.Addr)
	}

	select {
	case err := <-errCh:
		return err
	case <-sigCh:
		logger.Info("shutting down")
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(ctx)
	}
}
