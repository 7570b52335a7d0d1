// Package server provides the HTTP API for tanya.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/warunglabs/tanya/internal/config"
	"github.com/warunglabs/tanya/internal/faqindex"
	"github.com/warunglabs/tanya/internal/jobs"
	"github.com/warunglabs/tanya/internal/keyword"
	"github.com/warunglabs/tanya/internal/reconcile"
)

// Server is the HTTP server for the tanya API.
type Server struct {
	manager    *faqindex.Manager
	reconciler *reconcile.Reconciler
	keywords   keyword.Index // optional lexical search
	runner     *jobs.Runner
	config     *config.Config
	logger     *zap.Logger
	server     *http.Server
}

// NewServer creates a server with the given dependencies. keywords may be
// nil, which disables the lexical search endpoint.
func NewServer(
	manager *faqindex.Manager,
	reconciler *reconcile.Reconciler,
	keywords keyword.Index,
	runner *jobs.Runner,
	cfg *config.Config,
	logger *zap.Logger,
) *Server {
	return &Server{
		manager:    manager,
		reconciler: reconciler,
		keywords:   keywords,
		runner:     runner,
		config:     cfg,
		logger:     logger,
	}
}

// Router builds the chi router with all API routes.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(middleware.Compress(5))

	r.Post("/api/v1/query", s.handleQuery)
	r.Post("/api/v1/faqs", s.handleCreateFAQ)
	r.Put("/api/v1/faqs/{id}", s.handleUpdateFAQ)
	r.Delete("/api/v1/faqs/{id}", s.handleDeleteFAQ)
	r.Get("/api/v1/faqs/{id}", s.handleGetFAQ)
	r.Get("/api/v1/faqs/{id}/similar", s.handleSimilarQuestions)
	r.Post("/api/v1/faqs/bulk", s.handleBulkIndex)
	r.Get("/api/v1/jobs/{id}", s.handleGetJob)
	r.Get("/api/v1/index/stats", s.handleStats)
	r.Get("/api/v1/index/list", s.handleList)
	r.Delete("/api/v1/index/reset", s.handleReset)
	r.Post("/api/v1/index/export", s.handleExport)
	r.Post("/api/v1/index/backup", s.handleBackup)
	r.Post("/api/v1/reconcile", s.handleReconcile)
	r.Get("/api/v1/reconcile/status", s.handleReconcileStatus)
	r.Get("/api/v1/search", s.handleKeywordSearch)
	r.Get("/health", s.handleHealth)
	r.Get("/status", s.handleStatus)

	return r
}

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Server.Host, s.config.Server.Port)
	s.server = &http.Server{
		Addr:    addr,
		Handler: s.Router(),
	}
	s.logger.Info("starting server", zap.String("addr", addr))
	return s.server.ListenAndServe()
}

// Stop gracefully shuts down the server.
func (s *Server) Stop(ctx context.Context) error {
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}
