// Package httpapi implements the REST surface: a chi router
// exposing the control-plane CRUD collections, the document/query
// operations, and the indexer run/status/reset verbs over the other
// components, grounded on the sagasu example's chi server shape
// (nico-hyperjump-sagasu/internal/server/server.go).
package httpapi

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/searchemu/searchemu/internal/auth"
	"github.com/searchemu/searchemu/internal/config"
	"github.com/searchemu/searchemu/internal/docops"
	"github.com/searchemu/searchemu/internal/indexerrun"
	"github.com/searchemu/searchemu/internal/metadata"
	"github.com/searchemu/searchemu/internal/scheduler"
	"github.com/searchemu/searchemu/internal/telemetry"
	"github.com/searchemu/searchemu/internal/textindex"
	"github.com/searchemu/searchemu/internal/vectorstore"
)

// apiVersion is the wire version this emulator models. requireAPIVersion
// only checks that some api-version is present; it does not compare it
// with this value.
const apiVersion = "2024-07-01"

// Server holds every dependency a handler needs and exposes the
// assembled chi router.
type Server struct {
	cfg     *config.Config
	store   *metadata.Store
	texts   *textindex.Manager
	vectors *vectorstore.Manager
	runner  *indexerrun.Runner
	sched   *scheduler.Scheduler
	chain   *auth.Chain
	stats   *telemetry.SQLiteMetricsStore
	metrics *telemetry.QueryMetrics
	logger  *slog.Logger
	started time.Time

	httpServer *http.Server
}

// New assembles a Server from its already-constructed dependencies. Chain
// and stats may be nil (auth.Chain nil disables authentication entirely;
// stats nil means query telemetry is kept in memory only, never flushed to
// disk).
func New(
	cfg *config.Config,
	store *metadata.Store,
	texts *textindex.Manager,
	vectors *vectorstore.Manager,
	runner *indexerrun.Runner,
	sched *scheduler.Scheduler,
	chain *auth.Chain,
	stats *telemetry.SQLiteMetricsStore,
	logger *slog.Logger,
) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	var metricsStore telemetry.QueryMetricsStore
	if stats != nil {
		metricsStore = stats
	}
	return &Server{
		cfg: cfg, store: store, texts: texts, vectors: vectors,
		runner: runner, sched: sched, chain: chain, stats: stats,
		metrics: telemetry.NewQueryMetrics(metricsStore), logger: logger,
	}
}

// Router builds the full chi router.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(slogLogger(s.logger))
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(rewriteEntityKeySpelling)
	r.Use(requireAPIVersion(s.cfg.Server.DevMode))

	r.Get("/health", s.handleHealth)
	r.Get("/servicestats", s.withAccess(auth.AccessReader, s.handleServiceStats))

	r.Route("/indexes", func(r chi.Router) {
		r.Get("/", s.withAccess(auth.AccessReader, s.handleListIndexes))
		r.Post("/", s.withAccess(auth.AccessContributor, s.handleCreateIndex))
		r.Route("/{name}", func(r chi.Router) {
			r.Get("/", s.withAccess(auth.AccessReader, s.handleGetIndex))
			r.Put("/", s.withAccess(auth.AccessContributor, s.handleUpsertIndex))
			r.Delete("/", s.withAccess(auth.AccessContributor, s.handleDeleteIndex))

			r.Post("/docs/index", s.withAccess(auth.AccessIndexDataContributor, s.handleDocIndex))
			r.Post("/docs/search", s.withAccess(auth.AccessIndexDataReader, s.handleDocSearch))
			r.Get("/docs/search", s.withAccess(auth.AccessIndexDataReader, s.handleDocSearch))
			r.Get("/docs/$count", s.withAccess(auth.AccessIndexDataReader, s.handleDocCount))
			r.Get("/docs/{key}", s.withAccess(auth.AccessIndexDataReader, s.handleDocGet))
			r.Post("/docs/suggest", s.withAccess(auth.AccessIndexDataReader, s.handleDocSuggest))
			r.Post("/docs/autocomplete", s.withAccess(auth.AccessIndexDataReader, s.handleDocAutocomplete))
		})
	})

	r.Route("/datasources", func(r chi.Router) {
		r.Get("/", s.withAccess(auth.AccessReader, s.handleListDataSources))
		r.Post("/", s.withAccess(auth.AccessContributor, s.handleCreateDataSource))
		r.Route("/{name}", func(r chi.Router) {
			r.Get("/", s.withAccess(auth.AccessReader, s.handleGetDataSource))
			r.Put("/", s.withAccess(auth.AccessContributor, s.handleUpsertDataSource))
			r.Delete("/", s.withAccess(auth.AccessContributor, s.handleDeleteDataSource))
		})
	})

	r.Route("/skillsets", func(r chi.Router) {
		r.Get("/", s.withAccess(auth.AccessReader, s.handleListSkillsets))
		r.Post("/", s.withAccess(auth.AccessContributor, s.handleCreateSkillset))
		r.Route("/{name}", func(r chi.Router) {
			r.Get("/", s.withAccess(auth.AccessReader, s.handleGetSkillset))
			r.Put("/", s.withAccess(auth.AccessContributor, s.handleUpsertSkillset))
			r.Delete("/", s.withAccess(auth.AccessContributor, s.handleDeleteSkillset))
		})
	})

	r.Route("/synonymmaps", func(r chi.Router) {
		r.Get("/", s.withAccess(auth.AccessReader, s.handleListSynonymMaps))
		r.Post("/", s.withAccess(auth.AccessContributor, s.handleCreateSynonymMap))
		r.Route("/{name}", func(r chi.Router) {
			r.Get("/", s.withAccess(auth.AccessReader, s.handleGetSynonymMap))
			r.Put("/", s.withAccess(auth.AccessContributor, s.handleUpsertSynonymMap))
			r.Delete("/", s.withAccess(auth.AccessContributor, s.handleDeleteSynonymMap))
		})
	})

	r.Route("/indexers", func(r chi.Router) {
		r.Get("/", s.withAccess(auth.AccessReader, s.handleListIndexers))
		r.Post("/", s.withAccess(auth.AccessContributor, s.handleCreateIndexer))
		r.Route("/{name}", func(r chi.Router) {
			r.Get("/", s.withAccess(auth.AccessReader, s.handleGetIndexer))
			r.Put("/", s.withAccess(auth.AccessContributor, s.handleUpsertIndexer))
			r.Delete("/", s.withAccess(auth.AccessContributor, s.handleDeleteIndexer))
			r.Post("/run", s.withAccess(auth.AccessContributor, s.handleIndexerRun))
			r.Get("/status", s.withAccess(auth.AccessReader, s.handleIndexerStatus))
			r.Post("/reset", s.withAccess(auth.AccessContributor, s.handleIndexerReset))
		})
	})

	return r
}

// withAccess wraps h with the auth chain's middleware for the given
// required access level, or runs h unguarded if no chain is configured
// (e.g. local testing without authentication wired up).
func (s *Server) withAccess(level auth.AccessLevel, h http.HandlerFunc) http.HandlerFunc {
	if s.chain == nil {
		return h
	}
	wrapped := s.chain.Middleware(level)(h)
	return func(w http.ResponseWriter, r *http.Request) { wrapped.ServeHTTP(w, r) }
}

// ListenAndServe starts the HTTP server and blocks until Shutdown is
// called or the listener fails.
func (s *Server) ListenAndServe() error {
	s.started = time.Now()
	addr := fmt.Sprintf("%s:%d", s.cfg.Server.Host, s.cfg.Server.Port)
	s.httpServer = &http.Server{Addr: addr, Handler: s.Router()}
	s.logger.Info("httpapi starting", slog.String("addr", addr))
	err := s.httpServer.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Shutdown gracefully stops the HTTP server and the background scheduler,
// flushing any pending query telemetry first.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.sched != nil {
		s.sched.Stop(10 * time.Second)
	}
	if s.metrics != nil {
		if err := s.metrics.Close(); err != nil {
			s.logger.Error("query metrics flush failed", slog.String("error", err.Error()))
		}
	}
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
