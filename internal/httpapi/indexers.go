package httpapi

import (
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/searchemu/searchemu/internal/metadata"
	"github.com/searchemu/searchemu/internal/schema"
	"github.com/searchemu/searchemu/internal/serr"
)

func (s *Server) indexerCRUD() resourceCRUD[schema.Indexer] {
	return resourceCRUD[schema.Indexer]{
		kind:     metadata.KindIndexer,
		store:    s.store,
		devMode:  s.cfg.Server.DevMode,
		validate: func(ix *schema.Indexer) error { return ix.Validate() },
		nameOf:   func(ix *schema.Indexer) string { return ix.Name },
	}
}

func (s *Server) handleListIndexers(w http.ResponseWriter, r *http.Request) {
	s.indexerCRUD().list(w, r)
}
func (s *Server) handleGetIndexer(w http.ResponseWriter, r *http.Request) {
	s.indexerCRUD().get(w, r)
}
func (s *Server) handleCreateIndexer(w http.ResponseWriter, r *http.Request) {
	s.indexerCRUD().upsert(w, r)
}
func (s *Server) handleUpsertIndexer(w http.ResponseWriter, r *http.Request) {
	s.indexerCRUD().upsert(w, r)
}
func (s *Server) handleDeleteIndexer(w http.ResponseWriter, r *http.Request) {
	s.indexerCRUD().delete(w, r)
}

// handleIndexerRun triggers an on-demand run and returns as soon as the
// run is admitted, mirroring the upstream service's asynchronous
// indexer-run semantics: the caller polls handleIndexerStatus for
// progress and the final result rather than blocking the request on
// the whole run. A run already in progress is reported as a conflict
// rather than queued.
func (s *Server) handleIndexerRun(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	if err := s.runner.RunAsync(s.logger, name); err != nil {
		writeError(w, runErrorToServiceError(name, err), s.cfg.Server.DevMode)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

func (s *Server) handleIndexerStatus(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	state, err := s.runner.Status(name)
	if err != nil {
		writeError(w, serr.Wrap(serr.ErrCodeInternal, err, "failed to read indexer status"), s.cfg.Server.DevMode)
		return
	}
	writeJSON(w, http.StatusOK, state)
}

func (s *Server) handleIndexerReset(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	if err := s.runner.Reset(name); err != nil {
		writeError(w, runErrorToServiceError(name, err), s.cfg.Server.DevMode)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// runErrorToServiceError classifies a plain error from indexerrun.Runner
// into the wire error taxonomy. Runner returns bare errors rather than
// *serr.ServiceError since it has no HTTP concerns of its own; this is
// the one place that bridges the two.
func runErrorToServiceError(indexerName string, err error) error {
	var svcErr *serr.ServiceError
	if errors.As(err, &svcErr) {
		return svcErr
	}
	msg := err.Error()
	switch {
	case strings.Contains(msg, "already running"), strings.Contains(msg, "currently running"), strings.Contains(msg, "cannot start from status"):
		return serr.Wrap(serr.ErrCodeRunInProgress, err, "indexer run already in progress").WithTarget(indexerName)
	case strings.Contains(msg, "not found"):
		return serr.Wrap(serr.ErrCodeResourceNotFound, err, "indexer or a resource it references was not found").WithTarget(indexerName)
	default:
		return serr.Wrap(serr.ErrCodeConnectorFailed, err, "indexer run failed").WithTarget(indexerName)
	}
}
