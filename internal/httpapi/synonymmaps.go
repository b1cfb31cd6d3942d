package httpapi

import (
	"net/http"

	"github.com/searchemu/searchemu/internal/metadata"
	"github.com/searchemu/searchemu/internal/schema"
)

func (s *Server) synonymMapCRUD() resourceCRUD[schema.SynonymMap] {
	return resourceCRUD[schema.SynonymMap]{
		kind:     metadata.KindSynonymMap,
		store:    s.store,
		devMode:  s.cfg.Server.DevMode,
		validate: func(sm *schema.SynonymMap) error { return sm.Validate() },
		nameOf:   func(sm *schema.SynonymMap) string { return sm.Name },
	}
}

func (s *Server) handleListSynonymMaps(w http.ResponseWriter, r *http.Request) {
	s.synonymMapCRUD().list(w, r)
}
func (s *Server) handleGetSynonymMap(w http.ResponseWriter, r *http.Request) {
	s.synonymMapCRUD().get(w, r)
}
func (s *Server) handleCreateSynonymMap(w http.ResponseWriter, r *http.Request) {
	s.synonymMapCRUD().upsert(w, r)
}
func (s *Server) handleUpsertSynonymMap(w http.ResponseWriter, r *http.Request) {
	s.synonymMapCRUD().upsert(w, r)
}
func (s *Server) handleDeleteSynonymMap(w http.ResponseWriter, r *http.Request) {
	s.synonymMapCRUD().delete(w, r)
}
