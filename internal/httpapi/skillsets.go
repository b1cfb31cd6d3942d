package httpapi

import (
	"net/http"

	"github.com/searchemu/searchemu/internal/metadata"
	"github.com/searchemu/searchemu/internal/schema"
)

func (s *Server) skillsetCRUD() resourceCRUD[schema.Skillset] {
	return resourceCRUD[schema.Skillset]{
		kind:     metadata.KindSkillset,
		store:    s.store,
		devMode:  s.cfg.Server.DevMode,
		validate: func(ss *schema.Skillset) error { return ss.Validate() },
		nameOf:   func(ss *schema.Skillset) string { return ss.Name },
	}
}

func (s *Server) handleListSkillsets(w http.ResponseWriter, r *http.Request) { s.skillsetCRUD().list(w, r) }
func (s *Server) handleGetSkillset(w http.ResponseWriter, r *http.Request)   { s.skillsetCRUD().get(w, r) }
func (s *Server) handleCreateSkillset(w http.ResponseWriter, r *http.Request) {
	s.skillsetCRUD().upsert(w, r)
}
func (s *Server) handleUpsertSkillset(w http.ResponseWriter, r *http.Request) {
	s.skillsetCRUD().upsert(w, r)
}
func (s *Server) handleDeleteSkillset(w http.ResponseWriter, r *http.Request) {
	s.skillsetCRUD().delete(w, r)
}
