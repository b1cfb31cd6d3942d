package httpapi

import (
	"net/http"

	"github.com/searchemu/searchemu/internal/metadata"
	"github.com/searchemu/searchemu/internal/schema"
)

func (s *Server) dataSourceCRUD() resourceCRUD[schema.DataSource] {
	return resourceCRUD[schema.DataSource]{
		kind:     metadata.KindDataSource,
		store:    s.store,
		devMode:  s.cfg.Server.DevMode,
		validate: func(d *schema.DataSource) error { return d.Validate() },
		nameOf:   func(d *schema.DataSource) string { return d.Name },
	}
}

func (s *Server) handleListDataSources(w http.ResponseWriter, r *http.Request) { s.dataSourceCRUD().list(w, r) }
func (s *Server) handleGetDataSource(w http.ResponseWriter, r *http.Request)   { s.dataSourceCRUD().get(w, r) }
func (s *Server) handleCreateDataSource(w http.ResponseWriter, r *http.Request) {
	s.dataSourceCRUD().upsert(w, r)
}
func (s *Server) handleUpsertDataSource(w http.ResponseWriter, r *http.Request) {
	s.dataSourceCRUD().upsert(w, r)
}
func (s *Server) handleDeleteDataSource(w http.ResponseWriter, r *http.Request) {
	s.dataSourceCRUD().delete(w, r)
}
