package httpapi

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/blevesearch/bleve/v2"
	"github.com/go-chi/chi/v5"

	"github.com/searchemu/searchemu/internal/docops"
	"github.com/searchemu/searchemu/internal/indexerrun"
	"github.com/searchemu/searchemu/internal/metadata"
	"github.com/searchemu/searchemu/internal/queryengine"
	"github.com/searchemu/searchemu/internal/schema"
	"github.com/searchemu/searchemu/internal/serr"
	"github.com/searchemu/searchemu/internal/telemetry"
	"github.com/searchemu/searchemu/internal/textindex"
	"github.com/searchemu/searchemu/internal/vectorstore"
)

// searchQueryType classifies a search request for telemetry purposes: a
// request with both a text query and vector legs is hybrid, vector legs
// alone is a pure vector search, and anything else is a text search.
func searchQueryType(req queryengine.Request) telemetry.QueryType {
	hasText := req.Search != "" && req.Search != "*"
	hasVector := len(req.VectorQueries) > 0
	switch {
	case hasText && hasVector:
		return telemetry.QueryTypeHybrid
	case hasVector:
		return telemetry.QueryTypeVector
	default:
		return telemetry.QueryTypeText
	}
}

// indexCRUD is like the other resourceCRUD instantiations, except index
// creation and deletion also drive the text index and vector store
// lifecycle (component A/B/C): a new
// index's on-disk bleve mapping and vector fields are provisioned on
// create, and both are wiped on delete.
func (s *Server) indexCRUD() resourceCRUD[schema.Index] {
	return resourceCRUD[schema.Index]{
		kind:    metadata.KindIndex,
		store:   s.store,
		devMode: s.cfg.Server.DevMode,
		validate: func(idx *schema.Index) error {
			return idx.Validate(s.cfg.Limits.MaxFieldsPerIndex)
		},
		nameOf: func(idx *schema.Index) string { return idx.Name },
		onCreate: func(idx *schema.Index) error {
			if _, err := s.texts.Open(idx.Name, idx); err != nil {
				return serr.Wrap(serr.ErrCodeInternal, err, "failed to create text index")
			}
			vecStore, err := s.vectors.Open(idx.Name)
			if err != nil {
				_ = s.texts.Drop(idx.Name)
				return serr.Wrap(serr.ErrCodeInternal, err, "failed to create vector store")
			}
			indexerrun.EnsureVectorFields(vecStore, idx)
			return nil
		},
		onDeleted: func(name string) error {
			if err := s.texts.Drop(name); err != nil {
				return serr.Wrap(serr.ErrCodeInternal, err, "failed to drop text index")
			}
			if err := s.vectors.Drop(name); err != nil {
				return serr.Wrap(serr.ErrCodeInternal, err, "failed to drop vector store")
			}
			return nil
		},
	}
}

func (s *Server) handleListIndexes(w http.ResponseWriter, r *http.Request) { s.indexCRUD().list(w, r) }
func (s *Server) handleGetIndex(w http.ResponseWriter, r *http.Request)    { s.indexCRUD().get(w, r) }
func (s *Server) handleCreateIndex(w http.ResponseWriter, r *http.Request) {
	s.indexCRUD().upsert(w, r)
}

// handleUpsertIndex updates an existing index's metadata record. It does
// not retroactively rebuild the already-open bleve mapping or vector
// field set for a changed schema; indexes.go's onCreate hook only fires
// for a genuinely new name. Changing an existing index's field set
// requires dropping and recreating it, same as upstream's "most schema
// changes require a rebuild" rule.
func (s *Server) handleUpsertIndex(w http.ResponseWriter, r *http.Request) {
	s.indexCRUD().upsert(w, r)
}

func (s *Server) handleDeleteIndex(w http.ResponseWriter, r *http.Request) {
	s.indexCRUD().delete(w, r)
}

// openIndex loads name's schema from the metadata store and opens its
// text index and vector store handles, registering any vector fields the
// schema declares. Returns ErrCodeIndexNotFound if the index doesn't
// exist, so /docs/* handlers can just propagate the error.
func (s *Server) openIndex(name string) (*schema.Index, *textindex.Index, *vectorstore.Store, error) {
	raw, _, ok, err := s.store.Get(metadata.KindIndex, name)
	if err != nil {
		return nil, nil, nil, serr.Wrap(serr.ErrCodeInternal, err, "failed to load index schema")
	}
	if !ok {
		return nil, nil, nil, serr.New(serr.ErrCodeIndexNotFound, "index not found").WithTarget(name)
	}
	var idxSchema schema.Index
	if err := json.Unmarshal(raw, &idxSchema); err != nil {
		return nil, nil, nil, serr.Wrap(serr.ErrCodeInternal, err, "stored index schema is corrupt")
	}
	textIdx, err := s.texts.Open(name, &idxSchema)
	if err != nil {
		return nil, nil, nil, serr.Wrap(serr.ErrCodeInternal, err, "failed to open text index")
	}
	vecStore, err := s.vectors.Open(name)
	if err != nil {
		return nil, nil, nil, serr.Wrap(serr.ErrCodeInternal, err, "failed to open vector store")
	}
	indexerrun.EnsureVectorFields(vecStore, &idxSchema)
	return &idxSchema, textIdx, vecStore, nil
}

// wireDocBatch is the POST /docs/index request body: a batch of documents
// each carrying an "@search.action" verb.
type wireDocBatch struct {
	Value []map[string]interface{} `json:"value"`
}

func (s *Server) handleDocIndex(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	idxSchema, textIdx, vecStore, err := s.openIndex(name)
	if err != nil {
		writeError(w, err, s.cfg.Server.DevMode)
		return
	}

	var batch wireDocBatch
	if err := decodeJSON(r, &batch); err != nil {
		writeError(w, err, s.cfg.Server.DevMode)
		return
	}

	actions := make([]docops.DocAction, 0, len(batch.Value))
	for _, doc := range batch.Value {
		action := docops.ActionUpload
		if raw, ok := doc["@search.action"]; ok {
			if av, ok := raw.(string); ok && av != "" {
				action = docops.Action(av)
			}
			delete(doc, "@search.action")
		}
		actions = append(actions, docops.DocAction{Action: action, Document: doc})
	}

	engine := docops.New(idxSchema, textIdx, vecStore)
	resp, err := engine.Execute(actions)
	if err != nil {
		writeError(w, serr.Wrap(serr.ErrCodeInvalidInput, err, "failed to apply document batch"), s.cfg.Server.DevMode)
		return
	}
	if err := s.vectors.Save(name); err != nil {
		s.logger.Error("vector snapshot save failed", slog.String("index", name), slog.String("error", err.Error()))
	}
	writeJSON(w, resp.StatusCode, map[string]interface{}{"value": resp.Items})
}

func (s *Server) handleDocSearch(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	idxSchema, textIdx, vecStore, err := s.openIndex(name)
	if err != nil {
		writeError(w, err, s.cfg.Server.DevMode)
		return
	}

	var wire wireSearchRequest
	if r.Method == http.MethodGet {
		wire, err = parseSearchQueryString(r.URL.Query())
		if err != nil {
			writeError(w, err, s.cfg.Server.DevMode)
			return
		}
	} else {
		if err := decodeJSON(r, &wire); err != nil {
			writeError(w, err, s.cfg.Server.DevMode)
			return
		}
	}

	req, err := wire.toRequest(s.hybridDefaults())
	if err != nil {
		writeError(w, err, s.cfg.Server.DevMode)
		return
	}

	reader, err := textIdx.OpenReader()
	if err != nil {
		writeError(w, serr.Wrap(serr.ErrCodeInternal, err, "failed to open index reader"), s.cfg.Server.DevMode)
		return
	}
	engine := queryengine.New(reader, vecStore)
	start := time.Now()
	resp, err := engine.Execute(req)
	if err != nil {
		writeError(w, serr.Wrap(serr.ErrCodeInvalidFilter, err, "search request failed"), s.cfg.Server.DevMode)
		return
	}
	s.metrics.Record(telemetry.QueryEvent{
		Query:       req.Search,
		QueryType:   searchQueryType(req),
		ResultCount: len(resp.Hits),
		Latency:     time.Since(start),
	})

	keyField, _ := idxSchema.KeyField()
	out := make([]map[string]interface{}, 0, len(resp.Hits))
	for _, hit := range resp.Hits {
		doc := make(map[string]interface{}, len(hit.Fields)+2)
		for k, v := range hit.Fields {
			doc[k] = v
		}
		if keyField != nil {
			doc[keyField.Name] = hit.Key
		}
		doc["@search.score"] = hit.Score
		if hit.Highlights != nil {
			doc["@search.highlights"] = hit.Highlights
		}
		if hit.Debug != nil {
			doc["@search.debug"] = hit.Debug
		}
		out = append(out, doc)
	}
	body := map[string]interface{}{"value": out}
	if req.Count {
		body["@odata.count"] = resp.Count
	}
	if resp.Facets != nil {
		body["@search.facets"] = resp.Facets
	}
	writeJSON(w, http.StatusOK, body)
}

// hybridDefaults reads the server's configured fusion defaults so a
// search request that omits fusion/weight fields still gets a sensible
// hybrid ranking.
func (s *Server) hybridDefaults() hybridDefaults {
	h := s.cfg.Vector.Hybrid
	return hybridDefaults{
		fusion:       h.Fusion,
		textWeight:   h.TextWeight,
		vectorWeight: h.VectorWeight,
		rrfConstant:  h.RRFConstant,
	}
}

func (s *Server) handleDocCount(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	_, textIdx, _, err := s.openIndex(name)
	if err != nil {
		writeError(w, err, s.cfg.Server.DevMode)
		return
	}
	count, err := textIdx.DocCount()
	if err != nil {
		writeError(w, serr.Wrap(serr.ErrCodeInternal, err, "failed to count documents"), s.cfg.Server.DevMode)
		return
	}
	writeJSON(w, http.StatusOK, count)
}

func (s *Server) handleDocGet(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	key := chi.URLParam(r, "key")
	idxSchema, textIdx, _, err := s.openIndex(name)
	if err != nil {
		writeError(w, err, s.cfg.Server.DevMode)
		return
	}

	reader, err := textIdx.OpenReader()
	if err != nil {
		writeError(w, serr.Wrap(serr.ErrCodeInternal, err, "failed to open index reader"), s.cfg.Server.DevMode)
		return
	}

	doc, found, err := fetchDocumentByKey(reader, idxSchema, key)
	if err != nil {
		writeError(w, serr.Wrap(serr.ErrCodeInternal, err, "failed to fetch document"), s.cfg.Server.DevMode)
		return
	}
	if !found {
		writeError(w, serr.New(serr.ErrCodeDocumentNotFound, "document not found").WithTarget(key), s.cfg.Server.DevMode)
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

// fetchDocumentByKey reads one document's stored field values straight
// out of the text index by key, the lookup-by-key path named separately
// from search (GET /docs/{key}). Edm.ComplexType fields
// are stored JSON-encoded (docops.writeDocument) and decoded back here.
func fetchDocumentByKey(reader *textindex.Reader, idxSchema *schema.Index, key string) (map[string]interface{}, bool, error) {
	req := bleve.NewSearchRequest(bleve.NewDocIDQuery([]string{key}))
	req.Fields = []string{"*"}
	result, err := reader.Bleve().Search(req)
	if err != nil {
		return nil, false, err
	}
	if len(result.Hits) == 0 {
		return nil, false, nil
	}

	raw := result.Hits[0].Fields
	doc := make(map[string]interface{}, len(raw)+1)
	for _, f := range idxSchema.Fields {
		if !f.Retrievable {
			continue
		}
		v, ok := raw[f.Name]
		if !ok {
			continue
		}
		if f.Type == schema.EDMComplexType {
			if s, ok := v.(string); ok {
				var decoded interface{}
				if json.Unmarshal([]byte(s), &decoded) == nil {
					v = decoded
				}
			}
		}
		doc[f.Name] = v
	}
	if keyField, err := idxSchema.KeyField(); err == nil {
		doc[keyField.Name] = key
	}
	return doc, true, nil
}

func (s *Server) handleDocSuggest(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	idxSchema, textIdx, vecStore, err := s.openIndex(name)
	if err != nil {
		writeError(w, err, s.cfg.Server.DevMode)
		return
	}

	var body struct {
		Search        string `json:"search"`
		SuggesterName string `json:"suggesterName"`
		Top           int    `json:"top,omitempty"`
		Fuzzy         bool   `json:"fuzzy,omitempty"`
	}
	if err := decodeJSON(r, &body); err != nil {
		writeError(w, err, s.cfg.Server.DevMode)
		return
	}

	reader, err := textIdx.OpenReader()
	if err != nil {
		writeError(w, serr.Wrap(serr.ErrCodeInternal, err, "failed to open index reader"), s.cfg.Server.DevMode)
		return
	}
	engine := queryengine.New(reader, vecStore)
	suggestions, err := engine.Suggest(idxSchema, queryengine.SuggestRequest{
		Search:        body.Search,
		SuggesterName: body.SuggesterName,
		Top:           body.Top,
		Fuzzy:         body.Fuzzy,
	})
	if err != nil {
		writeError(w, serr.Wrap(serr.ErrCodeInvalidInput, err, "suggest request failed"), s.cfg.Server.DevMode)
		return
	}
	out := make([]map[string]interface{}, 0, len(suggestions))
	keyField, _ := idxSchema.KeyField()
	for _, sg := range suggestions {
		item := map[string]interface{}{"@search.text": sg.Text}
		if keyField != nil {
			item[keyField.Name] = sg.Key
		}
		out = append(out, item)
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"value": out})
}

func (s *Server) handleDocAutocomplete(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	idxSchema, textIdx, vecStore, err := s.openIndex(name)
	if err != nil {
		writeError(w, err, s.cfg.Server.DevMode)
		return
	}

	var body struct {
		Search        string `json:"search"`
		SuggesterName string `json:"suggesterName"`
		Top           int    `json:"top,omitempty"`
	}
	if err := decodeJSON(r, &body); err != nil {
		writeError(w, err, s.cfg.Server.DevMode)
		return
	}

	reader, err := textIdx.OpenReader()
	if err != nil {
		writeError(w, serr.Wrap(serr.ErrCodeInternal, err, "failed to open index reader"), s.cfg.Server.DevMode)
		return
	}
	engine := queryengine.New(reader, vecStore)
	completions, err := engine.Autocomplete(idxSchema, queryengine.AutocompleteRequest{
		Search:        body.Search,
		SuggesterName: body.SuggesterName,
		Top:           body.Top,
	})
	if err != nil {
		writeError(w, serr.Wrap(serr.ErrCodeInvalidInput, err, "autocomplete request failed"), s.cfg.Server.DevMode)
		return
	}
	out := make([]map[string]interface{}, 0, len(completions))
	for _, c := range completions {
		out = append(out, map[string]interface{}{"text": c.Text, "queryPlusText": c.QueryPlusText})
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"value": out})
}
