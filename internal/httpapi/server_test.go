package httpapi

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/searchemu/searchemu/internal/config"
	"github.com/searchemu/searchemu/internal/indexerrun"
	"github.com/searchemu/searchemu/internal/metadata"
	"github.com/searchemu/searchemu/internal/textindex"
	"github.com/searchemu/searchemu/internal/vectorstore"
)

// newTestServer assembles a Server with real (temp-directory-backed)
// dependencies but no auth chain, so every route is reachable
// unauthenticated — the auth-enforcement tests build their own Server
// with a chain wired in.
func newTestServer(t *testing.T) *Server {
	t.Helper()
	dir := t.TempDir()

	store, err := metadata.Open(filepath.Join(dir, "metadata.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	texts := textindex.NewManager(filepath.Join(dir, "indexes"))
	vectors := vectorstore.NewManager(filepath.Join(dir, "vectors"))
	runner := indexerrun.NewRunner(store, texts, vectors, dir)

	cfg := config.NewConfig()
	cfg.Server.DevMode = true

	return New(cfg, store, texts, vectors, runner, nil, nil, nil, nil)
}

func doJSON(t *testing.T, h http.Handler, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(b)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path+withAPIVersion(path), reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func withAPIVersion(path string) string {
	if strings.Contains(path, "?") {
		return "&api-version=2024-07-01"
	}
	return "?api-version=2024-07-01"
}

func TestHealthDoesNotRequireAPIVersion(t *testing.T) {
	s := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()
	s.Router().ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
}

func TestMissingAPIVersionIsRejected(t *testing.T) {
	s := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/indexes", nil)
	w := httptest.NewRecorder()
	s.Router().ServeHTTP(w, req)
	require.Equal(t, http.StatusBadRequest, w.Code)

	var wire struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	require.NoError(t, json.NewDecoder(w.Body).Decode(&wire))
	require.Equal(t, "InvalidArgument", wire.Error.Code)
}

func TestEntityKeySpellingIsRewritten(t *testing.T) {
	s := newTestServer(t)
	router := s.Router()

	created := doJSON(t, router, http.MethodPost, "/indexes", sampleIndexSchema("hotels"))
	require.Equal(t, http.StatusCreated, created.Code)

	w := doJSON(t, router, http.MethodGet, "/indexes('hotels')", nil)
	require.Equal(t, http.StatusOK, w.Code)
}

func sampleIndexSchema(name string) map[string]interface{} {
	return map[string]interface{}{
		"name": name,
		"fields": []map[string]interface{}{
			{"name": "id", "type": "Edm.String", "key": true, "retrievable": true},
			{"name": "name", "type": "Edm.String", "searchable": true, "filterable": true, "sortable": true, "retrievable": true},
			{"name": "rating", "type": "Edm.Double", "filterable": true, "sortable": true, "facetable": true, "retrievable": true},
		},
	}
}
