package httpapi

import (
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/searchemu/searchemu/internal/auth"
	"github.com/searchemu/searchemu/internal/config"
	"github.com/searchemu/searchemu/internal/indexerrun"
	"github.com/searchemu/searchemu/internal/metadata"
	"github.com/searchemu/searchemu/internal/textindex"
	"github.com/searchemu/searchemu/internal/vectorstore"
)

func newAuthedTestServer(t *testing.T) *Server {
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

	chain := auth.NewChain(true, &auth.ApiKeyHandler{
		AdminKeys: []string{"admin-key"},
		QueryKeys: []string{"query-key"},
	})

	return New(cfg, store, texts, vectors, runner, nil, chain, nil, nil)
}

// No credentials at all resolves to AccessNone, which never satisfies a
// required level above AccessNone itself — reported as Forbidden rather
// than Unauthorized, since no handler actually rejected a credential.
func TestListIndexesWithoutCredentialsIsForbidden(t *testing.T) {
	s := newAuthedTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/indexes?api-version=2024-07-01", nil)
	w := httptest.NewRecorder()
	s.Router().ServeHTTP(w, req)
	require.Equal(t, http.StatusForbidden, w.Code)
}

func TestListIndexesWithWrongKeyIsUnauthorized(t *testing.T) {
	s := newAuthedTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/indexes?api-version=2024-07-01", nil)
	req.Header.Set("api-key", "wrong-key")
	w := httptest.NewRecorder()
	s.Router().ServeHTTP(w, req)
	require.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestListIndexesWithQueryKeyIsForbidden(t *testing.T) {
	s := newAuthedTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/indexes?api-version=2024-07-01", nil)
	req.Header.Set("api-key", "query-key")
	w := httptest.NewRecorder()
	s.Router().ServeHTTP(w, req)
	require.Equal(t, http.StatusForbidden, w.Code)
}

func TestListIndexesWithAdminKeySucceeds(t *testing.T) {
	s := newAuthedTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/indexes?api-version=2024-07-01", nil)
	req.Header.Set("api-key", "admin-key")
	w := httptest.NewRecorder()
	s.Router().ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
}
