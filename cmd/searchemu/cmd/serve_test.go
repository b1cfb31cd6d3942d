package cmd

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/searchemu/searchemu/internal/auth"
	"github.com/searchemu/searchemu/internal/config"
	"github.com/searchemu/searchemu/internal/preflight"
)

func newTestRequest(t *testing.T, apiKey string) *http.Request {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/indexes", nil)
	if apiKey != "" {
		req.Header.Set("api-key", apiKey)
	}
	return req
}

func TestBuildAuthChain_ApiKeyOnly(t *testing.T) {
	cfg := config.AuthConfig{
		AdminAPIKey:  "admin-secret",
		QueryAPIKey:  "query-secret",
		EnabledModes: []string{"api_key"},
	}

	chain := buildAuthChain(cfg)

	require.NotNil(t, chain)
	req := newTestRequest(t, "admin-secret")
	res, err := chain.Authenticate(req)
	require.NoError(t, err)
	assert.Equal(t, auth.AccessFullAccess, res.AccessLevel)
}

func TestBuildAuthChain_SimulatedGrantsFullAccess(t *testing.T) {
	cfg := config.AuthConfig{EnabledModes: []string{"simulated"}}

	chain := buildAuthChain(cfg)

	req := newTestRequest(t, "")
	res, err := chain.Authenticate(req)
	require.NoError(t, err)
	assert.Equal(t, auth.AccessFullAccess, res.AccessLevel)
}

func TestBuildAuthChain_NoModesDeniesEverything(t *testing.T) {
	cfg := config.AuthConfig{}

	chain := buildAuthChain(cfg)

	req := newTestRequest(t, "")
	res, err := chain.Authenticate(req)
	require.NoError(t, err)
	assert.Equal(t, auth.AccessNone, res.AccessLevel)
}

func TestServeCmd_AddedToRoot(t *testing.T) {
	rootCmd := NewRootCmd()

	serveCmd, _, err := rootCmd.Find([]string{"serve"})

	require.NoError(t, err)
	assert.Equal(t, "serve", serveCmd.Name())
}

func TestPreflightChecks_PassOnWritableTempDir(t *testing.T) {
	checker := preflight.New()
	results := checker.RunAll(context.Background(), t.TempDir())

	assert.False(t, checker.HasCriticalFailures(results))
}

func TestPreflightMarker_SkipsRecheckAfterPassing(t *testing.T) {
	dataDir := t.TempDir()

	assert.True(t, preflight.NeedsCheck(dataDir))

	require.NoError(t, preflight.MarkPassed(dataDir))

	assert.False(t, preflight.NeedsCheck(dataDir))
	assert.Less(t, preflight.MarkerAge(dataDir), preflightRecheckInterval)
}

func TestParseLogLevel(t *testing.T) {
	assert.Equal(t, "DEBUG", parseLogLevel("debug").String())
	assert.Equal(t, "WARN", parseLogLevel("warn").String())
	assert.Equal(t, "ERROR", parseLogLevel("error").String())
	assert.Equal(t, "INFO", parseLogLevel("info").String())
	assert.Equal(t, "INFO", parseLogLevel("").String())
}
