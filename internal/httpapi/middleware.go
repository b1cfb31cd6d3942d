package httpapi

import (
	"log/slog"
	"net/http"
	"regexp"
	"time"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/searchemu/searchemu/internal/serr"
)

// entityKeyPattern matches the `/{collection}('{name}')` spelling so it can be rewritten to the plain `/{collection}/{name}` form
// before chi ever sees it.
var entityKeyPattern = regexp.MustCompile(`\('([^']*)'\)`)

// rewriteEntityKeySpelling normalizes the OData entity-key path spelling
// to the plain path form, so every handler only ever needs to match one
// shape.
func rewriteEntityKeySpelling(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if entityKeyPattern.MatchString(r.URL.Path) {
			r.URL.Path = entityKeyPattern.ReplaceAllString(r.URL.Path, "/$1")
			r.RequestURI = r.URL.RequestURI()
		}
		next.ServeHTTP(w, r)
	})
}

// requireAPIVersion enforces the `?api-version=` pin: any non-empty value
// is accepted. Only the /health liveness endpoint is exempt, since a
// health probe shouldn't need to track the wire version.
func requireAPIVersion(devMode bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path == "/health" {
				next.ServeHTTP(w, r)
				return
			}
			if r.URL.Query().Get("api-version") == "" {
				writeError(w, serr.New(serr.ErrCodeInvalidInput, "missing required query parameter api-version").WithTarget("api-version"), devMode)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// slogLogger adapts chi's request logger middleware to the project's
// slog-based logging convention instead of chi's default stdlib logger.
func slogLogger(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)
			logger.Info("http_request",
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.Int("status", ww.Status()),
				slog.Duration("duration", time.Since(start)),
				slog.String("request_id", middleware.GetReqID(r.Context())),
			)
		})
	}
}
