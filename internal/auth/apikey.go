package auth

import (
	"crypto/subtle"
	"fmt"
	"net/http"
)

// ApiKeyHandler authenticates the `api-key` header against a configured
// set of admin and query keys. An admin key grants
// FullAccess; a query key grants IndexDataReader, mirroring the upstream
// service's read-only, document-plane-scoped query keys.
type ApiKeyHandler struct {
	AdminKeys []string
	QueryKeys []string
}

func (h *ApiKeyHandler) Mode() string { return "ApiKey" }

func (h *ApiKeyHandler) CanHandle(r *http.Request) bool {
	return r.Header.Get("api-key") != ""
}

func (h *ApiKeyHandler) Authenticate(r *http.Request) (*Result, error) {
	key := r.Header.Get("api-key")
	for _, k := range h.AdminKeys {
		if constantTimeEqual(k, key) {
			return &Result{Mode: "ApiKey", AccessLevel: AccessFullAccess}, nil
		}
	}
	for _, k := range h.QueryKeys {
		if constantTimeEqual(k, key) {
			return &Result{Mode: "ApiKey", AccessLevel: AccessIndexDataReader}, nil
		}
	}
	return nil, fmt.Errorf("invalid api key")
}

func constantTimeEqual(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}
