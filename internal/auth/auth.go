// Package auth implements component K, the authentication front: an ordered chain of pluggable credential handlers that each
// produce an AccessLevel, and a middleware that enforces a per-verb
// required level post-authentication.
package auth

import (
	"context"
	"encoding/json"
	"net/http"
)

// AccessLevel mirrors the upstream cloud search service's role set.
// It is not a single total order: the two "IndexData*"
// levels scope only document-plane operations, while the others scope
// the control plane.
type AccessLevel string

const (
	AccessNone                 AccessLevel = "None"
	AccessIndexDataReader      AccessLevel = "IndexDataReader"
	AccessReader               AccessLevel = "Reader"
	AccessIndexDataContributor AccessLevel = "IndexDataContributor"
	AccessServiceContributor   AccessLevel = "ServiceContributor"
	AccessContributor          AccessLevel = "Contributor"
	AccessFullAccess           AccessLevel = "FullAccess"
)

// grants maps each level to the full set of required levels it
// satisfies, encoding the control-plane/data-plane split above rather
// than a single linear rank.
var grants = map[AccessLevel]map[AccessLevel]bool{
	AccessFullAccess: {
		AccessFullAccess: true, AccessContributor: true, AccessServiceContributor: true,
		AccessReader: true, AccessIndexDataContributor: true, AccessIndexDataReader: true,
	},
	AccessContributor: {
		AccessContributor: true, AccessServiceContributor: true, AccessReader: true,
		AccessIndexDataContributor: true, AccessIndexDataReader: true,
	},
	AccessServiceContributor:   {AccessServiceContributor: true, AccessReader: true},
	AccessIndexDataContributor: {AccessIndexDataContributor: true, AccessIndexDataReader: true},
	AccessReader:               {AccessReader: true},
	AccessIndexDataReader:      {AccessIndexDataReader: true},
	AccessNone:                 {},
}

// Grants reports whether an authenticated caller holding level a may
// perform an operation requiring level. AccessNone required is always
// satisfied (the verb is public, e.g. /health).
func (a AccessLevel) Grants(required AccessLevel) bool {
	if required == AccessNone {
		return true
	}
	return grants[a][required]
}

// Result is one handler's authentication outcome.
type Result struct {
	Mode        string      `json:"mode"`
	AccessLevel AccessLevel `json:"accessLevel"`
	Principal   string      `json:"principal,omitempty"`
}

// Handler is one credential scheme in the chain: ApiKey,
// Simulated, EntraId. CanHandle reports whether the request carries the
// kind of credential this handler understands, without validating it.
// Authenticate validates a credential CanHandle already accepted: a
// non-nil error is an explicit failure (malformed/invalid/expired
// credential) that stops the chain; a nil error always returns a
// non-nil Result (accepted, possibly at AccessNone if the credential is
// valid but carries no recognized role).
type Handler interface {
	Mode() string
	CanHandle(r *http.Request) bool
	Authenticate(r *http.Request) (*Result, error)
}

// Chain evaluates an ordered list of Handlers: each
// applicable handler runs in turn until one succeeds or one fails
// explicitly. When apiKeyTakesPrecedence is set, an applicable ApiKey
// handler is always tried first regardless of chain registration order.
type Chain struct {
	handlers              []Handler
	apiKeyTakesPrecedence bool
}

// NewChain builds a Chain. Handler order is registration order except
// where apiKeyTakesPrecedence reorders an applicable ApiKey handler to
// the front.
func NewChain(apiKeyTakesPrecedence bool, handlers ...Handler) *Chain {
	return &Chain{handlers: handlers, apiKeyTakesPrecedence: apiKeyTakesPrecedence}
}

// Authenticate runs the chain against one request. No applicable handler
// (no credentials of any recognized kind presented) returns
// {AccessNone}, nil — distinct from an applicable handler's explicit
// rejection, which returns a non-nil error.
func (c *Chain) Authenticate(r *http.Request) (Result, error) {
	for _, h := range c.ordered(r) {
		res, err := h.Authenticate(r)
		if err != nil {
			return Result{Mode: h.Mode(), AccessLevel: AccessNone}, err
		}
		if res != nil {
			return *res, nil
		}
	}
	return Result{AccessLevel: AccessNone}, nil
}

func (c *Chain) ordered(r *http.Request) []Handler {
	var applicable []Handler
	for _, h := range c.handlers {
		if h.CanHandle(r) {
			applicable = append(applicable, h)
		}
	}
	if c.apiKeyTakesPrecedence {
		for i, h := range applicable {
			if h.Mode() == "ApiKey" && i != 0 {
				applicable[0], applicable[i] = applicable[i], applicable[0]
				break
			}
		}
	}
	return applicable
}

// Middleware enforces a required AccessLevel on every request it wraps.
// On success the authenticated Result is attached to the request context.
func (c *Chain) Middleware(required AccessLevel) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			res, err := c.Authenticate(r)
			if err != nil {
				writeAuthError(w, http.StatusUnauthorized, "InvalidApiKey", err.Error())
				return
			}
			if !res.AccessLevel.Grants(required) {
				writeAuthError(w, http.StatusForbidden, "Forbidden", "insufficient access level")
				return
			}
			next.ServeHTTP(w, r.WithContext(WithResult(r.Context(), res)))
		})
	}
}

func writeAuthError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"error": map[string]any{"code": code, "message": message},
	})
}

type resultKey struct{}

// WithResult attaches an authentication Result to a context.
func WithResult(ctx context.Context, res Result) context.Context {
	return context.WithValue(ctx, resultKey{}, res)
}

// FromContext retrieves a Result attached by Middleware.
func FromContext(ctx context.Context) (Result, bool) {
	res, ok := ctx.Value(resultKey{}).(Result)
	return res, ok
}
