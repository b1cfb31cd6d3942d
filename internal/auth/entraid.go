package auth

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v4"
)

// entraClaims is the subset of an Entra ID access token's claims this
// stand-in cares about: the app-role claim (client-credentials flow) and
// the delegated-permission scope claim (auth-code flow).
type entraClaims struct {
	jwt.RegisteredClaims
	Roles []string `json:"roles,omitempty"`
	Scp   string   `json:"scp,omitempty"`
}

// roleAccessLevels maps a recognized role/scope name to the AccessLevel
// it grants. Checked in the order listed so the highest applicable
// level wins when a token carries more than one.
var roleAccessLevels = []struct {
	name  string
	level AccessLevel
}{
	{"FullAccess", AccessFullAccess},
	{"Contributor", AccessContributor},
	{"ServiceContributor", AccessServiceContributor},
	{"IndexDataContributor", AccessIndexDataContributor},
	{"Reader", AccessReader},
	{"IndexDataReader", AccessIndexDataReader},
}

// EntraIDHandler authenticates a Bearer token shaped like an Entra ID
// access token. Since no real Entra ID tenant exists
// locally, it validates the token's structural shape and signature
// against a configured shared HMAC secret rather than a tenant's signing
// keys — a documented local stand-in, not a faithful OIDC client.
type EntraIDHandler struct {
	SharedSecret string
}

func (h *EntraIDHandler) Mode() string { return "EntraId" }

func (h *EntraIDHandler) CanHandle(r *http.Request) bool {
	return strings.HasPrefix(r.Header.Get("Authorization"), "Bearer ")
}

func (h *EntraIDHandler) Authenticate(r *http.Request) (*Result, error) {
	tokenString := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")

	claims := &entraClaims{}
	_, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return []byte(h.SharedSecret), nil
	})
	if err != nil {
		return nil, fmt.Errorf("invalid bearer token: %w", err)
	}

	return &Result{Mode: "EntraId", AccessLevel: levelFor(claims), Principal: claims.Subject}, nil
}

// levelFor returns the highest AccessLevel any of the token's roles or
// scopes grants, or AccessNone if it carries none recognized — a
// validly signed token that simply isn't authorized for anything,
// distinct from a rejected signature.
func levelFor(claims *entraClaims) AccessLevel {
	present := make(map[string]bool, len(claims.Roles)+2)
	for _, role := range claims.Roles {
		present[role] = true
	}
	for _, scope := range strings.Fields(claims.Scp) {
		present[scope] = true
	}
	for _, ral := range roleAccessLevels {
		if present[ral.name] {
			return ral.level
		}
	}
	return AccessNone
}
