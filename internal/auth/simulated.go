package auth

import "net/http"

// SimulatedHandler is a dev-mode pass-through: when
// enabled it grants FullAccess unconditionally, for local development
// without configuring real credentials. It must only be enabled via
// explicit configuration, never by default.
type SimulatedHandler struct {
	Enabled bool
}

func (h *SimulatedHandler) Mode() string { return "Simulated" }

func (h *SimulatedHandler) CanHandle(r *http.Request) bool { return h.Enabled }

func (h *SimulatedHandler) Authenticate(r *http.Request) (*Result, error) {
	return &Result{Mode: "Simulated", AccessLevel: AccessFullAccess}, nil
}
