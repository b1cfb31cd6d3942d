package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/searchemu/searchemu/internal/serr"
)

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// writeError renders err as the wire error envelope. Any
// error not already a *serr.ServiceError is wrapped as an internal error
// so a handler can always just pass through whatever it got back from a
// lower layer.
func writeError(w http.ResponseWriter, err error, devMode bool) {
	wire, status := serr.ToWire(err, devMode)
	writeJSON(w, status, wire)
}

func decodeJSON(r *http.Request, v interface{}) error {
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(v); err != nil {
		return serr.Wrap(serr.ErrCodeInvalidInput, err, "request body is not valid JSON")
	}
	return nil
}
