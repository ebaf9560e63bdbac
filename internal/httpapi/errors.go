package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"poemd/internal/engine"
	"poemd/internal/hub"
	"poemd/internal/session"
	"poemd/pkg/types"
)

// writeJSONError writes a consistent JSON error payload.
func writeJSONError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(types.ErrorResponse{Error: msg, Code: status})
}

// loadErrorStatus maps a load failure to a status code: 503 when the runtime
// or the artifacts are unavailable, 404 when the hub does not know the
// repository or file, 502 for other upstream and load failures.
func loadErrorStatus(err error) int {
	if engine.IsDependencyUnavailable(err) || session.IsModelUnavailable(err) {
		return http.StatusServiceUnavailable
	}
	var se *hub.StatusError
	if errors.As(err, &se) && se.StatusCode == http.StatusNotFound {
		return http.StatusNotFound
	}
	return http.StatusBadGateway
}
