package response

import (
	"encoding/json"
	"net/http"
)

// StaleHeader marks a transition response that changed nothing because the
// duel had already moved past the expected state
const StaleHeader = "X-Stale-Transition"

// JSON writes a JSON response
func JSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		_ = json.NewEncoder(w).Encode(data)
	}
}

// Stale writes the current record of a stale transition with 200
func Stale(w http.ResponseWriter, data any) {
	w.Header().Set(StaleHeader, "true")
	JSON(w, http.StatusOK, data)
}
