package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/adctf/orchestrator/internal/apierr"
)

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

// writeError translates err into the HTTP status/body pair spec.md §7
// defines. Unrecognised errors are treated as Internal, never leaking
// their message verbatim to the client.
func writeError(w http.ResponseWriter, err error) {
	if apiErr, ok := err.(*apierr.Error); ok {
		writeJSON(w, apierr.HTTPStatus(apiErr.Kind), map[string]string{"error": apiErr.Message})
		return
	}
	writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
}

func decodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(dst); err != nil {
		return apierr.BadRequestf("malformed request body")
	}
	return nil
}
