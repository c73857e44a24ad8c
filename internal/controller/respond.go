// internal/controller/respond.go
package controller

import (
	"encoding/json"
	"net/http"

	appErrors "github.com/unclebandit/notify-event/internal/errors"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError answers with the normalized status and {statusCode, message}.
func writeError(w http.ResponseWriter, err error) {
	appErr := appErrors.Normalize(err)
	writeJSON(w, appErr.StatusCode, appErr.Body())
}
