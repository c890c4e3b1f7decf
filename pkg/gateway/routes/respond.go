package routes

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/aistrack/platform/pkg/common/logger"
)

var (
	errMissing   = errors.New("required")
	errNotNumber = errors.New("not a number")
)

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		logger.Log.WithError(err).Error("failed to write json response")
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}
