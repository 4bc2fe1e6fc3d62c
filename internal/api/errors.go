package api

import (
	"encoding/json"
	"net/http"

	"github.com/soaringjerry/checkbot/internal/observability"
	"github.com/soaringjerry/checkbot/internal/services"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps service errors to HTTP statuses. Anything else is a 500
// and its text stays in the log.
func writeError(w http.ResponseWriter, err error) {
	se, ok := services.AsServiceError(err)
	if !ok {
		observability.Logger().Error("api request failed", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	status := http.StatusInternalServerError
	switch se.Code {
	case services.ErrorInvalid:
		status = http.StatusBadRequest
	case services.ErrorNotFound:
		status = http.StatusNotFound
	case services.ErrorUnauthorized:
		status = http.StatusUnauthorized
	case services.ErrorNotImplemented:
		status = http.StatusNotImplemented
	}
	http.Error(w, se.Message, status)
}
