package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/web3-frozen/kpi-dashboard/internal/kpi"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// statusFor maps a KPI error kind to its HTTP status.
func statusFor(err error) int {
	switch {
	case errors.Is(err, kpi.ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, kpi.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, kpi.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, kpi.ErrUpstream):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// writeError answers with {"error": "..."} and the status matching err.
func writeError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		msg = "internal server error"
	}
	writeJSON(w, status, map[string]string{"error": msg})
}
