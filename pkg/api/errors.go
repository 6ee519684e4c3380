package api

import (
	"encoding/json"
	"net/http"

	"tablepos/pkg/apperr"
)

var errBadRequest = apperr.New(apperr.KindInvalidInput, "bad request")

// jsonError is the body of every failed response.
type jsonError struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

func writeError(w http.ResponseWriter, status int, kind, details string) {
	writeJSON(w, status, jsonError{Error: kind, Details: details})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func statusFor(kind apperr.Kind) int {
	switch kind {
	case apperr.KindInvalidInput:
		return http.StatusBadRequest
	case apperr.KindUnauthorized:
		return http.StatusUnauthorized
	case apperr.KindForbidden:
		return http.StatusForbidden
	case apperr.KindNotFound:
		return http.StatusNotFound
	case apperr.KindInvalidTransition, apperr.KindTerminalState, apperr.KindOrderLocked, apperr.KindPaymentRequired:
		return http.StatusConflict
	case apperr.KindConfigPersistence:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
