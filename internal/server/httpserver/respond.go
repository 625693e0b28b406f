package httpserver

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"filedepot/internal/errs"
)

// writeJSON encodes v and sends it with the given status.
func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.Warn("write response", zap.Error(err))
	}
}

// writeError maps sentinel errors to HTTP statuses. Anything unmapped is an
// internal error and only the generic message leaves the server.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, errs.ErrValidation):
		http.Error(w, "bad request", http.StatusBadRequest)
	case errors.Is(err, errs.ErrUnauthorized):
		http.Error(w, "unauthorized", http.StatusUnauthorized)
	case errors.Is(err, errs.ErrLocked):
		http.Error(w, "account locked", http.StatusUnauthorized)
	case errors.Is(err, errs.ErrNotFound):
		http.Error(w, "not found", http.StatusNotFound)
	case errors.Is(err, errs.ErrNotReady):
		http.Error(w, "not ready", http.StatusLocked)
	case errors.Is(err, errs.ErrRateLimited):
		http.Error(w, "rate limited", http.StatusTooManyRequests)
	case errors.Is(err, errs.ErrAlreadyExists):
		http.Error(w, "conflict", http.StatusConflict)
	default:
		s.log.Error("request failed", zap.Error(err))
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}
