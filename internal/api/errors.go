package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/nerrad567/railrunner/internal/automation"
	"github.com/nerrad567/railrunner/internal/engine"
	"github.com/nerrad567/railrunner/internal/scheduler"
	"github.com/nerrad567/railrunner/internal/trigger"
)

// Error represents a structured error response.
type Error struct {
	Status  int    `json:"status"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Common error codes.
const (
	ErrCodeBadRequest   = "bad_request"
	ErrCodeNotFound     = "not_found"
	ErrCodeUnauthorized = "unauthorised"
	ErrCodeForbidden    = "forbidden"
	ErrCodeConflict     = "conflict"
	ErrCodeInternal     = "internal_error"
	ErrCodeValidation   = "validation_error"
	ErrCodeUnavailable  = "unavailable"
	ErrCodeTimeout      = "timeout"
)

// writeJSON writes a JSON response with the given status code and payload.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		//nolint:errcheck // Best-effort write to response; connection may be closed
		json.NewEncoder(w).Encode(v)
	}
}

// writeError writes a structured error response.
func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, Error{
		Status:  status,
		Code:    code,
		Message: message,
	})
}

// writeBadRequest writes a 400 error response.
func writeBadRequest(w http.ResponseWriter, message string) {
	writeError(w, http.StatusBadRequest, ErrCodeBadRequest, message)
}

// writeNotFound writes a 404 error response.
func writeNotFound(w http.ResponseWriter, message string) {
	writeError(w, http.StatusNotFound, ErrCodeNotFound, message)
}

// writeUnauthorized writes a 401 error response.
func writeUnauthorized(w http.ResponseWriter, message string) {
	writeError(w, http.StatusUnauthorized, ErrCodeUnauthorized, message)
}

// writeForbidden writes a 403 error response.
func writeForbidden(w http.ResponseWriter, message string) {
	writeError(w, http.StatusForbidden, ErrCodeForbidden, message)
}

// writeInternalError writes a 500 error response.
func writeInternalError(w http.ResponseWriter, message string) {
	writeError(w, http.StatusInternalServerError, ErrCodeInternal, message)
}

// writeDomainError maps an engine, trigger or automation error to its
// HTTP status. Unknown errors are logged and reported as 500.
func (s *Server) writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case trigger.IsInvalidOption(err), errors.Is(err, trigger.ErrInvalidID):
		writeError(w, http.StatusBadRequest, ErrCodeValidation, err.Error())
	case errors.Is(err, trigger.ErrNotFound),
		errors.Is(err, automation.ErrVehicleNotFound),
		errors.Is(err, engine.ErrNoVehicle):
		writeNotFound(w, err.Error())
	case errors.Is(err, trigger.ErrExists),
		errors.Is(err, automation.ErrAlreadyAutomated),
		errors.Is(err, automation.ErrNotAutomated),
		errors.Is(err, automation.ErrBlanketAutomation),
		errors.Is(err, automation.ErrAutomationVetoed):
		writeError(w, http.StatusConflict, ErrCodeConflict, err.Error())
	case errors.Is(err, engine.ErrNotRunning),
		errors.Is(err, trigger.ErrNotLoaded),
		errors.Is(err, scheduler.ErrLoopStopped),
		errors.Is(err, automation.ErrAvatarUnavailable):
		writeError(w, http.StatusServiceUnavailable, ErrCodeUnavailable, err.Error())
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		writeError(w, http.StatusGatewayTimeout, ErrCodeTimeout, "engine did not respond in time")
	default:
		s.logger.Error("unhandled engine error", "error", err)
		writeInternalError(w, "internal server error")
	}
}
