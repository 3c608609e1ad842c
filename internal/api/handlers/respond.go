package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/auditbench/auditbench/internal/apperrors"
	"github.com/auditbench/auditbench/internal/api/dto"
)

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// Responder maps service errors onto the wire. In development the
// underlying cause of a 500 is included; in production the client only
// sees the generic message.
type Responder struct {
	log *slog.Logger
	dev bool
}

func NewResponder(log *slog.Logger, dev bool) Responder {
	return Responder{log: log, dev: dev}
}

func (rs Responder) Error(w http.ResponseWriter, r *http.Request, err error) {
	appErr := apperrors.As(err)
	status := apperrors.StatusCode(appErr)
	body := dto.ErrorResponse{
		Error:   appErr.Message,
		Details: appErr.Fields,
	}

	if status == http.StatusInternalServerError {
		rs.log.Error("request failed",
			"method", r.Method,
			"path", r.URL.Path,
			"error", err,
		)
		if rs.dev && appErr.Err != nil {
			body.Details = map[string]string{"cause": appErr.Err.Error()}
		} else {
			body.Details = nil
		}
		body.Error = "Internal server error"
		if rs.dev {
			body.Error = appErr.Message
		}
	}

	writeJSON(w, status, body)
}

func (rs Responder) ValidationFailed(w http.ResponseWriter, details map[string]string) {
	writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{
		Error:   "Validation failed",
		Details: details,
	})
}

func (rs Responder) BadBody(w http.ResponseWriter) {
	writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Invalid request body"})
}
