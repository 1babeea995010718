package web

// errors.go translates the core's error taxonomy into HTTP responses. The
// kind picks the status code; the structured payload (flagged columns, the
// full validation report) rides along so the frontend can render specifics
// instead of a bare message.

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rissahq/rissa/internal/core"
	"github.com/rissahq/rissa/internal/logging"
)

// ErrorResponse is the JSON body for every failed request.
type ErrorResponse struct {
	Error   string                 `json:"error"`
	Code    string                 `json:"code"`
	Columns []string               `json:"columns,omitempty"`
	Report  *core.ValidationReport `json:"validation_report,omitempty"`
}

func statusForKind(k core.Kind) int {
	switch k {
	case core.KindNotFound, core.KindNoData:
		return http.StatusNotFound
	case core.KindConflict, core.KindPreconditionFailed:
		return http.StatusConflict
	case core.KindInvalidStructure, core.KindSensitiveData, core.KindParse:
		return http.StatusBadRequest
	case core.KindValidationFailed:
		return http.StatusUnprocessableEntity
	case core.KindAuthorization:
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) respondError(w http.ResponseWriter, r *http.Request, err error) {
	resp := ErrorResponse{Error: err.Error(), Code: core.KindUnknown.String()}
	status := http.StatusInternalServerError

	var domainErr *core.Error
	switch {
	case errors.As(err, &domainErr):
		status = statusForKind(domainErr.Kind)
		resp.Code = domainErr.Kind.String()
		resp.Columns = domainErr.Columns
		resp.Report = domainErr.Report
	case errors.Is(err, core.ErrTooManyUploads):
		status = http.StatusServiceUnavailable
		resp.Code = "TOO_MANY_UPLOADS"
	}

	// Internal detail never reaches the client on storage failures.
	if status == http.StatusInternalServerError {
		resp.Error = "an internal error occurred, please try again later"
	}

	logging.FromContext(r.Context()).Error("request failed",
		"path", r.URL.Path,
		"method", r.Method,
		"status", status,
		"code", resp.Code,
		"error", err.Error(),
	)

	respondJSON(w, status, resp)
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// badRequest reports a malformed request body or missing form field.
func (s *Server) badRequest(w http.ResponseWriter, r *http.Request, format string, args ...any) {
	s.respondError(w, r, core.Errf(core.KindParse, format, args...))
}
