package web

// errors.go provides unified error response handling for the web layer.
//
// The error flow:
//  1. Handler encounters an error
//  2. Calls s.respondError(w, r, err)
//  3. The status comes from core.KindOf; the body from core.MapError
//  4. The technical error is logged with the request id for correlation
//  5. The client gets a JSON body that never contains internal details

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/JonMunkholm/agrorecords/internal/core"
	"github.com/JonMunkholm/agrorecords/internal/logging"
	"github.com/JonMunkholm/agrorecords/internal/web/middleware"
)

var (
	errRouteNotFound    = errors.New("route not found")
	errMethodNotAllowed = errors.New("method not allowed")
)

// ErrorResponse represents the JSON structure for API error responses.
// Includes both machine-readable (Code) and human-readable (Message, Action) fields.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Action  string `json:"action,omitempty"`
	Code    string `json:"code"`

	// Errors lists row-level violations for rejected records and batches,
	// or the missing columns of a rejected CSV header.
	Errors      []string `json:"errors,omitempty"`
	TotalErrors int      `json:"total_errors,omitempty"`
}

// statusFor maps an error to its HTTP status.
func statusFor(err error) int {
	var mbe *http.MaxBytesError
	switch {
	case errors.As(err, &mbe):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, middleware.ErrRateLimited):
		return http.StatusTooManyRequests
	case errors.Is(err, errRouteNotFound):
		return http.StatusNotFound
	case errors.Is(err, errMethodNotAllowed):
		return http.StatusMethodNotAllowed
	}

	switch core.KindOf(err) {
	case core.KindNotFound:
		return http.StatusNotFound
	case core.KindPermissionDenied:
		return http.StatusForbidden
	case core.KindUnauthenticated:
		return http.StatusUnauthorized
	case core.KindValidation:
		return http.StatusUnprocessableEntity
	case core.KindSchema, core.KindEmptyInput, core.KindBadRequest:
		return http.StatusBadRequest
	case core.KindBusy:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// respondError logs err and writes the JSON error body.
func (s *Server) respondError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	msg := core.MapError(err)

	body := ErrorResponse{
		Error:   msg.Message,
		Message: msg.Message,
		Action:  msg.Action,
		Code:    msg.Code,
	}

	var (
		verr *core.ValidationError
		serr *core.SchemaError
		berr *core.BadRequestError
	)
	switch {
	case errors.As(err, &verr):
		body.Errors = verr.Messages()
		body.TotalErrors = verr.Total
	case errors.As(err, &serr):
		body.Errors = serr.Missing
		body.TotalErrors = len(serr.Missing)
	case errors.As(err, &berr):
		body.Message = berr.Error()
	}

	logger := logging.FromContext(r.Context())
	attrs := []any{
		"path", r.URL.Path,
		"method", r.Method,
		"status", status,
		"code", msg.Code,
		"error", err.Error(),
	}
	if status >= http.StatusInternalServerError {
		logger.Error("request error", attrs...)
	} else {
		logger.Log(r.Context(), slog.LevelDebug, "request rejected", attrs...)
	}

	if status == http.StatusServiceUnavailable {
		w.Header().Set("Retry-After", "5")
	}
	writeJSON(w, r, status, body)
}
