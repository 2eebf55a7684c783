package web

// errors.go turns handler errors into JSON error responses.
//
// The flow:
//  1. Handler encounters an error
//  2. Calls s.respondError(w, r, err)
//  3. statusFor picks the HTTP status from the error chain
//  4. core.MapError supplies the user message, action and code
//  5. The technical error is logged with the request id for correlation

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/JonMunkholm/catalog/internal/admin"
	"github.com/JonMunkholm/catalog/internal/core"
	"github.com/JonMunkholm/catalog/internal/logging"
	"github.com/JonMunkholm/catalog/internal/taxonomy"
)

// ErrorResponse is the body of every API error.
// Includes both machine-readable (Code) and human-readable (Message, Action) fields.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Action  string `json:"action,omitempty"`
	Code    string `json:"code"`
}

// errBadRequest marks malformed requests: bad ids, bad JSON, missing fields.
var errBadRequest = errors.New("bad request")

func badRequest(format string, args ...any) error {
	return fmt.Errorf("%w: %s", errBadRequest, fmt.Sprintf(format, args...))
}

// statusFor maps an error chain to an HTTP status.
func statusFor(err error) int {
	switch {
	case errors.Is(err, errBadRequest),
		errors.Is(err, core.ErrNoFiles),
		errors.Is(err, core.ErrTooManyFiles):
		return http.StatusBadRequest
	case errors.Is(err, core.ErrFileTooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, core.ErrRunNotFound),
		errors.Is(err, taxonomy.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, taxonomy.ErrDuplicate),
		errors.Is(err, admin.ErrSameSector):
		return http.StatusConflict
	case errors.Is(err, core.ErrTooManyImports):
		return http.StatusServiceUnavailable
	case errors.Is(err, core.ErrNoReadableFiles):
		return http.StatusUnprocessableEntity
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	}

	var te *taxonomy.Error
	if errors.As(err, &te) {
		switch te.Kind {
		case taxonomy.KindValidation, taxonomy.KindParse:
			return http.StatusBadRequest
		case taxonomy.KindReferential:
			return http.StatusConflict
		case taxonomy.KindStore:
			return http.StatusServiceUnavailable
		}
	}
	return http.StatusInternalServerError
}

// errorResponse builds the body for err. Bad requests carry their own
// message; everything else goes through core.MapError.
func errorResponse(err error) ErrorResponse {
	if errors.Is(err, errBadRequest) {
		return ErrorResponse{
			Error:   err.Error(),
			Message: err.Error(),
			Action:  "Check the request parameters",
			Code:    "REQ001",
		}
	}
	msg := core.MapError(err)
	return ErrorResponse{
		Error:   msg.Message,
		Message: msg.Message,
		Action:  msg.Action,
		Code:    msg.Code,
	}
}

// respondError logs the technical error and writes the user-facing one.
func (s *Server) respondError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	body := errorResponse(err)

	logger := logging.FromContext(r.Context())
	args := []any{
		"path", r.URL.Path,
		"method", r.Method,
		"status", status,
		"error", err.Error(),
		"code", body.Code,
	}
	if status >= http.StatusInternalServerError {
		logger.Error("request error", args...)
	} else {
		logger.Warn("request error", args...)
	}

	if status == http.StatusServiceUnavailable {
		w.Header().Set("Retry-After", "5")
	}
	writeJSON(w, r, status, body)
}
