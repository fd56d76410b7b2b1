package web

// errors.go provides unified error response handling for the web layer.
//
// The error flow:
//  1. Handler encounters an error
//  2. Calls s.respondError(w, r, err)
//  3. The HTTP status is chosen from the error's type (statusFor)
//  4. Error is mapped via core.MapError to get a user-friendly message
//  5. Technical error and code are logged with the request ID for correlation

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/JonMunkholm/sldstore/internal/core"
	"github.com/JonMunkholm/sldstore/internal/flatline"
	"github.com/JonMunkholm/sldstore/internal/logging"
	"github.com/JonMunkholm/sldstore/internal/store"
)

// ErrorResponse represents the JSON structure for API error responses.
// Includes both machine-readable (Code) and human-readable (Message, Action) fields.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Action  string `json:"action,omitempty"`
	Code    string `json:"code"`
}

// statusFor picks the HTTP status for err.
func statusFor(err error) int {
	var (
		maxBytes    *http.MaxBytesError
		syntaxErr   *flatline.SyntaxError
		orphanRule  *store.OrphanRuleError
		orphanField *store.OrphanFieldError
		pgErr       *pgconn.PgError
		connErr     *store.ConnectionError
	)

	switch {
	case errors.As(err, &maxBytes), errors.Is(err, core.ErrTooManyLines):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, core.ErrInvalidRequest),
		errors.Is(err, core.ErrEmptyName),
		errors.Is(err, core.ErrEmptyTemplate),
		errors.Is(err, core.ErrEmptyConfigName),
		errors.Is(err, store.ErrDuplicateParam),
		errors.As(err, &syntaxErr):
		return http.StatusBadRequest
	case errors.As(err, &orphanRule), errors.As(err, &orphanField):
		return http.StatusUnprocessableEntity
	case errors.Is(err, core.ErrInvalidOwner):
		return http.StatusUnauthorized
	case errors.Is(err, core.ErrNotOwner):
		return http.StatusForbidden
	case errors.Is(err, core.ErrTemplateNotFound), errors.Is(err, core.ErrConfigNotFound):
		return http.StatusNotFound
	case errors.Is(err, core.ErrTooManyIngests):
		return http.StatusServiceUnavailable
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.Is(err, context.Canceled):
		return http.StatusRequestTimeout
	case errors.As(err, &pgErr):
		switch pgErr.Code {
		case pgerrcode.UniqueViolation:
			return http.StatusConflict
		case pgerrcode.ForeignKeyViolation:
			return http.StatusUnprocessableEntity
		case pgerrcode.DeadlockDetected, pgerrcode.SerializationFailure:
			return http.StatusConflict
		}
	case errors.As(err, &connErr):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

// respondError logs the technical error server-side and writes a
// user-friendly JSON error.
func (s *Server) respondError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	userMsg := core.MapError(err)

	logger := logging.FromContext(r.Context())
	attrs := []any{
		"path", r.URL.Path,
		"method", r.Method,
		"status", status,
		"error", err.Error(),
		"code", userMsg.Code,
	}
	if status >= http.StatusInternalServerError {
		logger.Error("request error", attrs...)
	} else {
		logger.Warn("request error", attrs...)
	}

	if errors.Is(err, core.ErrTooManyIngests) {
		w.Header().Set("Retry-After", "5")
	}
	writeJSON(w, status, ErrorResponse{
		Error:   userMsg.Message,
		Message: userMsg.Message,
		Action:  userMsg.Action,
		Code:    userMsg.Code,
	})
}

// writeJSON encodes v as JSON with the given status.
// Encoding errors are logged since headers are already sent.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("json encode error", "error", err)
	}
}
