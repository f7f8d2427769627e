// Package rest exposes the HTTP surface: JSON endpoints under /api, the
// error-taxonomy mapping, and response-boundary PII masking.
package rest

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/homelend/platform/internal/domain"
)

// writeJSON renders v with the given status. Encoding failures are logged;
// the status line has already gone out.
func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("response encode failed", "error", err)
	}
}

// writeError maps a service error onto the HTTP taxonomy. Out-of-scope rows
// are indistinguishable from missing ones on purpose.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var validation *domain.ValidationError
	var precondition *domain.PreconditionError

	switch {
	case errors.As(err, &validation):
		s.writeJSON(w, http.StatusUnprocessableEntity, map[string]any{
			"error":  "validation_failed",
			"fields": validation.Fields,
		})
	case errors.As(err, &precondition):
		s.writeJSON(w, http.StatusBadRequest, map[string]any{
			"error":   precondition.Code,
			"message": precondition.Message,
		})
	case errors.Is(err, domain.ErrNotFound), errors.Is(err, domain.ErrOutOfScope):
		s.writeJSON(w, http.StatusNotFound, map[string]any{"error": "not_found"})
	case errors.Is(err, domain.ErrConflict):
		s.writeJSON(w, http.StatusConflict, map[string]any{"error": "conflict"})
	case errors.Is(err, domain.ErrRoleForbidden):
		s.writeJSON(w, http.StatusForbidden, map[string]any{"error": "forbidden"})
	case errors.Is(err, domain.ErrPayloadTooLarge):
		s.writeJSON(w, http.StatusRequestEntityTooLarge, map[string]any{"error": "payload_too_large"})
	default:
		s.logger.Error("request failed",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.Any("error", err))
		s.writeJSON(w, http.StatusInternalServerError, map[string]any{"error": "internal"})
	}
}

// decodeBody decodes a JSON request body into v.
func (s *Server) decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		s.writeJSON(w, http.StatusBadRequest, map[string]any{"error": "bad_request", "message": "invalid JSON body"})
		return false
	}
	return true
}

// pageParams reads offset and limit from the query string and normalizes
// them to the values actually served, so the envelope never echoes a raw
// zero or an over-cap limit.
func pageParams(r *http.Request) (offset, limit int) {
	offset, _ = strconv.Atoi(r.URL.Query().Get("offset"))
	limit, _ = strconv.Atoi(r.URL.Query().Get("limit"))
	if offset < 0 {
		offset = 0
	}
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	return offset, limit
}

// page is the standard list envelope.
type page struct {
	Data       any        `json:"data"`
	Pagination pagination `json:"pagination"`
}

type pagination struct {
	Total   int  `json:"total"`
	Offset  int  `json:"offset"`
	Limit   int  `json:"limit"`
	HasMore bool `json:"has_more"`
}

func newPage(data any, total, offset, limit, returned int) page {
	return page{
		Data: data,
		Pagination: pagination{
			Total:   total,
			Offset:  offset,
			Limit:   limit,
			HasMore: offset+returned < total,
		},
	}
}
