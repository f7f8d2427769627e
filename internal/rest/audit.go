package rest

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"github.com/homelend/platform/internal/audit"
	"github.com/homelend/platform/internal/domain"
	"github.com/homelend/platform/pkg/auth"
)

type auditEventDTO struct {
	ID            int64          `json:"id"`
	Timestamp     time.Time      `json:"timestamp"`
	PrevHash      string         `json:"prev_hash"`
	EventType     string         `json:"event_type"`
	UserID        *string        `json:"user_id,omitempty"`
	UserRole      *string        `json:"user_role,omitempty"`
	ApplicationID *string        `json:"application_id,omitempty"`
	DecisionID    *string        `json:"decision_id,omitempty"`
	SessionID     *string        `json:"session_id,omitempty"`
	EventData     map[string]any `json:"event_data"`
}

func newAuditEventDTO(e domain.AuditEvent) auditEventDTO {
	return auditEventDTO{
		ID:            e.ID,
		Timestamp:     e.Timestamp,
		PrevHash:      e.PrevHash,
		EventType:     e.EventType,
		UserID:        e.UserID,
		UserRole:      e.UserRole,
		ApplicationID: e.ApplicationID,
		DecisionID:    e.DecisionID,
		SessionID:     e.SessionID,
		EventData:     e.EventData,
	}
}

func newAuditEventDTOs(events []domain.AuditEvent) []auditEventDTO {
	dtos := make([]auditEventDTO, 0, len(events))
	for _, e := range events {
		dtos = append(dtos, newAuditEventDTO(e))
	}
	return dtos
}

func (s *Server) handleVerifyChain(w http.ResponseWriter, r *http.Request) {
	if _, ok := s.requireRole(w, r, auth.RoleUnderwriter, auth.RoleAdmin); !ok {
		return
	}
	result, err := s.audit.Verify(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleExportAudit(w http.ResponseWriter, r *http.Request) {
	if _, ok := s.requireRole(w, r, auth.RoleUnderwriter, auth.RoleAdmin); !ok {
		return
	}
	params, err := auditSearchParams(r)
	if err != nil {
		s.writeJSON(w, http.StatusBadRequest, map[string]any{"error": "bad_request", "message": err.Error()})
		return
	}

	format := r.URL.Query().Get("fmt")
	stamp := time.Now().UTC().Format("20060102T150405Z")
	switch format {
	case "csv":
		w.Header().Set("Content-Type", "text/csv")
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=audit-%s.csv", stamp))
		err = s.audit.ExportCSV(r.Context(), w, params)
	case "", "json":
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=audit-%s.json", stamp))
		err = s.audit.ExportJSON(r.Context(), w, params)
	default:
		s.writeJSON(w, http.StatusBadRequest, map[string]any{"error": "bad_request", "message": "fmt must be json or csv"})
		return
	}
	if err != nil {
		s.logger.Error("audit export failed", "format", format, "error", err)
	}
}

func (s *Server) handleDecisionTrace(w http.ResponseWriter, r *http.Request) {
	if _, ok := s.requireRole(w, r, auth.RoleUnderwriter, auth.RoleAdmin); !ok {
		return
	}
	trace, err := s.audit.TraceDecision(r.Context(), mux.Vars(r)["did"])
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, trace)
}

func (s *Server) handleAdminAudit(w http.ResponseWriter, r *http.Request) {
	if _, ok := s.requireRole(w, r, auth.RoleAdmin); !ok {
		return
	}

	if sessionID := r.URL.Query().Get("session_id"); sessionID != "" {
		events, err := s.audit.BySession(r.Context(), sessionID)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		s.writeJSON(w, http.StatusOK, newAuditEventDTOs(events))
		return
	}
	if appID := r.URL.Query().Get("application_id"); appID != "" {
		events, err := s.audit.ByApplication(r.Context(), appID)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		s.writeJSON(w, http.StatusOK, newAuditEventDTOs(events))
		return
	}

	params, err := auditSearchParams(r)
	if err != nil {
		s.writeJSON(w, http.StatusBadRequest, map[string]any{"error": "bad_request", "message": err.Error()})
		return
	}
	events, err := s.audit.Search(r.Context(), params)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, newAuditEventDTOs(events))
}

func (s *Server) handleAuditViolations(w http.ResponseWriter, r *http.Request) {
	if _, ok := s.requireRole(w, r, auth.RoleAdmin); !ok {
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	violations, err := s.audit.Violations(r.Context(), limit)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	type violationDTO struct {
		ID                 int64     `json:"id"`
		AttemptedOperation string    `json:"attempted_operation"`
		DBUser             string    `json:"db_user"`
		AuditEventID       *int64    `json:"audit_event_id,omitempty"`
		Timestamp          time.Time `json:"timestamp"`
	}
	dtos := make([]violationDTO, 0, len(violations))
	for _, v := range violations {
		dtos = append(dtos, violationDTO{
			ID:                 v.ID,
			AttemptedOperation: v.AttemptedOperation,
			DBUser:             v.DBUser,
			AuditEventID:       v.AuditEventID,
			Timestamp:          v.Timestamp,
		})
	}
	s.writeJSON(w, http.StatusOK, dtos)
}

// auditSearchParams reads from/to/event_type/limit from the query string.
// Timestamps are RFC 3339.
func auditSearchParams(r *http.Request) (audit.SearchParams, error) {
	var params audit.SearchParams
	q := r.URL.Query()

	if raw := q.Get("from"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return params, fmt.Errorf("invalid from timestamp %q", raw)
		}
		params.From = t
	}
	if raw := q.Get("to"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return params, fmt.Errorf("invalid to timestamp %q", raw)
		}
		params.To = t
	}
	params.EventType = q.Get("event_type")
	if raw := q.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			return params, fmt.Errorf("invalid limit %q", raw)
		}
		params.Limit = n
	}
	return params, nil
}
