package rest

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/homelend/platform/internal/conditions"
	"github.com/homelend/platform/internal/domain"
	"github.com/homelend/platform/pkg/auth"
)

func (s *Server) handleIssueCondition(w http.ResponseWriter, r *http.Request) {
	p, ok := s.requireRole(w, r, auth.RoleUnderwriter, auth.RoleAdmin)
	if !ok {
		return
	}
	id := mux.Vars(r)["id"]

	var body struct {
		Description string     `json:"description"`
		Severity    string     `json:"severity"`
		DueDate     *time.Time `json:"due_date"`
	}
	if !s.decodeBody(w, r, &body) {
		return
	}

	cond, err := s.conditions.Issue(r.Context(), p, id, conditions.IssueParams{
		Description: body.Description,
		Severity:    domain.ConditionSeverity(body.Severity),
		DueDate:     body.DueDate,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, newConditionDTO(cond))
}

func (s *Server) handleListConditions(w http.ResponseWriter, r *http.Request) {
	p := s.principal(r)
	openOnly := r.URL.Query().Get("open_only") == "true"

	conds, err := s.conditions.List(r.Context(), p, mux.Vars(r)["id"], openOnly)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	dtos := make([]conditionDTO, 0, len(conds))
	for i := range conds {
		dtos = append(dtos, newConditionDTO(&conds[i]))
	}
	s.writeJSON(w, http.StatusOK, dtos)
}

func (s *Server) handleRespondCondition(w http.ResponseWriter, r *http.Request) {
	p := s.principal(r)
	vars := mux.Vars(r)

	var body struct {
		ResponseText string `json:"response_text"`
	}
	if !s.decodeBody(w, r, &body) {
		return
	}

	cond, err := s.conditions.Respond(r.Context(), p, vars["id"], vars["cid"], body.ResponseText)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, newConditionDTO(cond))
}

func (s *Server) handleReviewCondition(w http.ResponseWriter, r *http.Request) {
	s.conditionAction(w, r, func(p *auth.Principal, appID, cid string) (*domain.Condition, error) {
		return s.conditions.StartReview(r.Context(), p, appID, cid)
	})
}

func (s *Server) handleClearCondition(w http.ResponseWriter, r *http.Request) {
	s.conditionAction(w, r, func(p *auth.Principal, appID, cid string) (*domain.Condition, error) {
		return s.conditions.Clear(r.Context(), p, appID, cid)
	})
}

func (s *Server) handleReturnCondition(w http.ResponseWriter, r *http.Request) {
	p, ok := s.requireRole(w, r, auth.RoleUnderwriter, auth.RoleAdmin)
	if !ok {
		return
	}
	vars := mux.Vars(r)

	var body struct {
		Note string `json:"note"`
	}
	if !s.decodeBody(w, r, &body) {
		return
	}

	cond, err := s.conditions.Return(r.Context(), p, vars["id"], vars["cid"], body.Note)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, newConditionDTO(cond))
}

func (s *Server) handleWaiveCondition(w http.ResponseWriter, r *http.Request) {
	p, ok := s.requireRole(w, r, auth.RoleUnderwriter, auth.RoleAdmin)
	if !ok {
		return
	}
	vars := mux.Vars(r)

	var body struct {
		WaiverRationale string `json:"waiver_rationale"`
	}
	if !s.decodeBody(w, r, &body) {
		return
	}

	cond, err := s.conditions.Waive(r.Context(), p, vars["id"], vars["cid"], body.WaiverRationale)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, newConditionDTO(cond))
}

func (s *Server) handleEscalateCondition(w http.ResponseWriter, r *http.Request) {
	s.conditionAction(w, r, func(p *auth.Principal, appID, cid string) (*domain.Condition, error) {
		return s.conditions.Escalate(r.Context(), p, appID, cid)
	})
}

// conditionAction runs a body-less underwriter condition operation.
func (s *Server) conditionAction(w http.ResponseWriter, r *http.Request, fn func(p *auth.Principal, appID, cid string) (*domain.Condition, error)) {
	p, ok := s.requireRole(w, r, auth.RoleUnderwriter, auth.RoleAdmin)
	if !ok {
		return
	}
	vars := mux.Vars(r)
	cond, err := fn(p, vars["id"], vars["cid"])
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, newConditionDTO(cond))
}
