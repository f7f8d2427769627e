package rest

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/homelend/platform/internal/decisions"
	"github.com/homelend/platform/pkg/auth"
)

type decisionBody struct {
	Decision            string            `json:"decision"`
	Rationale           string            `json:"rationale"`
	DenialReasons       []string          `json:"denial_reasons"`
	OverrideRationale   *string           `json:"override_rationale"`
	CreditScoreUsed     *int              `json:"credit_score_used"`
	CreditScoreSource   *string           `json:"credit_score_source"`
	ContributingFactors map[string]string `json:"contributing_factors"`
}

func (b decisionBody) params() decisions.RenderParams {
	return decisions.RenderParams{
		Decision:            b.Decision,
		Rationale:           b.Rationale,
		DenialReasons:       b.DenialReasons,
		OverrideRationale:   b.OverrideRationale,
		CreditScoreUsed:     b.CreditScoreUsed,
		CreditScoreSource:   b.CreditScoreSource,
		ContributingFactors: b.ContributingFactors,
	}
}

func (s *Server) handleRenderDecision(w http.ResponseWriter, r *http.Request) {
	p, ok := s.requireRole(w, r, auth.RoleUnderwriter, auth.RoleAdmin)
	if !ok {
		return
	}
	id := mux.Vars(r)["id"]

	var body decisionBody
	if !s.decodeBody(w, r, &body) {
		return
	}

	decision, err := s.decisions.Render(r.Context(), p, id, body.params())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, newDecisionDTO(decision))
}

func (s *Server) handleProposeDecision(w http.ResponseWriter, r *http.Request) {
	p, ok := s.requireRole(w, r, auth.RoleUnderwriter, auth.RoleAdmin)
	if !ok {
		return
	}
	id := mux.Vars(r)["id"]

	var body decisionBody
	if !s.decodeBody(w, r, &body) {
		return
	}

	outcome, err := s.decisions.Propose(r.Context(), p, id, body.params())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, outcome)
}

func (s *Server) handleListDecisions(w http.ResponseWriter, r *http.Request) {
	p := s.principal(r)
	list, err := s.decisions.List(r.Context(), p, mux.Vars(r)["id"])
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	dtos := make([]decisionDTO, 0, len(list))
	for i := range list {
		dtos = append(dtos, newDecisionDTO(&list[i]))
	}
	s.writeJSON(w, http.StatusOK, dtos)
}

func (s *Server) handleGetDecision(w http.ResponseWriter, r *http.Request) {
	p := s.principal(r)
	vars := mux.Vars(r)
	decision, err := s.decisions.Get(r.Context(), p, vars["id"], vars["did"])
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, newDecisionDTO(decision))
}

func (s *Server) handleRisk(w http.ResponseWriter, r *http.Request) {
	p := s.principal(r)
	profile, err := s.decisions.ComputeRisk(r.Context(), p, mux.Vars(r)["id"])
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, profile)
}

func (s *Server) handleRunCompliance(w http.ResponseWriter, r *http.Request) {
	p, ok := s.requireRole(w, r, auth.RoleUnderwriter, auth.RoleAdmin)
	if !ok {
		return
	}
	report, err := s.compliance.RunAll(r.Context(), p, mux.Vars(r)["id"])
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, report)
}
