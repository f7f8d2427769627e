package rest

import (
	"net/http"

	"github.com/homelend/platform/internal/compliance"
	"github.com/homelend/platform/internal/domain"
	"github.com/homelend/platform/pkg/auth"
)

func (s *Server) handleHmdaCollect(w http.ResponseWriter, r *http.Request) {
	p, ok := s.requireRole(w, r, auth.RoleBorrower, auth.RoleLoanOfficer, auth.RoleAdmin)
	if !ok {
		return
	}

	var body struct {
		ApplicationID            string  `json:"application_id"`
		BorrowerID               string  `json:"borrower_id"`
		Race                     *string `json:"race"`
		RaceCollectedMethod      *string `json:"race_collected_method"`
		Ethnicity                *string `json:"ethnicity"`
		EthnicityCollectedMethod *string `json:"ethnicity_collected_method"`
		Sex                      *string `json:"sex"`
		SexCollectedMethod       *string `json:"sex_collected_method"`
		Age                      *int    `json:"age"`
		AgeCollectedMethod       *string `json:"age_collected_method"`
	}
	if !s.decodeBody(w, r, &body) {
		return
	}

	params := compliance.CollectParams{
		ApplicationID: body.ApplicationID,
		BorrowerID:    body.BorrowerID,
		Race:          body.Race,
		Ethnicity:     body.Ethnicity,
		Sex:           body.Sex,
		Age:           body.Age,
	}
	params.RaceMethod = methodPtr(body.RaceCollectedMethod)
	params.EthnicityMethod = methodPtr(body.EthnicityCollectedMethod)
	params.SexMethod = methodPtr(body.SexCollectedMethod)
	params.AgeMethod = methodPtr(body.AgeCollectedMethod)

	result, err := s.hmda.Collect(r.Context(), p, params)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, map[string]any{
		"application_id": body.ApplicationID,
		"conflicts":      result.Conflicts,
	})
}

func methodPtr(s *string) *domain.CollectionMethod {
	if s == nil {
		return nil
	}
	m := domain.CollectionMethod(*s)
	return &m
}
