package rest

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"

	"github.com/homelend/platform/internal/applications"
	"github.com/homelend/platform/internal/domain"
	"github.com/homelend/platform/pkg/auth"
)

func (s *Server) handleCreateApplication(w http.ResponseWriter, r *http.Request) {
	p := s.principal(r)

	var body struct {
		LoanType        *string `json:"loan_type"`
		PropertyAddress *string `json:"property_address"`
		LoanAmount      any     `json:"loan_amount"`
		PropertyValue   any     `json:"property_value"`
	}
	if !s.decodeBody(w, r, &body) {
		return
	}

	app, err := s.apps.Create(r.Context(), p, applications.CreateParams{
		LoanType:        body.LoanType,
		PropertyAddress: body.PropertyAddress,
		LoanAmount:      body.LoanAmount,
		PropertyValue:   body.PropertyValue,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, newApplicationDTO(app))
}

func (s *Server) handleListApplications(w http.ResponseWriter, r *http.Request) {
	p := s.principal(r)
	offset, limit := pageParams(r)

	apps, total, err := s.apps.List(r.Context(), p, offset, limit)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	dtos := make([]applicationDTO, 0, len(apps))
	for i := range apps {
		dtos = append(dtos, newApplicationDTO(&apps[i]))
	}
	s.writeJSON(w, http.StatusOK, newPage(dtos, total, offset, limit, len(dtos)))
}

func (s *Server) handleGetApplication(w http.ResponseWriter, r *http.Request) {
	p := s.principal(r)
	id := mux.Vars(r)["id"]

	app, err := s.apps.Get(r.Context(), p, id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	borrowers, junctions, err := s.apps.Borrowers(r.Context(), p, id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	primaries := map[string]bool{}
	for _, j := range junctions {
		if j.IsPrimary {
			primaries[j.BorrowerID] = true
		}
	}
	dto := newApplicationDTO(app)
	for i := range borrowers {
		dto.Borrowers = append(dto.Borrowers, newBorrowerDTO(borrowers[i], primaries[borrowers[i].ID], p.Scope))
	}
	s.writeJSON(w, http.StatusOK, dto)
}

func (s *Server) handleUpdateFields(w http.ResponseWriter, r *http.Request) {
	p := s.principal(r)
	id := mux.Vars(r)["id"]

	var fields map[string]any
	if !s.decodeBody(w, r, &fields) {
		return
	}
	if len(fields) == 0 {
		s.writeJSON(w, http.StatusBadRequest, map[string]any{"error": "bad_request", "message": "empty field map"})
		return
	}

	result, err := s.apps.UpdateFields(r.Context(), p, id, fields)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	p := s.principal(r)
	status, err := s.apps.Status(r.Context(), p, mux.Vars(r)["id"])
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, status)
}

func (s *Server) handleTransition(w http.ResponseWriter, r *http.Request) {
	p, ok := s.requireRole(w, r, auth.RoleLoanOfficer, auth.RoleUnderwriter, auth.RoleAdmin)
	if !ok {
		return
	}
	id := mux.Vars(r)["id"]

	var body struct {
		FromStage string `json:"from_stage"`
		ToStage   string `json:"to_stage"`
	}
	if !s.decodeBody(w, r, &body) {
		return
	}

	app, err := s.apps.TransitionStage(r.Context(), p, id, domain.Stage(body.FromStage), domain.Stage(body.ToStage))
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	// Entering underwriting snapshots the file into the compliance schema.
	if domain.Stage(body.ToStage) == domain.StageUnderwriting {
		if _, err := s.hmda.SnapshotLoanData(r.Context(), p, id); err != nil {
			s.logger.Error("loan data snapshot failed", "application_id", id, "error", err)
		}
	}
	s.writeJSON(w, http.StatusOK, newApplicationDTO(app))
}

func (s *Server) handleAddBorrower(w http.ResponseWriter, r *http.Request) {
	p := s.principal(r)
	id := mux.Vars(r)["id"]

	var body struct {
		BorrowerID string `json:"borrower_id"`
		IsPrimary  bool   `json:"is_primary"`
	}
	if !s.decodeBody(w, r, &body) {
		return
	}
	if body.BorrowerID == "" {
		s.writeJSON(w, http.StatusBadRequest, map[string]any{"error": "bad_request", "message": "borrower_id is required"})
		return
	}

	if err := s.apps.AddBorrower(r.Context(), p, id, body.BorrowerID, body.IsPrimary); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, map[string]any{"application_id": id, "borrower_id": body.BorrowerID})
}

func (s *Server) handleRemoveBorrower(w http.ResponseWriter, r *http.Request) {
	p := s.principal(r)
	vars := mux.Vars(r)

	if err := s.apps.RemoveBorrower(r.Context(), p, vars["id"], vars["bid"]); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"removed": vars["bid"]})
}

func (s *Server) handleSetRateLock(w http.ResponseWriter, r *http.Request) {
	p, ok := s.requireRole(w, r, auth.RoleLoanOfficer, auth.RoleUnderwriter, auth.RoleAdmin)
	if !ok {
		return
	}
	id := mux.Vars(r)["id"]

	var body struct {
		Rate string `json:"rate"`
		Days int    `json:"days"`
	}
	if !s.decodeBody(w, r, &body) {
		return
	}
	rate, err := decimal.NewFromString(body.Rate)
	if err != nil {
		s.writeJSON(w, http.StatusUnprocessableEntity, map[string]any{
			"error":  "validation_failed",
			"fields": map[string]string{"rate": "must be a number"},
		})
		return
	}

	lock, err := s.apps.SetRateLock(r.Context(), p, id, rate, body.Days)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, newRateLockDTO(lock))
}

func (s *Server) handleGetRateLock(w http.ResponseWriter, r *http.Request) {
	p := s.principal(r)
	lock, err := s.apps.ActiveRateLock(r.Context(), p, mux.Vars(r)["id"])
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, newRateLockDTO(lock))
}
