package rest

import (
	"io"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/homelend/platform/internal/documents"
	"github.com/homelend/platform/internal/domain"
	"github.com/homelend/platform/pkg/auth"
)

func (s *Server) handleUploadDocument(w http.ResponseWriter, r *http.Request) {
	p := s.principal(r)
	id := mux.Vars(r)["id"]

	r.Body = http.MaxBytesReader(w, r.Body, documents.MaxUploadBytes+1)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		s.writeError(w, r, domain.ErrPayloadTooLarge)
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		s.writeJSON(w, http.StatusBadRequest, map[string]any{"error": "bad_request", "message": "multipart field 'file' is required"})
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	contentType := header.Header.Get("Content-Type")
	params := documents.UploadParams{
		DocType:     domain.DocType(r.FormValue("doc_type")),
		FileName:    header.Filename,
		ContentType: contentType,
		Data:        data,
	}
	if cid := r.FormValue("condition_id"); cid != "" {
		params.ConditionID = &cid
	}

	doc, err := s.docs.Upload(r.Context(), p, id, params)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, newDocumentDTO(doc, p.Scope))
}

func (s *Server) handleListDocuments(w http.ResponseWriter, r *http.Request) {
	p := s.principal(r)
	docs, err := s.docs.List(r.Context(), p, mux.Vars(r)["id"])
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	dtos := make([]documentDTO, 0, len(docs))
	for i := range docs {
		dtos = append(dtos, newDocumentDTO(&docs[i], p.Scope))
	}
	s.writeJSON(w, http.StatusOK, dtos)
}

func (s *Server) handleGetDocument(w http.ResponseWriter, r *http.Request) {
	p := s.principal(r)
	vars := mux.Vars(r)
	doc, err := s.docs.Get(r.Context(), p, vars["id"], vars["did"])
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, newDocumentDTO(doc, p.Scope))
}

func (s *Server) handleDocumentContent(w http.ResponseWriter, r *http.Request) {
	p := s.principal(r)
	if p.Scope.DocumentMetadataOnly {
		s.writeJSON(w, http.StatusForbidden, map[string]any{"error": "forbidden"})
		return
	}
	vars := mux.Vars(r)

	data, contentType, err := s.docs.Content(r.Context(), p, vars["id"], vars["did"])
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(data); err != nil {
		s.logger.Error("content write failed", "error", err)
	}
}

func (s *Server) handleExtractions(w http.ResponseWriter, r *http.Request) {
	p := s.principal(r)
	vars := mux.Vars(r)
	extractions, err := s.docs.Extractions(r.Context(), p, vars["id"], vars["did"])
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	type extractionDTO struct {
		FieldName  string  `json:"field_name"`
		FieldValue string  `json:"field_value"`
		Confidence float64 `json:"confidence"`
	}
	dtos := make([]extractionDTO, 0, len(extractions))
	for _, e := range extractions {
		dtos = append(dtos, extractionDTO{FieldName: e.FieldName, FieldValue: e.FieldValue, Confidence: e.Confidence})
	}
	s.writeJSON(w, http.StatusOK, dtos)
}

func (s *Server) handleReviewDocument(w http.ResponseWriter, r *http.Request) {
	p, ok := s.requireRole(w, r, auth.RoleLoanOfficer, auth.RoleAdmin)
	if !ok {
		return
	}
	vars := mux.Vars(r)

	var body struct {
		Status string `json:"status"`
		Note   string `json:"note"`
	}
	if !s.decodeBody(w, r, &body) {
		return
	}
	if body.Status == "" {
		s.writeJSON(w, http.StatusBadRequest, map[string]any{"error": "bad_request", "message": "status is required"})
		return
	}

	doc, err := s.docs.Triage(r.Context(), p, vars["id"], vars["did"], documents.TriageParams{
		Status: domain.DocumentStatus(body.Status),
		Note:   body.Note,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, newDocumentDTO(doc, p.Scope))
}

func (s *Server) handleCompleteness(w http.ResponseWriter, r *http.Request) {
	p := s.principal(r)
	report, err := s.docs.CheckCompleteness(r.Context(), p, mux.Vars(r)["id"])
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, report)
}
