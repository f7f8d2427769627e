package documents

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/homelend/platform/internal/audit"
	"github.com/homelend/platform/internal/compliance"
	"github.com/homelend/platform/internal/domain"
	"github.com/homelend/platform/internal/storage"
	"github.com/homelend/platform/pkg/auth"
	"github.com/homelend/platform/pkg/llm"
)

// extractionResponse is the JSON shape the extraction prompt asks for.
type extractionResponse struct {
	Extractions []struct {
		FieldName  string  `json:"field_name"`
		FieldValue string  `json:"field_value"`
		Confidence float64 `json:"confidence"`
	} `json:"extractions"`
	QualityFlags    []string `json:"quality_flags"`
	DetectedDocType string   `json:"detected_doc_type"`
}

// extract is the background task spawned after an upload commits. It runs
// under its own deadline, detached from the uploading request; any failure
// lands on the document row as processing_failed and never reaches a user.
func (s *Service) extract(docID string) {
	ctx, cancel := context.WithTimeout(context.Background(), s.extractionTimeout)
	defer cancel()

	if err := s.runExtraction(ctx, docID); err != nil {
		s.logger.Error("document extraction failed", "document_id", docID, "error", err)
		s.failDocument(docID)
	}
}

func (s *Service) runExtraction(ctx context.Context, docID string) error {
	docRepo := storage.NewDocumentRepo(s.pool)
	doc, err := docRepo.GetByID(ctx, docID)
	if err != nil {
		return err
	}
	if doc.FilePath == nil {
		return fmt.Errorf("documents: no file path on %s", docID)
	}
	data, err := s.blobs.Get(ctx, *doc.FilePath)
	if err != nil {
		return fmt.Errorf("documents: download blob: %w", err)
	}

	messages := buildExtractionPrompt(doc, data)
	raw, err := s.llmClient.GetCompletion(ctx, messages)
	if err != nil {
		return fmt.Errorf("documents: completion: %w", err)
	}

	var parsed extractionResponse
	if err := json.Unmarshal([]byte(stripCodeFence(raw)), &parsed); err != nil {
		// Non-JSON output is the known failure mode; the document fails,
		// the process does not.
		return fmt.Errorf("documents: non-JSON extraction response: %w", err)
	}

	now := time.Now().UTC()
	flags := append([]string{}, parsed.QualityFlags...)
	var rows []domain.DocumentExtraction
	hmdaFields := map[string]string{}

	for _, e := range parsed.Extractions {
		name := strings.ToLower(strings.TrimSpace(e.FieldName))
		if domain.HmdaFields[name] {
			// Demographic fields never land in lending tables.
			hmdaFields[name] = e.FieldValue
			continue
		}
		flags = append(flags, FreshnessFlags(doc.DocType, name, e.FieldValue, now)...)
		rows = append(rows, domain.DocumentExtraction{
			DocumentID: doc.ID,
			FieldName:  name,
			FieldValue: e.FieldValue,
			Confidence: e.Confidence,
		})
	}

	if len(rows) > 0 {
		if err := docRepo.InsertExtractions(ctx, rows); err != nil {
			return err
		}
	}
	if len(hmdaFields) > 0 {
		s.routeHmdaFields(ctx, doc, hmdaFields)
	}
	if err := docRepo.UpdateStatus(ctx, doc.ID, domain.DocProcessingComplete, dedupe(flags)); err != nil {
		return err
	}

	if _, err := s.audit.Append(ctx, audit.Entry{
		EventType:     domain.EventDocumentProcessed,
		UserID:        "system",
		UserRole:      string(auth.RoleAdmin),
		ApplicationID: doc.ApplicationID,
		EventData: map[string]any{
			"document_id":       doc.ID,
			"status":            string(domain.DocProcessingComplete),
			"extraction_count":  len(rows),
			"hmda_field_count":  len(hmdaFields),
			"detected_doc_type": parsed.DetectedDocType,
			"quality_flags":     dedupe(flags),
		},
	}); err != nil {
		s.logger.Error("document audit append failed", "document_id", doc.ID, "error", err)
	}
	return nil
}

// routeHmdaFields upserts demographics extracted from the document into the
// compliance schema with document_extraction provenance. A routing failure
// is logged; the extraction itself still completes.
func (s *Service) routeHmdaFields(ctx context.Context, doc *domain.Document, fields map[string]string) {
	method := domain.MethodDocumentExtraction
	params := compliance.CollectParams{ApplicationID: doc.ApplicationID}
	if doc.BorrowerID != nil {
		params.BorrowerID = *doc.BorrowerID
	}
	if v, ok := fields["race"]; ok {
		params.Race, params.RaceMethod = &v, &method
	}
	if v, ok := fields["ethnicity"]; ok {
		params.Ethnicity, params.EthnicityMethod = &v, &method
	}
	if v, ok := fields["sex"]; ok {
		params.Sex, params.SexMethod = &v, &method
	}
	if v, ok := fields["age"]; ok {
		if age, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			params.Age, params.AgeMethod = &age, &method
		}
	}

	principal := workerPrincipal()
	if _, err := s.hmda.Collect(ctx, principal, params); err != nil {
		s.logger.Error("hmda routing failed", "document_id", doc.ID, "error", err)
	}
}

// failDocument marks the document processing_failed on a fresh context; the
// task context may already be past its deadline.
func (s *Service) failDocument(docID string) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := storage.NewDocumentRepo(s.pool).UpdateStatus(ctx, docID, domain.DocProcessingFailed, nil); err != nil {
		s.logger.Error("marking document failed", "document_id", docID, "error", err)
	}
}

// workerPrincipal is the identity extraction tasks act under.
func workerPrincipal() *auth.Principal {
	return &auth.Principal{
		UserID: "system",
		Role:   auth.RoleAdmin,
		Scope:  auth.ScopeForRole(auth.RoleAdmin, "system"),
	}
}

// buildExtractionPrompt selects a text or vision prompt. PDFs with a text
// layer go through as text; everything else is sent as an inline image.
func buildExtractionPrompt(doc *domain.Document, data []byte) []llm.Message {
	schema := fieldSchema(doc.DocType)
	instructions := fmt.Sprintf(
		`Extract structured fields from this %s document. Respond with JSON only:
{"extractions":[{"field_name":string,"field_value":string,"confidence":number}],"quality_flags":[string],"detected_doc_type":string}
Expected fields: %s`, doc.DocType, strings.Join(schema, ", "))

	if doc.ContentType == "application/pdf" && hasTextLayer(data) {
		return []llm.Message{
			llm.TextMessage("system", instructions),
			llm.TextMessage("user", extractPDFText(data)),
		}
	}

	encoded := base64.StdEncoding.EncodeToString(data)
	return []llm.Message{
		llm.TextMessage("system", instructions),
		{
			Role: "user",
			Content: []llm.ContentPart{
				{Type: "text", Text: "Extract the fields from this document image."},
				{Type: "image_url", ImageURL: &llm.ImageURL{
					URL: fmt.Sprintf("data:%s;base64,%s", doc.ContentType, encoded),
				}},
			},
		},
	}
}

// fieldSchema lists the extraction targets per document class.
func fieldSchema(docType domain.DocType) []string {
	switch docType {
	case domain.DocTypeW2:
		return []string{"employer_name", "employee_name", "wages", "tax_year", "federal_tax_withheld"}
	case domain.DocTypePayStub:
		return []string{"employer_name", "employee_name", "gross_pay", "net_pay", "pay_period_end"}
	case domain.DocTypeBankStatement:
		return []string{"bank_name", "account_holder", "ending_balance", "statement_period_end"}
	case domain.DocTypeTaxReturn:
		return []string{"filer_name", "tax_year", "adjusted_gross_income", "total_tax"}
	case domain.DocTypeProfitAndLoss:
		return []string{"business_name", "period", "gross_revenue", "net_income"}
	case domain.DocTypeID:
		return []string{"full_name", "date_of_birth", "id_number", "expiration_date"}
	case domain.DocTypeAwardLetter:
		return []string{"recipient_name", "monthly_benefit", "effective_date"}
	default:
		return []string{"document_date", "names", "amounts"}
	}
}

// hasTextLayer is a cheap check for an embedded font, which PDFs produced by
// scanners lack.
func hasTextLayer(data []byte) bool {
	return bytes.Contains(data, []byte("/Font"))
}

// extractPDFText pulls the printable runs out of the raw PDF bytes. Crude,
// but the model only needs the visible strings.
func extractPDFText(data []byte) string {
	var b strings.Builder
	run := make([]byte, 0, 64)
	flush := func() {
		if len(run) >= 4 {
			b.Write(run)
			b.WriteByte(' ')
		}
		run = run[:0]
	}
	for _, c := range data {
		if c >= 0x20 && c < 0x7f {
			run = append(run, c)
		} else {
			flush()
		}
	}
	flush()
	text := b.String()
	if len(text) > 32000 {
		text = text[:32000]
	}
	return text
}

// stripCodeFence unwraps a ```json ... ``` block if the model added one.
func stripCodeFence(raw string) string {
	trimmed := strings.TrimSpace(raw)
	if !strings.HasPrefix(trimmed, "```") {
		return trimmed
	}
	trimmed = strings.TrimPrefix(trimmed, "```")
	if idx := strings.Index(trimmed, "\n"); idx >= 0 {
		trimmed = trimmed[idx+1:]
	}
	trimmed = strings.TrimSuffix(strings.TrimSpace(trimmed), "```")
	return strings.TrimSpace(trimmed)
}

func dedupe(in []string) []string {
	seen := map[string]bool{}
	var out []string
	for _, v := range in {
		if v == "" || seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
	}
	return out
}
