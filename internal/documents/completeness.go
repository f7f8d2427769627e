package documents

import (
	"context"

	"github.com/homelend/platform/internal/applications"
	"github.com/homelend/platform/internal/domain"
	"github.com/homelend/platform/internal/storage"
	"github.com/homelend/platform/pkg/auth"
)

// Requirement is one row of a completeness report.
type Requirement struct {
	DocType      domain.DocType `json:"doc_type"`
	IsProvided   bool           `json:"is_provided"`
	Status       *string        `json:"status,omitempty"`
	QualityFlags []string       `json:"quality_flags,omitempty"`
}

// CompletenessReport evaluates the requirement matrix against uploaded
// documents.
type CompletenessReport struct {
	ApplicationID string        `json:"application_id"`
	RequiredCount int           `json:"required_count"`
	ProvidedCount int           `json:"provided_count"`
	IsComplete    bool          `json:"is_complete"`
	Requirements  []Requirement `json:"requirements"`
}

// CheckCompleteness resolves the requirement matrix for the file and checks
// each required class against the newest non-rejected upload of that type.
func (s *Service) CheckCompleteness(ctx context.Context, p *auth.Principal, appID string) (*CompletenessReport, error) {
	appRepo := storage.NewApplicationRepo(s.pool)
	app, err := appRepo.GetScoped(ctx, appID, p.Scope)
	if err != nil {
		return nil, err
	}
	primary, err := appRepo.PrimaryBorrower(ctx, appID)
	if err != nil {
		return nil, err
	}

	required := RequiredDocTypes(app.LoanType, primary.EmploymentStatus)
	docRepo := storage.NewDocumentRepo(s.pool)

	report := &CompletenessReport{
		ApplicationID: appID,
		RequiredCount: len(required),
	}
	for _, docType := range required {
		req := Requirement{DocType: docType}
		doc, err := docRepo.LatestByType(ctx, appID, docType)
		switch {
		case err == nil:
			// LatestByType skips rejected rows, so any hit counts.
			status := string(doc.Status)
			req.Status = &status
			req.QualityFlags = doc.QualityFlags
			req.IsProvided = true
		case err != domain.ErrNotFound:
			return nil, err
		}
		if req.IsProvided {
			report.ProvidedCount++
		}
		report.Requirements = append(report.Requirements, req)
	}
	report.IsComplete = report.ProvidedCount == report.RequiredCount
	return report, nil
}

// MissingDocTypes reports the required document classes not yet provided.
// It satisfies the compliance engine's DocEvaluator without exposing the
// full report.
func (s *Service) MissingDocTypes(ctx context.Context, appID string) ([]string, error) {
	report, err := s.CheckCompleteness(ctx, workerPrincipal(), appID)
	if err != nil {
		return nil, err
	}
	var missing []string
	for _, req := range report.Requirements {
		if !req.IsProvided {
			missing = append(missing, string(req.DocType))
		}
	}
	return missing, nil
}

// StatusChecker adapts the completeness report to the application status
// endpoint's smaller interface.
type StatusChecker struct {
	Docs *Service
}

// CheckCompleteness satisfies applications.CompletenessChecker.
func (c StatusChecker) CheckCompleteness(ctx context.Context, appID string) (*applications.CompletenessSummary, error) {
	report, err := c.Docs.CheckCompleteness(ctx, workerPrincipal(), appID)
	if err != nil {
		return nil, err
	}
	summary := &applications.CompletenessSummary{
		RequiredCount: report.RequiredCount,
		ProvidedCount: report.ProvidedCount,
		IsComplete:    report.IsComplete,
	}
	for _, req := range report.Requirements {
		if !req.IsProvided {
			summary.MissingTypes = append(summary.MissingTypes, req.DocType)
		}
	}
	return summary, nil
}
