package compliance

import (
	"context"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/homelend/platform/internal/audit"
	"github.com/homelend/platform/internal/domain"
	"github.com/homelend/platform/internal/storage"
	"github.com/homelend/platform/pkg/auth"
)

// DocEvaluator reports which required document types are still missing.
// The document service implements it; an interface keeps the dependency
// one-directional.
type DocEvaluator interface {
	MissingDocTypes(ctx context.Context, appID string) ([]string, error)
}

// Report is the combined verdict of every check.
type Report struct {
	ApplicationID string        `json:"application_id"`
	Checks        []CheckResult `json:"checks"`
	OverallStatus CheckStatus   `json:"overall_status"`
	CanProceed    bool          `json:"can_proceed"`
	CheckedAt     time.Time     `json:"checked_at"`
}

// Runner assembles check inputs from the lending schema and records the
// combined verdict on the audit chain.
type Runner struct {
	lendingPool *pgxpool.Pool
	audit       *audit.Service
	docs        DocEvaluator
	logger      *slog.Logger
}

// NewRunner wires the compliance runner. docs may be attached later.
func NewRunner(lendingPool *pgxpool.Pool, auditSvc *audit.Service, logger *slog.Logger) *Runner {
	return &Runner{lendingPool: lendingPool, audit: auditSvc, logger: logger}
}

// AttachDocEvaluator injects the document-completeness dependency.
func (r *Runner) AttachDocEvaluator(d DocEvaluator) { r.docs = d }

// RunAll executes every check against the application and writes one
// compliance_check audit event with the combined verdict. The overall status
// is the worst individual status; approval may proceed unless it is FAIL.
func (r *Runner) RunAll(ctx context.Context, p *auth.Principal, appID string) (*Report, error) {
	app, err := storage.NewApplicationRepo(r.lendingPool).GetScoped(ctx, appID, p.Scope)
	if err != nil {
		return nil, err
	}

	in, err := r.assembleInput(ctx, app)
	if err != nil {
		return nil, err
	}

	report := &Report{
		ApplicationID: appID,
		OverallStatus: StatusPass,
		CheckedAt:     time.Now().UTC(),
	}
	report.Checks = append(report.Checks, CheckECOA(in))
	report.Checks = append(report.Checks, CheckATRQM(in))
	report.Checks = append(report.Checks, CheckTRID(in)...)

	for _, c := range report.Checks {
		report.OverallStatus = Worse(report.OverallStatus, c.Status)
	}
	report.CanProceed = report.OverallStatus != StatusFail

	checks := make([]map[string]any, 0, len(report.Checks))
	for _, c := range report.Checks {
		checks = append(checks, map[string]any{
			"name":    c.Name,
			"status":  string(c.Status),
			"details": c.Details,
		})
	}
	_, err = r.audit.Append(ctx, audit.Entry{
		EventType:     domain.EventComplianceCheck,
		UserID:        p.UserID,
		UserRole:      string(p.Role),
		ApplicationID: appID,
		EventData: map[string]any{
			"checks":         checks,
			"overall_status": string(report.OverallStatus),
			"can_proceed":    report.CanProceed,
		},
	})
	if err != nil {
		return nil, err
	}
	return report, nil
}

func (r *Runner) assembleInput(ctx context.Context, app *domain.Application) (Input, error) {
	in := Input{
		AppCreated:     app.CreatedAt,
		LEDeliveryDate: app.LEDeliveryDate,
		CDDeliveryDate: app.CDDeliveryDate,
		ClosingDate:    app.ClosingDate,
		DocsComplete:   true,
	}

	finRows, err := storage.NewFinancialsRepo(r.lendingPool).ListByApplication(ctx, app.ID)
	if err != nil {
		return in, err
	}
	in.DTI = domain.AggregateDTI(finRows)

	if r.docs != nil {
		missing, err := r.docs.MissingDocTypes(ctx, app.ID)
		if err != nil {
			return in, err
		}
		in.MissingDocTypes = missing
		in.DocsComplete = len(missing) == 0
	}
	return in, nil
}
