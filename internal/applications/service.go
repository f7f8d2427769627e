// Package applications implements the loan-application lifecycle: intake,
// incremental field save, stage transitions, borrower management, and rate
// locks. Every mutation commits alongside its audit event in one transaction.
package applications

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/homelend/platform/internal/audit"
	"github.com/homelend/platform/internal/domain"
	"github.com/homelend/platform/internal/events"
	"github.com/homelend/platform/internal/storage"
	"github.com/homelend/platform/pkg/auth"
	"github.com/homelend/platform/pkg/postgres"
)

// CompletenessChecker reports document completeness for the status endpoint.
type CompletenessChecker interface {
	CheckCompleteness(ctx context.Context, appID string) (*CompletenessSummary, error)
}

// CompletenessSummary is the slice of completeness the status endpoint needs.
type CompletenessSummary struct {
	RequiredCount int
	ProvidedCount int
	IsComplete    bool
	MissingTypes  []domain.DocType
}

// Service owns application lifecycle operations.
type Service struct {
	pool         *pgxpool.Pool
	audit        *audit.Service
	publisher    *events.Publisher
	completeness CompletenessChecker
	logger       *slog.Logger
}

// NewService wires the application service. completeness may be nil until the
// document service is attached.
func NewService(pool *pgxpool.Pool, auditSvc *audit.Service, publisher *events.Publisher, logger *slog.Logger) *Service {
	return &Service{pool: pool, audit: auditSvc, publisher: publisher, logger: logger}
}

// AttachCompleteness injects the document-completeness dependency after both
// services exist.
func (s *Service) AttachCompleteness(c CompletenessChecker) { s.completeness = c }

// CreateParams is the REST create body. All fields are optional; provided
// ones go through the intake validators.
type CreateParams struct {
	LoanType        *string
	PropertyAddress *string
	LoanAmount      any
	PropertyValue   any
}

// Create opens a new application for the principal. Unlike StartApplication
// it always creates: repeated calls yield separate applications sharing one
// borrower identity. An application created with loan details starts at the
// application stage; a bare create starts at inquiry.
func (s *Service) Create(ctx context.Context, p *auth.Principal, params CreateParams) (*domain.Application, error) {
	fields := map[string]any{}
	errs := map[string]string{}
	collect := func(name string, raw any) {
		if raw == nil {
			return
		}
		normalized, msg := domain.ValidateIntakeField(name, raw)
		if msg != "" {
			errs[name] = msg
			return
		}
		fields[name] = normalized
	}
	if params.LoanType != nil {
		collect("loan_type", *params.LoanType)
	}
	if params.PropertyAddress != nil {
		collect("property_address", *params.PropertyAddress)
	}
	collect("loan_amount", params.LoanAmount)
	collect("property_value", params.PropertyValue)
	if len(errs) > 0 {
		return nil, &domain.ValidationError{Fields: errs}
	}

	stage := domain.StageInquiry
	if len(fields) > 0 {
		stage = domain.StageApplication
	}

	var app *domain.Application
	err := postgres.WithTransaction(ctx, s.pool, func(tx pgx.Tx) error {
		appRepo := storage.NewApplicationRepo(tx)
		borrowerRepo := storage.NewBorrowerRepo(tx)

		borrower, err := borrowerRepo.EnsureForSubject(ctx, p.UserID, p.Email, p.Name)
		if err != nil {
			return err
		}

		app = &domain.Application{Stage: stage}
		applyApplicationFields(app, fields)
		if err := appRepo.Create(ctx, app); err != nil {
			return err
		}
		if err := appRepo.AddBorrower(ctx, app.ID, borrower.ID, true); err != nil {
			return err
		}

		_, err = s.audit.AppendTx(ctx, tx, audit.Entry{
			EventType:     domain.EventApplicationCreated,
			UserID:        p.UserID,
			UserRole:      string(p.Role),
			ApplicationID: app.ID,
			EventData: map[string]any{
				"stage":  string(app.Stage),
				"fields": fieldNames(fields),
			},
		})
		return err
	})
	if err != nil {
		return nil, err
	}

	s.publisher.Publish(ctx, events.TopicApplications, "application.created", "application", app.ID,
		map[string]any{"stage": string(app.Stage)})
	return app, nil
}

// StartApplication is the idempotent intake entry point used by the chat
// surface. An existing non-terminal application for the principal is returned
// with isNew=false; otherwise a fresh inquiry-stage application is created.
func (s *Service) StartApplication(ctx context.Context, p *auth.Principal) (app *domain.Application, isNew bool, err error) {
	existing, err := storage.NewApplicationRepo(s.pool).LatestNonTerminalForSubject(ctx, p.UserID)
	switch {
	case err == nil:
		return existing, false, nil
	case err != domain.ErrNotFound:
		return nil, false, err
	}

	app, err = s.Create(ctx, p, CreateParams{})
	if err != nil {
		return nil, false, err
	}
	return app, true, nil
}

// Get returns an application the principal's scope may observe.
func (s *Service) Get(ctx context.Context, p *auth.Principal, id string) (*domain.Application, error) {
	return storage.NewApplicationRepo(s.pool).GetScoped(ctx, id, p.Scope)
}

// List returns a scoped page of applications plus the total count.
func (s *Service) List(ctx context.Context, p *auth.Principal, offset, limit int) ([]domain.Application, int, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	return storage.NewApplicationRepo(s.pool).ListScoped(ctx, p.Scope, offset, limit)
}

// Borrowers returns an application's borrowers, primary first, after a scope
// check.
func (s *Service) Borrowers(ctx context.Context, p *auth.Principal, id string) ([]domain.Borrower, []domain.ApplicationBorrower, error) {
	if _, err := s.Get(ctx, p, id); err != nil {
		return nil, nil, err
	}
	return storage.NewApplicationRepo(s.pool).Borrowers(ctx, id)
}

// Correction records an intake field overwrite.
type Correction struct {
	Old any `json:"old"`
	New any `json:"new"`
}

// UpdateResult reports the outcome of an incremental field save.
type UpdateResult struct {
	Updated     []string              `json:"updated"`
	Errors      map[string]string     `json:"errors"`
	Remaining   []string              `json:"remaining"`
	Corrections map[string]Correction `json:"corrections"`
}

// UpdateFields validates and saves a sparse field map across the application,
// its primary borrower, and that borrower's financials. Valid fields are
// applied even when sibling fields fail; the per-field error map carries the
// failures. DTI is recomputed whenever income and debts are both known.
func (s *Service) UpdateFields(ctx context.Context, p *auth.Principal, appID string, raw map[string]any) (*UpdateResult, error) {
	if len(raw) == 0 {
		return nil, &domain.ValidationError{Fields: map[string]string{"fields": "at least one field is required"}}
	}

	result := &UpdateResult{
		Errors:      map[string]string{},
		Corrections: map[string]Correction{},
	}

	err := postgres.WithTransaction(ctx, s.pool, func(tx pgx.Tx) error {
		appRepo := storage.NewApplicationRepo(tx)
		borrowerRepo := storage.NewBorrowerRepo(tx)
		finRepo := storage.NewFinancialsRepo(tx)

		app, err := appRepo.GetScoped(ctx, appID, p.Scope)
		if err != nil {
			return err
		}
		if app.IsTerminal() {
			return domain.NewPreconditionError("terminal_stage",
				"application in stage %s accepts no further changes", app.Stage)
		}
		primary, err := appRepo.PrimaryBorrower(ctx, appID)
		if err != nil {
			return err
		}
		finRows, err := finRepo.ListByApplication(ctx, appID)
		if err != nil {
			return err
		}
		fin := financialsFor(finRows, primary.ID)

		current := currentFieldValues(app, primary, fin)

		appFields := map[string]any{}
		borrowerFields := map[string]any{}
		finUpdate := &domain.ApplicationFinancials{ApplicationID: appID, BorrowerID: primary.ID}
		finTouched := false

		for name, value := range raw {
			if !domain.KnownIntakeField(name) {
				result.Errors[name] = fmt.Sprintf("unknown field %q", name)
				continue
			}
			normalized, msg := domain.ValidateIntakeField(name, value)
			if msg != "" {
				result.Errors[name] = msg
				continue
			}
			if old, set := current[name]; set && !sameFieldValue(old, normalized) {
				result.Corrections[name] = Correction{Old: old, New: normalized}
			}
			switch name {
			case "loan_type", "property_address", "loan_amount", "property_value",
				"le_delivery_date", "cd_delivery_date", "closing_date":
				appFields[name] = normalized
			case "first_name", "last_name", "email", "ssn", "date_of_birth", "employment_status":
				borrowerFields[name] = normalized
			case "gross_monthly_income":
				d := normalized.(decimal.Decimal)
				finUpdate.GrossMonthlyIncome = &d
				finTouched = true
			case "monthly_debts":
				d := normalized.(decimal.Decimal)
				finUpdate.MonthlyDebts = &d
				finTouched = true
			case "total_assets":
				d := normalized.(decimal.Decimal)
				finUpdate.TotalAssets = &d
				finTouched = true
			case "credit_score":
				n := normalized.(int)
				finUpdate.CreditScore = &n
				finTouched = true
			}
			result.Updated = append(result.Updated, name)
			current[name] = normalized
		}

		if len(appFields) > 0 {
			if err := appRepo.UpdateFields(ctx, appID, appFields); err != nil {
				return err
			}
		}
		if len(borrowerFields) > 0 {
			if err := borrowerRepo.UpdateFields(ctx, primary.ID, borrowerFields); err != nil {
				return err
			}
		}
		if finTouched {
			if err := finRepo.Upsert(ctx, finUpdate); err != nil {
				return err
			}
			if err := s.recomputeDTI(ctx, finRepo, appID, primary.ID); err != nil {
				return err
			}
		}

		for _, name := range domain.IntakeFields {
			if _, set := current[name]; !set {
				result.Remaining = append(result.Remaining, name)
			}
		}

		if len(result.Updated) == 0 {
			// Nothing valid to persist; skip the audit row and roll back.
			return errNoValidFields
		}
		_, err = s.audit.AppendTx(ctx, tx, audit.Entry{
			EventType:     domain.EventFieldsUpdated,
			UserID:        p.UserID,
			UserRole:      string(p.Role),
			ApplicationID: appID,
			EventData: map[string]any{
				"updated":    result.Updated,
				"corrected":  fieldNamesOfCorrections(result.Corrections),
				"error_keys": fieldNamesOfErrors(result.Errors),
			},
		})
		return err
	})
	if err == errNoValidFields {
		return result, nil
	}
	if err != nil {
		return nil, err
	}
	return result, nil
}

var errNoValidFields = fmt.Errorf("applications: no valid fields")

// recomputeDTI refreshes the primary row's derived DTI from every financials
// row on the file.
func (s *Service) recomputeDTI(ctx context.Context, finRepo *storage.FinancialsRepo, appID, borrowerID string) error {
	rows, err := finRepo.ListByApplication(ctx, appID)
	if err != nil {
		return err
	}
	dti := domain.AggregateDTI(rows)
	if dti == nil {
		return nil
	}
	return finRepo.Upsert(ctx, &domain.ApplicationFinancials{
		ApplicationID: appID,
		BorrowerID:    borrowerID,
		DTIRatio:      dti,
	})
}

func applyApplicationFields(app *domain.Application, fields map[string]any) {
	if v, ok := fields["loan_type"]; ok {
		lt := v.(domain.LoanType)
		app.LoanType = &lt
	}
	if v, ok := fields["property_address"]; ok {
		addr := v.(string)
		app.PropertyAddress = &addr
	}
	if v, ok := fields["loan_amount"]; ok {
		d := v.(decimal.Decimal)
		app.LoanAmount = &d
	}
	if v, ok := fields["property_value"]; ok {
		d := v.(decimal.Decimal)
		app.PropertyValue = &d
	}
	if v, ok := fields["le_delivery_date"]; ok {
		t := v.(time.Time)
		app.LEDeliveryDate = &t
	}
	if v, ok := fields["cd_delivery_date"]; ok {
		t := v.(time.Time)
		app.CDDeliveryDate = &t
	}
	if v, ok := fields["closing_date"]; ok {
		t := v.(time.Time)
		app.ClosingDate = &t
	}
}

// currentFieldValues snapshots the intake fields that already hold a value,
// for correction tracking and remaining-field reporting.
func currentFieldValues(app *domain.Application, b *domain.Borrower, fin *domain.ApplicationFinancials) map[string]any {
	current := map[string]any{}
	if app.LoanType != nil {
		current["loan_type"] = *app.LoanType
	}
	if app.PropertyAddress != nil {
		current["property_address"] = *app.PropertyAddress
	}
	if app.LoanAmount != nil {
		current["loan_amount"] = *app.LoanAmount
	}
	if app.PropertyValue != nil {
		current["property_value"] = *app.PropertyValue
	}
	if app.LEDeliveryDate != nil {
		current["le_delivery_date"] = *app.LEDeliveryDate
	}
	if app.CDDeliveryDate != nil {
		current["cd_delivery_date"] = *app.CDDeliveryDate
	}
	if app.ClosingDate != nil {
		current["closing_date"] = *app.ClosingDate
	}
	if b.FirstName != "" {
		current["first_name"] = b.FirstName
	}
	if b.LastName != "" {
		current["last_name"] = b.LastName
	}
	if b.Email != "" {
		current["email"] = b.Email
	}
	if b.SSN != nil {
		current["ssn"] = *b.SSN
	}
	if b.DateOfBirth != nil {
		current["date_of_birth"] = *b.DateOfBirth
	}
	if b.EmploymentStatus != nil {
		current["employment_status"] = *b.EmploymentStatus
	}
	if fin != nil {
		if fin.GrossMonthlyIncome != nil {
			current["gross_monthly_income"] = *fin.GrossMonthlyIncome
		}
		if fin.MonthlyDebts != nil {
			current["monthly_debts"] = *fin.MonthlyDebts
		}
		if fin.TotalAssets != nil {
			current["total_assets"] = *fin.TotalAssets
		}
		if fin.CreditScore != nil {
			current["credit_score"] = *fin.CreditScore
		}
	}
	return current
}

func financialsFor(rows []domain.ApplicationFinancials, borrowerID string) *domain.ApplicationFinancials {
	for i := range rows {
		if rows[i].BorrowerID == borrowerID {
			return &rows[i]
		}
	}
	return nil
}

func sameFieldValue(a, b any) bool {
	if da, ok := a.(decimal.Decimal); ok {
		if db, ok := b.(decimal.Decimal); ok {
			return da.Equal(db)
		}
	}
	return fmt.Sprintf("%v", a) == fmt.Sprintf("%v", b)
}

func fieldNames(m map[string]any) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}

func fieldNamesOfCorrections(m map[string]Correction) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}

func fieldNamesOfErrors(m map[string]string) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}
