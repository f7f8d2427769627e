package compliance

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/homelend/platform/internal/audit"
	"github.com/homelend/platform/internal/domain"
	"github.com/homelend/platform/internal/storage"
	"github.com/homelend/platform/pkg/auth"
)

// SnapshotLoanData copies the file's financials and loan metadata into
// hmda.loan_data at underwriting submission. The upsert is keyed on the
// application, so resubmission refreshes the snapshot in place.
func (s *HmdaService) SnapshotLoanData(ctx context.Context, p *auth.Principal, appID string) (*domain.HmdaLoanData, error) {
	app, err := storage.NewApplicationRepo(s.lendingPool).GetScoped(ctx, appID, p.Scope)
	if err != nil {
		return nil, err
	}
	finRows, err := storage.NewFinancialsRepo(s.lendingPool).ListByApplication(ctx, appID)
	if err != nil {
		return nil, err
	}

	data := &domain.HmdaLoanData{ApplicationID: appID}
	data.DTIRatio = domain.AggregateDTI(finRows)

	var income decimal.Decimal
	var hasIncome bool
	for _, row := range finRows {
		if row.GrossMonthlyIncome != nil {
			income = income.Add(*row.GrossMonthlyIncome)
			hasIncome = true
		}
		if row.CreditScore != nil && data.CreditScore == nil {
			data.CreditScore = row.CreditScore
		}
	}
	if hasIncome {
		data.GrossMonthlyIncome = &income
	}
	if app.LoanType != nil {
		lt := string(*app.LoanType)
		data.LoanType = &lt
	}
	purpose := "purchase"
	data.LoanPurpose = &purpose
	data.PropertyLocation = app.PropertyAddress

	lock, err := storage.NewRateLockRepo(s.lendingPool).ActiveLock(ctx, appID)
	switch {
	case err == nil:
		data.InterestRate = &lock.LockedRate
	case err != domain.ErrNotFound:
		return nil, err
	}

	isUpdate, err := storage.NewHmdaRepo(s.compliancePool).SaveLoanData(ctx, data)
	if err != nil {
		return nil, err
	}

	captured, nulls := snapshotFieldNames(data)
	_, err = s.audit.Append(ctx, audit.Entry{
		EventType:     domain.EventHmdaLoanDataSnapshot,
		UserID:        p.UserID,
		UserRole:      string(p.Role),
		ApplicationID: appID,
		EventData: map[string]any{
			"captured_fields": captured,
			"null_fields":     nulls,
			"is_update":       isUpdate,
		},
	})
	if err != nil {
		return nil, err
	}
	return data, nil
}

func snapshotFieldNames(d *domain.HmdaLoanData) (captured, nulls []string) {
	record := func(name string, set bool) {
		if set {
			captured = append(captured, name)
		} else {
			nulls = append(nulls, name)
		}
	}
	record("gross_monthly_income", d.GrossMonthlyIncome != nil)
	record("dti_ratio", d.DTIRatio != nil)
	record("credit_score", d.CreditScore != nil)
	record("loan_type", d.LoanType != nil)
	record("loan_purpose", d.LoanPurpose != nil)
	record("property_location", d.PropertyLocation != nil)
	record("interest_rate", d.InterestRate != nil)
	record("total_fees", d.TotalFees != nil)
	return captured, nulls
}
