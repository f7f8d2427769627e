package storage

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/homelend/platform/internal/domain"
	"github.com/homelend/platform/pkg/postgres"
)

// FinancialsRepo persists per-(application, borrower) financial snapshots.
type FinancialsRepo struct {
	db postgres.Querier
}

// NewFinancialsRepo creates a repository over a pool or transaction.
func NewFinancialsRepo(db postgres.Querier) *FinancialsRepo {
	return &FinancialsRepo{db: db}
}

// Upsert writes the financial snapshot for one borrower on one application.
// Only non-nil fields overwrite stored values; dti_ratio is always recomputed
// by the caller and written through.
func (r *FinancialsRepo) Upsert(ctx context.Context, f *domain.ApplicationFinancials) error {
	row := r.db.QueryRow(ctx, `
		INSERT INTO application_financials
			(application_id, borrower_id, gross_monthly_income, monthly_debts, total_assets, credit_score, dti_ratio)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (application_id, borrower_id) DO UPDATE SET
			gross_monthly_income = COALESCE(EXCLUDED.gross_monthly_income, application_financials.gross_monthly_income),
			monthly_debts        = COALESCE(EXCLUDED.monthly_debts, application_financials.monthly_debts),
			total_assets         = COALESCE(EXCLUDED.total_assets, application_financials.total_assets),
			credit_score         = COALESCE(EXCLUDED.credit_score, application_financials.credit_score),
			dti_ratio            = COALESCE(EXCLUDED.dti_ratio, application_financials.dti_ratio),
			updated_at           = now()
		RETURNING id, created_at, updated_at`,
		f.ApplicationID, f.BorrowerID,
		decimalArg(f.GrossMonthlyIncome), decimalArg(f.MonthlyDebts), decimalArg(f.TotalAssets),
		f.CreditScore, decimalArg(f.DTIRatio),
	)
	if err := row.Scan(&f.ID, &f.CreatedAt, &f.UpdatedAt); err != nil {
		return fmt.Errorf("storage: upsert financials: %w", err)
	}
	return nil
}

// ListByApplication returns all financial rows for an application.
func (r *FinancialsRepo) ListByApplication(ctx context.Context, appID string) ([]domain.ApplicationFinancials, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, application_id, borrower_id, gross_monthly_income, monthly_debts,
		       total_assets, credit_score, dti_ratio, created_at, updated_at
		FROM application_financials
		WHERE application_id = $1
		ORDER BY created_at`, appID)
	if err != nil {
		return nil, fmt.Errorf("storage: list financials: %w", err)
	}
	defer rows.Close()

	var out []domain.ApplicationFinancials
	for rows.Next() {
		var f domain.ApplicationFinancials
		var income, debts, assets, dti decimal.NullDecimal
		if err := rows.Scan(
			&f.ID, &f.ApplicationID, &f.BorrowerID, &income, &debts,
			&assets, &f.CreditScore, &dti, &f.CreatedAt, &f.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("storage: scan financials: %w", err)
		}
		f.GrossMonthlyIncome = nullDecimalPtr(income)
		f.MonthlyDebts = nullDecimalPtr(debts)
		f.TotalAssets = nullDecimalPtr(assets)
		f.DTIRatio = nullDecimalPtr(dti)
		out = append(out, f)
	}
	return out, rows.Err()
}

func nullDecimalPtr(d decimal.NullDecimal) *decimal.Decimal {
	if !d.Valid {
		return nil
	}
	return &d.Decimal
}
