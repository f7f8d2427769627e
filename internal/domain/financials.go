package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// ApplicationFinancials is the per-(application, borrower) financial
// snapshot. Unique on (application, borrower).
type ApplicationFinancials struct {
	ID                 string
	ApplicationID      string
	BorrowerID         string
	GrossMonthlyIncome *decimal.Decimal
	MonthlyDebts       *decimal.Decimal
	TotalAssets        *decimal.Decimal
	CreditScore        *int
	DTIRatio           *decimal.Decimal // derived, scale 4
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// AggregateDTI computes the file-level debt-to-income ratio across all
// financials rows: Σdebts / Σincome. It returns nil when the income sum is
// zero or when no row carries both inputs — never a division error.
func AggregateDTI(rows []ApplicationFinancials) *decimal.Decimal {
	income := decimal.Zero
	debts := decimal.Zero
	seen := false
	for _, row := range rows {
		if row.GrossMonthlyIncome != nil {
			income = income.Add(*row.GrossMonthlyIncome)
			seen = true
		}
		if row.MonthlyDebts != nil {
			debts = debts.Add(*row.MonthlyDebts)
		}
	}
	if !seen || income.IsZero() {
		return nil
	}
	dti := debts.Div(income).Round(4)
	return &dti
}

// RateLock pins an interest rate for an application until expiration.
type RateLock struct {
	ID             string
	ApplicationID  string
	LockedRate     decimal.Decimal // decimal(5,3)
	LockDate       time.Time
	ExpirationDate time.Time
	IsActive       bool
	CreatedAt      time.Time
}

// Active reports whether the lock is in force at the given instant:
// is_active AND now before expiration.
func (r *RateLock) Active(now time.Time) bool {
	return r.IsActive && now.Before(r.ExpirationDate)
}
