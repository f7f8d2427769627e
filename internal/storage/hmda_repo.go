package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/homelend/platform/internal/domain"
	"github.com/homelend/platform/pkg/postgres"
)

// HmdaRepo persists fair-lending data in the isolated hmda schema. It must
// only ever be constructed over the compliance pool; the compliance role is
// the only one granted write access to hmda tables.
type HmdaRepo struct {
	db postgres.Querier
}

// NewHmdaRepo creates a repository over the compliance pool or one of its
// transactions.
func NewHmdaRepo(db postgres.Querier) *HmdaRepo {
	return &HmdaRepo{db: db}
}

// GetDemographic returns the demographic row for (application, borrower),
// or ErrNotFound.
func (r *HmdaRepo) GetDemographic(ctx context.Context, appID, borrowerID string) (*domain.HmdaDemographic, error) {
	row := r.db.QueryRow(ctx, `
		SELECT id, application_id, borrower_id, race, race_method, ethnicity, ethnicity_method,
		       sex, sex_method, age, age_method, created_at, updated_at
		FROM hmda.demographics
		WHERE application_id = $1 AND borrower_id = $2`, appID, borrowerID)
	return scanDemographic(row)
}

// SaveDemographic upserts the full demographic row on the
// (application, borrower) unique key. Conflict resolution against stored
// methods happens in the compliance service before this call.
func (r *HmdaRepo) SaveDemographic(ctx context.Context, d *domain.HmdaDemographic) error {
	row := r.db.QueryRow(ctx, `
		INSERT INTO hmda.demographics
			(application_id, borrower_id, race, race_method, ethnicity, ethnicity_method,
			 sex, sex_method, age, age_method)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (application_id, borrower_id) DO UPDATE SET
			race = EXCLUDED.race, race_method = EXCLUDED.race_method,
			ethnicity = EXCLUDED.ethnicity, ethnicity_method = EXCLUDED.ethnicity_method,
			sex = EXCLUDED.sex, sex_method = EXCLUDED.sex_method,
			age = EXCLUDED.age, age_method = EXCLUDED.age_method,
			updated_at = now()
		RETURNING id, created_at, updated_at`,
		d.ApplicationID, d.BorrowerID,
		d.Race, methodArg(d.RaceMethod),
		d.Ethnicity, methodArg(d.EthnicityMethod),
		d.Sex, methodArg(d.SexMethod),
		d.Age, methodArg(d.AgeMethod))
	if err := row.Scan(&d.ID, &d.CreatedAt, &d.UpdatedAt); err != nil {
		return fmt.Errorf("storage: save demographic: %w", err)
	}
	return nil
}

// SaveLoanData upserts the loan snapshot on the application unique key and
// reports whether an existing snapshot was updated.
func (r *HmdaRepo) SaveLoanData(ctx context.Context, d *domain.HmdaLoanData) (isUpdate bool, err error) {
	row := r.db.QueryRow(ctx, `
		INSERT INTO hmda.loan_data
			(application_id, gross_monthly_income, dti_ratio, credit_score, loan_type,
			 loan_purpose, property_location, interest_rate, total_fees)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (application_id) DO UPDATE SET
			gross_monthly_income = EXCLUDED.gross_monthly_income,
			dti_ratio = EXCLUDED.dti_ratio,
			credit_score = EXCLUDED.credit_score,
			loan_type = EXCLUDED.loan_type,
			loan_purpose = EXCLUDED.loan_purpose,
			property_location = EXCLUDED.property_location,
			interest_rate = EXCLUDED.interest_rate,
			total_fees = EXCLUDED.total_fees,
			updated_at = now()
		RETURNING id, created_at, updated_at, (created_at != updated_at)`,
		d.ApplicationID, decimalArg(d.GrossMonthlyIncome), decimalArg(d.DTIRatio), d.CreditScore,
		d.LoanType, d.LoanPurpose, d.PropertyLocation,
		decimalArg(d.InterestRate), decimalArg(d.TotalFees))
	if err := row.Scan(&d.ID, &d.CreatedAt, &d.UpdatedAt, &isUpdate); err != nil {
		return false, fmt.Errorf("storage: save loan data: %w", err)
	}
	return isUpdate, nil
}

// GetLoanData returns the loan snapshot for an application, or ErrNotFound.
func (r *HmdaRepo) GetLoanData(ctx context.Context, appID string) (*domain.HmdaLoanData, error) {
	row := r.db.QueryRow(ctx, `
		SELECT id, application_id, gross_monthly_income, dti_ratio, credit_score, loan_type,
		       loan_purpose, property_location, interest_rate, total_fees, created_at, updated_at
		FROM hmda.loan_data
		WHERE application_id = $1`, appID)

	var d domain.HmdaLoanData
	var income, dti, rate, fees decimal.NullDecimal
	err := row.Scan(&d.ID, &d.ApplicationID, &income, &dti, &d.CreditScore, &d.LoanType,
		&d.LoanPurpose, &d.PropertyLocation, &rate, &fees, &d.CreatedAt, &d.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("storage: get loan data: %w", err)
	}
	d.GrossMonthlyIncome = nullDecimalPtr(income)
	d.DTIRatio = nullDecimalPtr(dti)
	d.InterestRate = nullDecimalPtr(rate)
	d.TotalFees = nullDecimalPtr(fees)
	return &d, nil
}

func scanDemographic(s scannable) (*domain.HmdaDemographic, error) {
	var d domain.HmdaDemographic
	var raceM, ethM, sexM, ageM *string
	err := s.Scan(
		&d.ID, &d.ApplicationID, &d.BorrowerID, &d.Race, &raceM, &d.Ethnicity, &ethM,
		&d.Sex, &sexM, &d.Age, &ageM, &d.CreatedAt, &d.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("storage: scan demographic: %w", err)
	}
	d.RaceMethod = methodPtr(raceM)
	d.EthnicityMethod = methodPtr(ethM)
	d.SexMethod = methodPtr(sexM)
	d.AgeMethod = methodPtr(ageM)
	return &d, nil
}

func methodPtr(s *string) *domain.CollectionMethod {
	if s == nil {
		return nil
	}
	m := domain.CollectionMethod(*s)
	return &m
}

func methodArg(m *domain.CollectionMethod) any {
	if m == nil {
		return nil
	}
	return string(*m)
}
