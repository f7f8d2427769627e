package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/homelend/platform/internal/domain"
	"github.com/homelend/platform/pkg/postgres"
)

// DecisionRepo persists underwriting decisions.
type DecisionRepo struct {
	db postgres.Querier
}

// NewDecisionRepo creates a repository over a pool or transaction.
func NewDecisionRepo(db postgres.Querier) *DecisionRepo {
	return &DecisionRepo{db: db}
}

const decisionColumns = `id, application_id, decision_type, rationale, ai_recommendation,
	ai_agreement, override_rationale, denial_reasons, credit_score_used,
	credit_score_source, contributing_factors, decided_by, created_at`

// Create inserts a decision row. Denial reasons round-trip through a JSON
// array column.
func (r *DecisionRepo) Create(ctx context.Context, d *domain.Decision) error {
	reasons := d.DenialReasons
	if reasons == nil {
		reasons = []string{}
	}
	reasonsJSON, err := json.Marshal(reasons)
	if err != nil {
		return fmt.Errorf("storage: marshal denial reasons: %w", err)
	}
	factors := d.ContributingFactors
	if factors == nil {
		factors = map[string]string{}
	}
	factorsJSON, err := json.Marshal(factors)
	if err != nil {
		return fmt.Errorf("storage: marshal contributing factors: %w", err)
	}

	row := r.db.QueryRow(ctx, `
		INSERT INTO decisions
			(application_id, decision_type, rationale, ai_recommendation, ai_agreement,
			 override_rationale, denial_reasons, credit_score_used, credit_score_source,
			 contributing_factors, decided_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING id, created_at`,
		d.ApplicationID, d.DecisionType, d.Rationale, d.AIRecommendation, d.AIAgreement,
		d.OverrideRationale, reasonsJSON, d.CreditScoreUsed, d.CreditScoreSource,
		factorsJSON, d.DecidedBy)
	if err := row.Scan(&d.ID, &d.CreatedAt); err != nil {
		return fmt.Errorf("storage: create decision: %w", err)
	}
	return nil
}

// GetByID fetches one decision.
func (r *DecisionRepo) GetByID(ctx context.Context, id string) (*domain.Decision, error) {
	row := r.db.QueryRow(ctx,
		fmt.Sprintf(`SELECT %s FROM decisions WHERE id = $1`, decisionColumns), id)
	return scanDecision(row)
}

// ListByApplication returns the decisions on an application, newest first.
func (r *DecisionRepo) ListByApplication(ctx context.Context, appID string) ([]domain.Decision, error) {
	rows, err := r.db.Query(ctx,
		fmt.Sprintf(`SELECT %s FROM decisions WHERE application_id = $1 ORDER BY created_at DESC`, decisionColumns),
		appID)
	if err != nil {
		return nil, fmt.Errorf("storage: list decisions: %w", err)
	}
	defer rows.Close()

	var out []domain.Decision
	for rows.Next() {
		d, err := scanDecision(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *d)
	}
	return out, rows.Err()
}

// ListSince returns decisions created in the window, joined with the
// application's loan type, optionally filtered by product.
func (r *DecisionRepo) ListSince(ctx context.Context, since time.Time, product string) ([]DecisionWithProduct, error) {
	query := fmt.Sprintf(`
		SELECT %s, a.loan_type
		FROM decisions d
		JOIN applications a ON a.id = d.application_id
		WHERE d.created_at >= $1`, prefixDecisionColumns("d"))
	args := []any{since}
	if product != "" {
		query += ` AND a.loan_type = $2`
		args = append(args, product)
	}
	query += ` ORDER BY d.created_at`

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("storage: list decisions since: %w", err)
	}
	defer rows.Close()

	var out []DecisionWithProduct
	for rows.Next() {
		var dp DecisionWithProduct
		var reasonsJSON, factorsJSON []byte
		var loanType *string
		err := rows.Scan(
			&dp.ID, &dp.ApplicationID, &dp.DecisionType, &dp.Rationale, &dp.AIRecommendation,
			&dp.AIAgreement, &dp.OverrideRationale, &reasonsJSON, &dp.CreditScoreUsed,
			&dp.CreditScoreSource, &factorsJSON, &dp.DecidedBy, &dp.CreatedAt, &loanType,
		)
		if err != nil {
			return nil, fmt.Errorf("storage: scan decision: %w", err)
		}
		if err := json.Unmarshal(reasonsJSON, &dp.DenialReasons); err != nil {
			return nil, fmt.Errorf("storage: decode denial reasons: %w", err)
		}
		if loanType != nil {
			dp.LoanType = *loanType
		}
		out = append(out, dp)
	}
	return out, rows.Err()
}

// DecisionWithProduct is a decision joined with its application's loan type,
// used by denial-trend analytics.
type DecisionWithProduct struct {
	domain.Decision
	LoanType string
}

func prefixDecisionColumns(alias string) string {
	return alias + ".id, " + alias + ".application_id, " + alias + ".decision_type, " +
		alias + ".rationale, " + alias + ".ai_recommendation, " + alias + ".ai_agreement, " +
		alias + ".override_rationale, " + alias + ".denial_reasons, " + alias + ".credit_score_used, " +
		alias + ".credit_score_source, " + alias + ".contributing_factors, " + alias + ".decided_by, " +
		alias + ".created_at"
}

func scanDecision(s scannable) (*domain.Decision, error) {
	var d domain.Decision
	var reasonsJSON, factorsJSON []byte
	err := s.Scan(
		&d.ID, &d.ApplicationID, &d.DecisionType, &d.Rationale, &d.AIRecommendation,
		&d.AIAgreement, &d.OverrideRationale, &reasonsJSON, &d.CreditScoreUsed,
		&d.CreditScoreSource, &factorsJSON, &d.DecidedBy, &d.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("storage: scan decision: %w", err)
	}
	if err := json.Unmarshal(reasonsJSON, &d.DenialReasons); err != nil {
		return nil, fmt.Errorf("storage: decode denial reasons: %w", err)
	}
	if err := json.Unmarshal(factorsJSON, &d.ContributingFactors); err != nil {
		return nil, fmt.Errorf("storage: decode contributing factors: %w", err)
	}
	return &d, nil
}
