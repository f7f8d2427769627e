package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/homelend/platform/internal/domain"
	"github.com/homelend/platform/pkg/postgres"
)

// ConditionRepo persists underwriting conditions.
type ConditionRepo struct {
	db postgres.Querier
}

// NewConditionRepo creates a repository over a pool or transaction.
func NewConditionRepo(db postgres.Querier) *ConditionRepo {
	return &ConditionRepo{db: db}
}

const conditionColumns = `id, application_id, description, severity, status, due_date,
	iteration_count, response_text, waiver_rationale, issued_by, cleared_by,
	created_at, updated_at`

// Create inserts a new open condition.
func (r *ConditionRepo) Create(ctx context.Context, c *domain.Condition) error {
	if c.Status == "" {
		c.Status = domain.ConditionOpen
	}
	row := r.db.QueryRow(ctx, `
		INSERT INTO conditions (application_id, description, severity, status, due_date, issued_by)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, iteration_count, created_at, updated_at`,
		c.ApplicationID, c.Description, c.Severity, c.Status, c.DueDate, c.IssuedBy)
	if err := row.Scan(&c.ID, &c.IterationCount, &c.CreatedAt, &c.UpdatedAt); err != nil {
		return fmt.Errorf("storage: create condition: %w", err)
	}
	return nil
}

// GetByID fetches one condition.
func (r *ConditionRepo) GetByID(ctx context.Context, id string) (*domain.Condition, error) {
	row := r.db.QueryRow(ctx,
		fmt.Sprintf(`SELECT %s FROM conditions WHERE id = $1`, conditionColumns), id)
	return scanCondition(row)
}

// ListByApplication returns the conditions on an application, optionally only
// the ones still needing work.
func (r *ConditionRepo) ListByApplication(ctx context.Context, appID string, openOnly bool) ([]domain.Condition, error) {
	query := fmt.Sprintf(`SELECT %s FROM conditions WHERE application_id = $1`, conditionColumns)
	if openOnly {
		query += ` AND status NOT IN ('cleared', 'waived')`
	}
	query += ` ORDER BY created_at`

	rows, err := r.db.Query(ctx, query, appID)
	if err != nil {
		return nil, fmt.Errorf("storage: list conditions: %w", err)
	}
	defer rows.Close()

	var out []domain.Condition
	for rows.Next() {
		c, err := scanCondition(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *c)
	}
	return out, rows.Err()
}

// CountNonTerminal counts conditions that still block approval.
func (r *ConditionRepo) CountNonTerminal(ctx context.Context, appID string) (int, error) {
	var n int
	err := r.db.QueryRow(ctx, `
		SELECT COUNT(*) FROM conditions
		WHERE application_id = $1 AND status NOT IN ('cleared', 'waived')`, appID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("storage: count open conditions: %w", err)
	}
	return n, nil
}

// Save writes back the mutable fields of a condition.
func (r *ConditionRepo) Save(ctx context.Context, c *domain.Condition) error {
	tag, err := r.db.Exec(ctx, `
		UPDATE conditions SET
			status = $1, iteration_count = $2, response_text = $3,
			waiver_rationale = $4, cleared_by = $5, updated_at = now()
		WHERE id = $6`,
		c.Status, c.IterationCount, c.ResponseText, c.WaiverRationale, c.ClearedBy, c.ID)
	if err != nil {
		return fmt.Errorf("storage: save condition: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func scanCondition(s scannable) (*domain.Condition, error) {
	var c domain.Condition
	err := s.Scan(
		&c.ID, &c.ApplicationID, &c.Description, &c.Severity, &c.Status, &c.DueDate,
		&c.IterationCount, &c.ResponseText, &c.WaiverRationale, &c.IssuedBy, &c.ClearedBy,
		&c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("storage: scan condition: %w", err)
	}
	return &c, nil
}
