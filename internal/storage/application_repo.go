package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/homelend/platform/internal/domain"
	"github.com/homelend/platform/pkg/auth"
	"github.com/homelend/platform/pkg/postgres"
)

// ApplicationRepo persists loan applications and their borrower junctions.
type ApplicationRepo struct {
	db postgres.Querier
}

// NewApplicationRepo creates a repository over a pool or transaction.
func NewApplicationRepo(db postgres.Querier) *ApplicationRepo {
	return &ApplicationRepo{db: db}
}

const applicationColumns = `id, stage, loan_type, property_address, loan_amount, property_value,
	assigned_to, le_delivery_date, cd_delivery_date, closing_date, created_at, updated_at`

// Create inserts a new application in the inquiry stage unless a stage is set.
func (r *ApplicationRepo) Create(ctx context.Context, app *domain.Application) error {
	if app.Stage == "" {
		app.Stage = domain.StageInquiry
	}
	row := r.db.QueryRow(ctx, `
		INSERT INTO applications (stage, loan_type, property_address, loan_amount, property_value, assigned_to)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at, updated_at`,
		app.Stage, loanTypeArg(app.LoanType), app.PropertyAddress,
		decimalArg(app.LoanAmount), decimalArg(app.PropertyValue), app.AssignedTo,
	)
	if err := row.Scan(&app.ID, &app.CreatedAt, &app.UpdatedAt); err != nil {
		return fmt.Errorf("storage: create application: %w", err)
	}
	return nil
}

// GetScoped fetches one application visible to the given scope. A row hidden
// by scope and a missing row are indistinguishable to the caller: both return
// domain.ErrNotFound.
func (r *ApplicationRepo) GetScoped(ctx context.Context, id string, scope auth.DataScope) (*domain.Application, error) {
	join, where, scopeArgs := ScopeFilter(scope, "a", 2)
	args := append([]any{id}, scopeArgs...)

	query := fmt.Sprintf(`
		SELECT %s FROM applications a %s
		WHERE a.id = $1 AND %s`, prefixColumns("a"), join, where)

	app, err := scanApplication(r.db.QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("storage: get application: %w", err)
	}
	return app, nil
}

// ListScoped returns one page of applications visible to the scope plus the
// unpaged total.
func (r *ApplicationRepo) ListScoped(ctx context.Context, scope auth.DataScope, offset, limit int) ([]domain.Application, int, error) {
	join, where, scopeArgs := ScopeFilter(scope, "a", 1)

	countQuery := fmt.Sprintf(`SELECT COUNT(*) FROM applications a %s WHERE %s`, join, where)
	var total int
	if err := r.db.QueryRow(ctx, countQuery, scopeArgs...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("storage: count applications: %w", err)
	}

	n := len(scopeArgs)
	query := fmt.Sprintf(`
		SELECT %s FROM applications a %s
		WHERE %s
		ORDER BY a.updated_at DESC
		OFFSET $%d LIMIT $%d`, prefixColumns("a"), join, where, n+1, n+2)
	args := append(scopeArgs, offset, limit)

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("storage: list applications: %w", err)
	}
	defer rows.Close()

	var apps []domain.Application
	for rows.Next() {
		app, err := scanApplication(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("storage: scan application: %w", err)
		}
		apps = append(apps, *app)
	}
	return apps, total, rows.Err()
}

// LatestNonTerminalForSubject returns the subject's most recent non-terminal
// application by updated_at, or ErrNotFound.
func (r *ApplicationRepo) LatestNonTerminalForSubject(ctx context.Context, subjectID string) (*domain.Application, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM applications a
		JOIN application_borrowers ab ON ab.application_id = a.id
		JOIN borrowers b ON b.id = ab.borrower_id
		WHERE b.subject_id = $1 AND a.stage NOT IN ('closed', 'denied', 'withdrawn')
		ORDER BY a.updated_at DESC
		LIMIT 1`, prefixColumns("a"))

	app, err := scanApplication(r.db.QueryRow(ctx, query, subjectID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("storage: latest application for subject: %w", err)
	}
	return app, nil
}

// UpdateFields persists sparse column updates and bumps updated_at.
func (r *ApplicationRepo) UpdateFields(ctx context.Context, id string, fields map[string]any) error {
	if len(fields) == 0 {
		return nil
	}
	sets := make([]string, 0, len(fields)+1)
	args := make([]any, 0, len(fields)+1)
	i := 1
	for col, val := range fields {
		sets = append(sets, fmt.Sprintf("%s = $%d", col, i))
		args = append(args, val)
		i++
	}
	sets = append(sets, "updated_at = now()")
	args = append(args, id)

	query := fmt.Sprintf("UPDATE applications SET %s WHERE id = $%d", strings.Join(sets, ", "), i)
	tag, err := r.db.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("storage: update application fields: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// TransitionStage moves the application from one stage to another with an
// optimistic current-stage guard. It returns ErrNotFound when the row is
// missing and a wrong_stage precondition when the guard fails.
func (r *ApplicationRepo) TransitionStage(ctx context.Context, id string, from, to domain.Stage) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE applications SET stage = $1, updated_at = now() WHERE id = $2 AND stage = $3`,
		to, id, from,
	)
	if err != nil {
		return fmt.Errorf("storage: transition stage: %w", err)
	}
	if tag.RowsAffected() == 0 {
		var current domain.Stage
		err := r.db.QueryRow(ctx, `SELECT stage FROM applications WHERE id = $1`, id).Scan(&current)
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("storage: read current stage: %w", err)
		}
		return domain.NewPreconditionError("wrong_stage", "application is in stage %s, not %s", current, from)
	}
	return nil
}

// ---------------------------------------------------------------------------
// borrower junction
// ---------------------------------------------------------------------------

// AddBorrower links a borrower to an application. A duplicate link or second
// primary surfaces as domain.ErrConflict.
func (r *ApplicationRepo) AddBorrower(ctx context.Context, appID, borrowerID string, isPrimary bool) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO application_borrowers (application_id, borrower_id, is_primary)
		VALUES ($1, $2, $3)`, appID, borrowerID, isPrimary)
	if err != nil {
		if postgres.IsUniqueViolation(err) {
			return domain.ErrConflict
		}
		return fmt.Errorf("storage: add borrower: %w", err)
	}
	return nil
}

// RemoveBorrower deletes a borrower link.
func (r *ApplicationRepo) RemoveBorrower(ctx context.Context, appID, borrowerID string) error {
	tag, err := r.db.Exec(ctx,
		`DELETE FROM application_borrowers WHERE application_id = $1 AND borrower_id = $2`,
		appID, borrowerID)
	if err != nil {
		return fmt.Errorf("storage: remove borrower: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// Borrowers lists the borrowers on an application, primary first.
func (r *ApplicationRepo) Borrowers(ctx context.Context, appID string) ([]domain.Borrower, []domain.ApplicationBorrower, error) {
	rows, err := r.db.Query(ctx, `
		SELECT b.id, b.subject_id, b.first_name, b.last_name, b.email, b.ssn,
		       b.date_of_birth, b.employment_status, b.created_at, b.updated_at,
		       ab.id, ab.is_primary, ab.created_at
		FROM application_borrowers ab
		JOIN borrowers b ON b.id = ab.borrower_id
		WHERE ab.application_id = $1
		ORDER BY ab.is_primary DESC, ab.created_at`, appID)
	if err != nil {
		return nil, nil, fmt.Errorf("storage: list application borrowers: %w", err)
	}
	defer rows.Close()

	var borrowers []domain.Borrower
	var junctions []domain.ApplicationBorrower
	for rows.Next() {
		var b domain.Borrower
		var j domain.ApplicationBorrower
		var es *string
		if err := rows.Scan(
			&b.ID, &b.SubjectID, &b.FirstName, &b.LastName, &b.Email, &b.SSN,
			&b.DateOfBirth, &es, &b.CreatedAt, &b.UpdatedAt,
			&j.ID, &j.IsPrimary, &j.CreatedAt,
		); err != nil {
			return nil, nil, fmt.Errorf("storage: scan borrower: %w", err)
		}
		if es != nil {
			v := domain.EmploymentStatus(*es)
			b.EmploymentStatus = &v
		}
		j.ApplicationID = appID
		j.BorrowerID = b.ID
		borrowers = append(borrowers, b)
		junctions = append(junctions, j)
	}
	return borrowers, junctions, rows.Err()
}

// PrimaryBorrower returns the application's primary borrower, or ErrNotFound.
func (r *ApplicationRepo) PrimaryBorrower(ctx context.Context, appID string) (*domain.Borrower, error) {
	borrowers, junctions, err := r.Borrowers(ctx, appID)
	if err != nil {
		return nil, err
	}
	for i, j := range junctions {
		if j.IsPrimary {
			return &borrowers[i], nil
		}
	}
	return nil, domain.ErrNotFound
}

// StageCounts groups non-deleted applications by stage, for analytics.
func (r *ApplicationRepo) StageCounts(ctx context.Context) (map[domain.Stage]int, error) {
	rows, err := r.db.Query(ctx, `SELECT stage, COUNT(*) FROM applications GROUP BY stage`)
	if err != nil {
		return nil, fmt.Errorf("storage: stage counts: %w", err)
	}
	defer rows.Close()

	counts := make(map[domain.Stage]int)
	for rows.Next() {
		var stage domain.Stage
		var n int
		if err := rows.Scan(&stage, &n); err != nil {
			return nil, fmt.Errorf("storage: scan stage count: %w", err)
		}
		counts[stage] = n
	}
	return counts, rows.Err()
}

// CountCreatedSince counts applications initiated in the window.
func (r *ApplicationRepo) CountCreatedSince(ctx context.Context, since time.Time) (int, error) {
	var n int
	err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM applications WHERE created_at >= $1`, since).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("storage: count created since: %w", err)
	}
	return n, nil
}

// ---------------------------------------------------------------------------
// scan helpers
// ---------------------------------------------------------------------------

type scannable interface {
	Scan(dest ...any) error
}

func prefixColumns(alias string) string {
	cols := strings.Split(applicationColumns, ",")
	for i, c := range cols {
		cols[i] = alias + "." + strings.TrimSpace(c)
	}
	return strings.Join(cols, ", ")
}

func scanApplication(s scannable) (*domain.Application, error) {
	var (
		app        domain.Application
		loanType   *string
		loanAmount decimal.NullDecimal
		propValue  decimal.NullDecimal
	)
	err := s.Scan(
		&app.ID, &app.Stage, &loanType, &app.PropertyAddress, &loanAmount, &propValue,
		&app.AssignedTo, &app.LEDeliveryDate, &app.CDDeliveryDate, &app.ClosingDate,
		&app.CreatedAt, &app.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if loanType != nil {
		lt := domain.LoanType(*loanType)
		app.LoanType = &lt
	}
	if loanAmount.Valid {
		app.LoanAmount = &loanAmount.Decimal
	}
	if propValue.Valid {
		app.PropertyValue = &propValue.Decimal
	}
	return &app, nil
}

func decimalArg(d *decimal.Decimal) any {
	if d == nil {
		return nil
	}
	return *d
}

func loanTypeArg(lt *domain.LoanType) any {
	if lt == nil {
		return nil
	}
	return string(*lt)
}
