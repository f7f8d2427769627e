package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/homelend/platform/internal/domain"
	"github.com/homelend/platform/pkg/postgres"
)

// BorrowerRepo persists borrower identities.
type BorrowerRepo struct {
	db postgres.Querier
}

// NewBorrowerRepo creates a repository over a pool or transaction.
func NewBorrowerRepo(db postgres.Querier) *BorrowerRepo {
	return &BorrowerRepo{db: db}
}

const borrowerColumns = `id, subject_id, first_name, last_name, email, ssn,
	date_of_birth, employment_status, created_at, updated_at`

// GetBySubject finds the borrower linked to an identity-provider subject.
func (r *BorrowerRepo) GetBySubject(ctx context.Context, subjectID string) (*domain.Borrower, error) {
	row := r.db.QueryRow(ctx,
		fmt.Sprintf(`SELECT %s FROM borrowers WHERE subject_id = $1`, borrowerColumns), subjectID)
	return scanBorrower(row)
}

// GetByID fetches a borrower by primary key.
func (r *BorrowerRepo) GetByID(ctx context.Context, id string) (*domain.Borrower, error) {
	row := r.db.QueryRow(ctx,
		fmt.Sprintf(`SELECT %s FROM borrowers WHERE id = $1`, borrowerColumns), id)
	return scanBorrower(row)
}

// EnsureForSubject returns the borrower for a subject, creating one on first
// intake. Created rows carry the principal's email and name split on the
// first space.
func (r *BorrowerRepo) EnsureForSubject(ctx context.Context, subjectID, email, name string) (*domain.Borrower, error) {
	b, err := r.GetBySubject(ctx, subjectID)
	if err == nil {
		return b, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}

	first, last := splitName(name)
	row := r.db.QueryRow(ctx, `
		INSERT INTO borrowers (subject_id, first_name, last_name, email)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (subject_id) DO UPDATE SET updated_at = now()
		RETURNING `+borrowerColumns,
		subjectID, first, last, email)
	return scanBorrower(row)
}

// UpdateFields persists sparse column updates and bumps updated_at.
func (r *BorrowerRepo) UpdateFields(ctx context.Context, id string, fields map[string]any) error {
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

	query := fmt.Sprintf("UPDATE borrowers SET %s WHERE id = $%d", strings.Join(sets, ", "), i)
	tag, err := r.db.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("storage: update borrower fields: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func scanBorrower(s scannable) (*domain.Borrower, error) {
	var b domain.Borrower
	var es *string
	err := s.Scan(
		&b.ID, &b.SubjectID, &b.FirstName, &b.LastName, &b.Email, &b.SSN,
		&b.DateOfBirth, &es, &b.CreatedAt, &b.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("storage: scan borrower: %w", err)
	}
	if es != nil {
		v := domain.EmploymentStatus(*es)
		b.EmploymentStatus = &v
	}
	return &b, nil
}

func splitName(name string) (first, last string) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", ""
	}
	parts := strings.SplitN(name, " ", 2)
	if len(parts) == 1 {
		return parts[0], ""
	}
	return parts[0], parts[1]
}
