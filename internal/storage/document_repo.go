package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/homelend/platform/internal/domain"
	"github.com/homelend/platform/pkg/postgres"
)

// DocumentRepo persists document metadata and extractions. Document bytes
// live in the blob store.
type DocumentRepo struct {
	db postgres.Querier
}

// NewDocumentRepo creates a repository over a pool or transaction.
func NewDocumentRepo(db postgres.Querier) *DocumentRepo {
	return &DocumentRepo{db: db}
}

const documentColumns = `id, application_id, borrower_id, condition_id, doc_type, status,
	file_path, file_name, content_type, size_bytes, quality_flags, uploaded_by,
	created_at, updated_at`

// Create inserts a document metadata row.
func (r *DocumentRepo) Create(ctx context.Context, d *domain.Document) error {
	flags := d.QualityFlags
	if flags == nil {
		flags = []string{}
	}
	row := r.db.QueryRow(ctx, `
		INSERT INTO documents
			(application_id, borrower_id, condition_id, doc_type, status, file_name, content_type, size_bytes, quality_flags, uploaded_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id, created_at, updated_at`,
		d.ApplicationID, d.BorrowerID, d.ConditionID, d.DocType, d.Status,
		d.FileName, d.ContentType, d.SizeBytes, flags, d.UploadedBy)
	if err := row.Scan(&d.ID, &d.CreatedAt, &d.UpdatedAt); err != nil {
		return fmt.Errorf("storage: create document: %w", err)
	}
	return nil
}

// GetByID fetches one document.
func (r *DocumentRepo) GetByID(ctx context.Context, id string) (*domain.Document, error) {
	row := r.db.QueryRow(ctx,
		fmt.Sprintf(`SELECT %s FROM documents WHERE id = $1`, documentColumns), id)
	return scanDocument(row)
}

// ListByApplication returns all documents on an application, newest first.
func (r *DocumentRepo) ListByApplication(ctx context.Context, appID string) ([]domain.Document, error) {
	rows, err := r.db.Query(ctx,
		fmt.Sprintf(`SELECT %s FROM documents WHERE application_id = $1 ORDER BY created_at DESC`, documentColumns),
		appID)
	if err != nil {
		return nil, fmt.Errorf("storage: list documents: %w", err)
	}
	defer rows.Close()

	var docs []domain.Document
	for rows.Next() {
		d, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		docs = append(docs, *d)
	}
	return docs, rows.Err()
}

// LatestByType returns the newest non-rejected document of the given type on
// the application, or ErrNotFound.
func (r *DocumentRepo) LatestByType(ctx context.Context, appID string, docType domain.DocType) (*domain.Document, error) {
	row := r.db.QueryRow(ctx,
		fmt.Sprintf(`
			SELECT %s FROM documents
			WHERE application_id = $1 AND doc_type = $2 AND status != 'rejected'
			ORDER BY created_at DESC
			LIMIT 1`, documentColumns),
		appID, docType)
	return scanDocument(row)
}

// SetFilePath patches the blob key after a successful upload.
func (r *DocumentRepo) SetFilePath(ctx context.Context, id, filePath string) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE documents SET file_path = $1, updated_at = now() WHERE id = $2`, filePath, id)
	if err != nil {
		return fmt.Errorf("storage: set file path: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// UpdateStatus moves a document through its status machine and optionally
// replaces its quality flags.
func (r *DocumentRepo) UpdateStatus(ctx context.Context, id string, status domain.DocumentStatus, qualityFlags []string) error {
	var err error
	if qualityFlags != nil {
		_, err = r.db.Exec(ctx,
			`UPDATE documents SET status = $1, quality_flags = $2, updated_at = now() WHERE id = $3`,
			status, qualityFlags, id)
	} else {
		_, err = r.db.Exec(ctx,
			`UPDATE documents SET status = $1, updated_at = now() WHERE id = $2`, status, id)
	}
	if err != nil {
		return fmt.Errorf("storage: update document status: %w", err)
	}
	return nil
}

// InsertExtractions stores the structured fields pulled from a document.
func (r *DocumentRepo) InsertExtractions(ctx context.Context, extractions []domain.DocumentExtraction) error {
	for _, e := range extractions {
		_, err := r.db.Exec(ctx, `
			INSERT INTO document_extractions (document_id, field_name, field_value, confidence, source_page)
			VALUES ($1, $2, $3, $4, $5)`,
			e.DocumentID, e.FieldName, e.FieldValue, e.Confidence, e.SourcePage)
		if err != nil {
			return fmt.Errorf("storage: insert extraction %s: %w", e.FieldName, err)
		}
	}
	return nil
}

// ListExtractions returns the structured fields of a document.
func (r *DocumentRepo) ListExtractions(ctx context.Context, documentID string) ([]domain.DocumentExtraction, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, document_id, field_name, field_value, confidence, source_page, created_at
		FROM document_extractions
		WHERE document_id = $1
		ORDER BY field_name`, documentID)
	if err != nil {
		return nil, fmt.Errorf("storage: list extractions: %w", err)
	}
	defer rows.Close()

	var out []domain.DocumentExtraction
	for rows.Next() {
		var e domain.DocumentExtraction
		if err := rows.Scan(&e.ID, &e.DocumentID, &e.FieldName, &e.FieldValue,
			&e.Confidence, &e.SourcePage, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("storage: scan extraction: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func scanDocument(s scannable) (*domain.Document, error) {
	var d domain.Document
	err := s.Scan(
		&d.ID, &d.ApplicationID, &d.BorrowerID, &d.ConditionID, &d.DocType, &d.Status,
		&d.FilePath, &d.FileName, &d.ContentType, &d.SizeBytes, &d.QualityFlags, &d.UploadedBy,
		&d.CreatedAt, &d.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("storage: scan document: %w", err)
	}
	return &d, nil
}
