package storage

import (
	"context"
	"fmt"

	"github.com/homelend/platform/internal/domain"
	"github.com/homelend/platform/pkg/postgres"
)

// KBRepo persists knowledge-base documents and their embedded chunks.
type KBRepo struct {
	db postgres.Querier
}

// NewKBRepo creates a repository over a pool or transaction.
func NewKBRepo(db postgres.Querier) *KBRepo {
	return &KBRepo{db: db}
}

// CreateDocument inserts a knowledge-base document.
func (r *KBRepo) CreateDocument(ctx context.Context, d *domain.KBDocument) error {
	row := r.db.QueryRow(ctx, `
		INSERT INTO kb_documents (title, source) VALUES ($1, $2)
		RETURNING id, created_at`, d.Title, d.Source)
	if err := row.Scan(&d.ID, &d.CreatedAt); err != nil {
		return fmt.Errorf("storage: create kb document: %w", err)
	}
	return nil
}

// InsertChunks stores embedded chunks for a document.
func (r *KBRepo) InsertChunks(ctx context.Context, chunks []domain.KBChunk) error {
	for _, c := range chunks {
		_, err := r.db.Exec(ctx, `
			INSERT INTO kb_chunks (document_id, chunk_index, content, embedding)
			VALUES ($1, $2, $3, $4)
			ON CONFLICT (document_id, chunk_index) DO NOTHING`,
			c.DocumentID, c.ChunkIndex, c.Content, c.Embedding)
		if err != nil {
			return fmt.Errorf("storage: insert kb chunk: %w", err)
		}
	}
	return nil
}

// AllChunks loads every chunk with its embedding. The corpus is small enough
// that similarity ranking happens in process.
func (r *KBRepo) AllChunks(ctx context.Context) ([]domain.KBChunk, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, document_id, chunk_index, content, embedding, created_at
		FROM kb_chunks`)
	if err != nil {
		return nil, fmt.Errorf("storage: list kb chunks: %w", err)
	}
	defer rows.Close()

	var out []domain.KBChunk
	for rows.Next() {
		var c domain.KBChunk
		if err := rows.Scan(&c.ID, &c.DocumentID, &c.ChunkIndex, &c.Content, &c.Embedding, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("storage: scan kb chunk: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// CountChunks returns the number of stored chunks.
func (r *KBRepo) CountChunks(ctx context.Context) (int, error) {
	var n int
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM kb_chunks`).Scan(&n); err != nil {
		return 0, fmt.Errorf("storage: count kb chunks: %w", err)
	}
	return n, nil
}
