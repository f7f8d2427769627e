// Package kb provides embedding search over the regulatory knowledge base.
// The corpus is small and read-mostly, so chunks are ranked in process by
// cosine similarity rather than in the database.
package kb

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/homelend/platform/internal/domain"
	"github.com/homelend/platform/internal/storage"
	"github.com/homelend/platform/pkg/llm"
)

// Service answers knowledge-base searches.
type Service struct {
	pool      *pgxpool.Pool
	llmClient *llm.Client
	logger    *slog.Logger
}

// NewService wires the knowledge-base service.
func NewService(pool *pgxpool.Pool, llmClient *llm.Client, logger *slog.Logger) *Service {
	return &Service{pool: pool, llmClient: llmClient, logger: logger}
}

// SearchResult is one ranked chunk.
type SearchResult struct {
	Content    string  `json:"content"`
	Similarity float64 `json:"similarity"`
	DocumentID string  `json:"document_id"`
	ChunkIndex int     `json:"chunk_index"`
}

// Search embeds the query and returns the top-k most similar chunks.
func (s *Service) Search(ctx context.Context, query string, topK int) ([]SearchResult, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, &domain.ValidationError{Fields: map[string]string{"query": "must not be empty"}}
	}
	if topK <= 0 || topK > 20 {
		topK = 5
	}

	embeddings, err := s.llmClient.GetEmbeddings(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("kb: embed query: %w", err)
	}
	if len(embeddings) == 0 {
		return nil, fmt.Errorf("kb: empty embedding response")
	}
	queryVec := embeddings[0]

	chunks, err := storage.NewKBRepo(s.pool).AllChunks(ctx)
	if err != nil {
		return nil, err
	}

	results := make([]SearchResult, 0, len(chunks))
	for _, chunk := range chunks {
		sim := cosine(queryVec, chunk.Embedding)
		if math.IsNaN(sim) {
			continue
		}
		results = append(results, SearchResult{
			Content:    chunk.Content,
			Similarity: sim,
			DocumentID: chunk.DocumentID,
			ChunkIndex: chunk.ChunkIndex,
		})
	}
	sort.Slice(results, func(i, j int) bool { return results[i].Similarity > results[j].Similarity })
	if len(results) > topK {
		results = results[:topK]
	}
	return results, nil
}

// Ingest chunks and embeds one source document. Used by seeding; the
// production corpus is loaded out of band.
func (s *Service) Ingest(ctx context.Context, title, source, content string) (*domain.KBDocument, error) {
	texts := chunkText(content, 1200)
	if len(texts) == 0 {
		return nil, &domain.ValidationError{Fields: map[string]string{"content": "must not be empty"}}
	}
	embeddings, err := s.llmClient.GetEmbeddings(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("kb: embed chunks: %w", err)
	}
	if len(embeddings) != len(texts) {
		return nil, fmt.Errorf("kb: embedding count mismatch: %d texts, %d vectors", len(texts), len(embeddings))
	}

	repo := storage.NewKBRepo(s.pool)
	doc := &domain.KBDocument{Title: title, Source: source}
	if err := repo.CreateDocument(ctx, doc); err != nil {
		return nil, err
	}
	chunks := make([]domain.KBChunk, len(texts))
	for i, text := range texts {
		chunks[i] = domain.KBChunk{
			DocumentID: doc.ID,
			ChunkIndex: i,
			Content:    text,
			Embedding:  embeddings[i],
		}
	}
	if err := repo.InsertChunks(ctx, chunks); err != nil {
		return nil, err
	}
	return doc, nil
}

// ChunkCount reports corpus size, used by seeding to stay idempotent.
func (s *Service) ChunkCount(ctx context.Context) (int, error) {
	return storage.NewKBRepo(s.pool).CountChunks(ctx)
}

func cosine(a, b []float64) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return math.NaN()
	}
	var dot, normA, normB float64
	for i := range a {
		dot += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}
	if normA == 0 || normB == 0 {
		return math.NaN()
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

// chunkText splits on paragraph boundaries, packing paragraphs into chunks
// of at most maxLen runes.
func chunkText(content string, maxLen int) []string {
	paragraphs := strings.Split(content, "\n\n")
	var chunks []string
	var current strings.Builder
	for _, p := range paragraphs {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		if current.Len() > 0 && current.Len()+len(p) > maxLen {
			chunks = append(chunks, current.String())
			current.Reset()
		}
		if current.Len() > 0 {
			current.WriteString("\n\n")
		}
		current.WriteString(p)
	}
	if current.Len() > 0 {
		chunks = append(chunks, current.String())
	}
	return chunks
}
