package domain

import "time"

// KBDocument is a knowledge-base source document (regulatory guidance).
// Ingestion of regulatory corpora happens out of band; the platform consumes
// the chunks as a read-only search tool.
type KBDocument struct {
	ID        string
	Title     string
	Source    string
	CreatedAt time.Time
}

// KBChunk is one embedded text chunk of a knowledge-base document.
type KBChunk struct {
	ID         string
	DocumentID string
	ChunkIndex int
	Content    string
	Embedding  []float64
	CreatedAt  time.Time
}
