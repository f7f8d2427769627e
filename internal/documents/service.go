// Package documents implements the ingestion pipeline: multipart upload to
// the blob store, background LLM extraction, freshness flags, and the
// completeness evaluation driven by the requirement matrix.
package documents

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/homelend/platform/internal/audit"
	"github.com/homelend/platform/internal/compliance"
	"github.com/homelend/platform/internal/domain"
	"github.com/homelend/platform/internal/events"
	"github.com/homelend/platform/internal/storage"
	"github.com/homelend/platform/pkg/auth"
	"github.com/homelend/platform/pkg/blob"
	"github.com/homelend/platform/pkg/llm"
	"github.com/homelend/platform/pkg/postgres"
)

// MaxUploadBytes caps document uploads at 50 MiB.
const MaxUploadBytes = 50 << 20

// allowedContentTypes lists the upload formats extraction can handle.
var allowedContentTypes = map[string]bool{
	"application/pdf": true,
	"image/png":       true,
	"image/jpeg":      true,
	"image/tiff":      true,
}

// AllowedContentType reports whether uploads of this type are accepted.
func AllowedContentType(ct string) bool { return allowedContentTypes[ct] }

// Service owns the document pipeline.
type Service struct {
	pool      *pgxpool.Pool
	blobs     *blob.Store
	llmClient *llm.Client
	hmda      *compliance.HmdaService
	audit     *audit.Service
	publisher *events.Publisher
	logger    *slog.Logger

	extractionTimeout time.Duration
}

// NewService wires the document service.
func NewService(pool *pgxpool.Pool, blobs *blob.Store, llmClient *llm.Client, hmda *compliance.HmdaService, auditSvc *audit.Service, publisher *events.Publisher, logger *slog.Logger) *Service {
	return &Service{
		pool:              pool,
		blobs:             blobs,
		llmClient:         llmClient,
		hmda:              hmda,
		audit:             auditSvc,
		publisher:         publisher,
		logger:            logger,
		extractionTimeout: 2 * time.Minute,
	}
}

// UploadParams describes one multipart upload.
type UploadParams struct {
	DocType     domain.DocType
	FileName    string
	ContentType string
	Data        []byte
	ConditionID *string // set when the upload answers a condition
}

// Upload validates the file, stores its bytes under
// {application_id}/{document_id}/{filename}, and commits the metadata row
// before spawning the extraction task. A condition-linked upload also moves
// the condition to responded.
func (s *Service) Upload(ctx context.Context, p *auth.Principal, appID string, params UploadParams) (*domain.Document, error) {
	if !domain.ValidDocType(params.DocType) {
		return nil, &domain.ValidationError{Fields: map[string]string{"doc_type": fmt.Sprintf("unknown document type %q", params.DocType)}}
	}
	if !AllowedContentType(params.ContentType) {
		return nil, &domain.ValidationError{Fields: map[string]string{"file": fmt.Sprintf("unsupported content type %q", params.ContentType)}}
	}
	if int64(len(params.Data)) > MaxUploadBytes {
		return nil, domain.ErrPayloadTooLarge
	}
	if params.FileName == "" {
		return nil, &domain.ValidationError{Fields: map[string]string{"file": "filename is required"}}
	}

	doc := &domain.Document{
		ApplicationID: appID,
		ConditionID:   params.ConditionID,
		DocType:       params.DocType,
		Status:        domain.DocProcessing,
		FileName:      params.FileName,
		ContentType:   params.ContentType,
		SizeBytes:     int64(len(params.Data)),
		UploadedBy:    p.UserID,
	}

	err := postgres.WithTransaction(ctx, s.pool, func(tx pgx.Tx) error {
		appRepo := storage.NewApplicationRepo(tx)
		if _, err := appRepo.GetScoped(ctx, appID, p.Scope); err != nil {
			return err
		}
		primary, err := appRepo.PrimaryBorrower(ctx, appID)
		if err != nil {
			return err
		}
		doc.BorrowerID = &primary.ID

		docRepo := storage.NewDocumentRepo(tx)
		if err := docRepo.Create(ctx, doc); err != nil {
			return err
		}

		key := fmt.Sprintf("%s/%s/%s", appID, doc.ID, params.FileName)
		if err := s.blobs.Put(ctx, key, params.Data, params.ContentType); err != nil {
			return fmt.Errorf("documents: store blob: %w", err)
		}
		if err := docRepo.SetFilePath(ctx, doc.ID, key); err != nil {
			return err
		}
		doc.FilePath = &key

		if params.ConditionID != nil {
			if err := s.linkCondition(ctx, tx, p, appID, *params.ConditionID, doc); err != nil {
				return err
			}
		}

		_, err = s.audit.AppendTx(ctx, tx, audit.Entry{
			EventType:     domain.EventDocumentUploaded,
			UserID:        p.UserID,
			UserRole:      string(p.Role),
			ApplicationID: appID,
			EventData: map[string]any{
				"document_id": doc.ID,
				"doc_type":    string(doc.DocType),
				"size_bytes":  doc.SizeBytes,
			},
		})
		return err
	})
	if err != nil {
		return nil, err
	}

	s.publisher.Publish(ctx, events.TopicDocuments, "document.uploaded", "document", doc.ID,
		map[string]any{"application_id": appID, "doc_type": string(doc.DocType)})

	// The row is committed; the worker reads it through its own session and
	// is detached from this request's cancellation.
	go s.extract(doc.ID)

	return doc, nil
}

// linkCondition moves an open condition to responded when a document answers
// it.
func (s *Service) linkCondition(ctx context.Context, tx pgx.Tx, p *auth.Principal, appID, conditionID string, doc *domain.Document) error {
	condRepo := storage.NewConditionRepo(tx)
	cond, err := condRepo.GetByID(ctx, conditionID)
	if err != nil {
		return err
	}
	if cond.ApplicationID != appID {
		return domain.ErrNotFound
	}
	if cond.Status != domain.ConditionOpen {
		return domain.NewPreconditionError("wrong_status",
			"condition is %s, only open conditions accept documents", cond.Status)
	}
	cond.Status = domain.ConditionResponded
	note := fmt.Sprintf("document %s (%s) uploaded", doc.FileName, doc.DocType)
	if cond.ResponseText != nil {
		note = *cond.ResponseText + "\n" + note
	}
	cond.ResponseText = &note
	if err := condRepo.Save(ctx, cond); err != nil {
		return err
	}
	_, err = s.audit.AppendTx(ctx, tx, audit.Entry{
		EventType:     domain.EventConditionResponded,
		UserID:        p.UserID,
		UserRole:      string(p.Role),
		ApplicationID: appID,
		EventData: map[string]any{
			"condition_id": cond.ID,
			"document_id":  doc.ID,
		},
	})
	return err
}

// List returns an application's documents, newest first, after a scope
// check.
func (s *Service) List(ctx context.Context, p *auth.Principal, appID string) ([]domain.Document, error) {
	if _, err := storage.NewApplicationRepo(s.pool).GetScoped(ctx, appID, p.Scope); err != nil {
		return nil, err
	}
	return storage.NewDocumentRepo(s.pool).ListByApplication(ctx, appID)
}

// Get returns one document's metadata.
func (s *Service) Get(ctx context.Context, p *auth.Principal, appID, docID string) (*domain.Document, error) {
	if _, err := storage.NewApplicationRepo(s.pool).GetScoped(ctx, appID, p.Scope); err != nil {
		return nil, err
	}
	doc, err := storage.NewDocumentRepo(s.pool).GetByID(ctx, docID)
	if err != nil {
		return nil, err
	}
	if doc.ApplicationID != appID {
		return nil, domain.ErrNotFound
	}
	return doc, nil
}

// Content returns the stored bytes. Principals restricted to document
// metadata never reach this method; the route guard rejects them first.
func (s *Service) Content(ctx context.Context, p *auth.Principal, appID, docID string) ([]byte, string, error) {
	if p.Scope.DocumentMetadataOnly {
		return nil, "", domain.ErrRoleForbidden
	}
	doc, err := s.Get(ctx, p, appID, docID)
	if err != nil {
		return nil, "", err
	}
	if doc.FilePath == nil {
		return nil, "", domain.ErrNotFound
	}
	data, err := s.blobs.Get(ctx, *doc.FilePath)
	if err != nil {
		return nil, "", fmt.Errorf("documents: read blob: %w", err)
	}
	return data, doc.ContentType, nil
}

// Extractions lists the structured fields pulled from a document.
func (s *Service) Extractions(ctx context.Context, p *auth.Principal, appID, docID string) ([]domain.DocumentExtraction, error) {
	if _, err := s.Get(ctx, p, appID, docID); err != nil {
		return nil, err
	}
	return storage.NewDocumentRepo(s.pool).ListExtractions(ctx, docID)
}
