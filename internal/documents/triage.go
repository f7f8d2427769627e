package documents

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/homelend/platform/internal/audit"
	"github.com/homelend/platform/internal/domain"
	"github.com/homelend/platform/internal/events"
	"github.com/homelend/platform/internal/storage"
	"github.com/homelend/platform/pkg/auth"
	"github.com/homelend/platform/pkg/postgres"
)

// TriageParams is one review verdict for a document.
type TriageParams struct {
	Status domain.DocumentStatus
	Note   string
}

// canTriage validates one review transition and returns a message when it is
// not allowed. Review may only start once extraction has run its course; a
// document still owned by the pipeline cannot be flagged, accepted, or
// rejected out from under it.
func canTriage(from, to domain.DocumentStatus) string {
	if !domain.ValidTriageStatus(to) {
		return fmt.Sprintf("status %q is not a review verdict", to)
	}
	if !from.ProcessingTerminal() {
		return fmt.Sprintf("document is still %s", from)
	}
	return ""
}

// Triage records a loan officer's review verdict: pending_review to park the
// document for review, then accepted, flagged_for_resubmission, or rejected.
// A rejected document stops counting toward completeness because LatestByType
// skips it.
func (s *Service) Triage(ctx context.Context, p *auth.Principal, appID, docID string, params TriageParams) (*domain.Document, error) {
	var doc *domain.Document
	err := postgres.WithTransaction(ctx, s.pool, func(tx pgx.Tx) error {
		if _, err := storage.NewApplicationRepo(tx).GetScoped(ctx, appID, p.Scope); err != nil {
			return err
		}

		docRepo := storage.NewDocumentRepo(tx)
		var err error
		doc, err = docRepo.GetByID(ctx, docID)
		if err != nil {
			return err
		}
		if doc.ApplicationID != appID {
			return domain.ErrNotFound
		}
		if msg := canTriage(doc.Status, params.Status); msg != "" {
			return domain.NewPreconditionError("wrong_status", "%s", msg)
		}

		from := doc.Status
		if err := docRepo.UpdateStatus(ctx, doc.ID, params.Status, nil); err != nil {
			return err
		}
		doc.Status = params.Status

		data := map[string]any{
			"document_id": doc.ID,
			"doc_type":    string(doc.DocType),
			"from":        string(from),
			"to":          string(params.Status),
		}
		if params.Note != "" {
			data["note"] = params.Note
		}
		_, err = s.audit.AppendTx(ctx, tx, audit.Entry{
			EventType:     domain.EventDocumentReviewed,
			UserID:        p.UserID,
			UserRole:      string(p.Role),
			ApplicationID: appID,
			EventData:     data,
		})
		return err
	})
	if err != nil {
		return nil, err
	}

	s.publisher.Publish(ctx, events.TopicDocuments, "document.reviewed", "document", doc.ID,
		map[string]any{"application_id": appID, "status": string(doc.Status)})
	return doc, nil
}
