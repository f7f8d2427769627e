package audit

import (
	"context"

	"github.com/homelend/platform/internal/domain"
	"github.com/homelend/platform/internal/storage"
)

// DecisionTrace groups an application's audit trail around one decision.
type DecisionTrace struct {
	DecisionID    string                        `json:"decision_id"`
	ApplicationID string                        `json:"application_id"`
	DecisionType  string                        `json:"decision_type"`
	DecidedBy     string                        `json:"decided_by"`
	EventsByType  map[string][]domain.AuditEvent `json:"events_by_type"`
	TotalEvents   int                           `json:"total_events"`
}

// ByApplication returns an application's events in chain order.
func (s *Service) ByApplication(ctx context.Context, appID string) ([]domain.AuditEvent, error) {
	return storage.NewAuditRepo(s.pool).ByApplication(ctx, appID)
}

// BySession returns a chat session's events in chain order.
func (s *Service) BySession(ctx context.Context, sessionID string) ([]domain.AuditEvent, error) {
	return storage.NewAuditRepo(s.pool).BySession(ctx, sessionID)
}

// Violations returns recorded tamper attempts, newest first.
func (s *Service) Violations(ctx context.Context, limit int) ([]domain.AuditViolation, error) {
	if limit <= 0 || limit > 1000 {
		limit = 100
	}
	return storage.NewAuditRepo(s.pool).Violations(ctx, limit)
}

// TraceDecision assembles the grouped audit trail behind a decision: every
// event on the decision's application, bucketed by event type.
func (s *Service) TraceDecision(ctx context.Context, decisionID string) (*DecisionTrace, error) {
	decision, err := storage.NewDecisionRepo(s.pool).GetByID(ctx, decisionID)
	if err != nil {
		return nil, err
	}
	events, err := s.ByApplication(ctx, decision.ApplicationID)
	if err != nil {
		return nil, err
	}

	trace := &DecisionTrace{
		DecisionID:    decision.ID,
		ApplicationID: decision.ApplicationID,
		DecisionType:  string(decision.DecisionType),
		DecidedBy:     decision.DecidedBy,
		EventsByType:  make(map[string][]domain.AuditEvent),
		TotalEvents:   len(events),
	}
	for _, e := range events {
		trace.EventsByType[e.EventType] = append(trace.EventsByType[e.EventType], e)
	}
	return trace, nil
}
