// Package conditions implements the underwriting-condition lifecycle:
// issue, respond, review, clear, return, waive, escalate. Status moves
// follow a fixed machine; cleared and waived are terminal.
package conditions

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/homelend/platform/internal/audit"
	"github.com/homelend/platform/internal/domain"
	"github.com/homelend/platform/internal/storage"
	"github.com/homelend/platform/pkg/auth"
	"github.com/homelend/platform/pkg/postgres"
)

// Service owns condition lifecycle operations.
type Service struct {
	pool   *pgxpool.Pool
	audit  *audit.Service
	logger *slog.Logger
}

// NewService wires the condition service.
func NewService(pool *pgxpool.Pool, auditSvc *audit.Service, logger *slog.Logger) *Service {
	return &Service{pool: pool, audit: auditSvc, logger: logger}
}

// IssueParams describes a new condition.
type IssueParams struct {
	Description string
	Severity    domain.ConditionSeverity
	DueDate     *time.Time
}

// Issue creates an open condition on an application in underwriting or
// conditional approval.
func (s *Service) Issue(ctx context.Context, p *auth.Principal, appID string, params IssueParams) (*domain.Condition, error) {
	if params.Description == "" {
		return nil, &domain.ValidationError{Fields: map[string]string{"description": "must not be empty"}}
	}
	if !domain.ValidConditionSeverity(params.Severity) {
		return nil, &domain.ValidationError{Fields: map[string]string{"severity": fmt.Sprintf("unknown severity %q", params.Severity)}}
	}

	cond := &domain.Condition{
		ApplicationID: appID,
		Description:   params.Description,
		Severity:      params.Severity,
		Status:        domain.ConditionOpen,
		DueDate:       params.DueDate,
		IssuedBy:      p.UserID,
	}
	err := postgres.WithTransaction(ctx, s.pool, func(tx pgx.Tx) error {
		app, err := storage.NewApplicationRepo(tx).GetScoped(ctx, appID, p.Scope)
		if err != nil {
			return err
		}
		if app.Stage != domain.StageUnderwriting && app.Stage != domain.StageConditionalApproval {
			return domain.NewPreconditionError("wrong_stage",
				"conditions are issued in underwriting, not %s", app.Stage)
		}
		if err := storage.NewConditionRepo(tx).Create(ctx, cond); err != nil {
			return err
		}
		_, err = s.audit.AppendTx(ctx, tx, audit.Entry{
			EventType:     domain.EventConditionIssued,
			UserID:        p.UserID,
			UserRole:      string(p.Role),
			ApplicationID: appID,
			EventData: map[string]any{
				"condition_id": cond.ID,
				"severity":     string(cond.Severity),
			},
		})
		return err
	})
	if err != nil {
		return nil, err
	}
	return cond, nil
}

// List returns an application's conditions, optionally only those still
// needing work.
func (s *Service) List(ctx context.Context, p *auth.Principal, appID string, openOnly bool) ([]domain.Condition, error) {
	if _, err := storage.NewApplicationRepo(s.pool).GetScoped(ctx, appID, p.Scope); err != nil {
		return nil, err
	}
	return storage.NewConditionRepo(s.pool).ListByApplication(ctx, appID, openOnly)
}

// Respond records the borrower's response, moving open → responded.
func (s *Service) Respond(ctx context.Context, p *auth.Principal, appID, conditionID, responseText string) (*domain.Condition, error) {
	if responseText == "" {
		return nil, &domain.ValidationError{Fields: map[string]string{"response_text": "must not be empty"}}
	}
	return s.update(ctx, p, appID, conditionID, domain.EventConditionResponded,
		map[string]any{"action": "respond"},
		func(c *domain.Condition) error {
			if c.Status != domain.ConditionOpen {
				return wrongStatus(c.Status, domain.ConditionOpen)
			}
			c.Status = domain.ConditionResponded
			c.ResponseText = &responseText
			return nil
		})
}

// StartReview moves responded → under_review.
func (s *Service) StartReview(ctx context.Context, p *auth.Principal, appID, conditionID string) (*domain.Condition, error) {
	return s.update(ctx, p, appID, conditionID, domain.EventConditionReviewed,
		map[string]any{"action": "start_review"},
		func(c *domain.Condition) error {
			if c.Status != domain.ConditionResponded {
				return wrongStatus(c.Status, domain.ConditionResponded)
			}
			c.Status = domain.ConditionUnderReview
			return nil
		})
}

// Clear moves under_review → cleared, recording who cleared it.
func (s *Service) Clear(ctx context.Context, p *auth.Principal, appID, conditionID string) (*domain.Condition, error) {
	return s.update(ctx, p, appID, conditionID, domain.EventConditionReviewed,
		map[string]any{"action": "clear"},
		func(c *domain.Condition) error {
			if c.Status != domain.ConditionUnderReview {
				return wrongStatus(c.Status, domain.ConditionUnderReview)
			}
			c.Status = domain.ConditionCleared
			clearedBy := p.UserID
			c.ClearedBy = &clearedBy
			return nil
		})
}

// Return moves under_review back to open, increments the iteration count,
// and appends the reviewer's note to the response text.
func (s *Service) Return(ctx context.Context, p *auth.Principal, appID, conditionID, note string) (*domain.Condition, error) {
	return s.update(ctx, p, appID, conditionID, domain.EventConditionReviewed,
		map[string]any{"action": "return"},
		func(c *domain.Condition) error {
			if c.Status != domain.ConditionUnderReview {
				return wrongStatus(c.Status, domain.ConditionUnderReview)
			}
			c.Status = domain.ConditionOpen
			c.IterationCount++
			if note != "" {
				appended := note
				if c.ResponseText != nil {
					appended = *c.ResponseText + "\n[returned] " + note
				}
				c.ResponseText = &appended
			}
			return nil
		})
}

// Waive moves an open or under_review condition to waived. Only
// prior_to_closing and prior_to_funding conditions may be waived, and a
// rationale is required.
func (s *Service) Waive(ctx context.Context, p *auth.Principal, appID, conditionID, rationale string) (*domain.Condition, error) {
	if rationale == "" {
		return nil, &domain.ValidationError{Fields: map[string]string{"waiver_rationale": "must not be empty"}}
	}
	return s.update(ctx, p, appID, conditionID, domain.EventConditionReviewed,
		map[string]any{"action": "waive"},
		func(c *domain.Condition) error {
			if c.Status != domain.ConditionOpen && c.Status != domain.ConditionUnderReview {
				return domain.NewPreconditionError("wrong_status",
					"condition in status %s cannot be waived", c.Status)
			}
			if !c.Severity.Waivable() {
				return domain.NewPreconditionError("not_waivable",
					"severity %s conditions cannot be waived", c.Severity)
			}
			c.Status = domain.ConditionWaived
			c.WaiverRationale = &rationale
			return nil
		})
}

// Escalate moves any non-terminal condition to escalated.
func (s *Service) Escalate(ctx context.Context, p *auth.Principal, appID, conditionID string) (*domain.Condition, error) {
	return s.update(ctx, p, appID, conditionID, domain.EventConditionReviewed,
		map[string]any{"action": "escalate"},
		func(c *domain.Condition) error {
			if c.Status.Terminal() {
				return domain.NewPreconditionError("terminal_condition",
					"condition in status %s cannot be escalated", c.Status)
			}
			c.Status = domain.ConditionEscalated
			return nil
		})
}

// update loads the condition under scope, applies the mutation, saves it and
// writes the audit event, all in one transaction.
func (s *Service) update(ctx context.Context, p *auth.Principal, appID, conditionID, eventType string, eventData map[string]any, mutate func(*domain.Condition) error) (*domain.Condition, error) {
	var cond *domain.Condition
	err := postgres.WithTransaction(ctx, s.pool, func(tx pgx.Tx) error {
		if _, err := storage.NewApplicationRepo(tx).GetScoped(ctx, appID, p.Scope); err != nil {
			return err
		}
		repo := storage.NewConditionRepo(tx)
		var err error
		cond, err = repo.GetByID(ctx, conditionID)
		if err != nil {
			return err
		}
		if cond.ApplicationID != appID {
			return domain.ErrNotFound
		}
		fromStatus := cond.Status
		if err := mutate(cond); err != nil {
			return err
		}
		if err := repo.Save(ctx, cond); err != nil {
			return err
		}

		eventData["condition_id"] = cond.ID
		eventData["from_status"] = string(fromStatus)
		eventData["to_status"] = string(cond.Status)
		_, err = s.audit.AppendTx(ctx, tx, audit.Entry{
			EventType:     eventType,
			UserID:        p.UserID,
			UserRole:      string(p.Role),
			ApplicationID: appID,
			EventData:     eventData,
		})
		return err
	})
	if err != nil {
		return nil, err
	}
	return cond, nil
}

func wrongStatus(got, want domain.ConditionStatus) error {
	return domain.NewPreconditionError("wrong_status",
		"condition is %s, expected %s", got, want)
}
