// Package decisions records underwriting decisions. Approvals are gated on
// the most recent compliance verdict and on outstanding conditions; denials
// always carry adverse-action reasons.
package decisions

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/homelend/platform/internal/audit"
	"github.com/homelend/platform/internal/compliance"
	"github.com/homelend/platform/internal/domain"
	"github.com/homelend/platform/internal/events"
	"github.com/homelend/platform/internal/storage"
	"github.com/homelend/platform/pkg/auth"
	"github.com/homelend/platform/pkg/postgres"
)

// Service owns decision recording.
type Service struct {
	pool      *pgxpool.Pool
	audit     *audit.Service
	publisher *events.Publisher
	logger    *slog.Logger
}

// NewService wires the decision service.
func NewService(pool *pgxpool.Pool, auditSvc *audit.Service, publisher *events.Publisher, logger *slog.Logger) *Service {
	return &Service{pool: pool, audit: auditSvc, publisher: publisher, logger: logger}
}

// RenderParams is the decision request.
type RenderParams struct {
	Decision            string // approve, deny, suspend
	Rationale           string
	DenialReasons       []string
	OverrideRationale   *string
	CreditScoreUsed     *int
	CreditScoreSource   *string
	ContributingFactors map[string]string
}

// Outcome is the computed result of a decision, shared by the recording and
// preview paths.
type Outcome struct {
	DecisionType     domain.DecisionType `json:"decision_type"`
	NewStage         domain.Stage        `json:"new_stage"`
	ComplianceStatus string              `json:"compliance_status"`
	OpenConditions   int                 `json:"open_conditions"`
	AIRecommendation *string             `json:"ai_recommendation,omitempty"`
	AIAgreement      *bool               `json:"ai_agreement,omitempty"`
}

// Render records a decision: writes the Decision row, moves the stage, and
// appends the decision audit event in one transaction. Guard failures are
// themselves audited before the error returns.
func (s *Service) Render(ctx context.Context, p *auth.Principal, appID string, params RenderParams) (*domain.Decision, error) {
	app, outcome, err := s.evaluate(ctx, p, appID, params)
	if err != nil {
		return nil, err
	}

	decision := &domain.Decision{
		ApplicationID:       appID,
		DecisionType:        outcome.DecisionType,
		Rationale:           params.Rationale,
		AIRecommendation:    outcome.AIRecommendation,
		AIAgreement:         outcome.AIAgreement,
		OverrideRationale:   params.OverrideRationale,
		DenialReasons:       params.DenialReasons,
		CreditScoreUsed:     params.CreditScoreUsed,
		CreditScoreSource:   params.CreditScoreSource,
		ContributingFactors: params.ContributingFactors,
		DecidedBy:           p.UserID,
	}

	err = postgres.WithTransaction(ctx, s.pool, func(tx pgx.Tx) error {
		if err := storage.NewDecisionRepo(tx).Create(ctx, decision); err != nil {
			return err
		}
		if outcome.NewStage != app.Stage {
			if err := storage.NewApplicationRepo(tx).TransitionStage(ctx, appID, app.Stage, outcome.NewStage); err != nil {
				return err
			}
			if _, err := s.audit.AppendTx(ctx, tx, audit.Entry{
				EventType:     domain.EventStageTransition,
				UserID:        p.UserID,
				UserRole:      string(p.Role),
				ApplicationID: appID,
				EventData: map[string]any{
					"from_stage": string(app.Stage),
					"to_stage":   string(outcome.NewStage),
				},
			}); err != nil {
				return err
			}
		}

		if _, err := s.audit.AppendTx(ctx, tx, audit.Entry{
			EventType:     domain.EventDecision,
			UserID:        p.UserID,
			UserRole:      string(p.Role),
			ApplicationID: appID,
			DecisionID:    decision.ID,
			EventData: map[string]any{
				"decision_type": string(decision.DecisionType),
				"rationale":     decision.Rationale,
				"ai_agreement":  boolOrNil(decision.AIAgreement),
			},
		}); err != nil {
			return err
		}

		if disagreed(outcome) && params.OverrideRationale != nil {
			if _, err := s.audit.AppendTx(ctx, tx, audit.Entry{
				EventType:     domain.EventOverride,
				UserID:        p.UserID,
				UserRole:      string(p.Role),
				ApplicationID: appID,
				DecisionID:    decision.ID,
				EventData: map[string]any{
					"ai_recommendation":  *outcome.AIRecommendation,
					"decision":           params.Decision,
					"override_rationale": *params.OverrideRationale,
					"high_risk":          true,
				},
			}); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.publisher.Publish(ctx, events.TopicDecisions, "decision.rendered", "decision", decision.ID,
		map[string]any{
			"application_id": appID,
			"decision_type":  string(decision.DecisionType),
		})
	return decision, nil
}

// Propose computes what Render would do without writing anything: no
// Decision row, no stage move, no audit event.
func (s *Service) Propose(ctx context.Context, p *auth.Principal, appID string, params RenderParams) (*Outcome, error) {
	_, outcome, err := s.evaluateInner(ctx, p, appID, params, false)
	if err != nil {
		return nil, err
	}
	return outcome, nil
}

// Get returns one decision after a scope check on its application.
func (s *Service) Get(ctx context.Context, p *auth.Principal, appID, decisionID string) (*domain.Decision, error) {
	if _, err := storage.NewApplicationRepo(s.pool).GetScoped(ctx, appID, p.Scope); err != nil {
		return nil, err
	}
	d, err := storage.NewDecisionRepo(s.pool).GetByID(ctx, decisionID)
	if err != nil {
		return nil, err
	}
	if d.ApplicationID != appID {
		return nil, domain.ErrNotFound
	}
	return d, nil
}

// List returns an application's decisions, newest first.
func (s *Service) List(ctx context.Context, p *auth.Principal, appID string) ([]domain.Decision, error) {
	if _, err := storage.NewApplicationRepo(s.pool).GetScoped(ctx, appID, p.Scope); err != nil {
		return nil, err
	}
	return storage.NewDecisionRepo(s.pool).ListByApplication(ctx, appID)
}

func (s *Service) evaluate(ctx context.Context, p *auth.Principal, appID string, params RenderParams) (*domain.Application, *Outcome, error) {
	return s.evaluateInner(ctx, p, appID, params, true)
}

// evaluateInner runs every guard and computes the outcome. auditErrors
// controls whether guard failures leave a decision_error event on the chain;
// the preview path stays silent.
func (s *Service) evaluateInner(ctx context.Context, p *auth.Principal, appID string, params RenderParams, auditErrors bool) (*domain.Application, *Outcome, error) {
	app, err := storage.NewApplicationRepo(s.pool).GetScoped(ctx, appID, p.Scope)
	if err != nil {
		return nil, nil, err
	}

	if app.Stage != domain.StageUnderwriting && app.Stage != domain.StageConditionalApproval {
		if auditErrors {
			s.auditError(ctx, p, appID, "wrong_stage", map[string]any{"stage": string(app.Stage)})
		}
		return nil, nil, domain.NewPreconditionError("wrong_stage",
			"decisions are rendered in underwriting or conditional_approval, not %s", app.Stage)
	}

	switch params.Decision {
	case "approve", "deny", "suspend":
	default:
		return nil, nil, &domain.ValidationError{Fields: map[string]string{
			"decision": fmt.Sprintf("must be approve, deny, or suspend, not %q", params.Decision)}}
	}
	if params.Rationale == "" {
		return nil, nil, &domain.ValidationError{Fields: map[string]string{"rationale": "must not be empty"}}
	}
	if params.Decision == "deny" && len(params.DenialReasons) == 0 {
		return nil, nil, &domain.ValidationError{Fields: map[string]string{
			"denial_reasons": "at least one denial_reason is required for an adverse action"}}
	}

	outcome := &Outcome{NewStage: app.Stage}

	openConditions, err := storage.NewConditionRepo(s.pool).CountNonTerminal(ctx, appID)
	if err != nil {
		return nil, nil, err
	}
	outcome.OpenConditions = openConditions

	if params.Decision == "approve" {
		status, failing, err := s.latestComplianceVerdict(ctx, appID)
		if err != nil {
			return nil, nil, err
		}
		outcome.ComplianceStatus = status
		if status == "" || status == string(compliance.StatusFail) {
			if auditErrors {
				s.auditError(ctx, p, appID, "compliance_failed", map[string]any{
					"compliance_status": status,
					"failing_checks":    failing,
				})
			}
			msg := "approval blocked: compliance checks FAILED"
			if len(failing) > 0 {
				msg += ": " + strings.Join(failing, ", ")
			} else if status == "" {
				msg = "approval blocked: no compliance check has been run; checks are treated as FAILED"
			}
			return nil, nil, domain.NewPreconditionError("compliance_failed", "%s", msg)
		}
	}

	switch params.Decision {
	case "approve":
		if openConditions > 0 {
			if app.Stage == domain.StageConditionalApproval {
				if auditErrors {
					s.auditError(ctx, p, appID, "outstanding_conditions", map[string]any{"open_conditions": openConditions})
				}
				return nil, nil, domain.NewPreconditionError("outstanding_conditions",
					"final approval requires zero open conditions, %d remain", openConditions)
			}
			outcome.DecisionType = domain.DecisionConditionalApproval
			outcome.NewStage = domain.StageConditionalApproval
		} else {
			outcome.DecisionType = domain.DecisionApproved
			outcome.NewStage = domain.StageClearToClose
		}
	case "deny":
		outcome.DecisionType = domain.DecisionDenied
		outcome.NewStage = domain.StageDenied
	case "suspend":
		outcome.DecisionType = domain.DecisionSuspended
		// Suspension records the decision but leaves the stage alone.
	}

	rec, err := s.latestRecommendation(ctx, appID)
	if err != nil {
		return nil, nil, err
	}
	if rec != "" {
		agreement := rec == params.Decision
		outcome.AIRecommendation = &rec
		outcome.AIAgreement = &agreement
	}
	return app, outcome, nil
}

// latestComplianceVerdict returns the overall status of the newest
// compliance_check event, plus the names of its failing checks. An empty
// status means no check has run.
func (s *Service) latestComplianceVerdict(ctx context.Context, appID string) (string, []string, error) {
	event, err := storage.NewAuditRepo(s.pool).LatestByTypeForApplication(ctx, appID, domain.EventComplianceCheck)
	if err == domain.ErrNotFound {
		return "", nil, nil
	}
	if err != nil {
		return "", nil, err
	}

	status, _ := event.EventData["overall_status"].(string)
	var failing []string
	if checks, ok := event.EventData["checks"].([]any); ok {
		for _, raw := range checks {
			check, ok := raw.(map[string]any)
			if !ok {
				continue
			}
			if check["status"] == string(compliance.StatusFail) {
				if name, ok := check["name"].(string); ok {
					failing = append(failing, name)
				}
			}
		}
	}
	return status, failing, nil
}

// latestRecommendation finds the newest preliminary-recommendation tool call
// on the application.
func (s *Service) latestRecommendation(ctx context.Context, appID string) (string, error) {
	all, err := storage.NewAuditRepo(s.pool).ByApplication(ctx, appID)
	if err != nil {
		return "", err
	}
	for i := len(all) - 1; i >= 0; i-- {
		e := all[i]
		if e.EventType != domain.EventToolCall {
			continue
		}
		if tool, _ := e.EventData["tool"].(string); tool != "uw_preliminary_recommendation" {
			continue
		}
		rec, _ := e.EventData["recommendation"].(string)
		return rec, nil
	}
	return "", nil
}

// auditError records a guard failure so the attempt stays visible in the
// trail. The failure of the audit write itself is only logged; the caller's
// error is the one that matters.
func (s *Service) auditError(ctx context.Context, p *auth.Principal, appID, code string, extra map[string]any) {
	data := map[string]any{"error": code}
	for k, v := range extra {
		data[k] = v
	}
	if _, err := s.audit.Append(ctx, audit.Entry{
		EventType:     domain.EventDecisionError,
		UserID:        p.UserID,
		UserRole:      string(p.Role),
		ApplicationID: appID,
		EventData:     data,
	}); err != nil {
		s.logger.Error("decision guard audit failed", "application_id", appID, "error", err)
	}
}

func disagreed(o *Outcome) bool {
	return o.AIAgreement != nil && !*o.AIAgreement
}

func boolOrNil(b *bool) any {
	if b == nil {
		return nil
	}
	return *b
}
