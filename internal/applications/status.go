package applications

import (
	"context"
	"fmt"

	"github.com/homelend/platform/internal/domain"
	"github.com/homelend/platform/internal/storage"
	"github.com/homelend/platform/pkg/auth"
)

// Status is the borrower-facing view of where the file stands.
type Status struct {
	ApplicationID  string   `json:"application_id"`
	Stage          string   `json:"stage"`
	PendingActions []string `json:"pending_actions"`
}

// Status reports the current stage and what the borrower still owes the
// file: unset intake fields, missing documents, and open conditions.
// Terminal stages carry no pending actions; clear_to_close still does.
func (s *Service) Status(ctx context.Context, p *auth.Principal, appID string) (*Status, error) {
	app, err := s.Get(ctx, p, appID)
	if err != nil {
		return nil, err
	}

	status := &Status{
		ApplicationID:  app.ID,
		Stage:          string(app.Stage),
		PendingActions: []string{},
	}
	if app.IsTerminal() {
		return status, nil
	}

	switch app.Stage {
	case domain.StageInquiry, domain.StagePrequalification:
		status.PendingActions = append(status.PendingActions, "complete application details")

	case domain.StageApplication, domain.StageProcessing:
		if s.completeness != nil {
			summary, err := s.completeness.CheckCompleteness(ctx, appID)
			if err != nil {
				return nil, err
			}
			for _, dt := range summary.MissingTypes {
				status.PendingActions = append(status.PendingActions, fmt.Sprintf("upload %s document", dt))
			}
		}

	case domain.StageUnderwriting, domain.StageConditionalApproval, domain.StageSuspended:
		open, err := storage.NewConditionRepo(s.pool).ListByApplication(ctx, appID, true)
		if err != nil {
			return nil, err
		}
		for _, c := range open {
			if c.Status == domain.ConditionOpen {
				status.PendingActions = append(status.PendingActions,
					fmt.Sprintf("respond to condition: %s", c.Description))
			}
		}

	case domain.StageClearToClose:
		status.PendingActions = append(status.PendingActions, "schedule closing")
	}
	return status, nil
}
