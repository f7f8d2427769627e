package applications

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/homelend/platform/internal/audit"
	"github.com/homelend/platform/internal/domain"
	"github.com/homelend/platform/internal/events"
	"github.com/homelend/platform/internal/storage"
	"github.com/homelend/platform/pkg/auth"
	"github.com/homelend/platform/pkg/postgres"
)

// TransitionStage moves an application from one stage to another under the
// optimistic current-stage guard. Every successful transition writes a
// stage_transition audit event in the same transaction.
func (s *Service) TransitionStage(ctx context.Context, p *auth.Principal, appID string, from, to domain.Stage) (*domain.Application, error) {
	if !domain.ValidStage(to) {
		return nil, &domain.ValidationError{Fields: map[string]string{"to_stage": fmt.Sprintf("unknown stage %q", to)}}
	}
	if !domain.CanTransition(from, to) {
		return nil, domain.NewPreconditionError("invalid_transition",
			"transition %s -> %s is not permitted", from, to)
	}

	var app *domain.Application
	err := postgres.WithTransaction(ctx, s.pool, func(tx pgx.Tx) error {
		appRepo := storage.NewApplicationRepo(tx)
		if _, err := appRepo.GetScoped(ctx, appID, p.Scope); err != nil {
			return err
		}
		if err := appRepo.TransitionStage(ctx, appID, from, to); err != nil {
			return err
		}
		var err error
		app, err = appRepo.GetScoped(ctx, appID, p.Scope)
		if err != nil {
			return err
		}
		_, err = s.audit.AppendTx(ctx, tx, audit.Entry{
			EventType:     domain.EventStageTransition,
			UserID:        p.UserID,
			UserRole:      string(p.Role),
			ApplicationID: appID,
			EventData: map[string]any{
				"from_stage": string(from),
				"to_stage":   string(to),
			},
		})
		return err
	})
	if err != nil {
		return nil, err
	}

	s.publisher.Publish(ctx, events.TopicApplications, "application.stage_changed", "application", appID,
		map[string]any{"from_stage": string(from), "to_stage": string(to)})
	return app, nil
}

// AddBorrower links an existing borrower to an application. Duplicate links
// surface as a conflict; a second primary is rejected by the partial unique
// index before any audit row is written.
func (s *Service) AddBorrower(ctx context.Context, p *auth.Principal, appID, borrowerID string, isPrimary bool) error {
	return postgres.WithTransaction(ctx, s.pool, func(tx pgx.Tx) error {
		appRepo := storage.NewApplicationRepo(tx)
		if _, err := appRepo.GetScoped(ctx, appID, p.Scope); err != nil {
			return err
		}
		if _, err := storage.NewBorrowerRepo(tx).GetByID(ctx, borrowerID); err != nil {
			return err
		}
		if err := appRepo.AddBorrower(ctx, appID, borrowerID, isPrimary); err != nil {
			return err
		}
		_, err := s.audit.AppendTx(ctx, tx, audit.Entry{
			EventType:     domain.EventBorrowerAdded,
			UserID:        p.UserID,
			UserRole:      string(p.Role),
			ApplicationID: appID,
			EventData: map[string]any{
				"borrower_id": borrowerID,
				"is_primary":  isPrimary,
			},
		})
		return err
	})
}

// RemoveBorrower unlinks a co-borrower. The primary borrower and the last
// remaining borrower cannot be removed.
func (s *Service) RemoveBorrower(ctx context.Context, p *auth.Principal, appID, borrowerID string) error {
	return postgres.WithTransaction(ctx, s.pool, func(tx pgx.Tx) error {
		appRepo := storage.NewApplicationRepo(tx)
		if _, err := appRepo.GetScoped(ctx, appID, p.Scope); err != nil {
			return err
		}
		_, junctions, err := appRepo.Borrowers(ctx, appID)
		if err != nil {
			return err
		}

		var target *domain.ApplicationBorrower
		for i := range junctions {
			if junctions[i].BorrowerID == borrowerID {
				target = &junctions[i]
				break
			}
		}
		if target == nil {
			return domain.ErrNotFound
		}
		if target.IsPrimary {
			return domain.NewPreconditionError("primary_borrower", "the primary borrower cannot be removed")
		}
		if len(junctions) == 1 {
			return domain.NewPreconditionError("sole_borrower", "the only borrower on an application cannot be removed")
		}

		if err := appRepo.RemoveBorrower(ctx, appID, borrowerID); err != nil {
			return err
		}
		_, err = s.audit.AppendTx(ctx, tx, audit.Entry{
			EventType:     domain.EventBorrowerRemoved,
			UserID:        p.UserID,
			UserRole:      string(p.Role),
			ApplicationID: appID,
			EventData:     map[string]any{"borrower_id": borrowerID},
		})
		return err
	})
}

// SetRateLock locks an interest rate for the application. Any prior active
// lock is superseded.
func (s *Service) SetRateLock(ctx context.Context, p *auth.Principal, appID string, rate decimal.Decimal, days int) (*domain.RateLock, error) {
	if rate.IsNegative() || rate.GreaterThan(decimal.NewFromInt(25)) {
		return nil, &domain.ValidationError{Fields: map[string]string{"rate": "must be between 0 and 25"}}
	}
	if days <= 0 || days > 120 {
		return nil, &domain.ValidationError{Fields: map[string]string{"days": "must be between 1 and 120"}}
	}

	now := time.Now().UTC()
	lock := &domain.RateLock{
		ApplicationID:  appID,
		LockedRate:     rate.Round(3),
		LockDate:       now,
		ExpirationDate: now.AddDate(0, 0, days),
		IsActive:       true,
	}
	err := postgres.WithTransaction(ctx, s.pool, func(tx pgx.Tx) error {
		appRepo := storage.NewApplicationRepo(tx)
		app, err := appRepo.GetScoped(ctx, appID, p.Scope)
		if err != nil {
			return err
		}
		if app.IsTerminal() {
			return domain.NewPreconditionError("terminal_stage",
				"application in stage %s accepts no rate lock", app.Stage)
		}
		if err := storage.NewRateLockRepo(tx).Create(ctx, lock); err != nil {
			return err
		}
		_, err = s.audit.AppendTx(ctx, tx, audit.Entry{
			EventType:     domain.EventRateLockSet,
			UserID:        p.UserID,
			UserRole:      string(p.Role),
			ApplicationID: appID,
			EventData: map[string]any{
				"locked_rate":     lock.LockedRate.String(),
				"expiration_date": lock.ExpirationDate.Format(time.RFC3339),
			},
		})
		return err
	})
	if err != nil {
		return nil, err
	}
	return lock, nil
}

// ActiveRateLock returns the lock currently in force, or ErrNotFound.
func (s *Service) ActiveRateLock(ctx context.Context, p *auth.Principal, appID string) (*domain.RateLock, error) {
	if _, err := s.Get(ctx, p, appID); err != nil {
		return nil, err
	}
	return storage.NewRateLockRepo(s.pool).ActiveLock(ctx, appID)
}
