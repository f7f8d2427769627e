package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/homelend/platform/internal/domain"
	"github.com/homelend/platform/pkg/postgres"
)

// RateLockRepo persists rate locks.
type RateLockRepo struct {
	db postgres.Querier
}

// NewRateLockRepo creates a repository over a pool or transaction.
func NewRateLockRepo(db postgres.Querier) *RateLockRepo {
	return &RateLockRepo{db: db}
}

// Create inserts a rate lock after deactivating any earlier locks on the
// application, so at most one lock is flagged active at a time.
func (r *RateLockRepo) Create(ctx context.Context, lock *domain.RateLock) error {
	if _, err := r.db.Exec(ctx,
		`UPDATE rate_locks SET is_active = false WHERE application_id = $1 AND is_active`,
		lock.ApplicationID); err != nil {
		return fmt.Errorf("storage: deactivate rate locks: %w", err)
	}

	row := r.db.QueryRow(ctx, `
		INSERT INTO rate_locks (application_id, locked_rate, lock_date, expiration_date, is_active)
		VALUES ($1, $2, $3, $4, true)
		RETURNING id, created_at`,
		lock.ApplicationID, lock.LockedRate, lock.LockDate, lock.ExpirationDate)
	if err := row.Scan(&lock.ID, &lock.CreatedAt); err != nil {
		return fmt.Errorf("storage: create rate lock: %w", err)
	}
	lock.IsActive = true
	return nil
}

// ActiveLock returns the active, unexpired lock for an application.
func (r *RateLockRepo) ActiveLock(ctx context.Context, appID string) (*domain.RateLock, error) {
	row := r.db.QueryRow(ctx, `
		SELECT id, application_id, locked_rate, lock_date, expiration_date, is_active, created_at
		FROM rate_locks
		WHERE application_id = $1 AND is_active AND expiration_date > now()
		ORDER BY lock_date DESC
		LIMIT 1`, appID)

	var lock domain.RateLock
	err := row.Scan(&lock.ID, &lock.ApplicationID, &lock.LockedRate,
		&lock.LockDate, &lock.ExpirationDate, &lock.IsActive, &lock.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("storage: active rate lock: %w", err)
	}
	return &lock, nil
}
