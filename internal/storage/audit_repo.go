package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/homelend/platform/internal/domain"
	"github.com/homelend/platform/pkg/postgres"
)

// AuditRepo reads and appends audit events. There is no update or delete
// here on purpose: the table is append-only by database policy and nothing
// in the codebase may attempt otherwise.
type AuditRepo struct {
	db postgres.Querier
}

// NewAuditRepo creates a repository over a pool or transaction.
func NewAuditRepo(db postgres.Querier) *AuditRepo {
	return &AuditRepo{db: db}
}

const auditColumns = `id, timestamp, prev_hash, user_id, user_role, event_type,
	application_id, decision_id, event_data, session_id`

// Insert appends one event. The caller computes prev_hash under the chain's
// advisory lock.
func (r *AuditRepo) Insert(ctx context.Context, e *domain.AuditEvent) error {
	data := e.EventData
	if data == nil {
		data = map[string]any{}
	}
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("storage: marshal event data: %w", err)
	}

	row := r.db.QueryRow(ctx, `
		INSERT INTO audit_events
			(prev_hash, user_id, user_role, event_type, application_id, decision_id, event_data, session_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, timestamp`,
		e.PrevHash, e.UserID, e.UserRole, e.EventType, e.ApplicationID, e.DecisionID, payload, e.SessionID)
	if err := row.Scan(&e.ID, &e.Timestamp); err != nil {
		return fmt.Errorf("storage: insert audit event: %w", err)
	}
	return nil
}

// Last returns the most recently committed event, or ErrNotFound on an empty
// chain.
func (r *AuditRepo) Last(ctx context.Context) (*domain.AuditEvent, error) {
	row := r.db.QueryRow(ctx,
		fmt.Sprintf(`SELECT %s FROM audit_events ORDER BY id DESC LIMIT 1`, auditColumns))
	e, err := scanAuditEvent(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return e, nil
}

// WalkAsc streams every event in ascending id order into fn. fn returning
// false stops the walk early.
func (r *AuditRepo) WalkAsc(ctx context.Context, fn func(e *domain.AuditEvent) bool) error {
	rows, err := r.db.Query(ctx,
		fmt.Sprintf(`SELECT %s FROM audit_events ORDER BY id ASC`, auditColumns))
	if err != nil {
		return fmt.Errorf("storage: walk audit events: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		e, err := scanAuditEvent(rows)
		if err != nil {
			return err
		}
		if !fn(e) {
			return nil
		}
	}
	return rows.Err()
}

// ByApplication returns an application's events in chain order.
func (r *AuditRepo) ByApplication(ctx context.Context, appID string) ([]domain.AuditEvent, error) {
	rows, err := r.db.Query(ctx,
		fmt.Sprintf(`SELECT %s FROM audit_events WHERE application_id = $1 ORDER BY id ASC`, auditColumns),
		appID)
	if err != nil {
		return nil, fmt.Errorf("storage: audit by application: %w", err)
	}
	return collectAuditEvents(rows)
}

// BySession returns a session's events in chain order.
func (r *AuditRepo) BySession(ctx context.Context, sessionID string) ([]domain.AuditEvent, error) {
	rows, err := r.db.Query(ctx,
		fmt.Sprintf(`SELECT %s FROM audit_events WHERE session_id = $1 ORDER BY id ASC`, auditColumns),
		sessionID)
	if err != nil {
		return nil, fmt.Errorf("storage: audit by session: %w", err)
	}
	return collectAuditEvents(rows)
}

// Search returns events by time range and optional event type, oldest first,
// capped at limit.
func (r *AuditRepo) Search(ctx context.Context, from, to time.Time, eventType string, limit int) ([]domain.AuditEvent, error) {
	query := fmt.Sprintf(`SELECT %s FROM audit_events WHERE timestamp >= $1 AND timestamp <= $2`, auditColumns)
	args := []any{from, to}
	if eventType != "" {
		query += ` AND event_type = $3`
		args = append(args, eventType)
	}
	query += fmt.Sprintf(` ORDER BY id ASC LIMIT %d`, limit)

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("storage: search audit events: %w", err)
	}
	return collectAuditEvents(rows)
}

// LatestByTypeForApplication returns the newest event of a type on an
// application, or ErrNotFound. Decision gating uses this to find compliance
// verdicts and tool recommendations.
func (r *AuditRepo) LatestByTypeForApplication(ctx context.Context, appID, eventType string) (*domain.AuditEvent, error) {
	row := r.db.QueryRow(ctx,
		fmt.Sprintf(`
			SELECT %s FROM audit_events
			WHERE application_id = $1 AND event_type = $2
			ORDER BY id DESC LIMIT 1`, auditColumns),
		appID, eventType)
	e, err := scanAuditEvent(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return e, nil
}

// StageTransitionsSince returns stage_transition events in the window, for
// turn-time analytics.
func (r *AuditRepo) StageTransitionsSince(ctx context.Context, since time.Time) ([]domain.AuditEvent, error) {
	rows, err := r.db.Query(ctx,
		fmt.Sprintf(`
			SELECT %s FROM audit_events
			WHERE event_type = $1 AND timestamp >= $2
			ORDER BY id ASC`, auditColumns),
		domain.EventStageTransition, since)
	if err != nil {
		return nil, fmt.Errorf("storage: stage transitions since: %w", err)
	}
	return collectAuditEvents(rows)
}

// Violations returns recorded tamper attempts, newest first.
func (r *AuditRepo) Violations(ctx context.Context, limit int) ([]domain.AuditViolation, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, attempted_operation, db_user, audit_event_id, timestamp
		FROM audit_violations
		ORDER BY id DESC
		LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("storage: list audit violations: %w", err)
	}
	defer rows.Close()

	var out []domain.AuditViolation
	for rows.Next() {
		var v domain.AuditViolation
		if err := rows.Scan(&v.ID, &v.AttemptedOperation, &v.DBUser, &v.AuditEventID, &v.Timestamp); err != nil {
			return nil, fmt.Errorf("storage: scan audit violation: %w", err)
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

func collectAuditEvents(rows pgx.Rows) ([]domain.AuditEvent, error) {
	defer rows.Close()
	var out []domain.AuditEvent
	for rows.Next() {
		e, err := scanAuditEvent(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *e)
	}
	return out, rows.Err()
}

func scanAuditEvent(s scannable) (*domain.AuditEvent, error) {
	var e domain.AuditEvent
	var payload []byte
	err := s.Scan(
		&e.ID, &e.Timestamp, &e.PrevHash, &e.UserID, &e.UserRole, &e.EventType,
		&e.ApplicationID, &e.DecisionID, &payload, &e.SessionID,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("storage: scan audit event: %w", err)
	}
	if len(payload) > 0 {
		if err := json.Unmarshal(payload, &e.EventData); err != nil {
			return nil, fmt.Errorf("storage: decode event data: %w", err)
		}
	}
	return &e, nil
}
