// Package audit implements the append-only, hash-chained audit log.
//
// Appends are deliberately serial: one transaction-scoped advisory lock
// covers the whole chain, so verification is a single-pass scan and gaps are
// impossible. Throughput is bounded by lock acquisition at the database;
// writers queue there, not in application memory.
package audit

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/gowebpki/jcs"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/homelend/platform/internal/domain"
	"github.com/homelend/platform/internal/storage"
	"github.com/homelend/platform/pkg/postgres"
)

// auditChainLockKey is the well-known advisory-lock key serializing every
// append across the database.
const auditChainLockKey int64 = 0x61756474_6368 // "audtch"

// Entry is the caller-facing shape of a new audit event.
type Entry struct {
	EventType     string
	UserID        string
	UserRole      string
	ApplicationID string
	DecisionID    string
	SessionID     string
	EventData     map[string]any
}

// Service appends to and reads from the audit chain.
type Service struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// NewService creates the audit service over the lending pool.
func NewService(pool *pgxpool.Pool, logger *slog.Logger) *Service {
	return &Service{pool: pool, logger: logger}
}

// Append writes one event in its own transaction.
func (s *Service) Append(ctx context.Context, entry Entry) (*domain.AuditEvent, error) {
	var event *domain.AuditEvent
	err := postgres.WithTransaction(ctx, s.pool, func(tx pgx.Tx) error {
		var err error
		event, err = s.AppendTx(ctx, tx, entry)
		return err
	})
	if err != nil {
		return nil, err
	}
	return event, nil
}

// AppendTx writes one event inside the caller's transaction. It acquires the
// chain's advisory lock, reads the last committed event, computes the hash
// link, and inserts. The lock releases with the transaction, so a rollback
// (including context cancellation mid-hash) inserts nothing and advances no
// hash.
func (s *Service) AppendTx(ctx context.Context, tx pgx.Tx, entry Entry) (*domain.AuditEvent, error) {
	if err := postgres.AdvisoryXactLock(ctx, tx, auditChainLockKey); err != nil {
		return nil, err
	}

	repo := storage.NewAuditRepo(tx)

	prevHash := domain.GenesisHash
	last, err := repo.Last(ctx)
	switch {
	case err == nil:
		prevHash, err = HashEvent(last)
		if err != nil {
			return nil, fmt.Errorf("audit: hash predecessor: %w", err)
		}
	case err == domain.ErrNotFound:
		// Empty chain: genesis anchor.
	default:
		return nil, err
	}

	event := &domain.AuditEvent{
		PrevHash:      prevHash,
		UserID:        optional(entry.UserID),
		UserRole:      optional(entry.UserRole),
		EventType:     entry.EventType,
		ApplicationID: optional(entry.ApplicationID),
		DecisionID:    optional(entry.DecisionID),
		SessionID:     optional(entry.SessionID),
		EventData:     entry.EventData,
	}
	if err := repo.Insert(ctx, event); err != nil {
		return nil, err
	}
	return event, nil
}

// HashEvent computes the SHA-256 hex digest of an event's canonical
// serialization: id | ISO-8601 timestamp | event_type | user_id | user_role |
// application_id | session_id | stable JSON of event_data, pipe-joined.
// Absent fields serialize as empty strings.
func HashEvent(e *domain.AuditEvent) (string, error) {
	canonical, err := Canonicalize(e)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256([]byte(canonical))
	return hex.EncodeToString(sum[:]), nil
}

// Canonicalize renders the public fields of an event into the byte string
// that feeds the chain hash.
func Canonicalize(e *domain.AuditEvent) (string, error) {
	data := e.EventData
	if data == nil {
		data = map[string]any{}
	}
	raw, err := json.Marshal(data)
	if err != nil {
		return "", fmt.Errorf("audit: marshal event data: %w", err)
	}
	stable, err := jcs.Transform(raw)
	if err != nil {
		return "", fmt.Errorf("audit: canonicalize event data: %w", err)
	}

	parts := []string{
		strconv.FormatInt(e.ID, 10),
		e.Timestamp.UTC().Format(time.RFC3339Nano),
		e.EventType,
		deref(e.UserID),
		deref(e.UserRole),
		deref(e.ApplicationID),
		deref(e.SessionID),
		string(stable),
	}
	return strings.Join(parts, "|"), nil
}

// chainWalker folds the per-link check over events visited in ascending id
// order. The first event must carry the genesis anchor; every later event's
// prev_hash must equal the hash of its predecessor.
type chainWalker struct {
	result domain.ChainVerification
	prev   *domain.AuditEvent
	err    error
}

func newChainWalker() *chainWalker {
	return &chainWalker{result: domain.ChainVerification{Status: domain.ChainOK}}
}

// step checks one link and reports whether the walk should continue.
func (w *chainWalker) step(e *domain.AuditEvent) bool {
	expected := domain.GenesisHash
	if w.prev != nil {
		expected, w.err = HashEvent(w.prev)
		if w.err != nil {
			return false
		}
	}
	if e.PrevHash != expected {
		id := e.ID
		w.result.Status = domain.ChainTampered
		w.result.FirstBreakID = &id
		return false
	}
	w.result.EventsChecked++
	w.prev = e
	return true
}

// VerifyEvents checks a chain already loaded in ascending id order.
// EventsChecked counts events whose prev_hash matched; the event whose link
// failed is reported as FirstBreakID.
func VerifyEvents(events []domain.AuditEvent) (*domain.ChainVerification, error) {
	w := newChainWalker()
	for i := range events {
		if !w.step(&events[i]) {
			break
		}
	}
	if w.err != nil {
		return nil, w.err
	}
	result := w.result
	return &result, nil
}

// Verify walks the audit table in ascending id order and reports the first
// break.
func (s *Service) Verify(ctx context.Context) (*domain.ChainVerification, error) {
	w := newChainWalker()
	if err := storage.NewAuditRepo(s.pool).WalkAsc(ctx, w.step); err != nil {
		return nil, err
	}
	if w.err != nil {
		return nil, w.err
	}
	result := w.result
	return &result, nil
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
