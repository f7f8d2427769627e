package audit

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/homelend/platform/internal/domain"
	"github.com/homelend/platform/internal/storage"
)

// exportHeader is the fixed CSV column order. prev_hash is included so an
// exported file can be re-verified offline.
var exportHeader = []string{
	"id", "timestamp", "prev_hash", "event_type",
	"user_id", "user_role", "application_id", "decision_id", "session_id", "event_data",
}

// SearchParams bounds an export or search query.
type SearchParams struct {
	From      time.Time
	To        time.Time
	EventType string
	Limit     int
}

func (p SearchParams) withDefaults() SearchParams {
	if p.To.IsZero() {
		p.To = time.Now().UTC()
	}
	if p.From.IsZero() {
		p.From = p.To.AddDate(0, -1, 0)
	}
	if p.Limit <= 0 || p.Limit > 10000 {
		p.Limit = 10000
	}
	return p
}

// Search returns events matching the window and optional type filter.
func (s *Service) Search(ctx context.Context, params SearchParams) ([]domain.AuditEvent, error) {
	params = params.withDefaults()
	repo := storage.NewAuditRepo(s.pool)
	return repo.Search(ctx, params.From, params.To, params.EventType, params.Limit)
}

// ExportJSON writes the matching events to w as a JSON array.
func (s *Service) ExportJSON(ctx context.Context, w io.Writer, params SearchParams) error {
	events, err := s.Search(ctx, params)
	if err != nil {
		return err
	}
	if events == nil {
		events = []domain.AuditEvent{}
	}
	enc := json.NewEncoder(w)
	if err := enc.Encode(events); err != nil {
		return fmt.Errorf("audit: encode export: %w", err)
	}
	return nil
}

// ExportCSV writes the matching events to w with the fixed header row.
func (s *Service) ExportCSV(ctx context.Context, w io.Writer, params SearchParams) error {
	events, err := s.Search(ctx, params)
	if err != nil {
		return err
	}

	cw := csv.NewWriter(w)
	if err := cw.Write(exportHeader); err != nil {
		return fmt.Errorf("audit: write export header: %w", err)
	}
	for i := range events {
		e := &events[i]
		data, err := json.Marshal(e.EventData)
		if err != nil {
			return fmt.Errorf("audit: marshal event data: %w", err)
		}
		record := []string{
			strconv.FormatInt(e.ID, 10),
			e.Timestamp.UTC().Format(time.RFC3339Nano),
			e.PrevHash,
			e.EventType,
			deref(e.UserID),
			deref(e.UserRole),
			deref(e.ApplicationID),
			deref(e.DecisionID),
			deref(e.SessionID),
			string(data),
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("audit: write export row: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}
