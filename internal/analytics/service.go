// Package analytics derives pipeline and decision metrics. Stage history
// comes from the audit chain, so every number here is reproducible from the
// trail. Results are cached in Redis for a short TTL; computed_at tells the
// caller how stale a cached answer is.
package analytics

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/homelend/platform/internal/domain"
	"github.com/homelend/platform/internal/storage"
)

const cacheTTL = 5 * time.Minute

// Service computes analytics over the lending pool.
type Service struct {
	pool   *pgxpool.Pool
	cache  *redis.Client // nil disables caching
	logger *slog.Logger
}

// NewService wires the analytics service. cache may be nil.
func NewService(pool *pgxpool.Pool, cache *redis.Client, logger *slog.Logger) *Service {
	return &Service{pool: pool, cache: cache, logger: logger}
}

// TurnTime is the mean duration spent in a stage before a given transition.
type TurnTime struct {
	FromStage string  `json:"from_stage"`
	ToStage   string  `json:"to_stage"`
	AvgHours  float64 `json:"avg_hours"`
	Samples   int     `json:"samples"`
}

// PipelineSummary is the executive pipeline view.
type PipelineSummary struct {
	StageCounts    map[string]int `json:"stage_counts"`
	Initiated      int            `json:"initiated"`
	Closed         int            `json:"closed"`
	PullThroughPct float64        `json:"pull_through_pct"`
	TurnTimes      []TurnTime     `json:"turn_times"`
	WindowDays     int            `json:"window_days"`
	ComputedAt     time.Time      `json:"computed_at"`
}

// Pipeline computes stage counts, pull-through, and turn times over the
// window.
func (s *Service) Pipeline(ctx context.Context, days int) (*PipelineSummary, error) {
	if days <= 0 || days > 365 {
		days = 30
	}
	cacheKey := fmt.Sprintf("analytics:pipeline:%d", days)
	var cached PipelineSummary
	if s.cacheGet(ctx, cacheKey, &cached) {
		return &cached, nil
	}

	since := time.Now().UTC().AddDate(0, 0, -days)
	appRepo := storage.NewApplicationRepo(s.pool)

	stageCounts, err := appRepo.StageCounts(ctx)
	if err != nil {
		return nil, err
	}
	initiated, err := appRepo.CountCreatedSince(ctx, since)
	if err != nil {
		return nil, err
	}
	transitions, err := storage.NewAuditRepo(s.pool).StageTransitionsSince(ctx, since)
	if err != nil {
		return nil, err
	}

	summary := &PipelineSummary{
		StageCounts: map[string]int{},
		Initiated:   initiated,
		WindowDays:  days,
		ComputedAt:  time.Now().UTC(),
	}
	for stage, n := range stageCounts {
		summary.StageCounts[string(stage)] = n
	}
	for _, e := range transitions {
		if toStage(e) == string(domain.StageClosed) {
			summary.Closed++
		}
	}
	if initiated > 0 {
		summary.PullThroughPct = round2(float64(summary.Closed) / float64(initiated) * 100)
	}
	summary.TurnTimes = turnTimes(transitions)

	s.cacheSet(ctx, cacheKey, summary)
	return summary, nil
}

// turnTimes averages, per transition pair, the time spent in the source
// stage: the gap between the event that entered the stage and the event that
// left it, per application.
func turnTimes(transitions []domain.AuditEvent) []TurnTime {
	type sample struct {
		total   time.Duration
		samples int
	}
	// arrival[app][stage] = when the application entered the stage
	arrival := map[string]map[string]time.Time{}
	agg := map[[2]string]*sample{}

	for _, e := range transitions {
		if e.ApplicationID == nil {
			continue
		}
		appID := *e.ApplicationID
		from, to := fromStage(e), toStage(e)
		if from == "" || to == "" {
			continue
		}
		if byStage, ok := arrival[appID]; ok {
			if entered, ok := byStage[from]; ok {
				key := [2]string{from, to}
				if agg[key] == nil {
					agg[key] = &sample{}
				}
				agg[key].total += e.Timestamp.Sub(entered)
				agg[key].samples++
			}
		}
		if arrival[appID] == nil {
			arrival[appID] = map[string]time.Time{}
		}
		arrival[appID][to] = e.Timestamp
	}

	out := make([]TurnTime, 0, len(agg))
	for key, v := range agg {
		out = append(out, TurnTime{
			FromStage: key[0],
			ToStage:   key[1],
			AvgHours:  round2(v.total.Hours() / float64(v.samples)),
			Samples:   v.samples,
		})
	}
	return out
}

// PeriodRate is one monthly bucket of the denial trend.
type PeriodRate struct {
	Period    string  `json:"period"` // YYYY-MM
	Decisions int     `json:"decisions"`
	Denials   int     `json:"denials"`
	RatePct   float64 `json:"rate_pct"`
}

// DenialTrends is the fair-lending monitoring view.
type DenialTrends struct {
	OverallRatePct float64            `json:"overall_rate_pct"`
	Periods        []PeriodRate       `json:"periods"`
	TopReasons     map[string]int     `json:"top_reasons"`
	ByProduct      map[string]float64 `json:"by_product,omitempty"`
	WindowDays     int                `json:"window_days"`
	Product        string             `json:"product,omitempty"`
	ComputedAt     time.Time          `json:"computed_at"`
}

// reasonFloor buckets rare denial reasons into "Other" so small counts do
// not identify individual files.
const reasonFloor = 3

// Denials computes denial rates, monthly buckets, aggregated reasons, and
// the per-product breakdown (omitted when a product filter is applied).
func (s *Service) Denials(ctx context.Context, days int, product string) (*DenialTrends, error) {
	if days <= 0 || days > 730 {
		days = 90
	}
	cacheKey := fmt.Sprintf("analytics:denials:%d:%s", days, product)
	var cached DenialTrends
	if s.cacheGet(ctx, cacheKey, &cached) {
		return &cached, nil
	}

	since := time.Now().UTC().AddDate(0, 0, -days)
	decisions, err := storage.NewDecisionRepo(s.pool).ListSince(ctx, since, product)
	if err != nil {
		return nil, err
	}

	trends := &DenialTrends{
		TopReasons: map[string]int{},
		WindowDays: days,
		Product:    product,
		ComputedAt: time.Now().UTC(),
	}

	periodIdx := map[string]*PeriodRate{}
	byProduct := map[string]*struct{ decisions, denials int }{}
	reasonCounts := map[string]int{}
	denials := 0

	for _, d := range decisions {
		denied := d.DecisionType == domain.DecisionDenied
		if denied {
			denials++
			for _, reason := range d.DenialReasons {
				reasonCounts[reason]++
			}
		}

		period := d.CreatedAt.UTC().Format("2006-01")
		bucket := periodIdx[period]
		if bucket == nil {
			bucket = &PeriodRate{Period: period}
			periodIdx[period] = bucket
		}
		bucket.Decisions++
		if denied {
			bucket.Denials++
		}

		if product == "" && d.LoanType != "" {
			pb := byProduct[d.LoanType]
			if pb == nil {
				pb = &struct{ decisions, denials int }{}
				byProduct[d.LoanType] = pb
			}
			pb.decisions++
			if denied {
				pb.denials++
			}
		}
	}

	if len(decisions) > 0 {
		trends.OverallRatePct = round2(float64(denials) / float64(len(decisions)) * 100)
	}

	for _, bucket := range periodIdx {
		bucket.RatePct = round2(float64(bucket.Denials) / float64(bucket.Decisions) * 100)
		trends.Periods = append(trends.Periods, *bucket)
	}
	sortPeriods(trends.Periods)

	other := 0
	for reason, n := range reasonCounts {
		if n < reasonFloor {
			other += n
			continue
		}
		trends.TopReasons[reason] = n
	}
	if other > 0 {
		trends.TopReasons["Other"] += other
	}

	if product == "" {
		trends.ByProduct = map[string]float64{}
		for lt, pb := range byProduct {
			trends.ByProduct[lt] = round2(float64(pb.denials) / float64(pb.decisions) * 100)
		}
	}

	s.cacheSet(ctx, cacheKey, trends)
	return trends, nil
}

func sortPeriods(periods []PeriodRate) {
	for i := 1; i < len(periods); i++ {
		for j := i; j > 0 && periods[j].Period < periods[j-1].Period; j-- {
			periods[j], periods[j-1] = periods[j-1], periods[j]
		}
	}
}

func (s *Service) cacheGet(ctx context.Context, key string, out any) bool {
	if s.cache == nil {
		return false
	}
	raw, err := s.cache.Get(ctx, key).Bytes()
	if err != nil {
		return false
	}
	return json.Unmarshal(raw, out) == nil
}

func (s *Service) cacheSet(ctx context.Context, key string, value any) {
	if s.cache == nil {
		return
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return
	}
	if err := s.cache.Set(ctx, key, raw, cacheTTL).Err(); err != nil {
		s.logger.Warn("analytics cache write failed", "key", key, "error", err)
	}
}

func round2(f float64) float64 {
	return float64(int(f*100+0.5)) / 100
}

func fromStage(e domain.AuditEvent) string {
	v, _ := e.EventData["from_stage"].(string)
	return v
}

func toStage(e domain.AuditEvent) string {
	v, _ := e.EventData["to_stage"].(string)
	return v
}
