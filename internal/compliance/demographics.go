package compliance

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/homelend/platform/internal/audit"
	"github.com/homelend/platform/internal/domain"
	"github.com/homelend/platform/internal/storage"
	"github.com/homelend/platform/pkg/auth"
	"github.com/homelend/platform/pkg/postgres"
)

// HmdaService owns the isolated compliance schema. It is the only code in
// the process constructed over the compliance pool; the lending role cannot
// reach hmda tables at all.
type HmdaService struct {
	compliancePool *pgxpool.Pool
	lendingPool    *pgxpool.Pool
	audit          *audit.Service
	logger         *slog.Logger
}

// NewHmdaService wires the HMDA service over both pools. The lending pool is
// used only to resolve the primary borrower and to read financials for the
// loan-data snapshot.
func NewHmdaService(compliancePool, lendingPool *pgxpool.Pool, auditSvc *audit.Service, logger *slog.Logger) *HmdaService {
	return &HmdaService{
		compliancePool: compliancePool,
		lendingPool:    lendingPool,
		audit:          auditSvc,
		logger:         logger,
	}
}

// CollectParams is one demographic collection attempt. Fields are optional;
// each may carry its own collection method, defaulting to self_reported.
type CollectParams struct {
	ApplicationID   string
	BorrowerID      string // optional, defaults to the primary borrower
	Race            *string
	RaceMethod      *domain.CollectionMethod
	Ethnicity       *string
	EthnicityMethod *domain.CollectionMethod
	Sex             *string
	SexMethod       *domain.CollectionMethod
	Age             *int
	AgeMethod       *domain.CollectionMethod
}

// CollectResult is the stored row plus how each attempted field resolved.
type CollectResult struct {
	Demographic *domain.HmdaDemographic      `json:"demographic"`
	Conflicts   []domain.DemographicConflict `json:"conflicts"`
}

// Collect upserts demographic fields under the per-field provenance rule:
// a higher-precedence collection method overwrites a stored value, an equal
// or lower one keeps it and reports kept_existing. Identical values resolve
// silently. The read-modify-write runs in one transaction on the unique
// (application, borrower) key, which makes a sequence of same-field updates
// commutative.
func (s *HmdaService) Collect(ctx context.Context, p *auth.Principal, params CollectParams) (*CollectResult, error) {
	if params.ApplicationID == "" {
		return nil, &domain.ValidationError{Fields: map[string]string{"application_id": "required"}}
	}
	if err := validateMethods(params); err != nil {
		return nil, err
	}

	borrowerID := params.BorrowerID
	if borrowerID == "" {
		primary, err := storage.NewApplicationRepo(s.lendingPool).PrimaryBorrower(ctx, params.ApplicationID)
		if err != nil {
			return nil, err
		}
		borrowerID = primary.ID
	}

	result := &CollectResult{Conflicts: []domain.DemographicConflict{}}
	err := postgres.WithTransaction(ctx, s.compliancePool, func(tx pgx.Tx) error {
		repo := storage.NewHmdaRepo(tx)

		row, err := repo.GetDemographic(ctx, params.ApplicationID, borrowerID)
		if err == domain.ErrNotFound {
			row = &domain.HmdaDemographic{ApplicationID: params.ApplicationID, BorrowerID: borrowerID}
		} else if err != nil {
			return err
		}

		apply := func(field string, newVal *string, newMethod *domain.CollectionMethod, stored **string, storedMethod **domain.CollectionMethod) {
			if newVal == nil {
				return
			}
			method := domain.MethodSelfReported
			if newMethod != nil {
				method = *newMethod
			}
			resolveField(field, *newVal, method, stored, storedMethod, &result.Conflicts)
		}
		apply("race", params.Race, params.RaceMethod, &row.Race, &row.RaceMethod)
		apply("ethnicity", params.Ethnicity, params.EthnicityMethod, &row.Ethnicity, &row.EthnicityMethod)
		apply("sex", params.Sex, params.SexMethod, &row.Sex, &row.SexMethod)
		if params.Age != nil {
			method := domain.MethodSelfReported
			if params.AgeMethod != nil {
				method = *params.AgeMethod
			}
			ageStr := strconv.Itoa(*params.Age)
			var stored *string
			if row.Age != nil {
				v := strconv.Itoa(*row.Age)
				stored = &v
			}
			resolveField("age", ageStr, method, &stored, &row.AgeMethod, &result.Conflicts)
			if stored != nil {
				if n, err := strconv.Atoi(*stored); err == nil {
					row.Age = &n
				}
			}
		}

		if err := repo.SaveDemographic(ctx, row); err != nil {
			return err
		}
		result.Demographic = row
		return nil
	})
	if err != nil {
		return nil, err
	}

	conflicts := make([]map[string]any, 0, len(result.Conflicts))
	for _, c := range result.Conflicts {
		conflicts = append(conflicts, map[string]any{"field": c.Field, "resolution": c.Resolution})
	}
	_, err = s.audit.Append(ctx, audit.Entry{
		EventType:     domain.EventHmdaCollection,
		UserID:        p.UserID,
		UserRole:      string(p.Role),
		ApplicationID: params.ApplicationID,
		EventData: map[string]any{
			"borrower_id": borrowerID,
			"fields":      attemptedFields(params),
			"conflicts":   conflicts,
		},
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// resolveField applies one field's precedence rule in place and records the
// resolution when the incoming value differs from the stored one.
func resolveField(field, newVal string, method domain.CollectionMethod, stored **string, storedMethod **domain.CollectionMethod, conflicts *[]domain.DemographicConflict) {
	if *stored == nil {
		v := newVal
		m := method
		*stored = &v
		*storedMethod = &m
		return
	}
	if **stored == newVal {
		// Identical value: refresh the method if stronger, report nothing.
		if *storedMethod == nil || method.Precedence() > (**storedMethod).Precedence() {
			m := method
			*storedMethod = &m
		}
		return
	}

	existing := domain.MethodNotProvided
	if *storedMethod != nil {
		existing = **storedMethod
	}
	if method.Precedence() > existing.Precedence() {
		v := newVal
		m := method
		*stored = &v
		*storedMethod = &m
		*conflicts = append(*conflicts, domain.DemographicConflict{Field: field, Resolution: "overwritten"})
		return
	}
	*conflicts = append(*conflicts, domain.DemographicConflict{Field: field, Resolution: "kept_existing"})
}

// Demographic reads a stored demographic row. Exposed only on compliance
// surfaces; nothing in the lending path calls it.
func (s *HmdaService) Demographic(ctx context.Context, appID, borrowerID string) (*domain.HmdaDemographic, error) {
	return storage.NewHmdaRepo(s.compliancePool).GetDemographic(ctx, appID, borrowerID)
}

func validateMethods(params CollectParams) error {
	fields := map[string]string{}
	check := func(name string, m *domain.CollectionMethod) {
		if m != nil && !domain.ValidCollectionMethod(*m) {
			fields[name] = fmt.Sprintf("unknown collection method %q", *m)
		}
	}
	check("race_collected_method", params.RaceMethod)
	check("ethnicity_collected_method", params.EthnicityMethod)
	check("sex_collected_method", params.SexMethod)
	check("age_collected_method", params.AgeMethod)
	if len(fields) > 0 {
		return &domain.ValidationError{Fields: fields}
	}
	return nil
}

func attemptedFields(params CollectParams) []string {
	var out []string
	if params.Race != nil {
		out = append(out, "race")
	}
	if params.Ethnicity != nil {
		out = append(out, "ethnicity")
	}
	if params.Sex != nil {
		out = append(out, "sex")
	}
	if params.Age != nil {
		out = append(out, "age")
	}
	return out
}
