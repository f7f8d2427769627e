package decisions

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/homelend/platform/internal/domain"
	"github.com/homelend/platform/internal/storage"
	"github.com/homelend/platform/pkg/auth"
)

// RiskRating buckets a metric into Low, Medium, or High.
type RiskRating string

const (
	RiskLow     RiskRating = "Low"
	RiskMedium  RiskRating = "Medium"
	RiskHigh    RiskRating = "High"
	RiskUnknown RiskRating = "Unknown"
)

// RiskProfile is the per-metric risk view underwriters see next to the
// preliminary recommendation.
type RiskProfile struct {
	DTIRating    RiskRating `json:"dti_rating"`
	LTVRating    RiskRating `json:"ltv_rating"`
	CreditRating RiskRating `json:"credit_rating"`
}

var (
	dtiLowCeiling  = decimal.NewFromInt(36) // percent
	dtiHighFloor   = decimal.NewFromInt(43)
	ltvLowCeiling  = decimal.NewFromInt(60)
	ltvHighFloor   = decimal.NewFromInt(80)
	creditLowFloor = 680
	creditHighCap  = 620
)

// RateDTI buckets a DTI ratio (0..1): below 36% Low, 36-43% Medium, above
// High.
func RateDTI(dti *decimal.Decimal) RiskRating {
	if dti == nil {
		return RiskUnknown
	}
	pct := dti.Mul(decimal.NewFromInt(100))
	switch {
	case pct.LessThan(dtiLowCeiling):
		return RiskLow
	case pct.LessThanOrEqual(dtiHighFloor):
		return RiskMedium
	default:
		return RiskHigh
	}
}

// RateLTV buckets a loan-to-value percentage: below 60 Low, 60-80 Medium,
// above High.
func RateLTV(ltv *decimal.Decimal) RiskRating {
	if ltv == nil {
		return RiskUnknown
	}
	switch {
	case ltv.LessThan(ltvLowCeiling):
		return RiskLow
	case ltv.LessThanOrEqual(ltvHighFloor):
		return RiskMedium
	default:
		return RiskHigh
	}
}

// RateCredit buckets a credit score: above 680 Low, 620-680 Medium, below
// High.
func RateCredit(score *int) RiskRating {
	if score == nil {
		return RiskUnknown
	}
	switch {
	case *score > creditLowFloor:
		return RiskLow
	case *score >= creditHighCap:
		return RiskMedium
	default:
		return RiskHigh
	}
}

// ComputeRisk assembles the risk profile from the application and its
// financials.
func (s *Service) ComputeRisk(ctx context.Context, p *auth.Principal, appID string) (*RiskProfile, error) {
	app, err := storage.NewApplicationRepo(s.pool).GetScoped(ctx, appID, p.Scope)
	if err != nil {
		return nil, err
	}
	finRows, err := storage.NewFinancialsRepo(s.pool).ListByApplication(ctx, appID)
	if err != nil {
		return nil, err
	}

	var score *int
	for _, row := range finRows {
		if row.CreditScore != nil {
			score = row.CreditScore
			break
		}
	}
	return &RiskProfile{
		DTIRating:    RateDTI(domain.AggregateDTI(finRows)),
		LTVRating:    RateLTV(app.LTV()),
		CreditRating: RateCredit(score),
	}, nil
}
