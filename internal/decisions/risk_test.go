package decisions_test

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/homelend/platform/internal/decisions"
)

func ratio(v float64) *decimal.Decimal {
	d := decimal.NewFromFloat(v)
	return &d
}

func score(n int) *int { return &n }

func TestRateDTI(t *testing.T) {
	tests := []struct {
		name string
		dti  *decimal.Decimal
		want decisions.RiskRating
	}{
		{"nil", nil, decisions.RiskUnknown},
		{"low", ratio(0.28), decisions.RiskLow},
		{"just under 36", ratio(0.3599), decisions.RiskLow},
		{"at 36", ratio(0.36), decisions.RiskMedium},
		{"at 43", ratio(0.43), decisions.RiskMedium},
		{"over 43", ratio(0.44), decisions.RiskHigh},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, decisions.RateDTI(tt.dti))
		})
	}
}

func TestRateLTV(t *testing.T) {
	assert.Equal(t, decisions.RiskUnknown, decisions.RateLTV(nil))
	assert.Equal(t, decisions.RiskLow, decisions.RateLTV(ratio(55)))
	assert.Equal(t, decisions.RiskMedium, decisions.RateLTV(ratio(60)))
	assert.Equal(t, decisions.RiskMedium, decisions.RateLTV(ratio(80)))
	assert.Equal(t, decisions.RiskHigh, decisions.RateLTV(ratio(80.01)))
}

func TestRateCredit(t *testing.T) {
	assert.Equal(t, decisions.RiskUnknown, decisions.RateCredit(nil))
	assert.Equal(t, decisions.RiskLow, decisions.RateCredit(score(681)))
	assert.Equal(t, decisions.RiskMedium, decisions.RateCredit(score(680)))
	assert.Equal(t, decisions.RiskMedium, decisions.RateCredit(score(620)))
	assert.Equal(t, decisions.RiskHigh, decisions.RateCredit(score(619)))
}
