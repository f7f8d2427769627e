package compliance_test

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/homelend/platform/internal/compliance"
)

func dtiPtr(v float64) *decimal.Decimal {
	d := decimal.NewFromFloat(v)
	return &d
}

func datePtr(y int, m time.Month, d int) *time.Time {
	t := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	return &t
}

func TestCheckATRQM_Bands(t *testing.T) {
	tests := []struct {
		name string
		in   compliance.Input
		want compliance.CheckStatus
	}{
		{"no DTI", compliance.Input{DocsComplete: true}, compliance.StatusFail},
		{"over hard cap", compliance.Input{DTI: dtiPtr(0.51), DocsComplete: true}, compliance.StatusFail},
		{"docs incomplete", compliance.Input{DTI: dtiPtr(0.30), DocsComplete: false}, compliance.StatusWarning},
		{"at safe harbor boundary", compliance.Input{DTI: dtiPtr(0.43), DocsComplete: true}, compliance.StatusConditionalPass},
		{"at hard cap", compliance.Input{DTI: dtiPtr(0.50), DocsComplete: true}, compliance.StatusConditionalPass},
		{"safe harbor", compliance.Input{DTI: dtiPtr(0.35), DocsComplete: true}, compliance.StatusPass},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := compliance.CheckATRQM(tt.in)
			assert.Equal(t, tt.want, result.Status, result.Details)
		})
	}
}

func TestCheckATRQM_CapBeatsMissingDocs(t *testing.T) {
	// Over the 0.50 cap fails even when documentation is also incomplete.
	result := compliance.CheckATRQM(compliance.Input{DTI: dtiPtr(0.60), DocsComplete: false})
	assert.Equal(t, compliance.StatusFail, result.Status)
	assert.Contains(t, result.Details, "0.50")
}

func TestCheckECOA(t *testing.T) {
	assert.Equal(t, compliance.StatusPass, compliance.CheckECOA(compliance.Input{}).Status)

	flagged := compliance.CheckECOA(compliance.Input{DemographicQueried: true})
	assert.Equal(t, compliance.StatusWarning, flagged.Status)
	assert.Contains(t, flagged.Details, "refused")
}

func TestBusinessDays(t *testing.T) {
	mon := time.Date(2026, time.August, 17, 9, 0, 0, 0, time.UTC)

	tests := []struct {
		name string
		from time.Time
		to   time.Time
		want int
	}{
		{"same day", mon, mon, 0},
		{"next day", mon, mon.AddDate(0, 0, 1), 1},
		{"mon to fri", mon, mon.AddDate(0, 0, 4), 4},
		{"across weekend", mon, mon.AddDate(0, 0, 7), 5},
		{"fri to mon", mon.AddDate(0, 0, 4), mon.AddDate(0, 0, 7), 1},
		{"negative span", mon, mon.AddDate(0, 0, -3), 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, compliance.BusinessDays(tt.from, tt.to))
		})
	}
}

func TestCheckTRID_LoanEstimate(t *testing.T) {
	created := time.Date(2026, time.August, 17, 0, 0, 0, 0, time.UTC) // Monday

	results := compliance.CheckTRID(compliance.Input{
		AppCreated:     created,
		LEDeliveryDate: datePtr(2026, time.August, 19),
	})
	require.Len(t, results, 2)
	assert.Equal(t, "TRID-LE", results[0].Name)
	assert.Equal(t, compliance.StatusPass, results[0].Status)

	late := compliance.CheckTRID(compliance.Input{
		AppCreated:     created,
		LEDeliveryDate: datePtr(2026, time.August, 25),
	})
	assert.Equal(t, compliance.StatusFail, late[0].Status)

	missing := compliance.CheckTRID(compliance.Input{AppCreated: created})
	assert.Equal(t, compliance.StatusWarning, missing[0].Status)
}

func TestCheckTRID_ClosingDisclosure(t *testing.T) {
	created := time.Date(2026, time.August, 3, 0, 0, 0, 0, time.UTC)
	le := datePtr(2026, time.August, 4)

	noClosing := compliance.CheckTRID(compliance.Input{AppCreated: created, LEDeliveryDate: le})
	assert.Equal(t, compliance.StatusNotApplicable, noClosing[1].Status)

	noCD := compliance.CheckTRID(compliance.Input{
		AppCreated:     created,
		LEDeliveryDate: le,
		ClosingDate:    datePtr(2026, time.September, 1),
	})
	assert.Equal(t, compliance.StatusWarning, noCD[1].Status)

	// CD Monday, closing Thursday: 3 business days, minimum satisfied.
	onTime := compliance.CheckTRID(compliance.Input{
		AppCreated:     created,
		LEDeliveryDate: le,
		CDDeliveryDate: datePtr(2026, time.August, 24),
		ClosingDate:    datePtr(2026, time.August, 27),
	})
	assert.Equal(t, compliance.StatusPass, onTime[1].Status)

	rushed := compliance.CheckTRID(compliance.Input{
		AppCreated:     created,
		LEDeliveryDate: le,
		CDDeliveryDate: datePtr(2026, time.August, 26),
		ClosingDate:    datePtr(2026, time.August, 27),
	})
	assert.Equal(t, compliance.StatusFail, rushed[1].Status)
}

func TestWorse(t *testing.T) {
	assert.Equal(t, compliance.StatusFail, compliance.Worse(compliance.StatusPass, compliance.StatusFail))
	assert.Equal(t, compliance.StatusWarning, compliance.Worse(compliance.StatusWarning, compliance.StatusConditionalPass))
	assert.Equal(t, compliance.StatusPass, compliance.Worse(compliance.StatusPass, compliance.StatusNotApplicable))
	assert.Equal(t, compliance.StatusPass, compliance.Worse(compliance.StatusNotApplicable, compliance.StatusPass))
}
