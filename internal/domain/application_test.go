package domain_test

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/homelend/platform/internal/domain"
)

func TestCanTransition_ForwardPath(t *testing.T) {
	path := []domain.Stage{
		domain.StageInquiry,
		domain.StagePrequalification,
		domain.StageApplication,
		domain.StageProcessing,
		domain.StageUnderwriting,
		domain.StageConditionalApproval,
		domain.StageClearToClose,
		domain.StageClosed,
	}
	for i := 0; i < len(path)-1; i++ {
		assert.True(t, domain.CanTransition(path[i], path[i+1]),
			"%s -> %s should be allowed", path[i], path[i+1])
	}
}

func TestCanTransition_Rejected(t *testing.T) {
	tests := []struct {
		from, to domain.Stage
	}{
		{domain.StageInquiry, domain.StageUnderwriting},
		{domain.StageApplication, domain.StageClearToClose},
		{domain.StageClosed, domain.StageUnderwriting},
		{domain.StageDenied, domain.StageApplication},
		{domain.StageWithdrawn, domain.StageInquiry},
		{domain.StageUnderwriting, domain.StageClosed},
	}
	for _, tt := range tests {
		assert.False(t, domain.CanTransition(tt.from, tt.to),
			"%s -> %s should be rejected", tt.from, tt.to)
	}
}

func TestCanTransition_SuspendAndResume(t *testing.T) {
	assert.True(t, domain.CanTransition(domain.StageUnderwriting, domain.StageSuspended))
	assert.True(t, domain.CanTransition(domain.StageSuspended, domain.StageUnderwriting))
	assert.True(t, domain.CanTransition(domain.StageSuspended, domain.StageWithdrawn))
	assert.False(t, domain.CanTransition(domain.StageSuspended, domain.StageClearToClose))
}

func TestStage_IsTerminal(t *testing.T) {
	assert.True(t, domain.StageClosed.IsTerminal())
	assert.True(t, domain.StageDenied.IsTerminal())
	assert.True(t, domain.StageWithdrawn.IsTerminal())

	assert.False(t, domain.StageClearToClose.IsTerminal())
	assert.False(t, domain.StageSuspended.IsTerminal())
	assert.False(t, domain.StageInquiry.IsTerminal())
}

func TestValidStage(t *testing.T) {
	assert.True(t, domain.ValidStage(domain.StageProcessing))
	assert.False(t, domain.ValidStage(domain.Stage("shipped")))
}

func TestApplication_LTV(t *testing.T) {
	amount := decimal.NewFromInt(400_000)
	value := decimal.NewFromInt(500_000)
	app := &domain.Application{LoanAmount: &amount, PropertyValue: &value}

	ltv := app.LTV()
	require.NotNil(t, ltv)
	assert.True(t, decimal.NewFromInt(80).Equal(*ltv), "got %s", ltv)
}

func TestApplication_LTV_MissingInputs(t *testing.T) {
	amount := decimal.NewFromInt(400_000)
	zero := decimal.Zero

	assert.Nil(t, (&domain.Application{}).LTV())
	assert.Nil(t, (&domain.Application{LoanAmount: &amount}).LTV())
	assert.Nil(t, (&domain.Application{LoanAmount: &amount, PropertyValue: &zero}).LTV())
}

func TestNormalizeLoanType(t *testing.T) {
	lt, ok := domain.NormalizeLoanType("conventional")
	require.True(t, ok)
	assert.Equal(t, domain.LoanConventional30, lt)

	_, ok = domain.NormalizeLoanType("balloon")
	assert.False(t, ok)
}

func TestAggregateDTI(t *testing.T) {
	income := decimal.NewFromInt(10_000)
	debts := decimal.NewFromInt(3_500)
	rows := []domain.ApplicationFinancials{
		{GrossMonthlyIncome: &income, MonthlyDebts: &debts},
	}

	dti := domain.AggregateDTI(rows)
	require.NotNil(t, dti)
	assert.True(t, decimal.NewFromFloat(0.35).Equal(*dti), "got %s", dti)
}

func TestAggregateDTI_NoIncome(t *testing.T) {
	debts := decimal.NewFromInt(500)
	rows := []domain.ApplicationFinancials{{MonthlyDebts: &debts}}
	assert.Nil(t, domain.AggregateDTI(rows))
	assert.Nil(t, domain.AggregateDTI(nil))
}
