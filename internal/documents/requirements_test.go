package documents

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/homelend/platform/internal/domain"
)

func loanType(lt domain.LoanType) *domain.LoanType { return &lt }

func employment(es domain.EmploymentStatus) *domain.EmploymentStatus { return &es }

func TestRequiredDocTypes_ExactMatch(t *testing.T) {
	required := RequiredDocTypes(loanType(domain.LoanJumbo), employment(domain.EmploymentSelfEmployed))
	assert.Equal(t, []domain.DocType{
		domain.DocTypeTaxReturn, domain.DocTypeProfitAndLoss, domain.DocTypeBankStatement, domain.DocTypeID,
	}, required)
}

func TestRequiredDocTypes_LoanTypeFallback(t *testing.T) {
	// No (fha, w2_employee) row: falls back to the fha default.
	required := RequiredDocTypes(loanType(domain.LoanFHA), employment(domain.EmploymentW2))
	assert.Contains(t, required, domain.DocTypeTaxReturn)
	assert.Len(t, required, 5)
}

func TestRequiredDocTypes_EmploymentFallback(t *testing.T) {
	// No conventional_30 rows: falls back to the employment default.
	required := RequiredDocTypes(loanType(domain.LoanConventional30), employment(domain.EmploymentRetired))
	assert.Equal(t, []domain.DocType{
		domain.DocTypeAwardLetter, domain.DocTypeBankStatement, domain.DocTypeID,
	}, required)
}

func TestRequiredDocTypes_FullDefault(t *testing.T) {
	required := RequiredDocTypes(nil, nil)
	assert.Equal(t, []domain.DocType{
		domain.DocTypeW2, domain.DocTypePayStub, domain.DocTypeBankStatement, domain.DocTypeID,
	}, required)
}

func TestFreshnessFlags_PayStub(t *testing.T) {
	now := time.Date(2026, time.August, 24, 0, 0, 0, 0, time.UTC)

	assert.Nil(t, FreshnessFlags(domain.DocTypePayStub, "pay_period_end", "2026-08-10", now))
	assert.Equal(t, []string{"wrong_period"},
		FreshnessFlags(domain.DocTypePayStub, "pay_period_end", "2026-06-01", now))
	assert.Equal(t, []string{"future_date"},
		FreshnessFlags(domain.DocTypePayStub, "pay_period_end", "2026-09-15", now))
}

func TestFreshnessFlags_BankStatementWindow(t *testing.T) {
	now := time.Date(2026, time.August, 24, 0, 0, 0, 0, time.UTC)

	// 60 days is the bank statement bound; the same age fails the pay stub's 30.
	assert.Nil(t, FreshnessFlags(domain.DocTypeBankStatement, "statement_period_end", "2026-07-10", now))
	assert.Equal(t, []string{"wrong_period"},
		FreshnessFlags(domain.DocTypeBankStatement, "statement_period_end", "2026-05-01", now))
}

func TestFreshnessFlags_NoRuleOrField(t *testing.T) {
	now := time.Now().UTC()
	assert.Nil(t, FreshnessFlags(domain.DocTypeID, "expiration_date", "2020-01-01", now))
	assert.Nil(t, FreshnessFlags(domain.DocTypePayStub, "gross_pay", "2020-01-01", now))
	assert.Nil(t, FreshnessFlags(domain.DocTypePayStub, "pay_period_end", "unreadable", now))
}

func TestStripCodeFence(t *testing.T) {
	plain := `{"extractions":[]}`
	assert.Equal(t, plain, stripCodeFence(plain))
	assert.Equal(t, plain, stripCodeFence("```json\n"+plain+"\n```"))
	assert.Equal(t, plain, stripCodeFence("```\n"+plain+"\n```"))
	assert.Equal(t, plain, stripCodeFence("  \n"+plain+"  "))
}
