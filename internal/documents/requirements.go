package documents

import (
	"time"

	"github.com/homelend/platform/internal/domain"
)

// The requirement matrix and freshness rules are immutable data declared at
// program start; changing them requires a restart.

type matrixKey struct {
	loanType   string // domain.LoanType or "_default"
	employment string // domain.EmploymentStatus or "_default"
}

const matrixDefault = "_default"

// requirementMatrix maps (loan_type, employment_status) to required document
// classes. Lookup falls back exact → (loan_type, _default) → (_default,
// _default).
var requirementMatrix = map[matrixKey][]domain.DocType{
	{matrixDefault, matrixDefault}: {
		domain.DocTypeW2, domain.DocTypePayStub, domain.DocTypeBankStatement, domain.DocTypeID,
	},
	{matrixDefault, string(domain.EmploymentSelfEmployed)}: {
		domain.DocTypeTaxReturn, domain.DocTypeProfitAndLoss, domain.DocTypeBankStatement, domain.DocTypeID,
	},
	{matrixDefault, string(domain.EmploymentRetired)}: {
		domain.DocTypeAwardLetter, domain.DocTypeBankStatement, domain.DocTypeID,
	},
	{string(domain.LoanFHA), matrixDefault}: {
		domain.DocTypeW2, domain.DocTypePayStub, domain.DocTypeBankStatement, domain.DocTypeTaxReturn, domain.DocTypeID,
	},
	{string(domain.LoanVA), matrixDefault}: {
		domain.DocTypeW2, domain.DocTypePayStub, domain.DocTypeBankStatement, domain.DocTypeID,
	},
	{string(domain.LoanJumbo), matrixDefault}: {
		domain.DocTypeW2, domain.DocTypePayStub, domain.DocTypeBankStatement, domain.DocTypeTaxReturn, domain.DocTypeID,
	},
	{string(domain.LoanJumbo), string(domain.EmploymentSelfEmployed)}: {
		domain.DocTypeTaxReturn, domain.DocTypeProfitAndLoss, domain.DocTypeBankStatement, domain.DocTypeID,
	},
}

// RequiredDocTypes resolves the requirement matrix for a file. Either input
// may be unknown; the fallback chain always terminates at the default row.
func RequiredDocTypes(loanType *domain.LoanType, employment *domain.EmploymentStatus) []domain.DocType {
	lt := matrixDefault
	if loanType != nil {
		lt = string(*loanType)
	}
	es := matrixDefault
	if employment != nil {
		es = string(*employment)
	}

	for _, key := range []matrixKey{
		{lt, es},
		{lt, matrixDefault},
		{matrixDefault, es},
		{matrixDefault, matrixDefault},
	} {
		if required, ok := requirementMatrix[key]; ok {
			return required
		}
	}
	return nil
}

// freshnessRule bounds the age of a date field extracted from a document.
type freshnessRule struct {
	fieldName string
	maxAge    time.Duration
}

var freshnessRules = map[domain.DocType]freshnessRule{
	domain.DocTypePayStub:       {fieldName: "pay_period_end", maxAge: 30 * 24 * time.Hour},
	domain.DocTypeBankStatement: {fieldName: "statement_period_end", maxAge: 60 * 24 * time.Hour},
	domain.DocTypeW2:            {fieldName: "tax_year", maxAge: 2 * 365 * 24 * time.Hour},
}

// FreshnessFlags evaluates the freshness rule for a document type against
// the extracted field value. An unparseable or absent value yields no flag;
// staleness is a quality signal, not an error.
func FreshnessFlags(docType domain.DocType, fieldName, fieldValue string, now time.Time) []string {
	rule, ok := freshnessRules[docType]
	if !ok || rule.fieldName != fieldName {
		return nil
	}
	date, ok := domain.ParseFlexibleDate(fieldValue)
	if !ok {
		return nil
	}
	if date.After(now) {
		return []string{"future_date"}
	}
	if now.Sub(date) > rule.maxAge {
		return []string{"wrong_period"}
	}
	return nil
}
