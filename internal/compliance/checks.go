// Package compliance implements the regulatory engine: ECOA, ATR/QM, and
// TRID checks, the combined runner whose verdict gates approvals, HMDA
// demographic collection with per-field provenance precedence, and the
// loan-data snapshot taken at underwriting submission.
//
// The check functions are pure: they take a fully assembled input and return
// a verdict. Everything that touches a database lives in the runner and the
// HMDA services.
package compliance

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// CheckStatus is the verdict of one regulatory check.
type CheckStatus string

const (
	StatusPass            CheckStatus = "PASS"
	StatusConditionalPass CheckStatus = "CONDITIONAL_PASS"
	StatusWarning         CheckStatus = "WARNING"
	StatusFail            CheckStatus = "FAIL"
	StatusNotApplicable   CheckStatus = "N/A"
)

// severity orders statuses worst-first for the combined verdict.
var severity = map[CheckStatus]int{
	StatusFail:            4,
	StatusWarning:         3,
	StatusConditionalPass: 2,
	StatusPass:            1,
	StatusNotApplicable:   0,
}

// Worse returns the more severe of two statuses.
func Worse(a, b CheckStatus) CheckStatus {
	if severity[b] > severity[a] {
		return b
	}
	return a
}

// CheckResult is one check's verdict plus its explanation.
type CheckResult struct {
	Name    string      `json:"name"`
	Status  CheckStatus `json:"status"`
	Details string      `json:"details"`
}

// Input is everything the check functions consume. The runner assembles it
// from the application, its financials, and document completeness.
type Input struct {
	DTI                *decimal.Decimal
	DocsComplete       bool
	MissingDocTypes    []string
	DemographicQueried bool // prohibited-basis query attempted during underwriting
	AppCreated         time.Time
	LEDeliveryDate     *time.Time
	CDDeliveryDate     *time.Time
	ClosingDate        *time.Time
}

// ATR/QM thresholds. Safe harbor below 0.43; rebuttable presumption up to
// 0.50; prohibited beyond.
var (
	dtiSafeHarbor = decimal.NewFromFloat(0.43)
	dtiHardCap    = decimal.NewFromFloat(0.50)
)

// CheckECOA verifies no prohibited-basis demographic data influenced the
// decision path. The real enforcement is structural: lending queries cannot
// join the hmda schema at all, so this check defaults to PASS and only warns
// when a query was attempted and refused.
func CheckECOA(in Input) CheckResult {
	if in.DemographicQueried {
		return CheckResult{
			Name:    "ECOA",
			Status:  StatusWarning,
			Details: "a prohibited-basis demographic query was attempted and refused during underwriting",
		}
	}
	return CheckResult{
		Name:    "ECOA",
		Status:  StatusPass,
		Details: "no prohibited-basis data accessed in the decision path",
	}
}

// CheckATRQM applies the ability-to-repay rule: verdict by DTI band, gated
// on documentation presence.
func CheckATRQM(in Input) CheckResult {
	result := CheckResult{Name: "ATR/QM"}

	if in.DTI == nil {
		result.Status = StatusFail
		result.Details = "DTI cannot be computed: income and debt figures are incomplete"
		return result
	}
	dti := *in.DTI

	switch {
	case dti.GreaterThan(dtiHardCap):
		result.Status = StatusFail
		result.Details = fmt.Sprintf("DTI %s exceeds the 0.50 cap", dti)
	case !in.DocsComplete:
		result.Status = StatusWarning
		result.Details = fmt.Sprintf("DTI %s acceptable but income documentation is incomplete: missing %v", dti, in.MissingDocTypes)
	case dti.GreaterThanOrEqual(dtiSafeHarbor):
		result.Status = StatusConditionalPass
		result.Details = fmt.Sprintf("DTI %s in the rebuttable presumption band (0.43-0.50)", dti)
	default:
		result.Status = StatusPass
		result.Details = fmt.Sprintf("DTI %s within the 0.43 safe harbor, documentation complete", dti)
	}
	return result
}

// CheckTRID verifies the Loan Estimate and Closing Disclosure timing rules
// on a weekday-only calendar. Federal holidays are not modeled.
func CheckTRID(in Input) []CheckResult {
	var results []CheckResult

	le := CheckResult{Name: "TRID-LE"}
	if in.LEDeliveryDate == nil {
		le.Status = StatusWarning
		le.Details = "Loan Estimate delivery date not recorded"
	} else {
		days := BusinessDays(in.AppCreated, *in.LEDeliveryDate)
		if days <= 3 {
			le.Status = StatusPass
			le.Details = fmt.Sprintf("Loan Estimate delivered within %d business days", days)
		} else {
			le.Status = StatusFail
			le.Details = fmt.Sprintf("Loan Estimate delivered after %d business days, limit is 3", days)
		}
	}
	results = append(results, le)

	cd := CheckResult{Name: "TRID-CD"}
	switch {
	case in.ClosingDate == nil:
		cd.Status = StatusNotApplicable
		cd.Details = "no closing date scheduled"
	case in.CDDeliveryDate == nil:
		cd.Status = StatusWarning
		cd.Details = "closing scheduled but Closing Disclosure delivery date not recorded"
	default:
		days := BusinessDays(*in.CDDeliveryDate, *in.ClosingDate)
		if days >= 3 {
			cd.Status = StatusPass
			cd.Details = fmt.Sprintf("Closing Disclosure delivered %d business days before closing", days)
		} else {
			cd.Status = StatusFail
			cd.Details = fmt.Sprintf("Closing Disclosure delivered only %d business days before closing, minimum is 3", days)
		}
	}
	results = append(results, cd)

	return results
}

// BusinessDays counts weekdays strictly after from up to and including to.
// A negative span returns 0.
func BusinessDays(from, to time.Time) int {
	from = from.UTC().Truncate(24 * time.Hour)
	to = to.UTC().Truncate(24 * time.Hour)
	if !to.After(from) {
		return 0
	}
	days := 0
	for d := from.AddDate(0, 0, 1); !d.After(to); d = d.AddDate(0, 0, 1) {
		switch d.Weekday() {
		case time.Saturday, time.Sunday:
		default:
			days++
		}
	}
	return days
}
