package domain

import "time"

// DecisionType is the recorded outcome of an underwriting decision.
type DecisionType string

const (
	DecisionApproved            DecisionType = "approved"
	DecisionConditionalApproval DecisionType = "conditional_approval"
	DecisionSuspended           DecisionType = "suspended"
	DecisionDenied              DecisionType = "denied"
)

// Decision is a recorded underwriting decision. A denied decision always
// carries at least one denial reason (ECOA adverse action).
type Decision struct {
	ID                  string
	ApplicationID       string
	DecisionType        DecisionType
	Rationale           string
	AIRecommendation    *string
	AIAgreement         *bool
	OverrideRationale   *string
	DenialReasons       []string // stored as a JSON array column
	CreditScoreUsed     *int
	CreditScoreSource   *string
	ContributingFactors map[string]string
	DecidedBy           string
	CreatedAt           time.Time
}
