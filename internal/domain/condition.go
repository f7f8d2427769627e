package domain

import "time"

// ConditionSeverity orders underwriting conditions by when they must be
// satisfied. Only prior_to_closing and prior_to_funding conditions may be
// waived.
type ConditionSeverity string

const (
	SeverityPriorToApproval ConditionSeverity = "prior_to_approval"
	SeverityPriorToDocs     ConditionSeverity = "prior_to_docs"
	SeverityPriorToClosing  ConditionSeverity = "prior_to_closing"
	SeverityPriorToFunding  ConditionSeverity = "prior_to_funding"
)

// ValidConditionSeverity reports whether s is a known severity.
func ValidConditionSeverity(s ConditionSeverity) bool {
	switch s {
	case SeverityPriorToApproval, SeverityPriorToDocs, SeverityPriorToClosing, SeverityPriorToFunding:
		return true
	}
	return false
}

// Waivable reports whether a condition of this severity may be waived.
func (s ConditionSeverity) Waivable() bool {
	return s == SeverityPriorToClosing || s == SeverityPriorToFunding
}

// ConditionStatus is the state of an underwriting condition.
//
//	open → responded → under_review → cleared
//	under_review → open            (returned, iteration_count += 1)
//	open|under_review → waived     (severity permitting)
//	any non-terminal → escalated
type ConditionStatus string

const (
	ConditionOpen        ConditionStatus = "open"
	ConditionResponded   ConditionStatus = "responded"
	ConditionUnderReview ConditionStatus = "under_review"
	ConditionCleared     ConditionStatus = "cleared"
	ConditionWaived      ConditionStatus = "waived"
	ConditionEscalated   ConditionStatus = "escalated"
)

// Terminal reports whether the condition needs no further work.
func (s ConditionStatus) Terminal() bool {
	return s == ConditionCleared || s == ConditionWaived
}

// Condition is an underwriting condition issued on an application.
type Condition struct {
	ID              string
	ApplicationID   string
	Description     string
	Severity        ConditionSeverity
	Status          ConditionStatus
	DueDate         *time.Time
	IterationCount  int
	ResponseText    *string
	WaiverRationale *string
	IssuedBy        string
	ClearedBy       *string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}
