package domain

import "time"

// GenesisHash is the prev_hash of the first audit event.
const GenesisHash = "genesis"

// Audit event types written by the services.
const (
	EventStageTransition      = "stage_transition"
	EventApplicationCreated   = "application_created"
	EventFieldsUpdated        = "fields_updated"
	EventBorrowerAdded        = "borrower_added"
	EventBorrowerRemoved      = "borrower_removed"
	EventDocumentUploaded     = "document_uploaded"
	EventDocumentProcessed    = "document_processed"
	EventDocumentReviewed     = "document_reviewed"
	EventConditionIssued      = "condition_issued"
	EventConditionResponded   = "condition_responded"
	EventConditionReviewed    = "condition_reviewed"
	EventDecision             = "decision"
	EventDecisionError        = "decision_error"
	EventOverride             = "override"
	EventComplianceCheck      = "compliance_check"
	EventHmdaCollection       = "hmda_collection"
	EventHmdaLoanDataSnapshot = "hmda_loan_data_snapshot"
	EventToolCall             = "tool_call"
	EventRateLockSet          = "rate_lock_set"
	EventSeed                 = "seed"
)

// AuditEvent is one link of the hash chain. Rows are append-only by database
// policy; prev_hash of event N is the SHA-256 of the canonical serialization
// of event N-1, and the first event carries the literal "genesis".
type AuditEvent struct {
	ID            int64
	Timestamp     time.Time
	PrevHash      string
	UserID        *string
	UserRole      *string
	EventType     string
	ApplicationID *string
	DecisionID    *string
	EventData     map[string]any
	SessionID     *string
}

// AuditViolation records an UPDATE or DELETE attempt against audit_events.
// The database trigger writes the row before raising.
type AuditViolation struct {
	ID                 int64
	AttemptedOperation string // "UPDATE" or "DELETE"
	DBUser             string
	AuditEventID       *int64
	Timestamp          time.Time
}

// ChainStatus is the verdict of a chain verification pass.
type ChainStatus string

const (
	ChainOK       ChainStatus = "OK"
	ChainTampered ChainStatus = "TAMPERED"
)

// ChainVerification is the result of walking the audit table in id order.
// EventsChecked counts events whose prev_hash matched before the first break.
type ChainVerification struct {
	Status        ChainStatus `json:"status"`
	EventsChecked int         `json:"events_checked"`
	FirstBreakID  *int64      `json:"first_break_id,omitempty"`
}
