package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Stage is the lifecycle stage of a loan application.
type Stage string

const (
	StageInquiry             Stage = "inquiry"
	StagePrequalification    Stage = "prequalification"
	StageApplication         Stage = "application"
	StageProcessing          Stage = "processing"
	StageUnderwriting        Stage = "underwriting"
	StageConditionalApproval Stage = "conditional_approval"
	StageClearToClose        Stage = "clear_to_close"
	StageSuspended           Stage = "suspended"
	StageClosed              Stage = "closed"
	StageDenied              Stage = "denied"
	StageWithdrawn           Stage = "withdrawn"
)

// stageTransitions is the permitted transition map. It is immutable data
// declared at program start; changing it requires a restart.
var stageTransitions = map[Stage][]Stage{
	StageInquiry:             {StagePrequalification, StageApplication, StageWithdrawn},
	StagePrequalification:    {StageApplication, StageWithdrawn},
	StageApplication:         {StageProcessing, StageWithdrawn},
	StageProcessing:          {StageUnderwriting, StageApplication, StageWithdrawn},
	StageUnderwriting:        {StageConditionalApproval, StageClearToClose, StageDenied, StageSuspended},
	StageConditionalApproval: {StageClearToClose, StageUnderwriting, StageDenied},
	StageClearToClose:        {StageClosed, StageUnderwriting, StageDenied},
	StageSuspended:           {StageUnderwriting, StageWithdrawn},
	StageClosed:              {},
	StageDenied:              {},
	StageWithdrawn:           {},
}

// terminalStages accept no further lifecycle writes other than audit events.
// clear_to_close is deliberately not terminal: status endpoints keep showing
// pending actions there.
var terminalStages = map[Stage]bool{
	StageClosed:    true,
	StageDenied:    true,
	StageWithdrawn: true,
}

// IsTerminal reports whether s accepts no further transitions.
func (s Stage) IsTerminal() bool { return terminalStages[s] }

// CanTransition reports whether from → to is a permitted stage transition.
func CanTransition(from, to Stage) bool {
	for _, next := range stageTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// ValidStage reports whether s is a known stage.
func ValidStage(s Stage) bool {
	_, ok := stageTransitions[s]
	return ok
}

// LoanType enumerates supported loan products.
type LoanType string

const (
	LoanConventional30 LoanType = "conventional_30"
	LoanConventional15 LoanType = "conventional_15"
	LoanFHA            LoanType = "fha"
	LoanVA             LoanType = "va"
	LoanJumbo          LoanType = "jumbo"
)

// loanTypeAliases maps intake shorthand to canonical loan types.
var loanTypeAliases = map[string]LoanType{
	"conventional":    LoanConventional30,
	"conventional_30": LoanConventional30,
	"conventional_15": LoanConventional15,
	"fha":             LoanFHA,
	"va":              LoanVA,
	"jumbo":           LoanJumbo,
}

// NormalizeLoanType resolves a raw intake value to a canonical LoanType.
func NormalizeLoanType(raw string) (LoanType, bool) {
	lt, ok := loanTypeAliases[raw]
	return lt, ok
}

// Application is the loan file.
type Application struct {
	ID              string
	Stage           Stage
	LoanType        *LoanType
	PropertyAddress *string
	LoanAmount      *decimal.Decimal
	PropertyValue   *decimal.Decimal
	AssignedTo      *string // LO principal id
	LEDeliveryDate  *time.Time
	CDDeliveryDate  *time.Time
	ClosingDate     *time.Time
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// IsTerminal reports whether the application accepts no lifecycle writes.
func (a *Application) IsTerminal() bool { return a.Stage.IsTerminal() }

// LTV returns the loan-to-value ratio as a percentage, or nil when either
// input is absent or the property value is zero.
func (a *Application) LTV() *decimal.Decimal {
	if a.LoanAmount == nil || a.PropertyValue == nil || a.PropertyValue.IsZero() {
		return nil
	}
	ltv := a.LoanAmount.Div(*a.PropertyValue).Mul(decimal.NewFromInt(100)).Round(4)
	return &ltv
}
