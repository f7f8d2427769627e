package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// CollectionMethod records how a HMDA demographic field was obtained.
// Methods carry a precedence: a higher-precedence method overwrites a stored
// value, an equal or lower one keeps the existing value.
type CollectionMethod string

const (
	MethodVisualObservation  CollectionMethod = "visual_observation"
	MethodDocumentExtraction CollectionMethod = "document_extraction"
	MethodSelfReported       CollectionMethod = "self_reported"
	MethodNotProvided        CollectionMethod = "not_provided"
)

// methodPrecedence orders collection methods; self-reported data always wins.
var methodPrecedence = map[CollectionMethod]int{
	MethodNotProvided:        -1,
	MethodVisualObservation:  0,
	MethodDocumentExtraction: 1,
	MethodSelfReported:       2,
}

// Precedence returns the numeric precedence of the method; unknown methods
// rank below not_provided.
func (m CollectionMethod) Precedence() int {
	p, ok := methodPrecedence[m]
	if !ok {
		return -2
	}
	return p
}

// ValidCollectionMethod reports whether m is a known method.
func ValidCollectionMethod(m CollectionMethod) bool {
	_, ok := methodPrecedence[m]
	return ok
}

// HmdaFields is the fixed set of demographic field names that are routed to
// the compliance schema instead of document extractions.
var HmdaFields = map[string]bool{
	"race":      true,
	"ethnicity": true,
	"sex":       true,
	"age":       true,
}

// HmdaDemographic lives in the isolated hmda schema. Unique on
// (application, borrower); each field carries its own collection method.
type HmdaDemographic struct {
	ID              string
	ApplicationID   string
	BorrowerID      string
	Race            *string
	RaceMethod      *CollectionMethod
	Ethnicity       *string
	EthnicityMethod *CollectionMethod
	Sex             *string
	SexMethod       *CollectionMethod
	Age             *int
	AgeMethod       *CollectionMethod
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// HmdaLoanData is the loan snapshot captured at underwriting submission.
// Unique on application.
type HmdaLoanData struct {
	ID                 string
	ApplicationID      string
	GrossMonthlyIncome *decimal.Decimal
	DTIRatio           *decimal.Decimal
	CreditScore        *int
	LoanType           *string
	LoanPurpose        *string
	PropertyLocation   *string
	InterestRate       *decimal.Decimal
	TotalFees          *decimal.Decimal
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// DemographicConflict reports how a collection attempt resolved against a
// stored field value.
type DemographicConflict struct {
	Field      string `json:"field"`
	Resolution string `json:"resolution"` // "overwritten" or "kept_existing"
}
