package domain

import "time"

// EmploymentStatus enumerates borrower employment categories. The category
// drives the document requirement matrix.
type EmploymentStatus string

const (
	EmploymentW2           EmploymentStatus = "w2_employee"
	EmploymentSelfEmployed EmploymentStatus = "self_employed"
	EmploymentRetired      EmploymentStatus = "retired"
	EmploymentUnemployed   EmploymentStatus = "unemployed"
)

var employmentAliases = map[string]EmploymentStatus{
	"w2":            EmploymentW2,
	"w2_employee":   EmploymentW2,
	"1099":          EmploymentSelfEmployed,
	"self_employed": EmploymentSelfEmployed,
	"retired":       EmploymentRetired,
	"unemployed":    EmploymentUnemployed,
}

// NormalizeEmploymentStatus resolves a raw intake value to a canonical
// EmploymentStatus.
func NormalizeEmploymentStatus(raw string) (EmploymentStatus, bool) {
	es, ok := employmentAliases[raw]
	return es, ok
}

// Borrower is an identity linked to an external identity-provider subject.
// Borrowers are never deleted while referenced by applications.
type Borrower struct {
	ID               string
	SubjectID        string // identity-provider sub claim, unique
	FirstName        string
	LastName         string
	Email            string
	SSN              *string // PII
	DateOfBirth      *time.Time
	EmploymentStatus *EmploymentStatus
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// ApplicationBorrower links a borrower to an application. At most one row
// per application has IsPrimary true, enforced by a partial unique index.
type ApplicationBorrower struct {
	ID            string
	ApplicationID string
	BorrowerID    string
	IsPrimary     bool
	CreatedAt     time.Time
}
