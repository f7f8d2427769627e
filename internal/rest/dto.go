package rest

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/homelend/platform/internal/domain"
	"github.com/homelend/platform/pkg/auth"
)

// Response DTOs. Masking happens here, at the boundary, and nowhere else:
// services and repositories always see the real values.

// MaskSSN renders ***-**-NNNN, keeping the last four digits.
func MaskSSN(ssn string) string {
	if len(ssn) < 4 {
		return "***-**-****"
	}
	return "***-**-" + ssn[len(ssn)-4:]
}

// MaskDOB renders YYYY-**-**, keeping only the birth year.
func MaskDOB(dob time.Time) string {
	return dob.Format("2006") + "-**-**"
}

type borrowerDTO struct {
	ID               string  `json:"id"`
	FirstName        string  `json:"first_name"`
	LastName         string  `json:"last_name"`
	Email            string  `json:"email"`
	SSN              *string `json:"ssn"`
	DateOfBirth      *string `json:"date_of_birth"`
	EmploymentStatus *string `json:"employment_status"`
	IsPrimary        bool    `json:"is_primary"`
}

func newBorrowerDTO(b domain.Borrower, isPrimary bool, scope auth.DataScope) borrowerDTO {
	dto := borrowerDTO{
		ID:        b.ID,
		FirstName: b.FirstName,
		LastName:  b.LastName,
		Email:     b.Email,
		IsPrimary: isPrimary,
	}
	if b.EmploymentStatus != nil {
		es := string(*b.EmploymentStatus)
		dto.EmploymentStatus = &es
	}
	if b.SSN != nil {
		ssn := *b.SSN
		if scope.PIIMask {
			ssn = MaskSSN(ssn)
		}
		dto.SSN = &ssn
	}
	if b.DateOfBirth != nil {
		dob := b.DateOfBirth.Format("2006-01-02")
		if scope.PIIMask {
			dob = MaskDOB(*b.DateOfBirth)
		}
		dto.DateOfBirth = &dob
	}
	return dto
}

type applicationDTO struct {
	ID              string           `json:"id"`
	Stage           string           `json:"stage"`
	LoanType        *string          `json:"loan_type"`
	PropertyAddress *string          `json:"property_address"`
	LoanAmount      *decimal.Decimal `json:"loan_amount"`
	PropertyValue   *decimal.Decimal `json:"property_value"`
	LTV             *decimal.Decimal `json:"ltv"`
	AssignedTo      *string          `json:"assigned_to,omitempty"`
	LEDeliveryDate  *string          `json:"le_delivery_date,omitempty"`
	CDDeliveryDate  *string          `json:"cd_delivery_date,omitempty"`
	ClosingDate     *string          `json:"closing_date,omitempty"`
	CreatedAt       time.Time        `json:"created_at"`
	UpdatedAt       time.Time        `json:"updated_at"`
	Borrowers       []borrowerDTO    `json:"borrowers,omitempty"`
}

func dateString(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.Format("2006-01-02")
	return &s
}

func newApplicationDTO(app *domain.Application) applicationDTO {
	dto := applicationDTO{
		ID:              app.ID,
		Stage:           string(app.Stage),
		PropertyAddress: app.PropertyAddress,
		LoanAmount:      app.LoanAmount,
		PropertyValue:   app.PropertyValue,
		LTV:             app.LTV(),
		AssignedTo:      app.AssignedTo,
		LEDeliveryDate:  dateString(app.LEDeliveryDate),
		CDDeliveryDate:  dateString(app.CDDeliveryDate),
		ClosingDate:     dateString(app.ClosingDate),
		CreatedAt:       app.CreatedAt,
		UpdatedAt:       app.UpdatedAt,
	}
	if app.LoanType != nil {
		lt := string(*app.LoanType)
		dto.LoanType = &lt
	}
	return dto
}

type documentDTO struct {
	ID           string    `json:"id"`
	ApplicationID string   `json:"application_id"`
	DocType      string    `json:"doc_type"`
	Status       string    `json:"status"`
	FileName     string    `json:"file_name"`
	FilePath     *string   `json:"file_path"`
	ContentType  string    `json:"content_type"`
	SizeBytes    int64     `json:"size_bytes"`
	QualityFlags []string  `json:"quality_flags,omitempty"`
	ConditionID  *string   `json:"condition_id,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

func newDocumentDTO(doc *domain.Document, scope auth.DataScope) documentDTO {
	dto := documentDTO{
		ID:            doc.ID,
		ApplicationID: doc.ApplicationID,
		DocType:       string(doc.DocType),
		Status:        string(doc.Status),
		FileName:      doc.FileName,
		FilePath:      doc.FilePath,
		ContentType:   doc.ContentType,
		SizeBytes:     doc.SizeBytes,
		QualityFlags:  doc.QualityFlags,
		ConditionID:   doc.ConditionID,
		CreatedAt:     doc.CreatedAt,
		UpdatedAt:     doc.UpdatedAt,
	}
	if scope.DocumentMetadataOnly {
		dto.FilePath = nil
	}
	return dto
}

type rateLockDTO struct {
	ID             string          `json:"id"`
	ApplicationID  string          `json:"application_id"`
	LockedRate     decimal.Decimal `json:"locked_rate"`
	LockDate       time.Time       `json:"lock_date"`
	ExpirationDate time.Time       `json:"expiration_date"`
	IsActive       bool            `json:"is_active"`
}

func newRateLockDTO(l *domain.RateLock) rateLockDTO {
	return rateLockDTO{
		ID:             l.ID,
		ApplicationID:  l.ApplicationID,
		LockedRate:     l.LockedRate,
		LockDate:       l.LockDate,
		ExpirationDate: l.ExpirationDate,
		IsActive:       l.IsActive,
	}
}

type conditionDTO struct {
	ID              string     `json:"id"`
	ApplicationID   string     `json:"application_id"`
	Description     string     `json:"description"`
	Severity        string     `json:"severity"`
	Status          string     `json:"status"`
	DueDate         *time.Time `json:"due_date"`
	IterationCount  int        `json:"iteration_count"`
	ResponseText    *string    `json:"response_text"`
	WaiverRationale *string    `json:"waiver_rationale"`
	IssuedBy        string     `json:"issued_by"`
	ClearedBy       *string    `json:"cleared_by"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

func newConditionDTO(c *domain.Condition) conditionDTO {
	return conditionDTO{
		ID:              c.ID,
		ApplicationID:   c.ApplicationID,
		Description:     c.Description,
		Severity:        string(c.Severity),
		Status:          string(c.Status),
		DueDate:         c.DueDate,
		IterationCount:  c.IterationCount,
		ResponseText:    c.ResponseText,
		WaiverRationale: c.WaiverRationale,
		IssuedBy:        c.IssuedBy,
		ClearedBy:       c.ClearedBy,
		CreatedAt:       c.CreatedAt,
		UpdatedAt:       c.UpdatedAt,
	}
}

type decisionDTO struct {
	ID                  string            `json:"id"`
	ApplicationID       string            `json:"application_id"`
	DecisionType        string            `json:"decision_type"`
	Rationale           string            `json:"rationale"`
	AIRecommendation    *string           `json:"ai_recommendation"`
	AIAgreement         *bool             `json:"ai_agreement"`
	OverrideRationale   *string           `json:"override_rationale"`
	DenialReasons       []string          `json:"denial_reasons"`
	CreditScoreUsed     *int              `json:"credit_score_used"`
	CreditScoreSource   *string           `json:"credit_score_source"`
	ContributingFactors map[string]string `json:"contributing_factors"`
	DecidedBy           string            `json:"decided_by"`
	CreatedAt           time.Time         `json:"created_at"`
}

func newDecisionDTO(d *domain.Decision) decisionDTO {
	return decisionDTO{
		ID:                  d.ID,
		ApplicationID:       d.ApplicationID,
		DecisionType:        string(d.DecisionType),
		Rationale:           d.Rationale,
		AIRecommendation:    d.AIRecommendation,
		AIAgreement:         d.AIAgreement,
		OverrideRationale:   d.OverrideRationale,
		DenialReasons:       d.DenialReasons,
		CreditScoreUsed:     d.CreditScoreUsed,
		CreditScoreSource:   d.CreditScoreSource,
		ContributingFactors: d.ContributingFactors,
		DecidedBy:           d.DecidedBy,
		CreatedAt:           d.CreatedAt,
	}
}
