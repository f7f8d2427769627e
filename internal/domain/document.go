package domain

import "time"

// DocumentStatus tracks a document through extraction and LO triage.
//
//	uploaded → processing → processing_complete | processing_failed
//	pending_review → accepted | flagged_for_resubmission | rejected
type DocumentStatus string

const (
	DocUploaded               DocumentStatus = "uploaded"
	DocProcessing             DocumentStatus = "processing"
	DocProcessingComplete     DocumentStatus = "processing_complete"
	DocProcessingFailed       DocumentStatus = "processing_failed"
	DocPendingReview          DocumentStatus = "pending_review"
	DocAccepted               DocumentStatus = "accepted"
	DocFlaggedForResubmission DocumentStatus = "flagged_for_resubmission"
	DocRejected               DocumentStatus = "rejected"
)

// ProcessingTerminal reports whether extraction finished, successfully or not.
// Only a terminal-processed document may be flagged for resubmission.
func (s DocumentStatus) ProcessingTerminal() bool {
	switch s {
	case DocProcessingComplete, DocProcessingFailed, DocPendingReview,
		DocAccepted, DocFlaggedForResubmission, DocRejected:
		return true
	}
	return false
}

// ValidTriageStatus reports whether a loan officer may assign s during
// review. The extraction pipeline owns the earlier statuses.
func ValidTriageStatus(s DocumentStatus) bool {
	switch s {
	case DocPendingReview, DocAccepted, DocFlaggedForResubmission, DocRejected:
		return true
	}
	return false
}

// DocType enumerates the document classes the requirement matrix knows.
type DocType string

const (
	DocTypeW2             DocType = "w2"
	DocTypePayStub        DocType = "pay_stub"
	DocTypeBankStatement  DocType = "bank_statement"
	DocTypeTaxReturn      DocType = "tax_return"
	DocTypeProfitAndLoss  DocType = "profit_loss_statement"
	DocTypeID             DocType = "id"
	DocTypeAwardLetter    DocType = "award_letter"
	DocTypeOther          DocType = "other"
)

// ValidDocType reports whether t is a known document class.
func ValidDocType(t DocType) bool {
	switch t {
	case DocTypeW2, DocTypePayStub, DocTypeBankStatement, DocTypeTaxReturn,
		DocTypeProfitAndLoss, DocTypeID, DocTypeAwardLetter, DocTypeOther:
		return true
	}
	return false
}

// Document is the metadata row for an uploaded file. Bytes live in the blob
// store under FilePath.
type Document struct {
	ID           string
	ApplicationID string
	BorrowerID   *string
	ConditionID  *string // back-link when uploaded in response to a condition
	DocType      DocType
	Status       DocumentStatus
	FilePath     *string
	FileName     string
	ContentType  string
	SizeBytes    int64
	QualityFlags []string
	UploadedBy   string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// DocumentExtraction is one structured field pulled out of a document.
// HMDA-coded fields are never stored here; they are routed to the isolated
// compliance schema.
type DocumentExtraction struct {
	ID         string
	DocumentID string
	FieldName  string
	FieldValue string
	Confidence float64
	SourcePage *int
	CreatedAt  time.Time
}
