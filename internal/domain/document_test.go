package domain_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/homelend/platform/internal/domain"
)

func TestDocumentStatus_ProcessingTerminal(t *testing.T) {
	assert.False(t, domain.DocUploaded.ProcessingTerminal())
	assert.False(t, domain.DocProcessing.ProcessingTerminal())

	assert.True(t, domain.DocProcessingComplete.ProcessingTerminal())
	assert.True(t, domain.DocProcessingFailed.ProcessingTerminal())
	assert.True(t, domain.DocPendingReview.ProcessingTerminal())
	assert.True(t, domain.DocAccepted.ProcessingTerminal())
	assert.True(t, domain.DocFlaggedForResubmission.ProcessingTerminal())
	assert.True(t, domain.DocRejected.ProcessingTerminal())
}

func TestValidTriageStatus(t *testing.T) {
	assert.True(t, domain.ValidTriageStatus(domain.DocPendingReview))
	assert.True(t, domain.ValidTriageStatus(domain.DocAccepted))
	assert.True(t, domain.ValidTriageStatus(domain.DocFlaggedForResubmission))
	assert.True(t, domain.ValidTriageStatus(domain.DocRejected))

	assert.False(t, domain.ValidTriageStatus(domain.DocUploaded))
	assert.False(t, domain.ValidTriageStatus(domain.DocProcessing))
	assert.False(t, domain.ValidTriageStatus(domain.DocProcessingComplete))
	assert.False(t, domain.ValidTriageStatus(domain.DocumentStatus("approved")))
}
