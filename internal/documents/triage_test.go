package documents

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/homelend/platform/internal/domain"
)

func TestCanTriage(t *testing.T) {
	tests := []struct {
		name    string
		from    domain.DocumentStatus
		to      domain.DocumentStatus
		blocked bool
	}{
		{"park for review after extraction", domain.DocProcessingComplete, domain.DocPendingReview, false},
		{"accept from review", domain.DocPendingReview, domain.DocAccepted, false},
		{"reject from review", domain.DocPendingReview, domain.DocRejected, false},
		{"flag after failed extraction", domain.DocProcessingFailed, domain.DocFlaggedForResubmission, false},
		{"flag while still uploading", domain.DocUploaded, domain.DocFlaggedForResubmission, true},
		{"accept while extraction runs", domain.DocProcessing, domain.DocAccepted, true},
		{"pipeline status is not a verdict", domain.DocPendingReview, domain.DocProcessing, true},
		{"unknown verdict", domain.DocPendingReview, domain.DocumentStatus("approved"), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg := canTriage(tt.from, tt.to)
			if tt.blocked {
				assert.NotEmpty(t, msg)
			} else {
				assert.Empty(t, msg)
			}
		})
	}
}
