package domain_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/homelend/platform/internal/domain"
)

func TestConditionSeverity_Waivable(t *testing.T) {
	assert.True(t, domain.SeverityPriorToClosing.Waivable())
	assert.True(t, domain.SeverityPriorToFunding.Waivable())

	assert.False(t, domain.SeverityPriorToApproval.Waivable())
	assert.False(t, domain.SeverityPriorToDocs.Waivable())
}

func TestValidConditionSeverity(t *testing.T) {
	assert.True(t, domain.ValidConditionSeverity(domain.SeverityPriorToDocs))
	assert.False(t, domain.ValidConditionSeverity(domain.ConditionSeverity("urgent")))
}

func TestConditionStatus_Terminal(t *testing.T) {
	assert.True(t, domain.ConditionCleared.Terminal())
	assert.True(t, domain.ConditionWaived.Terminal())

	assert.False(t, domain.ConditionOpen.Terminal())
	assert.False(t, domain.ConditionResponded.Terminal())
	assert.False(t, domain.ConditionUnderReview.Terminal())
	assert.False(t, domain.ConditionEscalated.Terminal())
}
