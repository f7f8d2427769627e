package applications

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/homelend/platform/internal/domain"
)

func TestApplyApplicationFields_DisclosureDates(t *testing.T) {
	le := time.Date(2026, time.August, 3, 0, 0, 0, 0, time.UTC)
	cd := time.Date(2026, time.August, 17, 0, 0, 0, 0, time.UTC)
	closing := time.Date(2026, time.August, 21, 0, 0, 0, 0, time.UTC)

	app := &domain.Application{}
	applyApplicationFields(app, map[string]any{
		"le_delivery_date": le,
		"cd_delivery_date": cd,
		"closing_date":     closing,
	})

	require.NotNil(t, app.LEDeliveryDate)
	require.NotNil(t, app.CDDeliveryDate)
	require.NotNil(t, app.ClosingDate)
	assert.True(t, le.Equal(*app.LEDeliveryDate))
	assert.True(t, cd.Equal(*app.CDDeliveryDate))
	assert.True(t, closing.Equal(*app.ClosingDate))
}

func TestCurrentFieldValues_DisclosureDates(t *testing.T) {
	le := time.Date(2026, time.August, 3, 0, 0, 0, 0, time.UTC)

	current := currentFieldValues(&domain.Application{LEDeliveryDate: &le}, &domain.Borrower{}, nil)
	assert.Equal(t, le, current["le_delivery_date"])
	assert.NotContains(t, current, "cd_delivery_date")
	assert.NotContains(t, current, "closing_date")
}
