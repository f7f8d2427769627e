package domain_test

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/homelend/platform/internal/domain"
)

func TestValidateIntakeField_SSN(t *testing.T) {
	tests := []struct {
		name    string
		raw     any
		want    string
		wantMsg bool
	}{
		{"dashed", "123-45-6789", "123-45-6789", false},
		{"bare digits", "123456789", "123-45-6789", false},
		{"too short", "12-34-5678", "", true},
		{"letters", "abc-de-fghi", "", true},
		{"zero area", "000-12-3456", "", true},
		{"not a string", 123456789, "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, msg := domain.ValidateIntakeField("ssn", tt.raw)
			if tt.wantMsg {
				assert.NotEmpty(t, msg)
				return
			}
			require.Empty(t, msg)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestValidateIntakeField_DOB(t *testing.T) {
	_, msg := domain.ValidateIntakeField("date_of_birth", "1985-06-15")
	assert.Empty(t, msg)

	_, msg = domain.ValidateIntakeField("date_of_birth", "06/15/1985")
	assert.NotEmpty(t, msg)

	// A date this year is always under 18.
	_, msg = domain.ValidateIntakeField("date_of_birth", "2026-01-01")
	assert.Contains(t, msg, "18")
}

func TestValidateIntakeField_Monetary(t *testing.T) {
	got, msg := domain.ValidateIntakeField("loan_amount", "350000.999")
	require.Empty(t, msg)
	assert.True(t, decimal.NewFromInt(350001).Equal(got.(decimal.Decimal)))

	_, msg = domain.ValidateIntakeField("loan_amount", "-1")
	assert.Equal(t, "must not be negative", msg)

	_, msg = domain.ValidateIntakeField("property_value", "999999999999")
	assert.Contains(t, msg, "maximum")

	_, msg = domain.ValidateIntakeField("gross_monthly_income", "lots")
	assert.Equal(t, "must be a number", msg)
}

func TestValidateIntakeField_CreditScore(t *testing.T) {
	got, msg := domain.ValidateIntakeField("credit_score", float64(720))
	require.Empty(t, msg)
	assert.Equal(t, 720, got)

	_, msg = domain.ValidateIntakeField("credit_score", 299)
	assert.NotEmpty(t, msg)
	_, msg = domain.ValidateIntakeField("credit_score", 851)
	assert.NotEmpty(t, msg)
	_, msg = domain.ValidateIntakeField("credit_score", 719.5)
	assert.Equal(t, "must be an integer", msg)
}

func TestValidateIntakeField_Enumerations(t *testing.T) {
	got, msg := domain.ValidateIntakeField("employment_status", "W2")
	require.Empty(t, msg)
	assert.Equal(t, domain.EmploymentW2, got)

	_, msg = domain.ValidateIntakeField("employment_status", "freelancer")
	assert.Contains(t, msg, "unknown employment status")

	got, msg = domain.ValidateIntakeField("loan_type", "FHA")
	require.Empty(t, msg)
	assert.Equal(t, domain.LoanFHA, got)
}

func TestValidateIntakeField_Email(t *testing.T) {
	got, msg := domain.ValidateIntakeField("email", " Sarah.Chen@Example.COM ")
	require.Empty(t, msg)
	assert.Equal(t, "sarah.chen@example.com", got)

	_, msg = domain.ValidateIntakeField("email", "not-an-email")
	assert.NotEmpty(t, msg)
}

func TestValidateIntakeField_DisclosureDates(t *testing.T) {
	for _, field := range []string{"le_delivery_date", "cd_delivery_date", "closing_date"} {
		assert.True(t, domain.KnownIntakeField(field), field)

		got, msg := domain.ValidateIntakeField(field, "2026-08-20")
		require.Empty(t, msg, field)
		assert.Equal(t, time.Date(2026, time.August, 20, 0, 0, 0, 0, time.UTC), got, field)
	}

	// The tolerant parser accepts any of the free-text layouts.
	got, msg := domain.ValidateIntakeField("closing_date", "August 20, 2026")
	require.Empty(t, msg)
	assert.Equal(t, time.Date(2026, time.August, 20, 0, 0, 0, 0, time.UTC), got)

	_, msg = domain.ValidateIntakeField("le_delivery_date", "someday soon")
	assert.NotEmpty(t, msg)
	_, msg = domain.ValidateIntakeField("cd_delivery_date", 20260820)
	assert.NotEmpty(t, msg)
}

func TestParseFlexibleDate_Layouts(t *testing.T) {
	want := time.Date(2026, time.July, 4, 0, 0, 0, 0, time.UTC)
	for _, raw := range []string{"2026-07-04", "07/04/2026", "07-04-2026", "July 4, 2026", "Jul 4, 2026", "4 July 2026"} {
		got, ok := domain.ParseFlexibleDate(raw)
		require.True(t, ok, "layout %q", raw)
		assert.True(t, want.Equal(got), "layout %q parsed as %s", raw, got)
	}

	year, ok := domain.ParseFlexibleDate("2024")
	require.True(t, ok)
	assert.Equal(t, 2024, year.Year())

	_, ok = domain.ParseFlexibleDate("last tuesday")
	assert.False(t, ok)
}

func TestValidateIntakeField_UnknownField(t *testing.T) {
	_, msg := domain.ValidateIntakeField("favorite_color", "blue")
	assert.Contains(t, msg, "unknown field")
	assert.False(t, domain.KnownIntakeField("favorite_color"))
	assert.True(t, domain.KnownIntakeField("loan_amount"))
}
