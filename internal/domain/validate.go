package domain

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Intake field validation. Each field of the incremental-save surface has a
// validator that normalizes the raw value or produces a message for the
// per-field error map.

// MaxMonetaryAmount caps monetary intake values; anything above it is a typo,
// not a mortgage.
var MaxMonetaryAmount = decimal.NewFromInt(100_000_000)

var (
	ssnPattern   = regexp.MustCompile(`^\d{3}-?\d{2}-?\d{4}$`)
	emailPattern = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)
)

// IntakeFields lists every field the incremental-save endpoint accepts, in
// the order used to report remaining fields.
var IntakeFields = []string{
	"first_name",
	"last_name",
	"email",
	"ssn",
	"date_of_birth",
	"employment_status",
	"loan_type",
	"property_address",
	"loan_amount",
	"property_value",
	"gross_monthly_income",
	"monthly_debts",
	"total_assets",
	"credit_score",
	"le_delivery_date",
	"cd_delivery_date",
	"closing_date",
}

// KnownIntakeField reports whether the incremental-save surface accepts name.
func KnownIntakeField(name string) bool {
	for _, f := range IntakeFields {
		if f == name {
			return true
		}
	}
	return false
}

// ValidateIntakeField validates and normalizes one intake field. On success
// the normalized value is returned with an empty message; on failure the
// message describes the problem for the per-field error map.
func ValidateIntakeField(field string, raw any) (any, string) {
	switch field {
	case "first_name", "last_name", "property_address":
		s, ok := asString(raw)
		if !ok || strings.TrimSpace(s) == "" {
			return nil, "must be a non-empty string"
		}
		return strings.TrimSpace(s), ""

	case "email":
		s, ok := asString(raw)
		if !ok || !emailPattern.MatchString(strings.TrimSpace(s)) {
			return nil, "must be a valid email address"
		}
		return strings.ToLower(strings.TrimSpace(s)), ""

	case "ssn":
		return validateSSN(raw)

	case "date_of_birth":
		return validateDOB(raw)

	case "employment_status":
		s, ok := asString(raw)
		if !ok {
			return nil, "must be a string"
		}
		es, ok := NormalizeEmploymentStatus(strings.ToLower(strings.TrimSpace(s)))
		if !ok {
			return nil, fmt.Sprintf("unknown employment status %q", s)
		}
		return es, ""

	case "loan_type":
		s, ok := asString(raw)
		if !ok {
			return nil, "must be a string"
		}
		lt, ok := NormalizeLoanType(strings.ToLower(strings.TrimSpace(s)))
		if !ok {
			return nil, fmt.Sprintf("unknown loan type %q", s)
		}
		return lt, ""

	case "loan_amount", "property_value", "gross_monthly_income", "monthly_debts", "total_assets":
		d, msg := asDecimal(raw)
		if msg != "" {
			return nil, msg
		}
		if d.IsNegative() {
			return nil, "must not be negative"
		}
		if d.GreaterThan(MaxMonetaryAmount) {
			return nil, "exceeds the maximum supported amount"
		}
		return d.Round(2), ""

	case "credit_score":
		n, msg := asInt(raw)
		if msg != "" {
			return nil, msg
		}
		if n < 300 || n > 850 {
			return nil, "must be between 300 and 850"
		}
		return n, ""

	case "le_delivery_date", "cd_delivery_date", "closing_date":
		s, ok := asString(raw)
		if !ok {
			return nil, "must be a date string"
		}
		t, ok := ParseFlexibleDate(s)
		if !ok {
			return nil, "must be a recognizable date"
		}
		return t, ""

	default:
		return nil, fmt.Sprintf("unknown field %q", field)
	}
}

// flexibleDateLayouts are the accepted formats for dates arriving as free
// text: intake saves and values extracted from documents.
var flexibleDateLayouts = []string{
	"2006-01-02",
	"01/02/2006",
	"01-02-2006",
	"January 2, 2006",
	"Jan 2, 2006",
	"2 January 2006",
	"2006",
}

// ParseFlexibleDate tries each accepted layout in order.
func ParseFlexibleDate(raw string) (time.Time, bool) {
	raw = strings.TrimSpace(raw)
	for _, layout := range flexibleDateLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

func validateSSN(raw any) (any, string) {
	s, ok := asString(raw)
	if !ok {
		return nil, "must be a string"
	}
	s = strings.TrimSpace(s)
	if !ssnPattern.MatchString(s) {
		return nil, "must be 9 digits"
	}
	digits := strings.ReplaceAll(s, "-", "")
	if strings.HasPrefix(digits, "000") {
		return nil, "invalid area number"
	}
	return fmt.Sprintf("%s-%s-%s", digits[:3], digits[3:5], digits[5:]), ""
}

func validateDOB(raw any) (any, string) {
	s, ok := asString(raw)
	if !ok {
		return nil, "must be a date string"
	}
	dob, err := time.Parse("2006-01-02", strings.TrimSpace(s))
	if err != nil {
		return nil, "must be a date in YYYY-MM-DD format"
	}
	if dob.AddDate(18, 0, 0).After(time.Now().UTC()) {
		return nil, "applicant must be at least 18 years old"
	}
	return dob, ""
}

func asString(raw any) (string, bool) {
	s, ok := raw.(string)
	return s, ok
}

func asDecimal(raw any) (decimal.Decimal, string) {
	switch v := raw.(type) {
	case string:
		d, err := decimal.NewFromString(strings.TrimSpace(v))
		if err != nil {
			return decimal.Zero, "must be a number"
		}
		return d, ""
	case float64: // JSON numbers decode as float64
		return decimal.NewFromFloat(v), ""
	case int:
		return decimal.NewFromInt(int64(v)), ""
	case int64:
		return decimal.NewFromInt(v), ""
	case decimal.Decimal:
		return v, ""
	default:
		return decimal.Zero, "must be a number"
	}
}

func asInt(raw any) (int, string) {
	switch v := raw.(type) {
	case float64:
		if v != float64(int64(v)) {
			return 0, "must be an integer"
		}
		return int(v), ""
	case int:
		return v, ""
	case int64:
		return int(v), ""
	case string:
		var n int
		if _, err := fmt.Sscanf(strings.TrimSpace(v), "%d", &n); err != nil {
			return 0, "must be an integer"
		}
		return n, ""
	default:
		return 0, "must be an integer"
	}
}
