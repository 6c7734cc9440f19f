package holiday

import (
	"strings"

	"github.com/shopspring/decimal"
	"github.com/warp/holiday-engine/generic"
)

// NormalizeValue returns the canonical text of v for category c, so "24.0"
// and " 24 " compare equal to the live value "24". Malformed input is a
// ValidationError.
func NormalizeValue(c ChangeCategory, v string) (string, error) {
	v = strings.TrimSpace(v)

	switch c {
	case ChangeRole:
		r := Role(strings.ToLower(v))
		if !r.Valid() {
			return "", generic.NewValidation("invalid_value", string(c), "unknown role %q", v)
		}
		return string(r), nil

	case ChangePayRate, ChangeContractedHours:
		d, err := decimal.NewFromString(v)
		if err != nil {
			return "", generic.NewValidation("invalid_value", string(c), "%q is not a number", v)
		}
		if d.IsNegative() {
			return "", generic.NewValidation("invalid_value", string(c), "must not be negative")
		}
		return d.String(), nil

	case ChangeEmploymentStart, ChangeEmploymentEnd:
		if v == "" || strings.EqualFold(v, "null") {
			if c == ChangeEmploymentStart {
				return "", generic.NewValidation("invalid_value", string(c), "start date is required")
			}
			return "", nil
		}
		d, err := generic.ParseDate(v)
		if err != nil {
			return "", generic.NewValidation("invalid_value", string(c), "%v", err)
		}
		return d.String(), nil

	case ChangeActiveStatus:
		b, ok := parseBool(v)
		if !ok {
			return "", generic.NewValidation("invalid_value", string(c), "%q is not a boolean", v)
		}
		if b {
			return "true", nil
		}
		return "false", nil

	case ChangeColor:
		return strings.ToLower(v), nil
	}

	return "", generic.NewValidation("invalid_category", "category", "unknown change category %q", c)
}

func parseBool(v string) (bool, bool) {
	switch strings.ToLower(v) {
	case "true", "t", "1", "yes", "y", "on", "active":
		return true, true
	case "false", "f", "0", "no", "n", "off", "inactive":
		return false, true
	}
	return false, false
}

// LiveValue is the canonical text of a staff member's current field.
func LiveValue(s StaffMember, c ChangeCategory) string {
	switch c {
	case ChangeRole:
		return string(s.Role)
	case ChangePayRate:
		return s.PayRate.String()
	case ChangeContractedHours:
		return s.ContractedHours.String()
	case ChangeEmploymentStart:
		if s.EmploymentStart.IsZero() {
			return ""
		}
		return s.EmploymentStart.String()
	case ChangeEmploymentEnd:
		if s.EmploymentEnd == nil || s.EmploymentEnd.IsZero() {
			return ""
		}
		return s.EmploymentEnd.String()
	case ChangeActiveStatus:
		if s.Active {
			return "true"
		}
		return "false"
	case ChangeColor:
		return strings.ToLower(strings.TrimSpace(s.Color))
	}
	return ""
}

// ApplyValue writes a normalized value into the staff member's field.
func ApplyValue(s *StaffMember, c ChangeCategory, v string) error {
	norm, err := NormalizeValue(c, v)
	if err != nil {
		return err
	}

	switch c {
	case ChangeRole:
		s.Role = Role(norm)
	case ChangePayRate:
		s.PayRate = decimal.RequireFromString(norm)
	case ChangeContractedHours:
		s.ContractedHours = decimal.RequireFromString(norm)
	case ChangeEmploymentStart:
		d, _ := generic.ParseDate(norm)
		s.EmploymentStart = d
	case ChangeEmploymentEnd:
		if norm == "" {
			s.EmploymentEnd = nil
			break
		}
		d, _ := generic.ParseDate(norm)
		s.EmploymentEnd = &d
	case ChangeActiveStatus:
		s.Active = norm == "true"
	case ChangeColor:
		s.Color = norm
	}
	return nil
}
