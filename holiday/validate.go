package holiday

import (
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/warp/holiday-engine/generic"
)

var validate = validator.New()

// checkStruct runs struct tag validation and reports the first failure as a
// generic.ValidationError.
func checkStruct(v any) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
		fe := fieldErrs[0]
		return generic.NewValidation("invalid_input", lowerFirst(fe.Field()), "failed %q check", fe.Tag())
	}
	return generic.NewValidation("invalid_input", "", "%v", err)
}

func lowerFirst(s string) string {
	if s == "" {
		return s
	}
	return strings.ToLower(s[:1]) + s[1:]
}

// validateStaff checks a staff record before insert.
func validateStaff(s StaffMember) error {
	if strings.TrimSpace(s.Name) == "" {
		return generic.NewValidation("invalid_input", "name", "required")
	}
	if !s.Role.Valid() {
		return generic.NewValidation("invalid_input", "role", "unknown role %q", s.Role)
	}
	if s.ContractedHours.IsNegative() {
		return generic.NewValidation("invalid_input", "contractedHours", "must not be negative")
	}
	if s.PayRate.IsNegative() {
		return generic.NewValidation("invalid_input", "payRate", "must not be negative")
	}
	if s.EmploymentStart.IsZero() {
		return generic.NewValidation("invalid_input", "employmentStart", "required")
	}
	if s.EmploymentEnd != nil && s.EmploymentEnd.Before(s.EmploymentStart) {
		return generic.NewValidation("invalid_range", "employmentEnd", "%s is before start %s",
			s.EmploymentEnd, s.EmploymentStart)
	}
	return nil
}

// shiftInput carries the tag-validated fields of a ShiftRecord.
type shiftInput struct {
	StaffID StaffID   `validate:"required"`
	Type    ShiftType `validate:"required,oneof=DAY NIGHT LONG_DAY SLEEP_IN HOLIDAY SSP CSP"`
	Period  int       `validate:"gte=0"`
	Week    int       `validate:"gte=0"`
}

func validateShift(s ShiftRecord) error {
	if err := checkStruct(shiftInput{StaffID: s.StaffID, Type: s.Type, Period: s.Period, Week: s.Week}); err != nil {
		return err
	}
	if s.Start.IsZero() || s.End.IsZero() {
		return generic.NewValidation("invalid_range", "start", "start and end are required")
	}
	if !s.End.After(s.Start) {
		return generic.NewValidation("invalid_range", "end", "shift ends %s, not after start %s",
			s.End.Format("2006-01-02 15:04"), s.Start.Format("2006-01-02 15:04"))
	}
	return nil
}
