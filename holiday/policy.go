package holiday

import (
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/warp/holiday-engine/generic"
)

// ProRataMode decides how a mid-year contracted-hours change is honoured.
type ProRataMode string

const (
	// ProRataLatestChange anchors the pro-rata window on the most recent
	// contracted-hours change inside the year. Earlier hours are ignored.
	ProRataLatestChange ProRataMode = "latest_change"

	// ProRataSegmented earns each stretch of the year at the hours that
	// applied during it and sums the segments.
	ProRataSegmented ProRataMode = "segmented"
)

// Policy holds the statutory constants and calculation switches.
type Policy struct {
	Year           generic.PeriodConfig
	StatutoryWeeks decimal.Decimal // 5.6 weeks in the UK
	WeeksPerYear   decimal.Decimal
	HoursPerDay    decimal.Decimal // one holiday day is a 12 hour shift
	DaysPerMonth   decimal.Decimal
	ProRataMode    ProRataMode

	// LegacyZeroHoursWindowFactor multiplies zero-hours entitlement by
	// windowDays/yearDays on top of the window-scoped hours sum.
	LegacyZeroHoursWindowFactor bool
}

// DefaultPolicy is the UK configuration: April 6 year, 5.6 weeks, 12 hour day.
func DefaultPolicy() Policy {
	return Policy{
		Year:           generic.UKTaxYear,
		StatutoryWeeks: decimal.RequireFromString("5.6"),
		WeeksPerYear:   decimal.NewFromInt(52),
		HoursPerDay:    decimal.NewFromInt(12),
		DaysPerMonth:   generic.DefaultDaysPerMonth,
		ProRataMode:    ProRataLatestChange,
	}
}

// Validate checks the constants are usable.
func (p Policy) Validate() error {
	if err := p.Year.Validate(); err != nil {
		return err
	}
	if !p.HoursPerDay.IsPositive() {
		return generic.NewValidation("invalid_policy", "hoursPerDay", "must be positive")
	}
	if !p.DaysPerMonth.IsPositive() {
		return generic.NewValidation("invalid_policy", "daysPerMonth", "must be positive")
	}
	if p.StatutoryWeeks.IsNegative() || !p.WeeksPerYear.GreaterThan(p.StatutoryWeeks) {
		return generic.NewValidation("invalid_policy", "statutoryWeeks",
			"must be in [0, %s)", p.WeeksPerYear)
	}
	switch p.ProRataMode {
	case ProRataLatestChange, ProRataSegmented:
	default:
		return generic.NewValidation("invalid_policy", "proRataMode", "unknown mode %q", p.ProRataMode)
	}
	return nil
}

// ZeroHoursRatio is the share of hours worked earned as holiday:
// weeks / (52 - weeks), 12.07% for 5.6 weeks.
func (p Policy) ZeroHoursRatio() decimal.Decimal {
	return p.StatutoryWeeks.Div(p.WeeksPerYear.Sub(p.StatutoryWeeks))
}

func (p Policy) String() string {
	return fmt.Sprintf("year=%s-%02d weeks=%s day=%sh mode=%s",
		p.Year.StartMonth, p.Year.StartDay, p.StatutoryWeeks, p.HoursPerDay, p.ProRataMode)
}
