package holiday

import (
	"github.com/shopspring/decimal"
	"github.com/warp/holiday-engine/generic"
)

// Usage is the holiday actually booked in a year.
type Usage struct {
	Days  generic.Amount // one per HOLIDAY shift
	Hours generic.Amount // total length of those shifts
}

// AggregateUsage counts HOLIDAY shifts starting inside year. It is a pure sum,
// so running it again over the same shifts gives the same figures.
func AggregateUsage(year generic.Period, shifts []ShiftRecord) Usage {
	days := decimal.Zero
	hours := decimal.Zero
	one := decimal.NewFromInt(1)

	for _, s := range shifts {
		if !s.IsHoliday() || !year.ContainsInstant(s.Start) {
			continue
		}
		days = days.Add(one)
		hours = hours.Add(s.Hours())
	}

	return Usage{
		Days:  generic.NewAmountFromDecimal(days, generic.UnitDays),
		Hours: generic.NewAmountFromDecimal(hours, generic.UnitHours),
	}
}
