package core

import "time"

// IsValid reports whether f is one of the supported frequencies.
func (f Frequency) IsValid() bool {
	switch f {
	case Daily, Weekly, Monthly, Yearly:
		return true
	default:
		return false
	}
}

// Frequencies lists the supported repetition frequencies.
func Frequencies() []Frequency {
	return []Frequency{Daily, Weekly, Monthly, Yearly}
}

// Next returns the occurrence after d. Monthly and yearly schedules keep
// the anchor day and clamp it to the end of shorter months, so a template
// anchored on the 31st lands on Feb 28/29 and returns to the 31st in March.
func (f Frequency) Next(d Date, anchorDay int) Date {
	switch f {
	case Daily:
		return Date{Time: d.AddDate(0, 0, 1)}
	case Weekly:
		return Date{Time: d.AddDate(0, 0, 7)}
	case Monthly:
		return clampedDate(d.Year(), int(d.Month())+1, anchorDay)
	case Yearly:
		return clampedDate(d.Year()+1, int(d.Month()), anchorDay)
	default:
		return d
	}
}

func clampedDate(year, month, day int) Date {
	// Normalize month overflow first (month 13 -> January next year).
	first := time.Date(year, time.Month(month), 1, 0, 0, 0, 0, time.UTC)
	last := DaysInMonth(first.Year(), int(first.Month()))
	if day > last {
		day = last
	}
	if day < 1 {
		day = 1
	}
	return NewDate(first.Year(), int(first.Month()), day)
}

// DaysInMonth returns the number of days of the given month.
func DaysInMonth(year, month int) int {
	return time.Date(year, time.Month(month)+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// MonthRange returns the first and last day of a month.
func MonthRange(year, month int) (Date, Date) {
	return NewDate(year, month, 1), NewDate(year, month, DaysInMonth(year, month))
}
