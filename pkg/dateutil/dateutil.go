// Package dateutil implements the whole-day interval math used by the
// clawback table and the renewal cycle derivation used by the accrual engine.
// Dates are compared at UTC midnight so wall-clock times never shift a policy
// across a clawback band.
package dateutil

import "time"

// Truncate drops the time-of-day portion, keeping the UTC date.
func Truncate(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// DaysBetween returns the number of whole days from a to b. Partial days are
// floored, matching the clawback band arithmetic: a policy lapsing 365 days
// and 23 hours after inception is still inside the 365-day band.
func DaysBetween(a, b time.Time) int {
	return int(Truncate(b).Sub(Truncate(a)).Hours() / 24)
}

// AddDays returns t shifted by n calendar days.
func AddDays(t time.Time, n int) time.Time {
	return t.AddDate(0, 0, n)
}

// AddMonths returns t shifted by n calendar months.
func AddMonths(t time.Time, n int) time.Time {
	return t.AddDate(0, n, 0)
}

// AddYears returns t shifted by n calendar years.
func AddYears(t time.Time, n int) time.Time {
	return t.AddDate(n, 0, 0)
}

// MonthsBetween counts whole calendar months from a to b, anchored on a's
// day-of-month. 2024-01-15 -> 2024-02-14 is 0 months; -> 2024-02-15 is 1.
func MonthsBetween(a, b time.Time) int {
	a, b = Truncate(a), Truncate(b)
	if b.Before(a) {
		return 0
	}
	months := (b.Year()-a.Year())*12 + int(b.Month()) - int(a.Month())
	if b.Day() < a.Day() {
		months--
	}
	if months < 0 {
		return 0
	}
	return months
}
