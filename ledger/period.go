package ledger

import "time"

// =============================================================================
// PERIOD - Inclusive reporting window
// =============================================================================

// Period is a closed interval [Start, End]. Reports always filter on a
// period, never on an open-ended date.
type Period struct {
	Start time.Time
	End   time.Time
}

// NewPeriod returns ErrInvalidPeriod when end is before start.
func NewPeriod(start, end time.Time) (Period, error) {
	if end.Before(start) {
		return Period{}, ErrInvalidPeriod
	}
	return Period{Start: start, End: end}, nil
}

// Contains returns true if t is within [Start, End].
func (p Period) Contains(t time.Time) bool {
	return !t.Before(p.Start) && !t.After(p.End)
}

// Days returns the start of every calendar day touched by the period.
func (p Period) Days() []time.Time {
	var days []time.Time
	for d := StartOfDay(p.Start); !d.After(p.End); d = d.AddDate(0, 0, 1) {
		days = append(days, d)
	}
	return days
}

func (p Period) String() string {
	return "[" + p.Start.Format("2006-01-02") + ", " + p.End.Format("2006-01-02") + "]"
}

// =============================================================================
// CALENDAR HELPERS
// =============================================================================
// All helpers keep the location of their argument.

func StartOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

func EndOfDay(t time.Time) time.Time {
	return StartOfDay(t).AddDate(0, 0, 1).Add(-time.Nanosecond)
}

func StartOfMonth(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, t.Location())
}

// EndOfMonth returns the last instant of t's month.
func EndOfMonth(t time.Time) time.Time {
	return StartOfMonth(t).AddDate(0, 1, 0).Add(-time.Nanosecond)
}

// DayPeriod is the whole calendar day containing t.
func DayPeriod(t time.Time) Period {
	return Period{Start: StartOfDay(t), End: EndOfDay(t)}
}

// MonthPeriod is the whole calendar month containing t.
func MonthPeriod(t time.Time) Period {
	return Period{Start: StartOfMonth(t), End: EndOfMonth(t)}
}

// TrailingMonths covers n calendar months ending with the month of now,
// e.g. n=4 in June covers March 1 through June 30.
func TrailingMonths(now time.Time, n int) Period {
	if n < 1 {
		n = 1
	}
	return Period{
		Start: StartOfMonth(now).AddDate(0, -(n - 1), 0),
		End:   EndOfMonth(now),
	}
}
