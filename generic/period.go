package generic

// =============================================================================
// PERIOD - Inclusive date range used by range filters
// =============================================================================

// Period is the closed range [Start, End]. A zero Start or End leaves that
// side open.
//
// Examples:
//   - Calendar year 2025: Jan 1 - Dec 31
//   - Trailing 30 days: {Start: today.AddDays(-30)}
type Period struct {
	Start TimePoint
	End   TimePoint
}

// Contains returns true if the time point is within the period.
// Bounds are inclusive.
func (p Period) Contains(t TimePoint) bool {
	if t.IsZero() {
		return false
	}
	if !p.Start.IsZero() && t.Before(p.Start) {
		return false
	}
	if !p.End.IsZero() && t.After(p.End) {
		return false
	}
	return true
}

// IsOpen reports whether the period places no constraint at all.
func (p Period) IsOpen() bool { return p.Start.IsZero() && p.End.IsZero() }

// Valid reports whether End is not before Start.
func (p Period) Valid() bool {
	if p.Start.IsZero() || p.End.IsZero() {
		return true
	}
	return p.Start.BeforeOrEqual(p.End)
}

// Days returns the number of days in a closed period.
func (p Period) Days() int {
	return DaysInclusive(p.Start, p.End)
}

// CalendarYear returns Jan 1 - Dec 31 of year.
func CalendarYear(year int) Period {
	return Period{Start: NewTimePoint(year, 1, 1), End: NewTimePoint(year, 12, 31)}
}

// String returns a string representation of the period.
func (p Period) String() string {
	return "[" + p.Start.String() + ", " + p.End.String() + "]"
}
