package datepref

import "time"

// Matches reports whether a slot starting at start satisfies the preference. The
// date must be the same calendar day; the time may be off by up to one hour.
func (p Preference) Matches(start time.Time) bool {
	if p.Date != nil && DateOf(start) != *p.Date {
		return false
	}
	if p.Time != nil {
		diff := start.Hour() - p.Time.Hour
		if diff < 0 {
			diff = -diff
		}
		if diff > 1 {
			return false
		}
	}
	return true
}

// MatchesExactly is Matches with the time pinned to the preferred hour and minute.
func (p Preference) MatchesExactly(start time.Time) bool {
	if !p.Matches(start) {
		return false
	}
	if p.Time != nil {
		return start.Hour() == p.Time.Hour && start.Minute() == p.Time.Minute
	}
	return true
}
