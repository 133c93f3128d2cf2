package availability

import (
	"slices"
	"time"
)

// BusyInterval is a booked range on one practitioner's calendar.
type BusyInterval struct {
	Start   time.Time `json:"start"`
	End     time.Time `json:"end"`
	EventID string    `json:"event_id,omitempty"`
}

// Slot DTO
type Slot struct {
	Practitioner    string       `json:"practitioner"`
	Start           time.Time    `json:"start"`
	End             time.Time    `json:"end"`
	DurationMinutes int          `json:"duration_minutes"`
	Weekday         time.Weekday `json:"weekday"`
}

// Policy describes the clinic's bookable day.
type Policy struct {
	StartHour          int
	EndHour            int
	MinDurationMinutes int
	// Location is the clinic clock; all day boundaries are computed in it.
	Location *time.Location
}

func (p Policy) location() *time.Location {
	if p.Location == nil {
		return time.UTC
	}
	return p.Location
}

func (p Policy) minDuration() time.Duration {
	if p.MinDurationMinutes <= 0 {
		return time.Minute
	}
	return time.Duration(p.MinDurationMinutes) * time.Minute
}

// FreeIntervals walks every working day between from and to and returns the gaps
// between the practitioner's busy intervals, sorted by start. Weekends are skipped,
// elapsed time today is never offered and gaps shorter than the policy minimum are dropped.
func FreeIntervals(practitioner string, busy []BusyInterval, from, to time.Time, p Policy, now time.Time) []Slot {
	loc := p.location()
	from, to, now = from.In(loc), to.In(loc), now.In(loc)
	minDur := p.minDuration()

	sorted := make([]BusyInterval, len(busy))
	for i, b := range busy {
		// calendars report times in their own offset
		sorted[i] = BusyInterval{Start: b.Start.In(loc), End: b.End.In(loc), EventID: b.EventID}
	}
	slices.SortFunc(sorted, func(a, b BusyInterval) int { return a.Start.Compare(b.Start) })

	var out []Slot
	y, m, d := from.Date()
	endY, endM, endD := to.Date()
	last := time.Date(endY, endM, endD, 0, 0, 0, 0, loc)

	for day := time.Date(y, m, d, 0, 0, 0, 0, loc); !day.After(last); day = day.AddDate(0, 0, 1) {
		if day.Weekday() == time.Saturday || day.Weekday() == time.Sunday {
			continue
		}
		dy, dm, dd := day.Date()
		winStart := time.Date(dy, dm, dd, p.StartHour, 0, 0, 0, loc)
		winEnd := time.Date(dy, dm, dd, p.EndHour, 0, 0, 0, loc)

		if sameDate(day, now) {
			winStart = latest(winStart, now)
		}
		winStart = latest(winStart, from)
		if to.Before(winEnd) {
			winEnd = to
		}
		if !winStart.Before(winEnd) {
			continue
		}

		cursor := winStart
		for _, b := range sorted {
			if !b.End.After(winStart) || !b.Start.Before(winEnd) {
				continue
			}
			if b.Start.After(cursor) {
				out = appendGap(out, practitioner, cursor, b.Start, minDur)
			}
			// the cursor never moves backward, so overlapping bookings cannot open a gap
			cursor = latest(cursor, b.End)
			if !cursor.Before(winEnd) {
				break
			}
		}
		if cursor.Before(winEnd) {
			out = appendGap(out, practitioner, cursor, winEnd, minDur)
		}
	}

	// guard against clock skew between the caller and the calendar
	out = slices.DeleteFunc(out, func(s Slot) bool { return s.Start.Before(now) })
	slices.SortStableFunc(out, func(a, b Slot) int { return a.Start.Compare(b.Start) })
	return out
}

func appendGap(out []Slot, practitioner string, start, end time.Time, minDur time.Duration) []Slot {
	if end.Sub(start) < minDur {
		return out
	}
	return append(out, newSlot(practitioner, start, end))
}

func newSlot(practitioner string, start, end time.Time) Slot {
	return Slot{
		Practitioner:    practitioner,
		Start:           start,
		End:             end,
		DurationMinutes: int(end.Sub(start) / time.Minute),
		Weekday:         start.Weekday(),
	}
}

func sameDate(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

func latest(a, b time.Time) time.Time {
	if a.After(b) {
		return a
	}
	return b
}
