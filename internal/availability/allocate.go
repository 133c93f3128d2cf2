package availability

import (
	"slices"
	"time"
)

// Appointment is a concrete booking window cut from a free slot.
type Appointment struct {
	Practitioner string    `json:"practitioner"`
	Start        time.Time `json:"start"`
	End          time.Time `json:"end"`
}

// Appointment cuts a window of durationMinutes from the start of the slot.
// The slot itself is not modified.
func (s Slot) Appointment(durationMinutes int) Appointment {
	return Appointment{
		Practitioner: s.Practitioner,
		Start:        s.Start,
		End:          s.Start.Add(time.Duration(durationMinutes) * time.Minute),
	}
}

// Fits reports whether an appointment of durationMinutes fits inside the slot.
func (s Slot) Fits(durationMinutes int) bool {
	return s.DurationMinutes >= durationMinutes
}

// EarliestFit returns the first slot, in start order, long enough for durationMinutes.
func EarliestFit(slots []Slot, durationMinutes int) (Slot, bool) {
	for _, s := range slots {
		if s.Fits(durationMinutes) {
			return s, true
		}
	}
	return Slot{}, false
}

// FilterByRange keeps slots fully inside [from, to] that fit durationMinutes.
func FilterByRange(slots []Slot, from, to time.Time, durationMinutes int) []Slot {
	var out []Slot
	for _, s := range slots {
		if s.Start.Before(from) || s.End.After(to) {
			continue
		}
		if s.Fits(durationMinutes) {
			out = append(out, s)
		}
	}
	return out
}

// Candidates expands free slots into appointment-length windows: one at the slot's
// start, then every step on the clock grid. Every candidate lies inside the slot it
// was cut from.
func Candidates(slots []Slot, durationMinutes int, step time.Duration) []Slot {
	if step <= 0 {
		step = 15 * time.Minute
	}
	dur := time.Duration(durationMinutes) * time.Minute
	var out []Slot
	for _, s := range slots {
		if !s.Fits(durationMinutes) {
			continue
		}
		for start := s.Start; !start.Add(dur).After(s.End); start = start.Truncate(step).Add(step) {
			out = append(out, newSlot(s.Practitioner, start, start.Add(dur)))
		}
	}
	slices.SortStableFunc(out, func(a, b Slot) int { return a.Start.Compare(b.Start) })
	return out
}

// Select returns the first candidate window whose start satisfies match. Slots that
// cannot hold durationMinutes are never returned.
func Select(slots []Slot, durationMinutes int, step time.Duration, match func(time.Time) bool) (Slot, bool) {
	if match == nil {
		return Slot{}, false
	}
	for _, c := range Candidates(slots, durationMinutes, step) {
		if match(c.Start) {
			return c, true
		}
	}
	return Slot{}, false
}

// Merge combines per-practitioner slot lists into one list ordered by start.
func Merge(lists ...[]Slot) []Slot {
	var out []Slot
	for _, l := range lists {
		out = append(out, l...)
	}
	slices.SortStableFunc(out, func(a, b Slot) int {
		if c := a.Start.Compare(b.Start); c != 0 {
			return c
		}
		if a.Practitioner < b.Practitioner {
			return -1
		}
		if a.Practitioner > b.Practitioner {
			return 1
		}
		return 0
	})
	return out
}

// Subtract cuts the appointment out of the practitioner's slots, keeping the free
// time on either side of it.
func Subtract(slots []Slot, a Appointment) []Slot {
	out := make([]Slot, 0, len(slots)+1)
	for _, s := range slots {
		if s.Practitioner != a.Practitioner || !s.Start.Before(a.End) || !a.Start.Before(s.End) {
			out = append(out, s)
			continue
		}
		if s.Start.Before(a.Start) {
			out = append(out, newSlot(s.Practitioner, s.Start, a.Start))
		}
		if a.End.Before(s.End) {
			out = append(out, newSlot(s.Practitioner, a.End, s.End))
		}
	}
	return out
}
