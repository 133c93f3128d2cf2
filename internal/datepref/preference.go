// Package datepref turns free-text scheduling phrases into partial date/time
// preferences and tests concrete slots against them.
package datepref

import (
	"fmt"
	"time"
)

// Date is a calendar date with no time-of-day or zone attached.
type Date struct {
	Year  int        `json:"year"`
	Month time.Month `json:"month"`
	Day   int        `json:"day"`
}

// DateOf returns the calendar date of t in t's own location.
func DateOf(t time.Time) Date {
	y, m, d := t.Date()
	return Date{Year: y, Month: m, Day: d}
}

// In returns midnight of the date in loc.
func (d Date) In(loc *time.Location) time.Time {
	return time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, loc)
}

// AddDays shifts the date by n calendar days.
func (d Date) AddDays(n int) Date {
	return DateOf(time.Date(d.Year, d.Month, d.Day+n, 0, 0, 0, 0, time.UTC))
}

func (d Date) Weekday() time.Weekday {
	return d.In(time.UTC).Weekday()
}

func (d Date) Before(o Date) bool {
	return d.In(time.UTC).Before(o.In(time.UTC))
}

func (d Date) String() string {
	return fmt.Sprintf("%04d-%02d-%02d", d.Year, d.Month, d.Day)
}

// TimeOfDay is a wall-clock time.
type TimeOfDay struct {
	Hour   int `json:"hour"`
	Minute int `json:"minute"`
}

func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d", t.Hour, t.Minute)
}

// DateRange is carried for compatibility with stored sessions and is never populated.
type DateRange struct {
	From Date `json:"from"`
	To   Date `json:"to"`
}

// Preference is a partially specified appointment wish. A nil field leaves that
// dimension unconstrained.
type Preference struct {
	Date      *Date      `json:"date,omitempty"`
	Time      *TimeOfDay `json:"time,omitempty"`
	DateRange *DateRange `json:"date_range,omitempty"`
}

// IsZero reports whether nothing was recognized.
func (p Preference) IsZero() bool {
	return p.Date == nil && p.Time == nil
}

// Describe renders the preference for user-facing text.
func (p Preference) Describe(loc *time.Location) string {
	switch {
	case p.Date != nil && p.Time != nil:
		at := time.Date(p.Date.Year, p.Date.Month, p.Date.Day, p.Time.Hour, p.Time.Minute, 0, 0, loc)
		return at.Format("Monday, January 2 at 3:04 PM")
	case p.Date != nil:
		return p.Date.In(loc).Format("Monday, January 2")
	case p.Time != nil:
		return time.Date(2000, 1, 1, p.Time.Hour, p.Time.Minute, 0, 0, loc).Format("3:04 PM")
	default:
		return "any time"
	}
}
