// Package calendar is the boundary to the practice's appointment calendars.
package calendar

import (
	"context"
	"crypto/sha1"
	"encoding/base32"
	"errors"
	"strings"
	"time"

	"dentalbot/internal/availability"
)

var (
	ErrNotFound = errors.New("calendar: event not found")
	// ErrConflict means the requested window is no longer free.
	ErrConflict = errors.New("calendar: slot already booked")
)

// Booking is a copy of an appointment held by the calendar.
type Booking struct {
	PractitionerID   string    `json:"practitioner_id"`
	PractitionerName string    `json:"practitioner_name"`
	PatientName      string    `json:"patient_name"`
	PatientPhone     string    `json:"patient_phone"`
	Treatment        string    `json:"treatment"`
	Start            time.Time `json:"start"`
	End              time.Time `json:"end"`
	EventID          string    `json:"event_id,omitempty"`
	CalendarRef      string    `json:"calendar_ref,omitempty"`
}

// Calendar is implemented by every calendar backend.
type Calendar interface {
	ListBusy(ctx context.Context, practitionerID string, from, to time.Time) ([]availability.BusyInterval, error)
	// CreateEvent inserts b. When b.EventID is set and already exists the call
	// succeeds and returns that ID, which makes retries safe.
	CreateEvent(ctx context.Context, practitionerID string, b Booking) (string, error)
	DeleteEvent(ctx context.Context, practitionerID, eventID string) error
	// FindBookingByContact returns the next upcoming booking for phone, or nil.
	FindBookingByContact(ctx context.Context, phone string) (*Booking, error)
}

var eventIDEncoding = base32.HexEncoding.WithPadding(base32.NoPadding)

// EventID derives a deterministic event identifier for a conversation and start
// time. The alphabet (0-9, a-v) is accepted by Google Calendar.
func EventID(conversationID, practitionerID string, start time.Time) string {
	sum := sha1.Sum([]byte(conversationID + "|" + practitionerID + "|" + start.UTC().Format(time.RFC3339)))
	return "db" + strings.ToLower(eventIDEncoding.EncodeToString(sum[:]))
}

// NormalizePhone keeps only digits.
func NormalizePhone(phone string) string {
	var b strings.Builder
	for _, r := range phone {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

const minSuffixDigits = 7

// PhonesMatch compares numbers on their digits, falling back to a suffix match so
// "+1 (234) 567-890" and "1234567890" agree with or without a country code.
func PhonesMatch(a, b string) bool {
	da, db := NormalizePhone(a), NormalizePhone(b)
	if da == "" || db == "" {
		return false
	}
	if da == db {
		return true
	}
	short, long := da, db
	if len(short) > len(long) {
		short, long = long, short
	}
	return len(short) >= minSuffixDigits && strings.HasSuffix(long, short)
}

func overlaps(aStart, aEnd, bStart, bEnd time.Time) bool {
	return aStart.Before(bEnd) && bStart.Before(aEnd)
}
