package calendar

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"dentalbot/internal/availability"
)

// Memory is an in-process calendar used in development and tests.
type Memory struct {
	mu     sync.Mutex
	events map[string][]Booking // by practitioner ID
	names  map[string]string
	now    func() time.Time
}

func NewMemory(practitionerNames map[string]string, now func() time.Time) *Memory {
	if now == nil {
		now = time.Now
	}
	return &Memory{
		events: make(map[string][]Booking),
		names:  practitionerNames,
		now:    now,
	}
}

func (m *Memory) ListBusy(ctx context.Context, practitionerID string, from, to time.Time) ([]availability.BusyInterval, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []availability.BusyInterval
	for _, b := range m.events[practitionerID] {
		if overlaps(b.Start, b.End, from, to) {
			out = append(out, availability.BusyInterval{Start: b.Start, End: b.End, EventID: b.EventID})
		}
	}
	slices.SortFunc(out, func(a, b availability.BusyInterval) int { return a.Start.Compare(b.Start) })
	return out, nil
}

func (m *Memory) CreateEvent(ctx context.Context, practitionerID string, b Booking) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.events[practitionerID] {
		if b.EventID != "" && existing.EventID == b.EventID {
			return existing.EventID, nil
		}
		if overlaps(existing.Start, existing.End, b.Start, b.End) {
			return "", ErrConflict
		}
	}
	if b.EventID == "" {
		b.EventID = uuid.NewString()
	}
	b.PractitionerID = practitionerID
	if b.PractitionerName == "" {
		b.PractitionerName = m.names[practitionerID]
	}
	b.CalendarRef = practitionerID
	m.events[practitionerID] = append(m.events[practitionerID], b)
	return b.EventID, nil
}

func (m *Memory) DeleteEvent(ctx context.Context, practitionerID, eventID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	events := m.events[practitionerID]
	idx := slices.IndexFunc(events, func(b Booking) bool { return b.EventID == eventID })
	if idx < 0 {
		return fmt.Errorf("delete %s: %w", eventID, ErrNotFound)
	}
	m.events[practitionerID] = slices.Delete(events, idx, idx+1)
	return nil
}

func (m *Memory) FindBookingByContact(ctx context.Context, phone string) (*Booking, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	var best *Booking
	for _, events := range m.events {
		for i := range events {
			b := events[i]
			if b.End.Before(now) || !PhonesMatch(b.PatientPhone, phone) {
				continue
			}
			if best == nil || b.Start.Before(best.Start) {
				found := b
				best = &found
			}
		}
	}
	return best, nil
}

// Seed inserts bookings directly, bypassing conflict checks.
func (m *Memory) Seed(bookings ...Booking) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, b := range bookings {
		if b.EventID == "" {
			b.EventID = uuid.NewString()
		}
		m.events[b.PractitionerID] = append(m.events[b.PractitionerID], b)
	}
}

// Events returns a copy of a practitioner's bookings.
func (m *Memory) Events(practitionerID string) []Booking {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.events[practitionerID])
}
