package calendar

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"golang.org/x/sync/errgroup"
	gcal "google.golang.org/api/calendar/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"dentalbot/internal/availability"
	"dentalbot/internal/clinic"
)

const (
	propPhone        = "patientPhone"
	propPatient      = "patientName"
	propTreatment    = "treatment"
	propPractitioner = "practitionerId"

	contactLookahead = 180 * 24 * time.Hour
	maxResults       = int64(250)
)

// Google stores appointments in one Google Calendar per practitioner.
type Google struct {
	srv           *gcal.Service
	practitioners map[string]clinic.Practitioner
	loc           *time.Location
	logger        *zap.Logger
	now           func() time.Time
}

// NewGoogle builds the Calendar API client from an OAuth2 token source.
func NewGoogle(ctx context.Context, ts oauth2.TokenSource, practitioners []clinic.Practitioner, loc *time.Location, logger *zap.Logger) (*Google, error) {
	srv, err := gcal.NewService(ctx, option.WithTokenSource(ts))
	if err != nil {
		return nil, fmt.Errorf("calendar: failed to create calendar service: %w", err)
	}
	return newGoogle(srv, practitioners, loc, logger), nil
}

func newGoogle(srv *gcal.Service, practitioners []clinic.Practitioner, loc *time.Location, logger *zap.Logger) *Google {
	if loc == nil {
		loc = time.UTC
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	byID := make(map[string]clinic.Practitioner, len(practitioners))
	for _, p := range practitioners {
		byID[p.ID] = p
	}
	return &Google{srv: srv, practitioners: byID, loc: loc, logger: logger, now: time.Now}
}

func (g *Google) calendarID(practitionerID string) (string, error) {
	p, ok := g.practitioners[practitionerID]
	if !ok || p.CalendarID == "" {
		return "", fmt.Errorf("calendar: no calendar configured for practitioner %q", practitionerID)
	}
	return p.CalendarID, nil
}

func (g *Google) listEvents(ctx context.Context, calendarID string, from, to time.Time, fn func(*gcal.Event)) error {
	call := g.srv.Events.List(calendarID).
		SingleEvents(true).
		OrderBy("startTime").
		MaxResults(maxResults).
		TimeMin(from.Format(time.RFC3339)).
		TimeMax(to.Format(time.RFC3339))

	return call.Pages(ctx, func(events *gcal.Events) error {
		for _, item := range events.Items {
			if item.Status == "cancelled" {
				continue
			}
			fn(item)
		}
		return nil
	})
}

func (g *Google) ListBusy(ctx context.Context, practitionerID string, from, to time.Time) ([]availability.BusyInterval, error) {
	calID, err := g.calendarID(practitionerID)
	if err != nil {
		return nil, err
	}
	var out []availability.BusyInterval
	err = g.listEvents(ctx, calID, from, to, func(item *gcal.Event) {
		// free-time markers do not block booking
		if item.Transparency == "transparent" {
			return
		}
		start, end, ok := g.eventTimes(item)
		if !ok {
			g.logger.Debug("skipping event without usable times", zap.String("event_id", item.Id))
			return
		}
		out = append(out, availability.BusyInterval{Start: start, End: end, EventID: item.Id})
	})
	if err != nil {
		return nil, fmt.Errorf("calendar: failed to retrieve events: %w", err)
	}
	return out, nil
}

func (g *Google) CreateEvent(ctx context.Context, practitionerID string, b Booking) (string, error) {
	calID, err := g.calendarID(practitionerID)
	if err != nil {
		return "", err
	}
	practitionerName := b.PractitionerName
	if practitionerName == "" {
		practitionerName = g.practitioners[practitionerID].Name
	}
	event := &gcal.Event{
		Id:      b.EventID,
		Summary: fmt.Sprintf("%s - %s", b.Treatment, b.PatientName),
		Description: fmt.Sprintf("Patient: %s\nPhone: %s\nTreatment: %s\nPractitioner: %s",
			b.PatientName, b.PatientPhone, b.Treatment, practitionerName),
		Start: &gcal.EventDateTime{DateTime: b.Start.In(g.loc).Format(time.RFC3339), TimeZone: g.loc.String()},
		End:   &gcal.EventDateTime{DateTime: b.End.In(g.loc).Format(time.RFC3339), TimeZone: g.loc.String()},
		ExtendedProperties: &gcal.EventExtendedProperties{
			Private: map[string]string{
				propPhone:        NormalizePhone(b.PatientPhone),
				propPatient:      b.PatientName,
				propTreatment:    b.Treatment,
				propPractitioner: practitionerID,
			},
		},
	}

	created, err := g.srv.Events.Insert(calID, event).Context(ctx).Do()
	if err != nil {
		var apiErr *googleapi.Error
		if b.EventID != "" && errors.As(err, &apiErr) && apiErr.Code == http.StatusConflict {
			return g.reuseEvent(ctx, calID, event)
		}
		return "", fmt.Errorf("calendar: failed to insert event: %w", err)
	}
	return created.Id, nil
}

// reuseEvent handles an insert that collided with an existing ID. A live event
// is an earlier attempt that already succeeded. A deleted one keeps its ID
// reserved, so it is restored with the new details.
func (g *Google) reuseEvent(ctx context.Context, calID string, event *gcal.Event) (string, error) {
	existing, err := g.srv.Events.Get(calID, event.Id).Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("calendar: failed to get event %s: %w", event.Id, err)
	}
	if existing.Status != "cancelled" {
		return event.Id, nil
	}
	event.Status = "confirmed"
	if _, err := g.srv.Events.Update(calID, event.Id, event).Context(ctx).Do(); err != nil {
		return "", fmt.Errorf("calendar: failed to restore event %s: %w", event.Id, err)
	}
	return event.Id, nil
}

func (g *Google) DeleteEvent(ctx context.Context, practitionerID, eventID string) error {
	calID, err := g.calendarID(practitionerID)
	if err != nil {
		return err
	}
	err = g.srv.Events.Delete(calID, eventID).Context(ctx).Do()
	if err != nil {
		var apiErr *googleapi.Error
		if errors.As(err, &apiErr) && (apiErr.Code == http.StatusNotFound || apiErr.Code == http.StatusGone) {
			return fmt.Errorf("delete %s: %w", eventID, ErrNotFound)
		}
		return fmt.Errorf("calendar: failed to delete event: %w", err)
	}
	return nil
}

// FindBookingByContact scans every practitioner calendar concurrently and returns
// the earliest upcoming appointment whose phone matches.
func (g *Google) FindBookingByContact(ctx context.Context, phone string) (*Booking, error) {
	now := g.now()
	var (
		mu   sync.Mutex
		best *Booking
	)
	eg, ctx := errgroup.WithContext(ctx)
	for id, p := range g.practitioners {
		if p.CalendarID == "" {
			continue
		}
		eg.Go(func() error {
			return g.listEvents(ctx, p.CalendarID, now, now.Add(contactLookahead), func(item *gcal.Event) {
				b, ok := g.toBooking(id, item)
				if !ok || !PhonesMatch(b.PatientPhone, phone) {
					return
				}
				mu.Lock()
				defer mu.Unlock()
				if best == nil || b.Start.Before(best.Start) {
					best = &b
				}
			})
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, fmt.Errorf("calendar: contact lookup failed: %w", err)
	}
	return best, nil
}

func (g *Google) toBooking(practitionerID string, item *gcal.Event) (Booking, bool) {
	start, end, ok := g.eventTimes(item)
	if !ok {
		return Booking{}, false
	}
	b := Booking{
		PractitionerID:   practitionerID,
		PractitionerName: g.practitioners[practitionerID].Name,
		Start:            start,
		End:              end,
		EventID:          item.Id,
		CalendarRef:      g.practitioners[practitionerID].CalendarID,
	}
	if item.ExtendedProperties != nil && item.ExtendedProperties.Private != nil {
		priv := item.ExtendedProperties.Private
		b.PatientPhone = priv[propPhone]
		b.PatientName = priv[propPatient]
		b.Treatment = priv[propTreatment]
	}
	if b.PatientPhone == "" {
		b.PatientPhone = descriptionField(item.Description, "Phone")
	}
	if b.PatientName == "" {
		b.PatientName = descriptionField(item.Description, "Patient")
	}
	if b.Treatment == "" {
		b.Treatment = descriptionField(item.Description, "Treatment")
	}
	return b, b.PatientPhone != ""
}

// eventTimes reads timed and all-day events; all-day dates are taken in the clinic zone.
func (g *Google) eventTimes(item *gcal.Event) (time.Time, time.Time, bool) {
	if item.Start == nil || item.End == nil {
		return time.Time{}, time.Time{}, false
	}
	start, okStart := g.parseEventTime(item.Start)
	end, okEnd := g.parseEventTime(item.End)
	if !okStart || !okEnd || !start.Before(end) {
		return time.Time{}, time.Time{}, false
	}
	return start, end, true
}

func (g *Google) parseEventTime(dt *gcal.EventDateTime) (time.Time, bool) {
	if dt.DateTime != "" {
		t, err := time.Parse(time.RFC3339, dt.DateTime)
		return t, err == nil
	}
	if dt.Date != "" {
		t, err := time.ParseInLocation("2006-01-02", dt.Date, g.loc)
		return t, err == nil
	}
	return time.Time{}, false
}

func descriptionField(desc, field string) string {
	for _, line := range strings.Split(desc, "\n") {
		key, value, ok := strings.Cut(line, ":")
		if ok && strings.EqualFold(strings.TrimSpace(key), field) {
			return strings.TrimSpace(value)
		}
	}
	return ""
}
