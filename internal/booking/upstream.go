package booking

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"dentalbot/internal/audit"
	"dentalbot/internal/availability"
	"dentalbot/internal/calendar"
	"dentalbot/internal/session"
)

func (o *Orchestrator) listBusy(ctx context.Context, practitionerID string, from, to time.Time) ([]availability.BusyInterval, error) {
	ctx, cancel := context.WithTimeout(ctx, o.cfg.CalendarTimeout)
	defer cancel()
	start := time.Now()
	busy, err := o.cal.ListBusy(ctx, practitionerID, from, to)
	o.metrics.ObserveCalendarCall("list_busy", start, err)
	return busy, err
}

func (o *Orchestrator) createEvent(ctx context.Context, practitionerID string, b calendar.Booking) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, o.cfg.CalendarTimeout)
	defer cancel()
	start := time.Now()
	id, err := o.cal.CreateEvent(ctx, practitionerID, b)
	o.metrics.ObserveCalendarCall("create_event", start, err)
	return id, err
}

func (o *Orchestrator) deleteEvent(ctx context.Context, practitionerID, eventID string) error {
	ctx, cancel := context.WithTimeout(ctx, o.cfg.CalendarTimeout)
	defer cancel()
	start := time.Now()
	err := o.cal.DeleteEvent(ctx, practitionerID, eventID)
	o.metrics.ObserveCalendarCall("delete_event", start, err)
	return err
}

func (o *Orchestrator) findBooking(ctx context.Context, phone string) (*calendar.Booking, error) {
	ctx, cancel := context.WithTimeout(ctx, o.cfg.CalendarTimeout)
	defer cancel()
	start := time.Now()
	b, err := o.cal.FindBookingByContact(ctx, phone)
	o.metrics.ObserveCalendarCall("find_booking", start, err)
	return b, err
}

// createWithRetry retries transient failures with doubling backoff. Retrying is
// safe because b carries a deterministic event ID.
func (o *Orchestrator) createWithRetry(ctx context.Context, practitionerID string, b calendar.Booking) (string, error) {
	var err error
	backoff := o.cfg.RetryBackoff
	for attempt := 1; attempt <= o.cfg.CreateAttempts; attempt++ {
		var id string
		id, err = o.createEvent(ctx, practitionerID, b)
		if err == nil {
			return id, nil
		}
		if errors.Is(err, calendar.ErrConflict) || ctx.Err() != nil {
			return "", err
		}
		if attempt == o.cfg.CreateAttempts {
			break
		}
		o.logger.Warn("create event failed, retrying",
			zap.Int("attempt", attempt), zap.Duration("backoff", backoff), zap.Error(err))
		if serr := o.sleep(ctx, backoff); serr != nil {
			return "", serr
		}
		backoff *= 2
	}
	return "", fmt.Errorf("create event after %d attempts: %w", o.cfg.CreateAttempts, err)
}

// freeSlots fetches every practitioner's busy list in parallel and merges the gaps.
func (o *Orchestrator) freeSlots(ctx context.Context, practitionerIDs []string, now, to time.Time) ([]availability.Slot, error) {
	lists := make([][]availability.Slot, len(practitionerIDs))
	g, gctx := errgroup.WithContext(ctx)
	for i, id := range practitionerIDs {
		g.Go(func() error {
			busy, err := o.listBusy(gctx, id, now, to)
			if err != nil {
				return fmt.Errorf("list busy for %s: %w", id, err)
			}
			lists[i] = availability.FreeIntervals(id, busy, now, to, o.cfg.Policy, now)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return availability.Merge(lists...), nil
}

// ErrUnknownPractitioner is returned by FreeSlots for IDs missing from the catalog.
var ErrUnknownPractitioner = errors.New("booking: unknown practitioner")

// FreeSlots lists open slots for one practitioner, or all when practitionerID is empty.
func (o *Orchestrator) FreeSlots(ctx context.Context, practitionerID string, days int) ([]availability.Slot, error) {
	if days <= 0 {
		days = o.cfg.SearchDays
	}
	ids := o.practitionerIDs()
	if practitionerID != "" {
		if _, ok := o.catalog.Practitioner(practitionerID); !ok {
			return nil, fmt.Errorf("%w: %q", ErrUnknownPractitioner, practitionerID)
		}
		ids = []string{practitionerID}
	}
	now := o.now().In(o.cfg.Policy.Location)
	return o.freeSlots(ctx, ids, now, startOfDay(now).AddDate(0, 0, days))
}

func (o *Orchestrator) practitionerIDs() []string {
	ids := make([]string, 0, len(o.catalog.Practitioners))
	for _, p := range o.catalog.Practitioners {
		ids = append(ids, p.ID)
	}
	return ids
}

func (o *Orchestrator) practitionerName(id string) string {
	if p, ok := o.catalog.Practitioner(id); ok {
		return p.Name
	}
	return id
}

// record writes an audit entry; audit failures never affect the patient.
func (o *Orchestrator) record(ctx context.Context, s *session.Session, action audit.Action, detail string, followUp bool) {
	if o.auditor == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), o.cfg.CalendarTimeout)
	defer cancel()
	if err := o.auditor.Record(ctx, audit.NewEntry(s.ID, s.Phone, action, detail, followUp)); err != nil {
		o.logger.Warn("failed to write audit entry",
			zap.String("conversation_id", s.ID), zap.String("action", string(action)), zap.Error(err))
	}
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
