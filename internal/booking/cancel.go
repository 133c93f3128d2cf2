package booking

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"go.uber.org/zap"

	"dentalbot/internal/audit"
	"dentalbot/internal/calendar"
	"dentalbot/internal/session"
)

// startCancel is the lookup phase of a cancellation. Nothing is deleted until the
// patient confirms the booking it finds.
func (t *turn) startCancel(ctx context.Context) string {
	s := t.s
	s.ResetBooking()
	b, err := t.o.findBooking(ctx, s.Phone)
	if err != nil {
		t.log.Warn("booking lookup failed", zap.Error(err))
		t.outcome = outcomeDegraded
		return replyLookupTrouble
	}
	if b == nil {
		return replyNoBookingFound
	}
	s.AddIntent(session.IntentCancel)
	s.ExistingBooking = b
	s.Stage = session.StageCancelConfirm
	return fmt.Sprintf("I found your %s. Would you like me to cancel it? Please reply yes or no.",
		describeBooking(*b, t.loc()))
}

func (t *turn) onCancelConfirm(ctx context.Context, intents []session.Intent) (string, bool) {
	s := t.s
	if s.ExistingBooking == nil {
		s.Stage = session.StageIdle
		s.RemoveIntent(session.IntentCancel)
		return "", false
	}
	switch {
	case isAffirmative(t.lower):
		return t.executeCancel(ctx), true
	case isNegative(t.lower):
		s.ExistingBooking = nil
		s.RemoveIntent(session.IntentCancel)
		s.Stage = session.StageIdle
		return replyKeptBooking, true
	case slices.Contains(intents, session.IntentBooking), slices.Contains(intents, session.IntentReschedule):
		s.ExistingBooking = nil
		s.RemoveIntent(session.IntentCancel)
		s.Stage = session.StageIdle
		return "", false
	case t.priceOnly:
		return "", true
	}
	return fmt.Sprintf("Would you like me to cancel your %s? Please reply yes or no.",
		describeBooking(*s.ExistingBooking, t.loc())), true
}

func (t *turn) executeCancel(ctx context.Context) string {
	s := t.s
	b := *s.ExistingBooking
	err := t.o.deleteEvent(ctx, b.PractitionerID, b.EventID)
	if err != nil && !errors.Is(err, calendar.ErrNotFound) {
		t.log.Error("failed to delete calendar event", zap.Error(err), zap.String("event_id", b.EventID))
		t.o.metrics.ObserveBooking("delete", "error")
		t.o.record(ctx, s, audit.ActionDeleteFailed, b.EventID, true)
		t.outcome = outcomeError
		return replyCancelFailed
	}

	t.o.metrics.ObserveBooking("delete", "ok")
	t.o.record(ctx, s, audit.ActionCancelled, b.EventID, false)
	s.ExistingBooking = nil
	s.RemoveIntent(session.IntentCancel)
	s.Stage = session.StageCancelled
	if s.Confirmed != nil && s.Confirmed.EventID == b.EventID {
		s.Confirmed = nil
	}
	return fmt.Sprintf("Your %s has been cancelled.", describeBooking(b, t.loc()))
}

// startReschedule finds the booking to move and reuses its details for the new search.
func (t *turn) startReschedule(ctx context.Context) string {
	s := t.s
	s.ResetBooking()
	b, err := t.o.findBooking(ctx, s.Phone)
	if err != nil {
		t.log.Warn("booking lookup failed", zap.Error(err))
		t.outcome = outcomeDegraded
		return replyLookupTrouble
	}
	if b == nil {
		s.AddIntent(session.IntentBooking)
		return replyNoBookingToMove + t.advanceBooking(ctx)
	}

	s.AddIntent(session.IntentReschedule)
	s.ExistingBooking = b
	s.Rescheduling = true
	s.Practitioner = b.PractitionerID
	s.ToothCountAsked = true
	if tr, ok := t.o.catalog.Treatment(b.Treatment); ok {
		s.Treatment = tr.Name
	} else {
		s.Treatment = b.Treatment
	}
	if minutes := int(b.End.Sub(b.Start).Minutes()); minutes > 0 {
		s.DurationMinutes = minutes
	}
	return fmt.Sprintf("I found your %s. ", describeBooking(*b, t.loc())) + t.advanceBooking(ctx)
}

// removeReplacedBooking deletes the booking a reschedule replaced. The new
// booking already exists, so a failure is handed to staff.
func (t *turn) removeReplacedBooking(ctx context.Context, newEventID string) string {
	s := t.s
	old := *s.ExistingBooking
	s.ExistingBooking = nil
	s.Rescheduling = false

	err := t.o.deleteEvent(ctx, old.PractitionerID, old.EventID)
	if err != nil && !errors.Is(err, calendar.ErrNotFound) {
		t.log.Error("failed to delete replaced event", zap.Error(err), zap.String("event_id", old.EventID))
		t.o.metrics.ObserveBooking("delete", "error")
		t.o.record(ctx, s, audit.ActionDeleteFailed,
			fmt.Sprintf("replaced %s by %s", old.EventID, newEventID), true)
		t.outcome = outcomeError
		return replyOldNotRemoved
	}
	t.o.metrics.ObserveBooking("delete", "ok")
	t.o.record(ctx, s, audit.ActionRescheduled, fmt.Sprintf("%s -> %s", old.EventID, newEventID), false)
	return fmt.Sprintf("Your previous appointment on %s has been cancelled.", formatWhen(old.Start, t.loc()))
}
