package booking

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"go.uber.org/zap"

	"dentalbot/internal/audit"
	"dentalbot/internal/availability"
	"dentalbot/internal/calendar"
	"dentalbot/internal/clinic"
	"dentalbot/internal/datepref"
	"dentalbot/internal/intent"
	"dentalbot/internal/session"
)

// maxSearchDays bounds how far a named date can stretch the search window.
const maxSearchDays = 120

// turn is the state of one HandleTurn call.
type turn struct {
	o     *Orchestrator
	s     *session.Session
	text  string
	lower string
	now   time.Time
	log   *zap.Logger

	// priceOnly marks a message whose only intent is a price question.
	priceOnly bool
	outcome   string
}

func (t *turn) run(ctx context.Context) string {
	if isRestart(t.lower) {
		t.s.ResetBooking()
		return replyRestart
	}

	intents := t.detectIntents(ctx)
	wantsPrice := slices.Contains(intents, session.IntentPriceInquiry)
	t.priceOnly = wantsPrice && len(intents) == 1

	reply := t.dispatch(ctx, intents)
	if wantsPrice {
		prices := t.priceText(ctx)
		if reply == "" {
			return prices
		}
		return reply + "\n\n" + prices
	}
	if reply == "" {
		return replyHelp
	}
	return reply
}

func (t *turn) detectIntents(ctx context.Context) []session.Intent {
	cctx, cancel := context.WithTimeout(ctx, t.o.cfg.ClassifierTimeout)
	defer cancel()
	ic := intent.Context{History: t.s.Recent(classifierHistory), Known: slices.Clone(t.s.Intents)}
	intents, err := t.o.classifier.DetectIntents(cctx, t.text, ic)
	if err != nil {
		t.log.Warn("intent detection failed, using keywords", zap.Error(err))
		t.o.metrics.IntentFallback()
		intents, _ = t.o.fallback.DetectIntents(ctx, t.text, ic)
	}
	return intents
}

// dispatch lets the pending decision of the current stage claim the message
// first; only then are newly detected intents acted on.
func (t *turn) dispatch(ctx context.Context, intents []session.Intent) string {
	s := t.s
	switch s.Stage {
	case session.StageSlotProposed:
		if reply, ok := t.onProposal(ctx, intents); ok {
			return reply
		}
	case session.StageCancelConfirm:
		if reply, ok := t.onCancelConfirm(ctx, intents); ok {
			return reply
		}
	}

	switch {
	case slices.Contains(intents, session.IntentReschedule) && !newBookingInProgress(s):
		return t.startReschedule(ctx)
	case slices.Contains(intents, session.IntentCancel):
		return t.startCancel(ctx)
	case slices.Contains(intents, session.IntentBooking):
		if !s.HasIntent(session.IntentBooking) && !s.HasIntent(session.IntentReschedule) {
			s.ResetBooking()
			s.AddIntent(session.IntentBooking)
		}
		return t.advanceBooking(ctx)
	case s.HasIntent(session.IntentBooking) || s.HasIntent(session.IntentReschedule):
		return t.advanceBooking(ctx)
	case t.priceOnly:
		return ""
	case s.Stage == session.StageConfirmed && (isAffirmative(t.lower) || isThanks(t.lower)):
		return replyAllSet
	}
	return ""
}

// onProposal handles a message while a slot is awaiting yes or no.
func (t *turn) onProposal(ctx context.Context, intents []session.Intent) (string, bool) {
	s := t.s
	if s.Proposed == nil {
		s.Stage = session.StageCollectingPreferences
		return "", false
	}
	switch {
	case isAffirmative(t.lower):
		return t.confirmProposal(ctx), true
	case isNegative(t.lower):
		return t.declineProposal(ctx), true
	case slices.Contains(intents, session.IntentCancel),
		slices.Contains(intents, session.IntentReschedule) && !newBookingInProgress(s):
		s.Proposed = nil
		return "", false
	}
	if pref := t.preference(); !pref.IsZero() {
		// a new day or time reads as "not that one, how about..."
		s.Declined = append(s.Declined, *s.Proposed)
		s.Proposed = nil
		mergePreference(s, pref)
		return t.search(ctx, ""), true
	}
	if t.priceOnly {
		return "", true
	}
	a := *s.Proposed
	return proposalText(t.o.practitionerName(a.Practitioner), s.Treatment, s.DurationMinutes,
		formatWhen(a.Start, t.loc())), true
}

// newBookingInProgress reports a fresh booking with details already collected. A
// "reschedule" reading of a message in that state is the patient moving the
// proposal, not an existing appointment.
func newBookingInProgress(s *session.Session) bool {
	return s.HasIntent(session.IntentBooking) && !s.Rescheduling && s.ExistingBooking == nil && s.Treatment != ""
}

func (t *turn) advanceBooking(ctx context.Context) string {
	s := t.s
	if !t.priceOnly {
		t.extract()
	}
	cat := t.o.catalog

	if s.Treatment == "" {
		s.Stage = session.StageCollectingTreatment
		return askTreatment(cat.TreatmentNames())
	}
	if s.Practitioner == "" && !s.AnyPractitioner {
		s.Stage = session.StageCollectingPractitioner
		return askPractitioner(cat.PractitionerNames())
	}
	if strings.EqualFold(s.Treatment, clinic.TreatmentFilling) && s.ToothCount == 0 && !s.ToothCountAsked {
		s.ToothCountAsked = true
		s.Stage = session.StageCollectingToothCount
		return replyAskToothCount
	}
	if !s.Rescheduling || s.DurationMinutes <= 0 {
		s.DurationMinutes = cat.DurationMinutes(s.Treatment, s.Practitioner, s.ToothCount)
	}
	if s.Preference == nil && !s.PreferenceAsked {
		s.PreferenceAsked = true
		s.Stage = session.StageCollectingPreferences
		return replyAskPreference
	}
	if t.priceOnly && s.Stage == session.StageCollectingPreferences {
		return ""
	}
	return t.search(ctx, "")
}

// extract pulls whatever booking details the message carries into the session.
func (t *turn) extract() {
	s := t.s
	cat := t.o.catalog
	if name := extractName(t.text); name != "" {
		s.PatientName = name
	}
	if s.Treatment == "" {
		if tr, ok := cat.FindTreatment(t.lower); ok {
			s.Treatment = tr.Name
		}
	}
	if s.Practitioner == "" && !s.AnyPractitioner {
		if p, ok := cat.FindPractitioner(t.lower); ok {
			s.Practitioner = p.ID
		} else if isAnyPractitioner(t.lower, s.Stage == session.StageCollectingPractitioner) {
			s.AnyPractitioner = true
		}
	}
	if strings.EqualFold(s.Treatment, clinic.TreatmentFilling) && s.ToothCount == 0 {
		if n, ok := extractToothCount(t.lower, s.Stage == session.StageCollectingToothCount); ok {
			s.ToothCount = n
		}
	}
	if pref := t.preference(); !pref.IsZero() {
		mergePreference(s, pref)
	}
}

func (t *turn) preference() datepref.Preference {
	return datepref.Parse(t.text, t.now)
}

// mergePreference lets newer dimensions replace older ones and keeps the rest.
func mergePreference(s *session.Session, p datepref.Preference) {
	if s.Preference == nil {
		s.Preference = &datepref.Preference{}
	}
	if p.Date != nil {
		s.Preference.Date = p.Date
	}
	if p.Time != nil {
		s.Preference.Time = p.Time
	}
}

func (t *turn) currentPreference() datepref.Preference {
	if t.s.Preference == nil {
		return datepref.Preference{}
	}
	return *t.s.Preference
}

func (t *turn) loc() *time.Location {
	return t.o.cfg.Policy.Location
}

// horizon is the end of the search window, stretched to cover a named date.
func (t *turn) horizon() time.Time {
	to := startOfDay(t.now).AddDate(0, 0, t.o.cfg.SearchDays)
	if p := t.currentPreference(); p.Date != nil {
		end := p.Date.AddDays(1).In(t.loc())
		limit := startOfDay(t.now).AddDate(0, 0, maxSearchDays)
		if end.After(to) {
			to = end
		}
		if to.After(limit) {
			to = limit
		}
	}
	return to
}

// searchedDays is the length of the window horizon covers, in calendar days.
func (t *turn) searchedDays() int {
	d := t.horizon().Sub(startOfDay(t.now))
	return int((d + 12*time.Hour) / (24 * time.Hour))
}

// search looks up fresh availability and proposes the best slot.
func (t *turn) search(ctx context.Context, prefix string) string {
	s := t.s
	s.Stage = session.StageCollectingPreferences
	ids := t.o.practitionerIDs()
	if s.Practitioner != "" {
		ids = []string{s.Practitioner}
	}
	slots, err := t.o.freeSlots(ctx, ids, t.now, t.horizon())
	if err != nil {
		t.log.Warn("availability lookup failed", zap.Error(err))
		t.outcome = outcomeDegraded
		return prefix + replyAvailabilityTrouble
	}
	for _, d := range s.Declined {
		slots = availability.Subtract(slots, d)
	}
	return prefix + t.proposeFrom(slots)
}

func (t *turn) proposeFrom(slots []availability.Slot) string {
	s := t.s
	pref := t.currentPreference()
	chosen, matched, ok := t.o.choose(slots, s.DurationMinutes, pref)
	if !ok {
		s.CandidateSlots = nil
		return fmt.Sprintf("Sorry, I couldn't find a %d-minute opening in the next %d days. Would another dentist or a later date work?",
			s.DurationMinutes, t.searchedDays())
	}
	if len(slots) > maxCandidates {
		slots = slots[:maxCandidates]
	}
	s.CandidateSlots = slots
	s.Propose(chosen.Appointment(s.DurationMinutes))

	var b strings.Builder
	if !pref.IsZero() && !matched {
		fmt.Fprintf(&b, "I don't have an opening for %s. ", pref.Describe(t.loc()))
	}
	b.WriteString(proposalText(t.o.practitionerName(chosen.Practitioner), s.Treatment, s.DurationMinutes,
		formatWhen(chosen.Start, t.loc())))
	return b.String()
}

// choose prefers the exact requested time, then anything within the preference's
// tolerance, then the earliest slot long enough. Preferences are read on the
// clinic clock whatever zone the slots carry.
func (o *Orchestrator) choose(slots []availability.Slot, minutes int, pref datepref.Preference) (availability.Slot, bool, bool) {
	loc := o.cfg.Policy.Location
	onClinicClock := func(match func(time.Time) bool) func(time.Time) bool {
		return func(start time.Time) bool { return match(start.In(loc)) }
	}
	pool := slots
	if pref.Date != nil {
		pool = availability.FilterByRange(slots, pref.Date.In(loc), pref.Date.AddDays(1).In(loc), minutes)
	}
	if pref.Time != nil {
		if c, ok := availability.Select(pool, minutes, o.cfg.SlotStep, onClinicClock(pref.MatchesExactly)); ok {
			return c, true, true
		}
	}
	if !pref.IsZero() {
		if c, ok := availability.Select(pool, minutes, o.cfg.SlotStep, onClinicClock(pref.Matches)); ok {
			return c, true, true
		}
	}
	c, ok := availability.EarliestFit(slots, minutes)
	return c, false, ok
}

func (t *turn) confirmProposal(ctx context.Context) string {
	s := t.s
	a := *s.Proposed
	eventID := calendar.EventID(s.ID, a.Practitioner, a.Start)

	busy, err := t.o.listBusy(ctx, a.Practitioner, a.Start, a.End)
	if err != nil {
		t.log.Warn("slot re-check failed", zap.Error(err))
		t.outcome = outcomeDegraded
		return replyAvailabilityTrouble
	}
	if takenByOther(busy, a, eventID) {
		return t.slotTaken(ctx, a)
	}

	b := calendar.Booking{
		PractitionerID:   a.Practitioner,
		PractitionerName: t.o.practitionerName(a.Practitioner),
		PatientName:      s.PatientName,
		PatientPhone:     s.Phone,
		Treatment:        s.Treatment,
		Start:            a.Start,
		End:              a.End,
		EventID:          eventID,
	}
	id, err := t.o.createWithRetry(ctx, a.Practitioner, b)
	switch {
	case errors.Is(err, calendar.ErrConflict):
		return t.slotTaken(ctx, a)
	case err != nil:
		t.log.Error("failed to create calendar event", zap.Error(err), zap.String("event_id", eventID))
		t.o.metrics.ObserveBooking("create", "error")
		t.o.record(ctx, s, audit.ActionCreateFailed,
			fmt.Sprintf("%s with %s at %s", s.Treatment, b.PractitionerName, a.Start.Format(time.RFC3339)), true)
		t.outcome = outcomeError
		return replyCreateFailed
	}

	rescheduling := s.Rescheduling
	s.Confirm(id)
	t.o.metrics.ObserveBooking("create", "ok")
	if !rescheduling {
		t.o.record(ctx, s, audit.ActionBooked, id, false)
	}
	reply := bookedText(b.PractitionerName, s.Treatment, formatWhen(a.Start, t.loc()))
	if rescheduling && s.ExistingBooking != nil {
		reply += " " + t.removeReplacedBooking(ctx, id)
	}
	return reply
}

func takenByOther(busy []availability.BusyInterval, a availability.Appointment, eventID string) bool {
	for _, b := range busy {
		if b.EventID == eventID {
			continue
		}
		if b.Start.Before(a.End) && a.Start.Before(b.End) {
			return true
		}
	}
	return false
}

// slotTaken drops a proposal lost to another booking and offers the next one.
func (t *turn) slotTaken(ctx context.Context, a availability.Appointment) string {
	t.o.metrics.ObserveBooking("create", "conflict")
	t.s.Proposed = nil
	t.s.Declined = append(t.s.Declined, a)
	return t.search(ctx, replySlotTaken)
}

func (t *turn) declineProposal(ctx context.Context) string {
	s := t.s
	s.Declined = append(s.Declined, *s.Proposed)
	s.Proposed = nil
	if pref := t.preference(); !pref.IsZero() {
		mergePreference(s, pref)
		return t.search(ctx, "")
	}
	s.Stage = session.StageCollectingPreferences
	s.PreferenceAsked = true
	return replyAskAlternative
}

func (t *turn) priceText(ctx context.Context) string {
	if t.o.prices == nil {
		return replyPricesUnavailable
	}
	treatment := t.s.Treatment
	if tr, ok := t.o.catalog.FindTreatment(t.lower); ok {
		treatment = tr.Name
	}
	ctx, cancel := context.WithTimeout(ctx, t.o.cfg.CalendarTimeout)
	defer cancel()
	text, err := t.o.prices.Prices(ctx, treatment)
	if err != nil || strings.TrimSpace(text) == "" {
		if err != nil {
			t.log.Warn("price lookup failed", zap.Error(err))
			t.outcome = outcomeDegraded
		}
		return replyPricesUnavailable
	}
	return "Here is our pricing:\n" + strings.TrimSpace(text)
}
