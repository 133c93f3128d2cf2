package intent

import (
	"context"
	"regexp"
	"strings"

	"dentalbot/internal/session"
)

var (
	reCancel     = regexp.MustCompile(`\b(cancel(led|ling)?|cancell?ation|call off|can'?t make it|cannot make it)\b`)
	reReschedule = regexp.MustCompile(`\b(reschedule|re-schedule|postpone|move my|change my (appointment|booking|time))\b`)
	reBooking    = regexp.MustCompile(`\b(book|booking|appointment|schedule|make an? appt|appt|see (a|the) (dentist|doctor)|come in|available|availability|slot)\b`)
	rePrice      = regexp.MustCompile(`\b(price|prices|pricing|cost|costs|how much|fee|fees|charge|expensive|cheap)\b`)
)

// Keyword is the deterministic classifier used when no model is configured or
// the model call fails.
type Keyword struct {
	// BookingTerms are extra words, such as treatment names, that imply a booking.
	BookingTerms []string
}

func (k Keyword) DetectIntents(_ context.Context, text string, _ Context) ([]session.Intent, error) {
	lower := strings.ToLower(text)
	var out []session.Intent

	switch {
	case reReschedule.MatchString(lower):
		out = append(out, session.IntentReschedule)
	case reCancel.MatchString(lower):
		out = append(out, session.IntentCancel)
	case reBooking.MatchString(lower):
		out = append(out, session.IntentBooking)
	case k.mentionsBookingTerm(lower) && !rePrice.MatchString(lower):
		// a treatment named in a price question is not a booking request
		out = append(out, session.IntentBooking)
	}
	if rePrice.MatchString(lower) {
		out = append(out, session.IntentPriceInquiry)
	}
	return normalize(out), nil
}

func (k Keyword) mentionsBookingTerm(lower string) bool {
	for _, term := range k.BookingTerms {
		term = strings.ToLower(strings.TrimSpace(term))
		if term != "" && strings.Contains(lower, term) {
			return true
		}
	}
	return false
}
