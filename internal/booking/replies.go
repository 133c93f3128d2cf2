package booking

import (
	"fmt"
	"strings"
	"time"

	"dentalbot/internal/calendar"
)

const (
	replyInternalError       = "Sorry, something went wrong on our side. Please try again in a moment."
	replyAvailabilityTrouble = "Sorry, I'm having trouble checking availability right now. Please try again in a few minutes."
	replyLookupTrouble       = "Sorry, I'm having trouble looking up your appointment right now. Please try again in a few minutes."
	replyCreateFailed        = "Sorry, I couldn't complete your booking. Please contact the clinic directly and a member of staff will help you."
	replyCancelFailed        = "Sorry, I wasn't able to cancel your appointment. Please contact the clinic directly and a member of staff will take care of it."
	replyOldNotRemoved       = "I couldn't remove your previous appointment, so a member of staff will cancel it for you."
	replyNoBookingFound      = "I couldn't find an upcoming appointment for this phone number. If you booked with a different number, please contact the clinic."
	replyNoBookingToMove     = "I couldn't find an upcoming appointment for this phone number, so let's book a new one. "
	replyKeptBooking         = "Okay, I've left your appointment as it is."
	replyRestart             = "No problem, let's start over. How can I help you today?"
	replyHelp                = "Hi! I can book, reschedule or cancel a dental appointment, or tell you about our prices. What would you like to do?"
	replyAllSet              = "You're all set! Let me know if there's anything else I can help with."
	replyAskPreference       = "What day and time would suit you? For example \"tomorrow at 10am\" or \"next Tuesday afternoon\"."
	replyAskAlternative      = "No problem. What other day or time would work for you?"
	replyAskToothCount       = "How many teeth need filling?"
	replyPricesUnavailable   = "I couldn't load our price list right now, but the clinic team will be happy to help with pricing."
	replySlotTaken           = "Sorry, that time was just taken. "
)

const whenLayout = "Monday, January 2 at 3:04 PM"

func formatWhen(t time.Time, loc *time.Location) string {
	return t.In(loc).Format(whenLayout)
}

func askTreatment(names []string) string {
	return fmt.Sprintf("What would you like to book? We offer %s.", joinOr(names))
}

func askPractitioner(names []string) string {
	return fmt.Sprintf("Which dentist would you like to see: %s? Or say \"any\" for the first available.", joinOr(names))
}

func proposalText(practitioner, treatment string, minutes int, when string) string {
	return fmt.Sprintf("%s is available on %s for your %s (%d minutes). Shall I book it? Please reply yes or no.",
		practitioner, when, treatment, minutes)
}

func bookedText(practitioner, treatment, when string) string {
	return fmt.Sprintf("You're booked! %s with %s on %s. See you then.", treatment, practitioner, when)
}

func describeBooking(b calendar.Booking, loc *time.Location) string {
	treatment := b.Treatment
	if treatment == "" {
		treatment = "appointment"
	}
	name := b.PractitionerName
	if name == "" {
		name = b.PractitionerID
	}
	return fmt.Sprintf("%s with %s on %s", treatment, name, formatWhen(b.Start, loc))
}

func joinOr(items []string) string {
	switch len(items) {
	case 0:
		return ""
	case 1:
		return items[0]
	}
	return strings.Join(items[:len(items)-1], ", ") + " or " + items[len(items)-1]
}
