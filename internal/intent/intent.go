// Package intent detects what a patient wants from a message.
package intent

import (
	"context"
	"slices"

	"dentalbot/internal/session"
)

// Context is what a classifier may consult besides the message itself.
type Context struct {
	History []session.Message
	Known   []session.Intent
}

// Classifier returns the intents expressed by text. An empty result means the
// message carries no new intent, typically an answer to a question.
type Classifier interface {
	DetectIntents(ctx context.Context, text string, c Context) ([]session.Intent, error)
}

var all = []session.Intent{
	session.IntentBooking,
	session.IntentCancel,
	session.IntentReschedule,
	session.IntentPriceInquiry,
}

// normalize drops unknown values and duplicates, keeping first-seen order.
func normalize(in []session.Intent) []session.Intent {
	out := make([]session.Intent, 0, len(in))
	for _, i := range in {
		if slices.Contains(all, i) && !slices.Contains(out, i) {
			out = append(out, i)
		}
	}
	return out
}
