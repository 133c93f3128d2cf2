package intent

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dentalbot/internal/session"
)

func TestKeywordDetectIntents(t *testing.T) {
	k := Keyword{BookingTerms: []string{"cleaning", "filling"}}
	tests := []struct {
		text string
		want []session.Intent
	}{
		{"I'd like to book an appointment", []session.Intent{session.IntentBooking}},
		{"I need a filling", []session.Intent{session.IntentBooking}},
		{"Please cancel my appointment", []session.Intent{session.IntentCancel}},
		{"I can't make it, can we reschedule?", []session.Intent{session.IntentReschedule}},
		{"Can I change my appointment to Friday", []session.Intent{session.IntentReschedule}},
		{"How much does a cleaning cost?", []session.Intent{session.IntentPriceInquiry}},
		{"Book me a cleaning, and how much is it?", []session.Intent{session.IntentBooking, session.IntentPriceInquiry}},
		{"yes", []session.Intent{}},
		{"Tuesday at 10", []session.Intent{}},
		{"another day please, maybe Thursday", []session.Intent{}},
		{"a different time would suit me better", []session.Intent{}},
	}
	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			got, err := k.DetectIntents(context.Background(), tt.text, Context{})
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
