package session

import (
	"errors"
	"slices"
	"time"

	"dentalbot/internal/availability"
	"dentalbot/internal/calendar"
	"dentalbot/internal/datepref"
)

// Intent is a classified purpose of a user message.
type Intent string

const (
	IntentBooking      Intent = "booking"
	IntentCancel       Intent = "cancel"
	IntentReschedule   Intent = "reschedule"
	IntentPriceInquiry Intent = "price_inquiry"
)

// Stage is the conversation's position in the booking state machine.
type Stage string

const (
	StageIdle                   Stage = "idle"
	StageCollectingTreatment    Stage = "collecting_treatment"
	StageCollectingPractitioner Stage = "collecting_practitioner"
	StageCollectingToothCount   Stage = "collecting_tooth_count"
	StageCollectingPreferences  Stage = "collecting_preferences"
	StageSlotProposed           Stage = "slot_proposed"
	StageConfirmed              Stage = "confirmed"
	StageCancelConfirm          Stage = "cancel_confirm_pending"
	StageCancelled              Stage = "cancelled"
)

// ConfirmationStatus mirrors the proposal lifecycle.
type ConfirmationStatus string

const (
	ConfirmationNone      ConfirmationStatus = ""
	ConfirmationPending   ConfirmationStatus = "pending"
	ConfirmationConfirmed ConfirmationStatus = "confirmed"
)

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"

	maxHistory = 50
)

var ErrNotFound = errors.New("session not found")

// Message is one entry in the conversation history.
type Message struct {
	Role string    `json:"role"`
	Text string    `json:"text"`
	At   time.Time `json:"at"`
}

// Confirmed pairs the booked window with the calendar event that holds it, so a
// confirmed session always has both.
type Confirmed struct {
	Appointment availability.Appointment `json:"appointment"`
	EventID     string                   `json:"event_id"`
}

// Session is the per-conversation state. It is owned by a Store; callers get copies.
type Session struct {
	ID           string   `json:"id"`
	Phone        string   `json:"phone"`
	PatientName  string   `json:"patient_name,omitempty"`
	Intents      []Intent `json:"intents,omitempty"`
	Stage        Stage    `json:"stage"`
	Treatment    string   `json:"treatment,omitempty"`
	Practitioner string   `json:"practitioner,omitempty"`
	// AnyPractitioner is set when the patient has no preference between dentists.
	AnyPractitioner bool `json:"any_practitioner,omitempty"`
	DurationMinutes int  `json:"duration_minutes,omitempty"`
	ToothCount      int  `json:"tooth_count,omitempty"`
	ToothCountAsked bool `json:"tooth_count_asked,omitempty"`
	// PreferenceAsked records that the patient has already been asked for a day and time.
	PreferenceAsked bool                 `json:"preference_asked,omitempty"`
	Preference      *datepref.Preference `json:"preference,omitempty"`

	Proposed  *availability.Appointment `json:"proposed,omitempty"`
	Confirmed *Confirmed                `json:"confirmed,omitempty"`

	CandidateSlots []availability.Slot `json:"candidate_slots,omitempty"`
	// Declined holds proposals the patient turned down; searches skip them.
	Declined        []availability.Appointment `json:"declined,omitempty"`
	ExistingBooking *calendar.Booking          `json:"existing_booking,omitempty"`
	// Rescheduling marks ExistingBooking as the event to replace once a new slot is confirmed.
	Rescheduling bool `json:"rescheduling,omitempty"`

	History      []Message `json:"history,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	LastActivity time.Time `json:"last_activity"`
}

func newSession(id string, now time.Time) *Session {
	return &Session{
		ID:           id,
		Stage:        StageIdle,
		CreatedAt:    now,
		LastActivity: now,
	}
}

// ConfirmationStatus derives the status from which appointment the session holds.
func (s *Session) ConfirmationStatus() ConfirmationStatus {
	switch {
	case s.Confirmed != nil:
		return ConfirmationConfirmed
	case s.Proposed != nil:
		return ConfirmationPending
	default:
		return ConfirmationNone
	}
}

// Propose records a pending appointment and moves to the slot-proposed stage.
func (s *Session) Propose(a availability.Appointment) {
	s.Proposed = &a
	s.Confirmed = nil
	s.Stage = StageSlotProposed
}

// Confirm turns the pending proposal into a confirmed booking.
func (s *Session) Confirm(eventID string) bool {
	if s.Proposed == nil || eventID == "" {
		return false
	}
	s.Confirmed = &Confirmed{Appointment: *s.Proposed, EventID: eventID}
	s.Proposed = nil
	s.CandidateSlots = nil
	s.Declined = nil
	s.Stage = StageConfirmed
	s.RemoveIntent(IntentBooking)
	s.RemoveIntent(IntentReschedule)
	return true
}

// ResetBooking clears booking progress but keeps identity, history and confirmed bookings.
func (s *Session) ResetBooking() {
	s.Treatment = ""
	s.Practitioner = ""
	s.AnyPractitioner = false
	s.DurationMinutes = 0
	s.ToothCount = 0
	s.ToothCountAsked = false
	s.PreferenceAsked = false
	s.Preference = nil
	s.Proposed = nil
	s.CandidateSlots = nil
	s.Declined = nil
	s.ExistingBooking = nil
	s.Rescheduling = false
	s.Intents = nil
	s.Stage = StageIdle
}

func (s *Session) HasIntent(i Intent) bool {
	return slices.Contains(s.Intents, i)
}

// AddIntent appends i unless already active.
func (s *Session) AddIntent(i Intent) {
	if !s.HasIntent(i) {
		s.Intents = append(s.Intents, i)
	}
}

func (s *Session) RemoveIntent(i Intent) {
	s.Intents = slices.DeleteFunc(s.Intents, func(x Intent) bool { return x == i })
}

// Recent returns up to n of the latest messages.
func (s *Session) Recent(n int) []Message {
	if len(s.History) <= n {
		return slices.Clone(s.History)
	}
	return slices.Clone(s.History[len(s.History)-n:])
}

func (s *Session) appendMessage(role, text string, at time.Time) {
	s.History = append(s.History, Message{Role: role, Text: text, At: at})
	if len(s.History) > maxHistory {
		s.History = slices.Clone(s.History[len(s.History)-maxHistory:])
	}
}

// Clone returns a deep copy.
func (s *Session) Clone() *Session {
	if s == nil {
		return nil
	}
	c := *s
	c.Intents = slices.Clone(s.Intents)
	c.CandidateSlots = slices.Clone(s.CandidateSlots)
	c.Declined = slices.Clone(s.Declined)
	c.History = slices.Clone(s.History)
	if s.Proposed != nil {
		p := *s.Proposed
		c.Proposed = &p
	}
	if s.Preference != nil {
		p := *s.Preference
		c.Preference = &p
	}
	if s.Confirmed != nil {
		cf := *s.Confirmed
		c.Confirmed = &cf
	}
	if s.ExistingBooking != nil {
		b := *s.ExistingBooking
		c.ExistingBooking = &b
	}
	return &c
}
