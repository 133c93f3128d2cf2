package app

import (
	"context"
	"time"

	"go.uber.org/zap"
	"golang.org/x/oauth2"

	"dentalbot/internal/availability"
	"dentalbot/internal/session"
)

// Conversations is the booking assistant as seen by the HTTP layer.
type Conversations interface {
	HandleTurn(ctx context.Context, conversationID, phone, text string) string
	FreeSlots(ctx context.Context, practitionerID string, days int) ([]availability.Slot, error)
}

// SessionStore is the operator view of conversation state.
type SessionStore interface {
	session.Inspector
	End(ctx context.Context, id string) error
}

type App struct {
	Bot      Conversations
	Sessions SessionStore
	Limiter  *RateLimiter
	Logger   *zap.Logger
	// OAuth is nil when Google credentials are not configured.
	OAuth *oauth2.Config

	states oauthStates
}

func (a *App) logger() *zap.Logger {
	if a.Logger == nil {
		return zap.NewNop()
	}
	return a.Logger
}

type MessageRequest struct {
	ConversationID string `json:"conversation_id" binding:"required"`
	Phone          string `json:"phone" binding:"required"`
	Text           string `json:"text" binding:"required"`
}

type MessageResponse struct {
	ConversationID string `json:"conversation_id"`
	Reply          string `json:"reply"`
}

type SlotsResponse struct {
	Practitioner string              `json:"practitioner,omitempty"`
	Days         int                 `json:"days"`
	Slots        []availability.Slot `json:"slots"`
	Count        int                 `json:"count"`
}

// SessionView is what operators see of a session. History is omitted.
type SessionView struct {
	ID              string                    `json:"id"`
	Phone           string                    `json:"phone"`
	PatientName     string                    `json:"patient_name,omitempty"`
	Stage           session.Stage             `json:"stage"`
	Intents         []session.Intent          `json:"intents,omitempty"`
	Treatment       string                    `json:"treatment,omitempty"`
	Practitioner    string                    `json:"practitioner,omitempty"`
	DurationMinutes int                       `json:"duration_minutes,omitempty"`
	Proposed        *availability.Appointment `json:"proposed,omitempty"`
	Confirmed       *session.Confirmed        `json:"confirmed,omitempty"`
	Messages        int                       `json:"messages"`
	CreatedAt       time.Time                 `json:"created_at"`
	LastActivity    time.Time                 `json:"last_activity"`
}

func newSessionView(s *session.Session) SessionView {
	return SessionView{
		ID:              s.ID,
		Phone:           s.Phone,
		PatientName:     s.PatientName,
		Stage:           s.Stage,
		Intents:         s.Intents,
		Treatment:       s.Treatment,
		Practitioner:    s.Practitioner,
		DurationMinutes: s.DurationMinutes,
		Proposed:        s.Proposed,
		Confirmed:       s.Confirmed,
		Messages:        len(s.History),
		CreatedAt:       s.CreatedAt,
		LastActivity:    s.LastActivity,
	}
}
