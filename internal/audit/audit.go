// Package audit records calendar mutations and the failures staff must follow up.
package audit

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Action names the audited event.
type Action string

const (
	ActionBooked       Action = "booked"
	ActionCancelled    Action = "cancelled"
	ActionRescheduled  Action = "rescheduled"
	ActionCreateFailed Action = "create_failed"
	ActionDeleteFailed Action = "delete_failed"
)

type Entry struct {
	ID             string    `json:"id"`
	ConversationID string    `json:"conversation_id"`
	Phone          string    `json:"phone"`
	Action         Action    `json:"action"`
	Detail         string    `json:"detail"`
	NeedsFollowUp  bool      `json:"needs_follow_up"`
	CreatedAt      time.Time `json:"created_at"`
}

// NewEntry stamps an entry with a fresh ID and the current time.
func NewEntry(conversationID, phone string, action Action, detail string, followUp bool) Entry {
	return Entry{
		ID:             uuid.NewString(),
		ConversationID: conversationID,
		Phone:          phone,
		Action:         action,
		Detail:         detail,
		NeedsFollowUp:  followUp,
		CreatedAt:      time.Now().UTC(),
	}
}

type Auditor interface {
	Record(ctx context.Context, e Entry) error
}

// Log writes entries to the process logger. Follow-ups are logged at Warn.
type Log struct {
	Logger *zap.Logger
}

func (l Log) Record(_ context.Context, e Entry) error {
	if l.Logger == nil {
		return nil
	}
	fields := []zap.Field{
		zap.String("audit_id", e.ID),
		zap.String("conversation_id", e.ConversationID),
		zap.String("action", string(e.Action)),
		zap.String("detail", e.Detail),
	}
	if e.NeedsFollowUp {
		l.Logger.Warn("audit: follow-up required", fields...)
		return nil
	}
	l.Logger.Info("audit", fields...)
	return nil
}

// Multi fans an entry out to every auditor and joins their errors.
type Multi []Auditor

func (m Multi) Record(ctx context.Context, e Entry) error {
	var errs []error
	for _, a := range m {
		if a == nil {
			continue
		}
		if err := a.Record(ctx, e); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
