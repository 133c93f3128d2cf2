package audit

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

type db interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// Postgres stores entries in the audit_log table.
type Postgres struct {
	DB db
}

const schemaSQL = `CREATE TABLE IF NOT EXISTS audit_log (
	id              UUID PRIMARY KEY,
	conversation_id TEXT NOT NULL,
	phone           TEXT NOT NULL,
	action          TEXT NOT NULL,
	detail          TEXT NOT NULL DEFAULT '',
	needs_follow_up BOOLEAN NOT NULL DEFAULT FALSE,
	created_at      TIMESTAMPTZ NOT NULL
)`

func (p *Postgres) EnsureSchema(ctx context.Context) error {
	if _, err := p.DB.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("audit: failed to create audit_log: %w", err)
	}
	return nil
}

func (p *Postgres) Record(ctx context.Context, e Entry) error {
	q := `INSERT INTO audit_log
          (id, conversation_id, phone, action, detail, needs_follow_up, created_at)
          VALUES ($1,$2,$3,$4,$5,$6,$7)`
	_, err := p.DB.Exec(ctx, q,
		e.ID, e.ConversationID, e.Phone, string(e.Action), e.Detail, e.NeedsFollowUp, e.CreatedAt)
	if err != nil {
		return fmt.Errorf("audit: failed to insert entry: %w", err)
	}
	return nil
}

// FollowUps lists the most recent entries flagged for staff.
func (p *Postgres) FollowUps(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 50
	}
	q := `SELECT id,conversation_id,phone,action,detail,needs_follow_up,created_at
	      FROM audit_log WHERE needs_follow_up ORDER BY created_at DESC LIMIT $1`
	rows, err := p.DB.Query(ctx, q, limit)
	if err != nil {
		return nil, fmt.Errorf("audit: failed to query follow-ups: %w", err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var e Entry
		var action string
		if err := rows.Scan(&e.ID, &e.ConversationID, &e.Phone, &action, &e.Detail, &e.NeedsFollowUp, &e.CreatedAt); err != nil {
			return nil, err
		}
		e.Action = Action(action)
		out = append(out, e)
	}
	return out, rows.Err()
}
