package audit

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/oauth2"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"
)

const defaultSheetRange = "Audit!A:G"

// Sheets appends one row per entry to a spreadsheet staff already watch.
type Sheets struct {
	srv     *sheets.Service
	sheetID string
	rng     string
}

func NewSheets(ctx context.Context, ts oauth2.TokenSource, sheetID string) (*Sheets, error) {
	if strings.TrimSpace(sheetID) == "" {
		return nil, errors.New("audit: sheet id is required")
	}
	srv, err := sheets.NewService(ctx, option.WithTokenSource(ts))
	if err != nil {
		return nil, fmt.Errorf("audit: failed to create sheets service: %w", err)
	}
	return &Sheets{srv: srv, sheetID: sheetID, rng: defaultSheetRange}, nil
}

func (s *Sheets) Record(ctx context.Context, e Entry) error {
	followUp := "no"
	if e.NeedsFollowUp {
		followUp = "YES"
	}
	row := &sheets.ValueRange{Values: [][]interface{}{{
		e.CreatedAt.Format(time.RFC3339), e.ID, e.ConversationID, e.Phone, string(e.Action), e.Detail, followUp,
	}}}
	_, err := s.srv.Spreadsheets.Values.Append(s.sheetID, s.rng, row).
		ValueInputOption("RAW").
		InsertDataOption("INSERT_ROWS").
		Context(ctx).
		Do()
	if err != nil {
		return fmt.Errorf("audit: failed to append row: %w", err)
	}
	return nil
}
