package audit

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	pgxmock "github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"
)

func TestPostgresRecord(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	e := NewEntry("conv-1", "+15550102030", ActionDeleteFailed, "evt123", true)
	mock.ExpectExec("INSERT INTO audit_log").
		WithArgs(e.ID, "conv-1", "+15550102030", "delete_failed", "evt123", true, e.CreatedAt).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	p := &Postgres{DB: mock}
	require.NoError(t, p.Record(context.Background(), e))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresFollowUps(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	created := time.Date(2026, time.October, 19, 9, 0, 0, 0, time.UTC)
	rows := pgxmock.NewRows([]string{"id", "conversation_id", "phone", "action", "detail", "needs_follow_up", "created_at"}).
		AddRow("a1", "conv-1", "+1555", "create_failed", "slot", true, created)
	mock.ExpectQuery("SELECT id,conversation_id").WithArgs(10).WillReturnRows(rows)

	p := &Postgres{DB: mock}
	got, err := p.FollowUps(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, ActionCreateFailed, got[0].Action)
	assert.True(t, got[0].NeedsFollowUp)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresEnsureSchema(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS audit_log").WillReturnResult(pgxmock.NewResult("CREATE TABLE", 0))
	require.NoError(t, (&Postgres{DB: mock}).EnsureSchema(context.Background()))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestLogRecord(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	l := Log{Logger: zap.New(core)}

	require.NoError(t, l.Record(context.Background(), NewEntry("c", "p", ActionBooked, "ok", false)))
	require.NoError(t, l.Record(context.Background(), NewEntry("c", "p", ActionDeleteFailed, "evt", true)))

	entries := logs.All()
	require.Len(t, entries, 2)
	assert.Equal(t, zap.InfoLevel, entries[0].Level)
	assert.Equal(t, zap.WarnLevel, entries[1].Level)
}

type failingAuditor struct{}

func (failingAuditor) Record(context.Context, Entry) error { return errors.New("down") }

type recordingAuditor struct{ entries []Entry }

func (r *recordingAuditor) Record(_ context.Context, e Entry) error {
	r.entries = append(r.entries, e)
	return nil
}

func TestMultiRecordsEverywhere(t *testing.T) {
	rec := &recordingAuditor{}
	m := Multi{failingAuditor{}, nil, rec}
	err := m.Record(context.Background(), NewEntry("c", "p", ActionBooked, "", false))
	assert.Error(t, err)
	assert.Len(t, rec.entries, 1)
}

func TestSheetsRecord(t *testing.T) {
	var got sheets.ValueRange
	var query string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasPrefix(r.URL.Path, "/v4/spreadsheets/sheet-1/values/") {
			http.NotFound(w, r)
			return
		}
		query = r.URL.RawQuery
		_ = json.NewDecoder(r.Body).Decode(&got)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"spreadsheetId":"sheet-1"}`))
	}))
	defer ts.Close()

	srv, err := sheets.NewService(context.Background(), option.WithEndpoint(ts.URL+"/"), option.WithHTTPClient(ts.Client()))
	require.NoError(t, err)
	s := &Sheets{srv: srv, sheetID: "sheet-1", rng: defaultSheetRange}

	e := NewEntry("conv-1", "+1555", ActionDeleteFailed, "evt", true)
	require.NoError(t, s.Record(context.Background(), e))
	require.Len(t, got.Values, 1)
	assert.Equal(t, "YES", got.Values[0][6])
	assert.Equal(t, "delete_failed", got.Values[0][4])
	assert.Contains(t, query, "valueInputOption=RAW")
}
