package calendar

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	gcal "google.golang.org/api/calendar/v3"
	"google.golang.org/api/option"

	"dentalbot/internal/clinic"
)

// fakeGoogle keeps deleted events as cancelled, like the real API, so their IDs
// stay reserved.
type fakeGoogle struct {
	mu       sync.Mutex
	events   map[string][]*gcal.Event
	inserted []*gcal.Event
	updated  []*gcal.Event
}

func (f *fakeGoogle) find(calID, id string) (int, *gcal.Event) {
	for i, ev := range f.events[calID] {
		if ev.Id == id {
			return i, ev
		}
	}
	return -1, nil
}

func (f *fakeGoogle) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	parts := strings.Split(strings.Trim(r.URL.Path, "/"), "/")
	// calendars/{id}/events[/{eventId}]
	if len(parts) < 3 || parts[0] != "calendars" || parts[2] != "events" {
		http.NotFound(w, r)
		return
	}
	calID := parts[1]
	w.Header().Set("Content-Type", "application/json")

	switch {
	case r.Method == http.MethodGet && len(parts) == 3:
		_ = json.NewEncoder(w).Encode(&gcal.Events{Items: f.events[calID]})
	case r.Method == http.MethodGet:
		if _, ev := f.find(calID, parts[3]); ev != nil {
			_ = json.NewEncoder(w).Encode(ev)
			return
		}
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":{"code":404,"message":"Not Found"}}`))
	case r.Method == http.MethodPost:
		var ev gcal.Event
		_ = json.NewDecoder(r.Body).Decode(&ev)
		if _, existing := f.find(calID, ev.Id); existing != nil {
			w.WriteHeader(http.StatusConflict)
			_, _ = w.Write([]byte(`{"error":{"code":409,"message":"The requested identifier already exists."}}`))
			return
		}
		f.events[calID] = append(f.events[calID], &ev)
		f.inserted = append(f.inserted, &ev)
		_ = json.NewEncoder(w).Encode(&ev)
	case r.Method == http.MethodPut && len(parts) == 4:
		i, _ := f.find(calID, parts[3])
		if i < 0 {
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"error":{"code":404,"message":"Not Found"}}`))
			return
		}
		var ev gcal.Event
		_ = json.NewDecoder(r.Body).Decode(&ev)
		ev.Id = parts[3]
		f.events[calID][i] = &ev
		f.updated = append(f.updated, &ev)
		_ = json.NewEncoder(w).Encode(&ev)
	case r.Method == http.MethodDelete && len(parts) == 4:
		_, ev := f.find(calID, parts[3])
		switch {
		case ev == nil:
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"error":{"code":404,"message":"Not Found"}}`))
		case ev.Status == "cancelled":
			w.WriteHeader(http.StatusGone)
			_, _ = w.Write([]byte(`{"error":{"code":410,"message":"Resource has been deleted"}}`))
		default:
			ev.Status = "cancelled"
			w.WriteHeader(http.StatusNoContent)
		}
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func newTestGoogle(t *testing.T, fake *fakeGoogle) *Google {
	t.Helper()
	ts := httptest.NewServer(fake)
	t.Cleanup(ts.Close)

	srv, err := gcal.NewService(context.Background(),
		option.WithEndpoint(ts.URL+"/"),
		option.WithHTTPClient(ts.Client()),
	)
	require.NoError(t, err)
	g := newGoogle(srv, []clinic.Practitioner{
		{ID: "dr-smith", Name: "Dr. Smith", CalendarID: "cal-smith"},
		{ID: "dr-patel", Name: "Dr. Patel", CalendarID: "cal-patel"},
	}, time.UTC, nil)
	g.now = func() time.Time { return time.Date(2026, time.October, 19, 8, 0, 0, 0, time.UTC) }
	return g
}

func TestGoogleListBusy(t *testing.T) {
	fake := &fakeGoogle{events: map[string][]*gcal.Event{
		"cal-smith": {
			{Id: "a", Start: &gcal.EventDateTime{DateTime: "2026-10-19T10:00:00Z"}, End: &gcal.EventDateTime{DateTime: "2026-10-19T11:00:00Z"}},
			{Id: "free", Transparency: "transparent", Start: &gcal.EventDateTime{DateTime: "2026-10-19T12:00:00Z"}, End: &gcal.EventDateTime{DateTime: "2026-10-19T13:00:00Z"}},
			{Id: "gone", Status: "cancelled", Start: &gcal.EventDateTime{DateTime: "2026-10-19T14:00:00Z"}, End: &gcal.EventDateTime{DateTime: "2026-10-19T15:00:00Z"}},
			{Id: "allday", Start: &gcal.EventDateTime{Date: "2026-10-20"}, End: &gcal.EventDateTime{Date: "2026-10-21"}},
		},
	}}
	g := newTestGoogle(t, fake)

	busy, err := g.ListBusy(context.Background(), "dr-smith",
		time.Date(2026, time.October, 19, 0, 0, 0, 0, time.UTC), time.Date(2026, time.October, 22, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	require.Len(t, busy, 2)
	assert.Equal(t, "a", busy[0].EventID)
	assert.Equal(t, "allday", busy[1].EventID)
	assert.Equal(t, 24*time.Hour, busy[1].End.Sub(busy[1].Start))

	_, err = g.ListBusy(context.Background(), "dr-unknown", time.Now(), time.Now())
	assert.Error(t, err)
}

func TestGoogleCreateEventIsIdempotent(t *testing.T) {
	fake := &fakeGoogle{events: map[string][]*gcal.Event{}}
	g := newTestGoogle(t, fake)
	ctx := context.Background()

	start := time.Date(2026, time.October, 20, 9, 0, 0, 0, time.UTC)
	b := Booking{PatientName: "Ana", PatientPhone: "+1 (234) 567-890", Treatment: "Cleaning", Start: start, End: start.Add(30 * time.Minute), EventID: EventID("c1", "dr-smith", start)}

	id, err := g.CreateEvent(ctx, "dr-smith", b)
	require.NoError(t, err)
	assert.Equal(t, b.EventID, id)

	id, err = g.CreateEvent(ctx, "dr-smith", b)
	require.NoError(t, err)
	assert.Equal(t, b.EventID, id)

	require.Len(t, fake.inserted, 1)
	assert.Equal(t, "1234567890", fake.inserted[0].ExtendedProperties.Private[propPhone])
	assert.Contains(t, fake.inserted[0].Description, "Dr. Smith")
}

func TestGoogleCreateEventRestoresDeletedID(t *testing.T) {
	fake := &fakeGoogle{events: map[string][]*gcal.Event{}}
	g := newTestGoogle(t, fake)
	ctx := context.Background()

	start := time.Date(2026, time.October, 20, 9, 0, 0, 0, time.UTC)
	b := Booking{PatientName: "Ana", PatientPhone: "+1234567890", Treatment: "Cleaning", Start: start, End: start.Add(30 * time.Minute), EventID: EventID("c1", "dr-smith", start)}

	_, err := g.CreateEvent(ctx, "dr-smith", b)
	require.NoError(t, err)
	require.NoError(t, g.DeleteEvent(ctx, "dr-smith", b.EventID))

	b.Treatment = "Whitening"
	id, err := g.CreateEvent(ctx, "dr-smith", b)
	require.NoError(t, err)
	assert.Equal(t, b.EventID, id)
	require.Len(t, fake.updated, 1)
	assert.Equal(t, "confirmed", fake.updated[0].Status)
	assert.Equal(t, "Whitening", fake.updated[0].ExtendedProperties.Private[propTreatment])

	busy, err := g.ListBusy(ctx, "dr-smith", start.Add(-time.Hour), start.Add(time.Hour))
	require.NoError(t, err)
	require.Len(t, busy, 1)
	assert.Equal(t, b.EventID, busy[0].EventID)
}

func TestGoogleFindBookingByContactAndDelete(t *testing.T) {
	fake := &fakeGoogle{events: map[string][]*gcal.Event{
		"cal-smith": {
			{Id: "later", Start: &gcal.EventDateTime{DateTime: "2026-10-23T10:00:00Z"}, End: &gcal.EventDateTime{DateTime: "2026-10-23T10:30:00Z"},
				ExtendedProperties: &gcal.EventExtendedProperties{Private: map[string]string{propPhone: "1234567890", propTreatment: "Cleaning"}}},
		},
		"cal-patel": {
			{Id: "sooner", Start: &gcal.EventDateTime{DateTime: "2026-10-21T10:00:00Z"}, End: &gcal.EventDateTime{DateTime: "2026-10-21T10:30:00Z"},
				Description: "Patient: Ana\nPhone: +1234567890\nTreatment: Filling"},
			{Id: "someone-else", Start: &gcal.EventDateTime{DateTime: "2026-10-20T10:00:00Z"}, End: &gcal.EventDateTime{DateTime: "2026-10-20T10:30:00Z"},
				Description: "Phone: +15550000000"},
		},
	}}
	g := newTestGoogle(t, fake)
	ctx := context.Background()

	found, err := g.FindBookingByContact(ctx, "1234567890")
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, "sooner", found.EventID)
	assert.Equal(t, "dr-patel", found.PractitionerID)
	assert.Equal(t, "Ana", found.PatientName)
	assert.Equal(t, "Filling", found.Treatment)

	require.NoError(t, g.DeleteEvent(ctx, "dr-patel", "sooner"))
	assert.ErrorIs(t, g.DeleteEvent(ctx, "dr-patel", "sooner"), ErrNotFound)
}
