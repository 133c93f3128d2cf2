package session

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dentalbot/internal/availability"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, time.October, 19, 9, 0, 0, 0, time.UTC)}
}

func TestMemoryStoreCreatesOnFirstGet(t *testing.T) {
	clock := newClock()
	store := NewMemoryStore(time.Minute, clock.Now)
	ctx := context.Background()

	s, err := store.Get(ctx, "+15550001")
	require.NoError(t, err)
	assert.Equal(t, "+15550001", s.ID)
	assert.Equal(t, StageIdle, s.Stage)
	assert.Equal(t, clock.Now(), s.CreatedAt)
	assert.Equal(t, 1, store.Len())
}

func TestMemoryStoreUpdateAndCopies(t *testing.T) {
	clock := newClock()
	store := NewMemoryStore(time.Minute, clock.Now)
	ctx := context.Background()

	_, err := store.Update(ctx, "c1", func(s *Session) {
		s.Treatment = "Cleaning"
		s.AddIntent(IntentBooking)
	})
	require.NoError(t, err)

	got, err := store.Get(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, "Cleaning", got.Treatment)

	// mutating a returned copy must not leak into the store
	got.Intents = append(got.Intents, IntentCancel)
	got.Treatment = "Filling"
	again, err := store.Get(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, "Cleaning", again.Treatment)
	assert.Equal(t, []Intent{IntentBooking}, again.Intents)
}

func TestMemoryStoreExpiryReplacesSession(t *testing.T) {
	clock := newClock()
	store := NewMemoryStore(time.Minute, clock.Now)
	ctx := context.Background()

	_, err := store.Update(ctx, "c1", func(s *Session) { s.Treatment = "Cleaning" })
	require.NoError(t, err)

	clock.Advance(30 * time.Second)
	got, err := store.Get(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, "Cleaning", got.Treatment, "activity within the timeout keeps the session")

	clock.Advance(61 * time.Second)
	got, err = store.Get(ctx, "c1")
	require.NoError(t, err)
	assert.Empty(t, got.Treatment)
	assert.Equal(t, clock.Now(), got.CreatedAt)
	assert.False(t, IsExpired(got, clock.Now(), time.Minute))
}

func TestMemoryStoreAppendMessageCapsHistory(t *testing.T) {
	clock := newClock()
	store := NewMemoryStore(time.Minute, clock.Now)
	ctx := context.Background()

	for i := 0; i < maxHistory+10; i++ {
		require.NoError(t, store.AppendMessage(ctx, "c1", RoleUser, "hello"))
	}
	s, err := store.Get(ctx, "c1")
	require.NoError(t, err)
	assert.Len(t, s.History, maxHistory)
	assert.Len(t, s.Recent(6), 6)
}

func TestMemoryStoreEnd(t *testing.T) {
	store := NewMemoryStore(time.Minute, nil)
	ctx := context.Background()

	_, err := store.Get(ctx, "c1")
	require.NoError(t, err)
	require.NoError(t, store.End(ctx, "c1"))
	assert.ErrorIs(t, store.End(ctx, "c1"), ErrNotFound)

	_, ok := store.Peek("c1")
	assert.False(t, ok)
}

func TestMemoryStoreSweep(t *testing.T) {
	clock := newClock()
	store := NewMemoryStore(time.Minute, clock.Now)
	ctx := context.Background()

	var evicted []string
	store.SetExpireHook(func(s *Session) { evicted = append(evicted, s.ID) })

	_, _ = store.Get(ctx, "old")
	clock.Advance(50 * time.Second)
	_, _ = store.Get(ctx, "fresh")
	clock.Advance(20 * time.Second)

	n, err := store.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, []string{"old"}, evicted)
	assert.Equal(t, 1, store.Len())
}

func TestSessionConfirmRequiresProposal(t *testing.T) {
	s := newSession("c1", time.Now())
	assert.False(t, s.Confirm("evt-1"))
	assert.Equal(t, ConfirmationNone, s.ConfirmationStatus())

	s.Propose(availability.Appointment{Practitioner: "dr-smith", Start: time.Now(), End: time.Now().Add(time.Hour)})
	assert.Equal(t, ConfirmationPending, s.ConfirmationStatus())
	assert.False(t, s.Confirm(""))

	require.True(t, s.Confirm("evt-1"))
	assert.Equal(t, ConfirmationConfirmed, s.ConfirmationStatus())
	assert.Equal(t, StageConfirmed, s.Stage)
	assert.Equal(t, "evt-1", s.Confirmed.EventID)
	assert.Nil(t, s.Proposed)
}

func TestMemoryStoreConcurrentSessions(t *testing.T) {
	store := NewMemoryStore(time.Minute, nil)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id := string(rune('a' + i))
			for j := 0; j < 50; j++ {
				_, _ = store.Update(ctx, id, func(s *Session) { s.ToothCount++ })
				_, _ = store.Sweep(ctx)
			}
		}(i)
	}
	wg.Wait()

	s, ok := store.Peek("a")
	require.True(t, ok)
	assert.Equal(t, 50, s.ToothCount)
}

func TestMemoryStoreLookup(t *testing.T) {
	clock := newClock()
	store := NewMemoryStore(time.Minute, clock.Now)
	ctx := context.Background()

	_, err := store.Lookup(ctx, "c1")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, 0, store.Len())

	_, err = store.Update(ctx, "c1", func(s *Session) { s.PatientName = "Ann" })
	require.NoError(t, err)
	got, err := store.Lookup(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, "Ann", got.PatientName)

	clock.Advance(2 * time.Minute)
	_, err = store.Lookup(ctx, "c1")
	assert.ErrorIs(t, err, ErrNotFound)
}
