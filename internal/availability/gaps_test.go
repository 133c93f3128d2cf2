package availability

import (
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testPolicy = Policy{StartHour: 9, EndHour: 18, MinDurationMinutes: 15, Location: time.UTC}

// 2026-10-19 is a Monday.
func at(day, hour, minute int) time.Time {
	return time.Date(2026, time.October, day, hour, minute, 0, 0, time.UTC)
}

func TestFreeIntervalsSingleBusyBlock(t *testing.T) {
	busy := []BusyInterval{{Start: at(19, 10, 0), End: at(19, 11, 0)}}
	now := at(18, 12, 0)

	got := FreeIntervals("dr-lee", busy, at(19, 0, 0), at(19, 23, 59), testPolicy, now)

	require.Len(t, got, 2)
	assert.Equal(t, at(19, 9, 0), got[0].Start)
	assert.Equal(t, at(19, 10, 0), got[0].End)
	assert.Equal(t, 60, got[0].DurationMinutes)
	assert.Equal(t, at(19, 11, 0), got[1].Start)
	assert.Equal(t, at(19, 18, 0), got[1].End)
	assert.Equal(t, 420, got[1].DurationMinutes)
	assert.Equal(t, time.Monday, got[1].Weekday)
	assert.Equal(t, "dr-lee", got[1].Practitioner)
}

func TestFreeIntervalsNoBusyIsWholeDay(t *testing.T) {
	got := FreeIntervals("p", nil, at(19, 0, 0), at(19, 23, 0), testPolicy, at(1, 0, 0))
	require.Len(t, got, 1)
	assert.Equal(t, 540, got[0].DurationMinutes)
}

func TestFreeIntervalsSkipsWeekend(t *testing.T) {
	// Friday 23rd through Monday 26th
	got := FreeIntervals("p", nil, at(23, 0, 0), at(26, 23, 0), testPolicy, at(1, 0, 0))
	require.Len(t, got, 2)
	assert.Equal(t, time.Friday, got[0].Weekday)
	assert.Equal(t, time.Monday, got[1].Weekday)
}

func TestFreeIntervalsClipsElapsedTimeToday(t *testing.T) {
	now := at(19, 13, 7)
	got := FreeIntervals("p", nil, at(19, 0, 0), at(19, 23, 0), testPolicy, now)
	require.Len(t, got, 1)
	assert.Equal(t, at(19, 13, 7), got[0].Start)
	assert.Equal(t, 293, got[0].DurationMinutes)
}

func TestFreeIntervalsTodayStartsAtNowWithLongMinimum(t *testing.T) {
	p := testPolicy
	p.MinDurationMinutes = 60
	got := FreeIntervals("p", nil, at(19, 0, 0), at(19, 23, 0), p, at(19, 9, 7))
	require.Len(t, got, 1)
	assert.Equal(t, at(19, 9, 7), got[0].Start)
}

func TestFreeIntervalsOverlappingBusy(t *testing.T) {
	busy := []BusyInterval{
		{Start: at(19, 10, 0), End: at(19, 12, 0)},
		{Start: at(19, 11, 0), End: at(19, 11, 30)},
		{Start: at(19, 12, 0), End: at(19, 12, 10)},
		{Start: at(19, 17, 0), End: at(19, 18, 0)},
	}
	got := FreeIntervals("p", busy, at(19, 0, 0), at(19, 23, 0), testPolicy, at(1, 0, 0))
	require.Len(t, got, 2)
	assert.Equal(t, at(19, 9, 0), got[0].Start)
	assert.Equal(t, at(19, 12, 10), got[1].Start)
	assert.Equal(t, at(19, 17, 0), got[1].End)
}

func TestFreeIntervalsBusyUntilEndHourLeavesNoTrailingSlot(t *testing.T) {
	busy := []BusyInterval{{Start: at(19, 9, 0), End: at(19, 18, 0)}}
	got := FreeIntervals("p", busy, at(19, 0, 0), at(19, 23, 0), testPolicy, at(1, 0, 0))
	assert.Empty(t, got)
}

func TestFreeIntervalsDropsShortGaps(t *testing.T) {
	busy := []BusyInterval{
		{Start: at(19, 9, 10), End: at(19, 17, 50)},
	}
	got := FreeIntervals("p", busy, at(19, 0, 0), at(19, 23, 0), testPolicy, at(1, 0, 0))
	assert.Empty(t, got)
}

func TestFreeIntervalsInClinicTimezone(t *testing.T) {
	loc, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)
	p := testPolicy
	p.Location = loc

	from := time.Date(2026, time.October, 19, 0, 0, 0, 0, loc)
	got := FreeIntervals("p", nil, from, from.Add(20*time.Hour), p, from.Add(-time.Hour))
	require.Len(t, got, 1)
	assert.Equal(t, 9, got[0].Start.Hour())
	assert.Equal(t, 18, got[0].End.Hour())
}

func TestFreeIntervalsUTCBusyOnNewYorkPolicy(t *testing.T) {
	loc, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)
	p := testPolicy
	p.Location = loc

	// 09:00-10:00 New York, reported in UTC
	busy := []BusyInterval{{Start: at(20, 13, 0), End: at(20, 14, 0)}}
	from := time.Date(2026, time.October, 20, 0, 0, 0, 0, loc)
	got := FreeIntervals("p", busy, from, from.Add(23*time.Hour), p, from.Add(-time.Hour))

	require.Len(t, got, 1)
	assert.Equal(t, loc, got[0].Start.Location())
	assert.Equal(t, 10, got[0].Start.Hour())
	assert.Equal(t, 18, got[0].End.Hour())
	assert.True(t, got[0].Start.Equal(at(20, 14, 0)))
	assert.Equal(t, time.Tuesday, got[0].Weekday)
}

func TestFreeIntervalsProperties(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	now := at(19, 0, 0)
	for i := 0; i < 200; i++ {
		var busy []BusyInterval
		for j := 0; j < rng.Intn(12); j++ {
			start := at(19+rng.Intn(7), rng.Intn(24), rng.Intn(4)*15)
			busy = append(busy, BusyInterval{Start: start, End: start.Add(time.Duration(15+rng.Intn(180)) * time.Minute)})
		}
		got := FreeIntervals("p", busy, at(19, 0, 0), at(25, 23, 59), testPolicy, now)

		for k, s := range got {
			assert.Equal(t, int(s.End.Sub(s.Start)/time.Minute), s.DurationMinutes)
			assert.GreaterOrEqual(t, s.DurationMinutes, testPolicy.MinDurationMinutes)
			assert.NotEqual(t, time.Saturday, s.Start.Weekday())
			assert.NotEqual(t, time.Sunday, s.Start.Weekday())
			assert.GreaterOrEqual(t, s.Start.Hour(), testPolicy.StartHour)
			endOfDay := time.Date(s.Start.Year(), s.Start.Month(), s.Start.Day(), testPolicy.EndHour, 0, 0, 0, time.UTC)
			assert.False(t, s.End.After(endOfDay))
			assert.False(t, s.Start.Before(now))
			if k > 0 {
				assert.False(t, s.Start.Before(got[k-1].Start))
			}
			for _, b := range busy {
				overlap := s.Start.Before(b.End) && b.Start.Before(s.End)
				assert.False(t, overlap, "slot %v-%v overlaps busy %v-%v", s.Start, s.End, b.Start, b.End)
			}
		}
	}
}
