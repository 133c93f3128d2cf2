package session

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestJanitorEvictsExpired(t *testing.T) {
	store := NewMemoryStore(20*time.Millisecond, nil)
	ctx := context.Background()
	_, _ = store.Get(ctx, "c1")

	var sweeps atomic.Int32
	j := NewJanitor(store, 5*time.Millisecond, nil)
	j.OnSweep(func(int) { sweeps.Add(1) })
	j.Start(ctx)
	defer j.Stop()

	assert.Eventually(t, func() bool { return store.Len() == 0 }, time.Second, 5*time.Millisecond)
	assert.Positive(t, sweeps.Load())
}

func TestJanitorStopIsIdempotent(t *testing.T) {
	j := NewJanitor(NewMemoryStore(time.Minute, nil), time.Millisecond, nil)
	j.Stop()
	j.Start(context.Background())
	j.Start(context.Background())
	j.Stop()
	j.Stop()
}
