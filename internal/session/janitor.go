package session

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Janitor periodically sweeps a store. It is started and stopped by the
// composition root.
type Janitor struct {
	sweeper  Sweeper
	interval time.Duration
	logger   *zap.Logger
	onSweep  func(evicted int)

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

func NewJanitor(sweeper Sweeper, interval time.Duration, logger *zap.Logger) *Janitor {
	if interval <= 0 {
		interval = time.Minute
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Janitor{sweeper: sweeper, interval: interval, logger: logger}
}

// OnSweep registers a callback receiving the eviction count of every sweep.
func (j *Janitor) OnSweep(fn func(evicted int)) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.onSweep = fn
}

// Start launches the sweep loop. Calling Start on a running janitor is a no-op.
func (j *Janitor) Start(ctx context.Context) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.cancel != nil {
		return
	}
	ctx, cancel := context.WithCancel(ctx)
	j.cancel = cancel
	j.done = make(chan struct{})

	go func(done chan struct{}) {
		defer close(done)
		ticker := time.NewTicker(j.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				j.sweep(ctx)
			}
		}
	}(j.done)
}

// Stop ends the loop and waits for an in-flight sweep to finish.
func (j *Janitor) Stop() {
	j.mu.Lock()
	cancel, done := j.cancel, j.done
	j.cancel, j.done = nil, nil
	j.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}

func (j *Janitor) sweep(ctx context.Context) {
	n, err := j.sweeper.Sweep(ctx)
	if err != nil {
		j.logger.Warn("session sweep failed", zap.Error(err))
		return
	}
	if n > 0 {
		j.logger.Debug("expired sessions evicted", zap.Int("count", n))
	}
	j.mu.Lock()
	hook := j.onSweep
	j.mu.Unlock()
	if hook != nil {
		hook(n)
	}
}
