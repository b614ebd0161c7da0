package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// DefaultCleanupInterval is how often expired rate tables are dropped
const DefaultCleanupInterval = 10 * time.Minute

// ExpiringCache drops entries past their freshness window
type ExpiringCache interface {
	CleanExpired() int
}

// RateCacheWorker periodically evicts stale rate tables so sources that are
// no longer queried do not stay in memory
type RateCacheWorker struct {
	cache    ExpiringCache
	interval time.Duration
	logger   *zap.Logger

	mu      sync.Mutex
	done    chan struct{}
	cancel  context.CancelFunc
	evicted int
}

// NewRateCacheWorker creates a cleanup worker for cache
func NewRateCacheWorker(cache ExpiringCache, interval time.Duration, logger *zap.Logger) *RateCacheWorker {
	if interval <= 0 {
		interval = DefaultCleanupInterval
	}
	return &RateCacheWorker{cache: cache, interval: interval, logger: logger}
}

// Name returns the worker name
func (w *RateCacheWorker) Name() string {
	return "rate-cache-cleanup"
}

// Start launches the cleanup loop
func (w *RateCacheWorker) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.done != nil {
		return fmt.Errorf("worker already running")
	}

	ctx, w.cancel = context.WithCancel(ctx)
	w.done = make(chan struct{})
	go w.run(ctx, w.done)
	return nil
}

// Stop ends the loop and waits for it to exit
func (w *RateCacheWorker) Stop() error {
	w.mu.Lock()
	done, cancel := w.done, w.cancel
	w.done, w.cancel = nil, nil
	w.mu.Unlock()

	if done == nil {
		return nil
	}
	cancel()
	<-done
	return nil
}

// Evicted returns how many rate tables the worker has dropped
func (w *RateCacheWorker) Evicted() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.evicted
}

func (w *RateCacheWorker) run(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n := w.cache.CleanExpired()
			if n == 0 {
				continue
			}
			w.mu.Lock()
			w.evicted += n
			w.mu.Unlock()
			w.logger.Info("Expired rate tables evicted", zap.Int("count", n))
		}
	}
}
