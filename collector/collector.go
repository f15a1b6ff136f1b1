package collector

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"weather-dashboard/dashboard"
)

// Refresher re-runs the most recent dashboard refresh
type Refresher interface {
	Refresh(ctx context.Context) (dashboard.Snapshot, error)
}

// Collector periodically refreshes the dashboard in the background
type Collector struct {
	refresher    Refresher
	interval     time.Duration
	fetchTimeout time.Duration
	logger       *slog.Logger
}

// NewCollector creates a collector that refreshes every interval
func NewCollector(refresher Refresher, interval time.Duration, logger *slog.Logger) *Collector {
	if logger == nil {
		logger = slog.Default()
	}
	return &Collector{
		refresher:    refresher,
		interval:     interval,
		fetchTimeout: 30 * time.Second, // Default timeout
		logger:       logger.With("component", "collector"),
	}
}

// SetFetchTimeout changes the timeout for one refresh
func (c *Collector) SetFetchTimeout(timeout time.Duration) {
	c.fetchTimeout = timeout
}

// Start begins refreshing on the ticker schedule.
// The returned function stops the collector and waits for it to exit.
func (c *Collector) Start(ctx context.Context) func() {
	collectionCtx, cancelCollection := context.WithCancel(ctx)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		c.loop(collectionCtx)
	}()

	return func() {
		cancelCollection()
		wg.Wait()
	}
}

func (c *Collector) loop(ctx context.Context) {
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.refreshOnce(ctx)
		case <-ctx.Done():
			return
		}
	}
}

// refreshOnce performs a single background refresh
func (c *Collector) refreshOnce(ctx context.Context) {
	fetchCtx, cancel := context.WithTimeout(ctx, c.fetchTimeout)
	defer cancel()

	snap, err := c.refresher.Refresh(fetchCtx)
	switch {
	case err == nil:
		c.logger.Debug("background refresh complete", "cycle", snap.CycleID, "status", snap.Status)
	case errors.Is(err, dashboard.ErrBusy), errors.Is(err, dashboard.ErrNothingToRefresh):
		c.logger.Debug("background refresh skipped", "reason", err)
	case errors.Is(err, dashboard.ErrSuperseded):
		// a user-triggered refresh won the race
	default:
		c.logger.Warn("background refresh failed", "error", err)
	}
}
