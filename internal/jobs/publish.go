package jobs

import (
	"context"
	"time"

	"inspiro/internal/logging"
	"inspiro/internal/metrics"
	"inspiro/internal/model"
)

// Checker is the part of the schedule service the loop drives.
type Checker interface {
	CheckAndPost(ctx context.Context) ([]model.ScheduledPost, error)
}

// RunPublishOnce publishes every due post once and returns the posts that
// changed.
func RunPublishOnce(ctx context.Context, c Checker) ([]model.ScheduledPost, error) {
	start := time.Now()
	metrics.SchedulerRuns.Inc()
	changed, err := c.CheckAndPost(ctx)
	if err != nil {
		metrics.SchedulerErrors.Inc()
		return changed, err
	}
	if len(changed) > 0 {
		logging.Info("publish_once", map[string]any{"changed": len(changed), "elapsed_ms": time.Since(start).Milliseconds()})
	}
	return changed, nil
}

// RunPublishLoop runs RunPublishOnce on a ticker until ctx is cancelled.
func RunPublishLoop(ctx context.Context, c Checker, interval time.Duration) error {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	t := time.NewTicker(interval)
	defer t.Stop()
	// run immediately
	if _, err := RunPublishOnce(ctx, c); err != nil {
		logging.Error("publish_once_error", map[string]any{"error": err.Error()})
	}
	for {
		select {
		case <-ctx.Done():
			logging.Info("publish_loop_stop", nil)
			return ctx.Err()
		case <-t.C:
			if _, err := RunPublishOnce(ctx, c); err != nil {
				logging.Error("publish_once_error", map[string]any{"error": err.Error()})
			}
		}
	}
}
