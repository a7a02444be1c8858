// Package monitoring runs background health checks whose results are read
// by the API.
package monitoring

import (
	"context"
	"sync/atomic"
	"time"

	"inspiro/internal/logging"
)

// TokenValidator checks that the posting token still works.
type TokenValidator interface {
	ValidateToken(ctx context.Context) error
}

// MonitorToken checks the token immediately and then every interval, storing
// the result in healthy. It returns when ctx is cancelled.
func MonitorToken(ctx context.Context, v TokenValidator, interval time.Duration, healthy *atomic.Bool) {
	check := func() {
		cctx, cancel := context.WithTimeout(ctx, 15*time.Second)
		defer cancel()
		err := v.ValidateToken(cctx)
		was := healthy.Swap(err == nil)
		switch {
		case err != nil && was:
			logging.Warn("token_unhealthy", map[string]any{"error": err.Error()})
		case err != nil:
			logging.Debug("token_still_unhealthy", map[string]any{"error": err.Error()})
		case !was:
			logging.Info("token_healthy", nil)
		}
	}
	check()
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			check()
		}
	}
}
