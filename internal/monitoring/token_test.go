package monitoring

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type flakyValidator struct {
	mu    sync.Mutex
	calls int
}

// Healthy on the first call, broken afterwards.
func (f *flakyValidator) ValidateToken(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.calls == 1 {
		return nil
	}
	return errors.New("expired")
}

func TestMonitorTokenTracksHealth(t *testing.T) {
	var healthy atomic.Bool
	v := &flakyValidator{}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		MonitorToken(ctx, v, 10*time.Millisecond, &healthy)
		close(done)
	}()

	assert.Eventually(t, func() bool {
		v.mu.Lock()
		defer v.mu.Unlock()
		return v.calls >= 3
	}, time.Second, 5*time.Millisecond)
	assert.False(t, healthy.Load())

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("monitor did not stop")
	}
}

func TestMonitorTokenSingleCheck(t *testing.T) {
	var healthy atomic.Bool
	MonitorToken(context.Background(), &flakyValidator{}, 0, &healthy)
	assert.True(t, healthy.Load())
}
