package fbclient

import "golang.org/x/time/rate"

// newLimiter paces Graph calls; non-positive settings fall back to one
// request per second with a burst of five.
func newLimiter(rps float64, burst int) *rate.Limiter {
	if rps <= 0 {
		rps = 1
	}
	if burst <= 0 {
		burst = 5
	}
	return rate.NewLimiter(rate.Limit(rps), burst)
}
