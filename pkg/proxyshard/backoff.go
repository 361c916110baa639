package proxyshard

import (
	"math"
	"time"
)

// Backoff implements the shard's multi-stage exponential retry delay:
// period = min(maxPeriod, basePeriod * baseInterval^attempt) seconds,
// reset to attempt zero on any successful Connected transition.
type Backoff struct {
	baseInterval float64
	basePeriod   float64
	maxPeriod    float64
	attempt      int
}

// NewBackoff creates the backoff schedule the specification mandates:
// base interval 2, base period 5, max 300 seconds.
func NewBackoff() *Backoff {
	return &Backoff{baseInterval: 2, basePeriod: 5, maxPeriod: 300}
}

// Next returns the delay for the current attempt and advances to the next.
func (b *Backoff) Next() time.Duration {
	seconds := b.basePeriod * math.Pow(b.baseInterval, float64(b.attempt))
	if seconds > b.maxPeriod {
		seconds = b.maxPeriod
	}
	b.attempt++
	return time.Duration(seconds * float64(time.Second))
}

// Reset clears the attempt counter.
func (b *Backoff) Reset() {
	b.attempt = 0
}
