package pms

import (
	"context"
	"sync"
	"time"
)

// Limiter bounds the outbound request rate to one external API. It records
// the timestamp of every grant still inside the trailing minute and admits a
// call only while fewer than capacity of them remain, so no rolling
// 60-second window ever holds more than capacity calls. Bursts up to
// capacity pass untouched; past that, callers wait for the oldest in-window
// grant to age out.
//
// A Limiter belongs to exactly one adapter instance. It must never be shared
// across connections; each connection's adapter gets its own grant log.
type Limiter struct {
	mu       sync.Mutex
	capacity int
	window   time.Duration
	grants   []time.Time

	// now and sleep are swappable for tests.
	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

// NewLimiter creates a limiter admitting requestsPerMinute calls per rolling
// minute. Values below 1 fall back to 60.
func NewLimiter(requestsPerMinute int) *Limiter {
	if requestsPerMinute < 1 {
		requestsPerMinute = 60
	}
	return &Limiter{
		capacity: requestsPerMinute,
		window:   time.Minute,
		grants:   make([]time.Time, 0, requestsPerMinute),
		now:      time.Now,
		sleep:    sleepContext,
	}
}

// Wait blocks until a request slot is available, then consumes it. Callers
// are unblocked in FIFO order; no further fairness is guaranteed. Wait
// returns early with the context's error if ctx is cancelled while waiting.
func (l *Limiter) Wait(ctx context.Context) error {
	for {
		l.mu.Lock()
		now := l.now()
		l.prune(now)
		if len(l.grants) < l.capacity {
			l.grants = append(l.grants, now)
			l.mu.Unlock()
			return nil
		}
		// The slot frees when the oldest in-window grant ages out. Re-check
		// after sleeping; a concurrent caller may have taken it.
		wait := l.window - now.Sub(l.grants[0])
		l.mu.Unlock()

		if err := l.sleep(ctx, wait); err != nil {
			return err
		}
	}
}

// prune drops grants that have left the trailing window. Caller must hold
// l.mu.
func (l *Limiter) prune(now time.Time) {
	i := 0
	for i < len(l.grants) && now.Sub(l.grants[i]) >= l.window {
		i++
	}
	if i > 0 {
		l.grants = append(l.grants[:0], l.grants[i:]...)
	}
}

// sleepContext sleeps for d or until ctx is done, whichever comes first.
func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
