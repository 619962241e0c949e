// Package ratelimit keeps one token bucket per API key.
package ratelimit

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

type entry struct {
	limiter  *rate.Limiter
	limit    int
	lastSeen time.Time
}

// Limiter hands out limit tokens per window to each key, refilled
// continuously, with a burst of limit.
type Limiter struct {
	mu      sync.Mutex
	entries map[string]*entry
	window  time.Duration
	now     func() time.Time
	stop    chan struct{}
	once    sync.Once
}

// New starts a limiter whose idle entries are swept every few minutes.
// Call Stop to end the sweeper.
func New(window time.Duration) *Limiter {
	l := &Limiter{
		entries: make(map[string]*entry),
		window:  window,
		now:     time.Now,
		stop:    make(chan struct{}),
	}
	go l.cleanup(5 * time.Minute)
	return l
}

// Allow consumes one token for key. A changed limit replaces the bucket.
func (l *Limiter) Allow(key string, limit int) bool {
	return l.Reserve(key, limit) == 0
}

// Reserve consumes a token for key when one is available and returns zero;
// otherwise it returns how long until the next token without consuming it.
func (l *Limiter) Reserve(key string, limit int) time.Duration {
	if limit <= 0 {
		return l.window
	}
	now := l.now()

	l.mu.Lock()
	e, ok := l.entries[key]
	if !ok || e.limit != limit {
		every := rate.Limit(float64(limit) / l.window.Seconds())
		e = &entry{limiter: rate.NewLimiter(every, limit), limit: limit}
		l.entries[key] = e
	}
	e.lastSeen = now
	l.mu.Unlock()

	r := e.limiter.ReserveN(now, 1)
	delay := r.DelayFrom(now)
	if delay > 0 {
		r.CancelAt(now)
	}
	return delay
}

// Reset forgets key's bucket.
func (l *Limiter) Reset(key string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.entries, key)
}

func (l *Limiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

func (l *Limiter) Stop() {
	l.once.Do(func() { close(l.stop) })
}

func (l *Limiter) cleanup(every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-l.stop:
			return
		case <-ticker.C:
			l.sweep()
		}
	}
}

// sweep drops entries idle for two windows.
func (l *Limiter) sweep() {
	cutoff := l.now().Add(-2 * l.window)
	l.mu.Lock()
	defer l.mu.Unlock()
	for key, e := range l.entries {
		if e.lastSeen.Before(cutoff) {
			delete(l.entries, key)
		}
	}
}
