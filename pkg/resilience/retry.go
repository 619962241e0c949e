package resilience

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"time"
)

// RetryConfig shapes the backoff between attempts. Zero fields default to
// three attempts starting at 100ms, doubling up to 10s, with ±10% jitter.
type RetryConfig struct {
	MaxAttempts    int
	InitialDelay   time.Duration
	MaxDelay       time.Duration
	Multiplier     float64
	JitterFraction float64
}

func (c RetryConfig) withDefaults() RetryConfig {
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 3
	}
	if c.InitialDelay <= 0 {
		c.InitialDelay = 100 * time.Millisecond
	}
	if c.MaxDelay <= 0 {
		c.MaxDelay = 10 * time.Second
	}
	if c.Multiplier <= 0 {
		c.Multiplier = 2
	}
	if c.JitterFraction <= 0 {
		c.JitterFraction = 0.1
	}
	return c
}

type permanentError struct{ err error }

func (e permanentError) Error() string { return e.err.Error() }
func (e permanentError) Unwrap() error { return e.err }

// Permanent wraps an error fn wants surfaced immediately, such as a
// malformed event that no broker will accept. Retry returns the inner error.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return permanentError{err: err}
}

// backoff yields successive jittered delays.
type backoff struct {
	cfg  RetryConfig
	base float64
}

func (b *backoff) next() time.Duration {
	if b.base == 0 {
		b.base = float64(b.cfg.InitialDelay)
	} else {
		b.base = min(b.base*b.cfg.Multiplier, float64(b.cfg.MaxDelay))
	}
	spread := b.base * b.cfg.JitterFraction
	d := b.base - spread + 2*spread*rand.Float64()
	return time.Duration(min(d, float64(b.cfg.MaxDelay)))
}

// Retry runs fn up to cfg.MaxAttempts times, sleeping between failures.
// It stops early when fn returns a Permanent error or ctx ends.
func Retry(ctx context.Context, name string, cfg RetryConfig, fn func() error) error {
	cfg = cfg.withDefaults()
	delays := &backoff{cfg: cfg}
	log := slog.Default().With("component", "retry", "operation", name)

	var err error
	for attempt := 1; ; attempt++ {
		if err = fn(); err == nil {
			if attempt > 1 {
				log.Info("recovered", "attempt", attempt)
			}
			return nil
		}
		var perm permanentError
		if errors.As(err, &perm) {
			return perm.err
		}
		if attempt >= cfg.MaxAttempts {
			return fmt.Errorf("%s failed after %d attempts: %w", name, attempt, err)
		}

		wait := delays.next()
		log.Warn("attempt failed", "attempt", attempt, "of", cfg.MaxAttempts, "error", err, "retry_in", wait)
		timer := time.NewTimer(wait)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return fmt.Errorf("%s: retry abandoned: %w (last error: %v)", name, ctx.Err(), err)
		}
	}
}
