// Package cache memoises search results in Redis. Keys embed a corpus
// generation counter: any corpus change bumps the counter, so every entry
// computed against the old corpus becomes unreachable at once and ages out
// through its TTL. Redis sits behind a circuit breaker; when it is down the
// cache degrades to a pass-through.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/adrian-1-cardona/DocPulse/internal/searcher/executor"
	"github.com/adrian-1-cardona/DocPulse/internal/searcher/parser"
	"github.com/adrian-1-cardona/DocPulse/pkg/resilience"
)

const (
	keyPrefix     = "search:r:"
	generationKey = "search:generation"
)

// Backend is the subset of the Redis client the cache uses.
type Backend interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Incr(ctx context.Context, key string) (int64, error)
	GetInt64(ctx context.Context, key string) (int64, error)
	FlushByPattern(ctx context.Context, pattern string) (int64, error)
}

// Observer receives hit/miss notifications, typically Prometheus counters.
type Observer interface {
	Hit()
	Miss()
}

type QueryCache struct {
	backend  Backend
	ttl      time.Duration
	breaker  *resilience.CircuitBreaker
	isMiss   func(error) bool
	observer Observer
	group    singleflight.Group
	logger   *slog.Logger
	hits     atomic.Int64
	misses   atomic.Int64
}

// Option configures a QueryCache.
type Option func(*QueryCache)

// WithBreaker guards backend calls with cb.
func WithBreaker(cb *resilience.CircuitBreaker) Option {
	return func(c *QueryCache) { c.breaker = cb }
}

// WithObserver reports hits and misses to o.
func WithObserver(o Observer) Option {
	return func(c *QueryCache) { c.observer = o }
}

// WithMissCheck tells the cache which backend errors mean "key absent"
// rather than a failure; those do not count against the breaker.
func WithMissCheck(fn func(error) bool) Option {
	return func(c *QueryCache) { c.isMiss = fn }
}

func New(backend Backend, ttl time.Duration, opts ...Option) *QueryCache {
	c := &QueryCache{
		backend: backend,
		ttl:     ttl,
		breaker: resilience.NewCircuitBreaker("search-cache", resilience.CircuitBreakerConfig{}),
		isMiss:  func(error) bool { return false },
		logger:  slog.Default().With("component", "query-cache"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *QueryCache) Get(ctx context.Context, q *parser.Query) (*executor.SearchResult, bool) {
	key, ok := c.buildKey(ctx, q)
	if !ok {
		c.miss()
		return nil, false
	}
	var data string
	absent := false
	err := c.breaker.Execute(func() error {
		var err error
		data, err = c.backend.Get(ctx, key)
		if err != nil && c.isMiss(err) {
			absent = true
			return nil
		}
		return err
	})
	if err != nil || absent {
		if err != nil {
			c.logger.Warn("cache get failed", "key", key, "error", err)
		}
		c.miss()
		return nil, false
	}
	var result executor.SearchResult
	if err := json.Unmarshal([]byte(data), &result); err != nil {
		c.logger.Error("cache unmarshal failed", "key", key, "error", err)
		c.miss()
		return nil, false
	}
	c.hits.Add(1)
	if c.observer != nil {
		c.observer.Hit()
	}
	c.logger.Debug("cache hit", "key", key)
	return &result, true
}

func (c *QueryCache) Set(ctx context.Context, q *parser.Query, result *executor.SearchResult) {
	key, ok := c.buildKey(ctx, q)
	if !ok {
		return
	}
	data, err := json.Marshal(result)
	if err != nil {
		c.logger.Error("cache marshal failed", "key", key, "error", err)
		return
	}
	err = c.breaker.Execute(func() error {
		return c.backend.Set(ctx, key, data, c.ttl)
	})
	if err != nil {
		c.logger.Warn("cache set failed", "key", key, "error", err)
	}
}

// GetOrCompute returns a cached result or computes it once for all
// concurrent callers asking the same query.
func (c *QueryCache) GetOrCompute(
	ctx context.Context,
	q *parser.Query,
	computeFn func() (*executor.SearchResult, error),
) (*executor.SearchResult, bool, error) {
	if result, ok := c.Get(ctx, q); ok {
		return result, true, nil
	}
	val, err, _ := c.group.Do(parser.Canonical(q), func() (interface{}, error) {
		result, err := computeFn()
		if err != nil {
			return nil, err
		}
		c.Set(ctx, q, result)
		return result, nil
	})
	if err != nil {
		return nil, false, err
	}
	return val.(*executor.SearchResult), false, nil
}

// Invalidate advances the corpus generation, orphaning every cached entry.
func (c *QueryCache) Invalidate(ctx context.Context) (int64, error) {
	var gen int64
	err := c.breaker.Execute(func() error {
		var err error
		gen, err = c.backend.Incr(ctx, generationKey)
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("invalidating cache: %w", err)
	}
	c.logger.Info("cache invalidated", "generation", gen)
	return gen, nil
}

// Purge deletes every cached entry, keeping the generation counter.
func (c *QueryCache) Purge(ctx context.Context) (int64, error) {
	var deleted int64
	err := c.breaker.Execute(func() error {
		var err error
		deleted, err = c.backend.FlushByPattern(ctx, keyPrefix+"*")
		return err
	})
	if err != nil {
		return deleted, fmt.Errorf("purging cache: %w", err)
	}
	c.logger.Info("cache purged", "keys_deleted", deleted)
	return deleted, nil
}

func (c *QueryCache) Stats() (hits, misses int64) {
	return c.hits.Load(), c.misses.Load()
}

// State reports the breaker state guarding the backend.
func (c *QueryCache) State() resilience.State {
	return c.breaker.GetState()
}

func (c *QueryCache) miss() {
	c.misses.Add(1)
	if c.observer != nil {
		c.observer.Miss()
	}
}

// buildKey hashes the canonical query under the current generation. It
// fails only when the generation cannot be read.
func (c *QueryCache) buildKey(ctx context.Context, q *parser.Query) (string, bool) {
	var gen int64
	err := c.breaker.Execute(func() error {
		var err error
		gen, err = c.backend.GetInt64(ctx, generationKey)
		return err
	})
	if err != nil {
		return "", false
	}
	hash := sha256.Sum256([]byte(parser.Canonical(q)))
	return fmt.Sprintf("%s%d:%x", keyPrefix, gen, hash[:16]), true
}
