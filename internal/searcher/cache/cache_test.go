package cache

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adrian-1-cardona/DocPulse/internal/ingestion"
	"github.com/adrian-1-cardona/DocPulse/internal/searcher/executor"
	"github.com/adrian-1-cardona/DocPulse/internal/searcher/parser"
	"github.com/adrian-1-cardona/DocPulse/pkg/resilience"
)

var errNil = errors.New("redis: nil")

type fakeBackend struct {
	mu   sync.Mutex
	data map[string]string
	down bool
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{data: map[string]string{}}
}

func (f *fakeBackend) Get(_ context.Context, key string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.down {
		return "", errors.New("connection refused")
	}
	v, ok := f.data[key]
	if !ok {
		return "", errNil
	}
	return v, nil
}

func (f *fakeBackend) Set(_ context.Context, key string, value interface{}, _ time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.down {
		return errors.New("connection refused")
	}
	f.data[key] = string(value.([]byte))
	return nil
}

func (f *fakeBackend) Incr(_ context.Context, key string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.down {
		return 0, errors.New("connection refused")
	}
	n := int64(len(f.data[key])) + 1
	f.data[key] = strings.Repeat("x", int(n))
	return n, nil
}

func (f *fakeBackend) GetInt64(_ context.Context, key string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.down {
		return 0, errors.New("connection refused")
	}
	return int64(len(f.data[key])), nil
}

func (f *fakeBackend) FlushByPattern(_ context.Context, pattern string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	prefix := strings.TrimSuffix(pattern, "*")
	var n int64
	for k := range f.data {
		if strings.HasPrefix(k, prefix) {
			delete(f.data, k)
			n++
		}
	}
	return n, nil
}

func (f *fakeBackend) setDown(down bool) {
	f.mu.Lock()
	f.down = down
	f.mu.Unlock()
}

func newTestCache(b Backend, opts ...Option) *QueryCache {
	opts = append([]Option{WithMissCheck(func(err error) bool { return errors.Is(err, errNil) })}, opts...)
	return New(b, time.Minute, opts...)
}

func TestGetOrComputeCachesResult(t *testing.T) {
	c := newTestCache(newFakeBackend())
	ctx := context.Background()
	q := &parser.Query{Text: "payment api"}

	var calls atomic.Int32
	compute := func() (*executor.SearchResult, error) {
		calls.Add(1)
		return &executor.SearchResult{TotalCount: 3, Documents: nil}, nil
	}

	res, hit, err := c.GetOrCompute(ctx, q, compute)
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Equal(t, 3, res.TotalCount)

	// default page settings resolve to the same key
	res, hit, err = c.GetOrCompute(ctx, &parser.Query{Text: "payment  api", Limit: parser.DefaultLimit}, compute)
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, 3, res.TotalCount)
	assert.Equal(t, int32(1), calls.Load())

	hits, misses := c.Stats()
	assert.Equal(t, int64(1), hits)
	assert.Equal(t, int64(1), misses)
}

func TestFilterValueTypesDoNotShareEntries(t *testing.T) {
	c := newTestCache(newFakeBackend())
	ctx := context.Background()
	filtered := func(op parser.Operator, v any) *parser.Query {
		return &parser.Query{Filters: []parser.Filter{{Field: "owner", Operator: op, Value: v}}}
	}
	compute := func(total int) func() (*executor.SearchResult, error) {
		return func() (*executor.SearchResult, error) {
			return &executor.SearchResult{TotalCount: total}, nil
		}
	}

	_, _, err := c.GetOrCompute(ctx, filtered(parser.OpExists, "true"), compute(0))
	require.NoError(t, err)
	res, hit, err := c.GetOrCompute(ctx, filtered(parser.OpExists, true), compute(2))
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Equal(t, 2, res.TotalCount)

	_, _, err = c.GetOrCompute(ctx, filtered(parser.OpIn, []any{"core,platform"}), compute(0))
	require.NoError(t, err)
	res, hit, err = c.GetOrCompute(ctx, filtered(parser.OpIn, []any{"core", "platform"}), compute(5))
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Equal(t, 5, res.TotalCount)
}

func TestTermOrderKeepsDescription(t *testing.T) {
	c := newTestCache(newFakeBackend())
	ctx := context.Background()
	describe := func(q *parser.Query) func() (*executor.SearchResult, error) {
		return func() (*executor.SearchResult, error) {
			return &executor.SearchResult{Description: parser.Describe(q)}, nil
		}
	}

	first := &parser.Query{Text: "payment api"}
	_, _, err := c.GetOrCompute(ctx, first, describe(first))
	require.NoError(t, err)

	second := &parser.Query{Text: "api payment"}
	res, hit, err := c.GetOrCompute(ctx, second, describe(second))
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Equal(t, `Search: "api payment"`, res.Description)
}

func TestInvalidateOrphansEntries(t *testing.T) {
	c := newTestCache(newFakeBackend())
	ctx := context.Background()
	q := &parser.Query{Text: "runbook"}

	c.Set(ctx, q, &executor.SearchResult{TotalCount: 1})
	_, ok := c.Get(ctx, q)
	require.True(t, ok)

	gen, err := c.Invalidate(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), gen)

	_, ok = c.Get(ctx, q)
	assert.False(t, ok)
}

func TestPurgeKeepsGeneration(t *testing.T) {
	b := newFakeBackend()
	c := newTestCache(b)
	ctx := context.Background()

	_, err := c.Invalidate(ctx)
	require.NoError(t, err)
	c.Set(ctx, &parser.Query{Text: "a"}, &executor.SearchResult{})
	c.Set(ctx, &parser.Query{Text: "b"}, &executor.SearchResult{})

	n, err := c.Purge(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	gen, _ := b.GetInt64(ctx, generationKey)
	assert.Equal(t, int64(1), gen)
}

func TestBackendOutageDegradesToPassThrough(t *testing.T) {
	b := newFakeBackend()
	var states []resilience.State
	cb := resilience.NewCircuitBreaker("test-cache", resilience.CircuitBreakerConfig{
		FailureThreshold: 2,
		ResetTimeout:     time.Hour,
		OnStateChange:    func(_ string, to resilience.State) { states = append(states, to) },
	})
	c := newTestCache(b, WithBreaker(cb))
	ctx := context.Background()
	b.setDown(true)

	for i := 0; i < 3; i++ {
		res, hit, err := c.GetOrCompute(ctx, &parser.Query{Text: "x"}, func() (*executor.SearchResult, error) {
			return &executor.SearchResult{TotalCount: 7}, nil
		})
		require.NoError(t, err)
		assert.False(t, hit)
		assert.Equal(t, 7, res.TotalCount)
	}
	assert.Equal(t, resilience.StateOpen, c.State())
	assert.Equal(t, []resilience.State{resilience.StateOpen}, states)
}

func TestComputeErrorIsReturned(t *testing.T) {
	c := newTestCache(newFakeBackend())
	_, _, err := c.GetOrCompute(context.Background(), &parser.Query{}, func() (*executor.SearchResult, error) {
		return nil, errors.New("store down")
	})
	assert.EqualError(t, err, "store down")
}

func TestHandleDocumentEvent(t *testing.T) {
	b := newFakeBackend()
	c := newTestCache(b)
	ctx := context.Background()

	payload, err := json.Marshal(ingestion.DocumentEvent{Type: ingestion.EventDocumentsIngested, Count: 2})
	require.NoError(t, err)
	require.NoError(t, c.HandleDocumentEvent(ctx, nil, payload))
	require.NoError(t, c.HandleDocumentEvent(ctx, nil, []byte("not json")))

	other, _ := json.Marshal(ingestion.DocumentEvent{Type: "something.else"})
	require.NoError(t, c.HandleDocumentEvent(ctx, nil, other))

	gen, _ := b.GetInt64(ctx, generationKey)
	assert.Equal(t, int64(1), gen)
}
