package analytics

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adrian-1-cardona/DocPulse/internal/ingestion"
	"github.com/adrian-1-cardona/DocPulse/pkg/kafka"
)

type fakeProducer struct {
	mu       sync.Mutex
	failures int
	batches  [][]kafka.Event
}

func (f *fakeProducer) PublishBatch(_ context.Context, events []kafka.Event) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failures > 0 {
		f.failures--
		return errors.New("broker down")
	}
	f.batches = append(f.batches, events)
	return nil
}

func (f *fakeProducer) published() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, b := range f.batches {
		n += len(b)
	}
	return n
}

func TestCollectorFlushAndRequeue(t *testing.T) {
	p := &fakeProducer{failures: 1}
	c := NewCollector(p, 100, time.Hour)

	c.Track(SearchEvent{Type: EventSearch, Query: "a"})
	c.Track(ReportEvent{Type: EventReport, ReportType: "metrics"})
	assert.Equal(t, 2, c.BufferLen())

	c.Flush(context.Background())
	assert.Equal(t, 2, c.BufferLen(), "failed batch is re-queued")

	c.Flush(context.Background())
	assert.Zero(t, c.BufferLen())
	require.Len(t, p.batches, 1)
	assert.Equal(t, "search", p.batches[0][0].Key)
	assert.Equal(t, "report_generated", p.batches[0][1].Key)
}

func TestCollectorFlushesWhenFull(t *testing.T) {
	p := &fakeProducer{}
	c := NewCollector(p, 3, time.Hour)
	for i := 0; i < 3; i++ {
		c.Track(SearchEvent{Type: EventSearch})
	}
	assert.Eventually(t, func() bool { return p.published() == 3 }, time.Second, 5*time.Millisecond)
}

func TestCollectorFinalFlushOnShutdown(t *testing.T) {
	p := &fakeProducer{}
	c := NewCollector(p, 100, time.Hour)
	ctx, cancel := context.WithCancel(context.Background())
	c.Start(ctx)
	c.Track(SearchEvent{Type: EventSearch})
	cancel()
	c.Close()
	assert.Equal(t, 1, p.published())
}

func TestAggregatorHandlesAllEventKinds(t *testing.T) {
	agg := NewAggregator()
	handle := HandleEvent(agg)
	ctx := context.Background()

	send := func(v any) {
		data, err := json.Marshal(v)
		require.NoError(t, err)
		require.NoError(t, handle(ctx, nil, data))
	}
	send(SearchEvent{Type: EventSearch, Query: "payment", TotalCount: 3, LatencyMs: 10, FilterFields: []string{"team"}})
	send(SearchEvent{Type: EventCacheHit, Query: "payment", TotalCount: 3, LatencyMs: 2, CacheHit: true})
	send(SearchEvent{Type: EventZeroResult, Query: "nothing", LatencyMs: 4})
	send(ReportEvent{Type: EventReport, ReportType: "compliance"})
	send(ingestion.DocumentEvent{Type: ingestion.EventDocumentsIngested, Count: 2, Scores: []float64{86, 20}})
	send(ingestion.DocumentEvent{Type: ingestion.EventDocumentDeleted, Count: 1})
	send(ingestion.DocumentEvent{Type: ingestion.EventWorkspaceImported, Count: 40})
	require.NoError(t, handle(ctx, nil, []byte("{broken")))

	stats := agg.Stats()
	assert.Equal(t, int64(3), stats.TotalSearches)
	assert.Equal(t, int64(1), stats.CacheHits)
	assert.Equal(t, int64(2), stats.CacheMisses)
	assert.Equal(t, int64(1), stats.ZeroResultCount)
	assert.Equal(t, []QueryCount{{Query: "payment", Count: 2}, {Query: "nothing", Count: 1}}, stats.TopQueries)
	assert.Equal(t, []QueryCount{{Query: "team", Count: 1}}, stats.TopFilterFields)
	assert.Equal(t, int64(4), stats.P50LatencyMs)
	assert.Equal(t, 1, stats.ReportsGenerated["compliance"])

	assert.Equal(t, int64(2), stats.Ingestion.DocumentsIngested)
	assert.Equal(t, int64(1), stats.Ingestion.DocumentsDeleted)
	assert.Equal(t, int64(1), stats.Ingestion.WorkspaceImports)
	assert.Equal(t, int64(1), stats.Ingestion.HighRiskIngested)
	assert.InDelta(t, 53.0, stats.Ingestion.AvgIngestedScore, 0.001)
}

func TestHandlerStats(t *testing.T) {
	agg := NewAggregator()
	agg.RecordSearch(SearchEvent{Type: EventSearch, Query: "x", TotalCount: 1})
	mux := http.NewServeMux()
	NewHandler(agg, nil).Register(mux)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/analytics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var stats AggregatedStats
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&stats))
	assert.Equal(t, int64(1), stats.TotalSearches)

	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/analytics/snapshots", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
