package pipeline

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adrian-1-cardona/DocPulse/internal/document"
	"github.com/adrian-1-cardona/DocPulse/internal/ingestion"
	"github.com/adrian-1-cardona/DocPulse/internal/scoring"
	"github.com/adrian-1-cardona/DocPulse/pkg/config"
	"github.com/adrian-1-cardona/DocPulse/pkg/tracing"
)

var now = time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)

func intPtr(v int) *int { return &v }

func newTestPipeline(opts ...Option) *Pipeline {
	var n atomic.Int64
	base := []Option{
		WithClock(func() time.Time { return now }),
		WithIDGenerator(func() string { return fmt.Sprintf("doc-%d", n.Add(1)) }),
	}
	return New(scoring.V2{}, append(base, opts...)...)
}

func sparseRequest() ingestion.IngestRequest {
	return ingestion.IngestRequest{
		Title:               "Checkout runbook",
		Team:                "payments",
		System:              "checkout",
		DocType:             "Runbook",
		Criticality:         5,
		ReleasesSinceReview: intPtr(8),
		Views30d:            intPtr(0),
		File: &ingestion.FileInfo{
			Name:         "checkout.md",
			Size:         2048,
			LastModified: time.Date(2026, 3, 9, 23, 0, 0, 0, time.UTC),
		},
	}
}

func TestIngestSparseDocument(t *testing.T) {
	p := newTestPipeline()
	req := sparseRequest()

	doc, err := p.Ingest(&req)
	require.NoError(t, err)

	assert.Equal(t, "doc-1", doc.ID)
	assert.Equal(t, "checkout.md", doc.Path)
	assert.Equal(t, "2026-03-09", doc.LastUpdated)
	assert.Equal(t, document.UnassignedOwner, doc.Owner)
	assert.Equal(t, document.CategoryGuide, doc.Category)
	assert.Equal(t, 86.0, doc.OverallScore)
	assert.Equal(t, scoring.PolicyV2, doc.Policy)
	assert.Equal(t, 8, doc.CodeChanges)
	assert.Equal(t, 0, doc.SlackQuestions)
	assert.True(t, doc.RecentlyAdded)
	require.NotNil(t, doc.AddedAt)
	assert.Equal(t, now, *doc.AddedAt)
	require.NotNil(t, doc.Metadata)
	require.NotNil(t, doc.Metadata.UploadedAt)
	assert.Len(t, doc.Signals, 4)

	assert.Equal(t, []string{
		"High staleness risk detected",
		"No owner assigned",
		"Never formally reviewed",
		"4 potential issues identified",
	}, doc.Reasons)
	assert.Equal(t, []string{
		"Assign a document owner for accountability",
		"Schedule a comprehensive review session",
		"Consider prioritizing this doc for updates",
		"Update to reflect 8 recent releases",
	}, doc.Recommendations)
}

func TestIngestHealthyDocument(t *testing.T) {
	p := newTestPipeline()
	req := ingestion.IngestRequest{
		Title:               "Design: ledger",
		Team:                "core",
		System:              "ledger",
		DocType:             "Design",
		Criticality:         2,
		Owner:               "bob",
		LastReviewedAt:      "2026-05-20",
		Views30d:            intPtr(60),
		ReleasesSinceReview: intPtr(1),
		SourceFile:          "docs/ledger.md",
	}
	doc, err := p.Ingest(&req)
	require.NoError(t, err)

	assert.Equal(t, "docs/ledger.md", doc.Path)
	assert.Equal(t, "2026-06-01", doc.LastUpdated)
	assert.Equal(t, document.CategoryArchitecture, doc.Category)
	assert.Equal(t, []string{"Document ingested successfully"}, doc.Reasons)
	assert.Empty(t, doc.Recommendations)
	assert.NotNil(t, doc.Recommendations)
	assert.Empty(t, doc.Signals)
}

func copyRequest(req ingestion.IngestRequest) ingestion.IngestRequest {
	out := req
	if req.Views30d != nil {
		out.Views30d = intPtr(*req.Views30d)
	}
	if req.ReleasesSinceReview != nil {
		out.ReleasesSinceReview = intPtr(*req.ReleasesSinceReview)
	}
	if req.File != nil {
		f := *req.File
		out.File = &f
	}
	return out
}

func TestIngestLeavesRequestUntouched(t *testing.T) {
	p := newTestPipeline()
	req := sparseRequest()
	req.LastReviewedAt = "2026-01-15"
	before := copyRequest(req)

	doc, err := p.Ingest(&req)
	require.NoError(t, err)
	assert.Equal(t, before, req)

	*doc.Metadata.Views30d = 999
	*doc.Metadata.ReleasesSinceReview = 999
	assert.Equal(t, before, req)
}

func TestScoreLeavesMetadataUntouched(t *testing.T) {
	p := newTestPipeline()
	reviewed := time.Date(2026, 1, 15, 0, 0, 0, 0, time.UTC)
	meta := document.Metadata{
		Title:               "Ledger design",
		Team:                "core",
		System:              "ledger",
		DocType:             document.DocTypeDesign,
		Criticality:         4,
		LastReviewedAt:      &reviewed,
		Views30d:            intPtr(3),
		ReleasesSinceReview: intPtr(9),
	}
	reviewedCopy := reviewed
	before := meta
	before.LastReviewedAt = &reviewedCopy
	before.Views30d = intPtr(3)
	before.ReleasesSinceReview = intPtr(9)
	file := &ingestion.FileInfo{Name: "dir/ledger.md", Size: 10, LastModified: now}
	fileBefore := *file

	doc, err := p.Score(meta, file)
	require.NoError(t, err)
	assert.Equal(t, before, meta)
	assert.Nil(t, meta.UploadedAt)
	assert.Equal(t, fileBefore, *file)

	*doc.Metadata.LastReviewedAt = now
	*doc.Metadata.Views30d = 0
	assert.Equal(t, before, meta)
}

func TestIngestSingleIssueIsSingular(t *testing.T) {
	p := newTestPipeline()
	req := ingestion.IngestRequest{
		Title: "t", Team: "t", System: "s", DocType: "RFC", Criticality: 1,
		LastReviewedAt: "2026-05-01", Views30d: intPtr(3), ReleasesSinceReview: intPtr(1),
	}
	doc, err := p.Ingest(&req)
	require.NoError(t, err)
	assert.Contains(t, doc.Reasons, "1 potential issue identified")
	assert.Equal(t, "t", doc.Path)
}

func TestIngestValidatesFileWhenIntakeConfigured(t *testing.T) {
	p := newTestPipeline(WithIntake(config.IntakeConfig{MaxFileSize: 1024, AllowedExtensions: []string{".md"}}))
	req := sparseRequest()
	_, err := p.Ingest(&req)
	assert.Error(t, err)
}

func TestBaselinePolicyIsRecorded(t *testing.T) {
	p := New(scoring.Baseline{}, WithClock(func() time.Time { return now }))
	req := sparseRequest()
	doc, err := p.Ingest(&req)
	require.NoError(t, err)
	assert.Equal(t, scoring.PolicyBaseline, doc.Policy)
	assert.Equal(t, 71.0, doc.OverallScore)
	assert.NotEmpty(t, doc.ID)
}

func TestIngestBatchKeepsOrderAndIsolatesFailures(t *testing.T) {
	p := newTestPipeline(WithConcurrency(4))
	reqs := make([]ingestion.IngestRequest, 40)
	for i := range reqs {
		reqs[i] = sparseRequest()
		reqs[i].Title = fmt.Sprintf("doc %d", i)
		if i%10 == 3 {
			reqs[i].Team = ""
		}
	}

	ctx, root := tracing.StartSpan(context.Background(), "ingest.batch", "trace-1")
	results := p.IngestBatch(ctx, reqs)
	root.End(nil)

	require.Len(t, results, 40)
	for i, r := range results {
		assert.Equal(t, i, r.Index)
		if i%10 == 3 {
			assert.Nil(t, r.Document)
			assert.Contains(t, r.Fields, "team")
			continue
		}
		require.NotNil(t, r.Document, "item %d", i)
		assert.Equal(t, fmt.Sprintf("doc %d", i), r.Document.Title)
	}
	assert.Len(t, root.Children(), 40)

	resp := Summarize(results)
	assert.Equal(t, 36, resp.Succeeded)
	assert.Equal(t, 4, resp.Failed)
}

func TestIngestBatchCancelled(t *testing.T) {
	p := newTestPipeline()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	results := p.IngestBatch(ctx, []ingestion.IngestRequest{sparseRequest()})
	require.Len(t, results, 1)
	assert.NotEmpty(t, results[0].Error)
}
