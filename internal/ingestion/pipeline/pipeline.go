// Package pipeline turns validated ingestion requests into scored documents.
// It is pure apart from the injected clock and ID generator: nothing here
// touches storage or the network.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/adrian-1-cardona/DocPulse/internal/document"
	"github.com/adrian-1-cardona/DocPulse/internal/ingestion"
	"github.com/adrian-1-cardona/DocPulse/internal/ingestion/validator"
	"github.com/adrian-1-cardona/DocPulse/internal/scoring"
	"github.com/adrian-1-cardona/DocPulse/internal/signals"
	"github.com/adrian-1-cardona/DocPulse/pkg/config"
	"github.com/adrian-1-cardona/DocPulse/pkg/tracing"
)

// HighRiskReasonThreshold is the overall score at which ingestion flags a
// document for prioritised updates.
const HighRiskReasonThreshold = 70

// Pipeline scores documents with one policy.
type Pipeline struct {
	policy      scoring.Policy
	intake      config.IntakeConfig
	concurrency int
	newID       func() string
	now         func() time.Time
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithIDGenerator replaces the uuid generator.
func WithIDGenerator(fn func() string) Option {
	return func(p *Pipeline) { p.newID = fn }
}

// WithClock replaces time.Now.
func WithClock(fn func() time.Time) Option {
	return func(p *Pipeline) { p.now = fn }
}

// WithConcurrency bounds parallel scoring in IngestBatch.
func WithConcurrency(n int) Option {
	return func(p *Pipeline) {
		if n > 0 {
			p.concurrency = n
		}
	}
}

// WithIntake enables file descriptor validation against cfg.
func WithIntake(cfg config.IntakeConfig) Option {
	return func(p *Pipeline) { p.intake = cfg }
}

// New creates a Pipeline scoring with policy.
func New(policy scoring.Policy, opts ...Option) *Pipeline {
	p := &Pipeline{
		policy:      policy,
		concurrency: 8,
		newID:       func() string { return uuid.New().String() },
		now:         func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Policy returns the name of the scoring policy in use.
func (p *Pipeline) Policy() string {
	return p.policy.Name()
}

// Ingest validates one request and returns its scored document.
func (p *Pipeline) Ingest(req *ingestion.IngestRequest) (document.Document, error) {
	if req.File != nil && p.intake.MaxFileSize > 0 {
		if err := validator.ValidateFile(*req.File, p.intake); err != nil {
			return document.Document{}, err
		}
	}
	meta, err := validator.ValidateIngestRequest(req)
	if err != nil {
		return document.Document{}, err
	}
	return p.Score(meta, req.File)
}

// Score builds the document record for already-validated metadata. file may
// be nil; lastUpdated then falls back to the ingestion date.
func (p *Pipeline) Score(meta document.Metadata, file *ingestion.FileInfo) (document.Document, error) {
	now := p.now()
	meta = meta.Clone()
	if meta.UploadedAt == nil {
		meta.UploadedAt = &now
	}

	sigs := signals.Generate(meta, now)
	breakdown, err := p.policy.Score(meta, sigs, now)
	if err != nil {
		return document.Document{}, err
	}

	lastUpdated := now
	path := meta.SourceFile
	if file != nil {
		if !file.LastModified.IsZero() {
			lastUpdated = file.LastModified
		}
		if path == "" {
			path = validator.SanitizeFileName(filepath.Base(file.Name))
		}
	}
	if path == "" {
		path = meta.Title
	}

	owner := meta.Owner
	if !meta.HasOwner() {
		owner = document.UnassignedOwner
	}

	addedAt := now
	doc := document.Document{
		ID:              p.newID(),
		Title:           meta.Title,
		Path:            path,
		LastUpdated:     lastUpdated.UTC().Format(document.LastUpdatedLayout),
		Owner:           owner,
		Category:        document.CategoryFor(meta.DocType),
		Reasons:         reasons(meta, sigs, breakdown.Overall),
		Recommendations: recommendations(meta, breakdown.Overall),
		SlackQuestions:  0,
		CodeChanges:     meta.Releases(),
		Metadata:        &meta,
		Signals:         sigs,
		RecentlyAdded:   true,
		AddedAt:         &addedAt,
	}
	scoring.Apply(&doc, breakdown)
	return doc, nil
}

func reasons(meta document.Metadata, sigs []document.Signal, overall float64) []string {
	var out []string
	if overall >= HighRiskReasonThreshold {
		out = append(out, "High staleness risk detected")
	}
	if !meta.HasOwner() {
		out = append(out, "No owner assigned")
	}
	if !meta.Reviewed() {
		out = append(out, "Never formally reviewed")
	}
	switch n := len(sigs); n {
	case 0:
	case 1:
		out = append(out, "1 potential issue identified")
	default:
		out = append(out, fmt.Sprintf("%d potential issues identified", n))
	}
	if len(out) == 0 {
		out = append(out, "Document ingested successfully")
	}
	return out
}

func recommendations(meta document.Metadata, overall float64) []string {
	out := []string{}
	if !meta.HasOwner() {
		out = append(out, "Assign a document owner for accountability")
	}
	if !meta.Reviewed() {
		out = append(out, "Schedule a comprehensive review session")
	}
	if overall >= HighRiskReasonThreshold {
		out = append(out, "Consider prioritizing this doc for updates")
	}
	if r := meta.Releases(); r > signals.HighChangeReleases {
		out = append(out, fmt.Sprintf("Update to reflect %d recent releases", r))
	}
	return out
}

// IngestBatch scores every request independently with bounded concurrency.
// One item failing never affects another. Results are in input order. If ctx
// carries a span, each item gets a child span.
func (p *Pipeline) IngestBatch(ctx context.Context, reqs []ingestion.IngestRequest) []ingestion.ItemResult {
	results := make([]ingestion.ItemResult, len(reqs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.concurrency)
	for i := range reqs {
		g.Go(func() error {
			_, span := tracing.StartChildSpan(gctx, "ingest.item")
			span.SetAttr("index", i)

			res := ingestion.ItemResult{Index: i}
			if err := gctx.Err(); err != nil {
				res.Error = err.Error()
				span.End(err)
				results[i] = res
				return nil
			}
			doc, err := p.Ingest(&reqs[i])
			if err != nil {
				res.Error = err.Error()
				var ve *validator.ValidationError
				if errors.As(err, &ve) {
					res.Fields = ve.Fields
				}
			} else {
				res.Document = &doc
			}
			span.End(err)
			results[i] = res
			return nil
		})
	}
	_ = g.Wait()
	return results
}

// Summarize counts successes and failures.
func Summarize(results []ingestion.ItemResult) ingestion.BatchResponse {
	resp := ingestion.BatchResponse{Results: results}
	for _, r := range results {
		if r.Document != nil {
			resp.Succeeded++
		} else {
			resp.Failed++
		}
	}
	return resp
}
