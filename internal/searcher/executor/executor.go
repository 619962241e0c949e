// Package executor runs search queries over the scored corpus: text
// matching, structured filters, facets, sorting and pagination, in that
// order.
package executor

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/adrian-1-cardona/DocPulse/internal/document"
	"github.com/adrian-1-cardona/DocPulse/internal/searcher/parser"
	"github.com/adrian-1-cardona/DocPulse/internal/searcher/ranker"
	"github.com/adrian-1-cardona/DocPulse/internal/store"
)

// Facet names, in the order results present them.
var FacetFields = []string{"team", "docType", "criticality", "status", "category"}

// Facets maps a facet name to value counts.
type Facets map[string]map[string]int

type SearchResult struct {
	Documents       []document.Document `json:"documents"`
	TotalCount      int                 `json:"totalCount"`
	Facets          Facets              `json:"facets"`
	ExecutionTimeMs float64             `json:"executionTimeMs"`
	Description     string              `json:"description"`
	CorpusSize      int                 `json:"-"`
}

// Search runs q over docs. It never mutates docs and never fails: an empty
// corpus yields an empty page with zero counts.
func Search(docs []document.Document, q *parser.Query) *SearchResult {
	start := time.Now()
	matched := match(docs, q.Terms(), q.Filters)
	res := finish(matched, q)
	res.CorpusSize = len(docs)
	res.ExecutionTimeMs = elapsedMs(start)
	return res
}

// Executor loads the corpus from a store and searches it.
type Executor struct {
	store  store.Store
	shards int
	logger *slog.Logger
}

// New creates an Executor. shards > 1 splits matching across goroutines.
func New(st store.Store, shards int) *Executor {
	if shards < 1 {
		shards = 1
	}
	return &Executor{
		store:  st,
		shards: shards,
		logger: slog.Default().With("component", "query-executor"),
	}
}

func (e *Executor) Execute(ctx context.Context, q *parser.Query) (*SearchResult, error) {
	start := time.Now()
	docs, err := e.store.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading corpus: %w", err)
	}
	matched, err := matchSharded(ctx, docs, q, e.shards)
	if err != nil {
		return nil, err
	}
	res := finish(matched, q)
	res.CorpusSize = len(docs)
	res.ExecutionTimeMs = elapsedMs(start)

	e.logger.Debug("query executed",
		"query", res.Description,
		"corpus", len(docs),
		"matched", res.TotalCount,
		"returned", len(res.Documents),
	)
	return res, nil
}

// Get returns one document by id.
func (e *Executor) Get(ctx context.Context, id string) (document.Document, error) {
	return e.store.Get(ctx, id)
}

func match(docs []document.Document, terms []string, filters []parser.Filter) []document.Document {
	out := make([]document.Document, 0, len(docs))
	for i := range docs {
		if Matches(&docs[i], terms, filters) {
			out = append(out, docs[i])
		}
	}
	return out
}

// Matches reports whether doc contains every term and passes every filter.
func Matches(doc *document.Document, terms []string, filters []parser.Filter) bool {
	if len(terms) > 0 {
		haystack := searchable(doc)
		for _, t := range terms {
			if !strings.Contains(haystack, t) {
				return false
			}
		}
	}
	for _, f := range filters {
		if !Match(doc, f) {
			return false
		}
	}
	return true
}

func searchable(doc *document.Document) string {
	fields := make([]string, 0, 4+len(doc.Reasons)+len(doc.Recommendations))
	fields = append(fields, doc.Title, doc.Path, doc.Owner, string(doc.Category))
	fields = append(fields, doc.Reasons...)
	fields = append(fields, doc.Recommendations...)
	return strings.ToLower(strings.Join(fields, " "))
}

// finish computes facets over the full match set, then sorts and pages it.
// matched is owned by finish and may be reordered.
func finish(matched []document.Document, q *parser.Query) *SearchResult {
	facets := ComputeFacets(matched)
	ranker.Sort(matched, q.SortBy, q.Order())
	return &SearchResult{
		Documents:   Page(matched, q.Offset, q.PageLimit()),
		TotalCount:  len(matched),
		Facets:      facets,
		Description: parser.Describe(q),
	}
}

// ComputeFacets counts docs by team, docType, criticality, status and
// category. Every facet key is present even for an empty set.
func ComputeFacets(docs []document.Document) Facets {
	facets := make(Facets, len(FacetFields))
	for _, f := range FacetFields {
		facets[f] = map[string]int{}
	}
	for i := range docs {
		d := &docs[i]
		var meta document.Metadata
		if d.Metadata != nil {
			meta = *d.Metadata
		}
		facets["team"][orDefault(meta.Team, "Unknown")]++
		facets["docType"][orDefault(string(meta.DocType), "Other")]++
		facets["criticality"][strconv.Itoa(meta.Criticality)]++
		facets["status"][d.Risk().Status()]++
		facets["category"][orDefault(string(d.Category), "Other")]++
	}
	return facets
}

// Page returns docs[offset:offset+limit], clamped to the slice.
func Page(docs []document.Document, offset, limit int) []document.Document {
	offset = max(offset, 0)
	if offset >= len(docs) || limit <= 0 {
		return []document.Document{}
	}
	return docs[offset : offset+min(limit, len(docs)-offset)]
}

func orDefault(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}

func elapsedMs(start time.Time) float64 {
	return float64(time.Since(start).Microseconds()) / 1000
}
