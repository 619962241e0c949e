// Package ranker orders search matches. Relevance keeps match order; the
// other keys sort stably so ties never reshuffle between identical queries.
package ranker

import (
	"cmp"
	"slices"
	"strings"
	"time"

	"github.com/adrian-1-cardona/DocPulse/internal/document"
	"github.com/adrian-1-cardona/DocPulse/internal/searcher/parser"
)

// Sort orders docs in place by key and order.
func Sort(docs []document.Document, key parser.SortKey, order parser.SortOrder) {
	var compare func(a, b *document.Document) int
	switch key {
	case parser.SortOverallScore:
		compare = func(a, b *document.Document) int { return cmp.Compare(a.OverallScore, b.OverallScore) }
	case parser.SortLastUpdated:
		compare = func(a, b *document.Document) int { return updatedAt(a).Compare(updatedAt(b)) }
	case parser.SortTitle:
		compare = func(a, b *document.Document) int {
			return strings.Compare(strings.ToLower(a.Title), strings.ToLower(b.Title))
		}
	default:
		return
	}
	slices.SortStableFunc(docs, func(a, b document.Document) int {
		c := compare(&a, &b)
		if order == parser.OrderDesc {
			return -c
		}
		return c
	})
}

// updatedAt parses LastUpdated. Unparseable dates sort as the zero time.
func updatedAt(d *document.Document) time.Time {
	if t, err := time.Parse(document.LastUpdatedLayout, d.LastUpdated); err == nil {
		return t
	}
	if t, err := time.Parse(time.RFC3339, d.LastUpdated); err == nil {
		return t
	}
	return time.Time{}
}
