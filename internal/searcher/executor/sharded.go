package executor

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/adrian-1-cardona/DocPulse/internal/document"
	"github.com/adrian-1-cardona/DocPulse/internal/searcher/parser"
)

// minShardSize keeps small corpora on a single goroutine.
const minShardSize = 512

// matchSharded splits docs into contiguous shards, matches each shard
// concurrently and concatenates the hits in shard order, so the result is
// identical to a sequential scan. A cancelled ctx aborts between shards.
func matchSharded(ctx context.Context, docs []document.Document, q *parser.Query, shards int) ([]document.Document, error) {
	terms := q.Terms()
	if shards <= 1 || len(docs) < 2*minShardSize {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		return match(docs, terms, q.Filters), nil
	}

	size := (len(docs) + shards - 1) / shards
	if size < minShardSize {
		size = minShardSize
	}
	var bounds [][2]int
	for lo := 0; lo < len(docs); lo += size {
		bounds = append(bounds, [2]int{lo, min(lo+size, len(docs))})
	}

	hits := make([][]document.Document, len(bounds))
	g, gctx := errgroup.WithContext(ctx)
	for i, b := range bounds {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			hits[i] = match(docs[b[0]:b[1]], terms, q.Filters)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	total := 0
	for _, h := range hits {
		total += len(h)
	}
	merged := make([]document.Document, 0, total)
	for _, h := range hits {
		merged = append(merged, h...)
	}
	return merged, nil
}
