// Package storetest is the conformance suite every store.Store backend runs.
package storetest

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adrian-1-cardona/DocPulse/internal/document"
	"github.com/adrian-1-cardona/DocPulse/internal/store"
	apperrors "github.com/adrian-1-cardona/DocPulse/pkg/errors"
)

// Factory returns an empty store. The suite closes it.
type Factory func(t *testing.T) store.Store

// Doc builds a scored document fixture with every optional field populated.
func Doc(id string, overall float64) document.Document {
	reviewed := time.Date(2025, 11, 2, 0, 0, 0, 0, time.UTC)
	added := time.Date(2026, 5, 30, 8, 15, 0, 0, time.UTC)
	views, releases := 14, 2
	return document.Document{
		ID:                 id,
		Title:              "Doc " + id,
		Path:               id + ".md",
		OverallScore:       overall,
		StabilityScore:     40,
		CodeAlignmentScore: 70,
		InfoDemandScore:    28,
		OwnershipScore:     100,
		Breakdown: &document.ScoreBreakdown{
			Stability: document.Component{Score: 40, Weight: document.WeightStability, Factors: []string{"Last reviewed 120 days ago"}},
			Overall:   overall,
			Policy:    "v2",
		},
		Policy:          "v2",
		LastUpdated:     "2026-05-01",
		Owner:           "team-" + id,
		Category:        document.CategoryRunbook,
		Reasons:         []string{"Document ingested successfully"},
		Recommendations: []string{},
		CodeChanges:     releases,
		Metadata: &document.Metadata{
			Title:               "Doc " + id,
			Team:                "platform",
			System:              "core",
			DocType:             document.DocTypeRunbook,
			Criticality:         3,
			Owner:               "team-" + id,
			LastReviewedAt:      &reviewed,
			Views30d:            &views,
			ReleasesSinceReview: &releases,
		},
		Signals:       []document.Signal{{Type: document.SignalMissingOwner, Severity: 3, Evidence: "x"}},
		RecentlyAdded: true,
		AddedAt:       &added,
	}
}

// Run exercises the full store.Store contract.
func Run(t *testing.T, newStore Factory) {
	t.Run("PutGetList", func(t *testing.T) {
		s := newStore(t)
		defer s.Close()
		ctx := context.Background()

		require.NoError(t, s.Put(ctx, Doc("a", 10), Doc("b", 20), Doc("c", 30)))
		got, err := s.Get(ctx, "b")
		require.NoError(t, err)
		assert.Equal(t, Doc("b", 20), got)

		docs, err := s.List(ctx)
		require.NoError(t, err)
		require.Len(t, docs, 3)
		assert.Equal(t, []string{"a", "b", "c"}, ids(docs))

		n, err := s.Count(ctx)
		require.NoError(t, err)
		assert.Equal(t, 3, n)
	})

	t.Run("PutReplacesInPlace", func(t *testing.T) {
		s := newStore(t)
		defer s.Close()
		ctx := context.Background()

		require.NoError(t, s.Put(ctx, Doc("a", 10), Doc("b", 20)))
		require.NoError(t, s.Put(ctx, Doc("a", 99)))

		docs, err := s.List(ctx)
		require.NoError(t, err)
		assert.Equal(t, []string{"a", "b"}, ids(docs))
		assert.Equal(t, 99.0, docs[0].OverallScore)
	})

	t.Run("NotFound", func(t *testing.T) {
		s := newStore(t)
		defer s.Close()
		ctx := context.Background()

		_, err := s.Get(ctx, "missing")
		assert.ErrorIs(t, err, apperrors.ErrDocumentNotFound)
		assert.ErrorIs(t, s.Delete(ctx, "missing"), apperrors.ErrDocumentNotFound)
	})

	t.Run("Delete", func(t *testing.T) {
		s := newStore(t)
		defer s.Close()
		ctx := context.Background()

		require.NoError(t, s.Put(ctx, Doc("a", 1), Doc("b", 2)))
		require.NoError(t, s.Delete(ctx, "a"))
		docs, err := s.List(ctx)
		require.NoError(t, err)
		assert.Equal(t, []string{"b"}, ids(docs))
	})

	t.Run("ReplaceAll", func(t *testing.T) {
		s := newStore(t)
		defer s.Close()
		ctx := context.Background()

		require.NoError(t, s.Put(ctx, Doc("old", 1)))
		require.NoError(t, s.ReplaceAll(ctx, []document.Document{Doc("x", 5), Doc("y", 6)}))
		docs, err := s.List(ctx)
		require.NoError(t, err)
		assert.Equal(t, []string{"x", "y"}, ids(docs))

		require.NoError(t, s.ReplaceAll(ctx, nil))
		n, err := s.Count(ctx)
		require.NoError(t, err)
		assert.Zero(t, n)
	})

	t.Run("Workspace", func(t *testing.T) {
		s := newStore(t)
		defer s.Close()
		ctx := context.Background()

		info, err := s.Workspace(ctx)
		require.NoError(t, err)
		assert.NotEmpty(t, info.Name)
		assert.Nil(t, info.LastBackupAt)

		at := time.Date(2026, 6, 1, 10, 0, 0, 0, time.UTC)
		require.NoError(t, s.MarkBackup(ctx, at))
		info, err = s.Workspace(ctx)
		require.NoError(t, err)
		require.NotNil(t, info.LastBackupAt)
		assert.True(t, at.Equal(*info.LastBackupAt))
	})

	t.Run("AuditNewestFirst", func(t *testing.T) {
		s := newStore(t)
		defer s.Close()
		ctx := context.Background()

		base := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
		for i := 0; i < 5; i++ {
			require.NoError(t, s.AppendAudit(ctx, store.AuditEntry{
				ID:      fmt.Sprintf("e%d", i),
				Action:  store.ActionIngest,
				Actor:   "cli",
				Target:  fmt.Sprintf("doc-%d", i),
				At:      base.Add(time.Duration(i) * time.Minute),
				Details: map[string]string{"n": fmt.Sprint(i)},
			}))
		}
		entries, err := s.ListAudit(ctx, 3)
		require.NoError(t, err)
		require.Len(t, entries, 3)
		assert.Equal(t, "e4", entries[0].ID)
		assert.Equal(t, "e2", entries[2].ID)
		assert.Equal(t, "4", entries[0].Details["n"])
	})

	t.Run("Snapshots", func(t *testing.T) {
		s := newStore(t)
		defer s.Close()
		ctx := context.Background()

		base := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
		for i := 0; i < 3; i++ {
			body, _ := json.Marshal(map[string]int{"i": i})
			require.NoError(t, s.SaveSnapshot(ctx, store.Snapshot{
				ID:          fmt.Sprintf("r%d", i),
				Type:        "metrics",
				Name:        "METRICS Report",
				GeneratedAt: base.Add(time.Duration(i) * time.Hour),
				Body:        body,
			}))
		}
		snaps, err := s.ListSnapshots(ctx, 2)
		require.NoError(t, err)
		require.Len(t, snaps, 2)
		assert.Equal(t, "r2", snaps[0].ID)
		assert.JSONEq(t, `{"i":2}`, string(snaps[0].Body))
	})

	t.Run("Ping", func(t *testing.T) {
		s := newStore(t)
		defer s.Close()
		assert.NoError(t, s.Ping(context.Background()))
	})
}

func ids(docs []document.Document) []string {
	out := make([]string, len(docs))
	for i, d := range docs {
		out[i] = d.ID
	}
	return out
}
