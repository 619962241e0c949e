package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adrian-1-cardona/DocPulse/internal/ingestion/pipeline"
	"github.com/adrian-1-cardona/DocPulse/internal/scoring"
	"github.com/adrian-1-cardona/DocPulse/internal/searcher/executor"
	"github.com/adrian-1-cardona/DocPulse/internal/store"
	"github.com/adrian-1-cardona/DocPulse/internal/store/memory"
	"github.com/adrian-1-cardona/DocPulse/internal/workspace"
)

const healthyDoc = `---
team: platform
system: deploy
docType: Runbook
criticality: 3
owner: alice
lastReviewedAt: 2024-01-02
views30d: 40
releasesSinceReview: 0
---
# Deploy Runbook
`

const sparseDoc = `---
team: payments
system: ledger
docType: Design
criticality: 5
---
# Orphaned Notes

no owner and never reviewed
`

func writeDocs(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "deploy.md"), []byte(healthyDoc), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.md"), []byte(sparseDoc), 0o644))
	return dir
}

func testPipeline(t *testing.T) *pipeline.Pipeline {
	t.Helper()
	p, err := scoring.ByName("v2")
	require.NoError(t, err)
	return pipeline.New(p)
}

func TestIngestPathsKeepsIDsOnReingest(t *testing.T) {
	ctx := context.Background()
	dir := writeDocs(t)
	st := memory.New()
	pub := newPublisher(st)
	paths := []string{filepath.Join(dir, "deploy.md"), filepath.Join(dir, "notes.md"), filepath.Join(dir, "missing.md")}

	first, err := ingestPaths(ctx, st, testPipeline(t), pub, paths)
	require.NoError(t, err)
	require.Len(t, first, 3)
	require.NotNil(t, first[0].Document)
	require.NotNil(t, first[1].Document)
	assert.Nil(t, first[2].Document)
	assert.NotEmpty(t, first[2].Err)
	assert.Equal(t, "Deploy Runbook", first[0].Document.Title)
	assert.Equal(t, "Orphaned Notes", first[1].Document.Title)

	second, err := ingestPaths(ctx, st, testPipeline(t), pub, paths[:1])
	require.NoError(t, err)
	assert.Equal(t, first[0].Document.ID, second[0].Document.ID)

	n, err := st.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	entries, err := st.ListAudit(ctx, 10)
	require.NoError(t, err)
	require.NotEmpty(t, entries)
	assert.Equal(t, store.ActionIngest, entries[0].Action)
}

func TestRemovePath(t *testing.T) {
	ctx := context.Background()
	dir := writeDocs(t)
	st := memory.New()
	pub := newPublisher(st)
	path := filepath.Join(dir, "notes.md")

	_, err := ingestPaths(ctx, st, testPipeline(t), pub, []string{path})
	require.NoError(t, err)

	n, err := removePath(ctx, st, pub, path)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	n, err = removePath(ctx, st, pub, path)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestPrintOutcomes(t *testing.T) {
	var buf bytes.Buffer
	failed := printOutcomes(&buf, []outcome{
		{Path: "a.md", Err: "validation failed", Fields: map[string]string{"team": "required", "docType": "required"}},
	})
	assert.Equal(t, 1, failed)
	assert.Contains(t, buf.String(), "validation failed; docType: required; team: required")
	assert.Contains(t, buf.String(), "0 scored, 1 failed")
}

func run(t *testing.T, args ...string) string {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	require.NoError(t, rootCmd.ExecuteContext(context.Background()), out.String())
	return out.String()
}

func TestCommandsEndToEnd(t *testing.T) {
	dir := writeDocs(t)
	db := filepath.Join(t.TempDir(), "ws.db")

	out := run(t, "--db", db, "ingest", filepath.Join(dir, "*.md"))
	assert.Contains(t, out, "2 scored, 0 failed")

	out = run(t, "--db", db, "search", "--json", "--filter", "team:equals:platform")
	var res executor.SearchResult
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.Equal(t, 1, res.TotalCount)
	assert.Equal(t, "Deploy Runbook", res.Documents[0].Title)

	out = run(t, "--db", db, "report", "--format", "csv")
	assert.Contains(t, out, "SUMMARY")

	exported := filepath.Join(t.TempDir(), "bundle.json")
	run(t, "--db", db, "export", "-o", exported)
	data, err := os.ReadFile(exported)
	require.NoError(t, err)
	docs, err := workspace.Import(data)
	require.NoError(t, err)
	assert.Len(t, docs, 2)

	other := filepath.Join(t.TempDir(), "other.db")
	out = run(t, "--db", other, "import", exported)
	assert.Contains(t, out, "Imported 2 documents")
}
