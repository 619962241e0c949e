package reporting

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adrian-1-cardona/DocPulse/internal/store"
	"github.com/adrian-1-cardona/DocPulse/internal/store/memory"
)

type failingRecorder struct {
	snapshotErr error
	auditErr    error
	audits      int
}

func (f *failingRecorder) SaveSnapshot(context.Context, store.Snapshot) error { return f.snapshotErr }

func (f *failingRecorder) AppendAudit(context.Context, store.AuditEntry) error {
	f.audits++
	return f.auditErr
}

func TestPersistStoresSnapshotAndAudit(t *testing.T) {
	ctx := context.Background()
	st := memory.New()
	rep := NewGenerator(WithIDGenerator(func() string { return "report-1" })).
		Generate(corpus(), TypeCompliance, "", "cli")

	require.NoError(t, Persist(ctx, st, rep, 3))

	snaps, err := st.ListSnapshots(ctx, 10)
	require.NoError(t, err)
	require.Len(t, snaps, 1)
	assert.Equal(t, "report-1", snaps[0].ID)
	assert.Equal(t, "compliance", snaps[0].Type)

	var decoded Report
	require.NoError(t, json.Unmarshal(snaps[0].Body, &decoded))
	require.NotNil(t, decoded.Compliance)
	assert.Equal(t, 2, decoded.Compliance.Unreviewed)

	entries, err := st.ListAudit(ctx, 10)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, store.ActionReport, entries[0].Action)
	assert.Equal(t, "cli", entries[0].Actor)
	assert.Equal(t, "3", entries[0].Details["documents"])
}

func TestPersistFailures(t *testing.T) {
	rep := NewGenerator().Generate(corpus(), TypeMetrics, "", "cli")

	rec := &failingRecorder{snapshotErr: errors.New("disk full")}
	assert.ErrorContains(t, Persist(context.Background(), rec, rep, 3), "disk full")
	assert.Zero(t, rec.audits)

	rec = &failingRecorder{auditErr: errors.New("audit down")}
	assert.NoError(t, Persist(context.Background(), rec, rep, 3))
	assert.Equal(t, 1, rec.audits)
}
