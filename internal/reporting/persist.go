package reporting

import (
	"context"
	"encoding/json"
	"log/slog"
	"strconv"

	"github.com/google/uuid"

	"github.com/adrian-1-cardona/DocPulse/internal/store"
	apperrors "github.com/adrian-1-cardona/DocPulse/pkg/errors"
)

// Recorder stores report snapshots and audit entries.
type Recorder interface {
	AppendAudit(ctx context.Context, entry store.AuditEntry) error
	SaveSnapshot(ctx context.Context, snap store.Snapshot) error
}

// Persist saves rep as a snapshot and records the generation in the audit
// trail. Only the snapshot write can fail the call.
func Persist(ctx context.Context, rec Recorder, rep Report, documents int) error {
	body, err := json.Marshal(rep)
	if err != nil {
		return apperrors.Computation("encode report: %v", err)
	}
	if err := rec.SaveSnapshot(ctx, store.Snapshot{
		ID:          rep.ID,
		Type:        string(rep.Type),
		Name:        rep.Name,
		GeneratedAt: rep.GeneratedAt,
		Body:        body,
	}); err != nil {
		return err
	}

	if err := rec.AppendAudit(ctx, store.AuditEntry{
		ID:      uuid.NewString(),
		Action:  store.ActionReport,
		Actor:   rep.GeneratedBy,
		Target:  rep.ID,
		At:      rep.GeneratedAt,
		Details: map[string]string{"type": string(rep.Type), "documents": strconv.Itoa(documents)},
	}); err != nil {
		slog.Warn("audit append failed", "action", store.ActionReport, "report_id", rep.ID, "error", err)
	}
	return nil
}
