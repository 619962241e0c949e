// Package workspace serialises the corpus for export and reads it back on
// import. It also defines the full backup format, which adds workspace
// metadata and the audit log to the exported documents.
package workspace

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/adrian-1-cardona/DocPulse/internal/document"
	"github.com/adrian-1-cardona/DocPulse/internal/store"
	apperrors "github.com/adrian-1-cardona/DocPulse/pkg/errors"
)

// Version is the bundle format version written on export.
const Version = "1.0"

// Bundle is the export payload.
type Bundle struct {
	Version       string              `json:"version"`
	ExportedAt    time.Time           `json:"exportedAt"`
	DocumentCount int                 `json:"documentCount"`
	Documents     []document.Document `json:"documents"`
}

// Export wraps docs in a Bundle. A nil corpus exports as an empty list.
func Export(docs []document.Document, now time.Time) Bundle {
	if docs == nil {
		docs = []document.Document{}
	}
	return Bundle{
		Version:       Version,
		ExportedAt:    now.UTC(),
		DocumentCount: len(docs),
		Documents:     docs,
	}
}

// Marshal renders a bundle as indented JSON.
func Marshal(b Bundle) ([]byte, error) {
	return json.MarshalIndent(b, "", "  ")
}

// ImportOption configures Import.
type ImportOption func(*importer)

type importer struct {
	newID func() string
}

// WithIDGenerator replaces the uuid generator used for documents imported
// without an id.
func WithIDGenerator(fn func() string) ImportOption {
	return func(im *importer) { im.newID = fn }
}

// Import parses an export payload and returns its documents. Anything other
// than an object with a "documents" array is a FormatError. A bundle from a
// different major version is rejected with ErrSchemaVersion; a version that is
// not a string is ignored. Documents are not validated field by field, but one
// without an id is given a fresh one so it stays addressable.
func Import(data []byte, opts ...ImportOption) ([]document.Document, error) {
	im := importer{newID: uuid.NewString}
	for _, opt := range opts {
		opt(&im)
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, apperrors.Format("failed to import workspace: %v", err)
	}
	if v, ok := raw["version"]; ok {
		var version string
		if json.Unmarshal(v, &version) == nil {
			if err := CheckVersion(version); err != nil {
				return nil, err
			}
		}
	}

	docsRaw, ok := raw["documents"]
	if !ok || !isArray(docsRaw) {
		return nil, apperrors.Format("invalid workspace format: missing documents array")
	}
	var docs []document.Document
	if err := json.Unmarshal(docsRaw, &docs); err != nil {
		return nil, apperrors.Format("invalid workspace format: %v", err)
	}
	for i := range docs {
		if strings.TrimSpace(docs[i].ID) == "" {
			docs[i].ID = im.newID()
		}
	}
	return docs, nil
}

// CheckVersion accepts any version sharing Version's major number. An empty
// version is treated as 1.x.
func CheckVersion(v string) error {
	if v == "" {
		return nil
	}
	if major(v) != major(Version) {
		return apperrors.Newf(apperrors.ErrSchemaVersion, http.StatusConflict, "workspace version %s is not compatible with %s", v, Version)
	}
	return nil
}

func major(v string) int {
	head, _, _ := strings.Cut(strings.TrimPrefix(v, "v"), ".")
	n, err := strconv.Atoi(head)
	if err != nil {
		return -1
	}
	return n
}

func isArray(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) > 0 && trimmed[0] == '['
}

// Backup is the full persisted workspace.
type Backup struct {
	Version      string              `json:"version"`
	Workspace    store.WorkspaceInfo `json:"workspace"`
	Documents    []document.Document `json:"documents"`
	AuditLogs    []store.AuditEntry  `json:"auditLogs"`
	LastBackupAt time.Time           `json:"lastBackupAt"`
}

// TakeBackup reads everything from st and marks the backup time.
func TakeBackup(ctx context.Context, st store.Store, now time.Time) (Backup, error) {
	docs, err := st.List(ctx)
	if err != nil {
		return Backup{}, fmt.Errorf("listing documents: %w", err)
	}
	info, err := st.Workspace(ctx)
	if err != nil {
		return Backup{}, err
	}
	audit, err := st.ListAudit(ctx, store.MaxAuditEntries)
	if err != nil {
		return Backup{}, err
	}
	// Stored newest first; a backup reads oldest first so restore can replay.
	for i, j := 0, len(audit)-1; i < j; i, j = i+1, j-1 {
		audit[i], audit[j] = audit[j], audit[i]
	}
	if err := st.MarkBackup(ctx, now); err != nil {
		return Backup{}, err
	}
	t := now.UTC()
	info.LastBackupAt = &t
	return Backup{
		Version:      Version,
		Workspace:    info,
		Documents:    docs,
		AuditLogs:    audit,
		LastBackupAt: t,
	}, nil
}

// Restore replaces the corpus and replays the audit log from b.
func Restore(ctx context.Context, st store.Store, b Backup) error {
	if err := CheckVersion(b.Version); err != nil {
		return err
	}
	if b.Documents == nil {
		return apperrors.Format("invalid backup format: missing documents array")
	}
	if err := st.ReplaceAll(ctx, b.Documents); err != nil {
		return fmt.Errorf("restoring documents: %w", err)
	}
	audit := b.AuditLogs
	if over := len(audit) - store.MaxAuditEntries; over > 0 {
		audit = audit[over:]
	}
	for _, e := range audit {
		if err := st.AppendAudit(ctx, e); err != nil {
			return fmt.Errorf("restoring audit log: %w", err)
		}
	}
	return nil
}
