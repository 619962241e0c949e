// Package store defines the persistence contract for the DocPulse corpus.
// Ingestion writes through it, search and reporting read from it, and
// workspace import replaces it. Backends live in sub-packages: memory for
// tests, sqlite for the local CLI and postgres for the services.
package store

import (
	"context"
	"encoding/json"
	"time"

	"github.com/adrian-1-cardona/DocPulse/internal/document"
)

// MaxAuditEntries is how many audit entries a workspace keeps. Older
// entries are discarded on append.
const MaxAuditEntries = 10000

// Audit actions.
const (
	ActionIngest   = "document.ingest"
	ActionDelete   = "document.delete"
	ActionImport   = "workspace.import"
	ActionExport   = "workspace.export"
	ActionReport   = "report.generate"
	ActionKeyAdmin = "keys.manage"
)

// AuditEntry records who did what to the workspace.
type AuditEntry struct {
	ID      string            `json:"id"`
	Action  string            `json:"action"`
	Actor   string            `json:"actor"`
	Target  string            `json:"target,omitempty"`
	At      time.Time         `json:"at"`
	Details map[string]string `json:"details,omitempty"`
}

// WorkspaceInfo describes the workspace itself.
type WorkspaceInfo struct {
	Name         string     `json:"name"`
	CreatedAt    time.Time  `json:"createdAt"`
	UpdatedAt    time.Time  `json:"updatedAt"`
	LastBackupAt *time.Time `json:"lastBackupAt,omitempty"`
}

// Snapshot is a persisted report. Body is the rendered JSON report.
type Snapshot struct {
	ID          string          `json:"id"`
	Type        string          `json:"type"`
	Name        string          `json:"name"`
	GeneratedAt time.Time       `json:"generatedAt"`
	Body        json.RawMessage `json:"body"`
}

// Store persists the corpus and its workspace records. Implementations must
// be safe for concurrent use. List returns documents in insertion order so
// relevance sort is stable across backends.
type Store interface {
	List(ctx context.Context) ([]document.Document, error)
	// Get returns apperrors.ErrDocumentNotFound for unknown IDs.
	Get(ctx context.Context, id string) (document.Document, error)
	// Put inserts or replaces documents by ID.
	Put(ctx context.Context, docs ...document.Document) error
	// Delete returns apperrors.ErrDocumentNotFound for unknown IDs.
	Delete(ctx context.Context, id string) error
	// ReplaceAll swaps the whole corpus atomically.
	ReplaceAll(ctx context.Context, docs []document.Document) error
	Count(ctx context.Context) (int, error)

	Workspace(ctx context.Context) (WorkspaceInfo, error)
	MarkBackup(ctx context.Context, at time.Time) error

	// AppendAudit adds an entry and trims the log to MaxAuditEntries.
	AppendAudit(ctx context.Context, entry AuditEntry) error
	// ListAudit returns up to limit entries, newest first.
	ListAudit(ctx context.Context, limit int) ([]AuditEntry, error)

	SaveSnapshot(ctx context.Context, snap Snapshot) error
	// ListSnapshots returns up to limit snapshots, newest first.
	ListSnapshots(ctx context.Context, limit int) ([]Snapshot, error)

	Ping(ctx context.Context) error
	Close() error
}

// DefaultWorkspaceName names a freshly created workspace.
const DefaultWorkspaceName = "DocPulse Workspace"

// DefaultListLimit applies when a listing is asked for a non-positive limit.
const DefaultListLimit = 100

// Limit normalises a caller-supplied listing limit.
func Limit(n int) int {
	if n <= 0 {
		return DefaultListLimit
	}
	return n
}
