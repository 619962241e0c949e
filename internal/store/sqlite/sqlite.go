// Package sqlite is the store.Store used by the docpulse CLI. Documents are
// kept as JSON rows ordered by insertion sequence; the schema version lives
// in PRAGMA user_version.
package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/adrian-1-cardona/DocPulse/internal/document"
	"github.com/adrian-1-cardona/DocPulse/internal/store"
	apperrors "github.com/adrian-1-cardona/DocPulse/pkg/errors"
)

//go:embed migrations/*.sql
var migrations embed.FS

// Timestamps are stored fixed-width so text ordering is chronological.
const tsLayout = "2006-01-02T15:04:05.000000000Z07:00"

type Store struct {
	db   *sql.DB
	path string
}

var _ store.Store = (*Store)(nil)

// Open creates or opens the database at path and applies pending migrations.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating data directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	db.SetMaxOpenConns(1)

	s := &Store{db: db, path: path}
	if err := s.migrate(context.Background()); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrating schema: %w", err)
	}
	return s, nil
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

func (s *Store) migrate(ctx context.Context) error {
	var current int
	if err := s.db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&current); err != nil {
		return fmt.Errorf("reading user_version: %w", err)
	}

	entries, err := fs.ReadDir(migrations, "migrations")
	if err != nil {
		return fmt.Errorf("reading migrations: %w", err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	sort.Strings(names)

	for _, name := range names {
		var version int
		if _, err := fmt.Sscanf(name, "%d_", &version); err != nil || version <= current {
			continue
		}
		body, err := fs.ReadFile(migrations, "migrations/"+name)
		if err != nil {
			return fmt.Errorf("reading migration %s: %w", name, err)
		}
		if _, err := s.db.ExecContext(ctx, string(body)); err != nil {
			return fmt.Errorf("applying migration %s: %w", name, err)
		}
		if _, err := s.db.ExecContext(ctx, fmt.Sprintf("PRAGMA user_version = %d", version)); err != nil {
			return fmt.Errorf("recording migration %s: %w", name, err)
		}
	}

	now := formatTime(time.Now())
	_, err = s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO workspace (id, name, created_at, updated_at) VALUES (1, ?, ?, ?)`,
		store.DefaultWorkspaceName, now, now)
	return err
}

func (s *Store) List(ctx context.Context) ([]document.Document, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT body FROM documents ORDER BY seq`)
	if err != nil {
		return nil, fmt.Errorf("listing documents: %w", err)
	}
	defer rows.Close()

	docs := []document.Document{}
	for rows.Next() {
		var body string
		if err := rows.Scan(&body); err != nil {
			return nil, fmt.Errorf("scanning document: %w", err)
		}
		var doc document.Document
		if err := json.Unmarshal([]byte(body), &doc); err != nil {
			return nil, fmt.Errorf("decoding document: %w", err)
		}
		docs = append(docs, doc)
	}
	return docs, rows.Err()
}

func (s *Store) Get(ctx context.Context, id string) (document.Document, error) {
	var body string
	err := s.db.QueryRowContext(ctx, `SELECT body FROM documents WHERE id = ?`, id).Scan(&body)
	if errors.Is(err, sql.ErrNoRows) {
		return document.Document{}, apperrors.ErrDocumentNotFound
	}
	if err != nil {
		return document.Document{}, fmt.Errorf("reading document %s: %w", id, err)
	}
	var doc document.Document
	if err := json.Unmarshal([]byte(body), &doc); err != nil {
		return document.Document{}, fmt.Errorf("decoding document %s: %w", id, err)
	}
	return doc, nil
}

func (s *Store) Put(ctx context.Context, docs ...document.Document) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		if err := upsert(ctx, tx, docs); err != nil {
			return err
		}
		return touch(ctx, tx)
	})
}

func (s *Store) Delete(ctx context.Context, id string) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `DELETE FROM documents WHERE id = ?`, id)
		if err != nil {
			return fmt.Errorf("deleting document %s: %w", id, err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return apperrors.ErrDocumentNotFound
		}
		return touch(ctx, tx)
	})
}

func (s *Store) ReplaceAll(ctx context.Context, docs []document.Document) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM documents`); err != nil {
			return fmt.Errorf("clearing documents: %w", err)
		}
		if err := upsert(ctx, tx, docs); err != nil {
			return err
		}
		return touch(ctx, tx)
	})
}

func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM documents`).Scan(&n)
	return n, err
}

func upsert(ctx context.Context, tx *sql.Tx, docs []document.Document) error {
	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO documents (id, seq, body)
		VALUES (?, (SELECT COALESCE(MAX(seq), 0) + 1 FROM documents), ?)
		ON CONFLICT (id) DO UPDATE SET body = excluded.body`)
	if err != nil {
		return fmt.Errorf("preparing upsert: %w", err)
	}
	defer stmt.Close()

	for _, d := range docs {
		body, err := json.Marshal(d)
		if err != nil {
			return fmt.Errorf("encoding document %s: %w", d.ID, err)
		}
		if _, err := stmt.ExecContext(ctx, d.ID, string(body)); err != nil {
			return fmt.Errorf("writing document %s: %w", d.ID, err)
		}
	}
	return nil
}

func touch(ctx context.Context, tx *sql.Tx) error {
	_, err := tx.ExecContext(ctx, `UPDATE workspace SET updated_at = ? WHERE id = 1`, formatTime(time.Now()))
	return err
}

func (s *Store) Workspace(ctx context.Context) (store.WorkspaceInfo, error) {
	var (
		info             store.WorkspaceInfo
		created, updated string
		lastBackup       sql.NullString
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT name, created_at, updated_at, last_backup_at FROM workspace WHERE id = 1`,
	).Scan(&info.Name, &created, &updated, &lastBackup)
	if err != nil {
		return info, fmt.Errorf("reading workspace: %w", err)
	}
	info.CreatedAt = parseTime(created)
	info.UpdatedAt = parseTime(updated)
	if lastBackup.Valid {
		t := parseTime(lastBackup.String)
		info.LastBackupAt = &t
	}
	return info, nil
}

func (s *Store) MarkBackup(ctx context.Context, at time.Time) error {
	_, err := s.db.ExecContext(ctx, `UPDATE workspace SET last_backup_at = ? WHERE id = 1`, formatTime(at))
	return err
}

func (s *Store) AppendAudit(ctx context.Context, e store.AuditEntry) error {
	details, err := json.Marshal(e.Details)
	if err != nil {
		return fmt.Errorf("encoding audit details: %w", err)
	}
	return s.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO audit_log (id, action, actor, target, at, details) VALUES (?, ?, ?, ?, ?, ?)`,
			e.ID, e.Action, e.Actor, e.Target, formatTime(e.At), string(details),
		); err != nil {
			return fmt.Errorf("appending audit entry: %w", err)
		}
		_, err := tx.ExecContext(ctx,
			`DELETE FROM audit_log WHERE seq <= (SELECT MAX(seq) FROM audit_log) - ?`, store.MaxAuditEntries)
		return err
	})
}

func (s *Store) ListAudit(ctx context.Context, limit int) ([]store.AuditEntry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, action, actor, target, at, details FROM audit_log ORDER BY seq DESC LIMIT ?`, store.Limit(limit))
	if err != nil {
		return nil, fmt.Errorf("listing audit log: %w", err)
	}
	defer rows.Close()

	out := []store.AuditEntry{}
	for rows.Next() {
		var (
			e       store.AuditEntry
			at      string
			details sql.NullString
		)
		if err := rows.Scan(&e.ID, &e.Action, &e.Actor, &e.Target, &at, &details); err != nil {
			return nil, fmt.Errorf("scanning audit entry: %w", err)
		}
		e.At = parseTime(at)
		if details.Valid && details.String != "null" {
			if err := json.Unmarshal([]byte(details.String), &e.Details); err != nil {
				return nil, fmt.Errorf("decoding audit details: %w", err)
			}
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *Store) SaveSnapshot(ctx context.Context, snap store.Snapshot) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO report_snapshots (id, type, name, generated_at, body) VALUES (?, ?, ?, ?, ?)`,
		snap.ID, snap.Type, snap.Name, formatTime(snap.GeneratedAt), string(snap.Body))
	if err != nil {
		return fmt.Errorf("saving report snapshot: %w", err)
	}
	return nil
}

func (s *Store) ListSnapshots(ctx context.Context, limit int) ([]store.Snapshot, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, type, name, generated_at, body FROM report_snapshots ORDER BY generated_at DESC LIMIT ?`, store.Limit(limit))
	if err != nil {
		return nil, fmt.Errorf("listing report snapshots: %w", err)
	}
	defer rows.Close()

	out := []store.Snapshot{}
	for rows.Next() {
		var (
			snap      store.Snapshot
			generated string
			body      string
		)
		if err := rows.Scan(&snap.ID, &snap.Type, &snap.Name, &generated, &body); err != nil {
			return nil, fmt.Errorf("scanning report snapshot: %w", err)
		}
		snap.GeneratedAt = parseTime(generated)
		snap.Body = json.RawMessage(body)
		out = append(out, snap)
	}
	return out, rows.Err()
}

func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

func formatTime(t time.Time) string {
	return t.UTC().Format(tsLayout)
}

func parseTime(s string) time.Time {
	t, err := time.Parse(tsLayout, strings.TrimSpace(s))
	if err != nil {
		return time.Time{}
	}
	return t
}
