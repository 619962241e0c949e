// Package postgres is the store.Store shared by the DocPulse services.
// Documents are stored whole as JSONB; the overall score and owner are
// duplicated into columns for ad-hoc SQL reporting.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/adrian-1-cardona/DocPulse/internal/document"
	"github.com/adrian-1-cardona/DocPulse/internal/store"
	apperrors "github.com/adrian-1-cardona/DocPulse/pkg/errors"
	"github.com/adrian-1-cardona/DocPulse/pkg/postgres"
)

// Schema is applied by New. Every statement is idempotent.
var Schema = []string{
	`CREATE TABLE IF NOT EXISTS documents (
		id            TEXT PRIMARY KEY,
		seq           BIGSERIAL,
		body          JSONB NOT NULL,
		overall_score DOUBLE PRECISION NOT NULL DEFAULT 0,
		owner         TEXT NOT NULL DEFAULT '',
		updated_at    TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS documents_seq_idx ON documents (seq)`,
	`CREATE TABLE IF NOT EXISTS workspace (
		id             SMALLINT PRIMARY KEY CHECK (id = 1),
		name           TEXT NOT NULL,
		created_at     TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at     TIMESTAMPTZ NOT NULL DEFAULT now(),
		last_backup_at TIMESTAMPTZ
	)`,
	`CREATE TABLE IF NOT EXISTS audit_log (
		seq     BIGSERIAL PRIMARY KEY,
		id      TEXT NOT NULL,
		action  TEXT NOT NULL,
		actor   TEXT NOT NULL,
		target  TEXT NOT NULL DEFAULT '',
		at      TIMESTAMPTZ NOT NULL,
		details JSONB
	)`,
	`CREATE TABLE IF NOT EXISTS report_snapshots (
		id           TEXT PRIMARY KEY,
		type         TEXT NOT NULL,
		name         TEXT NOT NULL,
		generated_at TIMESTAMPTZ NOT NULL,
		body         JSONB NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS report_snapshots_generated_idx ON report_snapshots (generated_at DESC)`,
	`INSERT INTO workspace (id, name) VALUES (1, 'DocPulse Workspace') ON CONFLICT (id) DO NOTHING`,
}

type Store struct {
	db *postgres.Client
}

var _ store.Store = (*Store)(nil)

// New migrates the schema and returns a Store over db.
func New(ctx context.Context, db *postgres.Client) (*Store, error) {
	if err := db.Migrate(ctx, Schema); err != nil {
		return nil, fmt.Errorf("migrating document store: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) List(ctx context.Context) ([]document.Document, error) {
	rows, err := s.db.DB.QueryContext(ctx, `SELECT body FROM documents ORDER BY seq`)
	if err != nil {
		return nil, fmt.Errorf("listing documents: %w", err)
	}
	defer rows.Close()

	docs := []document.Document{}
	for rows.Next() {
		var body []byte
		if err := rows.Scan(&body); err != nil {
			return nil, fmt.Errorf("scanning document: %w", err)
		}
		var doc document.Document
		if err := json.Unmarshal(body, &doc); err != nil {
			return nil, fmt.Errorf("decoding document: %w", err)
		}
		docs = append(docs, doc)
	}
	return docs, rows.Err()
}

func (s *Store) Get(ctx context.Context, id string) (document.Document, error) {
	var body []byte
	err := s.db.DB.QueryRowContext(ctx, `SELECT body FROM documents WHERE id = $1`, id).Scan(&body)
	if errors.Is(err, sql.ErrNoRows) {
		return document.Document{}, apperrors.ErrDocumentNotFound
	}
	if err != nil {
		return document.Document{}, fmt.Errorf("reading document %s: %w", id, err)
	}
	var doc document.Document
	if err := json.Unmarshal(body, &doc); err != nil {
		return document.Document{}, fmt.Errorf("decoding document %s: %w", id, err)
	}
	return doc, nil
}

func (s *Store) Put(ctx context.Context, docs ...document.Document) error {
	return s.db.InTx(ctx, func(tx *sql.Tx) error {
		if err := upsert(ctx, tx, docs); err != nil {
			return err
		}
		return touch(ctx, tx)
	})
}

func (s *Store) Delete(ctx context.Context, id string) error {
	return s.db.InTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `DELETE FROM documents WHERE id = $1`, id)
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
	return s.db.InTx(ctx, func(tx *sql.Tx) error {
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
	err := s.db.DB.QueryRowContext(ctx, `SELECT COUNT(*) FROM documents`).Scan(&n)
	return n, err
}

func upsert(ctx context.Context, tx *sql.Tx, docs []document.Document) error {
	for _, d := range docs {
		body, err := json.Marshal(d)
		if err != nil {
			return fmt.Errorf("encoding document %s: %w", d.ID, err)
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO documents (id, body, overall_score, owner, updated_at)
			VALUES ($1, $2, $3, $4, now())
			ON CONFLICT (id) DO UPDATE
			SET body = EXCLUDED.body, overall_score = EXCLUDED.overall_score,
			    owner = EXCLUDED.owner, updated_at = now()`,
			d.ID, body, d.OverallScore, d.Owner)
		if err != nil {
			return fmt.Errorf("writing document %s: %w", d.ID, err)
		}
	}
	return nil
}

func touch(ctx context.Context, tx *sql.Tx) error {
	_, err := tx.ExecContext(ctx, `UPDATE workspace SET updated_at = now() WHERE id = 1`)
	return err
}

func (s *Store) Workspace(ctx context.Context) (store.WorkspaceInfo, error) {
	var (
		info       store.WorkspaceInfo
		lastBackup sql.NullTime
	)
	err := s.db.DB.QueryRowContext(ctx,
		`SELECT name, created_at, updated_at, last_backup_at FROM workspace WHERE id = 1`,
	).Scan(&info.Name, &info.CreatedAt, &info.UpdatedAt, &lastBackup)
	if err != nil {
		return info, fmt.Errorf("reading workspace: %w", err)
	}
	info.CreatedAt = info.CreatedAt.UTC()
	info.UpdatedAt = info.UpdatedAt.UTC()
	if lastBackup.Valid {
		t := lastBackup.Time.UTC()
		info.LastBackupAt = &t
	}
	return info, nil
}

func (s *Store) MarkBackup(ctx context.Context, at time.Time) error {
	_, err := s.db.DB.ExecContext(ctx, `UPDATE workspace SET last_backup_at = $1 WHERE id = 1`, at.UTC())
	return err
}

func (s *Store) AppendAudit(ctx context.Context, e store.AuditEntry) error {
	details, err := json.Marshal(e.Details)
	if err != nil {
		return fmt.Errorf("encoding audit details: %w", err)
	}
	return s.db.InTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO audit_log (id, action, actor, target, at, details) VALUES ($1, $2, $3, $4, $5, $6)`,
			e.ID, e.Action, e.Actor, e.Target, e.At.UTC(), details,
		); err != nil {
			return fmt.Errorf("appending audit entry: %w", err)
		}
		_, err := tx.ExecContext(ctx,
			`DELETE FROM audit_log WHERE seq <= (SELECT MAX(seq) FROM audit_log) - $1`, store.MaxAuditEntries)
		return err
	})
}

func (s *Store) ListAudit(ctx context.Context, limit int) ([]store.AuditEntry, error) {
	rows, err := s.db.DB.QueryContext(ctx,
		`SELECT id, action, actor, target, at, details FROM audit_log ORDER BY seq DESC LIMIT $1`, store.Limit(limit))
	if err != nil {
		return nil, fmt.Errorf("listing audit log: %w", err)
	}
	defer rows.Close()

	out := []store.AuditEntry{}
	for rows.Next() {
		var (
			e       store.AuditEntry
			details []byte
		)
		if err := rows.Scan(&e.ID, &e.Action, &e.Actor, &e.Target, &e.At, &details); err != nil {
			return nil, fmt.Errorf("scanning audit entry: %w", err)
		}
		e.At = e.At.UTC()
		if len(details) > 0 {
			if err := json.Unmarshal(details, &e.Details); err != nil {
				return nil, fmt.Errorf("decoding audit details: %w", err)
			}
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *Store) SaveSnapshot(ctx context.Context, snap store.Snapshot) error {
	_, err := s.db.DB.ExecContext(ctx, `
		INSERT INTO report_snapshots (id, type, name, generated_at, body)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE SET body = EXCLUDED.body, generated_at = EXCLUDED.generated_at`,
		snap.ID, snap.Type, snap.Name, snap.GeneratedAt.UTC(), []byte(snap.Body))
	if err != nil {
		return fmt.Errorf("saving report snapshot: %w", err)
	}
	return nil
}

func (s *Store) ListSnapshots(ctx context.Context, limit int) ([]store.Snapshot, error) {
	rows, err := s.db.DB.QueryContext(ctx,
		`SELECT id, type, name, generated_at, body FROM report_snapshots ORDER BY generated_at DESC LIMIT $1`,
		store.Limit(limit))
	if err != nil {
		return nil, fmt.Errorf("listing report snapshots: %w", err)
	}
	defer rows.Close()

	out := []store.Snapshot{}
	for rows.Next() {
		var (
			snap store.Snapshot
			body []byte
		)
		if err := rows.Scan(&snap.ID, &snap.Type, &snap.Name, &snap.GeneratedAt, &body); err != nil {
			return nil, fmt.Errorf("scanning report snapshot: %w", err)
		}
		snap.GeneratedAt = snap.GeneratedAt.UTC()
		snap.Body = json.RawMessage(body)
		out = append(out, snap)
	}
	return out, rows.Err()
}

func (s *Store) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}

// Close is a no-op; the shared postgres.Client is closed by its owner.
func (s *Store) Close() error {
	return nil
}
