// Package memory is an in-process store.Store used by tests and by the CLI
// when no database file is configured.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/adrian-1-cardona/DocPulse/internal/document"
	"github.com/adrian-1-cardona/DocPulse/internal/store"
	apperrors "github.com/adrian-1-cardona/DocPulse/pkg/errors"
)

type Store struct {
	mu        sync.RWMutex
	order     []string
	docs      map[string]document.Document
	info      store.WorkspaceInfo
	audit     []store.AuditEntry
	snapshots []store.Snapshot
	now       func() time.Time
}

var _ store.Store = (*Store)(nil)

func New() *Store {
	now := time.Now().UTC()
	return &Store{
		docs: make(map[string]document.Document),
		info: store.WorkspaceInfo{Name: store.DefaultWorkspaceName, CreatedAt: now, UpdatedAt: now},
		now:  func() time.Time { return time.Now().UTC() },
	}
}

func (s *Store) List(_ context.Context) ([]document.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]document.Document, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.docs[id])
	}
	return out, nil
}

func (s *Store) Get(_ context.Context, id string) (document.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	doc, ok := s.docs[id]
	if !ok {
		return document.Document{}, apperrors.ErrDocumentNotFound
	}
	return doc, nil
}

func (s *Store) Put(_ context.Context, docs ...document.Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, d := range docs {
		if _, exists := s.docs[d.ID]; !exists {
			s.order = append(s.order, d.ID)
		}
		s.docs[d.ID] = d
	}
	s.info.UpdatedAt = s.now()
	return nil
}

func (s *Store) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.docs[id]; !ok {
		return apperrors.ErrDocumentNotFound
	}
	delete(s.docs, id)
	for i, v := range s.order {
		if v == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	s.info.UpdatedAt = s.now()
	return nil
}

func (s *Store) ReplaceAll(_ context.Context, docs []document.Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.docs = make(map[string]document.Document, len(docs))
	s.order = s.order[:0]
	for _, d := range docs {
		if _, exists := s.docs[d.ID]; !exists {
			s.order = append(s.order, d.ID)
		}
		s.docs[d.ID] = d
	}
	s.info.UpdatedAt = s.now()
	return nil
}

func (s *Store) Count(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.docs), nil
}

func (s *Store) Workspace(_ context.Context) (store.WorkspaceInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.info, nil
}

func (s *Store) MarkBackup(_ context.Context, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t := at.UTC()
	s.info.LastBackupAt = &t
	return nil
}

func (s *Store) AppendAudit(_ context.Context, entry store.AuditEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.audit = append(s.audit, entry)
	if over := len(s.audit) - store.MaxAuditEntries; over > 0 {
		s.audit = append(s.audit[:0:0], s.audit[over:]...)
	}
	return nil
}

func (s *Store) ListAudit(_ context.Context, limit int) ([]store.AuditEntry, error) {
	limit = store.Limit(limit)
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]store.AuditEntry, 0, min(limit, len(s.audit)))
	for i := len(s.audit) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, s.audit[i])
	}
	return out, nil
}

func (s *Store) SaveSnapshot(_ context.Context, snap store.Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snapshots = append(s.snapshots, snap)
	return nil
}

func (s *Store) ListSnapshots(_ context.Context, limit int) ([]store.Snapshot, error) {
	s.mu.RLock()
	out := make([]store.Snapshot, len(s.snapshots))
	copy(out, s.snapshots)
	s.mu.RUnlock()

	sort.SliceStable(out, func(i, j int) bool { return out[i].GeneratedAt.After(out[j].GeneratedAt) })
	if limit = store.Limit(limit); len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *Store) Ping(context.Context) error { return nil }

func (s *Store) Close() error { return nil }
