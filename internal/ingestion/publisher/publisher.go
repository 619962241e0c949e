// Package publisher persists scored documents and announces corpus changes
// on Kafka so searchers can drop stale cache entries. Storage is the source
// of truth: a failed publish is logged and retried, never rolled back.
package publisher

import (
	"context"
	"log/slog"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/adrian-1-cardona/DocPulse/internal/document"
	"github.com/adrian-1-cardona/DocPulse/internal/ingestion"
	"github.com/adrian-1-cardona/DocPulse/internal/store"
	"github.com/adrian-1-cardona/DocPulse/pkg/kafka"
	"github.com/adrian-1-cardona/DocPulse/pkg/metrics"
	"github.com/adrian-1-cardona/DocPulse/pkg/resilience"
)

// EventPublisher is the subset of kafka.Producer the publisher needs.
type EventPublisher interface {
	Publish(ctx context.Context, event kafka.Event) error
}

// Publisher coordinates persistence, events, audit entries and metrics.
type Publisher struct {
	store   store.Store
	events  EventPublisher
	metrics *metrics.Metrics
	retry   resilience.RetryConfig
	now     func() time.Time
	logger  *slog.Logger
}

// New creates a Publisher. events and m may be nil.
func New(st store.Store, events EventPublisher, m *metrics.Metrics) *Publisher {
	return &Publisher{
		store:   st,
		events:  events,
		metrics: m,
		retry:   resilience.RetryConfig{MaxAttempts: 3, InitialDelay: 100 * time.Millisecond},
		now:     func() time.Time { return time.Now().UTC() },
		logger:  slog.Default().With("component", "publisher"),
	}
}

// Store returns the underlying store.
func (p *Publisher) Store() store.Store {
	return p.store
}

// Ingested stores docs and emits one document.ingested event.
func (p *Publisher) Ingested(ctx context.Context, actor string, docs ...document.Document) error {
	if len(docs) == 0 {
		return nil
	}
	if err := p.store.Put(ctx, docs...); err != nil {
		p.reject("storage", len(docs))
		return err
	}

	ids := make([]string, len(docs))
	scores := make([]float64, len(docs))
	for i, d := range docs {
		ids[i] = d.ID
		scores[i] = d.OverallScore
		p.observe(d)
		p.audit(ctx, store.ActionIngest, actor, d.ID, map[string]string{
			"title":  d.Title,
			"policy": d.Policy,
		})
	}
	p.publish(ctx, ingestion.DocumentEvent{
		Type:        ingestion.EventDocumentsIngested,
		DocumentIDs: ids,
		Count:       len(docs),
		Policy:      docs[0].Policy,
		Scores:      scores,
		OccurredAt:  p.now(),
	})
	return nil
}

// Imported replaces the corpus and emits workspace.imported.
func (p *Publisher) Imported(ctx context.Context, actor string, docs []document.Document) error {
	if err := p.store.ReplaceAll(ctx, docs); err != nil {
		return err
	}
	p.audit(ctx, store.ActionImport, actor, "", map[string]string{"documents": strconv.Itoa(len(docs))})
	p.publish(ctx, ingestion.DocumentEvent{
		Type:       ingestion.EventWorkspaceImported,
		Count:      len(docs),
		OccurredAt: p.now(),
	})
	return nil
}

// Deleted removes one document and emits document.deleted.
func (p *Publisher) Deleted(ctx context.Context, actor, id string) error {
	if err := p.store.Delete(ctx, id); err != nil {
		return err
	}
	p.audit(ctx, store.ActionDelete, actor, id, nil)
	p.publish(ctx, ingestion.DocumentEvent{
		Type:        ingestion.EventDocumentDeleted,
		DocumentIDs: []string{id},
		Count:       1,
		OccurredAt:  p.now(),
	})
	return nil
}

// Exported records an export in the audit trail.
func (p *Publisher) Exported(ctx context.Context, actor string, count int) {
	p.audit(ctx, store.ActionExport, actor, "", map[string]string{"documents": strconv.Itoa(count)})
}

// Rejected counts batch items that failed validation.
func (p *Publisher) Rejected(n int) {
	p.reject("validation", n)
}

func (p *Publisher) publish(ctx context.Context, ev ingestion.DocumentEvent) {
	if p.events == nil {
		return
	}
	event := kafka.Event{Key: ev.Type, Value: ev}
	err := resilience.Retry(ctx, "publish-document-event", p.retry, func() error {
		return p.events.Publish(ctx, event)
	})
	if err != nil {
		p.logger.Error("failed to publish document event, search caches may serve stale results until TTL",
			"type", ev.Type,
			"count", ev.Count,
			"error", err,
		)
	}
}

func (p *Publisher) audit(ctx context.Context, action, actor, target string, details map[string]string) {
	if actor == "" {
		actor = "anonymous"
	}
	err := p.store.AppendAudit(ctx, store.AuditEntry{
		ID:      uuid.New().String(),
		Action:  action,
		Actor:   actor,
		Target:  target,
		At:      p.now(),
		Details: details,
	})
	if err != nil {
		p.logger.Warn("failed to append audit entry", "action", action, "target", target, "error", err)
	}
}

func (p *Publisher) observe(d document.Document) {
	if p.metrics == nil {
		return
	}
	p.metrics.DocumentsIngested.WithLabelValues(d.Policy).Inc()
	p.metrics.OverallScore.WithLabelValues(d.Policy).Observe(d.OverallScore)
	for _, s := range d.Signals {
		p.metrics.SignalsTotal.WithLabelValues(string(s.Type)).Inc()
	}
}

func (p *Publisher) reject(reason string, n int) {
	if p.metrics == nil || n == 0 {
		return
	}
	p.metrics.DocumentsRejected.WithLabelValues(reason).Add(float64(n))
}
