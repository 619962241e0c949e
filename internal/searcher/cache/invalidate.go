package cache

import (
	"context"

	"github.com/adrian-1-cardona/DocPulse/internal/ingestion"
	"github.com/adrian-1-cardona/DocPulse/pkg/kafka"
)

// HandleDocumentEvent is a kafka.MessageHandler for the document events
// topic. Every corpus change invalidates the cache; undecodable messages
// are logged and skipped so one bad record cannot stall the consumer.
func (c *QueryCache) HandleDocumentEvent(ctx context.Context, _ []byte, value []byte) error {
	ev, err := kafka.DecodeJSON[ingestion.DocumentEvent](value)
	if err != nil {
		c.logger.Warn("skipping undecodable document event", "error", err)
		return nil
	}
	switch ev.Type {
	case ingestion.EventDocumentsIngested, ingestion.EventDocumentDeleted, ingestion.EventWorkspaceImported:
	default:
		c.logger.Debug("ignoring document event", "type", ev.Type)
		return nil
	}
	if _, err := c.Invalidate(ctx); err != nil {
		return err
	}
	c.logger.Info("cache invalidated by document event", "type", ev.Type, "count", ev.Count)
	return nil
}
