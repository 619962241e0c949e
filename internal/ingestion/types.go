// Package ingestion defines the request and response types of the document
// ingestion API and the Kafka event schemas it publishes.
package ingestion

import (
	"time"

	"github.com/adrian-1-cardona/DocPulse/internal/document"
)

// FileInfo describes the uploaded file. Content is never sent to the
// service; only what scoring and intake validation need.
type FileInfo struct {
	Name         string    `json:"name"`
	Size         int64     `json:"size"`
	LastModified time.Time `json:"lastModified"`
}

// IngestRequest is the JSON body of a single-document ingest. Dates are
// accepted as YYYY-MM-DD or RFC 3339.
type IngestRequest struct {
	Title               string    `json:"title"`
	Team                string    `json:"team"`
	System              string    `json:"system"`
	DocType             string    `json:"docType"`
	Criticality         int       `json:"criticality"`
	Owner               string    `json:"owner,omitempty"`
	LastReviewedAt      string    `json:"lastReviewedAt,omitempty"`
	Views30d            *int      `json:"views30d,omitempty"`
	ReleasesSinceReview *int      `json:"releasesSinceReview,omitempty"`
	SourceFile          string    `json:"sourceFile,omitempty"`
	File                *FileInfo `json:"file,omitempty"`
}

// BatchRequest is the body of POST /api/v1/documents/batch.
type BatchRequest struct {
	Documents []IngestRequest `json:"documents"`
}

// ItemResult is the outcome of one batch item. Exactly one of Document and
// Error is set.
type ItemResult struct {
	Index    int                `json:"index"`
	Document *document.Document `json:"document,omitempty"`
	Error    string             `json:"error,omitempty"`
	Fields   map[string]string  `json:"fields,omitempty"`
}

// BatchResponse lists item results in input order.
type BatchResponse struct {
	Results   []ItemResult `json:"results"`
	Succeeded int          `json:"succeeded"`
	Failed    int          `json:"failed"`
}

// ImportResponse is returned after a workspace import.
type ImportResponse struct {
	Imported int `json:"imported"`
}

// Document event types carried on the document-events topic.
const (
	EventDocumentsIngested = "document.ingested"
	EventDocumentDeleted   = "document.deleted"
	EventWorkspaceImported = "workspace.imported"
)

// DocumentEvent tells downstream services the corpus changed. Searchers
// drop cached results on any event; analytics counts them.
type DocumentEvent struct {
	Type        string    `json:"type"`
	DocumentIDs []string  `json:"document_ids,omitempty"`
	Count       int       `json:"count"`
	Policy      string    `json:"policy,omitempty"`
	Scores      []float64 `json:"scores,omitempty"`
	OccurredAt  time.Time `json:"occurred_at"`
}
