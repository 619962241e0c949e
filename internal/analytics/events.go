package analytics

import "time"

type EventType string

const (
	EventSearch     EventType = "search"
	EventCacheHit   EventType = "cache_hit"
	EventCacheMiss  EventType = "cache_miss"
	EventZeroResult EventType = "zero_result"
	EventReport     EventType = "report_generated"
)

// SearchEvent describes one executed search. Query is the human-readable
// description so filters show up in top-query listings.
type SearchEvent struct {
	Type         EventType `json:"type"`
	Query        string    `json:"query"`
	Terms        []string  `json:"terms"`
	FilterFields []string  `json:"filter_fields,omitempty"`
	TotalCount   int       `json:"total_count"`
	Returned     int       `json:"returned"`
	LatencyMs    int64     `json:"latency_ms"`
	CacheHit     bool      `json:"cache_hit"`
	Timestamp    time.Time `json:"timestamp"`
	RequestID    string    `json:"request_id"`
}

// ReportEvent describes one generated report.
type ReportEvent struct {
	Type       EventType `json:"type"`
	ReportType string    `json:"report_type"`
	Documents  int       `json:"documents"`
	Timestamp  time.Time `json:"timestamp"`
	RequestID  string    `json:"request_id"`
}
