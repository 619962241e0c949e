// Package document holds the DocPulse domain model: the metadata supplied at
// upload, the risk signals derived from it, and the scored Document record
// that search and reporting read.
package document

import (
	"strings"
	"time"
)

// DocType is the closed set of document kinds.
type DocType string

const (
	DocTypeRunbook    DocType = "Runbook"
	DocTypeAPI        DocType = "API"
	DocTypeDesign     DocType = "Design"
	DocTypeOnboarding DocType = "Onboarding"
	DocTypeRFC        DocType = "RFC"
	DocTypePlaybook   DocType = "Playbook"
)

// DocTypes lists every valid DocType in display order.
var DocTypes = []DocType{
	DocTypeRunbook, DocTypeAPI, DocTypeDesign, DocTypeOnboarding, DocTypeRFC, DocTypePlaybook,
}

// ParseDocType matches s case-insensitively against the known doc types.
func ParseDocType(s string) (DocType, bool) {
	for _, dt := range DocTypes {
		if strings.EqualFold(string(dt), strings.TrimSpace(s)) {
			return dt, true
		}
	}
	return "", false
}

// Category is the coarse grouping shown next to a document.
type Category string

const (
	CategoryRunbook      Category = "runbook"
	CategoryArchitecture Category = "architecture"
	CategoryGlossary     Category = "glossary"
	CategoryAPIDocs      Category = "api-docs"
	CategoryGuide        Category = "guide"
)

// CategoryFor maps a doc type to its category. Unknown types are guides.
func CategoryFor(dt DocType) Category {
	switch dt {
	case DocTypeAPI:
		return CategoryAPIDocs
	case DocTypeDesign, DocTypeRFC:
		return CategoryArchitecture
	default:
		return CategoryGuide
	}
}

// Metadata is what the uploader tells us about a document. Optional fields
// are pointers or empty strings; absence is meaningful and drives signals.
type Metadata struct {
	Title               string     `json:"title"`
	Team                string     `json:"team"`
	System              string     `json:"system"`
	DocType             DocType    `json:"docType"`
	Criticality         int        `json:"criticality"`
	Owner               string     `json:"owner,omitempty"`
	LastReviewedAt      *time.Time `json:"lastReviewedAt,omitempty"`
	Views30d            *int       `json:"views30d,omitempty"`
	ReleasesSinceReview *int       `json:"releasesSinceReview,omitempty"`
	SourceFile          string     `json:"sourceFile,omitempty"`
	UploadedAt          *time.Time `json:"uploadedAt,omitempty"`
}

// HasOwner reports whether an owner is recorded.
func (m Metadata) HasOwner() bool {
	return strings.TrimSpace(m.Owner) != ""
}

// Reviewed reports whether a review date is recorded.
func (m Metadata) Reviewed() bool {
	return m.LastReviewedAt != nil
}

// Views returns views30d, zero when absent.
func (m Metadata) Views() int {
	if m.Views30d == nil {
		return 0
	}
	return *m.Views30d
}

// Releases returns releasesSinceReview, zero when absent.
func (m Metadata) Releases() int {
	if m.ReleasesSinceReview == nil {
		return 0
	}
	return *m.ReleasesSinceReview
}

// DaysSinceReview returns whole days between the last review and now, and
// false when the document was never reviewed.
func (m Metadata) DaysSinceReview(now time.Time) (int, bool) {
	if m.LastReviewedAt == nil {
		return 0, false
	}
	return int(now.Sub(*m.LastReviewedAt) / (24 * time.Hour)), true
}

// Clone returns a deep copy so callers can never mutate shared pointers.
func (m Metadata) Clone() Metadata {
	out := m
	if m.LastReviewedAt != nil {
		t := *m.LastReviewedAt
		out.LastReviewedAt = &t
	}
	if m.UploadedAt != nil {
		t := *m.UploadedAt
		out.UploadedAt = &t
	}
	if m.Views30d != nil {
		v := *m.Views30d
		out.Views30d = &v
	}
	if m.ReleasesSinceReview != nil {
		v := *m.ReleasesSinceReview
		out.ReleasesSinceReview = &v
	}
	return out
}

// Document is a scored document: the unit stored in the corpus, searched,
// aggregated, exported and imported.
type Document struct {
	ID                 string          `json:"id"`
	Title              string          `json:"title"`
	Path               string          `json:"path"`
	OverallScore       float64         `json:"overallScore"`
	StabilityScore     float64         `json:"stabilityScore"`
	CodeAlignmentScore float64         `json:"codeAlignmentScore"`
	InfoDemandScore    float64         `json:"infoDemandScore"`
	OwnershipScore     float64         `json:"ownershipScore"`
	Breakdown          *ScoreBreakdown `json:"breakdown,omitempty"`
	Policy             string          `json:"policy,omitempty"`
	LastUpdated        string          `json:"lastUpdated"`
	Owner              string          `json:"owner"`
	Category           Category        `json:"category"`
	Reasons            []string        `json:"reasons"`
	Recommendations    []string        `json:"recommendations"`
	SlackQuestions     int             `json:"slackQuestions"`
	CodeChanges        int             `json:"codeChanges"`
	Metadata           *Metadata       `json:"metadata,omitempty"`
	Signals            []Signal        `json:"signals,omitempty"`
	RecentlyAdded      bool            `json:"recentlyAdded"`
	AddedAt            *time.Time      `json:"addedAt,omitempty"`
}

// UnassignedOwner is the owner recorded when metadata has none.
const UnassignedOwner = "Unassigned"

// LastUpdatedLayout is the date format of Document.LastUpdated.
const LastUpdatedLayout = "2006-01-02"

// Risk returns the document's risk level from its overall score.
func (d Document) Risk() RiskLevel {
	return RiskFor(d.OverallScore)
}
