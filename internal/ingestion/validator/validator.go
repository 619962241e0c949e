// Package validator checks ingestion requests and uploaded file descriptors.
// Failures are returned as a ValidationError listing every bad field, which
// unwraps to apperrors.ErrValidationGap.
package validator

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/adrian-1-cardona/DocPulse/internal/document"
	"github.com/adrian-1-cardona/DocPulse/internal/ingestion"
	"github.com/adrian-1-cardona/DocPulse/pkg/config"
	apperrors "github.com/adrian-1-cardona/DocPulse/pkg/errors"
)

const (
	maxTitleLength    = 1024
	maxFileNameLength = 255
	minCriticality    = 1
	maxCriticality    = 5
)

// ValidationError holds per-field validation failure messages.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s: %s", k, e.Fields[k]))
	}
	return strings.Join(parts, "; ")
}

func (e *ValidationError) Unwrap() error {
	return apperrors.ErrValidationGap
}

// ValidateIngestRequest checks required metadata and converts the request
// into document.Metadata. SourceFile falls back to the sanitised file name.
func ValidateIngestRequest(req *ingestion.IngestRequest) (document.Metadata, error) {
	errs := make(map[string]string)
	var meta document.Metadata

	meta.Title = strings.TrimSpace(req.Title)
	if meta.Title == "" {
		errs["title"] = "title is required"
	} else if len(meta.Title) > maxTitleLength {
		errs["title"] = fmt.Sprintf("title must be at most %d characters", maxTitleLength)
	}
	meta.Team = strings.TrimSpace(req.Team)
	if meta.Team == "" {
		errs["team"] = "team is required"
	}
	meta.System = strings.TrimSpace(req.System)
	if meta.System == "" {
		errs["system"] = "system is required"
	}
	if strings.TrimSpace(req.DocType) == "" {
		errs["docType"] = "docType is required"
	} else if dt, ok := document.ParseDocType(req.DocType); ok {
		meta.DocType = dt
	} else {
		errs["docType"] = fmt.Sprintf("docType %q is not one of %s", req.DocType, docTypeList())
	}
	if req.Criticality < minCriticality || req.Criticality > maxCriticality {
		errs["criticality"] = fmt.Sprintf("criticality must be between %d and %d", minCriticality, maxCriticality)
	}
	meta.Criticality = req.Criticality

	meta.Owner = strings.TrimSpace(req.Owner)
	if req.LastReviewedAt != "" {
		t, err := ParseDate(req.LastReviewedAt)
		if err != nil {
			errs["lastReviewedAt"] = err.Error()
		} else {
			meta.LastReviewedAt = &t
		}
	}
	if req.Views30d != nil {
		if *req.Views30d < 0 {
			errs["views30d"] = "views30d must not be negative"
		}
		v := *req.Views30d
		meta.Views30d = &v
	}
	if req.ReleasesSinceReview != nil {
		if *req.ReleasesSinceReview < 0 {
			errs["releasesSinceReview"] = "releasesSinceReview must not be negative"
		}
		v := *req.ReleasesSinceReview
		meta.ReleasesSinceReview = &v
	}
	meta.SourceFile = strings.TrimSpace(req.SourceFile)
	if meta.SourceFile == "" && req.File != nil {
		meta.SourceFile = SanitizeFileName(req.File.Name)
	}

	if len(errs) > 0 {
		return document.Metadata{}, &ValidationError{Fields: errs}
	}
	return meta, nil
}

// ValidateFile enforces the intake limits on an uploaded file descriptor.
func ValidateFile(f ingestion.FileInfo, cfg config.IntakeConfig) error {
	errs := make(map[string]string)
	name := strings.ToLower(f.Name)

	switch {
	case strings.TrimSpace(f.Name) == "":
		errs["file.name"] = "file name is required"
	case strings.Contains(name, "..") || strings.ContainsAny(name, `/\`):
		errs["file.name"] = "file name contains suspicious characters"
	case len(f.Name) > maxFileNameLength:
		errs["file.name"] = fmt.Sprintf("file name must be at most %d characters", maxFileNameLength)
	}

	ext := filepath.Ext(name)
	if !allowedExtension(ext, cfg.AllowedExtensions) {
		errs["file.extension"] = fmt.Sprintf("file extension %q is not allowed", ext)
	}

	if f.Size <= 0 {
		errs["file.size"] = "file is empty"
	} else if cfg.MaxFileSize > 0 && f.Size > cfg.MaxFileSize {
		errs["file.size"] = fmt.Sprintf("file size exceeds maximum of %dMB", cfg.MaxFileSize/1024/1024)
	}

	if len(errs) > 0 {
		return &ValidationError{Fields: errs}
	}
	return nil
}

// SanitizeFileName strips traversal sequences, path separators and control
// characters, replaces characters invalid on common filesystems, and caps
// the length.
func SanitizeFileName(name string) string {
	name = strings.ReplaceAll(name, "..", "")
	var b strings.Builder
	for _, r := range name {
		switch {
		case r == '/' || r == '\\' || r < 0x20 || r == 0x7f:
		case strings.ContainsRune(`<>:"|?*`, r):
			b.WriteRune('_')
		default:
			b.WriteRune(r)
		}
	}
	out := b.String()
	if len(out) <= maxFileNameLength {
		return out
	}
	// Cut at the last rune boundary that fits.
	end := 0
	for i := range out {
		if i > maxFileNameLength {
			break
		}
		end = i
	}
	return out[:end]
}

// ParseDate accepts a calendar date or an RFC 3339 timestamp.
func ParseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse(document.LastUpdatedLayout, s); err == nil {
		return t.UTC(), nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.UTC(), nil
	}
	return time.Time{}, fmt.Errorf("invalid date %q, expected YYYY-MM-DD or RFC 3339", s)
}

func allowedExtension(ext string, allowed []string) bool {
	if ext == "" {
		return false
	}
	for _, a := range allowed {
		if strings.EqualFold(a, ext) {
			return true
		}
	}
	return false
}

func docTypeList() string {
	names := make([]string, len(document.DocTypes))
	for i, dt := range document.DocTypes {
		names[i] = string(dt)
	}
	return strings.Join(names, ", ")
}
