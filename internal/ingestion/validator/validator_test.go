package validator

import (
	"errors"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adrian-1-cardona/DocPulse/internal/document"
	"github.com/adrian-1-cardona/DocPulse/internal/ingestion"
	"github.com/adrian-1-cardona/DocPulse/pkg/config"
	apperrors "github.com/adrian-1-cardona/DocPulse/pkg/errors"
)

func validRequest() ingestion.IngestRequest {
	views := 12
	return ingestion.IngestRequest{
		Title:          "Payments API",
		Team:           "payments",
		System:         "billing",
		DocType:        "api",
		Criticality:    4,
		Owner:          "  alice ",
		LastReviewedAt: "2026-01-15",
		Views30d:       &views,
		File:           &ingestion.FileInfo{Name: "payments.md", Size: 10},
	}
}

func TestValidateIngestRequest(t *testing.T) {
	req := validRequest()
	meta, err := ValidateIngestRequest(&req)
	require.NoError(t, err)

	assert.Equal(t, document.DocTypeAPI, meta.DocType)
	assert.Equal(t, "alice", meta.Owner)
	assert.Equal(t, "payments.md", meta.SourceFile)
	require.NotNil(t, meta.LastReviewedAt)
	assert.Equal(t, time.Date(2026, 1, 15, 0, 0, 0, 0, time.UTC), *meta.LastReviewedAt)
	assert.Equal(t, 12, meta.Views())
	assert.Nil(t, meta.ReleasesSinceReview)
}

func TestValidateIngestRequestReportsEveryGap(t *testing.T) {
	neg := -1
	req := ingestion.IngestRequest{
		DocType:             "Wiki",
		Criticality:         9,
		LastReviewedAt:      "last tuesday",
		ReleasesSinceReview: &neg,
	}
	_, err := ValidateIngestRequest(&req)
	require.Error(t, err)

	var ve *ValidationError
	require.True(t, errors.As(err, &ve))
	for _, field := range []string{"title", "team", "system", "docType", "criticality", "lastReviewedAt", "releasesSinceReview"} {
		assert.Contains(t, ve.Fields, field)
	}
	assert.ErrorIs(t, err, apperrors.ErrValidationGap)
	assert.Equal(t, 422, apperrors.HTTPStatusCode(err))
}

func TestValidateFile(t *testing.T) {
	cfg := config.IntakeConfig{MaxFileSize: 50 * 1024 * 1024, AllowedExtensions: []string{".md", ".pdf"}}

	assert.NoError(t, ValidateFile(ingestion.FileInfo{Name: "Guide.MD", Size: 1}, cfg))

	tests := []struct {
		name  string
		file  ingestion.FileInfo
		field string
	}{
		{"empty", ingestion.FileInfo{Name: "a.md"}, "file.size"},
		{"too large", ingestion.FileInfo{Name: "a.md", Size: 51 * 1024 * 1024}, "file.size"},
		{"extension", ingestion.FileInfo{Name: "a.exe", Size: 1}, "file.extension"},
		{"no extension", ingestion.FileInfo{Name: "README", Size: 1}, "file.extension"},
		{"traversal", ingestion.FileInfo{Name: "../etc/a.md", Size: 1}, "file.name"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateFile(tt.file, cfg)
			var ve *ValidationError
			require.True(t, errors.As(err, &ve))
			assert.Contains(t, ve.Fields, tt.field)
		})
	}
}

func TestSanitizeFileName(t *testing.T) {
	assert.Equal(t, "etcpasswd", SanitizeFileName("../etc/passwd"))
	assert.Equal(t, "a_b_.md", SanitizeFileName("a<b>.md"))
	assert.Equal(t, "tab.md", SanitizeFileName("ta\tb.md"))
	assert.Len(t, SanitizeFileName(string(make([]byte, 300))), 0)
	assert.Len(t, SanitizeFileName(strings.Repeat("a", 300)), 255)
}

func TestSanitizeFileNameKeepsRunesWhole(t *testing.T) {
	for _, name := range []string{
		strings.Repeat("é", 200),
		"x" + strings.Repeat("文", 120),
		strings.Repeat("🙂", 80),
	} {
		out := SanitizeFileName(name)
		assert.True(t, utf8.ValidString(out), "cut inside a rune: %q", out[len(out)-4:])
		assert.LessOrEqual(t, len(out), 255)
		assert.Greater(t, len(out), 251)
		assert.True(t, strings.HasPrefix(name, out))
	}
}

func TestParseDate(t *testing.T) {
	d, err := ParseDate("2026-02-03T10:00:00+02:00")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 2, 3, 8, 0, 0, 0, time.UTC), d)

	_, err = ParseDate("03/02/2026")
	assert.Error(t, err)
}
