package document

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRiskFor(t *testing.T) {
	tests := []struct {
		score float64
		want  RiskLevel
	}{
		{100, RiskHigh},
		{80, RiskHigh},
		{79.9, RiskMedium},
		{60, RiskMedium},
		{59, RiskLow},
		{40, RiskLow},
		{39.5, RiskExcellent},
		{0, RiskExcellent},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, RiskFor(tt.score), "score %v", tt.score)
	}
	assert.Equal(t, "high_risk", RiskHigh.Status())
	assert.Equal(t, "excellent", RiskExcellent.Status())
}

func TestCategoryFor(t *testing.T) {
	assert.Equal(t, CategoryGuide, CategoryFor(DocTypeRunbook))
	assert.Equal(t, CategoryAPIDocs, CategoryFor(DocTypeAPI))
	assert.Equal(t, CategoryArchitecture, CategoryFor(DocTypeDesign))
	assert.Equal(t, CategoryGuide, CategoryFor(DocTypeOnboarding))
	assert.Equal(t, CategoryArchitecture, CategoryFor(DocTypeRFC))
	assert.Equal(t, CategoryGuide, CategoryFor(DocTypePlaybook))
	assert.Equal(t, CategoryGuide, CategoryFor("Whitepaper"))
}

func TestParseDocType(t *testing.T) {
	dt, ok := ParseDocType(" api ")
	assert.True(t, ok)
	assert.Equal(t, DocTypeAPI, dt)

	_, ok = ParseDocType("memo")
	assert.False(t, ok)
}

func TestMetadataAccessors(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	reviewed := now.Add(-200*24*time.Hour - time.Hour)
	views := 12
	m := Metadata{LastReviewedAt: &reviewed, Views30d: &views}

	days, ok := m.DaysSinceReview(now)
	assert.True(t, ok)
	assert.Equal(t, 200, days)
	assert.Equal(t, 12, m.Views())
	assert.Equal(t, 0, m.Releases())
	assert.False(t, m.HasOwner())

	_, ok = Metadata{}.DaysSinceReview(now)
	assert.False(t, ok)
}

func TestMetadataCloneIsDeep(t *testing.T) {
	reviewed := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	releases := 3
	m := Metadata{LastReviewedAt: &reviewed, ReleasesSinceReview: &releases}

	c := m.Clone()
	*c.ReleasesSinceReview = 9
	*c.LastReviewedAt = reviewed.AddDate(1, 0, 0)

	assert.Equal(t, 3, m.Releases())
	assert.Equal(t, reviewed, *m.LastReviewedAt)
}
