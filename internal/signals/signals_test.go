package signals

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adrian-1-cardona/DocPulse/internal/document"
)

var now = time.Date(2026, 6, 1, 9, 0, 0, 0, time.UTC)

func intPtr(v int) *int { return &v }

func daysAgo(d int) *time.Time {
	t := now.Add(-time.Duration(d) * 24 * time.Hour)
	return &t
}

func types(sigs []document.Signal) []document.SignalType {
	out := make([]document.SignalType, len(sigs))
	for i, s := range sigs {
		out[i] = s.Type
	}
	return out
}

func TestHealthyDocumentRaisesNothing(t *testing.T) {
	for _, age := range []int{0, 30, 179, 180} {
		meta := document.Metadata{
			Owner:               "platform-team",
			LastReviewedAt:      daysAgo(age),
			Views30d:            intPtr(40),
			ReleasesSinceReview: intPtr(0),
		}
		assert.Empty(t, Generate(meta, now), "age %d", age)
	}
}

func TestSparseMetadataRaisesFourSignals(t *testing.T) {
	meta := document.Metadata{ReleasesSinceReview: intPtr(8), Views30d: intPtr(0)}

	sigs := Generate(meta, now)
	assert.Equal(t, []document.SignalType{
		document.SignalMissingOwner,
		document.SignalUnreviewedDoc,
		document.SignalHighChangePressure,
		document.SignalLowConfidenceMetadata,
	}, types(sigs))

	assert.Equal(t, 3, sigs[0].Severity)
	assert.Equal(t, 4, sigs[1].Severity)
	assert.Equal(t, 5, sigs[2].Severity)
	assert.Equal(t, "8 releases since last review", sigs[2].Evidence)
	assert.Equal(t, 2, sigs[3].Severity)
	assert.Contains(t, sigs[3].Evidence, "3 fields")
}

func TestStaleSeverityScalesWithAge(t *testing.T) {
	tests := []struct {
		days     int
		severity int
	}{
		{181, 3},
		{239, 3},
		{240, 4},
		{300, 5},
		{900, 5},
	}
	for _, tt := range tests {
		meta := document.Metadata{Owner: "a", LastReviewedAt: daysAgo(tt.days), Views30d: intPtr(1), ReleasesSinceReview: intPtr(1)}
		sigs := Generate(meta, now)
		require.Len(t, sigs, 1, "days %d", tt.days)
		assert.Equal(t, document.SignalStaleLastReview, sigs[0].Type)
		assert.Equal(t, tt.severity, sigs[0].Severity, "days %d", tt.days)
	}
}

func TestStaleAndUnreviewedAreExclusive(t *testing.T) {
	reviewed := Generate(document.Metadata{LastReviewedAt: daysAgo(400)}, now)
	assert.True(t, Has(reviewed, document.SignalStaleLastReview))
	assert.False(t, Has(reviewed, document.SignalUnreviewedDoc))

	unreviewed := Generate(document.Metadata{}, now)
	assert.False(t, Has(unreviewed, document.SignalStaleLastReview))
	assert.True(t, Has(unreviewed, document.SignalUnreviewedDoc))
}

func TestHighChangePressureThreshold(t *testing.T) {
	base := document.Metadata{Owner: "o", LastReviewedAt: daysAgo(1), Views30d: intPtr(5)}

	base.ReleasesSinceReview = intPtr(5)
	assert.False(t, Has(Generate(base, now), document.SignalHighChangePressure))

	base.ReleasesSinceReview = intPtr(6)
	sigs := Generate(base, now)
	require.True(t, Has(sigs, document.SignalHighChangePressure))
	assert.Equal(t, 5, sigs[0].Severity)
}

func TestLowConfidenceNeedsThreeGaps(t *testing.T) {
	twoGaps := document.Metadata{Owner: "o", LastReviewedAt: daysAgo(10)}
	assert.Equal(t, 2, DefaultedFields(twoGaps))
	assert.False(t, Has(Generate(twoGaps, now), document.SignalLowConfidenceMetadata))

	threeGaps := document.Metadata{LastReviewedAt: daysAgo(10)}
	assert.Equal(t, 3, DefaultedFields(threeGaps))
	assert.True(t, Has(Generate(threeGaps, now), document.SignalLowConfidenceMetadata))
}

func TestGenerateIsDeterministic(t *testing.T) {
	meta := document.Metadata{LastReviewedAt: daysAgo(365), ReleasesSinceReview: intPtr(12)}
	assert.Equal(t, Generate(meta, now), Generate(meta, now))
}
