package reporting

import (
	"fmt"
	"math"

	"github.com/adrian-1-cardona/DocPulse/internal/document"
)

// HealthyRecommendation is returned when no rule fires.
const HealthyRecommendation = "Documentation health is good - maintain current review schedule"

var signalRecommendations = []struct {
	signal document.SignalType
	format string
}{
	{document.SignalMissingOwner, "Priority: Assign owners to %d unowned document(s)"},
	{document.SignalStaleLastReview, "Schedule reviews for %d document(s) that haven't been reviewed in 180+ days"},
	{document.SignalHighChangePressure, "Reconcile %d document(s) with recent code changes"},
	{document.SignalLowConfidenceMetadata, "Complete metadata for %d document(s) with low scoring confidence"},
}

// Recommendations turns metrics into an ordered list of actions. The list is
// never empty.
func Recommendations(m DocumentMetrics) []string {
	var recs []string

	if n := m.ScoreDistribution.Critical; n > 0 {
		recs = append(recs, fmt.Sprintf("%d document(s) in critical condition - require immediate attention", n))
	}
	if n := m.ScoreDistribution.High; n > 0 {
		recs = append(recs, fmt.Sprintf("%d document(s) have high staleness - prioritize for review", n))
	}
	if m.DocumentsWithoutOwner > 0 && m.TotalDocuments > 0 {
		pct := math.Round(float64(m.DocumentsWithoutOwner) / float64(m.TotalDocuments) * 100)
		recs = append(recs, fmt.Sprintf("%d%% of documents lack clear ownership - assign owners to enable accountability", int(pct)))
	}
	if n := m.DocumentsNeverReviewed; n > 0 {
		recs = append(recs, fmt.Sprintf("%d document(s) have never been formally reviewed - conduct initial reviews", n))
	}
	for _, r := range signalRecommendations {
		if n := m.SignalBreakdown[string(r.signal)]; n > 0 {
			recs = append(recs, fmt.Sprintf(r.format, n))
		}
	}

	if len(recs) == 0 {
		return []string{HealthyRecommendation}
	}
	return recs
}
