package reporting

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adrian-1-cardona/DocPulse/internal/document"
	"github.com/adrian-1-cardona/DocPulse/internal/store/storetest"
)

func corpus() []document.Document {
	a := storetest.Doc("a", 85)

	b := storetest.Doc("b", 65)
	b.Owner = document.UnassignedOwner
	b.Metadata.Team = "payments"
	b.Metadata.LastReviewedAt = nil
	b.Signals = []document.Signal{{Type: document.SignalStaleLastReview, Severity: 2}}

	c := storetest.Doc("c", 10)
	c.Owner = ""
	c.Metadata = nil
	c.Signals = nil

	return []document.Document{a, b, c}
}

func TestComputeMetrics(t *testing.T) {
	m := ComputeMetrics(corpus())

	assert.Equal(t, 3, m.TotalDocuments)
	assert.Equal(t, map[string]int{"Runbook": 2, "Other": 1}, m.TotalByDocType)
	assert.Equal(t, map[string]int{"platform": 1, "payments": 1, "Unknown": 1}, m.TotalByTeam)
	assert.Equal(t, 53, m.AverageStalenessScore)
	assert.Equal(t, ScoreDistribution{Critical: 1, High: 1, Excellent: 1}, m.ScoreDistribution)
	assert.Equal(t, 2, m.DocumentsWithoutOwner)
	assert.Equal(t, 2, m.DocumentsNeverReviewed)
	assert.Equal(t, map[string]int{"MISSING_OWNER": 1, "STALE_LAST_REVIEW": 1}, m.SignalBreakdown)
}

func TestComputeMetricsEmpty(t *testing.T) {
	m := ComputeMetrics(nil)
	assert.Zero(t, m.TotalDocuments)
	assert.Zero(t, m.AverageStalenessScore)
	assert.NotNil(t, m.TotalByTeam)
	assert.NotNil(t, m.SignalBreakdown)
	assert.Equal(t, []string{HealthyRecommendation}, Recommendations(m))
}

func TestDistributionBoundaries(t *testing.T) {
	var d ScoreDistribution
	for _, s := range []float64{100, 80, 79, 60, 59, 40, 39, 20, 19, 0} {
		d.add(s)
	}
	assert.Equal(t, ScoreDistribution{Critical: 2, High: 2, Medium: 2, Low: 2, Excellent: 2}, d)
}

func TestRecommendationsCascade(t *testing.T) {
	recs := Recommendations(ComputeMetrics(corpus()))
	assert.Equal(t, []string{
		"1 document(s) in critical condition - require immediate attention",
		"1 document(s) have high staleness - prioritize for review",
		"67% of documents lack clear ownership - assign owners to enable accountability",
		"2 document(s) have never been formally reviewed - conduct initial reviews",
		"Priority: Assign owners to 1 unowned document(s)",
		"Schedule reviews for 1 document(s) that haven't been reviewed in 180+ days",
	}, recs)
}

func TestRecommendationsSignalOrder(t *testing.T) {
	m := DocumentMetrics{
		TotalDocuments: 4,
		SignalBreakdown: map[string]int{
			"LOW_CONFIDENCE_METADATA": 1,
			"HIGH_CHANGE_PRESSURE":    3,
			"UNREVIEWED_DOC":          2,
		},
	}
	assert.Equal(t, []string{
		"Reconcile 3 document(s) with recent code changes",
		"Complete metadata for 1 document(s) with low scoring confidence",
	}, Recommendations(m))
}

func TestTeamMetricsRiskiestFirst(t *testing.T) {
	docs := corpus()
	extra := storetest.Doc("d", 45)
	extra.Metadata.Team = "payments"
	docs = append(docs, extra)

	teams := TeamMetrics(docs)
	require.Len(t, teams, 3)
	assert.Equal(t, TeamHealth{Team: "platform", TotalDocuments: 1, AverageScore: 85, HighRisk: 1}, teams[0])
	assert.Equal(t, TeamHealth{Team: "payments", TotalDocuments: 2, AverageScore: 55, MediumRisk: 1, LowRisk: 1}, teams[1])
	assert.Equal(t, UnknownTeam, teams[2].Team)
	assert.Equal(t, 1, teams[2].Excellent)

	assert.Empty(t, TeamMetrics(nil))
}

func TestTeamsAndFilter(t *testing.T) {
	docs := corpus()
	assert.Equal(t, []string{"platform", "payments", "Unknown"}, Teams(docs))
	assert.Len(t, FilterTeam(docs, "payments"), 1)
	assert.Len(t, FilterTeam(docs, UnknownTeam), 1)
}

func TestGenerate(t *testing.T) {
	now := time.Date(2026, 6, 1, 9, 0, 0, 0, time.UTC)
	g := NewGenerator(WithIDGenerator(func() string { return "report-1" }), WithClock(func() time.Time { return now }))

	r := g.Generate(corpus(), TypeTeamHealth, "", "viewer-key")
	assert.Equal(t, "report-1", r.ID)
	assert.Equal(t, "TEAM HEALTH Report - 2026-06-01", r.Name)
	assert.Equal(t, "Generated team_health report for 3 documents", r.Description)
	assert.Equal(t, now, r.GeneratedAt)
	assert.Equal(t, "viewer-key", r.GeneratedBy)
	assert.Len(t, r.TeamHealth, 3)
	assert.Nil(t, r.Compliance)
	assert.Equal(t, 1, r.TeamBreakdown["payments"].TotalDocuments)
	assert.Equal(t, 10, r.TeamBreakdown[UnknownTeam].AverageStalenessScore)
	assert.NotEmpty(t, r.Recommendations)

	r = g.Generate(corpus(), TypeCompliance, "Q2 audit", "")
	assert.Equal(t, "Q2 audit", r.Name)
	assert.Equal(t, &Compliance{OwnedPercent: 33, ReviewedPercent: 33, StaleReviews: 1, Unreviewed: 2}, r.Compliance)
	assert.Nil(t, r.TeamHealth)
}

func TestParseType(t *testing.T) {
	for in, want := range map[string]Type{"": TypeMetrics, "Compliance": TypeCompliance, " team_health ": TypeTeamHealth} {
		got, err := ParseType(in)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
	_, err := ParseType("weekly")
	assert.Error(t, err)
}

func TestWriteCSV(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, ComputeMetrics(corpus()), ""))
	assert.Equal(t, `Documentation Metrics

SUMMARY
Total Documents,3
Average Staleness Score,53
Documents Without Owner,2
Documents Never Reviewed,2

SCORE DISTRIBUTION
Critical (80-100),1
High (60-79),1
Medium (40-59),0
Low (20-39),0
Excellent (0-19),1

BY DOCUMENT TYPE
Other,1
Runbook,2

BY TEAM
Unknown,1
payments,1
platform,1

SIGNAL BREAKDOWN
MISSING_OWNER,1
STALE_LAST_REVIEW,1
`, buf.String())
}

func TestWriteCSVTeamTitleAndQuoting(t *testing.T) {
	docs := corpus()[:1]
	docs[0].Metadata.Team = "Search, Ranking"
	docs[0].Signals = nil

	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, ComputeMetrics(docs), "Search, Ranking"))
	out := buf.String()
	assert.Contains(t, out, "\"Search, Ranking - Documentation Metrics\"\n")
	assert.Contains(t, out, "\"Search, Ranking\",1\n")
	assert.NotContains(t, out, "SIGNAL BREAKDOWN")
}

func TestWriteJSONIndents(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteJSON(&buf, ComputeMetrics(nil)))
	assert.Contains(t, buf.String(), "\n  \"totalDocuments\": 0,")
}
