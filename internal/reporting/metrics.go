// Package reporting aggregates a corpus into documentation health metrics,
// derives recommendations from them and renders reports as JSON or CSV.
// Everything here is a pure function of the documents passed in.
package reporting

import (
	"cmp"
	"math"
	"slices"

	"github.com/adrian-1-cardona/DocPulse/internal/document"
)

// Fallback group names for documents missing metadata.
const (
	UnknownTeam  = "Unknown"
	OtherDocType = "Other"
)

// DistributionLowThreshold splits the lowest risk bucket into low and
// excellent for the five-way distribution.
const DistributionLowThreshold = 20

// ScoreDistribution counts documents per overall-score band.
type ScoreDistribution struct {
	Critical  int `json:"critical"`
	High      int `json:"high"`
	Medium    int `json:"medium"`
	Low       int `json:"low"`
	Excellent int `json:"excellent"`
}

func (d *ScoreDistribution) add(score float64) {
	switch {
	case score >= document.HighRiskThreshold:
		d.Critical++
	case score >= document.MediumRiskThreshold:
		d.High++
	case score >= document.LowRiskThreshold:
		d.Medium++
	case score >= DistributionLowThreshold:
		d.Low++
	default:
		d.Excellent++
	}
}

// DocumentMetrics summarises a set of documents.
type DocumentMetrics struct {
	TotalDocuments         int               `json:"totalDocuments"`
	TotalByDocType         map[string]int    `json:"totalByDocType"`
	TotalByTeam            map[string]int    `json:"totalByTeam"`
	AverageStalenessScore  int               `json:"averageStalenessScore"`
	ScoreDistribution      ScoreDistribution `json:"scoreDistribution"`
	DocumentsWithoutOwner  int               `json:"documentsWithoutOwner"`
	DocumentsNeverReviewed int               `json:"documentsNeverReviewed"`
	SignalBreakdown        map[string]int    `json:"signalBreakdown"`
}

// ComputeMetrics aggregates docs. An empty corpus yields zero counts and
// empty, non-nil maps.
func ComputeMetrics(docs []document.Document) DocumentMetrics {
	m := DocumentMetrics{
		TotalDocuments:  len(docs),
		TotalByDocType:  map[string]int{},
		TotalByTeam:     map[string]int{},
		SignalBreakdown: map[string]int{},
	}
	if len(docs) == 0 {
		return m
	}

	var total float64
	for _, d := range docs {
		m.TotalByDocType[docTypeOf(d)]++
		m.TotalByTeam[TeamOf(d)]++
		total += d.OverallScore
		m.ScoreDistribution.add(d.OverallScore)

		if !hasOwner(d) {
			m.DocumentsWithoutOwner++
		}
		if d.Metadata == nil || !d.Metadata.Reviewed() {
			m.DocumentsNeverReviewed++
		}
		for _, s := range d.Signals {
			m.SignalBreakdown[string(s.Type)]++
		}
	}
	m.AverageStalenessScore = int(math.Round(total / float64(len(docs))))
	return m
}

// TeamOf returns the document's team, or UnknownTeam.
func TeamOf(d document.Document) string {
	if d.Metadata == nil || d.Metadata.Team == "" {
		return UnknownTeam
	}
	return d.Metadata.Team
}

func docTypeOf(d document.Document) string {
	if d.Metadata == nil || d.Metadata.DocType == "" {
		return OtherDocType
	}
	return string(d.Metadata.DocType)
}

func hasOwner(d document.Document) bool {
	return d.Owner != "" && d.Owner != document.UnassignedOwner
}

// FilterTeam returns the documents that belong to team.
func FilterTeam(docs []document.Document, team string) []document.Document {
	out := make([]document.Document, 0, len(docs))
	for _, d := range docs {
		if TeamOf(d) == team {
			out = append(out, d)
		}
	}
	return out
}

// Teams lists the distinct teams in docs in first-seen order.
func Teams(docs []document.Document) []string {
	seen := make(map[string]bool)
	var teams []string
	for _, d := range docs {
		t := TeamOf(d)
		if !seen[t] {
			seen[t] = true
			teams = append(teams, t)
		}
	}
	return teams
}

// TeamBreakdown computes DocumentMetrics for each team.
func TeamBreakdown(docs []document.Document) map[string]DocumentMetrics {
	groups := make(map[string][]document.Document)
	for _, d := range docs {
		t := TeamOf(d)
		groups[t] = append(groups[t], d)
	}
	out := make(map[string]DocumentMetrics, len(groups))
	for team, teamDocs := range groups {
		out[team] = ComputeMetrics(teamDocs)
	}
	return out
}

// TeamHealth is one team's row in the team health summary.
type TeamHealth struct {
	Team           string  `json:"team"`
	TotalDocuments int     `json:"totalDocuments"`
	AverageScore   float64 `json:"averageScore"`
	HighRisk       int     `json:"highRisk"`
	MediumRisk     int     `json:"mediumRisk"`
	LowRisk        int     `json:"lowRisk"`
	Excellent      int     `json:"excellent"`
}

// TeamMetrics buckets each team's documents by risk level, riskiest team
// first. Ties are ordered by team name.
func TeamMetrics(docs []document.Document) []TeamHealth {
	byTeam := make(map[string]*TeamHealth)
	totals := make(map[string]float64)
	for _, d := range docs {
		name := TeamOf(d)
		th, ok := byTeam[name]
		if !ok {
			th = &TeamHealth{Team: name}
			byTeam[name] = th
		}
		th.TotalDocuments++
		totals[name] += d.OverallScore
		switch d.Risk() {
		case document.RiskHigh:
			th.HighRisk++
		case document.RiskMedium:
			th.MediumRisk++
		case document.RiskLow:
			th.LowRisk++
		default:
			th.Excellent++
		}
	}

	out := make([]TeamHealth, 0, len(byTeam))
	for name, th := range byTeam {
		th.AverageScore = math.Round(totals[name]/float64(th.TotalDocuments)*10) / 10
		out = append(out, *th)
	}
	slices.SortFunc(out, func(a, b TeamHealth) int {
		if c := cmp.Compare(b.AverageScore, a.AverageScore); c != 0 {
			return c
		}
		return cmp.Compare(a.Team, b.Team)
	})
	return out
}
