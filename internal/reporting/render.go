package reporting

import (
	"encoding/csv"
	"encoding/json"
	"io"
	"slices"
	"strconv"
)

// WriteCSV renders m as a sectioned CSV sheet. team, when set, prefixes the
// title line. Map sections are sorted by key.
func WriteCSV(w io.Writer, m DocumentMetrics, team string) error {
	title := "Documentation Metrics"
	if team != "" {
		title = team + " - " + title
	}
	s := &sheet{out: w, cw: csv.NewWriter(w)}

	s.row(title)
	s.blank()
	s.row("SUMMARY")
	s.row("Total Documents", strconv.Itoa(m.TotalDocuments))
	s.row("Average Staleness Score", strconv.Itoa(m.AverageStalenessScore))
	s.row("Documents Without Owner", strconv.Itoa(m.DocumentsWithoutOwner))
	s.row("Documents Never Reviewed", strconv.Itoa(m.DocumentsNeverReviewed))
	s.blank()

	d := m.ScoreDistribution
	s.row("SCORE DISTRIBUTION")
	s.row("Critical (80-100)", strconv.Itoa(d.Critical))
	s.row("High (60-79)", strconv.Itoa(d.High))
	s.row("Medium (40-59)", strconv.Itoa(d.Medium))
	s.row("Low (20-39)", strconv.Itoa(d.Low))
	s.row("Excellent (0-19)", strconv.Itoa(d.Excellent))
	s.blank()

	s.row("BY DOCUMENT TYPE")
	s.counts(m.TotalByDocType)
	s.blank()

	s.row("BY TEAM")
	s.counts(m.TotalByTeam)
	s.blank()

	if len(m.SignalBreakdown) > 0 {
		s.row("SIGNAL BREAKDOWN")
		s.counts(m.SignalBreakdown)
	}
	s.cw.Flush()
	if s.err != nil {
		return s.err
	}
	return s.cw.Error()
}

// WriteJSON renders v as indented JSON.
func WriteJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// sheet keeps the first write error so the renderer reads top to bottom.
type sheet struct {
	out io.Writer
	cw  *csv.Writer
	err error
}

func (s *sheet) row(fields ...string) {
	if s.err != nil {
		return
	}
	s.err = s.cw.Write(fields)
}

// blank writes an empty separator line directly, bypassing the csv encoder.
func (s *sheet) blank() {
	if s.err != nil {
		return
	}
	s.cw.Flush()
	if s.err = s.cw.Error(); s.err != nil {
		return
	}
	_, s.err = io.WriteString(s.out, "\n")
}

func (s *sheet) counts(m map[string]int) {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	for _, k := range keys {
		s.row(k, strconv.Itoa(m[k]))
	}
}
