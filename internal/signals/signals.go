// Package signals derives risk signals from document metadata. Generation is
// pure: the same metadata and clock always yield the same signals in the
// same order.
package signals

import (
	"fmt"
	"time"

	"github.com/adrian-1-cardona/DocPulse/internal/document"
)

const (
	// StaleAfter is how long a review stays fresh.
	StaleAfter = 180 * 24 * time.Hour
	// HighChangeReleases is the release count above which docs drift.
	HighChangeReleases = 5
	// LowConfidenceMinGaps is how many defaulted fields make scoring unreliable.
	LowConfidenceMinGaps = 3

	missingOwnerSeverity  = 3
	unreviewedSeverity    = 4
	lowConfidenceSeverity = 2
	daysPerStaleSeverity  = 60
)

// Generate evaluates every rule independently. Output order is fixed:
// ownership, review freshness, change pressure, metadata confidence.
func Generate(meta document.Metadata, now time.Time) []document.Signal {
	out := make([]document.Signal, 0, 4)

	if !meta.HasOwner() {
		out = append(out, document.Signal{
			Type:     document.SignalMissingOwner,
			Severity: missingOwnerSeverity,
			Evidence: "No owner assigned - accountability unclear",
		})
	}

	if meta.Reviewed() {
		if age := now.Sub(*meta.LastReviewedAt); age > StaleAfter {
			days, _ := meta.DaysSinceReview(now)
			out = append(out, document.Signal{
				Type:     document.SignalStaleLastReview,
				Severity: clamp(days/daysPerStaleSeverity, 1, 5),
				Evidence: fmt.Sprintf("Last reviewed %d days ago", days),
			})
		}
	} else {
		out = append(out, document.Signal{
			Type:     document.SignalUnreviewedDoc,
			Severity: unreviewedSeverity,
			Evidence: "No review date recorded - freshness unknown",
		})
	}

	if releases := meta.Releases(); releases > HighChangeReleases {
		out = append(out, document.Signal{
			Type:     document.SignalHighChangePressure,
			Severity: min(5, releases),
			Evidence: fmt.Sprintf("%d releases since last review", releases),
		})
	}

	if gaps := DefaultedFields(meta); gaps >= LowConfidenceMinGaps {
		out = append(out, document.Signal{
			Type:     document.SignalLowConfidenceMetadata,
			Severity: lowConfidenceSeverity,
			Evidence: fmt.Sprintf("%d fields with default/missing values - low confidence in scoring", gaps),
		})
	}

	return out
}

// DefaultedFields counts the optional inputs that are absent or zero.
func DefaultedFields(meta document.Metadata) int {
	n := 0
	if !meta.HasOwner() {
		n++
	}
	if !meta.Reviewed() {
		n++
	}
	if meta.Views() == 0 {
		n++
	}
	if meta.Releases() == 0 {
		n++
	}
	return n
}

// Has reports whether sigs contains a signal of type t.
func Has(sigs []document.Signal, t document.SignalType) bool {
	for _, s := range sigs {
		if s.Type == t {
			return true
		}
	}
	return false
}

func clamp(v, lo, hi int) int {
	return max(lo, min(hi, v))
}
