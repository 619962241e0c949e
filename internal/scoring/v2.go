package scoring

import (
	"fmt"
	"math"
	"time"

	"github.com/adrian-1-cardona/DocPulse/internal/document"
)

const (
	unreviewedStability   = 30.0
	stabilityDecayPerDay  = 0.5
	alignmentPerRelease   = 15.0
	demandPerView         = 2.0
	unknownDemand         = 50.0
	ownedScore            = 100.0
	unownedScore          = 40.0
	penaltyPerSeverity    = 5.0
	lowConfidencePerLevel = 2.5
)

// V2 is the weighted staleness model.
type V2 struct{}

func (V2) Name() string { return PolicyV2 }

func (V2) Score(meta document.Metadata, sigs []document.Signal, now time.Time) (document.ScoreBreakdown, error) {
	b := newBreakdown(PolicyV2)

	if days, ok := meta.DaysSinceReview(now); ok {
		b.Stability.Score = clamp(100-stabilityDecayPerDay*float64(days), 0, 100)
		b.Stability.Factors = append(b.Stability.Factors, fmt.Sprintf("Last reviewed %d days ago", days))
	} else {
		b.Stability.Score = unreviewedStability
		b.Stability.Factors = append(b.Stability.Factors, "No review on record")
	}

	releases := meta.Releases()
	b.CodeAlignment.Score = math.Max(0, 100-alignmentPerRelease*float64(releases))
	b.CodeAlignment.Factors = append(b.CodeAlignment.Factors, fmt.Sprintf("%d releases since last review", releases))

	if views := meta.Views(); views > 0 {
		b.InfoDemand.Score = math.Min(100, demandPerView*float64(views))
		b.InfoDemand.Factors = append(b.InfoDemand.Factors, fmt.Sprintf("%d views in the last 30 days", views))
	} else {
		b.InfoDemand.Score = unknownDemand
		b.InfoDemand.Factors = append(b.InfoDemand.Factors, "No view data")
	}

	if meta.HasOwner() {
		b.Ownership.Score = ownedScore
		b.Ownership.Factors = append(b.Ownership.Factors, "Owned by "+meta.Owner)
	} else {
		b.Ownership.Score = unownedScore
		b.Ownership.Factors = append(b.Ownership.Factors, "No owner")
	}

	for _, sig := range sigs {
		target, points := penalty(sig)
		c := b.Component(target)
		if c == nil {
			continue
		}
		c.Score = clamp(c.Score-points, 0, 100)
		c.Factors = append(c.Factors, fmt.Sprintf("-%s from %s", formatPoints(points), sig.Type))
	}

	weighted := document.WeightStability*b.Stability.Score +
		document.WeightCodeAlignment*b.CodeAlignment.Score +
		document.WeightInfoDemand*b.InfoDemand.Score +
		document.WeightOwnership*b.Ownership.Score
	b.Overall = math.Round(clamp(100-weighted, 0, 100))

	return b, verify(b)
}

// penalty maps a signal to the sub-score it lowers and by how much.
func penalty(sig document.Signal) (document.SubScore, float64) {
	sev := float64(sig.Severity)
	switch sig.Type {
	case document.SignalMissingOwner:
		return document.SubScoreOwnership, sev * penaltyPerSeverity
	case document.SignalStaleLastReview, document.SignalUnreviewedDoc:
		return document.SubScoreStability, sev * penaltyPerSeverity
	case document.SignalLowConfidenceMetadata:
		return document.SubScoreStability, sev * lowConfidencePerLevel
	case document.SignalHighChangePressure:
		return document.SubScoreCodeAlignment, sev * penaltyPerSeverity
	default:
		return "", 0
	}
}
