package scoring

import (
	"math"
	"time"

	"github.com/adrian-1-cardona/DocPulse/internal/document"
)

// Baseline assigns fixed sub-scores and averages them without weights.
// Signals are recorded by the caller but do not move the numbers.
type Baseline struct{}

func (Baseline) Name() string { return PolicyBaseline }

func (Baseline) Score(meta document.Metadata, _ []document.Signal, _ time.Time) (document.ScoreBreakdown, error) {
	b := newBreakdown(PolicyBaseline)

	b.Stability.Score = 75
	b.CodeAlignment.Score = 70
	b.InfoDemand.Score = 80
	b.Ownership.Score = 60
	if meta.HasOwner() {
		b.Ownership.Score = 85
	}
	for _, c := range []*document.Component{&b.Stability, &b.CodeAlignment, &b.InfoDemand, &b.Ownership} {
		c.Factors = []string{"Baseline value for newly ingested documents"}
	}

	b.Overall = math.Round((b.Stability.Score + b.CodeAlignment.Score + b.InfoDemand.Score + b.Ownership.Score) / 4)
	return b, verify(b)
}
