// Package scoring turns document metadata and its signals into four health
// sub-scores and one overall staleness score.
//
// Two policies exist. V2 is the weighted model used by default; Baseline is
// the fixed-value model kept for documents scored before review history was
// collected. A document is always scored by exactly one policy and records
// which one.
package scoring

import (
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/adrian-1-cardona/DocPulse/internal/document"
	apperrors "github.com/adrian-1-cardona/DocPulse/pkg/errors"
)

const (
	PolicyV2       = "v2"
	PolicyBaseline = "baseline"
)

// Policy scores one document. Implementations must be pure.
type Policy interface {
	Name() string
	Score(meta document.Metadata, sigs []document.Signal, now time.Time) (document.ScoreBreakdown, error)
}

// ByName resolves a configured policy name.
func ByName(name string) (Policy, error) {
	switch name {
	case PolicyV2, "":
		return V2{}, nil
	case PolicyBaseline:
		return Baseline{}, nil
	default:
		return nil, fmt.Errorf("unknown scoring policy %q", name)
	}
}

const (
	descStability     = "How recently the document was reviewed"
	descCodeAlignment = "How far the code has moved since the last review"
	descInfoDemand    = "How much readers rely on the document"
	descOwnership     = "Whether someone is accountable for the document"
)

func newBreakdown(policy string) document.ScoreBreakdown {
	return document.ScoreBreakdown{
		Stability:     document.Component{Weight: document.WeightStability, Description: descStability},
		CodeAlignment: document.Component{Weight: document.WeightCodeAlignment, Description: descCodeAlignment},
		InfoDemand:    document.Component{Weight: document.WeightInfoDemand, Description: descInfoDemand},
		Ownership:     document.Component{Weight: document.WeightOwnership, Description: descOwnership},
		Policy:        policy,
	}
}

// verify rejects non-finite results. They can only come from a bug.
func verify(b document.ScoreBreakdown) error {
	for _, v := range []float64{b.Stability.Score, b.CodeAlignment.Score, b.InfoDemand.Score, b.Ownership.Score, b.Overall} {
		if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 || v > 100 {
			return apperrors.Computation("%s policy produced out-of-range score %v", b.Policy, v)
		}
	}
	return nil
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

func formatPoints(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// Apply copies a breakdown's numbers onto a document.
func Apply(doc *document.Document, b document.ScoreBreakdown) {
	doc.OverallScore = b.Overall
	doc.StabilityScore = b.Stability.Score
	doc.CodeAlignmentScore = b.CodeAlignment.Score
	doc.InfoDemandScore = b.InfoDemand.Score
	doc.OwnershipScore = b.Ownership.Score
	doc.Policy = b.Policy
	bd := b
	doc.Breakdown = &bd
}
