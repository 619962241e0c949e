package document

// SignalType names one kind of risk observation.
type SignalType string

const (
	SignalMissingOwner          SignalType = "MISSING_OWNER"
	SignalStaleLastReview       SignalType = "STALE_LAST_REVIEW"
	SignalUnreviewedDoc         SignalType = "UNREVIEWED_DOC"
	SignalHighChangePressure    SignalType = "HIGH_CHANGE_PRESSURE"
	SignalLowConfidenceMetadata SignalType = "LOW_CONFIDENCE_METADATA"
)

// SignalTypes lists every signal type in the order reports present them.
var SignalTypes = []SignalType{
	SignalMissingOwner,
	SignalStaleLastReview,
	SignalUnreviewedDoc,
	SignalHighChangePressure,
	SignalLowConfidenceMetadata,
}

// Signal is an immutable observation about one document.
type Signal struct {
	Type     SignalType `json:"type"`
	Severity int        `json:"severity"`
	Evidence string     `json:"evidence"`
}

// SubScore names one of the four health dimensions.
type SubScore string

const (
	SubScoreStability     SubScore = "stability"
	SubScoreCodeAlignment SubScore = "codeAlignment"
	SubScoreInfoDemand    SubScore = "infoDemand"
	SubScoreOwnership     SubScore = "ownership"
)

// Weights of the sub-scores in the overall score. They sum to 1.
const (
	WeightStability     = 0.4
	WeightCodeAlignment = 0.3
	WeightInfoDemand    = 0.2
	WeightOwnership     = 0.1
)

// Component is one sub-score with the facts that produced it.
type Component struct {
	Score       float64  `json:"score"`
	Weight      float64  `json:"weight"`
	Description string   `json:"description"`
	Factors     []string `json:"factors"`
}

// ScoreBreakdown is the explainable result of scoring one document.
// Sub-scores are health (higher is better); Overall is risk (higher is
// staler).
type ScoreBreakdown struct {
	Stability     Component `json:"stability"`
	CodeAlignment Component `json:"codeAlignment"`
	InfoDemand    Component `json:"infoDemand"`
	Ownership     Component `json:"ownership"`
	Overall       float64   `json:"overall"`
	Policy        string    `json:"policy"`
}

// Component returns a pointer to the named sub-score.
func (b *ScoreBreakdown) Component(s SubScore) *Component {
	switch s {
	case SubScoreStability:
		return &b.Stability
	case SubScoreCodeAlignment:
		return &b.CodeAlignment
	case SubScoreInfoDemand:
		return &b.InfoDemand
	case SubScoreOwnership:
		return &b.Ownership
	}
	return nil
}
