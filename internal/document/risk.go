package document

// RiskLevel is the bucket an overall score falls into. The same thresholds
// drive scoring labels, the search status field and reports.
type RiskLevel string

const (
	RiskHigh      RiskLevel = "High Risk"
	RiskMedium    RiskLevel = "Medium Risk"
	RiskLow       RiskLevel = "Low Risk"
	RiskExcellent RiskLevel = "Excellent"
)

const (
	HighRiskThreshold   = 80
	MediumRiskThreshold = 60
	LowRiskThreshold    = 40
)

// RiskFor buckets an overall score.
func RiskFor(overall float64) RiskLevel {
	switch {
	case overall >= HighRiskThreshold:
		return RiskHigh
	case overall >= MediumRiskThreshold:
		return RiskMedium
	case overall >= LowRiskThreshold:
		return RiskLow
	default:
		return RiskExcellent
	}
}

// Status is the machine form of the risk level used as a search field.
func (r RiskLevel) Status() string {
	switch r {
	case RiskHigh:
		return "high_risk"
	case RiskMedium:
		return "medium_risk"
	case RiskLow:
		return "low_risk"
	default:
		return "excellent"
	}
}
