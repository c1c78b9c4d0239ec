package scanning

// Alternative is a safer product suggested in place of the scanned one
type Alternative struct {
	ProductName string `json:"product_name"`
	WhyBetter   string `json:"why_better"`
}

// SafetyReport is the structured result of an ingredient-safety analysis
type SafetyReport struct {
	SafetyScore         int           `json:"safety_score"` // 0-100, higher is safer
	OverallRisk         string        `json:"overall_product_risk"`
	HighRiskIngredients []string      `json:"high_risk_ingredients"`
	LowRiskIngredients  []string      `json:"low_risk_ingredients"`
	NotRecommendedFor   []string      `json:"not_recommended_for"`
	DemographicReasons  string        `json:"demographic_reasons"`
	SaferAlternatives   []Alternative `json:"safer_alternatives"`
}

// Risk is the badge shown with a report
type Risk string

const (
	RiskLow      Risk = "Low"
	RiskModerate Risk = "Moderate"
	RiskHigh     Risk = "High"
)

// RiskFromScore derives the risk badge from a safety score.
// The label returned by the service is never consulted.
func RiskFromScore(score int) Risk {
	switch {
	case score >= 80:
		return RiskLow
	case score >= 50:
		return RiskModerate
	default:
		return RiskHigh
	}
}

// Risk returns the badge for the report's score
func (r *SafetyReport) Risk() Risk {
	return RiskFromScore(r.SafetyScore)
}
