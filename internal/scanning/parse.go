package scanning

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// requiredFields must all be present and non-null in a report payload
var requiredFields = []string{
	"safety_score",
	"overall_product_risk",
	"high_risk_ingredients",
	"low_risk_ingredients",
	"not_recommended_for",
	"demographic_reasons",
	"safer_alternatives",
}

// parseReport parses a safety report from a service or model response.
// Every failure wraps ErrMalformedResponse.
func parseReport(text string) (*SafetyReport, error) {
	text = strings.TrimSpace(text)

	// Remove markdown code blocks if present
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(text, "```")
	text = strings.TrimSpace(text)

	startIdx := strings.Index(text, "{")
	if startIdx == -1 {
		return nil, fmt.Errorf("%w: no JSON object found", ErrMalformedResponse)
	}
	endIdx := strings.LastIndex(text, "}")
	if endIdx < startIdx {
		return nil, fmt.Errorf("%w: unterminated JSON object", ErrMalformedResponse)
	}
	raw := []byte(text[startIdx : endIdx+1])

	// Check presence first so a missing field is not mistaken for its zero value
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedResponse, err)
	}
	for _, name := range requiredFields {
		value, ok := fields[name]
		if !ok || bytes.Equal(bytes.TrimSpace(value), []byte("null")) {
			return nil, fmt.Errorf("%w: missing required field %q", ErrMalformedResponse, name)
		}
	}

	var report SafetyReport
	if err := json.Unmarshal(raw, &report); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedResponse, err)
	}

	if report.SafetyScore < 0 || report.SafetyScore > 100 {
		return nil, fmt.Errorf("%w: safety_score %d out of range", ErrMalformedResponse, report.SafetyScore)
	}

	report.OverallRisk = strings.TrimSpace(report.OverallRisk)
	report.DemographicReasons = strings.TrimSpace(report.DemographicReasons)
	report.NotRecommendedFor = dedupe(report.NotRecommendedFor)

	return &report, nil
}

// dedupe drops repeated labels, keeping first occurrence order
func dedupe(labels []string) []string {
	seen := make(map[string]bool, len(labels))
	out := make([]string, 0, len(labels))
	for _, label := range labels {
		label = strings.TrimSpace(label)
		key := strings.ToLower(label)
		if label == "" || seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, label)
	}
	return out
}
