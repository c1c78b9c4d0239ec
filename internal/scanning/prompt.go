package scanning

import (
	"fmt"
	"strings"
)

var expertRoles = map[Category]string{
	Cosmetics:  "cosmetic chemist and dermatology safety reviewer",
	Food:       "food scientist and nutrition safety reviewer",
	Healthcare: "pharmacist reviewing medicine and supplement excipients",
	Processed:  "food additive and preservative safety reviewer",
}

// analysisPrompt is the shared prompt used by the model backends
func analysisPrompt(category Category) string {
	role, ok := expertRoles[category]
	if !ok {
		role = "ingredient safety reviewer"
	}

	return fmt.Sprintf(`You are an expert %s. The image shows the ingredient label of a %s product.
Read every ingredient on the label and assess the product's safety.

Return ONLY valid JSON in this exact format:
{
  "safety_score": 0,
  "overall_product_risk": "Low",
  "high_risk_ingredients": ["..."],
  "low_risk_ingredients": ["..."],
  "not_recommended_for": ["..."],
  "demographic_reasons": "...",
  "safer_alternatives": [{"product_name": "...", "why_better": "..."}]
}

Important:
- safety_score is an integer from 0 (unsafe) to 100 (very safe)
- overall_product_risk is one of Low, Moderate or High
- not_recommended_for lists groups such as "pregnant women", "children" or "sensitive skin"
- Use empty arrays and empty strings when nothing applies; never omit a field
- Do not include any text before or after the JSON
- Do not use markdown code blocks`, role, strings.ToLower(category.Label()))
}

// assistantPrompt frames a follow-up question about an already computed report
func assistantPrompt(req AssistantRequest) string {
	var b strings.Builder
	fmt.Fprintf(&b, "You are an expert %s consultant.\n", req.Category.Label())
	b.WriteString("The user is viewing a report for a product with:\n")
	if req.Context != nil {
		fmt.Fprintf(&b, "- Safety Score: %d/100\n", req.Context.SafetyScore)
		fmt.Fprintf(&b, "- Risk Level: %s\n", req.Context.Risk())
		fmt.Fprintf(&b, "- High Risk Ingredients: %s\n", strings.Join(req.Context.HighRiskIngredients, ", "))
		fmt.Fprintf(&b, "- Low Risk Ingredients: %s\n", strings.Join(req.Context.LowRiskIngredients, ", "))
		fmt.Fprintf(&b, "- Not Recommended For: %s\n", strings.Join(req.Context.NotRecommendedFor, ", "))
	}
	fmt.Fprintf(&b, "\nUser Question: %s\n\n", req.Query)
	b.WriteString(`Instructions:
1. Be concise and professional.
2. Focus on health and safety related to the ingredients.
3. If the question is unrelated to this product, politely redirect them.`)
	return b.String()
}
