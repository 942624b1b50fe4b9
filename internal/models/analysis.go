package models

import "strings"

// Result keys and prefixes consumed by chart selection. Changing any of these
// breaks the front end.
const (
	KeyTrendAnalysis            = "trend_analysis"
	KeyMarketingRecommendations = "marketing_recommendations"
	KeySpecificCustomers        = "specific_customers"
	KeyHint                     = "hint"
	PrefixProduct               = "product_"
	PrefixCustomersOf           = "customers_of_"

	HintProductSearchNeeded = "product_search_needed"
)

// AnalysisResult maps a result-kind key to the aggregation output behind it.
// Values are one of *ProductAnalysis, *CustomerCharacteristics,
// *TrendAnalysis, []Recommendation or string.
type AnalysisResult map[string]any

// IsProductKey reports whether key holds a product analysis.
func IsProductKey(key string) bool {
	return strings.HasPrefix(key, PrefixProduct)
}

// IsCustomersOfKey reports whether key holds characteristics of a product's buyers.
func IsCustomersOfKey(key string) bool {
	return strings.HasPrefix(key, PrefixCustomersOf)
}
