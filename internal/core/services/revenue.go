package services

import "github.com/allumi/attribution-api/internal/core/domain"

// SplitRevenue breaks tracked revenue down per campaign by attribution weight.
// Weights sum to 1.0, so the per-campaign values sum back to revenueTracked.
// An unattributed conversion (empty map) yields an empty breakdown.
func SplitRevenue(attribution map[string]domain.CampaignCredit, revenueTracked float64) map[string]float64 {
	split := make(map[string]float64, len(attribution))
	for name, credit := range attribution {
		split[name] = revenueTracked * credit.Weight
	}
	return split
}
