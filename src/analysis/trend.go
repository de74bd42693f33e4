package analysis

import (
	"parking-viewer/src/analysis/core"
	"parking-viewer/src/models"
)

// -----------------------------------------------------------------------------

// SummarizeTrend computes revenue statistics over the history window: spread,
// revenue gained per step and how linearly revenue follows the step counter.
func SummarizeTrend(points []models.MHistoryPoint) models.MTrend {
	if len(points) == 0 {
		return models.MTrend{}
	}

	steps := make([]float64, len(points))
	revenue := make([]float64, len(points))
	for i, p := range points {
		steps[i] = float64(p.Step)
		revenue[i] = p.Revenue
	}

	mean, std := core.CalculateMeanStd(revenue)
	first, last, low, high := core.ComputeRange(revenue)

	return models.MTrend{
		Points:        len(points),
		MeanRevenue:   mean,
		StdRevenue:    std,
		MinRevenue:    low,
		MaxRevenue:    high,
		Slope:         core.CalculateSlope(steps, revenue),
		Correlation:   core.CalculateCorrelation(steps, revenue),
		RevenueDelta:  last - first,
		RevenueChange: core.CalculateChangePercent(last, first),
	}
}
