package core

import "math"

// -----------------------------------------------------------------------------

// ComputeRange returns the first, last, lowest and highest value of data.
func ComputeRange(data []float64) (first, last, low, high float64) {
	if len(data) == 0 {
		return 0, 0, 0, 0
	}

	low = math.MaxFloat64
	high = -math.MaxFloat64
	for _, v := range data {
		if v > high {
			high = v
		}
		if v < low {
			low = v
		}
	}
	return data[0], data[len(data)-1], low, high
}

// -----------------------------------------------------------------------------

// CalculateChangePercent returns the relative change as a fraction (0.5 is +50%).
func CalculateChangePercent(current, previous float64) float64 {
	if previous == 0 {
		return 0.0
	}
	return (current - previous) / previous
}
