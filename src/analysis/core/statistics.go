package core

import "math"

// -----------------------------------------------------------------------------

// CalculateMeanStd computes mean and population standard deviation.
func CalculateMeanStd(data []float64) (float64, float64) {
	if len(data) == 0 {
		return 0, 0
	}

	sum := 0.0
	for _, v := range data {
		sum += v
	}
	mean := sum / float64(len(data))

	if len(data) == 1 {
		return mean, 0
	}

	varianceSum := 0.0
	for _, v := range data {
		varianceSum += (v - mean) * (v - mean)
	}
	return mean, math.Sqrt(varianceSum / float64(len(data)))
}

// -----------------------------------------------------------------------------

// CalculateCorrelation computes the Pearson correlation coefficient.
// Returns 0 for mismatched lengths, fewer than two points or zero variance.
func CalculateCorrelation(x, y []float64) float64 {
	if len(x) != len(y) || len(x) < 2 {
		return 0
	}

	_, stdX := CalculateMeanStd(x)
	_, stdY := CalculateMeanStd(y)
	if stdX == 0 || stdY == 0 {
		return 0
	}

	n := float64(len(x))
	sumX, sumY, sumXY, sumX2, sumY2 := 0.0, 0.0, 0.0, 0.0, 0.0
	for i := 0; i < len(x); i++ {
		sumX += x[i]
		sumY += y[i]
		sumXY += x[i] * y[i]
		sumX2 += x[i] * x[i]
		sumY2 += y[i] * y[i]
	}

	numerator := (n * sumXY) - (sumX * sumY)
	denominator := math.Sqrt(((n * sumX2) - (sumX * sumX)) * ((n * sumY2) - (sumY * sumY)))
	if denominator == 0 {
		return 0
	}

	result := numerator / denominator
	if math.IsNaN(result) {
		return 0
	}
	return result
}

// -----------------------------------------------------------------------------

// CalculateSlope is the least-squares slope of y over x.
func CalculateSlope(x, y []float64) float64 {
	if len(x) != len(y) || len(x) < 2 {
		return 0
	}

	meanX, _ := CalculateMeanStd(x)
	meanY, _ := CalculateMeanStd(y)

	num, den := 0.0, 0.0
	for i := range x {
		dx := x[i] - meanX
		num += dx * (y[i] - meanY)
		den += dx * dx
	}
	if den == 0 {
		return 0
	}
	return num / den
}
