package utils

import "math"

// RoundTo rounds a float64 to a number of decimal digits. Negative precision
// is allowed and rounds to the left of the decimal point (precision -1 rounds
// to tens). Both the normalizer's cluster-key column and the geo-cluster
// aggregator go through this single function so the two can never drift.
func RoundTo(val float64, precision int) float64 {
	ratio := math.Pow(10, float64(precision))
	return math.Round(val*ratio) / ratio
}

// Mean returns the arithmetic mean of a slice, or 0 for an empty slice.
func Mean(vals []float64) float64 {
	if len(vals) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range vals {
		sum += v
	}
	return sum / float64(len(vals))
}
