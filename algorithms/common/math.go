package common

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Basic statistics over coefficient channels, using gonum for robustness

// Mean calculates the arithmetic mean of a slice using gonum
func Mean(data []float64) float64 {
	if len(data) == 0 {
		return 0.0
	}
	return stat.Mean(data, nil)
}

// Variance calculates the sample variance of a slice using gonum
func Variance(data []float64) float64 {
	if len(data) < 2 {
		return 0.0
	}
	return stat.Variance(data, nil)
}

// StandardDeviation calculates the sample standard deviation
func StandardDeviation(data []float64) float64 {
	if len(data) < 2 {
		return 0.0
	}
	return math.Sqrt(Variance(data))
}

// RMS calculates root mean square
func RMS(data []float64) float64 {
	if len(data) == 0 {
		return 0.0
	}
	return floats.Norm(data, 2) / math.Sqrt(float64(len(data)))
}

// MaxAbsDifference returns max |a[i]-b[i]|, or 0 when lengths differ
func MaxAbsDifference(a, b []float64) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0.0
	}
	return floats.Distance(a, b, math.Inf(1))
}

// TotalVariation returns sum |x[t]-x[t-1]|, a measure of frame-to-frame jitter
func TotalVariation(data []float64) float64 {
	tv := 0.0
	for i := 1; i < len(data); i++ {
		tv += math.Abs(data[i] - data[i-1])
	}
	return tv
}

// Correlation calculates Pearson correlation coefficient between two series.
// Constant series have no defined correlation and report 0.
func Correlation(x, y []float64) float64 {
	if len(x) != len(y) || len(x) < 2 {
		return 0.0
	}

	c := stat.Correlation(x, y, nil)
	if math.IsNaN(c) {
		return 0.0
	}
	return c
}

// Clamp constrains a value to a range
func Clamp(value, min, max float64) float64 {
	if value < min {
		return min
	}
	if value > max {
		return max
	}
	return value
}
