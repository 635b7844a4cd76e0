package spectral

import (
	"github.com/RyanBlaney/sonido-smooth/algorithms/common"
)

// HighFrequencyRatio returns the share of spectral energy above cutoff, where
// cutoff is a fraction of the one-sided spectrum (0.5 splits it at half of
// Nyquist). The DC bin is ignored. Sequences without AC energy report 0.
func HighFrequencyRatio(x []float64, cutoff float64) float64 {
	if len(x) < 2 {
		return 0.0
	}
	cutoff = common.Clamp(cutoff, 0, 1)

	power := NewPowerSpectrum().Compute(x)
	split := int(cutoff * float64(len(power)-1))

	low, high := 0.0, 0.0
	for k := 1; k < len(power); k++ {
		if k <= split {
			low += power[k]
		} else {
			high += power[k]
		}
	}

	total := low + high
	if total < 1e-20 {
		return 0.0
	}
	return high / total
}
