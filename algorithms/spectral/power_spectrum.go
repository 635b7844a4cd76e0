package spectral

import (
	"math/cmplx"

	"github.com/mjibson/go-dsp/fft"

	"github.com/RyanBlaney/sonido-smooth/algorithms/common"
)

// PowerSpectrum computes one-sided power spectra of coefficient channels
type PowerSpectrum struct {
	// RemoveMean subtracts the channel mean before the transform so a
	// constant offset does not show up as DC energy
	RemoveMean bool
}

// NewPowerSpectrum creates a power spectrum calculator that removes the mean
func NewPowerSpectrum() *PowerSpectrum {
	return &PowerSpectrum{RemoveMean: true}
}

// Compute returns |X_k|^2 for k in [0, n/2]. go-dsp handles any length,
// including frame counts that are not a power of 2.
func (ps *PowerSpectrum) Compute(x []float64) []float64 {
	if len(x) == 0 {
		return []float64{}
	}

	input := x
	if ps.RemoveMean {
		mean := common.Mean(x)
		input = make([]float64, len(x))
		for i, v := range x {
			input[i] = v - mean
		}
	}

	spectrum := fft.FFTReal(input)
	power := make([]float64, len(spectrum)/2+1)
	for k := range power {
		mag := cmplx.Abs(spectrum[k])
		power[k] = mag * mag
	}
	return power
}
