package filters

import (
	"fmt"
	"math"
	"sync"

	"github.com/RyanBlaney/sonido-smooth/algorithms/windowing"
	"gonum.org/v1/gonum/mat"
)

// MaxRadius is the largest accepted half window width in frames.
const MaxRadius = windowing.MaxRadius

// BilateralConfig holds the parameters of a BilateralFilter.
type BilateralConfig struct {
	Factor        float64 `json:"factor" yaml:"factor"`                 // exponent multiplier (< 0)
	DistanceSigma float64 `json:"distance_sigma" yaml:"distance_sigma"` // temporal decay scale
	RangeSigma    float64 `json:"range_sigma" yaml:"range_sigma"`       // value-difference decay scale
	Radius        int     `json:"radius" yaml:"radius"`                 // half window width in frames
	Workers       int     `json:"workers,omitempty" yaml:"workers"`     // goroutines used by Filter, <= 1 runs serially
}

// DefaultBilateralConfig returns the parameters used for expression
// coefficient smoothing: a normalized Gaussian on both axes with a
// five frame radius.
func DefaultBilateralConfig() BilateralConfig {
	return BilateralConfig{
		Factor:        -0.5,
		DistanceSigma: 1.0,
		RangeSigma:    1.0,
		Radius:        5,
	}
}

// Validate reports whether the configuration yields weights that decay with
// both temporal distance and value difference.
func (c BilateralConfig) Validate() error {
	if math.IsNaN(c.Factor) || math.IsInf(c.Factor, 0) || c.Factor >= 0 {
		return fmt.Errorf("%w: factor must be finite and negative, got %v", ErrInvalidConfiguration, c.Factor)
	}
	if !(c.DistanceSigma > 0) || math.IsInf(c.DistanceSigma, 0) {
		return fmt.Errorf("%w: distance sigma must be positive and finite, got %v", ErrInvalidConfiguration, c.DistanceSigma)
	}
	if !(c.RangeSigma > 0) || math.IsInf(c.RangeSigma, 0) {
		return fmt.Errorf("%w: range sigma must be positive and finite, got %v", ErrInvalidConfiguration, c.RangeSigma)
	}
	if c.Radius < 0 || c.Radius > MaxRadius {
		return fmt.Errorf("%w: radius must be in [0, %d], got %d", ErrInvalidConfiguration, MaxRadius, c.Radius)
	}
	if c.Workers < 0 {
		return fmt.Errorf("%w: workers must be non-negative, got %d", ErrInvalidConfiguration, c.Workers)
	}
	return nil
}

// BilateralFilter implements a one-dimensional edge-preserving smoothing
// filter over the time axis of a multi-channel signal.
//
// References:
//   - C. Tomasi, R. Manduchi, "Bilateral Filtering for Gray and Color Images",
//     ICCV 1998
//   - S. Paris, P. Kornprobst, J. Tumblin, F. Durand, "Bilateral Filtering:
//     Theory and Applications", Foundations and Trends in Computer Graphics
//     and Vision, 2009
//
// Each output sample is a normalized weighted average of the same channel
// within [t-radius, t+radius]. The weight of a neighbour is the product of
//
//	distance weight: exp(factor * (offset/distanceSigma)^2)
//	range weight:    exp(factor * (|x[t]-x[t+offset]|/rangeSigma)^2)
//
// so neighbours that differ strongly from the center are down-weighted even
// when they are close in time, which keeps steps intact while removing jitter.
//
// Near the ends of the signal the window is truncated to valid frames and the
// result is normalized by the weights actually summed. There is no padding.
//
// A BilateralFilter is immutable after construction and safe for concurrent
// use.
type BilateralFilter struct {
	config   BilateralConfig
	distance *windowing.Gaussian
}

// NewBilateralFilter validates the configuration and precomputes the
// distance weight table.
func NewBilateralFilter(config BilateralConfig) (*BilateralFilter, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	distance, err := windowing.NewGaussian(config.Radius, config.DistanceSigma, config.Factor)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfiguration, err)
	}

	return &BilateralFilter{
		config:   config,
		distance: distance,
	}, nil
}

// NewBilateralFilterDefault creates a filter with DefaultBilateralConfig.
func NewBilateralFilterDefault() *BilateralFilter {
	bf, err := NewBilateralFilter(DefaultBilateralConfig())
	if err != nil {
		panic(err) // defaults are always valid
	}
	return bf
}

// Config returns the filter parameters.
func (bf *BilateralFilter) Config() BilateralConfig {
	return bf.config
}

// DistanceWeight returns the temporal weight for a neighbour at offset
// frames from the center, or 0 outside the window.
func (bf *BilateralFilter) DistanceWeight(offset int) float64 {
	return bf.distance.Coefficient(offset)
}

// DistanceWeights returns a copy of the table, index offset+radius.
func (bf *BilateralFilter) DistanceWeights() []float64 {
	return bf.distance.GetCoefficients()
}

// RangeWeight returns the similarity weight for a value difference.
func (bf *BilateralFilter) RangeWeight(delta float64) float64 {
	d := math.Abs(delta) / bf.config.RangeSigma
	return math.Exp(d * d * bf.config.Factor)
}

// Filter smooths every channel of the signal along its time axis and returns
// a new signal of identical shape. The input is not modified.
func (bf *BilateralFilter) Filter(signal *Signal) (*Signal, error) {
	if signal == nil {
		return nil, fmt.Errorf("%w: nil signal", ErrInvalidShape)
	}
	if err := signal.validate(); err != nil {
		return nil, err
	}

	frames := signal.Frames()
	channels := signal.Channels()
	out := make([]float64, len(signal.data))

	workers := min(bf.config.Workers, frames)
	if workers <= 1 {
		bf.filterFrames(signal.data, out, frames, channels, 0, frames)
	} else {
		chunk := (frames + workers - 1) / workers

		var wg sync.WaitGroup
		for start := 0; start < frames; start += chunk {
			end := min(start+chunk, frames)
			wg.Add(1)
			go func(start, end int) {
				defer wg.Done()
				bf.filterFrames(signal.data, out, frames, channels, start, end)
			}(start, end)
		}
		wg.Wait()
	}

	return &Signal{data: out, shape: signal.Shape()}, nil
}

// filterFrames computes output frames [start, end) of the (frames, channels)
// view. Offsets are always visited in increasing order so that the result
// does not depend on how frames are partitioned.
func (bf *BilateralFilter) filterFrames(in, out []float64, frames, channels, start, end int) {
	r := bf.config.Radius

	for i := start; i < end; i++ {
		row := i * channels
		for d := 0; d < channels; d++ {
			center := in[row+d]
			mean := 0.0
			total := 0.0

			for offset := -r; offset <= r; offset++ {
				j := i + offset
				if j < 0 || j >= frames {
					continue
				}
				v := in[j*channels+d]
				w := bf.distance.Coefficient(offset) * bf.RangeWeight(center-v)
				mean += w * v
				total += w
			}

			// total >= 1: the center term always has weight exp(0)*exp(0).
			out[row+d] = mean / total
		}
	}
}

// FilterVector smooths a single-channel sequence.
func (bf *BilateralFilter) FilterVector(values []float64) ([]float64, error) {
	signal, err := SignalFromVector(values)
	if err != nil {
		return nil, err
	}

	filtered, err := bf.Filter(signal)
	if err != nil {
		return nil, err
	}
	return filtered.data, nil
}

// FilterRows smooths a (frames, channels) sequence given as one slice per frame.
func (bf *BilateralFilter) FilterRows(rows [][]float64) ([][]float64, error) {
	signal, err := SignalFromRows(rows)
	if err != nil {
		return nil, err
	}

	filtered, err := bf.Filter(signal)
	if err != nil {
		return nil, err
	}

	channels := filtered.Channels()
	out := make([][]float64, filtered.Frames())
	for t := range out {
		out[t] = filtered.data[t*channels : (t+1)*channels : (t+1)*channels]
	}
	return out, nil
}

// FilterDense smooths each column of a matrix whose rows are frames.
func (bf *BilateralFilter) FilterDense(m mat.Matrix) (*mat.Dense, error) {
	signal, err := SignalFromDense(m)
	if err != nil {
		return nil, err
	}

	filtered, err := bf.Filter(signal)
	if err != nil {
		return nil, err
	}
	return mat.NewDense(filtered.Frames(), filtered.Channels(), filtered.data), nil
}
