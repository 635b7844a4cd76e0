package windowing

import (
	"fmt"
	"math"
)

// MaxRadius bounds the kernel half width. 65536 frames is about 18 minutes
// at 60 frames per second.
const MaxRadius = 1 << 16

// Gaussian represents a centered Gaussian kernel indexed by integer offset.
//
// The kernel is addressed by offset from its center: coefficient(offset) = exp(factor * (offset/sigma)^2) for
// offset in [-radius, radius]. The normalized Gaussian corresponds to
// factor = -0.5.
type Gaussian struct {
	radius       int
	sigma        float64
	factor       float64
	coefficients []float64
}

// NewGaussian creates a Gaussian kernel of 2*radius+1 coefficients.
//
// Parameters:
//   - radius: half width of the kernel (0 to MaxRadius)
//   - sigma: decay scale in samples (> 0)
//   - factor: exponent multiplier (< 0), -0.5 for the textbook Gaussian
func NewGaussian(radius int, sigma, factor float64) (*Gaussian, error) {
	if radius < 0 || radius > MaxRadius {
		return nil, fmt.Errorf("gaussian radius must be in [0, %d], got %d", MaxRadius, radius)
	}
	if sigma <= 0 || math.IsNaN(sigma) || math.IsInf(sigma, 0) {
		return nil, fmt.Errorf("gaussian sigma must be positive and finite, got %v", sigma)
	}
	if factor >= 0 || math.IsNaN(factor) || math.IsInf(factor, 0) {
		return nil, fmt.Errorf("gaussian factor must be negative and finite, got %v", factor)
	}

	g := &Gaussian{
		radius: radius,
		sigma:  sigma,
		factor: factor,
	}
	g.generate()
	return g, nil
}

// generate fills the coefficient table, index offset+radius.
func (g *Gaussian) generate() {
	g.coefficients = make([]float64, 2*g.radius+1)

	for i := -g.radius; i <= g.radius; i++ {
		delta := float64(i) / g.sigma
		g.coefficients[i+g.radius] = math.Exp(delta * delta * g.factor)
	}
}

// Coefficient returns the weight at the given offset from center,
// or 0 when the offset falls outside the kernel.
func (g *Gaussian) Coefficient(offset int) float64 {
	if offset < -g.radius || offset > g.radius {
		return 0
	}
	return g.coefficients[offset+g.radius]
}

// GetCoefficients returns a copy of the kernel coefficients
func (g *Gaussian) GetCoefficients() []float64 {
	coeffs := make([]float64, len(g.coefficients))
	copy(coeffs, g.coefficients)
	return coeffs
}

// GetSize returns the kernel length (2*radius+1)
func (g *Gaussian) GetSize() int {
	return len(g.coefficients)
}

// GetRadius returns the kernel half width
func (g *Gaussian) GetRadius() int {
	return g.radius
}

// GetType returns the window type
func (g *Gaussian) GetType() string {
	return "gaussian"
}
