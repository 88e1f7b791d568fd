// Package spectrum models a beam spectrum as a finite sum of Gaussian
// components over wavenumber (spec.md 3), used by pkg/prediction to weight
// Ewald-sphere partiality and by the XSPHERE model's quadratures.
package spectrum

import "math"

/*****************************************************************************************************************/

// Gaussian is one component {kcen, sigma, area} of a beam spectrum, all in
// metres^-1 (wavenumber space).
type Gaussian struct {
	KCen  float64
	Sigma float64
	Area  float64
}

/*****************************************************************************************************************/

// Spectrum is a weighted sum of Gaussian components, normalised so that the
// total area under Evaluate equals the sum of the components' Area fields.
type Spectrum struct {
	Gaussians []Gaussian
}

/*****************************************************************************************************************/

// NewMonochromatic returns a single-line spectrum: a narrow Gaussian of unit
// area centred on k, suitable for the UNITY/OFFSET partiality models which
// don't need a spread.
func NewMonochromatic(k, sigma float64) *Spectrum {
	return &Spectrum{Gaussians: []Gaussian{{KCen: k, Sigma: sigma, Area: 1}}}
}

/*****************************************************************************************************************/

const invSqrt2Pi = 0.3989422804014327

/*****************************************************************************************************************/

// Evaluate returns the spectral density E(k), the sum of each Gaussian
// component's normal density scaled by its Area.
func (s *Spectrum) Evaluate(k float64) float64 {
	var sum float64
	for _, g := range s.Gaussians {
		if g.Sigma <= 0 {
			continue
		}
		d := (k - g.KCen) / g.Sigma
		sum += g.Area * invSqrt2Pi / g.Sigma * math.Exp(-0.5*d*d)
	}
	return sum
}

/*****************************************************************************************************************/

// Bounds returns a wavenumber interval [lo,hi] covering every component out
// to 'sigmas' standard deviations, for callers needing a finite quadrature
// range (pkg/prediction's XSPHERE partiality).
func (s *Spectrum) Bounds(sigmas float64) (lo, hi float64) {
	if len(s.Gaussians) == 0 {
		return 0, 0
	}
	lo = math.Inf(1)
	hi = math.Inf(-1)
	for _, g := range s.Gaussians {
		l := g.KCen - sigmas*g.Sigma
		h := g.KCen + sigmas*g.Sigma
		if l < lo {
			lo = l
		}
		if h > hi {
			hi = h
		}
	}
	return lo, hi
}

/*****************************************************************************************************************/

// MeanK returns the area-weighted mean wavenumber, the hand-rolled
// replacement for gonum/stat.MeanVariance (not present in this pack
// snapshot — see DESIGN.md).
func (s *Spectrum) MeanK() float64 {
	var sumArea, sumWeighted float64
	for _, g := range s.Gaussians {
		sumArea += g.Area
		sumWeighted += g.Area * g.KCen
	}
	if sumArea == 0 {
		return 0
	}
	return sumWeighted / sumArea
}
