package spectrum

import (
	"math"
	"testing"
)

/*****************************************************************************************************************/

func almostEqual(a, b, tol float64) bool { return math.Abs(a-b) <= tol }

/*****************************************************************************************************************/

func TestEvaluatePeaksAtCentre(t *testing.T) {
	s := NewMonochromatic(1e10, 1e7)
	center := s.Evaluate(1e10)
	off := s.Evaluate(1e10 + 5e7)
	if center <= off {
		t.Errorf("density at centre (%v) should exceed density off-centre (%v)", center, off)
	}
}

/*****************************************************************************************************************/

func TestBoundsCoverAllComponents(t *testing.T) {
	s := &Spectrum{Gaussians: []Gaussian{
		{KCen: 1e10, Sigma: 1e7, Area: 1},
		{KCen: 1.1e10, Sigma: 2e7, Area: 0.3},
	}}
	lo, hi := s.Bounds(3)
	if lo > 1e10-3e7 || hi < 1.1e10+3*2e7 {
		t.Errorf("bounds [%v,%v] do not cover both components", lo, hi)
	}
}

/*****************************************************************************************************************/

func TestMeanKWeightsByArea(t *testing.T) {
	s := &Spectrum{Gaussians: []Gaussian{
		{KCen: 1e10, Sigma: 1e6, Area: 3},
		{KCen: 2e10, Sigma: 1e6, Area: 1},
	}}
	mean := s.MeanK()
	want := (3*1e10 + 1*2e10) / 4
	if !almostEqual(mean, want, 1) {
		t.Errorf("MeanK() = %v; want %v", mean, want)
	}
}
