package postrefine

import (
	"math"
	"testing"

	"github.com/crystfel-go/crystfel-go/pkg/cell"
	"github.com/crystfel-go/crystfel-go/pkg/detector"
	"github.com/crystfel-go/crystfel-go/pkg/reflection"
)

/*****************************************************************************************************************/

func cubicCrystal(t *testing.T) *detector.Crystal {
	t.Helper()
	c, err := cell.NewFromParameters(5e-10, 5e-10, 5e-10, math.Pi/2, math.Pi/2, math.Pi/2)
	if err != nil {
		t.Fatalf("NewFromParameters: %v", err)
	}
	xtal := detector.NewCrystal(c)
	xtal.ProfileRadius = 1e7
	return xtal
}

/*****************************************************************************************************************/

func TestRefineSucceedsWithNonNegativeResidual(t *testing.T) {
	xtal := cubicCrystal(t)
	img := &detector.Image{Wavelength: 1e-10}

	for _, hkl := range [][3]int{{1, 0, 0}, {0, 1, 0}, {1, 1, 0}, {1, 1, 1}, {2, 0, 0}} {
		idx, _ := reflection.NewMillerIndex(hkl[0], hkl[1], hkl[2])
		r := xtal.Reflections.Insert(idx)
		r.Intensity = 1000
	}

	var lastResidual float64
	err := Refine(xtal, img, Options{MaxIterations: 200, BigShiftDeg: 5}, func(x [4]float64, residual float64) {
		lastResidual = residual
	})
	if err != nil {
		t.Fatalf("Refine: %v", err)
	}
	if lastResidual < 0 {
		t.Errorf("residual should never be negative, got %v", lastResidual)
	}
}

/*****************************************************************************************************************/

func TestRefineRequiresReflections(t *testing.T) {
	xtal := cubicCrystal(t)
	img := &detector.Image{Wavelength: 1e-10}

	err := Refine(xtal, img, Options{}, nil)
	if err == nil {
		t.Fatal("expected an error refining a crystal with no reflections")
	}
}
