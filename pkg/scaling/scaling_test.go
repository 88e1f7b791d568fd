package scaling

import (
	"math"
	"testing"

	"github.com/crystfel-go/crystfel-go/pkg/cell"
	"github.com/crystfel-go/crystfel-go/pkg/cellutils"
	"github.com/crystfel-go/crystfel-go/pkg/detector"
	"github.com/crystfel-go/crystfel-go/pkg/reflection"
)

/*****************************************************************************************************************/

func almostEqual(a, b, tol float64) bool { return math.Abs(a-b) <= tol }

/*****************************************************************************************************************/

func cubicCrystal(t *testing.T) *detector.Crystal {
	t.Helper()
	c, err := cell.NewFromParameters(5e-10, 5e-10, 5e-10, math.Pi/2, math.Pi/2, math.Pi/2)
	if err != nil {
		t.Fatalf("NewFromParameters: %v", err)
	}
	return detector.NewCrystal(c)
}

/*****************************************************************************************************************/

// buildScaled populates a crystal's reflection list from a reference list,
// applying scale G, Debye-Waller B and unit partiality, with sigma a fixed
// fraction of the intensity.
func buildScaled(t *testing.T, ref *reflection.List, c *detector.Crystal, g, b float64) {
	t.Helper()
	for _, r := range ref.All() {
		s, err := cellutils.Resolution(c.Cell, r.Index.H, r.Index.K, r.Index.L)
		if err != nil {
			t.Fatalf("Resolution: %v", err)
		}
		out := c.Reflections.Insert(r.Index)
		out.Intensity = g * math.Exp(-2*b*s*s) * r.Intensity
		out.Sigma = 0.01 * out.Intensity
		out.Partiality = 1
	}
}

/*****************************************************************************************************************/

func referenceList() *reflection.List {
	ref := reflection.NewList()
	hkls := [][3]int{{1, 0, 0}, {1, 1, 0}, {1, 1, 1}, {2, 0, 0}, {2, 1, 0}, {2, 1, 1}, {2, 2, 0}, {2, 2, 1}}
	for i, hkl := range hkls {
		idx, _ := reflection.NewMillerIndex(hkl[0], hkl[1], hkl[2])
		r := ref.Insert(idx)
		r.Intensity = 1000 + float64(i)*137
		r.Sigma = 10
	}
	return ref
}

/*****************************************************************************************************************/

func TestFitCrystalScaleRecoversKnownGAndB(t *testing.T) {
	ref := referenceList()
	c := cubicCrystal(t)
	buildScaled(t, ref, c, 2.5, 3e-19)

	err := FitCrystalScale(c, ref, Options{MinReflections: 3})
	if err != nil {
		t.Fatalf("FitCrystalScale: %v", err)
	}
	if !almostEqual(c.G, 2.5, 1e-6) {
		t.Errorf("G = %v; want 2.5", c.G)
	}
	if !almostEqual(c.B, 3e-19, 1e-25) {
		t.Errorf("B = %v; want 3e-19", c.B)
	}
}

/*****************************************************************************************************************/

func TestFitCrystalScaleTooFewReflections(t *testing.T) {
	ref := referenceList()
	c := cubicCrystal(t)
	buildScaled(t, ref, c, 1, 0)

	// Only keep 2 reflections.
	all := c.Reflections.All()
	for _, r := range all[2:] {
		c.Reflections.Delete(r.Index)
	}

	err := FitCrystalScale(c, ref, Options{MinReflections: 3})
	if err == nil {
		t.Fatal("expected TooFewReflections error")
	}
}

/*****************************************************************************************************************/

func TestDirectScaleConverges(t *testing.T) {
	ref := referenceList()

	c1 := cubicCrystal(t)
	buildScaled(t, ref, c1, 1.0, 0)
	c2 := cubicCrystal(t)
	buildScaled(t, ref, c2, 4.0, 0)

	merged := DirectScale([]*detector.Crystal{c1, c2}, Options{MinReflections: 3, BootstrapIterations: 5})

	if merged.Len() == 0 {
		t.Fatal("expected a non-empty merged reference")
	}
	ratio := c2.G / c1.G
	if !almostEqual(ratio, 4.0, 0.5) {
		t.Errorf("relative scale ratio = %v; want ~4", ratio)
	}
}
