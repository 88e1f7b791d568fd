package cellutils

import (
	"math"
	"testing"

	"github.com/crystfel-go/crystfel-go/pkg/cell"
	"gonum.org/v1/gonum/spatial/r3"
)

/*****************************************************************************************************************/

func TestWithinTolerance(t *testing.T) {
	if !WithinTolerance(100, 100.5, 1) {
		t.Errorf("0.5%% difference should be within 1%% tolerance")
	}
	if WithinTolerance(100, 102, 1) {
		t.Errorf("2%% difference should not be within 1%% tolerance")
	}
}

/*****************************************************************************************************************/

// TestMatchCellPermutation covers spec scenario 3: template a=b=c=5 Angstrom,
// cubic, P; input is the same cell with axes permuted (a,b,c) -> (c,a,b).
// Matching with reduce=false must find the permutation and yield FOM < 1e-7.
func TestMatchCellPermutation(t *testing.T) {
	a := 5e-10
	template, err := cell.NewFromParameters(a, a, a, math.Pi/2, math.Pi/2, math.Pi/2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	template.SetLatticeType(cell.Cubic)
	template.SetCentering(cell.P)

	da, db, dc, err := template.DirectAxes()
	if err != nil {
		t.Fatalf("DirectAxes: %v", err)
	}

	permuted, err := cell.NewFromDirectAxes(dc, da, db)
	if err != nil {
		t.Fatalf("NewFromDirectAxes: %v", err)
	}
	permuted.SetLatticeType(cell.Cubic)
	permuted.SetCentering(cell.P)

	tol := Tolerances{LengthPct: [3]float64{1, 1, 1}, AngleRad: 0.01}
	matched, fom, ok := MatchCell(permuted, template, tol, false)
	if !ok {
		t.Fatalf("expected MatchCell to find the permutation match")
	}
	if fom >= 1e-7 {
		t.Errorf("FOM = %v; want < 1e-7", fom)
	}

	ma, mb, mc, malpha, mbeta, mgamma, err := matched.Parameters()
	if err != nil {
		t.Fatalf("Parameters: %v", err)
	}
	if !almostEqual(ma, a, a*1e-6) || !almostEqual(mb, a, a*1e-6) || !almostEqual(mc, a, a*1e-6) {
		t.Errorf("matched axis lengths = %v %v %v; want all %v", ma, mb, mc, a)
	}
	if !almostEqual(malpha, math.Pi/2, 1e-6) || !almostEqual(mbeta, math.Pi/2, 1e-6) || !almostEqual(mgamma, math.Pi/2, 1e-6) {
		t.Errorf("matched angles = %v %v %v; want all pi/2", malpha, mbeta, mgamma)
	}
}

/*****************************************************************************************************************/

func TestCompareReindexedCellParametersIdentity(t *testing.T) {
	a := 5e-10
	reference, err := cell.NewFromParameters(a, a, a, math.Pi/2, math.Pi/2, math.Pi/2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	reference.SetLatticeType(cell.Cubic)
	reference.SetCentering(cell.P)

	in := reference.Copy()

	matched, m, ok := CompareReindexedCellParameters(in, reference, 1, 0.01)
	if !ok {
		t.Fatalf("expected a reindexing match")
	}
	if m.Det() != 1 {
		t.Errorf("winning matrix should have determinant +1, got %v", m.Det())
	}

	ma, mb, mc, _, _, _, err := matched.Parameters()
	if err != nil {
		t.Fatalf("Parameters: %v", err)
	}
	if !almostEqual(ma, a, a*1e-6) || !almostEqual(mb, a, a*1e-6) || !almostEqual(mc, a, a*1e-6) {
		t.Errorf("matched axis lengths = %v %v %v; want all %v", ma, mb, mc, a)
	}
}

/*****************************************************************************************************************/

func TestAngleBetweenOrthogonalVectors(t *testing.T) {
	a := r3.Vec{1, 0, 0}
	b := r3.Vec{0, 1, 0}
	got := angleBetween(a, b)
	if !almostEqual(got, math.Pi/2, 1e-12) {
		t.Errorf("angleBetween orthogonal unit vectors = %v; want pi/2", got)
	}
}
