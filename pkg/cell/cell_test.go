package cell

import (
	"math"
	"testing"
)

/*****************************************************************************************************************/

func almostEqual(a, b, tol float64) bool {
	return math.Abs(a-b) <= tol
}

/*****************************************************************************************************************/

func TestNewFromParametersCubic(t *testing.T) {
	c, err := NewFromParameters(1e-9, 1e-9, 1e-9, math.Pi/2, math.Pi/2, math.Pi/2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	da, db, dc, err := c.DirectAxes()
	if err != nil {
		t.Fatalf("DirectAxes: %v", err)
	}

	if !almostEqual(norm(da), 1e-9, 1e-18) || !almostEqual(norm(db), 1e-9, 1e-18) || !almostEqual(norm(dc), 1e-9, 1e-18) {
		t.Errorf("cubic direct axes should all have length 1e-9, got %v %v %v", da, db, dc)
	}

	if !almostEqual(da.Dot(db), 0, 1e-25) || !almostEqual(db.Dot(dc), 0, 1e-25) || !almostEqual(da.Dot(dc), 0, 1e-25) {
		t.Errorf("cubic direct axes should be mutually orthogonal")
	}
}

/*****************************************************************************************************************/

func TestParametersRoundTripThroughDirect(t *testing.T) {
	a, b, cc := 5e-10, 6e-10, 7e-10
	alpha, beta, gamma := 1.3, 1.5, 1.1

	orig, err := NewFromParameters(a, b, cc, alpha, beta, gamma)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	da, db, dc, err := orig.DirectAxes()
	if err != nil {
		t.Fatalf("DirectAxes: %v", err)
	}

	viaDirect, err := NewFromDirectAxes(da, db, dc)
	if err != nil {
		t.Fatalf("NewFromDirectAxes: %v", err)
	}

	a2, b2, c2, alpha2, beta2, gamma2, err := viaDirect.Parameters()
	if err != nil {
		t.Fatalf("Parameters: %v", err)
	}

	if !almostEqual(a, a2, 1e-18) || !almostEqual(b, b2, 1e-18) || !almostEqual(cc, c2, 1e-18) {
		t.Errorf("axis lengths did not round-trip: got %v %v %v, want %v %v %v", a2, b2, c2, a, b, cc)
	}
	if !almostEqual(alpha, alpha2, 1e-9) || !almostEqual(beta, beta2, 1e-9) || !almostEqual(gamma, gamma2, 1e-9) {
		t.Errorf("angles did not round-trip: got %v %v %v, want %v %v %v", alpha2, beta2, gamma2, alpha, beta, gamma)
	}
}

/*****************************************************************************************************************/

func TestReciprocalOfCubicIsDiagonal(t *testing.T) {
	a := 2e-10
	c, err := NewFromParameters(a, a, a, math.Pi/2, math.Pi/2, math.Pi/2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	ra, rb, rc, err := c.ReciprocalAxes()
	if err != nil {
		t.Fatalf("ReciprocalAxes: %v", err)
	}

	want := 1 / a
	if !almostEqual(norm(ra), want, want*1e-9) || !almostEqual(norm(rb), want, want*1e-9) || !almostEqual(norm(rc), want, want*1e-9) {
		t.Errorf("reciprocal cubic axes should have length 1/a = %v, got %v %v %v", want, ra, rb, rc)
	}
}

/*****************************************************************************************************************/

func TestReciprocalDirectRoundTrip(t *testing.T) {
	c, err := NewFromParameters(5e-10, 6e-10, 7e-10, 1.4, 1.5, 1.6)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	ra, rb, rc, err := c.ReciprocalAxes()
	if err != nil {
		t.Fatalf("ReciprocalAxes: %v", err)
	}

	viaRecip, err := NewFromReciprocalAxes(ra, rb, rc)
	if err != nil {
		t.Fatalf("NewFromReciprocalAxes: %v", err)
	}

	da, db, dc, err := viaRecip.DirectAxes()
	if err != nil {
		t.Fatalf("DirectAxes: %v", err)
	}

	origDa, origDb, origDc, err := c.DirectAxes()
	if err != nil {
		t.Fatalf("DirectAxes on original: %v", err)
	}

	if !almostEqual(norm(da.Sub(origDa)), 0, 1e-18) ||
		!almostEqual(norm(db.Sub(origDb)), 0, 1e-18) ||
		!almostEqual(norm(dc.Sub(origDc)), 0, 1e-18) {
		t.Errorf("direct axes did not round-trip through reciprocal: got %v %v %v, want %v %v %v", da, db, dc, origDa, origDb, origDc)
	}
}

/*****************************************************************************************************************/

func TestNoParametersReturnsError(t *testing.T) {
	var c UnitCell
	if _, _, _, _, _, _, err := c.Parameters(); err != ErrNoParameters {
		t.Errorf("expected ErrNoParameters, got %v", err)
	}
}

/*****************************************************************************************************************/

func TestValidateCenteringRejectsHexOnOrthorhombic(t *testing.T) {
	c, _ := NewFromParameters(1e-9, 1e-9, 1e-9, math.Pi/2, math.Pi/2, math.Pi/2)
	c.SetLatticeType(Orthorhombic)
	c.SetCentering(H)
	if err := c.ValidateCentering(); err != ErrCenteringFatal {
		t.Errorf("expected ErrCenteringFatal for H centering on orthorhombic, got %v", err)
	}
}

/*****************************************************************************************************************/

func TestValidateCenteringRejectsMonoclinicUniqueAxisClash(t *testing.T) {
	c, _ := NewFromParameters(1e-9, 1e-9, 1e-9, math.Pi/2, math.Pi/2, 2.0)
	c.SetLatticeType(Monoclinic)
	c.SetCentering(B)
	c.SetUniqueAxis(AxisB)
	if err := c.ValidateCentering(); err != ErrCenteringFatal {
		t.Errorf("expected ErrCenteringFatal for B-centering with unique axis b, got %v", err)
	}
}

/*****************************************************************************************************************/

func TestValidateCenteringAcceptsOrdinaryCases(t *testing.T) {
	c, _ := NewFromParameters(1e-9, 1e-9, 1e-9, math.Pi/2, math.Pi/2, math.Pi/2)
	c.SetLatticeType(Cubic)
	c.SetCentering(F)
	if err := c.ValidateCentering(); err != nil {
		t.Errorf("F centering on cubic should be valid, got %v", err)
	}
}

/*****************************************************************************************************************/

func TestRightHandedCubicIsRightHanded(t *testing.T) {
	c, err := NewFromParameters(1e-9, 1e-9, 1e-9, math.Pi/2, math.Pi/2, math.Pi/2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	rh, err := c.RightHanded()
	if err != nil {
		t.Fatalf("RightHanded: %v", err)
	}
	if !rh {
		t.Errorf("canonical-convention cubic cell should be right-handed")
	}

	rhRecip, err := c.RightHandedReciprocal()
	if err != nil {
		t.Fatalf("RightHandedReciprocal: %v", err)
	}
	if rh != rhRecip {
		t.Errorf("direct and reciprocal right-handedness tests disagree")
	}
}

/*****************************************************************************************************************/

func TestTransformIdentityRoundTrip(t *testing.T) {
	c, err := NewFromParameters(5e-10, 6e-10, 7e-10, 1.4, 1.5, 1.6)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	out, err := c.Transform(Identity3x3{})
	if err != nil {
		t.Fatalf("Transform: %v", err)
	}

	a, b, cc, alpha, beta, gamma, err := out.Parameters()
	if err != nil {
		t.Fatalf("Parameters: %v", err)
	}
	wa, wb, wc, walpha, wbeta, wgamma, _ := c.Parameters()
	if !almostEqual(a, wa, 1e-18) || !almostEqual(b, wb, 1e-18) || !almostEqual(cc, wc, 1e-18) ||
		!almostEqual(alpha, walpha, 1e-9) || !almostEqual(beta, wbeta, 1e-9) || !almostEqual(gamma, wgamma, 1e-9) {
		t.Errorf("identity transform should not change cell parameters")
	}
}

/*****************************************************************************************************************/

func TestTransformThenInverseRoundTrip(t *testing.T) {
	c, err := NewFromParameters(5e-10, 6e-10, 7e-10, 1.4, 1.5, 1.6)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	m := swapABMatrix{}
	transformed, err := c.Transform(m)
	if err != nil {
		t.Fatalf("Transform: %v", err)
	}
	back, err := transformed.TransformInverse(m)
	if err != nil {
		t.Fatalf("TransformInverse: %v", err)
	}

	a, b, cc, alpha, beta, gamma, err := back.Parameters()
	if err != nil {
		t.Fatalf("Parameters: %v", err)
	}
	wa, wb, wc, walpha, wbeta, wgamma, _ := c.Parameters()
	if !almostEqual(a, wa, 1e-18) || !almostEqual(b, wb, 1e-18) || !almostEqual(cc, wc, 1e-18) ||
		!almostEqual(alpha, walpha, 1e-9) || !almostEqual(beta, wbeta, 1e-9) || !almostEqual(gamma, wgamma, 1e-9) {
		t.Errorf("transform then inverse transform should round-trip: got %v %v %v %v %v %v, want %v %v %v %v %v %v",
			a, b, cc, alpha, beta, gamma, wa, wb, wc, walpha, wbeta, wgamma)
	}
}

/*****************************************************************************************************************/

// Identity3x3 is a Transform3x3 fixture for tests.
type Identity3x3 struct{}

func (Identity3x3) Float64() [9]float64 {
	return [9]float64{1, 0, 0, 0, 1, 0, 0, 0, 1}
}

// swapABMatrix swaps the a and b axes; it is its own inverse.
type swapABMatrix struct{}

func (swapABMatrix) Float64() [9]float64 {
	return [9]float64{0, 1, 0, 1, 0, 0, 0, 0, 1}
}
