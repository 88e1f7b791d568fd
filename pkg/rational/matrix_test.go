package rational

import "testing"

/*****************************************************************************************************************/

func half(n, d int64) Rational {
	r, _ := New(n, d)
	return r
}

/*****************************************************************************************************************/

func TestDetIdentity(t *testing.T) {
	m := Identity3()
	if d := m.Det(); !d.Equal(One) {
		t.Errorf("det(I) = %s; want 1", d)
	}
}

/*****************************************************************************************************************/

func TestIntegerMatrixDet(t *testing.T) {
	// The body-centering transformation matrix from ITA Table 5.1.3.1,
	// det = 2.
	m := NewIntegerMatrix([9]int64{
		0, 1, 1,
		1, 0, 1,
		1, 1, 0,
	})
	if d := m.Det(); d != 2 {
		t.Errorf("det(C_I) = %d; want 2", d)
	}
}

/*****************************************************************************************************************/

func TestInverseRoundTrip(t *testing.T) {
	m := NewMatrix([9]Rational{
		FromInt(1), FromInt(0), FromInt(0),
		FromInt(0), half(1, 2), half(1, 2),
		FromInt(0), half(-1, 2), half(1, 2),
	})

	inv, err := m.Inverse()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	prod := m.Mul(inv)
	id := Identity3()
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			if !prod.At(i, j).Equal(id.At(i, j)) {
				t.Errorf("M*M^-1[%d][%d] = %s; want %s", i, j, prod.At(i, j), id.At(i, j))
			}
		}
	}
}

/*****************************************************************************************************************/

func TestInverseSingular(t *testing.T) {
	m := NewMatrix([9]Rational{
		FromInt(1), FromInt(2), FromInt(3),
		FromInt(2), FromInt(4), FromInt(6),
		FromInt(0), FromInt(1), FromInt(0),
	})
	if _, err := m.Inverse(); err == nil {
		t.Errorf("expected singular matrix error")
	}
}

/*****************************************************************************************************************/

func TestSolveMatchesInverse(t *testing.T) {
	m := NewMatrix([9]Rational{
		FromInt(2), FromInt(0), FromInt(0),
		FromInt(0), FromInt(3), FromInt(0),
		FromInt(0), FromInt(0), FromInt(5),
	})

	x, err := m.Solve([3]Rational{FromInt(4), FromInt(9), FromInt(10)})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := [3]Rational{FromInt(2), FromInt(3), FromInt(2)}
	for i := range x {
		if !x[i].Equal(want[i]) {
			t.Errorf("x[%d] = %s; want %s", i, x[i], want[i])
		}
	}
}

/*****************************************************************************************************************/

func TestToIntegerPromotion(t *testing.T) {
	m := NewMatrix([9]Rational{
		FromInt(1), FromInt(0), FromInt(0),
		FromInt(0), FromInt(1), FromInt(0),
		FromInt(0), FromInt(0), FromInt(1),
	})
	if _, ok := m.ToInteger(); !ok {
		t.Errorf("expected integer promotion to succeed")
	}

	m2 := m.Set(0, 1, half(1, 2))
	if _, ok := m2.ToInteger(); ok {
		t.Errorf("expected integer promotion to fail with a half entry")
	}
}
