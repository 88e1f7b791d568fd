package rational

import "testing"

/*****************************************************************************************************************/

func TestNewReduces(t *testing.T) {
	r, err := New(2, 4)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if r.Num() != 1 || r.Den() != 2 {
		t.Errorf("New(2,4) = %d/%d; want 1/2", r.Num(), r.Den())
	}
}

/*****************************************************************************************************************/

func TestNewNormalizesSign(t *testing.T) {
	r, err := New(1, -2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if r.Num() != -1 || r.Den() != 2 {
		t.Errorf("New(1,-2) = %d/%d; want -1/2", r.Num(), r.Den())
	}
}

/*****************************************************************************************************************/

func TestNewZeroDenominator(t *testing.T) {
	if _, err := New(1, 0); err == nil {
		t.Errorf("expected an error for zero denominator")
	}
}

/*****************************************************************************************************************/

func TestArithmetic(t *testing.T) {
	half, _ := New(1, 2)
	third, _ := New(1, 3)

	sum := half.Add(third)
	if sum.Num() != 5 || sum.Den() != 6 {
		t.Errorf("1/2 + 1/3 = %s; want 5/6", sum)
	}

	diff := half.Sub(third)
	if diff.Num() != 1 || diff.Den() != 6 {
		t.Errorf("1/2 - 1/3 = %s; want 1/6", diff)
	}

	prod := half.Mul(third)
	if prod.Num() != 1 || prod.Den() != 6 {
		t.Errorf("1/2 * 1/3 = %s; want 1/6", prod)
	}

	quot, err := half.Div(third)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if quot.Num() != 3 || quot.Den() != 2 {
		t.Errorf("1/2 / 1/3 = %s; want 3/2", quot)
	}
}

/*****************************************************************************************************************/

func TestDivByZero(t *testing.T) {
	half, _ := New(1, 2)
	if _, err := half.Div(Zero); err == nil {
		t.Errorf("expected an error dividing by zero")
	}
}

/*****************************************************************************************************************/

func TestIsIntegerAndEqual(t *testing.T) {
	whole, _ := New(4, 2)
	if !whole.IsInteger() {
		t.Errorf("4/2 should reduce to an integer")
	}
	if !whole.Equal(FromInt(2)) {
		t.Errorf("4/2 should equal 2/1")
	}
}
