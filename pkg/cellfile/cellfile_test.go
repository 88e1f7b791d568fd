package cellfile

import (
	"math"
	"strings"
	"testing"
)

/*****************************************************************************************************************/

const crystfelBlock = `CrystFEL unit cell file version 1.0

lattice_type = orthorhombic
centering = P
unique_axis = c

a = 78.900 A
b = 80.100 A
c = 36.000 A
al = 90.00 deg
be = 90.00 deg
ga = 90.00 deg
`

/*****************************************************************************************************************/

func TestParseCrystFELBlock(t *testing.T) {
	uc, err := Parse(strings.NewReader(crystfelBlock))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	a, b, c, al, be, ga, err := uc.Parameters()
	if err != nil {
		t.Fatalf("Parameters: %v", err)
	}
	if math.Abs(a-78.9e-10) > 1e-14 || math.Abs(b-80.1e-10) > 1e-14 || math.Abs(c-36.0e-10) > 1e-14 {
		t.Errorf("axes = (%.4g,%.4g,%.4g); want (78.9,80.1,36.0) Angstrom", a, b, c)
	}
	for _, ang := range []float64{al, be, ga} {
		if math.Abs(ang-math.Pi/2) > 1e-9 {
			t.Errorf("angle = %v; want pi/2", ang)
		}
	}
	if uc.Centering() != 'P' {
		t.Errorf("Centering = %c; want P", uc.Centering())
	}
	if uc.UniqueAxis() != 'c' {
		t.Errorf("UniqueAxis = %c; want c", uc.UniqueAxis())
	}
}

/*****************************************************************************************************************/

func TestParseCRYST1Line(t *testing.T) {
	line := "CRYST1   78.900   80.100   36.000  90.00  90.00  90.00 P 1\n"
	uc, err := Parse(strings.NewReader(line))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	a, b, c, _, _, _, err := uc.Parameters()
	if err != nil {
		t.Fatalf("Parameters: %v", err)
	}
	if math.Abs(a-78.9e-10) > 1e-14 || math.Abs(b-80.1e-10) > 1e-14 || math.Abs(c-36.0e-10) > 1e-14 {
		t.Errorf("axes = (%.4g,%.4g,%.4g); want (78.9,80.1,36.0) Angstrom", a, b, c)
	}
}

/*****************************************************************************************************************/

func TestParseRejectsUnrecognisedFormat(t *testing.T) {
	_, err := Parse(strings.NewReader("not a cell file\n"))
	if err == nil {
		t.Fatal("expected an error for an unrecognised format")
	}
}
