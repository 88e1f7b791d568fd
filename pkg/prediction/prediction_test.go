package prediction

import (
	"math"
	"testing"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/crystfel-go/crystfel-go/pkg/cell"
	"github.com/crystfel-go/crystfel-go/pkg/detector"
	"github.com/crystfel-go/crystfel-go/pkg/spectrum"
)

/*****************************************************************************************************************/

func almostEqual(a, b, tol float64) bool { return math.Abs(a-b) <= tol }

/*****************************************************************************************************************/

func cubicImage(t *testing.T, wavelength float64) (*detector.Crystal, *detector.Image) {
	t.Helper()

	c, err := cell.NewFromParameters(5e-10, 5e-10, 5e-10, math.Pi/2, math.Pi/2, math.Pi/2)
	if err != nil {
		t.Fatalf("NewFromParameters: %v", err)
	}

	xtal := detector.NewCrystal(c)
	xtal.ProfileRadius = 1e7

	det := &detector.Detector{Panels: []detector.Panel{
		{
			Name:       "p0",
			Width:      2000,
			Height:     2000,
			PixelPitch: 100e-6,
			Clen:       0.1,
			Origin:     r3.Vec{-1000 * 100e-6, -1000 * 100e-6, 0.1},
			FS:         r3.Vec{100e-6, 0, 0},
			SS:         r3.Vec{0, 100e-6, 0},
		},
	}}

	img := &detector.Image{
		Detector:   det,
		Wavelength: wavelength,
		Spectrum:   spectrum.NewMonochromatic(1/wavelength, 1e6),
	}

	return xtal, img
}

/*****************************************************************************************************************/

func TestPredictUnityFindsSomeReflections(t *testing.T) {
	xtal, img := cubicImage(t, 1e-10)

	opts := Options{QMax: 5e9, Model: Unity, MinPartiality: 0}
	if err := Predict(xtal, img, opts); err != nil {
		t.Fatalf("Predict: %v", err)
	}

	if xtal.Reflections.Len() == 0 {
		t.Fatal("expected at least one predicted reflection")
	}
}

/*****************************************************************************************************************/

func TestOffsetPartialityDecaysWithExcitationError(t *testing.T) {
	k := 1e10
	near := offsetPartiality(r3.Vec{0, 0, 0}, k, 1e7)
	far := offsetPartiality(r3.Vec{0, 0, 1e8}, k, 1e7)

	if near <= far {
		t.Errorf("partiality should decay with excitation error: near=%v far=%v", near, far)
	}
	if !almostEqual(near, 1, 1e-9) {
		t.Errorf("on-sphere partiality = %v; want ~1", near)
	}
}

/*****************************************************************************************************************/

func TestRandomPartialityIsDeterministic(t *testing.T) {
	a := randomPartiality(1, 2, 3, 42)
	b := randomPartiality(1, 2, 3, 42)
	c := randomPartiality(1, 2, 4, 42)

	if a != b {
		t.Errorf("randomPartiality not deterministic: %v != %v", a, b)
	}
	if a == c {
		t.Errorf("randomPartiality should vary with index")
	}
	if a < 0 || a >= 1 {
		t.Errorf("randomPartiality out of range: %v", a)
	}
}
