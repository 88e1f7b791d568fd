package detector

import (
	"math"
	"testing"

	"gonum.org/v1/gonum/spatial/r3"
)

/*****************************************************************************************************************/

func almostEqual(a, b, tol float64) bool {
	return math.Abs(a-b) <= tol
}

/*****************************************************************************************************************/

func singlePanelDetector() *Detector {
	return &Detector{Panels: []Panel{
		{
			Name:       "p0",
			Width:      1000,
			Height:     1000,
			PixelPitch: 75e-6,
			Clen:       0.1,
			Origin:     r3.Vec{-500 * 75e-6, -500 * 75e-6, 0.1},
			FS:         r3.Vec{75e-6, 0, 0},
			SS:         r3.Vec{0, 75e-6, 0},
		},
	}}
}

/*****************************************************************************************************************/

func TestPredictStraightThroughHitsCentre(t *testing.T) {
	d := singlePanelDetector()
	k := 1 / 1e-10

	fs, ss, idx, err := d.Predict(r3.Vec{0, 0, 0}, k)
	if err != nil {
		t.Fatalf("Predict: %v", err)
	}
	if idx != 0 {
		t.Errorf("panel index = %d; want 0", idx)
	}
	if !almostEqual(fs, 500, 1e-6) || !almostEqual(ss, 500, 1e-6) {
		t.Errorf("fs,ss = %v,%v; want 500,500", fs, ss)
	}
}

/*****************************************************************************************************************/

func TestPredictOffDetectorReturnsError(t *testing.T) {
	d := singlePanelDetector()
	k := 1 / 1e-10

	// A huge transverse q pushes the scattered ray far outside the panel.
	_, _, _, err := d.Predict(r3.Vec{1e12, 1e12, 0}, k)
	if err != ErrOffDetector {
		t.Errorf("expected ErrOffDetector, got %v", err)
	}
}
