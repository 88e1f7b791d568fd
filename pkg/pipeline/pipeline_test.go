package pipeline

import (
	"math"
	"testing"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/crystfel-go/crystfel-go/pkg/cell"
	"github.com/crystfel-go/crystfel-go/pkg/detector"
	"github.com/crystfel-go/crystfel-go/pkg/indexing"
	"github.com/crystfel-go/crystfel-go/pkg/peaksearch"
	"github.com/crystfel-go/crystfel-go/pkg/prediction"
	"github.com/crystfel-go/crystfel-go/pkg/spectrum"
)

/*****************************************************************************************************************/

func testImage(t *testing.T) *detector.Image {
	t.Helper()

	det := &detector.Detector{Panels: []detector.Panel{
		{
			Name: "p0", Width: 2000, Height: 2000,
			PixelPitch: 100e-6, Clen: 0.1,
			Origin: r3.Vec{-1000 * 100e-6, -1000 * 100e-6, 0.1},
			FS:     r3.Vec{100e-6, 0, 0},
			SS:     r3.Vec{0, 100e-6, 0},
		},
	}}

	return &detector.Image{
		Detector:   det,
		Wavelength: 1e-10,
		Spectrum:   spectrum.NewMonochromatic(1e10, 1e6),
		Frames: []peaksearch.Frame{
			{Panel: 0, Width: 2000, Height: 2000, Pixels: flatPixels(2000, 2000)},
		},
	}
}

/*****************************************************************************************************************/

func flatPixels(w, h int) [][]float64 {
	out := make([][]float64, h)
	for i := range out {
		out[i] = make([]float64, w)
	}
	return out
}

/*****************************************************************************************************************/

func TestProcessImageWithoutEngineOnlyRunsPeakSearch(t *testing.T) {
	img := testImage(t)
	finder := peaksearch.GradientFinder{Threshold: 1e9, GradientThreshold: 1, Radius: 2, MinSNR: 3}

	res := ProcessImage(img, Options{Finder: finder})
	if res.Err != nil {
		t.Fatalf("ProcessImage: %v", res.Err)
	}
	if len(img.Crystals) != 0 {
		t.Errorf("expected no crystals without an engine, got %d", len(img.Crystals))
	}
}

/*****************************************************************************************************************/

type alwaysIndexes struct{ c *cell.UnitCell }

func (a alwaysIndexes) Name() string { return "always" }
func (a alwaysIndexes) Prepare(prior *indexing.PriorCell, det *detector.Detector, flags indexing.Flags) (any, error) {
	return nil, nil
}
func (a alwaysIndexes) Cleanup(handle any) {}
func (a alwaysIndexes) Run(handle any, img *detector.Image, flags indexing.Flags) ([]*cell.UnitCell, error) {
	return []*cell.UnitCell{a.c}, nil
}

/*****************************************************************************************************************/

func TestProcessImageRunsFullPipelineWithEngine(t *testing.T) {
	img := testImage(t)
	c, err := cell.NewFromParameters(5e-10, 5e-10, 5e-10, math.Pi/2, math.Pi/2, math.Pi/2)
	if err != nil {
		t.Fatalf("NewFromParameters: %v", err)
	}

	res := ProcessImage(img, Options{
		Engine:     alwaysIndexes{c: c},
		Prediction: prediction.Options{QMax: 5e9, Model: prediction.Unity},
	})
	if res.Err != nil {
		t.Fatalf("ProcessImage: %v", res.Err)
	}
	if len(img.Crystals) != 1 {
		t.Fatalf("expected 1 crystal, got %d", len(img.Crystals))
	}
	if img.Crystals[0].Reflections.Len() == 0 {
		t.Error("expected predicted reflections on the indexed crystal")
	}
}
