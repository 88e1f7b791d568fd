package indexing

import (
	"math"
	"testing"

	"github.com/crystfel-go/crystfel-go/pkg/cell"
	"github.com/crystfel-go/crystfel-go/pkg/detector"
	"github.com/crystfel-go/crystfel-go/pkg/peaksearch"
)

/*****************************************************************************************************************/

// stubEngine fails while any peak's Intensity is below minIntensity
// (simulating noise that confuses indexing) and otherwise returns c.
type stubEngine struct {
	minIntensity float64
	c            *cell.UnitCell
	runs         int
}

func (s *stubEngine) Name() string { return "stub" }
func (s *stubEngine) Prepare(prior *PriorCell, det *detector.Detector, flags Flags) (any, error) {
	return nil, nil
}
func (s *stubEngine) Cleanup(handle any) {}
func (s *stubEngine) Run(handle any, img *detector.Image, flags Flags) ([]*cell.UnitCell, error) {
	s.runs++
	for _, p := range img.Peaks {
		if p.Intensity < s.minIntensity {
			return nil, nil
		}
	}
	return []*cell.UnitCell{s.c}, nil
}

/*****************************************************************************************************************/

func cubicCell(t *testing.T) *cell.UnitCell {
	t.Helper()
	c, err := cell.NewFromParameters(5e-10, 5e-10, 5e-10, math.Pi/2, math.Pi/2, math.Pi/2)
	if err != nil {
		t.Fatalf("NewFromParameters: %v", err)
	}
	return c
}

/*****************************************************************************************************************/

func peaksDescending(n int) []peaksearch.Peak {
	out := make([]peaksearch.Peak, n)
	for i := range out {
		out[i] = peaksearch.Peak{FS: float64(i), SS: float64(i), Intensity: float64(n - i)}
	}
	return out
}

/*****************************************************************************************************************/

func TestIndexRetryRecoversAfterTrimmingWeakPeaks(t *testing.T) {
	// 9 peaks, intensities 9..1. minIntensity=3 means the untrimmed list
	// fails (it contains intensities 1 and 2); dropping the weakest third
	// (the bottom 3, intensities 1-3) leaves 4..9, which passes.
	engine := &stubEngine{minIntensity: 3, c: cubicCell(t)}
	img := &detector.Image{Peaks: peaksDescending(9)}

	crystals, err := Index(engine, nil, nil, img, Retry)
	if err != nil {
		t.Fatalf("Index: %v", err)
	}
	if len(crystals) != 1 {
		t.Fatalf("expected 1 crystal after retry, got %d", len(crystals))
	}
	if engine.runs != 2 {
		t.Errorf("expected 2 engine runs (initial + retry), got %d", engine.runs)
	}
}

/*****************************************************************************************************************/

func TestIndexWithoutRetryDoesNotTrim(t *testing.T) {
	engine := &stubEngine{minIntensity: 3, c: cubicCell(t)}
	img := &detector.Image{Peaks: peaksDescending(9)}

	crystals, err := Index(engine, nil, nil, img, Flags(0))
	if err != nil {
		t.Fatalf("Index: %v", err)
	}
	if len(crystals) != 0 {
		t.Errorf("expected no crystals without RETRY, got %d", len(crystals))
	}
	if engine.runs != 1 {
		t.Errorf("expected exactly 1 engine run without RETRY, got %d", engine.runs)
	}
}

/*****************************************************************************************************************/

func TestIndexWithoutMultiStopsAfterOneCrystal(t *testing.T) {
	engine := &stubEngine{minIntensity: 0, c: cubicCell(t)}
	img := &detector.Image{Peaks: peaksDescending(20)}

	crystals, err := Index(engine, nil, nil, img, Flags(0))
	if err != nil {
		t.Fatalf("Index: %v", err)
	}
	if len(crystals) != 1 {
		t.Fatalf("expected exactly 1 crystal without MULTI, got %d", len(crystals))
	}
}

/*****************************************************************************************************************/

func TestFlagsCombineIndependently(t *testing.T) {
	f := Retry | Multi
	if !f.has(Retry) || !f.has(Multi) {
		t.Fatal("combined flags should report both bits set")
	}
	if f.has(UseLatticeType) {
		t.Fatal("unset bit reported as set")
	}
}
