package indexing

import (
	"math"
	"sort"

	"github.com/crystfel-go/crystfel-go/pkg/cell"
	"github.com/crystfel-go/crystfel-go/pkg/detector"
	"github.com/crystfel-go/crystfel-go/pkg/peaksearch"
	"github.com/crystfel-go/crystfel-go/pkg/prediction"
)

/*****************************************************************************************************************/

// explainedPixelRadius is how close a peak must lie to a predicted
// reflection (in pixels) to count as explained by that lattice.
const explainedPixelRadius = 2.0

/*****************************************************************************************************************/

// predictionQMax bounds the search used purely to identify explained peaks;
// it doesn't need to cover the full detector, just enough of reciprocal
// space that every strong low-order reflection is considered.
const predictionQMax = 1e10

/*****************************************************************************************************************/

// MaxCrystalsPerImage bounds how many lattices MULTI will extract from a
// single image before giving up (SPEC_FULL.md's supplemental retry semantics).
const MaxCrystalsPerImage = 5

/*****************************************************************************************************************/

// Index runs engine against img, applying the RETRY and MULTI flags on top
// of Engine.Run:
//
//   - RETRY: if an attempt finds nothing, the weakest third of the working
//     peak list (by Intensity) is dropped and indexing is retried once.
//   - MULTI: each indexed cell's peaks are removed from the working list and
//     indexing is retried, up to MaxCrystalsPerImage cells or until a round
//     finds nothing new.
func Index(engine Engine, prior *PriorCell, det *detector.Detector, img *detector.Image, flags Flags) ([]*detector.Crystal, error) {
	handle, err := engine.Prepare(prior, det, flags)
	if err != nil {
		return nil, err
	}
	defer engine.Cleanup(handle)

	working := &detector.Image{
		Serial:     img.Serial,
		Detector:   img.Detector,
		Frames:     img.Frames,
		Wavelength: img.Wavelength,
		Spectrum:   img.Spectrum,
		Peaks:      append([]peaksearch.Peak(nil), img.Peaks...),
	}

	var crystals []*detector.Crystal
	maxRounds := 1
	if flags.has(Multi) {
		maxRounds = MaxCrystalsPerImage
	}

	for round := 0; round < maxRounds; round++ {
		cells, runErr := runOneRound(engine, handle, working, flags)
		if runErr != nil {
			return crystals, runErr
		}
		if len(cells) == 0 {
			break
		}

		for _, c := range cells {
			crystals = append(crystals, detector.NewCrystal(c))
		}

		if !flags.has(Multi) {
			break
		}

		remaining := removeExplained(working.Peaks, cells, working)
		if len(remaining) == len(working.Peaks) || len(remaining) == 0 {
			break
		}
		working.Peaks = remaining
	}

	return crystals, nil
}

/*****************************************************************************************************************/

// runOneRound calls engine.Run, and if RETRY is set and nothing was found,
// drops the weakest third of the peak list by intensity and tries once more.
func runOneRound(engine Engine, handle any, img *detector.Image, flags Flags) ([]*cell.UnitCell, error) {
	cells, err := engine.Run(handle, img, flags)
	if err != nil {
		return nil, err
	}
	if len(cells) > 0 || !flags.has(Retry) || len(img.Peaks) < 3 {
		return cells, nil
	}

	trimmed := &detector.Image{
		Serial:     img.Serial,
		Detector:   img.Detector,
		Frames:     img.Frames,
		Wavelength: img.Wavelength,
		Spectrum:   img.Spectrum,
		Peaks:      dropWeakestThird(img.Peaks),
	}
	return engine.Run(handle, trimmed, flags)
}

/*****************************************************************************************************************/

func dropWeakestThird(peaks []peaksearch.Peak) []peaksearch.Peak {
	sorted := append([]peaksearch.Peak(nil), peaks...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Intensity > sorted[j].Intensity })

	keep := len(sorted) - len(sorted)/3
	if keep < 1 {
		keep = 1
	}
	return sorted[:keep]
}

/*****************************************************************************************************************/

// removeExplained drops peaks within explainedPixelRadius pixels of any
// reflection predicted by cells on the same panel, so the next MULTI round
// only sees what remains unindexed.
func removeExplained(peaks []peaksearch.Peak, cells []*cell.UnitCell, img *detector.Image) []peaksearch.Peak {
	if len(cells) == 0 {
		return peaks
	}

	var predicted []peaksearch.Peak
	for _, c := range cells {
		xtal := detector.NewCrystal(c)
		if err := prediction.Predict(xtal, img, prediction.Options{QMax: predictionQMax, Model: prediction.Unity}); err != nil {
			continue
		}
		for _, r := range xtal.Reflections.All() {
			predicted = append(predicted, peaksearch.Peak{FS: r.FS, SS: r.SS, Panel: r.Panel})
		}
	}

	out := peaks[:0:0]
	for _, p := range peaks {
		explained := false
		for _, pr := range predicted {
			if pr.Panel != p.Panel {
				continue
			}
			dfs := p.FS - pr.FS
			dss := p.SS - pr.SS
			if math.Hypot(dfs, dss) <= explainedPixelRadius {
				explained = true
				break
			}
		}
		if !explained {
			out = append(out, p)
		}
	}
	return out
}
