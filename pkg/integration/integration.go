// Package integration computes per-reflection intensities from predicted
// detector positions by ring-sum integration over the panel pixel data
// (spec.md 4.9).
package integration

import (
	"math"

	"github.com/crystfel-go/crystfel-go/pkg/detector"
	"github.com/crystfel-go/crystfel-go/pkg/peaksearch"
	"github.com/crystfel-go/crystfel-go/pkg/reflection"
)

/*****************************************************************************************************************/

// Options configures the ring-sum: pixels within InnerRadius of the
// predicted position are the peak, pixels in the annulus
// [MiddleRadius,OuterRadius] estimate the local background.
type Options struct {
	InnerRadius  float64
	MiddleRadius float64
	OuterRadius  float64

	// SaturationMargin treats a pixel as saturated once it comes within this
	// fraction of the panel's MaxADU, i.e. reaches MaxADU*(1-SaturationMargin)
	// (spec.md 4.9's saturated-pixel handling).
	SaturationMargin float64
}

/*****************************************************************************************************************/

// Integrate fills Intensity, Sigma, Peak and Background on every reflection
// in c.Reflections, using img's per-panel pixel data. Reflections whose
// panel has no frame, or whose ring-sum touches a saturated pixel, are
// marked with reflection.FlagBadIntegration instead of aborting the run.
func Integrate(c *detector.Crystal, img *detector.Image, opts Options) {
	frames := indexFrames(img.Frames)

	c.Reflections.Each(func(r *reflection.Reflection) {
		frame, ok := frames[r.Panel]
		if !ok {
			r.SetFlag(reflection.FlagBadIntegration)
			return
		}

		panel := &img.Detector.Panels[r.Panel]

		peakSum, peakN, bgMean, bgVar, saturated := ringSum(frame, panel, r.FS, r.SS, opts)
		if peakN == 0 {
			r.SetFlag(reflection.FlagBadIntegration)
			return
		}

		r.Peak = peakSum
		r.Background = bgMean
		r.Intensity = peakSum - float64(peakN)*bgMean
		// Poisson counting variance on the raw peak sum, plus the
		// background mean's own sampling variance propagated over the
		// peak-region pixel count (spec.md 4.9's ESD formula).
		variance := math.Abs(peakSum) + float64(peakN)*float64(peakN)*bgVar
		r.Sigma = math.Sqrt(variance)

		if saturated {
			r.SetFlag(reflection.FlagBadIntegration)
		}
	})
}

/*****************************************************************************************************************/

func indexFrames(frames []peaksearch.Frame) map[int]*peaksearch.Frame {
	out := make(map[int]*peaksearch.Frame, len(frames))
	for i := range frames {
		out[frames[i].Panel] = &frames[i]
	}
	return out
}

/*****************************************************************************************************************/

// ringSum sums the pixel values within InnerRadius of (fs,ss) as the peak
// region, and the mean/variance of the pixels in the
// [MiddleRadius,OuterRadius] annulus as the local background, following the
// same annulus-background shape as pkg/peaksearch's connected-component
// finder (grounded there; see DESIGN.md).
func ringSum(f *peaksearch.Frame, p *detector.Panel, fs0, ss0 float64, opts Options) (peakSum float64, peakN int, bgMean, bgVar float64, saturated bool) {
	fsC, ssC := int(math.Round(fs0)), int(math.Round(ss0))
	r := int(math.Ceil(opts.OuterRadius))

	satThreshold := p.MaxADU * (1 - opts.SaturationMargin)

	var bgSum, bgSumSq float64
	var bgN int

	for dss := -r; dss <= r; dss++ {
		for dfs := -r; dfs <= r; dfs++ {
			x, y := fsC+dfs, ssC+dss
			if !frameInBounds(f, x, y) || frameIsBad(f, p, x, y) {
				continue
			}

			dist := math.Hypot(float64(dfs), float64(dss))
			v := frameAt(f, x, y)

			if p.MaxADU > 0 && v >= satThreshold {
				saturated = true
			}

			switch {
			case dist <= opts.InnerRadius:
				peakSum += v
				peakN++
			case dist >= opts.MiddleRadius && dist <= opts.OuterRadius:
				bgSum += v
				bgSumSq += v * v
				bgN++
			}
		}
	}

	if bgN > 0 {
		bgMean = bgSum / float64(bgN)
		bgVar = bgSumSq/float64(bgN) - bgMean*bgMean
		if bgVar < 0 {
			bgVar = 0
		}
	}

	return peakSum, peakN, bgMean, bgVar, saturated
}

/*****************************************************************************************************************/

func frameInBounds(f *peaksearch.Frame, fs, ss int) bool {
	return fs >= 0 && fs < f.Width && ss >= 0 && ss < f.Height
}

/*****************************************************************************************************************/

func frameIsBad(f *peaksearch.Frame, p *detector.Panel, fs, ss int) bool {
	return p.IsBad(fs, ss)
}

/*****************************************************************************************************************/

func frameAt(f *peaksearch.Frame, fs, ss int) float64 {
	return f.Pixels[ss][fs]
}
