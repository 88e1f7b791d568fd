package peaksearch

import "math"

/*****************************************************************************************************************/

// GradientFinder is the Zaefferer-style peak finder: a pixel is a candidate
// when its value exceeds Threshold and the squared local gradient exceeds
// GradientThreshold; candidates are then refined to a local centre-of-mass
// over a (2*Radius+1)-square window and kept only if the local SNR over that
// window exceeds MinSNR.
type GradientFinder struct {
	Threshold         float64
	GradientThreshold float64
	Radius            int
	MinSNR            float64
}

/*****************************************************************************************************************/

// gradSq averages the squared one-sided differences on either side of the
// pixel, so an isolated maximum still has a non-zero gradient.
func (g GradientFinder) gradSq(f *Frame, fs, ss int) float64 {
	v := f.at(fs, ss)
	dx1, dx2 := v-f.at(fs+1, ss), v-f.at(fs-1, ss)
	dy1, dy2 := v-f.at(fs, ss+1), v-f.at(fs, ss-1)
	return (dx1*dx1+dx2*dx2)/2 + (dy1*dy1+dy2*dy2)/2
}

/*****************************************************************************************************************/

// centreOfMass returns the intensity-weighted centroid, background estimate
// (mean of the window excluding the peak itself), and SNR over a square
// window of the given radius centred at (fs0,ss0).
func (g GradientFinder) centreOfMass(f *Frame, fs0, ss0 int) (fs, ss, peakSum, background, snr float64) {
	var sumI, sumFS, sumSS float64
	var bgSum float64
	var bgCount int
	var n int

	for dss := -g.Radius; dss <= g.Radius; dss++ {
		for dfs := -g.Radius; dfs <= g.Radius; dfs++ {
			x, y := fs0+dfs, ss0+dss
			if f.isBad(x, y) {
				continue
			}
			v := f.at(x, y)
			if dfs == 0 && dss == 0 {
				sumI += v
				sumFS += v * float64(x)
				sumSS += v * float64(y)
				n++
				continue
			}
			sumI += v
			sumFS += v * float64(x)
			sumSS += v * float64(y)
			bgSum += v
			bgCount++
			n++
		}
	}

	if sumI == 0 || n == 0 {
		return float64(fs0), float64(ss0), 0, 0, 0
	}

	fs = sumFS / sumI
	ss = sumSS / sumI

	mean := 0.0
	if bgCount > 0 {
		mean = bgSum / float64(bgCount)
	}

	var variance float64
	for dss := -g.Radius; dss <= g.Radius; dss++ {
		for dfs := -g.Radius; dfs <= g.Radius; dfs++ {
			x, y := fs0+dfs, ss0+dss
			if f.isBad(x, y) || (dfs == 0 && dss == 0) {
				continue
			}
			d := f.at(x, y) - mean
			variance += d * d
		}
	}
	if bgCount > 1 {
		variance /= float64(bgCount - 1)
	}
	sigma := math.Sqrt(variance)

	peak := f.at(fs0, ss0)
	if sigma > 0 {
		snr = (peak - mean) / sigma
	} else if peak > mean {
		// A perfectly flat background makes any excess over it significant.
		snr = math.Inf(1)
	}

	return fs, ss, peak, mean, snr
}

/*****************************************************************************************************************/

// Find implements Finder.
func (g GradientFinder) Find(f *Frame) []Peak {
	var peaks []Peak

	for ss := g.Radius; ss < f.Height-g.Radius; ss++ {
		for fs := g.Radius; fs < f.Width-g.Radius; fs++ {
			if f.isBad(fs, ss) {
				continue
			}
			v := f.at(fs, ss)
			if v < g.Threshold {
				continue
			}
			if g.gradSq(f, fs, ss) < g.GradientThreshold {
				continue
			}

			cfs, css, peak, bg, snr := g.centreOfMass(f, fs, ss)
			if snr < g.MinSNR {
				continue
			}

			peaks = append(peaks, Peak{
				FS:         cfs + HalfPixelShift,
				SS:         css + HalfPixelShift,
				Panel:      f.Panel,
				Intensity:  peak,
				Background: bg,
			})
		}
	}

	return peaks
}
