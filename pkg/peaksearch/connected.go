package peaksearch

import "math"

/*****************************************************************************************************************/

// ConnectedComponentFinder is the PeakFinder8/9-style back-end: local
// background is estimated from an annular ring (InnerRadius..OuterRadius)
// around each candidate pixel, pixels above the per-pixel SNR threshold are
// grouped by 8-connectivity, and groups within [MinPixels,MaxPixels] whose
// total SNR exceeds MinSNR become peaks.
type ConnectedComponentFinder struct {
	InnerRadius, OuterRadius int
	MinSNR                   float64
	MinPixels, MaxPixels     int
	ADCThreshold             float64
}

/*****************************************************************************************************************/

func (c ConnectedComponentFinder) localBackground(f *Frame, fs, ss int) (mean, sigma float64) {
	var sum, sumSq float64
	var n int

	for dss := -c.OuterRadius; dss <= c.OuterRadius; dss++ {
		for dfs := -c.OuterRadius; dfs <= c.OuterRadius; dfs++ {
			r2 := dfs*dfs + dss*dss
			if r2 < c.InnerRadius*c.InnerRadius || r2 > c.OuterRadius*c.OuterRadius {
				continue
			}
			x, y := fs+dfs, ss+dss
			if f.isBad(x, y) {
				continue
			}
			v := f.at(x, y)
			sum += v
			sumSq += v * v
			n++
		}
	}

	if n == 0 {
		return 0, 0
	}
	mean = sum / float64(n)
	variance := sumSq/float64(n) - mean*mean
	if variance < 0 {
		variance = 0
	}
	sigma = math.Sqrt(variance)
	return mean, sigma
}

/*****************************************************************************************************************/

type pixelPos struct{ fs, ss int }

/*****************************************************************************************************************/

// Find implements Finder.
func (c ConnectedComponentFinder) Find(f *Frame) []Peak {
	visited := make([][]bool, f.Height)
	for i := range visited {
		visited[i] = make([]bool, f.Width)
	}

	above := make([][]bool, f.Height)
	for i := range above {
		above[i] = make([]bool, f.Width)
	}

	bg := make([][2]float64, f.Height*f.Width)

	for ss := c.OuterRadius; ss < f.Height-c.OuterRadius; ss++ {
		for fs := c.OuterRadius; fs < f.Width-c.OuterRadius; fs++ {
			if f.isBad(fs, ss) {
				continue
			}
			v := f.at(fs, ss)
			if v < c.ADCThreshold {
				continue
			}
			mean, sigma := c.localBackground(f, fs, ss)
			bg[ss*f.Width+fs] = [2]float64{mean, sigma}
			if sigma <= 0 {
				// A perfectly flat background makes any excess over it significant.
				above[ss][fs] = v > mean
				continue
			}
			if (v-mean)/sigma >= c.MinSNR {
				above[ss][fs] = true
			}
		}
	}

	var peaks []Peak
	neighbours := []pixelPos{{-1, -1}, {0, -1}, {1, -1}, {-1, 0}, {1, 0}, {-1, 1}, {0, 1}, {1, 1}}

	for ss := 0; ss < f.Height; ss++ {
		for fs := 0; fs < f.Width; fs++ {
			if !above[ss][fs] || visited[ss][fs] {
				continue
			}

			stack := []pixelPos{{fs, ss}}
			visited[ss][fs] = true
			var group []pixelPos

			for len(stack) > 0 {
				p := stack[len(stack)-1]
				stack = stack[:len(stack)-1]
				group = append(group, p)

				for _, d := range neighbours {
					nfs, nss := p.fs+d.fs, p.ss+d.ss
					if nfs < 0 || nfs >= f.Width || nss < 0 || nss >= f.Height {
						continue
					}
					if !above[nss][nfs] || visited[nss][nfs] {
						continue
					}
					visited[nss][nfs] = true
					stack = append(stack, pixelPos{nfs, nss})
				}
			}

			if len(group) < c.MinPixels || len(group) > c.MaxPixels {
				continue
			}

			var sumI, sumFS, sumSS, sumBG float64
			for _, p := range group {
				v := f.at(p.fs, p.ss)
				sumI += v
				sumFS += v * float64(p.fs)
				sumSS += v * float64(p.ss)
				sumBG += bg[p.ss*f.Width+p.fs][0]
			}
			if sumI == 0 {
				continue
			}

			peaks = append(peaks, Peak{
				FS:         sumFS/sumI + HalfPixelShift,
				SS:         sumSS/sumI + HalfPixelShift,
				Panel:      f.Panel,
				Intensity:  sumI,
				Background: sumBG / float64(len(group)),
			})
		}
	}

	return peaks
}
