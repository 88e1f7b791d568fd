// Package peaksearch implements interchangeable Bragg-peak finders over a
// single detector panel's pixel data (spec.md 4.6).
package peaksearch

/*****************************************************************************************************************/

// Peak is one detected peak, in panel-local pixel coordinates.
type Peak struct {
	FS, SS     float64
	Panel      int
	Intensity  float64
	Background float64
}

/*****************************************************************************************************************/

// Frame is one panel's pixel data as a dense row-major array (Pixels[ss][fs]).
type Frame struct {
	Panel  int
	Width  int
	Height int
	Pixels [][]float64
	Bad    [][]bool
}

/*****************************************************************************************************************/

func (f *Frame) at(fs, ss int) float64 {
	if fs < 0 || fs >= f.Width || ss < 0 || ss >= f.Height {
		return 0
	}
	return f.Pixels[ss][fs]
}

/*****************************************************************************************************************/

func (f *Frame) isBad(fs, ss int) bool {
	if fs < 0 || fs >= f.Width || ss < 0 || ss >= f.Height {
		return true
	}
	if f.Bad == nil {
		return false
	}
	return f.Bad[ss][fs]
}

/*****************************************************************************************************************/

// HalfPixelShift is added to (fs,ss) for peak-list providers that report
// pixel-centre indices rather than corner-based coordinates (spec.md 4.6).
const HalfPixelShift = 0.5

/*****************************************************************************************************************/

// Finder is a peak-search back-end: one of Gradient, ConnectedComponent or
// External, selected by tag rather than by a method table.
type Finder interface {
	Find(f *Frame) []Peak
}
