// Package detector implements the panel array and the pixel <-> lab-frame
// mapping used to predict where a reciprocal-space vector lands on the
// detector (spec.md 4.5).
package detector

import (
	"errors"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/spatial/r3"
)

/*****************************************************************************************************************/

// Panel is one rectangular detector tile. FS and SS are the lab-frame
// displacement per unit fast/slow pixel step (i.e. already scaled by pixel
// pitch), so a pixel (fs,ss) maps to Origin + fs*FS + ss*SS.
type Panel struct {
	Name string

	Width, Height int

	PixelPitch float64
	Clen       float64

	Origin r3.Vec
	FS     r3.Vec
	SS     r3.Vec

	MaxADU float64

	Bad       [][]bool
	Saturated [][]bool
}

/*****************************************************************************************************************/

// InBounds reports whether (fs,ss) lies within the panel's pixel grid.
func (p *Panel) InBounds(fs, ss float64) bool {
	return fs >= 0 && fs < float64(p.Width) && ss >= 0 && ss < float64(p.Height)
}

/*****************************************************************************************************************/

// IsBad reports whether the integer pixel (fs,ss) is marked bad. Out-of-range
// coordinates are treated as bad.
func (p *Panel) IsBad(fs, ss int) bool {
	if fs < 0 || fs >= p.Width || ss < 0 || ss >= p.Height {
		return true
	}
	if p.Bad == nil {
		return false
	}
	return p.Bad[ss][fs]
}

/*****************************************************************************************************************/

// LabPosition returns the lab-frame 3-vector of pixel (fs,ss) on this panel.
func (p *Panel) LabPosition(fs, ss float64) r3.Vec {
	return p.Origin.Add(p.FS.Scale(fs)).Add(p.SS.Scale(ss))
}

/*****************************************************************************************************************/

// Detector is an ordered sequence of panels.
type Detector struct {
	Panels []Panel
}

/*****************************************************************************************************************/

// ErrOffDetector means no panel intersects the predicted scattered ray.
var ErrOffDetector = errors.New("detector: reflection does not land on any panel")

/*****************************************************************************************************************/

// Predict solves, for each panel in turn, the placement matrix equation
//
//	[FS SS -k_s] * [fs, ss, s]^T = -Origin
//
// where k_s = (0,0,k) + q is the scattered wavevector (incident beam along
// +z, wavenumber k). This says the lab-frame point Origin + fs*FS + ss*SS
// (the detector pixel) lies on the ray from the sample through direction
// k_s, i.e. equals s*k_s for some scalar s. Predict returns the first panel
// whose solution lands inside its pixel grid with s > 0 (the pixel is in
// front of, not behind, the sample).
func (d *Detector) Predict(q r3.Vec, k float64) (fs, ss float64, panelIdx int, err error) {
	ks := r3.Vec{0, 0, k}.Add(q)

	for i := range d.Panels {
		p := &d.Panels[i]

		m := mat.NewDense(3, 3, []float64{
			p.FS.X(), p.SS.X(), -ks.X(),
			p.FS.Y(), p.SS.Y(), -ks.Y(),
			p.FS.Z(), p.SS.Z(), -ks.Z(),
		})

		var inv mat.Dense
		if invErr := inv.Inverse(m); invErr != nil {
			continue
		}

		rhs := [3]float64{-p.Origin.X(), -p.Origin.Y(), -p.Origin.Z()}
		fsv := inv.At(0, 0)*rhs[0] + inv.At(0, 1)*rhs[1] + inv.At(0, 2)*rhs[2]
		ssv := inv.At(1, 0)*rhs[0] + inv.At(1, 1)*rhs[1] + inv.At(1, 2)*rhs[2]
		s := inv.At(2, 0)*rhs[0] + inv.At(2, 1)*rhs[1] + inv.At(2, 2)*rhs[2]

		if s <= 0 {
			continue
		}
		if p.InBounds(fsv, ssv) {
			return fsv, ssv, i, nil
		}
	}

	return 0, 0, -1, ErrOffDetector
}
