package detector

import (
	"github.com/crystfel-go/crystfel-go/pkg/cell"
	"github.com/crystfel-go/crystfel-go/pkg/peaksearch"
	"github.com/crystfel-go/crystfel-go/pkg/reflection"
	"github.com/crystfel-go/crystfel-go/pkg/spectrum"
	"github.com/crystfel-go/crystfel-go/pkg/xerr"
)

/*****************************************************************************************************************/

// Crystal owns a unit cell and its own reflection list; it does not
// back-reference its parent Image (spec.md 9's "no reference cycles" design
// note) — callers that need beam parameters pass the Image explicitly.
type Crystal struct {
	Cell          *cell.UnitCell
	Reflections   *reflection.List
	ProfileRadius float64
	Mosaicity     float64
	G             float64
	B             float64
	DX, DY        float64
	Flag          xerr.CrystalFlag
}

/*****************************************************************************************************************/

// NewCrystal returns a crystal with G=1, B=0 and an empty reflection list.
func NewCrystal(c *cell.UnitCell) *Crystal {
	return &Crystal{
		Cell:        c,
		Reflections: reflection.NewList(),
		G:           1,
	}
}

/*****************************************************************************************************************/

// Copy returns a deep copy: a fresh UnitCell value and a fresh reflection list.
func (c *Crystal) Copy() *Crystal {
	cellCopy := c.Cell.Copy()
	cp := &Crystal{
		Cell:          cellCopy,
		Reflections:   c.Reflections.Copy(),
		ProfileRadius: c.ProfileRadius,
		Mosaicity:     c.Mosaicity,
		G:             c.G,
		B:             c.B,
		DX:            c.DX,
		DY:            c.DY,
		Flag:          c.Flag,
	}
	return cp
}

/*****************************************************************************************************************/

// Image holds one frame's per-panel pixel data, beam parameters, detected
// peaks and the crystals indexed on it.
type Image struct {
	Serial     uint64
	Detector   *Detector
	Frames     []peaksearch.Frame
	Wavelength float64
	Spectrum   *spectrum.Spectrum
	Peaks      []peaksearch.Peak
	Crystals   []*Crystal
	IndexedBy  string
}
