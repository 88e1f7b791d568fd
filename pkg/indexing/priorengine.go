package indexing

import (
	"errors"

	"github.com/crystfel-go/crystfel-go/pkg/cell"
	"github.com/crystfel-go/crystfel-go/pkg/detector"
)

/*****************************************************************************************************************/

// errNoPriorCell means PriorEngine was asked to run without USE_CELL_PARAMETERS
// or without a prior cell to fall back on.
var errNoPriorCell = errors.New("indexing: prior-cell engine requires USE_CELL_PARAMETERS and a prior cell")

/*****************************************************************************************************************/

// PriorEngine is the simplest Engine: when USE_CELL_PARAMETERS is set and a
// prior cell is supplied, it accepts that cell outright provided the image
// has at least MinPeaks peaks, leaving orientation refinement to
// pkg/postrefine. It implements no lattice-vector search of its own — full
// DirAx/Mosflm-style peak-pair orientation search is out of scope here (see
// DESIGN.md) — so it is only useful as a known-cell fallback, not a general
// indexer.
type PriorEngine struct {
	MinPeaks int
}

/*****************************************************************************************************************/

type priorHandle struct {
	prior *PriorCell
}

/*****************************************************************************************************************/

// Name implements Engine.
func (e *PriorEngine) Name() string { return "prior-cell" }

/*****************************************************************************************************************/

// Prepare implements Engine.
func (e *PriorEngine) Prepare(prior *PriorCell, det *detector.Detector, flags Flags) (any, error) {
	if !flags.has(UseCellParameters) || prior == nil || prior.Cell == nil {
		return nil, errNoPriorCell
	}
	return &priorHandle{prior: prior}, nil
}

/*****************************************************************************************************************/

// Cleanup implements Engine.
func (e *PriorEngine) Cleanup(handle any) {}

/*****************************************************************************************************************/

// Run implements Engine: it returns the prior cell as the sole candidate
// once the image has enough peaks to plausibly support a lattice.
func (e *PriorEngine) Run(handle any, img *detector.Image, flags Flags) ([]*cell.UnitCell, error) {
	h, ok := handle.(*priorHandle)
	if !ok {
		return nil, errNoPriorCell
	}

	minPeaks := e.MinPeaks
	if minPeaks == 0 {
		minPeaks = 10
	}
	if len(img.Peaks) < minPeaks {
		return nil, nil
	}

	return []*cell.UnitCell{h.prior.Cell.Copy()}, nil
}
