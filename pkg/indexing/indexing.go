// Package indexing defines the pluggable indexing engine interface and the
// RETRY/MULTI retry orchestration layered on top of it (spec.md 4.7).
package indexing

import (
	"github.com/crystfel-go/crystfel-go/pkg/cell"
	"github.com/crystfel-go/crystfel-go/pkg/detector"
)

/*****************************************************************************************************************/

// Flags selects optional indexing behaviour, combined with bitwise OR.
type Flags uint16

/*****************************************************************************************************************/

const (
	CheckCellCombinations Flags = 1 << iota
	CheckCellAxes
	CheckPeaks
	UseLatticeType
	UseCellParameters
	Retry
	Multi
)

/*****************************************************************************************************************/

func (f Flags) has(bit Flags) bool { return f&bit != 0 }

/*****************************************************************************************************************/

// PriorCell carries the caller's a-priori knowledge of the cell, used by
// USE_LATTICE_TYPE and USE_CELL_PARAMETERS to constrain candidate solutions.
type PriorCell struct {
	Cell       *cell.UnitCell
	Tolerances Tolerances
}

/*****************************************************************************************************************/

// Tolerances bounds how closely a candidate solution must match PriorCell.
type Tolerances struct {
	LengthPct [3]float64
	AngleRad  float64
}

/*****************************************************************************************************************/

// Engine is one pluggable indexing algorithm (e.g. DirAx-, Mosflm- or
// XGandalf-style lattice search). Implementations are expected to be
// stateless between Run calls except for whatever Prepare returns.
type Engine interface {
	// Name identifies the engine for logging and for the stream file's
	// indexed-by field.
	Name() string

	// Prepare initialises per-run state (e.g. loading a lookup table),
	// returning an opaque handle passed back into Run.
	Prepare(prior *PriorCell, det *detector.Detector, flags Flags) (any, error)

	// Run attempts to index img's peaks, returning zero or more candidate
	// cells (not yet fitted crystals — the caller wraps each in a
	// detector.Crystal and predicts against it).
	Run(handle any, img *detector.Image, flags Flags) ([]*cell.UnitCell, error)

	// Cleanup releases anything Prepare allocated.
	Cleanup(handle any)
}
