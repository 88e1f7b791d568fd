// Package xerr defines the sentinel error kinds shared across the pipeline,
// one per row of the error taxonomy: bad input never aborts the worker, it
// gets classified and reported alongside whatever partial result survives.
package xerr

import "errors"

/*****************************************************************************************************************/

// Sentinel error kinds. Wrap with fmt.Errorf("...: %w", Kind) at the call
// site and recover with errors.Is.
var (
	// BadCell means the cell parameters are unphysical, e.g. an impossible angle sum.
	BadCell = errors.New("bad cell")

	// NoIndex means indexing failed after exhausting all configured retries.
	NoIndex = errors.New("no index")

	// BadIntegration means a reliable intensity could not be computed for a reflection.
	BadIntegration = errors.New("bad integration")

	// TooFewReflections means there are not enough reflections to scale or refine a crystal.
	TooFewReflections = errors.New("too few reflections")

	// SolveFailed means a numerical linear solve failed during scaling.
	SolveFailed = errors.New("solve failed")

	// DeltaCCHalfNegative means post-refinement made CC½ worse and was reverted.
	DeltaCCHalfNegative = errors.New("cc half worsened")

	// ScalingDiverged means the fitted B-factor left the plausible range.
	ScalingDiverged = errors.New("scaling diverged")

	// IOError means an input file was missing or corrupt.
	IOError = errors.New("io error")

	// Singular means a matrix had no inverse when one was required.
	Singular = errors.New("singular matrix")
)

/*****************************************************************************************************************/

// CrystalFlag is a short machine-readable reason a crystal's refinement or
// scaling terminated early, attached to the crystal's user flag field.
type CrystalFlag string

/*****************************************************************************************************************/

const (
	FlagNone        CrystalFlag = ""
	FlagFewRefl     CrystalFlag = "FEWREFL"
	FlagSolveFail   CrystalFlag = "SOLVEFAIL"
	FlagDeltaCCHalf CrystalFlag = "DELTACCHALF"
	FlagBigB        CrystalFlag = "BIGB"
	FlagScaleBad    CrystalFlag = "SCALEBAD"
	FlagBigShift    CrystalFlag = "BIGSHIFT"
)

/*****************************************************************************************************************/
