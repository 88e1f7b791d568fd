// Package postrefine refines a crystal's orientation, profile radius and an
// overall cell-scale correction by Nelder-Mead minimisation of its
// reflections' excitation errors (spec.md 4.12).
package postrefine

import (
	"math"

	"gonum.org/v1/gonum/optimize"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/crystfel-go/crystfel-go/pkg/cell"
	"github.com/crystfel-go/crystfel-go/pkg/detector"
	"github.com/crystfel-go/crystfel-go/pkg/reflection"
	"github.com/crystfel-go/crystfel-go/pkg/xerr"
)

/*****************************************************************************************************************/

// Options configures one Refine call.
type Options struct {
	MaxIterations int

	// BigShiftDeg bounds the cumulative orientation shift (degrees) a
	// single refinement is allowed to make before it is reverted and the
	// crystal flagged BIGSHIFT (spec.md 4.12 / SPEC_FULL.md's supplement).
	BigShiftDeg float64
}

/*****************************************************************************************************************/

// stepSizes are the per-parameter perturbation used to probe a better
// starting point for [rotX (rad), rotY (rad), R (m^-1), cellScale (m)],
// converted from the spec's (0.05 deg, 0.05 deg, 5e5 m^-1, 1e-3 Angstrom).
// The pack's optimize.NelderMead exposes no field to set the initial
// simplex size directly (only Bounds — see DESIGN.md), so these instead
// seed a one-step probe around x0 before Minimize runs.
var stepSizes = [4]float64{
	0.05 * math.Pi / 180,
	0.05 * math.Pi / 180,
	5e5,
	1e-3 * 1e-10,
}

/*****************************************************************************************************************/

// Trace is called once per objective-function evaluation during refinement.
type Trace func(x [4]float64, residual float64)

/*****************************************************************************************************************/

func rotateX(v r3.Vec, theta float64) r3.Vec {
	c, s := math.Cos(theta), math.Sin(theta)
	return r3.Vec{v.X(), c*v.Y() - s*v.Z(), s*v.Y() + c*v.Z()}
}

/*****************************************************************************************************************/

func rotateY(v r3.Vec, theta float64) r3.Vec {
	c, s := math.Cos(theta), math.Sin(theta)
	return r3.Vec{c*v.X() + s*v.Z(), v.Y(), -s*v.X() + c*v.Z()}
}

/*****************************************************************************************************************/

// perturb applies a small rotation (rotX about x, then rotY about y) and an
// isotropic reciprocal-space scale to the reciprocal axes. cellScale is a
// real-space length correction in metres, converted to a fractional
// reciprocal scale via refLen (a representative direct-axis length).
func perturb(ra, rb, rc r3.Vec, rotX, rotY, cellScale, refLen float64) (r3.Vec, r3.Vec, r3.Vec) {
	scale := 1.0
	if refLen > 0 {
		scale = 1 / (1 + cellScale/refLen)
	}
	rot := func(v r3.Vec) r3.Vec {
		return rotateY(rotateX(v, rotX), rotY).Scale(scale)
	}
	return rot(ra), rot(rb), rot(rc)
}

/*****************************************************************************************************************/

func norm(v r3.Vec) float64 { return math.Sqrt(v.Dot(v)) }

/*****************************************************************************************************************/

func excitationError(q r3.Vec, k float64) float64 {
	ks := r3.Vec{q.X(), q.Y(), q.Z() + k}
	return norm(ks) - k
}

/*****************************************************************************************************************/

// Refine adjusts c's orientation (via its reciprocal axes), profile radius
// and an overall cell-length correction to minimise the intensity-weighted
// sum of squared excitation errors over c's currently indexed reflections,
// then re-derives c.Cell and c.ProfileRadius from the winning parameters.
// It refuses the result (setting c.Flag to xerr.FlagBigShift and returning
// xerr.ScalingDiverged, with c left unchanged) if the winning orientation
// shift exceeds Options.BigShiftDeg.
func Refine(c *detector.Crystal, img *detector.Image, opts Options, trace Trace) error {
	ra, rb, rc, err := c.Cell.ReciprocalAxes()
	if err != nil {
		return err
	}
	da, _, _, err := c.Cell.DirectAxes()
	if err != nil {
		return err
	}
	refLen := norm(da)

	type sample struct {
		h, k, l int
		weight  float64
	}
	var samples []sample
	c.Reflections.Each(func(r *reflection.Reflection) {
		w := r.Intensity
		if w <= 0 {
			w = 1
		}
		samples = append(samples, sample{h: r.Index.H, k: r.Index.K, l: r.Index.L, weight: w})
	})
	if len(samples) == 0 {
		return xerr.TooFewReflections
	}

	k := 1 / img.Wavelength

	objective := func(x []float64) float64 {
		ra2, rb2, rc2 := perturb(ra, rb, rc, x[0], x[1], x[3], refLen)
		var sum float64
		for _, s := range samples {
			q := ra2.Scale(float64(s.h)).Add(rb2.Scale(float64(s.k))).Add(rc2.Scale(float64(s.l)))
			e := excitationError(q, k)
			if x[2] > 0 {
				e /= x[2]
			}
			sum += s.weight * e * e
		}
		if trace != nil {
			trace([4]float64{x[0], x[1], x[2], x[3]}, sum)
		}
		return sum
	}

	x0 := []float64{0, 0, c.ProfileRadius, 0}
	if x0[2] <= 0 {
		x0[2] = 1e7
	}
	x0 = probeBetterStart(objective, x0)

	problem := optimize.Problem{Func: objective}
	method := &optimize.NelderMead{}
	settings := &optimize.Settings{}
	if opts.MaxIterations > 0 {
		settings.MajorIterations = opts.MaxIterations
	}

	result, err := optimize.Minimize(problem, x0, settings, method)
	if err != nil {
		c.Flag = xerr.FlagSolveFail
		return xerr.SolveFailed
	}

	shiftDeg := math.Hypot(result.X[0], result.X[1]) * 180 / math.Pi
	if opts.BigShiftDeg > 0 && shiftDeg > opts.BigShiftDeg {
		c.Flag = xerr.FlagBigShift
		return xerr.ScalingDiverged
	}

	newRa, newRb, newRc := perturb(ra, rb, rc, result.X[0], result.X[1], result.X[3], refLen)
	newCell, err := cellFromReciprocal(newRa, newRb, newRc, c)
	if err != nil {
		c.Flag = xerr.FlagSolveFail
		return xerr.SolveFailed
	}

	c.Cell = newCell
	if result.X[2] > 0 {
		c.ProfileRadius = result.X[2]
	}
	c.Flag = xerr.FlagNone
	return nil
}

/*****************************************************************************************************************/

// cellFromReciprocal builds a new UnitCell from perturbed reciprocal axes,
// carrying over like's classification (lattice type, centering, unique axis).
func cellFromReciprocal(ra, rb, rc r3.Vec, like *detector.Crystal) (*cell.UnitCell, error) {
	out, err := cell.NewFromReciprocalAxes(ra, rb, rc)
	if err != nil {
		return nil, err
	}
	out.SetLatticeType(like.Cell.LatticeType())
	out.SetCentering(like.Cell.Centering())
	out.SetUniqueAxis(like.Cell.UniqueAxis())
	return out, nil
}

/*****************************************************************************************************************/

// probeBetterStart evaluates f at x0 and at x0 perturbed by +-stepSizes in
// each dimension in turn, returning whichever point scored lowest. This is
// a cheap one-round coordinate probe, not a full grid search: it exists to
// give Nelder-Mead a start point informed by the spec's step-size
// constants, since the grounded optimize.NelderMead API has no field to
// feed them in as an initial simplex size directly.
func probeBetterStart(f func([]float64) float64, x0 []float64) []float64 {
	best := append([]float64(nil), x0...)
	bestVal := f(best)

	for i := range x0 {
		for _, sign := range [2]float64{1, -1} {
			cand := append([]float64(nil), x0...)
			cand[i] += sign * stepSizes[i]
			if v := f(cand); v < bestVal {
				bestVal = v
				best = cand
			}
		}
	}
	return best
}
