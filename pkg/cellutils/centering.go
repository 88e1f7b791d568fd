// Package cellutils implements the centering transformations, forbidden
// reflection rules, and resolution calculations that sit on top of a
// pkg/cell.UnitCell: turning a centered cell into a primitive one and back,
// deciding which reflections a centering forbids, and computing 1/d for an
// hkl index.
package cellutils

import (
	"github.com/crystfel-go/crystfel-go/pkg/cell"
	"github.com/crystfel-go/crystfel-go/pkg/rational"
	"gonum.org/v1/gonum/spatial/r3"
)

/*****************************************************************************************************************/

func half(n, d int64) rational.Rational {
	r, _ := rational.New(n, d)
	return r
}

/*****************************************************************************************************************/

// applyRows applies a row-major 3x3 float64 transform m to the basis (a, b,
// c), returning the three new axes as linear combinations of the old ones.
func applyRows(m [9]float64, a, b, c r3.Vec) (r3.Vec, r3.Vec, r3.Vec) {
	row := func(i int) r3.Vec {
		return a.Scale(m[3*i+0]).Add(b.Scale(m[3*i+1])).Add(c.Scale(m[3*i+2]))
	}
	return row(0), row(1), row(2)
}

/*****************************************************************************************************************/

// Transformation is the integer matrix taking a primitive cell to a centered
// one, and its rational inverse taking the centered cell back to primitive.
type Transformation struct {
	ToCentered  rational.IntegerMatrix
	ToPrimitive rational.Matrix
	Centering   cell.Centering
	LatticeType cell.LatticeType
	UniqueAxis  cell.UniqueAxis
}

/*****************************************************************************************************************/

// CenteringTransformation looks up the ITA Table 5.1.3.1 transformation for
// turning a primitive cell (of the given lattice type) into one with the
// requested centering, along with the classification the primitive cell
// ends up with.
//
// This mirrors centering_transformation in the reference implementation,
// one centering letter at a time rather than as a chain of if-statements
// sharing output variables.
func CenteringTransformation(lt cell.LatticeType, cen cell.Centering, ua cell.UniqueAxis) (Transformation, bool) {
	switch cen {
	case cell.P, cell.R:
		return Transformation{
			ToCentered:  rational.IdentityInt3(),
			ToPrimitive: rational.Identity3(),
			Centering:   cen,
			LatticeType: lt,
			UniqueAxis:  ua,
		}, true

	case cell.I:
		t := Transformation{
			ToCentered: rational.NewIntegerMatrix([9]int64{
				0, 1, 1,
				1, 0, 1,
				1, 1, 0,
			}),
			ToPrimitive: rational.NewMatrix([9]rational.Rational{
				half(-1, 2), half(1, 2), half(1, 2),
				half(1, 2), half(-1, 2), half(1, 2),
				half(1, 2), half(1, 2), half(-1, 2),
			}),
		}
		if lt == cell.Cubic {
			t.LatticeType, t.Centering, t.UniqueAxis = cell.Rhombohedral, cell.R, cell.AxisNone
		} else {
			t.LatticeType, t.Centering, t.UniqueAxis = cell.Triclinic, cell.P, cell.AxisNone
		}
		return t, true

	case cell.F:
		t := Transformation{
			ToCentered: rational.NewIntegerMatrix([9]int64{
				-1, 1, 1,
				1, -1, 1,
				1, 1, -1,
			}),
			ToPrimitive: rational.NewMatrix([9]rational.Rational{
				rational.FromInt(0), half(1, 2), half(1, 2),
				half(1, 2), rational.FromInt(0), half(1, 2),
				half(1, 2), half(1, 2), rational.FromInt(0),
			}),
		}
		if lt == cell.Cubic {
			t.LatticeType, t.Centering, t.UniqueAxis = cell.Rhombohedral, cell.R, cell.AxisNone
		} else {
			t.LatticeType, t.Centering, t.UniqueAxis = cell.Triclinic, cell.P, cell.AxisNone
		}
		return t, true

	case cell.H:
		if lt != cell.Hexagonal || ua != cell.AxisC {
			return Transformation{}, false
		}
		return Transformation{
			ToCentered: rational.NewIntegerMatrix([9]int64{
				1, 0, 1,
				-1, 1, 1,
				0, -1, 1,
			}),
			ToPrimitive: rational.NewMatrix([9]rational.Rational{
				half(2, 3), half(-1, 3), half(-1, 3),
				half(1, 3), half(1, 3), half(-2, 3),
				half(1, 3), half(1, 3), half(1, 3),
			}),
			LatticeType: cell.Rhombohedral,
			Centering:   cell.R,
			UniqueAxis:  cell.AxisNone,
		}, true

	case cell.A:
		t := Transformation{
			ToCentered: rational.NewIntegerMatrix([9]int64{
				1, 0, 0,
				0, 1, 1,
				0, -1, 1,
			}),
			ToPrimitive: rational.NewMatrix([9]rational.Rational{
				rational.FromInt(1), rational.FromInt(0), rational.FromInt(0),
				rational.FromInt(0), half(1, 2), half(-1, 2),
				rational.FromInt(0), half(1, 2), half(1, 2),
			}),
		}
		if lt == cell.Orthorhombic {
			t.LatticeType, t.Centering, t.UniqueAxis = cell.Monoclinic, cell.P, cell.AxisA
		} else {
			t.LatticeType, t.Centering, t.UniqueAxis = cell.Triclinic, cell.P, cell.AxisNone
		}
		return t, true

	case cell.B:
		t := Transformation{
			ToCentered: rational.NewIntegerMatrix([9]int64{
				1, 0, 1,
				0, 1, 0,
				-1, 0, 1,
			}),
			ToPrimitive: rational.NewMatrix([9]rational.Rational{
				half(1, 2), rational.FromInt(0), half(-1, 2),
				rational.FromInt(0), rational.FromInt(1), rational.FromInt(0),
				half(1, 2), rational.FromInt(0), half(1, 2),
			}),
		}
		if lt == cell.Orthorhombic {
			t.LatticeType, t.Centering, t.UniqueAxis = cell.Monoclinic, cell.P, cell.AxisB
		} else {
			t.LatticeType, t.Centering, t.UniqueAxis = cell.Triclinic, cell.P, cell.AxisNone
		}
		return t, true

	case cell.C:
		t := Transformation{
			ToCentered: rational.NewIntegerMatrix([9]int64{
				1, 1, 0,
				-1, 1, 0,
				0, 0, 1,
			}),
			ToPrimitive: rational.NewMatrix([9]rational.Rational{
				half(1, 2), half(-1, 2), rational.FromInt(0),
				half(1, 2), half(1, 2), rational.FromInt(0),
				rational.FromInt(0), rational.FromInt(0), rational.FromInt(1),
			}),
		}
		if lt == cell.Orthorhombic {
			t.LatticeType, t.Centering, t.UniqueAxis = cell.Monoclinic, cell.P, cell.AxisC
		} else {
			t.LatticeType, t.Centering, t.UniqueAxis = cell.Triclinic, cell.P, cell.AxisNone
		}
		return t, true
	}

	return Transformation{}, false
}

/*****************************************************************************************************************/

// Uncenter turns c into a primitive cell, returning the transform that was
// used. The lattice_type/centering/unique_axis of the result are set to
// those of the primitive cell given by the lookup table and are not
// re-derived from the geometry.
func Uncenter(c *cell.UnitCell) (*cell.UnitCell, Transformation, bool) {
	t, ok := CenteringTransformation(c.LatticeType(), c.Centering(), c.UniqueAxis())
	if !ok {
		return nil, Transformation{}, false
	}

	da, db, dc, err := c.DirectAxes()
	if err != nil {
		return nil, Transformation{}, false
	}

	primDa, primDb, primDc := applyRows(t.ToPrimitive.Float64(), da, db, dc)

	prim, err := cell.NewFromDirectAxes(primDa, primDb, primDc)
	if err != nil {
		return nil, Transformation{}, false
	}
	prim.SetLatticeType(t.LatticeType)
	prim.SetCentering(t.Centering)
	prim.SetUniqueAxis(t.UniqueAxis)

	return prim, t, true
}

/*****************************************************************************************************************/

// Recenter applies t.ToCentered to a primitive cell's direct axes, recovering
// the centered cell that Uncenter derived t from. lattice/centering/unique
// axis on the result are whatever the caller sets; Recenter does not guess.
func Recenter(prim *cell.UnitCell, t Transformation) (*cell.UnitCell, error) {
	da, db, dc, err := prim.DirectAxes()
	if err != nil {
		return nil, err
	}

	var m [9]float64
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			m[3*i+j] = float64(t.ToCentered.At(i, j))
		}
	}

	ca, cb, cc := applyRows(m, da, db, dc)
	return cell.NewFromDirectAxes(ca, cb, cc)
}
