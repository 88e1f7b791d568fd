// Package cell implements the multi-representation unit cell: a cell stores
// exactly one of (crystallographic parameters, direct Cartesian axes,
// reciprocal Cartesian axes) plus a discriminant, and derives the others on
// demand. The source this is modelled on keeps all three and hopes they
// stay consistent; this package deliberately does not.
package cell

import (
	"errors"
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/spatial/r3"
)

/*****************************************************************************************************************/

// LatticeType is one of the seven lattice systems.
type LatticeType int

/*****************************************************************************************************************/

const (
	Triclinic LatticeType = iota
	Monoclinic
	Orthorhombic
	Tetragonal
	Rhombohedral
	Hexagonal
	Cubic
)

/*****************************************************************************************************************/

func (l LatticeType) String() string {
	switch l {
	case Triclinic:
		return "triclinic"
	case Monoclinic:
		return "monoclinic"
	case Orthorhombic:
		return "orthorhombic"
	case Tetragonal:
		return "tetragonal"
	case Rhombohedral:
		return "rhombohedral"
	case Hexagonal:
		return "hexagonal"
	case Cubic:
		return "cubic"
	default:
		return "unknown"
	}
}

/*****************************************************************************************************************/

// Centering identifies which lattice points are added to the primitive cell.
type Centering byte

/*****************************************************************************************************************/

const (
	P Centering = 'P'
	A Centering = 'A'
	B Centering = 'B'
	C Centering = 'C'
	I Centering = 'I'
	F Centering = 'F'
	R Centering = 'R'
	H Centering = 'H'
)

/*****************************************************************************************************************/

// UniqueAxis names the axis singled out by a monoclinic, tetragonal or
// hexagonal cell's symmetry. '?' means undetermined, '*' means none applies.
type UniqueAxis byte

/*****************************************************************************************************************/

const (
	AxisA       UniqueAxis = 'a'
	AxisB       UniqueAxis = 'b'
	AxisC       UniqueAxis = 'c'
	AxisNone    UniqueAxis = '*'
	AxisUnknown UniqueAxis = '?'
)

/*****************************************************************************************************************/

type representation int

/*****************************************************************************************************************/

const (
	reprUnset representation = iota
	reprCrystallographic
	reprDirect
	reprReciprocal
)

/*****************************************************************************************************************/

// UnitCell holds exactly one representation of a unit cell plus its
// classification. Cells are freely copyable (Copy does a deep copy); there
// is no shared/owned-pointer lifecycle to manage in Go.
type UnitCell struct {
	repr representation

	// Crystallographic parameters (metres, radians).
	a, b, c          float64
	alpha, beta, gam float64

	// Direct Cartesian axes, metres.
	da, db, dc r3.Vec

	// Reciprocal Cartesian axes, metres^-1.
	ra, rb, rc r3.Vec

	latticeType   LatticeType
	centering     Centering
	uniqueAxis    UniqueAxis
	hasParameters bool
}

/*****************************************************************************************************************/

// ErrNoParameters is returned by any getter called on a cell that was never
// given a representation to derive from.
var ErrNoParameters = errors.New("cell: has no parameters")

/*****************************************************************************************************************/

// NewFromParameters builds a cell from crystallographic parameters: axis
// lengths in metres, angles in radians.
func NewFromParameters(a, b, c, alpha, beta, gamma float64) (*UnitCell, error) {
	if a <= 0 || b <= 0 || c <= 0 {
		return nil, errors.New("cell: axis lengths must be positive")
	}
	if alpha <= 0 || beta <= 0 || gamma <= 0 || alpha >= math.Pi || beta >= math.Pi || gamma >= math.Pi {
		return nil, errors.New("cell: angles must lie strictly between 0 and pi")
	}
	return &UnitCell{
		repr: reprCrystallographic,
		a:    a, b: b, c: c,
		alpha: alpha, beta: beta, gam: gamma,
		latticeType:   Triclinic,
		centering:     P,
		uniqueAxis:    AxisUnknown,
		hasParameters: true,
	}, nil
}

/*****************************************************************************************************************/

// NewFromDirectAxes builds a cell from direct Cartesian axis vectors.
func NewFromDirectAxes(da, db, dc r3.Vec) (*UnitCell, error) {
	if norm(da) == 0 || norm(db) == 0 || norm(dc) == 0 {
		return nil, errors.New("cell: direct axes must be non-zero")
	}
	return &UnitCell{
		repr:          reprDirect,
		da:            da,
		db:            db,
		dc:            dc,
		latticeType:   Triclinic,
		centering:     P,
		uniqueAxis:    AxisUnknown,
		hasParameters: true,
	}, nil
}

/*****************************************************************************************************************/

// NewFromReciprocalAxes builds a cell from reciprocal Cartesian axis vectors.
func NewFromReciprocalAxes(ra, rb, rc r3.Vec) (*UnitCell, error) {
	if norm(ra) == 0 || norm(rb) == 0 || norm(rc) == 0 {
		return nil, errors.New("cell: reciprocal axes must be non-zero")
	}
	return &UnitCell{
		repr:          reprReciprocal,
		ra:            ra,
		rb:            rb,
		rc:            rc,
		latticeType:   Triclinic,
		centering:     P,
		uniqueAxis:    AxisUnknown,
		hasParameters: true,
	}, nil
}

/*****************************************************************************************************************/

// Copy returns a deep, independent copy of c.
func (c *UnitCell) Copy() *UnitCell {
	cp := *c
	return &cp
}

/*****************************************************************************************************************/

// HasParameters reports whether the cell was ever given a representation.
func (c *UnitCell) HasParameters() bool { return c.hasParameters }

/*****************************************************************************************************************/

// norm returns the Euclidean length of v. The r3 package in this pack
// snapshot carries inconsistent copies of Add/Sub/Scale across two files
// (vector.go and deprecated.go); Norm is absent from both, so it is
// rolled by hand here rather than guessed at.
func norm(v r3.Vec) float64 {
	return math.Sqrt(v.Dot(v))
}

/*****************************************************************************************************************/

func rowMatrix(a, b, cc r3.Vec) *mat.Dense {
	return mat.NewDense(3, 3, []float64{
		a.X(), a.Y(), a.Z(),
		b.X(), b.Y(), b.Z(),
		cc.X(), cc.Y(), cc.Z(),
	})
}

/*****************************************************************************************************************/

// reciprocalOf returns (a*, b*, c*) = rows of (M^-1)^T, where M's rows are
// the direct axes. This is the no-2*pi crystallographic convention, so that
// a q-vector h*a* + k*b* + l*c* has magnitude 1/d directly.
func reciprocalOf(da, db, dc r3.Vec) (r3.Vec, r3.Vec, r3.Vec, error) {
	m := rowMatrix(da, db, dc)

	var inv mat.Dense
	if err := inv.Inverse(m); err != nil {
		return r3.Vec{}, r3.Vec{}, r3.Vec{}, errors.New("cell: direct axes are degenerate")
	}

	// (M^-1)^T has rows equal to the columns of M^-1.
	ra := r3.Vec{inv.At(0, 0), inv.At(1, 0), inv.At(2, 0)}
	rb := r3.Vec{inv.At(0, 1), inv.At(1, 1), inv.At(2, 1)}
	rc := r3.Vec{inv.At(0, 2), inv.At(1, 2), inv.At(2, 2)}
	return ra, rb, rc, nil
}

/*****************************************************************************************************************/

// directFromReciprocal inverts reciprocalOf: the direct axes are rows of
// (R^-1)^T where R's rows are the reciprocal axes.
func directFromReciprocal(ra, rb, rc r3.Vec) (r3.Vec, r3.Vec, r3.Vec, error) {
	return reciprocalOf(ra, rb, rc)
}

/*****************************************************************************************************************/

// directFromParameters applies the canonical crystallographic convention:
// a is along x; b lies in the xy-plane; c is completed to be right-handed.
func directFromParameters(a, b, c, alpha, beta, gamma float64) (r3.Vec, r3.Vec, r3.Vec) {
	da := r3.Vec{a, 0, 0}

	db := r3.Vec{b * math.Cos(gamma), b * math.Sin(gamma), 0}

	cosStar := (math.Cos(alpha) - math.Cos(beta)*math.Cos(gamma)) / math.Sin(gamma)
	cx := c * math.Cos(beta)
	cy := c * cosStar
	czsq := 1 - math.Cos(beta)*math.Cos(beta) - cosStar*cosStar
	if czsq < 0 {
		czsq = 0
	}
	cz := c * math.Sqrt(czsq)

	dc := r3.Vec{cx, cy, cz}

	return da, db, dc
}

/*****************************************************************************************************************/

// parametersFromDirect recovers (a,b,c,alpha,beta,gamma) from direct axes.
func parametersFromDirect(da, db, dc r3.Vec) (a, b, c, alpha, beta, gamma float64) {
	a = norm(da)
	b = norm(db)
	c = norm(dc)
	alpha = math.Acos(db.Dot(dc) / (b * c))
	beta = math.Acos(da.Dot(dc) / (a * c))
	gamma = math.Acos(da.Dot(db) / (a * b))
	return
}

/*****************************************************************************************************************/

// Parameters returns the crystallographic representation, converting if the
// cell is stored in another form.
func (c *UnitCell) Parameters() (a, b, cc, alpha, beta, gamma float64, err error) {
	if !c.hasParameters {
		return 0, 0, 0, 0, 0, 0, ErrNoParameters
	}
	switch c.repr {
	case reprCrystallographic:
		return c.a, c.b, c.c, c.alpha, c.beta, c.gam, nil
	case reprDirect:
		a, b, cc, alpha, beta, gamma = parametersFromDirect(c.da, c.db, c.dc)
		return a, b, cc, alpha, beta, gamma, nil
	case reprReciprocal:
		da, db, dc, derr := directFromReciprocal(c.ra, c.rb, c.rc)
		if derr != nil {
			return 0, 0, 0, 0, 0, 0, derr
		}
		a, b, cc, alpha, beta, gamma = parametersFromDirect(da, db, dc)
		return a, b, cc, alpha, beta, gamma, nil
	default:
		return 0, 0, 0, 0, 0, 0, ErrNoParameters
	}
}

/*****************************************************************************************************************/

// DirectAxes returns the direct Cartesian axes, converting if necessary.
func (c *UnitCell) DirectAxes() (da, db, dc r3.Vec, err error) {
	if !c.hasParameters {
		return r3.Vec{}, r3.Vec{}, r3.Vec{}, ErrNoParameters
	}
	switch c.repr {
	case reprDirect:
		return c.da, c.db, c.dc, nil
	case reprCrystallographic:
		da, db, dc = directFromParameters(c.a, c.b, c.c, c.alpha, c.beta, c.gam)
		return da, db, dc, nil
	case reprReciprocal:
		return directFromReciprocal(c.ra, c.rb, c.rc)
	default:
		return r3.Vec{}, r3.Vec{}, r3.Vec{}, ErrNoParameters
	}
}

/*****************************************************************************************************************/

// ReciprocalAxes returns the reciprocal Cartesian axes, converting if necessary.
func (c *UnitCell) ReciprocalAxes() (ra, rb, rc r3.Vec, err error) {
	if !c.hasParameters {
		return r3.Vec{}, r3.Vec{}, r3.Vec{}, ErrNoParameters
	}
	switch c.repr {
	case reprReciprocal:
		return c.ra, c.rb, c.rc, nil
	case reprDirect:
		return reciprocalOf(c.da, c.db, c.dc)
	case reprCrystallographic:
		da, db, dc := directFromParameters(c.a, c.b, c.c, c.alpha, c.beta, c.gam)
		return reciprocalOf(da, db, dc)
	default:
		return r3.Vec{}, r3.Vec{}, r3.Vec{}, ErrNoParameters
	}
}

/*****************************************************************************************************************/

// LatticeType returns the cell's lattice system.
func (c *UnitCell) LatticeType() LatticeType { return c.latticeType }

// SetLatticeType sets the cell's lattice system.
func (c *UnitCell) SetLatticeType(l LatticeType) { c.latticeType = l }

// Centering returns the cell's centering.
func (c *UnitCell) Centering() Centering { return c.centering }

// SetCentering sets the cell's centering.
func (c *UnitCell) SetCentering(cen Centering) { c.centering = cen }

// UniqueAxis returns the cell's unique axis.
func (c *UnitCell) UniqueAxis() UniqueAxis { return c.uniqueAxis }

// SetUniqueAxis sets the cell's unique axis.
func (c *UnitCell) SetUniqueAxis(ax UniqueAxis) { c.uniqueAxis = ax }

/*****************************************************************************************************************/

// ValidateCentering checks that centering is consistent with lattice type,
// and that for monoclinic A/B/C cells the unique axis does not coincide
// with the centering letter. Returns nil (ok) or ErrCenteringFatal; there is
// no separate warning-level result.
func (c *UnitCell) ValidateCentering() error {
	switch c.centering {
	case P, R:
		// Always valid.
	case A, B, C:
		if c.latticeType != Orthorhombic && c.latticeType != Monoclinic && c.latticeType != Triclinic {
			return ErrCenteringFatal
		}
		if c.latticeType == Monoclinic {
			letterAxis := map[Centering]UniqueAxis{A: AxisA, B: AxisB, C: AxisC}[c.centering]
			if c.uniqueAxis == letterAxis {
				return ErrCenteringFatal
			}
		}
	case I, F:
		if c.latticeType == Hexagonal {
			return ErrCenteringFatal
		}
	case H:
		if c.latticeType != Hexagonal {
			return ErrCenteringFatal
		}
	default:
		return ErrCenteringFatal
	}
	return nil
}

/*****************************************************************************************************************/

// ErrCenteringFatal means the centering is structurally incompatible with
// the lattice type (e.g. H centering on a non-hexagonal cell).
var ErrCenteringFatal = errors.New("cell: centering incompatible with lattice type")

/*****************************************************************************************************************/

// Transform3x3 is anything that can act as a row-major 3x3 linear
// transform on a triple of basis vectors: rational.Matrix and
// rational.IntegerMatrix both satisfy it via their Float64 method.
type Transform3x3 interface {
	Float64() [9]float64
}

/*****************************************************************************************************************/

// applyRows applies a row-major 3x3 float64 transform m to the basis (a, b,
// c): row i of the result is m[3i]*a + m[3i+1]*b + m[3i+2]*c.
func applyRows(m [9]float64, a, b, c r3.Vec) (r3.Vec, r3.Vec, r3.Vec) {
	row := func(i int) r3.Vec {
		return a.Scale(m[3*i+0]).Add(b.Scale(m[3*i+1])).Add(c.Scale(m[3*i+2]))
	}
	return row(0), row(1), row(2)
}

/*****************************************************************************************************************/

// Transform returns a new cell whose direct axes are M applied to c's
// current direct axes: new_direct = M * old_direct. Per spec.md §4.2 /
// §9, the result's lattice_type, centering and unique_axis are NOT
// re-derived here — that classification is left to the caller (a known
// wart inherited deliberately, not an oversight).
func (c *UnitCell) Transform(m Transform3x3) (*UnitCell, error) {
	da, db, dc, err := c.DirectAxes()
	if err != nil {
		return nil, err
	}

	newDa, newDb, newDc := applyRows(m.Float64(), da, db, dc)

	out, err := NewFromDirectAxes(newDa, newDb, newDc)
	if err != nil {
		return nil, err
	}
	out.latticeType = c.latticeType
	out.centering = c.centering
	out.uniqueAxis = c.uniqueAxis
	return out, nil
}

/*****************************************************************************************************************/

// TransformInverse is the companion to Transform: it applies M's inverse.
// Callers needing rational.Matrix's exact Inverse should compute it
// themselves and pass it to Transform when precision matters; this
// convenience wraps that for the common float64 case via a floating
// 3x3 inverse, returning an error if M is singular.
func (c *UnitCell) TransformInverse(m Transform3x3) (*UnitCell, error) {
	f := m.Float64()

	md := mat.NewDense(3, 3, f[:])
	var inv mat.Dense
	if err := inv.Inverse(md); err != nil {
		return nil, errors.New("cell: transform matrix is singular")
	}

	var invArr [9]float64
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			invArr[3*i+j] = inv.At(i, j)
		}
	}

	da, db, dc, err := c.DirectAxes()
	if err != nil {
		return nil, err
	}

	newDa, newDb, newDc := applyRows(invArr, da, db, dc)

	out, err := NewFromDirectAxes(newDa, newDb, newDc)
	if err != nil {
		return nil, err
	}
	out.latticeType = c.latticeType
	out.centering = c.centering
	out.uniqueAxis = c.uniqueAxis
	return out, nil
}

/*****************************************************************************************************************/

// RightHanded reports whether the cell's direct axes form a right-handed
// set, i.e. (a x b) . c > 0. Per spec.md §4.3.4 the direct and reciprocal
// tests must agree; RightHandedReciprocal checks the same condition on
// the reciprocal axes.
func (c *UnitCell) RightHanded() (bool, error) {
	da, db, dc, err := c.DirectAxes()
	if err != nil {
		return false, err
	}
	return da.Cross(db).Dot(dc) > 0, nil
}

/*****************************************************************************************************************/

// RightHandedReciprocal reports whether the cell's reciprocal axes form a
// right-handed set, i.e. (a* x b*) . c* > 0.
func (c *UnitCell) RightHandedReciprocal() (bool, error) {
	ra, rb, rc, err := c.ReciprocalAxes()
	if err != nil {
		return false, err
	}
	return ra.Cross(rb).Dot(rc) > 0, nil
}
