package cellutils

import (
	"math"

	"github.com/crystfel-go/crystfel-go/pkg/cell"
)

/*****************************************************************************************************************/

// mod is Euclidean-style modulo for possibly-negative integers, matching
// the sign conventions C's % leaves alone in forbidden_reflection.
func mod(a, n int) int {
	m := a % n
	if m < 0 {
		m += n
	}
	return m
}

/*****************************************************************************************************************/

// ForbiddenReflection reports whether hkl is systematically absent for the
// given centering. The obverse H setting is assumed for rhombohedral-in-
// hexagonal-axes cells, matching the reference implementation.
func ForbiddenReflection(cen cell.Centering, h, k, l int) bool {
	switch cen {
	case cell.P, cell.R:
		return false
	case cell.A:
		return mod(k+l, 2) != 0
	case cell.B:
		return mod(h+l, 2) != 0
	case cell.C:
		return mod(h+k, 2) != 0
	case cell.I:
		return mod(h+k+l, 2) != 0
	case cell.F:
		return mod(h+k, 2) != 0 || mod(h+l, 2) != 0 || mod(k+l, 2) != 0
	case cell.H:
		return mod(-h+k+l, 3) != 0
	default:
		return false
	}
}

/*****************************************************************************************************************/

// Resolution returns sin(theta)/lambda = 1/(2d) for reflection hkl, computed
// directly from the crystallographic parameters via the metric tensor
// rather than by first building the reciprocal lattice vectors — this is
// the same shortcut the reference implementation takes, and it avoids a
// cos/sin round trip through Cartesian axes for a single scalar.
func Resolution(c *cell.UnitCell, h, k, l int) (float64, error) {
	a, b, cc, alpha, beta, gamma, err := c.Parameters()
	if err != nil {
		return 0, err
	}

	cosA, cosB, cosG := math.Cos(alpha), math.Cos(beta), math.Cos(gamma)
	sinA, sinB, sinG := math.Sin(alpha), math.Sin(beta), math.Sin(gamma)

	vsq := a * a * b * b * cc * cc * (1 - cosA*cosA - cosB*cosB - cosG*cosG + 2*cosA*cosB*cosG)

	s11 := b * b * cc * cc * sinA * sinA
	s22 := a * a * cc * cc * sinB * sinB
	s33 := a * a * b * b * sinG * sinG
	s12 := a * b * cc * cc * (cosA*cosB - cosG)
	s23 := a * a * b * cc * (cosB*cosG - cosA)
	s13 := a * b * b * cc * (cosG*cosA - cosB)

	hf, kf, lf := float64(h), float64(k), float64(l)
	brackets := s11*hf*hf + s22*kf*kf + s33*lf*lf +
		2*s12*hf*kf + 2*s23*kf*lf + 2*s13*hf*lf

	oneOverDSq := brackets / vsq
	if oneOverDSq < 0 {
		oneOverDSq = 0
	}
	oneOverD := math.Sqrt(oneOverDSq)

	return oneOverD / 2, nil
}

/*****************************************************************************************************************/

// Volume returns the direct-cell volume via the reciprocal-axes triple
// product, matching cell_get_volume's route through the reciprocal lattice.
func Volume(c *cell.UnitCell) (float64, error) {
	ra, rb, rc, err := c.ReciprocalAxes()
	if err != nil {
		return 0, err
	}

	cross := ra.Cross(rb)
	recipVolume := cross.Dot(rc)
	if recipVolume == 0 {
		return 0, cell.ErrNoParameters
	}
	return 1 / recipVolume, nil
}
