// Package prediction computes the set of reflections a crystal's lattice
// places on the Ewald sphere for a given image, and their detector
// coordinates, partiality, and polarisation correction (spec.md 4.8).
package prediction

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/crystfel-go/crystfel-go/pkg/cellutils"
	"github.com/crystfel-go/crystfel-go/pkg/detector"
	"github.com/crystfel-go/crystfel-go/pkg/reflection"
)

/*****************************************************************************************************************/

// Model selects how partiality is estimated for each predicted reflection.
type Model int

/*****************************************************************************************************************/

const (
	Unity Model = iota
	XSphere
	Offset
	Random
)

/*****************************************************************************************************************/

// Options configures Predict.
type Options struct {
	// QMax bounds the region of reciprocal space searched, metres^-1.
	QMax float64

	Model Model

	// MinPartiality discards reflections weaker than this; defaults to
	// exp(-0.5*1.7^2) (spec.md 4.8.2's nominal cutoff) when zero.
	MinPartiality float64

	Polarisation PolarisationOptions
}

/*****************************************************************************************************************/

// DefaultMinPartiality is the nominal 1.7-sigma cutoff used when Options
// leaves MinPartiality unset.
func DefaultMinPartiality() float64 { return math.Exp(-0.5 * 1.7 * 1.7) }

/*****************************************************************************************************************/

func norm(v r3.Vec) float64 { return math.Sqrt(v.Dot(v)) }

/*****************************************************************************************************************/

// excitationError is the signed distance (metres^-1) from the reciprocal
// lattice point q to the Ewald sphere of radius k centred on -k*z: positive
// when q lies outside the sphere.
func excitationError(q r3.Vec, k float64) float64 {
	ks := r3.Vec{q.X(), q.Y(), q.Z() + k}
	return norm(ks) - k
}

/*****************************************************************************************************************/

// Predict fills c.Reflections with every in-bounds, non-systematically-
// absent reciprocal lattice point within Options.QMax whose partiality
// clears Options.MinPartiality and which lands on a detector panel. img
// supplies the beam wavelength/spectrum and detector geometry; c is not
// mutated beyond its Reflections list.
func Predict(c *detector.Crystal, img *detector.Image, opts Options) error {
	ra, rb, rc, err := c.Cell.ReciprocalAxes()
	if err != nil {
		return err
	}

	minP := opts.MinPartiality
	if minP == 0 {
		minP = DefaultMinPartiality()
	}

	k := 1 / img.Wavelength

	hmax := boundIndex(opts.QMax, norm(ra))
	kmax := boundIndex(opts.QMax, norm(rb))
	lmax := boundIndex(opts.QMax, norm(rc))

	cen := c.Cell.Centering()

	c.Reflections = reflection.NewList()

	for h := -hmax; h <= hmax; h++ {
		for kk := -kmax; kk <= kmax; kk++ {
			for l := -lmax; l <= lmax; l++ {
				if h == 0 && kk == 0 && l == 0 {
					continue
				}
				if cellutils.ForbiddenReflection(cen, h, kk, l) {
					continue
				}

				q := ra.Scale(float64(h)).Add(rb.Scale(float64(kk))).Add(rc.Scale(float64(l)))
				if norm(q) > opts.QMax {
					continue
				}

				p := partiality(q, k, c.ProfileRadius, img, opts, h, kk, l, img.Serial)
				if p < minP {
					continue
				}

				fs, ss, panel, perr := img.Detector.Predict(q, k)
				if perr != nil {
					continue
				}

				idx, ierr := reflection.NewMillerIndex(h, kk, l)
				if ierr != nil {
					continue
				}

				r := c.Reflections.Insert(idx)
				r.FS = fs
				r.SS = ss
				r.Panel = panel
				r.Partiality = p
				r.ExcitationError = excitationError(q, k)
				if q.Z() != 0 {
					r.KHalf = -q.Dot(q) / (2 * q.Z())
				}
			}
		}
	}

	ApplyPolarisation(c, img, opts.Polarisation)

	return nil
}

/*****************************************************************************************************************/

// boundIndex returns the largest Miller index magnitude that can possibly
// reach qMax given a reciprocal axis of the given length, clamped to the
// representable index range.
func boundIndex(qMax, axisLen float64) int {
	if axisLen <= 0 {
		return 0
	}
	n := int(qMax/axisLen) + 1
	if n > reflection.MaxIndex {
		n = reflection.MaxIndex
	}
	return n
}
