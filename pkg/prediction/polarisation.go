package prediction

import (
	"math"

	"github.com/crystfel-go/crystfel-go/pkg/detector"
	"github.com/crystfel-go/crystfel-go/pkg/reflection"
)

/*****************************************************************************************************************/

// PolarisationOptions configures the synchrotron/XFEL polarisation
// correction applied after prediction (spec.md 4.8.3).
type PolarisationOptions struct {
	// Enabled turns the correction on; when false ApplyPolarisation is a no-op.
	Enabled bool

	// Degree is the fraction of polarisation in the reference plane (1
	// for fully horizontally polarised synchrotron light).
	Degree float64

	// AxisAngle rotates the reference plane away from the detector's x-axis, radians.
	AxisAngle float64
}

/*****************************************************************************************************************/

// ApplyPolarisation divides each reflection's Intensity and Sigma by the
// polarisation factor computed from its detector position, following the
// standard two-term synchrotron polarisation formula (spec.md 4.8.3):
//
//	corr = P*(1 - cos^2(phi)*sin^2(2*theta)) + (1-P)*(1 - sin^2(phi)*sin^2(2*theta))
//
// where phi is the azimuthal angle of the scattering vector about the beam
// and 2*theta is the full scattering angle.
func ApplyPolarisation(c *detector.Crystal, img *detector.Image, opts PolarisationOptions) {
	if !opts.Enabled || c.Reflections == nil {
		return
	}

	c.Reflections.Each(func(r *reflection.Reflection) {
		if r.Panel < 0 || r.Panel >= len(img.Detector.Panels) {
			return
		}
		panel := &img.Detector.Panels[r.Panel]
		pos := panel.LabPosition(r.FS, r.SS)

		dx, dy := pos.X(), pos.Y()
		phi := math.Atan2(dy, dx) - opts.AxisAngle

		theta := 0.5 * math.Atan2(math.Hypot(dx, dy), panel.Clen)
		sin2Theta := math.Sin(2 * theta)
		sin2ThetaSq := sin2Theta * sin2Theta

		cosPhi := math.Cos(phi)
		sinPhi := math.Sin(phi)

		corr := opts.Degree*(1-cosPhi*cosPhi*sin2ThetaSq) + (1-opts.Degree)*(1-sinPhi*sinPhi*sin2ThetaSq)
		if corr <= 0 {
			return
		}

		r.Intensity /= corr
		r.Sigma /= corr
	})
}
