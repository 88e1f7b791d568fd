package prediction

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/crystfel-go/crystfel-go/pkg/detector"
)

/*****************************************************************************************************************/

// partiality dispatches to the configured model. h,k,l and serial are only
// used by Random, to make its draw reproducible for a given (reflection,
// image) pair without correlating across reflections or frames.
func partiality(q r3.Vec, k, profileRadius float64, img *detector.Image, opts Options, h, kk, l int, serial uint64) float64 {
	switch opts.Model {
	case Unity:
		return 1
	case Offset:
		return offsetPartiality(q, k, profileRadius)
	case Random:
		return randomPartiality(h, kk, l, serial)
	case XSphere:
		fallthrough
	default:
		return xspherePartiality(q, k, profileRadius, img.Spectrum)
	}
}

/*****************************************************************************************************************/

// offsetPartiality models the reflection's reciprocal-space profile as a
// Gaussian of width profileRadius in excitation-error space: partiality
// falls off as exp(-t^2/R^2), per spec.md 4.8.2's OFFSET model.
func offsetPartiality(q r3.Vec, k, profileRadius float64) float64 {
	if profileRadius <= 0 {
		return 0
	}
	t := excitationError(q, k)
	ratio := t / profileRadius
	return math.Exp(-ratio * ratio)
}

/*****************************************************************************************************************/

// xspherePartiality is the ratio of two 1-D quadratures over the beam
// spectrum: the numerator integrates the spectral density only where the
// reflection's spherical profile (radius profileRadius in excitation-error
// space) overlaps the Ewald sphere at that trial wavenumber; the
// denominator is the spectrum's total weight over the same interval, so a
// reflection fully covered by every wavenumber in the bandwidth scores 1.
//
// spec.md 4.8.2 specifies the ratio-of-quadratures shape but not the exact
// integration bounds; this reconstructs them from the spectrum itself
// (Bounds(4) — see pkg/spectrum) since the reference quadrature bounds
// weren't available to ground against (see DESIGN.md).
func xspherePartiality(q r3.Vec, k, profileRadius float64, spec spectrumEvaluator) float64 {
	if spec == nil || profileRadius <= 0 {
		return 0
	}

	lo, hi := spec.Bounds(4)
	if hi <= lo {
		return 0
	}

	const nPoints = 50
	step := (hi - lo) / float64(nPoints)

	var num, den float64
	for i := 0; i < nPoints; i++ {
		kk := lo + (float64(i)+0.5)*step
		e := spec.Evaluate(kk)
		den += e
		t := excitationError(q, kk)
		if math.Abs(t) <= profileRadius {
			num += e
		}
	}

	if den == 0 {
		return 0
	}
	p := num / den
	if p > 1 {
		p = 1
	}
	return p
}

/*****************************************************************************************************************/

// spectrumEvaluator is the slice of *spectrum.Spectrum this package needs;
// declared locally so a nil *spectrum.Spectrum can still satisfy it via a
// plain nil check at the call site without importing the concrete type
// into the partiality computation itself.
type spectrumEvaluator interface {
	Bounds(sigmas float64) (lo, hi float64)
	Evaluate(k float64) float64
}

/*****************************************************************************************************************/

// randomPartiality returns a deterministic pseudo-random value in [0,1) for
// the reflection (h,k,l) on image serial, for exercising merging code
// without a physical partiality model. Per spec.md 9's open question: no
// specific RNG is named, and no bit-exact reproducibility across versions
// is claimed — this is splitmix64, seeded from the reflection's identity,
// chosen only to avoid a global math/rand.Seed call racing across workers.
func randomPartiality(h, k, l int, serial uint64) float64 {
	seed := uint64(int64(h))*0x9E3779B97F4A7C15 ^
		uint64(int64(k))*0xC2B2AE3D27D4EB4F ^
		uint64(int64(l))*0x165667B19E3779F9 ^
		serial

	seed += 0x9E3779B97F4A7C15
	z := seed
	z = (z ^ (z >> 30)) * 0xBF58476D1CE4E5B9
	z = (z ^ (z >> 27)) * 0x94D049BB133111EB
	z = z ^ (z >> 31)

	return float64(z>>11) / (1 << 53)
}
