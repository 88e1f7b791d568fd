// Package scaling fits each crystal's scale factor G and Debye-Waller
// factor B against a merged reference intensity list, and bootstraps that
// reference when none is supplied yet (spec.md 4.11).
package scaling

import (
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/crystfel-go/crystfel-go/pkg/cellutils"
	"github.com/crystfel-go/crystfel-go/pkg/detector"
	"github.com/crystfel-go/crystfel-go/pkg/reflection"
	"github.com/crystfel-go/crystfel-go/pkg/xerr"
)

/*****************************************************************************************************************/

// Options configures both FitCrystalScale and DirectScale.
type Options struct {
	MinReflections int

	// MaxB bounds the plausible Debye-Waller factor, metres^2; a fit
	// outside [-MaxB,MaxB] is reverted and the crystal flagged BIGB.
	MaxB float64

	// BootstrapIterations is how many merge/refit rounds DirectScale runs.
	BootstrapIterations int
}

/*****************************************************************************************************************/

func scaleModelRow(s float64) (col0, col1 float64) { return 1, s * s }

/*****************************************************************************************************************/

// FitCrystalScale fits ln(I_obs) = ln(G) - 2*B*s^2 + ln(I_ref) (s = sin(theta)/lambda)
// over the reflections c shares with reference, weighting each by the
// inverse variance of the log-intensity ratio. On success it sets c.G, c.B
// and clears any prior scaling flag; on failure it sets c.Flag and returns
// the corresponding xerr sentinel, leaving G/B unchanged.
func FitCrystalScale(c *detector.Crystal, reference *reflection.List, opts Options) error {
	type sample struct {
		s2, y, weight float64
	}
	var samples []sample

	c.Reflections.Each(func(r *reflection.Reflection) {
		if r.Intensity <= 0 {
			return
		}
		ref, ok := reference.Get(r.Index)
		if !ok || ref.Intensity <= 0 {
			return
		}

		s, err := cellutils.Resolution(c.Cell, r.Index.H, r.Index.K, r.Index.L)
		if err != nil {
			return
		}

		sigY2 := (r.Sigma/r.Intensity)*(r.Sigma/r.Intensity) + (ref.Sigma/ref.Intensity)*(ref.Sigma/ref.Intensity)
		if sigY2 <= 0 {
			sigY2 = 1
		}

		samples = append(samples, sample{
			s2:     s * s,
			y:      math.Log(r.Intensity) - math.Log(ref.Intensity),
			weight: 1 / sigY2,
		})
	})

	if len(samples) < opts.MinReflections {
		c.Flag = xerr.FlagFewRefl
		return xerr.TooFewReflections
	}

	n := len(samples)
	a := mat.NewDense(n, 2, nil)
	b := make([]float64, n)
	for i, sm := range samples {
		w := math.Sqrt(sm.weight)
		col0, col1 := scaleModelRow(math.Sqrt(sm.s2))
		a.Set(i, 0, w*col0)
		a.Set(i, 1, w*(-2*col1))
		b[i] = w * sm.y
	}

	x, err := solveSVD(a, b)
	if err != nil {
		c.Flag = xerr.FlagSolveFail
		return xerr.SolveFailed
	}

	lnG, negTwoB := x[0], x[1]
	bFit := negTwoB / -2

	if opts.MaxB > 0 && math.Abs(bFit) > opts.MaxB {
		c.Flag = xerr.FlagBigB
		return xerr.ScalingDiverged
	}

	c.G = math.Exp(lnG)
	c.B = bFit
	c.Flag = xerr.FlagNone
	return nil
}

/*****************************************************************************************************************/

// correctedIntensity returns r's intensity with the crystal's scale,
// Debye-Waller factor and partiality divided out, i.e. mapped onto the
// reference (unscaled, fully-integrated) intensity scale.
func correctedIntensity(c *detector.Crystal, r *reflection.Reflection) (value, weight float64, ok bool) {
	if r.Intensity == 0 || r.Partiality <= 0 || c.G == 0 {
		return 0, 0, false
	}
	s, err := cellutils.Resolution(c.Cell, r.Index.H, r.Index.K, r.Index.L)
	if err != nil {
		return 0, 0, false
	}
	dwf := math.Exp(-2 * c.B * s * s)
	if dwf <= 0 {
		return 0, 0, false
	}
	denom := c.G * dwf * r.Partiality
	value = r.Intensity / denom
	sigma := r.Sigma / denom
	if sigma <= 0 {
		return 0, 0, false
	}
	weight = 1 / (sigma * sigma)
	return value, weight, true
}

/*****************************************************************************************************************/

// BuildMergedReference returns the weighted mean of every crystal's
// scale-corrected reflections, keyed by Miller index.
func BuildMergedReference(crystals []*detector.Crystal) *reflection.List {
	type acc struct{ sumW, sumWV float64 }
	accum := make(map[reflection.MillerIndex]*acc)
	var order []reflection.MillerIndex

	for _, c := range crystals {
		c.Reflections.Each(func(r *reflection.Reflection) {
			v, w, ok := correctedIntensity(c, r)
			if !ok {
				return
			}
			a, seen := accum[r.Index]
			if !seen {
				a = &acc{}
				accum[r.Index] = a
				order = append(order, r.Index)
			}
			a.sumW += w
			a.sumWV += w * v
		})
	}

	out := reflection.NewList()
	for _, idx := range order {
		a := accum[idx]
		if a.sumW <= 0 {
			continue
		}
		r := out.Insert(idx)
		r.Intensity = a.sumWV / a.sumW
		r.Sigma = 1 / math.Sqrt(a.sumW)
		r.Redundancy++
	}
	return out
}

/*****************************************************************************************************************/

// DirectScale bootstraps per-crystal G/B when no external reference list
// exists yet: it starts every crystal at G=1, B=0, builds a merged
// reference from the current scale estimates, refits every crystal against
// it, and repeats for Options.BootstrapIterations rounds.
func DirectScale(crystals []*detector.Crystal, opts Options) *reflection.List {
	for _, c := range crystals {
		c.G = 1
		c.B = 0
	}

	iterations := opts.BootstrapIterations
	if iterations <= 0 {
		iterations = 1
	}

	var ref *reflection.List
	for iter := 0; iter < iterations; iter++ {
		ref = BuildMergedReference(crystals)
		for _, c := range crystals {
			_ = FitCrystalScale(c, ref, opts)
		}
	}
	return ref
}
