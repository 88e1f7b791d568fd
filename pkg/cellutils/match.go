package cellutils

import (
	"math"

	"github.com/crystfel-go/crystfel-go/pkg/cell"
	"github.com/crystfel-go/crystfel-go/pkg/rational"
	"gonum.org/v1/gonum/spatial/r3"
)

/*****************************************************************************************************************/

// lweight is the length-figure-of-merit weight applied alongside the
// angular figure of merit in match_cell's combined FOM, matching the
// reference implementation's LWEIGHT constant.
const lweight = 1e-8

/*****************************************************************************************************************/

// Tolerances bundles the per-axis fractional length tolerances (percent)
// and the angular tolerance (radians) used by MatchCell.
type Tolerances struct {
	LengthPct [3]float64
	AngleRad  float64
}

/*****************************************************************************************************************/

func norm(v r3.Vec) float64 {
	return math.Sqrt(v.Dot(v))
}

/*****************************************************************************************************************/

func angleBetween(a, b r3.Vec) float64 {
	return math.Acos(a.Dot(b) / (norm(a) * norm(b)))
}

/*****************************************************************************************************************/

type candidate struct {
	vec      r3.Vec
	n1, n2, n3 float64
	fom      float64
}

/*****************************************************************************************************************/

func sameCandidate(a, b candidate) bool {
	return a.n1 == b.n1 && a.n2 == b.n2 && a.n3 == b.n3
}

/*****************************************************************************************************************/

// candidateCoefficients returns the set of (n1,n2,n3) coefficient triples
// tried for each template axis: {0,+-1} normally, plus {+-1/2,+-1/3,+-1/4}
// when reduce is set.
func candidateCoefficients(reduce bool) []float64 {
	if !reduce {
		return []float64{-1, 0, 1}
	}
	return []float64{-1, -1.0 / 2, -1.0 / 3, -1.0 / 4, 0, 1.0 / 4, 1.0 / 3, 1.0 / 2, 1}
}

/*****************************************************************************************************************/

// MatchCell attempts to re-express in's lattice in the orientation and
// centering of template, per spec.md §4.3.5 / the reference implementation's
// match_cell: both cells are uncentered first, candidate reciprocal vectors
// are enumerated for each template axis, and the triple whose pairwise
// angles best match the template (right-handed, minimal combined FOM) is
// kept, then re-centered using the template's centering.
func MatchCell(in, template *cell.UnitCell, tol Tolerances, reduce bool) (*cell.UnitCell, float64, bool) {
	tmplPrim, centering, ok := Uncenter(template)
	if !ok {
		// Template may already be primitive (P or R); treat as identity.
		tmplPrim = template.Copy()
		centering = Transformation{ToCentered: rational.IdentityInt3(), ToPrimitive: rational.Identity3()}
	}

	inPrim, _, ok := Uncenter(in)
	if !ok {
		inPrim = in.Copy()
	}

	tra, trb, trc, err := tmplPrim.ReciprocalAxes()
	if err != nil {
		return nil, 0, false
	}
	lengths := [3]float64{norm(tra), norm(trb), norm(trc)}
	angles := [3]float64{angleBetween(trb, trc), angleBetween(tra, trc), angleBetween(tra, trb)}

	ira, irb, irc, err := inPrim.ReciprocalAxes()
	if err != nil {
		return nil, 0, false
	}

	coeffs := candidateCoefficients(reduce)
	var cand [3][]candidate

	for _, n1 := range coeffs {
		for _, n2 := range coeffs {
			for _, n3 := range coeffs {
				if !reduce && math.Abs(n1)+math.Abs(n2)+math.Abs(n3) > 1 {
					continue
				}
				t := ira.Scale(n1).Add(irb.Scale(n2)).Add(irc.Scale(n3))
				tlen := norm(t)
				if tlen == 0 {
					continue
				}
				for i := 0; i < 3; i++ {
					if !WithinTolerance(lengths[i], tlen, tol.LengthPct[i]) {
						continue
					}
					cand[i] = append(cand[i], candidate{vec: t, n1: n1, n2: n2, n3: n3, fom: math.Abs(lengths[i] - tlen)})
				}
			}
		}
	}

	bestFOM := math.Inf(1)
	var best [3]candidate
	found := false

	for _, ci := range cand[0] {
		for _, cj := range cand[1] {
			if sameCandidate(ci, cj) {
				continue
			}
			ang01 := angleBetween(ci.vec, cj.vec)
			if math.Abs(ang01-angles[2]) > tol.AngleRad {
				continue
			}
			fom1 := math.Abs(ang01 - angles[2])

			for _, ck := range cand[2] {
				if sameCandidate(cj, ck) {
					continue
				}
				ang02 := angleBetween(ci.vec, ck.vec)
				if math.Abs(ang02-angles[1]) > tol.AngleRad {
					continue
				}
				fom2 := fom1 + math.Abs(ang02-angles[1])

				ang12 := angleBetween(cj.vec, ck.vec)
				if math.Abs(ang12-angles[0]) > tol.AngleRad {
					continue
				}

				if ci.vec.Cross(cj.vec).Dot(ck.vec) <= 0 {
					continue
				}

				fom3 := fom2 + math.Abs(ang12-angles[0])
				fom3 += lweight * (ci.fom + cj.fom + ck.fom)

				if fom3 < bestFOM {
					bestFOM = fom3
					best = [3]candidate{ci, cj, ck}
					found = true
				}
			}
		}
	}

	if !found {
		return nil, 0, false
	}

	newPrim, err := cell.NewFromReciprocalAxes(best[0].vec, best[1].vec, best[2].vec)
	if err != nil {
		return nil, 0, false
	}

	out, err := Recenter(newPrim, centering)
	if err != nil {
		return nil, 0, false
	}
	out.SetLatticeType(template.LatticeType())
	out.SetCentering(template.Centering())
	out.SetUniqueAxis(template.UniqueAxis())

	return out, bestFOM, true
}

/*****************************************************************************************************************/

func g6Components(a, b, c, al, be, ga float64) [6]float64 {
	return [6]float64{
		a * a, b * b, c * c,
		2 * b * c * math.Cos(al),
		2 * a * c * math.Cos(be),
		2 * a * b * math.Cos(ga),
	}
}

/*****************************************************************************************************************/

// g6Distance is the Euclidean distance between two cells' G6 vectors
// (Andrews & Bernstein, Acta Cryst. A44 (1988) p1009).
func g6Distance(a1, b1, c1, al1, be1, ga1, a2, b2, c2, al2, be2, ga2 float64) float64 {
	g1 := g6Components(a1, b1, c1, al1, be1, ga1)
	g2 := g6Components(a2, b2, c2, al2, be2, ga2)
	var total float64
	for i := range g1 {
		d := g1[i] - g2[i]
		total += d * d
	}
	return math.Sqrt(total)
}

/*****************************************************************************************************************/

var reindexEntries = []int64{-1, 0, 1}

/*****************************************************************************************************************/

// CompareReindexedCellParameters brute-forces every 3x3 integer matrix with
// entries in {-1,0,+1} and determinant +1, applies it to in (operating on
// the uncentered cells), and keeps the transform whose resulting cell
// parameters are within tolerance of reference's and whose G6 distance to
// reference is smallest. Returns the transformed cell and the winning
// matrix, or ok=false if nothing matched.
func CompareReindexedCellParameters(in, reference *cell.UnitCell, lengthPct, angleRad float64) (*cell.UnitCell, rational.IntegerMatrix, bool) {
	refPrim, _, ok := Uncenter(reference)
	if !ok {
		refPrim = reference.Copy()
	}
	inPrim, _, ok := Uncenter(in)
	if !ok {
		inPrim = in.Copy()
	}

	ra, rb, rc, al, be, ga, err := refPrim.Parameters()
	if err != nil {
		return nil, rational.IntegerMatrix{}, false
	}

	minDist := math.Inf(1)
	var bestCell *cell.UnitCell
	var bestM rational.IntegerMatrix
	found := false

	for _, m00 := range reindexEntries {
		for _, m10 := range reindexEntries {
			for _, m20 := range reindexEntries {
				for _, m01 := range reindexEntries {
					for _, m11 := range reindexEntries {
						for _, m21 := range reindexEntries {
							for _, m02 := range reindexEntries {
								for _, m12 := range reindexEntries {
									for _, m22 := range reindexEntries {
										m := rational.NewIntegerMatrix([9]int64{
											m00, m01, m02,
											m10, m11, m12,
											m20, m21, m22,
										})
										if m.Det() != 1 {
											continue
										}

										test, err := inPrim.Transform(m)
										if err != nil {
											continue
										}
										rh, err := test.RightHanded()
										if err != nil || !rh {
											continue
										}

										at, bt, ct, alt, bet, gat, err := test.Parameters()
										if err != nil {
											continue
										}

										if !WithinTolerance(ra, at, lengthPct) ||
											!WithinTolerance(rb, bt, lengthPct) ||
											!WithinTolerance(rc, ct, lengthPct) {
											continue
										}
										if math.Abs(alt-al) > angleRad || math.Abs(bet-be) > angleRad || math.Abs(gat-ga) > angleRad {
											continue
										}

										dist := g6Distance(at, bt, ct, alt, bet, gat, ra, rb, rc, al, be, ga)
										if dist < minDist {
											minDist = dist
											bestCell = test
											bestM = m
											found = true
										}
									}
								}
							}
						}
					}
				}
			}
		}
	}

	if !found {
		return nil, rational.IntegerMatrix{}, false
	}
	return bestCell, bestM, true
}
