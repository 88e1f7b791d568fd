package scaling

import (
	"gonum.org/v1/gonum/mat"

	"github.com/crystfel-go/crystfel-go/pkg/xerr"
)

/*****************************************************************************************************************/

// solveSVD solves the (possibly over-determined) linear system a*x = b via
// the SVD pseudo-inverse x = V * Sigma^-1 * U^T * b, following the same
// Factorize/Values/UTo/VTo sequence as gonum's own svd_test.go (see
// DESIGN.md) rather than a normal-equations solve, which squares the
// condition number of the already ill-conditioned resolution-vs-intensity
// design matrix this package builds.
func solveSVD(a *mat.Dense, b []float64) ([]float64, error) {
	var svd mat.SVD
	if ok := svd.Factorize(a, mat.SVDThin); !ok {
		return nil, xerr.Singular
	}

	_, cols := a.Dims()
	values := svd.Values(nil)

	var u, v mat.Dense
	svd.UTo(&u)
	svd.VTo(&v)

	bVec := mat.NewVecDense(len(b), b)

	var utb mat.VecDense
	utb.MulVec(u.T(), bVec)

	sInvUtb := mat.NewVecDense(cols, nil)
	for i := 0; i < cols && i < utb.Len(); i++ {
		if values[i] > 1e-12 {
			sInvUtb.SetVec(i, utb.AtVec(i)/values[i])
		}
	}

	var x mat.VecDense
	x.MulVec(&v, sInvUtb)

	out := make([]float64, cols)
	for i := range out {
		out[i] = x.AtVec(i)
	}
	return out, nil
}
