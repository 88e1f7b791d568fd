package rational

import "github.com/crystfel-go/crystfel-go/pkg/xerr"

/*****************************************************************************************************************/

// Matrix is a 3x3 matrix of exact rationals, row-major. It plays the role
// the teacher's pkg/matrix.Matrix plays for float64, generalized to a fixed
// 3x3 shape (the only size centering transforms ever need) and to exact
// fractions instead of floats.
type Matrix struct {
	v [3][3]Rational
}

/*****************************************************************************************************************/

// IntegerMatrix is the restriction of Matrix to integer entries, used as a
// basis-change matrix (determinant +-1 for a pure reindexing; a centering
// transform's determinant is the number of lattice points per centered cell).
type IntegerMatrix struct {
	v [3][3]int64
}

/*****************************************************************************************************************/

// NewMatrix builds a rational Matrix from nine values given in row-major order.
func NewMatrix(vals [9]Rational) Matrix {
	var m Matrix
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			m.v[i][j] = vals[3*i+j]
		}
	}
	return m
}

/*****************************************************************************************************************/

// Identity3 returns the 3x3 rational identity matrix.
func Identity3() Matrix {
	var m Matrix
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			m.v[i][j] = Zero
		}
		m.v[i][i] = One
	}
	return m
}

/*****************************************************************************************************************/

// NewIntegerMatrix builds an IntegerMatrix from nine values in row-major order.
func NewIntegerMatrix(vals [9]int64) IntegerMatrix {
	var m IntegerMatrix
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			m.v[i][j] = vals[3*i+j]
		}
	}
	return m
}

/*****************************************************************************************************************/

// IdentityInt3 returns the 3x3 integer identity matrix.
func IdentityInt3() IntegerMatrix {
	var m IntegerMatrix
	for i := 0; i < 3; i++ {
		m.v[i][i] = 1
	}
	return m
}

/*****************************************************************************************************************/

// At returns the element at (row, col), zero-indexed.
func (m Matrix) At(row, col int) Rational { return m.v[row][col] }

// Set returns a copy of m with (row, col) replaced by val.
func (m Matrix) Set(row, col int, val Rational) Matrix {
	m.v[row][col] = val
	return m
}

// At returns the element at (row, col), zero-indexed.
func (m IntegerMatrix) At(row, col int) int64 { return m.v[row][col] }

/*****************************************************************************************************************/

// ToRational promotes an IntegerMatrix to its rational equivalent.
func (m IntegerMatrix) ToRational() Matrix {
	var out Matrix
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			out.v[i][j] = FromInt(m.v[i][j])
		}
	}
	return out
}

/*****************************************************************************************************************/

// ToInteger demotes a rational Matrix to an IntegerMatrix when every entry
// has denominator 1. The second return value is false otherwise.
func (m Matrix) ToInteger() (IntegerMatrix, bool) {
	var out IntegerMatrix
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			if !m.v[i][j].IsInteger() {
				return IntegerMatrix{}, false
			}
			out.v[i][j] = m.v[i][j].Num()
		}
	}
	return out, true
}

/*****************************************************************************************************************/

// Det returns the determinant via cofactor expansion along the first row.
func (m Matrix) Det() Rational {
	a, b, c := m.v[0][0], m.v[0][1], m.v[0][2]
	d, e, f := m.v[1][0], m.v[1][1], m.v[1][2]
	g, h, i := m.v[2][0], m.v[2][1], m.v[2][2]

	return a.Mul(e.Mul(i).Sub(f.Mul(h))).
		Sub(b.Mul(d.Mul(i).Sub(f.Mul(g)))).
		Add(c.Mul(d.Mul(h).Sub(e.Mul(g))))
}

/*****************************************************************************************************************/

// Det returns the integer determinant via cofactor expansion.
func (m IntegerMatrix) Det() int64 {
	a, b, c := m.v[0][0], m.v[0][1], m.v[0][2]
	d, e, f := m.v[1][0], m.v[1][1], m.v[1][2]
	g, h, i := m.v[2][0], m.v[2][1], m.v[2][2]

	return a*(e*i-f*h) - b*(d*i-f*g) + c*(d*h-e*g)
}

/*****************************************************************************************************************/

// Mul returns the matrix product m * other.
func (m Matrix) Mul(other Matrix) Matrix {
	var out Matrix
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			sum := Zero
			for k := 0; k < 3; k++ {
				sum = sum.Add(m.v[i][k].Mul(other.v[k][j]))
			}
			out.v[i][j] = sum
		}
	}
	return out
}

/*****************************************************************************************************************/

// Mul returns the integer matrix product m * other.
func (m IntegerMatrix) Mul(other IntegerMatrix) IntegerMatrix {
	var out IntegerMatrix
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			var sum int64
			for k := 0; k < 3; k++ {
				sum += m.v[i][k] * other.v[k][j]
			}
			out.v[i][j] = sum
		}
	}
	return out
}

/*****************************************************************************************************************/

// MulVec returns m applied to the column vector v.
func (m Matrix) MulVec(v [3]Rational) [3]Rational {
	var out [3]Rational
	for i := 0; i < 3; i++ {
		sum := Zero
		for k := 0; k < 3; k++ {
			sum = sum.Add(m.v[i][k].Mul(v[k]))
		}
		out[i] = sum
	}
	return out
}

/*****************************************************************************************************************/

// MulVec returns m applied to the integer column vector v.
func (m IntegerMatrix) MulVec(v [3]int64) [3]int64 {
	var out [3]int64
	for i := 0; i < 3; i++ {
		var sum int64
		for k := 0; k < 3; k++ {
			sum += m.v[i][k] * v[k]
		}
		out[i] = sum
	}
	return out
}

/*****************************************************************************************************************/

// Inverse returns the exact inverse of m via the adjugate/determinant
// formula. It fails with xerr.Singular when the determinant is zero.
func (m Matrix) Inverse() (Matrix, error) {
	det := m.Det()
	if det.IsZero() {
		return Matrix{}, xerr.Singular
	}

	cof := func(r0, r1, c0, c1 int) Rational {
		return m.v[r0][c0].Mul(m.v[r1][c1]).Sub(m.v[r0][c1].Mul(m.v[r1][c0]))
	}

	// Adjugate is the transpose of the cofactor matrix.
	adj := Matrix{}
	adj.v[0][0] = cof(1, 2, 1, 2)
	adj.v[0][1] = cof(0, 2, 1, 2).Neg()
	adj.v[0][2] = cof(0, 1, 1, 2)
	adj.v[1][0] = cof(1, 2, 0, 2).Neg()
	adj.v[1][1] = cof(0, 2, 0, 2)
	adj.v[1][2] = cof(0, 1, 0, 2).Neg()
	adj.v[2][0] = cof(1, 2, 0, 1)
	adj.v[2][1] = cof(0, 2, 0, 1).Neg()
	adj.v[2][2] = cof(0, 1, 0, 1)

	var out Matrix
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			// adj is already the transpose of the cofactor matrix, so
			// out[i][j] = adj[i][j] / det gives the standard inverse.
			v, err := adj.v[i][j].Div(det)
			if err != nil {
				return Matrix{}, xerr.Singular
			}
			out.v[i][j] = v
		}
	}
	return out, nil
}

/*****************************************************************************************************************/

// Solve solves M x = b exactly for x, via Cramer's rule. Fails with
// xerr.Singular when M is not invertible.
func (m Matrix) Solve(b [3]Rational) ([3]Rational, error) {
	det := m.Det()
	if det.IsZero() {
		return [3]Rational{}, xerr.Singular
	}

	var x [3]Rational
	for col := 0; col < 3; col++ {
		replaced := m
		for row := 0; row < 3; row++ {
			replaced.v[row][col] = b[row]
		}
		v, err := replaced.Det().Div(det)
		if err != nil {
			return [3]Rational{}, xerr.Singular
		}
		x[col] = v
	}
	return x, nil
}

/*****************************************************************************************************************/

// Float64 converts every entry to float64, row-major, 9 elements.
func (m Matrix) Float64() [9]float64 {
	var out [9]float64
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			out[3*i+j] = m.v[i][j].Float64()
		}
	}
	return out
}

/*****************************************************************************************************************/

// Float64 converts every entry to float64, row-major, 9 elements.
func (m IntegerMatrix) Float64() [9]float64 {
	var out [9]float64
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			out[3*i+j] = float64(m.v[i][j])
		}
	}
	return out
}
