// Package rational implements exact fractional arithmetic and the 3x3
// rational/integer matrices used to represent centering transformations.
// Centering transforms involve halves and thirds that, handled in floating
// point, corrupt the classification of the resulting cell — so this
// package never touches a float64 until the very last step (Matrix.Float64).
package rational

import (
	"errors"
	"fmt"
)

/*****************************************************************************************************************/

// Rational is an exact fraction p/q, always stored reduced with q > 0.
type Rational struct {
	p int64
	q int64
}

/*****************************************************************************************************************/

// Zero is the additive identity.
var Zero = Rational{p: 0, q: 1}

// One is the multiplicative identity.
var One = Rational{p: 1, q: 1}

/*****************************************************************************************************************/

// New builds a Rational from a numerator and denominator, reducing it and
// normalizing the sign so that the denominator is always positive.
func New(num, den int64) (Rational, error) {
	if den == 0 {
		return Rational{}, errors.New("rational: zero denominator")
	}
	if den < 0 {
		num, den = -num, -den
	}
	g := gcd(abs(num), den)
	if g == 0 {
		return Rational{p: 0, q: 1}, nil
	}
	return Rational{p: num / g, q: den / g}, nil
}

/*****************************************************************************************************************/

// FromInt builds an integral Rational n/1.
func FromInt(n int64) Rational {
	return Rational{p: n, q: 1}
}

/*****************************************************************************************************************/

func gcd(a, b int64) int64 {
	for b != 0 {
		a, b = b, a%b
	}
	return a
}

/*****************************************************************************************************************/

func abs(n int64) int64 {
	if n < 0 {
		return -n
	}
	return n
}

/*****************************************************************************************************************/

// Num returns the reduced numerator.
func (r Rational) Num() int64 { return r.p }

// Den returns the reduced, always-positive denominator.
func (r Rational) Den() int64 { return r.q }

/*****************************************************************************************************************/

// Add returns r + o.
func (r Rational) Add(o Rational) Rational {
	res, _ := New(r.p*o.q+o.p*r.q, r.q*o.q)
	return res
}

// Sub returns r - o.
func (r Rational) Sub(o Rational) Rational {
	res, _ := New(r.p*o.q-o.p*r.q, r.q*o.q)
	return res
}

// Mul returns r * o.
func (r Rational) Mul(o Rational) Rational {
	res, _ := New(r.p*o.p, r.q*o.q)
	return res
}

// Div returns r / o. Returns an error if o is zero.
func (r Rational) Div(o Rational) (Rational, error) {
	if o.p == 0 {
		return Rational{}, errors.New("rational: division by zero")
	}
	return New(r.p*o.q, r.q*o.p)
}

// Neg returns -r.
func (r Rational) Neg() Rational {
	return Rational{p: -r.p, q: r.q}
}

/*****************************************************************************************************************/

// IsZero reports whether r is exactly zero.
func (r Rational) IsZero() bool { return r.p == 0 }

// IsInteger reports whether r reduces to a whole number.
func (r Rational) IsInteger() bool { return r.q == 1 }

// Equal reports exact equality of two reduced rationals.
func (r Rational) Equal(o Rational) bool { return r.p == o.p && r.q == o.q }

/*****************************************************************************************************************/

// Float64 converts to a floating-point approximation. This is the one
// place floating point is allowed to enter: the caller has already finished
// whatever exact reasoning it needed to do.
func (r Rational) Float64() float64 {
	return float64(r.p) / float64(r.q)
}

/*****************************************************************************************************************/

// String renders "p/q", or just "p" when the denominator is 1.
func (r Rational) String() string {
	if r.q == 1 {
		return fmt.Sprintf("%d", r.p)
	}
	return fmt.Sprintf("%d/%d", r.p, r.q)
}

/*****************************************************************************************************************/
