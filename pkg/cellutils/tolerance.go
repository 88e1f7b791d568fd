package cellutils

import "math"

/*****************************************************************************************************************/

// WithinTolerance reports whether x and y differ by no more than pct
// percent of x: |x-y| <= pct/100 * x. Angular tolerances passed through
// this package's matching routines are absolute radians, not percentages;
// this helper is only for fractional (length) tolerances.
func WithinTolerance(x, y, pct float64) bool {
	return math.Abs(x-y) <= (pct/100)*math.Abs(x)
}
