// Package reflection implements the Miller-indexed reflection record and an
// ordered, unique-keyed list of them.
package reflection

import "fmt"

/*****************************************************************************************************************/

// MaxIndex bounds the magnitude of any Miller index component.
const MaxIndex = 511

/*****************************************************************************************************************/

// MillerIndex is a signed (h,k,l) triple identifying a reflection.
type MillerIndex struct {
	H, K, L int
}

/*****************************************************************************************************************/

// NewMillerIndex validates h,k,l against MaxIndex before returning the index.
func NewMillerIndex(h, k, l int) (MillerIndex, error) {
	if abs(h) > MaxIndex || abs(k) > MaxIndex || abs(l) > MaxIndex {
		return MillerIndex{}, fmt.Errorf("reflection: index (%d,%d,%d) exceeds magnitude %d", h, k, l, MaxIndex)
	}
	return MillerIndex{H: h, K: k, L: l}, nil
}

/*****************************************************************************************************************/

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}

/*****************************************************************************************************************/

func (m MillerIndex) String() string {
	return fmt.Sprintf("%d %d %d", m.H, m.K, m.L)
}

/*****************************************************************************************************************/

// Flag is a bitmask of per-reflection state that does not belong to the
// physical measurement itself.
type Flag uint8

/*****************************************************************************************************************/

const (
	FlagNone Flag = 0
	// FlagFreeSet marks a reflection withheld from scaling/refinement for
	// cross-validation (CC1/2 "free set").
	FlagFreeSet Flag = 1 << iota
	// FlagBadIntegration marks a reflection whose intensity could not be
	// reliably computed; it survives in the list but is excluded from fits.
	FlagBadIntegration
)

/*****************************************************************************************************************/

// Reflection is a single measured or predicted Bragg reflection.
type Reflection struct {
	Index MillerIndex

	Intensity  float64
	Sigma      float64
	Partiality float64
	Lorentz    float64

	// Peak and Background are the raw ring-sum peak total and per-pixel
	// local background estimate Integrate derived Intensity from (stream
	// format's "peak background" columns, spec.md 6).
	Peak       float64
	Background float64

	FS, SS float64
	Panel  int

	KPred           float64
	KHalf           float64
	ExcitationError float64

	Redundancy int
	Symmetric  MillerIndex

	Flags Flag
}

/*****************************************************************************************************************/

// HasFlag reports whether f is set on the reflection.
func (r *Reflection) HasFlag(f Flag) bool { return r.Flags&f != 0 }

// SetFlag sets f on the reflection.
func (r *Reflection) SetFlag(f Flag) { r.Flags |= f }

// ClearFlag clears f on the reflection.
func (r *Reflection) ClearFlag(f Flag) { r.Flags &^= f }
