package reflection

import "sort"

/*****************************************************************************************************************/

// List maps MillerIndex to *Reflection with unique keys, preserving
// insertion order for stable iteration across a single run. The backing
// store is a plain map plus an order slice rather than a sorted tree: spec
// only requires iteration order to be stable within a run, not sorted, and
// resolution-ordering when needed is produced on demand by SortedBy.
type List struct {
	order []MillerIndex
	byIdx map[MillerIndex]*Reflection
}

/*****************************************************************************************************************/

// NewList returns an empty reflection list.
func NewList() *List {
	return &List{byIdx: make(map[MillerIndex]*Reflection)}
}

/*****************************************************************************************************************/

// Insert returns the reflection stored at idx, creating and recording a new
// zero-valued one (with Index set) if idx is not already present. Re-inserting
// an existing key returns the existing record rather than duplicating it.
func (l *List) Insert(idx MillerIndex) *Reflection {
	if r, ok := l.byIdx[idx]; ok {
		return r
	}
	r := &Reflection{Index: idx}
	l.byIdx[idx] = r
	l.order = append(l.order, idx)
	return r
}

/*****************************************************************************************************************/

// Get looks up the reflection at idx.
func (l *List) Get(idx MillerIndex) (*Reflection, bool) {
	r, ok := l.byIdx[idx]
	return r, ok
}

/*****************************************************************************************************************/

// Delete removes idx from the list, if present.
func (l *List) Delete(idx MillerIndex) {
	if _, ok := l.byIdx[idx]; !ok {
		return
	}
	delete(l.byIdx, idx)
	for i, k := range l.order {
		if k == idx {
			l.order = append(l.order[:i], l.order[i+1:]...)
			break
		}
	}
}

/*****************************************************************************************************************/

// Len returns the number of reflections stored.
func (l *List) Len() int { return len(l.order) }

/*****************************************************************************************************************/

// Each calls fn once per reflection, in insertion order.
func (l *List) Each(fn func(*Reflection)) {
	for _, idx := range l.order {
		fn(l.byIdx[idx])
	}
}

/*****************************************************************************************************************/

// All returns the reflections in insertion order. The slice is a fresh copy
// of pointers; mutating a *Reflection through it mutates the list's copy.
func (l *List) All() []*Reflection {
	out := make([]*Reflection, 0, len(l.order))
	for _, idx := range l.order {
		out = append(out, l.byIdx[idx])
	}
	return out
}

/*****************************************************************************************************************/

// SortedBy returns the reflections ordered by less, without mutating the
// list's own insertion order.
func (l *List) SortedBy(less func(a, b *Reflection) bool) []*Reflection {
	out := l.All()
	sort.Slice(out, func(i, j int) bool { return less(out[i], out[j]) })
	return out
}

/*****************************************************************************************************************/

// Copy returns a deep copy: same keys, freshly allocated Reflection values.
func (l *List) Copy() *List {
	cp := NewList()
	for _, idx := range l.order {
		r := *l.byIdx[idx]
		cp.byIdx[idx] = &r
		cp.order = append(cp.order, idx)
	}
	return cp
}
