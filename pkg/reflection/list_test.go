package reflection

import "testing"

/*****************************************************************************************************************/

func TestInsertThenGetReturnsEqualRecord(t *testing.T) {
	l := NewList()
	idx, err := NewMillerIndex(1, 2, 3)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	r := l.Insert(idx)
	r.Intensity = 42

	got, ok := l.Get(idx)
	if !ok {
		t.Fatalf("expected idx to be present")
	}
	if got.Intensity != 42 {
		t.Errorf("Intensity = %v; want 42", got.Intensity)
	}
}

/*****************************************************************************************************************/

func TestReinsertDoesNotDuplicate(t *testing.T) {
	l := NewList()
	idx, _ := NewMillerIndex(1, 0, 0)
	first := l.Insert(idx)
	first.Intensity = 7
	second := l.Insert(idx)

	if l.Len() != 1 {
		t.Errorf("Len() = %d; want 1", l.Len())
	}
	if second.Intensity != 7 {
		t.Errorf("re-insert should return the existing record, got Intensity %v", second.Intensity)
	}
}

/*****************************************************************************************************************/

func TestDeleteRemovesKey(t *testing.T) {
	l := NewList()
	idx, _ := NewMillerIndex(1, 1, 1)
	l.Insert(idx)
	l.Delete(idx)

	if _, ok := l.Get(idx); ok {
		t.Errorf("expected idx to be absent after Delete")
	}
	if l.Len() != 0 {
		t.Errorf("Len() = %d; want 0", l.Len())
	}
}

/*****************************************************************************************************************/

func TestSortedByDoesNotMutateInsertionOrder(t *testing.T) {
	l := NewList()
	for _, h := range []int{3, 1, 2} {
		idx, _ := NewMillerIndex(h, 0, 0)
		l.Insert(idx).Intensity = float64(h)
	}

	sorted := l.SortedBy(func(a, b *Reflection) bool { return a.Intensity < b.Intensity })
	if sorted[0].Intensity != 1 || sorted[1].Intensity != 2 || sorted[2].Intensity != 3 {
		t.Errorf("SortedBy did not sort ascending: %v %v %v", sorted[0].Intensity, sorted[1].Intensity, sorted[2].Intensity)
	}

	original := l.All()
	if original[0].Intensity != 3 || original[1].Intensity != 1 || original[2].Intensity != 2 {
		t.Errorf("SortedBy mutated insertion order")
	}
}

/*****************************************************************************************************************/

func TestNewMillerIndexRejectsOutOfRange(t *testing.T) {
	if _, err := NewMillerIndex(MaxIndex+1, 0, 0); err == nil {
		t.Errorf("expected error for index exceeding MaxIndex")
	}
}
