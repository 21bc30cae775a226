package aruco

import (
	"testing"
)

// TestResolveFallback checks IDs without an override resolve to the default
// size
func TestResolveFallback(t *testing.T) {

	r := NewSizeResolver(0.0625, map[int]float64{7: 0.10})

	for _, id := range []int{0, 1, 6, 8, 100, -3} {
		if got := r.Resolve(id); got != 0.0625 {
			t.Errorf("id %d: expected default 0.0625, got %v", id, got)
		}
	}
}

// TestResolveOverride checks overridden IDs resolve to their table entry
// even when it differs from the default
func TestResolveOverride(t *testing.T) {

	r := NewSizeResolver(0.05, map[int]float64{
		7:  0.10,
		12: 0.05,
	})

	if got := r.Resolve(7); got != 0.10 {
		t.Errorf("id 7: expected 0.10, got %v", got)
	}

	if got := r.Resolve(12); got != 0.05 {
		t.Errorf("id 12: expected 0.05, got %v", got)
	}
}

// TestResolveNilOverrides checks a nil table behaves as empty
func TestResolveNilOverrides(t *testing.T) {

	r := NewSizeResolver(0.0625, nil)

	if got := r.Resolve(42); got != 0.0625 {
		t.Errorf("expected default 0.0625, got %v", got)
	}
}
