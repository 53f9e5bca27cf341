package main

import "testing"

func TestSynthesize(t *testing.T) {
	const w, h = 16, 12
	a := make([]float32, w*h)
	b := make([]float32, w*h)
	synthesize(a, w, h, 0)
	synthesize(b, w, h, 5)

	changed := false
	for i := range a {
		if a[i] < 1.5 || a[i] > 3.5 {
			t.Fatalf("sample %d = %v, want within [1.5, 3.5]", i, a[i])
		}
		if a[i] != b[i] {
			changed = true
		}
	}
	if !changed {
		t.Error("field did not change between frames")
	}
}
