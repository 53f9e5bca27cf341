package grid

import (
	"errors"
	"testing"

	"github.com/gogpu/depthmesh/internal/parallel"
)

func newTestPool(t *testing.T) *parallel.WorkerPool {
	t.Helper()
	pool := parallel.NewWorkerPool(4)
	t.Cleanup(pool.Close)
	return pool
}

func TestBuildTopologyLengthsAndRange(t *testing.T) {
	pool := newTestPool(t)

	for _, dims := range [][2]int{{2, 2}, {3, 2}, {2, 5}, {4, 4}, {8, 6}, {17, 9}, {64, 48}} {
		w, h := dims[0], dims[1]
		indices, uvs, err := BuildTopology(pool, w, h)
		if err != nil {
			t.Fatalf("BuildTopology(%d, %d) error = %v", w, h, err)
		}

		if got, want := len(indices), 4*(w-1)*(h-1); got != want {
			t.Errorf("%dx%d: len(indices) = %d, want %d", w, h, got, want)
		}
		if got, want := len(uvs), w*h; got != want {
			t.Errorf("%dx%d: len(uvs) = %d, want %d", w, h, got, want)
		}
		for k, idx := range indices {
			if int(idx) >= w*h {
				t.Fatalf("%dx%d: indices[%d] = %d out of range", w, h, k, idx)
			}
		}
	}
}

func TestIndexFormula(t *testing.T) {
	pool := newTestPool(t)

	const w, h = 5, 4
	indices, _, err := BuildTopology(pool, w, h)
	if err != nil {
		t.Fatal(err)
	}

	for q := 0; q < (w-1)*(h-1); q++ {
		cx := q % (w - 1)
		cy := q / (w - 1)
		b := uint32(cx + cy*w)
		want := [4]uint32{b, b + 1, b + 1 + w, b + w}
		for c := range 4 {
			if got := indices[4*q+c]; got != want[c] {
				t.Errorf("quad %d corner %d = %d, want %d", q, c, got, want[c])
			}
		}
	}
}

func TestIndexFormulaSmallestGrid(t *testing.T) {
	pool := newTestPool(t)

	indices, _, err := BuildTopology(pool, 2, 2)
	if err != nil {
		t.Fatal(err)
	}
	want := []uint32{0, 1, 3, 2}
	for i := range want {
		if indices[i] != want[i] {
			t.Errorf("indices = %v, want %v", indices, want)
			break
		}
	}
}

func TestUVFormula(t *testing.T) {
	pool := newTestPool(t)

	const w, h = 8, 6
	_, uvs, err := BuildTopology(pool, w, h)
	if err != nil {
		t.Fatal(err)
	}

	for i, uv := range uvs {
		wantU := float32(i%w) / float32(w)
		wantV := float32(i/w) / float32(h)
		if uv.U != wantU || uv.V != wantV {
			t.Errorf("uvs[%d] = %+v, want (%v, %v)", i, uv, wantU, wantV)
		}
		if uv.U < 0 || uv.U > 1 || uv.V < 0 || uv.V > 1 {
			t.Errorf("uvs[%d] = %+v outside [0,1]", i, uv)
		}
	}
}

func TestBuildTopologyIdempotent(t *testing.T) {
	pool := newTestPool(t)

	i1, u1, err := BuildTopology(pool, 31, 17)
	if err != nil {
		t.Fatal(err)
	}
	i2, u2, err := BuildTopology(pool, 31, 17)
	if err != nil {
		t.Fatal(err)
	}

	if len(i1) != len(i2) || len(u1) != len(u2) {
		t.Fatal("lengths differ between identical builds")
	}
	for k := range i1 {
		if i1[k] != i2[k] {
			t.Fatalf("indices[%d] differ: %d vs %d", k, i1[k], i2[k])
		}
	}
	for k := range u1 {
		if u1[k] != u2[k] {
			t.Fatalf("uvs[%d] differ: %+v vs %+v", k, u1[k], u2[k])
		}
	}
}

func TestBuildTopologyInvalidDimensions(t *testing.T) {
	pool := newTestPool(t)

	tests := []struct {
		name string
		w, h int
	}{
		{"zero", 0, 0},
		{"width one", 1, 10},
		{"height one", 10, 1},
		{"negative", -3, 4},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := BuildTopology(pool, tt.w, tt.h)
			if !errors.Is(err, ErrInvalidDimensions) {
				t.Errorf("BuildTopology(%d, %d) error = %v, want ErrInvalidDimensions", tt.w, tt.h, err)
			}
		})
	}
}

func TestCheckTopology(t *testing.T) {
	if err := CheckTopology(make([]uint32, 36), make([]Vec2, 16), 4, 4); err != nil {
		t.Errorf("CheckTopology(4x4) error = %v", err)
	}
	if err := CheckTopology(make([]uint32, 35), make([]Vec2, 16), 4, 4); !errors.Is(err, ErrDimensionMismatch) {
		t.Errorf("short indices: error = %v, want ErrDimensionMismatch", err)
	}
	if err := CheckTopology(make([]uint32, 36), make([]Vec2, 15), 4, 4); !errors.Is(err, ErrDimensionMismatch) {
		t.Errorf("short uvs: error = %v, want ErrDimensionMismatch", err)
	}
}

func TestIndexCount(t *testing.T) {
	tests := []struct {
		w, h, want int
	}{
		{4, 4, 36},
		{8, 6, 140},
		{2, 2, 4},
		{1, 5, 0},
	}
	for _, tt := range tests {
		if got := IndexCount(tt.w, tt.h); got != tt.want {
			t.Errorf("IndexCount(%d, %d) = %d, want %d", tt.w, tt.h, got, tt.want)
		}
	}
}
