package depthmesh

import (
	"math"

	"github.com/gogpu/depthmesh/internal/parallel"
)

// Extents is an observed or assumed depth range.
type Extents struct {
	Min, Max float32
}

// ComputeExtents returns the minimum and maximum of depth, skipping NaN.
// ok is false when depth holds no comparable sample.
func ComputeExtents(depth []float32) (e Extents, ok bool) {
	return reduceExtents(depth, 0, len(depth))
}

func reduceExtents(depth []float32, start, end int) (Extents, bool) {
	lo := float32(math.Inf(1))
	hi := float32(math.Inf(-1))
	ok := false
	for _, d := range depth[start:end] {
		if d != d {
			continue
		}
		lo = min(lo, d)
		hi = max(hi, d)
		ok = true
	}
	if !ok {
		return Extents{}, false
	}
	return Extents{Min: lo, Max: hi}, true
}

type partialExtents struct {
	e  Extents
	ok bool
}

// computeExtents is the parallel form of ComputeExtents: each batch reduces
// into its own slot, then the slots are merged.
func computeExtents(pool *parallel.WorkerPool, depth []float32, batch int) (Extents, bool) {
	if batch <= 0 {
		batch = parallel.DefaultBatch
	}
	n := len(depth)
	if n == 0 {
		return Extents{}, false
	}
	partials := make([]partialExtents, (n+batch-1)/batch)
	pool.For(parallel.Job{
		N:     n,
		Batch: batch,
		Run: func(start, end int) {
			e, ok := reduceExtents(depth, start, end)
			partials[start/batch] = partialExtents{e: e, ok: ok}
		},
	})

	var out Extents
	found := false
	for _, p := range partials {
		if !p.ok {
			continue
		}
		if !found {
			out, found = p.e, true
			continue
		}
		out.Min = min(out.Min, p.e.Min)
		out.Max = max(out.Max, p.e.Max)
	}
	return out, found
}
