package grid

import (
	"fmt"

	"github.com/gogpu/depthmesh/internal/parallel"
)

// IndexKernel fills dst with quad corners for a grid of the given width.
//
// Element k of dst is corner k%4 of quad k/4. With cx = q%(width-1),
// cy = q/(width-1) and base b = cx + cy*width the corners are
// b, b+1, b+1+width, b+width (top-left, top-right, bottom-right, bottom-left).
func IndexKernel(dst []uint32, width int) func(start, end int) {
	stride := width - 1
	return func(start, end int) {
		for k := start; k < end; k++ {
			q := k >> 2
			b := uint32(q%stride + (q/stride)*width)
			switch k & 3 {
			case 0:
				dst[k] = b
			case 1:
				dst[k] = b + 1
			case 2:
				dst[k] = b + 1 + uint32(width)
			case 3:
				dst[k] = b + uint32(width)
			}
		}
	}
}

// UVKernel fills dst with normalized texture coordinates
// (vx/width, vy/height) for vertex i = vx + vy*width.
func UVKernel(dst []Vec2, width, height int) func(start, end int) {
	fw, fh := float32(width), float32(height)
	return func(start, end int) {
		for i := start; i < end; i++ {
			dst[i] = Vec2{
				U: float32(i%width) / fw,
				V: float32(i/width) / fh,
			}
		}
	}
}

// IndexJob wraps IndexKernel as a parallel.Job over len(dst) elements.
func IndexJob(dst []uint32, width, batch int) parallel.Job {
	return parallel.Job{N: len(dst), Batch: batch, Run: IndexKernel(dst, width)}
}

// UVJob wraps UVKernel as a parallel.Job over len(dst) elements.
func UVJob(dst []Vec2, width, height, batch int) parallel.Job {
	return parallel.Job{N: len(dst), Batch: batch, Run: UVKernel(dst, width, height)}
}

// CheckTopology verifies that indices and uvs are sized for a width×height grid.
func CheckTopology(indices []uint32, uvs []Vec2, width, height int) error {
	if err := Validate(width, height); err != nil {
		return err
	}
	if len(indices) != IndexCount(width, height) {
		return fmt.Errorf("%w: %d indices for %dx%d", ErrDimensionMismatch, len(indices), width, height)
	}
	if len(uvs) != VertexCount(width, height) {
		return fmt.Errorf("%w: %d uvs for %dx%d", ErrDimensionMismatch, len(uvs), width, height)
	}
	return nil
}

// BuildTopology allocates and fills the index and UV buffers of a
// width×height grid, running both jobs concurrently on pool.
func BuildTopology(pool *parallel.WorkerPool, width, height int) ([]uint32, []Vec2, error) {
	if err := Validate(width, height); err != nil {
		return nil, nil, err
	}

	indices := make([]uint32, IndexCount(width, height))
	uvs := make([]Vec2, VertexCount(width, height))

	parallel.CompleteAll(
		pool.Schedule(IndexJob(indices, width, 0)),
		pool.Schedule(UVJob(uvs, width, height, 0)),
	)
	return indices, uvs, nil
}
