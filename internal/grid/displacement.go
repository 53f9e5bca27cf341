package grid

import (
	"fmt"

	"github.com/gogpu/depthmesh/internal/parallel"
)

// Displacement holds the inputs of the per-vertex position formula.
type Displacement struct {
	// Width and Height are the grid dimensions in vertices.
	Width, Height int

	// ImageScale is the spacing between neighbouring vertices along X.
	ImageScale float32

	// DepthMultiplier scales each depth sample into Z.
	DepthMultiplier float32

	// Ratio is the height/width aspect of the source footage; Y spacing is
	// ImageScale*Ratio.
	Ratio float32

	// Remap samples a depth buffer that was emitted transposed with the X
	// axis flipped.
	Remap bool
}

// SampleIndex returns the depth buffer index sampled by vertex i.
//
// Without remap it is i. With remap the buffer is treated as a height-wide,
// width-tall image that is transposed and X-flipped relative to the grid:
// vertex (ix, iy) reads column (height-1)-iy of row ix.
func SampleIndex(i, width, height int, remap bool) int {
	if !remap {
		return i
	}
	ix := i % width
	iy := i / width
	return ((height - 1) - iy) + ix*height
}

// CheckDepth verifies that depth holds at least width*height samples.
func CheckDepth(depth []float32, width, height int) error {
	if len(depth) < width*height {
		return fmt.Errorf("%w: %d depth samples for %dx%d grid",
			ErrDimensionMismatch, len(depth), width, height)
	}
	return nil
}

// VertexKernel fills dst with (ix*s, iy*s*r, depth*m) for each vertex.
// depth must hold at least Width*Height samples; see CheckDepth.
func VertexKernel(dst []Vec3, depth []float32, d Displacement) func(start, end int) {
	sx := d.ImageScale
	sy := d.ImageScale * d.Ratio
	m := d.DepthMultiplier
	w, h := d.Width, d.Height
	return func(start, end int) {
		for i := start; i < end; i++ {
			ix := i % w
			iy := i / w
			dst[i] = Vec3{
				X: float32(ix) * sx,
				Y: float32(iy) * sy,
				Z: depth[SampleIndex(i, w, h, d.Remap)] * m,
			}
		}
	}
}

// VertexJob wraps VertexKernel as a parallel.Job over len(dst) elements.
func VertexJob(dst []Vec3, depth []float32, d Displacement, batch int) parallel.Job {
	return parallel.Job{N: len(dst), Batch: batch, Run: VertexKernel(dst, depth, d)}
}

// BuildVertices allocates and fills a vertex buffer on pool.
// A nil depth slice builds a flat grid at z=0.
func BuildVertices(pool *parallel.WorkerPool, depth []float32, d Displacement) ([]Vec3, error) {
	if err := Validate(d.Width, d.Height); err != nil {
		return nil, err
	}
	if depth == nil {
		depth = make([]float32, VertexCount(d.Width, d.Height))
	}
	if err := CheckDepth(depth, d.Width, d.Height); err != nil {
		return nil, err
	}

	vertices := make([]Vec3, VertexCount(d.Width, d.Height))
	pool.For(VertexJob(vertices, depth, d, 0))
	return vertices, nil
}
