// Package grid builds the vertex, index and UV buffers of a regular
// width×height lattice of quads.
//
// Every builder is expressed as a kernel over a half-open index range so it
// can be scheduled on a parallel.WorkerPool. Each output element depends only
// on its own index, so batches never contend.
package grid

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidDimensions is returned when width or height is below 2.
	ErrInvalidDimensions = errors.New("grid: width and height must be at least 2")

	// ErrDimensionMismatch is returned when a buffer is shorter than width*height.
	ErrDimensionMismatch = errors.New("grid: buffer length does not match grid dimensions")
)

// Vec2 is a texture coordinate.
type Vec2 struct {
	U, V float32
}

// Vec3 is a vertex position.
type Vec3 struct {
	X, Y, Z float32
}

// Validate reports whether a width×height grid has at least one quad.
func Validate(width, height int) error {
	if width < 2 || height < 2 {
		return fmt.Errorf("%w: got %dx%d", ErrInvalidDimensions, width, height)
	}
	return nil
}

// VertexCount returns width*height.
func VertexCount(width, height int) int {
	return width * height
}

// IndexCount returns the number of quad indices, 4*(width-1)*(height-1).
func IndexCount(width, height int) int {
	if width < 2 || height < 2 {
		return 0
	}
	return 4 * (width - 1) * (height - 1)
}
