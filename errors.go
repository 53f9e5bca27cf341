package depthmesh

import (
	"errors"

	"github.com/gogpu/depthmesh/internal/grid"
)

var (
	// ErrInvalidDimensions is returned when a depth image is narrower or
	// shorter than 2 samples.
	ErrInvalidDimensions = grid.ErrInvalidDimensions

	// ErrDimensionMismatch is returned when a depth buffer holds fewer than
	// width*height samples.
	ErrDimensionMismatch = grid.ErrDimensionMismatch

	// ErrNilSource is returned by AdvanceFrame when Frame.Depth is nil.
	ErrNilSource = errors.New("depthmesh: frame has no depth source")

	// ErrClosed is returned by operations on a closed Mesher.
	ErrClosed = errors.New("depthmesh: mesher is closed")

	// ErrUnsupportedDevice is returned when a provider does not expose a
	// HAL device and queue.
	ErrUnsupportedDevice = errors.New("depthmesh: provider does not expose hal.Device and hal.Queue")
)
