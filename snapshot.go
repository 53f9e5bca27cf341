package depthmesh

import (
	"fmt"
	"image"
)

// State is the displacement state of the mesh.
type State int

const (
	// StateCPUDisplaced: vertices carry the depth.
	StateCPUDisplaced State = iota
	// StateGPUDisplaced: vertices are flat; the shader displaces them.
	StateGPUDisplaced
)

// String returns the string representation of the state.
func (s State) String() string {
	switch s {
	case StateCPUDisplaced:
		return "CPU_DISPLACED"
	case StateGPUDisplaced:
		return "GPU_DISPLACED"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

func stateFor(m Method) State {
	if m == MethodShader {
		return StateGPUDisplaced
	}
	return StateCPUDisplaced
}

// Stats describes the work one AdvanceFrame call did.
type Stats struct {
	// Skipped is set when the frame changed nothing.
	Skipped bool

	TopologyRebuilt bool
	VerticesRebuilt bool

	// DepthRead is set when a readback was issued or attempted.
	DepthRead bool
}

// MeshSnapshot is the renderable result of a frame.
//
// Slices alias the Mesher's buffers and stay valid until the next
// AdvanceFrame or Close.
type MeshSnapshot struct {
	Width, Height int

	Method Method
	State  State

	Vertices []Vec3
	Indices  []uint32
	UVs      []Vec2
	Bounds   Bounds

	Uniforms ShaderUniforms

	// Extents is the observed depth range when HasExtents is set.
	Extents    Extents
	HasExtents bool

	// Color is the frame's color image at grid resolution, or nil.
	Color *image.RGBA

	Frame           uint64
	TopologyVersion uint64
	VertexVersion   uint64

	// DepthDigest is the hash of the depth image the vertices were built
	// from; 0 when no readback has landed.
	DepthDigest uint64

	Stats Stats
}

// Empty reports whether the snapshot carries no mesh.
func (s MeshSnapshot) Empty() bool {
	return s.Width == 0 || s.Height == 0
}
