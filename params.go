package depthmesh

import (
	"fmt"
	"math"
)

// Method selects where vertex displacement happens.
type Method int

const (
	// MethodMesh reads the depth back and displaces vertices on the CPU.
	MethodMesh Method = iota

	// MethodShader keeps a flat grid; a vertex shader displaces it by
	// sampling the depth texture.
	MethodShader
)

// String returns the string representation of the method.
func (m Method) String() string {
	switch m {
	case MethodMesh:
		return "mesh"
	case MethodShader:
		return "shader"
	default:
		return fmt.Sprintf("Method(%d)", int(m))
	}
}

// ParseMethod converts "mesh" or "shader" to a Method.
func ParseMethod(s string) (Method, error) {
	switch s {
	case "mesh", "":
		return MethodMesh, nil
	case "shader":
		return MethodShader, nil
	default:
		return MethodMesh, fmt.Errorf("depthmesh: unknown method %q", s)
	}
}

// Parameter ranges.
const (
	MaxDepthMultiplier  = 1
	MaxImageScale       = 1
	MaxDepthExtent      = 10000
	MaxLogNormalization = 2
)

// Parameters is the externally mutable configuration read on every frame.
type Parameters struct {
	// DepthMultiplier scales depth samples into Z. Range [0, 1].
	DepthMultiplier float32

	// ImageScale is the X spacing between vertices. Range [0, 1].
	ImageScale float32

	// MinDepth and MaxDepth bound the visualized depth. Range [0, 10000].
	MinDepth float32
	MaxDepth float32

	// LogNormalization is the log-curve factor of the visualization;
	// 0 is linear. Range [0, 2].
	LogNormalization float32

	Method Method

	// UseColor shows the frame's color image instead of the depth
	// visualization when one is supplied.
	UseColor bool
}

// DefaultParameters returns the default parameter set.
func DefaultParameters() Parameters {
	return Parameters{
		DepthMultiplier:  0.01,
		ImageScale:       0.1,
		MinDepth:         0,
		MaxDepth:         1000,
		LogNormalization: 1,
		Method:           MethodMesh,
	}
}

// Clamp returns p with every field forced into its range.
// NaN becomes the lower bound.
func (p Parameters) Clamp() Parameters {
	p.DepthMultiplier = clampf(p.DepthMultiplier, 0, MaxDepthMultiplier)
	p.ImageScale = clampf(p.ImageScale, 0, MaxImageScale)
	p.MinDepth = clampf(p.MinDepth, 0, MaxDepthExtent)
	p.MaxDepth = clampf(p.MaxDepth, 0, MaxDepthExtent)
	p.LogNormalization = clampf(p.LogNormalization, 0, MaxLogNormalization)
	if p.Method != MethodShader {
		p.Method = MethodMesh
	}
	return p
}

func clampf(v, lo, hi float32) float32 {
	if v != v || v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func finite(v float32) bool {
	return !math.IsNaN(float64(v)) && !math.IsInf(float64(v), 0)
}
