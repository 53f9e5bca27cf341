package depthmesh

import (
	"encoding/binary"
	"math"
	"sync"
)

// ShaderUniforms is the parameter block consumed by the displacement shader.
type ShaderUniforms struct {
	MinDepth         float32
	MaxDepth         float32
	DepthMultiplier  float32
	LogNormalization float32

	// ColorIsDepth selects the depth visualization over the color texture.
	ColorIsDepth bool

	// Displace enables per-vertex displacement in the shader.
	Displace bool

	// SwapChannels samples the depth texture transposed with X flipped.
	SwapChannels bool
}

// UniformsSize is the byte size of the encoded uniform block.
const UniformsSize = 32

// Bytes encodes u in the std140-compatible layout of the shader's
// Uniforms struct: four f32, three u32 flags, one pad word.
func (u ShaderUniforms) Bytes() []byte {
	b := make([]byte, UniformsSize)
	le := binary.LittleEndian
	le.PutUint32(b[0:], math.Float32bits(u.MinDepth))
	le.PutUint32(b[4:], math.Float32bits(u.MaxDepth))
	le.PutUint32(b[8:], math.Float32bits(u.DepthMultiplier))
	le.PutUint32(b[12:], math.Float32bits(u.LogNormalization))
	le.PutUint32(b[16:], boolBits(u.ColorIsDepth))
	le.PutUint32(b[20:], boolBits(u.Displace))
	le.PutUint32(b[24:], boolBits(u.SwapChannels))
	return b
}

func boolBits(v bool) uint32 {
	if v {
		return 1
	}
	return 0
}

// ModeController holds the active displacement method and the values the
// shader uniforms are derived from. It is safe for concurrent use; the
// Mesher reads it once per frame.
type ModeController struct {
	mu sync.Mutex

	params         Parameters
	ratio          float32
	remap          bool
	colorAvailable bool
}

// NewModeController returns a controller with clamped params, ratio 1 and
// the given coordinate remap setting.
func NewModeController(params Parameters, remap bool) *ModeController {
	return &ModeController{params: params.Clamp(), ratio: 1, remap: remap}
}

// Parameters returns the current parameters.
func (c *ModeController) Parameters() Parameters {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.params
}

// SetParameters replaces the parameters, clamping each to its range.
func (c *ModeController) SetParameters(p Parameters) {
	c.mu.Lock()
	c.params = p.Clamp()
	c.mu.Unlock()
}

// Method returns the active displacement method.
func (c *ModeController) Method() Method {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.params.Method
}

// SetMethod switches the displacement method.
func (c *ModeController) SetMethod(m Method) {
	c.mu.Lock()
	c.params.Method = m
	c.params = c.params.Clamp()
	c.mu.Unlock()
}

// Ratio returns the height/width aspect used for Y spacing.
func (c *ModeController) Ratio() float32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ratio
}

// SetRatio sets the height/width aspect of the source footage.
// Non-positive and non-finite values are ignored.
func (c *ModeController) SetRatio(r float32) {
	if !finite(r) || r <= 0 {
		return
	}
	c.mu.Lock()
	c.ratio = r
	c.mu.Unlock()
}

// SetImageSize sets the ratio from the source footage size.
func (c *ModeController) SetImageSize(width, height int) {
	if width <= 0 || height <= 0 {
		return
	}
	c.SetRatio(float32(height) / float32(width))
}

// SetDepthExtents sets the visualized depth range.
func (c *ModeController) SetDepthExtents(minDepth, maxDepth float32) {
	c.mu.Lock()
	c.params.MinDepth = clampf(minDepth, 0, MaxDepthExtent)
	c.params.MaxDepth = clampf(maxDepth, 0, MaxDepthExtent)
	c.mu.Unlock()
}

// SetColorAvailable records whether the current frame carries a color image.
func (c *ModeController) SetColorAvailable(ok bool) {
	c.mu.Lock()
	c.colorAvailable = ok
	c.mu.Unlock()
}

// Remap reports whether depth is sampled transposed with X flipped.
func (c *ModeController) Remap() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.remap
}

// Uniforms derives the shader uniform set from the current state.
func (c *ModeController) Uniforms() ShaderUniforms {
	c.mu.Lock()
	defer c.mu.Unlock()
	return ShaderUniforms{
		MinDepth:         c.params.MinDepth,
		MaxDepth:         c.params.MaxDepth,
		DepthMultiplier:  c.params.DepthMultiplier,
		LogNormalization: c.params.LogNormalization,
		ColorIsDepth:     !(c.colorAvailable && c.params.UseColor),
		Displace:         c.params.Method == MethodShader,
		SwapChannels:     c.remap,
	}
}
