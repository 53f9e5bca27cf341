// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package depthmesh

import (
	"fmt"

	"github.com/gogpu/naga"
	"github.com/gogpu/wgpu/hal"
)

// displacementShaderWGSL displaces a flat grid by a live depth texture and
// shades it with either the color image or a depth visualization.
//
// Bindings, group 0: uniforms (ShaderUniforms.Bytes layout), depth texture
// (R32Float, read with textureLoad), color texture, color sampler.
// Group 1 binding 0 holds the host camera's view-projection matrix.
//
// With swap_channels set, grid vertex (ix, iy) of a w×h grid reads flat
// sample ((h-1)-iy) + ix*h, the same sample the CPU path takes with remap
// enabled.
const displacementShaderWGSL = `
struct Uniforms {
    min_depth: f32,
    max_depth: f32,
    depth_multiplier: f32,
    log_norm: f32,
    color_is_depth: u32,
    displace: u32,
    swap_channels: u32,
    pad: u32,
}

struct Camera {
    view_proj: mat4x4<f32>,
}

@group(0) @binding(0) var<uniform> params: Uniforms;
@group(0) @binding(1) var depth_tex: texture_2d<f32>;
@group(0) @binding(2) var color_tex: texture_2d<f32>;
@group(0) @binding(3) var color_sampler: sampler;
@group(1) @binding(0) var<uniform> camera: Camera;

struct VertexInput {
    @location(0) position: vec3<f32>,
    @location(1) uv: vec2<f32>,
}

struct VertexOutput {
    @builtin(position) clip: vec4<f32>,
    @location(0) uv: vec2<f32>,
    @location(1) depth: f32,
}

fn depth_texel(uv: vec2<f32>) -> vec2<i32> {
    let dims = vec2<i32>(textureDimensions(depth_tex));
    let cell = vec2<i32>(round(uv * vec2<f32>(dims)));
    let s = (dims.y - 1 - cell.y) + cell.x * dims.y;
    let swapped = vec2<i32>(s % dims.x, s / dims.x);
    return select(cell, swapped, params.swap_channels != 0u);
}

fn visualize(d: f32) -> f32 {
    let span = max(params.max_depth - params.min_depth, 0.000001);
    let v = saturate((d - params.min_depth) / span);
    let f = params.log_norm;
    let curved = log2(1.0 + v * (exp2(f) - 1.0)) / max(f, 0.000001);
    return select(v, curved, f > 0.0);
}

@vertex
fn vs_main(input: VertexInput) -> VertexOutput {
    var out: VertexOutput;
    let d = textureLoad(depth_tex, depth_texel(input.uv), 0).r;
    let z = select(input.position.z, d * params.depth_multiplier, params.displace != 0u);
    out.clip = camera.view_proj * vec4<f32>(input.position.xy, z, 1.0);
    out.uv = input.uv;
    out.depth = d;
    return out;
}

@fragment
fn fs_main(input: VertexOutput) -> @location(0) vec4<f32> {
    let color = textureSample(color_tex, color_sampler, input.uv);
    let v = visualize(input.depth);
    return select(color, vec4<f32>(v, v, v, 1.0), params.color_is_depth != 0u);
}
`

// DisplacementShaderSource returns the WGSL source of the displacement shader.
func DisplacementShaderSource() string {
	return displacementShaderWGSL
}

// CompileDisplacementShader compiles the displacement shader to SPIR-V words.
func CompileDisplacementShader() ([]uint32, error) {
	spirvBytes, err := naga.Compile(displacementShaderWGSL)
	if err != nil {
		return nil, fmt.Errorf("depthmesh: compile displacement shader: %w", err)
	}

	// SPIR-V is little-endian 32-bit words
	code := make([]uint32, len(spirvBytes)/4)
	for i := range code {
		code[i] = uint32(spirvBytes[i*4]) |
			uint32(spirvBytes[i*4+1])<<8 |
			uint32(spirvBytes[i*4+2])<<16 |
			uint32(spirvBytes[i*4+3])<<24
	}
	return code, nil
}

// CreateDisplacementShaderModule compiles the shader and creates a module on device.
func CreateDisplacementShaderModule(device hal.Device) (hal.ShaderModule, error) {
	code, err := CompileDisplacementShader()
	if err != nil {
		return nil, err
	}
	module, err := device.CreateShaderModule(&hal.ShaderModuleDescriptor{
		Label:  "depthmesh_displacement",
		Source: hal.ShaderSource{SPIRV: code},
	})
	if err != nil {
		return nil, fmt.Errorf("depthmesh: create shader module: %w", err)
	}
	return module, nil
}
