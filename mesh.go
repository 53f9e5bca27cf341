package depthmesh

import (
	"fmt"
	"math"

	"github.com/gogpu/depthmesh/internal/grid"
)

// Vec2 is a texture coordinate.
type Vec2 = grid.Vec2

// Vec3 is a vertex position.
type Vec3 = grid.Vec3

// Bounds is an axis-aligned bounding box.
type Bounds struct {
	Min, Max Vec3
}

// Center returns the midpoint of the box.
func (b Bounds) Center() Vec3 {
	return Vec3{
		X: (b.Min.X + b.Max.X) / 2,
		Y: (b.Min.Y + b.Max.Y) / 2,
		Z: (b.Min.Z + b.Max.Z) / 2,
	}
}

// Size returns the extent of the box along each axis.
func (b Bounds) Size() Vec3 {
	return Vec3{X: b.Max.X - b.Min.X, Y: b.Max.Y - b.Min.Y, Z: b.Max.Z - b.Min.Z}
}

// Mesh is a quad mesh over a width×height vertex grid.
//
// Mesh is not safe for concurrent use. The Mesher owns one and mutates it
// only inside AdvanceFrame.
type Mesh struct {
	width, height int

	vertices []Vec3
	indices  []uint32
	uvs      []Vec2
	bounds   Bounds

	topologyVersion uint64
	vertexVersion   uint64
}

// SetTopology replaces the whole mesh: dimensions, vertices, quad indices and UVs.
func (m *Mesh) SetTopology(width, height int, vertices []Vec3, indices []uint32, uvs []Vec2) error {
	if err := grid.CheckTopology(indices, uvs, width, height); err != nil {
		return err
	}
	if len(vertices) != grid.VertexCount(width, height) {
		return fmt.Errorf("%w: %d vertices for %dx%d", ErrDimensionMismatch, len(vertices), width, height)
	}

	m.width, m.height = width, height
	m.vertices = vertices
	m.indices = indices
	m.uvs = uvs
	m.topologyVersion++
	m.vertexVersion++
	return nil
}

// SetVertices replaces vertex positions, keeping indices and UVs.
func (m *Mesh) SetVertices(vertices []Vec3) error {
	if len(vertices) != grid.VertexCount(m.width, m.height) {
		return fmt.Errorf("%w: %d vertices for %dx%d", ErrDimensionMismatch, len(vertices), m.width, m.height)
	}
	m.vertices = vertices
	m.vertexVersion++
	return nil
}

// RecalculateBounds recomputes the bounding box from the vertices.
func (m *Mesh) RecalculateBounds() {
	if len(m.vertices) == 0 {
		m.bounds = Bounds{}
		return
	}
	lo := Vec3{X: math.MaxFloat32, Y: math.MaxFloat32, Z: math.MaxFloat32}
	hi := Vec3{X: -math.MaxFloat32, Y: -math.MaxFloat32, Z: -math.MaxFloat32}
	for _, v := range m.vertices {
		lo.X, hi.X = min(lo.X, v.X), max(hi.X, v.X)
		lo.Y, hi.Y = min(lo.Y, v.Y), max(hi.Y, v.Y)
		lo.Z, hi.Z = min(lo.Z, v.Z), max(hi.Z, v.Z)
	}
	m.bounds = Bounds{Min: lo, Max: hi}
}

// Dimensions returns the grid size in vertices.
func (m *Mesh) Dimensions() (width, height int) { return m.width, m.height }

// Vertices returns the vertex positions.
func (m *Mesh) Vertices() []Vec3 { return m.vertices }

// Indices returns the quad indices, four per quad.
func (m *Mesh) Indices() []uint32 { return m.indices }

// UVs returns the texture coordinates.
func (m *Mesh) UVs() []Vec2 { return m.uvs }

// Bounds returns the box computed by the last RecalculateBounds.
func (m *Mesh) Bounds() Bounds { return m.bounds }

// TopologyVersion increments on every SetTopology.
func (m *Mesh) TopologyVersion() uint64 { return m.topologyVersion }

// VertexVersion increments on every vertex update.
func (m *Mesh) VertexVersion() uint64 { return m.vertexVersion }

// Triangles splits quads into triangles (0,1,2) and (0,2,3).
func Triangles(quads []uint32) []uint32 {
	out := make([]uint32, 0, len(quads)/4*6)
	for q := 0; q+3 < len(quads); q += 4 {
		a, b, c, d := quads[q], quads[q+1], quads[q+2], quads[q+3]
		out = append(out, a, b, c, a, c, d)
	}
	return out
}
