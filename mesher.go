// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package depthmesh

import (
	"context"
	"fmt"
	"image"
	"sync"

	"github.com/gogpu/gpucontext"
	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/depthmesh/halctx"
	"github.com/gogpu/depthmesh/internal/grid"
	"github.com/gogpu/depthmesh/internal/parallel"
	"github.com/gogpu/depthmesh/internal/readback"
)

// ratioEpsilon is the aspect change that forces a flat-grid rebuild under
// MethodShader.
const ratioEpsilon = 0.001

// Frame is the input of one AdvanceFrame call.
type Frame struct {
	// Depth is the current depth image. Required.
	Depth DepthSource

	// Color is an optional color image of the same scene. When set, its
	// aspect drives the grid ratio.
	Color image.Image

	// Extents optionally overrides the visualized depth range.
	Extents *Extents
}

// Mesher turns a stream of GPU depth images into a displaced grid mesh.
//
// A Mesher owns a worker pool, the depth readback channel, the mesh and a
// GPU uniform buffer. AdvanceFrame is serialized; the ModeController may be
// changed from any goroutine and takes effect on the next frame.
type Mesher struct {
	mu sync.Mutex

	device hal.Device
	queue  hal.Queue

	opts     mesherOptions
	pool     *parallel.WorkerPool
	readback *readback.Readback
	ctrl     *ModeController
	uniforms hal.Buffer

	mesh Mesh

	// Inputs of the last rebuild.
	builtWidth  int
	builtHeight int
	builtMethod Method
	builtRatio  float32
	built       bool

	frame  uint64
	last   MeshSnapshot
	closed bool
}

// packedCopier is implemented by providers whose texture-to-buffer copies
// ignore BytesPerRow.
type packedCopier interface {
	PackedCopies() bool
}

// NewMesher creates a Mesher on the provider's device.
func NewMesher(provider gpucontext.DeviceProvider, opts ...MesherOption) (*Mesher, error) {
	device, queue, err := halctx.Resolve(provider)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnsupportedDevice, err)
	}

	o := defaultMesherOptions()
	for _, opt := range opts {
		opt(&o)
	}

	uniforms, err := device.CreateBuffer(&hal.BufferDescriptor{
		Label: "depthmesh_uniforms",
		Size:  UniformsSize,
		Usage: gputypes.BufferUsageUniform | gputypes.BufferUsageCopyDst,
	})
	if err != nil {
		return nil, fmt.Errorf("create uniform buffer: %w", err)
	}

	layout := readback.RowsAligned
	if pc, ok := provider.(packedCopier); ok && pc.PackedCopies() {
		layout = readback.RowsPacked
	}

	m := &Mesher{
		device:   device,
		queue:    queue,
		opts:     o,
		pool:     parallel.NewWorkerPool(o.workers),
		readback: readback.New(device, queue, o.policy, readback.WithRowLayout(layout)),
		ctrl:     NewModeController(o.params, o.remap),
		uniforms: uniforms,
	}

	Logger().Info("depthmesh: mesher created",
		"workers", m.pool.Workers(),
		"readback", o.policy.String(),
		"remap", o.remap,
		"rows", layout.String(),
		"adapter", provider.AdapterInfo().Name)
	return m, nil
}

// Controller returns the mode controller.
func (m *Mesher) Controller() *ModeController { return m.ctrl }

// UniformBuffer returns the GPU buffer holding ShaderUniforms.Bytes for the
// displacement shader's group 0 binding 0.
func (m *Mesher) UniformBuffer() hal.Buffer {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.uniforms
}

// Snapshot returns the result of the last successful frame.
func (m *Mesher) Snapshot() MeshSnapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.last
}

// AdvanceFrame consumes one depth image and returns the mesh to render.
//
// On error the previous snapshot is returned unchanged. A zero-area depth
// image is a no-op with a nil error.
func (m *Mesher) AdvanceFrame(ctx context.Context, f Frame) (MeshSnapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return m.last, ErrClosed
	}
	if f.Depth == nil {
		return m.last, ErrNilSource
	}

	w32, h32 := f.Depth.Size()
	width, height := int(w32), int(h32)
	if width == 0 || height == 0 {
		Logger().Debug("depthmesh: zero-area depth image, frame skipped")
		snap := m.last
		snap.Stats = Stats{Skipped: true}
		return snap, nil
	}
	if err := grid.Validate(width, height); err != nil {
		Logger().Warn("depthmesh: frame skipped", "width", width, "height", height, "err", err)
		return m.last, err
	}

	if f.Extents != nil {
		m.ctrl.SetDepthExtents(f.Extents.Min, f.Extents.Max)
	}
	if f.Color != nil {
		b := f.Color.Bounds()
		m.ctrl.SetImageSize(b.Dx(), b.Dy())
	}
	m.ctrl.SetColorAvailable(f.Color != nil)

	params := m.ctrl.Parameters()
	ratio := m.ctrl.Ratio()
	remap := m.ctrl.Remap()

	var stats Stats
	var depth []float32
	if params.Method == MethodMesh || m.opts.extents {
		stats.DepthRead = true
		view, err := m.readback.Read(ctx, f.Depth.Texture(), w32, h32)
		if err != nil {
			Logger().Warn("depthmesh: depth readback failed", "err", err)
			return m.last, fmt.Errorf("depth readback: %w", err)
		}
		if err := grid.CheckDepth(view, width, height); err != nil {
			return m.last, err
		}
		depth = view
	}

	var extents Extents
	hasExtents := false
	if m.opts.extents && depth != nil {
		extents, hasExtents = computeExtents(m.pool, depth[:width*height], m.opts.vertexBatch)
		if hasExtents && m.opts.autoExtents {
			m.ctrl.SetDepthExtents(extents.Min, extents.Max)
		}
	}

	var err error
	switch params.Method {
	case MethodShader:
		err = m.buildFlat(width, height, ratio, &stats)
	default:
		err = m.buildDisplaced(depth, width, height, ratio, remap, &stats)
	}
	if err != nil {
		return m.last, err
	}

	m.builtWidth, m.builtHeight = width, height
	m.builtMethod = params.Method
	m.builtRatio = ratio
	m.built = true

	uniforms := m.ctrl.Uniforms()
	if err := m.queue.WriteBuffer(m.uniforms, 0, uniforms.Bytes()); err != nil {
		Logger().Warn("depthmesh: uniform upload failed", "err", err)
	}

	var color *image.RGBA
	if f.Color != nil && params.UseColor {
		color = resampleColor(f.Color, width, height)
	}

	m.frame++
	m.last = MeshSnapshot{
		Width:           width,
		Height:          height,
		Method:          params.Method,
		State:           stateFor(params.Method),
		Vertices:        m.mesh.Vertices(),
		Indices:         m.mesh.Indices(),
		UVs:             m.mesh.UVs(),
		Bounds:          m.mesh.Bounds(),
		Uniforms:        uniforms,
		Extents:         extents,
		HasExtents:      hasExtents,
		Color:           color,
		Frame:           m.frame,
		TopologyVersion: m.mesh.TopologyVersion(),
		VertexVersion:   m.mesh.VertexVersion(),
		DepthDigest:     m.readback.Digest(),
		Stats:           stats,
	}
	return m.last, nil
}

// buildDisplaced runs the vertex job every frame and the topology jobs when
// the grid size changed, then commits the results to the mesh.
func (m *Mesher) buildDisplaced(depth []float32, width, height int, ratio float32, remap bool, stats *Stats) error {
	d := grid.Displacement{
		Width:           width,
		Height:          height,
		ImageScale:      m.ctrl.Parameters().ImageScale,
		DepthMultiplier: m.ctrl.Parameters().DepthMultiplier,
		Ratio:           ratio,
		Remap:           remap,
	}

	w, h := m.mesh.Dimensions()
	resized := !m.built || w != width || h != height

	n := grid.VertexCount(width, height)
	vertices := m.mesh.Vertices()
	if resized || len(vertices) != n {
		vertices = make([]Vec3, n)
	}

	handles := []*parallel.Handle{
		m.pool.Schedule(grid.VertexJob(vertices, depth, d, m.opts.vertexBatch)),
	}

	var indices []uint32
	var uvs []Vec2
	if resized {
		indices = make([]uint32, grid.IndexCount(width, height))
		uvs = make([]Vec2, n)
		handles = append(handles,
			m.pool.Schedule(grid.IndexJob(indices, width, m.opts.topologyBatch)),
			m.pool.Schedule(grid.UVJob(uvs, width, height, m.opts.topologyBatch)),
		)
	}
	parallel.CompleteAll(handles...)

	var err error
	if resized {
		err = m.mesh.SetTopology(width, height, vertices, indices, uvs)
		Logger().Debug("depthmesh: topology rebuilt", "width", width, "height", height)
	} else {
		err = m.mesh.SetVertices(vertices)
	}
	if err != nil {
		return err
	}
	m.mesh.RecalculateBounds()

	stats.TopologyRebuilt = resized
	stats.VerticesRebuilt = true
	return nil
}

// buildFlat rebuilds a flat grid and its topology only when the size, method
// or ratio changed.
func (m *Mesher) buildFlat(width, height int, ratio float32, stats *Stats) error {
	if m.built &&
		m.builtMethod == MethodShader &&
		m.builtWidth == width && m.builtHeight == height &&
		abs32(ratio-m.builtRatio) <= ratioEpsilon {
		return nil
	}

	n := grid.VertexCount(width, height)
	vertices := make([]Vec3, n)
	indices := make([]uint32, grid.IndexCount(width, height))
	uvs := make([]Vec2, n)
	flat := grid.Displacement{
		Width:      width,
		Height:     height,
		ImageScale: m.ctrl.Parameters().ImageScale,
		Ratio:      ratio,
	}

	parallel.CompleteAll(
		m.pool.Schedule(grid.VertexJob(vertices, make([]float32, n), flat, m.opts.vertexBatch)),
		m.pool.Schedule(grid.IndexJob(indices, width, m.opts.topologyBatch)),
		m.pool.Schedule(grid.UVJob(uvs, width, height, m.opts.topologyBatch)),
	)

	if err := m.mesh.SetTopology(width, height, vertices, indices, uvs); err != nil {
		return err
	}
	m.mesh.RecalculateBounds()
	stats.TopologyRebuilt = true
	stats.VerticesRebuilt = true
	Logger().Debug("depthmesh: flat grid rebuilt", "width", width, "height", height, "ratio", ratio)
	return nil
}

// Close releases GPU resources and stops the worker pool. It is safe to
// call more than once.
func (m *Mesher) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return
	}
	m.closed = true

	m.readback.Close()
	if m.uniforms != nil {
		m.device.DestroyBuffer(m.uniforms)
		m.uniforms = nil
	}
	m.pool.Close()
	m.last = MeshSnapshot{}
	Logger().Info("depthmesh: mesher closed", "frames", m.frame)
}

func abs32(v float32) float32 {
	if v < 0 {
		return -v
	}
	return v
}
