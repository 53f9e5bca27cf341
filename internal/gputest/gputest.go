// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package gputest provides an in-memory HAL device for tests.
//
// It wraps the noop backend with textures that store their contents,
// texture-to-buffer copies that honor BytesPerRow, and a queue whose
// completion can be held back to simulate GPU latency.
package gputest

import (
	"encoding/binary"
	"math"
	"sync"
	"testing"

	"github.com/gogpu/gpucontext"
	"github.com/gogpu/wgpu/hal"
	"github.com/gogpu/wgpu/hal/noop"

	"github.com/gogpu/depthmesh/halctx"
)

const bytesPerTexel = 4

// Texture is a texture whose texels live in host memory.
type Texture struct {
	noop.Texture

	mu     sync.Mutex
	width  uint32
	height uint32
	data   []byte
}

// Size returns the texture dimensions.
func (t *Texture) Size() (width, height uint32) {
	return t.width, t.height
}

func (t *Texture) snapshot() []byte {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]byte, len(t.data))
	copy(out, t.data)
	return out
}

// Device is a hal.Device that tracks live buffers and textures.
type Device struct {
	hal.Device

	mu        sync.Mutex
	buffers   map[hal.Buffer]struct{}
	textures  map[*Texture]struct{}
	beginErr  error
	discarded int
}

// CreateBuffer creates a noop buffer and records it as live.
func (d *Device) CreateBuffer(desc *hal.BufferDescriptor) (hal.Buffer, error) {
	buf, err := d.Device.CreateBuffer(desc)
	if err != nil {
		return nil, err
	}
	d.mu.Lock()
	d.buffers[buf] = struct{}{}
	d.mu.Unlock()
	return buf, nil
}

// DestroyBuffer forgets the buffer.
func (d *Device) DestroyBuffer(buf hal.Buffer) {
	d.mu.Lock()
	delete(d.buffers, buf)
	d.mu.Unlock()
	d.Device.DestroyBuffer(buf)
}

// CreateTexture allocates host storage of 4 bytes per texel.
func (d *Device) CreateTexture(desc *hal.TextureDescriptor) (hal.Texture, error) {
	if _, err := d.Device.CreateTexture(desc); err != nil {
		return nil, err
	}
	tex := &Texture{
		width:  desc.Size.Width,
		height: desc.Size.Height,
		data:   make([]byte, int(desc.Size.Width)*int(desc.Size.Height)*bytesPerTexel),
	}
	d.mu.Lock()
	d.textures[tex] = struct{}{}
	d.mu.Unlock()
	return tex, nil
}

// DestroyTexture forgets the texture.
func (d *Device) DestroyTexture(tex hal.Texture) {
	if t, ok := tex.(*Texture); ok {
		d.mu.Lock()
		delete(d.textures, t)
		d.mu.Unlock()
	}
}

// CreateCommandEncoder returns an encoder that records texture-to-buffer copies.
func (d *Device) CreateCommandEncoder(desc *hal.CommandEncoderDescriptor) (hal.CommandEncoder, error) {
	inner, err := d.Device.CreateCommandEncoder(desc)
	if err != nil {
		return nil, err
	}
	return &encoder{CommandEncoder: inner, device: d}, nil
}

// FailBeginEncoding makes every later BeginEncoding return err.
// A nil err restores normal behavior.
func (d *Device) FailBeginEncoding(err error) {
	d.mu.Lock()
	d.beginErr = err
	d.mu.Unlock()
}

// Discards returns the number of DiscardEncoding calls on this device's encoders.
func (d *Device) Discards() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.discarded
}

// LiveBuffers returns the number of buffers created and not yet destroyed.
func (d *Device) LiveBuffers() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.buffers)
}

// LiveTextures returns the number of textures created and not yet destroyed.
func (d *Device) LiveTextures() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.textures)
}

type copyOp struct {
	src    *Texture
	dst    hal.Buffer
	layout hal.ImageDataLayout
	size   hal.Extent3D
}

type encoder struct {
	hal.CommandEncoder
	device *Device
	ops    []copyOp
}

func (e *encoder) BeginEncoding(label string) error {
	e.ops = e.ops[:0]
	e.device.mu.Lock()
	err := e.device.beginErr
	e.device.mu.Unlock()
	if err != nil {
		return err
	}
	return e.CommandEncoder.BeginEncoding(label)
}

func (e *encoder) DiscardEncoding() {
	e.ops = e.ops[:0]
	e.device.mu.Lock()
	e.device.discarded++
	e.device.mu.Unlock()
	e.CommandEncoder.DiscardEncoding()
}

func (e *encoder) CopyTextureToBuffer(src hal.Texture, dst hal.Buffer, regions []hal.BufferTextureCopy) {
	tex, ok := src.(*Texture)
	if !ok {
		return
	}
	for _, r := range regions {
		e.ops = append(e.ops, copyOp{src: tex, dst: dst, layout: r.BufferLayout, size: r.Size})
	}
}

func (e *encoder) EndEncoding() (hal.CommandBuffer, error) {
	ops := make([]copyOp, len(e.ops))
	copy(ops, e.ops)
	e.ops = e.ops[:0]
	return &commandBuffer{ops: ops}, nil
}

type commandBuffer struct {
	noop.Resource
	ops []copyOp
}

type pendingCopy struct {
	copyOp
	data []byte
}

type submission struct {
	index  uint64
	copies []pendingCopy
}

// Queue is a hal.Queue whose submissions complete on demand.
type Queue struct {
	hal.Queue

	mu        sync.Mutex
	submitted uint64
	completed uint64
	held      bool
	pending   []submission
	submits   int
}

// Submit snapshots the source textures of every recorded copy. The copies
// land in their destination buffers when the submission completes.
func (q *Queue) Submit(cmds []hal.CommandBuffer) (uint64, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.submitted++
	q.submits++
	sub := submission{index: q.submitted}
	for _, cmd := range cmds {
		cb, ok := cmd.(*commandBuffer)
		if !ok {
			continue
		}
		for _, op := range cb.ops {
			sub.copies = append(sub.copies, pendingCopy{copyOp: op, data: op.src.snapshot()})
		}
	}
	q.pending = append(q.pending, sub)

	if !q.held {
		q.completeLocked()
	}
	return sub.index, nil
}

// PollCompleted returns the highest completed submission index.
func (q *Queue) PollCompleted() uint64 {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.completed
}

// WriteTexture stores data into a Texture honoring layout.BytesPerRow.
func (q *Queue) WriteTexture(dst *hal.ImageCopyTexture, data []byte, layout *hal.ImageDataLayout, size *hal.Extent3D) error {
	tex, ok := dst.Texture.(*Texture)
	if !ok || size == nil {
		return q.Queue.WriteTexture(dst, data, layout, size)
	}

	srcPitch := uint64(size.Width) * bytesPerTexel
	var offset uint64
	if layout != nil {
		offset = layout.Offset
		if layout.BytesPerRow != 0 {
			srcPitch = uint64(layout.BytesPerRow)
		}
	}
	dstPitch := uint64(tex.width) * bytesPerTexel
	rowBytes := uint64(size.Width) * bytesPerTexel

	tex.mu.Lock()
	defer tex.mu.Unlock()
	for row := uint64(0); row < uint64(size.Height); row++ {
		src := offset + row*srcPitch
		if src+rowBytes > uint64(len(data)) {
			break
		}
		d := (uint64(dst.Origin.Y)+row)*dstPitch + uint64(dst.Origin.X)*bytesPerTexel
		if d+rowBytes > uint64(len(tex.data)) {
			break
		}
		copy(tex.data[d:d+rowBytes], data[src:src+rowBytes])
	}
	return nil
}

// Hold stops submissions from completing until Release or Complete.
func (q *Queue) Hold() {
	q.mu.Lock()
	q.held = true
	q.mu.Unlock()
}

// Release completes all pending submissions and resumes immediate completion.
func (q *Queue) Release() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.held = false
	q.completeLocked()
}

// Complete completes all pending submissions without changing the hold state.
func (q *Queue) Complete() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.completeLocked()
}

// Pending returns the number of submissions not yet completed.
func (q *Queue) Pending() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}

// Submits returns the total number of Submit calls.
func (q *Queue) Submits() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.submits
}

func (q *Queue) completeLocked() {
	for _, sub := range q.pending {
		for _, c := range sub.copies {
			q.applyCopy(c)
		}
		q.completed = sub.index
	}
	q.pending = q.pending[:0]
}

func (q *Queue) applyCopy(c pendingCopy) {
	pitch := uint64(c.layout.BytesPerRow)
	rowBytes := uint64(c.size.Width) * bytesPerTexel
	if pitch == 0 {
		pitch = rowBytes
	}
	srcPitch := uint64(c.src.width) * bytesPerTexel
	for row := uint64(0); row < uint64(c.size.Height); row++ {
		src := row * srcPitch
		if src+rowBytes > uint64(len(c.data)) {
			return
		}
		_ = q.Queue.WriteBuffer(c.dst, c.layout.Offset+row*pitch, c.data[src:src+rowBytes])
	}
}

// Env bundles a fake device and queue with a provider exposing them.
type Env struct {
	Device   *Device
	Queue    *Queue
	Provider *halctx.Provider
}

// New opens a noop device wrapped by the fakes in this package.
// The device is destroyed when the test ends.
func New(t testing.TB) *Env {
	t.Helper()

	base, err := halctx.Open(halctx.BackendNoop)
	if err != nil {
		t.Fatalf("open noop backend: %v", err)
	}
	t.Cleanup(base.Destroy)

	device, queue, err := halctx.Resolve(base)
	if err != nil {
		t.Fatalf("resolve noop backend: %v", err)
	}

	env := &Env{
		Device: &Device{
			Device:   device,
			buffers:  make(map[hal.Buffer]struct{}),
			textures: make(map[*Texture]struct{}),
		},
		Queue: &Queue{Queue: queue},
	}
	env.Provider = halctx.NewProvider(env.Device, env.Queue, gpucontext.AdapterInfo{
		Name: "gputest",
		Type: gpucontext.AdapterTypeSoftware,
	})
	return env
}

// NewTexture creates a width×height R32Float-sized texture on the fake device.
func (e *Env) NewTexture(t testing.TB, width, height uint32) *Texture {
	t.Helper()
	tex, err := e.Device.CreateTexture(&hal.TextureDescriptor{
		Label: "gputest",
		Size:  hal.Extent3D{Width: width, Height: height, DepthOrArrayLayers: 1},
	})
	if err != nil {
		t.Fatalf("create texture: %v", err)
	}
	return tex.(*Texture)
}

// Fill overwrites the texture with little-endian float32 values.
func (t *Texture) Fill(values []float32) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for i, v := range values {
		if 4*i+4 > len(t.data) {
			return
		}
		putFloat32(t.data[4*i:], v)
	}
}

func putFloat32(b []byte, v float32) {
	binary.LittleEndian.PutUint32(b, math.Float32bits(v))
}
