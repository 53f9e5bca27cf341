// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package readback copies a GPU-resident R32Float depth texture into a
// persistently owned host []float32.
//
// Transfers are issued without blocking and complete in submission order.
// Under PolicyAsync the caller receives a view of the host buffer as it is
// now, which may still hold an earlier frame; this one-frame staleness is
// the price of never stalling the pipeline. PolicySafe waits for the
// transfer it just issued before returning.
package readback

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
)

// MaxInFlight bounds the number of outstanding transfers.
const MaxInFlight = 3

// Wait backoff bounds.
const (
	minBackoff = 50 * time.Microsecond
	maxBackoff = 2 * time.Millisecond
)

// ErrClosed is returned by operations on a closed Readback.
var ErrClosed = errors.New("readback: closed")

// Policy selects how Read treats an incomplete transfer.
type Policy int

const (
	// PolicyAsync returns the current host contents immediately.
	PolicyAsync Policy = iota
	// PolicySafe blocks until the transfer issued by Read has landed.
	PolicySafe
)

// String returns the string representation of Policy.
func (p Policy) String() string {
	switch p {
	case PolicyAsync:
		return "async"
	case PolicySafe:
		return "safe"
	default:
		return fmt.Sprintf("Policy(%d)", int(p))
	}
}

// Readback owns the host depth buffer and the staging buffers feeding it.
//
// Readback is safe for concurrent use, but the slice returned by Read and
// View is rewritten in place whenever a later call observes a completion.
type Readback struct {
	mu sync.Mutex

	device hal.Device
	queue  hal.Queue
	policy Policy
	layout RowLayout

	width  uint32
	height uint32
	host   []float32

	inflight []*Request
	free     []*StagingBuffer

	digest    uint64
	completed uint64
	skipped   uint64
	closed    bool
}

// Option configures a Readback.
type Option func(*Readback)

// WithRowLayout sets the row layout the device writes on texture-to-buffer
// copies. The default is RowsAligned.
func WithRowLayout(layout RowLayout) Option {
	return func(r *Readback) {
		r.layout = layout
	}
}

// New creates a Readback for textures on device, submitting to queue.
func New(device hal.Device, queue hal.Queue, policy Policy, opts ...Option) *Readback {
	r := &Readback{device: device, queue: queue, policy: policy}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Policy returns the completion policy.
func (r *Readback) Policy() Policy { return r.policy }

// RowLayout returns the staging row layout.
func (r *Readback) RowLayout() RowLayout { return r.layout }

// Read issues a transfer of tex (width×height R32Float) and returns the host view.
//
// Zero width or height is a no-op returning the previous view unchanged.
// When the dimensions differ from the previous call the host buffer is
// reallocated zero-filled before the transfer is issued. Under PolicyAsync
// with MaxInFlight transfers outstanding no new transfer is issued.
func (r *Readback) Read(ctx context.Context, tex hal.Texture, width, height uint32) ([]float32, error) {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil, ErrClosed
	}
	if width == 0 || height == 0 {
		host := r.host
		r.mu.Unlock()
		return host, nil
	}

	r.prepareLocked(width, height)

	if r.policy == PolicyAsync && len(r.inflight) >= MaxInFlight {
		r.skipped++
		host := r.host
		r.mu.Unlock()
		slogger().Debug("readback: transfer skipped, queue full", "in_flight", MaxInFlight)
		return host, nil
	}

	req, err := r.issueLocked(tex)
	if err != nil {
		host := r.host
		r.mu.Unlock()
		return host, err
	}
	// Synchronous backends have already finished; pick that up without blocking.
	r.pollLocked()
	host := r.host
	r.mu.Unlock()

	if r.policy == PolicySafe {
		if err := req.Wait(ctx); err != nil {
			return host, err
		}
		if err := req.Err(); err != nil {
			return host, err
		}
	}
	return host, nil
}

// Submit issues a transfer of tex and returns its request handle without
// waiting. Zero width or height returns a nil request.
func (r *Readback) Submit(tex hal.Texture, width, height uint32) (*Request, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil, ErrClosed
	}
	if width == 0 || height == 0 {
		return nil, nil
	}
	r.prepareLocked(width, height)
	return r.issueLocked(tex)
}

// View returns the host buffer after applying any completed transfers.
func (r *Readback) View() []float32 {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.closed {
		r.pollLocked()
	}
	return r.host
}

// Poll applies completed transfers and returns how many are still in flight.
func (r *Readback) Poll() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.closed {
		r.pollLocked()
	}
	return len(r.inflight)
}

// Dimensions returns the size of the host buffer.
func (r *Readback) Dimensions() (width, height uint32) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.width, r.height
}

// Digest returns the xxhash of the most recently landed depth image, or 0.
func (r *Readback) Digest() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.digest
}

// Completed returns the number of transfers that have landed in the host buffer.
func (r *Readback) Completed() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.completed
}

// Skipped returns the number of Read calls that issued nothing because the
// in-flight queue was full.
func (r *Readback) Skipped() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.skipped
}

// InFlight returns the number of outstanding transfers.
func (r *Readback) InFlight() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.inflight)
}

// Close waits for the device to go idle and releases every staging buffer.
func (r *Readback) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return
	}
	r.closed = true

	if len(r.inflight) > 0 {
		if err := r.device.WaitIdle(); err != nil {
			slogger().Warn("readback: wait idle failed", "err", err)
		}
		r.pollLocked()
	}
	for _, req := range r.inflight {
		r.device.FreeCommandBuffer(req.cmd)
		req.staging.Destroy()
		req.err = ErrClosed
		req.done.Store(true)
	}
	r.inflight = nil
	for _, s := range r.free {
		s.Destroy()
	}
	r.free = nil
	r.host = nil
	r.width, r.height = 0, 0
}

// prepareLocked reallocates the host buffer when the dimensions change and
// applies completed transfers.
func (r *Readback) prepareLocked(width, height uint32) {
	if width != r.width || height != r.height {
		r.resizeLocked(width, height)
	}
	r.pollLocked()
}

func (r *Readback) resizeLocked(width, height uint32) {
	slogger().Debug("readback: resize",
		"from_w", r.width, "from_h", r.height, "to_w", width, "to_h", height,
		"retired", len(r.inflight), "released", len(r.free))

	for _, s := range r.free {
		s.Destroy()
	}
	r.free = nil
	for _, req := range r.inflight {
		req.retired = true
	}

	r.width, r.height = width, height
	r.host = make([]float32, int(width)*int(height))
	r.digest = 0
}

func (r *Readback) acquireLocked() (*StagingBuffer, error) {
	if n := len(r.free); n > 0 {
		s := r.free[n-1]
		r.free = r.free[:n-1]
		return s, nil
	}
	return NewStagingBufferLayout(r.device, r.width, r.height, r.layout)
}

func (r *Readback) issueLocked(tex hal.Texture) (*Request, error) {
	staging, err := r.acquireLocked()
	if err != nil {
		return nil, err
	}

	cmd, err := r.encodeCopy(tex, staging)
	if err != nil {
		r.free = append(r.free, staging)
		return nil, err
	}

	if err := staging.markInFlight(); err != nil {
		r.device.FreeCommandBuffer(cmd)
		staging.Destroy()
		return nil, err
	}

	index, err := r.queue.Submit([]hal.CommandBuffer{cmd})
	if err != nil {
		r.device.FreeCommandBuffer(cmd)
		staging.markIdle()
		r.free = append(r.free, staging)
		return nil, fmt.Errorf("submit readback: %w", err)
	}

	req := &Request{
		owner:   r,
		index:   index,
		staging: staging,
		cmd:     cmd,
	}
	r.inflight = append(r.inflight, req)
	slogger().Debug("readback: issued", "index", index, "in_flight", len(r.inflight))
	return req, nil
}

func (r *Readback) encodeCopy(tex hal.Texture, staging *StagingBuffer) (hal.CommandBuffer, error) {
	encoder, err := r.device.CreateCommandEncoder(&hal.CommandEncoderDescriptor{
		Label: "depth_readback_encoder",
	})
	if err != nil {
		return nil, fmt.Errorf("create command encoder: %w", err)
	}
	if err := encoder.BeginEncoding("depth_readback"); err != nil {
		encoder.DiscardEncoding()
		return nil, fmt.Errorf("begin encoding: %w", err)
	}

	encoder.TransitionTextures([]hal.TextureBarrier{{
		Texture: tex,
		Usage: hal.TextureUsageTransition{
			OldUsage: gputypes.TextureUsageTextureBinding,
			NewUsage: gputypes.TextureUsageCopySrc,
		},
	}})

	w, h := staging.Dimensions()
	encoder.CopyTextureToBuffer(tex, staging.Raw(), []hal.BufferTextureCopy{{
		BufferLayout: hal.ImageDataLayout{Offset: 0, BytesPerRow: staging.Pitch(), RowsPerImage: h},
		TextureBase:  hal.ImageCopyTexture{Texture: tex, MipLevel: 0, Aspect: gputypes.TextureAspectAll},
		Size:         hal.Extent3D{Width: w, Height: h, DepthOrArrayLayers: 1},
	}})

	// Return the texture to the sampled state so the shader path can bind it.
	encoder.TransitionTextures([]hal.TextureBarrier{{
		Texture: tex,
		Usage: hal.TextureUsageTransition{
			OldUsage: gputypes.TextureUsageCopySrc,
			NewUsage: gputypes.TextureUsageTextureBinding,
		},
	}})

	cmd, err := encoder.EndEncoding()
	if err != nil {
		encoder.DiscardEncoding()
		return nil, fmt.Errorf("end encoding: %w", err)
	}
	return cmd, nil
}

// pollLocked lands every transfer whose submission the queue reports as
// complete, oldest first.
func (r *Readback) pollLocked() {
	if len(r.inflight) == 0 {
		return
	}
	done := r.queue.PollCompleted()
	n := 0
	for n < len(r.inflight) && r.inflight[n].index <= done {
		r.finishLocked(r.inflight[n])
		n++
	}
	if n > 0 {
		r.inflight = append(r.inflight[:0], r.inflight[n:]...)
	}
}

func (r *Readback) finishLocked(req *Request) {
	r.device.FreeCommandBuffer(req.cmd)
	req.cmd = nil

	if req.retired {
		req.staging.Destroy()
		slogger().Debug("readback: retired transfer released", "index", req.index)
		req.done.Store(true)
		return
	}

	d := xxhash.New()
	if err := req.staging.Decode(r.host, d); err != nil {
		req.err = err
		req.staging.Destroy()
		slogger().Warn("readback: decode failed", "index", req.index, "err", err)
		req.done.Store(true)
		return
	}

	r.digest = d.Sum64()
	r.completed++
	r.free = append(r.free, req.staging)
	slogger().Debug("readback: landed", "index", req.index, "digest", r.digest)
	req.done.Store(true)
}

// Request is the handle of one issued transfer.
type Request struct {
	owner   *Readback
	index   uint64
	staging *StagingBuffer
	cmd     hal.CommandBuffer
	retired bool
	err     error
	done    atomic.Bool
}

// Index returns the queue submission index of the transfer.
func (q *Request) Index() uint64 { return q.index }

// TryPoll applies completed transfers and reports whether this one has landed.
func (q *Request) TryPoll() bool {
	if q.done.Load() {
		return true
	}
	r := q.owner
	r.mu.Lock()
	if !r.closed {
		r.pollLocked()
	}
	r.mu.Unlock()
	return q.done.Load()
}

// Wait blocks until the transfer lands or ctx is done.
func (q *Request) Wait(ctx context.Context) error {
	backoff := minBackoff
	for !q.TryPoll() {
		timer := time.NewTimer(backoff)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
		if backoff < maxBackoff {
			backoff *= 2
		}
	}
	return nil
}

// Err returns the error of a landed transfer. A retired transfer reports nil;
// its data was discarded because the image size changed.
func (q *Request) Err() error {
	if !q.done.Load() {
		return nil
	}
	q.owner.mu.Lock()
	defer q.owner.mu.Unlock()
	return q.err
}

// Retired reports whether the transfer was superseded by a resize.
func (q *Request) Retired() bool {
	q.owner.mu.Lock()
	defer q.owner.mu.Unlock()
	return q.retired
}
