// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package readback

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"sync"
	"unsafe"

	"github.com/cespare/xxhash/v2"
	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
)

// Staging buffer errors.
var (
	// ErrStagingDestroyed is returned when operating on a destroyed staging buffer.
	ErrStagingDestroyed = errors.New("readback: staging buffer has been destroyed")

	// ErrNotMapped is returned when reading a staging buffer that is not mapped.
	ErrNotMapped = errors.New("readback: staging buffer is not mapped")

	// ErrAlreadyMapped is returned when mapping a buffer that is mapped or in flight.
	ErrAlreadyMapped = errors.New("readback: staging buffer is already mapped or in flight")
)

// bytesPerSample is the size of one R32Float texel.
const bytesPerSample = 4

// copyPitchAlignment is the WebGPU row alignment for texture-to-buffer copies.
const copyPitchAlignment = 256

// Pitch returns the aligned bytes per row of a width-texel R32Float copy.
func Pitch(width uint32) uint32 {
	bytesPerRow := width * bytesPerSample
	return (bytesPerRow + copyPitchAlignment - 1) &^ (copyPitchAlignment - 1)
}

// RowLayout describes how a backend lays out copied rows in a buffer.
type RowLayout int

const (
	// RowsAligned places each row at a 256-byte aligned pitch.
	RowsAligned RowLayout = iota

	// RowsPacked places rows back to back. Backends that ignore
	// BytesPerRow on texture-to-buffer copies write this layout.
	RowsPacked
)

// Pitch returns the bytes per row of a width-texel R32Float copy.
func (l RowLayout) Pitch(width uint32) uint32 {
	if l == RowsPacked {
		return width * bytesPerSample
	}
	return Pitch(width)
}

// String returns the string representation of RowLayout.
func (l RowLayout) String() string {
	switch l {
	case RowsAligned:
		return "aligned"
	case RowsPacked:
		return "packed"
	default:
		return fmt.Sprintf("RowLayout(%d)", int(l))
	}
}

// MapState is the lifecycle state of a StagingBuffer.
type MapState int

const (
	// MapStateIdle means the buffer is unmapped and not referenced by the GPU.
	MapStateIdle MapState = iota
	// MapStateInFlight means a submitted copy writes into the buffer.
	MapStateInFlight
	// MapStateMapped means the buffer is mapped for host reads.
	MapStateMapped
)

// String returns the string representation of MapState.
func (s MapState) String() string {
	switch s {
	case MapStateIdle:
		return "Idle"
	case MapStateInFlight:
		return "InFlight"
	case MapStateMapped:
		return "Mapped"
	default:
		return fmt.Sprintf("Unknown(%d)", int(s))
	}
}

// StagingBuffer is a MapRead|CopyDst buffer that receives one depth image.
//
// Rows are laid out at the pitch of its RowLayout; Decode strips any padding.
type StagingBuffer struct {
	mu sync.Mutex

	device hal.Device
	buffer hal.Buffer

	width  uint32
	height uint32
	pitch  uint32
	size   uint64

	state     MapState
	mapped    []byte
	destroyed bool
}

// NewStagingBuffer allocates a staging buffer for a width×height depth image
// with aligned rows.
func NewStagingBuffer(device hal.Device, width, height uint32) (*StagingBuffer, error) {
	return NewStagingBufferLayout(device, width, height, RowsAligned)
}

// NewStagingBufferLayout allocates a staging buffer whose rows follow layout.
func NewStagingBufferLayout(device hal.Device, width, height uint32, layout RowLayout) (*StagingBuffer, error) {
	if width == 0 || height == 0 {
		return nil, fmt.Errorf("readback: staging buffer needs non-zero size, got %dx%d", width, height)
	}
	pitch := layout.Pitch(width)
	size := uint64(pitch) * uint64(height)

	buf, err := device.CreateBuffer(&hal.BufferDescriptor{
		Label: "depth_readback_staging",
		Size:  size,
		Usage: gputypes.BufferUsageMapRead | gputypes.BufferUsageCopyDst,
	})
	if err != nil {
		return nil, fmt.Errorf("create staging buffer: %w", err)
	}

	return &StagingBuffer{
		device: device,
		buffer: buf,
		width:  width,
		height: height,
		pitch:  pitch,
		size:   size,
	}, nil
}

// Raw returns the underlying buffer handle, or nil after Destroy.
func (s *StagingBuffer) Raw() hal.Buffer {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.destroyed {
		return nil
	}
	return s.buffer
}

// Pitch returns the bytes per row.
func (s *StagingBuffer) Pitch() uint32 { return s.pitch }

// Size returns the buffer size in bytes.
func (s *StagingBuffer) Size() uint64 { return s.size }

// Dimensions returns the image size the buffer was allocated for.
func (s *StagingBuffer) Dimensions() (width, height uint32) { return s.width, s.height }

// State returns the current map state.
func (s *StagingBuffer) State() MapState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *StagingBuffer) markInFlight() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.destroyed {
		return ErrStagingDestroyed
	}
	if s.state != MapStateIdle {
		return ErrAlreadyMapped
	}
	s.state = MapStateInFlight
	return nil
}

func (s *StagingBuffer) markIdle() {
	s.mu.Lock()
	if s.state == MapStateInFlight {
		s.state = MapStateIdle
	}
	s.mu.Unlock()
}

// Map maps the whole buffer for reading. The returned slice is valid until Unmap.
func (s *StagingBuffer) Map() ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.destroyed {
		return nil, ErrStagingDestroyed
	}
	if s.state == MapStateMapped {
		return nil, ErrAlreadyMapped
	}

	mapping, err := s.device.MapBuffer(s.buffer, 0, s.size)
	if err != nil {
		return nil, fmt.Errorf("map staging buffer: %w", err)
	}
	s.mapped = unsafe.Slice((*byte)(mapping.Ptr), s.size)
	s.state = MapStateMapped
	return s.mapped, nil
}

// Unmap releases the host mapping.
func (s *StagingBuffer) Unmap() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.destroyed {
		return ErrStagingDestroyed
	}
	if s.state != MapStateMapped {
		return ErrNotMapped
	}
	s.mapped = nil
	s.state = MapStateIdle
	if err := s.device.UnmapBuffer(s.buffer); err != nil {
		return fmt.Errorf("unmap staging buffer: %w", err)
	}
	return nil
}

// Decode maps the buffer, converts each row of little-endian float32 texels
// into dst (tightly packed, width*height samples), feeds the tight bytes to
// digest when non-nil, and unmaps.
func (s *StagingBuffer) Decode(dst []float32, digest *xxhash.Digest) error {
	n := int(s.width) * int(s.height)
	if len(dst) < n {
		return fmt.Errorf("readback: decode into %d samples, need %d", len(dst), n)
	}

	data, err := s.Map()
	if err != nil {
		return err
	}

	rowBytes := int(s.width) * bytesPerSample
	for row := 0; row < int(s.height); row++ {
		src := data[row*int(s.pitch) : row*int(s.pitch)+rowBytes]
		out := dst[row*int(s.width) : (row+1)*int(s.width)]
		for x := range out {
			out[x] = math.Float32frombits(binary.LittleEndian.Uint32(src[x*bytesPerSample:]))
		}
		if digest != nil {
			_, _ = digest.Write(src)
		}
	}

	return s.Unmap()
}

// Destroy releases the buffer. Safe to call more than once.
func (s *StagingBuffer) Destroy() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.destroyed {
		return
	}
	if s.state == MapStateMapped {
		_ = s.device.UnmapBuffer(s.buffer)
		s.mapped = nil
	}
	s.device.DestroyBuffer(s.buffer)
	s.buffer = nil
	s.destroyed = true
	s.state = MapStateIdle
}

// IsDestroyed reports whether Destroy has been called.
func (s *StagingBuffer) IsDestroyed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.destroyed
}
