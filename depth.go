// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package depthmesh

import (
	"encoding/binary"
	"fmt"
	"math"
	"sync"

	"github.com/gogpu/gpucontext"
	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/depthmesh/halctx"
)

// DepthSource is a GPU-resident single-channel float depth image.
//
// Texture must be an R32Float texture with CopySrc usage.
type DepthSource interface {
	Texture() hal.Texture
	Size() (width, height uint32)
}

// DepthTexture is an R32Float texture that the host fills from the CPU,
// for example with the output of a depth-estimation model.
type DepthTexture struct {
	mu sync.Mutex

	device hal.Device
	queue  hal.Queue
	tex    hal.Texture

	width  uint32
	height uint32
}

var _ DepthSource = (*DepthTexture)(nil)

// NewDepthTexture creates a width×height depth texture on the provider's device.
func NewDepthTexture(provider gpucontext.DeviceProvider, width, height uint32) (*DepthTexture, error) {
	if width == 0 || height == 0 {
		return nil, fmt.Errorf("%w: depth texture %dx%d", ErrInvalidDimensions, width, height)
	}
	device, queue, err := halctx.Resolve(provider)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnsupportedDevice, err)
	}

	tex, err := device.CreateTexture(&hal.TextureDescriptor{
		Label:         "depthmesh_depth",
		Size:          hal.Extent3D{Width: width, Height: height, DepthOrArrayLayers: 1},
		MipLevelCount: 1,
		SampleCount:   1,
		Dimension:     gputypes.TextureDimension2D,
		Format:        gputypes.TextureFormatR32Float,
		Usage: gputypes.TextureUsageCopySrc | gputypes.TextureUsageCopyDst |
			gputypes.TextureUsageTextureBinding,
	})
	if err != nil {
		return nil, fmt.Errorf("create depth texture: %w", err)
	}

	return &DepthTexture{device: device, queue: queue, tex: tex, width: width, height: height}, nil
}

// Texture returns the texture handle, or nil after Destroy.
func (d *DepthTexture) Texture() hal.Texture {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.tex
}

// Size returns the texture dimensions.
func (d *DepthTexture) Size() (width, height uint32) {
	return d.width, d.height
}

// Upload writes width*height samples, row-major, into the texture.
func (d *DepthTexture) Upload(samples []float32) error {
	n := int(d.width) * int(d.height)
	if len(samples) < n {
		return fmt.Errorf("%w: %d samples for %dx%d texture", ErrDimensionMismatch, len(samples), d.width, d.height)
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.tex == nil {
		return fmt.Errorf("depthmesh: upload to destroyed depth texture")
	}

	data := make([]byte, n*4)
	for i, v := range samples[:n] {
		binary.LittleEndian.PutUint32(data[i*4:], math.Float32bits(v))
	}

	err := d.queue.WriteTexture(
		&hal.ImageCopyTexture{Texture: d.tex, MipLevel: 0, Aspect: gputypes.TextureAspectAll},
		data,
		&hal.ImageDataLayout{Offset: 0, BytesPerRow: d.width * 4, RowsPerImage: d.height},
		&hal.Extent3D{Width: d.width, Height: d.height, DepthOrArrayLayers: 1},
	)
	if err != nil {
		return fmt.Errorf("upload depth texture: %w", err)
	}
	return nil
}

// Destroy releases the texture. Safe to call more than once.
func (d *DepthTexture) Destroy() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.tex != nil {
		d.device.DestroyTexture(d.tex)
		d.tex = nil
	}
}
