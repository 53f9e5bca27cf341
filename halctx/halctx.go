// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package halctx adapts wgpu HAL devices to gpucontext.DeviceProvider and back.
//
// A Provider wraps an opened hal.Device/hal.Queue pair. Resolve performs the
// reverse lookup used by consumers that receive an arbitrary provider from a
// host application.
package halctx

import (
	"errors"
	"fmt"

	"github.com/gogpu/gpucontext"
	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
	"github.com/gogpu/wgpu/hal/noop"
	"github.com/gogpu/wgpu/hal/software"
)

// ErrNoHAL is returned when a provider does not expose HAL types.
var ErrNoHAL = errors.New("halctx: provider does not expose hal.Device and hal.Queue")

// Provider is a gpucontext.DeviceProvider backed by HAL objects.
type Provider struct {
	device   hal.Device
	queue    hal.Queue
	info     gpucontext.AdapterInfo
	instance hal.Instance
	backend  Backend
}

var _ gpucontext.DeviceProvider = (*Provider)(nil)

// NewProvider wraps an already opened device and queue.
func NewProvider(device hal.Device, queue hal.Queue, info gpucontext.AdapterInfo) *Provider {
	return &Provider{device: device, queue: queue, info: info}
}

// Device returns the hal.Device as a gpucontext.Device.
func (p *Provider) Device() gpucontext.Device { return p.device }

// Queue returns the hal.Queue as a gpucontext.Queue.
func (p *Provider) Queue() gpucontext.Queue { return p.queue }

// HalDevice returns the underlying hal.Device.
func (p *Provider) HalDevice() any { return p.device }

// HalQueue returns the underlying hal.Queue.
func (p *Provider) HalQueue() any { return p.queue }

// SurfaceFormat returns TextureFormatUndefined; providers here are headless.
func (p *Provider) SurfaceFormat() gputypes.TextureFormat {
	return gputypes.TextureFormatUndefined
}

// Backend returns the backend Open used, or "" for a wrapped device.
func (p *Provider) Backend() Backend { return p.backend }

// PackedCopies reports whether texture-to-buffer copies on this device
// ignore BytesPerRow and write rows back to back. The software backend
// does this.
func (p *Provider) PackedCopies() bool { return p.backend == BackendSoftware }

// Adapter returns nil.
func (p *Provider) Adapter() gpucontext.Adapter { return nil }

// AdapterInfo returns the adapter metadata given at construction.
func (p *Provider) AdapterInfo() gpucontext.AdapterInfo { return p.info }

// Destroy releases the device and, when the provider opened it, the instance.
func (p *Provider) Destroy() {
	if p.device != nil {
		p.device.Destroy()
		p.device = nil
	}
	if p.instance != nil {
		p.instance.Destroy()
		p.instance = nil
	}
}

// Resolve extracts the HAL device and queue from provider.
//
// Providers exposing HalDevice() any and HalQueue() any are preferred.
// Otherwise Device() and Queue() are asserted directly.
func Resolve(provider gpucontext.DeviceProvider) (hal.Device, hal.Queue, error) {
	if provider == nil {
		return nil, nil, ErrNoHAL
	}

	type halProvider interface {
		HalDevice() any
		HalQueue() any
	}

	var rawDevice, rawQueue any
	if hp, ok := provider.(halProvider); ok {
		rawDevice, rawQueue = hp.HalDevice(), hp.HalQueue()
	} else {
		rawDevice, rawQueue = provider.Device(), provider.Queue()
	}

	device, ok := rawDevice.(hal.Device)
	if !ok || device == nil {
		return nil, nil, fmt.Errorf("%w: device is %T", ErrNoHAL, rawDevice)
	}
	queue, ok := rawQueue.(hal.Queue)
	if !ok || queue == nil {
		return nil, nil, fmt.Errorf("%w: queue is %T", ErrNoHAL, rawQueue)
	}
	return device, queue, nil
}

// Backend selects which in-process HAL backend Open uses.
type Backend string

const (
	// BackendSoftware stores texture data on the CPU and performs real copies.
	BackendSoftware Backend = "software"

	// BackendNoop accepts every call and stores only buffer contents.
	BackendNoop Backend = "noop"
)

// Open creates an instance of the named backend and opens its first adapter.
func Open(backend Backend) (*Provider, error) {
	var api hal.Backend
	info := gpucontext.AdapterInfo{Type: gpucontext.AdapterTypeSoftware}
	switch backend {
	case BackendSoftware, "":
		backend = BackendSoftware
		api = software.API{}
		info.Name = "Software Renderer"
	case BackendNoop:
		api = noop.API{}
		info.Name = "Noop"
	default:
		return nil, fmt.Errorf("halctx: unknown backend %q", backend)
	}

	instance, err := api.CreateInstance(nil)
	if err != nil {
		return nil, fmt.Errorf("halctx: create %s instance: %w", backend, err)
	}

	adapters := instance.EnumerateAdapters(nil)
	if len(adapters) == 0 {
		instance.Destroy()
		return nil, fmt.Errorf("halctx: %s backend exposes no adapters", backend)
	}
	if name := adapters[0].Info.Name; name != "" {
		info.Name = name
	}

	opened, err := adapters[0].Adapter.Open(0, gputypes.DefaultLimits())
	if err != nil {
		instance.Destroy()
		return nil, fmt.Errorf("halctx: open %s adapter: %w", backend, err)
	}

	return &Provider{
		device:   opened.Device,
		queue:    opened.Queue,
		info:     info,
		instance: instance,
		backend:  backend,
	}, nil
}
