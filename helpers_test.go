package depthmesh

import (
	"unsafe"

	"github.com/gogpu/gpucontext"
	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
)

// bareProvider exposes no HAL device or queue.
type bareProvider struct{}

func (bareProvider) Device() gpucontext.Device             { return nil }
func (bareProvider) Queue() gpucontext.Queue               { return nil }
func (bareProvider) SurfaceFormat() gputypes.TextureFormat { return gputypes.TextureFormatUndefined }
func (bareProvider) Adapter() gpucontext.Adapter           { return nil }
func (bareProvider) AdapterInfo() gpucontext.AdapterInfo   { return gpucontext.AdapterInfo{} }

func unsafeBytes(m hal.BufferMapping, n int) []byte {
	return unsafe.Slice((*byte)(m.Ptr), n)
}
