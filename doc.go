// Package depthmesh turns a per-frame depth image into a displaced grid mesh.
//
// # Overview
//
// Each frame the host hands a Mesher a depth texture (and optionally a
// color image and depth-extent hints). The Mesher either reads the depth
// back to the CPU and displaces a regular grid of vertices by it
// (MethodMesh), or keeps a flat grid and leaves the displacement to a
// vertex shader that samples the depth texture live (MethodShader).
//
// # Quick Start
//
//	provider, _ := halctx.Open(halctx.BackendSoftware) // or any gpucontext.DeviceProvider
//	m, err := depthmesh.NewMesher(provider)
//	if err != nil {
//	    return err
//	}
//	defer m.Close()
//
//	depth, _ := depthmesh.NewDepthTexture(provider, 256, 192)
//	defer depth.Destroy()
//
//	for frame := range frames {
//	    _ = depth.Upload(frame.Samples)
//	    snap, err := m.AdvanceFrame(ctx, depthmesh.Frame{Depth: depth})
//	    ...
//	}
//
// # Grid layout
//
// A width×height depth image yields width*height vertices, vertex i at
// grid cell (i%width, i/width), and one quad per 2×2 neighbourhood listed
// as top-left, top-right, bottom-right, bottom-left. UVs are
// (x/width, y/height).
//
// # Readback staleness
//
// With the default asynchronous readback policy the depth used for CPU
// displacement may lag the submitted texture by a frame when the GPU has
// not finished the copy. Use WithReadbackPolicy(ReadbackSafe) to block
// instead.
//
// # Concurrency
//
// Vertex, index and UV generation runs on an internal worker pool and is
// joined before AdvanceFrame returns. AdvanceFrame calls are serialized.
package depthmesh
