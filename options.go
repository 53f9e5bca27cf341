package depthmesh

import "github.com/gogpu/depthmesh/internal/readback"

// ReadbackPolicy selects how the Mesher waits for depth readback.
type ReadbackPolicy = readback.Policy

const (
	// ReadbackAsync never blocks; CPU displacement may use the previous
	// frame's depth when the copy has not finished.
	ReadbackAsync = readback.PolicyAsync

	// ReadbackSafe blocks until the current frame's depth has been copied.
	ReadbackSafe = readback.PolicySafe
)

// Default job batch sizes.
const (
	DefaultVertexBatch   = 128
	DefaultTopologyBatch = 64
)

// MesherOption configures a Mesher during creation.
//
// Example:
//
//	m, err := depthmesh.NewMesher(provider,
//	    depthmesh.WithReadbackPolicy(depthmesh.ReadbackSafe),
//	    depthmesh.WithCoordinateRemap(true),
//	)
type MesherOption func(*mesherOptions)

type mesherOptions struct {
	workers       int
	policy        ReadbackPolicy
	remap         bool
	extents       bool
	autoExtents   bool
	vertexBatch   int
	topologyBatch int
	params        Parameters
}

func defaultMesherOptions() mesherOptions {
	return mesherOptions{
		workers:       0, // GOMAXPROCS
		policy:        ReadbackAsync,
		vertexBatch:   DefaultVertexBatch,
		topologyBatch: DefaultTopologyBatch,
		params:        DefaultParameters(),
	}
}

// WithWorkers sets the number of worker goroutines. Zero or negative uses GOMAXPROCS.
func WithWorkers(n int) MesherOption {
	return func(o *mesherOptions) {
		o.workers = n
	}
}

// WithReadbackPolicy sets the depth readback policy.
func WithReadbackPolicy(p ReadbackPolicy) MesherOption {
	return func(o *mesherOptions) {
		o.policy = p
	}
}

// WithCoordinateRemap makes both displacement paths sample the depth
// buffer transposed with the X axis flipped. Some depth-estimation models
// emit their output in that layout.
func WithCoordinateRemap(enabled bool) MesherOption {
	return func(o *mesherOptions) {
		o.remap = enabled
	}
}

// WithExtentCalculation reports the observed depth range in every snapshot.
// Under MethodShader this adds a readback per frame.
func WithExtentCalculation(enabled bool) MesherOption {
	return func(o *mesherOptions) {
		o.extents = enabled
	}
}

// WithAutoExtents feeds the observed depth range back into the controller's
// MinDepth and MaxDepth. It implies WithExtentCalculation.
func WithAutoExtents(enabled bool) MesherOption {
	return func(o *mesherOptions) {
		o.autoExtents = enabled
		if enabled {
			o.extents = true
		}
	}
}

// WithBatchSizes sets the per-job batch sizes of vertex and topology jobs.
// Non-positive values keep the defaults.
func WithBatchSizes(vertex, topology int) MesherOption {
	return func(o *mesherOptions) {
		if vertex > 0 {
			o.vertexBatch = vertex
		}
		if topology > 0 {
			o.topologyBatch = topology
		}
	}
}

// WithParameters sets the initial parameters.
func WithParameters(p Parameters) MesherOption {
	return func(o *mesherOptions) {
		o.params = p
	}
}
