package parallel

import "sync"

// DefaultBatch is the batch size used when a Job does not set one.
const DefaultBatch = 64

// Job is a data-parallel kernel over the index range [0, N).
//
// Run is invoked once per batch with a half-open range [start, end). Batches
// of one job are disjoint, so a kernel that writes only to slots inside its
// range is race-free by construction.
type Job struct {
	// N is the total number of elements.
	N int

	// Batch is the number of elements per scheduled unit.
	// Zero or negative selects DefaultBatch.
	Batch int

	// Run processes elements [start, end).
	Run func(start, end int)
}

func (j Job) batchSize() int {
	if j.Batch <= 0 {
		return DefaultBatch
	}
	return j.Batch
}

func (j Job) bounds(b, batch int) (start, end int) {
	start = b * batch
	end = min(start+batch, j.N)
	return start, end
}

// Handle tracks completion of a scheduled Job.
// The zero value and a nil Handle are already complete.
type Handle struct {
	wg sync.WaitGroup
}

// Complete blocks until every batch of the job has run.
func (h *Handle) Complete() {
	if h == nil {
		return
	}
	h.wg.Wait()
}

// CompleteAll blocks until all handles have completed.
// It is the join point before results of concurrently scheduled jobs are read.
func CompleteAll(handles ...*Handle) {
	for _, h := range handles {
		h.Complete()
	}
}
