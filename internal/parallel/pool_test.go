package parallel

import (
	"runtime"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

// =============================================================================
// WorkerPool Creation Tests
// =============================================================================

func TestWorkerPool_Create(t *testing.T) {
	pool := NewWorkerPool(4)
	defer pool.Close()

	if pool.Workers() != 4 {
		t.Errorf("Workers() = %d, want 4", pool.Workers())
	}
	if len(pool.workQueues) != 4 {
		t.Errorf("len(workQueues) = %d, want 4", len(pool.workQueues))
	}
}

func TestWorkerPool_CreateZeroWorkers(t *testing.T) {
	pool := NewWorkerPool(0)
	defer pool.Close()

	expected := runtime.GOMAXPROCS(0)
	if pool.Workers() != expected {
		t.Errorf("Workers() = %d, want %d (GOMAXPROCS)", pool.Workers(), expected)
	}
}

func TestWorkerPool_CreateNegativeWorkers(t *testing.T) {
	pool := NewWorkerPool(-5)
	defer pool.Close()

	expected := runtime.GOMAXPROCS(0)
	if pool.Workers() != expected {
		t.Errorf("Workers() = %d, want %d (GOMAXPROCS)", pool.Workers(), expected)
	}
}

// =============================================================================
// Schedule Tests
// =============================================================================

func TestWorkerPool_ScheduleCoversRange(t *testing.T) {
	tests := []struct {
		name  string
		n     int
		batch int
	}{
		{"exact batches", 256, 64},
		{"ragged tail", 1000, 128},
		{"batch larger than n", 10, 64},
		{"batch of one", 33, 1},
		{"default batch", 500, 0},
	}

	pool := NewWorkerPool(4)
	defer pool.Close()

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hits := make([]int32, tt.n)
			pool.Schedule(Job{
				N:     tt.n,
				Batch: tt.batch,
				Run: func(start, end int) {
					for i := start; i < end; i++ {
						atomic.AddInt32(&hits[i], 1)
					}
				},
			}).Complete()

			for i, h := range hits {
				if h != 1 {
					t.Fatalf("element %d visited %d times, want 1", i, h)
				}
			}
		})
	}
}

func TestWorkerPool_ScheduleDisjointWrites(t *testing.T) {
	pool := NewWorkerPool(8)
	defer pool.Close()

	const n = 10000
	out := make([]int, n)

	// No locking: each batch writes only its own slots.
	pool.For(Job{
		N:     n,
		Batch: 37,
		Run: func(start, end int) {
			for i := start; i < end; i++ {
				out[i] = i * 2
			}
		},
	})

	for i, v := range out {
		if v != i*2 {
			t.Fatalf("out[%d] = %d, want %d", i, v, i*2)
		}
	}
}

func TestWorkerPool_ScheduleEmpty(t *testing.T) {
	pool := NewWorkerPool(2)
	defer pool.Close()

	called := false
	h := pool.Schedule(Job{N: 0, Run: func(int, int) { called = true }})
	h.Complete()

	if called {
		t.Error("Run should not be called for an empty job")
	}

	// Nil Run must not panic.
	pool.Schedule(Job{N: 10}).Complete()
}

func TestWorkerPool_CompleteAllConcurrentJobs(t *testing.T) {
	pool := NewWorkerPool(4)
	defer pool.Close()

	a := make([]int, 4096)
	b := make([]float32, 2048)
	c := make([]uint32, 999)

	ha := pool.Schedule(Job{N: len(a), Batch: 128, Run: func(s, e int) {
		for i := s; i < e; i++ {
			a[i] = i
		}
	}})
	hb := pool.Schedule(Job{N: len(b), Batch: 64, Run: func(s, e int) {
		for i := s; i < e; i++ {
			b[i] = float32(i) / 2
		}
	}})
	hc := pool.Schedule(Job{N: len(c), Batch: 64, Run: func(s, e int) {
		for i := s; i < e; i++ {
			c[i] = uint32(i) + 1
		}
	}})

	CompleteAll(ha, hb, hc)

	for i := range a {
		if a[i] != i {
			t.Fatalf("a[%d] = %d", i, a[i])
		}
	}
	for i := range b {
		if b[i] != float32(i)/2 {
			t.Fatalf("b[%d] = %v", i, b[i])
		}
	}
	for i := range c {
		if c[i] != uint32(i)+1 {
			t.Fatalf("c[%d] = %d", i, c[i])
		}
	}
}

func TestHandle_NilAndZero(t *testing.T) {
	var nilHandle *Handle
	nilHandle.Complete()

	var zero Handle
	zero.Complete()

	CompleteAll(nil, &zero)
}

// =============================================================================
// Close Tests
// =============================================================================

func TestWorkerPool_Close(t *testing.T) {
	pool := NewWorkerPool(4)

	var ran atomic.Int64
	h := pool.Schedule(Job{N: 256, Batch: 8, Run: func(s, e int) {
		ran.Add(int64(e - s))
	}})
	pool.Close()
	h.Complete()

	if ran.Load() != 256 {
		t.Errorf("ran = %d after Close, want 256 (queued batches must drain)", ran.Load())
	}
}

func TestWorkerPool_CloseIdempotent(t *testing.T) {
	pool := NewWorkerPool(4)
	pool.Close()
	pool.Close()
	pool.Close()
}

func TestWorkerPool_ScheduleAfterCloseRunsInline(t *testing.T) {
	pool := NewWorkerPool(2)
	pool.Close()

	out := make([]int, 100)
	pool.For(Job{N: len(out), Batch: 16, Run: func(s, e int) {
		for i := s; i < e; i++ {
			out[i] = 1
		}
	}})

	for i, v := range out {
		if v != 1 {
			t.Fatalf("out[%d] = %d, want 1 (job must run to completion)", i, v)
		}
	}
}

// =============================================================================
// Concurrency Tests
// =============================================================================

func TestWorkerPool_ConcurrentSchedulers(t *testing.T) {
	pool := NewWorkerPool(4)
	defer pool.Close()

	var total atomic.Int64
	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			pool.For(Job{N: 1000, Batch: 50, Run: func(s, e int) {
				total.Add(int64(e - s))
			}})
		}()
	}
	wg.Wait()

	if total.Load() != 8000 {
		t.Errorf("total = %d, want 8000", total.Load())
	}
}

func TestWorkerPool_NoGoroutineLeak(t *testing.T) {
	before := runtime.NumGoroutine()

	for range 10 {
		pool := NewWorkerPool(4)
		pool.For(Job{N: 100, Run: func(int, int) {}})
		pool.Close()
	}

	// Give the runtime a moment to reap exited goroutines.
	time.Sleep(50 * time.Millisecond)
	after := runtime.NumGoroutine()

	if after > before+2 {
		t.Errorf("goroutines before=%d after=%d, possible leak", before, after)
	}
}

// =============================================================================
// Benchmarks
// =============================================================================

func BenchmarkWorkerPool_For(b *testing.B) {
	pool := NewWorkerPool(0)
	defer pool.Close()

	out := make([]float32, 256*256)
	job := Job{N: len(out), Batch: 128, Run: func(s, e int) {
		for i := s; i < e; i++ {
			out[i] = float32(i) * 0.5
		}
	}}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		pool.For(job)
	}
}
