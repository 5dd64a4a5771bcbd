// Package compute runs data-parallel kernels over thread-groups on a
// persistent worker pool, and hosts the trail decay devices.
package compute

import (
	"errors"
	"runtime"
	"sync"
)

// ErrClosed is returned when dispatching on a pool that has been closed.
var ErrClosed = errors.New("compute: pool closed")

// defaultParallelThreshold is the minimum group count to use the workers.
// Below this, running inline is faster than the channel round trip.
const defaultParallelThreshold = 64

// Kernel processes one thread-group. gx and gy are the group coordinates in
// the dispatch grid; one-dimensional dispatches always pass gy = 0.
// A kernel must not touch state owned by another group.
type Kernel func(gx, gy int)

// workChunk represents a range of flattened group indices for a worker.
type workChunk struct {
	start, end int
	groupsX    int
	kernel     Kernel
}

// Pool holds persistent worker goroutines that execute kernels.
type Pool struct {
	numWorkers int
	threshold  int

	// Worker pool channels
	workChan chan workChunk // sends work to workers
	doneChan chan struct{}  // workers signal completion
	stopChan chan struct{}  // signals workers to exit
	wg       sync.WaitGroup // tracks active workers
	running  bool           // true if workers are running
	closed   bool
}

// NewPool creates a pool with the given worker count (<= 0 uses GOMAXPROCS).
// Workers are started lazily by the first parallel dispatch.
func NewPool(workers, parallelThreshold int) *Pool {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	if parallelThreshold <= 0 {
		parallelThreshold = defaultParallelThreshold
	}
	return &Pool{
		numWorkers: workers,
		threshold:  parallelThreshold,
	}
}

// Workers returns the number of worker goroutines the pool uses.
func (p *Pool) Workers() int { return p.numWorkers }

// startWorkers launches persistent worker goroutines.
func (p *Pool) startWorkers() {
	if p.running {
		return
	}

	p.workChan = make(chan workChunk, p.numWorkers)
	p.doneChan = make(chan struct{}, p.numWorkers)
	p.stopChan = make(chan struct{})
	p.running = true

	for i := 0; i < p.numWorkers; i++ {
		p.wg.Add(1)
		go p.worker()
	}
}

// worker runs in a goroutine, processing chunks until stopped.
func (p *Pool) worker() {
	defer p.wg.Done()

	for {
		select {
		case <-p.stopChan:
			return
		case chunk, ok := <-p.workChan:
			if !ok {
				return
			}
			runChunk(chunk)
			p.doneChan <- struct{}{}
		}
	}
}

func runChunk(c workChunk) {
	for i := c.start; i < c.end; i++ {
		c.kernel(i%c.groupsX, i/c.groupsX)
	}
}

// Dispatch runs kernel once for every group in a groupsX x groupsY grid and
// returns after all of them completed. Dispatch is the completion barrier
// between stages; it must not be called concurrently on the same pool.
func (p *Pool) Dispatch(groupsX, groupsY int, kernel Kernel) error {
	if p.closed {
		return ErrClosed
	}
	n := groupsX * groupsY
	if n <= 0 {
		return nil
	}

	// Single-threaded for small dispatches
	if n < p.threshold || p.numWorkers == 1 {
		runChunk(workChunk{start: 0, end: n, groupsX: groupsX, kernel: kernel})
		return nil
	}

	if !p.running {
		p.startWorkers()
	}

	chunkSize := (n + p.numWorkers - 1) / p.numWorkers

	chunksDispatched := 0
	for w := 0; w < p.numWorkers; w++ {
		start := w * chunkSize
		end := start + chunkSize
		if end > n {
			end = n
		}
		if start >= end {
			continue
		}

		p.workChan <- workChunk{start: start, end: end, groupsX: groupsX, kernel: kernel}
		chunksDispatched++
	}

	// Wait for all chunks to complete
	for i := 0; i < chunksDispatched; i++ {
		<-p.doneChan
	}
	return nil
}

// Close stops the workers. It is safe to call more than once.
func (p *Pool) Close() {
	if p.closed {
		return
	}
	p.closed = true
	if !p.running {
		return
	}

	close(p.stopChan)
	p.wg.Wait()
	close(p.workChan)
	close(p.doneChan)
	p.running = false
}
