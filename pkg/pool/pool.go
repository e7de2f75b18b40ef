// Package pool provides sync.Pool-backed reuse for the allocation-heavy
// scratch state of vector scoring and beam search, carried from the
// teacher's dimension-keyed VectorPool/BufferPool and its object-pooling
// idiom generally (NodePool/QueryResultPool pooled teacher-domain
// entity/relationship/community structures that have no place in this
// domain; SearchScratchPool below is the same sync.Pool-of-reusable-state
// idiom retargeted at a Searcher's candidate/result heaps and visited set).
package pool

import (
	"sync"

	"github.com/gibram-io/vamana/pkg/container"
)

// VectorPool manages reusable float32 slices keyed by dimension, for the
// scratch buffers exact/PQ scorers decode into on the hot path.
type VectorPool struct {
	pools map[int]*sync.Pool
	mu    sync.RWMutex
}

func NewVectorPool() *VectorPool {
	return &VectorPool{pools: make(map[int]*sync.Pool)}
}

// Get retrieves a zeroed vector of the given dimension from the pool (or
// allocates a new one).
func (vp *VectorPool) Get(dimension int) []float32 {
	vp.mu.RLock()
	p, ok := vp.pools[dimension]
	vp.mu.RUnlock()

	if !ok {
		vp.mu.Lock()
		p, ok = vp.pools[dimension]
		if !ok {
			p = &sync.Pool{New: func() interface{} {
				v := make([]float32, dimension)
				return &v
			}}
			vp.pools[dimension] = p
		}
		vp.mu.Unlock()
	}

	vecPtr := p.Get().(*[]float32)
	vec := *vecPtr
	for i := range vec {
		vec[i] = 0
	}
	return vec
}

// Put returns a vector to the pool for reuse.
func (vp *VectorPool) Put(vec []float32) {
	dimension := len(vec)
	vp.mu.RLock()
	p, ok := vp.pools[dimension]
	vp.mu.RUnlock()
	if ok {
		v := vec
		p.Put(&v)
	}
}

// BufferPool manages reusable byte slices in three size classes. Neither
// the disk writer nor the reader draws its buffers from it.
type BufferPool struct {
	small  *sync.Pool // < 4KB
	medium *sync.Pool // 4KB - 64KB
	large  *sync.Pool // 64KB - 1MB
}

func NewBufferPool() *BufferPool {
	return &BufferPool{
		small:  &sync.Pool{New: func() interface{} { b := make([]byte, 4*1024); return &b }},
		medium: &sync.Pool{New: func() interface{} { b := make([]byte, 64*1024); return &b }},
		large:  &sync.Pool{New: func() interface{} { b := make([]byte, 1024*1024); return &b }},
	}
}

func (bp *BufferPool) classFor(size int) (*sync.Pool, int) {
	switch {
	case size <= 4*1024:
		return bp.small, 4 * 1024
	case size <= 64*1024:
		return bp.medium, 64 * 1024
	case size <= 1024*1024:
		return bp.large, 1024 * 1024
	default:
		return nil, 0
	}
}

// Get retrieves a buffer of at least size bytes.
func (bp *BufferPool) Get(size int) []byte {
	pool, defaultSize := bp.classFor(size)
	if pool == nil {
		return make([]byte, size)
	}
	bufPtr := pool.Get().(*[]byte)
	buf := *bufPtr
	if len(buf) < size {
		buf = make([]byte, defaultSize)
	}
	return buf[:size]
}

// Put returns a buffer to the pool sized by its capacity.
func (bp *BufferPool) Put(buf []byte) {
	pool, _ := bp.classFor(cap(buf))
	if pool == nil {
		return
	}
	buf = buf[:cap(buf)]
	pool.Put(&buf)
}

// SearchScratch bundles the three per-query allocations a beam search
// needs: the discovered-ordinal set and the candidate/result heaps.
type SearchScratch struct {
	Discovered *container.GrowableBitSet
	Candidates *container.NodeQueue
	Results    *container.NodeQueue
}

// SearchScratchPool pools SearchScratch bundles so a high-QPS searcher
// doesn't allocate a fresh bitset and two heaps on every query.
type SearchScratchPool struct {
	pool sync.Pool
}

func NewSearchScratchPool() *SearchScratchPool {
	return &SearchScratchPool{
		pool: sync.Pool{New: func() interface{} {
			return &SearchScratch{
				Discovered: container.NewGrowableBitSet(),
				Candidates: container.NewNodeQueue(container.MaxHeap, 0),
				Results:    container.NewNodeQueue(container.MaxHeap, 0),
			}
		}},
	}
}

// Get retrieves a reset SearchScratch bundle ready for a new query.
func (sp *SearchScratchPool) Get() *SearchScratch {
	s := sp.pool.Get().(*SearchScratch)
	s.Discovered.Reset()
	s.Candidates.Reset()
	s.Results.Reset()
	return s
}

// Put returns a SearchScratch bundle to the pool.
func (sp *SearchScratchPool) Put(s *SearchScratch) { sp.pool.Put(s) }

// Global pools, shared across callers that don't need isolation.
var (
	DefaultVectorPool        = NewVectorPool()
	DefaultBufferPool        = NewBufferPool()
	DefaultSearchScratchPool = NewSearchScratchPool()
)
