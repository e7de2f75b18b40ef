// Package source implements the random-access vector source contract: the
// abstract size/dimension/get/get_into interface the builder and searcher
// read vectors through, generalized from the teacher's vector.Index
// interface (Dimension, Count, GetAllVectors) and pool.VectorPool's
// dimension-keyed scratch buffers.
package source

import (
	"sync"

	"github.com/gibram-io/vamana/pkg/verrors"
)

// VectorSource is the contract the builder and searcher consume vectors
// through. Implementations must be safe for concurrent Get/GetInto calls
// from multiple goroutines (each call may use its own thread-local scratch
// internally; callers never share a destination buffer across goroutines).
type VectorSource interface {
	Size() int
	Dimension() int
	// Get returns the vector for ord. If IsValueShared reports true, the
	// returned slice may be reused by the source on the next call from the
	// same goroutine; callers needing to retain it must copy.
	Get(ord int) ([]float32, error)
	// GetInto writes the vector for ord into dst[offset:offset+dimension],
	// avoiding an allocation on the batched-compare hot path.
	GetInto(ord int, dst []float32, offset int) error
	IsValueShared() bool
}

// InMemorySource is a VectorSource backed by an ordinal-keyed map of vectors
// held entirely in memory — the common case while a graph is being built, before
// any on-disk feature comes into play.
type InMemorySource struct {
	dimension int
	mu        sync.RWMutex
	vectors   map[int][]float32
}

// NewInMemorySource creates an empty source for vectors of the given
// dimension.
func NewInMemorySource(dimension int) *InMemorySource {
	return &InMemorySource{dimension: dimension, vectors: make(map[int][]float32)}
}

// Put registers (or replaces) the vector for ord. The caller retains
// ownership of vec's backing array is NOT copied — callers must not mutate
// it afterward, matching "vectors are owned by the caller's source" in the
// lifecycle contract.
func (s *InMemorySource) Put(ord int, vec []float32) error {
	if len(vec) != s.dimension {
		return verrors.New(verrors.InvalidArgument, "vector has dimension %d, source expects %d", len(vec), s.dimension)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.vectors[ord] = vec
	return nil
}

func (s *InMemorySource) Size() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.vectors)
}

func (s *InMemorySource) Dimension() int { return s.dimension }

func (s *InMemorySource) Get(ord int) ([]float32, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.vectors[ord]
	if !ok {
		return nil, verrors.New(verrors.OutOfRange, "ordinal %d not present in source", ord)
	}
	return v, nil
}

func (s *InMemorySource) GetInto(ord int, dst []float32, offset int) error {
	v, err := s.Get(ord)
	if err != nil {
		return err
	}
	copy(dst[offset:offset+s.dimension], v)
	return nil
}

func (s *InMemorySource) IsValueShared() bool { return false }

// Copy returns a thread-local duplicate safe for independent concurrent use
// (the underlying map is snapshotted under a read lock, vectors themselves
// are not owned so they are shared by reference).
func (s *InMemorySource) Copy() *InMemorySource {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := NewInMemorySource(s.dimension)
	for k, v := range s.vectors {
		out.vectors[k] = v
	}
	return out
}

// All returns a snapshot of every (ordinal, vector) pair currently present.
func (s *InMemorySource) All() map[int][]float32 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[int][]float32, len(s.vectors))
	for k, v := range s.vectors {
		out[k] = v
	}
	return out
}
