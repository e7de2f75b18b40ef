package source

import (
	"sort"
	"sync"

	"github.com/gibram-io/vamana/pkg/vecmath"
)

// ExactIndex is a brute-force, linear-scan index over a VectorSource —
// ported from the teacher's BruteForceIndex. It returns exact top-K results
// that graph search results can be compared against. It does not implement
// scorer.BuildScoreProvider and is not wired into the builder.
type ExactIndex struct {
	mu        sync.RWMutex
	dimension int
	sim       vecmath.Similarity
	vectors   map[int][]float32
}

// NewExactIndex creates an empty brute-force index.
func NewExactIndex(dimension int, sim vecmath.Similarity) *ExactIndex {
	return &ExactIndex{dimension: dimension, sim: sim, vectors: make(map[int][]float32)}
}

func (e *ExactIndex) Add(ord int, vec []float32) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.vectors[ord] = vec
}

func (e *ExactIndex) Remove(ord int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.vectors, ord)
}

// SearchResult is a single (ordinal, score) hit.
type SearchResult struct {
	Ord   int
	Score float32
}

// Search performs an exhaustive scan, returning the topK highest-scoring
// ordinals sorted by score descending, ties broken by ordinal ascending.
func (e *ExactIndex) Search(query []float32, topK int) []SearchResult {
	e.mu.RLock()
	defer e.mu.RUnlock()

	results := make([]SearchResult, 0, len(e.vectors))
	for ord, v := range e.vectors {
		results = append(results, SearchResult{Ord: ord, Score: vecmath.ScoreOf(e.sim, query, v)})
	}
	sort.Slice(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].Ord < results[j].Ord
	})
	if topK < len(results) {
		results = results[:topK]
	}
	return results
}

func (e *ExactIndex) Count() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.vectors)
}
