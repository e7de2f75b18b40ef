package builder

import (
	"encoding/binary"
	"sync"

	"github.com/cespare/xxhash/v2"

	"github.com/gibram-io/vamana/pkg/neighbor"
)

const shardCount = 64

// shardedNeighborMap is the adjacency table described in spec §5: a
// sharded concurrent map keyed by ordinal, one lock per shard, so updates
// to different nodes' neighbor sets never serialize against each other.
// Shard selection reuses xxhash — the teacher's own checksum library in
// pkg/backup/wal.go — so one hashing dependency covers both jobs.
type shardedNeighborMap struct {
	shards [shardCount]shard
}

type shard struct {
	mu    sync.RWMutex
	nodes map[int]*neighbor.Set
}

func newShardedNeighborMap() *shardedNeighborMap {
	m := &shardedNeighborMap{}
	for i := range m.shards {
		m.shards[i].nodes = make(map[int]*neighbor.Set)
	}
	return m
}

func shardFor(ord int) int {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], uint64(ord))
	return int(xxhash.Sum64(buf[:]) % uint64(shardCount))
}

func (m *shardedNeighborMap) get(ord int) (*neighbor.Set, bool) {
	s := &m.shards[shardFor(ord)]
	s.mu.RLock()
	defer s.mu.RUnlock()
	n, ok := s.nodes[ord]
	return n, ok
}

// getOrCreate returns the existing Set for ord, or installs and returns a
// fresh one sized to maxDegree.
func (m *shardedNeighborMap) getOrCreate(ord, maxDegree int) *neighbor.Set {
	s := &m.shards[shardFor(ord)]
	s.mu.RLock()
	n, ok := s.nodes[ord]
	s.mu.RUnlock()
	if ok {
		return n
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if n, ok = s.nodes[ord]; ok {
		return n
	}
	n = neighbor.NewSet(maxDegree)
	s.nodes[ord] = n
	return n
}

func (m *shardedNeighborMap) delete(ord int) {
	s := &m.shards[shardFor(ord)]
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.nodes, ord)
}

// forEach calls fn for every (ordinal, set) pair. fn must not call back
// into this map for the same shard's ordinals (no nested locking).
func (m *shardedNeighborMap) forEach(fn func(ord int, set *neighbor.Set)) {
	for i := range m.shards {
		m.shards[i].mu.RLock()
		snapshot := make(map[int]*neighbor.Set, len(m.shards[i].nodes))
		for k, v := range m.shards[i].nodes {
			snapshot[k] = v
		}
		m.shards[i].mu.RUnlock()
		for ord, set := range snapshot {
			fn(ord, set)
		}
	}
}

func (m *shardedNeighborMap) count() int {
	total := 0
	for i := range m.shards {
		m.shards[i].mu.RLock()
		total += len(m.shards[i].nodes)
		m.shards[i].mu.RUnlock()
	}
	return total
}
