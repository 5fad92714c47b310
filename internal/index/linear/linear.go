// Package linear implements a brute-force cosine top-k index: a dense
// list of (id, vector, metadata), scored in full on every query.
package linear

import (
	"context"
	"runtime"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/driftdb/vectorcore/internal/index"
	"github.com/driftdb/vectorcore/internal/vdberrors"
	"github.com/driftdb/vectorcore/internal/vmath"
)

// ParallelThreshold is the table size above which Query fans scoring
// out across GOMAXPROCS shards via errgroup, rather than scanning
// sequentially.
const ParallelThreshold = 2048

type entry struct {
	id   string
	vec  []float32
	meta map[string]any
}

// Index is the brute-force linear index.
type Index struct {
	mu                sync.Mutex
	entries           []entry
	byID              map[string]int
	dimension         int
	parallelThreshold int
	shards            int
}

// New constructs an empty linear Index. params is accepted for
// interface-uniformity with the other kinds; linear has no tunables.
func New(params index.Params) *Index {
	return newWithShards(runtime.GOMAXPROCS(0))
}

// newWithShards is the test seam for controlling shard fan-out
// without depending on the host's GOMAXPROCS.
func newWithShards(shards int) *Index {
	if shards < 1 {
		shards = 1
	}
	return &Index{
		byID:              make(map[string]int),
		parallelThreshold: ParallelThreshold,
		shards:            shards,
	}
}

func (l *Index) Kind() index.Kind { return index.KindLinear }

func (l *Index) Dimension() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.dimension
}

func (l *Index) Size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

func (l *Index) Add(id string, vec []float32, meta map[string]any) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.dimension == 0 {
		l.dimension = len(vec)
	} else if len(vec) != l.dimension {
		return vdberrors.DimensionMismatch(l.dimension, len(vec))
	}

	if idx, ok := l.byID[id]; ok {
		l.entries[idx] = entry{id: id, vec: vec, meta: meta}
		return nil
	}

	l.byID[id] = len(l.entries)
	l.entries = append(l.entries, entry{id: id, vec: vec, meta: meta})
	return nil
}

func (l *Index) Update(id string, vec []float32, meta map[string]any) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	idx, ok := l.byID[id]
	if !ok {
		return vdberrors.NotFound("chunk not found in index: " + id)
	}

	e := l.entries[idx]
	if vec != nil {
		if len(vec) != l.dimension {
			return vdberrors.DimensionMismatch(l.dimension, len(vec))
		}
		e.vec = vec
	}
	if meta != nil {
		e.meta = meta
	}
	l.entries[idx] = e
	return nil
}

// Remove deletes id by swap-pop: the last entry moves into the freed
// slot and its index-map entry is updated, so removal is O(1).
func (l *Index) Remove(id string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	idx, ok := l.byID[id]
	if !ok {
		return
	}

	last := len(l.entries) - 1
	l.entries[idx] = l.entries[last]
	l.byID[l.entries[idx].id] = idx
	l.entries = l.entries[:last]
	delete(l.byID, id)
}

// Build is a no-op: the linear index is always queryable as-is.
func (l *Index) Build() error { return nil }

func (l *Index) Query(vec []float32, k int) ([]index.Result, error) {
	l.mu.Lock()
	entries := make([]entry, len(l.entries))
	copy(entries, l.entries)
	l.mu.Unlock()

	if k <= 0 || len(entries) == 0 {
		return nil, nil
	}

	var results []index.Result
	if len(entries) >= l.parallelThreshold && l.shards > 1 {
		var err error
		results, err = l.scoreParallel(entries, vec)
		if err != nil {
			return nil, err
		}
	} else {
		results = scoreShard(entries, vec)
	}

	sortResults(results)
	if k < len(results) {
		results = results[:k]
	}
	return results, nil
}

// scoreParallel splits entries into shards scored concurrently with
// errgroup, then merges the per-shard results.
func (l *Index) scoreParallel(entries []entry, vec []float32) ([]index.Result, error) {
	shardCount := l.shards
	if shardCount > len(entries) {
		shardCount = len(entries)
	}
	chunkSize := (len(entries) + shardCount - 1) / shardCount

	partials := make([][]index.Result, shardCount)
	g, _ := errgroup.WithContext(context.Background())

	for s := 0; s < shardCount; s++ {
		s := s
		start := s * chunkSize
		end := start + chunkSize
		if end > len(entries) {
			end = len(entries)
		}
		if start >= end {
			continue
		}
		g.Go(func() error {
			partials[s] = scoreShard(entries[start:end], vec)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	var merged []index.Result
	for _, p := range partials {
		merged = append(merged, p...)
	}
	return merged, nil
}

func scoreShard(entries []entry, vec []float32) []index.Result {
	out := make([]index.Result, len(entries))
	for i, e := range entries {
		out[i] = index.Result{ID: e.id, Score: vmath.Dot(vec, e.vec)}
	}
	return out
}

// sortResults orders by descending score, ties broken by ascending id.
func sortResults(results []index.Result) {
	sort.Slice(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].ID < results[j].ID
	})
}
