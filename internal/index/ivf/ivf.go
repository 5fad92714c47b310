// Package ivf implements the inverted-file index: k-means++ training
// over the inserted vectors, inverted lists per centroid, and an
// unprocessed buffer holding inserts staged since the last build.
package ivf

import (
	"context"
	"log/slog"
	"math"
	"math/rand"
	"runtime"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/driftdb/vectorcore/internal/index"
	"github.com/driftdb/vectorcore/internal/vdberrors"
	"github.com/driftdb/vectorcore/internal/vmath"
)

// ParallelThreshold is the vector-table size above which k-means
// centroid assignment fans out across an errgroup of GOMAXPROCS
// workers during Build.
const ParallelThreshold = 4096

const (
	defaultNProbes   = 1
	defaultMaxIter   = 25
	defaultTolerance = 1e-4
)

type vectorEntry struct {
	id   string
	vec  []float32
	meta map[string]any
}

type location struct {
	list   int // -1 means the entry is in the unprocessed buffer
	offset int
}

// Index is the IVF nearest-neighbor index.
type Index struct {
	mu sync.RWMutex

	nClusters    int
	clusterRatio float64
	nProbes      int
	maxIter      int
	tolerance    float64
	rng          *rand.Rand

	dimension int
	centroids [][]float32
	lists     [][]vectorEntry
	buffer    []vectorEntry
	locations map[string]location
}

// New constructs an empty, untrained IVF index.
func New(params index.Params) *Index {
	nProbes := params.NProbes
	if nProbes <= 0 {
		nProbes = defaultNProbes
	}
	maxIter := params.MaxIter
	if maxIter <= 0 {
		maxIter = defaultMaxIter
	}
	tolerance := params.Tolerance
	if tolerance <= 0 {
		tolerance = defaultTolerance
	}

	return &Index{
		nClusters:    params.NClusters,
		clusterRatio: params.ClusterRatio,
		nProbes:      nProbes,
		maxIter:      maxIter,
		tolerance:    tolerance,
		rng:          rand.New(rand.NewSource(params.Seed)),
		locations:    make(map[string]location),
	}
}

func (idx *Index) Kind() index.Kind { return index.KindIVF }

func (idx *Index) Dimension() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return idx.dimension
}

func (idx *Index) Size() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return len(idx.locations)
}

// Add appends to the unprocessed buffer; the vector is not clustered
// until the next Build.
func (idx *Index) Add(id string, vec []float32, meta map[string]any) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	if idx.dimension == 0 {
		idx.dimension = len(vec)
	} else if len(vec) != idx.dimension {
		return vdberrors.DimensionMismatch(idx.dimension, len(vec))
	}

	if loc, ok := idx.locations[id]; ok {
		idx.removeAt(id, loc)
	}

	idx.buffer = append(idx.buffer, vectorEntry{id: id, vec: vec, meta: meta})
	idx.locations[id] = location{list: -1, offset: len(idx.buffer) - 1}
	return nil
}

func (idx *Index) Update(id string, vec []float32, meta map[string]any) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	loc, ok := idx.locations[id]
	if !ok {
		return vdberrors.NotFound("chunk not found in index: " + id)
	}

	entry := idx.entryAt(loc)
	if vec != nil {
		if len(vec) != idx.dimension {
			return vdberrors.DimensionMismatch(idx.dimension, len(vec))
		}
		entry.vec = vec
	}
	if meta != nil {
		entry.meta = meta
	}

	// Any vector change invalidates the entry's cluster assignment, so
	// move it back to the buffer to be re-clustered at the next Build.
	idx.removeAt(id, loc)
	idx.buffer = append(idx.buffer, entry)
	idx.locations[id] = location{list: -1, offset: len(idx.buffer) - 1}
	return nil
}

func (idx *Index) Remove(id string) {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	loc, ok := idx.locations[id]
	if !ok {
		return
	}
	idx.removeAt(id, loc)
	delete(idx.locations, id)
}

// removeAt deletes the entry at loc via swap-pop from its list or the
// buffer, fixing up the location of whatever entry gets swapped in.
// Caller must hold idx.mu.
func (idx *Index) removeAt(id string, loc location) {
	if loc.list == -1 {
		last := len(idx.buffer) - 1
		idx.buffer[loc.offset] = idx.buffer[last]
		idx.buffer = idx.buffer[:last]
		if loc.offset < len(idx.buffer) {
			idx.locations[idx.buffer[loc.offset].id] = location{list: -1, offset: loc.offset}
		}
		return
	}

	list := idx.lists[loc.list]
	last := len(list) - 1
	list[loc.offset] = list[last]
	idx.lists[loc.list] = list[:last]
	if loc.offset < len(idx.lists[loc.list]) {
		idx.locations[idx.lists[loc.list][loc.offset].id] = location{list: loc.list, offset: loc.offset}
	}
}

func (idx *Index) entryAt(loc location) vectorEntry {
	if loc.list == -1 {
		return idx.buffer[loc.offset]
	}
	return idx.lists[loc.list][loc.offset]
}

// Build retrains centroids over buffer ∪ current lists and reassigns
// every vector to its nearest centroid.
func (idx *Index) Build() error {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	all := idx.allEntries()
	if len(all) == 0 {
		idx.centroids = nil
		idx.lists = nil
		idx.buffer = nil
		return nil
	}

	nClusters := idx.effectiveNClusters(len(all))
	if nClusters <= 0 {
		nClusters = 1
	}

	vectors := make([][]float32, len(all))
	for i, e := range all {
		vectors[i] = e.vec
	}

	centroids, degenerate := idx.kMeansPlusPlus(vectors, nClusters)
	if degenerate {
		slog.Warn("ivf build: degenerate vector set, falling back to single cluster",
			"size", len(all))
		centroids = [][]float32{vmath.Centroid(vectors)}
	}
	centroids = idx.lloyd(vectors, centroids)

	for i := range centroids {
		centroids[i] = vmath.Normalize(centroids[i])
	}

	idx.centroids = centroids
	idx.reassign(all)
	idx.buffer = nil
	return nil
}

func (idx *Index) allEntries() []vectorEntry {
	all := make([]vectorEntry, 0, len(idx.locations))
	all = append(all, idx.buffer...)
	for _, list := range idx.lists {
		all = append(all, list...)
	}
	return all
}

func (idx *Index) effectiveNClusters(size int) int {
	n := idx.nClusters
	if n <= 0 && idx.clusterRatio > 0 {
		n = int(math.Ceil(idx.clusterRatio * float64(size)))
	}
	if n <= 0 {
		n = 1
	}
	if n > size {
		n = size
	}
	return n
}

// kMeansPlusPlus seeds n centroids: the first uniformly at random,
// each subsequent one with probability proportional to squared
// distance to the nearest already-chosen centroid. degenerate is true
// when the vector set has fewer distinct points than n, so the
// remaining centroids had to be filled with duplicates.
func (idx *Index) kMeansPlusPlus(vectors [][]float32, n int) (centroids [][]float32, degenerate bool) {
	if n >= len(vectors) {
		out := make([][]float32, len(vectors))
		for i, v := range vectors {
			out[i] = append([]float32(nil), v...)
		}
		return out, len(vectors) < n
	}

	chosen := make([][]float32, 0, n)
	first := vectors[idx.rng.Intn(len(vectors))]
	chosen = append(chosen, append([]float32(nil), first...))

	distSq := make([]float32, len(vectors))
	for len(chosen) < n {
		var total float64
		for i, v := range vectors {
			best := float32(math.MaxFloat32)
			for _, c := range chosen {
				d := vmath.SquaredEuclideanDistance(v, c)
				if d < best {
					best = d
				}
			}
			distSq[i] = best
			total += float64(best)
		}

		if total == 0 {
			// All remaining vectors coincide with a chosen centroid:
			// the vector set can't support n distinct clusters.
			for len(chosen) < n {
				chosen = append(chosen, append([]float32(nil), vectors[idx.rng.Intn(len(vectors))]...))
			}
			return chosen, true
		}

		target := idx.rng.Float64() * total
		var cum float64
		pick := len(vectors) - 1
		for i, d := range distSq {
			cum += float64(d)
			if cum >= target {
				pick = i
				break
			}
		}
		chosen = append(chosen, append([]float32(nil), vectors[pick]...))
	}

	return chosen, false
}

// lloyd runs Lloyd iterations until maxIter is reached or the total
// centroid shift drops below tolerance. Empty clusters are re-seeded
// to the point farthest from its own centroid.
func (idx *Index) lloyd(vectors [][]float32, centroids [][]float32) [][]float32 {
	n := len(centroids)
	assignments := make([]int, len(vectors))

	for iter := 0; iter < idx.maxIter; iter++ {
		idx.assign(vectors, centroids, assignments)

		members := make([][][]float32, n)
		for i, v := range vectors {
			c := assignments[i]
			members[c] = append(members[c], v)
		}

		var shift float64
		next := make([][]float32, n)
		for c := 0; c < n; c++ {
			if len(members[c]) == 0 {
				next[c] = farthestPoint(vectors, centroids[c])
				shift += math.MaxFloat64 / float64(n) // force another iteration
				continue
			}
			mean := vmath.Centroid(members[c])
			shift += math.Sqrt(float64(vmath.SquaredEuclideanDistance(mean, centroids[c])))
			next[c] = mean
		}

		centroids = next
		if shift < idx.tolerance {
			break
		}
	}

	return centroids
}

func (idx *Index) assign(vectors [][]float32, centroids [][]float32, assignments []int) {
	if len(vectors) >= ParallelThreshold {
		idx.assignParallel(vectors, centroids, assignments)
		return
	}
	for i, v := range vectors {
		assignments[i] = nearestCentroid(v, centroids)
	}
}

func (idx *Index) assignParallel(vectors [][]float32, centroids [][]float32, assignments []int) {
	workers := runtime.GOMAXPROCS(0)
	if workers > len(vectors) {
		workers = len(vectors)
	}
	chunkSize := (len(vectors) + workers - 1) / workers

	g, _ := errgroup.WithContext(context.Background())
	for w := 0; w < workers; w++ {
		start := w * chunkSize
		end := start + chunkSize
		if end > len(vectors) {
			end = len(vectors)
		}
		if start >= end {
			continue
		}
		g.Go(func() error {
			for i := start; i < end; i++ {
				assignments[i] = nearestCentroid(vectors[i], centroids)
			}
			return nil
		})
	}
	_ = g.Wait()
}

func nearestCentroid(v []float32, centroids [][]float32) int {
	best, bestDist := 0, float32(math.MaxFloat32)
	for c, centroid := range centroids {
		d := vmath.SquaredEuclideanDistance(v, centroid)
		if d < bestDist {
			bestDist = d
			best = c
		}
	}
	return best
}

func farthestPoint(vectors [][]float32, from []float32) []float32 {
	best, bestDist := vectors[0], float32(-1)
	for _, v := range vectors {
		d := vmath.SquaredEuclideanDistance(v, from)
		if d > bestDist {
			bestDist = d
			best = v
		}
	}
	out := make([]float32, len(best))
	copy(out, best)
	return out
}

// reassign rebuilds inverted lists from scratch, assigning every
// entry to its nearest centroid. Caller must hold idx.mu.
func (idx *Index) reassign(all []vectorEntry) {
	idx.lists = make([][]vectorEntry, len(idx.centroids))
	for _, e := range all {
		c := nearestCentroid(e.vec, idx.centroids)
		idx.lists[c] = append(idx.lists[c], e)
		idx.locations[e.id] = location{list: c, offset: len(idx.lists[c]) - 1}
	}
}

// Query scores the unprocessed buffer plus either every list (if
// never built) or the nProbes closest centroids' lists.
func (idx *Index) Query(vec []float32, k int) ([]index.Result, error) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	if k <= 0 {
		return nil, nil
	}

	var candidates []vectorEntry
	candidates = append(candidates, idx.buffer...)

	if len(idx.centroids) == 0 {
		for _, list := range idx.lists {
			candidates = append(candidates, list...)
		}
	} else {
		probes := idx.nProbes
		if probes > len(idx.centroids) {
			probes = len(idx.centroids)
		}
		centroidScores := make([]index.Result, len(idx.centroids))
		for i, c := range idx.centroids {
			centroidScores[i] = index.Result{ID: "", Score: vmath.Dot(vec, c)}
		}
		order := make([]int, len(idx.centroids))
		for i := range order {
			order[i] = i
		}
		sort.Slice(order, func(i, j int) bool {
			return centroidScores[order[i]].Score > centroidScores[order[j]].Score
		})
		for _, c := range order[:probes] {
			candidates = append(candidates, idx.lists[c]...)
		}
	}

	results := make([]index.Result, len(candidates))
	for i, e := range candidates {
		results[i] = index.Result{ID: e.id, Score: vmath.Dot(vec, e.vec)}
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].ID < results[j].ID
	})
	if k < len(results) {
		results = results[:k]
	}
	return results, nil
}
