// Package nsw implements an incremental navigable small-world graph:
// beam-search insert and query, with heuristic neighbor selection that
// prunes redundant same-cluster links to preserve graph diversity.
package nsw

import (
	"container/heap"
	"sort"
	"sync"

	"github.com/driftdb/vectorcore/internal/index"
	"github.com/driftdb/vectorcore/internal/vdberrors"
	"github.com/driftdb/vectorcore/internal/vmath"
)

const (
	defaultM              = 16
	defaultEfConstruction = 100
	defaultEfSearch       = 50
)

type neighbor struct {
	id    string
	score float32
}

type node struct {
	id   string
	vec  []float32
	meta map[string]any
	adj  []neighbor
}

// Index is the incremental NSW graph.
type Index struct {
	mu sync.RWMutex

	m              int
	efConstruction int
	efSearch       int

	dimension  int
	nodes      map[string]*node
	entryPoint string
}

// New constructs an empty NSW graph.
func New(params index.Params) *Index {
	m := params.M
	if m <= 0 {
		m = defaultM
	}
	efConstruction := params.EfConstruction
	if efConstruction <= 0 {
		efConstruction = defaultEfConstruction
	}
	efSearch := params.EfSearch
	if efSearch <= 0 {
		efSearch = defaultEfSearch
	}

	return &Index{
		m:              m,
		efConstruction: efConstruction,
		efSearch:       efSearch,
		nodes:          make(map[string]*node),
	}
}

func (idx *Index) Kind() index.Kind { return index.KindNSW }

func (idx *Index) Dimension() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return idx.dimension
}

func (idx *Index) Size() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return len(idx.nodes)
}

// Build is a no-op: the graph stays consistent after every insert.
func (idx *Index) Build() error { return nil }

func (idx *Index) Add(id string, vec []float32, meta map[string]any) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	if idx.dimension == 0 {
		idx.dimension = len(vec)
	} else if len(vec) != idx.dimension {
		return vdberrors.DimensionMismatch(idx.dimension, len(vec))
	}

	if _, exists := idx.nodes[id]; exists {
		idx.removeLocked(id)
	}

	idx.insertLocked(id, vec, meta)
	return nil
}

// insertLocked runs the beam-search-and-heuristic-select insert
// algorithm. Caller must hold idx.mu for writing.
func (idx *Index) insertLocked(id string, vec []float32, meta map[string]any) {
	n := &node{id: id, vec: vec, meta: meta}
	idx.nodes[id] = n

	if idx.entryPoint == "" {
		idx.entryPoint = id
		return
	}

	candidates := idx.beamSearchLocked(vec, idx.efConstruction, id)
	selected := selectHeuristic(candidates, idx.nodes, vec, idx.m)

	for _, c := range selected {
		idx.linkLocked(id, c.id, c.score)
	}
}

// linkLocked adds a bidirectional edge between a and b, re-trimming
// either side's adjacency list back to m neighbors via the same
// heuristic if it overflows.
func (idx *Index) linkLocked(a, b string, score float32) {
	na, nb := idx.nodes[a], idx.nodes[b]
	na.adj = append(na.adj, neighbor{id: b, score: score})
	nb.adj = append(nb.adj, neighbor{id: a, score: score})

	if len(na.adj) > idx.m {
		idx.trimLocked(na)
	}
	if len(nb.adj) > idx.m {
		idx.trimLocked(nb)
	}
}

func (idx *Index) trimLocked(n *node) {
	candidates := make([]index.Result, len(n.adj))
	for i, e := range n.adj {
		candidates[i] = index.Result{ID: e.id, Score: e.score}
	}
	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].Score != candidates[j].Score {
			return candidates[i].Score > candidates[j].Score
		}
		return candidates[i].ID < candidates[j].ID
	})

	selected := selectHeuristic(candidates, idx.nodes, n.vec, idx.m)
	n.adj = n.adj[:0]
	for _, s := range selected {
		n.adj = append(n.adj, neighbor{id: s.ID, score: s.Score})
	}
}

// selectHeuristic walks candidates in descending similarity, keeping
// at most m. A candidate is accepted only if it is closer to the
// query vector than to every already-accepted neighbor, which prunes
// redundant same-cluster links.
func selectHeuristic(candidates []index.Result, nodes map[string]*node, vec []float32, m int) []index.Result {
	selected := make([]index.Result, 0, m)
	for _, c := range candidates {
		if len(selected) >= m {
			break
		}
		cNode, ok := nodes[c.ID]
		if !ok {
			continue
		}
		accept := true
		for _, s := range selected {
			sNode := nodes[s.ID]
			if vmath.Dot(cNode.vec, sNode.vec) >= c.Score {
				accept = false
				break
			}
		}
		if accept {
			selected = append(selected, c)
		}
	}
	return selected
}

func (idx *Index) Update(id string, vec []float32, meta map[string]any) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	n, ok := idx.nodes[id]
	if !ok {
		return vdberrors.NotFound("chunk not found in index: " + id)
	}

	if vec == nil {
		if meta != nil {
			n.meta = meta
		}
		return nil
	}

	if len(vec) != idx.dimension {
		return vdberrors.DimensionMismatch(idx.dimension, len(vec))
	}

	newMeta := meta
	if newMeta == nil {
		newMeta = n.meta
	}
	idx.removeLocked(id)
	idx.insertLocked(id, vec, newMeta)
	return nil
}

func (idx *Index) Remove(id string) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	idx.removeLocked(id)
}

// removeLocked deletes the node and every back-edge pointing to it.
// If id was the entry point, the new entry point is deterministically
// the smallest remaining id. Caller must hold idx.mu.
func (idx *Index) removeLocked(id string) {
	n, ok := idx.nodes[id]
	if !ok {
		return
	}

	// Trimming can leave one-way edges, so every node is checked rather
	// than only the removed node's own neighbors.
	for otherID, neighborNode := range idx.nodes {
		if otherID == n.id {
			continue
		}
		filtered := neighborNode.adj[:0]
		for _, back := range neighborNode.adj {
			if back.id != id {
				filtered = append(filtered, back)
			}
		}
		neighborNode.adj = filtered
	}

	delete(idx.nodes, id)

	if idx.entryPoint == id {
		idx.entryPoint = ""
		smallest := ""
		for candidate := range idx.nodes {
			if smallest == "" || candidate < smallest {
				smallest = candidate
			}
		}
		idx.entryPoint = smallest
	}
}

func (idx *Index) Query(vec []float32, k int) ([]index.Result, error) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	if k <= 0 || len(idx.nodes) == 0 {
		return nil, nil
	}

	results := idx.beamSearchLocked(vec, idx.efSearch, "")
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

// candidateHeap is a max-heap ordered by descending score, used as
// the exploration frontier during beam search.
type candidateHeap []index.Result

func (h candidateHeap) Len() int { return len(h) }
func (h candidateHeap) Less(i, j int) bool {
	if h[i].Score != h[j].Score {
		return h[i].Score > h[j].Score
	}
	return h[i].ID < h[j].ID
}
func (h candidateHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *candidateHeap) Push(x interface{}) { *h = append(*h, x.(index.Result)) }
func (h *candidateHeap) Pop() interface{} {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

// worstHeap is a min-heap ordered by ascending score, tracking the
// worst of the current best-so-far set for the stopping condition.
type worstHeap []index.Result

func (h worstHeap) Len() int { return len(h) }
func (h worstHeap) Less(i, j int) bool {
	if h[i].Score != h[j].Score {
		return h[i].Score < h[j].Score
	}
	return h[i].ID > h[j].ID
}
func (h worstHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *worstHeap) Push(x interface{}) { *h = append(*h, x.(index.Result)) }
func (h *worstHeap) Pop() interface{} {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

// beamSearchLocked explores the graph from the entry point, keeping a
// frontier of up to breadth candidates. excludeID is omitted from the
// results (used during insert so a node never becomes its own
// neighbor). Caller must hold idx.mu (read or write).
func (idx *Index) beamSearchLocked(vec []float32, breadth int, excludeID string) []index.Result {
	if idx.entryPoint == "" {
		return nil
	}

	visited := map[string]bool{idx.entryPoint: true}
	entryScore := vmath.Dot(vec, idx.nodes[idx.entryPoint].vec)

	toExplore := &candidateHeap{{ID: idx.entryPoint, Score: entryScore}}
	heap.Init(toExplore)

	best := &worstHeap{}
	if idx.entryPoint != excludeID {
		heap.Push(best, index.Result{ID: idx.entryPoint, Score: entryScore})
	}

	for toExplore.Len() > 0 {
		current := heap.Pop(toExplore).(index.Result)

		if best.Len() >= breadth {
			worst := (*best)[0]
			if current.Score < worst.Score {
				break
			}
		}

		currentNode := idx.nodes[current.ID]
		for _, e := range currentNode.adj {
			if visited[e.id] {
				continue
			}
			visited[e.id] = true

			neighborNode, ok := idx.nodes[e.id]
			if !ok {
				continue
			}
			score := vmath.Dot(vec, neighborNode.vec)
			heap.Push(toExplore, index.Result{ID: e.id, Score: score})

			if e.id == excludeID {
				continue
			}
			if best.Len() < breadth {
				heap.Push(best, index.Result{ID: e.id, Score: score})
			} else if score > (*best)[0].Score {
				heap.Pop(best)
				heap.Push(best, index.Result{ID: e.id, Score: score})
			}
		}
	}

	out := make([]index.Result, best.Len())
	copy(out, *best)
	sort.Slice(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].ID < out[j].ID
	})
	return out
}
