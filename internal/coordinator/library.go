// Package coordinator owns one index instance and vector table per
// library, routes chunk CRUD to the index, and orchestrates search
// with over-fetch and post-filtering. It is also where the Index
// factory keyed on index kind lives: internal/index cannot import
// internal/index/{linear,ivf,nsw} itself without an import cycle,
// since those packages import internal/index for the shared
// interface, so the factory lives here instead.
package coordinator

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/driftdb/vectorcore/internal/embed"
	"github.com/driftdb/vectorcore/internal/filter"
	"github.com/driftdb/vectorcore/internal/ids"
	"github.com/driftdb/vectorcore/internal/index"
	"github.com/driftdb/vectorcore/internal/index/ivf"
	"github.com/driftdb/vectorcore/internal/index/linear"
	"github.com/driftdb/vectorcore/internal/index/nsw"
	"github.com/driftdb/vectorcore/internal/registry"
	"github.com/driftdb/vectorcore/internal/vdberrors"
	"github.com/driftdb/vectorcore/internal/vmath"
)

// NewIndex builds an Index of the given kind. It is the sole place in
// the module that knows about all three implementation packages.
func NewIndex(kind index.Kind, params index.Params) (index.Index, error) {
	switch kind {
	case index.KindLinear:
		return linear.New(params), nil
	case index.KindIVF:
		return ivf.New(params), nil
	case index.KindNSW:
		return nsw.New(params), nil
	default:
		return nil, vdberrors.InvalidRequest("unknown index kind: " + string(kind))
	}
}

// vectorEntry is one row of a library's vector table: the chunk's
// current unit vector and the metadata snapshot filters see.
type vectorEntry struct {
	text string
	vec  []float32
	meta map[string]any
}

// library bundles one library's index, vector table, and the
// readers-writer lock that serializes access to them. Read operations
// (search) take the shared lock; write operations (add/update/remove/
// build) take the exclusive lock.
type library struct {
	mu     sync.RWMutex
	idx    index.Index
	vec    map[string]*vectorEntry
	dim    int
	kind   index.Kind
	params index.Params
}

// Coordinator is the library-scoped core: it owns every library's
// index and vector table and is the only thing that calls into the
// index packages.
type Coordinator struct {
	libs      *registry.Libraries
	documents *registry.Documents
	chunks    *registry.Chunks
	embedder  embed.Embedder

	mu        sync.Mutex
	libraries map[string]*library
}

func New(libs *registry.Libraries, documents *registry.Documents, chunks *registry.Chunks, embedder embed.Embedder) *Coordinator {
	return &Coordinator{
		libs:      libs,
		documents: documents,
		chunks:    chunks,
		embedder:  embedder,
		libraries: make(map[string]*library),
	}
}

// CreateLibrary registers a new, empty library with the given index
// kind and params.
func (c *Coordinator) CreateLibrary(name string, kind index.Kind, params index.Params) (string, error) {
	idx, err := NewIndex(kind, params)
	if err != nil {
		return "", err
	}

	id := ids.New()
	if err := c.libs.Create(&registry.Library{
		ID:          id,
		Name:        name,
		IndexKind:   kind,
		IndexParams: params,
		CreatedAt:   time.Now(),
	}); err != nil {
		return "", err
	}

	c.mu.Lock()
	c.libraries[id] = &library{
		idx:    idx,
		vec:    make(map[string]*vectorEntry),
		kind:   kind,
		params: params,
	}
	c.mu.Unlock()

	return id, nil
}

// DestroyLibrary deletes a library and every document/chunk beneath
// it. The index and vector table disappear with it.
func (c *Coordinator) DestroyLibrary(libraryID string) error {
	if _, err := c.libs.Get(libraryID); err != nil {
		return err
	}

	for _, doc := range c.documents.ByLibrary(libraryID) {
		for _, chunkID := range c.documents.Delete(doc.ID) {
			c.chunks.Delete(chunkID)
		}
	}

	c.libs.Delete(libraryID)

	c.mu.Lock()
	delete(c.libraries, libraryID)
	c.mu.Unlock()
	return nil
}

func (c *Coordinator) libraryState(libraryID string) (*library, error) {
	c.mu.Lock()
	lib, ok := c.libraries[libraryID]
	c.mu.Unlock()
	if !ok {
		return nil, vdberrors.NotFound("library not found: " + libraryID)
	}
	return lib, nil
}

// ChunkInput is the caller-supplied payload for a new or updated
// chunk.
type ChunkInput struct {
	DocumentID string
	Text       string
	Metadata   map[string]any
}

// AddChunk resolves or auto-creates the parent document, embeds the
// text outside any lock, then validates dimension and links the
// vector into the index under the library's exclusive lock.
func (c *Coordinator) AddChunk(ctx context.Context, libraryID string, in ChunkInput) (string, error) {
	lib, err := c.libraryState(libraryID)
	if err != nil {
		return "", err
	}

	documentID := in.DocumentID
	if documentID == "" {
		documentID = ids.New()
		if err := c.documents.Create(&registry.Document{ID: documentID, LibraryID: libraryID}); err != nil {
			return "", err
		}
	} else if _, err := c.documents.Get(documentID); err != nil {
		return "", err
	}

	vec, err := c.embedAndNormalize(ctx, in.Text)
	if err != nil {
		return "", err
	}

	chunkID := ids.New()

	lib.mu.Lock()
	if lib.dim == 0 {
		lib.dim = len(vec)
	} else if len(vec) != lib.dim {
		lib.mu.Unlock()
		return "", vdberrors.DimensionMismatch(lib.dim, len(vec))
	}
	if err := lib.idx.Add(chunkID, vec, in.Metadata); err != nil {
		lib.mu.Unlock()
		return "", err
	}
	lib.vec[chunkID] = &vectorEntry{text: in.Text, vec: vec, meta: in.Metadata}
	lib.mu.Unlock()

	if err := c.chunks.Create(&registry.Chunk{ID: chunkID, DocumentID: documentID, LibraryID: libraryID}); err != nil {
		return "", err
	}
	if err := c.documents.AddChunk(documentID, chunkID); err != nil {
		return "", err
	}

	return chunkID, nil
}

// ChunkUpdate carries the optional fields of an update_chunk call;
// nil/empty means "leave unchanged".
type ChunkUpdate struct {
	Text     *string
	Metadata map[string]any
}

// UpdateChunk re-embeds if text changed, then re-links the chunk in
// the index.
func (c *Coordinator) UpdateChunk(ctx context.Context, libraryID, chunkID string, upd ChunkUpdate) error {
	lib, err := c.libraryState(libraryID)
	if err != nil {
		return err
	}

	var vec []float32
	var newText string
	if upd.Text != nil {
		v, err := c.embedAndNormalize(ctx, *upd.Text)
		if err != nil {
			return err
		}
		vec = v
		newText = *upd.Text
	}

	lib.mu.Lock()
	defer lib.mu.Unlock()

	entry, ok := lib.vec[chunkID]
	if !ok {
		return vdberrors.NotFound("chunk not found in library: " + chunkID)
	}

	if vec != nil && len(vec) != lib.dim {
		return vdberrors.DimensionMismatch(lib.dim, len(vec))
	}

	if err := lib.idx.Update(chunkID, vec, upd.Metadata); err != nil {
		return err
	}

	if vec != nil {
		entry.vec = vec
		entry.text = newText
	}
	if upd.Metadata != nil {
		entry.meta = upd.Metadata
	}
	return nil
}

// RemoveChunk drops the chunk from the index, the vector table, and
// its parent document's child set. Unknown ids are no-ops.
func (c *Coordinator) RemoveChunk(libraryID, chunkID string) error {
	lib, err := c.libraryState(libraryID)
	if err != nil {
		return err
	}

	lib.mu.Lock()
	lib.idx.Remove(chunkID)
	delete(lib.vec, chunkID)
	lib.mu.Unlock()

	chunk, err := c.chunks.Get(chunkID)
	if err != nil {
		return nil
	}
	c.documents.RemoveChunk(chunk.DocumentID, chunkID)
	c.chunks.Delete(chunkID)
	return nil
}

// BuildIndex consolidates the index and stamps last_built_at.
func (c *Coordinator) BuildIndex(libraryID string) error {
	lib, err := c.libraryState(libraryID)
	if err != nil {
		return err
	}

	lib.mu.Lock()
	err = lib.idx.Build()
	lib.mu.Unlock()
	if err != nil {
		return err
	}

	c.libs.SetLastBuiltAt(libraryID, time.Now())
	return nil
}

// SearchResult is one accepted hit, carrying the chunk snapshot seen
// by the filter plus its index score.
type SearchResult struct {
	ChunkID    string
	DocumentID string
	Text       string
	Metadata   map[string]any
	Score      float32
}

const (
	defaultMultiplier  = 10
	noFilterMultiplier = 1
	maxExpansions      = 3
)

// Search embeds the query outside the lock, then runs the over-fetch
// and bounded-retry pipeline from the coordinator's search contract:
// compile the filter, decide the initial multiplier, query the index
// for k*multiplier candidates, stream them through the filter in
// score order, and double the multiplier (up to maxExpansions times)
// if too few survive and the index has more to give.
func (c *Coordinator) Search(ctx context.Context, libraryID, query string, k int, filterSpec filter.Spec) ([]SearchResult, error) {
	if k <= 0 {
		return nil, vdberrors.InvalidRequest("k must be positive")
	}

	lib, err := c.libraryState(libraryID)
	if err != nil {
		return nil, err
	}

	predicate, err := filter.Compile(filterSpec)
	if err != nil {
		return nil, err
	}

	vec, err := c.embedAndNormalize(ctx, query)
	if err != nil {
		return nil, err
	}

	multiplier := noFilterMultiplier
	if len(filterSpec) > 0 {
		multiplier = defaultMultiplier
	}

	lib.mu.RLock()
	defer lib.mu.RUnlock()

	size := lib.idx.Size()
	for expansion := 0; ; expansion++ {
		kEffective := k * multiplier
		if kEffective > size {
			kEffective = size
		}

		candidates, err := lib.idx.Query(vec, kEffective)
		if err != nil {
			return nil, err
		}

		accepted := c.acceptCandidates(candidates, lib, predicate, k)

		if len(accepted) >= k || kEffective >= size || expansion >= maxExpansions {
			if len(accepted) < k {
				slog.Debug("search: filter saturated before reaching k",
					"library_id", libraryID, "k", k, "accepted", len(accepted))
			}
			return accepted, nil
		}
		multiplier *= 2
	}
}

func (c *Coordinator) acceptCandidates(candidates []index.Result, lib *library, predicate filter.Predicate, k int) []SearchResult {
	accepted := make([]SearchResult, 0, k)
	for _, cand := range candidates {
		if len(accepted) >= k {
			break
		}
		entry, ok := lib.vec[cand.ID]
		if !ok {
			continue
		}
		if !predicate(filter.MetadataFromAny(entry.meta)) {
			continue
		}
		chunkID := cand.ID
		documentID := ""
		if chunk, err := c.chunks.Get(chunkID); err == nil {
			documentID = chunk.DocumentID
		}
		accepted = append(accepted, SearchResult{
			ChunkID:    chunkID,
			DocumentID: documentID,
			Text:       entry.text,
			Metadata:   entry.meta,
			Score:      cand.Score,
		})
	}
	return accepted
}

// embedAndNormalize calls the Embedder and normalizes the result.
// Never called while holding a library lock.
func (c *Coordinator) embedAndNormalize(ctx context.Context, text string) ([]float32, error) {
	vec, err := c.embedder.Embed(ctx, text)
	if err != nil {
		return nil, vdberrors.EmbeddingFailure(err)
	}
	normalized := vmath.Normalize(vec)
	zero := true
	for _, x := range normalized {
		if x != 0 {
			zero = false
			break
		}
	}
	if zero {
		return nil, vdberrors.InvalidVector("embedder returned a zero-norm vector")
	}
	return normalized, nil
}
