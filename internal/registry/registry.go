// Package registry holds the process-wide identity tables for
// libraries, documents, and chunks. Each table is guarded by its own
// mutex with a short critical section limited to identity and parent
// lookups; all heavier work (index mutation, vector storage) happens
// in internal/coordinator outside these locks.
package registry

import (
	"sync"
	"time"

	"github.com/driftdb/vectorcore/internal/index"
	"github.com/driftdb/vectorcore/internal/vdberrors"
)

// Library is the registry's record of one library's identity and
// configuration. The index instance and vector table live in the
// coordinator, keyed by the same id.
type Library struct {
	ID          string
	Name        string
	IndexKind   index.Kind
	IndexParams index.Params
	CreatedAt   time.Time
	LastBuiltAt time.Time
}

// Document is the registry's record of one document's identity and
// its child chunk set.
type Document struct {
	ID        string
	LibraryID string
	Metadata  map[string]any
	ChunkIDs  map[string]struct{}
}

// Chunk is the registry's record of one chunk's identity and parent
// links. Its text, metadata, and vector live in the coordinator's
// vector table.
type Chunk struct {
	ID         string
	DocumentID string
	LibraryID  string
}

// Libraries is the global library identity table.
type Libraries struct {
	mu    sync.Mutex
	items map[string]*Library
}

func NewLibraries() *Libraries {
	return &Libraries{items: make(map[string]*Library)}
}

func (r *Libraries) Create(lib *Library) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.items[lib.ID]; exists {
		return vdberrors.AlreadyExists("library already exists: " + lib.ID)
	}
	r.items[lib.ID] = lib
	return nil
}

func (r *Libraries) Get(id string) (*Library, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	lib, ok := r.items[id]
	if !ok {
		return nil, vdberrors.NotFound("library not found: " + id)
	}
	return lib, nil
}

func (r *Libraries) Delete(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.items, id)
}

func (r *Libraries) SetLastBuiltAt(id string, at time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if lib, ok := r.items[id]; ok {
		lib.LastBuiltAt = at
	}
}

func (r *Libraries) List() []*Library {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*Library, 0, len(r.items))
	for _, lib := range r.items {
		out = append(out, lib)
	}
	return out
}

// Documents is the global document identity table.
type Documents struct {
	mu    sync.Mutex
	items map[string]*Document
}

func NewDocuments() *Documents {
	return &Documents{items: make(map[string]*Document)}
}

func (r *Documents) Create(doc *Document) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.items[doc.ID]; exists {
		return vdberrors.AlreadyExists("document already exists: " + doc.ID)
	}
	if doc.ChunkIDs == nil {
		doc.ChunkIDs = make(map[string]struct{})
	}
	r.items[doc.ID] = doc
	return nil
}

func (r *Documents) Get(id string) (*Document, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	doc, ok := r.items[id]
	if !ok {
		return nil, vdberrors.NotFound("document not found: " + id)
	}
	return doc, nil
}

func (r *Documents) AddChunk(documentID, chunkID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	doc, ok := r.items[documentID]
	if !ok {
		return vdberrors.NotFound("document not found: " + documentID)
	}
	doc.ChunkIDs[chunkID] = struct{}{}
	return nil
}

func (r *Documents) RemoveChunk(documentID, chunkID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if doc, ok := r.items[documentID]; ok {
		delete(doc.ChunkIDs, chunkID)
	}
}

// Delete removes the document and returns the ids of its child chunks
// so the caller can cascade the delete into the chunk registry.
func (r *Documents) Delete(id string) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	doc, ok := r.items[id]
	if !ok {
		return nil
	}
	chunkIDs := make([]string, 0, len(doc.ChunkIDs))
	for cid := range doc.ChunkIDs {
		chunkIDs = append(chunkIDs, cid)
	}
	delete(r.items, id)
	return chunkIDs
}

// ByLibrary returns every document belonging to libraryID, for
// library-destruction cascade.
func (r *Documents) ByLibrary(libraryID string) []*Document {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*Document
	for _, doc := range r.items {
		if doc.LibraryID == libraryID {
			out = append(out, doc)
		}
	}
	return out
}

// Chunks is the global chunk identity table.
type Chunks struct {
	mu    sync.Mutex
	items map[string]*Chunk
}

func NewChunks() *Chunks {
	return &Chunks{items: make(map[string]*Chunk)}
}

func (r *Chunks) Create(chunk *Chunk) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.items[chunk.ID]; exists {
		return vdberrors.AlreadyExists("chunk already exists: " + chunk.ID)
	}
	r.items[chunk.ID] = chunk
	return nil
}

func (r *Chunks) Get(id string) (*Chunk, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	chunk, ok := r.items[id]
	if !ok {
		return nil, vdberrors.NotFound("chunk not found: " + id)
	}
	return chunk, nil
}

func (r *Chunks) Delete(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.items, id)
}
