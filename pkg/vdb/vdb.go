// Package vdb is the typed command surface vectorcore exposes to its
// callers: library, document, chunk, index, and search commands. An
// HTTP layer, CLI, or test harness drives the core entirely through
// this package; vectorcore itself never depends on net/http.
package vdb

import (
	"context"
	"time"

	"github.com/driftdb/vectorcore/internal/coordinator"
	"github.com/driftdb/vectorcore/internal/embed"
	"github.com/driftdb/vectorcore/internal/filter"
	"github.com/driftdb/vectorcore/internal/ids"
	"github.com/driftdb/vectorcore/internal/index"
	"github.com/driftdb/vectorcore/internal/registry"
	"github.com/driftdb/vectorcore/internal/vdberrors"
)

// DB is the entry point: one process-wide set of registries plus the
// coordinator that routes commands to per-library indexes.
type DB struct {
	libs        *registry.Libraries
	documents   *registry.Documents
	chunks      *registry.Chunks
	coordinator *coordinator.Coordinator
}

// New constructs a DB backed by embedder for turning chunk/query text
// into vectors.
func New(embedder embed.Embedder) *DB {
	libs := registry.NewLibraries()
	documents := registry.NewDocuments()
	chunks := registry.NewChunks()
	return &DB{
		libs:        libs,
		documents:   documents,
		chunks:      chunks,
		coordinator: coordinator.New(libs, documents, chunks, embedder),
	}
}

// Library is the public view of a library's identity and config.
type Library struct {
	ID          string
	Name        string
	IndexKind   string
	IndexParams index.Params
	CreatedAt   time.Time
	LastBuiltAt time.Time
}

func fromRegistryLibrary(l *registry.Library) Library {
	return Library{
		ID:          l.ID,
		Name:        l.Name,
		IndexKind:   string(l.IndexKind),
		IndexParams: l.IndexParams,
		CreatedAt:   l.CreatedAt,
		LastBuiltAt: l.LastBuiltAt,
	}
}

// CreateLibrary creates a library of the given name and index kind.
// indexKind must be one of "linear", "ivf", "nsw".
func (db *DB) CreateLibrary(name string, indexKind string, params index.Params) (Library, error) {
	kind := index.Kind(indexKind)
	switch kind {
	case index.KindLinear, index.KindIVF, index.KindNSW:
	default:
		return Library{}, vdberrors.InvalidRequest("unknown index_kind: " + indexKind)
	}

	id, err := db.coordinator.CreateLibrary(name, kind, params)
	if err != nil {
		return Library{}, err
	}
	lib, err := db.libs.Get(id)
	if err != nil {
		return Library{}, err
	}
	return fromRegistryLibrary(lib), nil
}

func (db *DB) GetLibrary(id string) (Library, error) {
	lib, err := db.libs.Get(id)
	if err != nil {
		return Library{}, err
	}
	return fromRegistryLibrary(lib), nil
}

func (db *DB) ListLibraries() []Library {
	raw := db.libs.List()
	out := make([]Library, len(raw))
	for i, l := range raw {
		out[i] = fromRegistryLibrary(l)
	}
	return out
}

// UpdateLibrary renames a library in place. name is ignored if empty.
func (db *DB) UpdateLibrary(id string, name string) (Library, error) {
	lib, err := db.libs.Get(id)
	if err != nil {
		return Library{}, err
	}
	if name != "" {
		lib.Name = name
	}
	return fromRegistryLibrary(lib), nil
}

// DeleteLibrary destroys a library and every document/chunk beneath it.
func (db *DB) DeleteLibrary(id string) error {
	return db.coordinator.DestroyLibrary(id)
}

// Document is the public view of a document.
type Document struct {
	ID        string
	LibraryID string
	Metadata  map[string]any
	ChunkIDs  []string
}

func fromRegistryDocument(d *registry.Document) Document {
	chunkIDs := make([]string, 0, len(d.ChunkIDs))
	for id := range d.ChunkIDs {
		chunkIDs = append(chunkIDs, id)
	}
	return Document{ID: d.ID, LibraryID: d.LibraryID, Metadata: d.Metadata, ChunkIDs: chunkIDs}
}

// CreateDocument creates an empty document under libraryID.
func (db *DB) CreateDocument(libraryID string, metadata map[string]any) (Document, error) {
	if _, err := db.libs.Get(libraryID); err != nil {
		return Document{}, err
	}
	doc := &registry.Document{ID: ids.New(), LibraryID: libraryID, Metadata: metadata}
	if err := db.documents.Create(doc); err != nil {
		return Document{}, err
	}
	return fromRegistryDocument(doc), nil
}

func (db *DB) GetDocument(id string) (Document, error) {
	doc, err := db.documents.Get(id)
	if err != nil {
		return Document{}, err
	}
	return fromRegistryDocument(doc), nil
}

// UpdateDocumentMetadata replaces a document's metadata snapshot.
func (db *DB) UpdateDocumentMetadata(id string, metadata map[string]any) (Document, error) {
	doc, err := db.documents.Get(id)
	if err != nil {
		return Document{}, err
	}
	doc.Metadata = metadata
	return fromRegistryDocument(doc), nil
}

// DeleteDocument deletes a document and cascades to its chunks.
func (db *DB) DeleteDocument(id string) error {
	doc, err := db.documents.Get(id)
	if err != nil {
		return nil
	}
	for chunkID := range doc.ChunkIDs {
		if err := db.coordinator.RemoveChunk(doc.LibraryID, chunkID); err != nil {
			return err
		}
	}
	db.documents.Delete(id)
	return nil
}

// Chunk is the public view of a chunk.
type Chunk struct {
	ID         string
	DocumentID string
	LibraryID  string
}

// CreateChunkInput is the payload for a chunk-create command.
type CreateChunkInput struct {
	Text             string
	Metadata         map[string]any
	DocumentID       string
	DocumentMetadata map[string]any
}

// CreateChunk inserts a chunk, auto-creating its parent document when
// DocumentID is absent.
func (db *DB) CreateChunk(ctx context.Context, libraryID string, in CreateChunkInput) (Chunk, error) {
	documentID := in.DocumentID
	if documentID == "" && in.DocumentMetadata != nil {
		doc, err := db.CreateDocument(libraryID, in.DocumentMetadata)
		if err != nil {
			return Chunk{}, err
		}
		documentID = doc.ID
	}

	chunkID, err := db.coordinator.AddChunk(ctx, libraryID, coordinator.ChunkInput{
		DocumentID: documentID,
		Text:       in.Text,
		Metadata:   in.Metadata,
	})
	if err != nil {
		return Chunk{}, err
	}

	chunk, err := db.chunks.Get(chunkID)
	if err != nil {
		return Chunk{}, err
	}
	return Chunk{ID: chunk.ID, DocumentID: chunk.DocumentID, LibraryID: chunk.LibraryID}, nil
}

func (db *DB) GetChunk(id string) (Chunk, error) {
	chunk, err := db.chunks.Get(id)
	if err != nil {
		return Chunk{}, err
	}
	return Chunk{ID: chunk.ID, DocumentID: chunk.DocumentID, LibraryID: chunk.LibraryID}, nil
}

// UpdateChunkInput carries the optional fields of a chunk-update
// command; a nil pointer/map means "leave unchanged".
type UpdateChunkInput struct {
	Text     *string
	Metadata map[string]any
}

func (db *DB) UpdateChunk(ctx context.Context, id string, in UpdateChunkInput) error {
	chunk, err := db.chunks.Get(id)
	if err != nil {
		return err
	}
	return db.coordinator.UpdateChunk(ctx, chunk.LibraryID, id, coordinator.ChunkUpdate{
		Text:     in.Text,
		Metadata: in.Metadata,
	})
}

func (db *DB) DeleteChunk(id string) error {
	chunk, err := db.chunks.Get(id)
	if err != nil {
		return nil
	}
	return db.coordinator.RemoveChunk(chunk.LibraryID, id)
}

// BuildResult is the response shape for the build command.
type BuildResult struct {
	LibraryID   string
	Message     string
	LastBuiltAt time.Time
}

func (db *DB) Build(libraryID string) (BuildResult, error) {
	if err := db.coordinator.BuildIndex(libraryID); err != nil {
		return BuildResult{}, err
	}
	lib, err := db.libs.Get(libraryID)
	if err != nil {
		return BuildResult{}, err
	}
	return BuildResult{
		LibraryID:   libraryID,
		Message:     "index built",
		LastBuiltAt: lib.LastBuiltAt,
	}, nil
}

// SearchHit is one result row: the chunk's id, score, and full
// snapshot as seen by the filter.
type SearchHit struct {
	ChunkID string
	Score   float32
	Chunk   ChunkSnapshot
}

// ChunkSnapshot is the text/metadata view of a chunk returned with
// search results.
type ChunkSnapshot struct {
	ID         string
	DocumentID string
	Text       string
	Metadata   map[string]any
}

// SearchResponse is the full response shape for the search command.
type SearchResponse struct {
	LibraryID string
	Query     string
	K         int
	Filters   map[string]any
	Results   []SearchHit
}

// Search runs the coordinator's over-fetch search pipeline and shapes
// its results into the public response envelope.
func (db *DB) Search(ctx context.Context, libraryID, query string, k int, filters map[string]any) (SearchResponse, error) {
	results, err := db.coordinator.Search(ctx, libraryID, query, k, filter.Spec(filters))
	if err != nil {
		return SearchResponse{}, err
	}

	hits := make([]SearchHit, len(results))
	for i, r := range results {
		hits[i] = SearchHit{
			ChunkID: r.ChunkID,
			Score:   r.Score,
			Chunk: ChunkSnapshot{
				ID:         r.ChunkID,
				DocumentID: r.DocumentID,
				Text:       r.Text,
				Metadata:   r.Metadata,
			},
		}
	}

	return SearchResponse{
		LibraryID: libraryID,
		Query:     query,
		K:         k,
		Filters:   filters,
		Results:   hits,
	}, nil
}
