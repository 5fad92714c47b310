package coordinator

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/driftdb/vectorcore/internal/filter"
	"github.com/driftdb/vectorcore/internal/index"
	"github.com/driftdb/vectorcore/internal/registry"
	"github.com/driftdb/vectorcore/internal/vdberrors"
)

// stubEmbedder returns a fixed-dimension vector derived deterministically
// from the text's byte sum, so distinct texts land at distinct points
// and repeated text yields an identical vector.
type stubEmbedder struct {
	dim    int
	fail   bool
	byText map[string][]float32
}

func newStubEmbedder(dim int) *stubEmbedder {
	return &stubEmbedder{dim: dim, byText: make(map[string][]float32)}
}

func (s *stubEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	if s.fail {
		return nil, errors.New("embedder unavailable")
	}
	if v, ok := s.byText[text]; ok {
		return v, nil
	}
	vec := make([]float32, s.dim)
	var sum float32
	for _, b := range []byte(text) {
		sum += float32(b)
	}
	vec[0] = sum
	vec[1%s.dim] += 1
	s.byText[text] = vec
	return vec, nil
}

func (s *stubEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		v, err := s.Embed(ctx, t)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func (s *stubEmbedder) Dimensions() int   { return s.dim }
func (s *stubEmbedder) ModelName() string { return "stub" }

func newTestCoordinator(embedder *stubEmbedder) (*Coordinator, *registry.Libraries, *registry.Documents, *registry.Chunks) {
	libs := registry.NewLibraries()
	documents := registry.NewDocuments()
	chunks := registry.NewChunks()
	return New(libs, documents, chunks, embedder), libs, documents, chunks
}

func TestCoordinator_AddChunk_AutoCreatesDocumentWhenNoneGiven(t *testing.T) {
	// Given: a fresh library and no parent document
	c, _, documents, _ := newTestCoordinator(newStubEmbedder(4))
	libID, err := c.CreateLibrary("lib", index.KindLinear, index.Params{})
	require.NoError(t, err)

	// When: a chunk is inserted without DocumentID
	chunkID, err := c.AddChunk(context.Background(), libID, ChunkInput{Text: "hello world"})

	// Then: a document is auto-created and owns the chunk
	require.NoError(t, err)
	require.NotEmpty(t, chunkID)
	chunk, err := c.chunks.Get(chunkID)
	require.NoError(t, err)
	doc, err := documents.Get(chunk.DocumentID)
	require.NoError(t, err)
	_, member := doc.ChunkIDs[chunkID]
	assert.True(t, member)
}

func TestCoordinator_AddChunk_DimensionMismatchOnSecondInsertIsRejected(t *testing.T) {
	// Given: a library whose dimension was fixed by embedder dim 4, but a
	// second embedder call returns a different length
	embedder := newStubEmbedder(4)
	c, _, _, _ := newTestCoordinator(embedder)
	libID, err := c.CreateLibrary("lib", index.KindLinear, index.Params{})
	require.NoError(t, err)

	_, err = c.AddChunk(context.Background(), libID, ChunkInput{Text: "first"})
	require.NoError(t, err)

	embedder.dim = 6
	_, err = c.AddChunk(context.Background(), libID, ChunkInput{Text: "second, a wildly different text"})

	require.Error(t, err)
	assert.Equal(t, vdberrors.KindDimensionMismatch, vdberrors.GetKind(err))
}

func TestCoordinator_AddChunk_EmbeddingFailureSurfacesAsEmbeddingFailure(t *testing.T) {
	embedder := newStubEmbedder(4)
	embedder.fail = true
	c, _, _, _ := newTestCoordinator(embedder)
	libID, err := c.CreateLibrary("lib", index.KindLinear, index.Params{})
	require.NoError(t, err)

	_, err = c.AddChunk(context.Background(), libID, ChunkInput{Text: "x"})

	require.Error(t, err)
	assert.Equal(t, vdberrors.KindEmbeddingFailure, vdberrors.GetKind(err))
}

func TestCoordinator_RemoveChunk_CascadesFromDocumentChildSet(t *testing.T) {
	c, _, documents, _ := newTestCoordinator(newStubEmbedder(4))
	libID, err := c.CreateLibrary("lib", index.KindLinear, index.Params{})
	require.NoError(t, err)
	chunkID, err := c.AddChunk(context.Background(), libID, ChunkInput{Text: "a"})
	require.NoError(t, err)
	chunk, err := c.chunks.Get(chunkID)
	require.NoError(t, err)

	require.NoError(t, c.RemoveChunk(libID, chunkID))

	doc, err := documents.Get(chunk.DocumentID)
	require.NoError(t, err)
	_, member := doc.ChunkIDs[chunkID]
	assert.False(t, member)
	_, err = c.chunks.Get(chunkID)
	assert.Error(t, err)
}

func TestCoordinator_RemoveChunk_UnknownIDIsNoop(t *testing.T) {
	c, _, _, _ := newTestCoordinator(newStubEmbedder(4))
	libID, err := c.CreateLibrary("lib", index.KindLinear, index.Params{})
	require.NoError(t, err)

	assert.NoError(t, c.RemoveChunk(libID, "not-a-real-chunk"))
}

func TestCoordinator_DestroyLibrary_CascadesDocumentsAndChunks(t *testing.T) {
	c, libs, _, chunks := newTestCoordinator(newStubEmbedder(4))
	libID, err := c.CreateLibrary("lib", index.KindLinear, index.Params{})
	require.NoError(t, err)
	chunkID, err := c.AddChunk(context.Background(), libID, ChunkInput{Text: "a"})
	require.NoError(t, err)

	require.NoError(t, c.DestroyLibrary(libID))

	_, err = libs.Get(libID)
	assert.Error(t, err)
	_, err = chunks.Get(chunkID)
	assert.Error(t, err)
}

func TestCoordinator_Search_FilterOverFetchExpandsUntilKAcceptedOrExhausted(t *testing.T) {
	// Given: 20 chunks, only 2 of which pass a metadata filter
	c, _, _, _ := newTestCoordinator(newStubEmbedder(8))
	libID, err := c.CreateLibrary("lib", index.KindLinear, index.Params{})
	require.NoError(t, err)

	for i := 0; i < 20; i++ {
		meta := map[string]any{"keep": false}
		if i == 3 || i == 17 {
			meta["keep"] = true
		}
		text := "chunk number with distinct padding " + string(rune('a'+i))
		_, err := c.AddChunk(context.Background(), libID, ChunkInput{Text: text, Metadata: meta})
		require.NoError(t, err)
	}

	results, err := c.Search(context.Background(), libID, "chunk number with distinct padding a", 2, filter.Spec{"keep": true})

	require.NoError(t, err)
	assert.LessOrEqual(t, len(results), 2)
	for _, r := range results {
		assert.Equal(t, true, r.Metadata["keep"])
	}
}

func TestCoordinator_Search_NoFilterUsesMultiplierOne(t *testing.T) {
	c, _, _, _ := newTestCoordinator(newStubEmbedder(4))
	libID, err := c.CreateLibrary("lib", index.KindLinear, index.Params{})
	require.NoError(t, err)
	_, err = c.AddChunk(context.Background(), libID, ChunkInput{Text: "alpha"})
	require.NoError(t, err)
	_, err = c.AddChunk(context.Background(), libID, ChunkInput{Text: "beta version text"})
	require.NoError(t, err)

	results, err := c.Search(context.Background(), libID, "alpha", 1, nil)

	require.NoError(t, err)
	require.Len(t, results, 1)
}

func TestCoordinator_Search_RejectsNonPositiveK(t *testing.T) {
	c, _, _, _ := newTestCoordinator(newStubEmbedder(4))
	libID, err := c.CreateLibrary("lib", index.KindLinear, index.Params{})
	require.NoError(t, err)

	_, err = c.Search(context.Background(), libID, "q", 0, nil)

	require.Error(t, err)
	assert.Equal(t, vdberrors.KindInvalidRequest, vdberrors.GetKind(err))
}

func TestCoordinator_BuildIndex_StampsLastBuiltAt(t *testing.T) {
	c, libs, _, _ := newTestCoordinator(newStubEmbedder(4))
	libID, err := c.CreateLibrary("lib", index.KindIVF, index.Params{NClusters: 2})
	require.NoError(t, err)
	_, err = c.AddChunk(context.Background(), libID, ChunkInput{Text: "alpha"})
	require.NoError(t, err)

	require.NoError(t, c.BuildIndex(libID))

	lib, err := libs.Get(libID)
	require.NoError(t, err)
	assert.False(t, lib.LastBuiltAt.IsZero())
}

func TestCoordinator_UpdateChunk_TextChangeReEmbedsAndRelinks(t *testing.T) {
	c, _, _, _ := newTestCoordinator(newStubEmbedder(4))
	libID, err := c.CreateLibrary("lib", index.KindLinear, index.Params{})
	require.NoError(t, err)
	chunkID, err := c.AddChunk(context.Background(), libID, ChunkInput{Text: "alpha"})
	require.NoError(t, err)

	newText := "entirely different content"
	require.NoError(t, c.UpdateChunk(context.Background(), libID, chunkID, ChunkUpdate{Text: &newText}))

	results, err := c.Search(context.Background(), libID, newText, 1, nil)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, chunkID, results[0].ChunkID)
	assert.Equal(t, newText, results[0].Text)
}

func TestCoordinator_UpdateChunk_UnknownIDReturnsNotFound(t *testing.T) {
	c, _, _, _ := newTestCoordinator(newStubEmbedder(4))
	libID, err := c.CreateLibrary("lib", index.KindLinear, index.Params{})
	require.NoError(t, err)

	text := "x"
	err = c.UpdateChunk(context.Background(), libID, "missing", ChunkUpdate{Text: &text})

	require.Error(t, err)
	assert.Equal(t, vdberrors.KindNotFound, vdberrors.GetKind(err))
}

func TestNewIndex_UnknownKindReturnsInvalidRequest(t *testing.T) {
	_, err := NewIndex(index.Kind("bogus"), index.Params{})

	require.Error(t, err)
	assert.Equal(t, vdberrors.KindInvalidRequest, vdberrors.GetKind(err))
}
