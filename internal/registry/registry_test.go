package registry

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/driftdb/vectorcore/internal/index"
	"github.com/driftdb/vectorcore/internal/vdberrors"
)

func TestLibraries_Create_RejectsDuplicateID(t *testing.T) {
	libs := NewLibraries()
	require.NoError(t, libs.Create(&Library{ID: "lib-1", IndexKind: index.KindLinear}))

	err := libs.Create(&Library{ID: "lib-1", IndexKind: index.KindLinear})

	require.Error(t, err)
	assert.Equal(t, vdberrors.KindAlreadyExists, vdberrors.GetKind(err))
}

func TestLibraries_Get_UnknownIDReturnsNotFound(t *testing.T) {
	libs := NewLibraries()

	_, err := libs.Get("missing")

	require.Error(t, err)
	assert.Equal(t, vdberrors.KindNotFound, vdberrors.GetKind(err))
}

func TestLibraries_SetLastBuiltAt_UpdatesExistingLibrary(t *testing.T) {
	libs := NewLibraries()
	require.NoError(t, libs.Create(&Library{ID: "lib-1"}))
	now := time.Now()

	libs.SetLastBuiltAt("lib-1", now)

	lib, err := libs.Get("lib-1")
	require.NoError(t, err)
	assert.Equal(t, now, lib.LastBuiltAt)
}

func TestLibraries_Delete_IsIdempotent(t *testing.T) {
	libs := NewLibraries()
	require.NoError(t, libs.Create(&Library{ID: "lib-1"}))

	libs.Delete("lib-1")
	libs.Delete("lib-1")

	_, err := libs.Get("lib-1")
	assert.Error(t, err)
}

func TestDocuments_AddChunk_ThenDelete_ReturnsChildChunkIDs(t *testing.T) {
	docs := NewDocuments()
	require.NoError(t, docs.Create(&Document{ID: "doc-1", LibraryID: "lib-1"}))
	require.NoError(t, docs.AddChunk("doc-1", "chunk-1"))
	require.NoError(t, docs.AddChunk("doc-1", "chunk-2"))

	chunkIDs := docs.Delete("doc-1")

	assert.ElementsMatch(t, []string{"chunk-1", "chunk-2"}, chunkIDs)
	_, err := docs.Get("doc-1")
	assert.Error(t, err)
}

func TestDocuments_AddChunk_UnknownDocumentReturnsNotFound(t *testing.T) {
	docs := NewDocuments()

	err := docs.AddChunk("missing", "chunk-1")

	require.Error(t, err)
	assert.Equal(t, vdberrors.KindNotFound, vdberrors.GetKind(err))
}

func TestDocuments_RemoveChunk_UnknownIsNoop(t *testing.T) {
	docs := NewDocuments()
	require.NoError(t, docs.Create(&Document{ID: "doc-1"}))

	docs.RemoveChunk("doc-1", "not-a-member")

	doc, err := docs.Get("doc-1")
	require.NoError(t, err)
	assert.Empty(t, doc.ChunkIDs)
}

func TestDocuments_ByLibrary_FiltersToMatchingLibrary(t *testing.T) {
	docs := NewDocuments()
	require.NoError(t, docs.Create(&Document{ID: "doc-1", LibraryID: "lib-1"}))
	require.NoError(t, docs.Create(&Document{ID: "doc-2", LibraryID: "lib-2"}))

	result := docs.ByLibrary("lib-1")

	require.Len(t, result, 1)
	assert.Equal(t, "doc-1", result[0].ID)
}

func TestChunks_Create_RejectsDuplicateID(t *testing.T) {
	chunks := NewChunks()
	require.NoError(t, chunks.Create(&Chunk{ID: "chunk-1"}))

	err := chunks.Create(&Chunk{ID: "chunk-1"})

	require.Error(t, err)
	assert.Equal(t, vdberrors.KindAlreadyExists, vdberrors.GetKind(err))
}

func TestChunks_Delete_IsIdempotent(t *testing.T) {
	chunks := NewChunks()
	require.NoError(t, chunks.Create(&Chunk{ID: "chunk-1"}))

	chunks.Delete("chunk-1")
	chunks.Delete("chunk-1")

	_, err := chunks.Get("chunk-1")
	assert.Error(t, err)
}
