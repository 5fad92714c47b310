package vdberrors

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNew_DerivesCodeAndRetryable(t *testing.T) {
	// Given: a fresh EmbeddingFailure error
	err := New(KindEmbeddingFailure, "provider timed out", nil)

	// Then: code and retryability are derived from the kind
	assert.Equal(t, CodeEmbeddingFailure, err.Code)
	assert.True(t, err.Retryable)
}

func TestWrap_NilReturnsNil(t *testing.T) {
	assert.Nil(t, Wrap(KindInternal, nil))
}

func TestError_Is_MatchesOnKind(t *testing.T) {
	a := NotFound("library not found")
	b := NotFound("document not found")

	assert.True(t, errors.Is(a, b))
	assert.False(t, errors.Is(a, InvalidRequest("bad request")))
}

func TestError_Unwrap(t *testing.T) {
	cause := errors.New("boom")
	err := Wrap(KindEmbeddingFailure, cause)

	assert.Equal(t, cause, errors.Unwrap(err))
}

func TestDimensionMismatch_Details(t *testing.T) {
	err := DimensionMismatch(384, 256)

	assert.Equal(t, KindDimensionMismatch, err.Kind)
	assert.Equal(t, "384", err.Details["expected"])
	assert.Equal(t, "256", err.Details["got"])
}

func TestHTTPStatus_KnownAndUnknownKinds(t *testing.T) {
	assert.Equal(t, 404, HTTPStatus(KindNotFound))
	assert.Equal(t, 422, HTTPStatus(KindInvalidVector))
	assert.Equal(t, 500, HTTPStatus(Kind("something_new")))
}

func TestIsRetryable(t *testing.T) {
	assert.True(t, IsRetryable(EmbeddingFailure(errors.New("x"))))
	assert.False(t, IsRetryable(InvalidRequest("bad")))
	assert.False(t, IsRetryable(errors.New("plain")))
}

func TestGetKind(t *testing.T) {
	assert.Equal(t, KindNotFound, GetKind(NotFound("x")))
	assert.Equal(t, Kind(""), GetKind(errors.New("plain")))
}
