// Package vdberrors provides structured error handling for vectorcore.
//
// Errors carry a Kind from the taxonomy the core's callers (an HTTP
// layer, a CLI, a test) use to decide how to react: whether to retry,
// whether to surface a 4xx to a user, or whether to treat the failure
// as an internal invariant violation. Kind -> HTTP status is a pure
// lookup table; vectorcore itself never depends on net/http.
package vdberrors

// Kind classifies an error for the purposes of spec section 7's error
// taxonomy. Kind is distinct from Code: Code is a stable machine-
// readable string for logs, Kind is the thing callers branch on.
type Kind string

const (
	// KindNotFound: unknown id on get/update/search/delete-that-errors.
	KindNotFound Kind = "NOT_FOUND"
	// KindAlreadyExists: duplicate unique constraint.
	KindAlreadyExists Kind = "ALREADY_EXISTS"
	// KindInvalidRequest: malformed body, k<1, empty update patch.
	KindInvalidRequest Kind = "INVALID_REQUEST"
	// KindInvalidFilter: unknown operator, malformed operand.
	KindInvalidFilter Kind = "INVALID_FILTER"
	// KindInvalidVector: zero-norm or NaN embedding.
	KindInvalidVector Kind = "INVALID_VECTOR"
	// KindDimensionMismatch: new vector dimension != library dimension.
	KindDimensionMismatch Kind = "DIMENSION_MISMATCH"
	// KindEmbeddingFailure: the external Embedder failed.
	KindEmbeddingFailure Kind = "EMBEDDING_FAILURE"
	// KindConfig: environment/configuration is invalid at init time.
	KindConfig Kind = "CONFIG"
	// KindInternal: invariant violation / unexpected internal state.
	KindInternal Kind = "INTERNAL"
)

// Error codes, one per Kind, in the ERR_NNN_NAME scheme.
const (
	CodeNotFound          = "ERR_404_NOT_FOUND"
	CodeAlreadyExists     = "ERR_409_ALREADY_EXISTS"
	CodeInvalidRequest    = "ERR_400_INVALID_REQUEST"
	CodeInvalidFilter     = "ERR_400_INVALID_FILTER"
	CodeInvalidVector     = "ERR_422_INVALID_VECTOR"
	CodeDimensionMismatch = "ERR_422_DIMENSION_MISMATCH"
	CodeEmbeddingFailure  = "ERR_502_EMBEDDING_FAILURE"
	CodeConfig            = "ERR_500_CONFIG"
	CodeInternal          = "ERR_500_INTERNAL"
)

var codeForKind = map[Kind]string{
	KindNotFound:          CodeNotFound,
	KindAlreadyExists:     CodeAlreadyExists,
	KindInvalidRequest:    CodeInvalidRequest,
	KindInvalidFilter:     CodeInvalidFilter,
	KindInvalidVector:     CodeInvalidVector,
	KindDimensionMismatch: CodeDimensionMismatch,
	KindEmbeddingFailure:  CodeEmbeddingFailure,
	KindConfig:            CodeConfig,
	KindInternal:          CodeInternal,
}

// httpStatusForKind maps each Kind to the HTTP status the (out of
// scope) REST layer should use. vectorcore never consults this table
// itself; it exists so a surrounding server has one place to look.
var httpStatusForKind = map[Kind]int{
	KindNotFound:          404,
	KindAlreadyExists:     409,
	KindInvalidRequest:    400,
	KindInvalidFilter:     400,
	KindInvalidVector:     422,
	KindDimensionMismatch: 422,
	KindEmbeddingFailure:  502,
	KindConfig:            500,
	KindInternal:          500,
}

// HTTPStatus returns the HTTP status code conventionally associated
// with a Kind, for use by the caller's REST boundary. Unknown kinds
// map to 500.
func HTTPStatus(k Kind) int {
	if s, ok := httpStatusForKind[k]; ok {
		return s
	}
	return 500
}

// retryableKinds lists kinds whose failures may succeed if retried
// (transient external failures), as opposed to kinds that are
// permanent given the same input (validation errors never become
// valid by retrying).
var retryableKinds = map[Kind]bool{
	KindEmbeddingFailure: true,
}
