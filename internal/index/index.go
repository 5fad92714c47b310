// Package index defines the common contract implemented by the
// linear, IVF, and NSW nearest-neighbor indexes. The factory keyed on
// index kind lives in internal/coordinator, which is free to import
// all three implementation packages without creating an import cycle.
package index

// Kind names one of the three interchangeable index implementations.
type Kind string

const (
	KindLinear Kind = "linear"
	KindIVF    Kind = "ivf"
	KindNSW    Kind = "nsw"
)

// Result is one scored candidate returned by a Query call.
type Result struct {
	ID    string
	Score float32
}

// Index is the contract all three implementations satisfy. Remove is
// a no-op on unknown ids; Update returns NotFound for them; Add
// replaces an existing id.
type Index interface {
	// Add inserts id with vec and meta. If id already exists it is
	// removed first, so Add also serves as an unconditional upsert.
	Add(id string, vec []float32, meta map[string]any) error

	// Update atomically re-links id, changing vec and/or meta.
	// A nil vec or meta leaves that field unchanged.
	Update(id string, vec []float32, meta map[string]any) error

	// Remove deletes id. Unknown ids are no-ops.
	Remove(id string)

	// Build performs whatever consolidation the implementation needs
	// (a no-op for Linear and NSW). Safe to call repeatedly.
	Build() error

	// Query returns up to k candidates ordered by descending score,
	// ties broken by ascending id. No metadata filtering happens here.
	Query(vec []float32, k int) ([]Result, error)

	// Dimension returns the vector dimension fixed by the first Add,
	// or 0 before any Add. Removing every entry does not reset it.
	Dimension() int

	// Size returns the number of ids currently held.
	Size() int

	// Kind identifies which implementation this is, for introspection
	// and logging.
	Kind() Kind
}

// Params carries the construction parameters for any index kind; only
// the fields relevant to Kind are read.
type Params struct {
	// IVF
	NClusters    int
	ClusterRatio float64
	NProbes      int
	MaxIter      int
	Tolerance    float64

	// NSW
	M              int
	EfConstruction int
	EfSearch       int

	// IVF (k-means++ seeding); NSW does not read it.
	Seed int64
}
