// Package queryengine implements the query engine (component D):
// request parsing, filter evaluation, ordering, paging,
// facets, highlighting, vector k-NN dispatch, and hybrid RRF/weighted
// fusion across the text index (component B) and vector store
// (component C).
package queryengine

// QueryType selects the simple or full (Lucene-subset) query grammar.
type QueryType string

const (
	QueryTypeSimple QueryType = "simple"
	QueryTypeFull   QueryType = "full"
)

// SearchMode controls whether unquoted simple-query terms combine with
// implicit AND or implicit OR.
type SearchMode string

const (
	SearchModeAny SearchMode = "any"
	SearchModeAll SearchMode = "all"
)

// FusionMode selects the hybrid fusion algorithm.
type FusionMode string

const (
	FusionRRF      FusionMode = "rrf"
	FusionWeighted FusionMode = "weighted"
)

// VectorQuery is one k-NN leg of a (possibly hybrid) search request.
type VectorQuery struct {
	Field  string
	Vector []float32
	K      int
}

// FacetKind selects how a facet request buckets values.
type FacetKind string

const (
	FacetValue    FacetKind = "value"
	FacetInterval FacetKind = "interval"
	FacetRange    FacetKind = "range"
)

// FacetRequest describes one requested facet.
//
//   - value facets:    FacetRequest{Field: "category"}
//   - interval facets:  FacetRequest{Field: "rating", Kind: FacetInterval, Interval: 1}
//   - range facets:     FacetRequest{Field: "rating", Kind: FacetRange, Ranges: []FacetRangeSpec{...}}
type FacetRequest struct {
	Field    string
	Kind     FacetKind
	Interval float64
	Ranges   []FacetRangeSpec
	Size     int
}

// FacetRangeSpec is one caller-defined bucket boundary pair for a range
// facet. Either bound may be nil for an open-ended bucket.
type FacetRangeSpec struct {
	Name string
	From *float64
	To   *float64
}

// Request is the full search request shape.
type Request struct {
	Search       string
	QueryType    QueryType
	SearchMode   SearchMode
	SearchFields []string
	Select       []string
	Filter       string
	OrderBy      []OrderClause
	Top          int
	Skip         int
	Count        bool
	Facets       []FacetRequest
	Highlight    []string
	HighlightPreTag  string
	HighlightPostTag string
	VectorQueries []VectorQuery
	Fusion        FusionMode
	VectorWeight  float64
	TextWeight    float64
	RRFConstant   int
	Debug         bool
}

// OrderClause is one `field asc|desc` or `search.score() asc|desc` term.
type OrderClause struct {
	Field       string // "" means search.score()
	Descending  bool
}

// SubScores breaks a hybrid hit's score down by source, returned only
// when Request.Debug is set.
type SubScores struct {
	TextScore    float64
	TextRank     int
	VectorScore  float64
	VectorRank   int
	FusedScore   float64
}

// FacetValueCount is one bucket of a returned facet.
type FacetValueCount struct {
	Value string
	Count int
	From  *float64
	To    *float64
}

// Hit is one result document.
type Hit struct {
	Key        string
	Score      float64
	Fields     map[string]interface{}
	Highlights map[string][]string
	Debug      *SubScores
}

// Response is the full query result shape.
type Response struct {
	Count   int64 // -1 if not requested
	Hits    []Hit
	Facets  map[string][]FacetValueCount
}
