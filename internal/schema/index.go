// Package schema defines the control-plane resource shapes (index,
// data source, skillset, indexer, synonym map) and their validation
// rules. These are the JSON documents that
// internal/metadata persists by (kind, name) and that internal/httpapi
// accepts/returns.
package schema

import (
	"fmt"
	"regexp"

	"github.com/searchemu/searchemu/internal/vectorstore"
)

// EDMType is a field's Entity Data Model type, named after the upstream
// wire protocol's scalar/collection vocabulary.
type EDMType string

const (
	EDMString           EDMType = "Edm.String"
	EDMInt32            EDMType = "Edm.Int32"
	EDMInt64            EDMType = "Edm.Int64"
	EDMDouble           EDMType = "Edm.Double"
	EDMBoolean          EDMType = "Edm.Boolean"
	EDMDateTimeOffset    EDMType = "Edm.DateTimeOffset"
	EDMGeographyPoint    EDMType = "Edm.GeographyPoint"
	EDMComplexType       EDMType = "Edm.ComplexType"
	EDMCollectionSingle  EDMType = "Collection(Edm.Single)" // vector field
)

// IsCollection reports whether t is Collection(...) of anything.
func (t EDMType) IsCollection() bool {
	return len(t) > 11 && t[:11] == "Collection("
}

// IsVector reports whether t is the float-vector collection type.
func (t EDMType) IsVector() bool {
	return t == EDMCollectionSingle
}

// Similarity and Algorithm are re-exported so schema.Field can describe a
// vector profile without every caller importing vectorstore directly.
type Similarity = vectorstore.Similarity
type Algorithm = vectorstore.Algorithm

const (
	SimilarityCosine     = vectorstore.SimilarityCosine
	SimilarityDotProduct = vectorstore.SimilarityDotProduct
	SimilarityEuclidean  = vectorstore.SimilarityEuclidean
	AlgorithmHNSW        = vectorstore.AlgorithmHNSW
	AlgorithmBruteForce  = vectorstore.AlgorithmBruteForce
)

// VectorProfile configures a Collection(Edm.Single) field's k-NN search.
type VectorProfile struct {
	Algorithm            Algorithm  `json:"algorithm"`
	Similarity           Similarity `json:"similarity"`
	M                    int        `json:"m,omitempty"`
	EfConstruction       int        `json:"efConstruction,omitempty"`
	EfSearch             int        `json:"efSearch,omitempty"`
	OversampleMultiplier int        `json:"oversampleMultiplier,omitempty"`
}

// Field is one column of an index's schema.
type Field struct {
	Name         string         `json:"name"`
	Type         EDMType        `json:"type"`
	Key          bool           `json:"key,omitempty"`
	Searchable   bool           `json:"searchable,omitempty"`
	Filterable   bool           `json:"filterable,omitempty"`
	Sortable     bool           `json:"sortable,omitempty"`
	Facetable    bool           `json:"facetable,omitempty"`
	Retrievable  bool           `json:"retrievable,omitempty"`
	Analyzer     string         `json:"analyzer,omitempty"`
	Normalizer   string         `json:"normalizer,omitempty"`
	Dimensions   int            `json:"dimensions,omitempty"`
	VectorSearchProfile string  `json:"vectorSearchProfile,omitempty"`
	Fields       []Field        `json:"fields,omitempty"` // nested fields for Edm.ComplexType
}

// Suggester enables prefix completion over chosen fields.
type Suggester struct {
	Name             string   `json:"name"`
	SourceFields     []string `json:"sourceFields"`
}

// ScoringProfile is carried for schema completeness. Its effect on ranking
// is left implementation-defined, so it is stored and returned but never
// consulted by the query engine.
type ScoringProfile struct {
	Name string `json:"name"`
}

// VectorSearchConfig names the vector profiles a field may reference.
type VectorSearchConfig struct {
	Profiles map[string]VectorProfile `json:"profiles,omitempty"`
}

// Index is the full schema document for one searchable index.
type Index struct {
	Name            string             `json:"name"`
	Fields          []Field            `json:"fields"`
	Suggesters      []Suggester        `json:"suggesters,omitempty"`
	ScoringProfiles []ScoringProfile   `json:"scoringProfiles,omitempty"`
	VectorSearch    VectorSearchConfig `json:"vectorSearch,omitempty"`
	SynonymMaps     []string           `json:"synonymMaps,omitempty"` // names of synonym maps applied index-wide
}

var namePattern = regexp.MustCompile(`^[a-z][a-z0-9-]{0,127}$`)

// ValidName checks the `[a-z0-9-]{1,128}` starting-with-a-letter rule
// shared by every resource kind.
func ValidName(name string) bool {
	return namePattern.MatchString(name)
}

// KeyField returns the index's single key field, or an error if there is
// not exactly one.
func (idx *Index) KeyField() (*Field, error) {
	var key *Field
	for i := range idx.Fields {
		if idx.Fields[i].Key {
			if key != nil {
				return nil, fmt.Errorf("index %q declares more than one key field", idx.Name)
			}
			key = &idx.Fields[i]
		}
	}
	if key == nil {
		return nil, fmt.Errorf("index %q declares no key field", idx.Name)
	}
	return key, nil
}

// FieldByName looks up a top-level field by name.
func (idx *Index) FieldByName(name string) (*Field, bool) {
	for i := range idx.Fields {
		if idx.Fields[i].Name == name {
			return &idx.Fields[i], true
		}
	}
	return nil, false
}

// Validate enforces the field-flag invariants: unique
// well-formed names, exactly one key field (scalar string, always
// retrievable), vector fields are never filterable/sortable, and complex
// fields cannot be the key.
func (idx *Index) Validate(maxFields int) error {
	if !ValidName(idx.Name) {
		return fmt.Errorf("invalid index name %q", idx.Name)
	}
	if len(idx.Fields) == 0 {
		return fmt.Errorf("index %q must declare at least one field", idx.Name)
	}
	if maxFields > 0 && countFields(idx.Fields) > maxFields {
		return fmt.Errorf("index %q exceeds max_fields_per_index (%d)", idx.Name, maxFields)
	}

	seen := make(map[string]bool)
	var keyFields int
	for _, f := range idx.Fields {
		if f.Name == "" {
			return fmt.Errorf("field with empty name in index %q", idx.Name)
		}
		if seen[f.Name] {
			return fmt.Errorf("duplicate field name %q in index %q", f.Name, idx.Name)
		}
		seen[f.Name] = true

		if err := f.validate(idx); err != nil {
			return err
		}
		if f.Key {
			keyFields++
		}
	}
	if keyFields != 1 {
		return fmt.Errorf("index %q must declare exactly one key field, found %d", idx.Name, keyFields)
	}
	return nil
}

func countFields(fields []Field) int {
	n := len(fields)
	for _, f := range fields {
		n += countFields(f.Fields)
	}
	return n
}

func (f *Field) validate(idx *Index) error {
	if f.Type.IsVector() {
		if f.Filterable || f.Sortable {
			return fmt.Errorf("vector field %q cannot be filterable or sortable", f.Name)
		}
		if f.Key {
			return fmt.Errorf("vector field %q cannot be the key field", f.Name)
		}
		if f.Dimensions <= 0 {
			return fmt.Errorf("vector field %q must declare positive dimensions", f.Name)
		}
		if f.VectorSearchProfile != "" {
			if _, ok := idx.VectorSearch.Profiles[f.VectorSearchProfile]; !ok {
				return fmt.Errorf("vector field %q references unknown profile %q", f.Name, f.VectorSearchProfile)
			}
		}
	}
	if f.Type == EDMComplexType || (f.Type.IsCollection() && !f.Type.IsVector()) {
		if f.Key {
			return fmt.Errorf("complex/collection field %q cannot be the key field", f.Name)
		}
	}
	if f.Key {
		if f.Type != EDMString {
			return fmt.Errorf("key field %q must be Edm.String", f.Name)
		}
		if !f.Retrievable {
			return fmt.Errorf("key field %q must be retrievable", f.Name)
		}
	}
	for i := range f.Fields {
		if err := f.Fields[i].validate(idx); err != nil {
			return err
		}
	}
	return nil
}
