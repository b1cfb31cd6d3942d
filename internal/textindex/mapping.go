package textindex

import (
	"fmt"
	"regexp"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/mapping"

	"github.com/searchemu/searchemu/internal/schema"
)

var collectionPattern = regexp.MustCompile(`^Collection\((.+)\)$`)

func elementType(t schema.EDMType) (schema.EDMType, bool) {
	m := collectionPattern.FindStringSubmatch(string(t))
	if m == nil {
		return "", false
	}
	return schema.EDMType(m[1]), true
}

// buildMapping converts an index schema into a bleve document mapping,
// implementing the EDM-type -> storage-kind table.
// Vector fields are skipped entirely: they're owned by internal/vectorstore,
// not this component.
func buildMapping(idx *schema.Index) (*mapping.IndexMappingImpl, error) {
	im := bleve.NewIndexMapping()
	dm := bleve.NewDocumentMapping()

	for _, f := range idx.Fields {
		fm, skip, err := fieldMapping(f)
		if err != nil {
			return nil, fmt.Errorf("index %q field %q: %w", idx.Name, f.Name, err)
		}
		if skip {
			continue
		}
		dm.AddFieldMappingsAt(f.Name, fm)
	}

	im.DefaultMapping = dm
	return im, nil
}

// fieldMapping returns the bleve field mapping for f, or skip=true if f is
// a vector field that this component never stores.
func fieldMapping(f schema.Field) (*mapping.FieldMapping, bool, error) {
	if f.Type.IsVector() {
		return nil, true, nil
	}

	if elem, ok := elementType(f.Type); ok {
		// bleve maps a Go slice value onto the same per-element field
		// mapping automatically, so a Collection(T) field reuses T's
		// mapping -> multi-valued").
		inner := f
		inner.Type = elem
		return fieldMapping(inner)
	}

	switch f.Type {
	case schema.EDMString:
		if f.Searchable {
			fm := bleve.NewTextFieldMapping()
			if f.Analyzer != "" {
				fm.Analyzer = f.Analyzer
			}
			fm.Store = f.Retrievable
			fm.IncludeTermVectors = true // required for highlighting
			return fm, false, nil
		}
		fm := bleve.NewKeywordFieldMapping()
		fm.Store = f.Retrievable
		return fm, false, nil

	case schema.EDMInt32, schema.EDMInt64, schema.EDMDouble:
		fm := bleve.NewNumericFieldMapping()
		fm.Store = f.Retrievable
		return fm, false, nil

	case schema.EDMBoolean:
		fm := bleve.NewBooleanFieldMapping()
		fm.Store = f.Retrievable
		return fm, false, nil

	case schema.EDMDateTimeOffset:
		// bleve's date mapping indexes as an internal numeric tick value
		// and stores the original RFC3339 text, matching the "int64
		// ticks + stored ISO8601" contract without hand-rolling either
		// side of that round trip.
		fm := bleve.NewDateTimeFieldMapping()
		fm.Store = f.Retrievable
		return fm, false, nil

	case schema.EDMGeographyPoint:
		fm := bleve.NewGeoPointFieldMapping()
		fm.Store = f.Retrievable
		return fm, false, nil

	case schema.EDMComplexType:
		// Complex values arrive at Upsert already JSON-encoded by the
		// caller (internal/docops); stored verbatim, never indexed for
		// full-text search.
		fm := bleve.NewTextFieldMapping()
		fm.Index = false
		fm.Store = true
		return fm, false, nil

	default:
		return nil, false, fmt.Errorf("unsupported field type %q", f.Type)
	}
}
