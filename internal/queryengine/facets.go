package queryengine

import (
	"fmt"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/search"
)

// addFacetsToRequest mutates a bleve search request to compute the
// requested facets, delegating to bleve's own value/numeric-range/
// date-range facet machinery rather than hand-rolling bucketing.
func addFacetsToRequest(req *bleve.SearchRequest, facets []FacetRequest) error {
	if len(facets) == 0 {
		return nil
	}
	req.Facets = make(bleve.FacetsRequest)
	for _, f := range facets {
		size := f.Size
		if size <= 0 {
			size = 10
		}
		switch f.Kind {
		case "", FacetValue:
			req.Facets[f.Field] = bleve.NewFacetRequest(f.Field, size)
		case FacetInterval:
			if f.Interval <= 0 {
				return fmt.Errorf("facet %q: interval must be positive", f.Field)
			}
			fr := bleve.NewFacetRequest(f.Field, size)
			// Build adjacent numeric buckets of width Interval, capped at
			// size buckets starting at 0 — callers wanting specific
			// bucket boundaries should use FacetRange instead.
			for i := 0; i < size; i++ {
				lo := float64(i) * f.Interval
				hi := lo + f.Interval
				name := fmt.Sprintf("%g-%g", lo, hi)
				fr.AddNumericRange(name, &lo, &hi)
			}
			req.Facets[f.Field] = fr
		case FacetRange:
			fr := bleve.NewFacetRequest(f.Field, size)
			for _, r := range f.Ranges {
				fr.AddNumericRange(r.Name, r.From, r.To)
			}
			req.Facets[f.Field] = fr
		default:
			return fmt.Errorf("facet %q: unknown kind %q", f.Field, f.Kind)
		}
	}
	return nil
}

// extractFacets converts bleve's facet result shape into the response's
// FacetValueCount buckets.
func extractFacets(result *bleve.SearchResult) map[string][]FacetValueCount {
	if len(result.Facets) == 0 {
		return nil
	}
	out := make(map[string][]FacetValueCount, len(result.Facets))
	for field, facetResult := range result.Facets {
		out[field] = facetBuckets(facetResult)
	}
	return out
}

func facetBuckets(fr *search.FacetResult) []FacetValueCount {
	var buckets []FacetValueCount
	for _, t := range fr.Terms.Terms() {
		buckets = append(buckets, FacetValueCount{Value: t.Term, Count: t.Count})
	}
	for _, nr := range fr.NumericRanges {
		buckets = append(buckets, FacetValueCount{
			Value: nr.Name,
			Count: nr.Count,
			From:  nr.Min,
			To:    nr.Max,
		})
	}
	for _, dr := range fr.DateRanges {
		buckets = append(buckets, FacetValueCount{Value: dr.Name, Count: dr.Count})
	}
	return buckets
}
