package httpapi

import (
	"net/url"
	"strconv"
	"strings"

	"github.com/searchemu/searchemu/internal/queryengine"
	"github.com/searchemu/searchemu/internal/serr"
)

// wireVectorQuery is one vectorQueries[] entry of a search request body.
// Fields is a comma-separated field list, matching upstream's convention
// of applying one k-NN query across several vector fields at once.
type wireVectorQuery struct {
	Vector []float32 `json:"vector"`
	Fields string    `json:"fields"`
	K      int       `json:"k"`
}

// wireSearchRequest is the POST /docs/search body shape.
// GET requests build the same shape from query parameters so both paths
// share one conversion into queryengine.Request.
type wireSearchRequest struct {
	Search           string            `json:"search"`
	QueryType        string            `json:"queryType,omitempty"`
	SearchMode       string            `json:"searchMode,omitempty"`
	SearchFields     string            `json:"searchFields,omitempty"`
	Select           string            `json:"select,omitempty"`
	Filter           string            `json:"filter,omitempty"`
	OrderBy          string            `json:"orderby,omitempty"`
	Top              int               `json:"top,omitempty"`
	Skip             int               `json:"skip,omitempty"`
	Count            bool              `json:"count,omitempty"`
	Facets           []string          `json:"facets,omitempty"`
	Highlight        string            `json:"highlight,omitempty"`
	HighlightPreTag  string            `json:"highlightPreTag,omitempty"`
	HighlightPostTag string            `json:"highlightPostTag,omitempty"`
	VectorQueries    []wireVectorQuery `json:"vectorQueries,omitempty"`
	Debug            bool              `json:"debug,omitempty"`
}

// toRequest converts the wire shape into a queryengine.Request, filling
// in the hybrid-fusion defaults a caller left unset from cfg.
func (w wireSearchRequest) toRequest(cfg hybridDefaults) (queryengine.Request, error) {
	req := queryengine.Request{
		Search:           w.Search,
		QueryType:        queryengine.QueryTypeSimple,
		SearchMode:       queryengine.SearchModeAny,
		Filter:           w.Filter,
		Top:              w.Top,
		Skip:             w.Skip,
		Count:            w.Count,
		HighlightPreTag:  w.HighlightPreTag,
		HighlightPostTag: w.HighlightPostTag,
		Debug:            w.Debug,
		Fusion:           queryengine.FusionMode(cfg.fusion),
		TextWeight:       cfg.textWeight,
		VectorWeight:     cfg.vectorWeight,
		RRFConstant:      cfg.rrfConstant,
	}
	if w.QueryType == string(queryengine.QueryTypeFull) {
		req.QueryType = queryengine.QueryTypeFull
	}
	if w.SearchMode == string(queryengine.SearchModeAll) {
		req.SearchMode = queryengine.SearchModeAll
	}
	if w.SearchFields != "" {
		req.SearchFields = splitCSV(w.SearchFields)
	}
	if w.Select != "" {
		req.Select = splitCSV(w.Select)
	}
	if w.Highlight != "" {
		req.Highlight = splitCSV(w.Highlight)
	}
	if w.OrderBy != "" {
		clauses, err := queryengine.ParseOrderBy(w.OrderBy)
		if err != nil {
			return req, serr.Wrap(serr.ErrCodeInvalidInput, err, "invalid $orderby").WithTarget("orderby")
		}
		req.OrderBy = clauses
	}
	for _, spec := range w.Facets {
		fr, err := parseFacetSpec(spec)
		if err != nil {
			return req, err
		}
		req.Facets = append(req.Facets, fr)
	}
	for _, vq := range w.VectorQueries {
		for _, field := range splitCSV(vq.Fields) {
			req.VectorQueries = append(req.VectorQueries, queryengine.VectorQuery{Field: field, Vector: vq.Vector, K: vq.K})
		}
	}
	return req, nil
}

type hybridDefaults struct {
	fusion       string
	textWeight   float64
	vectorWeight float64
	rrfConstant  int
}

func splitCSV(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// parseFacetSpec parses one "field", "field,count:N" or "field,interval:N"
// facet specifier. Range facets (caller-supplied bucket boundaries) don't
// fit this flat string shape and aren't reachable over the wire; callers
// needing them use queryengine.Request directly.
func parseFacetSpec(spec string) (queryengine.FacetRequest, error) {
	parts := strings.Split(spec, ",")
	fr := queryengine.FacetRequest{Field: strings.TrimSpace(parts[0]), Kind: queryengine.FacetValue}
	for _, p := range parts[1:] {
		kv := strings.SplitN(strings.TrimSpace(p), ":", 2)
		if len(kv) != 2 {
			continue
		}
		switch kv[0] {
		case "count":
			n, err := strconv.Atoi(kv[1])
			if err != nil {
				return fr, serr.Wrap(serr.ErrCodeInvalidInput, err, "invalid facet count").WithTarget("facets")
			}
			fr.Size = n
		case "interval":
			n, err := strconv.ParseFloat(kv[1], 64)
			if err != nil {
				return fr, serr.Wrap(serr.ErrCodeInvalidInput, err, "invalid facet interval").WithTarget("facets")
			}
			fr.Kind = queryengine.FacetInterval
			fr.Interval = n
		}
	}
	return fr, nil
}

// parseSearchQueryString builds a wireSearchRequest from a GET request's
// query parameters, accepting both the OData "$"-prefixed and bare
// spellings of filter/select/top/skip/orderby/count.
func parseSearchQueryString(values url.Values) (wireSearchRequest, error) {
	w := wireSearchRequest{
		Search:           firstOf(values, "search"),
		QueryType:        firstOf(values, "queryType"),
		SearchMode:       firstOf(values, "searchMode"),
		SearchFields:     firstOf(values, "searchFields"),
		Select:           firstOf(values, "$select", "select"),
		Filter:           firstOf(values, "$filter", "filter"),
		OrderBy:          firstOf(values, "$orderby", "orderby"),
		Highlight:        firstOf(values, "highlight"),
		HighlightPreTag:  firstOf(values, "highlightPreTag"),
		HighlightPostTag: firstOf(values, "highlightPostTag"),
		Debug:            firstOf(values, "debug") == "true",
	}
	if v := firstOf(values, "$top", "top"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return w, serr.Wrap(serr.ErrCodeInvalidInput, err, "invalid $top").WithTarget("top")
		}
		w.Top = n
	}
	if v := firstOf(values, "$skip", "skip"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return w, serr.Wrap(serr.ErrCodeInvalidInput, err, "invalid $skip").WithTarget("skip")
		}
		w.Skip = n
	}
	if v := firstOf(values, "$count", "count"); v != "" {
		w.Count = v == "true"
	}
	if facets, ok := values["facet"]; ok {
		w.Facets = facets
	}
	return w, nil
}

func firstOf(values url.Values, keys ...string) string {
	for _, k := range keys {
		if v := values.Get(k); v != "" {
			return v
		}
	}
	return ""
}
