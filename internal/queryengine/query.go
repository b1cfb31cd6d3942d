package queryengine

import (
	"fmt"

	"github.com/blevesearch/bleve/v2"

	"github.com/searchemu/searchemu/internal/textindex"
	"github.com/searchemu/searchemu/internal/vectorstore"
)

// maxCandidatePool bounds how many text-index documents are pulled into
// memory to evaluate the filter expression and fusion ranking. Real
// upstream services push filters down into the index; this emulator
// evaluates them in Go against stored field values instead, which is
// correct but not sub-linear — acceptable at the document-count scale
// a single-node emulation targets.
const maxCandidatePool = 100000

// Engine executes search requests against one index's text reader and
// vector store.
type Engine struct {
	reader  *textindex.Reader
	vectors *vectorstore.Store
}

func New(reader *textindex.Reader, vectors *vectorstore.Store) *Engine {
	return &Engine{reader: reader, vectors: vectors}
}

// Execute runs req and returns the paged, scored, faceted, highlighted
// result set.
func (e *Engine) Execute(req Request) (*Response, error) {
	filterExpr, err := ParseFilter(req.Filter)
	if err != nil {
		return nil, fmt.Errorf("invalid filter: %w", err)
	}

	top := req.Top
	if top <= 0 {
		top = 50
	}
	skip := req.Skip
	if skip < 0 {
		skip = 0
	}

	var filterKeys []string
	if filterExpr != nil {
		filterKeys, err = e.filteredKeys(filterExpr)
		if err != nil {
			return nil, err
		}
	}

	var (
		textHits   map[string]Hit
		textRanked []rankedResult
		facets     map[string][]FacetValueCount
	)
	// The text leg is the only source of filtered, non-vector hits, so it
	// must run whenever there's no vector query to fall back on — even if
	// req.Search is empty, matching Azure Search's documented default of
	// "search= omitted means match-all" rather than match-nothing.
	if req.Search != "" || len(req.Facets) > 0 || req.Count || len(req.VectorQueries) == 0 {
		textHits, textRanked, facets, err = e.runTextQuery(req, filterExpr)
		if err != nil {
			return nil, err
		}
	} else {
		textHits = make(map[string]Hit)
	}

	var vectorRanked []rankedResult
	vectorScores := make(map[string]float64)
	vectorRankByKey := make(map[string]int)
	if len(req.VectorQueries) > 0 {
		vectorRanked, err = e.runVectorQueries(req, filterKeys)
		if err != nil {
			return nil, err
		}
		for _, r := range vectorRanked {
			vectorScores[r.key] = r.score
			vectorRankByKey[r.key] = r.rank
		}
	}

	var finalHits []Hit
	var debug map[string]*SubScores

	switch {
	case len(req.VectorQueries) > 0 && req.Search != "":
		textWeight, vectorWeight, k := fusionParams(req)
		var fused []FusedHit
		if req.Fusion == FusionWeighted {
			fused = FuseWeighted(textRanked, vectorRanked, textWeight, vectorWeight)
		} else {
			fused = FuseRRF(textRanked, vectorRanked, textWeight, vectorWeight, k)
		}
		debug = make(map[string]*SubScores, len(fused))
		for _, f := range fused {
			h := textHits[f.Key]
			h.Key = f.Key
			h.Score = f.Score
			finalHits = append(finalHits, h)
			debug[f.Key] = &SubScores{
				TextScore: f.TextScore, TextRank: f.TextRank,
				VectorScore: f.VectorScore, VectorRank: f.VectorRank,
				FusedScore: f.Score,
			}
		}
	case len(req.VectorQueries) > 0:
		for _, r := range vectorRanked {
			finalHits = append(finalHits, Hit{Key: r.key, Score: r.score})
		}
	default:
		for _, h := range textHits {
			finalHits = append(finalHits, h)
		}
	}

	// Fetch field values for any hit not already populated from the text
	// query (pure-vector hits, or hits outside the text candidate pool).
	if err := e.populateMissingFields(finalHits); err != nil {
		return nil, err
	}

	SortHits(finalHits, req.OrderBy)

	var count int64 = -1
	if req.Count {
		count = int64(len(finalHits))
	}

	paged := pageHits(finalHits, skip, top)
	if req.Debug {
		for i := range paged {
			if d, ok := debug[paged[i].Key]; ok {
				paged[i].Debug = d
			}
		}
	}
	if len(req.Highlight) > 0 {
		if err := e.applyHighlights(paged, req); err != nil {
			return nil, err
		}
	}
	if len(req.Select) > 0 {
		applySelect(paged, req.Select)
	}

	resp := &Response{Count: count, Hits: paged, Facets: facets}
	return resp, nil
}

func fusionParams(req Request) (textWeight, vectorWeight float64, k int) {
	textWeight, vectorWeight = req.TextWeight, req.VectorWeight
	if textWeight == 0 && vectorWeight == 0 {
		textWeight, vectorWeight = 0.3, 0.7
	}
	k = req.RRFConstant
	if k <= 0 {
		k = DefaultRRFConstant
	}
	return
}

func pageHits(hits []Hit, skip, top int) []Hit {
	if skip >= len(hits) {
		return []Hit{}
	}
	end := skip + top
	if end > len(hits) {
		end = len(hits)
	}
	return append([]Hit(nil), hits[skip:end]...)
}

func applySelect(hits []Hit, fields []string) {
	keep := make(map[string]struct{}, len(fields))
	for _, f := range fields {
		keep[f] = struct{}{}
	}
	for i := range hits {
		if hits[i].Fields == nil {
			continue
		}
		filtered := make(map[string]interface{}, len(keep))
		for k, v := range hits[i].Fields {
			if _, ok := keep[k]; ok {
				filtered[k] = v
			}
		}
		hits[i].Fields = filtered
	}
}

// runTextQuery executes the text-search leg (simple or full grammar) and
// returns both a key->Hit map (for field population / highlighting) and
// the 1-indexed rank list fusion needs.
func (e *Engine) runTextQuery(req Request, filterExpr FilterExpr) (map[string]Hit, []rankedResult, map[string][]FacetValueCount, error) {
	bleveQuery, err := buildBleveQuery(req)
	if err != nil {
		return nil, nil, nil, err
	}
	if filterExpr != nil {
		keys, err := e.filteredKeys(filterExpr)
		if err != nil {
			return nil, nil, nil, err
		}
		bleveQuery = bleve.NewConjunctionQuery(bleveQuery, bleve.NewDocIDQuery(keys))
	}
	searchReq := bleve.NewSearchRequest(bleveQuery)
	searchReq.Size = maxCandidatePool
	searchReq.Fields = []string{"*"}
	if len(req.Highlight) > 0 {
		hl := bleve.NewHighlight()
		for _, f := range req.Highlight {
			hl.AddField(f)
		}
		searchReq.Highlight = hl
	}
	if err := addFacetsToRequest(searchReq, req.Facets); err != nil {
		return nil, nil, nil, err
	}

	result, err := e.reader.Bleve().Search(searchReq)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("text search: %w", err)
	}

	hits := make(map[string]Hit, len(result.Hits))
	ranked := make([]rankedResult, 0, len(result.Hits))
	rank := 0
	for _, hit := range result.Hits {
		if filterExpr != nil && !filterExpr.Eval(hit.Fields) {
			continue
		}
		rank++
		hits[hit.ID] = Hit{
			Key:       hit.ID,
			Score:     hit.Score,
			Fields:    hit.Fields,
			Highlights: hit.Fragments,
		}
		ranked = append(ranked, rankedResult{key: hit.ID, score: hit.Score, rank: rank})
	}

	facets := extractFacets(result)
	return hits, ranked, facets, nil
}

func (e *Engine) runVectorQueries(req Request, filterKeys []string) ([]rankedResult, error) {
	if len(req.VectorQueries) == 0 {
		return nil, nil
	}
	// Multiple vectorQueries fan out across fields; results are merged by
	// keeping each key's best score across queries before ranking; cross-field
	// vector query combination is left implementation-defined.
	best := make(map[string]float64)
	for _, vq := range req.VectorQueries {
		k := vq.K
		if k <= 0 {
			k = 50
		}
		results, err := e.vectors.Search(vq.Field, vq.Vector, k, filterKeys)
		if err != nil {
			if _, ok := err.(*vectorstore.ErrDimensionMismatch); ok {
				return nil, fmt.Errorf("invalid vector query: %w", err)
			}
			return nil, fmt.Errorf("vector search on field %q: %w", vq.Field, err)
		}
		for _, r := range results {
			if existing, ok := best[r.Key]; !ok || float64(r.Score) > existing {
				best[r.Key] = float64(r.Score)
			}
		}
	}
	ranked := rankedFromScores(best)
	return ranked, nil
}

func rankedFromScores(scores map[string]float64) []rankedResult {
	keys := make([]string, 0, len(scores))
	for k := range scores {
		keys = append(keys, k)
	}
	sortByScoreDesc(keys, scores)
	ranked := make([]rankedResult, len(keys))
	for i, k := range keys {
		ranked[i] = rankedResult{key: k, score: scores[k], rank: i + 1}
	}
	return ranked
}

func sortByScoreDesc(keys []string, scores map[string]float64) {
	for i := 1; i < len(keys); i++ {
		for j := i; j > 0 && scores[keys[j]] > scores[keys[j-1]]; j-- {
			keys[j], keys[j-1] = keys[j-1], keys[j]
		}
	}
}

// filteredKeys evaluates filterExpr against every document's stored
// fields, returning the matching key set the vector store uses to
// restrict k-NN search.
func (e *Engine) filteredKeys(filterExpr FilterExpr) ([]string, error) {
	req := bleve.NewSearchRequest(bleve.NewMatchAllQuery())
	req.Size = maxCandidatePool
	req.Fields = []string{"*"}
	result, err := e.reader.Bleve().Search(req)
	if err != nil {
		return nil, fmt.Errorf("evaluate filter: %w", err)
	}
	keys := []string{}
	for _, hit := range result.Hits {
		if filterExpr.Eval(hit.Fields) {
			keys = append(keys, hit.ID)
		}
	}
	return keys, nil
}

func (e *Engine) populateMissingFields(hits []Hit) error {
	var missing []string
	for _, h := range hits {
		if h.Fields == nil {
			missing = append(missing, h.Key)
		}
	}
	if len(missing) == 0 {
		return nil
	}
	req := bleve.NewSearchRequest(bleve.NewDocIDQuery(missing))
	req.Size = len(missing)
	req.Fields = []string{"*"}
	result, err := e.reader.Bleve().Search(req)
	if err != nil {
		return fmt.Errorf("fetch document fields: %w", err)
	}
	byID := make(map[string]map[string]interface{}, len(result.Hits))
	for _, hit := range result.Hits {
		byID[hit.ID] = hit.Fields
	}
	for i := range hits {
		if hits[i].Fields == nil {
			hits[i].Fields = byID[hits[i].Key]
		}
	}
	return nil
}

func (e *Engine) applyHighlights(hits []Hit, req Request) error {
	for i := range hits {
		if hits[i].Highlights == nil {
			continue
		}
		hits[i].Highlights = applyHighlightTags(hits[i].Highlights, req.HighlightPreTag, req.HighlightPostTag)
	}
	return nil
}

// buildBleveQuery translates the simple or full query grammar into a
// bleve query, scoped to searchFields when given.
func buildBleveQuery(req Request) (bleve.Query, error) {
	if req.Search == "" || req.Search == "*" {
		return bleve.NewMatchAllQuery(), nil
	}
	if req.QueryType == QueryTypeFull {
		q := bleve.NewQueryStringQuery(req.Search)
		return q, nil
	}
	return buildSimpleQuery(req.Search, req.SearchFields, req.SearchMode)
}
