package queryengine

import "sort"

// DefaultRRFConstant is the standard reciprocal-rank-fusion constant and is
// used across the search ecosystem (Azure AI Search, OpenSearch, etc.).
const DefaultRRFConstant = 60

// textRank/vectorRank hold one ranked result from component B or C, the
// minimal shape fusion needs regardless of source.
type rankedResult struct {
	key   string
	score float64
	rank  int // 1-indexed; 0 means absent from this list
}

// FusedHit is one result after combining the text and vector ranked
// lists, grounded on the teacher's FusedResult shape in
// internal/search/fusion.go.
type FusedHit struct {
	Key         string
	Score       float64 // final fused score (normalized 0-1)
	TextScore   float64
	TextRank    int
	VectorScore float64
	VectorRank  int
	InBothLists bool
}

// FuseRRF combines text and vector ranked lists via Reciprocal Rank
// Fusion: score(d) = Σ weight_i / (k + rank_i). Documents missing from a
// list are charged that list's contribution at missing_rank =
// max(len(text), len(vector)) + 1, the same convention as the teacher's
// RRFFusion.Fuse.
func FuseRRF(textResults, vectorResults []rankedResult, textWeight, vectorWeight float64, k int) []FusedHit {
	if k <= 0 {
		k = DefaultRRFConstant
	}
	if len(textResults) == 0 && len(vectorResults) == 0 {
		return []FusedHit{}
	}

	byKey := make(map[string]*FusedHit, len(textResults)+len(vectorResults))
	getOrCreate := func(key string) *FusedHit {
		if h, ok := byKey[key]; ok {
			return h
		}
		h := &FusedHit{Key: key}
		byKey[key] = h
		return h
	}

	for _, r := range textResults {
		h := getOrCreate(r.key)
		h.TextScore = r.score
		h.TextRank = r.rank
		h.Score += textWeight / float64(k+r.rank)
	}
	for _, r := range vectorResults {
		h := getOrCreate(r.key)
		h.VectorScore = r.score
		h.VectorRank = r.rank
		h.Score += vectorWeight / float64(k+r.rank)
		if h.TextRank > 0 {
			h.InBothLists = true
		}
	}

	missingRank := len(textResults) + 1
	if len(vectorResults) > len(textResults) {
		missingRank = len(vectorResults) + 1
	}
	for _, h := range byKey {
		if h.TextRank == 0 && h.VectorRank > 0 {
			h.Score += textWeight / float64(k+missingRank)
		}
		if h.VectorRank == 0 && h.TextRank > 0 {
			h.Score += vectorWeight / float64(k+missingRank)
		}
	}

	hits := sortedFusedHits(byKey)
	normalizeFusedScores(hits)
	return hits
}

// FuseWeighted combines text and vector results by a simple weighted sum
// of their raw scores rather than rank position, for callers that prefer
// score-space blending over RRF's rank-space blending.
func FuseWeighted(textResults, vectorResults []rankedResult, textWeight, vectorWeight float64) []FusedHit {
	if len(textResults) == 0 && len(vectorResults) == 0 {
		return []FusedHit{}
	}
	byKey := make(map[string]*FusedHit, len(textResults)+len(vectorResults))
	getOrCreate := func(key string) *FusedHit {
		if h, ok := byKey[key]; ok {
			return h
		}
		h := &FusedHit{Key: key}
		byKey[key] = h
		return h
	}
	for _, r := range textResults {
		h := getOrCreate(r.key)
		h.TextScore = r.score
		h.TextRank = r.rank
	}
	for _, r := range vectorResults {
		h := getOrCreate(r.key)
		h.VectorScore = r.score
		h.VectorRank = r.rank
		if h.TextRank > 0 {
			h.InBothLists = true
		}
	}
	for _, h := range byKey {
		h.Score = textWeight*h.TextScore + vectorWeight*h.VectorScore
	}
	hits := sortedFusedHits(byKey)
	normalizeFusedScores(hits)
	return hits
}

func sortedFusedHits(byKey map[string]*FusedHit) []FusedHit {
	hits := make([]FusedHit, 0, len(byKey))
	for _, h := range byKey {
		hits = append(hits, *h)
	}
	sort.Slice(hits, func(i, j int) bool {
		a, b := hits[i], hits[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		if a.InBothLists != b.InBothLists {
			return a.InBothLists
		}
		if a.TextScore != b.TextScore {
			return a.TextScore > b.TextScore
		}
		return a.Key < b.Key
	})
	return hits
}

// normalizeFusedScores scales every score to 0-1 relative to the top
// hit, matching the teacher's RRFFusion.normalize.
func normalizeFusedScores(hits []FusedHit) {
	if len(hits) == 0 || hits[0].Score == 0 {
		return
	}
	max := hits[0].Score
	for i := range hits {
		hits[i].Score /= max
	}
}
