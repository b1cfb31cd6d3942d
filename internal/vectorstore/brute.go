package vectorstore

import (
	"math"
	"sort"
	"sync"
)

// bruteForceIndex scans every candidate vector on each search, optionally
// restricted to a filter key-set. Grounded on the brute-force execution
// mode: simple, always-correct, used for small
// indexes or when exactness beats speed.
type bruteForceIndex struct {
	mu      sync.RWMutex
	vectors map[string][]float32
	cfg     FieldConfig
}

func newBruteForceIndex(cfg FieldConfig) *bruteForceIndex {
	return &bruteForceIndex{
		vectors: make(map[string][]float32),
		cfg:     cfg,
	}
}

func (b *bruteForceIndex) put(key string, vec []float32) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	stored := make([]float32, len(vec))
	copy(stored, vec)
	b.vectors[key] = stored
	return nil
}

func (b *bruteForceIndex) delete(key string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.vectors, key)
}

func (b *bruteForceIndex) len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.vectors)
}

func (b *bruteForceIndex) dims() int {
	return b.cfg.Dimensions
}

func (b *bruteForceIndex) search(query []float32, k int, filterKeys map[string]struct{}) ([]Result, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	results := make([]Result, 0, len(b.vectors))
	for key, vec := range b.vectors {
		if filterKeys != nil {
			if _, ok := filterKeys[key]; !ok {
				continue
			}
		}
		results = append(results, Result{Key: key, Score: similarityScore(b.cfg.Similarity, query, vec)})
	}

	sort.Slice(results, func(i, j int) bool { return results[i].Score > results[j].Score })
	if k > 0 && len(results) > k {
		results = results[:k]
	}
	return results, nil
}

// similarityScore computes a higher-is-better score for the configured
// similarity. Exact scale isn't load-bearing — only monotonicity matters.
func similarityScore(sim Similarity, a, b []float32) float32 {
	switch sim {
	case SimilarityDotProduct:
		return dot(a, b)
	case SimilarityEuclidean:
		d := euclideanDistance(a, b)
		return 1.0 / (1.0 + d)
	default: // cosine
		na, nb := norm(a), norm(b)
		if na == 0 || nb == 0 {
			return 0
		}
		return dot(a, b) / (na * nb)
	}
}

func dot(a, b []float32) float32 {
	var sum float32
	for i := range a {
		sum += a[i] * b[i]
	}
	return sum
}

func norm(a []float32) float32 {
	var sum float64
	for _, v := range a {
		sum += float64(v) * float64(v)
	}
	return float32(math.Sqrt(sum))
}

func euclideanDistance(a, b []float32) float32 {
	var sum float64
	for i := range a {
		d := float64(a[i]) - float64(b[i])
		sum += d * d
	}
	return float32(math.Sqrt(sum))
}
