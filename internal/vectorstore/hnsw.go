package vectorstore

import (
	"sort"
	"sync"

	"github.com/coder/hnsw"
)

// hnswIndex wraps a coder/hnsw graph for one vector field. Grounded on
// the teacher's internal/store/hnsw.go: same lazy-deletion strategy (the
// underlying graph never shrinks; deleted keys are just dropped from the
// id<->key mapping) and the same string-id <-> uint64-key bookkeeping,
// generalized here to support dot-product and Euclidean similarity in
// addition to cosine, and to post-filter by a caller-supplied key set
// via oversampling.
type hnswIndex struct {
	mu  sync.RWMutex
	cfg FieldConfig

	graph *hnsw.Graph[uint64]

	idToKey map[string]uint64
	keyToID map[uint64]string
	nextKey uint64

	// raw keeps the (post-normalization) vector for each live id so
	// snapshots can be rebuilt without relying on reading the vector
	// back out of the hnsw graph itself.
	raw map[string][]float32
}

func newHNSWIndex(cfg FieldConfig) *hnswIndex {
	graph := hnsw.NewGraph[uint64]()
	switch cfg.Similarity {
	case SimilarityEuclidean:
		graph.Distance = hnsw.EuclideanDistance
	case SimilarityDotProduct:
		graph.Distance = negativeDotDistance
	default:
		graph.Distance = hnsw.CosineDistance
	}
	graph.M = cfg.M
	graph.EfSearch = cfg.EfSearch
	graph.Ml = 0.25

	return &hnswIndex{
		cfg:     cfg,
		graph:   graph,
		idToKey: make(map[string]uint64),
		keyToID: make(map[uint64]string),
		raw:     make(map[string][]float32),
	}
}

// negativeDotDistance turns dot-product similarity into a distance (lower
// is closer), matching the hnsw.Graph's min-distance search contract.
func negativeDotDistance(a, b []float32) float32 {
	return -dot(a, b)
}

func (h *hnswIndex) put(key string, vec []float32) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if existing, ok := h.idToKey[key]; ok {
		// Lazy delete: drop the mapping only, matching the teacher's
		// workaround for coder/hnsw's last-node-deletion bug.
		delete(h.keyToID, existing)
		delete(h.idToKey, key)
		delete(h.raw, key)
	}

	stored := make([]float32, len(vec))
	copy(stored, vec)
	if h.cfg.Similarity == SimilarityCosine {
		normalizeInPlace(stored)
	}

	internalKey := h.nextKey
	h.nextKey++
	h.graph.Add(hnsw.MakeNode(internalKey, stored))
	h.idToKey[key] = internalKey
	h.keyToID[internalKey] = key
	h.raw[key] = stored
	return nil
}

func (h *hnswIndex) delete(key string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if internalKey, ok := h.idToKey[key]; ok {
		delete(h.keyToID, internalKey)
		delete(h.idToKey, key)
		delete(h.raw, key)
	}
}

func (h *hnswIndex) len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.idToKey)
}

func (h *hnswIndex) dims() int {
	return h.cfg.Dimensions
}

func (h *hnswIndex) search(query []float32, k int, filterKeys map[string]struct{}) ([]Result, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if h.graph.Len() == 0 {
		return []Result{}, nil
	}

	q := make([]float32, len(query))
	copy(q, query)
	if h.cfg.Similarity == SimilarityCosine {
		normalizeInPlace(q)
	}

	// When filtering, oversample so enough survivors remain after
	// dropping ids outside filterKeys and orphaned (lazily-deleted) nodes.
	fetch := k
	if filterKeys != nil {
		mult := h.cfg.OversampleMultiplier
		if mult < 1 {
			mult = 1
		}
		fetch = k * mult
	}
	if fetch < k {
		fetch = k
	}

	nodes := h.graph.Search(q, fetch)

	results := make([]Result, 0, len(nodes))
	for _, node := range nodes {
		id, ok := h.keyToID[node.Key]
		if !ok {
			continue // orphaned by lazy delete
		}
		if filterKeys != nil {
			if _, ok := filterKeys[id]; !ok {
				continue
			}
		}
		distance := h.graph.Distance(q, node.Value)
		results = append(results, Result{Key: id, Score: distanceToScore(h.cfg.Similarity, distance)})
	}

	sort.Slice(results, func(i, j int) bool { return results[i].Score > results[j].Score })
	if len(results) > k {
		results = results[:k]
	}
	return results, nil
}

func distanceToScore(sim Similarity, distance float32) float32 {
	switch sim {
	case SimilarityDotProduct:
		return -distance // negativeDotDistance inverted back to a dot score
	case SimilarityEuclidean:
		return 1.0 / (1.0 + distance)
	default: // cosine, distance in [0,2]
		return 1.0 - distance/2.0
	}
}

func normalizeInPlace(v []float32) {
	n := norm(v)
	if n == 0 {
		return
	}
	inv := 1.0 / n
	for i := range v {
		v[i] *= inv
	}
}
