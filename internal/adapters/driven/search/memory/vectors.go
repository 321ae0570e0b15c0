package memory

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/custodia-labs/lexcheck/internal/core/domain"
	"github.com/custodia-labs/lexcheck/internal/core/ports/driven"
)

// Ensure VectorIndex implements the interface.
var _ driven.VectorIndex = (*VectorIndex)(nil)

// VectorIndex is an exhaustive cosine-similarity index.
type VectorIndex struct {
	mu        sync.RWMutex
	dimension int
	order     []string
	points    map[string]driven.VectorPoint
	closed    bool
}

// NewVectorIndex creates an index for vectors of the given dimension.
// A zero dimension is fixed by the first upserted point.
func NewVectorIndex(dimension int) *VectorIndex {
	return &VectorIndex{dimension: dimension, points: make(map[string]driven.VectorPoint)}
}

// Upsert inserts or replaces points. The whole batch is rejected on a dimension mismatch.
func (v *VectorIndex) Upsert(_ context.Context, points []driven.VectorPoint) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.closed {
		return fmt.Errorf("vector index: %w", domain.ErrSearchUnavailable)
	}
	dim := v.dimension
	for _, p := range points {
		if p.ID == "" {
			return fmt.Errorf("vector index: point without id: %w", domain.ErrInvalidInput)
		}
		if dim == 0 {
			dim = len(p.Vector)
		}
		if len(p.Vector) != dim {
			return fmt.Errorf("vector index: point %s has %d dimensions, want %d: %w",
				p.ID, len(p.Vector), dim, domain.ErrInvalidInput)
		}
	}
	v.dimension = dim

	for _, p := range points {
		if _, exists := v.points[p.ID]; !exists {
			v.order = append(v.order, p.ID)
		}
		v.points[p.ID] = p
	}
	return nil
}

// Remove deletes points by ID.
func (v *VectorIndex) Remove(_ context.Context, ids []string) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.closed {
		return fmt.Errorf("vector index: %w", domain.ErrSearchUnavailable)
	}
	v.order = removeIDs(v.order, ids, func(id string) { delete(v.points, id) })
	return nil
}

// Search returns the nearest points by cosine similarity.
func (v *VectorIndex) Search(_ context.Context, q driven.VectorQuery) ([]driven.VectorHit, error) {
	v.mu.RLock()
	defer v.mu.RUnlock()

	if v.closed {
		return nil, fmt.Errorf("vector index: %w", domain.ErrSearchUnavailable)
	}
	if v.dimension != 0 && len(q.Vector) != v.dimension {
		return nil, fmt.Errorf("vector index: query has %d dimensions, want %d: %w",
			len(q.Vector), v.dimension, domain.ErrInvalidInput)
	}

	var hits []driven.VectorHit
	for _, id := range v.order {
		p := v.points[id]
		if !MatchesMetadata(p.Payload, q.Match) {
			continue
		}
		score := Cosine(q.Vector, p.Vector)
		if score < q.ScoreThreshold {
			continue
		}
		hits = append(hits, driven.VectorHit{ID: p.ID, Score: score, Payload: p.Payload})
	}

	sort.SliceStable(hits, func(i, j int) bool { return hits[i].Score > hits[j].Score })
	if q.Limit > 0 && len(hits) > q.Limit {
		hits = hits[:q.Limit]
	}
	return hits, nil
}

// Close marks the index unusable.
func (v *VectorIndex) Close() error {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.closed = true
	return nil
}

// Cosine returns the cosine similarity of a and b, or 0 when either is a zero vector.
func Cosine(a, b []float32) float64 {
	var dot, na, nb float64
	for i := range a {
		if i >= len(b) {
			break
		}
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
