package repository

import (
	"context"
	"fmt"
	"math"
	"net/http"
	"sort"
	"sync"

	"github.com/user/movierec/internal/model"
)

// MemoryVectorStore in-process VectorStore with exact search. Used by local
// runs (VECTOR_STORE=memory) and tests.
type MemoryVectorStore struct {
	mu          sync.RWMutex
	collections map[string]*memoryCollection
}

type memoryCollection struct {
	dimension int
	distance  Distance
	points    map[int64]model.VectorPoint
}

func NewMemoryVectorStore() *MemoryVectorStore {
	return &MemoryVectorStore{collections: make(map[string]*memoryCollection)}
}

func (s *MemoryVectorStore) RecreateCollection(_ context.Context, name string, dimension int, distance Distance) error {
	if dimension <= 0 {
		return storeErr("recreateCollection", http.StatusBadRequest, "dimension must be positive, got %d", dimension)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.collections[name] = &memoryCollection{
		dimension: dimension,
		distance:  distance,
		points:    make(map[int64]model.VectorPoint),
	}
	return nil
}

func (s *MemoryVectorStore) Upsert(_ context.Context, name string, points []model.VectorPoint) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	col, ok := s.collections[name]
	if !ok {
		return storeErr("upsert", http.StatusNotFound, "collection %s not found", name)
	}
	for _, p := range points {
		if len(p.Vector) != col.dimension {
			return storeErr("upsert", http.StatusBadRequest,
				"point %d: vector length %d, collection expects %d", p.ID, len(p.Vector), col.dimension)
		}
	}
	for _, p := range points {
		col.points[p.ID] = p
	}
	return nil
}

func (s *MemoryVectorStore) SearchSimilar(_ context.Context, name string, seedID int64, limit int) ([]model.ScoredPoint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	col, ok := s.collections[name]
	if !ok {
		return nil, storeErr("searchSimilar", http.StatusNotFound, "collection %s not found", name)
	}
	seed, ok := col.points[seedID]
	if !ok {
		return nil, storeErr("searchSimilar", http.StatusNotFound, "no point with id %d", seedID)
	}

	hits := make([]model.ScoredPoint, 0, len(col.points))
	for id, p := range col.points {
		if id == seedID {
			continue
		}
		hits = append(hits, model.ScoredPoint{
			ID:      id,
			Score:   score(col.distance, seed.Vector, p.Vector),
			Payload: p.Payload,
		})
	}
	higherIsBetter := col.distance == Cosine || col.distance == Dot
	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Score == hits[j].Score {
			return hits[i].ID < hits[j].ID
		}
		if higherIsBetter {
			return hits[i].Score > hits[j].Score
		}
		return hits[i].Score < hits[j].Score
	})
	if limit >= 0 && len(hits) > limit {
		hits = hits[:limit]
	}
	return hits, nil
}

func (s *MemoryVectorStore) Scroll(_ context.Context, name string, limit, offset int) ([]model.VectorPoint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	col, ok := s.collections[name]
	if !ok {
		return nil, storeErr("scroll", http.StatusNotFound, "collection %s not found", name)
	}
	if offset < 0 || limit < 0 {
		return nil, storeErr("scroll", http.StatusBadRequest, "invalid offset %d or limit %d", offset, limit)
	}
	ids := make([]int64, 0, len(col.points))
	for id := range col.points {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	if offset >= len(ids) {
		return []model.VectorPoint{}, nil
	}
	end := offset + limit
	if end > len(ids) {
		end = len(ids)
	}
	out := make([]model.VectorPoint, 0, end-offset)
	for _, id := range ids[offset:end] {
		p := col.points[id]
		p.Vector = nil
		out = append(out, p)
	}
	return out, nil
}

func (s *MemoryVectorStore) Close() error { return nil }

// Dimension reports the configured dimension of a collection, 0 if it does not exist.
func (s *MemoryVectorStore) Dimension(name string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if col, ok := s.collections[name]; ok {
		return col.dimension
	}
	return 0
}

// Count number of points in a collection.
func (s *MemoryVectorStore) Count(name string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if col, ok := s.collections[name]; ok {
		return len(col.points)
	}
	return 0
}

// Point returns a stored point.
func (s *MemoryVectorStore) Point(name string, id int64) (model.VectorPoint, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	col, ok := s.collections[name]
	if !ok {
		return model.VectorPoint{}, false
	}
	p, ok := col.points[id]
	return p, ok
}

func score(d Distance, a, b []float32) float64 {
	switch d {
	case Dot:
		return dot(a, b)
	case Euclid:
		var sum float64
		for i := range a {
			diff := float64(a[i]) - float64(b[i])
			sum += diff * diff
		}
		return math.Sqrt(sum)
	case Manhattan:
		var sum float64
		for i := range a {
			sum += math.Abs(float64(a[i]) - float64(b[i]))
		}
		return sum
	default:
		na, nb := math.Sqrt(dot(a, a)), math.Sqrt(dot(b, b))
		if na == 0 || nb == 0 {
			return 0
		}
		return dot(a, b) / (na * nb)
	}
}

func dot(a, b []float32) float64 {
	var sum float64
	for i := range a {
		sum += float64(a[i]) * float64(b[i])
	}
	return sum
}

// MemoryDocumentStore in-process DocumentStore (DOCUMENT_STORE=memory and tests).
type MemoryDocumentStore struct {
	mu   sync.RWMutex
	docs map[int64]map[string]any

	// FailCommit, when set, makes every Commit fail without writing.
	FailCommit error
}

func NewMemoryDocumentStore() *MemoryDocumentStore {
	return &MemoryDocumentStore{docs: make(map[int64]map[string]any)}
}

func (s *MemoryDocumentStore) Get(_ context.Context, id int64) (*model.MovieMetadata, error) {
	s.mu.RLock()
	fields, ok := s.docs[id]
	s.mu.RUnlock()
	if !ok {
		return nil, nil
	}
	return MetadataFromFields(fields)
}

// Fields returns the stored fields of a document.
func (s *MemoryDocumentStore) Fields(id int64) (map[string]any, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	fields, ok := s.docs[id]
	return fields, ok
}

func (s *MemoryDocumentStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.docs)
}

func (s *MemoryDocumentStore) NewBatch() DocumentBatch {
	return &memoryBatch{store: s}
}

func (s *MemoryDocumentStore) Close() error { return nil }

type memoryBatch struct {
	store     *MemoryDocumentStore
	docs      []Document
	committed bool
}

func (b *memoryBatch) Add(doc Document) error {
	if b.committed {
		return fmt.Errorf("memory batch: add after commit")
	}
	b.docs = append(b.docs, doc)
	return nil
}

func (b *memoryBatch) Len() int { return len(b.docs) }

func (b *memoryBatch) Commit(_ context.Context) error {
	if b.committed {
		return fmt.Errorf("memory batch: already committed")
	}
	b.committed = true
	if b.store.FailCommit != nil {
		return b.store.FailCommit
	}
	b.store.mu.Lock()
	defer b.store.mu.Unlock()
	for _, d := range b.docs {
		b.store.docs[d.ID] = Clean(d.Fields).(map[string]any)
	}
	return nil
}
