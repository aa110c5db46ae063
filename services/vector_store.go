package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github/itish2003/docqa/models"
)

// VectorStore creates per-session document indexes.
type VectorStore interface {
	CreateIndex(ctx context.Context, name string) (DocumentIndex, error)
}

// DocumentIndex stores the chunks of one document with their embeddings.
type DocumentIndex interface {
	Name() string
	Add(ctx context.Context, chunks []models.Chunk, vectors [][]float32) error
	// Query returns at most k chunks ordered by ascending distance to vector.
	Query(ctx context.Context, vector []float32, k int) ([]models.Chunk, error)
	Count(ctx context.Context) (int, error)
	Drop(ctx context.Context) error
}

var errIndexDropped = errors.New("index has been dropped")

// MemoryVectorStore keeps indexes in process using brute-force L2 distance.
type MemoryVectorStore struct{}

func NewMemoryVectorStore() *MemoryVectorStore { return &MemoryVectorStore{} }

func (MemoryVectorStore) CreateIndex(_ context.Context, name string) (DocumentIndex, error) {
	return &memoryIndex{name: name}, nil
}

type memoryIndex struct {
	mu        sync.RWMutex
	name      string
	dimension int
	chunks    []models.Chunk
	vectors   [][]float32
	dropped   bool
}

func (m *memoryIndex) Name() string { return m.name }

func (m *memoryIndex) Add(_ context.Context, chunks []models.Chunk, vectors [][]float32) error {
	if len(chunks) != len(vectors) {
		return fmt.Errorf("chunks/vectors length mismatch: %d vs %d", len(chunks), len(vectors))
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.dropped {
		return errIndexDropped
	}
	for i, v := range vectors {
		if m.dimension == 0 {
			m.dimension = len(v)
		}
		if len(v) != m.dimension {
			return fmt.Errorf("vector %d has dimension %d, index has %d", i, len(v), m.dimension)
		}
		cp := make([]float32, len(v))
		copy(cp, v)
		m.vectors = append(m.vectors, cp)
		m.chunks = append(m.chunks, chunks[i])
	}
	return nil
}

func (m *memoryIndex) Query(_ context.Context, vector []float32, k int) ([]models.Chunk, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.dropped {
		return nil, errIndexDropped
	}
	if k <= 0 || len(m.vectors) == 0 {
		return nil, nil
	}
	if len(vector) != m.dimension {
		return nil, fmt.Errorf("query dimension %d, index has %d", len(vector), m.dimension)
	}

	type hit struct {
		idx  int
		dist float64
	}
	hits := make([]hit, len(m.vectors))
	for i, v := range m.vectors {
		hits[i] = hit{idx: i, dist: squaredL2(vector, v)}
	}
	// Stable sort keeps insertion order for equal distances.
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].dist < hits[j].dist })

	k = min(k, len(hits))
	out := make([]models.Chunk, 0, k)
	for _, h := range hits[:k] {
		out = append(out, m.chunks[h.idx])
	}
	return out, nil
}

func (m *memoryIndex) Count(context.Context) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.chunks), nil
}

func (m *memoryIndex) Drop(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.dropped = true
	m.chunks = nil
	m.vectors = nil
	return nil
}

func squaredL2(a, b []float32) float64 {
	var sum float64
	for i := range a {
		d := float64(a[i]) - float64(b[i])
		sum += d * d
	}
	return sum
}
