package match

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/coder/hnsw"
	"github.com/google/uuid"

	"github.com/your-org/photoclaim/internal/models"
)

// maxNeighbors is the HNSW M parameter.
const maxNeighbors = 16

type indexEntry struct {
	userID     string
	enrolledAt time.Time
	active     bool
}

// MemoryIndex is an in-memory approximate nearest-neighbor index over user
// embeddings, for installs without pgvector and for tests. HNSW does not
// support deletion, so deactivated embeddings stay in the graph and are
// filtered at query time.
type MemoryIndex struct {
	mu      sync.RWMutex
	graph   *hnsw.Graph[string]
	entries map[string]indexEntry
}

func NewMemoryIndex() *MemoryIndex {
	g := hnsw.NewGraph[string]()
	g.M = maxNeighbors
	g.Ml = 1.0 / float64(maxNeighbors)
	g.Distance = hnsw.EuclideanDistance
	return &MemoryIndex{
		graph:   g,
		entries: make(map[string]indexEntry),
	}
}

// Add indexes one user embedding.
func (m *MemoryIndex) Add(ue models.UserEmbedding) {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := ue.ID.String()
	m.graph.Add(hnsw.MakeNode(key, ue.Embedding))
	m.entries[key] = indexEntry{
		userID:     ue.UserID,
		enrolledAt: ue.UpdatedAt,
		active:     ue.IsActive,
	}
}

// SetActive toggles matching participation without touching the graph.
func (m *MemoryIndex) SetActive(id uuid.UUID, active bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := id.String()
	if entry, ok := m.entries[key]; ok {
		entry.active = active
		m.entries[key] = entry
	}
}

// Len returns the number of indexed embeddings, including inactive ones.
func (m *MemoryIndex) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}

// SearchUserEmbeddings implements Searcher. Distances are recomputed
// exactly so ranking does not depend on graph approximation.
func (m *MemoryIndex) SearchUserEmbeddings(ctx context.Context, embedding []float32, k int) ([]models.UserNeighbor, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	if len(m.entries) == 0 {
		return nil, nil
	}

	// Over-fetch to survive inactive entries being filtered out.
	nodes := m.graph.Search(embedding, k*2)

	neighbors := make([]models.UserNeighbor, 0, k)
	for _, node := range nodes {
		entry, ok := m.entries[node.Key]
		if !ok || !entry.active {
			continue
		}
		id, err := uuid.Parse(node.Key)
		if err != nil {
			continue
		}
		neighbors = append(neighbors, models.UserNeighbor{
			EmbeddingID: id,
			UserID:      entry.userID,
			Distance:    l2Distance(embedding, node.Value),
			EnrolledAt:  entry.enrolledAt,
		})
		if len(neighbors) == k {
			break
		}
	}
	return neighbors, nil
}

// l2Distance computes the exact euclidean distance between two vectors.
func l2Distance(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return math.MaxFloat64
	}
	var sum float64
	for i := range a {
		d := float64(a[i]) - float64(b[i])
		sum += d * d
	}
	return math.Sqrt(sum)
}
