// Package match turns extracted face embeddings into ranked claim
// candidates by querying the active user embeddings under L2 distance.
package match

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/google/uuid"

	"github.com/your-org/photoclaim/internal/config"
	"github.com/your-org/photoclaim/internal/models"
)

// ErrIndexUnavailable marks a vector index failure. Retryable: the
// orchestrator backs off and re-runs the unit.
var ErrIndexUnavailable = errors.New("vector index unavailable")

// Searcher answers K-nearest-neighbor queries over active user embeddings.
// Implemented by the pgvector-backed store and by the in-memory index.
type Searcher interface {
	SearchUserEmbeddings(ctx context.Context, embedding []float32, k int) ([]models.UserNeighbor, error)
}

// Similarity maps an L2 distance to a score in (0, 1]: identical vectors
// score 1, the score decays monotonically with distance. The default match
// threshold of 0.5 therefore corresponds to distance 1.0.
func Similarity(distance float64) float64 {
	return 1 / (1 + distance)
}

type Engine struct {
	searcher Searcher
	cfg      config.MatchingConfig
}

func NewEngine(searcher Searcher, cfg config.MatchingConfig) *Engine {
	return &Engine{searcher: searcher, cfg: cfg}
}

// MatchPhoto proposes claim candidates for a photo's face embeddings.
// For each face the nearest active user embeddings are fetched, near-ties
// (within TieEpsilon of distance) prefer the most recent enrollment, and
// anything below MatchThreshold is dropped. A user appearing for several
// faces keeps their best score. Zero candidates is a normal outcome.
func (e *Engine) MatchPhoto(ctx context.Context, photoID uuid.UUID, faces [][]float32) ([]models.MatchCandidate, error) {
	best := make(map[string]float64)

	for _, face := range faces {
		// Over-fetch so a near-tie sitting just past the K-th slot still
		// reaches the tie-break before results are capped back to TopK.
		neighbors, err := e.searcher.SearchUserEmbeddings(ctx, face, e.cfg.TopK*2)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrIndexUnavailable, err)
		}

		e.breakTies(neighbors)

		seen := make(map[string]bool, len(neighbors))
		kept := 0
		for _, n := range neighbors {
			if kept >= e.cfg.TopK {
				break
			}
			sim := Similarity(n.Distance)
			if sim < e.cfg.MatchThreshold {
				continue
			}
			// One candidate per user per face: a user enrolled twice
			// should not occupy two of the top-K slots.
			if seen[n.UserID] {
				continue
			}
			seen[n.UserID] = true
			kept++
			if sim > best[n.UserID] {
				best[n.UserID] = sim
			}
		}
	}

	candidates := make([]models.MatchCandidate, 0, len(best))
	for userID, score := range best {
		candidates = append(candidates, models.MatchCandidate{
			UserID:  userID,
			PhotoID: photoID,
			Score:   float32(score),
		})
	}
	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].Score != candidates[j].Score {
			return candidates[i].Score > candidates[j].Score
		}
		return candidates[i].UserID < candidates[j].UserID
	})
	return candidates, nil
}

// breakTies re-orders near-equidistant neighbors so the most recently
// enrolled embedding wins: the latest enrollment is assumed the most
// accurate likeness.
func (e *Engine) breakTies(neighbors []models.UserNeighbor) {
	sort.SliceStable(neighbors, func(i, j int) bool {
		di, dj := neighbors[i].Distance, neighbors[j].Distance
		if math.Abs(di-dj) <= e.cfg.TieEpsilon {
			return neighbors[i].EnrolledAt.After(neighbors[j].EnrolledAt)
		}
		return di < dj
	})
}
