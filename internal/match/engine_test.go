package match

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/your-org/photoclaim/internal/config"
	"github.com/your-org/photoclaim/internal/models"
)

type fakeSearcher struct {
	neighbors []models.UserNeighbor
	err       error
}

func (f *fakeSearcher) SearchUserEmbeddings(ctx context.Context, embedding []float32, k int) ([]models.UserNeighbor, error) {
	if f.err != nil {
		return nil, f.err
	}
	if len(f.neighbors) > k {
		return f.neighbors[:k], nil
	}
	return f.neighbors, nil
}

func matchCfg() config.MatchingConfig {
	return config.MatchingConfig{
		MatchThreshold:       0.5,
		AutoApproveThreshold: 0.8,
		TopK:                 5,
		TieEpsilon:           1e-3,
	}
}

func neighbor(user string, distance float64, enrolledAt time.Time) models.UserNeighbor {
	return models.UserNeighbor{
		EmbeddingID: uuid.New(),
		UserID:      user,
		Distance:    distance,
		EnrolledAt:  enrolledAt,
	}
}

func TestSimilarity(t *testing.T) {
	tests := []struct {
		distance float64
		want     float64
	}{
		{0, 1.0},
		{1.0, 0.5},
		{3.0, 0.25},
	}
	for _, tc := range tests {
		if got := Similarity(tc.distance); got != tc.want {
			t.Errorf("Similarity(%v) = %v; want %v", tc.distance, got, tc.want)
		}
	}
}

func TestMatchPhotoExactMatchRanksFirst(t *testing.T) {
	now := time.Now()
	searcher := &fakeSearcher{neighbors: []models.UserNeighbor{
		neighbor("user-b", 0.8, now),
		neighbor("user-a", 0, now), // identical embedding
	}}
	engine := NewEngine(searcher, matchCfg())

	photoID := uuid.New()
	candidates, err := engine.MatchPhoto(context.Background(), photoID, [][]float32{{1, 2, 3}})
	if err != nil {
		t.Fatalf("MatchPhoto() error = %v", err)
	}
	if len(candidates) != 2 {
		t.Fatalf("got %d candidates; want 2", len(candidates))
	}
	if candidates[0].UserID != "user-a" || candidates[0].Score != 1.0 {
		t.Errorf("first candidate = %+v; want user-a with score 1.0", candidates[0])
	}
	if candidates[0].PhotoID != photoID {
		t.Errorf("candidate photo = %s; want %s", candidates[0].PhotoID, photoID)
	}
}

func TestMatchPhotoBelowThresholdExcluded(t *testing.T) {
	// Two embeddings equidistant at distance 5 → similarity 1/6, both out.
	now := time.Now()
	searcher := &fakeSearcher{neighbors: []models.UserNeighbor{
		neighbor("user-a", 5.0, now),
		neighbor("user-b", 5.0, now),
	}}
	engine := NewEngine(searcher, matchCfg())

	candidates, err := engine.MatchPhoto(context.Background(), uuid.New(), [][]float32{{1}})
	if err != nil {
		t.Fatalf("MatchPhoto() error = %v", err)
	}
	if len(candidates) != 0 {
		t.Errorf("got %d candidates; want 0 (no match is not an error)", len(candidates))
	}
}

func TestMatchPhotoTieBreakPrefersRecentEnrollment(t *testing.T) {
	old := time.Now().Add(-24 * time.Hour)
	recent := time.Now()
	searcher := &fakeSearcher{neighbors: []models.UserNeighbor{
		neighbor("user-old", 0.50000, old),
		neighbor("user-new", 0.50001, recent), // within epsilon
	}}

	cfg := matchCfg()
	cfg.TopK = 1 // only one slot: the tie-break decides who gets it
	engine := NewEngine(searcher, cfg)

	candidates, err := engine.MatchPhoto(context.Background(), uuid.New(), [][]float32{{1}})
	if err != nil {
		t.Fatalf("MatchPhoto() error = %v", err)
	}
	if len(candidates) != 1 {
		t.Fatalf("got %d candidates; want 1", len(candidates))
	}
	if candidates[0].UserID != "user-new" {
		t.Errorf("tie went to %s; want user-new (latest enrollment)", candidates[0].UserID)
	}
}

func TestMatchPhotoBestScoreAcrossFaces(t *testing.T) {
	now := time.Now()
	searcher := &fakeSearcher{neighbors: []models.UserNeighbor{
		neighbor("user-a", 0.4, now),
	}}
	engine := NewEngine(searcher, matchCfg())

	// Same user matches both faces; one claim candidate with the best score.
	candidates, err := engine.MatchPhoto(context.Background(), uuid.New(),
		[][]float32{{1}, {2}})
	if err != nil {
		t.Fatalf("MatchPhoto() error = %v", err)
	}
	if len(candidates) != 1 {
		t.Fatalf("got %d candidates; want 1", len(candidates))
	}
}

func TestMatchPhotoZeroFaces(t *testing.T) {
	engine := NewEngine(&fakeSearcher{}, matchCfg())

	candidates, err := engine.MatchPhoto(context.Background(), uuid.New(), nil)
	if err != nil {
		t.Fatalf("MatchPhoto() error = %v", err)
	}
	if len(candidates) != 0 {
		t.Errorf("got %d candidates for zero faces; want 0", len(candidates))
	}
}

func TestMatchPhotoIndexFailureIsRetryable(t *testing.T) {
	searcher := &fakeSearcher{err: errors.New("connection refused")}
	engine := NewEngine(searcher, matchCfg())

	_, err := engine.MatchPhoto(context.Background(), uuid.New(), [][]float32{{1}})
	if !errors.Is(err, ErrIndexUnavailable) {
		t.Errorf("error = %v; want ErrIndexUnavailable", err)
	}
}
