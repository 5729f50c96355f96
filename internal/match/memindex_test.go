package match

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/your-org/photoclaim/internal/models"
)

func userEmbedding(user string, vec []float32, active bool) models.UserEmbedding {
	return models.UserEmbedding{
		ID:        uuid.New(),
		UserID:    user,
		Embedding: vec,
		IsActive:  active,
		UpdatedAt: time.Now(),
	}
}

func TestL2Distance(t *testing.T) {
	tests := []struct {
		name string
		a, b []float32
		want float64
	}{
		{"identical", []float32{1, 2, 3}, []float32{1, 2, 3}, 0},
		{"unit apart", []float32{0, 0}, []float32{1, 0}, 1},
		{"pythagorean", []float32{0, 0}, []float32{3, 4}, 5},
		{"mismatched lengths", []float32{1}, []float32{1, 2}, math.MaxFloat64},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := l2Distance(tc.a, tc.b); got != tc.want {
				t.Errorf("l2Distance(%v, %v) = %v; want %v", tc.a, tc.b, got, tc.want)
			}
		})
	}
}

func TestMemoryIndexSearch(t *testing.T) {
	idx := NewMemoryIndex()
	idx.Add(userEmbedding("user-a", []float32{0, 0, 0}, true))
	idx.Add(userEmbedding("user-b", []float32{10, 10, 10}, true))

	neighbors, err := idx.SearchUserEmbeddings(context.Background(), []float32{0.1, 0, 0}, 2)
	if err != nil {
		t.Fatalf("SearchUserEmbeddings() error = %v", err)
	}
	if len(neighbors) != 2 {
		t.Fatalf("got %d neighbors; want 2", len(neighbors))
	}
	if neighbors[0].UserID != "user-a" {
		t.Errorf("nearest = %s; want user-a", neighbors[0].UserID)
	}
	if neighbors[0].Distance >= neighbors[1].Distance {
		t.Errorf("neighbors not ordered by distance: %v then %v",
			neighbors[0].Distance, neighbors[1].Distance)
	}
}

func TestMemoryIndexFiltersInactive(t *testing.T) {
	idx := NewMemoryIndex()
	inactive := userEmbedding("user-a", []float32{0, 0}, false)
	idx.Add(inactive)
	idx.Add(userEmbedding("user-b", []float32{5, 5}, true))

	neighbors, err := idx.SearchUserEmbeddings(context.Background(), []float32{0, 0}, 5)
	if err != nil {
		t.Fatalf("SearchUserEmbeddings() error = %v", err)
	}
	for _, n := range neighbors {
		if n.UserID == "user-a" {
			t.Error("inactive embedding surfaced in search results")
		}
	}
}

func TestMemoryIndexSetActive(t *testing.T) {
	idx := NewMemoryIndex()
	ue := userEmbedding("user-a", []float32{0, 0}, true)
	idx.Add(ue)

	idx.SetActive(ue.ID, false)
	neighbors, _ := idx.SearchUserEmbeddings(context.Background(), []float32{0, 0}, 5)
	if len(neighbors) != 0 {
		t.Fatalf("got %d neighbors after deactivation; want 0", len(neighbors))
	}

	idx.SetActive(ue.ID, true)
	neighbors, _ = idx.SearchUserEmbeddings(context.Background(), []float32{0, 0}, 5)
	if len(neighbors) != 1 {
		t.Fatalf("got %d neighbors after reactivation; want 1", len(neighbors))
	}
}

func TestMemoryIndexEmpty(t *testing.T) {
	idx := NewMemoryIndex()
	neighbors, err := idx.SearchUserEmbeddings(context.Background(), []float32{1, 2}, 3)
	if err != nil {
		t.Fatalf("SearchUserEmbeddings() error = %v", err)
	}
	if len(neighbors) != 0 {
		t.Errorf("got %d neighbors from empty index; want 0", len(neighbors))
	}
}
