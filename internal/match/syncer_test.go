package match

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/your-org/photoclaim/internal/models"
)

type fakeLister struct {
	embeddings []models.UserEmbedding
	err        error
}

func (f *fakeLister) ListActiveUserEmbeddings(ctx context.Context) ([]models.UserEmbedding, error) {
	return f.embeddings, f.err
}

func TestSyncedIndexRebuild(t *testing.T) {
	lister := &fakeLister{embeddings: []models.UserEmbedding{
		userEmbedding("user-a", []float32{1, 0, 0}, true),
	}}
	idx := NewSyncedIndex(lister, time.Minute, slog.Default())

	// Empty before the first rebuild.
	neighbors, err := idx.SearchUserEmbeddings(context.Background(), []float32{1, 0, 0}, 3)
	if err != nil || len(neighbors) != 0 {
		t.Fatalf("before rebuild: neighbors=%d err=%v; want empty", len(neighbors), err)
	}

	if err := idx.Rebuild(context.Background()); err != nil {
		t.Fatalf("Rebuild: %v", err)
	}
	neighbors, err = idx.SearchUserEmbeddings(context.Background(), []float32{1, 0, 0}, 3)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(neighbors) != 1 || neighbors[0].UserID != "user-a" {
		t.Errorf("neighbors = %+v; want user-a", neighbors)
	}
}

func TestSyncedIndexKeepsSnapshotOnFailure(t *testing.T) {
	lister := &fakeLister{embeddings: []models.UserEmbedding{
		userEmbedding("user-a", []float32{1, 0, 0}, true),
	}}
	idx := NewSyncedIndex(lister, time.Minute, slog.Default())
	if err := idx.Rebuild(context.Background()); err != nil {
		t.Fatalf("Rebuild: %v", err)
	}

	lister.err = errors.New("db down")
	if err := idx.Rebuild(context.Background()); err == nil {
		t.Fatal("expected rebuild error")
	}

	neighbors, err := idx.SearchUserEmbeddings(context.Background(), []float32{1, 0, 0}, 3)
	if err != nil || len(neighbors) != 1 {
		t.Errorf("previous snapshot lost: neighbors=%d err=%v", len(neighbors), err)
	}
}
