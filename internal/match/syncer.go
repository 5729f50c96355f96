package match

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/your-org/photoclaim/internal/models"
)

// EnrollmentLister loads the active user embeddings to index.
type EnrollmentLister interface {
	ListActiveUserEmbeddings(ctx context.Context) ([]models.UserEmbedding, error)
}

// SyncedIndex is a Searcher backed by a MemoryIndex that is rebuilt from the
// database on an interval. Enrollment changes become visible to matching on
// the next rebuild. Searches between rebuilds hit an immutable snapshot, so
// no locking beyond the pointer swap is needed.
type SyncedIndex struct {
	lister   EnrollmentLister
	interval time.Duration
	logger   *slog.Logger
	current  atomic.Pointer[MemoryIndex]
}

func NewSyncedIndex(lister EnrollmentLister, interval time.Duration, logger *slog.Logger) *SyncedIndex {
	s := &SyncedIndex{lister: lister, interval: interval, logger: logger}
	s.current.Store(NewMemoryIndex())
	return s
}

// Rebuild replaces the index snapshot with the current database state.
func (s *SyncedIndex) Rebuild(ctx context.Context) error {
	embeddings, err := s.lister.ListActiveUserEmbeddings(ctx)
	if err != nil {
		return fmt.Errorf("rebuild embedding index: %w", err)
	}

	idx := NewMemoryIndex()
	for _, ue := range embeddings {
		idx.Add(ue)
	}
	s.current.Store(idx)
	s.logger.Debug("embedding index rebuilt", "size", idx.Len())
	return nil
}

// Run rebuilds the index on the configured interval until ctx is cancelled.
// A failed rebuild keeps the previous snapshot.
func (s *SyncedIndex) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := s.Rebuild(ctx); err != nil {
				s.logger.Error("embedding index rebuild failed", "error", err)
			}
		}
	}
}

// SearchUserEmbeddings implements Searcher against the latest snapshot.
func (s *SyncedIndex) SearchUserEmbeddings(ctx context.Context, embedding []float32, k int) ([]models.UserNeighbor, error) {
	return s.current.Load().SearchUserEmbeddings(ctx, embedding, k)
}
