package artifact

import (
	"context"
	"fmt"
	"sync"
)

type memoryStore struct {
	mu      sync.Mutex
	retain  int
	history []Snapshot
}

// NewMemoryStore keeps snapshots in process memory. retain bounds the number
// of superseded versions kept; zero keeps all of them.
func NewMemoryStore(retain int) Store {
	return &memoryStore{retain: retain}
}

func (s *memoryStore) Save(ctx context.Context, snap Snapshot) (Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return Snapshot{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	snap.Training.Location = fmt.Sprintf("memory://training/v%d", snap.Training.Version)
	snap.Inference.Location = fmt.Sprintf("memory://inference/v%d", snap.Inference.Version)
	s.history = append(s.history, snap)

	return snap, nil
}

func (s *memoryStore) Load(_ context.Context) (Snapshot, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.history) == 0 {
		return Snapshot{}, false, nil
	}

	return s.history[len(s.history)-1], true, nil
}

func (s *memoryStore) Prune(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.retain > 0 && len(s.history) > s.retain+1 {
		s.history = append([]Snapshot(nil), s.history[len(s.history)-s.retain-1:]...)
	}

	return nil
}

func (s *memoryStore) Archived(_ context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.history) == 0 {
		return 0, nil
	}

	return len(s.history) - 1, nil
}
