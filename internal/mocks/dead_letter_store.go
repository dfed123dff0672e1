package mocks

import (
	"context"
	"sort"
	"sync"

	"github.com/phrazzld/vidscribe/internal/domain"
	"github.com/phrazzld/vidscribe/internal/store"
)

// MockDeadLetterStore records dead letters in memory. When Resources is set
// the failed record is written to it as part of Bury, under the same
// processing guard as the Postgres store.
type MockDeadLetterStore struct {
	Resources *MockResourceStore
	BuryFn    func(ctx context.Context, r *domain.Resource, dl *domain.DeadLetter) error

	mu      sync.Mutex
	letters []*domain.DeadLetter
}

var _ store.DeadLetterStore = (*MockDeadLetterStore)(nil)

// Bury implements store.DeadLetterStore.
func (m *MockDeadLetterStore) Bury(ctx context.Context, r *domain.Resource, dl *domain.DeadLetter) error {
	if m.BuryFn != nil {
		return m.BuryFn(ctx, r, dl)
	}
	if m.Resources != nil {
		if err := m.Resources.UpdateIf(ctx, r, domain.StatusProcessing); err != nil {
			return err
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	c := *dl
	m.letters = append(m.letters, &c)
	return nil
}

// List implements store.DeadLetterStore.
func (m *MockDeadLetterStore) List(_ context.Context, limit int) ([]*domain.DeadLetter, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*domain.DeadLetter, len(m.letters))
	copy(out, m.letters)
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Letters returns everything buried so far, oldest first.
func (m *MockDeadLetterStore) Letters() []*domain.DeadLetter {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*domain.DeadLetter, len(m.letters))
	copy(out, m.letters)
	return out
}
