package mocks

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/vidscribe/internal/domain"
	"github.com/phrazzld/vidscribe/internal/store"
)

// MockResourceStore is an in-memory store.ResourceStore. FindOrCreate is
// atomic under its mutex, like the unique constraint of the real store.
// The Fn fields override a method when set.
type MockResourceStore struct {
	mu     sync.Mutex
	byID   map[uuid.UUID]*domain.Resource
	byFP   map[string]uuid.UUID
	writes int

	GetByIDFn      func(ctx context.Context, id uuid.UUID) (*domain.Resource, error)
	UpdateFn       func(ctx context.Context, r *domain.Resource) error
	UpdateIfFn     func(ctx context.Context, r *domain.Resource, expected domain.ResourceStatus) error
	ListByStatusFn func(ctx context.Context, status domain.ResourceStatus, olderThan time.Duration) ([]*domain.Resource, error)
}

var _ store.ResourceStore = (*MockResourceStore)(nil)

// NewMockResourceStore creates an empty store.
func NewMockResourceStore() *MockResourceStore {
	return &MockResourceStore{
		byID: make(map[uuid.UUID]*domain.Resource),
		byFP: make(map[string]uuid.UUID),
	}
}

func clone(r *domain.Resource) *domain.Resource {
	c := *r
	return &c
}

// Put stores a copy of r, replacing any record with the same fingerprint.
func (m *MockResourceStore) Put(r *domain.Resource) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if old, ok := m.byFP[r.Fingerprint().String()]; ok {
		delete(m.byID, old)
	}
	m.byID[r.ID] = clone(r)
	m.byFP[r.Fingerprint().String()] = r.ID
}

// Record returns a copy of the stored record, or nil.
func (m *MockResourceStore) Record(id uuid.UUID) *domain.Resource {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.byID[id]
	if !ok {
		return nil
	}
	return clone(r)
}

// Writes returns how many Update and UpdateIf calls succeeded.
func (m *MockResourceStore) Writes() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.writes
}

// FindOrCreate implements store.ResourceStore.
func (m *MockResourceStore) FindOrCreate(ctx context.Context, fp domain.Fingerprint) (*domain.Resource, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if id, ok := m.byFP[fp.String()]; ok {
		return clone(m.byID[id]), false, nil
	}
	r, err := domain.NewResource(fp)
	if err != nil {
		return nil, false, fmt.Errorf("%w: %v", store.ErrInvalidEntity, err)
	}
	m.byID[r.ID] = r
	m.byFP[fp.String()] = r.ID
	return clone(r), true, nil
}

// Get implements store.ResourceStore.
func (m *MockResourceStore) Get(_ context.Context, fp domain.Fingerprint) (*domain.Resource, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id, ok := m.byFP[fp.String()]
	if !ok {
		return nil, store.ErrResourceNotFound
	}
	return clone(m.byID[id]), nil
}

// GetByID implements store.ResourceStore.
func (m *MockResourceStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.Resource, error) {
	if m.GetByIDFn != nil {
		return m.GetByIDFn(ctx, id)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.byID[id]
	if !ok {
		return nil, store.ErrResourceNotFound
	}
	return clone(r), nil
}

// Update implements store.ResourceStore.
func (m *MockResourceStore) Update(ctx context.Context, r *domain.Resource) error {
	if m.UpdateFn != nil {
		return m.UpdateFn(ctx, r)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.updateLocked(r)
}

// UpdateIf implements store.ResourceStore.
func (m *MockResourceStore) UpdateIf(ctx context.Context, r *domain.Resource, expected domain.ResourceStatus) error {
	if m.UpdateIfFn != nil {
		return m.UpdateIfFn(ctx, r, expected)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	current, ok := m.byID[r.ID]
	if !ok {
		return store.ErrResourceNotFound
	}
	if current.Status != expected {
		return fmt.Errorf("%w: record %s is %s, expected %s", store.ErrConflict, r.ID, current.Status, expected)
	}
	return m.updateLocked(r)
}

func (m *MockResourceStore) updateLocked(r *domain.Resource) error {
	if _, ok := m.byID[r.ID]; !ok {
		return store.ErrResourceNotFound
	}
	if err := r.Validate(); err != nil {
		return fmt.Errorf("%w: %v", store.ErrInvalidEntity, err)
	}
	m.byID[r.ID] = clone(r)
	m.writes++
	return nil
}

// ListByStatus implements store.ResourceStore.
func (m *MockResourceStore) ListByStatus(
	ctx context.Context,
	status domain.ResourceStatus,
	olderThan time.Duration,
) ([]*domain.Resource, error) {
	if m.ListByStatusFn != nil {
		return m.ListByStatusFn(ctx, status, olderThan)
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	cutoff := time.Now().UTC().Add(-olderThan)
	var out []*domain.Resource
	for _, r := range m.byID {
		if r.Status != status {
			continue
		}
		if olderThan > 0 && r.UpdatedAt.After(cutoff) {
			continue
		}
		out = append(out, clone(r))
	}
	return out, nil
}

// WithTx implements store.ResourceStore.
func (m *MockResourceStore) WithTx(*sql.Tx) store.ResourceStore {
	return m
}
