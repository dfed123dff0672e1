package events

import (
	"context"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/phrazzld/vidscribe/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// MockEventHandler implements the EventHandler interface for testing
type MockEventHandler struct {
	mu           sync.Mutex
	HandledCount int
	LastEvent    *ResourceEvent
	HandlerError error
}

// HandleEvent records the event and returns the configured error
func (h *MockEventHandler) HandleEvent(ctx context.Context, event *ResourceEvent) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.HandledCount++
	h.LastEvent = event
	return h.HandlerError
}

func newRecord(t *testing.T) *domain.Resource {
	t.Helper()
	fp, err := domain.NewFingerprint(domain.KindSummary, "vid42", "pt-BR")
	require.NoError(t, err)
	r, err := domain.NewResource(fp)
	require.NoError(t, err)
	return r
}

func TestNewResourceEvent(t *testing.T) {
	t.Parallel()
	jobID := uuid.New()

	t.Run("completed", func(t *testing.T) {
		r := newRecord(t)
		require.NoError(t, r.MarkProcessing())
		require.NoError(t, r.Complete("resumo"))

		event := NewResourceEvent(jobID, r)

		assert.NotEqual(t, uuid.Nil, event.ID)
		assert.Equal(t, jobID, event.JobID)
		assert.Equal(t, TypeResourceCompleted, event.Type)
		assert.Equal(t, r.ID, event.RecordID)
		assert.Equal(t, domain.KindSummary, event.Kind)
		assert.Equal(t, "vid42", event.ResourceID)
		assert.Equal(t, r.Language, event.Language)
		assert.Equal(t, domain.StatusCompleted, event.Status)
		assert.Empty(t, event.Error)
		assert.False(t, event.OccurredAt.IsZero())
	})

	t.Run("failed", func(t *testing.T) {
		r := newRecord(t)
		require.NoError(t, r.Fail("permanent failure: transcript unavailable"))

		event := NewResourceEvent(jobID, r)

		assert.Equal(t, TypeResourceFailed, event.Type)
		assert.Equal(t, domain.StatusError, event.Status)
		assert.Equal(t, "permanent failure: transcript unavailable", event.Error)
	})
}
