package events

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/vidscribe/internal/domain"
)

// Event types
const (
	TypeResourceCompleted = "resource.completed"
	TypeResourceFailed    = "resource.failed"
)

// ResourceEvent reports that a resource record reached a terminal state.
type ResourceEvent struct {
	// ID is a unique identifier for this event
	ID uuid.UUID `json:"id"`

	// JobID is the work item that produced the transition. Duplicate
	// suppression is keyed on it.
	JobID uuid.UUID `json:"job_id"`

	Type       string                `json:"type"`
	RecordID   uuid.UUID             `json:"record_id"`
	Kind       domain.ResourceKind   `json:"kind"`
	ResourceID string                `json:"resource_id"`
	Language   string                `json:"language"`
	Status     domain.ResourceStatus `json:"status"`
	Error      string                `json:"error,omitempty"`
	OccurredAt time.Time             `json:"occurred_at"`
}

// NewResourceEvent builds the event for r's current state. r must be
// completed or in error.
func NewResourceEvent(jobID uuid.UUID, r *domain.Resource) *ResourceEvent {
	eventType := TypeResourceCompleted
	if r.Status == domain.StatusError {
		eventType = TypeResourceFailed
	}
	return &ResourceEvent{
		ID:         uuid.New(),
		JobID:      jobID,
		Type:       eventType,
		RecordID:   r.ID,
		Kind:       r.Kind,
		ResourceID: r.ResourceID,
		Language:   r.Language,
		Status:     r.Status,
		Error:      r.Error,
		OccurredAt: time.Now().UTC(),
	}
}

// EventHandler defines an interface for components that can handle events.
type EventHandler interface {
	// HandleEvent processes the given event within the provided context.
	// Returns an error if the event cannot be handled successfully.
	HandleEvent(ctx context.Context, event *ResourceEvent) error
}

// EventEmitter defines an interface for components that can emit events.
// This allows the worker to publish events without knowing the transport.
type EventEmitter interface {
	// EmitEvent publishes the given event.
	// Returns an error if the event cannot be emitted.
	EmitEvent(ctx context.Context, event *ResourceEvent) error
}
