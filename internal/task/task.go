package task

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/vidscribe/internal/domain"
)

// Type identifies which handler processes a work item. The values match the
// resource kinds they produce.
type Type string

// Work item types
const (
	TypeTranscript = Type(domain.KindTranscript)
	TypeSummary    = Type(domain.KindSummary)
)

// WorkItem is a unit of background work. ID stays the same across retries
// and re-deliveries of the same item; a restart of the record creates a new
// item with a new ID.
type WorkItem struct {
	ID         uuid.UUID       `json:"id"`
	Type       Type            `json:"type"`
	ResourceID string          `json:"resource_id"`
	Language   string          `json:"language"`
	RecordID   uuid.UUID       `json:"record_id"`
	Payload    json.RawMessage `json:"payload,omitempty"`
	Attempt    int             `json:"attempt"`
	EnqueuedAt time.Time       `json:"enqueued_at"`
}

// NewWorkItem builds the item that processes record r.
func NewWorkItem(r *domain.Resource) WorkItem {
	return WorkItem{
		Type:       Type(r.Kind),
		ResourceID: r.ResourceID,
		Language:   r.Language,
		RecordID:   r.ID,
	}
}

// Handler produces the content for a work item.
// Version: 1.0
type Handler interface {
	// Handle returns the content to store on the record. Handlers must be
	// idempotent: the same item may be delivered more than once.
	Handle(ctx context.Context, item WorkItem) (string, error)
}

// HandlerFunc adapts a function to the Handler interface.
type HandlerFunc func(ctx context.Context, item WorkItem) (string, error)

// Handle calls f.
func (f HandlerFunc) Handle(ctx context.Context, item WorkItem) (string, error) {
	return f(ctx, item)
}

// ErrNotReady is returned by handlers whose input is still being produced by
// another job. The item is re-delivered later without consuming an attempt.
var ErrNotReady = errors.New("dependency not ready")

type permanentError struct {
	err error
}

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent marks err as not worth retrying.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// IsPermanent reports whether err was marked with Permanent.
func IsPermanent(err error) bool {
	var pe *permanentError
	return errors.As(err, &pe)
}
