package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// DeadLetter records a job that exhausted its retries. It is kept for
// inspection and never replayed automatically.
type DeadLetter struct {
	ID         uuid.UUID       `json:"id"`
	JobID      uuid.UUID       `json:"job_id"`
	RecordID   uuid.UUID       `json:"record_id"`
	Kind       ResourceKind    `json:"kind"`
	ResourceID string          `json:"resource_id"`
	Language   string          `json:"language"`
	Attempts   int             `json:"attempts"`
	Reason     string          `json:"reason"`
	Payload    json.RawMessage `json:"payload,omitempty"`
	CreatedAt  time.Time       `json:"created_at"`
}
