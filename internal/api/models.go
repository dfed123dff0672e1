package api

import (
	"time"

	"github.com/phrazzld/vidscribe/internal/credential"
	"github.com/phrazzld/vidscribe/internal/domain"
)

// ResourceRequest is the body of the request and restart endpoints.
type ResourceRequest struct {
	Language string `json:"language" validate:"required,max=35"`
}

// ResourceResponse is the public view of a transcript or summary record.
type ResourceResponse struct {
	ID        string    `json:"id"`
	VideoID   string    `json:"video_id"`
	Kind      string    `json:"kind"`
	Language  string    `json:"language"`
	Status    string    `json:"status"`
	Content   string    `json:"content,omitempty"`
	Error     string    `json:"error,omitempty"`
	UpdatedAt time.Time `json:"updated_at"`
}

func resourceToResponse(r *domain.Resource) ResourceResponse {
	return ResourceResponse{
		ID:        r.ID.String(),
		VideoID:   r.ResourceID,
		Kind:      string(r.Kind),
		Language:  r.Language,
		Status:    string(r.Status),
		Content:   r.Content,
		Error:     r.Error,
		UpdatedAt: r.UpdatedAt,
	}
}

// CredentialsResponse lists the health of every pooled credential.
type CredentialsResponse struct {
	Active      int                 `json:"active"`
	Total       int                 `json:"total"`
	Credentials []credential.Health `json:"credentials"`
}

// WorkersRestartRequest is the optional body of the worker restart endpoint.
// Workers of zero keeps the current pool size.
type WorkersRestartRequest struct {
	Workers int `json:"workers" validate:"min=0,max=256"`
}

// WorkersResponse reports the worker count after a control message.
type WorkersResponse struct {
	Workers int `json:"workers"`
}

// DeadLetterResponse is one buried work item.
type DeadLetterResponse struct {
	ID        string    `json:"id"`
	JobID     string    `json:"job_id"`
	RecordID  string    `json:"record_id"`
	Kind      string    `json:"kind"`
	VideoID   string    `json:"video_id"`
	Language  string    `json:"language"`
	Attempts  int       `json:"attempts"`
	Reason    string    `json:"reason"`
	CreatedAt time.Time `json:"created_at"`
}

func deadLetterToResponse(dl *domain.DeadLetter) DeadLetterResponse {
	return DeadLetterResponse{
		ID:        dl.ID.String(),
		JobID:     dl.JobID.String(),
		RecordID:  dl.RecordID.String(),
		Kind:      string(dl.Kind),
		VideoID:   dl.ResourceID,
		Language:  dl.Language,
		Attempts:  dl.Attempts,
		Reason:    dl.Reason,
		CreatedAt: dl.CreatedAt,
	}
}
