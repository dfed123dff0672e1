package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/vidscribe/internal/domain"
)

// ResourceStore defines the interface for resource record persistence.
// Version: 1.0
type ResourceStore interface {
	// FindOrCreate returns the record for fp, inserting a pending one when
	// none exists. created reports whether this call inserted it. The
	// operation is atomic: concurrent callers with the same fingerprint
	// observe exactly one created=true.
	FindOrCreate(ctx context.Context, fp domain.Fingerprint) (r *domain.Resource, created bool, err error)

	// Get retrieves the record for a fingerprint.
	// Returns ErrResourceNotFound if no record exists.
	Get(ctx context.Context, fp domain.Fingerprint) (*domain.Resource, error)

	// GetByID retrieves a record by its unique ID.
	// Returns ErrResourceNotFound if the record does not exist.
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Resource, error)

	// Update persists status, content and error of an existing record.
	// Returns ErrResourceNotFound if the record does not exist.
	Update(ctx context.Context, r *domain.Resource) error

	// UpdateIf persists r only while the stored status equals expected.
	// Returns ErrConflict when another writer moved the record first.
	UpdateIf(ctx context.Context, r *domain.Resource, expected domain.ResourceStatus) error

	// ListByStatus returns records in status whose last update is older than
	// olderThan. A zero olderThan returns all of them.
	ListByStatus(ctx context.Context, status domain.ResourceStatus, olderThan time.Duration) ([]*domain.Resource, error)

	// WithTx returns a new ResourceStore instance that uses the provided transaction.
	WithTx(tx *sql.Tx) ResourceStore
}

// DeadLetterStore persists jobs that exhausted their retries.
type DeadLetterStore interface {
	// Bury stores dl and the failed record r in one transaction, so a
	// dead-lettered job is never left with a non-terminal record.
	Bury(ctx context.Context, r *domain.Resource, dl *domain.DeadLetter) error

	// List returns the most recent dead letters, newest first.
	List(ctx context.Context, limit int) ([]*domain.DeadLetter, error)
}
