package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/phrazzld/vidscribe/internal/cache"
	"github.com/phrazzld/vidscribe/internal/domain"
	"github.com/phrazzld/vidscribe/internal/store"
	"github.com/phrazzld/vidscribe/internal/task"
)

// Outcome tells the caller what a request did.
type Outcome string

// Request outcomes
const (
	// OutcomeAccepted means a new record was created and enqueued.
	OutcomeAccepted Outcome = "accepted"
	// OutcomeNotReady means a record exists and is still being produced.
	OutcomeNotReady Outcome = "not_ready"
	// OutcomeReady means the record is completed.
	OutcomeReady Outcome = "ready"
	// OutcomeFailed means the record is in error. Only Restart moves it on.
	OutcomeFailed Outcome = "failed"
)

// TaskSubmitter defines the interface for submitting background work
type TaskSubmitter interface {
	// Submit adds an item to the processing queue
	Submit(ctx context.Context, item task.WorkItem) (uuid.UUID, error)
}

// ResourceService provides resource-related operations
type ResourceService interface {
	// RequestTranscript finds or creates the transcript record and enqueues
	// it when it was created.
	RequestTranscript(ctx context.Context, videoID, language string) (*domain.Resource, Outcome, error)

	// RequestSummary does the same for a summary, and for the transcript
	// the summary is built from.
	RequestSummary(ctx context.Context, videoID, language string) (*domain.Resource, Outcome, error)

	// Get returns the current record, served from the cache when possible.
	Get(ctx context.Context, fp domain.Fingerprint) (*domain.Resource, error)

	// Restart moves a record in error back to pending and enqueues it.
	Restart(ctx context.Context, fp domain.Fingerprint) (*domain.Resource, error)
}

// resourceServiceImpl implements the ResourceService interface
type resourceServiceImpl struct {
	resources store.ResourceStore
	cache     cache.ResourceCache
	tasks     TaskSubmitter
	logger    *slog.Logger
}

var _ ResourceService = (*resourceServiceImpl)(nil)

// NewResourceService creates a ResourceService. A nil cache disables
// caching.
func NewResourceService(
	resources store.ResourceStore,
	resourceCache cache.ResourceCache,
	tasks TaskSubmitter,
	logger *slog.Logger,
) (ResourceService, error) {
	if resources == nil {
		return nil, errors.New("resources cannot be nil")
	}
	if tasks == nil {
		return nil, errors.New("tasks cannot be nil")
	}
	if logger == nil {
		return nil, errors.New("logger cannot be nil")
	}
	if resourceCache == nil {
		resourceCache = cache.Nop{}
	}
	return &resourceServiceImpl{
		resources: resources,
		cache:     resourceCache,
		tasks:     tasks,
		logger:    logger.With("component", "resource_service"),
	}, nil
}

// RequestTranscript implements ResourceService.
func (s *resourceServiceImpl) RequestTranscript(
	ctx context.Context,
	videoID, language string,
) (*domain.Resource, Outcome, error) {
	fp, err := domain.NewFingerprint(domain.KindTranscript, videoID, language)
	if err != nil {
		return nil, "", err
	}
	return s.request(ctx, fp)
}

// RequestSummary implements ResourceService.
func (s *resourceServiceImpl) RequestSummary(
	ctx context.Context,
	videoID, language string,
) (*domain.Resource, Outcome, error) {
	fp, err := domain.NewFingerprint(domain.KindSummary, videoID, language)
	if err != nil {
		return nil, "", err
	}
	if _, _, err := s.request(ctx, fp.WithKind(domain.KindTranscript)); err != nil {
		return nil, "", err
	}
	return s.request(ctx, fp)
}

func (s *resourceServiceImpl) request(ctx context.Context, fp domain.Fingerprint) (*domain.Resource, Outcome, error) {
	// Serve from cache when possible; a broken cache only costs a lookup
	if cached, err := s.cache.Get(ctx, fp); err == nil {
		return cached, OutcomeReady, nil
	} else if !errors.Is(err, cache.ErrMiss) {
		s.logger.WarnContext(ctx, "cache lookup failed", "fingerprint", fp.String(), "error", err)
	}

	// Find or create the record atomically so concurrent requests share one
	r, created, err := s.resources.FindOrCreate(ctx, fp)
	if err != nil {
		return nil, "", NewServiceError("resource", "find_or_create", err)
	}

	if created {
		s.logger.InfoContext(ctx, "resource record created",
			"record_id", r.ID,
			"fingerprint", fp.String())
		if err := s.enqueue(ctx, r); err != nil {
			return r, OutcomeFailed, err
		}
		return r, OutcomeAccepted, nil
	}

	// Existing record: report where it stands
	switch r.Status {
	case domain.StatusCompleted:
		s.fill(ctx, r)
		return r, OutcomeReady, nil
	case domain.StatusError:
		return r, OutcomeFailed, nil
	default:
		return r, OutcomeNotReady, nil
	}
}

// Get implements ResourceService.
func (s *resourceServiceImpl) Get(ctx context.Context, fp domain.Fingerprint) (*domain.Resource, error) {
	if cached, err := s.cache.Get(ctx, fp); err == nil {
		return cached, nil
	} else if !errors.Is(err, cache.ErrMiss) {
		s.logger.WarnContext(ctx, "cache lookup failed", "fingerprint", fp.String(), "error", err)
	}

	r, err := s.resources.Get(ctx, fp)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, NewServiceError("resource", "get", err)
	}
	if r.Status == domain.StatusCompleted {
		s.fill(ctx, r)
	}
	return r, nil
}

// Restart implements ResourceService. Concurrent restarts of the same
// record succeed exactly once; the others get ErrNotRestartable.
func (s *resourceServiceImpl) Restart(ctx context.Context, fp domain.Fingerprint) (*domain.Resource, error) {
	r, err := s.resources.Get(ctx, fp)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, NewServiceError("resource", "restart", err)
	}

	if err := r.Restart(); err != nil {
		return r, fmt.Errorf("%w: record is %s", ErrNotRestartable, r.Status)
	}
	// Only the restart that still sees the record in error wins
	if err := s.resources.UpdateIf(ctx, r, domain.StatusError); err != nil {
		if errors.Is(err, store.ErrConflict) {
			return nil, fmt.Errorf("%w: record was modified concurrently", ErrNotRestartable)
		}
		return nil, NewServiceError("resource", "restart", err)
	}

	// Drop the cached failure before the new job runs
	if err := s.cache.Invalidate(ctx, fp); err != nil {
		s.logger.WarnContext(ctx, "failed to invalidate cache on restart", "fingerprint", fp.String(), "error", err)
	}

	s.logger.InfoContext(ctx, "resource record restarted", "record_id", r.ID, "fingerprint", fp.String())
	if err := s.enqueue(ctx, r); err != nil {
		return r, err
	}
	return r, nil
}

// enqueue submits r. When the queue refuses it the record is failed so it
// does not sit in pending with no item behind it.
func (s *resourceServiceImpl) enqueue(ctx context.Context, r *domain.Resource) error {
	_, err := s.tasks.Submit(ctx, task.NewWorkItem(r))
	if err == nil {
		return nil
	}

	s.logger.ErrorContext(ctx, "failed to enqueue resource record",
		"record_id", r.ID,
		"fingerprint", r.Fingerprint().String(),
		"error", err)
	// Fail the record unless something else already picked it up
	if ferr := r.Fail("queue unavailable"); ferr == nil {
		if uerr := s.resources.UpdateIf(ctx, r, domain.StatusPending); uerr != nil {
			s.logger.ErrorContext(ctx, "failed to mark record failed after enqueue error",
				"record_id", r.ID,
				"error", uerr)
		}
	}
	return fmt.Errorf("failed to enqueue %s: %w", r.Fingerprint(), err)
}

func (s *resourceServiceImpl) fill(ctx context.Context, r *domain.Resource) {
	if err := s.cache.Set(ctx, r); err != nil {
		s.logger.WarnContext(ctx, "failed to cache completed record", "fingerprint", r.Fingerprint().String(), "error", err)
	}
}
