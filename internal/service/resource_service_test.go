package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/phrazzld/vidscribe/internal/cache"
	"github.com/phrazzld/vidscribe/internal/domain"
	"github.com/phrazzld/vidscribe/internal/mocks"
	"github.com/phrazzld/vidscribe/internal/task"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSubmitter struct {
	mu    sync.Mutex
	items []task.WorkItem
	err   error
}

func (f *fakeSubmitter) Submit(_ context.Context, item task.WorkItem) (uuid.UUID, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return uuid.Nil, f.err
	}
	f.items = append(f.items, item)
	return uuid.New(), nil
}

func (f *fakeSubmitter) submitted() []task.WorkItem {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]task.WorkItem(nil), f.items...)
}

type fixture struct {
	svc       ResourceService
	resources *mocks.MockResourceStore
	cache     *cache.RedisCache
	tasks     *fakeSubmitter
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	f := &fixture{
		resources: mocks.NewMockResourceStore(),
		cache:     cache.NewRedisCache(client, "test", time.Hour, logger),
		tasks:     &fakeSubmitter{},
	}
	svc, err := NewResourceService(f.resources, f.cache, f.tasks, logger)
	require.NoError(t, err)
	f.svc = svc
	return f
}

func fingerprint(t *testing.T, kind domain.ResourceKind, videoID string) domain.Fingerprint {
	t.Helper()
	fp, err := domain.NewFingerprint(kind, videoID, "en")
	require.NoError(t, err)
	return fp
}

func TestNewResourceService_Validation(t *testing.T) {
	t.Parallel()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	_, err := NewResourceService(nil, nil, &fakeSubmitter{}, logger)
	assert.Error(t, err)
	_, err = NewResourceService(mocks.NewMockResourceStore(), nil, nil, logger)
	assert.Error(t, err)
	_, err = NewResourceService(mocks.NewMockResourceStore(), nil, &fakeSubmitter{}, nil)
	assert.Error(t, err)

	svc, err := NewResourceService(mocks.NewMockResourceStore(), nil, &fakeSubmitter{}, logger)
	require.NoError(t, err)
	assert.NotNil(t, svc)
}

func TestRequestTranscript_Outcomes(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()

	r, outcome, err := f.svc.RequestTranscript(ctx, "vid", "EN")
	require.NoError(t, err)
	assert.Equal(t, OutcomeAccepted, outcome)
	assert.Equal(t, domain.StatusPending, r.Status)
	assert.Equal(t, "en", r.Language)
	require.Len(t, f.tasks.submitted(), 1)
	assert.Equal(t, r.ID, f.tasks.submitted()[0].RecordID)

	again, outcome, err := f.svc.RequestTranscript(ctx, "vid", "en")
	require.NoError(t, err)
	assert.Equal(t, OutcomeNotReady, outcome)
	assert.Equal(t, r.ID, again.ID)
	assert.Len(t, f.tasks.submitted(), 1)

	require.NoError(t, r.MarkProcessing())
	require.NoError(t, r.Complete("captions"))
	require.NoError(t, f.resources.Update(ctx, r))

	done, outcome, err := f.svc.RequestTranscript(ctx, "vid", "en")
	require.NoError(t, err)
	assert.Equal(t, OutcomeReady, outcome)
	assert.Equal(t, "captions", done.Content)

	cached, err := f.cache.Get(ctx, r.Fingerprint())
	require.NoError(t, err)
	assert.Equal(t, r.ID, cached.ID)
}

func TestRequestTranscript_FailedRecordIsNotRestarted(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()

	r, _, err := f.svc.RequestTranscript(ctx, "vid", "en")
	require.NoError(t, err)
	require.NoError(t, r.Fail("permanent failure: no captions"))
	require.NoError(t, f.resources.Update(ctx, r))

	got, outcome, err := f.svc.RequestTranscript(ctx, "vid", "en")

	require.NoError(t, err)
	assert.Equal(t, OutcomeFailed, outcome)
	assert.Equal(t, domain.StatusError, got.Status)
	assert.Len(t, f.tasks.submitted(), 1)
}

func TestRequestTranscript_InvalidInput(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	_, _, err := f.svc.RequestTranscript(context.Background(), " ", "en")
	assert.ErrorIs(t, err, domain.ErrValidation)

	_, _, err = f.svc.RequestTranscript(context.Background(), "vid", "english!")
	assert.ErrorIs(t, err, domain.ErrValidation)
	assert.Empty(t, f.tasks.submitted())
}

func TestRequestTranscript_ConcurrentCallersCreateOnce(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	const callers = 20
	var wg sync.WaitGroup
	ids := make([]uuid.UUID, callers)
	outcomes := make([]Outcome, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			r, outcome, err := f.svc.RequestTranscript(context.Background(), "hot-video", "en")
			assert.NoError(t, err)
			ids[i] = r.ID
			outcomes[i] = outcome
		}(i)
	}
	wg.Wait()

	accepted := 0
	for i := range ids {
		assert.Equal(t, ids[0], ids[i])
		if outcomes[i] == OutcomeAccepted {
			accepted++
		}
	}
	assert.Equal(t, 1, accepted)
	assert.Len(t, f.tasks.submitted(), 1)
}

func TestRequestTranscript_QueueUnavailable(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	f.tasks.err = fmt.Errorf("%w: queue is closed", task.ErrQueueUnavailable)

	r, outcome, err := f.svc.RequestTranscript(context.Background(), "vid", "en")

	require.ErrorIs(t, err, task.ErrQueueUnavailable)
	assert.Equal(t, OutcomeFailed, outcome)
	stored := f.resources.Record(r.ID)
	assert.Equal(t, domain.StatusError, stored.Status)
	assert.Equal(t, "queue unavailable", stored.Error)
}

func TestRequestSummary_AlsoRequestsTranscript(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	r, outcome, err := f.svc.RequestSummary(context.Background(), "vid", "en")

	require.NoError(t, err)
	assert.Equal(t, OutcomeAccepted, outcome)
	assert.Equal(t, domain.KindSummary, r.Kind)

	items := f.tasks.submitted()
	require.Len(t, items, 2)
	assert.Equal(t, task.TypeTranscript, items[0].Type)
	assert.Equal(t, task.TypeSummary, items[1].Type)

	_, err = f.resources.Get(context.Background(), fingerprint(t, domain.KindTranscript, "vid"))
	assert.NoError(t, err)
}

func TestGet(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()
	fp := fingerprint(t, domain.KindTranscript, "vid")

	_, err := f.svc.Get(ctx, fp)
	assert.ErrorIs(t, err, ErrNotFound)

	r, _, err := f.svc.RequestTranscript(ctx, "vid", "en")
	require.NoError(t, err)

	got, err := f.svc.Get(ctx, fp)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPending, got.Status)
	_, err = f.cache.Get(ctx, fp)
	assert.ErrorIs(t, err, cache.ErrMiss, "pending records are never cached")

	require.NoError(t, r.Complete("text"))
	require.NoError(t, f.resources.Update(ctx, r))

	got, err = f.svc.Get(ctx, fp)
	require.NoError(t, err)
	assert.Equal(t, "text", got.Content)

	cached, err := f.cache.Get(ctx, fp)
	require.NoError(t, err)
	assert.Equal(t, "text", cached.Content)
}

func TestRestart_NotFound(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	_, err := f.svc.Restart(context.Background(), fingerprint(t, domain.KindTranscript, "vid"))
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRestart(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()
	fp := fingerprint(t, domain.KindTranscript, "vid")

	r, _, err := f.svc.RequestTranscript(ctx, "vid", "en")
	require.NoError(t, err)

	_, err = f.svc.Restart(ctx, fp)
	assert.ErrorIs(t, err, ErrNotRestartable, "pending records cannot be restarted")

	require.NoError(t, r.Fail("retries exhausted after 3 attempts: upstream 503"))
	require.NoError(t, f.resources.Update(ctx, r))

	restarted, err := f.svc.Restart(ctx, fp)

	require.NoError(t, err)
	assert.Equal(t, r.ID, restarted.ID)
	assert.Equal(t, domain.StatusPending, restarted.Status)
	assert.Empty(t, restarted.Error)

	items := f.tasks.submitted()
	require.Len(t, items, 2)
	assert.Equal(t, r.ID, items[1].RecordID)
}

func TestRestart_ConcurrentCallersRestartOnce(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()
	fp := fingerprint(t, domain.KindSummary, "vid")

	r, created, err := f.resources.FindOrCreate(ctx, fp)
	require.NoError(t, err)
	require.True(t, created)
	require.NoError(t, r.Fail("permanent failure: transcript failed"))
	require.NoError(t, f.resources.Update(ctx, r))

	const callers = 10
	var wg sync.WaitGroup
	var mu sync.Mutex
	succeeded := 0
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.svc.Restart(ctx, fp)
			if err == nil {
				mu.Lock()
				succeeded++
				mu.Unlock()
				return
			}
			assert.True(t, errors.Is(err, ErrNotRestartable), err)
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, succeeded)
	assert.Len(t, f.tasks.submitted(), 1)
}

func TestRestart_InvalidatesCache(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()
	fp := fingerprint(t, domain.KindTranscript, "vid")

	r, _, err := f.resources.FindOrCreate(ctx, fp)
	require.NoError(t, err)
	require.NoError(t, r.Fail("permanent failure: x"))
	require.NoError(t, f.resources.Update(ctx, r))

	stale := *r
	stale.Status = domain.StatusCompleted
	stale.Content = "stale"
	stale.Error = ""
	require.NoError(t, f.cache.Set(ctx, &stale))

	_, err = f.svc.Restart(ctx, fp)
	require.NoError(t, err)

	_, err = f.cache.Get(ctx, fp)
	assert.ErrorIs(t, err, cache.ErrMiss)
}
