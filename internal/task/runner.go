package task

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/vidscribe/internal/cache"
	"github.com/phrazzld/vidscribe/internal/domain"
	"github.com/phrazzld/vidscribe/internal/events"
	"github.com/phrazzld/vidscribe/internal/platform/metrics"
	"github.com/phrazzld/vidscribe/internal/redact"
	"github.com/phrazzld/vidscribe/internal/store"
	"github.com/sethvargo/go-retry"
)

// RunnerConfig holds configuration for the task runner
type RunnerConfig struct {
	// WorkerCount determines how many concurrent workers process items
	WorkerCount int

	// MaxAttempts bounds how often an item is tried before it is dead-lettered
	MaxAttempts int

	// BaseBackoff and MaxBackoff bound the exponential retry delay
	BaseBackoff time.Duration
	MaxBackoff  time.Duration

	// JobTimeout bounds a single handler run
	JobTimeout time.Duration

	// StuckTaskAge defines how long a record can sit in processing or pending
	// before the monitor re-enqueues it
	StuckTaskAge time.Duration

	// StuckTaskCheckInterval defines how often to check for stuck records
	StuckTaskCheckInterval time.Duration
}

// DefaultRunnerConfig returns a RunnerConfig with reasonable defaults
func DefaultRunnerConfig() RunnerConfig {
	return RunnerConfig{
		WorkerCount:            2,
		MaxAttempts:            3,
		BaseBackoff:            2 * time.Second,
		MaxBackoff:             time.Minute,
		JobTimeout:             5 * time.Minute,
		StuckTaskAge:           30 * time.Minute,
		StuckTaskCheckInterval: 5 * time.Minute,
	}
}

func (c RunnerConfig) withDefaults() RunnerConfig {
	d := DefaultRunnerConfig()
	if c.WorkerCount < 1 {
		c.WorkerCount = d.WorkerCount
	}
	if c.MaxAttempts < 1 {
		c.MaxAttempts = d.MaxAttempts
	}
	if c.BaseBackoff <= 0 {
		c.BaseBackoff = d.BaseBackoff
	}
	if c.MaxBackoff < c.BaseBackoff {
		c.MaxBackoff = c.BaseBackoff
	}
	if c.JobTimeout <= 0 {
		c.JobTimeout = d.JobTimeout
	}
	if c.StuckTaskAge <= 0 {
		c.StuckTaskAge = d.StuckTaskAge
	}
	if c.StuckTaskCheckInterval <= 0 {
		c.StuckTaskCheckInterval = d.StuckTaskCheckInterval
	}
	return c
}

// Notifier publishes a terminal event at most once per job.
type Notifier interface {
	Notify(ctx context.Context, event *events.ResourceEvent) (bool, error)
}

// Dependencies are the collaborators of a Runner. Cache may be nil.
type Dependencies struct {
	Queue       *Queue
	Resources   store.ResourceStore
	DeadLetters store.DeadLetterStore
	Cache       cache.ResourceCache
	Notifier    Notifier
}

// Runner processes work items and drives resource records to a terminal
// state.
type Runner struct {
	queue       *Queue
	resources   store.ResourceStore
	deadLetters store.DeadLetterStore
	cache       cache.ResourceCache
	notifier    Notifier

	handlersMu sync.RWMutex
	handlers   map[Type]Handler

	config  RunnerConfig
	logger  *slog.Logger
	backoff func(attempt int) time.Duration

	ctx      context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	control  chan ControlMessage
	workers  atomic.Int64
	running  atomic.Bool
	stopOnce sync.Once
}

// NewRunner creates a Runner.
func NewRunner(deps Dependencies, config RunnerConfig, logger *slog.Logger) (*Runner, error) {
	switch {
	case deps.Queue == nil:
		return nil, errors.New("queue cannot be nil")
	case deps.Resources == nil:
		return nil, errors.New("resource store cannot be nil")
	case deps.DeadLetters == nil:
		return nil, errors.New("dead letter store cannot be nil")
	case deps.Notifier == nil:
		return nil, errors.New("notifier cannot be nil")
	case logger == nil:
		return nil, errors.New("logger cannot be nil")
	}
	if deps.Cache == nil {
		deps.Cache = cache.Nop{}
	}
	config = config.withDefaults()

	ctx, cancel := context.WithCancel(context.Background())
	r := &Runner{
		queue:       deps.Queue,
		resources:   deps.Resources,
		deadLetters: deps.DeadLetters,
		cache:       deps.Cache,
		notifier:    deps.Notifier,
		handlers:    make(map[Type]Handler),
		config:      config,
		logger:      logger.With("component", "task_runner"),
		ctx:         ctx,
		cancel:      cancel,
		control:     make(chan ControlMessage),
	}
	r.backoff = r.exponentialBackoff
	return r, nil
}

// RegisterHandler installs the handler for items of type t.
func (r *Runner) RegisterHandler(t Type, h Handler) {
	r.handlersMu.Lock()
	defer r.handlersMu.Unlock()
	r.handlers[t] = h
}

func (r *Runner) handler(t Type) (Handler, bool) {
	r.handlersMu.RLock()
	defer r.handlersMu.RUnlock()
	h, ok := r.handlers[t]
	return h, ok
}

// Submit adds a new item to the queue.
func (r *Runner) Submit(ctx context.Context, item WorkItem) (uuid.UUID, error) {
	if err := ctx.Err(); err != nil {
		return uuid.Nil, err
	}
	if _, ok := r.handler(item.Type); !ok {
		return uuid.Nil, fmt.Errorf("no handler registered for type %q", item.Type)
	}
	id, err := r.queue.Enqueue(item)
	if err != nil {
		return uuid.Nil, err
	}
	metrics.JobsEnqueuedTotal.WithLabelValues(string(item.Type)).Inc()
	return id, nil
}

// Start recovers unfinished records and starts the supervisor and the stuck
// record monitor.
func (r *Runner) Start(ctx context.Context) error {
	if !r.running.CompareAndSwap(false, true) {
		return errors.New("task runner already started")
	}
	if err := r.Recover(ctx); err != nil {
		r.running.Store(false)
		return fmt.Errorf("failed to recover records: %w", err)
	}

	r.wg.Add(2)
	go r.supervise(r.config.WorkerCount)
	go r.stuckTaskMonitor()
	return nil
}

// Stop gracefully shuts down the runner: workers stop taking items, in-flight
// items finish, then the queue is closed.
func (r *Runner) Stop() {
	r.stopOnce.Do(func() {
		r.cancel()
		r.wg.Wait()
		r.queue.Close()
		r.running.Store(false)
	})
}

// Recover re-enqueues every unfinished record. Records left in processing
// by a previous run are moved back to pending first.
func (r *Runner) Recover(ctx context.Context) error {
	pending, err := r.resources.ListByStatus(ctx, domain.StatusPending, 0)
	if err != nil {
		return fmt.Errorf("failed to list pending records: %w", err)
	}
	processing, err := r.resources.ListByStatus(ctx, domain.StatusProcessing, 0)
	if err != nil {
		return fmt.Errorf("failed to list processing records: %w", err)
	}

	r.logger.InfoContext(ctx, "recovering unfinished records",
		"pending_count", len(pending),
		"processing_count", len(processing))

	// Interrupted records go back to pending before they are enqueued
	for _, rec := range processing {
		if r.claimed(rec, "recovered") {
			continue
		}
		if r.resetProcessing(ctx, rec) {
			pending = append(pending, rec)
		}
	}
	for _, rec := range pending {
		r.enqueueRecord(rec, "recovered")
	}
	return nil
}

// resetProcessing moves rec back to pending unless another writer already
// moved it.
func (r *Runner) resetProcessing(ctx context.Context, rec *domain.Resource) bool {
	if err := rec.Requeue(); err != nil {
		return false
	}
	if err := r.resources.UpdateIf(ctx, rec, domain.StatusProcessing); err != nil {
		if !errors.Is(err, store.ErrConflict) {
			r.logger.ErrorContext(ctx, "failed to reset processing record",
				"record_id", rec.ID,
				"fingerprint", rec.Fingerprint().String(),
				"error", err)
		}
		return false
	}
	return true
}

// claimed reports whether a job already owns rec. Such a record is left to
// that job rather than enqueued again.
func (r *Runner) claimed(rec *domain.Resource, reason string) bool {
	jobID, ok := r.queue.Claimed(rec.ID)
	if ok {
		r.logger.Debug("record already has a job, not enqueuing",
			"job_id", jobID,
			"record_id", rec.ID,
			"reason", reason)
	}
	return ok
}

func (r *Runner) enqueueRecord(rec *domain.Resource, reason string) {
	if r.claimed(rec, reason) {
		return
	}
	item := NewWorkItem(rec)
	id, err := r.queue.Enqueue(item)
	if err != nil {
		r.logger.Error("failed to enqueue record",
			"record_id", rec.ID,
			"fingerprint", rec.Fingerprint().String(),
			"reason", reason,
			"error", err)
		return
	}
	metrics.JobsEnqueuedTotal.WithLabelValues(string(item.Type)).Inc()
	r.logger.Info("record enqueued",
		"job_id", id,
		"record_id", rec.ID,
		"reason", reason)
}

// stuckTaskMonitor periodically re-enqueues records that sat in processing
// or pending for too long.
func (r *Runner) stuckTaskMonitor() {
	defer r.wg.Done()

	ticker := time.NewTicker(r.config.StuckTaskCheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-r.ctx.Done():
			return
		case <-ticker.C:
			r.recoverStuck(r.ctx)
		}
	}
}

func (r *Runner) recoverStuck(ctx context.Context) {
	stuck, err := r.resources.ListByStatus(ctx, domain.StatusProcessing, r.config.StuckTaskAge)
	if err != nil {
		r.logger.ErrorContext(ctx, "failed to check for stuck records", "error", err)
		return
	}
	stalled, err := r.resources.ListByStatus(ctx, domain.StatusPending, r.config.StuckTaskAge)
	if err != nil {
		r.logger.ErrorContext(ctx, "failed to check for stalled records", "error", err)
		return
	}
	if len(stuck) == 0 && len(stalled) == 0 {
		return
	}

	r.logger.InfoContext(ctx, "found stuck records",
		"processing_count", len(stuck),
		"pending_count", len(stalled))

	// A record whose job is still queued or running is only slow.
	for _, rec := range stuck {
		if r.claimed(rec, "stuck") {
			continue
		}
		if r.resetProcessing(ctx, rec) {
			r.enqueueRecord(rec, "stuck")
		}
	}
	for _, rec := range stalled {
		r.enqueueRecord(rec, "stalled")
	}
}

// process handles a single work item. It never returns an error: every
// outcome is written to the record.
//
// Every write is conditional on the status this delivery last saw, so a
// duplicate delivery can never overwrite a record another delivery already
// finished.
func (r *Runner) process(item WorkItem, workerID string) {
	defer r.queue.Done(item)
	ctx := context.Background()
	logger := r.logger.With(
		"job_id", item.ID,
		"type", item.Type,
		"record_id", item.RecordID,
		"attempt", item.Attempt,
		"worker_id", workerID,
	)

	// Load the record this item drives
	rec, err := r.resources.GetByID(ctx, item.RecordID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			logger.Warn("dropping work item for missing record")
			r.observe(item, "dropped")
			return
		}
		logger.Error("failed to load record", "error", err)
		r.redeliver(item, logger)
		return
	}

	// Terminal records are not run again
	switch rec.Status {
	case domain.StatusError:
		logger.Info("skipping work item for failed record")
		r.observe(item, "skipped")
		return
	case domain.StatusCompleted:
		logger.Info("record already completed, replaying side effects")
		r.finish(ctx, item, rec, logger)
		r.observe(item, "replayed")
		return
	}

	// Mark the record processing, provided nobody moved it since the load
	loaded := rec.Status
	if err := rec.MarkProcessing(); err != nil {
		logger.Error("unexpected record state", "status", rec.Status, "error", err)
		return
	}
	if err := r.resources.UpdateIf(ctx, rec, loaded); err != nil {
		if r.yield(ctx, item, err, logger) {
			return
		}
		logger.Error("failed to mark record processing", "error", err)
		r.redeliver(item, logger)
		return
	}

	// Run the handler
	logger.Info("processing work item")
	start := time.Now()
	content, err := r.run(ctx, item, logger)
	metrics.JobDuration.WithLabelValues(string(item.Type)).Observe(time.Since(start).Seconds())

	if err == nil {
		if cerr := rec.Complete(content); cerr != nil {
			err = Permanent(fmt.Errorf("handler returned no content: %w", cerr))
		}
	}
	if err != nil {
		r.handleFailure(ctx, item, rec, err, logger)
		return
	}

	// Store the result
	if err := r.resources.UpdateIf(ctx, rec, domain.StatusProcessing); err != nil {
		if r.yield(ctx, item, err, logger) {
			return
		}
		logger.Error("failed to store completed record", "error", err)
		r.redeliver(item, logger)
		return
	}
	logger.Info("work item completed", "duration_ms", time.Since(start).Milliseconds())
	r.finish(ctx, item, rec, logger)
	r.observe(item, "completed")
}

// run executes the handler under the job timeout. A panic becomes a
// permanent failure.
func (r *Runner) run(ctx context.Context, item WorkItem, logger *slog.Logger) (content string, err error) {
	h, ok := r.handler(item.Type)
	if !ok {
		return "", Permanent(fmt.Errorf("no handler registered for type %q", item.Type))
	}

	ctx, cancel := context.WithTimeout(ctx, r.config.JobTimeout)
	defer cancel()

	defer func() {
		if p := recover(); p != nil {
			logger.Error("handler panicked", "panic", p, "stack", string(debug.Stack()))
			content, err = "", Permanent(fmt.Errorf("handler panicked: %v", p))
		}
	}()
	return h.Handle(ctx, item)
}

func (r *Runner) handleFailure(ctx context.Context, item WorkItem, rec *domain.Resource, err error, logger *slog.Logger) {
	reason := redact.Error(err)
	kind := Classify(err)
	logger = logger.With("failure", kind.String(), "error", reason)

	switch kind {
	case FailurePoolExhausted:
		if r.fail(ctx, item, rec, "no usable API credentials: "+reason, logger) {
			r.observe(item, kind.String())
		}
	case FailurePermanent:
		if r.fail(ctx, item, rec, "permanent failure: "+reason, logger) {
			r.observe(item, kind.String())
		}
	case FailureNotReady:
		logger.Info("input not ready, deferring work item")
		if r.retry(ctx, item, rec, item.Attempt, logger) {
			r.observe(item, "deferred")
		}
	default:
		next := item.Attempt + 1
		if next >= r.config.MaxAttempts {
			reason = fmt.Sprintf("retries exhausted after %d attempts: %s", next, reason)
			if r.bury(ctx, item, rec, next, reason, logger) {
				r.observe(item, "dead_lettered")
			}
			return
		}
		logger.Warn("work item failed, scheduling retry")
		if r.retry(ctx, item, rec, next, logger) {
			metrics.JobRetriesTotal.WithLabelValues(string(item.Type)).Inc()
			r.observe(item, "retried")
		}
	}
}

// retry returns rec to pending and schedules item for attempt. It reports
// false when another delivery had already moved the record.
func (r *Runner) retry(ctx context.Context, item WorkItem, rec *domain.Resource, attempt int, logger *slog.Logger) bool {
	if err := rec.Requeue(); err != nil {
		logger.Error("failed to requeue record", "error", err)
		return true
	}
	if err := r.resources.UpdateIf(ctx, rec, domain.StatusProcessing); err != nil {
		if r.yield(ctx, item, err, logger) {
			return false
		}
		// The record stays processing; the retry below still runs it.
		logger.Error("failed to store pending record", "error", err)
	}

	delay := r.backoff(attempt)
	item.Attempt = attempt
	if err := r.queue.EnqueueAfter(item, delay); err != nil {
		logger.Warn("failed to schedule retry, record left pending for recovery", "error", err)
		return true
	}
	logger.Debug("retry scheduled", "next_attempt", attempt, "delay", delay)
	return true
}

// redeliver schedules item again after an infrastructure error left the
// record untouched. Giving up leaves the record to the stuck monitor.
func (r *Runner) redeliver(item WorkItem, logger *slog.Logger) {
	next := item.Attempt + 1
	if next >= r.config.MaxAttempts {
		logger.Error("giving up on work item, record left for recovery")
		r.observe(item, "abandoned")
		return
	}
	delay := r.backoff(next)
	item.Attempt = next
	if err := r.queue.EnqueueAfter(item, delay); err != nil {
		logger.Warn("failed to schedule redelivery", "error", err)
		return
	}
	r.observe(item, "redelivered")
}

// fail stores rec as failed. It reports false when another delivery had
// already moved the record.
func (r *Runner) fail(ctx context.Context, item WorkItem, rec *domain.Resource, reason string, logger *slog.Logger) bool {
	if err := rec.Fail(reason); err != nil {
		logger.Error("failed to mark record failed", "error", err)
		return true
	}
	if err := r.resources.UpdateIf(ctx, rec, domain.StatusProcessing); err != nil {
		if r.yield(ctx, item, err, logger) {
			return false
		}
		logger.Error("failed to store failed record", "error", err)
		return true
	}
	logger.Error("work item failed", "reason", reason)
	r.finish(ctx, item, rec, logger)
	return true
}

// bury stores rec as failed together with its dead letter. It reports false
// when another delivery had already moved the record.
func (r *Runner) bury(ctx context.Context, item WorkItem, rec *domain.Resource, attempts int, reason string, logger *slog.Logger) bool {
	if err := rec.Fail(reason); err != nil {
		logger.Error("failed to mark record failed", "error", err)
		return true
	}
	dl := &domain.DeadLetter{
		ID:         uuid.New(),
		JobID:      item.ID,
		RecordID:   rec.ID,
		Kind:       rec.Kind,
		ResourceID: rec.ResourceID,
		Language:   rec.Language,
		Attempts:   attempts,
		Reason:     reason,
		Payload:    item.Payload,
		CreatedAt:  time.Now().UTC(),
	}
	if err := r.deadLetters.Bury(ctx, rec, dl); err != nil {
		if r.yield(ctx, item, err, logger) {
			return false
		}
		logger.Error("failed to dead-letter work item", "error", err)
		return true
	}
	metrics.DeadLettersTotal.WithLabelValues(string(item.Type)).Inc()
	logger.Error("work item dead-lettered", "dead_letter_id", dl.ID, "attempts", attempts)
	r.finish(ctx, item, rec, logger)
	return true
}

// yield handles a write that lost to another delivery of the same record.
// It reports false for any other error. The stored record is never
// overwritten: a completed record has its side effects replayed, anything
// else is left to the delivery that moved it.
func (r *Runner) yield(ctx context.Context, item WorkItem, err error, logger *slog.Logger) bool {
	if !errors.Is(err, store.ErrConflict) {
		return false
	}

	// Reload to see what the winning delivery wrote.
	current, getErr := r.resources.GetByID(ctx, item.RecordID)
	if getErr != nil {
		logger.Warn("record changed underneath work item and could not be reloaded",
			"error", getErr)
		r.observe(item, "superseded")
		return true
	}

	if current.Status == domain.StatusCompleted {
		logger.Info("record completed by another delivery, replaying side effects")
		r.finish(ctx, item, current, logger)
		r.observe(item, "replayed")
		return true
	}

	logger.Info("record moved on by another delivery, dropping work item",
		"status", current.Status)
	r.observe(item, "superseded")
	return true
}

// finish runs the side effects of a terminal record: the cache is refreshed
// or invalidated and a notification is sent once per job.
func (r *Runner) finish(ctx context.Context, item WorkItem, rec *domain.Resource, logger *slog.Logger) {
	// Keep the cache in step with the stored record
	fp := rec.Fingerprint()
	if rec.Status == domain.StatusCompleted {
		if err := r.cache.Set(ctx, rec); err != nil {
			logger.Warn("failed to cache completed record", "error", err)
		}
	} else if err := r.cache.Invalidate(ctx, fp); err != nil {
		logger.Warn("failed to invalidate cached record", "error", err)
	}

	// The guard inside the notifier keeps this to one event per job
	sent, err := r.notifier.Notify(ctx, events.NewResourceEvent(item.ID, rec))
	if err != nil {
		logger.Error("failed to send notification", "error", err)
		return
	}
	if !sent {
		logger.Debug("notification already sent for job")
	}
}

func (r *Runner) observe(item WorkItem, outcome string) {
	metrics.JobsProcessedTotal.WithLabelValues(string(item.Type), outcome).Inc()
}

// exponentialBackoff returns the delay before attempt (1-based):
// BaseBackoff doubled per attempt, capped at MaxBackoff, with 10% jitter.
func (r *Runner) exponentialBackoff(attempt int) time.Duration {
	b := retry.NewExponential(r.config.BaseBackoff)
	b = retry.WithJitterPercent(10, b)
	b = retry.WithCappedDuration(r.config.MaxBackoff, b)

	var d time.Duration
	for i := 0; i < max(attempt, 1); i++ {
		d, _ = b.Next()
	}
	return d
}
