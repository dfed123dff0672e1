package task

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/vidscribe/internal/platform/metrics"
)

// ErrQueueUnavailable is returned when the queue is closed or full.
var ErrQueueUnavailable = errors.New("task queue unavailable")

// Queue is a buffered in-process work queue. Items scheduled with
// EnqueueAfter that are still waiting when the queue closes are dropped;
// their records stay pending and are recovered on the next start.
//
// A record has at most one job at a time. The job claims the record when it
// is enqueued and keeps the claim across delayed retries until the last
// delivery calls Done.
type Queue struct {
	mu     sync.RWMutex
	items  chan WorkItem
	timers map[*time.Timer]struct{}
	closed bool
	logger *slog.Logger

	claimsMu sync.Mutex
	claims   map[uuid.UUID]*claim
}

// claim counts the deliveries of one job that are queued, waiting on a
// timer or running.
type claim struct {
	jobID uuid.UUID
	refs  int
}

// NewQueue creates a queue with the specified buffer size.
func NewQueue(size int, logger *slog.Logger) *Queue {
	if size < 1 {
		size = 1
	}
	return &Queue{
		items:  make(chan WorkItem, size),
		timers: make(map[*time.Timer]struct{}),
		claims: make(map[uuid.UUID]*claim),
		logger: logger.With("component", "task_queue"),
	}
}

// Enqueue adds an item to the queue, assigning an ID and enqueue time when
// they are unset. It never blocks. When the item's record already has a job
// nothing is queued and that job's ID is returned.
func (q *Queue) Enqueue(item WorkItem) (uuid.UUID, error) {
	if item.ID == uuid.Nil {
		item.ID = uuid.New()
	}

	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		return uuid.Nil, fmt.Errorf("%w: queue is closed", ErrQueueUnavailable)
	}

	q.claimsMu.Lock()
	defer q.claimsMu.Unlock()
	if c, ok := q.claimFor(item.RecordID); ok {
		q.logger.Debug("record already has a job",
			"job_id", c.jobID,
			"record_id", item.RecordID,
			"type", item.Type)
		return c.jobID, nil
	}

	if err := q.push(item); err != nil {
		return uuid.Nil, err
	}
	q.acquireLocked(item)
	return item.ID, nil
}

// EnqueueAfter schedules item for delivery once delay has passed. An item
// for a record owned by a different job is dropped.
func (q *Queue) EnqueueAfter(item WorkItem, delay time.Duration) error {
	if item.ID == uuid.Nil {
		item.ID = uuid.New()
	}

	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return fmt.Errorf("%w: queue is closed", ErrQueueUnavailable)
	}

	q.claimsMu.Lock()
	if c, ok := q.claimFor(item.RecordID); ok && c.jobID != item.ID {
		q.claimsMu.Unlock()
		q.logger.Debug("record owned by another job, dropping delayed item",
			"job_id", item.ID,
			"owner_job_id", c.jobID,
			"record_id", item.RecordID)
		return nil
	}
	q.acquireLocked(item)
	q.claimsMu.Unlock()

	var timer *time.Timer
	timer = time.AfterFunc(delay, func() {
		q.mu.Lock()
		delete(q.timers, timer)
		q.mu.Unlock()

		q.deliverDelayed(item)
	})
	q.timers[timer] = struct{}{}
	return nil
}

func (q *Queue) deliverDelayed(item WorkItem) {
	q.mu.RLock()
	defer q.mu.RUnlock()

	err := fmt.Errorf("%w: queue is closed", ErrQueueUnavailable)
	if !q.closed {
		err = q.push(item)
	}
	if err != nil {
		q.logger.Error("failed to deliver delayed work item",
			"job_id", item.ID,
			"type", item.Type,
			"record_id", item.RecordID,
			"error", err)
		q.release(item)
	}
}

// push sends item to the buffer. The caller holds q.mu.
func (q *Queue) push(item WorkItem) error {
	if item.EnqueuedAt.IsZero() {
		item.EnqueuedAt = time.Now().UTC()
	}
	select {
	case q.items <- item:
		metrics.QueueDepth.Set(float64(len(q.items)))
		q.logger.Debug("work item enqueued",
			"job_id", item.ID,
			"type", item.Type,
			"attempt", item.Attempt,
			"queue_len", len(q.items),
			"queue_cap", cap(q.items))
		return nil
	default:
		return fmt.Errorf("%w: queue capacity %d reached", ErrQueueUnavailable, cap(q.items))
	}
}

func (q *Queue) claimFor(recordID uuid.UUID) (*claim, bool) {
	if recordID == uuid.Nil {
		return nil, false
	}
	c, ok := q.claims[recordID]
	return c, ok
}

func (q *Queue) acquireLocked(item WorkItem) {
	if item.RecordID == uuid.Nil {
		return
	}
	c, ok := q.claims[item.RecordID]
	if !ok {
		c = &claim{jobID: item.ID}
		q.claims[item.RecordID] = c
	}
	c.refs++
}

func (q *Queue) release(item WorkItem) {
	q.claimsMu.Lock()
	defer q.claimsMu.Unlock()
	c, ok := q.claimFor(item.RecordID)
	if !ok || c.jobID != item.ID {
		return
	}
	c.refs--
	if c.refs <= 0 {
		delete(q.claims, item.RecordID)
	}
}

// Done tells the queue a delivered item has been handled. A record's claim
// ends once every delivery of its job is done.
func (q *Queue) Done(item WorkItem) {
	q.release(item)
}

// Claimed reports the job that currently owns recordID, if any.
func (q *Queue) Claimed(recordID uuid.UUID) (uuid.UUID, bool) {
	q.claimsMu.Lock()
	defer q.claimsMu.Unlock()
	if c, ok := q.claimFor(recordID); ok {
		return c.jobID, true
	}
	return uuid.Nil, false
}

// Deliver blocks until an item is available. It returns ErrQueueUnavailable
// once the queue is closed and drained.
func (q *Queue) Deliver(ctx context.Context) (WorkItem, error) {
	select {
	case <-ctx.Done():
		return WorkItem{}, ctx.Err()
	case item, ok := <-q.items:
		if !ok {
			return WorkItem{}, ErrQueueUnavailable
		}
		metrics.QueueDepth.Set(float64(len(q.items)))
		return item, nil
	}
}

// Len returns the number of items waiting for a worker.
func (q *Queue) Len() int {
	return len(q.items)
}

// Close stops pending delayed deliveries and closes the queue, preventing
// further submission.
func (q *Queue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return
	}
	q.closed = true
	for t := range q.timers {
		t.Stop()
	}
	dropped := len(q.timers)
	q.timers = nil
	close(q.items)
	q.logger.Info("task queue closed", "dropped_delayed", dropped)
}
