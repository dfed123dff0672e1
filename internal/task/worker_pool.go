package task

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
)

// workerPool is one generation of workers pulling from the queue. Stopping a
// pool stops it from taking new items; items already taken run to completion.
type workerPool struct {
	generation int
	size       int
	cancel     context.CancelFunc
	wg         sync.WaitGroup
	logger     *slog.Logger
}

func startWorkerPool(
	parent context.Context,
	generation, size int,
	queue *Queue,
	process func(item WorkItem, workerID string),
	logger *slog.Logger,
) *workerPool {
	ctx, cancel := context.WithCancel(parent)
	p := &workerPool{
		generation: generation,
		size:       size,
		cancel:     cancel,
		logger:     logger,
	}

	for i := 0; i < size; i++ {
		id := fmt.Sprintf("g%d-w%d", generation, i)
		p.wg.Add(1)
		go p.worker(ctx, id, queue, process)
	}
	logger.Info("worker pool started", "generation", generation, "workers", size)
	return p
}

func (p *workerPool) worker(ctx context.Context, id string, queue *Queue, process func(WorkItem, string)) {
	defer p.wg.Done()
	p.logger.Debug("starting worker", "worker_id", id)

	for {
		item, err := queue.Deliver(ctx)
		if err != nil {
			if errors.Is(err, ErrQueueUnavailable) {
				p.logger.Debug("queue closed, stopping worker", "worker_id", id)
			} else {
				p.logger.Debug("stopping worker", "worker_id", id)
			}
			return
		}
		process(item, id)
	}
}

// stop signals the workers and waits for in-flight items.
func (p *workerPool) stop() {
	p.cancel()
	p.wg.Wait()
	p.logger.Info("worker pool stopped", "generation", p.generation, "workers", p.size)
}
