package task

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// ControlKind selects a supervisor action.
type ControlKind int

// Control message kinds
const (
	// ControlRestartWorkers replaces the worker set with a fresh one.
	ControlRestartWorkers ControlKind = iota + 1
	// ControlScaleWorkers replaces the worker set with one of a new size.
	ControlScaleWorkers
)

func (k ControlKind) String() string {
	switch k {
	case ControlRestartWorkers:
		return "restart_workers"
	case ControlScaleWorkers:
		return "scale_workers"
	default:
		return fmt.Sprintf("control(%d)", int(k))
	}
}

// ControlMessage asks the supervisor to change the worker set. Workers is
// required for ControlScaleWorkers; for a restart zero keeps the current size.
type ControlMessage struct {
	Kind    ControlKind
	Workers int
}

// Control errors
var (
	ErrInvalidControl = errors.New("invalid control message")
	ErrNotRunning     = errors.New("task runner is not running")
)

func (m ControlMessage) validate() error {
	switch m.Kind {
	case ControlRestartWorkers:
		if m.Workers < 0 {
			return fmt.Errorf("%w: negative worker count %d", ErrInvalidControl, m.Workers)
		}
	case ControlScaleWorkers:
		if m.Workers < 1 {
			return fmt.Errorf("%w: scale needs at least one worker, got %d", ErrInvalidControl, m.Workers)
		}
	default:
		return fmt.Errorf("%w: unknown kind %s", ErrInvalidControl, m.Kind)
	}
	return nil
}

// Control hands msg to the supervisor. It returns once the supervisor has
// accepted the message; the old workers drain in the background.
func (r *Runner) Control(ctx context.Context, msg ControlMessage) error {
	if err := msg.validate(); err != nil {
		return err
	}
	if !r.running.Load() {
		return ErrNotRunning
	}
	select {
	case r.control <- msg:
		return nil
	case <-r.ctx.Done():
		return ErrNotRunning
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Workers returns the size of the current worker set.
func (r *Runner) Workers() int {
	return int(r.workers.Load())
}

// supervise owns the worker set. It is the only goroutine that starts or
// stops workers.
func (r *Runner) supervise(size int) {
	defer r.wg.Done()

	generation := 1
	pool := startWorkerPool(r.ctx, generation, size, r.queue, r.process, r.logger)
	r.workers.Store(int64(size))

	var draining sync.WaitGroup
	for {
		select {
		case <-r.ctx.Done():
			pool.stop()
			draining.Wait()
			r.workers.Store(0)
			return

		case msg := <-r.control:
			next := pool.size
			if msg.Workers > 0 {
				next = msg.Workers
			}
			generation++
			old := pool
			pool = startWorkerPool(r.ctx, generation, next, r.queue, r.process, r.logger)
			r.workers.Store(int64(next))

			draining.Add(1)
			go func() {
				defer draining.Done()
				old.stop()
			}()

			r.logger.Info("worker set replaced",
				"control", msg.Kind.String(),
				"generation", generation,
				"previous_workers", old.size,
				"workers", next)
		}
	}
}
