// Copyright 2026 Bob Vawter (bob@vawter.org)
// SPDX-License-Identifier: Apache-2.0

package timed

import (
	"context"
	"errors"
	"runtime/trace"
	"time"

	"go.uber.org/zap"

	"vawter.tech/drain/internal/safe"
)

// Work is a unit of execution. The context is cancelled when the task's
// time budget elapses, when [Task.Cancel] is called, or when the
// caller's context is done; work should return promptly once that
// happens.
type Work func(ctx context.Context) error

// Run executes the work function on a dedicated goroutine with the
// given time budget and blocks until the task reaches a terminal
// state. It is equivalent to [Start] followed by waiting on the task.
//
// The returned error is nil on success. A failure returns the work
// function's error unmodified, so errors.Is and errors.As see the
// original value. Exceeding the budget returns an error satisfying
// errors.Is on both [ErrTimeout] and [context.DeadlineExceeded];
// external cancellation returns one satisfying [ErrCanceled] and
// [context.Canceled]. A panic in the work function is captured as a
// [RecoveredError].
func Run(ctx context.Context, work Work, timeout time.Duration, opts ...Option) error {
	t := Start(ctx, work, timeout, opts...)
	<-t.Done()
	return t.Err()
}

// Start begins executing the work function on a dedicated goroutine
// and returns immediately. The returned [Task] reports the outcome.
//
// The goroutine is owned exclusively by the returned Task, so
// cancelling it can never affect unrelated work.
func Start(ctx context.Context, work Work, timeout time.Duration, opts ...Option) *Task {
	cfg := newConfig(opts)

	// The outer context carries external cancellation, from either the
	// caller's ctx or Task.Cancel. The inner context adds the task's
	// own deadline and is what the work function sees.
	superCtx, superCancel := context.WithCancelCause(ctx)
	workCtx, workCancel := context.WithTimeoutCause(superCtx, timeout, ErrTimeout)

	t := newTask(cfg.name, superCancel)
	t.markRunning()

	// The buffer lets the worker publish its result and exit even if
	// the supervisor has already abandoned it.
	outcome := make(chan error, 1)
	go func() {
		ctx, task := trace.NewTask(workCtx, cfg.name)
		defer task.End()
		outcome <- safe.CallE(func() error {
			return work(ctx)
		})
	}()

	go func() {
		defer workCancel()
		defer superCancel(nil)
		t.supervise(cfg, workCtx, outcome)
	}()

	return t
}

// supervise owns the resolution of the task. Exactly one terminal
// state is chosen; whichever event is detected first wins, and the
// loser's signal is inert.
func (t *Task) supervise(cfg *config, workCtx context.Context, outcome <-chan error) {
	select {
	case err := <-outcome:
		t.complete(workCtx, err)
		return
	case <-workCtx.Done():
	}

	// The worker may have finished in the same instant the context
	// fired. An available result wins over the cancellation.
	select {
	case err := <-outcome:
		t.complete(workCtx, err)
		return
	default:
	}

	// The work function has been signalled. Wait for it to stop so
	// that the caller never races a still-running worker.
	var stalled bool
	if cfg.grace > 0 {
		select {
		case err := <-outcome:
			t.discardLate(cfg, err)
		case <-time.After(cfg.grace):
			stalled = true
			cfg.logger.Warn("task worker did not stop within the grace period",
				zap.String("task", t.name),
				zap.Stringer("id", t.id),
				zap.Duration("grace", cfg.grace))
		}
	} else {
		t.discardLate(cfg, <-outcome)
	}

	t.resolveInterrupted(workCtx, stalled)
}

// complete records a natural resolution of the worker. An error that
// merely acknowledges a cancellation the runner itself delivered is
// classified as that cancellation, not as a worker failure.
func (t *Task) complete(workCtx context.Context, err error) {
	if err == nil {
		t.resolve(StatusCompleted, nil)
		return
	}
	if workCtx.Err() != nil &&
		(errors.Is(err, workCtx.Err()) || errors.Is(err, context.Cause(workCtx))) {
		t.resolveInterrupted(workCtx, false)
		return
	}
	t.resolve(StatusFailed, err)
}

// resolveInterrupted resolves a task whose context fired before its
// worker produced a result, classifying by the context's cause.
func (t *Task) resolveInterrupted(workCtx context.Context, stalled bool) {
	cause := context.Cause(workCtx)
	var status Status
	var parts []error
	if errors.Is(cause, ErrTimeout) {
		status = StatusTimedOut
		parts = append(parts, ErrTimeout, workCtx.Err())
	} else {
		status = StatusCanceled
		parts = append(parts, ErrCanceled, workCtx.Err())
		// Preserve a caller-supplied cancellation cause.
		if !errors.Is(cause, ErrCanceled) && !errors.Is(workCtx.Err(), cause) {
			parts = append(parts, cause)
		}
	}
	if stalled {
		parts = append(parts, ErrStalled)
	}
	t.resolve(status, errors.Join(parts...))
}

// discardLate records that a worker result arrived after the task's
// fate had already been decided.
func (t *Task) discardLate(cfg *config, err error) {
	if err != nil {
		cfg.logger.Debug("late task result discarded",
			zap.String("task", t.name),
			zap.Stringer("id", t.id),
			zap.Error(err))
	}
}
