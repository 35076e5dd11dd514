// Copyright 2026 Bob Vawter (bob@vawter.org)
// SPDX-License-Identifier: Apache-2.0

// Package timed runs units of work with a wall-clock time budget and a
// well-defined cancellation story.
//
// [Run] executes a [Work] function on a dedicated goroutine, cancels
// its context when the budget elapses, and blocks until the worker has
// stopped. The dedicated goroutine is the point: the runner only ever
// cancels an execution context it exclusively owns, so a slow task can
// never cause unrelated work to be interrupted.
//
// # Outcomes
//
// Every invocation resolves to exactly one outcome:
//
//   - nil: the work function returned nil before the budget elapsed.
//   - the work function's own error, unmodified, when it failed first.
//     A panic is captured and reported as a [RecoveredError].
//   - an error satisfying errors.Is on [ErrTimeout] and
//     [context.DeadlineExceeded] when the budget elapsed first.
//   - an error satisfying errors.Is on [ErrCanceled] and
//     [context.Canceled] when the task was cancelled externally first.
//
// Whichever event is detected first determines the outcome. A timer
// that fires after the worker already finished, a cancellation that
// arrives after a natural completion, or a worker result that shows up
// after the task timed out are all inert; they never alter a terminal
// state. A result that is discarded this way is reported through the
// configured logger instead of being lost silently.
//
// # Asynchronous use
//
// [Start] returns a [Task] handle instead of blocking. The handle
// exposes the lifecycle through [Task.Done], [Task.Status],
// [Task.Err] and [Task.Wait], supports external cancellation through
// [Task.Cancel], and serializes to JSON for observability endpoints.
//
// # Bounded parallelism
//
// A [Group] runs many tasks with a cap on how many execute at once,
// and [ForEach] applies a callback to every element of a sequence
// under such a cap, wrapping each element's error with its position.
//
// # Stalled workers
//
// A work function that ignores its context would block Run forever,
// since the runner's contract is to wait for the worker to stop.
// [WithStopGrace] bounds that wait; a worker that overstays the grace
// period is abandoned and [ErrStalled] is joined into the task's
// error.
package timed
