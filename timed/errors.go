// Copyright 2026 Bob Vawter (bob@vawter.org)
// SPDX-License-Identifier: Apache-2.0

package timed

import (
	"errors"

	"vawter.tech/drain/internal/safe"
)

var (
	// ErrCanceled is reported when a task was cancelled externally,
	// either through [Task.Cancel] or the caller's context, before it
	// could finish. Errors returned for cancelled tasks also satisfy
	// errors.Is on [context.Canceled].
	ErrCanceled = errors.New("task canceled")

	// ErrStalled is joined into a task's error when its worker did not
	// stop within the grace period configured by [WithStopGrace]. The
	// worker goroutine has been abandoned.
	ErrStalled = errors.New("task worker did not stop")

	// ErrTimeout is reported when a task exceeded its time budget.
	// Errors returned for timed-out tasks also satisfy errors.Is on
	// [context.DeadlineExceeded].
	ErrTimeout = errors.New("task timed out")
)

// RecoveredError is reported when a task's work function panics.
type RecoveredError = safe.RecoveredError
