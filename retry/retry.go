// Copyright 2026 Bob Vawter (bob@vawter.org)
// SPDX-License-Identifier: Apache-2.0

// Package retry contains policies for retrying failed operations.
//
// The generic [Run] function is a building block for retryable
// behaviors using a [Classifier] function to drive the retry policy. An
// exponential [Backoff] and a trivial [Loop] implementation are
// provided. The root drain package consults a [Backoff] when a sink
// rejects a message.
package retry

import (
	"context"
	"errors"
	"runtime/trace"
)

// A Classifier is a function that determines if an error is retryable.
// Each operation is associated with a state value, which is initially
// the zero value for the S type. If an attempt fails, the error and the
// current state are passed to the Classifier. The Classifier may return
// an error to fail the operation if it should not be retried.
//
// If the operation should be retried, the Classifier returns a channel
// that emits a value when the next attempt should be made (e.g.:
// [time.After]). Closing the channel without emitting a value will
// abandon the operation, failing with the error most recently passed to
// the Classifier.
//
// If the context is canceled while waiting for the retry signal, the
// operation will be failed with the previously examined error joined
// with the cancellation cause.
//
// If the returned channel and error are both nil, the error will be
// considered to have been handled by the Classifier function and the
// operation will be considered a success.
type Classifier[S, N any] func(ctx context.Context, state *S, err error) (<-chan N, error)

// Run executes the function, consulting the [Classifier] after each
// failed attempt.
func Run[S, N any](ctx context.Context, cl Classifier[S, N], fn func() error) error {
	var state S
	for {
		// Make the attempt.
		err := fn()
		if err == nil {
			return nil
		}
		// Classify the error.
		next, fail := cl(ctx, &state, err)
		// Classifier is rejecting the error.
		if fail != nil {
			return fail
		}
		// Classifier ate the error condition.
		if next == nil {
			return nil
		}
		// Wait for a decision.
		if err := waitOnChannel(ctx, next, err); err != nil {
			return err
		}
	}
}

func waitOnChannel[N any](ctx context.Context, next <-chan N, err error) error {
	defer trace.StartRegion(ctx, "retry wait").End()
	select {
	case _, ok := <-next:
		if ok {
			return nil
		}
		return err
	case <-ctx.Done():
		return errors.Join(err, context.Cause(ctx))
	}
}
