// Copyright 2026 Bob Vawter (bob@vawter.org)
// SPDX-License-Identifier: Apache-2.0

package timed

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"time"
)

// ForEach concurrently applies the callback to each item in the
// sequence, with the number of workers bounded and each invocation
// subject to the time budget. It blocks until every started invocation
// has reached a terminal state.
//
// Errors returned by the callback are wrapped with the item's position
// in the sequence and joined into the returned error; a failure for
// one item does not stop the others. Timeouts and cancellations are
// reported through the usual [ErrTimeout] and [ErrCanceled] taxonomy.
func ForEach[T any](
	ctx context.Context,
	items iter.Seq[T],
	workers int64,
	timeout time.Duration,
	fn func(context.Context, T) error,
	opts ...Option,
) error {
	g := NewGroup(workers)

	var launchErr error
	idx := 0
	for item := range items {
		count := idx
		idx++
		if _, err := g.Go(ctx, func(ctx context.Context) error {
			if err := fn(ctx, item); err != nil {
				return fmt.Errorf("index %d: %w", count, err)
			}
			return nil
		}, timeout, opts...); err != nil {
			// The context was done before a slot opened up; stop
			// launching and report what already ran.
			launchErr = fmt.Errorf("index %d: %w", count, err)
			break
		}
	}

	return errors.Join(launchErr, g.Wait())
}
