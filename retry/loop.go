// Copyright 2026 Bob Vawter (bob@vawter.org)
// SPDX-License-Identifier: Apache-2.0

package retry

import "context"

// Loop implements a trivial, synchronous looping behavior.
type Loop struct {
	MaxAttempts int              // Defaults to 2 if unset.
	Retryable   func(error) bool // Defaults to retrying all errors.
}

// Run executes the function, retrying immediately after a retryable
// failure.
func (l *Loop) Run(ctx context.Context, fn func() error) error {
	attempts := l.MaxAttempts
	if attempts == 0 {
		attempts = 2
	}
	retryable := l.Retryable
	if retryable == nil {
		retryable = func(_ error) bool { return true }
	}
	return Run(ctx, func(_ context.Context, state *int, err error) (<-chan struct{}, error) {
		if !retryable(err) {
			return nil, err
		}
		*state++
		if *state >= attempts {
			return nil, &MaxAttemptsError{err}
		}
		ch := make(chan struct{}, 1)
		ch <- struct{}{}
		return ch, nil
	}, fn)
}
