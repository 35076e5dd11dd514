// Copyright 2026 Bob Vawter (bob@vawter.org)
// SPDX-License-Identifier: Apache-2.0

package drain

// A Sink receives the messages accepted by a [Service].
//
// Implementations do not need to be safe for concurrent use. The
// Service guarantees that all Process calls and the final Close call
// are made sequentially from a single goroutine, and that no calls are
// made after Close.
type Sink[T any] interface {
	// Process handles a single message. A non-nil error fails only
	// that message; the drain continues with the next one.
	Process(msg T) error

	// Close releases any resources held by the Sink. It is called
	// exactly once, after the final message has been processed.
	Close() error
}

// SinkFunc adapts a plain function to a [Sink] with a no-op Close.
type SinkFunc[T any] func(T) error

var _ Sink[string] = (SinkFunc[string])(nil)

// Process implements [Sink].
func (f SinkFunc[T]) Process(msg T) error { return f(msg) }

// Close implements [Sink].
func (SinkFunc[T]) Close() error { return nil }
