// Copyright 2023 The Cockroach Authors
// Copyright 2026 Bob Vawter (bob@vawter.org)
// SPDX-License-Identifier: Apache-2.0

package drain

import (
	"context"
	"errors"
	"fmt"
	"runtime/trace"

	"go.uber.org/zap"

	"vawter.tech/drain/internal/safe"
	"vawter.tech/drain/internal/state"
)

// ErrShutdown will be returned from [Service.SubmitContext] when a
// message is refused because [Service.Shutdown] has been called.
var ErrShutdown = state.ErrShutdown

// A RecoveredError will be returned via [Service.Wait] when a sink
// panics.
type RecoveredError = safe.RecoveredError

// A Service pumps messages from any number of producers to a single
// [Sink].
//
// A Service implements a drain-on-shutdown model. Producers hand
// messages to [Service.Submit], which blocks only when the bounded
// queue is at capacity. A single consumer goroutine, started by [New],
// delivers the messages to the sink in FIFO order. Calling
// [Service.Shutdown] stops admission immediately, yet every message
// accepted beforehand is still delivered before the sink is closed.
//
// The admission decision and the count of undelivered messages are
// updated under one mutex, so a message is either refused outright or
// fully owed to the sink. There is no state in which an accepted
// message can be lost.
//
// All methods on a Service are safe for concurrent use.
type Service[T any] struct {
	cfg   *config
	queue chan T
	st    *state.State
	wake  chan struct{} // Nudges the consumer when a reservation is abandoned.
}

// New starts a Service that delivers to the given sink. The sink must
// not be nil. The consumer goroutine exits, and the sink is closed,
// only after [Service.Shutdown] has been called and the backlog has
// been delivered.
func New[T any](sink Sink[T], opts ...Option) *Service[T] {
	cfg := &config{}
	for _, opt := range opts {
		opt(cfg)
	}
	cfg.sanitize()

	s := &Service[T]{
		cfg:   cfg,
		queue: make(chan T, cfg.capacity),
		st:    state.New(),
		wake:  make(chan struct{}, 1),
	}
	go s.consume(sink)

	cfg.logger.Debug("service started",
		zap.String("service", cfg.name),
		zap.Int("capacity", cfg.capacity))
	return s
}

// Done returns a channel that is closed once the drain has completed
// and the sink has been closed.
func (s *Service[T]) Done() <-chan struct{} { return s.st.Done() }

// Draining returns a channel that is closed once [Service.Shutdown]
// has been called.
func (s *Service[T]) Draining() <-chan struct{} { return s.st.Draining() }

// Dropped returns the number of messages refused after shutdown.
func (s *Service[T]) Dropped() int { return s.st.Dropped() }

// Len returns the number of messages that have been accepted but not
// yet handed to the sink.
func (s *Service[T]) Len() int { return s.st.Len() }

// Shutdown stops admission of new messages. The first call closes the
// [Service.Draining] channel; later calls are no-ops. Shutdown never
// blocks: use [Service.Wait] or [Service.Done] to observe the end of
// the drain.
func (s *Service[T]) Shutdown() {
	if s.st.Shutdown() {
		s.cfg.logger.Debug("shutdown requested",
			zap.String("service", s.cfg.name),
			zap.Int("backlog", s.st.Len()))
	}
}

// Submit offers a message to the Service. Submissions after
// [Service.Shutdown] are silently dropped. Submit may block when the
// queue is at capacity; a message accepted before shutdown will be
// delivered even if the enqueue itself completes afterward.
func (s *Service[T]) Submit(msg T) {
	if l := s.cfg.limiter; l != nil {
		_ = l.Wait(context.Background())
	}
	if !s.st.Reserve() {
		s.cfg.logger.Debug("message dropped after shutdown",
			zap.String("service", s.cfg.name))
		return
	}
	s.queue <- msg
}

// SubmitContext is a cancelable form of [Service.Submit]. It returns
// [ErrShutdown] when the message is refused, or the context's error
// when the caller gives up while blocked on a full queue. A nil return
// guarantees eventual delivery to the sink.
func (s *Service[T]) SubmitContext(ctx context.Context, msg T) error {
	if l := s.cfg.limiter; l != nil {
		if err := l.Wait(ctx); err != nil {
			return err
		}
	}
	if !s.st.Reserve() {
		s.cfg.logger.Debug("message dropped after shutdown",
			zap.String("service", s.cfg.name))
		return ErrShutdown
	}
	select {
	case s.queue <- msg:
		return nil
	case <-ctx.Done():
		// Hand back the reservation and nudge the consumer, which may
		// be waiting on this very message to finish a drain.
		s.st.Release()
		select {
		case s.wake <- struct{}{}:
		default:
		}
		return ctx.Err()
	}
}

// String is for debugging use only.
func (s *Service[T]) String() string {
	return fmt.Sprintf("%s: (%d reserved) (%d errors) (draining=%t)",
		s.cfg.name, s.st.Len(), len(s.st.Errors()), s.st.IsShutdown())
}

// Wait blocks until the drain has completed. It returns the combined
// errors from failed deliveries and from closing the sink.
func (s *Service[T]) Wait() error {
	return s.WaitCtx(context.Background())
}

// WaitCtx is an interruptable version of [Service.Wait]. If the
// argument's Done() channel is closed, the argument's Err() value will
// be returned.
func (s *Service[T]) WaitCtx(ctx context.Context) error {
	select {
	case <-s.Done():
	case <-ctx.Done():
		return ctx.Err()
	}

	return errors.Join(s.st.Errors()...)
}

// consume is the single consumer goroutine. Delivery follows a fixed
// order: the reservation is released under the state mutex, then the
// message is handed to the sink outside of it.
func (s *Service[T]) consume(sink Sink[T]) {
	ctx, task := trace.NewTask(context.Background(), s.cfg.name)
	defer task.End()

	var processed, failed int
	defer func() {
		if err := safe.CallE(sink.Close); err != nil {
			s.st.AddErrors(err)
			s.cfg.logger.Warn("sink close failed",
				zap.String("service", s.cfg.name),
				zap.Error(err))
		}
		s.st.MarkDone()
		s.cfg.logger.Debug("drain complete",
			zap.String("service", s.cfg.name),
			zap.Int("processed", processed),
			zap.Int("failed", failed),
			zap.Int("dropped", s.st.Dropped()))
	}()

	deliver := func(msg T) {
		s.st.Release()
		defer trace.StartRegion(ctx, "deliver").End()

		attempt := func() error {
			return safe.CallE(func() error { return sink.Process(msg) })
		}
		var err error
		if b := s.cfg.backoff; b != nil {
			err = b.Run(ctx, attempt)
		} else {
			err = attempt()
		}
		if err != nil {
			failed++
			s.st.AddErrors(err)
			s.cfg.logger.Warn("message delivery failed",
				zap.String("service", s.cfg.name),
				zap.Error(err))
			return
		}
		processed++
	}

	// Run until a shutdown has been requested, then drain the backlog.
	// The wake channel breaks the wait when an abandoned reservation,
	// rather than a message, changes the exit condition.
	for {
		select {
		case msg := <-s.queue:
			deliver(msg)
		case <-s.st.Draining():
			for !s.st.Terminal() {
				select {
				case msg := <-s.queue:
					deliver(msg)
				case <-s.wake:
				}
			}
			return
		}
	}
}
