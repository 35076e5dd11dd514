// Copyright 2023 The Cockroach Authors
// Copyright 2026 Bob Vawter (bob@vawter.org)
// SPDX-License-Identifier: Apache-2.0

package drain

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"
	"testing"
	"testing/synctest"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vawter.tech/drain/retry"
)

// recorderSink collects successful deliveries. An optional gate channel
// blocks Process until a token is available, letting tests sequence the
// consumer precisely.
type recorderSink struct {
	gate chan struct{} // Nil means deliveries complete immediately.
	fail func(string) error

	mu struct {
		sync.Mutex
		closed int
		msgs   []string
	}
}

func (s *recorderSink) Process(msg string) error {
	if s.gate != nil {
		<-s.gate
	}
	if s.fail != nil {
		if err := s.fail(msg); err != nil {
			return err
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.mu.msgs = append(s.mu.msgs, msg)
	return nil
}

func (s *recorderSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.mu.closed++
	return nil
}

func (s *recorderSink) closeCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mu.closed
}

func (s *recorderSink) messages() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.mu.msgs...)
}

func TestDrainDeliversBacklog(t *testing.T) {
	a := assert.New(t)

	sink := &recorderSink{gate: make(chan struct{})}
	s := New[string](sink)

	var want []string
	for i := range 50 {
		msg := fmt.Sprintf("msg-%02d", i)
		want = append(want, msg)
		s.Submit(msg)
	}

	// Nothing can have been delivered while the gate is shut.
	a.Empty(sink.messages())

	s.Shutdown()
	select {
	case <-s.Draining():
	// OK
	case <-time.After(time.Second):
		a.Fail("draining channel did not close")
	}

	// The backlog must still be delivered, in order, after shutdown.
	close(sink.gate)
	a.NoError(s.Wait())
	a.Equal(want, sink.messages())
	a.Equal(1, sink.closeCount())
	a.Zero(s.Len())
	a.Zero(s.Dropped())
}

func TestSubmitAfterShutdownDrops(t *testing.T) {
	a := assert.New(t)

	sink := &recorderSink{}
	s := New[string](sink)

	s.Submit("kept")
	s.Shutdown()

	// Submissions after shutdown return without blocking and without
	// touching the sink.
	s.Submit("dropped-1")
	s.Submit("dropped-2")
	a.ErrorIs(s.SubmitContext(t.Context(), "dropped-3"), ErrShutdown)

	a.NoError(s.Wait())
	a.Equal([]string{"kept"}, sink.messages())
	a.Equal(3, s.Dropped())

	// The service stays inert after the drain has completed.
	s.Submit("dropped-4")
	a.Equal(4, s.Dropped())
	a.Equal([]string{"kept"}, sink.messages())
	a.Equal(1, sink.closeCount())
}

func TestShutdownIdempotent(t *testing.T) {
	a := assert.New(t)

	sink := &recorderSink{}
	s := New[string](sink)

	s.Shutdown()
	s.Shutdown()
	s.Shutdown()

	a.NoError(s.Wait())
	a.Equal(1, sink.closeCount())

	select {
	case <-s.Done():
	// OK
	default:
		a.Fail("done channel should be closed")
	}
}

// TestBlockedProducerDrained covers the producer that is suspended on a
// full queue when the shutdown arrives. Its reservation was taken
// before the shutdown, so the message must still be delivered.
func TestBlockedProducerDrained(t *testing.T) {
	a := assert.New(t)

	sink := &recorderSink{gate: make(chan struct{})}
	s := New[string](sink, WithCapacity(1))

	// The consumer picks up "a" and blocks inside Process.
	s.Submit("a")
	// "b" fills the queue.
	s.Submit("b")

	// "c" blocks in the channel send, holding a reservation.
	cSent := make(chan struct{})
	go func() {
		defer close(cSent)
		s.Submit("c")
	}()

	// Wait for "c" to take its reservation before shutting down.
	for s.Len() < 2 {
		time.Sleep(time.Millisecond)
	}
	s.Shutdown()

	close(sink.gate)
	a.NoError(s.Wait())
	a.Equal([]string{"a", "b", "c"}, sink.messages())

	select {
	case <-cSent:
	// OK
	case <-time.After(time.Second):
		a.Fail("blocked producer did not return")
	}
}

func TestSinkFailureIsolation(t *testing.T) {
	a := assert.New(t)

	boom := errors.New("boom")
	sink := &recorderSink{
		fail: func(msg string) error {
			if msg == "bad" {
				return boom
			}
			return nil
		},
	}
	s := New[string](sink)

	s.Submit("good-1")
	s.Submit("bad")
	s.Submit("good-2")
	s.Shutdown()

	// The failed message is reported, but the drain continues.
	err := s.Wait()
	a.ErrorIs(err, boom)
	a.Equal([]string{"good-1", "good-2"}, sink.messages())
	a.Equal(1, sink.closeCount())
}

func TestSinkPanicIsolation(t *testing.T) {
	r := require.New(t)

	sink := &recorderSink{
		fail: func(msg string) error {
			if msg == "explode" {
				panic("kaboom")
			}
			return nil
		},
	}
	s := New[string](sink)

	s.Submit("explode")
	s.Submit("after")
	s.Shutdown()

	err := s.Wait()
	r.ErrorContains(err, "kaboom")

	var recovered *RecoveredError
	r.ErrorAs(err, &recovered)
	r.NotZero(len(recovered.Stack))

	// The panic poisoned one message, not the drain.
	r.Equal([]string{"after"}, sink.messages())
	r.Equal(1, sink.closeCount())
}

func TestSinkCloseErrorReported(t *testing.T) {
	a := assert.New(t)

	closeErr := errors.New("close failed")
	s := New[string](&closeFailSink{err: closeErr})
	s.Submit("msg")
	s.Shutdown()
	a.ErrorIs(s.Wait(), closeErr)
}

type closeFailSink struct {
	err error
}

func (s *closeFailSink) Process(string) error { return nil }
func (s *closeFailSink) Close() error         { return s.err }

// TestSubmitContextAbandon verifies that a canceled submission hands
// its reservation back and does not stall the drain.
func TestSubmitContextAbandon(t *testing.T) {
	a := assert.New(t)

	sink := &recorderSink{gate: make(chan struct{})}
	s := New[string](sink, WithCapacity(1))

	// The consumer picks up "a" and blocks; "b" fills the queue.
	s.Submit("a")
	s.Submit("b")

	// "c" cannot be enqueued and gives up.
	ctx, cancel := context.WithCancel(t.Context())
	errCh := make(chan error, 1)
	go func() {
		errCh <- s.SubmitContext(ctx, "c")
	}()
	for s.Len() < 2 {
		time.Sleep(time.Millisecond)
	}
	cancel()

	select {
	case err := <-errCh:
		a.ErrorIs(err, context.Canceled)
	case <-time.After(time.Second):
		a.Fail("canceled submission did not return")
	}
	a.Equal(1, s.Len())

	s.Shutdown()
	close(sink.gate)
	a.NoError(s.Wait())
	a.Equal([]string{"a", "b"}, sink.messages())
}

// TestAbandonDuringDrain exercises the consumer's wake path: the
// abandoned reservation may be the event that completes the drain. The
// test runs in a synctest bubble, so a stalled consumer would surface
// as a deadlocked bubble rather than a hang.
func TestAbandonDuringDrain(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		a := assert.New(t)

		slow := SinkFunc[string](func(string) error {
			time.Sleep(100 * time.Millisecond)
			return nil
		})
		s := New[string](slow, WithCapacity(1))

		s.Submit("a")
		s.Submit("b")

		ctx, cancel := context.WithCancel(t.Context())
		errCh := make(chan error, 1)
		go func() {
			errCh <- s.SubmitContext(ctx, "c")
		}()
		synctest.Wait()

		s.Shutdown()
		cancel()

		// Whether "c" made it into the queue depends on which select
		// branch fired first; both outcomes must leave the drain able
		// to finish.
		a.NoError(s.Wait())
		err := <-errCh
		if err != nil {
			a.ErrorIs(err, context.Canceled)
		}
		a.Zero(s.Len())
	})
}

func TestWaitCtxInterrupt(t *testing.T) {
	r := require.New(t)

	sink := &recorderSink{gate: make(chan struct{})}
	s := New[string](sink)
	s.Submit("held")

	stdCtx, cancel := context.WithCancel(t.Context())
	cancel()
	r.ErrorIs(s.WaitCtx(stdCtx), context.Canceled)

	s.Shutdown()
	close(sink.gate)
	r.NoError(s.Wait())
}

func TestNoGoroutinesAfterDrain(t *testing.T) {
	r := require.New(t)

	// Allow any background goroutines to settle before we take a baseline.
	runtime.Gosched()
	before := runtime.NumGoroutine()

	s := New[string](&recorderSink{})

	// The consumer goroutine is running.
	r.Greater(runtime.NumGoroutine(), before)

	s.Submit("msg")
	s.Shutdown()
	r.NoError(s.Wait())

	// The consumer should terminate before Wait() returns.
	for i := 0; runtime.NumGoroutine() > before && i < 100; i++ {
		time.Sleep(time.Millisecond)
	}
	r.Equal(before, runtime.NumGoroutine())
}

func TestString(t *testing.T) {
	a := assert.New(t)

	sink := &recorderSink{}
	s := New[string](sink, WithName("tester"))

	// Verify debugging output.
	a.Equal("tester: (0 reserved) (0 errors) (draining=false)", fmt.Sprintf("%s", s))

	s.Shutdown()
	a.NoError(s.Wait())
	a.Equal("tester: (0 reserved) (0 errors) (draining=true)", fmt.Sprintf("%s", s))
}

func TestRateLimit(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		a := assert.New(t)

		sink := &recorderSink{}
		s := New[string](sink, WithRateLimit(1, 1))

		start := time.Now()
		s.Submit("one")   // Consumes the burst immediately.
		s.Submit("two")   // Waits one second.
		s.Submit("three") // Waits another second.
		a.Equal(2*time.Second, time.Since(start))

		s.Shutdown()
		a.NoError(s.Wait())
		a.Equal([]string{"one", "two", "three"}, sink.messages())
	})
}

func TestRetryDelivery(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		a := assert.New(t)

		attempts := 0
		sink := &recorderSink{
			fail: func(msg string) error {
				attempts++
				if attempts < 3 {
					return errors.New("transient")
				}
				return nil
			},
		}
		s := New[string](sink, WithRetry(&retry.Backoff{
			MaxAttempts: 5,
			MinDelay:    10 * time.Millisecond,
			MaxDelay:    10 * time.Millisecond,
			Multiplier:  1,
		}))

		s.Submit("flaky")
		s.Shutdown()
		a.NoError(s.Wait())
		a.Equal(3, attempts)
		a.Equal([]string{"flaky"}, sink.messages())
	})
}

func TestRetryExhausted(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		a := assert.New(t)

		boom := errors.New("boom")
		sink := &recorderSink{
			fail: func(msg string) error {
				if msg == "doomed" {
					return boom
				}
				return nil
			},
		}
		s := New[string](sink, WithRetry(&retry.Backoff{
			MaxAttempts: 2,
			MinDelay:    time.Millisecond,
			MaxDelay:    time.Millisecond,
			Multiplier:  1,
		}))

		s.Submit("doomed")
		s.Submit("fine")
		s.Shutdown()

		// The doomed message burns through its retry budget without
		// taking the well-behaved message down with it.
		err := s.Wait()
		a.ErrorIs(err, boom)
		var maxErr *retry.MaxAttemptsError
		a.ErrorAs(err, &maxErr)
		a.Equal([]string{"fine"}, sink.messages())
	})
}
