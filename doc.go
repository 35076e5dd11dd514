// Copyright 2026 Bob Vawter (bob@vawter.org)
// SPDX-License-Identifier: Apache-2.0

// Package drain provides a bounded, drain-on-shutdown message queue
// with a single consumer.
//
// A [Service] sits between any number of producers and one [Sink]. It
// accepts messages through a bounded queue and delivers them, in FIFO
// order, from a dedicated consumer goroutine. Its defining guarantee
// concerns shutdown:
//
//  1. Admission stops immediately. [Service.Submit] becomes a silent
//     no-op and [Service.SubmitContext] returns [ErrShutdown].
//  2. Every message accepted before the shutdown is still delivered
//     to the sink, exactly once, before the sink is closed.
//
// The guarantee holds even for producers that were blocked on a full
// queue when the shutdown arrived: their messages were already
// reserved, so the consumer keeps draining until those enqueues
// complete.
//
// # Creating a service
//
// Use [New] with any [Sink] implementation, or [NewLogService] for the
// common case of line-oriented logging to an [io.Writer]:
//
//	svc := drain.New[Event](sink, drain.WithCapacity(256))
//
//	logSvc := drain.NewLogService(&lumberjack.Logger{
//	    Filename: "/var/log/app.log",
//	})
//
// # Submitting
//
// [Service.Submit] never fails. Before shutdown it blocks only while
// the queue is at capacity; afterward it drops the message and
// returns. Producers that need to abandon a blocked submission use
// [Service.SubmitContext], which hands the delivery reservation back
// when the context is canceled.
//
// # Shutting down and waiting
//
// [Service.Shutdown] is idempotent and never blocks. Observe the drain
// through [Service.Draining] (shutdown requested), [Service.Done]
// (sink closed), or [Service.Wait]:
//
//	svc.Shutdown()
//	if err := svc.Wait(); err != nil {
//	    log.Printf("drain finished with errors: %v", err)
//	}
//
// # Error handling
//
// A sink error fails only the message being delivered; the drain
// continues with the next one. All delivery and close errors are
// collected and returned together by [Service.Wait]. A panicking sink
// does not take down the consumer: the panic is captured as a
// [RecoveredError] and treated like any other delivery failure.
//
// [WithRetry] attaches a [retry.Backoff] policy so that transient sink
// failures are retried with exponential backoff before a message is
// declared failed.
//
// # Rate limiting
//
// [WithRateLimit] throttles admission using [golang.org/x/time/rate].
// The limiter runs before a message is accepted, so a throttled
// producer holds no Service resources while it waits.
//
// # OS signal integration
//
// [ShutdownOnReceive] triggers the drain when a value arrives on any
// channel. It is commonly used with [os/signal.Notify] to flush
// buffered log lines on SIGINT or SIGTERM.
//
// # Observability
//
// A [zap.Logger] passed via [WithLogger] receives lifecycle events and
// delivery failures. The consumer goroutine is annotated as a
// [runtime/trace.Task] and each delivery as a region, so queue
// backpressure is visible in Go execution traces. Use [WithName] to
// label the service in both outputs.
//
// # Bounded task execution
//
// The [vawter.tech/drain/timed] sub-package bounds the wall-clock time
// of individual function calls, reporting timeouts, cancellations, and
// failures as distinct error values.
package drain
