// Copyright 2026 Bob Vawter (bob@vawter.org)
// SPDX-License-Identifier: Apache-2.0

package drain

import (
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"vawter.tech/drain/retry"
)

// DefaultCapacity bounds the queue when [WithCapacity] is not used.
const DefaultCapacity = 100

// An Option adjusts the behavior of a [Service].
type Option func(*config)

type config struct {
	backoff  *retry.Backoff
	capacity int
	limiter  *rate.Limiter
	logger   *zap.Logger
	name     string
}

// sanitize initializes unset fields to a reasonable default.
func (c *config) sanitize() {
	if c.capacity <= 0 {
		c.capacity = DefaultCapacity
	}
	if c.logger == nil {
		c.logger = zap.NewNop()
	}
	if c.name == "" {
		c.name = "drain"
	}
}

// WithCapacity bounds the number of undelivered messages that the
// Service will hold before [Service.Submit] blocks. Non-positive
// values select [DefaultCapacity].
func WithCapacity(n int) Option {
	return func(c *config) { c.capacity = n }
}

// WithLogger attaches a diagnostics logger to the Service. The default
// is [zap.NewNop].
func WithLogger(l *zap.Logger) Option {
	return func(c *config) { c.logger = l }
}

// WithName provides a name for the Service that will appear in log
// messages and execution traces.
func WithName(name string) Option {
	return func(c *config) { c.name = name }
}

// WithRateLimit caps the rate at which submissions are admitted. The
// limiter is consulted before a delivery reservation is taken, so a
// throttled producer blocks in [Service.Submit] without holding any
// Service resources. A burst less than one is treated as one.
func WithRateLimit(perSecond float64, burst int) Option {
	return func(c *config) {
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(perSecond), burst)
	}
}

// WithRetry applies a backoff policy when the sink rejects a message.
// Without this option each message is attempted exactly once. A message
// that still fails after the policy is exhausted is recorded and the
// drain continues with the next message.
func WithRetry(b *retry.Backoff) Option {
	return func(c *config) { c.backoff = b }
}
