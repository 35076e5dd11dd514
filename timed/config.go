// Copyright 2026 Bob Vawter (bob@vawter.org)
// SPDX-License-Identifier: Apache-2.0

package timed

import (
	"time"

	"go.uber.org/zap"
)

// An Option modifies the behavior of [Run] and [Start].
type Option func(*config)

type config struct {
	grace  time.Duration
	logger *zap.Logger
	name   string
}

// sanitize returns a copy with all fields initialized to a reasonable default.
func (c *config) sanitize() *config {
	ret := *c
	if ret.logger == nil {
		ret.logger = zap.NewNop()
	}
	if ret.name == "" {
		ret.name = "task"
	}
	return &ret
}

func newConfig(opts []Option) *config {
	cfg := &config{}
	for _, opt := range opts {
		opt(cfg)
	}
	return cfg.sanitize()
}

// WithLogger sets the logger used to report events that are invisible
// to the caller, such as discarded late results and stalled workers.
// The default is a no-op logger.
func WithLogger(logger *zap.Logger) Option {
	return func(c *config) {
		c.logger = logger
	}
}

// WithName sets the task name used in logging and debug output. The
// default is "task".
func WithName(name string) Option {
	return func(c *config) {
		c.name = name
	}
}

// WithStopGrace bounds how long the runner waits for the work function
// to stop after its context has been cancelled. If the worker is still
// running once the grace period elapses, the runner abandons it and
// joins [ErrStalled] into the task's error. Without this option the
// runner waits indefinitely.
func WithStopGrace(d time.Duration) Option {
	return func(c *config) {
		c.grace = d
	}
}
