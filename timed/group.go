// Copyright 2026 Bob Vawter (bob@vawter.org)
// SPDX-License-Identifier: Apache-2.0

package timed

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"
)

// A GroupOption modifies the behavior of [NewGroup].
type GroupOption func(*groupConfig)

type groupConfig struct {
	limiter *rate.Limiter
	logger  *zap.Logger
}

// GroupLogger sets the logger passed to each task started by the
// group. The default is a no-op logger.
func GroupLogger(logger *zap.Logger) GroupOption {
	return func(c *groupConfig) {
		c.logger = logger
	}
}

// GroupRate throttles how quickly the group starts new tasks. The
// default is unthrottled.
func GroupRate(perSecond float64, burst int) GroupOption {
	if burst < 1 {
		burst = 1
	}
	return func(c *groupConfig) {
		c.limiter = rate.NewLimiter(rate.Limit(perSecond), burst)
	}
}

// A Group runs tasks with a bound on the number executing at any one
// time. The zero value is not useful; use [NewGroup].
type Group struct {
	cfg *groupConfig
	sem *semaphore.Weighted
	wg  sync.WaitGroup

	mu struct {
		sync.Mutex
		errs    []error
		running int
	}
}

// NewGroup constructs a Group that will run at most maxParallel tasks
// concurrently.
func NewGroup(maxParallel int64, opts ...GroupOption) *Group {
	if maxParallel <= 0 {
		panic(errors.New("maxParallel must be greater than zero"))
	}
	cfg := &groupConfig{}
	for _, opt := range opts {
		opt(cfg)
	}
	if cfg.logger == nil {
		cfg.logger = zap.NewNop()
	}
	return &Group{
		cfg: cfg,
		sem: semaphore.NewWeighted(maxParallel),
	}
}

// Go starts the work function once a concurrency slot is available,
// blocking the caller until then. It returns the started [Task], or an
// error if the context was done before a slot could be acquired.
//
// A task's slot is released when it reaches a terminal state, so a
// stalled worker that was abandoned does not pin its slot.
func (g *Group) Go(ctx context.Context, work Work, timeout time.Duration, opts ...Option) (*Task, error) {
	if g.cfg.limiter != nil {
		if err := g.cfg.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}
	if err := g.sem.Acquire(ctx, 1); err != nil {
		return nil, err
	}

	// Per-task options may still override the group's logger.
	opts = append([]Option{WithLogger(g.cfg.logger)}, opts...)
	t := Start(ctx, work, timeout, opts...)

	g.wg.Add(1)
	g.mu.Lock()
	g.mu.running++
	g.mu.Unlock()

	go func() {
		defer g.wg.Done()
		defer g.sem.Release(1)
		<-t.Done()
		g.mu.Lock()
		defer g.mu.Unlock()
		g.mu.running--
		if err := t.Err(); err != nil {
			g.mu.errs = append(g.mu.errs, err)
		}
	}()

	return t, nil
}

// Len returns the number of tasks currently executing.
func (g *Group) Len() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.mu.running
}

// Wait blocks until all started tasks have reached a terminal state
// and returns the join of their errors. Go must not be called
// concurrently with Wait.
func (g *Group) Wait() error {
	g.wg.Wait()
	g.mu.Lock()
	defer g.mu.Unlock()
	return errors.Join(g.mu.errs...)
}
