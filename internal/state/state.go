// Copyright 2023 The Cockroach Authors
// Copyright 2026 Bob Vawter (bob@vawter.org)
// SPDX-License-Identifier: Apache-2.0

// Package state defines the core state-management types.
package state

import (
	"errors"
	"slices"
	"sync"
)

// ErrShutdown is returned by context-aware submission once shutdown has
// been requested.
var ErrShutdown = errors.New("shutdown")

// A State is shared between the producer-facing API and the consumer
// goroutine. The shutdown flag and the reservation count are guarded by
// a single mutex so that they are always observed together.
type State struct {
	draining chan struct{} // Closed by the first call to Shutdown.
	done     chan struct{} // Closed by MarkDone.

	mu struct {
		sync.RWMutex
		dropped      int // Submissions refused after shutdown.
		errs         []error
		finished     bool
		reservations int // Accepted, not yet handed to the sink.
		shutdown     bool
	}
}

func New() *State {
	return &State{
		draining: make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// AddErrors will add any non-nil errors to the State's error slice.
// Calling this method will not cause the State to shut down.
func (s *State) AddErrors(errs ...error) {
	// Common cases.
	if len(errs) == 0 || len(errs) == 1 && errs[0] == nil {
		return
	}
	isErr := slices.ContainsFunc(errs, func(err error) bool { return err != nil })
	if !isErr {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, err := range errs {
		if err != nil {
			s.mu.errs = append(s.mu.errs, err)
		}
	}
}

// Done returns a channel closed once MarkDone has been called.
func (s *State) Done() <-chan struct{} { return s.done }

// Draining returns a channel closed once Shutdown has been called.
func (s *State) Draining() <-chan struct{} { return s.draining }

// Dropped returns the number of submissions refused after shutdown.
func (s *State) Dropped() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.mu.dropped
}

// Errors will return a clone of the internal slice.
func (s *State) Errors() []error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.mu.errs)
}

func (s *State) IsShutdown() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.mu.shutdown
}

// Len returns the number of outstanding reservations.
func (s *State) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.mu.reservations
}

// MarkDone latches the terminal state. The consumer calls this after
// the sink has been closed; later calls are no-ops.
func (s *State) MarkDone() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.mu.finished {
		return
	}
	s.mu.finished = true
	close(s.done)
}

// Reserve takes a delivery reservation. It returns false, counting the
// message as dropped, once shutdown has been requested. A successful
// reservation obligates the consumer to drain the message.
func (s *State) Reserve() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.mu.shutdown {
		s.mu.dropped++
		return false
	}
	s.mu.reservations++
	return true
}

// Release returns a reservation, either because the message was handed
// to the sink or because a blocked submission was abandoned.
func (s *State) Release() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.mu.reservations--
	if s.mu.reservations < 0 {
		// Implementation error, not user problem.
		panic("over-released")
	}
}

// Shutdown sets the shutdown flag and closes the draining channel. It
// returns true on the first call.
func (s *State) Shutdown() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.mu.shutdown {
		return false
	}
	s.mu.shutdown = true
	close(s.draining)
	return true
}

// Terminal reports whether the consumer may exit. Both conditions are
// evaluated in the same critical section.
func (s *State) Terminal() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.mu.shutdown && s.mu.reservations == 0
}
