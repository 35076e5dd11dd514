// Copyright 2026 Bob Vawter (bob@vawter.org)
// SPDX-License-Identifier: Apache-2.0

package timed

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Status describes where a [Task] is in its lifecycle. A task moves
// from [StatusCreated] through [StatusRunning] to exactly one of the
// terminal states; the terminal state never changes once reached.
type Status string

const (
	StatusCreated   Status = "created"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusTimedOut  Status = "timed_out"
	StatusCanceled  Status = "canceled"
)

// A Task is the handle for one invocation of a work function started
// by [Start]. It can be used as observability data; the enclosed
// channel allows event-driven lifecycle notifications.
type Task struct {
	cancel  context.CancelCauseFunc
	done    chan struct{}
	id      uuid.UUID
	name    string
	started time.Time

	mu struct {
		sync.Mutex
		err    error
		status Status
	}
}

func newTask(name string, cancel context.CancelCauseFunc) *Task {
	t := &Task{
		cancel:  cancel,
		done:    make(chan struct{}),
		id:      uuid.New(),
		name:    name,
		started: time.Now(),
	}
	t.mu.status = StatusCreated
	return t
}

// Cancel requests external cancellation of the task. It is a no-op if
// the task has already reached a terminal state.
func (t *Task) Cancel() {
	t.cancel(ErrCanceled)
}

// Done is closed once the task has reached a terminal state.
func (t *Task) Done() <-chan struct{} {
	return t.done
}

// Err returns the task's terminal error. It is nil until [Task.Done]
// is closed and remains nil if the task completed successfully.
func (t *Task) Err() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.mu.err
}

// ID returns a unique identifier for the task.
func (t *Task) ID() uuid.UUID {
	return t.id
}

// Name returns the configured task name. See [WithName].
func (t *Task) Name() string {
	return t.name
}

// Started returns the time at which the task was created.
func (t *Task) Started() time.Time {
	return t.started
}

// Status returns the task's current lifecycle state.
func (t *Task) Status() Status {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.mu.status
}

// Wait blocks until the task reaches a terminal state and returns its
// error, or until the context is done.
func (t *Task) Wait(ctx context.Context) error {
	select {
	case <-t.done:
		return t.Err()
	case <-ctx.Done():
		return ctx.Err()
	}
}

// MarshalJSON summarizes the Task.
func (t *Task) MarshalJSON() ([]byte, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	p := struct {
		Error   string    `json:"error,omitzero"`
		ID      uuid.UUID `json:"id"`
		Name    string    `json:"name,omitzero"`
		Started time.Time `json:"started,omitzero"`
		Status  Status    `json:"status"`
	}{
		ID:      t.id,
		Name:    t.name,
		Started: t.started,
		Status:  t.mu.status,
	}
	if t.mu.err != nil {
		p.Error = t.mu.err.Error()
	}

	return json.Marshal(p)
}

// String is for debugging use only.
func (t *Task) String() string {
	t.mu.Lock()
	defer t.mu.Unlock()

	var state string
	if t.mu.err == nil {
		state = fmt.Sprintf("(%s)", t.mu.status)
	} else {
		state = fmt.Sprintf("(%s %v)", t.mu.status, t.mu.err)
	}

	return fmt.Sprintf("%s (%s) (started %s) %s",
		t.name, t.id, t.started, state)
}

// markRunning records the transition out of [StatusCreated].
func (t *Task) markRunning() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.mu.status = StatusRunning
}

// resolve makes the one-shot transition to a terminal state. It
// returns false if the task had already been resolved.
func (t *Task) resolve(status Status, err error) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	switch t.mu.status {
	case StatusCreated, StatusRunning:
		t.mu.status = status
		t.mu.err = err
		close(t.done)
		return true
	default:
		return false
	}
}
