// Package confirm implements the two-phase gate in front of destructive
// actions: request, then confirm or cancel.
package confirm

import (
	"context"
	"sync"
)

// State of a Gate.
type State string

const (
	Idle                State = "idle"
	PendingConfirmation State = "pending_confirmation"
	Executing           State = "executing"
)

// Action is the guarded operation.
type Action func(ctx context.Context) error

// Snapshot is what a dialog renders.
type Snapshot struct {
	State       State  `json:"state"`
	Description string `json:"description,omitempty"`
}

// Gate is safe for concurrent use. The zero value is an idle gate.
type Gate struct {
	mu        sync.Mutex
	state     State
	desc      string
	action    Action
	onSuccess func()
}

func (g *Gate) current() State {
	if g.state == "" {
		return Idle
	}
	return g.state
}

// Request opens the dialog for action. The description is fixed now so
// the prompt stays accurate if the target changes before confirmation.
// It returns false when a request is already open or executing.
func (g *Gate) Request(description string, action Action, onSuccess func()) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.current() != Idle {
		return false
	}
	g.state = PendingConfirmation
	g.desc = description
	g.action = action
	g.onSuccess = onSuccess
	return true
}

// Confirm runs the pending action and returns the gate to Idle whatever
// the outcome. ran is false, and nothing happens, unless a confirmation
// was pending.
func (g *Gate) Confirm(ctx context.Context) (ran bool, err error) {
	g.mu.Lock()
	if g.current() != PendingConfirmation {
		g.mu.Unlock()
		return false, nil
	}
	g.state = Executing
	action, onSuccess := g.action, g.onSuccess
	g.mu.Unlock()

	err = action(ctx)

	g.mu.Lock()
	g.reset()
	g.mu.Unlock()

	if err == nil && onSuccess != nil {
		onSuccess()
	}
	return true, err
}

// Cancel closes a pending dialog without side effects. It reports whether
// anything was cancelled.
func (g *Gate) Cancel() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.current() != PendingConfirmation {
		return false
	}
	g.reset()
	return true
}

// Snapshot returns the current state and description.
func (g *Gate) Snapshot() Snapshot {
	g.mu.Lock()
	defer g.mu.Unlock()
	return Snapshot{State: g.current(), Description: g.desc}
}

func (g *Gate) reset() {
	g.state = Idle
	g.desc = ""
	g.action = nil
	g.onSuccess = nil
}
