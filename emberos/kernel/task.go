// Package kernel is the task-switching core: it multiplexes one CPU
// across registered tasks, alternating each task between user-mode
// execution (resumed from a saved trap frame) and its kernel-side
// continuation (advanced one suspension point at a time).
package kernel

import (
	"errors"
	"sync"

	"ember/hal"
)

// TaskID identifies a registered task. IDs are allocated in strictly
// increasing order and never reused. ID 0 is reserved as the "no
// previous task" sentinel and is never assigned.
type TaskID uint64

// NoTask is the sentinel id meaning "no previous task".
const NoTask TaskID = 0

// StateKind enumerates what a task is currently doing.
type StateKind uint8

const (
	// StateEntry: a trap frame has arrived and awaits the continuation.
	StateEntry StateKind = iota
	// StateWake: runnable with no pending frame; the first-run state.
	StateWake
	// StateSleep: blocked; invisible to scheduling until woken.
	StateSleep
	// StateUser: logically executing in user mode; the frame is the last
	// saved or next-to-load register snapshot.
	StateUser
)

func (k StateKind) String() string {
	switch k {
	case StateEntry:
		return "entry"
	case StateWake:
		return "wake"
	case StateSleep:
		return "sleep"
	case StateUser:
		return "user"
	default:
		return "invalid"
	}
}

// TaskState is the tagged per-task state value. Frame is meaningful only
// for StateEntry and StateUser.
type TaskState struct {
	Kind  StateKind
	Frame hal.TrapFrame
}

var (
	// ErrMemoryExhausted reports that task storage is exhausted.
	ErrMemoryExhausted = errors.New("kernel: memory exhausted")
	// ErrBadState reports a sleep or wake call in a state that does not
	// permit the transition.
	ErrBadState = errors.New("kernel: state does not permit transition")
)

// stateCell is the mutex-guarded state shared between a Task and any
// outstanding Step observing it.
type stateCell struct {
	mu sync.Mutex
	id TaskID
	s  TaskState

	// parked: Sleep interrupted a User state; Wake restores the frame.
	parked      bool
	parkedFrame hal.TrapFrame
}

// contCell lets the switch routine advance a continuation without
// holding the task or registry locks across the call.
type contCell struct {
	mu sync.Mutex
	c  Continuation
}

// Task is one registered unit of scheduling.
type Task struct {
	id      TaskID
	pageCtx hal.PageCtx
	state   *stateCell
	cont    *contCell
}

// ID returns the task's identifier.
func (t *Task) ID() TaskID { return t.id }

// PageCtx returns the task's memory-mapping context.
func (t *Task) PageCtx() hal.PageCtx { return t.pageCtx }

// State returns a snapshot of the task's current state.
func (t *Task) State() TaskState {
	t.state.mu.Lock()
	defer t.state.mu.Unlock()
	return t.state.s
}

// Sleep blocks the task: Wake or User transitions to Sleep, with a User
// frame parked for restoration on Wake. Entry is refused, since a
// delivered trap must not be dropped. Sleep is meant for kernel services
// that hold the task reference (blocking I/O), never for the task's own
// continuation.
func (t *Task) Sleep() error {
	t.state.mu.Lock()
	defer t.state.mu.Unlock()

	switch t.state.s.Kind {
	case StateWake:
		t.state.parked = false
	case StateUser:
		t.state.parked = true
		t.state.parkedFrame = t.state.s.Frame
	default:
		return ErrBadState
	}
	t.state.s = TaskState{Kind: StateSleep}
	return nil
}

// Wake unblocks a sleeping task, restoring the parked user frame if
// Sleep interrupted one. Waking a task that is not asleep is reported,
// not fatal.
func (t *Task) Wake() error {
	t.state.mu.Lock()
	defer t.state.mu.Unlock()

	if t.state.s.Kind != StateSleep {
		return ErrBadState
	}
	if t.state.parked {
		t.state.parked = false
		t.state.s = TaskState{Kind: StateUser, Frame: t.state.parkedFrame}
	} else {
		t.state.s = TaskState{Kind: StateWake}
	}
	return nil
}
