package kernel

import (
	"fmt"
	"sync"

	"ember/hal"
)

// maxTasks bounds task storage. Registration beyond it fails with
// ErrMemoryExhausted rather than aborting.
const maxTasks = 32

// ContinuationFactory builds a task's kernel-side control logic around
// the handle bound to its state cell.
type ContinuationFactory func(*TaskHandle) Continuation

// Tasks is the task registry: the scheduling ring plus the currently
// running task. It is constructed by the boot driver and passed
// explicitly into the trap path; there is no package-level instance.
type Tasks struct {
	mu sync.Mutex

	// ring holds tasks in ascending id order. IDs only grow, so append
	// preserves the order; the round-robin walk wraps over the slice.
	ring    []*Task
	current *Task
	nextID  TaskID
}

// NewTasks returns an empty registry.
func NewTasks() *Tasks {
	return &Tasks{nextID: 1}
}

// Register creates a task: a fresh id, a state cell initialized to Wake,
// and the continuation the factory builds around the handle bound to
// that cell. On error no entry is left behind, but the id is still
// consumed; ids are never reused.
func (ts *Tasks) Register(pageCtx hal.PageCtx, factory ContinuationFactory) (*Task, error) {
	ts.mu.Lock()
	defer ts.mu.Unlock()

	id := ts.nextID
	ts.nextID++

	if len(ts.ring) >= maxTasks {
		return nil, fmt.Errorf("register task %d: %w", id, ErrMemoryExhausted)
	}

	cell := &stateCell{id: id, s: TaskState{Kind: StateWake}}
	cont := factory(&TaskHandle{state: cell})
	if cont == nil {
		return nil, fmt.Errorf("register task %d: factory returned no continuation", id)
	}

	t := &Task{
		id:      id,
		pageCtx: pageCtx,
		state:   cell,
		cont:    &contCell{c: cont},
	}
	ts.ring = append(ts.ring, t)
	return t, nil
}

// SetCurrent installs the task the first switch should treat as
// previously running. Boot calls it once before the initial switch.
func (ts *Tasks) SetCurrent(t *Task) {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	ts.current = t
}

// Current returns the currently running task, or nil before first
// dispatch.
func (ts *Tasks) Current() *Task {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	return ts.current
}

// TaskInfo is a point-in-time view of one task for host tooling.
type TaskInfo struct {
	ID      TaskID
	State   StateKind
	Current bool
}

// Snapshot returns a view of the ring in scheduling order.
func (ts *Tasks) Snapshot() []TaskInfo {
	ts.mu.Lock()
	defer ts.mu.Unlock()

	out := make([]TaskInfo, 0, len(ts.ring))
	for _, t := range ts.ring {
		out = append(out, TaskInfo{
			ID:      t.id,
			State:   t.State().Kind,
			Current: t == ts.current,
		})
	}
	return out
}
