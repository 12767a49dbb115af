package kernel

import (
	"sort"

	"ember/hal"
)

// workItem is what the selected task needs this quantum: kernel work
// (cont non-nil) or a ready user frame to resume directly.
type workItem struct {
	id    TaskID
	cont  *contCell
	frame hal.TrapFrame
}

// Switch is the scheduler entry point for the generic interrupt-return
// path. It saves the outgoing user state, then walks the ring from just
// after the previous task, advancing continuations until some task has a
// user frame ready. That frame replaces *frame; the caller resumes it.
//
// Lock order is registry before per-task state, and neither is held
// across a continuation call.
func (ts *Tasks) Switch(frame *hal.TrapFrame) {
	prev := ts.saveCurrent(frame)

	for {
		item := ts.findNext(prev)
		if item.cont == nil {
			*frame = item.frame
			return
		}

		item.cont.mu.Lock()
		res := item.cont.c.Advance()
		item.cont.mu.Unlock()
		if res == Done {
			fatalf(item.id, "continuation finished")
		}

		// Not ready: the task suspended again. Resume the scan after it.
		prev = item.id
	}
}

// DispatchSyscall is the trap-vector entry point for explicit syscalls.
// The current task must be in user mode; its state becomes Entry(frame)
// and control moves to Switch, which overwrites the frame before return.
func (ts *Tasks) DispatchSyscall(frame *hal.TrapFrame) {
	ts.mu.Lock()
	cur := ts.current
	if cur == nil {
		ts.mu.Unlock()
		fatalf(NoTask, "syscall arrived with no current task")
	}

	cur.state.mu.Lock()
	prevKind := cur.state.s.Kind
	cur.state.s = TaskState{Kind: StateEntry, Frame: *frame}
	cur.state.mu.Unlock()
	ts.mu.Unlock()

	if prevKind != StateUser {
		fatalf(cur.id, "syscall arrived while task state is %s", prevKind)
	}

	ts.Switch(frame)
}

// saveCurrent makes the incoming frame authoritative for the current
// task when it was in user mode, and reports its id (NoTask when none).
func (ts *Tasks) saveCurrent(frame *hal.TrapFrame) TaskID {
	ts.mu.Lock()
	defer ts.mu.Unlock()

	cur := ts.current
	if cur == nil {
		return NoTask
	}

	cur.state.mu.Lock()
	if cur.state.s.Kind == StateUser {
		cur.state.s.Frame = *frame
	}
	cur.state.mu.Unlock()
	return cur.id
}

// findNext selects the next task after prev in ring order: ids strictly
// greater than prev first, then wrapping to the smallest ids. Sleeping
// tasks are invisible. The previous task itself is tried last, once the
// whole ring has been covered.
func (ts *Tasks) findNext(prev TaskID) workItem {
	ts.mu.Lock()
	defer ts.mu.Unlock()

	n := len(ts.ring)
	start := sort.Search(n, func(i int) bool { return ts.ring[i].id > prev })

	for i := 0; i < n; i++ {
		t := ts.ring[(start+i)%n]

		t.state.mu.Lock()
		s := t.state.s
		t.state.mu.Unlock()

		switch s.Kind {
		case StateSleep:
			continue
		case StateEntry, StateWake:
			ts.current = t
			return workItem{id: t.id, cont: t.cont}
		case StateUser:
			ts.current = t
			return workItem{id: t.id, frame: s.Frame}
		}
	}

	fatalf(prev, "no runnable task in the ring")
	panic("unreachable")
}
