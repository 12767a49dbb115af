package kernel

import "ember/hal"

// Poll is the result of advancing a continuation one suspension point.
type Poll uint8

const (
	// Pending: the continuation suspended waiting for its next trap frame.
	// The switch routine moves on to the next ring member.
	Pending Poll = iota
	// Done: the continuation returned. Continuations are contractually
	// unending; the switch routine treats Done as fatal.
	Done
)

// Continuation is a task's kernel-side control logic: an unending state
// machine the switch routine advances one suspension point at a time.
// There is no wake notification; "not ready" simply moves the scheduler
// to the next ring member.
type Continuation interface {
	Advance() Poll
}

// TaskHandle is the capability a continuation uses to run one user-mode
// step of its task.
type TaskHandle struct {
	state *stateCell
}

// Step hands the frame to user mode and returns a Step observing the
// arrival of the resulting trap.
func (h *TaskHandle) Step(frame hal.TrapFrame) *Step {
	h.state.mu.Lock()
	h.state.s = TaskState{Kind: StateUser, Frame: frame}
	h.state.mu.Unlock()
	return &Step{state: h.state}
}

// Step is a single-use observation of one user-mode excursion: it
// reports whether a trap frame has arrived for the task.
type Step struct {
	state *stateCell
}

// Poll checks once whether a trap frame has arrived. It never blocks and
// never retries. A task observing itself asleep is a protocol violation:
// Sleep is set by collaborators outside the step protocol.
func (s *Step) Poll() (hal.TrapFrame, bool) {
	s.state.mu.Lock()
	defer s.state.mu.Unlock()

	switch s.state.s.Kind {
	case StateEntry:
		return s.state.s.Frame, true
	case StateWake, StateUser:
		return hal.TrapFrame{}, false
	default:
		fatalf(s.state.id, "step polled while task is asleep")
		panic("unreachable")
	}
}

// Loop packages the canonical continuation shape: enter user mode with a
// start frame, and on each delivered trap compute the next frame and
// step again. It never completes.
type Loop struct {
	handle *TaskHandle
	start  func() hal.TrapFrame
	resume func(hal.TrapFrame) hal.TrapFrame
	step   *Step
}

// NewLoop builds a Loop continuation from the task handle, the frame of
// the first user-mode excursion, and the trap handler producing each
// following frame.
func NewLoop(h *TaskHandle, start func() hal.TrapFrame, resume func(hal.TrapFrame) hal.TrapFrame) *Loop {
	return &Loop{handle: h, start: start, resume: resume}
}

// Advance drives the loop to its next step call.
func (l *Loop) Advance() Poll {
	if l.step == nil {
		l.step = l.handle.Step(l.start())
		return Pending
	}

	frame, ok := l.step.Poll()
	if !ok {
		return Pending
	}
	l.step = l.handle.Step(l.resume(frame))
	return Pending
}
