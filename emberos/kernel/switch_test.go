package kernel

import (
	"strings"
	"testing"

	"ember/hal"
)

func echoFactory(entry uint64) ContinuationFactory {
	return func(h *TaskHandle) Continuation {
		return NewLoop(h,
			func() hal.TrapFrame { return hal.NewTrapFrame(entry, 0) },
			func(f hal.TrapFrame) hal.TrapFrame { return f },
		)
	}
}

// recordingFactory is an echo continuation that records every frame a
// step delivered to it.
func recordingFactory(entry uint64, got *[]hal.TrapFrame) ContinuationFactory {
	return func(h *TaskHandle) Continuation {
		return NewLoop(h,
			func() hal.TrapFrame { return hal.NewTrapFrame(entry, 0) },
			func(f hal.TrapFrame) hal.TrapFrame {
				*got = append(*got, f)
				return f
			},
		)
	}
}

func mustRegister(t *testing.T, ts *Tasks, factory ContinuationFactory) *Task {
	t.Helper()
	task, err := ts.Register(hal.CurrentCtx(), factory)
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	return task
}

func expectFatal(t *testing.T, want string, fn func()) {
	t.Helper()
	defer func() {
		r := recover()
		if r == nil {
			t.Fatalf("expected fatal %q, got none", want)
		}
		msg, ok := r.(string)
		if !ok || !strings.Contains(msg, want) {
			t.Fatalf("expected fatal containing %q, got %v", want, r)
		}
	}()
	fn()
}

func TestEndToEndTwoEchoTasks(t *testing.T) {
	const (
		entryA = 0x1_0000_0000
		entryB = 0x1_0000_1000
	)
	ts := NewTasks()
	a := mustRegister(t, ts, echoFactory(entryA))
	b := mustRegister(t, ts, echoFactory(entryB))
	if a.ID() != 1 || b.ID() != 2 {
		t.Fatalf("expected ids 1 and 2, got %d and %d", a.ID(), b.ID())
	}

	ts.SetCurrent(a)

	// First pass: the ring starts after A, so B is driven first, then A,
	// then B's now-ready user frame terminates the pass.
	var frame hal.TrapFrame
	ts.Switch(&frame)
	if frame.Rip != entryB {
		t.Fatalf("expected first switch to resume B at %#x, got %#x", uint64(entryB), frame.Rip)
	}
	if s := a.State(); s.Kind != StateUser || s.Frame.Rip != entryA {
		t.Fatalf("expected A parked in user state at %#x, got %s at %#x", uint64(entryA), s.Kind, s.Frame.Rip)
	}
	if cur := ts.Current(); cur != b {
		t.Fatalf("expected B current after first switch, got task %d", cur.ID())
	}

	// Second pass: A already has a ready frame; direct resume, no driving.
	ts.Switch(&frame)
	if frame.Rip != entryA {
		t.Fatalf("expected second switch to resume A at %#x, got %#x", uint64(entryA), frame.Rip)
	}
	if cur := ts.Current(); cur != a {
		t.Fatalf("expected A current after second switch, got task %d", cur.ID())
	}
}

func TestRoundRobinFairness(t *testing.T) {
	entries := []uint64{0x1000, 0x2000, 0x3000}
	ts := NewTasks()
	for _, e := range entries {
		mustRegister(t, ts, echoFactory(e))
	}

	var got []uint64
	var frame hal.TrapFrame
	for i := 0; i < 6; i++ {
		ts.Switch(&frame)
		got = append(got, frame.Rip)
	}

	want := []uint64{0x1000, 0x2000, 0x3000, 0x1000, 0x2000, 0x3000}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("switch %d: expected resume at %#x, got %#x (full order %#x)", i, want[i], got[i], got)
		}
	}
}

func TestSleepExclusion(t *testing.T) {
	ts := NewTasks()
	mustRegister(t, ts, echoFactory(0x1000))
	b := mustRegister(t, ts, echoFactory(0x2000))
	mustRegister(t, ts, echoFactory(0x3000))

	var frame hal.TrapFrame
	ts.Switch(&frame)

	if err := b.Sleep(); err != nil {
		t.Fatalf("sleep: %v", err)
	}
	for i := 0; i < 6; i++ {
		ts.Switch(&frame)
		if frame.Rip == 0x2000 {
			t.Fatalf("switch %d resumed the sleeping task", i)
		}
	}

	if err := b.Wake(); err != nil {
		t.Fatalf("wake: %v", err)
	}
	seen := false
	for i := 0; i < 3; i++ {
		ts.Switch(&frame)
		if frame.Rip == 0x2000 {
			seen = true
		}
	}
	if !seen {
		t.Fatal("woken task was never resumed within a full cycle")
	}
}

func TestSyscallEntryDelivery(t *testing.T) {
	var delivered []hal.TrapFrame
	ts := NewTasks()
	a := mustRegister(t, ts, echoFactory(0x1000))
	mustRegister(t, ts, recordingFactory(0x2000, &delivered))

	ts.SetCurrent(a)
	var frame hal.TrapFrame
	ts.Switch(&frame) // resumes B; B is current in user mode

	syscall := frame
	syscall.SetSyscall(hal.SysYield, 11, 22, 33)
	want := syscall

	ts.DispatchSyscall(&syscall) // B -> Entry(want); pass resumes A
	if syscall.Rip != 0x1000 {
		t.Fatalf("expected dispatch to resume A at 0x1000, got %#x", syscall.Rip)
	}

	// Next pass drives B, whose step observes the delivered frame.
	ts.Switch(&syscall)
	if len(delivered) != 1 {
		t.Fatalf("expected exactly one delivered frame, got %d", len(delivered))
	}
	if delivered[0] != want {
		t.Fatalf("delivered frame differs from dispatched frame:\n got %+v\nwant %+v", delivered[0], want)
	}
}

func TestSaveOverwritesUserFrame(t *testing.T) {
	ts := NewTasks()
	a := mustRegister(t, ts, echoFactory(0x1000))
	mustRegister(t, ts, echoFactory(0x2000))
	ts.SetCurrent(a)

	var frame hal.TrapFrame
	ts.Switch(&frame) // resumes B

	frame.Rax = 99 // user mode mutated a register before the next trap
	ts.Switch(&frame)
	if frame.Rip != 0x1000 {
		t.Fatalf("expected A resumed, got rip %#x", frame.Rip)
	}

	ts.Switch(&frame) // back to B: must carry the saved mutation
	if frame.Rip != 0x2000 || frame.Rax != 99 {
		t.Fatalf("expected B resumed with saved rax=99, got rip %#x rax %d", frame.Rip, frame.Rax)
	}
}

func TestDispatchSyscallBadStateFatal(t *testing.T) {
	ts := NewTasks()
	a := mustRegister(t, ts, echoFactory(0x1000))
	ts.SetCurrent(a) // still Wake: no user excursion has happened

	var frame hal.TrapFrame
	expectFatal(t, "syscall arrived", func() {
		ts.DispatchSyscall(&frame)
	})
}

func TestDispatchSyscallWhileAsleepFatal(t *testing.T) {
	ts := NewTasks()
	a := mustRegister(t, ts, echoFactory(0x1000))
	ts.SetCurrent(a)
	if err := a.Sleep(); err != nil {
		t.Fatalf("sleep: %v", err)
	}

	var frame hal.TrapFrame
	expectFatal(t, "syscall arrived", func() {
		ts.DispatchSyscall(&frame)
	})
}

func TestNoRunnableTaskFatal(t *testing.T) {
	ts := NewTasks()
	a := mustRegister(t, ts, echoFactory(0x1000))
	if err := a.Sleep(); err != nil {
		t.Fatalf("sleep: %v", err)
	}

	var frame hal.TrapFrame
	expectFatal(t, "no runnable task", func() {
		ts.Switch(&frame)
	})
}

func TestFinishedContinuationFatal(t *testing.T) {
	ts := NewTasks()
	mustRegister(t, ts, func(h *TaskHandle) Continuation {
		return finished{}
	})

	var frame hal.TrapFrame
	expectFatal(t, "continuation finished", func() {
		ts.Switch(&frame)
	})
	if !InPanicMode() {
		t.Fatal("expected panic mode after fatal violation")
	}
}

type finished struct{}

func (finished) Advance() Poll { return Done }
