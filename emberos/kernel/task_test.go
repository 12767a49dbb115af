package kernel

import (
	"errors"
	"testing"

	"ember/hal"
)

func TestRegisterAssignsIncreasingIDs(t *testing.T) {
	ts := NewTasks()

	a := mustRegister(t, ts, echoFactory(0x1000))
	if a.ID() != 1 {
		t.Fatalf("expected first id 1, got %d", a.ID())
	}

	// A failed registration must leave no entry behind but still burns
	// its id.
	if _, err := ts.Register(hal.CurrentCtx(), func(h *TaskHandle) Continuation { return nil }); err == nil {
		t.Fatal("expected error from nil continuation factory")
	}
	if n := len(ts.Snapshot()); n != 1 {
		t.Fatalf("expected 1 registered task after failure, got %d", n)
	}

	b := mustRegister(t, ts, echoFactory(0x2000))
	if b.ID() != 3 {
		t.Fatalf("expected id 3 after failed registration, got %d", b.ID())
	}
}

func TestRegisterCapacity(t *testing.T) {
	ts := NewTasks()
	for i := 0; i < maxTasks; i++ {
		mustRegister(t, ts, echoFactory(uint64(0x1000*(i+1))))
	}

	_, err := ts.Register(hal.CurrentCtx(), echoFactory(0x9999_0000))
	if !errors.Is(err, ErrMemoryExhausted) {
		t.Fatalf("expected ErrMemoryExhausted, got %v", err)
	}
	if n := len(ts.Snapshot()); n != maxTasks {
		t.Fatalf("expected %d tasks, got %d", maxTasks, n)
	}
}

func TestSleepParksAndWakeRestoresUserFrame(t *testing.T) {
	ts := NewTasks()
	var handle *TaskHandle
	task := mustRegister(t, ts, func(h *TaskHandle) Continuation {
		handle = h
		return NewLoop(h,
			func() hal.TrapFrame { return hal.NewTrapFrame(0x1000, 0) },
			func(f hal.TrapFrame) hal.TrapFrame { return f },
		)
	})

	frame := hal.NewTrapFrame(0x1000, 0x8000)
	handle.Step(frame)

	if err := task.Sleep(); err != nil {
		t.Fatalf("sleep: %v", err)
	}
	if s := task.State(); s.Kind != StateSleep {
		t.Fatalf("expected sleep state, got %s", s.Kind)
	}

	if err := task.Wake(); err != nil {
		t.Fatalf("wake: %v", err)
	}
	s := task.State()
	if s.Kind != StateUser || s.Frame != frame {
		t.Fatalf("expected parked user frame restored, got %s at %#x", s.Kind, s.Frame.Rip)
	}
}

func TestSleepFromWakeAndBadTransitions(t *testing.T) {
	ts := NewTasks()
	task := mustRegister(t, ts, echoFactory(0x1000))

	if err := task.Wake(); !errors.Is(err, ErrBadState) {
		t.Fatalf("expected ErrBadState waking a runnable task, got %v", err)
	}

	if err := task.Sleep(); err != nil {
		t.Fatalf("sleep from wake: %v", err)
	}
	if err := task.Sleep(); !errors.Is(err, ErrBadState) {
		t.Fatalf("expected ErrBadState on double sleep, got %v", err)
	}
	if err := task.Wake(); err != nil {
		t.Fatalf("wake: %v", err)
	}
	if s := task.State(); s.Kind != StateWake {
		t.Fatalf("expected wake state with no parked frame, got %s", s.Kind)
	}
}

func TestSleepRefusedWithPendingEntry(t *testing.T) {
	ts := NewTasks()
	a := mustRegister(t, ts, echoFactory(0x1000))
	mustRegister(t, ts, echoFactory(0x2000))
	ts.SetCurrent(a)

	var frame hal.TrapFrame
	ts.Switch(&frame)         // B is current, in user mode
	ts.DispatchSyscall(&frame) // B -> Entry, A resumed

	if b := ts.Snapshot()[1]; b.State != StateEntry {
		t.Fatalf("expected B holding a pending entry, got %s", b.State)
	}

	// The delivered trap must not be dropped by a sleep request.
	target := findTask(ts, 2)
	if target == nil {
		t.Fatal("expected task 2 in the ring")
	}
	if err := target.Sleep(); !errors.Is(err, ErrBadState) {
		t.Fatalf("expected ErrBadState sleeping a task with pending entry, got %v", err)
	}
}

func findTask(ts *Tasks, id TaskID) *Task {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	for _, t := range ts.ring {
		if t.id == id {
			return t
		}
	}
	return nil
}

func TestSnapshotMarksCurrent(t *testing.T) {
	ts := NewTasks()
	a := mustRegister(t, ts, echoFactory(0x1000))
	mustRegister(t, ts, echoFactory(0x2000))
	ts.SetCurrent(a)

	infos := ts.Snapshot()
	if len(infos) != 2 {
		t.Fatalf("expected 2 tasks, got %d", len(infos))
	}
	if !infos[0].Current || infos[1].Current {
		t.Fatalf("expected only task %d current, got %+v", a.ID(), infos)
	}
	if infos[0].State != StateWake || infos[1].State != StateWake {
		t.Fatalf("expected fresh tasks in wake state, got %+v", infos)
	}
}
