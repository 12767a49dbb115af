package boot

import (
	"errors"
	"fmt"
	"io"

	"ember/emberos/kernel"
	"ember/emberos/tasks/console"
	"ember/emberos/tasks/echo"
	"ember/hal"
)

// Start constructs the registry, registers one task per program, and
// performs the first switch. The returned frame is the user state the
// caller's resume path should load; every later trap goes through the
// registry's Switch and DispatchSyscall.
func Start(plan Plan, mem console.Memory, out io.Writer) (*kernel.Tasks, hal.TrapFrame, error) {
	if len(plan.Programs) == 0 {
		return nil, hal.TrapFrame{}, errors.New("boot: plan has no programs")
	}

	ts := kernel.NewTasks()
	var first *kernel.Task
	for _, prog := range plan.Programs {
		var factory kernel.ContinuationFactory
		switch prog.Kind {
		case KindEcho:
			factory = echo.Factory(prog.Entry, prog.Stack)
		case KindConsole:
			factory = console.Factory(prog.Entry, prog.Stack, mem, out)
		default:
			return nil, hal.TrapFrame{}, fmt.Errorf("boot: program %s: unknown kind %q", prog.Name, prog.Kind)
		}

		t, err := ts.Register(hal.CurrentCtx(), factory)
		if err != nil {
			return nil, hal.TrapFrame{}, fmt.Errorf("boot: register %s: %w", prog.Name, err)
		}
		if first == nil {
			first = t
		}
	}

	ts.SetCurrent(first)

	var frame hal.TrapFrame
	ts.Switch(&frame)
	return ts, frame, nil
}
