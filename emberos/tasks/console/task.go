// Package console runs a user program whose syscalls are interpreted as
// console operations: write copies bytes out of user memory to the
// kernel console, yield is a plain reschedule.
package console

import (
	"io"

	"ember/emberos/kernel"
	"ember/hal"
)

// Memory reads simulated or real user memory on behalf of the kernel.
type Memory interface {
	ReadUser(addr, n uint64) ([]byte, error)
}

// Factory returns the continuation factory for a console task entering
// user mode at entry. Trap frames delivered by each step are interpreted
// against the syscall ABI; the result lands in the return register of
// the frame loaded on the way back.
func Factory(entry, sp uint64, mem Memory, out io.Writer) kernel.ContinuationFactory {
	return func(h *kernel.TaskHandle) kernel.Continuation {
		return kernel.NewLoop(h,
			func() hal.TrapFrame { return hal.NewTrapFrame(entry, sp) },
			func(frame hal.TrapFrame) hal.TrapFrame {
				frame.SetReturn(handle(&frame, mem, out))
				return frame
			},
		)
	}
}

func handle(frame *hal.TrapFrame, mem Memory, out io.Writer) uint64 {
	switch frame.SyscallNum() {
	case hal.SysWrite:
		addr, n, _ := frame.SyscallArgs()
		data, err := mem.ReadUser(addr, n)
		if err != nil {
			return hal.SysErr
		}
		if out != nil {
			if _, err := out.Write(data); err != nil {
				return hal.SysErr
			}
		}
		return uint64(len(data))
	case hal.SysYield:
		return 0
	default:
		return hal.SysErr
	}
}
