// Package echo provides the simplest kernel-side task logic: whatever
// trap frame user mode produced is loaded right back, untouched.
package echo

import (
	"ember/emberos/kernel"
	"ember/hal"
)

// Factory returns the continuation factory for an echo task entering
// user mode at entry with the given stack pointer.
func Factory(entry, sp uint64) kernel.ContinuationFactory {
	return func(h *kernel.TaskHandle) kernel.Continuation {
		return kernel.NewLoop(h,
			func() hal.TrapFrame { return hal.NewTrapFrame(entry, sp) },
			func(frame hal.TrapFrame) hal.TrapFrame { return frame },
		)
	}
}
