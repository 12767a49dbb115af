package kernel

import (
	"fmt"
	"sync"
	"sync/atomic"
)

// PanicInfo describes a fatal scheduler invariant violation.
type PanicInfo struct {
	Task  TaskID
	Msg   string
	Stack []byte
}

var (
	panicActive atomic.Bool
	panicOnce   sync.Once

	panicHandler atomic.Value // func(PanicInfo)
)

// InPanicMode reports whether a fatal violation has been recorded.
func InPanicMode() bool {
	return panicActive.Load()
}

// SetPanicHandler installs a process-wide handler for fatal violations.
//
// The handler is invoked at most once (on the first violation). It must
// not panic.
func SetPanicHandler(fn func(PanicInfo)) {
	panicHandler.Store(fn)
}

// fatalf records panic mode with a diagnostic and aborts. The violations
// routed here mean the scheduler can no longer trust its own state;
// callers never return from it.
func fatalf(id TaskID, format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	panicOnce.Do(func() {
		panicActive.Store(true)
		info := PanicInfo{Task: id, Msg: msg, Stack: captureStack()}
		if v := panicHandler.Load(); v != nil {
			if fn, ok := v.(func(PanicInfo)); ok && fn != nil {
				fn(info)
			}
		}
	})
	panic("kernel: " + msg)
}
