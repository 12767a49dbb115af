package hal

// Syscall numbers understood by the console driver and the user machine.
const (
	SysWrite uint64 = 1
	SysYield uint64 = 2
)

// SysErr is the generic failure result of a syscall.
const SysErr = ^uint64(0)
