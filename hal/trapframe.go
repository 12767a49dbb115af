package hal

// User-mode segment selectors loaded into fresh trap frames.
const (
	SegUserCode uint16 = 0x1b
	SegUserData uint16 = 0x23
)

// rflags for user entry: IF set so traps can preempt, reserved bit 1 set.
const rflagsUser uint64 = 0x202

// TrapFrame is a snapshot of CPU register state captured on entry to the
// kernel from user mode, sufficient to resume execution where the trap
// occurred. It is a plain value; copying it copies the snapshot.
type TrapFrame struct {
	Rax uint64
	Rbx uint64
	Rcx uint64
	Rdx uint64
	Rsi uint64
	Rdi uint64
	Rbp uint64
	R8  uint64
	R9  uint64
	R10 uint64
	R11 uint64
	R12 uint64
	R13 uint64
	R14 uint64
	R15 uint64

	Rip    uint64
	Cs     uint64
	Rflags uint64
	Rsp    uint64
	Ss     uint64
}

// NewTrapFrame returns a frame that enters user mode at entry with the
// given stack pointer.
func NewTrapFrame(entry, sp uint64) TrapFrame {
	return TrapFrame{
		Rip:    entry,
		Rsp:    sp,
		Cs:     uint64(SegUserCode),
		Ss:     uint64(SegUserData),
		Rflags: rflagsUser,
	}
}

// Syscall ABI: number in rax, arguments in rdi/rsi/rdx, result in rax.

// SyscallNum returns the syscall number the frame carries.
func (f *TrapFrame) SyscallNum() uint64 { return f.Rax }

// SyscallArgs returns the three syscall argument registers.
func (f *TrapFrame) SyscallArgs() (a1, a2, a3 uint64) {
	return f.Rdi, f.Rsi, f.Rdx
}

// SetSyscall loads a syscall number and arguments into the frame.
func (f *TrapFrame) SetSyscall(num, a1, a2, a3 uint64) {
	f.Rax = num
	f.Rdi = a1
	f.Rsi = a2
	f.Rdx = a3
}

// SetReturn stores a syscall result into the frame.
func (f *TrapFrame) SetReturn(v uint64) { f.Rax = v }
