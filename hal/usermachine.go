package hal

import "fmt"

// insnStride is the synthetic size of one user instruction; the
// instruction pointer advances by it per executed syscall.
const insnStride = 16

// SyscallInsn is one instruction of a synthetic user program: raise this
// syscall with these arguments.
type SyscallInsn struct {
	Num uint64
	A1  uint64
	A2  uint64
	A3  uint64
}

// UserMachine is the host-side stand-in for the assembly trampoline that
// enters and leaves user mode. Given a resume frame it "executes" the
// user program at the frame's instruction pointer until the program
// raises a syscall, then reports the captured trap frame.
//
// Programs are flat syscall streams keyed by entry address and repeat
// forever, like the unending user loops they stand in for.
type UserMachine struct {
	progs map[uint64][]SyscallInsn
	data  map[uint64][]byte
}

// NewUserMachine returns a machine with no programs loaded.
func NewUserMachine() *UserMachine {
	return &UserMachine{
		progs: make(map[uint64][]SyscallInsn),
		data:  make(map[uint64][]byte),
	}
}

// Load installs the instruction stream for a program entry point.
func (m *UserMachine) Load(entry uint64, insns []SyscallInsn) error {
	if len(insns) == 0 {
		return fmt.Errorf("load program at %#x: empty instruction stream", entry)
	}
	if entry%insnStride != 0 {
		return fmt.Errorf("load program at %#x: entry not %d-byte aligned", entry, insnStride)
	}
	if _, ok := m.progs[entry]; ok {
		return fmt.Errorf("load program at %#x: entry already in use", entry)
	}
	m.progs[entry] = insns
	return nil
}

// Bind places bytes into simulated user memory at addr.
func (m *UserMachine) Bind(addr uint64, data []byte) {
	m.data[addr] = data
}

// ReadUser copies n bytes of user memory starting at addr.
func (m *UserMachine) ReadUser(addr, n uint64) ([]byte, error) {
	for base, region := range m.data {
		if addr >= base && addr+n <= base+uint64(len(region)) {
			out := make([]byte, n)
			copy(out, region[addr-base:])
			return out, nil
		}
	}
	return nil, fmt.Errorf("user read of %d bytes at %#x: unmapped", n, addr)
}

// Resume executes user code from frame until its next trap and returns
// the trap frame the syscall entry path would capture: the syscall
// registers are loaded and the instruction pointer points at the
// instruction after the trapping one.
func (m *UserMachine) Resume(frame TrapFrame) (TrapFrame, error) {
	entry, insns, err := m.findProgram(frame.Rip)
	if err != nil {
		return TrapFrame{}, err
	}

	off := frame.Rip - entry
	if off%insnStride != 0 {
		return TrapFrame{}, fmt.Errorf("resume at %#x: misaligned into program at %#x", frame.Rip, entry)
	}
	insn := insns[off/insnStride]

	trap := frame
	trap.SetSyscall(insn.Num, insn.A1, insn.A2, insn.A3)
	trap.Rip = frame.Rip + insnStride
	if trap.Rip >= entry+uint64(len(insns))*insnStride {
		trap.Rip = entry
	}
	return trap, nil
}

func (m *UserMachine) findProgram(rip uint64) (uint64, []SyscallInsn, error) {
	for entry, insns := range m.progs {
		if rip >= entry && rip < entry+uint64(len(insns))*insnStride {
			return entry, insns, nil
		}
	}
	return 0, nil, fmt.Errorf("resume at %#x: no user program mapped", rip)
}
