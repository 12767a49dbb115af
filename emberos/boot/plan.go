// Package boot seeds the task registry from a boot plan and performs
// the first switch, producing the frame the hardware resume path loads.
package boot

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"ember/hal"
)

// Program kinds understood by the boot driver.
const (
	KindEcho    = "echo"
	KindConsole = "console"
)

// Plan describes the initial task set.
type Plan struct {
	Programs []Program `yaml:"programs"`
}

// Program is one boot-time task: its kernel-side driver kind, its
// user-mode entry point, and the synthetic syscall stream the host
// user machine executes for it.
type Program struct {
	Name  string `yaml:"name"`
	Kind  string `yaml:"kind"`
	Entry uint64 `yaml:"entry"`
	Stack uint64 `yaml:"stack"`
	Steps []Step `yaml:"steps,omitempty"`
}

// Step is one instruction of a program's syscall stream.
type Step struct {
	Sys  string `yaml:"sys"`            // write | yield
	Text string `yaml:"text,omitempty"` // payload for write
}

// DefaultPlan mirrors the original seed: two echo tasks that bounce
// between user mode and the kernel forever.
func DefaultPlan() Plan {
	return Plan{Programs: []Program{
		{Name: "init", Kind: KindEcho, Entry: 0x1_0000_0000, Steps: []Step{{Sys: "yield"}}},
		{Name: "second", Kind: KindEcho, Entry: 0x1_0000_1000, Steps: []Step{{Sys: "yield"}}},
	}}
}

// LoadPlan reads a yaml boot plan from disk.
func LoadPlan(path string) (Plan, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Plan{}, fmt.Errorf("read boot plan: %w", err)
	}
	var p Plan
	if err := yaml.Unmarshal(raw, &p); err != nil {
		return Plan{}, fmt.Errorf("parse boot plan %q: %w", path, err)
	}
	if err := p.validate(); err != nil {
		return Plan{}, fmt.Errorf("boot plan %q: %w", path, err)
	}
	return p, nil
}

func (p Plan) validate() error {
	if len(p.Programs) == 0 {
		return fmt.Errorf("no programs")
	}
	seen := make(map[uint64]string, len(p.Programs))
	for _, prog := range p.Programs {
		if prog.Name == "" {
			return fmt.Errorf("program with empty name")
		}
		switch prog.Kind {
		case KindEcho, KindConsole:
		default:
			return fmt.Errorf("program %s: unknown kind %q", prog.Name, prog.Kind)
		}
		if prog.Entry == 0 {
			return fmt.Errorf("program %s: entry must be nonzero", prog.Name)
		}
		if other, dup := seen[prog.Entry]; dup {
			return fmt.Errorf("program %s: entry %#x already used by %s", prog.Name, prog.Entry, other)
		}
		seen[prog.Entry] = prog.Name
		if len(prog.Steps) == 0 {
			return fmt.Errorf("program %s: no steps", prog.Name)
		}
		for i, s := range prog.Steps {
			switch s.Sys {
			case "write":
				if s.Text == "" {
					return fmt.Errorf("program %s step %d: write without text", prog.Name, i)
				}
			case "yield":
			default:
				return fmt.Errorf("program %s step %d: unknown syscall %q", prog.Name, i, s.Sys)
			}
		}
	}
	return nil
}

// dataBase is where write payload bytes are bound in simulated user
// memory, well away from program text.
const dataBase uint64 = 0x2000_0000

// InstallPrograms loads every program's syscall stream into the user
// machine, binding write payloads into simulated user memory.
func InstallPrograms(m *hal.UserMachine, plan Plan) error {
	next := dataBase
	for _, prog := range plan.Programs {
		insns := make([]hal.SyscallInsn, 0, len(prog.Steps))
		for _, s := range prog.Steps {
			switch s.Sys {
			case "write":
				payload := []byte(s.Text)
				m.Bind(next, payload)
				insns = append(insns, hal.SyscallInsn{Num: hal.SysWrite, A1: next, A2: uint64(len(payload))})
				next += uint64(len(payload)) + 0x100
			case "yield":
				insns = append(insns, hal.SyscallInsn{Num: hal.SysYield})
			default:
				return fmt.Errorf("program %s: unknown syscall %q", prog.Name, s.Sys)
			}
		}
		if err := m.Load(prog.Entry, insns); err != nil {
			return fmt.Errorf("program %s: %w", prog.Name, err)
		}
	}
	return nil
}
