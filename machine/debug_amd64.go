package machine

import (
	"fmt"

	"golang.org/x/arch/x86/x86asm"
)

// Inst retrieves the instruction the guest is about to execute. It
// returns the decoded instruction, its guest physical address, and a
// GNU-syntax rendering. With paging disabled, CS base plus RIP is the
// physical address.
func (m *Machine) Inst() (*x86asm.Inst, uint64, string, error) {
	r, err := m.GetRegs()
	if err != nil {
		return nil, 0, "", fmt.Errorf("Inst:GetRegs: %w", err)
	}

	s, err := m.GetSregs()
	if err != nil {
		return nil, 0, "", fmt.Errorf("Inst:GetSregs: %w", err)
	}

	pc := s.CS.Base + r.RIP

	insn := make([]byte, 16)
	if _, err := m.mem.ReadAt(insn, int64(pc)); err != nil {
		return nil, 0, "", fmt.Errorf("reading pc %#x: %w", pc, err)
	}

	d, err := x86asm.Decode(insn, m.decodeMode)
	if err != nil {
		return nil, 0, "", fmt.Errorf("decoding %#02x: %w", insn, err)
	}

	return &d, pc, x86asm.GNUSyntax(d, pc, nil), nil
}

// exitContext renders the faulting instruction and register file for an
// unexpected-exit diagnostic. Best effort: a vCPU in a state broken
// enough to exit unexpectedly may not be readable at all.
func (m *Machine) exitContext() string {
	_, pc, asm, err := m.Inst()
	if err != nil {
		return ""
	}

	r, err := m.GetRegs()
	if err != nil {
		return fmt.Sprintf(" at %#x: %s", pc, asm)
	}

	return fmt.Sprintf(" at %#x: %s (eax=%#x ebx=%#x ecx=%#x edx=%#x esp=%#x)",
		pc, asm, r.RAX, r.RBX, r.RCX, r.RDX, r.RSP)
}
