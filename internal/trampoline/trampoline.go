// Package trampoline implements the EL3 secure/non-secure world switch: the
// SCR_EL3 toggle and the vm_state save/restore that lets a core swap
// between a secure partner thread and its non-secure counterpart.
//
// Grounded directly on original_source/el3_virtual_machines.c's
// AARCH64_VECTOR_TABLE_NEVER_SP0_CODE (the SCR_EL3 ^= 0x007 FIQ/IRQ/NS
// toggle, gated by the resulting NS bit to pick which vm_state to load) and
// include/vm_state.h (the exact field order SAVE_SYSTEM_REGISTER_PAIR and
// LOAD_SYSTEM_REGISTER_PAIR walk in lockstep — order matters only for that
// macro pairing in the original; here it's just struct field order, kept
// identical for the grounding to stay legible).
package trampoline

import "isambardos/internal/asm"

// SecurityState names which side of a partner-thread pair is about to run.
type SecurityState int

const (
	Secure SecurityState = iota
	NonSecure
)

// scrToggleBits is the original's "FIQ, IRQ, NS" triple: bits 0-2 of
// SCR_EL3, flipped on every world switch.
const scrToggleBits uint64 = 0x007

// VMState is a snapshot of the EL1/EL2 system registers that differ between
// a secure partner thread and its non-secure counterpart — the fields
// vm_state.h lists, in the same order.
type VMState struct {
	MAIREL1  uint64
	SCTLREL1 uint64

	TCREL1   uint64
	TTBR0EL1 uint64

	TTBR1EL1 uint64
	VBAREL1  uint64

	ACTLREL1   uint64
	FPEXC32EL2 uint64

	ESREL1 uint64
	FAREL1 uint64

	VTTBREL2 uint64
	HCREL2   uint64

	HSTREL2   uint64
	VMPIDREL2 uint64

	VPIDREL2 uint64
	VTCREL2  uint64

	DACR32EL2     uint64
	CONTEXTIDREL1 uint64
}

// Save captures the current system registers into s, for whichever side is
// about to stop running.
func Save(s *VMState) {
	s.MAIREL1 = asm.ReadMAIREL1()
	s.SCTLREL1 = asm.ReadSCTLREL1()
	s.TCREL1 = asm.ReadTCREL1()
	s.TTBR0EL1 = asm.ReadTTBR0EL1()
	s.TTBR1EL1 = asm.ReadTTBR1EL1()
	s.VBAREL1 = asm.ReadVBAREL1()
	s.ACTLREL1 = asm.ReadACTLREL1()
	s.FPEXC32EL2 = asm.ReadFPEXC32EL2()
	s.ESREL1 = asm.ReadESREL1()
	s.FAREL1 = asm.ReadFAREL1()
	s.VTTBREL2 = asm.ReadVTTBREL2()
	s.HCREL2 = asm.ReadHCREL2()
	s.HSTREL2 = asm.ReadHSTREL2()
	s.VMPIDREL2 = asm.ReadVMPIDREL2()
	s.VPIDREL2 = asm.ReadVPIDREL2()
	s.VTCREL2 = asm.ReadVTCREL2()
	s.DACR32EL2 = asm.ReadDACR32EL2()
	s.CONTEXTIDREL1 = asm.ReadCONTEXTIDREL1()
}

// Load restores s into the system registers, for the side about to run.
func Load(s *VMState) {
	asm.WriteMAIREL1(s.MAIREL1)
	asm.WriteSCTLREL1(s.SCTLREL1)
	asm.WriteTCREL1(s.TCREL1)
	asm.WriteTTBR0EL1(s.TTBR0EL1)
	asm.WriteTTBR1EL1(s.TTBR1EL1)
	asm.WriteVBAREL1Reg(s.VBAREL1)
	asm.WriteACTLREL1(s.ACTLREL1)
	asm.WriteFPEXC32EL2(s.FPEXC32EL2)
	_ = s.ESREL1 // esr_el1/far_el1 are not written back; the hardware
	_ = s.FAREL1 // repopulates them on the next trap.
	asm.WriteVTTBREL2(s.VTTBREL2)
	asm.WriteHCREL2(s.HCREL2)
	asm.WriteHSTREL2(s.HSTREL2)
	asm.WriteVMPIDREL2(s.VMPIDREL2)
	asm.WriteVPIDREL2(s.VPIDREL2)
	asm.WriteVTCREL2(s.VTCREL2)
	asm.WriteDACR32EL2(s.DACR32EL2)
	asm.WriteCONTEXTIDREL1(s.CONTEXTIDREL1)
}

// Toggle flips SCR_EL3's FIQ/IRQ/NS bits, switches the active vm_state by
// saving `from` and loading `to`, and reports which security state is now
// running — the NS bit after the flip, exactly as the original's
// `tbz x3, #0, switch_to_secure` branch reads it back to decide which
// vm_state to load next.
func Toggle(from, to *VMState) SecurityState {
	Save(from)
	scr := asm.ReadSCREL3()
	scr ^= scrToggleBits
	asm.WriteSCREL3(scr)
	Load(to)
	if scr&0x1 != 0 { // NS bit (bit 0)
		return NonSecure
	}
	return Secure
}
