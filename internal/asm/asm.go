//go:build aarch64

// Package asm declares the architecture primitives the kernel links against.
//
// Every function here is backed by hand-written AArch64 assembly that is not
// part of this Go source tree (the same split the teacher uses: its vector
// tables, atomics and register accessors live in a .s file alongside the .go
// sources that declare them via go:linkname). Nothing in this file has a Go
// body; it exists purely to give the rest of the kernel typed, nosplit-safe
// entry points into that assembly.
package asm

import "unsafe"

//go:linkname MMIOWrite mmio_write
//go:nosplit
func MMIOWrite(reg uintptr, val uint32)

//go:linkname MMIORead mmio_read
//go:nosplit
func MMIORead(reg uintptr) uint32

//go:linkname Delay delay
//go:nosplit
func Delay(count int32)

//go:linkname Bzero bzero
//go:nosplit
func Bzero(ptr unsafe.Pointer, size uintptr)

// Barriers and cache maintenance.

//go:linkname DSB dsb
//go:nosplit
func DSB()

//go:linkname DMB dmb
//go:nosplit
func DMB()

//go:linkname ISB isb
//go:nosplit
func ISB()

//go:linkname CleanDCacheVA clean_dcache_va
//go:nosplit
func CleanDCacheVA(addr uintptr)

//go:linkname InvalidateICacheAll invalidate_icache_all
//go:nosplit
func InvalidateICacheAll()

//go:linkname TLBIVMALLE1IS tlbi_vmalle1is
//go:nosplit
func TLBIVMALLE1IS()

//go:linkname TLBIVMALLS12E1IS tlbi_vmalls12e1is
//go:nosplit
func TLBIVMALLS12E1IS()

// Exclusive-access atomics backing the lock primitive, the interface
// table's free list and the heap's carve cursor, all of which are
// lock-free over LL/SC rather than spinlock-protected.

//go:linkname LDXR64 ldxr64
//go:nosplit
func LDXR64(addr *uint64) uint64

//go:linkname STXR64 stxr64
//go:nosplit
func STXR64(addr *uint64, val uint64) bool // true on success

//go:linkname LDXR32 ldxr32
//go:nosplit
func LDXR32(addr *uint32) uint32

//go:linkname STXR32 stxr32
//go:nosplit
func STXR32(addr *uint32, val uint32) bool // true on success

//go:linkname CLREX clrex
//go:nosplit
func CLREX()

// System register accessors used by the EL3 trampoline (vm_state) and the
// trap shell (ESR/FAR/HPFAR decoding).

//go:linkname ReadESREL1 read_esr_el1
//go:nosplit
func ReadESREL1() uint64

//go:linkname ReadESREL2 read_esr_el2
//go:nosplit
func ReadESREL2() uint64

//go:linkname ReadFAREL1 read_far_el1
//go:nosplit
func ReadFAREL1() uint64

//go:linkname ReadFAREL2 read_far_el2
//go:nosplit
func ReadFAREL2() uint64

//go:linkname ReadHPFAREL2 read_hpfar_el2
//go:nosplit
func ReadHPFAREL2() uint64

//go:linkname ReadELREL2 read_elr_el2
//go:nosplit
func ReadELREL2() uint64

//go:linkname WriteELREL2 write_elr_el2
//go:nosplit
func WriteELREL2(v uint64)

//go:linkname ReadSPSREL2 read_spsr_el2
//go:nosplit
func ReadSPSREL2() uint64

//go:linkname WriteSPSREL2 write_spsr_el2
//go:nosplit
func WriteSPSREL2(v uint64)

//go:linkname ReadSCREL3 read_scr_el3
//go:nosplit
func ReadSCREL3() uint64

//go:linkname WriteSCREL3 write_scr_el3
//go:nosplit
func WriteSCREL3(v uint64)

//go:linkname ReadHCREL2 read_hcr_el2
//go:nosplit
func ReadHCREL2() uint64

//go:linkname WriteHCREL2 write_hcr_el2
//go:nosplit
func WriteHCREL2(v uint64)

// Mode-switch primitives. SMC drops the current exception level into EL3
// with the given immediate; ERet resumes the context described by the
// already-loaded ELR_ELx/SPSR_ELx pair. WFI maps onto the gate primitive for
// the guest's trapped WFI/WFE.

//go:linkname SMC smc
//go:nosplit
func SMC(imm uint16)

//go:linkname ERet eret
//go:nosplit
func ERet()

//go:linkname WFI wfi
//go:nosplit
func WFI()

//go:linkname SetVBAREL1 set_vbar_el1
//go:nosplit
func SetVBAREL1(addr uintptr)

//go:linkname SetVBAREL2 set_vbar_el2
//go:nosplit
func SetVBAREL2(addr uintptr)

//go:linkname SetVBAREL3 set_vbar_el3
//go:nosplit
func SetVBAREL3(addr uintptr)

//go:linkname CurrentEL current_el
//go:nosplit
func CurrentEL() uint32

// TranslateS1E0W runs "AT S1E0W" for va and reads back PAR_EL1: the
// quickest way for EL1 to resolve one of its EL0 threads' virtual
// addresses to a physical one without walking the stage-1 tables itself.
// ok is false when PAR_EL1.F (bit 0) reports the translation failed.
//
//go:linkname TranslateS1E0W translate_s1e0w
//go:nosplit
func TranslateS1E0W(va uintptr) (pa uint64, ok bool)

// The remaining system-register pairs a vm_state snapshot needs to save and
// restore across a secure/non-secure world switch, named one accessor per
// register the same way the original's SAVE_SYSTEM_REGISTER_PAIR /
// LOAD_SYSTEM_REGISTER_PAIR macros enumerate them (original_source's
// el3_virtual_machines.c, vm_state.h). hcr_el2 already has accessors above.

//go:linkname ReadMAIREL1 read_mair_el1
//go:nosplit
func ReadMAIREL1() uint64

//go:linkname WriteMAIREL1 write_mair_el1
//go:nosplit
func WriteMAIREL1(v uint64)

//go:linkname ReadSCTLREL1 read_sctlr_el1
//go:nosplit
func ReadSCTLREL1() uint64

//go:linkname WriteSCTLREL1 write_sctlr_el1
//go:nosplit
func WriteSCTLREL1(v uint64)

//go:linkname ReadTCREL1 read_tcr_el1
//go:nosplit
func ReadTCREL1() uint64

//go:linkname WriteTCREL1 write_tcr_el1
//go:nosplit
func WriteTCREL1(v uint64)

//go:linkname ReadTTBR0EL1 read_ttbr0_el1
//go:nosplit
func ReadTTBR0EL1() uint64

//go:linkname WriteTTBR0EL1 write_ttbr0_el1
//go:nosplit
func WriteTTBR0EL1(v uint64)

//go:linkname ReadTTBR1EL1 read_ttbr1_el1
//go:nosplit
func ReadTTBR1EL1() uint64

//go:linkname WriteTTBR1EL1 write_ttbr1_el1
//go:nosplit
func WriteTTBR1EL1(v uint64)

//go:linkname ReadVBAREL1 read_vbar_el1
//go:nosplit
func ReadVBAREL1() uint64

//go:linkname WriteVBAREL1Reg write_vbar_el1_reg
//go:nosplit
func WriteVBAREL1Reg(v uint64)

//go:linkname ReadACTLREL1 read_actlr_el1
//go:nosplit
func ReadACTLREL1() uint64

//go:linkname WriteACTLREL1 write_actlr_el1
//go:nosplit
func WriteACTLREL1(v uint64)

//go:linkname ReadFPEXC32EL2 read_fpexc32_el2
//go:nosplit
func ReadFPEXC32EL2() uint64

//go:linkname WriteFPEXC32EL2 write_fpexc32_el2
//go:nosplit
func WriteFPEXC32EL2(v uint64)

//go:linkname ReadVTTBREL2 read_vttbr_el2
//go:nosplit
func ReadVTTBREL2() uint64

//go:linkname WriteVTTBREL2 write_vttbr_el2
//go:nosplit
func WriteVTTBREL2(v uint64)

//go:linkname ReadHSTREL2 read_hstr_el2
//go:nosplit
func ReadHSTREL2() uint64

//go:linkname WriteHSTREL2 write_hstr_el2
//go:nosplit
func WriteHSTREL2(v uint64)

//go:linkname ReadVMPIDREL2 read_vmpidr_el2
//go:nosplit
func ReadVMPIDREL2() uint64

//go:linkname WriteVMPIDREL2 write_vmpidr_el2
//go:nosplit
func WriteVMPIDREL2(v uint64)

//go:linkname ReadVPIDREL2 read_vpidr_el2
//go:nosplit
func ReadVPIDREL2() uint64

//go:linkname WriteVPIDREL2 write_vpidr_el2
//go:nosplit
func WriteVPIDREL2(v uint64)

//go:linkname ReadVTCREL2 read_vtcr_el2
//go:nosplit
func ReadVTCREL2() uint64

//go:linkname WriteVTCREL2 write_vtcr_el2
//go:nosplit
func WriteVTCREL2(v uint64)

//go:linkname ReadDACR32EL2 read_dacr32_el2
//go:nosplit
func ReadDACR32EL2() uint64

//go:linkname WriteDACR32EL2 write_dacr32_el2
//go:nosplit
func WriteDACR32EL2(v uint64)

//go:linkname ReadCONTEXTIDREL1 read_contextidr_el1
//go:nosplit
func ReadCONTEXTIDREL1() uint64

//go:linkname WriteCONTEXTIDREL1 write_contextidr_el1
//go:nosplit
func WriteCONTEXTIDREL1(v uint64)
