// Package panichandler implements the kernel's one unrecoverable-fault
// path: BlueScreen. Every invariant violation spec.md lists (invalid
// thread code, recursive lock acquisition, map bounds violation, unknown
// SVC number, unknown ESR class, and so on) funnels here with a fault
// class number and the faulting register state.
//
// Grounded on original_source/el3_gpio4_debug.c's BSOD macro (blink the
// fault class on GPIO4 before anything else, since the frame-buffer
// driver may itself be what crashed) and el3_bsod.c's show_vm_regs (the
// full system-register dump, rendered here through the external
// frame-buffer driver contract rather than the original's own
// trivial_display rasterizer, which is out of scope per spec §1/§7).
// Faulting-instruction decode uses golang.org/x/arch/arm64/arm64asm, the
// same dependency Oichkatzelesfrettschen-biscuit pulls in for kernel
// instruction-level diagnostics.
package panichandler

import (
	"encoding/binary"
	"unsafe"

	"golang.org/x/arch/arm64/arm64asm"

	"isambardos/internal/asm"
	"isambardos/internal/console"
)

// FrameBufferHandle is the contract BlueScreen uses to render a full
// diagnostic dump once the GPIO4 pattern has been attempted: an external,
// user-mode driver reachable through a map handle (spec §1's "out of
// scope" list), not something this package implements.
type FrameBufferHandle interface {
	ShowFault(class uint32, regs *FaultRegisters)
}

// FaultRegisters is everything BlueScreen has to work with: the general
// registers at the point of the fault, the faulting pc, and whichever
// classification value identifies why this is fatal (an ESR, an SVC
// number, or one of the fixed invariant-violation codes spec.md
// enumerates).
type FaultRegisters struct {
	Regs  [31]uint64
	PC    uint64
	Class uint32
}

// decodeFaultingInstruction reads the 4 bytes at pc and decodes them,
// returning a human-readable disassembly, or "?" if the read or decode
// fails (a stage-2 miss on the faulting address itself, an invalid
// encoding, etc. must never cascade into a second fault from inside the
// fault handler).
func decodeFaultingInstruction(pc uintptr) string {
	var raw [4]byte
	if !safeRead32(pc, &raw) {
		return "?"
	}
	inst, err := arm64asm.Decode(raw[:])
	if err != nil {
		return "?"
	}
	return inst.String()
}

// safeRead32 is a placeholder for whatever bounds-checked physical read
// the platform provides; on real hardware this never faults because
// BlueScreen only runs after the MMU state that mapped pc is already
// known good. Reading through a plain pointer here, rather than the
// thread's own memory map, avoids re-entering the capability/fault-
// handling machinery BlueScreen was invoked to report a failure in.
func safeRead32(pc uintptr, out *[4]byte) bool {
	if pc == 0 {
		return false
	}
	v := *(*uint32)(unsafe.Pointer(pc))
	binary.LittleEndian.PutUint32(out[:], v)
	return true
}

// BlueScreen halts the core after reporting fault on every available
// channel: GPIO4 first (cheapest, most likely to survive), the UART
// console next, then fb if the caller has one.
//
// BlueScreen never returns.
func BlueScreen(class uint32, regs [31]uint64, pc uintptr, fb FrameBufferHandle) {
	initGPIO4()
	blinkNumber(class)

	console.Puts("\r\n*** BLUESCREEN class=")
	console.PutUint32(class)
	console.Puts(" pc=0x")
	console.PutHex64(uint64(pc))
	console.Puts(" insn=")
	console.Puts(decodeFaultingInstruction(pc))
	console.Puts("\r\n")
	for i, r := range regs {
		console.Puts("  x")
		console.PutUint32(uint32(i))
		console.Puts("=0x")
		console.PutHex64(r)
		console.Puts("\r\n")
	}

	if fb != nil {
		fb.ShowFault(class, &FaultRegisters{Regs: regs, PC: uint64(pc), Class: class})
	}

	for {
		asm.WFI()
	}
}
