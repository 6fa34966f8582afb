// Package vectors describes the exception vector table layout required at
// EL1, EL2 and EL3: 16 entries of 128 bytes each, 2 KB-aligned, indexed by
// {current-EL-SP0, current-EL-SPx, lower-AArch64, lower-AArch32} × {sync,
// IRQ, FIQ, SError}.
//
// The entries themselves are assembly veneers — a handful of instructions
// that save enough register state to call into Go and restore it on
// return — matching the teacher's split where exceptions.go declares
// set_vbar_el1/read_esr_el1/etc. via go:linkname against a vector table
// that lives in hand-written assembly, not Go source. What belongs here in
// Go is the layout contract (so Offset/EntrySize are the single
// source of truth the loader and the assembly agree on) and the per-class
// naming, grounded on original_source's AARCH64_VECTOR_TABLE_* macro names
// (NEVER_SP0, SPX_SYNC, LOWER_AARCH64_SYNC, and so on) and the "unreachable
// entries are a blue screen trap" contract.
package vectors

import (
	"unsafe"

	"isambardos/internal/asm"
)

// EntrySize is one vector table entry's size in bytes; an entry that needs
// more than this branches out to a handler rather than inlining one.
const EntrySize = 128

// EntryCount is the number of entries in one exception level's table.
const EntryCount = 16

// TableAlign is the full table's size (EntryCount × EntrySize); VBAR_ELn
// must be aligned to this.
const TableAlign = 2048

// Class identifies which of the four SP/width groups an entry belongs to.
type Class int

const (
	CurrentELSP0 Class = iota
	CurrentELSPx
	LowerAArch64
	LowerAArch32
)

// Kind identifies which of the four exception kinds within a Class an
// entry handles.
type Kind int

const (
	Sync Kind = iota
	IRQ
	FIQ
	SError
)

// Index computes an entry's position in the 16-entry table: class-major,
// kind-minor, matching the AArch64 architectural vector table layout.
func Index(c Class, k Kind) int {
	return int(c)*4 + int(k)
}

// Offset returns the byte offset of the entry (c, k) within the table.
func Offset(c Class, k Kind) uintptr {
	return uintptr(Index(c, k)) * EntrySize
}

// Level identifies which exception level's VBAR a table is installed
// against.
type Level int

const (
	EL1 Level = iota
	EL2
	EL3
)

// Name renders an entry the way original_source names its macros, useful
// for blue-screening on an entry that is architecturally reachable but
// never legitimately taken (e.g. CurrentELSP0 at EL2/EL3, which this
// kernel never runs with SP_EL0 selected).
func Name(c Class, k Kind) string {
	classNames := [...]string{"current_el_sp0", "current_el_spx", "lower_aarch64", "lower_aarch32"}
	kindNames := [...]string{"sync", "irq", "fiq", "serror"}
	return classNames[c] + "_" + kindNames[k]
}

// TableAddr is the linker-provided vector table symbol: a zero-sized
// variable whose address is the table's load address, the same trick
// src/go/mazarin/exceptions.go's exception_vectors_start uses to hand a Go
// int a linker-defined address without a real backing byte.
var TableAddr [0]byte

// Install points VBAR_EL1, VBAR_EL2 and VBAR_EL3 at the kernel's one
// vector table. Spec §1's boot contract calls for the kernel landing at
// Secure EL1 with stub handlers also present at EL2/EL3 (EL2/EL3 only
// ever take an entry during the partner-thread trampoline's SMC/IRQ
// redirection — see internal/trampoline); sharing one table keeps the
// class/kind layout above the single source of truth for all three.
func Install() {
	addr := uintptr(unsafe.Pointer(&TableAddr))
	asm.SetVBAREL1(addr)
	asm.SetVBAREL2(addr)
	asm.SetVBAREL3(addr)
}
