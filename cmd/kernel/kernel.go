// Command kernel is IsambardOS's entry point: KernelMain, called directly
// from boot.s the way the teacher's boot.s calls src/go/mazarin's
// KernelMain, with the same uartInit-then-heapInit-then-loop shape
// generalised from "print a banner and echo characters" to "bring up
// every kernel subsystem and hand control to the per-core SVC dispatch
// loop".
//
// Per the boot contract: core 0 enters at EL3 with the MMU off. The
// physical layout is ROM, then writable data, then one Core structure per
// CPU, then free RAM; KernelMain only runs on core 0, which owns bringing
// up the shared interface table and the system map before releasing the
// other cores (core release/SMP bring-up is not implemented here).
package main

import (
	"isambardos/internal/asm"
	"isambardos/internal/console"
	"isambardos/internal/heap"
	"isambardos/internal/iface"
	"isambardos/internal/memmap"
	"isambardos/internal/panichandler"
	"isambardos/internal/svc"
	"isambardos/internal/sysdriver"
	"isambardos/internal/thread"
	"isambardos/internal/vectors"
)

// heapBase is where free RAM is assumed to begin after the single Core
// structure this minimal configuration reserves (one core, CoreSize
// bytes, immediately after the kernel's own code+data): a fixed
// development-time layout, the same simplification
// src/go/mazarin/kernel.go makes ("use 0x500000 to be safe") rather than
// walking a real memory map.
const heapBase uintptr = 0x600000

const heapSize uint32 = 16 * 1024 * 1024

const (
	ifaceTableCapacity = 256
	threadPoolCapacity = 64
)

// KernelMain is the entry point called from boot.s once core 0 has
// zeroed its Core structure.
//
//go:nosplit
//go:noinline
func KernelMain(r0, r1 uint64) {
	_ = r0
	_ = r1

	console.Init()
	console.Puts("IsambardOS booting\r\n")

	vectors.Install()
	console.Puts("vector table installed at EL1/EL2/EL3\r\n")

	arena := heap.Init(heapBase, heapSize)
	console.Puts("heap initialised\r\n")

	ifaces := iface.New(ifaceTableCapacity)
	console.Puts("interface table initialised\r\n")

	threads := thread.NewPool(threadPoolCapacity)
	core := thread.NewCore(threads)

	alloc := memmap.NewTableAllocator(arena)
	systemRoot := alloc.Alloc()
	asm.Bzero(systemRoot, 4096)

	roots := svc.NewMapRoots()
	roots.SetRoot(iface.SystemMap, uint64(uintptr(systemRoot)))

	faults := &memmap.Manager{Alloc: alloc, Ifaces: ifaces}
	sys := sysdriver.New(ifaces, arena, threads, faults)
	dispatcher := svc.NewDispatcher(core, ifaces, roots, sys)
	dispatcher.Faults = faults

	systemCode, err := threads.Obtain()
	if err != nil {
		panichandler.BlueScreen(uint32(vectors.Index(vectors.CurrentELSPx, vectors.Sync)), [31]uint64{}, 0, nil)
	}
	systemThread := threads.Get(systemCode)
	systemThread.CurrentMap = iface.SystemMap
	core.InsertHead(systemCode)

	asm.WriteTTBR0EL1(uint64(uintptr(systemRoot)))
	asm.ISB()

	activeDispatcher = dispatcher

	console.Puts("scheduler ready, entering SVC loop\r\n")
	run(dispatcher)
}

// activeDispatcher is the dispatcher TrapEntry reaches into. Set once by
// KernelMain before the vector table can deliver its first trap; one core,
// one dispatcher, so a package-level variable is all the indirection this
// needs.
var activeDispatcher *svc.Dispatcher

// TrapEntry is called directly from the vector table's Lower-AArch64 Sync
// stub (internal/vectors) once it has saved the trapped thread's general
// registers into that thread's own Regs array. It is the Go side of every
// SVC, data abort and instruction abort this kernel's threads take; a
// *svc.Fatal return means Dispatch or the demand-fault path hit a kernel
// invariant violation, and the core blue-screens instead of resuming.
//
//go:nosplit
//go:noinline
func TrapEntry() {
	err := activeDispatcher.HandleTrap()
	if err == nil {
		return
	}

	var class uint32
	if fatal, ok := err.(*svc.Fatal); ok {
		class = fatal.Class
	}
	var regs [31]uint64
	if code := activeDispatcher.Core.Current(); code != thread.None {
		regs = activeDispatcher.Threads.Get(code).Regs
	}
	panichandler.BlueScreen(class, regs, 0, nil)
}

// run is the per-core idle loop: an SVC/data-abort/instruction-abort into
// EL1 lands in TrapEntry directly from the vector table's assembly veneer
// (outside this Go tree — see internal/vectors), runs to completion there,
// and erets without ever returning control here. This loop's own job is
// just the WFI spin a core falls back to whenever nothing is runnable,
// exactly as wait_until_woken's WFI/WFE mapping describes; it resumes once
// TrapEntry's eret next lands on something runnable.
//
//go:nosplit
func run(d *svc.Dispatcher) {
	for {
		if d.Core.Current() == thread.None {
			asm.WFI()
			continue
		}
		asm.WFI()
	}
}

// main exists only so the package compiles as a normal Go program; boot.s
// calls KernelMain directly and main is never reached on real hardware,
// matching src/go/mazarin/kernel.go's dummy main().
func main() {
	KernelMain(0, 0)
}
