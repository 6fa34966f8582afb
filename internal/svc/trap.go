package svc

import (
	"unsafe"

	"isambardos/internal/asm"
	"isambardos/internal/iface"
	"isambardos/internal/memmap"
	"isambardos/internal/thread"
	"isambardos/internal/trap"
)

// SetVMBs records mapIndex's VMB array (read once off the kernel heap by
// the map manager) and builds the B-tree accelerator over it, so later
// demand faults against that map don't re-read the heap on every fault.
// Mirrors MapRoots.SetRoot: called once per map, when the map's VMB array
// is (re)built.
func (d *Dispatcher) SetVMBs(mapIndex uint32, vmbs []memmap.VMB) {
	if d.vmbs == nil {
		d.vmbs = make(map[uint32][]memmap.VMB)
		d.vmbIndex = make(map[uint32]*memmap.VMBIndex)
	}
	d.vmbs[mapIndex] = vmbs
	d.vmbIndex[mapIndex] = memmap.NewVMBIndex(vmbs)
}

// rootTableProvider is the part of intermap.MapSwitcher's concrete
// implementation (MapRoots) that the demand-fault path needs but the
// narrower MapSwitcher interface doesn't expose: the physical table
// address HandleFault installs leaf descriptors directly into.
type rootTableProvider interface {
	Root(mapIndex uint32) (uintptr, bool)
}

// HandleTrap is the Go landing pad for the "lower AArch64, sync" vector
// entry: the assembly veneer has already saved the trapped thread's
// general registers into the current thread's own Regs array before
// branching here (the same assumption Dispatch makes about its caller).
// It classifies ESR_EL1 and either runs the SVC dispatch table or
// demand-faults the page, returning non-nil only when the caller must
// escalate to panichandler.BlueScreen.
func (d *Dispatcher) HandleTrap() error {
	esr := asm.ReadESREL1()
	switch trap.Classify(esr) {
	case trap.ECSVC64:
		return d.Dispatch(Number(esr))
	case trap.ECInstrAbortLowerEL, trap.ECDataAbortLowerEL:
		return d.handleAbort(esr)
	default:
		return &Fatal{Class: uint32(trap.Classify(esr)), Err: errUnhandledException}
	}
}

// handleAbort implements spec §4.4's demand-fault operation end to end:
// special maps fault fatally, an uncovered or malformed VMB/CMB pair
// raises the unnamed fault (V set, thread resumed) rather than blue-
// screening, and a covered fault installs one leaf descriptor at the
// largest granularity the VMB and CMB mutually support before resuming
// the same faulting instruction.
func (d *Dispatcher) handleAbort(esr uint64) error {
	code := d.Core.Current()
	if code == thread.None {
		return &Fatal{Class: uint32(trap.Classify(esr)), Err: errUnhandledException}
	}
	t := d.Threads.Get(code)

	if t.CurrentMap == iface.SystemMap || t.CurrentMap == iface.AllocatorMap {
		return &Fatal{Class: uint32(trap.Classify(esr)), Err: errFaultInSpecialMap}
	}

	rp, ok := d.Roots.(rootTableProvider)
	if !ok {
		return &Fatal{Class: uint32(trap.Classify(esr)), Err: errNoRootTableProvider}
	}
	root, ok := rp.Root(t.CurrentMap)
	if !ok || d.Faults == nil {
		returnError(t, 1)
		return nil
	}

	far := asm.ReadFAREL1()
	if err := d.Faults.HandleFault(unsafe.Pointer(root), d.vmbs[t.CurrentMap], d.vmbIndex[t.CurrentMap], far); err != nil {
		// spec §4.4: "injects an unnamed fault (sets V in thread PSTATE
		// and resumes, letting the driver handle it)" — recoverable, not
		// a kernel invariant violation.
		returnError(t, 1)
		return nil
	}
	return nil
}
