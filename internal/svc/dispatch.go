package svc

import (
	"unsafe"

	"isambardos/internal/iface"
	"isambardos/internal/intermap"
	"isambardos/internal/klock"
	"isambardos/internal/memmap"
	"isambardos/internal/sysdriver"
	"isambardos/internal/thread"
	"isambardos/internal/trampoline"
	"isambardos/internal/trap"
)

// overflowBit is PSTATE.V, the bit the userspace ABI uses to distinguish a
// normal return (clear) from an error return with a code in x0 (set):
// "userspace errors return via the V flag in PSTATE with a single-word
// code in x0; kernel invariant violations do not return" per the error
// taxonomy.
const overflowBit uint32 = 1 << 28

// Fatal is returned by Dispatch for a kernel invariant violation: the
// caller must escalate to panichandler.BlueScreen rather than resume the
// thread. It carries the class number BlueScreen displays.
type Fatal struct {
	Class uint32
	Err   error
}

func (f *Fatal) Error() string { return f.Err.Error() }

// Dispatcher ties every kernel package together at the one point a
// trapped SVC needs all of them: the running thread's own call stack, the
// shared interface table, the core's scheduler, the per-map TTBR0
// registry, userspace lock words, and the privileged system-request
// driver.
type Dispatcher struct {
	Core    *thread.Core
	Ifaces  *iface.Table
	Roots   intermap.MapSwitcher
	Sys     *sysdriver.Driver
	Threads *thread.Pool

	// Faults services the demand-fault path HandleTrap routes lower-EL
	// data/instruction aborts to; nil means this core never demand-faults
	// (e.g. a configuration with only statically-mapped maps).
	Faults *memmap.Manager

	callStacks   map[uint32]*intermap.CallStack
	stackWaiters map[uint32]*intermap.StackGrowWaiters
	locks        map[uint64]*klock.Lock
	vmbs         map[uint32][]memmap.VMB
	vmbIndex     map[uint32]*memmap.VMBIndex
}

// NewDispatcher creates a dispatcher for one core.
func NewDispatcher(core *thread.Core, ifaces *iface.Table, roots intermap.MapSwitcher, sys *sysdriver.Driver) *Dispatcher {
	return &Dispatcher{
		Core:         core,
		Ifaces:       ifaces,
		Roots:        roots,
		Sys:          sys,
		Threads:      core.Pool,
		callStacks:   make(map[uint32]*intermap.CallStack),
		stackWaiters: make(map[uint32]*intermap.StackGrowWaiters),
		locks:        make(map[uint64]*klock.Lock),
	}
}

// CallStackFor returns code's inter-map call stack, creating one rooted at
// rootMap (the map the thread was created in) on first use.
func (d *Dispatcher) CallStackFor(code uint32, capacity int, rootMap uint32) *intermap.CallStack {
	cs, ok := d.callStacks[code]
	if !ok {
		cs = intermap.NewCallStack(capacity, rootMap)
		d.callStacks[code] = cs
	}
	return cs
}

func (d *Dispatcher) stackWaitersFor(mapIndex uint32) *intermap.StackGrowWaiters {
	w, ok := d.stackWaiters[mapIndex]
	if !ok {
		w = intermap.NewStackGrowWaiters(d.Threads)
		d.stackWaiters[mapIndex] = w
	}
	return w
}

func (d *Dispatcher) lockFor(addr uint64) *klock.Lock {
	l, ok := d.locks[addr]
	if !ok {
		l = klock.New(addr, *(*uint64)(unsafe.Pointer(uintptr(addr))))
		d.locks[addr] = l
	}
	return l
}

func returnSuccess(t *thread.Thread, val uint64) {
	t.Regs[0] = val
	t.SPSR &^= overflowBit
}

func returnError(t *thread.Thread, code uint64) {
	t.Regs[0] = code
	t.SPSR |= overflowBit
}

// Dispatch runs the SVC number on the core's currently running thread.
// A nil return means the thread is ready to resume (possibly already
// descheduled, e.g. blocked on a gate or lock); a non-nil *Fatal means the
// caller must invoke panichandler.BlueScreen instead.
func (d *Dispatcher) Dispatch(number uint32) error {
	code := d.Core.Current()
	if code == thread.None {
		return &Fatal{Class: number, Err: thread.ErrPoolExhausted}
	}
	t := d.Threads.Get(code)

	switch number {
	case Gate:
		if t.Regs[0] == 0 {
			result, blocked := d.Core.WaitUntilWoken(code, t.Regs[1])
			if !blocked {
				returnSuccess(t, uint64(uint32(result)))
			}
			// If blocked, WaitUntilWoken has already removed the thread
			// from runnable; its registers are set by whichever
			// WakeThread or timeout eventually resumes it.
			return nil
		}
		if err := d.Core.WakeThread(code, uint32(t.Regs[0])); err != nil {
			return &Fatal{Class: number, Err: err}
		}
		return nil

	case DupToReturn:
		// regs[0] = source interface index.
		cs := d.CallStackFor(code, defaultCallStackCapacity, t.CurrentMap)
		idx, err := intermap.DuplicateToReturn(d.Ifaces, cs, uint32(t.Regs[0]))
		if err != nil {
			returnError(t, 1)
			return nil
		}
		returnSuccess(t, uint64(idx))
		return nil

	case DupToPass:
		// regs[0] = target interface index (whose provider becomes the new
		// user), regs[1] = source interface index.
		idx, err := intermap.DuplicateToPassTo(d.Ifaces, t.CurrentMap, uint32(t.Regs[1]), uint32(t.Regs[0]))
		if err != nil {
			returnError(t, 1)
			return nil
		}
		returnSuccess(t, uint64(idx))
		return nil

	case IfaceToReturn:
		// regs[0] = handler, regs[1] = object.
		cs := d.CallStackFor(code, defaultCallStackCapacity, t.CurrentMap)
		idx, err := intermap.ObjectToReturn(d.Ifaces, cs, t.CurrentMap, uintptr(t.Regs[0]), t.Regs[1])
		if err != nil {
			returnError(t, 1)
			return nil
		}
		returnSuccess(t, uint64(idx))
		return nil

	case IfaceToPass:
		// regs[0] = source interface index, regs[1] = handler, regs[2] = object.
		idx, err := intermap.ObjectToPassTo(d.Ifaces, t.CurrentMap, uint32(t.Regs[0]), uintptr(t.Regs[1]), t.Regs[2])
		if err != nil {
			returnError(t, 1)
			return nil
		}
		returnSuccess(t, uint64(idx))
		return nil

	case LockWait:
		// x17 = lock address, per the original's "blocked" convention.
		l := d.lockFor(t.Regs[17])
		if l.Wait(d.Core, code) {
			returnSuccess(t, 0)
		}
		return nil

	case LockRelease:
		l := d.lockFor(t.Regs[17])
		if err := l.Release(d.Core, code); err != nil {
			return &Fatal{Class: number, Err: err}
		}
		returnSuccess(t, 0)
		return nil

	case Yield:
		d.Core.Yield()
		return nil

	case Call:
		cs := d.CallStackFor(code, defaultCallStackCapacity, t.CurrentMap)
		capIndex := uint32(t.Regs[0])
		err := intermap.Call(d.Ifaces, d.Roots, t, cs, capIndex, t.Regs[1], t.Regs[2], t.Regs[3])
		switch err {
		case nil:
			return nil
		case intermap.ErrStackGrowNeeded:
			d.stackWaitersFor(t.CurrentMap).Park(d.Core, code)
			return nil
		case intermap.ErrNotOwner, intermap.ErrBadTranslation:
			returnError(t, 1)
			return nil
		default:
			return &Fatal{Class: number, Err: err}
		}

	case Return:
		cs := d.CallStackFor(code, defaultCallStackCapacity, t.CurrentMap)
		if err := intermap.Return(d.Roots, t, cs); err != nil {
			return &Fatal{Class: number, Err: err}
		}
		return nil

	case Exception:
		cs := d.CallStackFor(code, defaultCallStackCapacity, t.CurrentMap)
		if err := intermap.Return(d.Roots, t, cs); err != nil {
			return &Fatal{Class: number, Err: err}
		}
		t.SPSR |= overflowBit
		return nil

	case SwitchPartner:
		return d.switchPartner(t, code)

	case GetPartnerReg:
		regs := trap.ThreadRegisters{T: d.partnerOf(t, code)}
		returnSuccess(t, regs.GetPartnerRegister(uint(t.Regs[1])))
		return nil

	case SetPartnerReg:
		regs := trap.ThreadRegisters{T: d.partnerOf(t, code)}
		regs.SetPartnerRegister(uint(t.Regs[1]), t.Regs[2])
		returnSuccess(t, 0)
		return nil

	case ChangeVMReg:
		// Returns success without reading or writing any register: nothing
		// in this tree emulates a guest system-register change, through this
		// SVC or elsewhere.
		returnSuccess(t, 0)
		return nil

	case SystemReq:
		return d.systemRequest(t, code)

	default:
		return &Fatal{Class: number, Err: errUnknownSVC}
	}
}

// defaultCallStackCapacity matches the original's per-thread inter-map call
// stack sizing for ordinary (non-system) threads.
const defaultCallStackCapacity = 32

func (d *Dispatcher) partnerOf(t *thread.Thread, code uint32) *thread.Thread {
	partner := d.Sys.Partner(code)
	if partner == thread.None {
		return t
	}
	return d.Threads.Get(partner)
}

// spsrSingleStep is PSTATE.SS (bit 21): when set, the core traps again
// after retiring exactly one instruction.
const spsrSingleStep uint32 = 1 << 21

// spsrAArch32 is PSTATE.M[4]: set when the saved mode is an AArch32 one:
// bit 4 of the mode field distinguishes AArch32 (1) from AArch64 (0)
// regardless of EL.
const spsrAArch32 uint32 = 1 << 4

// wantsPartnerSingleStep reports whether a saved PSTATE describes a lower
// EL or an AArch32 mode — the condition the partner switch uses to decide
// whether the guest should be serialised one instruction at a time.
// AArch64 mode packs the target EL into bits [3:2] (0=EL0, 1=EL1, 2=EL2,
// 3=EL3); an AArch32 mode carries no EL field of its own and is always
// "lower" than the secure EL1 partner issuing the switch.
func wantsPartnerSingleStep(spsr uint32) bool {
	if spsr&spsrAArch32 != 0 {
		return true
	}
	return (spsr>>2)&0x3 == 0
}

// switchPartner toggles security state via the EL3 trampoline and resumes
// the partner thread: the "switch_to_partner" half of the guest-trap round
// trip described for the partner-thread hypervisor.
func (d *Dispatcher) switchPartner(t *thread.Thread, code uint32) error {
	partnerCode := d.Sys.Partner(code)
	if partnerCode == thread.None {
		return &Fatal{Class: SwitchPartner, Err: errNoPartner}
	}

	// Preserved from the original despite the open question over intent
	// (see DESIGN.md's Open Questions): a lower-EL/AArch32 partner gets
	// PSTATE.SS set before re-entry, so it single-steps one instruction
	// per trap round trip.
	partner := d.Threads.Get(partnerCode)
	if wantsPartnerSingleStep(partner.SPSR) {
		partner.SPSR |= spsrSingleStep
	}

	var from, to trampoline.VMState
	trampoline.Toggle(&from, &to)

	d.Core.Remove(code)
	d.Core.InsertHead(partnerCode)
	return nil
}

func (d *Dispatcher) systemRequest(t *thread.Thread, code uint32) error {
	if t.CurrentMap != iface.SystemMap {
		return &Fatal{Class: SystemReq, Err: errNotSystemMap}
	}

	switch t.Regs[0] {
	case sysdriver.ReadInterfaceReq:
		obj, err := d.Sys.ReadInterface(uint32(t.Regs[1]))
		if err != nil {
			returnError(t, 1)
			return nil
		}
		returnSuccess(t, obj)
		return nil

	case sysdriver.ReadHeapReq:
		if err := d.Sys.ReadHeap(t.Regs[1], uint32(t.Regs[2]), unsafe.Pointer(uintptr(t.Regs[3]))); err != nil {
			returnError(t, 1)
			return nil
		}
		returnSuccess(t, 0)
		return nil

	case sysdriver.WriteHeapReq:
		if err := d.Sys.WriteHeap(t.Regs[1], uint32(t.Regs[2]), unsafe.Pointer(uintptr(t.Regs[3]))); err != nil {
			returnError(t, 1)
			return nil
		}
		returnSuccess(t, 0)
		return nil

	case sysdriver.AllocateHeapReq:
		ptr := d.Sys.AllocateHeap(uint32(t.Regs[1]))
		returnSuccess(t, uint64(uintptr(ptr)))
		return nil

	case sysdriver.FreeHeapReq:
		d.Sys.FreeHeap(unsafe.Pointer(uintptr(t.Regs[1])))
		returnSuccess(t, 0)
		return nil

	case sysdriver.CreateThreadReq:
		newCode, err := d.Sys.CreateThread(d.Core, t.CurrentMap, t.Regs[1], t.Regs[2])
		if err != nil {
			returnError(t, 1)
			return nil
		}
		returnSuccess(t, uint64(newCode))
		return nil

	case sysdriver.SetInterruptThread:
		if err := d.Sys.SetInterruptThread(uint32(t.Regs[1])); err != nil {
			returnError(t, 1)
			return nil
		}
		returnSuccess(t, 0)
		return nil

	case sysdriver.ThreadMakePartner:
		if err := d.Sys.ThreadMakePartner(uint32(t.Regs[1]), uint32(t.Regs[2])); err != nil {
			returnError(t, 1)
			return nil
		}
		returnSuccess(t, 0)
		return nil

	case sysdriver.GrowCallStackReq:
		d.Sys.GrowCallStack(d.Core, d.stackWaitersFor(uint32(t.Regs[1])))
		returnSuccess(t, 0)
		return nil

	default:
		return &Fatal{Class: SystemReq, Err: errUnknownSystemRequest}
	}
}
