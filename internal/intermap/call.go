package intermap

import (
	"errors"

	"isambardos/internal/asm"
	"isambardos/internal/iface"
	"isambardos/internal/thread"
)

// SystemServiceMap is the handler value the system map installs on its own
// "map services" capability (original_source's System_Service_Map, value 8).
// A handful of methods on it are serviced directly by Call rather than by
// dispatching into the system map's own code, because they need privileges
// (like AT S1E0W) an EL0 thread's map code can't exercise itself.
const SystemServiceMap uintptr = 8

// PhysicalAddressOfMethod is the System_Service_Map method number for
// resolving one of the caller's own virtual addresses to a physical one:
// original_source/secure_el1.c's literal `thread->regs[1] == 999` check
// (the drivers.h enum later renumbers this service, but the dispatch code
// itself never adopted the renumbering, so 999 is what actually ships).
const PhysicalAddressOfMethod = 999

// ErrBadTranslation is returned by the physical_address_of shortcut when
// AT S1E0W reports the address doesn't translate.
var ErrBadTranslation = errors.New("intermap: address does not translate")

// ErrNotOwner is returned by Call when the invoking map doesn't hold the
// capability's user field.
var ErrNotOwner = errors.New("intermap: caller does not own this interface")

// ErrStackGrowNeeded is returned by Call when the callee's call stack has
// no room for another frame. The caller (the svc dispatch loop) must park
// the thread on a StackGrowWaiters queue, resume the system thread to
// service a GrowCallStack request, and leave the thread's pc pointing at
// the svc instruction so the whole call is retried once woken — Call
// checks this before mutating any thread state, so a retry is safe.
var ErrStackGrowNeeded = errors.New("intermap: callee's call stack is full")

// MapSwitcher changes which map a thread (and by extension its core) is
// currently running against: reprogramming the stage-1 root and any
// per-core state that depends on the current map. Satisfied by whatever
// owns TTBR0_EL1 for the calling core; intermap only needs to invoke it at
// the right moments.
type MapSwitcher interface {
	ChangeMap(t *thread.Thread, newMap uint32)
}

// Call performs inter-map capability invocation (the 0xfffe SVC): pushes a
// return frame, switches to the provider's map if needed, and arranges for
// the thread to resume at the interface's handler with regs[0..3] set to
// (object, a1, a2, a3).
//
// The physical_address_of shortcut on System_Service_Map is serviced
// in-line without ever switching maps or pushing a frame, exactly as the
// original does it inline in the SVC handler rather than through a real
// call.
func Call(ifaces *iface.Table, sw MapSwitcher, t *thread.Thread, stack *CallStack, capIndex uint32, a1, a2, a3 uint64) error {
	rec := ifaces.Get(capIndex)

	if rec.Provider == iface.SystemMap && rec.Handler == SystemServiceMap && a1 == PhysicalAddressOfMethod {
		pa, ok := asm.TranslateS1E0W(uintptr(a2))
		if !ok {
			return ErrBadTranslation
		}
		t.Regs[0] = (pa & 0x000ffffffffff000) | (a2 & 0xfff)
		return nil
	}

	if rec.User != t.CurrentMap {
		return ErrNotOwner
	}

	if stack.Overflowing() {
		return ErrStackGrowNeeded
	}

	t.Regs[0] = rec.Object()
	t.Regs[1] = a1
	t.Regs[2] = a2
	t.Regs[3] = a3

	if err := stack.Push(t.SP, t.PC, t.CurrentMap); err != nil {
		return err
	}

	if rec.Provider != t.CurrentMap {
		sw.ChangeMap(t, rec.Provider)
		t.CurrentMap = rec.Provider
	}
	t.PC = uint64(rec.Handler)
	return nil
}

// Return performs the 0xfffd SVC: pops the calling frame and restores the
// caller's pc/sp/map, leaving regs[0] (the result, set by the caller of
// Return) untouched.
func Return(sw MapSwitcher, t *thread.Thread, stack *CallStack) error {
	f, err := stack.Pop()
	if err != nil {
		return err
	}
	t.PC = f.CallerReturnAddress
	t.SP = f.CallerSP
	if t.CurrentMap != f.CallerMap {
		sw.ChangeMap(t, f.CallerMap)
		t.CurrentMap = f.CallerMap
	}
	return nil
}
