package intermap

import (
	"errors"

	"isambardos/internal/iface"
)

// ErrPermissionDenied is returned by the three-party derivation operations
// when the supplied source interface does not belong to the caller's
// current map (the original treats this as a fatal BSOD; here it is
// reported so the trap shell can choose to escalate it consistently with
// every other PermissionDenied case rather than hard-failing inline).
var ErrPermissionDenied = errors.New("intermap: source interface is not owned by the caller's map")

// DuplicateToReturn mints a new capability identical to src but usable by
// whoever called the current thread (stack_pointer[0].caller_map): the
// 0xfff6 duplicate_to_return operation.
func DuplicateToReturn(ifaces *iface.Table, stack *CallStack, srcIndex uint32) (uint32, error) {
	src := ifaces.Get(srcIndex)
	idx, err := ifaces.Obtain()
	if err != nil {
		return 0, err
	}
	caller := stack.Top().CallerMap
	if err := ifaces.Install(idx, caller, src.Provider, src.Handler, src.Object()); err != nil {
		ifaces.Free(idx)
		return 0, err
	}
	return idx, nil
}

// DuplicateToPassTo mints a new capability identical to src but usable by
// target's provider: the 0xfff7 duplicate_to_pass_to operation. src must be
// owned by currentMap.
func DuplicateToPassTo(ifaces *iface.Table, currentMap uint32, srcIndex, targetIndex uint32) (uint32, error) {
	src := ifaces.Get(srcIndex)
	if src.User != currentMap {
		return 0, ErrPermissionDenied
	}
	target := ifaces.Get(targetIndex)
	idx, err := ifaces.Obtain()
	if err != nil {
		return 0, err
	}
	if err := ifaces.Install(idx, target.Provider, src.Provider, src.Handler, src.Object()); err != nil {
		ifaces.Free(idx)
		return 0, err
	}
	return idx, nil
}

// ObjectToPassTo mints a new capability whose object/handler are supplied
// directly by the caller rather than copied from an existing capability:
// the 0xfff8 "object for provider" operation. src must be owned by
// currentMap; the new capability is usable by src's provider.
func ObjectToPassTo(ifaces *iface.Table, currentMap uint32, srcIndex uint32, handler uintptr, object uint64) (uint32, error) {
	src := ifaces.Get(srcIndex)
	if src.User != currentMap {
		return 0, ErrPermissionDenied
	}
	idx, err := ifaces.Obtain()
	if err != nil {
		return 0, err
	}
	if err := ifaces.Install(idx, src.Provider, currentMap, handler, object); err != nil {
		ifaces.Free(idx)
		return 0, err
	}
	return idx, nil
}

// ObjectToReturn mints a new capability handed back to the thread's caller,
// with an object/handler supplied directly: the 0xfff9 "object for caller"
// operation.
func ObjectToReturn(ifaces *iface.Table, stack *CallStack, currentMap uint32, handler uintptr, object uint64) (uint32, error) {
	idx, err := ifaces.Obtain()
	if err != nil {
		return 0, err
	}
	caller := stack.Top().CallerMap
	if err := ifaces.Install(idx, caller, currentMap, handler, object); err != nil {
		ifaces.Free(idx)
		return 0, err
	}
	return idx, nil
}
