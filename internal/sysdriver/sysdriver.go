// Package sysdriver implements the SYSTEM_REQUEST table: the privileged
// operations only the system map may invoke (the SystemReq SVC, 0xf010), dispatched by
// request number in regs[0] exactly like original_source/secure_el1.c's
// system_driver_request switch.
//
// Map/page-table management (Add_Device_Page, Updated_Map) is simplified
// relative to the original's per-core shared L3 table pushdown: this
// reimplementation has one stage-1 table per core per map already (see
// internal/memmap), so Updated_Map is a no-op hook kept for interface
// parity rather than a real page-table copy loop.
package sysdriver

import (
	"errors"
	"unsafe"

	"isambardos/internal/heap"
	"isambardos/internal/iface"
	"isambardos/internal/intermap"
	"isambardos/internal/memmap"
	"isambardos/internal/thread"
)

// Request numbers, matching original_source/include/isambard_syscalls.h's
// Isambard_System_Service_* enum values used by the secure_el1.c switch.
const (
	AddDevicePage       uint64 = 1
	UpdatedMap          uint64 = 2
	ReadInterfaceReq    uint64 = 3
	ReadHeapReq         uint64 = 4
	WriteHeapReq        uint64 = 5
	AllocateHeapReq     uint64 = 6
	FreeHeapReq         uint64 = 7
	CreateThreadReq     uint64 = 8
	SetInterruptThread  uint64 = 9
	ThreadMakePartner   uint64 = 10
	GrowCallStackReq    uint64 = 11
)

var (
	// ErrHeapAccessMisaligned is returned by ReadHeap/WriteHeap for an
	// offset or length that isn't 16-byte aligned.
	ErrHeapAccessMisaligned = errors.New("sysdriver: heap access must be 16-byte aligned")
	// ErrHeapOutOfRange is returned when a heap access falls outside the
	// arena.
	ErrHeapOutOfRange = errors.New("sysdriver: heap access out of range")
	// ErrNotSystemOwned is ReadInterface's ownership-check supplement: the
	// target interface's user field must be the system map, not just any
	// map, before its object is disclosed.
	ErrNotSystemOwned = errors.New("sysdriver: interface is not owned by the system map")
	// ErrAlreadyPartnered is Thread_Make_Partner's symmetry check: a thread
	// that already has a non-null partner refuses to be re-partnered.
	ErrAlreadyPartnered = errors.New("sysdriver: thread already has a partner")
	// ErrInterruptThreadSet is returned by SetInterruptThread when a
	// different thread already holds the role.
	ErrInterruptThreadSet = errors.New("sysdriver: interrupt thread already set to a different thread")
)

// Driver holds every resource the system map's privileged requests touch.
type Driver struct {
	Ifaces  *iface.Table
	Heap    *heap.Arena
	Threads *thread.Pool
	Fault   *memmap.Manager

	interruptThread uint32 // thread.None if unset
	partners        map[uint32]uint32
}

// New creates a Driver over the given kernel resources.
func New(ifaces *iface.Table, h *heap.Arena, threads *thread.Pool, fault *memmap.Manager) *Driver {
	return &Driver{
		Ifaces:          ifaces,
		Heap:            h,
		Threads:         threads,
		Fault:           fault,
		interruptThread: thread.None,
		partners:        make(map[uint32]uint32),
	}
}

// AddDevicePage installs a device-memory mapping for a physical page at
// the given virtual page index in the shared system map, and returns the
// resulting virtual address (page << 12), mirroring the original's
// shifted-return convention.
func (d *Driver) AddDevicePage(root unsafe.Pointer, alloc *memmap.TableAllocator, pa uint64, page uint32) (uint64, error) {
	va := uint64(page) << memmap.PageShift
	if !memmap.Install(root, alloc, va, pa, memmap.Granularity4KB, memmap.AttrDevice, memmap.APRW, false) {
		return 0, errors.New("sysdriver: device page mapping failed")
	}
	return va, nil
}

// UpdatedMap is a no-op hook kept for interface parity with the original's
// per-core shared-table pushdown; every core's stage-1 table here is
// populated directly by Install, so there is nothing to copy down.
func (d *Driver) UpdatedMap() {}

// ReadInterface discloses the object field of the interface at index,
// provided its user is the system map (the bounds/ownership-check
// supplement spec.md's table entry leaves implicit).
func (d *Driver) ReadInterface(index uint32) (uint64, error) {
	rec := d.Ifaces.Get(index)
	if rec.User != iface.SystemMap {
		return 0, ErrNotSystemOwned
	}
	return rec.Object(), nil
}

// heapRange validates a [offset, offset+length) access against the arena
// and the 16-byte alignment the kernel heap requires throughout.
func (d *Driver) heapRange(offset uint64, length uint32) (unsafe.Pointer, error) {
	if offset%heap.Alignment != 0 || uint64(length)%heap.Alignment != 0 {
		return nil, ErrHeapAccessMisaligned
	}
	base := uint64(d.Heap.Base())
	limit := uint64(d.Heap.Bottom())
	if offset < base || offset+uint64(length) > limit {
		return nil, ErrHeapOutOfRange
	}
	return unsafe.Pointer(uintptr(offset)), nil
}

// ReadHeap copies length bytes from the kernel heap at offset into dst.
func (d *Driver) ReadHeap(offset uint64, length uint32, dst unsafe.Pointer) error {
	src, err := d.heapRange(offset, length)
	if err != nil {
		return err
	}
	copyBytes(dst, src, length)
	return nil
}

// WriteHeap copies length bytes from src into the kernel heap at offset.
func (d *Driver) WriteHeap(offset uint64, length uint32, src unsafe.Pointer) error {
	dst, err := d.heapRange(offset, length)
	if err != nil {
		return err
	}
	copyBytes(dst, src, length)
	return nil
}

func copyBytes(dst, src unsafe.Pointer, length uint32) {
	d := (*[1 << 30]byte)(dst)[:length:length]
	s := (*[1 << 30]byte)(src)[:length:length]
	copy(d, s)
}

// AllocateHeap carves size bytes off the kernel heap.
func (d *Driver) AllocateHeap(size uint32) unsafe.Pointer { return d.Heap.Alloc(size) }

// FreeHeap releases a heap allocation.
func (d *Driver) FreeHeap(ptr unsafe.Pointer) { d.Heap.Free(ptr) }

// CreateThread allocates a new thread, attributes it to callerMap (the
// original attributes it to the requester's *caller*, i.e. the map that
// invoked the map that asked the system driver, from the call stack top),
// seeds its pc/sp, and inserts it at the head of core's runnable list so
// it runs immediately, with the original thread resuming once it blocks.
func (d *Driver) CreateThread(core *thread.Core, callerMap uint32, pc, sp uint64) (uint32, error) {
	if sp&0xf != 0 {
		return thread.None, errors.New("sysdriver: thread stack pointer must be 16-byte aligned")
	}
	code, err := d.Threads.Obtain()
	if err != nil {
		return thread.None, err
	}
	t := d.Threads.Get(code)
	t.CurrentMap = callerMap
	t.PC = pc
	t.SP = sp
	t.SPSR = 0
	core.InsertHead(code)
	return code, nil
}

// SetInterruptThread registers code as the core's interrupt thread. A
// second registration by a different thread is rejected; re-registration
// by the same thread is tolerated (mirroring the original's `if already
// set: BSOD unless it's the same thread`).
func (d *Driver) SetInterruptThread(code uint32) error {
	if d.interruptThread != thread.None && d.interruptThread != code {
		return ErrInterruptThreadSet
	}
	d.interruptThread = code
	t := d.Threads.Get(code)
	t.SPSR = 0x80 // IRQs masked, FIQs unmasked
	return nil
}

// InterruptThread returns the registered interrupt thread, or thread.None.
func (d *Driver) InterruptThread() uint32 { return d.interruptThread }

// ThreadMakePartner records that a and b are a secure/non-secure VCPU
// pair, refusing to re-partner a thread that already has one (the
// Thread_Make_Partner symmetry check supplement).
func (d *Driver) ThreadMakePartner(a, b uint32) error {
	if _, exists := d.partners[a]; exists {
		return ErrAlreadyPartnered
	}
	if _, exists := d.partners[b]; exists {
		return ErrAlreadyPartnered
	}
	d.partners[a] = b
	d.partners[b] = a
	return nil
}

// Partner returns code's partner thread, or thread.None if unpartnered.
func (d *Driver) Partner(code uint32) uint32 {
	if p, ok := d.partners[code]; ok {
		return p
	}
	return thread.None
}

// GrowCallStack services the needs_stack supplement: it's invoked on the
// system thread once it has arranged more call-stack memory for whichever
// map's threads were parked, and wakes them all to retry.
func (d *Driver) GrowCallStack(core *thread.Core, waiters *intermap.StackGrowWaiters) {
	waiters.DrainAll(core)
}
