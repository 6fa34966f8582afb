// Package iface implements the interface table: the bounded pool of
// capability records that is IsambardOS's sole substrate for one map
// invoking another.
//
// The free-list algorithm — LL/SC on a shared head index, a sentinel marker
// stamped into freed records to catch double frees, index 0 reserved and
// never issued — is the original kernel's own obtain_interface/free_interface
// (original_source/secure_el1.c). Index 0 doubling as "the free list is
// currently being grown by another core" (the original spins rather than
// treating 0 as a valid index) is preserved as the ResourceExhausted path:
// since this reimplementation treats table growth as a privileged,
// cooperative operation, growth is something the system map arranges rather
// than something a caller busy-waits for.
package iface

import (
	"errors"

	"isambardos/internal/asm"
)

// Reserved and preinstalled indices.
const (
	Reserved     = 0 // never issued
	SystemMap    = 1 // preinstalled: system map
	AllocatorMap = 2 // preinstalled: memory-allocator map
)

// freeMarker stamps a freed record so a second free (or a use-after-free
// invocation) is caught rather than silently corrupting the free list.
// Value taken verbatim from the original kernel's free_marker constant.
const freeMarker uint64 = 0x00746e4965657246

// PhysicalMemoryBlock is the well-known handler value system-map interfaces
// use to say "my object field is a CMB, not a general-purpose value".
const PhysicalMemoryBlock uint64 = 1

var (
	// ErrResourceExhausted is returned by Obtain when the free list is
	// empty.
	ErrResourceExhausted = errors.New("iface: no free interface records")
	// ErrMalformed is returned when a handler pointer isn't 4-byte aligned.
	ErrMalformed = errors.New("iface: handler not 4-byte aligned")
	// ErrDoubleFree is a fatal invariant violation; callers must escalate
	// this to panichandler.BlueScreen, never recover from it.
	ErrDoubleFree = errors.New("iface: double free detected")
)

// Record is one capability: {user, provider, handler, object}. The
// free-list `next` field shares storage with `object` (a freed record has
// no object), matching the original's union of the two.
type Record struct {
	User     uint32 // index of the map permitted to invoke this cap
	Provider uint32 // index of the map implementing it
	Handler  uintptr
	inUse    bool
	object   uint64 // valid only while inUse
	marker   uint64 // freeMarker, valid only while !inUse
	next     uint32 // free-list link, valid only while !inUse
}

// Object returns the capability's object word. Only valid for in-use
// records; callers must not read it across a free/obtain cycle.
func (r *Record) Object() uint64 { return r.object }

// Table is the bounded pool of interface records, shared by every core and
// referenced by 32-bit indices.
type Table struct {
	records []Record
	free    uint32 // LL/SC head: index of first free record, 0 = empty/growing
}

// New creates a table with capacity records, preinstalling SystemMap and
// AllocatorMap and chaining the rest onto the free list.
func New(capacity uint32) *Table {
	if capacity < 3 {
		capacity = 3
	}
	t := &Table{records: make([]Record, capacity)}
	t.records[Reserved].marker = freeMarker
	t.records[SystemMap] = Record{User: SystemMap, Provider: SystemMap, inUse: true}
	t.records[AllocatorMap] = Record{User: AllocatorMap, Provider: AllocatorMap, inUse: true}
	t.chainFree(3, capacity)
	return t
}

// chainFree links records [first, last) into a fresh free list and makes it
// the table's free list, mirroring new_memory_for_interfaces: each record
// gets the sentinel marker and a next pointer to its successor: the last
// one terminates with next == 0.
func (t *Table) chainFree(first, last uint32) {
	if first >= last {
		return
	}
	for i := first; i < last-1; i++ {
		t.records[i].marker = freeMarker
		t.records[i].next = i + 1
	}
	t.records[last-1].marker = freeMarker
	t.records[last-1].next = 0
	t.free = first
}

// Grow appends more records to the table's backing array and chains them
// onto the free list. This is a privileged, system-map-only operation
// invoked when Obtain reports ResourceExhausted.
func (t *Table) Grow(extra uint32) {
	first := uint32(len(t.records))
	t.records = append(t.records, make([]Record, extra)...)
	t.chainFree(first, first+extra)
}

// Obtain pops the free list using LL/SC on the shared head index, so two
// cores racing Obtain never hand out the same record.
func (t *Table) Obtain() (uint32, error) {
	var head uint32
	for {
		head = asm.LDXR32(&t.free)
		if head == Reserved {
			asm.CLREX()
			return 0, ErrResourceExhausted
		}
		rec := &t.records[head]
		if rec.marker != freeMarker {
			asm.CLREX()
			return 0, ErrDoubleFree
		}
		if asm.STXR32(&t.free, rec.next) {
			rec.inUse = true
			rec.marker = 0
			rec.next = 0
			return head, nil
		}
	}
}

// Free pushes index back onto the free list, stamping the sentinel. Freeing
// an index that is already free is a double-free and must be escalated to
// BlueScreen by the caller.
func (t *Table) Free(index uint32) error {
	if index == Reserved || int(index) >= len(t.records) {
		return ErrDoubleFree
	}
	rec := &t.records[index]
	if !rec.inUse {
		return ErrDoubleFree
	}
	rec.inUse = false
	rec.marker = freeMarker
	for {
		head := asm.LDXR32(&t.free)
		rec.next = head
		if asm.STXR32(&t.free, index) {
			return nil
		}
	}
}

// Install writes a fully-formed capability into index, e.g. for the two
// preinstalled maps or for capability derivation
// (duplicate_to_return/duplicate_to_pass_to). handler must be 4-byte
// aligned, matching the original's Malformed check.
func (t *Table) Install(index uint32, user, provider uint32, handler uintptr, object uint64) error {
	if handler&0x3 != 0 {
		return ErrMalformed
	}
	rec := &t.records[index]
	rec.User = user
	rec.Provider = provider
	rec.Handler = handler
	rec.object = object
	rec.inUse = true
	return nil
}

// Get returns the record at index for read access (e.g. ReadInterface,
// capability invocation). The caller is responsible for the bounds and
// ownership checks required around it.
func (t *Table) Get(index uint32) *Record {
	return &t.records[index]
}

// Len reports the table's current capacity.
func (t *Table) Len() int { return len(t.records) }
