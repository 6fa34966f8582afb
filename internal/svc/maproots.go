package svc

import (
	"isambardos/internal/asm"
	"isambardos/internal/thread"
)

// MapRoots is one core's TTBR0_EL1 value per map index: with one stage-1
// table per core per map (internal/memmap), changing which map a core
// currently runs is "write a different TTBR0_EL1 and invalidate the TLB",
// not a page-table copy.
//
// Satisfies intermap.MapSwitcher.
type MapRoots struct {
	ttbr0 map[uint32]uint64
}

// NewMapRoots creates an empty per-core root registry.
func NewMapRoots() *MapRoots {
	return &MapRoots{ttbr0: make(map[uint32]uint64)}
}

// SetRoot records the TTBR0_EL1 value for mapIndex's stage-1 table on this
// core. Called once per map, when the map's table is first built.
func (r *MapRoots) SetRoot(mapIndex uint32, ttbr0 uint64) {
	r.ttbr0[mapIndex] = ttbr0
}

// Root returns the physical address of mapIndex's stage-1 table: the same
// value ChangeMap writes into TTBR0_EL1, but handed back as a pointer for
// the demand-fault path, which installs leaf descriptors directly into
// the table rather than switching to it. Satisfies svc's unexported
// rootTableProvider interface.
func (r *MapRoots) Root(mapIndex uint32) (uintptr, bool) {
	ttbr0, ok := r.ttbr0[mapIndex]
	return uintptr(ttbr0), ok
}

// ChangeMap reprograms TTBR0_EL1 to newMap's table and invalidates the
// stale TLB entries from the previous map, exactly the sequence a map
// switch needs before t resumes running against newMap's translations.
// t.CurrentMap is left for the caller to update, matching the convention
// intermap.Call/Return already follow.
func (r *MapRoots) ChangeMap(t *thread.Thread, newMap uint32) {
	ttbr0, ok := r.ttbr0[newMap]
	if !ok {
		return
	}
	asm.WriteTTBR0EL1(ttbr0)
	asm.ISB()
	asm.TLBIVMALLE1IS()
	asm.DSB()
	asm.ISB()
}
