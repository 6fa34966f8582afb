package memmap

import (
	"unsafe"

	"isambardos/internal/asm"
	"isambardos/internal/heap"
)

// TableAllocator hands out zeroed, page-table-sized, page-aligned blocks.
// The teacher's allocatePageTable carves these from a dedicated region
// (PAGE_TABLE_BASE..PAGE_TABLE_END); here that region is just another heap
// arena, since this kernel already has one lock-free downward-growing arena
// type and a page table is nothing more than a 4 KB aligned allocation.
type TableAllocator struct {
	arena *heap.Arena
}

// NewTableAllocator wraps an arena dedicated to page tables.
func NewTableAllocator(arena *heap.Arena) *TableAllocator {
	return &TableAllocator{arena: arena}
}

// Alloc returns a zeroed, TableSize-aligned table, or nil if the arena is
// exhausted.
func (a *TableAllocator) Alloc() unsafe.Pointer {
	// The arena aligns only to heap.Alignment, so take two tables' worth and
	// round up to the next TableSize boundary inside it.
	p := a.arena.Alloc(2 * TableSize)
	if p == nil {
		return nil
	}
	table := unsafe.Pointer((uintptr(p) + TableSize - 1) &^ (TableSize - 1))
	asm.Bzero(table, TableSize)
	return table
}

// entryAt returns a pointer to the PTE-sized slot i within a table.
func entryAt(table unsafe.Pointer, i uint64) *uint64 {
	return (*uint64)(unsafe.Pointer(uintptr(table) + uintptr(i)*PTESize))
}

// descriptor builds one leaf descriptor (L1 block, L2 block or L3 page) for
// physical/intermediate-physical address pa with the given attributes and
// access permissions. Matches the teacher's createPageTableEntry: PXN/UXN
// left clear unless exec is false, PTE_TABLE set as an L3 page descriptor
// needs it (bits[1:0] = 0b11); Install clears it again for L1/L2 block
// descriptors, whose bits[1:0] are 0b01.
func descriptor(pa uint64, attrs uint64, ap uint64, exec bool) uint64 {
	e := pa | PTEValid | PTETable | PTEAF | attrs | ap | ShInner
	if !exec {
		e |= PTEUXN | PTEPXN
	}
	return e
}

// tableDescriptor builds a descriptor pointing at the next-level table.
func tableDescriptor(next unsafe.Pointer) uint64 {
	return uint64(uintptr(next)) | PTEValid | PTETable
}

// attrsForMemoryType maps a CMB's memory type to the MAIR-index attribute
// bits and default shareability for a leaf descriptor.
func attrsForMemoryType(t MemoryType) uint64 {
	switch t {
	case DeviceNGnRnE, DeviceNGnRE:
		return AttrDevice
	case NonCacheable:
		return AttrNonCacheable
	default: // InnerWriteThrough, OuterWriteThrough, WriteBack
		return AttrNormal
	}
}

// apFor derives access permissions from the intersection of a VMB's
// read_only flag and a CMB's own read_only flag (spec §4.4: "Permissions
// are the intersection of VMB flags ... and physical memory type").
func apFor(vmbReadOnly, cmbReadOnly bool) uint64 {
	if vmbReadOnly || cmbReadOnly {
		return APRO
	}
	return APRW
}

// Install walks (and lazily allocates) table down to the requested
// granularity and writes one leaf descriptor mapping va (or ipa, for a
// stage-2 table) to pa. It serves stage-1 and stage-2 tables alike: the
// stage distinction is only in which VMSA register the caller subsequently
// invalidates.
//
//go:nosplit
func Install(root unsafe.Pointer, alloc *TableAllocator, va, pa uint64, g Granularity, attrs, ap uint64, exec bool) bool {
	l1 := walkOrAlloc(root, alloc, level0Index(va))
	if l1 == nil {
		return false
	}
	if g == Granularity1GB {
		*entryAt(l1, level1Index(va)) = descriptor(pa, attrs, ap, exec) &^ PTETable
		asm.CleanDCacheVA(uintptr(unsafe.Pointer(entryAt(l1, level1Index(va)))))
		asm.DSB()
		return true
	}

	l2 := walkOrAlloc(l1, alloc, level1Index(va))
	if l2 == nil {
		return false
	}
	if g == Granularity2MB {
		*entryAt(l2, level2Index(va)) = descriptor(pa, attrs, ap, exec) &^ PTETable
		asm.CleanDCacheVA(uintptr(unsafe.Pointer(entryAt(l2, level2Index(va)))))
		asm.DSB()
		return true
	}

	l3 := walkOrAlloc(l2, alloc, level2Index(va))
	if l3 == nil {
		return false
	}
	entry := entryAt(l3, level3Index(va))
	*entry = descriptor(pa, attrs, ap, exec)
	asm.CleanDCacheVA(uintptr(unsafe.Pointer(entry)))
	asm.DSB()
	return true
}

// walkOrAlloc follows entry idx of table, allocating and installing a new
// next-level table the first time idx is touched. Matches mapPage's lazy
// L1/L2/L3 allocation in the teacher, generalised to work at any level
// since this kernel allocates a table per core per map rather than once at
// boot.
//
//go:nosplit
func walkOrAlloc(table unsafe.Pointer, alloc *TableAllocator, idx uint64) unsafe.Pointer {
	entry := entryAt(table, idx)
	if *entry&PTETable == 0 {
		next := alloc.Alloc()
		if next == nil {
			return nil
		}
		*entry = tableDescriptor(next)
		asm.DSB()
		return next
	}
	return unsafe.Pointer(uintptr(*entry &^ 0xFFF))
}
