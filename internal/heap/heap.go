// Package heap implements the kernel's downward-growing arena: a best-fit,
// coalescing allocator over a fixed-size region that shares its 2 MB page
// with the interface table.
//
// The segment bookkeeping is the teacher's own kmalloc/kfree
// (src/go/mazarin/heap.go): a doubly-linked list of segment headers
// embedded in the arena itself, best-fit search on allocation, prev/next
// coalescing on free. What's redesigned for this domain is the growth
// direction and the fast path: the arena grows downward from a fixed high
// address, and allocation on behalf of a growing VMB array can be issued by
// the system map without the kernel serialising callers first, so it needs
// to be lock-free. Instead of a single bump-from-low-address free segment,
// the arena's high address is the fixed limit and a bottom cursor is carved
// downward with LDXR/STXR; each carve becomes the new lowest-addressed
// segment and is linked in address order, so free-list coalescing still
// just walks prev/next the way the teacher's does.
package heap

import (
	"isambardos/internal/asm"
	"unsafe"
)

// Alignment is the required alignment for kernel heap accesses.
const Alignment = 16

type segment struct {
	next      *segment // next = higher address
	prev      *segment // prev = lower address
	allocated bool
	size      uint32 // total size including this header
}

// segHeaderSize is the header rounded up to Alignment, so the storage right
// after it keeps the segment's 16-byte alignment.
const segHeaderSize = (uint32(unsafe.Sizeof(segment{})) + Alignment - 1) &^ (Alignment - 1)

// Arena is one kernel heap arena. The system driver owns the single kernel
// arena; tests construct their own to stay hermetic.
type Arena struct {
	head   *segment // lowest-addressed carved segment, nil if nothing carved yet
	bottom uint64   // LL/SC cursor: address of the next byte to carve, decreasing
	base   uintptr  // inclusive lower bound of the arena
}

// Init reserves [base, base+size) for the arena. Nothing is carved yet;
// Alloc carves on first use.
func Init(base uintptr, size uint32) *Arena {
	return &Arena{base: base, bottom: uint64(base) + uint64(size)}
}

func alignUp(n uint32) uint32 {
	rem := n % Alignment
	if rem == 0 {
		return n
	}
	return n + Alignment - rem
}

// Alloc returns size bytes of 16-byte aligned storage, or nil if the arena
// is exhausted. Free segments are tried first (best fit); only once none
// fits does Alloc carve fresh space off the bottom cursor.
func (a *Arena) Alloc(size uint32) unsafe.Pointer {
	total := alignUp(size + segHeaderSize)

	if p := a.allocFromFreeList(total); p != nil {
		return p
	}
	return a.bump(total)
}

func (a *Arena) allocFromFreeList(total uint32) unsafe.Pointer {
	var best *segment
	bestDiff := int64(-1)
	for cur := a.head; cur != nil; cur = cur.next {
		if cur.allocated {
			continue
		}
		diff := int64(cur.size) - int64(total)
		if diff < 0 {
			continue
		}
		if bestDiff == -1 || diff < bestDiff {
			best = cur
			bestDiff = diff
		}
	}
	if best == nil {
		return nil
	}

	if bestDiff > int64(2*segHeaderSize) {
		newAddr := uintptr(unsafe.Pointer(best)) + uintptr(total)
		newSeg := (*segment)(unsafe.Pointer(newAddr))
		*newSeg = segment{
			next: best.next,
			prev: best,
			size: best.size - total,
		}
		if newSeg.next != nil {
			newSeg.next.prev = newSeg
		}
		best.next = newSeg
		best.size = total
	}

	best.allocated = true
	return dataPtr(best)
}

// bump atomically carves total never-before-allocated bytes off the bottom
// of the arena using LL/SC, then links the new segment in as the arena's
// new lowest address.
func (a *Arena) bump(total uint32) unsafe.Pointer {
	for {
		old := asm.LDXR64(&a.bottom)
		next := old - uint64(total)
		if next < uint64(a.base) {
			asm.CLREX()
			return nil
		}
		if asm.STXR64(&a.bottom, next) {
			seg := (*segment)(unsafe.Pointer(uintptr(next)))
			*seg = segment{next: a.head, size: total, allocated: true}
			if a.head != nil {
				a.head.prev = seg
			}
			a.head = seg
			return dataPtr(seg)
		}
	}
}

func dataPtr(s *segment) unsafe.Pointer {
	return unsafe.Pointer(uintptr(unsafe.Pointer(s)) + uintptr(segHeaderSize))
}

// Free releases memory previously returned by Alloc, coalescing with free
// neighbours in both directions.
func (a *Arena) Free(ptr unsafe.Pointer) {
	if ptr == nil {
		return
	}
	seg := (*segment)(unsafe.Pointer(uintptr(ptr) - uintptr(segHeaderSize)))
	seg.allocated = false

	for seg.prev != nil && !seg.prev.allocated {
		prev := seg.prev
		prev.next = seg.next
		prev.size += seg.size
		if seg.next != nil {
			seg.next.prev = prev
		}
		seg = prev
	}
	if seg.prev == nil {
		a.head = seg
	}
	for seg.next != nil && !seg.next.allocated {
		next := seg.next
		seg.size += next.size
		seg.next = next.next
		if next.next != nil {
			next.next.prev = seg
		}
	}
}

// Base reports the arena's lowest possible address, for bounds checks in
// ReadHeap/WriteHeap.
func (a *Arena) Base() uintptr { return a.base }

// Bottom reports the address below which nothing has been carved yet.
func (a *Arena) Bottom() uintptr { return uintptr(a.bottom) }
