package heap

import (
	"testing"
	"unsafe"
)

// arenaFromSegments builds an Arena whose free list is wired up directly,
// bypassing bump() (and therefore the LDXR/STXR primitives, which only
// exist as linked assembly and cannot run on a test host). This exercises
// the best-fit and coalescing logic in isolation, the same scope the
// teacher's own bare-metal code can realistically unit test.
func arenaFromSegments(buf []byte, sizes []uint32) *Arena {
	base := uintptr(unsafe.Pointer(&buf[0]))
	a := &Arena{base: base}

	var prev *segment
	addr := base
	for _, sz := range sizes {
		seg := (*segment)(unsafe.Pointer(addr))
		*seg = segment{size: sz, prev: prev}
		if prev != nil {
			prev.next = seg
		} else {
			a.head = seg
		}
		prev = seg
		addr += uintptr(sz)
	}
	a.bottom = uint64(base) // nothing left to carve fresh
	return a
}

func TestAllocBestFit(t *testing.T) {
	buf := make([]byte, 4096)
	// Three free segments: 64, 256, 128 bytes.
	a := arenaFromSegments(buf, []uint32{64, 256, 128})

	// A 40-byte request (plus header) should prefer the 64-byte segment
	// over the larger ones.
	p := a.Alloc(40 - segHeaderSize)
	if p == nil {
		t.Fatalf("Alloc failed")
	}
	got := (*segment)(unsafe.Pointer(uintptr(p) - uintptr(segHeaderSize)))
	if got.size != 64 {
		t.Errorf("best-fit chose segment of size %d, want 64", got.size)
	}
}

func TestAllocSplitsLargeSegment(t *testing.T) {
	buf := make([]byte, 4096)
	a := arenaFromSegments(buf, []uint32{1024})

	p := a.Alloc(32)
	if p == nil {
		t.Fatalf("Alloc failed")
	}
	used := (*segment)(unsafe.Pointer(uintptr(p) - uintptr(segHeaderSize)))
	if used.size >= 1024 {
		t.Errorf("expected split, segment still size %d", used.size)
	}
	if used.next == nil || used.next.allocated {
		t.Errorf("expected a free remainder segment after the split")
	}
}

func TestFreeCoalescesBothNeighbours(t *testing.T) {
	buf := make([]byte, 4096)
	a := arenaFromSegments(buf, []uint32{64, 64, 64})

	mid := a.head.next
	midPtr := dataPtr(mid)

	// Allocate all three, then free the middle one — nothing to coalesce
	// with yet since its neighbours are still allocated.
	a.head.allocated = true
	mid.allocated = true
	mid.next.allocated = true

	a.Free(midPtr)
	if a.head.next.allocated {
		t.Fatalf("freed segment should be free")
	}

	// Now free the first segment: it should merge forward into the middle.
	a.Free(dataPtr(a.head))
	if a.head.size != 128 {
		t.Errorf("expected coalesced size 128, got %d", a.head.size)
	}

	// Finally free the last segment: everything should merge into one.
	last := a.head.next
	a.Free(dataPtr(last))
	if a.head.next != nil {
		t.Errorf("expected a single fully-coalesced segment")
	}
	if a.head.size != 192 {
		t.Errorf("expected coalesced size 192, got %d", a.head.size)
	}
}
