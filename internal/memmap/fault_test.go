package memmap

import (
	"testing"

	"isambardos/internal/iface"
)

func TestSelectGranularityPrefers1GBWhenBothAligned(t *testing.T) {
	const pagesPerGB = (1 << 30) / PageSize
	g := SelectGranularity(pagesPerGB*3, pagesPerGB, pagesPerGB*5, pagesPerGB)
	if g != Granularity1GB {
		t.Fatalf("expected 1GB granularity, got %v", g)
	}
}

func TestSelectGranularity2MBExample(t *testing.T) {
	// Spec walkthrough: VMB {start=0x40000000>>12, count=0x200} backed by
	// CMB {start=0x80000000>>12, count=0x200, WB} should install an L2
	// (2MB) block, not 1GB (too short) or 4KB (both ends are 2MB aligned).
	vmbStart := uint32(0x40000000 >> PageShift)
	cmbStart := uint32(0x80000000 >> PageShift)
	g := SelectGranularity(vmbStart, 0x200, cmbStart, 0x200)
	if g != Granularity2MB {
		t.Fatalf("expected 2MB granularity, got %v", g)
	}
}

func TestSelectGranularityFallsBackTo4KBWhenMisaligned(t *testing.T) {
	// CMB start page is odd, so it can never be 2MB- or 1GB-aligned.
	g := SelectGranularity(0x200, 0x200, 0x201, 0x200)
	if g != Granularity4KB {
		t.Fatalf("expected 4KB granularity for a misaligned CMB, got %v", g)
	}
}

func TestSelectGranularityFallsBackWhenTooShort(t *testing.T) {
	// Both aligned to 2MB but only one page long: too short for any block
	// bigger than 4KB.
	const pagesPer2MB = (1 << 21) / PageSize
	g := SelectGranularity(pagesPer2MB, 1, pagesPer2MB, 1)
	if g != Granularity4KB {
		t.Fatalf("expected 4KB granularity when too short, got %v", g)
	}
}

func TestBlockBaseRoundsDown(t *testing.T) {
	const pagesPer2MB = uint32((1 << 21) / PageSize)
	page := pagesPer2MB*3 + 17
	got := blockBase(page, Granularity2MB)
	if got != pagesPer2MB*3 {
		t.Fatalf("expected block base %d, got %d", pagesPer2MB*3, got)
	}
}

// HandleFault's remaining two branches install a leaf descriptor via
// Install, which calls asm.Bzero/CleanDCacheVA/DSB — linked assembly with
// no Go body in this tree, the same boundary internal/heap/heap_test.go's
// arenaFromSegments documents for LDXR/STXR and the reason this package
// carries no tt_test.go for Install/walkOrAlloc. The two cases below are
// the part of spec §4.4's demand-fault path reachable without it: an
// uncovered page and a VMB whose backing interface isn't a CMB both return
// before Install is ever called.

func TestHandleFaultMissReturnsStageFault(t *testing.T) {
	m := &Manager{Ifaces: iface.New(4)}
	far := uint64(0x40000000)

	err := m.HandleFault(nil, nil, nil, far)
	if err != ErrStageFault {
		t.Fatalf("expected ErrStageFault for an uncovered page, got %v", err)
	}
}

func TestHandleFaultRejectsNonCMBBackingInterface(t *testing.T) {
	ifaces := iface.New(4)
	idx, err := ifaces.Obtain()
	if err != nil {
		t.Fatalf("Obtain: %v", err)
	}
	// A handler value other than iface.PhysicalMemoryBlock: the VMB points
	// at a capability that isn't a physical memory block at all.
	if err := ifaces.Install(idx, iface.SystemMap, iface.SystemMap, 4, 0); err != nil {
		t.Fatalf("Install: %v", err)
	}

	vmbs := []VMB{{StartPage: 0x40000, PageCount: 0x200, BackingMemBlock: idx}}
	m := &Manager{Ifaces: ifaces}

	far := uint64(0x40000) << PageShift
	err = m.HandleFault(nil, vmbs, nil, far)
	if err != ErrStageFault {
		t.Fatalf("expected ErrStageFault for a non-CMB backing interface, got %v", err)
	}
}

func TestGranularityPageCount(t *testing.T) {
	cases := map[Granularity]uint64{
		Granularity4KB: 1,
		Granularity2MB: 512,
		Granularity1GB: 262144,
	}
	for g, want := range cases {
		if got := g.PageCount(); got != want {
			t.Errorf("%v.PageCount() = %d, want %d", g, got, want)
		}
	}
}
