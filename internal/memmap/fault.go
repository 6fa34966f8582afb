package memmap

import (
	"errors"
	"unsafe"

	"isambardos/internal/iface"
)

// ErrStageFault is returned when a faulting page is not covered by any VMB
// in the current map, or the VMB's backing CMB interface does not in fact
// describe a physical memory block. The caller (the trap shell) turns this
// into spec §7's StageFault / unnamed-fault handling rather than treating
// it as a kernel bug.
var ErrStageFault = errors.New("memmap: no VMB covers the faulting page")

// Manager owns one core's stage-1 tables and demand-faults pages into them
// from the currently loaded map's VMBs.
type Manager struct {
	Alloc *TableAllocator
	Ifaces *iface.Table
}

// SelectGranularity picks the largest block size for which both the VMB and
// the CMB backing it are aligned at the faulting page and long enough: spec
// §4.4's "Permissions are the intersection..." / Testable Properties' "Fault
// granularity". vmbStart/cmbStart are page numbers in their own address
// spaces (virtual, physical); they need not be equal, but each must
// individually be a multiple of the candidate block's page count.
func SelectGranularity(vmbStart, vmbCount, cmbStart, cmbCount uint32) Granularity {
	fits := func(g Granularity) bool {
		blockPages := uint32(g.PageCount())
		return vmbStart%blockPages == 0 && cmbStart%blockPages == 0 &&
			vmbCount >= blockPages && cmbCount >= blockPages
	}
	switch {
	case fits(Granularity1GB):
		return Granularity1GB
	case fits(Granularity2MB):
		return Granularity2MB
	default:
		return Granularity4KB
	}
}

// blockBase rounds page down to the start of the granularity's block.
func blockBase(page uint32, g Granularity) uint32 {
	blockPages := uint32(g.PageCount())
	return page - page%blockPages
}

// HandleFault demand-faults the page containing far into root, the stage-1
// table for the currently loaded map. vmbs is that map's VMB array (already
// read off the kernel heap by the caller); index, if non-nil, accelerates
// the VMB lookup for maps with many regions.
//
// This is spec §4.4's demand-fault path: find the covering VMB, read its
// backing CMB through the interface table, choose granularity by mutual
// alignment, install one leaf descriptor. Special maps (system_map,
// memory_allocator_map) never reach here: spec §4.4 requires faulting them
// to be a fatal kernel error, which the trap shell checks before calling in.
func (m *Manager) HandleFault(root unsafe.Pointer, vmbs []VMB, index *VMBIndex, far uint64) error {
	faultPage := uint32(far >> PageShift)

	var vmb VMB
	var ok bool
	if index != nil {
		vmb, _, ok = index.Lookup(faultPage)
	} else {
		vmb, _, ok = LookupLinear(vmbs, faultPage)
	}
	if !ok {
		return ErrStageFault
	}

	rec := m.Ifaces.Get(vmb.BackingMemBlock)
	if uint64(rec.Handler) != iface.PhysicalMemoryBlock {
		return ErrStageFault
	}
	cmb := UnpackCMB(rec.Object())

	g := SelectGranularity(vmb.StartPage, vmb.PageCount, cmb.StartPage, cmb.PageCount)

	vmbBase := blockBase(faultPage, g)
	offsetIntoVMB := vmbBase - vmb.StartPage
	cmbBase := cmb.StartPage + offsetIntoVMB

	va := uint64(vmbBase) << PageShift
	pa := uint64(cmbBase) << PageShift
	attrs := attrsForMemoryType(cmb.MemoryType)
	ap := apFor(vmb.ReadOnly, cmb.ReadOnly)

	if !Install(root, m.Alloc, va, pa, g, attrs, ap, vmb.Executable) {
		return ErrStageFault
	}
	return nil
}
