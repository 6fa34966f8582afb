package memmap

import "isambardos/internal/bitfield"

// The three packed 64-bit words Map/VMB/CMB are stored as on the kernel
// heap and in an interface's object field. Bit positions for start_page,
// page_count and memory_block/memory_type are taken verbatim from the
// original kernel's packed unions (include/core_isambard.h:
// ContiguousMemoryBlock, VirtualMemoryBlock, MapValue) so that a CMB or VMB
// word built here and one built by original tooling agree bit-for-bit.
// read_only and is_subpage (named in the spec's CMB fields but absent from
// the original's packed struct) are carved out of that struct's 17-bit
// reserved span.
var (
	cmbStartPage   = bitfield.NewField(0, 24)
	cmbPageCount   = bitfield.NewField(24, 20)
	cmbReadOnly    = bitfield.NewField(44, 1)
	cmbIsSubpage   = bitfield.NewField(45, 1)
	cmbMemoryType  = bitfield.NewField(61, 3)

	vmbStartPage  = bitfield.NewField(0, 24)
	vmbPageCount  = bitfield.NewField(24, 20)
	vmbReadOnly   = bitfield.NewField(44, 1)
	vmbExecutable = bitfield.NewField(45, 1)
	vmbMemBlock   = bitfield.NewField(46, 18)

	mapHeapOffsetLSR4 = bitfield.NewField(0, 32)
	mapSelfObject     = bitfield.NewField(32, 20)
	mapNumberOfVMBs   = bitfield.NewField(52, 12)
)

// MemoryType is the MAIR index a CMB's pages are mapped with.
type MemoryType uint8

const (
	DeviceNGnRnE MemoryType = iota
	DeviceNGnRE
	NonCacheable
	InnerWriteThrough
	OuterWriteThrough
	WriteBack
)

// CMB is a Contiguous Memory Block: a physical-memory descriptor.
type CMB struct {
	StartPage  uint32 // physical page number
	PageCount  uint32
	ReadOnly   bool
	IsSubpage  bool
	MemoryType MemoryType
}

// Pack encodes c into the 64-bit word an interface's object field (or a
// CMB array on the heap) stores.
func (c CMB) Pack() uint64 {
	w := cmbStartPage.Set(0, uint64(c.StartPage))
	w = cmbPageCount.Set(w, uint64(c.PageCount))
	w = cmbReadOnly.SetBool(w, c.ReadOnly)
	w = cmbIsSubpage.SetBool(w, c.IsSubpage)
	w = cmbMemoryType.Set(w, uint64(c.MemoryType))
	return w
}

// UnpackCMB decodes a packed CMB word.
func UnpackCMB(w uint64) CMB {
	return CMB{
		StartPage:  uint32(cmbStartPage.Get(w)),
		PageCount:  uint32(cmbPageCount.Get(w)),
		ReadOnly:   cmbReadOnly.GetBool(w),
		IsSubpage:  cmbIsSubpage.GetBool(w),
		MemoryType: MemoryType(cmbMemoryType.Get(w)),
	}
}

// EndPage is the first physical page past the block (exclusive).
func (c CMB) EndPage() uint32 { return c.StartPage + c.PageCount }

// VMB is a Virtual Memory Block: one contiguous range of virtual pages
// within a Map, backed by a CMB reached through an interface index. A zero
// PageCount terminates a Map's VMB array.
type VMB struct {
	StartPage       uint32 // virtual page number
	PageCount       uint32
	ReadOnly        bool
	Executable      bool
	BackingMemBlock uint32 // interface index of the backing CMB
}

// Pack encodes v into its on-heap packed representation.
func (v VMB) Pack() uint64 {
	w := vmbStartPage.Set(0, uint64(v.StartPage))
	w = vmbPageCount.Set(w, uint64(v.PageCount))
	w = vmbReadOnly.SetBool(w, v.ReadOnly)
	w = vmbExecutable.SetBool(w, v.Executable)
	w = vmbMemBlock.Set(w, uint64(v.BackingMemBlock))
	return w
}

// UnpackVMB decodes a packed VMB word.
func UnpackVMB(w uint64) VMB {
	return VMB{
		StartPage:       uint32(vmbStartPage.Get(w)),
		PageCount:       uint32(vmbPageCount.Get(w)),
		ReadOnly:        vmbReadOnly.GetBool(w),
		Executable:      vmbExecutable.GetBool(w),
		BackingMemBlock: uint32(vmbMemBlock.Get(w)),
	}
}

// Terminator reports whether v is the zero-PageCount sentinel that ends a
// Map's VMB array.
func (v VMB) Terminator() bool { return v.PageCount == 0 }

// EndPage is the first virtual page past the block (exclusive).
func (v VMB) EndPage() uint32 { return v.StartPage + v.PageCount }

// MapValue is a Map's own packed object word: where its VMB array lives on
// the heap, the map's own interface index, and how many VMBs it currently
// has.
type MapValue struct {
	HeapOffset   uint64 // byte offset into the kernel heap, 16-byte aligned
	SelfIndex    uint32 // this map's own interface index
	NumberOfVMBs uint32
}

// Pack encodes m into its 64-bit object word. HeapOffset is stored shifted
// right by 4 (it is always 16-byte aligned), matching the original's
// heap_offset_lsr4 field.
func (m MapValue) Pack() uint64 {
	w := mapHeapOffsetLSR4.Set(0, m.HeapOffset>>4)
	w = mapSelfObject.Set(w, uint64(m.SelfIndex))
	w = mapNumberOfVMBs.Set(w, uint64(m.NumberOfVMBs))
	return w
}

// UnpackMapValue decodes a packed Map object word.
func UnpackMapValue(w uint64) MapValue {
	return MapValue{
		HeapOffset:   mapHeapOffsetLSR4.Get(w) << 4,
		SelfIndex:    uint32(mapSelfObject.Get(w)),
		NumberOfVMBs: uint32(mapNumberOfVMBs.Get(w)),
	}
}
