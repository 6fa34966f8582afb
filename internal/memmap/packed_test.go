package memmap

import "testing"

func TestCMBPackRoundTrip(t *testing.T) {
	c := CMB{StartPage: 0x80000, PageCount: 0x200, ReadOnly: true, IsSubpage: false, MemoryType: WriteBack}
	got := UnpackCMB(c.Pack())
	if got != c {
		t.Fatalf("round trip mismatch: got %+v, want %+v", got, c)
	}
}

func TestVMBPackRoundTrip(t *testing.T) {
	v := VMB{StartPage: 0x40000, PageCount: 0x200, ReadOnly: false, Executable: true, BackingMemBlock: 7}
	got := UnpackVMB(v.Pack())
	if got != v {
		t.Fatalf("round trip mismatch: got %+v, want %+v", got, v)
	}
}

func TestVMBTerminator(t *testing.T) {
	var v VMB
	if !v.Terminator() {
		t.Fatalf("zero-value VMB should be a terminator")
	}
	v.PageCount = 1
	if v.Terminator() {
		t.Fatalf("non-zero page count should not be a terminator")
	}
}

func TestMapValuePackRoundTrip(t *testing.T) {
	m := MapValue{HeapOffset: 0x1230, SelfIndex: 3, NumberOfVMBs: 12}
	got := UnpackMapValue(m.Pack())
	if got != m {
		t.Fatalf("round trip mismatch: got %+v, want %+v", got, m)
	}
}

func TestMapValueHeapOffsetMustBe16ByteAligned(t *testing.T) {
	// Pack/Unpack silently drops the low 4 bits, matching the original's
	// heap_offset_lsr4 field: callers are responsible for alignment.
	m := MapValue{HeapOffset: 0x1237, SelfIndex: 1, NumberOfVMBs: 0}
	got := UnpackMapValue(m.Pack())
	if got.HeapOffset != 0x1230 {
		t.Fatalf("expected unaligned offset truncated to 0x1230, got 0x%x", got.HeapOffset)
	}
}
