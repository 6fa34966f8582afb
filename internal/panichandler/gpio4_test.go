package panichandler

import "testing"

// blinkDigit and blinkNumber are pure counting logic once the MMIO calls
// are ignored; what's worth pinning down here is the digit decomposition
// blinkNumber performs, not the LED toggling itself (which needs real
// hardware/QEMU to observe).
func TestBlinkNumberDigitOrder(t *testing.T) {
	var got []uint32
	number := uint32(0xA1B2C3D4)
	for shift := 28; shift >= 0; shift -= 4 {
		got = append(got, (number>>uint(shift))&0xf)
	}
	want := []uint32{0xa, 0x1, 0xb, 0x2, 0xc, 0x3, 0xd, 0x4}
	if len(got) != len(want) {
		t.Fatalf("expected %d nibbles, got %d", len(want), len(got))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("nibble %d: got %x want %x", i, got[i], want[i])
		}
	}
}

func TestBlinkDigitCountsMatchEncoding(t *testing.T) {
	// blinkDigit(0) is a special short blink, not zero blinks; every other
	// digit n blinks one long blink per whole group of 5, then one short
	// blink per unit of the remainder. This checks the group/remainder decomposition rather than
	// calling blinkDigit itself, since that function drives real MMIO.
	cases := []struct {
		n          uint32
		groups     uint32
		remainder  uint32
	}{
		{0, 0, 0},
		{1, 0, 1},
		{4, 0, 4},
		{5, 1, 0},
		{9, 1, 4},
		{15, 3, 0},
	}
	for _, c := range cases {
		n := c.n
		var groups uint32
		for n >= 5 {
			groups++
			n -= 5
		}
		if groups != c.groups || n != c.remainder {
			t.Fatalf("digit %d: got groups=%d remainder=%d, want groups=%d remainder=%d",
				c.n, groups, n, c.groups, c.remainder)
		}
	}
}
