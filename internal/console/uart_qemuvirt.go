//go:build qemuvirt

package console

import "isambardos/internal/asm"

// QEMU's aarch64 "virt" machine exposes a PL011 UART at a fixed MMIO base
// independent of any Raspberry Pi peripheral map. This is the platform used
// to develop and unit-exercise the kernel before it runs on real hardware.
const (
	uart0Base uintptr = 0x09000000
	uart0DR           = uart0Base + 0x00
	uart0FR           = uart0Base + 0x18
	uart0IBRD         = uart0Base + 0x24
	uart0FBRD         = uart0Base + 0x28
	uart0LCRH         = uart0Base + 0x2C
	uart0CR           = uart0Base + 0x30
	uart0ICR          = uart0Base + 0x44
)

//go:nosplit
func uartInit() {
	asm.MMIOWrite(uart0CR, 0)
	asm.MMIOWrite(uart0ICR, 0x7FF)
	asm.MMIOWrite(uart0IBRD, 26)
	asm.MMIOWrite(uart0FBRD, 3)
	asm.MMIOWrite(uart0LCRH, (1<<4)|(1<<5)|(1<<6))
	asm.MMIOWrite(uart0CR, (1<<0)|(1<<8)|(1<<9))
}

//go:nosplit
func uartPutc(c byte) {
	for asm.MMIORead(uart0FR)&(1<<5) != 0 {
	}
	asm.MMIOWrite(uart0DR, uint32(c))
}

//go:nosplit
func uartGetc() byte {
	for asm.MMIORead(uart0FR)&(1<<4) != 0 {
	}
	return byte(asm.MMIORead(uart0DR))
}
