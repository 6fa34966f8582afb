//go:build rpi3

package console

import "isambardos/internal/asm"

// Raspberry Pi 3 (BCM2835/2837) PL011 UART, gated on GPIO14/15. These are
// the host's own UART registers; the guest peripheral emulation in
// internal/trap has no UART model.
const (
	peripheralBase uintptr = 0x3F000000

	gpioBase  = peripheralBase + 0x200000
	gppud     = gpioBase + 0x94
	gppudclk0 = gpioBase + 0x98

	uart0Base = peripheralBase + 0x201000
	uart0DR   = uart0Base + 0x00
	uart0FR   = uart0Base + 0x18
	uart0IBRD = uart0Base + 0x24
	uart0FBRD = uart0Base + 0x28
	uart0LCRH = uart0Base + 0x2C
	uart0CR   = uart0Base + 0x30
	uart0ICR  = uart0Base + 0x44
	uart0IMSC = uart0Base + 0x38
)

//go:nosplit
func uartInit() {
	asm.MMIOWrite(uart0CR, 0)

	asm.MMIOWrite(gppud, 0)
	asm.Delay(150)
	asm.MMIOWrite(gppudclk0, (1<<14)|(1<<15))
	asm.Delay(150)
	asm.MMIOWrite(gppudclk0, 0)

	asm.MMIOWrite(uart0ICR, 0x7FF)
	asm.MMIOWrite(uart0IBRD, 1)
	asm.MMIOWrite(uart0FBRD, 40)
	asm.MMIOWrite(uart0LCRH, (1<<4)|(1<<5)|(1<<6))
	asm.MMIOWrite(uart0IMSC, (1<<1)|(1<<4)|(1<<5)|(1<<6)|(1<<7)|(1<<8)|(1<<9)|(1<<10))
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
