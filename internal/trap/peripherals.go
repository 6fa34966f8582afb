package trap

// Guest-visible BCM2835 peripheral offsets from the MMIO base (0x20000000
// for this reimplementation; original_source also supports 0x3f000000).
const (
	PeripheralBase   uint64 = 0x20000000
	IRQBankBase      uint64 = 0x00b200
	MailboxReadOff   uint64 = 0x00b880
	MailboxStatusOff uint64 = 0x00b898
	MailboxWriteOff  uint64 = 0x00b8a0
	GPIOBase         uint64 = 0x200000
	I2C0Base         uint64 = 0x205000
	I2C1Base         uint64 = 0x804000
	I2C2Base         uint64 = 0x805000
	SystemTimerBase  uint64 = 0x003000
	EMMCBase         uint64 = 0x300000
	PMResetOff       uint64 = 0x100020
)

// irqBankRegBase is the offset the original's bcm_2835_irq_registers_access
// switch is written against (0x200 == IRQBankBase - 0xb000).
const irqBankRegBase = IRQBankBase - 0xb000

// IRQBank emulates the BCM2835 interrupt controller's guest-visible
// registers: exactly original_source/drivers/arm11vm.c's
// bcm_2835_irq_registers_access, with the externally-driven "real" pending
// bits (irq_pending1/irq_pending2/irq_basic_pending) supplied by whatever
// owns the actual device interrupts rather than recomputed here.
type IRQBank struct {
	Pending1      uint32
	Pending2      uint32
	BasicPending  uint32
	EnabledIrqs1  uint32
	EnabledIrqs2  uint32
	EnabledBasic  uint32
	FIQControl    uint32
}

// basicPendingSummary builds the 0x200 "IRQ basic pending" register: the
// basic IRQs plus one summary bit each for "any of bank 1/2 is pending and
// enabled", plus the individual always-basic-visible GPU IRQs the original
// lists by number.
func (b *IRQBank) basicPendingSummary() uint32 {
	pending := b.BasicPending & b.EnabledBasic & 0xff
	set := func(bit uint, irq uint) {
		if b.Pending1&(1<<(irq%32)) != 0 && irq < 32 {
			pending |= 1 << bit
		} else if b.Pending2&(1<<(irq%32)) != 0 && irq >= 32 {
			pending |= 1 << bit
		}
	}
	set(20, 62)
	set(19, 57)
	set(18, 56)
	set(17, 55)
	set(16, 54)
	set(15, 53)
	set(14, 19)
	set(13, 18)
	set(12, 10)
	set(11, 9)
	set(10, 7)
	if b.Pending1&b.EnabledIrqs1 != 0 {
		pending |= 1 << 9
	}
	if b.Pending2&b.EnabledIrqs2 != 0 {
		pending |= 1 << 8
	}
	return pending
}

// HandleAccess emulates one guest access to the IRQ bank. offset is
// relative to the IRQ controller's own base (0xb000 in the original's
// absolute addressing), matching the register bank's case labels directly
// (0x200, 0x204, ... 0x224). It returns the value set_partner_register
// would have written back on a read; callers ignore it on a write.
func (b *IRQBank) HandleAccess(offset uint64, write bool, value uint32) uint32 {
	switch offset {
	case 0x200:
		if !write {
			return b.basicPendingSummary()
		}
	case 0x204:
		if !write {
			return b.Pending1 & b.EnabledIrqs1
		}
	case 0x208:
		if !write {
			return b.Pending2 & b.EnabledIrqs2
		}
	case 0x20c:
		if write {
			b.FIQControl = value
		} else {
			return b.FIQControl
		}
	case 0x210:
		if write {
			b.EnabledIrqs1 |= value
		} else {
			return b.EnabledIrqs1
		}
	case 0x214:
		if write {
			b.EnabledIrqs2 |= value
		} else {
			return b.EnabledIrqs2
		}
	case 0x218:
		if write {
			b.EnabledBasic |= value
		} else {
			return b.EnabledBasic
		}
	case 0x21c:
		if write {
			b.EnabledIrqs1 &^= value
		} else {
			return b.EnabledIrqs1
		}
	case 0x220:
		if write {
			b.EnabledIrqs2 &^= value
		} else {
			return b.EnabledIrqs2
		}
	case 0x224:
		if write {
			b.EnabledBasic &^= value
		} else {
			return b.EnabledBasic
		}
	}
	return 0
}

// RegisterFile is a generic store-through MMIO register bank for the
// peripherals whose guest-visible contract is "read back what was last
// written, plus a handful of side effects the owning driver polls for"
// (mailbox, GPIO, I2C, the system timer, EMMC, the PM reset register):
// the same register-emulation idiom as IRQBank's bit-exact switch, just
// without per-offset semantics wired in yet.
type RegisterFile struct {
	regs map[uint64]uint32
}

// NewRegisterFile creates an empty register file.
func NewRegisterFile() *RegisterFile {
	return &RegisterFile{regs: make(map[uint64]uint32)}
}

// Read returns the register at offset (0 if never written).
func (r *RegisterFile) Read(offset uint64) uint32 { return r.regs[offset] }

// Write stores value at offset.
func (r *RegisterFile) Write(offset uint64, value uint32) { r.regs[offset] = value }
