package trap

import "isambardos/internal/thread"

// ThreadRegisters adapts a partner thread's saved register frame to
// PartnerRegisters: get_partner_register/set_partner_register just index
// into regs[Rt] in the original, and Rt is always in [0,30] (x0-x30).
type ThreadRegisters struct {
	T *thread.Thread
}

func (r ThreadRegisters) GetPartnerRegister(rt uint) uint64 {
	if rt >= uint(len(r.T.Regs)) {
		return 0
	}
	return r.T.Regs[rt]
}

func (r ThreadRegisters) SetPartnerRegister(rt uint, v uint64) {
	if rt >= uint(len(r.T.Regs)) {
		return
	}
	r.T.Regs[rt] = v
}

// FaultFromRegisters reconstructs the Fault the EL2 veneer wrote into
// regs[0..3] before calling SMC (ELR, ESR, FAR, HPFAR, in that order).
func FaultFromRegisters(regs PartnerRegisters) Fault {
	return Fault{
		ELR:   regs.GetPartnerRegister(0),
		ESR:   regs.GetPartnerRegister(1),
		FAR:   regs.GetPartnerRegister(2),
		HPFAR: regs.GetPartnerRegister(3),
	}
}
