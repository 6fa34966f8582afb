// Package svc is the per-core SVC dispatch loop: the one place every other
// package — thread, klock, iface, intermap, trap, sysdriver, trampoline —
// is wired together. A trap into EL1 with an SVC immediate lands here with
// the current thread and the decoded SVC number; Dispatch runs the
// matching operation and leaves the thread ready to resume (or parked, or
// escalated to panichandler.BlueScreen).
//
// Grounded on original_source/secure_el1.c's top-level SVC switch (the
// numbers below are its own 0xF0xx immediates, x8 holding the syscall
// number the way the teacher's src/go/mazarin/exceptions.go reads the
// exception syndrome before dispatching).
package svc

// SVC numbers, caller in x8/svc immediate. Part of the userspace ABI.
const (
	Gate          uint32 = 0xF001
	DupToReturn   uint32 = 0xF002
	DupToPass     uint32 = 0xF003
	IfaceToReturn uint32 = 0xF004
	IfaceToPass   uint32 = 0xF005
	LockWait      uint32 = 0xF006
	LockRelease   uint32 = 0xF007
	Yield         uint32 = 0xF008
	Call          uint32 = 0xF009
	Return        uint32 = 0xF00A
	Exception     uint32 = 0xF00B
	SwitchPartner uint32 = 0xF00C
	GetPartnerReg uint32 = 0xF00D
	SetPartnerReg uint32 = 0xF00E
	ChangeVMReg   uint32 = 0xF00F
	SystemReq     uint32 = 0xF010
)

// Number extracts the SVC immediate from ESR_EL1's ISS field (bits
// [15:0]), the same field layout as trap.DecodeDataAbort's ESR reads.
func Number(esr uint64) uint32 {
	return uint32(esr & 0xffff)
}
