// Package klock implements the kernel side of IsambardOS's lock primitive:
// the Lock_Wait/Lock_Release slow path a userspace CAS fast path falls back
// to on contention.
//
// The waiter bookkeeping is grounded on the teacher's futexWaiter table
// (mazboot/golang/main/syscall.go): a fixed association between a lock
// address and the thread(s) parked on it, looked up by address rather than
// by following a pointer embedded in the word itself. What's kernel-specific
// here is that IsambardOS packs the waiter chain directly into the lock
// word's high 32 bits (original_source/secure_el1.c Lock_Wait/Lock_Release)
// rather than using a side table, so contention resolution is LL/SC on the
// word itself and the chain is threaded through the waiting threads'
// own LockNext/LockPrev fields.
package klock

import (
	"errors"

	"isambardos/internal/asm"
	"isambardos/internal/bitfield"
	"isambardos/internal/thread"
)

var (
	ownerField   = bitfield.NewField(0, 32)
	waitersField = bitfield.NewField(32, 32)
)

var (
	// ErrPermissionDenied is returned by Release when the caller does not
	// currently own the lock.
	ErrPermissionDenied = errors.New("klock: caller does not own the lock")
	// ErrBadAddress names a lock address that is not user-writable in the
	// caller's current map. Nothing in this tree returns it: neither Wait,
	// Release nor the svc dispatcher checks the lock address's writability.
	ErrBadAddress = errors.New("klock: lock address not user-writable in current map")
)

func split(word uint64) (owner, waitersHead uint32) {
	return uint32(ownerField.Get(word)), uint32(waitersField.Get(word))
}

func pack(owner, waitersHead uint32) uint64 {
	w := ownerField.Set(0, uint64(owner))
	return waitersField.Set(w, uint64(waitersHead))
}

// Lock is one userspace lock word, tracked on the kernel side only while
// contended: an uncontended lock never leaves userspace (its owner field is
// written directly by the CAS fast path).
type Lock struct {
	word uint64
	addr uint64 // the lock word's own address, stamped into waiters' regs[17]
}

// New describes the lock word living at addr (a user-writable address in
// some map), currently holding word.
func New(addr uint64, word uint64) *Lock {
	return &Lock{word: word, addr: addr}
}

// Word returns the current packed lock value.
func (k *Lock) Word() uint64 { return k.word }

// Owner reports the current owner's thread code, or thread.None if unlocked.
func (k *Lock) Owner() uint32 {
	owner, _ := split(k.word)
	return owner
}

// Wait implements the kernel side of Lock_Wait for tid on core. Returns
// true if the lock was acquired immediately (including the tolerated
// re-entrant case); false if tid was parked on the waiter chain and must be
// resumed later by a matching Release.
func (k *Lock) Wait(core *thread.Core, tid uint32) (acquired bool) {
	for {
		v := asm.LDXR64(&k.word)
		owner, waitersHead := split(v)

		if owner == thread.None {
			if asm.STXR64(&k.word, pack(tid, thread.None)) {
				return true
			}
			continue
		}
		if owner == tid {
			asm.CLREX()
			return true
		}

		core.Remove(tid)
		t := core.Pool.Get(tid)
		t.Regs[17] = k.addr

		if waitersHead == thread.None {
			t.LockNext, t.LockPrev = thread.None, thread.None
			if asm.STXR64(&k.word, pack(owner, tid)) {
				return false
			}
			// Lost the race for the word; undo the speculative removal
			// and retry from the top.
			core.InsertHead(tid)
			continue
		}

		k.attachTail(core, waitersHead, tid)
		asm.CLREX() // only the new-list case needs to win the word itself
		return false
	}
}

// attachTail links tid onto the end of the waiter chain headed by head.
func (k *Lock) attachTail(core *thread.Core, head, tid uint32) {
	tail := head
	for {
		tailT := core.Pool.Get(tail)
		if tailT.LockNext == thread.None {
			break
		}
		tail = tailT.LockNext
	}
	tailT := core.Pool.Get(tail)
	t := core.Pool.Get(tid)
	tailT.LockNext = tid
	t.LockPrev = tail
	t.LockNext = thread.None
}

// Release implements Lock_Release: caller must be the current owner. If
// there are no waiters the lock is simply cleared (the common case is
// handled by userspace writing zero directly and never reaching the
// kernel). Otherwise the head waiter becomes the new owner, the chain's new
// head replaces the word's high half, and the newly unblocked thread is
// placed at the head of runnable.
func (k *Lock) Release(core *thread.Core, caller uint32) error {
	owner, waitersHead := split(k.word)
	if owner != caller {
		return ErrPermissionDenied
	}
	if waitersHead == thread.None {
		k.word = 0
		return nil
	}

	head := core.Pool.Get(waitersHead)
	next := head.LockNext
	if next != thread.None {
		core.Pool.Get(next).LockPrev = thread.None
	}
	head.LockNext, head.LockPrev = thread.None, thread.None

	k.word = pack(waitersHead, next)
	core.InsertHead(waitersHead)
	return nil
}

// WaitersSane checks the Lock coherence invariant: every thread on the
// waiter chain has regs[17] equal to the lock's own address.
func (k *Lock) WaitersSane(core *thread.Core) bool {
	_, head := split(k.word)
	for code := head; code != thread.None; {
		t := core.Pool.Get(code)
		if t.Regs[17] != k.addr {
			return false
		}
		code = t.LockNext
	}
	return true
}
