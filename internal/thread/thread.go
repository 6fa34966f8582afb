// Package thread implements the per-core cooperative scheduler: a circular
// doubly-linked runnable list, the gate wait/wake primitive, and a timeout
// queue for timed waits.
//
// The teacher's goroutine.go (mazboot/golang/main) schedules real Go
// goroutines with gopark/goready through go:linkname into the runtime. That
// doesn't fit here: IsambardOS threads are plain saved register contexts
// resumed by re-entering a trap handler, not Go stacks the runtime can park
// and wake. What we keep from the teacher is the shape of the idiom — a
// doubly-linked scheduling list threaded through the thread struct itself,
// reworked from goroutine.go's *g-based list into an arena of indices per
// the kernel's own "thread code" abstraction (a 32-bit handle stable under
// relocation), matching how interface records are addressed by index rather
// than pointer.
package thread

import "errors"

// ThreadWaiting is the gate value that marks a thread blocked in
// WaitUntilWoken.
const ThreadWaiting int32 = -1

// GateMax is the saturation ceiling wake_thread never lets gate exceed.
const GateMax int32 = 0x7fffffff

// None is the reserved arena index meaning "no thread" (an empty list, an
// absent partner, and so on). Matches the interface table's Reserved
// convention: index 0 is never issued.
const None uint32 = 0

var (
	// ErrPermissionDenied is returned when a wake crosses maps.
	ErrPermissionDenied = errors.New("thread: wake target is in a different map")
	// ErrPoolExhausted is returned by Obtain when no thread slots remain.
	ErrPoolExhausted = errors.New("thread: no free thread slots")
)

// Thread is one saved execution context: general registers, the two
// scheduling lists it may belong to, and its gate counter.
type Thread struct {
	Regs       [31]uint64
	SP         uint64
	PC         uint64
	SPSR       uint32
	CurrentMap uint32
	Gate       int32

	inUse bool
	code  uint32 // this thread's own arena index, stamped by Obtain
	next  uint32 // runnable list, None if not linked
	prev  uint32
	free  uint32 // free-list link, valid only while !inUse

	tnext, tprev uint32 // timeout queue links, None if not linked
	ticks        uint64 // delta ticks relative to the previous queue entry
	inTimeout    bool

	// LockNext/LockPrev thread the waiter chain of whichever lock this
	// thread is currently blocked on (internal/klock); None if not
	// waiting on a lock. Kept separate from the runnable list's next/prev
	// since a lock waiter is unlinked from runnable entirely.
	LockNext, LockPrev uint32

	// StackWaitNext threads this thread onto internal/intermap's
	// needs_stack list when an inter-map call stack overflowed; None
	// otherwise.
	StackWaitNext uint32
}

// Code returns this thread's stable handle: its own arena index, the
// Go-idiomatic equivalent of the original's pointer-offset "thread code".
func (t *Thread) Code() uint32 { return t.code }

// Pool is the bounded arena of thread contexts, indexed by "thread code".
// Index 0 is reserved and never issued, so None can double as "no thread".
type Pool struct {
	threads []Thread
	free    uint32
}

// NewPool creates a pool of capacity thread slots (at least 1, to keep
// index 0 reserved), chaining all of them onto the free list.
func NewPool(capacity uint32) *Pool {
	if capacity < 1 {
		capacity = 1
	}
	p := &Pool{threads: make([]Thread, capacity+1)}
	p.chainFree(1, capacity+1)
	return p
}

func (p *Pool) chainFree(first, last uint32) {
	if first >= last {
		return
	}
	for i := first; i < last-1; i++ {
		p.threads[i].free = i + 1
	}
	p.threads[last-1].free = None
	p.free = first
}

// Grow appends more slots and chains them onto the free list, for the
// system driver's Create_Thread request once the pool is exhausted.
func (p *Pool) Grow(extra uint32) {
	first := uint32(len(p.threads))
	p.threads = append(p.threads, make([]Thread, extra)...)
	p.chainFree(first, first+extra)
}

// Obtain allocates a thread slot and returns its code.
func (p *Pool) Obtain() (uint32, error) {
	if p.free == None {
		return None, ErrPoolExhausted
	}
	code := p.free
	t := &p.threads[code]
	p.free = t.free
	*t = Thread{inUse: true, code: code}
	return code, nil
}

// Free releases code back to the pool (the system driver's
// finished_threads recycling path).
func (p *Pool) Free(code uint32) {
	t := &p.threads[code]
	*t = Thread{free: p.free}
	p.free = code
}

// Get returns the thread at code.
func (p *Pool) Get(code uint32) *Thread { return &p.threads[code] }
