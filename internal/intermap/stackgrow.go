package intermap

import "isambardos/internal/thread"

// StackGrowWaiters is the needs_stack list: original_source/secure_el1.c's
// thread_stack_is_full is an unimplemented stub there ("BSOD, TODO"); this
// is the real mechanism it was a placeholder for. A thread whose call
// stack has no room for another frame is parked here instead of completing
// its Call, the system thread is resumed to grow the map's stack VMB via a
// GrowCallStack system request, and every parked thread is woken to retry
// its call once the grow completes.
//
// Threaded as a FIFO through Thread.StackWaitNext exactly the way the lock
// waiter chain is threaded through LockNext: nothing ever needs to remove
// a thread from the middle of this list, only drain it wholesale.
type StackGrowWaiters struct {
	pool       *thread.Pool
	head, tail uint32
}

// NewStackGrowWaiters creates an empty waiter queue over pool.
func NewStackGrowWaiters(pool *thread.Pool) *StackGrowWaiters {
	return &StackGrowWaiters{pool: pool, head: thread.None, tail: thread.None}
}

// Park removes code from the runnable list and appends it to the waiter
// queue. The caller is responsible for then resuming whatever thread
// should run next (ordinarily the system thread).
func (w *StackGrowWaiters) Park(core *thread.Core, code uint32) {
	core.Remove(code)
	t := w.pool.Get(code)
	t.StackWaitNext = thread.None
	if w.head == thread.None {
		w.head = code
	} else {
		w.pool.Get(w.tail).StackWaitNext = code
	}
	w.tail = code
}

// DrainAll wakes every parked thread by reinserting it at the head of
// runnable, for the GrowCallStack system request's completion: every
// thread that needed the stack grown gets to retry its call.
func (w *StackGrowWaiters) DrainAll(core *thread.Core) {
	code := w.head
	w.head, w.tail = thread.None, thread.None
	for code != thread.None {
		next := w.pool.Get(code).StackWaitNext
		w.pool.Get(code).StackWaitNext = thread.None
		core.InsertHead(code)
		code = next
	}
}

// Empty reports whether any thread is currently parked awaiting a stack
// grow.
func (w *StackGrowWaiters) Empty() bool { return w.head == thread.None }
