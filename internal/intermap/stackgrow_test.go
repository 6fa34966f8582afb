package intermap

import (
	"testing"

	"isambardos/internal/thread"
)

func TestStackGrowWaitersParkAndDrain(t *testing.T) {
	pool := thread.NewPool(4)
	core := thread.NewCore(pool)
	a, _ := pool.Obtain()
	b, _ := pool.Obtain()
	sys, _ := pool.Obtain()
	core.InsertHead(a)
	core.InsertAfter(a, b)
	core.InsertAfter(b, sys)

	w := NewStackGrowWaiters(pool)
	w.Park(core, a)
	if core.Current() == a {
		t.Fatalf("expected a to be removed from runnable")
	}
	w.Park(core, b)
	if w.Empty() {
		t.Fatalf("expected waiters to be non-empty after Park")
	}

	w.DrainAll(core)
	if !w.Empty() {
		t.Fatalf("expected waiters empty after DrainAll")
	}
	// Both a and b should now be back in runnable, with b reinserted last
	// (so it ends up at the head, since DrainAll walks the FIFO queue
	// inserting each at head in order).
	if core.Current() != b {
		t.Fatalf("expected b at head of runnable after drain, got %d", core.Current())
	}
}

func TestStackGrowWaitersFIFOOrder(t *testing.T) {
	pool := thread.NewPool(4)
	core := thread.NewCore(pool)
	a, _ := pool.Obtain()
	core.InsertHead(a)

	w := NewStackGrowWaiters(pool)
	w.Park(core, a)
	if pool.Get(a).StackWaitNext != thread.None {
		t.Fatalf("sole waiter's StackWaitNext should be None")
	}

	b, _ := pool.Obtain()
	core.InsertHead(b)
	w.Park(core, b)
	if pool.Get(a).StackWaitNext != b {
		t.Fatalf("expected a's StackWaitNext to chain to b")
	}
}
