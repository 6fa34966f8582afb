package klock

import (
	"testing"

	"isambardos/internal/thread"
)

// TestLockContentionScenario is spec §8 scenario 2: three threads L, M, N;
// L acquires, M and N block in order; L releases and M becomes owner with
// N as the sole remaining waiter.
func TestLockContentionScenario(t *testing.T) {
	pool := thread.NewPool(4)
	core := thread.NewCore(pool)
	l, _ := pool.Obtain()
	m, _ := pool.Obtain()
	n, _ := pool.Obtain()
	core.InsertHead(l)
	core.InsertAfter(l, m)
	core.InsertAfter(m, n)

	lock := New(0x2000, 0)
	if !lock.Wait(core, l) {
		t.Fatalf("L should acquire uncontended")
	}

	if lock.Wait(core, m) {
		t.Fatalf("M should block on a contended lock")
	}
	if lock.Wait(core, n) {
		t.Fatalf("N should block on a contended lock")
	}
	if !lock.WaitersSane(core) {
		t.Fatalf("every waiter's regs[17] should equal the lock address")
	}

	if err := lock.Release(core, l); err != nil {
		t.Fatalf("Release: %v", err)
	}
	if lock.Owner() != m {
		t.Fatalf("expected M to become owner, got %d", lock.Owner())
	}
	_, waitersHead := split(lock.Word())
	if waitersHead != n {
		t.Fatalf("expected N as the sole remaining waiter, got %d", waitersHead)
	}
	if core.Current() != m {
		t.Fatalf("expected M to be placed at the head of runnable, got %d", core.Current())
	}
}

func TestPackSplitRoundTrip(t *testing.T) {
	w := pack(7, 42)
	owner, waiters := split(w)
	if owner != 7 || waiters != 42 {
		t.Fatalf("round trip mismatch: owner=%d waiters=%d", owner, waiters)
	}
}

func TestUncontendedAcquire(t *testing.T) {
	l := New(0x1000, 0)
	if !l.Wait(nil, 5) {
		t.Fatalf("expected immediate acquire on an unlocked word")
	}
	if l.Owner() != 5 {
		t.Fatalf("expected owner 5, got %d", l.Owner())
	}
}

func TestReentrantAcquireTolerated(t *testing.T) {
	l := New(0x1000, pack(5, 0))
	if !l.Wait(nil, 5) {
		t.Fatalf("re-entrant acquire by the current owner should succeed")
	}
}

func TestReleaseRejectsNonOwner(t *testing.T) {
	l := New(0x1000, pack(5, 0))
	if err := l.Release(nil, 6); err != ErrPermissionDenied {
		t.Fatalf("expected ErrPermissionDenied, got %v", err)
	}
}

func TestReleaseWithNoWaitersClearsWord(t *testing.T) {
	l := New(0x1000, pack(5, 0))
	if err := l.Release(nil, 5); err != nil {
		t.Fatalf("Release: %v", err)
	}
	if l.Word() != 0 {
		t.Fatalf("expected word cleared, got 0x%x", l.Word())
	}
}
