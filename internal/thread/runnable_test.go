package thread

import "testing"

func threadCodes(t *testing.T, p *Pool, n int) []uint32 {
	t.Helper()
	codes := make([]uint32, n)
	for i := range codes {
		c, err := p.Obtain()
		if err != nil {
			t.Fatalf("Obtain: %v", err)
		}
		codes[i] = c
	}
	return codes
}

func TestInsertHeadSingleThread(t *testing.T) {
	p := NewPool(4)
	core := NewCore(p)
	a := threadCodes(t, p, 1)[0]

	core.InsertHead(a)
	if core.Current() != a {
		t.Fatalf("expected %d runnable, got %d", a, core.Current())
	}
	if core.Yield() {
		t.Fatalf("yield with a single runnable thread should report false")
	}
}

func TestInsertAfterAndYieldRotates(t *testing.T) {
	p := NewPool(4)
	core := NewCore(p)
	codes := threadCodes(t, p, 3)
	a, b, c := codes[0], codes[1], codes[2]

	core.InsertHead(a)
	core.InsertAfter(a, b)
	core.InsertAfter(b, c)

	// Order should now be a, b, c (circular).
	if core.Current() != a {
		t.Fatalf("expected head %d, got %d", a, core.Current())
	}
	if !core.Yield() || core.Current() != b {
		t.Fatalf("expected yield to move to %d, got %d", b, core.Current())
	}
	if !core.Yield() || core.Current() != c {
		t.Fatalf("expected yield to move to %d, got %d", c, core.Current())
	}
	if !core.Yield() || core.Current() != a {
		t.Fatalf("expected yield to wrap back to %d, got %d", a, core.Current())
	}
}

func TestRemoveHeadAdvancesRunnable(t *testing.T) {
	p := NewPool(4)
	core := NewCore(p)
	codes := threadCodes(t, p, 2)
	a, b := codes[0], codes[1]

	core.InsertHead(a)
	core.InsertAfter(a, b)
	core.Remove(a)

	if core.Current() != b {
		t.Fatalf("expected %d to become head after removing head, got %d", b, core.Current())
	}
	if core.Yield() {
		t.Fatalf("only one thread left, yield should report false")
	}
}

func TestRemoveLastThreadEmptiesRunnable(t *testing.T) {
	p := NewPool(4)
	core := NewCore(p)
	a := threadCodes(t, p, 1)[0]

	core.InsertHead(a)
	core.Remove(a)
	if core.Current() != None {
		t.Fatalf("expected empty runnable list, got %d", core.Current())
	}
}
