package thread

import "testing"

func TestObtainFreeRoundTrip(t *testing.T) {
	p := NewPool(2)
	a, err := p.Obtain()
	if err != nil {
		t.Fatalf("Obtain: %v", err)
	}
	b, err := p.Obtain()
	if err != nil {
		t.Fatalf("Obtain: %v", err)
	}
	if a == b {
		t.Fatalf("expected distinct codes, got %d twice", a)
	}
	if _, err := p.Obtain(); err != ErrPoolExhausted {
		t.Fatalf("expected ErrPoolExhausted, got %v", err)
	}
	p.Free(a)
	c, err := p.Obtain()
	if err != nil || c != a {
		t.Fatalf("expected to reobtain freed code %d, got %d err=%v", a, c, err)
	}
}

func TestCodeIsStableArenaIndex(t *testing.T) {
	p := NewPool(3)
	code, _ := p.Obtain()
	if p.Get(code).Code() != code {
		t.Fatalf("thread's own Code() should equal its arena index")
	}
}

func TestGrowExtendsPool(t *testing.T) {
	p := NewPool(1)
	p.Obtain()
	if _, err := p.Obtain(); err != ErrPoolExhausted {
		t.Fatalf("expected exhaustion before Grow")
	}
	p.Grow(2)
	if _, err := p.Obtain(); err != nil {
		t.Fatalf("Obtain after Grow: %v", err)
	}
}
