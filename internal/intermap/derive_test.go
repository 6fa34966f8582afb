package intermap

import (
	"testing"

	"isambardos/internal/iface"
)

func TestDuplicateToReturn(t *testing.T) {
	ifaces := iface.New(8)
	src, _ := ifaces.Obtain()
	ifaces.Install(src, userMap, providerMap, handler, object)

	stack := NewCallStack(4, 0)
	stack.Push(0, 0, 77) // caller_map of the current top frame

	dup, err := DuplicateToReturn(ifaces, stack, src)
	if err != nil {
		t.Fatalf("DuplicateToReturn: %v", err)
	}
	rec := ifaces.Get(dup)
	if rec.User != 77 || rec.Provider != providerMap || rec.Handler != handler || rec.Object() != object {
		t.Fatalf("unexpected duplicate: %+v object=0x%x", rec, rec.Object())
	}
}

func TestDuplicateToPassTo(t *testing.T) {
	ifaces := iface.New(8)
	src, _ := ifaces.Obtain()
	ifaces.Install(src, userMap, providerMap, handler, object)
	target, _ := ifaces.Obtain()
	ifaces.Install(target, 0, 55, 0x4004, 0)

	dup, err := DuplicateToPassTo(ifaces, userMap, src, target)
	if err != nil {
		t.Fatalf("DuplicateToPassTo: %v", err)
	}
	rec := ifaces.Get(dup)
	if rec.User != 55 || rec.Provider != providerMap || rec.Handler != handler {
		t.Fatalf("unexpected duplicate: %+v", rec)
	}
}

func TestDuplicateToPassToRejectsNonOwner(t *testing.T) {
	ifaces := iface.New(8)
	src, _ := ifaces.Obtain()
	ifaces.Install(src, userMap, providerMap, handler, object)
	target, _ := ifaces.Obtain()
	ifaces.Install(target, 0, 55, 0x4004, 0)

	if _, err := DuplicateToPassTo(ifaces, userMap+1, src, target); err != ErrPermissionDenied {
		t.Fatalf("expected ErrPermissionDenied, got %v", err)
	}
}

func TestObjectToPassTo(t *testing.T) {
	ifaces := iface.New(8)
	src, _ := ifaces.Obtain()
	ifaces.Install(src, userMap, providerMap, handler, object)

	idx, err := ObjectToPassTo(ifaces, userMap, src, 0x5000, 0xBEEF)
	if err != nil {
		t.Fatalf("ObjectToPassTo: %v", err)
	}
	rec := ifaces.Get(idx)
	if rec.User != providerMap || rec.Provider != userMap || rec.Handler != 0x5000 || rec.Object() != 0xBEEF {
		t.Fatalf("unexpected record: %+v object=0x%x", rec, rec.Object())
	}
}

func TestObjectToPassToRejectsNonOwner(t *testing.T) {
	ifaces := iface.New(8)
	src, _ := ifaces.Obtain()
	ifaces.Install(src, userMap, providerMap, handler, object)

	if _, err := ObjectToPassTo(ifaces, userMap+1, src, 0x5000, 0xBEEF); err != ErrPermissionDenied {
		t.Fatalf("expected ErrPermissionDenied, got %v", err)
	}
}

func TestObjectToReturn(t *testing.T) {
	ifaces := iface.New(8)
	stack := NewCallStack(4, 0)
	stack.Push(0, 0, 77)

	idx, err := ObjectToReturn(ifaces, stack, providerMap, 0x6000, 0xCAFE)
	if err != nil {
		t.Fatalf("ObjectToReturn: %v", err)
	}
	rec := ifaces.Get(idx)
	if rec.User != 77 || rec.Provider != providerMap || rec.Handler != 0x6000 || rec.Object() != 0xCAFE {
		t.Fatalf("unexpected record: %+v object=0x%x", rec, rec.Object())
	}
}
