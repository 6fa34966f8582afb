package bitfield

import "testing"

func TestFieldGetSet(t *testing.T) {
	tests := []struct {
		name  string
		field Field
		word  uint64
		set   uint64
		want  uint64
	}{
		{"low byte", NewField(0, 8), 0, 0xAB, 0xAB},
		{"high nibble of low byte", NewField(4, 4), 0, 0xF, 0xF0},
		{"42-bit page number", NewField(12, 42), 0, 0x123456, 0x123456000},
		{"truncates oversized value", NewField(0, 4), 0, 0xFF, 0xF},
		{"preserves neighbouring bits", NewField(8, 8), 0x00FF00FF, 0x00, 0x00FF00FF &^ (0xFF << 8)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.field.Set(tt.word, tt.set)
			if got != tt.want {
				t.Errorf("Set() = %#x, want %#x", got, tt.want)
			}
			if tt.field.Get(got) != tt.set&tt.field.mask() {
				t.Errorf("Get() round trip = %#x, want %#x", tt.field.Get(got), tt.set&tt.field.mask())
			}
		})
	}
}

func TestFieldBool(t *testing.T) {
	f := NewField(3, 1)
	word := f.SetBool(0, true)
	if !f.GetBool(word) {
		t.Fatalf("expected bit set")
	}
	word = f.SetBool(word, false)
	if f.GetBool(word) {
		t.Fatalf("expected bit clear")
	}
}

func TestNewFieldPanicsOutOfRange(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatalf("expected panic for out-of-range field")
		}
	}()
	NewField(60, 8)
}

func TestNewFieldPanicsZeroWidth(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatalf("expected panic for zero-width field")
		}
	}()
	NewField(0, 0)
}
