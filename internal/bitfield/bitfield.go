// Package bitfield provides explicit, init-time-checked accessors for the
// packed 64-bit words the kernel hands across ABI boundaries: an interface
// record's object field, a Map's object field, and the VMB/CMB descriptors
// that live on the kernel heap.
//
// The teacher's own bitfield package (src/bitfield) packs struct fields with
// reflection and string tags at runtime. That is the wrong tool here: these
// words cross a capability boundary, so a layout mistake is a security bug,
// not just a wrong test result. Named Field values — shift/width pairs
// computed from untyped constants — replace the reflective packer, so a
// field that does not fit in 64 bits panics in NewField as the package-level
// Field variables initialize, not when a word is first packed.
package bitfield

// Field describes one bit range within a 64-bit packed word.
type Field struct {
	shift uint
	width uint
}

// NewField describes the bits [shift, shift+width) of a packed word. Panics
// at init time (not at use time) if the range would not fit in 64 bits:
// every Field used as a package-level var is validated the moment the
// package initializes, before any kernel code can run.
func NewField(shift, width uint) Field {
	if width == 0 || width > 64 || shift+width > 64 {
		panic("bitfield: field out of range")
	}
	return Field{shift: shift, width: width}
}

func (f Field) mask() uint64 {
	if f.width == 64 {
		return ^uint64(0)
	}
	return (uint64(1) << f.width) - 1
}

// Get extracts the field's value from word.
func (f Field) Get(word uint64) uint64 {
	return (word >> f.shift) & f.mask()
}

// Set returns word with the field replaced by v. v is masked to the field's
// width, matching the original C code's habit of silently truncating
// oversized values into packed words rather than rejecting them.
func (f Field) Set(word uint64, v uint64) uint64 {
	word &^= f.mask() << f.shift
	word |= (v & f.mask()) << f.shift
	return word
}

// GetBool reads a single-bit field as a bool. Used for VMB.ReadOnly,
// VMB.Executable and CMB.ReadOnly/IsSubpage.
func (f Field) GetBool(word uint64) bool {
	return f.Get(word) != 0
}

// SetBool writes a single-bit field from a bool.
func (f Field) SetBool(word uint64, v bool) uint64 {
	if v {
		return f.Set(word, 1)
	}
	return f.Set(word, 0)
}
