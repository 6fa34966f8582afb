//go:build !aarch64

package asm

// IsambardOS is AArch64-only: the EL3 trampoline, stage-2 tables and vm_state
// layout are all architecture-specific. Building without -tags aarch64 is
// almost always a mistake. archNotSpecified itself does nothing; such a
// build fails because the primitives in this package are declared only
// under the aarch64 tag.
func init() {
	archNotSpecified()
}

func archNotSpecified() {
	// Build with -tags aarch64.
}
