//go:build !rpi3 && !qemuvirt

package console

// No platform build tag was given. platformNotSpecified itself does
// nothing; such a build fails because uartInit and uartPutc are defined
// only in the platform-tagged files, so no peripheral map is chosen
// silently.
func init() {
	platformNotSpecified()
}

func platformNotSpecified() {
	// Build with -tags rpi3 or -tags qemuvirt.
}
