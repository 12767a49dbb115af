//go:build tinygo

package kernel

// No stack capture on baremetal targets.
func captureStack() []byte {
	return nil
}
