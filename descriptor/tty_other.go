//go:build !linux
// +build !linux

package descriptor

import "os"

// OpenTTY is unavailable off Linux; it returns an unconnected UART so the
// demo script still runs, just without a live terminal feeding its rx ring.
func OpenTTY(fd *os.File, capacity int) *UART {
	return NewUART(capacity)
}
