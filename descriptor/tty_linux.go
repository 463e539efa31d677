//go:build linux
// +build linux

package descriptor

import (
	"os"
	"time"

	"golang.org/x/sys/unix"
)

// OpenTTY puts fd (typically os.Stdin) into raw, non-blocking mode via
// termios and returns a UART backend whose rx ring is fed by a background
// reader goroutine draining it. Falls back to an unconnected UART (rx never
// fed) if fd is not a TTY, so callers can run the same demo script against
// a pipe or redirected file.
func OpenTTY(fd *os.File, capacity int) *UART {
	u := NewUART(capacity)

	termios, err := unix.IoctlGetTermios(int(fd.Fd()), unix.TCGETS)
	if err != nil {
		return u
	}

	raw := *termios
	raw.Lflag &^= unix.ICANON | unix.ECHO
	raw.Cc[unix.VMIN] = 0
	raw.Cc[unix.VTIME] = 0
	if err := unix.IoctlSetTermios(int(fd.Fd()), unix.TCSETS, &raw); err != nil {
		return u
	}

	go func() {
		buf := make([]byte, 256)
		for {
			n, err := fd.Read(buf)
			if n > 0 {
				u.FeedRX(buf[:n])
			}
			if err != nil {
				return
			}
		}
	}()

	go func() {
		buf := make([]byte, 256)
		for {
			n := u.DrainTX(buf)
			if n > 0 {
				os.Stdout.Write(buf[:n])
				continue
			}
			time.Sleep(10 * time.Millisecond)
		}
	}()

	return u
}
