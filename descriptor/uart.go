package descriptor

import "github.com/fru1t-labs/coreos/kernel"

// UART is the canonical reference Ops backend from the source's
// uart_fd_read/uart_fd_write/uart_fd_poll/uart_fd_close: read drains
// opportunistically (never blocks), poll reports Writable unconditionally
// and Readable only when the RX ring has data, and close is an explicit
// no-op since a serial line can't really be closed. Write makes a single
// pass over the tx ring and does not spin: bytes that do not fit are
// reported as a short count with kernel.ErrCapacity.
//
// The backing transport is rx/tx rings rather than memory-mapped UART
// registers: descriptor.OpenTTY wires rx to a real TTY read loop via
// golang.org/x/sys/unix termios calls; the demo command, tests and non-TTY
// environments use an in-memory ring fed directly, keeping the backend
// portable.
type UART struct {
	rx *ring
	tx *ring
}

// NewUART returns a UART backend with rx/tx rings of the given capacity.
func NewUART(capacity int) *UART {
	return &UART{rx: newRing(capacity), tx: newRing(capacity)}
}

// FeedRX injects bytes as if received over the wire, for tests and the
// in-memory fallback transport.
func (u *UART) FeedRX(p []byte) int { return u.rx.push(p) }

// DrainTX removes bytes written by Write, for tests and the real-TTY
// transport to forward onward.
func (u *UART) DrainTX(p []byte) int { return u.tx.pop(p) }

// Read implements Ops: drains up to len(buf) bytes already in the RX ring,
// returning 0 immediately if none are ready (it never blocks).
func (u *UART) Read(ctx interface{}, buf []byte) (int, error) {
	return u.rx.pop(buf), nil
}

// Write implements Ops: it pushes buf into the tx ring in one pass. If the
// ring fills before every byte is accepted, it returns the number of bytes
// taken together with kernel.ErrCapacity; it does not wait for room.
func (u *UART) Write(ctx interface{}, buf []byte) (int, error) {
	n := u.tx.push(buf)
	if n < len(buf) {
		return n, kernel.ErrCapacity
	}
	return n, nil
}

// Poll implements Ops: Writable is always set; Readable is set exactly
// when the RX ring holds data.
func (u *UART) Poll(ctx interface{}) Flag {
	f := Writable
	if u.rx.ready() {
		f |= Readable
	}
	return f
}

// Close implements Ops as a no-op.
func (u *UART) Close(ctx interface{}) {}
