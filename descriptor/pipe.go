package descriptor

// Pipe is an in-memory SPSC byte ring usable as a descriptor-table backend,
// giving ENF tests a pollable fd that doesn't depend on a real TTY. There
// is no source file for this: the source's only descriptor backend is
// UART, so Pipe is built in its idiom directly, reusing the same ring.
type Pipe struct {
	r *ring
}

// NewPipe returns a Pipe backend with a ring of the given capacity.
func NewPipe(capacity int) *Pipe {
	return &Pipe{r: newRing(capacity)}
}

// Feed injects bytes as if written by a peer, useful in tests before Wait.
func (p *Pipe) Feed(buf []byte) int { return p.r.push(buf) }

// Read implements Ops.
func (p *Pipe) Read(ctx interface{}, buf []byte) (int, error) {
	return p.r.pop(buf), nil
}

// Write implements Ops: writes into the same ring future Reads will drain.
func (p *Pipe) Write(ctx interface{}, buf []byte) (int, error) {
	return p.r.push(buf), nil
}

// Poll implements Ops: Readable when data is pending, Writable whenever
// there is spare capacity.
func (p *Pipe) Poll(ctx interface{}) Flag {
	var f Flag
	if p.r.ready() {
		f |= Readable
	}
	if int(p.r.count.Load()) < len(p.r.buf) {
		f |= Writable
	}
	return f
}

// Close implements Ops as a no-op; the ring is simply abandoned.
func (p *Pipe) Close(ctx interface{}) {}
