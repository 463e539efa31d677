// Package enf is the event notification facility: a readiness-polled,
// level-triggered multiplexer ported from the source's epoll.c/epoll.h. An
// instance keeps an interest set of descriptors in an rbtree keyed by
// descriptor number; Wait refreshes readiness by polling every interested
// descriptor in ascending key order and reports those whose readiness
// intersects their interest.
package enf

import (
	"fmt"

	"github.com/fru1t-labs/coreos/descriptor"
	"github.com/fru1t-labs/coreos/kernel"
	"github.com/fru1t-labs/coreos/rbtree"
	"github.com/pkg/errors"
)

// MaxInstances is the fixed pool size, matching MAX_EPOLL_INSTANCES.
const MaxInstances = 16

// Event is an ENF event bit, compatible with Linux epoll's EPOLLIN et al.
type Event uint32

const (
	In  Event = 0x001
	Out Event = 0x004
	Err Event = 0x008
	Hup Event = 0x010
)

// Op is an enf_ctl operation.
type Op int

const (
	OpAdd Op = iota + 1
	OpDel
	OpMod
)

// Item is one descriptor's entry in an instance's interest tree, matching
// struct epoll_item.
type Item struct {
	fd       int
	interest Event
	userData uint64
	ready    Event

	node rbtree.Node[*Item]
}

// FD returns the descriptor number this item watches.
func (it *Item) FD() int { return it.fd }

// UserData returns the opaque value supplied at ADD/MOD time.
func (it *Item) UserData() uint64 { return it.userData }

// Ready returns the event bits most recently reported by Wait.
func (it *Item) Ready() Event { return it.ready }

// Instance is one ENF instance: an interest tree plus bookkeeping,
// matching struct epoll_instance.
type Instance struct {
	handle   int
	tree     rbtree.Tree[*Item]
	numItems int
	inUse    bool
}

// Handle returns the instance's negative handle.
func (i *Instance) Handle() int { return i.handle }

// Pool is the pool of ENF instances, matching struct epoll_instances / the
// source's global_epoll. Its size is fixed at construction (MaxInstances
// by default, via NewPool), not at compile time, so a kernel.Config can
// size it down or up per instance.
type Pool struct {
	instances []Instance
	fds       *descriptor.Table
	log       kernel.Logger
}

var defaultLog = kernel.NewLogger("enf")

// NewPool returns an ENF pool of size instances, every slot free, polling
// descriptors through fds.
func NewPool(size int, fds *descriptor.Table, log kernel.Logger) *Pool {
	if log == nil {
		log = defaultLog
	}
	return &Pool{instances: make([]Instance, size), fds: fds, log: log}
}

// Create allocates the first free instance slot and returns its negative
// handle -(i+1), distinguishing ENF handles from descriptor numbers.
// size_hint is accepted for call-shape parity and ignored, as in the
// source. Fails with kernel.ErrCapacity if every slot is in use.
func (p *Pool) Create(sizeHint int) (int, error) {
	for i := range p.instances {
		inst := &p.instances[i]
		if !inst.inUse {
			inst.handle = -(i + 1)
			inst.tree = rbtree.Tree[*Item]{}
			inst.numItems = 0
			inst.inUse = true

			p.log.Printf("enf: created instance %d", inst.handle)
			return inst.handle, nil
		}
	}

	p.log.Printf("enf: no free instances")
	return 0, kernel.ErrCapacity
}

// get resolves a handle to its live instance, or nil.
func (p *Pool) get(handle int) *Instance {
	i := -handle - 1
	if i < 0 || i >= len(p.instances) {
		return nil
	}
	inst := &p.instances[i]
	if !inst.inUse || inst.handle != handle {
		return nil
	}
	return inst
}

func findItem(inst *Instance, fd int) *rbtree.Node[*Item] {
	n := inst.tree.Root
	for n != nil {
		switch {
		case fd < n.Owner.fd:
			n = n.Left
		case fd > n.Owner.fd:
			n = n.Right
		default:
			return n
		}
	}
	return nil
}

// Ctl implements ADD/MOD/DEL on handle's interest set for fd, matching
// epoll_ctl. ADD refuses a descriptor already present with
// kernel.ErrAlreadyPresent; MOD/DEL on an absent descriptor return
// kernel.ErrNotFound; an unknown handle or fd returns
// kernel.ErrInvalidHandle.
func (p *Pool) Ctl(handle int, op Op, fd int, interest Event, userData uint64) error {
	inst := p.get(handle)
	if inst == nil {
		p.log.Printf("enf: invalid handle %d", handle)
		return errors.Wrap(kernel.ErrInvalidHandle, fmt.Sprintf("enf ctl on handle %d", handle))
	}
	if p.fds.Get(fd) == nil {
		p.log.Printf("enf: invalid fd %d", fd)
		return errors.Wrap(kernel.ErrInvalidHandle, fmt.Sprintf("enf ctl on fd %d", fd))
	}

	switch op {
	case OpAdd:
		if findItem(inst, fd) != nil {
			p.log.Printf("enf: fd %d already in instance %d", fd, handle)
			return errors.Wrap(kernel.ErrAlreadyPresent, fmt.Sprintf("enf add fd %d on instance %d", fd, handle))
		}

		item := &Item{fd: fd, interest: interest, userData: userData}
		link := &inst.tree.Root
		var parent *rbtree.Node[*Item]
		for *link != nil {
			parent = *link
			if fd < parent.Owner.fd {
				link = &parent.Left
			} else {
				link = &parent.Right
			}
		}
		item.node.Parent = parent
		item.node.Color = rbtree.Red
		item.node.Owner = item
		*link = &item.node
		inst.tree.InsertFixup(&item.node)
		inst.numItems++

		p.log.Printf("enf: added fd %d to instance %d (interest=0x%x)", fd, handle, interest)

	case OpDel:
		n := findItem(inst, fd)
		if n == nil {
			p.log.Printf("enf: fd %d not found in instance %d", fd, handle)
			return errors.Wrap(kernel.ErrNotFound, fmt.Sprintf("enf del fd %d on instance %d", fd, handle))
		}
		inst.tree.Erase(n)
		inst.numItems--

		p.log.Printf("enf: removed fd %d from instance %d", fd, handle)

	case OpMod:
		n := findItem(inst, fd)
		if n == nil {
			p.log.Printf("enf: fd %d not found in instance %d", fd, handle)
			return errors.Wrap(kernel.ErrNotFound, fmt.Sprintf("enf mod fd %d on instance %d", fd, handle))
		}
		n.Owner.interest = interest
		n.Owner.userData = userData

		p.log.Printf("enf: modified fd %d in instance %d (interest=0x%x)", fd, handle, interest)

	default:
		p.log.Printf("enf: invalid operation %d", op)
		return errors.Wrap(kernel.ErrInvalidArgument, fmt.Sprintf("enf ctl op %d", op))
	}

	return nil
}

// fdFlagsToEvents translates descriptor readiness flags to ENF event bits.
func fdFlagsToEvents(flags descriptor.Flag) Event {
	var e Event
	if flags&descriptor.Readable != 0 {
		e |= In
	}
	if flags&descriptor.Writable != 0 {
		e |= Out
	}
	if flags&descriptor.Error != 0 {
		e |= Err
	}
	if flags&descriptor.Hangup != 0 {
		e |= Hup
	}
	return e
}

// pollItems refreshes every item's ready bitset by polling its descriptor,
// masking the result against the item's interest, matching
// epoll_poll_fds.
func (p *Pool) pollItems(inst *Instance) {
	for n := rbtree.First(inst.tree.Root); n != nil; n = rbtree.Next(n) {
		item := n.Owner
		flags := p.fds.Poll(item.fd)
		item.ready = fdFlagsToEvents(flags) & item.interest
	}
}

// Wait refreshes readiness across handle's interest set and collects up to
// maxevents ready items, in ascending descriptor-number order, matching
// epoll_wait. If none are ready and timeout is non-zero, the reference
// semantics (preserved here) is to report "would block" and still return
// zero rather than actually waiting — see the Design Notes' Open Question
// on real blocking.
func (p *Pool) Wait(handle int, maxevents int, timeout int) ([]*Item, error) {
	inst := p.get(handle)
	if inst == nil {
		p.log.Printf("enf: invalid handle %d", handle)
		return nil, errors.Wrap(kernel.ErrInvalidHandle, fmt.Sprintf("enf wait on handle %d", handle))
	}
	if maxevents <= 0 {
		p.log.Printf("enf: invalid maxevents %d", maxevents)
		return nil, errors.Wrap(kernel.ErrInvalidArgument, fmt.Sprintf("enf wait maxevents %d", maxevents))
	}

	p.pollItems(inst)

	var ready []*Item
	for n := rbtree.First(inst.tree.Root); n != nil && len(ready) < maxevents; n = rbtree.Next(n) {
		item := n.Owner
		if item.ready != 0 {
			ready = append(ready, item)
			p.log.Printf("enf: fd %d ready (events=0x%x)", item.fd, item.ready)
		}
	}

	if len(ready) == 0 && timeout != 0 {
		p.log.Printf("enf: no events ready (would block with timeout=%d)", timeout)
	}

	return ready, nil
}

// Close tears down handle: every item is dropped and the instance slot is
// freed for reuse, matching epoll_close.
func (p *Pool) Close(handle int) error {
	inst := p.get(handle)
	if inst == nil {
		p.log.Printf("enf: invalid handle %d", handle)
		return errors.Wrap(kernel.ErrInvalidHandle, fmt.Sprintf("enf close handle %d", handle))
	}

	inst.tree = rbtree.Tree[*Item]{}
	inst.numItems = 0
	inst.inUse = false

	p.log.Printf("enf: closed instance %d", handle)
	return nil
}

// NumItems reports the size of handle's interest set, or 0 for an unknown
// handle.
func (p *Pool) NumItems(handle int) int {
	inst := p.get(handle)
	if inst == nil {
		return 0
	}
	return inst.numItems
}
