// Package system wires the kernel's subsystems into a single process-wide
// context, matching the Design Notes' "expose a 'kernel context' root so
// tests can instantiate multiple independent cores": every global
// singleton the spec describes (heap, page watermark, descriptor table,
// ENF pool, CFS run queue, file store) lives on one Kernel value instead
// of as package-level state, so a test can build as many independent
// kernels as it needs.
package system

import (
	"github.com/fru1t-labs/coreos/descriptor"
	"github.com/fru1t-labs/coreos/enf"
	"github.com/fru1t-labs/coreos/heap"
	"github.com/fru1t-labs/coreos/kernel"
	"github.com/fru1t-labs/coreos/pagealloc"
	"github.com/fru1t-labs/coreos/sched"
	"github.com/fru1t-labs/coreos/vfs"
)

// Kernel is one booted core: its page region, heap, scheduler, descriptor
// table, ENF pool and file store, all built from a single Config.
type Kernel struct {
	Config Config

	Pages       *pagealloc.Region
	Heap        *heap.Heap
	Scheduler   *sched.Scheduler
	Descriptors *descriptor.Table
	ENF         *enf.Pool
	Files       *vfs.FileStore

	log kernel.Logger
}

// Config is the pool-sizing bundle handed to Boot, re-exported from the
// kernel package so callers need only import this one package for the
// common case.
type Config = kernel.Config

// DefaultConfig re-exports kernel.DefaultConfig.
func DefaultConfig() Config { return kernel.DefaultConfig() }

var bootLog = kernel.NewLogger("boot")

// Boot constructs a Kernel from cfg, wiring every subsystem with its own
// component-prefixed logger, matching the source's *_init() boot sequence
// (kernel_init, cfs_init, fd_init, epoll_init, inode_fs_init) condensed
// into one call since Go has no reason to keep them as separate globals.
func Boot(cfg Config) *Kernel {
	k := &Kernel{Config: cfg, log: bootLog}

	k.Pages = pagealloc.NewRegion(cfg.MaxBlocks*pagealloc.PageSize, kernel.NewLogger("pagealloc"))
	k.Heap = heap.New(cfg.HeapBytes, kernel.NewLogger("heap"))
	k.Scheduler = sched.NewScheduler(cfg.MaxTasks, kernel.NewLogger("sched"))
	k.Descriptors = descriptor.NewTable(cfg.MaxDescriptors, kernel.NewLogger("descriptor"))
	k.ENF = enf.NewPool(cfg.MaxENFInstances, k.Descriptors, kernel.NewLogger("enf"))
	k.Files = vfs.New(cfg.MaxInodes, cfg.MaxBlocks, kernel.NewLogger("vfs"))

	k.log.Printf("boot: kernel ready (tasks=%d descriptors=%d enf=%d inodes=%d blocks=%d heap=%dB)",
		cfg.MaxTasks, cfg.MaxDescriptors, cfg.MaxENFInstances, cfg.MaxInodes, cfg.MaxBlocks, cfg.HeapBytes)
	return k
}
