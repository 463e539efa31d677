package system

import (
	"testing"

	"github.com/fru1t-labs/coreos/descriptor"
	"github.com/fru1t-labs/coreos/kernel"
)

func TestBootWiresEverySubsystem(t *testing.T) {
	k := Boot(DefaultConfig())

	if k.Pages == nil || k.Heap == nil || k.Scheduler == nil || k.Descriptors == nil || k.ENF == nil || k.Files == nil {
		t.Fatalf("Boot left a subsystem nil: %+v", k)
	}

	if _, err := k.Scheduler.CreateProcess(0); err != nil {
		t.Fatalf("create process: %v", err)
	}
	if _, err := k.Files.Create("hello.txt", 1); err != nil {
		t.Fatalf("create file: %v", err)
	}
}

// TestConfigSizesEveryPool checks that Config's descriptor, ENF-instance,
// inode and block pool-size fields actually size the subsystem they name,
// not just the boot trace line. MaxTasks and HeapBytes are not checked
// here.
func TestConfigSizesEveryPool(t *testing.T) {
	cfg := kernel.NewConfig(
		kernel.WithMaxDescriptors(3),
		kernel.WithMaxENFInstances(2),
		kernel.WithMaxInodes(4),
		kernel.WithMaxBlocks(8),
	)
	k := Boot(cfg)

	if got := k.Descriptors.Size(); got != 3 {
		t.Fatalf("descriptor table size = %d, want 3", got)
	}
	if _, err := k.Descriptors.Alloc(descriptor.KindUART, nil, descriptor.NewUART(1)); err != nil {
		t.Fatalf("alloc 1: %v", err)
	}
	if _, err := k.Descriptors.Alloc(descriptor.KindUART, nil, descriptor.NewUART(1)); err != nil {
		t.Fatalf("alloc 2: %v", err)
	}
	if _, err := k.Descriptors.Alloc(descriptor.KindUART, nil, descriptor.NewUART(1)); err != nil {
		t.Fatalf("alloc 3: %v", err)
	}
	if _, err := k.Descriptors.Alloc(descriptor.KindUART, nil, descriptor.NewUART(1)); err == nil {
		t.Fatalf("4th alloc succeeded on a 3-slot table")
	}

	h1, err := k.ENF.Create(0)
	if err != nil {
		t.Fatalf("enf create 1: %v", err)
	}
	if _, err := k.ENF.Create(0); err != nil {
		t.Fatalf("enf create 2: %v", err)
	}
	if _, err := k.ENF.Create(0); err == nil {
		t.Fatalf("3rd enf create succeeded on a 2-instance pool")
	}
	k.ENF.Close(h1)

	stats := k.Files.Stats()
	if stats.TotalInodes != 4 {
		t.Fatalf("total inodes = %d, want 4", stats.TotalInodes)
	}
	if stats.TotalBlocks != 8 {
		t.Fatalf("total blocks = %d, want 8", stats.TotalBlocks)
	}
}

func TestTwoKernelsAreIndependent(t *testing.T) {
	a := Boot(DefaultConfig())
	b := Boot(DefaultConfig())

	if _, err := a.Files.Create("only-in-a.txt", 1); err != nil {
		t.Fatalf("create in a: %v", err)
	}
	if _, err := b.Files.Open("only-in-a.txt"); err == nil {
		t.Fatalf("file created in kernel a is visible in kernel b")
	}
}
