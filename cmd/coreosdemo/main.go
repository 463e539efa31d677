// Command coreosdemo boots an in-memory kernel and runs a scripted
// exercise of every subsystem, printing trace lines as it goes — the
// same "boot log" texture the source's own main() produces.
package main

import (
	"fmt"

	"github.com/fru1t-labs/coreos/descriptor"
	"github.com/fru1t-labs/coreos/enf"
	"github.com/fru1t-labs/coreos/system"
	"github.com/fru1t-labs/coreos/vfs"
)

func main() {
	printMountBanner()

	k := system.Boot(system.DefaultConfig())

	fmt.Println("--- scheduler ---")
	n0, _ := k.Scheduler.CreateProcess(0)
	n5, _ := k.Scheduler.CreateProcess(5)
	rq := k.Scheduler.RunQueue()
	var now uint64
	for i := 0; i < 10; i++ {
		now += 500_000
		rq.Tick(now)
	}
	fmt.Printf("task %d sum_exec=%d, task %d sum_exec=%d\n",
		n0.PID, n0.SumExecRuntime, n5.PID, n5.SumExecRuntime)

	fmt.Println("--- descriptor + enf ---")
	uartFD, _ := k.Descriptors.Alloc(descriptor.KindUART, nil, descriptor.NewUART(64))
	handle, _ := k.ENF.Create(0)
	k.ENF.Ctl(handle, enf.OpAdd, uartFD, enf.In|enf.Out, 7)
	events, _ := k.ENF.Wait(handle, 10, 0)
	fmt.Printf("enf wait: %d ready event(s)\n", len(events))

	fmt.Println("--- file store ---")
	k.Files.Create("hello.txt", vfs.TypeFile)
	k.Files.WriteFile("hello.txt", []byte("hello from coreos"))
	buf := make([]byte, 64)
	n, _ := k.Files.ReadFile("hello.txt", buf)
	fmt.Printf("read back %q\n", buf[:n])

	fmt.Println("--- heap ---")
	p, _ := k.Heap.Allocate(128)
	k.Heap.Free(p)
	fmt.Println("heap round-trip ok")

	fmt.Println("boot sequence complete")
}
