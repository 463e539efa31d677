package sched

import (
	"testing"

	"github.com/fru1t-labs/coreos/internal/ktestutil"
	"github.com/fru1t-labs/coreos/rbtree"
)

// runQueueSnapshot dumps a run queue's PIDs in vruntime order, for
// structural-diff comparison across enqueue/dequeue rather than field-by-
// field assertions.
func runQueueSnapshot(rq *RunQueue) []int {
	var pids []int
	for n := rbtree.First(rq.tree.Root); n != nil; n = rbtree.Next(n) {
		pids = append(pids, n.Owner.PID)
	}
	return pids
}

func TestNiceToWeightEndpointsAndClamp(t *testing.T) {
	if w := NiceToWeight(0); w != 1024 {
		t.Fatalf("NiceToWeight(0) = %d, want 1024", w)
	}
	if w := NiceToWeight(5); w != 335 {
		t.Fatalf("NiceToWeight(5) = %d, want 335", w)
	}
	if w := NiceToWeight(-5); w != 3121 {
		t.Fatalf("NiceToWeight(-5) = %d, want 3121", w)
	}
	if w := NiceToWeight(-100); w != NiceToWeight(NiceMin) {
		t.Fatalf("NiceToWeight(-100) did not clamp to nice %d", NiceMin)
	}
	if w := NiceToWeight(100); w != NiceToWeight(NiceMax) {
		t.Fatalf("NiceToWeight(100) did not clamp to nice %d", NiceMax)
	}
}

func TestCreateProcessExhaustion(t *testing.T) {
	s := NewScheduler(2, nil)
	if _, err := s.CreateProcess(0); err != nil {
		t.Fatalf("create 1: %v", err)
	}
	if _, err := s.CreateProcess(0); err != nil {
		t.Fatalf("create 2: %v", err)
	}
	if _, err := s.CreateProcess(0); err == nil {
		t.Fatalf("create 3 succeeded on an exhausted task table, want capacity error")
	}
}

func TestRunQueueInvariantsAcrossEnqueueDequeue(t *testing.T) {
	s := NewScheduler(8, nil)
	var tasks []*Task
	for _, nice := range []int{0, 5, -5, 10, -10} {
		task, err := s.CreateProcess(nice)
		if err != nil {
			t.Fatalf("create: %v", err)
		}
		tasks = append(tasks, task)
	}
	assertRunQueueInvariants(t, s.RunQueue())
	before := runQueueSnapshot(s.RunQueue())

	s.RunQueue().Dequeue(tasks[2])
	assertRunQueueInvariants(t, s.RunQueue())

	s.RunQueue().Enqueue(tasks[2])
	assertRunQueueInvariants(t, s.RunQueue())

	// Every task entered at the same vruntime, and Enqueue places an equal
	// vruntime to the right of existing nodes, so the re-enqueued task now
	// comes last in tree order while the others keep their order.
	var want []int
	for _, pid := range before {
		if pid != tasks[2].PID {
			want = append(want, pid)
		}
	}
	want = append(want, tasks[2].PID)

	after := runQueueSnapshot(s.RunQueue())
	if diff := ktestutil.Diff(want, after); diff != "" {
		t.Fatalf("run queue snapshot after dequeue+enqueue (-want +got):\n%s", diff)
	}
}

func TestMinVRuntimeNonDecreasing(t *testing.T) {
	s := NewScheduler(4, nil)
	for _, nice := range []int{0, 5, -5} {
		if _, err := s.CreateProcess(nice); err != nil {
			t.Fatalf("create: %v", err)
		}
	}

	rq := s.RunQueue()
	prev := rq.MinVRuntime()
	now := uint64(0)
	for i := 0; i < 500; i++ {
		now += 2_000_000
		rq.Tick(now)
		if rq.MinVRuntime() < prev {
			t.Fatalf("min_vruntime decreased: %d -> %d", prev, rq.MinVRuntime())
		}
		prev = rq.MinVRuntime()
	}
}

// TestS3Fairness implements scenario S3: three tasks at nice 0, 5, -5 (weights
// 1024, 335, 3121); after many ticks each has been scheduled at least three
// times and sum_exec_runtime ratios approximate the weight ratios.
func TestS3Fairness(t *testing.T) {
	s := NewScheduler(4, nil)
	n0, err := s.CreateProcess(0)
	if err != nil {
		t.Fatalf("create nice=0: %v", err)
	}
	n5, err := s.CreateProcess(5)
	if err != nil {
		t.Fatalf("create nice=5: %v", err)
	}
	nNeg5, err := s.CreateProcess(-5)
	if err != nil {
		t.Fatalf("create nice=-5: %v", err)
	}

	if n0.Weight != 1024 || n5.Weight != 335 || nNeg5.Weight != 3121 {
		t.Fatalf("weights = %d,%d,%d; want 1024,335,3121", n0.Weight, n5.Weight, nNeg5.Weight)
	}

	rq := s.RunQueue()
	scheduledIn := map[int]int{}
	now := uint64(0)
	const tickNs = 500_000 // 0.5ms per tick, well under MIN_GRANULARITY
	for i := 0; i < 200_000; i++ {
		now += tickNs
		before := rq.Current()
		rq.Tick(now)
		after := rq.Current()
		if after != nil && after != before {
			scheduledIn[after.PID]++
		}
	}

	for _, task := range []*Task{n0, n5, nNeg5} {
		if scheduledIn[task.PID] < 3 {
			t.Fatalf("task %d (nice %d) scheduled in only %d times, want >= 3", task.PID, task.Nice, scheduledIn[task.PID])
		}
	}

	ratio := func(a, b *Task) float64 {
		return float64(a.SumExecRuntime) / float64(b.SumExecRuntime)
	}
	wantRatio := func(a, b *Task) float64 {
		return float64(a.Weight) / float64(b.Weight)
	}

	for _, pair := range [][2]*Task{{nNeg5, n0}, {n0, n5}, {nNeg5, n5}} {
		got := ratio(pair[0], pair[1])
		want := wantRatio(pair[0], pair[1])
		if got < want*0.9 || got > want*1.1 {
			t.Fatalf("runtime ratio for pids %d/%d = %.3f, want ~%.3f (+-10%%)", pair[0].PID, pair[1].PID, got, want)
		}
	}
}

func assertRunQueueInvariants(t *testing.T, rq *RunQueue) {
	t.Helper()

	var count uint32
	var weight uint64
	var prev uint64
	first := true
	for n := rbtree.First(rq.tree.Root); n != nil; n = rbtree.Next(n) {
		count++
		weight += uint64(n.Owner.Weight)
		if !first && n.Owner.VRuntime < prev {
			t.Fatalf("run queue not ordered by vruntime")
		}
		prev = n.Owner.VRuntime
		first = false
	}

	if count != rq.NrRunning() {
		t.Fatalf("nr_running = %d, want tree cardinality %d", rq.NrRunning(), count)
	}
	if weight != rq.TotalWeight() {
		t.Fatalf("total_weight = %d, want sum of weights %d", rq.TotalWeight(), weight)
	}
}
