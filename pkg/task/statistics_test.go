package task

import (
	"errors"
	"fmt"
	"sync"
	"testing"
)

func TestCollectorConservesCounts(t *testing.T) {
	c := &collector{}
	const workers, perWorker = 8, 50
	c.addSubmitted(workers * perWorker)

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < perWorker; i++ {
				target := testTarget(fmt.Sprintf("%d-%d", w, i))
				switch i % 3 {
				case 0:
					c.record(target, success("ok"))
				case 1:
					c.record(target, failed(errors.New("boom")))
				default:
					c.record(target, cancelled(errors.New("closed")))
				}
			}
		}(w)
	}
	wg.Wait()

	stats := c.snapshot()
	total := stats.Succeeded + stats.Failed + stats.Cancelled
	if total != stats.Submitted {
		t.Fatalf("counts leak: %d+%d+%d != %d",
			stats.Succeeded, stats.Failed, stats.Cancelled, stats.Submitted)
	}
	if len(stats.Failures) != stats.Failed {
		t.Fatalf("failures list disagrees with counter: %d != %d", len(stats.Failures), stats.Failed)
	}
	for _, f := range stats.Failures {
		if f.Target == nil || f.Err == nil {
			t.Fatal("failure entry missing target or error")
		}
	}
}

func TestSnapshotIsACopy(t *testing.T) {
	c := &collector{}
	c.addSubmitted(1)
	c.record(testTarget("a"), failed(errors.New("boom")))

	first := c.snapshot()
	first.Failures[0] = Failure{}

	second := c.snapshot()
	if second.Failures[0].Target == nil {
		t.Fatal("mutating a snapshot leaked into the collector")
	}
}
