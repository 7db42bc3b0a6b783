package resilience

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestSingleFlight_CollapsesProbes(t *testing.T) {
	var g SingleFlight[bool]
	var pings int32
	var shared int32

	const workers = 20
	start := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(workers)

	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			<-start
			ok, err, dup := g.Do("lock:health", func() (bool, error) {
				atomic.AddInt32(&pings, 1)
				time.Sleep(20 * time.Millisecond)
				return true, nil
			})
			if err != nil || !ok {
				t.Errorf("probe failed: ok=%v err=%v", ok, err)
			}
			if dup {
				atomic.AddInt32(&shared, 1)
			}
		}()
	}

	close(start)
	wg.Wait()

	if got := atomic.LoadInt32(&pings); got != 1 {
		t.Fatalf("expected one backend ping, got %d", got)
	}
	if got := atomic.LoadInt32(&shared); got+atomic.LoadInt32(&pings) != workers {
		t.Fatalf("expected every other caller to share the result, shared=%d", got)
	}
}
