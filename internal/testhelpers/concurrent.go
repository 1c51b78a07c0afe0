// Package testhelpers holds shared test utilities: a concurrent scenario
// runner and on-disk fixture builders for component databases and PnP files.
package testhelpers

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

// ConcurrentScenario runs Op from NumGoroutines goroutines, OpsPerGoroutine
// times each.
type ConcurrentScenario struct {
	Name            string
	NumGoroutines   int
	OpsPerGoroutine int
	Op              func(ctx context.Context, goroutineID, opID int) error
	Timeout         time.Duration
}

// OpResult is the outcome of a single operation.
type OpResult struct {
	GoroutineID int
	OpID        int
	Err         error
	Duration    time.Duration
}

// ConcurrentResults aggregates a scenario run.
type ConcurrentResults struct {
	Results       []OpResult
	TotalOps      int64
	SuccessfulOps int64
	FailedOps     int64
	MaxOpTime     time.Duration
	PeakInFlight  int64
}

// RunConcurrent executes scenario and waits for every goroutine.
func RunConcurrent(t testing.TB, scenario ConcurrentScenario) *ConcurrentResults {
	t.Helper()
	t.Logf("Starting concurrent test: %s (%d goroutines, %d ops each)",
		scenario.Name, scenario.NumGoroutines, scenario.OpsPerGoroutine)

	timeout := scenario.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	results := &ConcurrentResults{
		Results: make([]OpResult, 0, scenario.NumGoroutines*scenario.OpsPerGoroutine),
	}
	resultsCh := make(chan OpResult, scenario.NumGoroutines*scenario.OpsPerGoroutine)

	var inFlight int64
	start := make(chan struct{})
	var wg sync.WaitGroup
	for i := 0; i < scenario.NumGoroutines; i++ {
		wg.Add(1)
		go func(goroutineID int) {
			defer wg.Done()
			<-start
			for j := 0; j < scenario.OpsPerGoroutine; j++ {
				n := atomic.AddInt64(&inFlight, 1)
				for {
					peak := atomic.LoadInt64(&results.PeakInFlight)
					if n <= peak || atomic.CompareAndSwapInt64(&results.PeakInFlight, peak, n) {
						break
					}
				}

				began := time.Now()
				err := scenario.Op(ctx, goroutineID, j)
				atomic.AddInt64(&inFlight, -1)

				resultsCh <- OpResult{GoroutineID: goroutineID, OpID: j, Err: err, Duration: time.Since(began)}
			}
		}(i)
	}
	close(start)
	wg.Wait()
	close(resultsCh)

	for r := range resultsCh {
		results.Results = append(results.Results, r)
		if r.Duration > results.MaxOpTime {
			results.MaxOpTime = r.Duration
		}
		if r.Err == nil {
			results.SuccessfulOps++
		} else {
			results.FailedOps++
		}
	}
	results.TotalOps = int64(len(results.Results))

	t.Logf("Concurrent test completed: %s - Total: %d, Success: %d, Failed: %d, Peak in flight: %d",
		scenario.Name, results.TotalOps, results.SuccessfulOps, results.FailedOps, results.PeakInFlight)
	return results
}

// AssertAllSucceeded fails t when any operation returned an error.
func AssertAllSucceeded(t testing.TB, results *ConcurrentResults) {
	t.Helper()
	if results.TotalOps == 0 {
		t.Fatal("No operations were executed")
	}
	for _, r := range results.Results {
		if r.Err != nil {
			t.Errorf("goroutine %d op %d: %v", r.GoroutineID, r.OpID, r.Err)
		}
	}
}
