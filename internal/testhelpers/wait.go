package testhelpers

import (
	"testing"
	"time"

	"go.uber.org/goleak"
)

// WaitFor polls condition every 10ms and fails t if it is still false after
// timeout.
//
//	testhelpers.WaitFor(t, func() bool {
//	    return w.GetStats().IsActive
//	}, time.Second)
func WaitFor(t testing.TB, condition func() bool, timeout time.Duration) {
	t.Helper()

	deadline := time.Now().Add(timeout)
	ticker := time.NewTicker(10 * time.Millisecond)
	defer ticker.Stop()

	for range ticker.C {
		if condition() {
			return
		}
		if time.Now().After(deadline) {
			t.Fatalf("Condition not met within %v", timeout)
			return
		}
	}
}

// AssertNoLeaks reports goroutines still running apart from those present
// when the test binary started. Call it deferred at the top of a test.
func AssertNoLeaks(t testing.TB) {
	t.Helper()
	if err := goleak.Find(); err != nil {
		t.Errorf("Goroutine leak detected: %v", err)
	}
}
