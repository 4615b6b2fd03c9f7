//go:build linux

package shmif

import (
	"sync/atomic"
	"testing"
	"time"
)

func TestFutexWaitTimesOut(t *testing.T) {
	var word uint32 = 7
	start := time.Now()
	if err := futexWait(&word, 7, (20 * time.Millisecond).Nanoseconds()); err != errFutexTimeout {
		t.Fatalf("futexWait: got %v want errFutexTimeout", err)
	}
	if time.Since(start) < 20*time.Millisecond {
		t.Error("futexWait returned before the timeout elapsed")
	}
}

func TestFutexWaitStaleValueReturnsImmediately(t *testing.T) {
	var word uint32 = 7
	if err := futexWait(&word, 8, 0); err != nil {
		t.Fatalf("futexWait with stale value: %v", err)
	}
}

func TestFutexWakeReleasesWaiter(t *testing.T) {
	var word uint32
	done := make(chan error, 1)
	go func() { done <- futexWait(&word, 0, (5 * time.Second).Nanoseconds()) }()

	time.Sleep(20 * time.Millisecond)
	atomic.StoreUint32(&word, 1)
	if _, err := futexWake(&word, 1); err != nil {
		t.Fatalf("futexWake: %v", err)
	}

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("woken wait: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("waiter not released by wake")
	}
}
