package shmifsrv

import (
	"testing"
	"time"
)

func TestTickerStep(t *testing.T) {
	tk := NewTicker()
	if n := tk.Step(); n != 0 {
		t.Fatalf("immediate step: got %d want 0", n)
	}

	// four intervals in the past yields four ticks
	tk.base = time.Now().Add(-4 * TickInterval)
	tk.ticks = 0
	if n := tk.Step(); n != 4 {
		t.Fatalf("step after 4 intervals: got %d want 4", n)
	}
	if n := tk.Step(); n != 0 {
		t.Fatalf("second step without elapsed time: got %d want 0", n)
	}
}

func TestTickerClampsLargeGap(t *testing.T) {
	tk := NewTicker()
	tk.base = time.Now().Add(-time.Hour)
	if n := tk.Step(); n != 1 {
		t.Fatalf("step after suspend-sized gap: got %d want 1", n)
	}
	// rebase happened; the next step starts fresh
	if n := tk.Step(); n != 0 {
		t.Fatalf("step after clamp rebase: got %d want 0", n)
	}
}

func TestTickerBackwardClock(t *testing.T) {
	tk := NewTicker()
	tk.ticks = 1000
	if n := tk.Step(); n != 0 {
		t.Fatalf("step with counted ticks ahead of the clock: got %d want 0", n)
	}
}
