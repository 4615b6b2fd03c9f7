package shmif

import (
	"bytes"
	"testing"
	"time"
)

func TestAudioOverflowDropsOldest(t *testing.T) {
	page := newTestPage(t, PageOptions{InitW: 32, InitH: 32, AudioCapacity: 8192})
	c := newTestConn(t, page, Config{})

	old := make([]byte, 8000)
	for i := range old {
		old[i] = byte(i % 251)
	}
	c.QueueAudio(old)
	if got := page.AudioUsed(); got != 8000 {
		t.Fatalf("used after prefill: got %d want 8000", got)
	}

	fresh := make([]byte, 400)
	for i := range fresh {
		fresh[i] = 0xAB
	}
	c.QueueAudio(fresh)

	if got := page.AudioUsed(); got != 8192 {
		t.Fatalf("used after overflow: got %d want 8192", got)
	}

	// 8000+400-8192 = 208 oldest bytes dropped: the ring holds the last
	// 7792 pre-existing bytes followed by the new 400
	buf := page.AudioBuffer()
	if !bytes.Equal(buf[:7792], old[208:]) {
		t.Error("retained bytes are not the newest pre-existing bytes")
	}
	if !bytes.Equal(buf[7792:8192], fresh) {
		t.Error("new batch not appended after retained bytes")
	}
}

func TestAudioBatchLargerThanCapacityKeepsTail(t *testing.T) {
	page := newTestPage(t, PageOptions{InitW: 32, InitH: 32, AudioCapacity: 4096})
	c := newTestConn(t, page, Config{})

	batch := make([]byte, 10000)
	for i := range batch {
		batch[i] = byte(i % 253)
	}
	c.QueueAudio(batch)

	if got := page.AudioUsed(); got != 4096 {
		t.Fatalf("used: got %d want 4096", got)
	}
	if !bytes.Equal(page.AudioBuffer()[:4096], batch[10000-4096:]) {
		t.Error("ring does not hold the batch tail")
	}
}

func TestAudioQueueNoOverflowAppends(t *testing.T) {
	page := newTestPage(t, PageOptions{InitW: 32, InitH: 32, AudioCapacity: 4096})
	c := newTestConn(t, page, Config{})

	c.QueueAudio([]byte{1, 2, 3})
	c.QueueAudio([]byte{4, 5})
	if got := page.AudioUsed(); got != 5 {
		t.Fatalf("used: got %d want 5", got)
	}
	if !bytes.Equal(page.AudioBuffer()[:5], []byte{1, 2, 3, 4, 5}) {
		t.Errorf("ring contents: %v", page.AudioBuffer()[:5])
	}
}

func TestSignalAudioBlocksUntilConsumed(t *testing.T) {
	page := newTestPage(t, PageOptions{InitW: 32, InitH: 32, AudioCapacity: 4096})
	c := newTestConn(t, page, Config{})
	activateConn(t, c, page)

	c.QueueAudio([]byte{9, 9, 9, 9})

	done := make(chan error, 1)
	go func() { done <- c.SignalAudio() }()

	select {
	case err := <-done:
		t.Fatalf("SignalAudio returned before consumption: %v", err)
	case <-time.After(100 * time.Millisecond):
	}
	if !page.AudioReady() {
		t.Fatal("aready not raised by SignalAudio")
	}

	// consumer drains and releases
	page.SetAudioUsed(0)
	page.SetAudioReady(false)
	page.PostAudioGate()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("SignalAudio: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("SignalAudio still blocked after gate post")
	}
}

func TestSignalAudioRequiresActive(t *testing.T) {
	page := newTestPage(t, PageOptions{InitW: 32, InitH: 32})
	c := newTestConn(t, page, Config{})
	if err := c.SignalAudio(); err != ErrNotActive {
		t.Fatalf("SignalAudio in preroll: got %v want ErrNotActive", err)
	}
}
