package shmif

import (
	"runtime"
	"testing"
	"time"
)

func TestResizeRejectedBeyondMaximum(t *testing.T) {
	page := newTestPage(t, PageOptions{InitW: 320, InitH: 200, MaxW: 640, MaxH: 480})
	c := newTestConn(t, page, Config{})

	for _, g := range [][2]uint32{{641, 480}, {640, 481}, {0, 480}, {640, 0}} {
		if err := c.ResizeRequest(g[0], g[1], ResizeGeometry); err != ErrResizeRejected {
			t.Errorf("resize to %dx%d: got %v want ErrResizeRejected", g[0], g[1], err)
		}
	}
	if page.Resized() {
		t.Error("rejected resize left the flag raised")
	}
}

func TestResizeWhilePending(t *testing.T) {
	page := newTestPage(t, PageOptions{InitW: 320, InitH: 200, MaxW: 640, MaxH: 480})
	c := newTestConn(t, page, Config{})
	page.SetResized(true)
	if err := c.ResizeRequest(400, 300, ResizeGeometry); err != ErrResizePending {
		t.Fatalf("resize with outstanding handshake: got %v want ErrResizePending", err)
	}
}

func TestResizeHandshake(t *testing.T) {
	page := newTestPage(t, PageOptions{InitW: 320, InitH: 200, MaxW: 640, MaxH: 480})
	c := newTestConn(t, page, Config{})

	// consumer side: acknowledge the resize once observed
	ack := make(chan [2]uint32, 1)
	go func() {
		deadline := time.Now().Add(5 * time.Second)
		for !page.Resized() {
			if time.Now().After(deadline) {
				return
			}
			time.Sleep(time.Millisecond)
		}
		ack <- [2]uint32{page.Width(), page.Height()}
		page.SetResized(false)
		page.PostVideoGate()
	}()

	if err := c.ResizeRequest(512, 384, ResizeGeometry); err != nil {
		t.Fatalf("ResizeRequest: %v", err)
	}
	if page.Resized() {
		t.Error("flag still raised after handshake completion")
	}

	select {
	case g := <-ack:
		if g[0] != 512 || g[1] != 384 {
			t.Errorf("consumer observed %dx%d, want 512x384", g[0], g[1])
		}
	case <-time.After(time.Second):
		t.Fatal("consumer never observed the resize")
	}
	if page.ResizeType() != uint32(ResizeGeometry) {
		t.Errorf("resize type: got %d want %d", page.ResizeType(), ResizeGeometry)
	}
}

// Geometry writes happen before the flag; a consumer that observes the
// flag must never read a torn width/height pair.
func TestResizeGeometryNeverTorn(t *testing.T) {
	page := newTestPage(t, PageOptions{InitW: 16, InitH: 23, MaxW: 600, MaxH: 607})
	c := newTestConn(t, page, Config{})

	const rounds = 200
	errs := make(chan string, 1)
	go func() {
		deadline := time.Now().Add(10 * time.Second)
		seen := 0
		for seen < rounds && time.Now().Before(deadline) {
			if !page.Resized() {
				runtime.Gosched()
				continue
			}
			w, h := page.Width(), page.Height()
			if h != w+7 {
				select {
				case errs <- "torn geometry observed":
				default:
				}
			}
			seen++
			page.SetResized(false)
			page.PostVideoGate()
		}
		close(errs)
	}()

	for i := 0; i < rounds; i++ {
		w := uint32(16 + i)
		if err := c.ResizeRequest(w, w+7, ResizeGeometry); err != nil {
			t.Fatalf("round %d: %v", i, err)
		}
	}

	if msg, bad := <-errs; bad {
		t.Fatal(msg)
	}
}

func TestResizeOnDeadConnection(t *testing.T) {
	page := newTestPage(t, PageOptions{InitW: 320, InitH: 200})
	c := newTestConn(t, page, Config{})
	c.Drop()
	if err := c.ResizeRequest(100, 100, ResizeGeometry); err != ErrTerminal {
		t.Fatalf("resize on dead connection: got %v want ErrTerminal", err)
	}
}
