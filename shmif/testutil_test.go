package shmif

import (
	"fmt"
	"net"
	"os"
	"sync/atomic"
	"testing"

	"golang.org/x/sys/unix"
)

var testPageSeq uint64

// newTestPage creates a uniquely named page and registers cleanup.
func newTestPage(t *testing.T, opts PageOptions) *Page {
	t.Helper()
	name := fmt.Sprintf("test_%d_%d", os.Getpid(), atomic.AddUint64(&testPageSeq, 1))
	page, err := CreatePage(name, opts)
	if err != nil {
		t.Fatalf("CreatePage: %v", err)
	}
	t.Cleanup(func() { page.Close() })
	return page
}

// testSocketpair returns both ends of a connected unix stream pair.
func testSocketpair(t *testing.T) (*net.UnixConn, *net.UnixConn) {
	t.Helper()
	fds, err := unix.Socketpair(unix.AF_UNIX, unix.SOCK_STREAM, 0)
	if err != nil {
		t.Fatalf("socketpair: %v", err)
	}
	wrap := func(fd int, name string) *net.UnixConn {
		f := os.NewFile(uintptr(fd), name)
		conn, err := net.FileConn(f)
		f.Close()
		if err != nil {
			t.Fatalf("FileConn: %v", err)
		}
		return conn.(*net.UnixConn)
	}
	a := wrap(fds[0], "pair-a")
	b := wrap(fds[1], "pair-b")
	t.Cleanup(func() {
		a.Close()
		b.Close()
	})
	return a, b
}

// newTestConn assembles a registered client connection over the page with
// no socket attached.
func newTestConn(t *testing.T, page *Page, cfg Config) *Conn {
	t.Helper()
	c := NewClientConn(page, nil, cfg)
	if err := c.Register(); err != nil {
		t.Fatalf("Register: %v", err)
	}
	return c
}

// activateConn pushes the server's activation command through the
// connection's incoming queue and consumes it.
func activateConn(t *testing.T, c *Conn, page *Page) {
	t.Helper()
	srv := NewEventQueue(page, ServerToClient, QueueConfig{})
	ev := Event{Category: CategoryTarget, Kind: TargetActivate, Handle: -1}
	if _, err := srv.Enqueue(&ev, true); err != nil {
		t.Fatalf("enqueue activate: %v", err)
	}
	var got Event
	if st := c.Poll(&got); st != PollEvent {
		t.Fatalf("poll activate: got %d", st)
	}
	if c.State() != StateActive {
		t.Fatalf("state after activate: %v", c.State())
	}
}
