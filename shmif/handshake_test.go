package shmif

import (
	"io"
	"os"
	"testing"
	"time"
)

func TestAcquireWithBufferingPreservesOrder(t *testing.T) {
	page := newTestPage(t, PageOptions{InitW: 32, InitH: 32})
	srvSock, clSock := testSocketpair(t)
	srv := NewEventQueue(page, ServerToClient, QueueConfig{Socket: srvSock})
	c := NewClientConn(page, clSock, Config{})

	f, err := os.CreateTemp("", "shmif-backlog-*")
	if err != nil {
		t.Fatalf("CreateTemp: %v", err)
	}
	defer os.Remove(f.Name())
	defer f.Close()
	f.WriteString("fonthint")

	// three unrelated events arrive ahead of the awaited reply, one of
	// them carrying a descriptor
	unrelated := []Event{
		{Category: CategoryIO, Kind: IOKey, Handle: -1},
		{Category: CategoryTarget, Kind: TargetFontHint, Handle: int(f.Fd())},
		{Category: CategoryTarget, Kind: TargetMessage, Handle: -1},
	}
	unrelated[0].IVs[0] = 100
	unrelated[1].IVs[0] = 101
	unrelated[2].IVs[0] = 102
	for i := range unrelated {
		if _, err := srv.Enqueue(&unrelated[i], true); err != nil {
			t.Fatalf("enqueue unrelated %d: %v", i, err)
		}
	}
	reply := Event{Category: CategoryTarget, Kind: TargetRequestFail, Handle: -1}
	reply.IVs[0] = 7
	if _, err := srv.Enqueue(&reply, true); err != nil {
		t.Fatalf("enqueue reply: %v", err)
	}

	got, backlog, err := c.AcquireWithBuffering(func(ev *Event) bool {
		return ev.Kind == TargetRequestFail && ev.IVs[0] == 7
	})
	if err != nil {
		t.Fatalf("AcquireWithBuffering: %v", err)
	}
	if got.Kind != TargetRequestFail || got.IVs[0] != 7 {
		t.Fatalf("reply: got %s", got.String())
	}

	if len(backlog) != 3 {
		t.Fatalf("backlog length: got %d want 3", len(backlog))
	}
	for i, want := range []int32{100, 101, 102} {
		if backlog[i].IVs[0] != want {
			t.Errorf("backlog[%d]: got ivs[0]=%d want %d", i, backlog[i].IVs[0], want)
		}
	}

	// the buffered descriptor survived intact
	if backlog[1].Handle < 0 {
		t.Fatal("buffered descriptor lost")
	}
	rf := os.NewFile(uintptr(backlog[1].Handle), "buffered")
	rf.Seek(0, io.SeekStart)
	buf := make([]byte, 8)
	if _, err := io.ReadFull(rf, buf); err != nil || string(buf) != "fonthint" {
		t.Errorf("buffered descriptor contents: %q err=%v", buf, err)
	}
	rf.Close()
	backlog[1].Handle = -1

	CloseBacklog(backlog)
}

func TestCloseBacklogClosesCarriedDescriptors(t *testing.T) {
	f, err := os.CreateTemp("", "shmif-close-*")
	if err != nil {
		t.Fatalf("CreateTemp: %v", err)
	}
	defer os.Remove(f.Name())

	fd, err := DupFD(int(f.Fd()), -1, true)
	if err != nil {
		t.Fatalf("DupFD: %v", err)
	}
	f.Close()

	evs := []Event{
		{Category: CategoryTarget, Kind: TargetFontHint, Handle: fd},
		{Category: CategoryIO, Kind: IOKey, Handle: -1},
	}
	CloseBacklog(evs)
	if evs[0].Handle != -1 {
		t.Error("handle not cleared after close")
	}
	// a second close pass must be a no-op
	CloseBacklog(evs)
}

func TestAcquireWithBufferingTerminal(t *testing.T) {
	page := newTestPage(t, PageOptions{InitW: 32, InitH: 32})
	c := NewClientConn(page, nil, Config{})

	go func() {
		time.Sleep(50 * time.Millisecond)
		page.SetAlive(false)
		page.WakeWaiters()
	}()

	done := make(chan error, 1)
	go func() {
		_, _, err := c.AcquireWithBuffering(func(*Event) bool { return false })
		done <- err
	}()

	select {
	case err := <-done:
		if err != ErrTerminal {
			t.Fatalf("acquire on dying connection: got %v want ErrTerminal", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("acquire not released by connection death")
	}
}

func TestAcquireSegmentRejected(t *testing.T) {
	page := newTestPage(t, PageOptions{InitW: 32, InitH: 32})
	srvSock, clSock := testSocketpair(t)
	c := NewClientConn(page, clSock, Config{})

	// server side: answer the request with a rejection
	go func() {
		in := NewEventQueue(page, ClientToServer, QueueConfig{Socket: srvSock})
		out := NewEventQueue(page, ServerToClient, QueueConfig{Socket: srvSock})
		var ev Event
		for {
			if st := in.Poll(&ev); st == PollEvent && ev.Kind == ExternalSegReq {
				break
			}
			time.Sleep(time.Millisecond)
		}
		fail := Event{Category: CategoryTarget, Kind: TargetRequestFail, Handle: -1}
		fail.IVs[0] = ev.IVs[0]
		out.Enqueue(&fail, true)
	}()

	done := make(chan error, 1)
	go func() {
		_, backlog, err := c.AcquireSegment(42, 64, 64, SegIDPopup, Config{})
		CloseBacklog(backlog)
		done <- err
	}()

	select {
	case err := <-done:
		if err != ErrSegmentRejected {
			t.Fatalf("rejected segment request: got %v want ErrSegmentRejected", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("segment rejection never observed")
	}
}
