/*
 *
 * Copyright 2025 the arcan-shmif-go authors.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 *
 */

package shmifsrv

import (
	"fmt"
	"net"
	"os"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/sys/unix"

	"github.com/lxq2537664558/arcan/internal/logging"
	"github.com/lxq2537664558/arcan/shmif"
)

// Status is the server-side view of one client's lifecycle.
type Status int32

const (
	// StatusReady: authenticated, page handed over, traffic flows.
	StatusReady Status = iota
	// StatusBroken: the client violated the shared page contract; the
	// mapping can no longer be trusted and the client must be freed.
	StatusBroken
	// StatusDead: torn down, locally or by the client.
	StatusDead
)

func (s Status) String() string {
	switch s {
	case StatusReady:
		return "ready"
	case StatusBroken:
		return "broken"
	case StatusDead:
		return "dead"
	}
	return "invalid"
}

// PollResult reports what a Poll pass found. Non-negative values are a
// bitmask of the *Ready flags.
type PollResult int

const (
	// ClientDead: the connection is terminal; Free the client.
	ClientDead PollResult = -1
	// ClientIdle: nothing signalled.
	ClientIdle PollResult = 0
	// ClientVideo: a video frame is signalled and waiting in the page.
	ClientVideo PollResult = 1 << 0
	// ClientAudio: audio bytes are signalled and waiting in the ring.
	ClientAudio PollResult = 1 << 1
)

// Client is the server end of one accepted connection: the owning side of
// the page, the socket the descriptors ride on, and views of both queues.
type Client struct {
	page   *shmif.Page
	sock   *net.UnixConn
	in     *shmif.EventQueue
	out    *shmif.EventQueue
	status int32
	log    *logging.Logger
}

func newClient(page *shmif.Page, sock *net.UnixConn, log *logging.Logger) *Client {
	cl := &Client{
		page: page,
		sock: sock,
		log:  log,
	}
	qcfg := shmif.QueueConfig{
		Socket: sock,
		Dead:   func() bool { return cl.Status() != StatusReady },
	}
	cl.in = shmif.NewEventQueue(page, shmif.ClientToServer, qcfg)
	cl.out = shmif.NewEventQueue(page, shmif.ServerToClient, qcfg)
	return cl
}

// Page exposes the shared page.
func (cl *Client) Page() *shmif.Page { return cl.page }

// Status returns the lifecycle position.
func (cl *Client) Status() Status { return Status(atomic.LoadInt32(&cl.status)) }

func (cl *Client) setStatus(s Status) { atomic.StoreInt32(&cl.status, int32(s)) }

// Alive reports whether the client can still carry traffic.
func (cl *Client) Alive() bool {
	return cl.Status() == StatusReady && cl.page.Alive()
}

// Poll inspects the shared page without blocking. Pending resize
// negotiation is resolved before buffer flags are considered, so a frame
// signalled for superseded geometry is never surfaced.
func (cl *Client) Poll() PollResult {
	if cl.Status() != StatusReady {
		return ClientDead
	}
	if !cl.page.Alive() {
		cl.setStatus(StatusDead)
		return ClientDead
	}

	if cl.page.Resized() {
		if err := cl.Resynch(); err != nil {
			cl.log.Warnf("resize rejected: %v", err)
			cl.setStatus(StatusBroken)
			return ClientDead
		}
		return ClientIdle
	}

	res := ClientIdle
	if cl.page.VideoReady() {
		res |= ClientVideo
	}
	if cl.page.AudioReady() {
		res |= ClientAudio
	}
	return res
}

// Resynch acknowledges a pending resize request. Geometry is validated
// against the page's negotiated bounds; in-bounds requests commit (the
// buffer regions are laid out for the maxima, so no remap is needed) and
// the producer blocked on the handshake is released. A stale frame signal
// for the old geometry is discarded as part of the commit.
func (cl *Client) Resynch() error {
	w, h := cl.page.Width(), cl.page.Height()
	if w == 0 || h == 0 || w > cl.page.MaxWidth() || h > cl.page.MaxHeight() {
		return errors.Errorf("geometry %dx%d outside negotiated bounds %dx%d",
			w, h, cl.page.MaxWidth(), cl.page.MaxHeight())
	}

	cl.page.SetVideoReady(false)
	cl.page.SetResized(false)
	cl.page.PostVideoGate()
	cl.log.Debugf("resized to %dx%d (type %d)", w, h, cl.page.ResizeType())
	return nil
}

// DequeueEvents drains pending client events into dst, returning the
// count. The shared indices are sanity checked first: a client that has
// scribbled an out-of-range distance into its producer index is marked
// broken instead of being trusted.
func (cl *Client) DequeueEvents(dst []shmif.Event) int {
	if cl.Status() != StatusReady {
		return 0
	}
	if cl.in.Used() > shmif.QueueSize {
		cl.log.Warnf("event queue indices corrupt, marking client broken")
		cl.setStatus(StatusBroken)
		return 0
	}

	n := 0
	for n < len(dst) {
		st := cl.in.Poll(&dst[n])
		if st == shmif.PollTerminal && cl.in.Failed() {
			cl.log.Warnf("descriptor stream desynced, marking client broken")
			cl.setStatus(StatusBroken)
			break
		}
		if st != shmif.PollEvent {
			break
		}
		n++
	}
	return n
}

// Enqueue submits a control event to the client, blocking if its queue is
// full. Server-to-client traffic is low-frequency control flow, so the
// lossless policy is the default here.
func (cl *Client) Enqueue(ev *shmif.Event) error {
	if cl.Status() != StatusReady {
		return shmif.ErrTerminal
	}
	_, err := cl.out.Enqueue(ev, true)
	return err
}

// TryEnqueue submits without blocking (drop-newest on full), for advisory
// traffic the client can afford to miss.
func (cl *Client) TryEnqueue(ev *shmif.Event) error {
	if cl.Status() != StatusReady {
		return shmif.ErrTerminal
	}
	_, err := cl.out.TryEnqueue(ev)
	return err
}

// Activate releases the client from its preroll stage. Call after any
// initial state (density, fonts, language) has been enqueued.
func (cl *Client) Activate() error {
	ev := shmif.Event{
		Category:  shmif.CategoryTarget,
		Kind:      shmif.TargetActivate,
		Timestamp: time.Now().UnixMilli(),
		Handle:    -1,
	}
	return cl.Enqueue(&ev)
}

// RequestExit asks the client to shut down cleanly.
func (cl *Client) RequestExit() error {
	ev := shmif.Event{
		Category:  shmif.CategoryTarget,
		Kind:      shmif.TargetExit,
		Timestamp: time.Now().UnixMilli(),
		Handle:    -1,
	}
	return cl.Enqueue(&ev)
}

// Frame is a consumer's view of one signalled video buffer. Pixels aliases
// the shared mapping and is valid only until the frame is released.
type Frame struct {
	Width  uint32
	Height uint32
	VPTS   uint32
	Pixels []byte
}

// Video returns the currently signalled frame. With step set the frame is
// consumed: the ready flag clears and the producer's gate posts, so the
// returned view must not be touched afterwards. Without step the frame
// stays signalled for a later pass (synch-to-fastest clients).
//
// The geometry fields are client-writable and a frame can be signalled
// without a resize handshake, so they are validated against the negotiated
// bounds on every pass; a violation marks the client broken and returns an
// empty frame.
func (cl *Client) Video(step bool) Frame {
	w, h := cl.page.Width(), cl.page.Height()
	if w == 0 || h == 0 || w > cl.page.MaxWidth() || h > cl.page.MaxHeight() {
		cl.log.Warnf("frame geometry %dx%d outside negotiated bounds, marking client broken", w, h)
		cl.setStatus(StatusBroken)
		return Frame{}
	}
	f := Frame{
		Width:  w,
		Height: h,
		VPTS:   cl.page.VPTS(),
		Pixels: cl.page.VideoBuffer()[:uint64(w)*uint64(h)*shmif.BytesPerPixel],
	}
	if step {
		cl.page.SetVideoReady(false)
		cl.page.PostVideoGate()
	}
	return f
}

// Audio copies the signalled bytes out of the ring into dst, resets the
// ring and releases the producer. Returns the byte count; bytes past
// len(dst) are dropped. The client owns the used counter, so a count past
// the ring capacity marks it broken and returns 0.
func (cl *Client) Audio(dst []byte) int {
	used := cl.page.AudioUsed()
	if used > cl.page.AudioCapacity() {
		cl.log.Warnf("audio ring claims %d of %d bytes, marking client broken",
			used, cl.page.AudioCapacity())
		cl.setStatus(StatusBroken)
		return 0
	}
	n := copy(dst, cl.page.AudioBuffer()[:used])
	cl.page.SetAudioUsed(0)
	cl.page.SetAudioReady(false)
	cl.page.PostAudioGate()
	return n
}

// SendSubsegment allocates a page for an additional segment and pushes it
// to the client, paired with the request id from its segment request. The
// new segment gets a private socketpair so its descriptor stream stays
// isolated from the primary's; the page descriptor travels over that new
// socket while the socket end itself rides the primary's side channel with
// the announcement event.
func (cl *Client) SendSubsegment(reqID uint32, kind uint32, opts shmif.PageOptions) (*Client, error) {
	if cl.Status() != StatusReady {
		return nil, shmif.ErrTerminal
	}

	fds, err := unix.Socketpair(unix.AF_UNIX, unix.SOCK_STREAM|unix.SOCK_CLOEXEC, 0)
	if err != nil {
		return nil, errors.Wrap(err, "segment socketpair")
	}

	srvFile := os.NewFile(uintptr(fds[0]), "shmifsrv-segment")
	conn, err := net.FileConn(srvFile)
	srvFile.Close()
	if err != nil {
		unix.Close(fds[1])
		return nil, errors.Wrap(err, "wrap segment socket")
	}
	srvSock := conn.(*net.UnixConn)

	page, err := shmif.CreatePage(cl.segmentName(reqID), opts)
	if err != nil {
		srvSock.Close()
		unix.Close(fds[1])
		return nil, err
	}
	page.SetSegToken(reqID)

	if err := shmif.SendHandle(srvSock, int(page.File.Fd())); err != nil {
		page.Close()
		srvSock.Close()
		unix.Close(fds[1])
		return nil, err
	}

	ev := shmif.Event{
		Category:  shmif.CategoryTarget,
		Kind:      shmif.TargetNewSegment,
		Timestamp: time.Now().UnixMilli(),
		Handle:    fds[1],
	}
	ev.IVs[0] = int32(reqID)
	ev.IVs[1] = int32(kind)
	err = cl.Enqueue(&ev)
	// the enqueue duplicated the descriptor into the socket buffer
	unix.Close(fds[1])
	if err != nil {
		page.Close()
		srvSock.Close()
		return nil, err
	}

	return newClient(page, srvSock, cl.log), nil
}

// RejectSegmentRequest answers a segment request negatively.
func (cl *Client) RejectSegmentRequest(reqID uint32) error {
	ev := shmif.Event{
		Category:  shmif.CategoryTarget,
		Kind:      shmif.TargetRequestFail,
		Timestamp: time.Now().UnixMilli(),
		Handle:    -1,
	}
	ev.IVs[0] = int32(reqID)
	return cl.Enqueue(&ev)
}

func (cl *Client) segmentName(reqID uint32) string {
	return fmt.Sprintf("sub_%d_%d_%d", os.Getpid(), reqID, atomic.AddUint64(&pageSeq, 1))
}

// Free tears the client down: the dead man's switch drops so the client's
// blocked waits wake into the terminal state, then local resources close.
// Safe to call more than once.
func (cl *Client) Free() {
	if Status(atomic.SwapInt32(&cl.status, int32(StatusDead))) == StatusDead {
		return
	}
	if cl.page != nil && cl.page.Mem != nil {
		cl.page.SetAlive(false)
		cl.page.WakeWaiters()
	}
	if cl.sock != nil {
		cl.sock.Close()
	}
	if cl.page != nil {
		cl.page.Close()
	}
	cl.log.Debugf("client freed")
}
