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

package shmif

import (
	"net"
	"os"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
)

// Backlog growth is bounded; past this the buffering path reports
// ErrBufferingOOM and the connection must be dropped, since buffered
// descriptor-carrying events cannot be discarded without leaking.
const maxAcquireBacklog = 4096

// RequestSegment asks the server for an additional segment. reqID pairs the
// eventual NewSegment/RequestFail reply with this request.
func (c *Conn) RequestSegment(reqID, w, h, kind uint32) error {
	ev := Event{
		Category:  CategoryExternal,
		Kind:      ExternalSegReq,
		Timestamp: time.Now().UnixMilli(),
		Handle:    -1,
	}
	ev.IVs[0] = int32(reqID)
	ev.IVs[1] = int32(w)
	ev.IVs[2] = int32(h)
	ev.IVs[3] = int32(kind)
	_, err := c.Enqueue(&ev, true)
	return err
}

// AcquireWithBuffering blocks until an incoming event satisfies want. All
// other events arriving first - including descriptor-carrying ones, whose
// descriptors would otherwise leak or be silently lost - are captured into
// a backlog in arrival order and returned alongside the reply. The caller
// must replay the backlog and close any carried descriptor it does not
// consume (CloseBacklog helps).
//
// Error cases: ErrTerminal when the connection died while waiting (the
// backlog has been cleaned up); ErrBufferingOOM when the backlog could not
// grow - the only path where buffered events are lost, and connection-fatal
// because the descriptor/record streams can no longer be trusted.
func (c *Conn) AcquireWithBuffering(want func(*Event) bool) (Event, []Event, error) {
	var backlog []Event
	for {
		var ev Event
		if err := c.Wait(0, &ev); err != nil {
			CloseBacklog(backlog)
			return Event{}, nil, err
		}
		if want(&ev) {
			return ev, backlog, nil
		}
		if len(backlog) >= maxAcquireBacklog {
			CloseBacklog(backlog)
			c.Drop()
			return Event{}, nil, ErrBufferingOOM
		}
		backlog = append(backlog, ev)
	}
}

// CloseBacklog closes descriptors still attached to unreplayed events.
func CloseBacklog(evs []Event) {
	for i := range evs {
		if evs[i].CarriesDescriptor() && evs[i].Handle >= 0 {
			unix.Close(evs[i].Handle)
			evs[i].Handle = -1
		}
	}
}

// AcquireSegment performs the full subsegment sub-protocol: request, wait
// with buffering for the paired reply, and map the new segment. The
// returned backlog must be replayed by the caller regardless of outcome
// (it is nil only on transport errors).
//
// The NewSegment reply carries one end of a fresh socketpair; the page
// descriptor for the new segment then arrives over that socket, so every
// segment keeps its own ordered descriptor stream.
func (c *Conn) AcquireSegment(reqID, w, h, kind uint32, cfg Config) (*Conn, []Event, error) {
	if err := c.RequestSegment(reqID, w, h, kind); err != nil {
		return nil, nil, err
	}

	reply, backlog, err := c.AcquireWithBuffering(func(ev *Event) bool {
		if ev.Category != CategoryTarget || uint32(ev.IVs[0]) != reqID {
			return false
		}
		return ev.Kind == TargetNewSegment || ev.Kind == TargetRequestFail
	})
	if err != nil {
		return nil, nil, err
	}

	if reply.Kind == TargetRequestFail {
		return nil, backlog, ErrSegmentRejected
	}
	if reply.Handle < 0 {
		return nil, backlog, ErrDescriptorTransfer
	}

	sock, err := fdToUnixConn(reply.Handle)
	if err != nil {
		return nil, backlog, err
	}
	pageFD, err := RecvHandle(sock)
	if err != nil {
		sock.Close()
		return nil, backlog, err
	}
	page, err := AttachFD(pageFD)
	if err != nil {
		sock.Close()
		return nil, backlog, err
	}

	sub := NewClientConn(page, sock, cfg)
	if err := sub.Register(); err != nil {
		sub.Drop()
		return nil, backlog, err
	}
	return sub, backlog, nil
}

// fdToUnixConn wraps a received socket descriptor. The original descriptor
// is consumed either way.
func fdToUnixConn(fd int) (*net.UnixConn, error) {
	f := os.NewFile(uintptr(fd), "shmif-segment-socket")
	defer f.Close()
	conn, err := net.FileConn(f)
	if err != nil {
		return nil, errors.Wrap(err, "wrap segment socket")
	}
	uc, ok := conn.(*net.UnixConn)
	if !ok {
		conn.Close()
		return nil, errors.New("segment descriptor is not a unix socket")
	}
	return uc, nil
}
