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
	"sync/atomic"
	"time"

	"github.com/pkg/errors"

	"github.com/lxq2537664558/arcan/internal/logging"
)

// State is the connection lifecycle position. StateDead is terminal and
// absorbing: every operation on a dead connection returns ErrTerminal (or
// PollTerminal) instead of blocking.
type State int32

const (
	StateDisconnected State = iota
	StateHandshaking
	StatePreroll
	StateActive
	StateDead
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateHandshaking:
		return "handshaking"
	case StatePreroll:
		return "preroll"
	case StateActive:
		return "active"
	case StateDead:
		return "dead"
	}
	return "invalid"
}

// Primary segment roles announced at registration.
const (
	SegIDApplication uint32 = iota + 1
	SegIDGame
	SegIDMedia
	SegIDTerminal
	SegIDEncoder
	SegIDClipboard
	SegIDIcon
	SegIDPopup
	SegIDCursor
)

// Config parameterizes a client connection. There is no hidden process-wide
// context; everything an operation needs hangs off the Conn it is given.
type Config struct {
	// Ident is the registration name shown to the server.
	Ident string

	// Kind is the SegID* role announced at registration.
	Kind uint32

	// Killswitch, when non-nil, is polled during blocking waits and must
	// return true while the connection should stay up.
	Killswitch func() bool

	// ThreadSafeQueue makes Enqueue/TryEnqueue safe from multiple local
	// goroutines. Not valid across an in-progress resize.
	ThreadSafeQueue bool
}

// Conn is one end of a shmif connection: the mapped page, the gates, the
// two queue views and the descriptor side channel.
type Conn struct {
	page  *Page
	sock  *net.UnixConn
	in    *EventQueue
	out   *EventQueue
	state int32
	cfg   Config
	log   *logging.Logger
}

// Connect dials the connection point registered under name, authenticates
// with key, maps the passed page and registers. The returned connection is
// in StatePreroll; it becomes StateActive once the server's activation
// command has been consumed through Poll or Wait.
func Connect(name, key string, cfg Config) (*Conn, error) {
	if name == "" {
		name = os.Getenv("ARCAN_CONNPATH")
	}
	path, err := ConnPath(name)
	if err != nil {
		return nil, err
	}

	addr, err := net.ResolveUnixAddr("unix", path)
	if err != nil {
		return nil, errors.Wrap(err, "resolve connection point")
	}
	sock, err := net.DialUnix("unix", nil, addr)
	if err != nil {
		return nil, errors.Wrapf(err, "dial connection point %s", path)
	}

	if _, err := sock.Write(append([]byte(key), '\n')); err != nil {
		sock.Close()
		return nil, errors.Wrap(err, "send connection key")
	}

	fd, err := RecvHandle(sock)
	if err != nil {
		sock.Close()
		return nil, errors.Wrap(err, "receive page descriptor")
	}

	page, err := AttachFD(fd)
	if err != nil {
		sock.Close()
		return nil, err
	}

	c := NewClientConn(page, sock, cfg)
	if err := c.Register(); err != nil {
		c.Drop()
		return nil, err
	}
	return c, nil
}

// NewClientConn assembles the client end over an already-attached page.
// Used by Connect and by embedders that do their own descriptor plumbing
// (subsegment acquisition, tests).
func NewClientConn(page *Page, sock *net.UnixConn, cfg Config) *Conn {
	if cfg.Kind == 0 {
		cfg.Kind = SegIDApplication
	}
	c := &Conn{
		page:  page,
		sock:  sock,
		state: int32(StateHandshaking),
		cfg:   cfg,
		log:   logging.DefaultLogger.WithTag("shmif"),
	}
	qcfg := QueueConfig{
		Socket:     sock,
		Killswitch: cfg.Killswitch,
		Dead:       func() bool { return c.State() == StateDead },
		ThreadSafe: cfg.ThreadSafeQueue,
	}
	c.in = NewEventQueue(page, ServerToClient, qcfg)
	c.out = NewEventQueue(page, ClientToServer, qcfg)
	return c
}

// Register announces the connection to the server and moves it into
// preroll. Connect and AcquireSegment call this themselves; embedders that
// assemble a connection through NewClientConn call it once their page and
// socket plumbing is in place.
func (c *Conn) Register() error {
	ev := Event{
		Category:  CategoryExternal,
		Kind:      ExternalRegister,
		Timestamp: time.Now().UnixMilli(),
		Handle:    -1,
	}
	ev.IVs[0] = int32(c.cfg.Kind)
	copy(ev.Message[:], c.cfg.Ident)
	if _, err := c.out.Enqueue(&ev, true); err != nil {
		return errors.Wrap(err, "register")
	}
	c.setState(StatePreroll)
	return nil
}

// Page exposes the mapped page for buffer access.
func (c *Conn) Page() *Page { return c.page }

// State returns the lifecycle position.
func (c *Conn) State() State { return State(atomic.LoadInt32(&c.state)) }

func (c *Conn) setState(s State) { atomic.StoreInt32(&c.state, int32(s)) }

// Alive reports whether the connection can still carry traffic.
func (c *Conn) Alive() bool {
	return c.State() != StateDead && c.page != nil && c.page.Alive()
}

// observe applies lifecycle transitions driven by dequeued server events.
func (c *Conn) observe(ev *Event) {
	if ev.Category != CategoryTarget {
		return
	}
	switch ev.Kind {
	case TargetActivate:
		if c.State() == StatePreroll {
			c.setState(StateActive)
			c.log.Debugf("activated")
		}
	case TargetExit:
		c.log.Infof("server requested exit")
	}
}

// Poll dequeues the oldest incoming event without blocking. A descriptor
// stream desync is connection-fatal: the connection drops so the peer
// observes the dead man's switch instead of a half-broken channel.
func (c *Conn) Poll(dst *Event) PollStatus {
	if c.State() == StateDead {
		return PollTerminal
	}
	st := c.in.Poll(dst)
	if st == PollEvent {
		c.observe(dst)
	} else if st == PollTerminal && c.in.Failed() {
		c.log.Warnf("descriptor stream desynced, dropping connection")
		c.Drop()
	}
	return st
}

// Wait blocks until an incoming event is available or the connection turns
// terminal; timeout <= 0 waits indefinitely.
func (c *Conn) Wait(timeout time.Duration, dst *Event) error {
	if c.State() == StateDead {
		return ErrTerminal
	}
	if err := c.in.Wait(timeout, dst); err != nil {
		if c.in.Failed() {
			c.log.Warnf("descriptor stream desynced, dropping connection")
			c.Drop()
		}
		return err
	}
	c.observe(dst)
	return nil
}

// Enqueue submits an outgoing event, blocking when lossless and the queue
// is full. Returns the free slots remaining.
func (c *Conn) Enqueue(ev *Event, lossless bool) (int, error) {
	if c.State() == StateDead {
		return 0, ErrTerminal
	}
	return c.out.Enqueue(ev, lossless)
}

// TryEnqueue submits without ever blocking (drop-newest on full).
func (c *Conn) TryEnqueue(ev *Event) (int, error) {
	return c.Enqueue(ev, false)
}

// Drop tears the connection down from this side. The peer's blocked waits
// wake and observe the dead man's switch; peer death is observable, never a
// silent hang. Safe to call more than once.
func (c *Conn) Drop() {
	if State(atomic.SwapInt32(&c.state, int32(StateDead))) == StateDead {
		return
	}
	if c.page != nil && c.page.Mem != nil {
		c.page.SetAlive(false)
		c.page.WakeWaiters()
	}
	if c.sock != nil {
		c.sock.Close()
	}
	if c.page != nil {
		c.page.Close()
	}
	c.log.Debugf("connection dropped")
}
