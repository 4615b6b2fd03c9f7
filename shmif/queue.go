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
	"sync"
	"sync/atomic"
	"time"
)

// Direction selects one of the two per-direction event queues embedded in
// the page.
type Direction int

const (
	ServerToClient Direction = iota
	ClientToServer
)

// PollStatus is the non-blocking dequeue result.
type PollStatus int

const (
	// PollTerminal: the connection is dead; no further events will arrive.
	PollTerminal PollStatus = -1
	// PollEmpty: no undequeued records.
	PollEmpty PollStatus = 0
	// PollEvent: a record was dequeued into dst.
	PollEvent PollStatus = 1
)

// QueueConfig wires a queue view to its connection context.
type QueueConfig struct {
	// Socket is the side channel descriptors travel over. May be nil for
	// queues that never see descriptor-carrying events (tests, diagnostics).
	Socket *net.UnixConn

	// Killswitch, when non-nil, is polled alongside blocking waits and must
	// return true while waiting should continue.
	Killswitch func() bool

	// Dead reports a connection-local terminal condition, checked in
	// addition to the page's dead man's switch.
	Dead func() bool

	// ThreadSafe serializes local enqueues from multiple goroutines. This
	// safety does not extend across an in-progress resize.
	ThreadSafe bool
}

// EventQueue is one direction's bounded ring of fixed-size event records.
// It is a view: the indices and slots live in the shared page, the queue
// itself holds only offsets. One side produces (advances back), the other
// consumes (advances front); a single EventQueue value is used for whichever
// role its owner plays on this direction.
type EventQueue struct {
	page    *Page
	hdr     *queueHeader
	slotOff uint64
	sock    *net.UnixConn
	kill    func() bool
	dead    func() bool
	failed  uint32
	mu      *sync.Mutex
}

// NewEventQueue returns a view of the page's queue for the given direction.
func NewEventQueue(page *Page, dir Direction, cfg QueueConfig) *EventQueue {
	off := page.layout.QueueSrvOff
	if dir == ClientToServer {
		off = page.layout.QueueClOff
	}
	q := &EventQueue{
		page:    page,
		hdr:     page.queue(off),
		slotOff: off + QueueHeaderSize,
		sock:    cfg.Socket,
		kill:    cfg.Killswitch,
		dead:    cfg.Dead,
	}
	if cfg.ThreadSafe {
		q.mu = new(sync.Mutex)
	}
	return q
}

func (q *EventQueue) terminal() bool {
	if atomic.LoadUint32(&q.failed) != 0 {
		return true
	}
	if !q.page.header().Alive() {
		return true
	}
	return q.dead != nil && q.dead()
}

// Failed reports that the descriptor side channel desynced from the record
// stream. The queue is permanently terminal once this trips; the connection
// it belongs to must be torn down.
func (q *EventQueue) Failed() bool { return atomic.LoadUint32(&q.failed) != 0 }

func (q *EventQueue) slot(idx uint32) []byte {
	pos := q.slotOff + uint64(idx&(QueueSize-1))*EventSize
	return q.page.Mem[pos : pos+EventSize]
}

// Used returns the current record count.
func (q *EventQueue) Used() int { return int(q.hdr.Used()) }

// Free returns the number of empty slots.
func (q *EventQueue) Free() int { return int(q.hdr.Free()) }

// handleWait bounds the descriptor fetch in Poll. The producer pushes the
// descriptor before publishing its record, so by the time the record is
// visible the descriptor is already in the socket buffer; the deadline only
// trips when the peer raised the handle flag without sending one.
const handleWait = 2 * time.Second

// Poll dequeues the oldest record into dst without blocking. When the
// record carries a descriptor, the paired descriptor is fetched from the
// side channel before the slot is released, keeping the two streams matched
// in order. A failed fetch is terminal: once a descriptor is missing the
// pairing of every later record is suspect, so the queue latches into
// PollTerminal instead of delivering misattributed descriptors.
func (q *EventQueue) Poll(dst *Event) PollStatus {
	if q.terminal() {
		return PollTerminal
	}

	front := q.hdr.Front()
	back := q.hdr.Back()
	if front == back {
		return PollEmpty
	}

	wantsHandle := dst.decode(q.slot(front))
	if wantsHandle && q.sock != nil {
		q.sock.SetReadDeadline(time.Now().Add(handleWait))
		fd, err := RecvHandle(q.sock)
		q.sock.SetReadDeadline(time.Time{})
		if err != nil {
			atomic.StoreUint32(&q.failed, 1)
			return PollTerminal
		}
		dst.Handle = fd
	}

	wasFull := back-front == QueueSize
	q.hdr.SetFront(front + 1)
	if wasFull {
		// full -> not-full transition releases a lossless producer
		q.hdr.BumpSpaceSeq()
		futexWake(q.hdr.spaceWord(), 1)
	}
	return PollEvent
}

// Wait blocks until a record can be dequeued into dst, the connection turns
// terminal, or the timeout elapses (timeout <= 0 waits indefinitely).
func (q *EventQueue) Wait(timeout time.Duration, dst *Event) error {
	var deadline time.Time
	if timeout > 0 {
		deadline = time.Now().Add(timeout)
	}

	for {
		// Sample the sequence before re-checking emptiness so an enqueue
		// in between fails the futex value check instead of being lost.
		seq := q.hdr.DataSeq()

		switch q.Poll(dst) {
		case PollEvent:
			return nil
		case PollTerminal:
			return ErrTerminal
		}

		if q.kill != nil && !q.kill() {
			return ErrTerminal
		}

		slice := gateSlice
		if timeout > 0 {
			remaining := time.Until(deadline)
			if remaining <= 0 {
				return ErrTimeout
			}
			if remaining < slice {
				slice = remaining
			}
		}
		futexWait(q.hdr.dataWord(), seq, slice.Nanoseconds())
	}
}

// Enqueue inserts the record at back and signals the consumer, returning
// the number of free slots left. When the queue is full: lossless blocks
// until the consumer frees a slot; otherwise the call fails with
// ErrQueueFull and the event is not inserted (drop-newest). Lossless is for
// low-frequency control events; high-frequency advisory events should
// tolerate the drop.
//
// Descriptor-carrying records push their descriptor over the side channel
// in the same call, before the slot becomes visible to the consumer.
func (q *EventQueue) Enqueue(ev *Event, lossless bool) (int, error) {
	if q.mu != nil {
		q.mu.Lock()
		defer q.mu.Unlock()
	}

	for {
		if q.terminal() {
			return 0, ErrTerminal
		}

		seq := q.hdr.SpaceSeq()
		front := q.hdr.Front()
		back := q.hdr.Back()
		used := back - front

		if used < QueueSize {
			if ev.CarriesDescriptor() && ev.Handle >= 0 {
				if err := SendHandle(q.sock, ev.Handle); err != nil {
					return int(QueueSize - used), err
				}
			}
			ev.encode(q.slot(back))
			q.hdr.SetBack(back + 1)
			if used == 0 {
				// empty -> non-empty transition wakes a blocked consumer
				q.hdr.BumpDataSeq()
				futexWake(q.hdr.dataWord(), 1)
			}
			return int(QueueSize - used - 1), nil
		}

		if !lossless {
			return 0, ErrQueueFull
		}
		if q.kill != nil && !q.kill() {
			return 0, ErrTerminal
		}
		futexWait(q.hdr.spaceWord(), seq, gateSlice.Nanoseconds())
	}
}

// TryEnqueue never blocks; it is Enqueue with the drop-newest policy.
func (q *EventQueue) TryEnqueue(ev *Event) (int, error) {
	return q.Enqueue(ev, false)
}
