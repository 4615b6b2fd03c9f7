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
	"sync/atomic"
	"time"
)

// Waits are sliced so the dead man's switch and a caller-supplied killswitch
// get polled without tearing down the kernel-level wait.
const gateSlice = 25 * time.Millisecond

// gate is a binary semaphore over a futex word in the shared page. Post
// releases exactly one waiter; the protocol never uses it as a counting
// resource pool.
type gate struct {
	word *uint32
	hdr  *pageHeader
}

// Post releases the gate and wakes one waiter.
func (g gate) Post() {
	atomic.StoreUint32(g.word, 1)
	futexWake(g.word, 1)
}

// TryWait consumes the gate if it is posted, without blocking.
func (g gate) TryWait() bool {
	return atomic.CompareAndSwapUint32(g.word, 1, 0)
}

// Wait blocks until the gate is posted, the connection dies, the killswitch
// trips, or the timeout elapses (timeout <= 0 waits indefinitely). The
// killswitch, when non-nil, must return true while waiting should continue.
func (g gate) Wait(timeout time.Duration, alive func() bool) error {
	var deadline time.Time
	if timeout > 0 {
		deadline = time.Now().Add(timeout)
	}

	for {
		if !g.hdr.Alive() {
			return ErrTerminal
		}
		if alive != nil && !alive() {
			return ErrTerminal
		}
		if g.TryWait() {
			return nil
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
		// errFutexTimeout just ends the slice; the loop re-checks everything.
		futexWait(g.word, 0, slice.Nanoseconds())
	}
}

// wakeAll wakes every waiter on the word without posting it, so waiters
// re-check their condition. Used on teardown.
func wakeAll(word *uint32) {
	futexWake(word, 1<<30)
}
