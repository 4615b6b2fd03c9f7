//go:build linux

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
	"unsafe"

	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
)

// The page is mapped MAP_SHARED by two processes, so the private futex
// variants cannot be used here. x/sys/unix only exports the syscall number,
// not the op codes, so those are spelled out.
const (
	futexOpWait = 0 // FUTEX_WAIT
	futexOpWake = 1 // FUTEX_WAKE
)

// futexWait blocks until the value at addr is no longer val, the word is
// woken, or timeoutNs elapses (timeoutNs <= 0 means no timeout). Returns
// errFutexTimeout on expiry. Callers must re-check their logical condition
// after return; spurious wakeups are expected.
func futexWait(addr *uint32, val uint32, timeoutNs int64) error {
	// Re-check atomically before entering the syscall. This closes the
	// lost-wake race between the caller's snapshot and futex entry.
	if atomic.LoadUint32(addr) != val {
		return nil
	}

	var tsp unsafe.Pointer
	if timeoutNs > 0 {
		ts := unix.NsecToTimespec(timeoutNs)
		tsp = unsafe.Pointer(&ts)
	}

	_, _, errno := unix.Syscall6(
		unix.SYS_FUTEX,
		uintptr(unsafe.Pointer(addr)),
		uintptr(futexOpWait),
		uintptr(val),
		uintptr(tsp),
		0,
		0,
	)

	switch errno {
	case 0, unix.EAGAIN, unix.EINTR:
		// EAGAIN: value changed before the wait; EINTR: signal. Neither is
		// an error for the caller, the condition loop handles both.
		return nil
	case unix.ETIMEDOUT:
		return errFutexTimeout
	default:
		return errors.Wrap(errno, "futex wait")
	}
}

// futexWake wakes up to n waiters on addr.
func futexWake(addr *uint32, n int) (int, error) {
	r1, _, errno := unix.Syscall6(
		unix.SYS_FUTEX,
		uintptr(unsafe.Pointer(addr)),
		uintptr(futexOpWake),
		uintptr(n),
		0,
		0,
		0,
	)
	if errno != 0 {
		return 0, errors.Wrap(errno, "futex wake")
	}
	return int(r1), nil
}
