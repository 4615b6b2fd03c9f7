//go:build !linux

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

// Degraded fallback for platforms without futex support: bounded sleeps in
// place of kernel waits. Correct but not cheap; the callers' condition loops
// absorb the extra wakeups.
func futexWait(addr *uint32, val uint32, timeoutNs int64) error {
	if atomic.LoadUint32(addr) != val {
		return nil
	}
	slice := time.Millisecond
	if timeoutNs > 0 && timeoutNs < int64(slice) {
		slice = time.Duration(timeoutNs)
	}
	time.Sleep(slice)
	if timeoutNs > 0 && atomic.LoadUint32(addr) == val {
		return errFutexTimeout
	}
	return nil
}

func futexWake(addr *uint32, n int) (int, error) {
	return 0, nil
}
