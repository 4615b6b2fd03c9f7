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

import "time"

// TickInterval is the base period for server-paced timers.
const TickInterval = 25 * time.Millisecond

// Ticker converts wall-clock progress into a whole number of fixed ticks,
// absorbing scheduling jitter. Serving loops call Step once per iteration
// and dispatch that many timer rounds to their clients.
type Ticker struct {
	base  time.Time
	ticks int64
}

// NewTicker starts counting from now.
func NewTicker() *Ticker {
	return &Ticker{base: time.Now()}
}

// Step returns the number of ticks elapsed since the previous Step. Large
// gaps (suspend, debugger stops) are clamped to one tick so a resumed loop
// does not replay hours of timers.
func (t *Ticker) Step() int {
	total := int64(time.Since(t.base) / TickInterval)
	n := total - t.ticks
	t.ticks = total
	if n > 10 {
		t.Rebase()
		return 1
	}
	if n < 0 {
		t.Rebase()
		return 0
	}
	return int(n)
}

// Rebase resets the epoch to now, for use after clock jumps.
func (t *Ticker) Rebase() {
	t.base = time.Now()
	t.ticks = 0
}
