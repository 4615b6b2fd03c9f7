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

// QueueAudio appends interleaved sample bytes to the audio ring. When the
// batch would overflow the capacity, the oldest pending bytes are dropped
// first: audio continuity favors recency over completeness. The overflow is
// logged and recovered locally, never surfaced as an error.
//
// abufUsed is producer-owned; the consumer only ever resets it to zero
// after draining under the audio gate.
func (c *Conn) QueueAudio(samples []byte) {
	if c.State() == StateDead || len(samples) == 0 {
		return
	}

	buf := c.page.AudioBuffer()
	capacity := len(buf)
	if len(samples) > capacity {
		c.log.Warnf("audio batch of %d bytes exceeds ring capacity %d, keeping tail",
			len(samples), capacity)
		samples = samples[len(samples)-capacity:]
	}

	used := int(c.page.AudioUsed())
	if used > capacity {
		// corrupt counter from a misbehaving peer; reset rather than fault
		used = 0
	}

	if overflow := used + len(samples) - capacity; overflow > 0 {
		copy(buf, buf[overflow:used])
		used -= overflow
		c.log.Warnf("audio ring overflow, dropped %d oldest bytes", overflow)
	}
	copy(buf[used:], samples)
	c.page.SetAudioUsed(uint32(used + len(samples)))
}

// SignalAudio marks the pending bytes as a completed batch and blocks until
// the consumer has drained them.
func (c *Conn) SignalAudio() error {
	switch c.State() {
	case StateDead:
		return ErrTerminal
	case StateActive:
	default:
		return ErrNotActive
	}

	c.page.SetAudioReady(true)
	return c.page.audioGate().Wait(0, c.cfg.Killswitch)
}
