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

// VideoBuffer returns the writable pixel region for the current geometry,
// canonical 32-bit RGBA.
func (c *Conn) VideoBuffer() []byte {
	return c.page.VideoBuffer()
}

// SignalVideo marks the frame in the video buffer as completed and blocks
// until the consumer has released it. While a resize is outstanding the
// previous geometry's buffer is in flux and no frame may be submitted.
func (c *Conn) SignalVideo() error {
	switch c.State() {
	case StateDead:
		return ErrTerminal
	case StateActive:
	default:
		return ErrNotActive
	}
	if c.page.Resized() {
		return ErrResizePending
	}

	c.page.SetVideoReady(true)
	return c.page.videoGate().Wait(0, c.cfg.Killswitch)
}
