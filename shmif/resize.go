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

// ResizeKind is the explicit request type on a resize. One enum, one
// dimension; geometry changes and hint changes do not share a flag field.
type ResizeKind uint32

const (
	// ResizeGeometry changes the buffer dimensions.
	ResizeGeometry ResizeKind = iota + 1
	// ResizeOrigin flips the vertical origin convention (lower-left).
	ResizeOrigin
	// ResizeDensity re-announces output density without a dimension change.
	ResizeDensity
)

// ResizeRequest renegotiates the buffer geometry. Two-phase: the geometry
// fields are stored first, then the resized flag - sequentially consistent
// atomics guarantee a consumer that observes the flag also observes a
// matching width/height pair, never a torn combination. The call blocks
// until the consumer has remapped and cleared the flag.
//
// Geometry beyond the maximum negotiated at creation is rejected with
// ErrResizeRejected; the producer must not submit frames until a valid
// geometry is negotiated.
func (c *Conn) ResizeRequest(w, h uint32, kind ResizeKind) error {
	if c.State() == StateDead {
		return ErrTerminal
	}
	hdr := c.page.header()
	if w == 0 || h == 0 || w > hdr.MaxWidth() || h > hdr.MaxHeight() {
		return ErrResizeRejected
	}
	if hdr.Resized() {
		return ErrResizePending
	}

	hdr.SetWidth(w)
	hdr.SetHeight(h)
	hdr.SetResizeKind(uint32(kind))
	hdr.SetResized(true)

	// Nudge the consumer's event wait; there is no record to deliver, the
	// wakeup just forces a re-poll that notices the pending resize.
	c.out.hdr.BumpDataSeq()
	futexWake(c.out.hdr.dataWord(), 1)

	// Block until the consumer acknowledges by clearing the flag.
	g := c.page.videoGate()
	for {
		if !hdr.Resized() {
			return nil
		}
		switch err := g.Wait(gateSlice, c.cfg.Killswitch); err {
		case nil, ErrTimeout:
			// posted or slice expired; re-check the flag
		default:
			return err
		}
	}
}
