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

package shmifext

import (
	"time"

	"github.com/lxq2537664558/arcan/shmif"
)

// Export asks the binding for a transferable descriptor covering the
// rendered texture. A previously exported handle still sitting
// unconsumed in the target slot is invalidated first; the peer only ever
// holds one in-flight handle per side. The returned handle's descriptor
// belongs to the Context and is closed on the next export into the same
// slot or at Teardown.
func (c *Context) Export(texture uint32) (BufferHandle, error) {
	if !c.ExportSupported() {
		return BufferHandle{}, ErrExportUnsupported
	}
	exp := c.binding.Exporter()

	s := &c.slots[c.cur]
	c.dropSlot(s)

	img, err := exp.CreateImage(texture)
	if err != nil {
		return BufferHandle{}, err
	}
	s.img = img
	s.hasImg = true

	format, _, err := exp.QueryImageFormat(img)
	if err != nil {
		c.dropSlot(s)
		return BufferHandle{}, err
	}

	h, err := exp.ExportImage(img)
	if err != nil {
		c.dropSlot(s)
		return BufferHandle{}, err
	}
	h.Format = format
	page := c.conn.Page()
	h.Width, h.Height = page.Width(), page.Height()

	s.handle = h
	s.valid = true
	// next frame renders into the other slot while this one is in flight
	c.cur ^= 1
	return h, nil
}

// Import re-wraps a received handle into a surface on the consumer side.
func (c *Context) Import(h BufferHandle) (uintptr, error) {
	if c.importer == nil {
		return 0, ErrExportUnsupported
	}
	return c.importer.ImportImage(h)
}

// Signal delivers the current frame: export the texture and stream the
// descriptor when the fast path is open, otherwise read the pixels back
// into the shared page. Either way the frame-ready flag raises and the
// call returns when the consumer has stepped the frame.
//
// The fallback is never skipped silently: when export fails and readback
// also fails, Signal reports ErrFrameFailed and no frame is signalled.
func (c *Context) Signal(texture uint32) error {
	if c.ExportSupported() {
		switch h, err := c.Export(texture); {
		case err != nil:
			c.log.Warnf("handle export failed, falling back to readback: %v", err)
		default:
			if err := c.streamHandle(h); err != nil {
				c.log.Warnf("buffer stream failed, falling back to readback: %v", err)
			} else {
				return c.conn.SignalVideo()
			}
		}
	}

	if err := c.readbackInto(texture); err != nil {
		c.log.Errorf("readback failed: %v", err)
		return ErrFrameFailed
	}
	return c.conn.SignalVideo()
}

// streamHandle announces the exported buffer to the peer. The descriptor
// rides the side channel with the event; stride and format ride the
// record so the importer can re-wrap without a second round trip.
func (c *Context) streamHandle(h BufferHandle) error {
	ev := shmif.Event{
		Category:  shmif.CategoryExternal,
		Kind:      shmif.ExternalBufferStream,
		Timestamp: time.Now().UnixMilli(),
		Handle:    h.FD,
	}
	ev.IVs[0] = int32(h.Stride)
	ev.IVs[1] = int32(h.Format)
	ev.IVs[2] = int32(h.Offset)
	_, err := c.conn.Enqueue(&ev, true)
	return err
}

// readbackInto pulls the texture's pixels through the binding and lands
// them in the page video buffer, normalized to the canonical layout.
func (c *Context) readbackInto(texture uint32) error {
	page := c.conn.Page()
	w, h := page.Width(), page.Height()
	px := int(w) * int(h)
	dst := c.conn.VideoBuffer()

	// worst-case source stride is 4 bytes per pixel
	if cap(c.scratch) < px*4 {
		c.scratch = make([]byte, px*4)
	}
	scratch := c.scratch[:px*4]

	format, err := c.binding.Readback(texture, w, h, scratch)
	if err != nil {
		return err
	}
	return Normalize(dst, scratch[:px*format.BytesPerPixel()], format, px)
}
