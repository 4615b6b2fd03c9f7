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
	"fmt"
	"hash/fnv"
	"sync/atomic"
	"unsafe"
)

// Page layout constants. Any change here alters the layout cookie and makes
// new builds refuse to attach to pages created by old ones.
const (
	// Protocol version, baked into the layout cookie.
	VersionMajor = 0
	VersionMinor = 11

	// Page header size (aligned to 128 bytes)
	PageHeaderSize = 128

	// Event queue header size (aligned to 16 bytes)
	QueueHeaderSize = 16

	// Fixed on-page size of one event record
	EventSize = 128

	// Number of event slots per direction (power of 2)
	QueueSize = 64

	// Region offsets are aligned to 64-byte boundaries
	regionAlign = 64

	// Canonical on-wire pixel format is 32-bit RGBA
	BytesPerPixel = 4

	// Audio ring capacity bounds (bytes, power of 2)
	MinAudioCapacity     = 4096
	DefaultAudioCapacity = 65536

	// Geometry bounds
	MaxDimension  = 16384
	DefaultWidth  = 640
	DefaultHeight = 480
)

// pageHeader is the shared page header both processes map. The layout is
// part of the wire contract; field offsets feed the integrity cookie.
type pageHeader struct {
	cookie   uint64   // 0x00: layout hash, written by the creator
	dms      uint32   // 0x08: dead man's switch (1 alive, 0 dead)
	resized  uint32   // 0x0C: resize pending (producer sets, consumer clears)
	vready   uint32   // 0x10: frame completed flag
	aready   uint32   // 0x14: audio batch flag
	width    uint32   // 0x18: current buffer geometry
	height   uint32   // 0x1C
	maxw     uint32   // 0x20: negotiated maximum geometry (immutable)
	maxh     uint32   // 0x24
	vbufOff  uint64   // 0x28: offset of video buffer region
	abufOff  uint64   // 0x30: offset of audio byte ring
	abufCap  uint32   // 0x38: audio ring capacity in bytes
	abufUsed uint32   // 0x3C: audio bytes pending (producer-owned)
	vgate    uint32   // 0x40: futex word, video handoff
	agate    uint32   // 0x44: futex word, audio handoff
	rszType  uint32   // 0x48: resize request kind
	vpts     uint32   // 0x4C: presentation stamp of the current frame
	segToken uint32   // 0x50: token pairing subsegment requests
	pad      uint32   // 0x54: padding
	reserved [40]byte // 0x58-0x7F: reserved to 128B
}

// pageHeader atomic access methods

func (h *pageHeader) Cookie() uint64        { return atomic.LoadUint64(&h.cookie) }
func (h *pageHeader) SetCookie(v uint64)    { atomic.StoreUint64(&h.cookie, v) }
func (h *pageHeader) Alive() bool           { return atomic.LoadUint32(&h.dms) != 0 }
func (h *pageHeader) SetAlive(alive bool)   { atomic.StoreUint32(&h.dms, b32(alive)) }
func (h *pageHeader) Resized() bool         { return atomic.LoadUint32(&h.resized) != 0 }
func (h *pageHeader) SetResized(v bool)     { atomic.StoreUint32(&h.resized, b32(v)) }
func (h *pageHeader) VideoReady() bool      { return atomic.LoadUint32(&h.vready) != 0 }
func (h *pageHeader) SetVideoReady(v bool)  { atomic.StoreUint32(&h.vready, b32(v)) }
func (h *pageHeader) AudioReady() bool      { return atomic.LoadUint32(&h.aready) != 0 }
func (h *pageHeader) SetAudioReady(v bool)  { atomic.StoreUint32(&h.aready, b32(v)) }
func (h *pageHeader) Width() uint32         { return atomic.LoadUint32(&h.width) }
func (h *pageHeader) SetWidth(v uint32)     { atomic.StoreUint32(&h.width, v) }
func (h *pageHeader) Height() uint32        { return atomic.LoadUint32(&h.height) }
func (h *pageHeader) SetHeight(v uint32)    { atomic.StoreUint32(&h.height, v) }
func (h *pageHeader) MaxWidth() uint32      { return atomic.LoadUint32(&h.maxw) }
func (h *pageHeader) MaxHeight() uint32     { return atomic.LoadUint32(&h.maxh) }
func (h *pageHeader) VideoOffset() uint64   { return atomic.LoadUint64(&h.vbufOff) }
func (h *pageHeader) AudioOffset() uint64   { return atomic.LoadUint64(&h.abufOff) }
func (h *pageHeader) AudioCapacity() uint32 { return atomic.LoadUint32(&h.abufCap) }
func (h *pageHeader) AudioUsed() uint32     { return atomic.LoadUint32(&h.abufUsed) }
func (h *pageHeader) SetAudioUsed(v uint32) { atomic.StoreUint32(&h.abufUsed, v) }
func (h *pageHeader) ResizeKind() uint32    { return atomic.LoadUint32(&h.rszType) }
func (h *pageHeader) SetResizeKind(v uint32) {
	atomic.StoreUint32(&h.rszType, v)
}
func (h *pageHeader) VPTS() uint32     { return atomic.LoadUint32(&h.vpts) }
func (h *pageHeader) SetVPTS(v uint32) { atomic.StoreUint32(&h.vpts, v) }
func (h *pageHeader) SegToken() uint32 { return atomic.LoadUint32(&h.segToken) }
func (h *pageHeader) SetSegToken(v uint32) {
	atomic.StoreUint32(&h.segToken, v)
}

// Futex words for the video/audio gates.
func (h *pageHeader) videoGateWord() *uint32 { return &h.vgate }
func (h *pageHeader) audioGateWord() *uint32 { return &h.agate }

func b32(v bool) uint32 {
	if v {
		return 1
	}
	return 0
}

// queueHeader fronts one direction's bounded event ring. front and back are
// monotonic; masking by QueueSize-1 yields the slot index. Only the consumer
// advances front, only the producer advances back. dataSeq and spaceSeq are
// futex words: dataSeq is bumped when the queue transitions empty->nonempty,
// spaceSeq when it transitions full->not-full.
type queueHeader struct {
	front    uint32 // 0x00: consumer index (monotonic)
	back     uint32 // 0x04: producer index (monotonic)
	dataSeq  uint32 // 0x08: data availability sequence
	spaceSeq uint32 // 0x0C: space availability sequence
}

func (q *queueHeader) Front() uint32       { return atomic.LoadUint32(&q.front) }
func (q *queueHeader) SetFront(v uint32)   { atomic.StoreUint32(&q.front, v) }
func (q *queueHeader) Back() uint32        { return atomic.LoadUint32(&q.back) }
func (q *queueHeader) SetBack(v uint32)    { atomic.StoreUint32(&q.back, v) }
func (q *queueHeader) DataSeq() uint32     { return atomic.LoadUint32(&q.dataSeq) }
func (q *queueHeader) BumpDataSeq() uint32 { return atomic.AddUint32(&q.dataSeq, 1) }
func (q *queueHeader) SpaceSeq() uint32    { return atomic.LoadUint32(&q.spaceSeq) }
func (q *queueHeader) BumpSpaceSeq() uint32 {
	return atomic.AddUint32(&q.spaceSeq, 1)
}

// Used returns the number of undequeued records. uint32 arithmetic handles
// index wrap-around.
func (q *queueHeader) Used() uint32 {
	return atomic.LoadUint32(&q.back) - atomic.LoadUint32(&q.front)
}

// Free returns the number of empty slots.
func (q *queueHeader) Free() uint32 {
	return QueueSize - q.Used()
}

func (q *queueHeader) dataWord() *uint32  { return &q.dataSeq }
func (q *queueHeader) spaceWord() *uint32 { return &q.spaceSeq }

// queueRegionSize is the on-page footprint of one event queue direction.
const queueRegionSize = QueueHeaderSize + QueueSize*EventSize

// Layout locates the variable regions of a page. Offsets are computed, not
// trusted: Attach recomputes them from the header geometry and refuses any
// disagreement.
type Layout struct {
	QueueSrvOff uint64 // server -> client event queue
	QueueClOff  uint64 // client -> server event queue
	AudioOff    uint64
	VideoOff    uint64
	Total       uint64
}

// CalculateLayout computes the page layout for the given maximum geometry
// and audio capacity.
func CalculateLayout(maxW, maxH, audioCap uint32) (Layout, error) {
	if maxW == 0 || maxH == 0 || maxW > MaxDimension || maxH > MaxDimension {
		return Layout{}, fmt.Errorf("geometry %dx%d out of range (max %d)", maxW, maxH, MaxDimension)
	}
	if !isPowerOfTwo(uint64(audioCap)) {
		return Layout{}, fmt.Errorf("audio capacity %d is not a power of two", audioCap)
	}
	if audioCap < MinAudioCapacity {
		return Layout{}, fmt.Errorf("audio capacity %d is below minimum %d", audioCap, MinAudioCapacity)
	}

	var l Layout
	l.QueueSrvOff = alignRegion(PageHeaderSize)
	l.QueueClOff = alignRegion(l.QueueSrvOff + queueRegionSize)
	l.AudioOff = alignRegion(l.QueueClOff + queueRegionSize)
	l.VideoOff = alignRegion(l.AudioOff + uint64(audioCap))
	l.Total = alignRegion(l.VideoOff + uint64(maxW)*uint64(maxH)*BytesPerPixel)
	return l, nil
}

func alignRegion(n uint64) uint64 {
	return (n + regionAlign - 1) &^ (regionAlign - 1)
}

func isPowerOfTwo(n uint64) bool {
	return n > 0 && n&(n-1) == 0
}

// Cookie computes the structural hash of the page layout for this build.
// Field offsets, record sizes and the protocol version all feed the hash,
// so a layout drift between two builds (or a corrupt page) is caught at
// attach time instead of surfacing as silent data corruption.
func Cookie() uint64 {
	var h pageHeader
	var q queueHeader

	f := fnv.New64a()
	fmt.Fprintf(f, "arcan-shmif %d.%d;", VersionMajor, VersionMinor)
	for _, off := range []uintptr{
		unsafe.Offsetof(h.cookie),
		unsafe.Offsetof(h.dms),
		unsafe.Offsetof(h.resized),
		unsafe.Offsetof(h.vready),
		unsafe.Offsetof(h.aready),
		unsafe.Offsetof(h.width),
		unsafe.Offsetof(h.height),
		unsafe.Offsetof(h.maxw),
		unsafe.Offsetof(h.maxh),
		unsafe.Offsetof(h.vbufOff),
		unsafe.Offsetof(h.abufOff),
		unsafe.Offsetof(h.abufCap),
		unsafe.Offsetof(h.abufUsed),
		unsafe.Offsetof(h.vgate),
		unsafe.Offsetof(h.agate),
		unsafe.Offsetof(h.rszType),
		unsafe.Offsetof(h.vpts),
		unsafe.Offsetof(h.segToken),
	} {
		fmt.Fprintf(f, "%d,", off)
	}
	fmt.Fprintf(f, ";hdr=%d;q=%d/%d/%d;ev=%d;align=%d",
		unsafe.Sizeof(h), unsafe.Sizeof(q), QueueHeaderSize, QueueSize,
		EventSize, regionAlign)
	return f.Sum64()
}
