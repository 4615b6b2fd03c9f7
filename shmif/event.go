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
	"encoding/binary"
	"fmt"
	"math"
)

// Category tags the origin of an event record.
type Category uint8

const (
	// CategoryIO carries input device samples.
	CategoryIO Category = 1
	// CategoryExternal events originate from the client (frameserver).
	CategoryExternal Category = 2
	// CategoryTarget events originate from the server.
	CategoryTarget Category = 3
)

// Client-originated event kinds.
const (
	ExternalRegister uint8 = iota + 1
	ExternalSegReq
	ExternalBufferStream
	ExternalClockReq
	ExternalStreamStatus
	ExternalMessage
)

// Server-originated event kinds.
const (
	TargetActivate uint8 = iota + 1
	TargetExit
	TargetPause
	TargetResume
	TargetStepFrame
	TargetNewSegment
	TargetRequestFail
	TargetBufferFail
	TargetDisplayHint
	TargetReset
	TargetMessage
	TargetStoreImage
	TargetRestoreImage
	TargetFontHint
	TargetBChunkIn
	TargetBChunkOut
	TargetDeviceNode
)

// Input event kinds.
const (
	IOButton uint8 = iota + 1
	IOAxis
	IOKey
	IOTouch
)

// MessageSize is the fixed payload capacity for free-form event text.
const MessageSize = 64

// Event is one fixed-size record in an event queue. Records are values:
// copied into and out of the ring, no independent lifetime.
//
// Handle is local-only: a descriptor attached to (or received with) the
// record. Descriptors never travel through the page; only a carries-handle
// tag is serialized and the descriptor itself crosses over the side channel
// socket, matched 1:1 in delivery order with the record stream.
type Event struct {
	Category  Category
	Kind      uint8
	Timestamp int64
	IVs       [6]int32
	FVs       [2]float32
	Message   [MessageSize]byte

	// Handle is -1 when the record carries no descriptor.
	Handle int
}

// On-page record layout (little endian):
//
//	0x00 category u8
//	0x01 kind     u8
//	0x02 handle   u8 (1 when a descriptor travels with the record)
//	0x03 pad
//	0x04 ivs      [6]i32
//	0x1C fvs      [2]f32
//	0x24 timestamp i64
//	0x2C message  [64]byte
//	0x6C..0x7F zero pad
const (
	evOffIVs     = 4
	evOffFVs     = 28
	evOffStamp   = 36
	evOffMessage = 44
)

// CarriesDescriptor reports whether events of this category/kind move a
// descriptor out-of-band. These records must never be dropped silently;
// the acquisition-buffering logic depends on this classification.
func (ev *Event) CarriesDescriptor() bool {
	switch ev.Category {
	case CategoryExternal:
		return ev.Kind == ExternalBufferStream
	case CategoryTarget:
		switch ev.Kind {
		case TargetNewSegment, TargetStoreImage, TargetRestoreImage,
			TargetFontHint, TargetBChunkIn, TargetBChunkOut, TargetDeviceNode:
			return true
		}
	}
	return false
}

// encode serializes the record into dst, which must hold EventSize bytes.
func (ev *Event) encode(dst []byte) {
	_ = dst[EventSize-1]
	for i := range dst[:EventSize] {
		dst[i] = 0
	}
	dst[0] = byte(ev.Category)
	dst[1] = ev.Kind
	if ev.Handle >= 0 && ev.CarriesDescriptor() {
		dst[2] = 1
	}
	for i, v := range ev.IVs {
		binary.LittleEndian.PutUint32(dst[evOffIVs+4*i:], uint32(v))
	}
	for i, v := range ev.FVs {
		binary.LittleEndian.PutUint32(dst[evOffFVs+4*i:], math.Float32bits(v))
	}
	binary.LittleEndian.PutUint64(dst[evOffStamp:], uint64(ev.Timestamp))
	copy(dst[evOffMessage:evOffMessage+MessageSize], ev.Message[:])
}

// decode fills the record from src. The handle flag is preserved so the
// dequeue path knows a descriptor must be fetched; Handle starts out as -1
// until that fetch completes.
func (ev *Event) decode(src []byte) (wantsHandle bool) {
	_ = src[EventSize-1]
	ev.Category = Category(src[0])
	ev.Kind = src[1]
	wantsHandle = src[2] == 1
	for i := range ev.IVs {
		ev.IVs[i] = int32(binary.LittleEndian.Uint32(src[evOffIVs+4*i:]))
	}
	for i := range ev.FVs {
		ev.FVs[i] = math.Float32frombits(binary.LittleEndian.Uint32(src[evOffFVs+4*i:]))
	}
	ev.Timestamp = int64(binary.LittleEndian.Uint64(src[evOffStamp:]))
	copy(ev.Message[:], src[evOffMessage:evOffMessage+MessageSize])
	ev.Handle = -1
	return wantsHandle
}

// MessageString returns the message payload up to the first NUL.
func (ev *Event) MessageString() string {
	for i, b := range ev.Message {
		if b == 0 {
			return string(ev.Message[:i])
		}
	}
	return string(ev.Message[:])
}

// String renders a compact form useful for logging and tracing.
func (ev *Event) String() string {
	var cat, kind string
	switch ev.Category {
	case CategoryIO:
		cat = "io"
		switch ev.Kind {
		case IOButton:
			kind = "button"
		case IOAxis:
			kind = "axis"
		case IOKey:
			kind = "key"
		case IOTouch:
			kind = "touch"
		}
	case CategoryExternal:
		cat = "external"
		switch ev.Kind {
		case ExternalRegister:
			kind = "register"
		case ExternalSegReq:
			kind = "segreq"
		case ExternalBufferStream:
			kind = "bufferstream"
		case ExternalClockReq:
			kind = "clockreq"
		case ExternalStreamStatus:
			kind = "streamstatus"
		case ExternalMessage:
			kind = "message"
		}
	case CategoryTarget:
		cat = "target"
		switch ev.Kind {
		case TargetActivate:
			kind = "activate"
		case TargetExit:
			kind = "exit"
		case TargetPause:
			kind = "pause"
		case TargetResume:
			kind = "resume"
		case TargetStepFrame:
			kind = "stepframe"
		case TargetNewSegment:
			kind = "newsegment"
		case TargetRequestFail:
			kind = "requestfail"
		case TargetBufferFail:
			kind = "bufferfail"
		case TargetDisplayHint:
			kind = "displayhint"
		case TargetReset:
			kind = "reset"
		case TargetMessage:
			kind = "message"
		case TargetStoreImage:
			kind = "storeimage"
		case TargetRestoreImage:
			kind = "restoreimage"
		case TargetFontHint:
			kind = "fonthint"
		case TargetBChunkIn:
			kind = "bchunk-in"
		case TargetBChunkOut:
			kind = "bchunk-out"
		case TargetDeviceNode:
			kind = "devicenode"
		}
	}
	if cat == "" {
		cat = fmt.Sprintf("cat(%d)", ev.Category)
	}
	if kind == "" {
		kind = fmt.Sprintf("kind(%d)", ev.Kind)
	}
	if ev.CarriesDescriptor() {
		return fmt.Sprintf("%s:%s ivs=%v fd=%d", cat, kind, ev.IVs, ev.Handle)
	}
	return fmt.Sprintf("%s:%s ivs=%v", cat, kind, ev.IVs)
}
