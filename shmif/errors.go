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

import "errors"

var (
	// ErrIntegrityMismatch is returned by Attach when the page cookie does
	// not match this build's layout. The attach is rejected outright; no
	// page contents are ever exposed past this point.
	ErrIntegrityMismatch = errors.New("shmif: page layout cookie mismatch")

	// ErrQueueFull is returned by a non-lossless enqueue when all slots are
	// occupied. The event was not inserted (drop-newest policy).
	ErrQueueFull = errors.New("shmif: event queue full")

	// ErrTerminal indicates the connection is dead. The state is absorbing:
	// every subsequent operation keeps returning it.
	ErrTerminal = errors.New("shmif: connection dead")

	// ErrTimeout is returned by bounded waits on expiry.
	ErrTimeout = errors.New("shmif: wait timed out")

	// ErrResizeRejected is returned when a requested geometry exceeds the
	// maximum negotiated at connection setup.
	ErrResizeRejected = errors.New("shmif: geometry exceeds negotiated maximum")

	// ErrBufferingOOM is returned by AcquireWithBuffering when the backlog
	// could not grow. Buffered descriptor-carrying events cannot be safely
	// discarded, so the caller must treat the connection as lost.
	ErrBufferingOOM = errors.New("shmif: event buffering failed, connection unusable")

	// ErrDescriptorTransfer indicates a descriptor could not be passed or
	// fetched over the side channel.
	ErrDescriptorTransfer = errors.New("shmif: descriptor transfer failed")

	// ErrNotActive is returned when submitting frames before the server has
	// activated the connection.
	ErrNotActive = errors.New("shmif: connection not activated")

	// ErrResizePending is returned when an operation on the video path is
	// attempted while a resize negotiation is outstanding.
	ErrResizePending = errors.New("shmif: resize negotiation pending")

	// ErrSegmentRejected is returned when the server answers a segment
	// request with a rejection.
	ErrSegmentRejected = errors.New("shmif: segment request rejected")

	errFutexTimeout = errors.New("shmif: futex timeout")
)
