/*
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
 */

// Package shmifsrv implements the consumer side of the shared memory
// interface: listening connection points, page allocation and handover,
// and per-client frame/event consumption.
//
// A server opens a ConnPoint, accepts clients (each accept allocates and
// passes a fresh page), then drives each Client from its own event loop:
// Poll for ready buffers, DequeueEvents for client traffic, Video/Audio to
// consume signalled buffers and release the producer's gates.
package shmifsrv
