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

// Package shmif implements the client side of the arcan shared memory
// interface: the transport connecting a display server to isolated
// frameserver processes producing video, audio and input events.
//
// The two peers share a single mapped page carrying buffer geometry, a
// pixel buffer, an audio byte ring and two bounded event queues, one per
// direction. Blocking handoff uses futex-backed binary gates instead of
// polling; kernel-level resources (GPU buffers, files) cross the process
// boundary as descriptors over a unix socket side channel, matched 1:1 in
// order with their event records.
//
// The page layout is a cross-process contract. Its structural hash, the
// layout cookie, is written by the creating server and verified on attach;
// a build whose layout disagrees refuses the page outright rather than
// partially trusting it.
package shmif
