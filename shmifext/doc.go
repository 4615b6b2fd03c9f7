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

// Package shmifext carries accelerated buffers across a shmif connection.
//
// A GPU-bound producer attaches a Context to its connection and signals
// frames through it. When the injected binding can export a transferable
// descriptor for the rendered surface, the descriptor crosses the process
// boundary and the backing memory never leaves the GPU. When it cannot -
// missing export entry points, a peer that refused descriptor passing, or
// an explicit no-fdpass configuration - the pixels are read back
// synchronously into the shared page instead, normalized to the canonical
// on-wire format so the consumer sees identical bytes on either path.
package shmifext
